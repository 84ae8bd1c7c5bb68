// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Environment variables understood by bake. The KAS_* names match the
// variables kas itself reads so existing CI setups keep working.
const (
	EnvWorkDir       = "KAS_WORK_DIR"
	EnvBuildDir      = "KAS_BUILD_DIR"
	EnvRepoRefDir    = "KAS_REPO_REF_DIR"
	EnvLogLevel      = "BAKE_LOG_LEVEL"
	EnvLogConsole    = "BAKE_LOG_CONSOLE"
	EnvJobs          = "BAKE_JOBS"
	EnvLedgerPath    = "BAKE_LEDGER"
	EnvMetricsFile   = "BAKE_METRICS_FILE"
	EnvWatchDebounce = "BAKE_WATCH_DEBOUNCE"
	EnvKillGrace     = "BAKE_KILL_GRACE"
	EnvOTelExporter  = "BAKE_OTEL_EXPORTER"
	EnvOTelEndpoint  = "BAKE_OTEL_ENDPOINT"
	EnvOTelSampling  = "BAKE_OTEL_SAMPLING"
)

// Settings holds the process-level configuration of the bake CLI.
// Precedence: flags (applied by the caller) > environment > defaults.
type Settings struct {
	WorkDir    string
	BuildDir   string // empty means <WorkDir>/build
	RepoRefDir string

	LogLevel   string
	LogConsole bool

	// Jobs bounds the number of concurrent repository fetches.
	Jobs int

	LedgerPath  string // empty means <work dir>/.bake/ledger.sqlite
	MetricsFile string // empty disables the metrics textfile

	WatchDebounce time.Duration
	KillGrace     time.Duration

	Telemetry TelemetrySettings
}

// TelemetrySettings configures OpenTelemetry export.
type TelemetrySettings struct {
	Exporter     string // "", "http" or "grpc"
	Endpoint     string
	SamplingRate float64
}

// Enabled reports whether traces should be exported.
func (t TelemetrySettings) Enabled() bool {
	return t.Exporter != ""
}

// DefaultJobs is the default fetch concurrency.
func DefaultJobs() int {
	n := runtime.NumCPU()
	if n > 8 {
		return 8
	}
	if n < 1 {
		return 1
	}
	return n
}

// LoadSettings reads Settings from the environment.
func LoadSettings() (Settings, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Settings{}, fmt.Errorf("resolve working directory: %w", err)
	}

	s := Settings{
		WorkDir:       ParseString(EnvWorkDir, cwd),
		BuildDir:      ParseString(EnvBuildDir, ""),
		RepoRefDir:    ParseString(EnvRepoRefDir, ""),
		LogLevel:      ParseString(EnvLogLevel, "info"),
		LogConsole:    ParseBool(EnvLogConsole, false),
		Jobs:          ParseInt(EnvJobs, DefaultJobs()),
		MetricsFile:   ParseString(EnvMetricsFile, ""),
		WatchDebounce: ParseDuration(EnvWatchDebounce, 500*time.Millisecond),
		KillGrace:     ParseDuration(EnvKillGrace, 5*time.Second),
		Telemetry: TelemetrySettings{
			Exporter:     strings.ToLower(ParseString(EnvOTelExporter, "")),
			Endpoint:     ParseString(EnvOTelEndpoint, ""),
			SamplingRate: ParseFloat(EnvOTelSampling, 1.0),
		},
	}
	s.LedgerPath = ParseString(EnvLedgerPath, "")

	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// DefaultLedgerPath is the ledger location inside a work dir.
func DefaultLedgerPath(workDir string) string {
	return filepath.Join(workDir, ".bake", "ledger.sqlite")
}

// LedgerFor returns the configured ledger, or the default one of workDir.
// workDir is passed in because --work-dir may override the environment.
func (s Settings) LedgerFor(workDir string) string {
	if s.LedgerPath != "" {
		return s.LedgerPath
	}
	return DefaultLedgerPath(workDir)
}

// Validate checks value ranges that cannot be expressed through defaults.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.WorkDir) == "" {
		return fmt.Errorf("%w: work dir must not be empty", ErrInvalidSetting)
	}
	if s.Jobs < 1 {
		return fmt.Errorf("%w: jobs must be >= 1 (got %d)", ErrInvalidSetting, s.Jobs)
	}
	if s.WatchDebounce < 0 {
		return fmt.Errorf("%w: watch debounce must not be negative", ErrInvalidSetting)
	}
	switch s.Telemetry.Exporter {
	case "", "http", "grpc":
	default:
		return fmt.Errorf("%w: unsupported otel exporter %q (supported: http, grpc)", ErrInvalidSetting, s.Telemetry.Exporter)
	}
	if s.Telemetry.Enabled() && s.Telemetry.Endpoint == "" {
		return fmt.Errorf("%w: %s requires %s", ErrInvalidSetting, EnvOTelExporter, EnvOTelEndpoint)
	}
	return nil
}
