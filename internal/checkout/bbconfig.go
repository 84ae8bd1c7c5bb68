// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package checkout

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/bake/internal/kas"
	xglog "github.com/ManuGH/bake/internal/log"
)

// WriteBBConfig writes conf/bblayers.conf and conf/local.conf below the build dir.
type WriteBBConfig struct{}

func (WriteBBConfig) Name() string { return "write_bbconfig" }

func (WriteBBConfig) Execute(ctx context.Context, kctx *kas.Context) error {
	confDir := filepath.Join(kctx.BuildDir, "conf")
	if err := os.MkdirAll(confDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", confDir, err)
	}

	bblayers, err := BBLayersConf(kctx.Config)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(ctx, filepath.Join(confDir, "bblayers.conf"), bblayers); err != nil {
		return err
	}
	return writeFileAtomic(ctx, filepath.Join(confDir, "local.conf"), LocalConf(kctx.Config))
}

// BBLayersConf renders bblayers.conf: the configured header followed by the
// sorted layers of all repos.
func BBLayersConf(cfg *kas.Config) (string, error) {
	repos, err := cfg.Repos()
	if err != nil {
		return "", err
	}
	var layers []string
	for _, r := range repos {
		layers = append(layers, r.Layers()...)
	}
	sort.Strings(layers)

	var b strings.Builder
	b.WriteString(cfg.BBLayersConfHeader())
	b.WriteString("BBLAYERS ?= \" \\\n    ")
	b.WriteString(strings.Join(layers, " \\\n    "))
	b.WriteString("\"\nBBPATH ?= \"${TOPDIR}\"\n")
	b.WriteString("BBFILES ??= \"\"\n")
	return b.String(), nil
}

// LocalConf renders local.conf: the configured header followed by MACHINE,
// DISTRO and BBMULTICONFIG.
func LocalConf(cfg *kas.Config) string {
	var b strings.Builder
	b.WriteString(cfg.LocalConfHeader())
	fmt.Fprintf(&b, "MACHINE ??= \"%s\"\n", cfg.Machine())
	fmt.Fprintf(&b, "DISTRO ??= \"%s\"\n", cfg.Distro())
	fmt.Fprintf(&b, "BBMULTICONFIG ?= \"%s\"\n", cfg.Multiconfig())
	return b.String()
}

// writeFileAtomic replaces path so bitbake never reads a partial file.
func writeFileAtomic(ctx context.Context, path, content string) error {
	logger := xglog.FromContext(ctx)

	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending %s: %w", filepath.Base(path), err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Str(xglog.FieldPath, path).Msg("cleanup pending file")
		}
	}()

	if _, err := pendingFile.WriteString(content); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
