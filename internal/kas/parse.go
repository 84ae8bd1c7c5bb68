// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package kas

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse decodes a single project file with STRICT parsing.
// Unknown fields are rejected to catch typos early.
func Parse(data []byte) (*ProjectConfig, error) {
	var cfg ProjectConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty project file", ErrUnsupportedVersion)
		}
		return nil, classifyDecodeError(err)
	}

	// Strict: Ensure no multiple documents or trailing content
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("project file contains multiple documents or trailing content")
	}

	if err := CheckVersion(cfg.Header); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func classifyDecodeError(err error) error {
	if errors.Is(err, ErrUnknownConfigField) {
		return err
	}
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) {
		for _, msg := range typeErr.Errors {
			if strings.Contains(msg, "not found in type") {
				return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
			}
		}
	}
	return fmt.Errorf("strict project file parse error: %w", err)
}

// CheckVersion verifies that the header version is supported.
func CheckVersion(h Header) error {
	if h.Version.String() == "" {
		return fmt.Errorf("%w: header.version is missing", ErrUnsupportedVersion)
	}
	n, err := h.Version.Int()
	if err != nil {
		return err
	}
	if n < MinFormatVersion || n > MaxFormatVersion {
		return fmt.Errorf("%w: version %d (supported: %d..%d)", ErrUnsupportedVersion, n, MinFormatVersion, MaxFormatVersion)
	}
	return nil
}

// LoadFile reads and strictly parses one project file.
func LoadFile(path string) (*ProjectConfig, error) {
	cfg, _, err := loadFile(path)
	return cfg, err
}

// loadFile returns both the typed config (for validation) and the root
// mapping node that is merged with the other files of an include graph.
func loadFile(path string) (*ProjectConfig, *yaml.Node, error) {
	path = filepath.Clean(path)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml", ".json":
	default:
		return nil, nil, fmt.Errorf("%w: %s (only YAML and JSON supported)", ErrUnsupportedFormat, path)
	}

	// #nosec G304 -- project file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read project file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("%s: project file must be a mapping", path)
	}
	return cfg, doc.Content[0], nil
}

// decodeTree converts a merged mapping node back into the typed model.
// The node is encoded as written, so scalars keep their original text.
func decodeTree(tree *yaml.Node) (*ProjectConfig, error) {
	data, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encode merged config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("merged config: %w", err)
	}
	return cfg, nil
}
