// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package kas

import "errors"

var (
	// ErrUnknownConfigField classifies strict YAML parse failures caused by unknown keys.
	// Use errors.Is(err, ErrUnknownConfigField) instead of string matching.
	ErrUnknownConfigField = errors.New("unknown config field")

	// ErrUnsupportedVersion is returned when header.version is outside the supported range.
	ErrUnsupportedVersion = errors.New("unsupported project file version")

	// ErrUnsupportedFormat is returned for project files that are neither YAML nor JSON.
	ErrUnsupportedFormat = errors.New("unsupported project file format")

	// ErrIncludeCycle is returned when a file includes itself, directly or transitively.
	ErrIncludeCycle = errors.New("include cycle")

	// ErrMixedRepositories is returned when concatenated top files live in different repositories.
	ErrMixedRepositories = errors.New("all concatenated config files must belong to the same repository or all must be outside of version control")

	// ErrPatchRepoMissing is returned when a patch entry names no repo and no default is set.
	ErrPatchRepoMissing = errors.New("no repo specified for patch entry and no default repo specified")

	// ErrUnknownRepo is returned when a repo id is not defined in the merged config.
	ErrUnknownRepo = errors.New("unknown repo")

	// ErrNotResolved is returned by accessors used before the includes were resolved.
	ErrNotResolved = errors.New("config not resolved")
)
