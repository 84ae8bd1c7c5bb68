// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldService = "service"
	FieldVersion = "version"
	FieldRunID   = "run_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStep      = "step"
	FieldDuration  = "duration_ms"

	// Repository fields
	FieldRepo     = "repo"
	FieldVCS      = "vcs"
	FieldURL      = "url"
	FieldRevision = "revision"
	FieldPatch    = "patch"

	// Path fields
	FieldPath     = "path"
	FieldWorkDir  = "work_dir"
	FieldBuildDir = "build_dir"
	FieldConfig   = "config"
)
