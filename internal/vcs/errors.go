package vcs

import "errors"

var (
	// ErrEmptyCommand is returned when a Cmd without a program is run.
	ErrEmptyCommand = errors.New("empty command")

	// ErrUnknownKind is returned for version control systems other than git and hg.
	ErrUnknownKind = errors.New("unknown version control system")
)
