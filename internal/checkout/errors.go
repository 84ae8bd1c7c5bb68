package checkout

import "errors"

var (
	// ErrUnresolvableIncludes is returned when a round of fetching did not
	// shrink the set of repos needed by includes.
	ErrUnresolvableIncludes = errors.New("could not fetch all repos needed by includes")

	// ErrPatchNotFound is returned for patch paths that are neither a file nor
	// a quilt directory, and for series entries that do not exist.
	ErrPatchNotFound = errors.New("patch not found")

	// ErrPatchRepoUnknown is returned when a patch refers to an undefined repo.
	ErrPatchRepoUnknown = errors.New("could not find referenced repo")

	// ErrInitScriptNotFound is returned when no repo carries oe-init-build-env
	// or isar-init-build-env.
	ErrInitScriptNotFound = errors.New("did not find any init-build-env script")

	// ErrMultipleInitScripts is returned when more than one repo carries an init script.
	ErrMultipleInitScripts = errors.New("multiple init scripts found")

	// ErrEmptyCommand is returned by Exec without a command.
	ErrEmptyCommand = errors.New("no command given")

	// ErrUnknownStep is returned when a step to skip does not exist.
	ErrUnknownStep = errors.New("unknown step")
)
