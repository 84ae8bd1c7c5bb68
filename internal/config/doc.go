// Package config loads the process settings of the bake CLI from the
// environment. Project files (kas YAML) are handled by package kas.
package config
