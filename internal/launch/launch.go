package launch

import (
	"errors"
	"fmt"
	"path/filepath"
)

// configSubdir is the conventional subdirectory for configuration files
// within a package share directory.
const configSubdir = "config"

// ErrEmptyFileName is returned when the configuration file name argument
// resolves to an empty string.
var ErrEmptyFileName = errors.New("configuration file name is empty")

// ErrEmptyShareDir is returned when no share directory is configured and
// no explicit configuration path was given.
var ErrEmptyShareDir = errors.New("share directory is empty")

// Argument is a named launch argument with a default value.
//
// The value is resolved once at startup: Set() records an override from a
// CLI flag or environment variable, Value() returns the override if one was
// recorded and the default otherwise. Arguments are not safe for concurrent
// mutation, but they are only ever written during startup.
type Argument struct {
	// Name identifies the argument (e.g. "file_name").
	Name string

	// Default is the value used when no override is set.
	Default string

	override string
	isSet    bool
}

// NewArgument creates an argument with the given name and default value.
func NewArgument(name, def string) *Argument {
	return &Argument{Name: name, Default: def}
}

// Set records an override for the argument. An empty override is recorded
// as-is; validity is checked at resolution time, not here.
func (a *Argument) Set(value string) {
	a.override = value
	a.isSet = true
}

// IsSet reports whether an override was recorded.
func (a *Argument) IsSet() bool {
	return a.isSet
}

// Value returns the resolved value: the override if set, else the default.
func (a *Argument) Value() string {
	if a.isSet {
		return a.override
	}
	return a.Default
}

// ResolveConfigPath builds the absolute driver configuration path from a
// share directory and a configuration file name:
//
//	<shareDir>/config/<fileName>
//
// No existence check is performed; a missing file is surfaced by the driver
// itself, not here.
func ResolveConfigPath(shareDir, fileName string) (string, error) {
	if fileName == "" {
		return "", ErrEmptyFileName
	}
	if shareDir == "" {
		return "", ErrEmptyShareDir
	}
	return filepath.Join(shareDir, configSubdir, fileName), nil
}

// ResolveConfigArgument resolves the full configuration path from the two
// launch arguments: if pathArg carries an explicit override it wins,
// otherwise the path is derived from shareDir and fileArg.
func ResolveConfigArgument(shareDir string, fileArg, pathArg *Argument) (string, error) {
	if pathArg != nil && pathArg.IsSet() {
		if pathArg.Value() == "" {
			return "", fmt.Errorf("argument %s: %w", pathArg.Name, ErrEmptyFileName)
		}
		return pathArg.Value(), nil
	}
	path, err := ResolveConfigPath(shareDir, fileArg.Value())
	if err != nil {
		return "", fmt.Errorf("argument %s: %w", fileArg.Name, err)
	}
	return path, nil
}
