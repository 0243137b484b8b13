// Package config loads and validates the supervisor configuration.
//
// Configuration is read from a YAML file, layered over hardcoded defaults,
// and finally overridden by GNSSLAUNCH_* environment variables. The result
// is validated before any subsystem starts.
package config
