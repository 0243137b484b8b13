// Package launch resolves launch arguments for the supervisor.
//
// A launch argument is a named, overridable configuration value that is
// resolved exactly once at startup: an explicit override (CLI flag or
// environment variable) wins, otherwise the declared default applies.
// Once resolved, arguments are never re-read.
//
// The package also derives the driver's configuration file path from the
// package share directory and the resolved file name:
//
//	arg := launch.NewArgument("file_name", "gnss.yaml")
//	path, err := launch.ResolveConfigPath("/opt/share/septentrio_gnss_driver", arg.Value())
//	// path == "/opt/share/septentrio_gnss_driver/config/gnss.yaml"
package launch
