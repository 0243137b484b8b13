package driver

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/roverlink/gnsslaunch/internal/launch"
)

// Default driver settings.
const (
	// DefaultBinary is the expected install location of the driver.
	DefaultBinary = "/usr/local/bin/septentrio_gnss_driver"

	// DefaultShareDir is the package share directory holding non-code
	// resources, including default configuration files.
	DefaultShareDir = "/opt/share/septentrio_gnss_driver"

	// DefaultConfigFile is the configuration file name within the share
	// directory's config/ subdirectory.
	DefaultConfigFile = "gnss.yaml"
)

// Config holds the configuration for the supervised GNSS driver.
type Config struct {
	// Name is a human-readable identifier for logging, events, and topics.
	// Default: "septentrio-gnss"
	Name string `yaml:"name"`

	// Binary is the path to the driver executable.
	Binary string `yaml:"binary"`

	// ShareDir is the package share directory. The configuration file is
	// resolved as <share_dir>/config/<config_file>.
	ShareDir string `yaml:"share_dir"`

	// ConfigFile is the configuration file name (the file_name launch
	// argument). Default: "gnss.yaml"
	ConfigFile string `yaml:"config_file"`

	// ConfigPath, when set, overrides the derived path entirely (the
	// path_to_config launch argument).
	ConfigPath string `yaml:"config_path,omitempty"`

	// ConfigFlag is an optional flag placed before the configuration path
	// in the driver's argument vector (e.g. "--params-file"). When empty
	// the path is passed as a bare positional argument.
	ConfigFlag string `yaml:"config_flag,omitempty"`

	// ExtraArgs are additional arguments passed to the driver before the
	// configuration path.
	ExtraArgs []string `yaml:"extra_args,omitempty"`

	// Env holds additional environment variables for the driver, such as
	// its console output format template.
	Env map[string]string `yaml:"env,omitempty"`

	// WorkDir is the working directory for the driver.
	WorkDir string `yaml:"work_dir,omitempty"`

	// Respawn enables automatic restart whenever the driver exits.
	// Default: true
	Respawn bool `yaml:"respawn"`

	// RespawnDelay is the fixed wait in seconds before a respawn.
	// Default: 4
	RespawnDelay int `yaml:"respawn_delay"`

	// GracefulTimeout is how long in seconds to wait after SIGTERM before
	// SIGKILL. Default: 10
	GracefulTimeout int `yaml:"graceful_timeout"`

	// EmulateTTY attaches a pseudo-terminal so the driver logs as if run
	// interactively. Default: true
	EmulateTTY bool `yaml:"emulate_tty"`
}

// DefaultConfig returns a Config with the stock rover driver settings.
func DefaultConfig() Config {
	return Config{
		Name:            "septentrio-gnss",
		Binary:          DefaultBinary,
		ShareDir:        DefaultShareDir,
		ConfigFile:      DefaultConfigFile,
		Respawn:         true,
		RespawnDelay:    4,
		GracefulTimeout: 10,
		EmulateTTY:      true,
	}
}

// namePattern restricts process names to characters safe for log fields,
// MQTT topic segments, and file names.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-]+$`)

// safeArgPattern rejects shell metacharacters in values that end up in the
// child's argument vector.
var safeArgPattern = regexp.MustCompile(`^[a-zA-Z0-9_\-./:=]+$`)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("driver name is required")
	}
	if !namePattern.MatchString(c.Name) {
		return fmt.Errorf("driver name %q contains invalid characters (allowed: alphanumeric, hyphen, underscore)", c.Name)
	}
	if c.Binary == "" {
		return fmt.Errorf("driver binary path is required")
	}
	if c.ConfigFlag != "" && !safeArgPattern.MatchString(c.ConfigFlag) {
		return fmt.Errorf("config_flag contains invalid characters")
	}
	if c.RespawnDelay < 0 {
		return fmt.Errorf("respawn_delay must not be negative")
	}
	if c.GracefulTimeout < 0 {
		return fmt.Errorf("graceful_timeout must not be negative")
	}

	// The configuration path must resolve; a missing file is surfaced by
	// the driver itself, but an unresolvable path is a launch error.
	if _, err := c.ResolvedConfigPath(); err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}

	return nil
}

// GetRespawnDelay returns the respawn delay as a time.Duration.
func (c *Config) GetRespawnDelay() time.Duration {
	return time.Duration(c.RespawnDelay) * time.Second
}

// GetGracefulTimeout returns the graceful shutdown timeout as a
// time.Duration.
func (c *Config) GetGracefulTimeout() time.Duration {
	return time.Duration(c.GracefulTimeout) * time.Second
}

// ResolvedConfigPath returns the configuration file path handed to the
// driver: the explicit config_path override when set, otherwise
// <share_dir>/config/<config_file>.
func (c *Config) ResolvedConfigPath() (string, error) {
	if c.ConfigPath != "" {
		return c.ConfigPath, nil
	}
	return launch.ResolveConfigPath(c.ShareDir, c.ConfigFile)
}

// BuildArgs constructs the driver's argument vector. The resolved
// configuration path is always the final argument.
func (c *Config) BuildArgs() ([]string, error) {
	path, err := c.ResolvedConfigPath()
	if err != nil {
		return nil, err
	}

	args := make([]string, 0, len(c.ExtraArgs)+2)
	args = append(args, c.ExtraArgs...)
	if c.ConfigFlag != "" {
		args = append(args, c.ConfigFlag)
	}
	args = append(args, path)

	return args, nil
}

// BuildEnv renders the Env map as key=value pairs in a stable order.
// Returns nil when no additional variables are configured, which lets the
// child inherit the supervisor's environment untouched.
func (c *Config) BuildEnv() []string {
	if len(c.Env) == 0 {
		return nil
	}

	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, c.Env[k]))
	}
	return env
}

// String renders the launch description for startup logging.
func (c *Config) String() string {
	args, err := c.BuildArgs()
	if err != nil {
		return fmt.Sprintf("%s (unresolved: %v)", c.Binary, err)
	}
	return fmt.Sprintf("%s %s", c.Binary, strings.Join(args, " "))
}
