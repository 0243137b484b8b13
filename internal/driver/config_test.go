package driver

import (
	"reflect"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig() does not validate: %v", err)
	}
	if got := cfg.GetRespawnDelay(); got != 4*time.Second {
		t.Errorf("GetRespawnDelay() = %v, want 4s", got)
	}
	if got := cfg.GetGracefulTimeout(); got != 10*time.Second {
		t.Errorf("GetGracefulTimeout() = %v, want 10s", got)
	}
	if !cfg.Respawn {
		t.Error("Respawn = false, want true")
	}
	if !cfg.EmulateTTY {
		t.Error("EmulateTTY = false, want true")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"empty name", func(c *Config) { c.Name = "" }, true},
		{"name with spaces", func(c *Config) { c.Name = "gnss driver" }, true},
		{"name with slash", func(c *Config) { c.Name = "gnss/driver" }, true},
		{"empty binary", func(c *Config) { c.Binary = "" }, true},
		{"empty config file", func(c *Config) { c.ConfigFile = "" }, true},
		{"empty share dir", func(c *Config) { c.ShareDir = "" }, true},
		{"explicit path allows empty share dir", func(c *Config) {
			c.ShareDir = ""
			c.ConfigFile = ""
			c.ConfigPath = "/etc/gnss/rover.yaml"
		}, false},
		{"unsafe config flag", func(c *Config) { c.ConfigFlag = "--file; rm" }, true},
		{"negative respawn delay", func(c *Config) { c.RespawnDelay = -1 }, true},
		{"negative graceful timeout", func(c *Config) { c.GracefulTimeout = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ResolvedConfigPath(t *testing.T) {
	cfg := DefaultConfig()

	path, err := cfg.ResolvedConfigPath()
	if err != nil {
		t.Fatalf("ResolvedConfigPath() error: %v", err)
	}
	want := "/opt/share/septentrio_gnss_driver/config/gnss.yaml"
	if path != want {
		t.Errorf("ResolvedConfigPath() = %q, want %q", path, want)
	}

	cfg.ConfigPath = "/etc/gnss/base-station.yaml"
	path, err = cfg.ResolvedConfigPath()
	if err != nil {
		t.Fatalf("ResolvedConfigPath() with override error: %v", err)
	}
	if path != cfg.ConfigPath {
		t.Errorf("ResolvedConfigPath() = %q, want override %q", path, cfg.ConfigPath)
	}
}

func TestConfig_BuildArgs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExtraArgs = []string{"--verbose"}
	cfg.ConfigFlag = "--params-file"

	args, err := cfg.BuildArgs()
	if err != nil {
		t.Fatalf("BuildArgs() error: %v", err)
	}

	want := []string{
		"--verbose",
		"--params-file",
		"/opt/share/septentrio_gnss_driver/config/gnss.yaml",
	}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("BuildArgs() = %v, want %v", args, want)
	}
}

func TestConfig_BuildArgs_BarePositional(t *testing.T) {
	cfg := DefaultConfig()

	args, err := cfg.BuildArgs()
	if err != nil {
		t.Fatalf("BuildArgs() error: %v", err)
	}
	if len(args) != 1 {
		t.Fatalf("BuildArgs() returned %d args, want 1", len(args))
	}
	if args[0] != "/opt/share/septentrio_gnss_driver/config/gnss.yaml" {
		t.Errorf("args[0] = %q", args[0])
	}
}

func TestConfig_BuildEnv(t *testing.T) {
	cfg := DefaultConfig()
	if env := cfg.BuildEnv(); env != nil {
		t.Errorf("BuildEnv() with no vars = %v, want nil", env)
	}

	cfg.Env = map[string]string{
		"RCUTILS_CONSOLE_OUTPUT_FORMAT": "[{severity}] [{name}]: {message}",
		"GNSS_DEBUG":                    "1",
	}
	env := cfg.BuildEnv()
	want := []string{
		"GNSS_DEBUG=1",
		"RCUTILS_CONSOLE_OUTPUT_FORMAT=[{severity}] [{name}]: {message}",
	}
	if !reflect.DeepEqual(env, want) {
		t.Errorf("BuildEnv() = %v, want %v", env, want)
	}
}
