// Package config loads and validates the procfiled configuration from
// YAML or JSON files, with environment variable overrides.
package config

import (
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full procfiled configuration.
type Config struct {
	File   FileConfig   `yaml:"file" json:"file"`
	Store  StoreConfig  `yaml:"store" json:"store"`
	Server ServerConfig `yaml:"server" json:"server"`
	Admin  AdminConfig  `yaml:"admin" json:"admin"`
	Notify NotifyConfig `yaml:"notify" json:"notify"`
	Auth   AuthConfig   `yaml:"auth" json:"auth"`
}

// FileConfig describes the exposed pseudo-file.
type FileConfig struct {
	// Name of the registered entry.
	Name string `yaml:"name" json:"name"`
	// Mode is the octal permission mode, e.g. "0666".
	Mode string `yaml:"mode" json:"mode"`
}

// StoreConfig configures the segmented byte store.
type StoreConfig struct {
	// MaxStoreBytes caps resident bytes. 0 disables the cap.
	MaxStoreBytes int64 `yaml:"max_store_bytes" json:"max_store_bytes"`
}

// ServerConfig configures the data-plane HTTP server.
type ServerConfig struct {
	Addr         string        `yaml:"addr" json:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	// Workers bounds concurrent request handling; Queue bounds waiting
	// requests before 503s are returned.
	Workers int `yaml:"workers" json:"workers"`
	Queue   int `yaml:"queue" json:"queue"`
}

// AdminConfig configures the admin server (metrics, tail websocket).
type AdminConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// NotifyConfig configures NATS append notifications.
type NotifyConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	URL     string `yaml:"url" json:"url"`
	Prefix  string `yaml:"prefix" json:"prefix"`
	Name    string `yaml:"name" json:"name"`
}

// AuthConfig configures bearer-token protection of writes.
type AuthConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Secret  string `yaml:"secret" json:"secret"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		File: FileConfig{
			Name: "proc_module_file",
			Mode: "0666",
		},
		Store: StoreConfig{
			MaxStoreBytes: 64 << 20, // 64MB
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			Workers:      100,
			Queue:        1000,
		},
		Admin: AdminConfig{
			Addr: ":9090",
		},
		Notify: NotifyConfig{
			Prefix: "procfile",
		},
	}
}

// FileMode parses the configured octal mode string.
func (c *Config) FileMode() (fs.FileMode, error) {
	s := strings.TrimPrefix(c.File.Mode, "0o")
	m, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid file mode %q: %w", c.File.Mode, err)
	}
	if m > 0o777 {
		return 0, fmt.Errorf("invalid file mode %q: permission bits only", c.File.Mode)
	}
	return fs.FileMode(m), nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.File.Name == "" {
		return fmt.Errorf("file.name is required")
	}
	if strings.ContainsAny(c.File.Name, "/ ") {
		return fmt.Errorf("file.name must not contain slashes or spaces")
	}
	if _, err := c.FileMode(); err != nil {
		return err
	}
	if c.Store.MaxStoreBytes < 0 {
		return fmt.Errorf("store.max_store_bytes must be >= 0")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.Workers <= 0 {
		return fmt.Errorf("server.workers must be > 0")
	}
	if c.Server.Queue <= 0 {
		return fmt.Errorf("server.queue must be > 0")
	}
	if c.Auth.Enabled && c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required when auth is enabled")
	}
	return nil
}

// Load loads configuration from a file (YAML or JSON), detected by
// extension. Unknown extensions default to YAML.
func Load(path string, target *Config) error {
	if strings.HasSuffix(path, ".json") {
		return LoadJSON(path, target)
	}
	return LoadYAML(path, target)
}

// LoadWithEnv loads configuration from a file and applies environment
// variable overrides with the given prefix (default "PROCFILE").
func LoadWithEnv(path, prefix string, target *Config) error {
	if err := Load(path, target); err != nil {
		return fmt.Errorf("failed to load config file: %w", err)
	}
	if err := ApplyEnvOverrides(prefix, target); err != nil {
		return fmt.Errorf("failed to apply env overrides: %w", err)
	}
	return nil
}

// ApplyEnvOverrides overrides configuration fields from environment
// variables of the form PREFIX_SECTION_FIELD, e.g. PROCFILE_SERVER_ADDR.
func ApplyEnvOverrides(prefix string, target *Config) error {
	if prefix == "" {
		prefix = "PROCFILE"
	}

	envString(prefix+"_FILE_NAME", &target.File.Name)
	envString(prefix+"_FILE_MODE", &target.File.Mode)
	if err := envInt64(prefix+"_STORE_MAX_STORE_BYTES", &target.Store.MaxStoreBytes); err != nil {
		return err
	}
	envString(prefix+"_SERVER_ADDR", &target.Server.Addr)
	if err := envDuration(prefix+"_SERVER_READ_TIMEOUT", &target.Server.ReadTimeout); err != nil {
		return err
	}
	if err := envDuration(prefix+"_SERVER_WRITE_TIMEOUT", &target.Server.WriteTimeout); err != nil {
		return err
	}
	if err := envInt(prefix+"_SERVER_WORKERS", &target.Server.Workers); err != nil {
		return err
	}
	if err := envInt(prefix+"_SERVER_QUEUE", &target.Server.Queue); err != nil {
		return err
	}
	envString(prefix+"_ADMIN_ADDR", &target.Admin.Addr)
	if err := envBool(prefix+"_NOTIFY_ENABLED", &target.Notify.Enabled); err != nil {
		return err
	}
	envString(prefix+"_NOTIFY_URL", &target.Notify.URL)
	envString(prefix+"_NOTIFY_PREFIX", &target.Notify.Prefix)
	envString(prefix+"_NOTIFY_NAME", &target.Notify.Name)
	if err := envBool(prefix+"_AUTH_ENABLED", &target.Auth.Enabled); err != nil {
		return err
	}
	envString(prefix+"_AUTH_SECRET", &target.Auth.Secret)
	return nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid integer in %s: %q", key, v)
	}
	*dst = n
	return nil
}

func envInt64(key string, dst *int64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer in %s: %q", key, v)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		*dst = true
	case "false", "0", "no":
		*dst = false
	default:
		return fmt.Errorf("invalid boolean in %s: %q", key, v)
	}
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid duration in %s: %q", key, v)
	}
	*dst = d
	return nil
}
