package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	CurrentVersion = 1
	DefaultPath    = "~/.schemadiff/schemadiff.yaml"
)

// Config is the top-level configuration for a compare run. Reference and
// Target are intentionally the same shape: spec.md §6 only ever compares
// two sides of the same dialect.
type Config struct {
	Version   int        `yaml:"version"`
	DBType    string     `yaml:"db_type"` // mysql|postgres|mssql|oracle|db2, applies to both sides
	Reference SideConfig `yaml:"reference"`
	Target    SideConfig `yaml:"target"`
	Image     string     `yaml:"image,omitempty"` // container image, used when a side is a DDL script
	Logging   LogConfig  `yaml:"logging,omitempty"`
}

// SideConfig describes one side of the comparison: either a live connection
// or a DDL script to be materialised in a provisioned container.
type SideConfig struct {
	Script         string `yaml:"script,omitempty"` // path to a DDL script; mutually exclusive with the connection fields below
	Host           string `yaml:"host,omitempty"`
	Port           int    `yaml:"port,omitempty"`
	Database       string `yaml:"database,omitempty"`
	Schema         string `yaml:"schema,omitempty"`
	Username       string `yaml:"username,omitempty"`
	Password       string `yaml:"password,omitempty"`
	SSL            bool   `yaml:"ssl,omitempty"`
	MaxConnections int    `yaml:"max_connections,omitempty"` // default 20, max 50
}

// IsScript reports whether this side is sourced from a DDL script rather
// than a live connection.
func (s SideConfig) IsScript() bool {
	return s.Script != ""
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level         string `yaml:"level,omitempty"`          // debug, info, warn, error
	Directory     string `yaml:"directory,omitempty"`      // default ~/.schemadiff/logs/
	RetentionDays int    `yaml:"retention_days,omitempty"` // default 30
}

// Load reads and parses the config file from the given path.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentVersion)
	}

	if err := cfg.resolveSecrets(); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the config to the given path.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

func (c *Config) applyDefaults() {
	for _, side := range []*SideConfig{&c.Reference, &c.Target} {
		if side.MaxConnections == 0 {
			side.MaxConnections = 20
		}
		if side.MaxConnections > 50 {
			side.MaxConnections = 50
		}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Directory == "" {
		c.Logging.Directory = ExpandHome("~/.schemadiff/logs/")
	}
	if c.Logging.RetentionDays == 0 {
		c.Logging.RetentionDays = 30
	}
}

var secretPattern = regexp.MustCompile(`\$\{(ENV|VAULT|AWS_SM):([^}]+)\}`)

func (c *Config) resolveSecrets() error {
	var err error
	c.Reference.Password, err = ResolveValue(c.Reference.Password)
	if err != nil {
		return fmt.Errorf("reference password: %w", err)
	}
	c.Target.Password, err = ResolveValue(c.Target.Password)
	if err != nil {
		return fmt.Errorf("target password: %w", err)
	}
	return nil
}

// ResolveValue resolves secret references in a string value.
func ResolveValue(val string) (string, error) {
	matches := secretPattern.FindStringSubmatch(val)
	if matches == nil {
		return val, nil
	}

	provider := matches[1]
	ref := matches[2]

	switch provider {
	case "ENV":
		v := os.Getenv(ref)
		if v == "" {
			return "", fmt.Errorf("environment variable %s not set", ref)
		}
		return v, nil
	case "VAULT":
		return resolveVault(ref)
	case "AWS_SM":
		return resolveAWSSecretsManager(ref)
	default:
		return "", fmt.Errorf("unknown secrets provider: %s", provider)
	}
}

// ExpandHome expands ~ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultSchema returns the dialect's session-default schema/owner name,
// used when a SideConfig.Schema is left empty (spec §4.1).
func DefaultSchema(dbType string) string {
	switch dbType {
	case "mysql":
		return "" // DATABASE() session default, resolved at connect time
	case "postgres":
		return "public"
	case "mssql":
		return "dbo"
	case "oracle":
		return "" // USER, resolved at connect time
	case "db2":
		return "" // CURRENT SCHEMA, resolved at connect time
	default:
		return ""
	}
}
