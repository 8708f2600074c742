// Package config loads pgaudit.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/pgschema/pgaudit/internal/factory"
	"github.com/pgschema/pgaudit/internal/operation"
	"github.com/pgschema/pgaudit/internal/template"
)

const (
	maxWalkDepth = 25

	// DefaultTargetSchema is the schema audit objects are created in
	DefaultTargetSchema = "audit"
)

var configNames = []string{"pgaudit.yaml", "pgaudit.yml"}

// Config represents the pgaudit configuration from pgaudit.yaml.
type Config struct {
	// TargetSchema holds the audit functions and tables
	TargetSchema string `mapstructure:"target_schema"`

	Database DatabaseConfig `mapstructure:"database"`

	// Tables are the audited tables
	Tables []factory.AuditTable `mapstructure:"tables"`

	// TableFiles are SQL files with CREATE TABLE statements for the tables
	// the migration creates, relative to the config file
	TableFiles []string `mapstructure:"table_files"`

	// Params are extra template parameters
	Params map[string]any `mapstructure:"params"`

	// SinglePass selects the one-pass dependency scan
	SinglePass bool `mapstructure:"single_pass"`

	// dir is the directory relative paths are resolved against
	dir string
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// Load discovers and loads configuration with precedence env > config file >
// defaults. Flags are applied on top by the caller.
//
// Returns the loaded config, the path to the config file (empty if none found),
// and any error encountered.
func Load(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("PGAUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}

	if configPath != "" {
		cfg.dir = filepath.Dir(configPath)
	} else if cfg.dir, err = os.Getwd(); err != nil {
		return nil, "", fmt.Errorf("getting cwd: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, configPath, err
	}
	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("target_schema", DefaultTargetSchema)
	v.SetDefault("single_pass", false)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "prefer")
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for pgaudit.yaml or pgaudit.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		// Stop at the repo root
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil
}

// Validate checks the fields that cannot be defaulted
func (c *Config) Validate() error {
	if strings.TrimSpace(c.TargetSchema) == "" {
		return fmt.Errorf("target_schema must not be empty")
	}
	seen := make(map[string]bool, len(c.Tables))
	for i, t := range c.Tables {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("tables[%d]: name is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("tables[%d]: table %s is listed twice", i, t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

// FactoryContext returns the context the schema object factories render with
func (c *Config) FactoryContext() factory.Context {
	params := make(template.Params, len(c.Params))
	for k, v := range c.Params {
		params[k] = v
	}
	return factory.Context{Schema: c.TargetSchema, Params: params}
}

// DeclaredTables parses the CREATE TABLE statements of every table file
func (c *Config) DeclaredTables() ([]operation.Table, error) {
	var tables []operation.Table
	for _, file := range c.TableFiles {
		path := file
		if !filepath.IsAbs(path) {
			path = filepath.Join(c.dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading table file: %w", err)
		}
		parsed, err := factory.TablesFromSQL(string(data))
		if err != nil {
			return nil, fmt.Errorf("parsing table file %s: %w", file, err)
		}
		tables = append(tables, parsed...)
	}
	return tables, nil
}
