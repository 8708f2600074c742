package util

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pgschema/pgaudit/internal/config"
)

// GetEnvWithDefault returns the value of an environment variable or a default value if not set
func GetEnvWithDefault(envVar, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvIntWithDefault returns the value of an environment variable as int or a default value if not set
func GetEnvIntWithDefault(envVar string, defaultValue int) int {
	if value := os.Getenv(envVar); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// ResolveConnection fills conn with, in order of precedence, explicitly set
// flags, PG* environment variables and the config file. Flag defaults are
// kept only when nothing else provides a value.
func ResolveConnection(cmd *cobra.Command, conn *ConnectionConfig, db config.DatabaseConfig) error {
	resolveString(cmd, "host", "PGHOST", db.Host, &conn.Host)
	resolveString(cmd, "db", "PGDATABASE", db.Name, &conn.Database)
	resolveString(cmd, "user", "PGUSER", db.User, &conn.User)
	resolveString(cmd, "password", "PGPASSWORD", db.Password, &conn.Password)

	if !cmd.Flags().Changed("port") {
		if port := GetEnvIntWithDefault("PGPORT", 0); port != 0 {
			conn.Port = port
		} else if db.Port != 0 {
			conn.Port = db.Port
		}
	}
	if conn.SSLMode == "" {
		conn.SSLMode = GetEnvWithDefault("PGSSLMODE", db.SSLMode)
	}

	if conn.Database == "" {
		return fmt.Errorf("database name is required (use --db flag, PGDATABASE environment variable or database.name in pgaudit.yaml)")
	}
	if conn.User == "" {
		return fmt.Errorf("database user is required (use --user flag, PGUSER environment variable or database.user in pgaudit.yaml)")
	}
	return nil
}

func resolveString(cmd *cobra.Command, flag, envVar, fromConfig string, target *string) {
	if cmd.Flags().Changed(flag) {
		return
	}
	if value := GetEnvWithDefault(envVar, ""); value != "" {
		*target = value
		return
	}
	if fromConfig != "" {
		*target = fromConfig
	}
}
