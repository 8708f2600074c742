package cmd

import (
	"os"
	"testing"

	"github.com/joho/godotenv"

	"github.com/pgschema/pgaudit/internal/config"
)

func TestDotenvLoading(t *testing.T) {
	tmpDir := t.TempDir()
	originalDir, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change to temp directory: %v", err)
	}
	defer os.Chdir(originalDir)

	t.Run("MissingEnvFile", func(t *testing.T) {
		if err := godotenv.Load(); err == nil {
			t.Error("Expected error when loading non-existent .env file, but got nil")
		}
	})

	t.Run("ExistingEnvVarTakesPrecedence", func(t *testing.T) {
		t.Setenv("PGPASSWORD", "env_password")
		if err := os.WriteFile(".env", []byte("PGPASSWORD=dotenv_password\n"), 0644); err != nil {
			t.Fatalf("Failed to create .env file: %v", err)
		}
		defer os.Remove(".env")

		if err := godotenv.Load(); err != nil {
			t.Fatalf("Failed to load .env file: %v", err)
		}
		if password := os.Getenv("PGPASSWORD"); password != "env_password" {
			t.Errorf("Expected PGPASSWORD='env_password', got '%s'", password)
		}
	})

	t.Run("ConfigOverridesFromDotenv", func(t *testing.T) {
		// Registered through t.Setenv so the value is restored after the test
		t.Setenv("PGAUDIT_TARGET_SCHEMA", "")
		os.Unsetenv("PGAUDIT_TARGET_SCHEMA")

		if err := os.WriteFile(".env", []byte("PGAUDIT_TARGET_SCHEMA=audit_from_dotenv\n"), 0644); err != nil {
			t.Fatalf("Failed to create .env file: %v", err)
		}
		defer os.Remove(".env")
		if err := os.Mkdir(".git", 0755); err != nil && !os.IsExist(err) {
			t.Fatalf("Failed to create .git directory: %v", err)
		}

		if err := godotenv.Load(); err != nil {
			t.Fatalf("Failed to load .env file: %v", err)
		}

		cfg, _, err := config.Load("")
		if err != nil {
			t.Fatalf("Failed to load config: %v", err)
		}
		if cfg.TargetSchema != "audit_from_dotenv" {
			t.Errorf("Expected target schema from .env, got %q", cfg.TargetSchema)
		}
	})
}
