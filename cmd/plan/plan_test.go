package plan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/pgschema/pgaudit/cmd/util"
	"github.com/pgschema/pgaudit/internal/entity"
	"github.com/pgschema/pgaudit/internal/operation"
	"github.com/pgschema/pgaudit/internal/plan"
	"github.com/pgschema/pgaudit/internal/template"
)

func TestPlanCommand(t *testing.T) {
	if PlanCmd.Use != "plan" {
		t.Errorf("Expected Use to be 'plan', got '%s'", PlanCmd.Use)
	}
	if PlanCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}

	flags := PlanCmd.Flags()
	defaults := map[string]string{
		"host":                 "localhost",
		"port":                 "5432",
		"db":                   "",
		"user":                 "",
		"password":             "",
		"schema":               "",
		"config":               "",
		"single-pass":          "false",
		"output-human":         "",
		"output-json":          "",
		"output-yaml":          "",
		"output-sql":           "",
		"output-downgrade-sql": "",
		"no-color":             "false",
	}
	for name, def := range defaults {
		flag := flags.Lookup(name)
		if flag == nil {
			t.Errorf("Expected --%s flag to be defined", name)
			continue
		}
		if flag.DefValue != def {
			t.Errorf("Expected default of --%s to be %q, got %q", name, def, flag.DefValue)
		}
	}
}

func resetOutputs() {
	outputHuman, outputJSON, outputYAML, outputSQL, outputDowngradeSQL = "", "", "", "", ""
}

func TestDetermineOutputs(t *testing.T) {
	tests := []struct {
		name        string
		set         func()
		expectError bool
		expectCount int
	}{
		{
			name:        "no flags - default to human stdout",
			set:         func() {},
			expectCount: 1,
		},
		{
			name:        "single yaml to stdout",
			set:         func() { outputYAML = "stdout" },
			expectCount: 1,
		},
		{
			name: "multiple to files",
			set: func() {
				outputHuman = "plan.txt"
				outputJSON = "plan.json"
				outputSQL = "upgrade.sql"
				outputDowngradeSQL = "downgrade.sql"
			},
			expectCount: 4,
		},
		{
			name: "sql to stdout, downgrade to file",
			set: func() {
				outputSQL = "stdout"
				outputDowngradeSQL = "downgrade.sql"
			},
			expectCount: 2,
		},
		{
			name: "two outputs on stdout",
			set: func() {
				outputJSON = "stdout"
				outputSQL = "stdout"
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetOutputs()
			defer resetOutputs()
			tt.set()

			outputs, err := determineOutputs()
			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(outputs) != tt.expectCount {
				t.Errorf("Expected %d outputs, got %d", tt.expectCount, len(outputs))
			}
		})
	}
}

func TestProcessOutputToFile(t *testing.T) {
	getSetting := entity.SchemaObject{
		Kind:       entity.KindFunction,
		Schema:     "audit",
		Name:       "get_setting",
		Arguments:  "setting text, fallback text",
		Definition: "CREATE FUNCTION audit.get_setting(setting text, fallback text) RETURNS text AS $$ SELECT fallback $$ LANGUAGE sql;",
	}
	migrationPlan := plan.New(operation.NewUpgradeOps(
		operation.SchemaCreate{Schema: "audit"},
		operation.EntityCreate{Object: getSetting},
	), template.MustNewRenderer(), "audit")

	dir := t.TempDir()
	cmd := &cobra.Command{Use: "plan"}

	upgradePath := filepath.Join(dir, "upgrade.sql")
	if err := processOutput(migrationPlan, outputSpec{format: "sql", target: upgradePath}, cmd); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	upgrade, err := os.ReadFile(upgradePath)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	if !strings.HasPrefix(string(upgrade), "CREATE SCHEMA IF NOT EXISTS audit;") {
		t.Errorf("Unexpected upgrade SQL:\n%s", upgrade)
	}

	downgradePath := filepath.Join(dir, "downgrade.sql")
	if err := processOutput(migrationPlan, outputSpec{format: "downgrade-sql", target: downgradePath}, cmd); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	downgrade, err := os.ReadFile(downgradePath)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	if !strings.HasSuffix(string(downgrade), "DROP SCHEMA IF EXISTS audit CASCADE;\n") {
		t.Errorf("Unexpected downgrade SQL:\n%s", downgrade)
	}

	if err := processOutput(migrationPlan, outputSpec{format: "xml", target: "stdout"}, cmd); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pgaudit.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func newOptionsCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "plan"}
	cmd.Flags().String("schema", "", "")
	cmd.Flags().Bool("single-pass", false, "")
	return cmd
}

func TestLoadOptions(t *testing.T) {
	path := writeConfig(t, `
target_schema: history
tables:
  - name: orders
    exclude: [card_number]
`)

	opts, cfg, err := LoadOptions(newOptionsCommand(), path, "", false)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if opts.TargetSchema != "history" || cfg.TargetSchema != "history" {
		t.Errorf("Expected target schema from config, got %q", opts.TargetSchema)
	}
	if len(opts.Tables) != 1 || opts.Tables[0].ExcludedColumns[0] != "card_number" {
		t.Errorf("Unexpected tables %+v", opts.Tables)
	}
	if opts.SinglePass {
		t.Error("Expected fixed point scan by default")
	}
}

func TestLoadOptionsFlagOverrides(t *testing.T) {
	path := writeConfig(t, "target_schema: history\n")

	cmd := newOptionsCommand()
	if err := cmd.Flags().Parse([]string{"--schema", "audit_log", "--single-pass"}); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	opts, _, err := LoadOptions(cmd, path, "audit_log", true)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if opts.TargetSchema != "audit_log" {
		t.Errorf("Expected flag to override schema, got %q", opts.TargetSchema)
	}
	if !opts.SinglePass {
		t.Error("Expected flag to enable single pass")
	}
}

func TestLoadOptionsMissingConfig(t *testing.T) {
	_, _, err := LoadOptions(newOptionsCommand(), "/non/existent/pgaudit.yaml", "", false)
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
	if code := util.ExitCode(err); code != util.ExitConfig {
		t.Errorf("Expected exit code %d, got %d", util.ExitConfig, code)
	}
}
