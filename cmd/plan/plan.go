package plan

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgschema/pgaudit/audit"
	"github.com/pgschema/pgaudit/cmd/util"
	"github.com/pgschema/pgaudit/internal/config"
	"github.com/pgschema/pgaudit/internal/logger"
)

var (
	planConn       util.ConnectionConfig
	planSchema     string
	planConfigPath string
	planSinglePass bool
	planNoColor    bool

	outputHuman        string
	outputJSON         string
	outputYAML         string
	outputSQL          string
	outputDowngradeSQL string
)

var PlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate the audit trail migration for a database",
	Long: `Generate the migration that brings the audit setup of a database up to date.

The audited tables, the tables this migration creates and the target schema are
read from pgaudit.yaml. Objects that depend on something not yet in the database
are created after it; objects that already exist are never created again.`,
	RunE:         runPlan,
	SilenceUsage: true,
}

func init() {
	PlanCmd.Flags().StringVar(&planConn.Host, "host", "localhost", "Database server host (env: PGHOST)")
	PlanCmd.Flags().IntVar(&planConn.Port, "port", 5432, "Database server port (env: PGPORT)")
	PlanCmd.Flags().StringVar(&planConn.Database, "db", "", "Database name (required) (env: PGDATABASE)")
	PlanCmd.Flags().StringVar(&planConn.User, "user", "", "Database user name (required) (env: PGUSER)")
	PlanCmd.Flags().StringVar(&planConn.Password, "password", "", "Database password (optional, can also use PGPASSWORD env var)")
	PlanCmd.Flags().StringVar(&planSchema, "schema", "", "Schema holding the audit objects (default from pgaudit.yaml, or \"audit\")")
	PlanCmd.Flags().StringVar(&planConfigPath, "config", "", "Path to pgaudit.yaml (default: discovered from the working directory)")
	PlanCmd.Flags().BoolVar(&planSinglePass, "single-pass", false, "Scan for dependencies in a single forward pass")

	PlanCmd.Flags().StringVar(&outputHuman, "output-human", "", "Output human-readable format to stdout or file path")
	PlanCmd.Flags().StringVar(&outputJSON, "output-json", "", "Output JSON format to stdout or file path")
	PlanCmd.Flags().StringVar(&outputYAML, "output-yaml", "", "Output YAML format to stdout or file path")
	PlanCmd.Flags().StringVar(&outputSQL, "output-sql", "", "Output upgrade SQL to stdout or file path")
	PlanCmd.Flags().StringVar(&outputDowngradeSQL, "output-downgrade-sql", "", "Output downgrade SQL to stdout or file path")
	PlanCmd.Flags().BoolVar(&planNoColor, "no-color", false, "Disable colored output")
}

func runPlan(cmd *cobra.Command, args []string) error {
	outputs, err := determineOutputs()
	if err != nil {
		return util.ConfigError("invalid output flags", err)
	}

	opts, cfg, err := LoadOptions(cmd, planConfigPath, planSchema, planSinglePass)
	if err != nil {
		return err
	}
	if err := util.ResolveConnection(cmd, &planConn, cfg.Database); err != nil {
		return util.ConfigError("invalid connection settings", err)
	}
	planConn.ApplicationName = "pgaudit"

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	conn, err := util.Connect(ctx, &planConn)
	if err != nil {
		return util.DBConnectError("failed to connect to database", err)
	}
	defer conn.Close()

	migrationPlan, err := audit.GeneratePlan(ctx, conn, opts)
	if err != nil {
		return util.GeneralError("failed to generate plan", err)
	}

	for _, output := range outputs {
		if err := processOutput(migrationPlan, output, cmd); err != nil {
			return err
		}
	}
	return nil
}

// LoadOptions reads pgaudit.yaml and applies the flag overrides on top of it
func LoadOptions(cmd *cobra.Command, configPath, schema string, singlePass bool) (audit.Options, *config.Config, error) {
	cfg, path, err := config.Load(configPath)
	if err != nil {
		return audit.Options{}, nil, util.ConfigError("failed to load configuration", err)
	}
	if path != "" {
		logger.Get().Debug("Loaded configuration", "path", path)
	}

	declared, err := cfg.DeclaredTables()
	if err != nil {
		return audit.Options{}, nil, util.ConfigError("failed to load declared tables", err)
	}

	opts := audit.Options{
		TargetSchema:   cfg.TargetSchema,
		Tables:         cfg.Tables,
		DeclaredTables: declared,
		Params:         cfg.Params,
		SinglePass:     cfg.SinglePass,
	}
	if cmd.Flags().Changed("schema") {
		opts.TargetSchema = schema
	}
	if cmd.Flags().Changed("single-pass") {
		opts.SinglePass = singlePass
	}
	return opts, cfg, nil
}

type outputSpec struct {
	format string // "human", "json", "yaml", "sql" or "downgrade-sql"
	target string // "stdout" or file path
}

// determineOutputs parses the output flags and returns the list of outputs to generate
func determineOutputs() ([]outputSpec, error) {
	var outputs []outputSpec
	stdoutCount := 0

	for _, flag := range []struct {
		format string
		value  string
	}{
		{"human", outputHuman},
		{"json", outputJSON},
		{"yaml", outputYAML},
		{"sql", outputSQL},
		{"downgrade-sql", outputDowngradeSQL},
	} {
		if flag.value == "" {
			continue
		}
		if flag.value == "stdout" {
			stdoutCount++
		}
		outputs = append(outputs, outputSpec{format: flag.format, target: flag.value})
	}

	if stdoutCount > 1 {
		return nil, fmt.Errorf("only one output format can use stdout")
	}

	// Default behavior: if no outputs specified, output human to stdout
	if len(outputs) == 0 {
		outputs = append(outputs, outputSpec{format: "human", target: "stdout"})
	}

	return outputs, nil
}

// processOutput writes the plan in the specified format to the target destination
func processOutput(migrationPlan *audit.Plan, output outputSpec, cmd *cobra.Command) error {
	var content string
	var err error

	switch output.format {
	case "human":
		// Colored output only when writing to stdout, unless explicitly disabled
		useColor := output.target == "stdout" && !planNoColor
		content, err = migrationPlan.Human(useColor)
	case "json":
		content, err = migrationPlan.JSON()
		content += "\n"
	case "yaml":
		content, err = migrationPlan.YAML()
	case "sql":
		content, err = migrationPlan.SQL()
	case "downgrade-sql":
		content, err = migrationPlan.DowngradeSQL()
	default:
		return fmt.Errorf("unknown output format: %s", output.format)
	}
	if err != nil {
		return util.GeneralError(fmt.Sprintf("failed to generate %s output", output.format), err)
	}

	if output.target == "stdout" {
		fmt.Fprint(cmd.OutOrStdout(), content)
		return nil
	}
	if err := os.WriteFile(output.target, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s output to %s: %w", output.format, output.target, err)
	}
	return nil
}
