package cmd

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/pgschema/pgaudit/audit"
	"github.com/pgschema/pgaudit/cmd/plan"
	"github.com/pgschema/pgaudit/cmd/util"
	"github.com/pgschema/pgaudit/internal/catalog"
	"github.com/pgschema/pgaudit/internal/color"
	"github.com/pgschema/pgaudit/internal/entity"
)

var (
	statusConn       util.ConnectionConfig
	statusSchema     string
	statusConfigPath string
	statusNoColor    bool
)

var StatusCmd = &cobra.Command{
	Use:          "status",
	Short:        "Show which audit objects exist in the database",
	Long:         "List every audit object pgaudit manages for the configured tables and whether it exists in the target database.",
	RunE:         runStatus,
	SilenceUsage: true,
}

func init() {
	StatusCmd.Flags().StringVar(&statusConn.Host, "host", "localhost", "Database server host (env: PGHOST)")
	StatusCmd.Flags().IntVar(&statusConn.Port, "port", 5432, "Database server port (env: PGPORT)")
	StatusCmd.Flags().StringVar(&statusConn.Database, "db", "", "Database name (required) (env: PGDATABASE)")
	StatusCmd.Flags().StringVar(&statusConn.User, "user", "", "Database user name (required) (env: PGUSER)")
	StatusCmd.Flags().StringVar(&statusConn.Password, "password", "", "Database password (optional, can also use PGPASSWORD env var)")
	StatusCmd.Flags().StringVar(&statusSchema, "schema", "", "Schema holding the audit objects (default from pgaudit.yaml, or \"audit\")")
	StatusCmd.Flags().StringVar(&statusConfigPath, "config", "", "Path to pgaudit.yaml (default: discovered from the working directory)")
	StatusCmd.Flags().BoolVar(&statusNoColor, "no-color", false, "Disable colored output")
}

func runStatus(cmd *cobra.Command, args []string) error {
	opts, cfg, err := plan.LoadOptions(cmd, statusConfigPath, statusSchema, false)
	if err != nil {
		return err
	}
	if err := util.ResolveConnection(cmd, &statusConn, cfg.Database); err != nil {
		return util.ConfigError("invalid connection settings", err)
	}
	statusConn.ApplicationName = "pgaudit"

	mctx := cfg.FactoryContext()
	mctx.Schema = opts.TargetSchema
	registry, tables, err := audit.Setup(mctx, opts.Tables)
	if err != nil {
		return util.ConfigError("failed to build audit objects", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	conn, err := util.Connect(ctx, &statusConn)
	if err != nil {
		return util.DBConnectError("failed to connect to database", err)
	}
	defer conn.Close()

	c := catalog.New(conn)
	state, err := c.Snapshot(ctx, statusSchemas(opts.TargetSchema, registry))
	if err != nil {
		return util.GeneralError("failed to read database state", err)
	}

	tableState := make(map[string]bool, len(tables))
	for _, table := range tables {
		exists, err := c.TableExists(ctx, table.Schema, table.Name)
		if err != nil {
			return util.GeneralError("failed to read database state", err)
		}
		tableState[table.QualifiedName()] = exists
	}

	writeStatus(cmd.OutOrStdout(), color.New(!statusNoColor), opts.TargetSchema, state, registry, tables, tableState)
	return nil
}

// statusSchemas returns the target schema plus every schema a registered object lives in
func statusSchemas(target string, registry *entity.Registry) []string {
	schemas := []string{target}
	for _, entry := range registry.Snapshot() {
		if schema := entry.Object.SchemaName(); !slices.Contains(schemas, schema) {
			schemas = append(schemas, schema)
		}
	}
	return schemas
}

func writeStatus(w io.Writer, c *color.Color, target string, state *catalog.State, registry *entity.Registry, tables []audit.Table, tableState map[string]bool) {
	mark := func(exists bool) string {
		if exists {
			return c.Add("present")
		}
		return c.Warn("missing")
	}

	fmt.Fprintf(w, "%s\n", c.Bold("Schema:"))
	fmt.Fprintf(w, "  %-60s %s\n", target, mark(state.Schemas[target]))

	fmt.Fprintf(w, "\n%s\n", c.Bold("Tables:"))
	for _, table := range tables {
		fmt.Fprintf(w, "  %-60s %s\n", table.QualifiedName(), mark(tableState[table.QualifiedName()]))
	}

	missing := 0
	fmt.Fprintf(w, "\n%s\n", c.Bold("Objects:"))
	for _, entry := range registry.Snapshot() {
		exists := state.Exists(entry.Identity)
		if !exists {
			missing++
		}
		fmt.Fprintf(w, "  %-60s %s\n", entry.Identity, mark(exists))
	}

	for _, exists := range tableState {
		if !exists {
			missing++
		}
	}
	if !state.Schemas[target] {
		missing++
	}

	fmt.Fprintln(w)
	if missing == 0 {
		fmt.Fprintln(w, c.Add("Audit setup is up to date."))
	} else {
		fmt.Fprintf(w, "%s\n", c.Warn(fmt.Sprintf("%d audit objects missing; run \"pgaudit plan\" to generate the migration.", missing)))
	}
}
