package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgschema/pgaudit/cmd/plan"
	"github.com/pgschema/pgaudit/cmd/util"
	"github.com/pgschema/pgaudit/internal/logger"
	"github.com/pgschema/pgaudit/internal/version"
)

var Debug bool

var RootCmd = &cobra.Command{
	Use:   "pgaudit",
	Short: "PostgreSQL audit trail migration tool",
	Long: fmt.Sprintf(`pgaudit generates the migrations that keep PostgreSQL audit trails in place:
the audit schema, its functions and tables, and the triggers on every audited table.

Version: %s@%s %s %s

Commands:
  plan     Generate the audit trail migration
  status   Show which audit objects exist

Use "pgaudit [command] --help" for more information about a command.`,
		version.App(), version.GitCommit, version.Platform(), version.BuildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger()
	},
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "Enable debug logging")
	RootCmd.AddCommand(plan.PlanCmd)
	RootCmd.AddCommand(StatusCmd)
	RootCmd.AddCommand(VersionCmd)
}

func setupLogger() {
	logger.SetGlobal(logger.New(os.Stderr, Debug), Debug)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		util.ExitWithError(err)
	}
}
