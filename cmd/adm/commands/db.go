package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moldovancsaba/amanoba-sub004/internal/database"
	"github.com/moldovancsaba/amanoba-sub004/internal/services"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

// DatabaseCommands returns the ledger database maintenance commands
func DatabaseCommands(env *Environment) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Ledger database maintenance",
		Long: `Ledger database maintenance.

Available commands:
  migrate - Apply pending schema migrations
  reset   - Delete every ledger row (local development only)`,
	}

	dbCmd.AddCommand(migrateCmd(env))
	dbCmd.AddCommand(resetCmd(env))

	return dbCmd
}

type dbResult struct {
	Database string `json:"database" yaml:"database"`
	Migrated bool   `json:"migrated" yaml:"migrated"`
	Deleted  *int64 `json:"deleted,omitempty" yaml:"deleted,omitempty"`
}

func requireDatabaseURL(env *Environment) error {
	if env.Config.Database.URL == "" {
		return contextutils.WrapError(contextutils.ErrInvalidConfiguration, "database.url is not configured")
	}
	return nil
}

func migrateCmd(env *Environment) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireDatabaseURL(env); err != nil {
				return err
			}
			if err := database.NewManager(env.Logger).RunMigrations(cmd.Context(), env.Config.Database); err != nil {
				return err
			}
			return writeReport(cmd, env, dbResult{
				Database: contextutils.MaskDatabaseURL(env.Config.Database.URL),
				Migrated: true,
			})
		},
	}
}

func resetCmd(env *Environment) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every ledger row",
		Long: `Apply pending migrations and delete every row of the ledger table.
The markdown ledger file is left untouched. Asks for confirmation unless
--yes is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := requireDatabaseURL(env); err != nil {
				return err
			}

			masked := contextutils.MaskDatabaseURL(env.Config.Database.URL)
			if !yes && !confirmReset(cmd.InOrStdin(), cmd.ErrOrStderr(), masked) {
				fmt.Fprintln(cmd.ErrOrStderr(), "Reset cancelled.")
				return nil
			}

			manager := database.NewManager(env.Logger)
			if err := manager.RunMigrations(ctx, env.Config.Database); err != nil {
				return err
			}
			db, err := manager.Open(ctx, env.Config.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			deleted, err := services.NewLedgerRepository(db, env.Logger).DeleteAll(ctx)
			if err != nil {
				return err
			}
			return writeReport(cmd, env, dbResult{Database: masked, Migrated: true, Deleted: &deleted})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// confirmReset asks until the answer is yes or no; EOF counts as no
func confirmReset(in io.Reader, out io.Writer, target string) bool {
	reader := bufio.NewReader(in)
	for {
		fmt.Fprintf(out, "This permanently deletes every ledger row in %s. Continue? (yes/no): ", target)
		line, err := reader.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "yes", "y":
			return true
		case "no", "n":
			return false
		}
		if err != nil {
			return false
		}
		fmt.Fprintln(out, "Please answer yes or no.")
	}
}
