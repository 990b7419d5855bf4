package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCommand assembles the adm command tree around env
func NewRootCommand(env *Environment) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "Quiz audit administration tool",
		Long: `Quiz audit administration tool

Runs duplicate and coverage audits over the question bank, manages the audit
ledger and validates question files. Reports are written as JSON or YAML.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return ValidateFormat(env.Format)
		},
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				cmd.PrintErrf("Error showing help: %v\n", err)
			}
		},
	}

	AddOutputFlags(rootCmd, env)

	rootCmd.AddCommand(AuditCommands(env))
	rootCmd.AddCommand(LedgerCommands(env))
	rootCmd.AddCommand(DatabaseCommands(env))
	rootCmd.AddCommand(QuestionCommands(env))
	rootCmd.AddCommand(VersionCommand(env))

	return rootCmd
}
