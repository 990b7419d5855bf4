package commands

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/moldovancsaba/amanoba-sub004/internal/models"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

// LedgerCommands returns the audit ledger commands
func LedgerCommands(env *Environment) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Audit ledger commands",
		Long: `Audit ledger commands.

Available commands:
  import - Load a markdown ledger into the ledger table
  record - Append an audit entry for one question
  export - Render the ledger table as markdown
  status - Triage active lesson questions by latest ledger status`,
	}

	ledgerCmd.AddCommand(importCmd(env))
	ledgerCmd.AddCommand(recordCmd(env))
	ledgerCmd.AddCommand(exportCmd(env))
	ledgerCmd.AddCommand(statusCmd(env))

	return ledgerCmd
}

func importCmd(env *Environment) *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Import a markdown ledger",
		Long: `Parse a markdown audit ledger and insert every complete entry into the
ledger table. Entries already present are skipped. Defaults to the
configured ledger path.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := env.Config.Audit.LedgerPath
			if len(args) == 1 {
				path = args[0]
			}

			f, err := os.Open(path)
			if err != nil {
				return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "cannot open ledger %s: %v", path, err)
			}
			defer f.Close()

			container, err := env.Container(ctx)
			if err != nil {
				return contextutils.WrapError(err, "failed to initialize services")
			}
			ledgerService, err := container.GetLedgerService()
			if err != nil {
				return err
			}

			result, err := ledgerService.Import(ctx, f)
			if err != nil {
				return err
			}
			env.Logger.Info(ctx, "Ledger imported", map[string]interface{}{
				"path":     path,
				"parsed":   result.Parsed,
				"inserted": result.Inserted,
				"database": contextutils.MaskDatabaseURL(env.Config.Database.URL),
			})
			return writeReport(cmd, env, result)
		},
	}
}

type recordFlags struct {
	violations int
	auditor    string
	stamp      bool
}

type recordResult struct {
	Entry   models.LedgerEntry  `json:"entry" yaml:"entry"`
	Status  models.LedgerStatus `json:"status" yaml:"status"`
	Source  string              `json:"source" yaml:"source"`
	Stamped bool                `json:"stamped" yaml:"stamped"`
}

func recordCmd(env *Environment) *cobra.Command {
	var flags recordFlags

	cmd := &cobra.Command{
		Use:   "record <question-id>",
		Short: "Record an audit result for a question",
		Long: `Append an audit entry for one question to the configured ledger. With
--stamp the question document's audit metadata is updated as well.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			questionID := strings.ToLower(strings.TrimSpace(args[0]))
			if !contextutils.IsValidObjectID(questionID) {
				return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid question id %q", questionID)
			}
			if flags.violations < 0 {
				return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "violations must not be negative, got %d", flags.violations)
			}

			container, err := env.Container(ctx)
			if err != nil {
				return contextutils.WrapError(err, "failed to initialize services")
			}
			ledgerService, err := container.GetLedgerService()
			if err != nil {
				return err
			}

			auditor := flags.auditor
			if auditor == "" {
				auditor = env.Config.Audit.Auditor
			}
			entry := models.LedgerEntry{
				QuestionID: questionID,
				Timestamp:  time.Now().UTC().Truncate(time.Second),
				Violations: flags.violations,
				Auditor:    auditor,
				Source:     ledgerService.Source(),
			}
			if err := ledgerService.Record(ctx, entry); err != nil {
				return err
			}

			if flags.stamp {
				if err := container.GetQuestionStore().MarkAudited(ctx, questionID, auditor, entry.Timestamp); err != nil {
					return contextutils.WrapError(err, "entry recorded but question stamp failed")
				}
			}

			return writeReport(cmd, env, recordResult{
				Entry:   entry,
				Status:  entry.Status(),
				Source:  ledgerService.Source(),
				Stamped: flags.stamp,
			})
		},
	}

	cmd.Flags().IntVar(&flags.violations, "violations", 0, "Number of quality violations found")
	cmd.Flags().StringVar(&flags.auditor, "auditor", "", "Who performed the audit (defaults to audit.auditor)")
	cmd.Flags().BoolVar(&flags.stamp, "stamp", false, "Also stamp the question document as audited")

	return cmd
}

func exportCmd(env *Environment) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export the ledger table as markdown",
		Long:  `Render every ledger table entry, newest first, in the markdown ledger format.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			container, err := env.Container(ctx)
			if err != nil {
				return contextutils.WrapError(err, "failed to initialize services")
			}
			ledgerService, err := container.GetLedgerService()
			if err != nil {
				return err
			}

			w, closeFn, err := openOutput(cmd, env)
			if err != nil {
				return err
			}
			if err := ledgerService.Export(ctx, w); err != nil {
				_ = closeFn()
				return err
			}
			return closeFn()
		},
	}
}

func statusCmd(env *Environment) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Triage questions by ledger status",
		Long: `Bucket every active lesson-specific question as passed, failing or
unchecked according to its most recent ledger entry.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			container, err := env.Container(ctx)
			if err != nil {
				return contextutils.WrapError(err, "failed to initialize services")
			}
			ledgerService, err := container.GetLedgerService()
			if err != nil {
				return err
			}

			batch, err := container.GetQuestionStore().ListQuestions(ctx, models.QuestionFilter{
				ActiveOnly:         true,
				LessonSpecificOnly: true,
			})
			if err != nil {
				return contextutils.WrapError(err, "failed to list questions")
			}

			triage, err := ledgerService.Triage(ctx, batch.Questions)
			if err != nil {
				return err
			}
			env.Logger.Info(ctx, "Ledger triage finished", map[string]interface{}{
				"source":    triage.Source,
				"passed":    triage.Passed,
				"failing":   triage.Failing,
				"unchecked": triage.Unchecked,
				"rejected":  batch.Rejected,
			})
			return writeReport(cmd, env, triage)
		},
	}
}
