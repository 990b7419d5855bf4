package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/moldovancsaba/amanoba-sub004/internal/config"
	"github.com/moldovancsaba/amanoba-sub004/internal/models"
	"github.com/moldovancsaba/amanoba-sub004/internal/services"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

// AuditCommands returns the audit commands
func AuditCommands(env *Environment) *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Question bank audits",
		Long: `Question bank audits.

Available commands:
  duplicates - Find near-duplicate questions and recycled answer options
  coverage   - Report lessons below the per-lesson question minimum`,
	}

	auditCmd.AddCommand(duplicatesCmd(env))
	auditCmd.AddCommand(coverageCmd(env))

	return auditCmd
}

type duplicatesFlags struct {
	courseID   string
	threshold  float64
	minWindow  int
	minPrev    int
	clustering string
}

func duplicatesCmd(env *Environment) *cobra.Command {
	var flags duplicatesFlags

	cmd := &cobra.Command{
		Use:   "duplicates",
		Short: "Run the duplicate audit",
		Long: `Walk every active course lesson by lesson and report question pairs
whose text similarity reaches the threshold, within a lesson and against the
sliding window of recent lessons, plus groups of recycled answer options.

Flags that are not given fall back to the audit section of the config.`,
		RunE: runDuplicates(env, &flags),
	}

	cmd.Flags().StringVar(&flags.courseID, "course", "", "Audit only this course id")
	cmd.Flags().Float64Var(&flags.threshold, "threshold", config.DefaultSimilarityThreshold, "Similarity threshold in [0, 1]")
	cmd.Flags().IntVar(&flags.minWindow, "min-window", config.DefaultMinWindow, "Questions the sliding window must hold before cross-lesson checks")
	cmd.Flags().IntVar(&flags.minPrev, "min-prev", config.DefaultMinPrev, "Previous questions required before the answer pass runs")
	cmd.Flags().StringVar(&flags.clustering, "clustering", string(models.ClusteringGreedy), "Answer grouping strategy: greedy or union_find")

	return cmd
}

func auditParameters(cmd *cobra.Command, cfg config.AuditConfig, flags *duplicatesFlags) models.AuditParameters {
	params := services.AuditParametersFromConfig(cfg)
	params.CourseID = flags.courseID
	if cmd.Flags().Changed("threshold") {
		params.Threshold = flags.threshold
	}
	if cmd.Flags().Changed("min-window") {
		params.MinWindow = flags.minWindow
	}
	if cmd.Flags().Changed("min-prev") {
		params.MinPrev = flags.minPrev
	}
	if cmd.Flags().Changed("clustering") {
		params.Clustering = models.ClusteringStrategy(flags.clustering)
	}
	return params
}

func runDuplicates(env *Environment, flags *duplicatesFlags) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		params := auditParameters(cmd, env.Config.Audit, flags)
		if err := services.ValidateAuditParameters(params); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), config.DefaultAuditRunTimeout)
		defer cancel()

		container, err := env.Container(ctx)
		if err != nil {
			return contextutils.WrapError(err, "failed to initialize services")
		}
		auditService, err := container.GetDuplicateAuditService()
		if err != nil {
			return err
		}

		report, err := auditService.RunAudit(ctx, params)
		if err != nil {
			env.Logger.Error(ctx, "Duplicate audit failed", err, map[string]interface{}{"course_id": params.CourseID})
			return contextutils.WrapError(err, "duplicate audit failed")
		}

		env.Logger.Info(ctx, "Duplicate audit finished", map[string]interface{}{
			"courses":          report.Summary.Courses,
			"lessons":          report.Summary.Lessons,
			"intra_pairs":      report.Summary.IntraLessonPairs,
			"cross_pairs":      report.Summary.CrossLessonPairs,
			"answer_groups":    report.Summary.SimilarAnswerGroups,
			"failed_courses":   report.Summary.FailedCourses,
			"missing_courses":  report.Summary.MissingCourses,
			"rejected_records": report.Summary.RejectedQuestions,
		})
		return writeReport(cmd, env, report)
	}
}

func coverageCmd(env *Environment) *cobra.Command {
	return &cobra.Command{
		Use:   "coverage",
		Short: "Report missing questions per lesson",
		Long: `Count active lesson-specific questions for every active lesson and report
how many are missing to reach the per-lesson minimum, broken down by course
and lesson. When a ledger is configured the report includes ledger triage.`,
		RunE: runCoverage(env),
	}
}

func runCoverage(env *Environment) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		container, err := env.Container(ctx)
		if err != nil {
			return contextutils.WrapError(err, "failed to initialize services")
		}
		coverageService, err := container.GetCoverageService()
		if err != nil {
			return err
		}

		report, err := coverageService.Report(ctx)
		if err != nil {
			return contextutils.WrapError(err, "coverage report failed")
		}

		env.Logger.Info(ctx, "Coverage report finished", map[string]interface{}{
			"questions_missing":     report.QuestionsMissing,
			"lessons_below_minimum": report.LessonsBelowMinimum,
		})
		return writeReport(cmd, env, report)
	}
}
