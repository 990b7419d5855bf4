package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/moldovancsaba/amanoba-sub004/internal/models"
	"github.com/moldovancsaba/amanoba-sub004/internal/schema"
	"github.com/moldovancsaba/amanoba-sub004/internal/services"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

// QuestionCommands returns the question bank commands
func QuestionCommands(env *Environment) *cobra.Command {
	questionsCmd := &cobra.Command{
		Use:   "questions",
		Short: "Question bank commands",
		Long: `Question bank commands.

Available commands:
  select - Pick a random pool of questions as a learner would see them
  check  - Validate a JSON question file`,
	}

	questionsCmd.AddCommand(selectCmd(env))
	questionsCmd.AddCommand(checkCmd(env))

	return questionsCmd
}

type selectFlags struct {
	difficulty string
	category   string
	lessonID   string
	courseID   string
	poolSize   int
}

func selectCmd(env *Environment) *cobra.Command {
	var flags selectFlags

	cmd := &cobra.Command{
		Use:   "select",
		Short: "Select questions for a quiz",
		Long: `Select up to --pool-size active questions of the given difficulty, optionally
narrowed by category, lesson or course. Correct answers are not included.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			difficulty, err := models.ParseDifficulty(flags.difficulty)
			if err != nil {
				return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "%v", err)
			}
			req := services.SelectionRequest{
				Difficulty: difficulty,
				LessonID:   flags.lessonID,
				CourseID:   flags.courseID,
				PoolSize:   flags.poolSize,
			}
			if flags.category != "" {
				category, err := models.ParseCategory(flags.category)
				if err != nil {
					return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "%v", err)
				}
				req.Category = category
			}

			container, err := env.Container(ctx)
			if err != nil {
				return contextutils.WrapError(err, "failed to initialize services")
			}
			selectionService, err := container.GetSelectionService()
			if err != nil {
				return err
			}
			if req.PoolSize == 0 {
				req.PoolSize = selectionService.DefaultPoolSize()
			}

			questions, err := selectionService.Select(ctx, req)
			if err != nil {
				return err
			}
			return writeReport(cmd, env, questions)
		},
	}

	cmd.Flags().StringVar(&flags.difficulty, "difficulty", "", "Question difficulty (EASY, MEDIUM, HARD, EXPERT)")
	cmd.Flags().StringVar(&flags.category, "category", "", "Question category")
	cmd.Flags().StringVar(&flags.lessonID, "lesson", "", "Only questions of this lesson")
	cmd.Flags().StringVar(&flags.courseID, "course", "", "Only questions of this course")
	cmd.Flags().IntVar(&flags.poolSize, "pool-size", 0, "Number of questions to return (defaults to selection.default_pool_size)")
	_ = cmd.MarkFlagRequired("difficulty")

	return cmd
}

// QuestionProblem describes one question that failed validation
type QuestionProblem struct {
	Index      int    `json:"index" yaml:"index"`
	QuestionID string `json:"question_id,omitempty" yaml:"question_id,omitempty"`
	Error      string `json:"error" yaml:"error"`
}

// CheckResult is the outcome of validating a question file
type CheckResult struct {
	File      string            `json:"file" yaml:"file"`
	Questions int               `json:"questions" yaml:"questions"`
	Valid     int               `json:"valid" yaml:"valid"`
	Problems  []QuestionProblem `json:"problems" yaml:"problems"`
}

// CheckQuestionFile validates data against the question file schema and then
// every decoded question against the model rules
func CheckQuestionFile(loader *schema.Loader, name string, data []byte) (*CheckResult, error) {
	if err := loader.ValidateBytes(schema.QuestionFile, data); err != nil {
		return nil, err
	}

	var questions []models.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidFormat, "cannot decode questions: %v", err)
	}

	result := &CheckResult{File: name, Questions: len(questions), Problems: []QuestionProblem{}}
	for i := range questions {
		if err := questions[i].Validate(); err != nil {
			result.Problems = append(result.Problems, QuestionProblem{
				Index:      i,
				QuestionID: questions[i].ID,
				Error:      err.Error(),
			})
			continue
		}
		result.Valid++
	}
	return result, nil
}

func checkCmd(env *Environment) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Validate a JSON question file",
		Long: `Validate a JSON array of questions against the question file schema and
the question rules: four unique options, correct index 0-3, known
difficulty and category, 24-hex ids. Exits non-zero when any question fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "cannot read %s: %v", args[0], err)
			}

			loader, err := schema.NewLoader()
			if err != nil {
				return err
			}

			result, err := CheckQuestionFile(loader, args[0], data)
			if err != nil {
				return err
			}
			if err := writeReport(cmd, env, result); err != nil {
				return err
			}
			if len(result.Problems) > 0 {
				return contextutils.WrapError(contextutils.ErrValidationFailed,
					fmt.Sprintf("%d of %d questions failed validation", len(result.Problems), result.Questions))
			}
			return nil
		},
	}
}
