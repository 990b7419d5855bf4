package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/moldovancsaba/amanoba-sub004/internal/config"
	"github.com/moldovancsaba/amanoba-sub004/internal/models"
	"github.com/moldovancsaba/amanoba-sub004/internal/observability"
	"github.com/moldovancsaba/amanoba-sub004/internal/similarity"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

// DuplicateAuditServiceInterface defines the interface for duplicate audits
type DuplicateAuditServiceInterface interface {
	RunAudit(ctx context.Context, params models.AuditParameters) (*models.DuplicateAuditReport, error)
}

// DuplicateAuditService finds near-duplicate questions and recycled answer options
type DuplicateAuditService struct {
	store   QuestionStore
	workers int
	metrics *observability.AuditMetrics
	logger  *observability.Logger
	now     func() time.Time
}

// NewDuplicateAuditServiceWithLogger creates a new DuplicateAuditService.
// metrics may be nil.
func NewDuplicateAuditServiceWithLogger(store QuestionStore, workers int, metrics *observability.AuditMetrics, logger *observability.Logger) *DuplicateAuditService {
	if workers < 1 {
		workers = config.DefaultAuditWorkers
	}
	return &DuplicateAuditService{
		store:   store,
		workers: workers,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// DefaultAuditParameters returns the default audit parameters
func DefaultAuditParameters() models.AuditParameters {
	return models.AuditParameters{
		Threshold:  config.DefaultSimilarityThreshold,
		MinWindow:  config.DefaultMinWindow,
		MinPrev:    config.DefaultMinPrev,
		Clustering: models.ClusteringGreedy,
	}
}

// AuditParametersFromConfig builds parameters from the audit config section
func AuditParametersFromConfig(cfg config.AuditConfig) models.AuditParameters {
	return models.AuditParameters{
		Threshold:  cfg.Threshold,
		MinWindow:  cfg.MinWindow,
		MinPrev:    cfg.MinPrev,
		Clustering: models.ClusteringStrategy(cfg.Clustering),
	}
}

// ValidateAuditParameters rejects parameters the audit cannot run with
func ValidateAuditParameters(p models.AuditParameters) error {
	if !(p.Threshold >= 0 && p.Threshold <= 1) {
		return contextutils.WrapErrorf(contextutils.ErrInvalidConfiguration, "threshold %.3f must be within [0, 1]", p.Threshold)
	}
	if p.MinWindow < 1 {
		return contextutils.WrapErrorf(contextutils.ErrInvalidConfiguration, "min window %d must be at least 1", p.MinWindow)
	}
	if p.MinPrev < 1 {
		return contextutils.WrapErrorf(contextutils.ErrInvalidConfiguration, "min prev %d must be at least 1", p.MinPrev)
	}
	if !p.Clustering.IsValid() {
		return contextutils.WrapErrorf(contextutils.ErrInvalidConfiguration, "unknown clustering strategy %q", p.Clustering)
	}
	return nil
}

type auditedQuestion struct {
	question models.Question
	text     similarity.Tokenized
	options  []similarity.Tokenized
}

func newAuditedQuestion(q models.Question) auditedQuestion {
	return auditedQuestion{
		question: q,
		text:     similarity.Tokenize(q.Question),
		options:  tokenizeOptions(q.Options),
	}
}

// LessonWindow carries the tail of the previous lesson into the next one.
// It is not safe for concurrent use; one window serves one course.
type LessonWindow struct {
	params   models.AuditParameters
	previous []auditedQuestion
}

// NewLessonWindow creates an empty window
func NewLessonWindow(params models.AuditParameters) *LessonWindow {
	return &LessonWindow{params: params}
}

// Previous returns the questions carried over from the last processed lesson
func (w *LessonWindow) Previous() []models.Question {
	out := make([]models.Question, len(w.previous))
	for i, aq := range w.previous {
		out[i] = aq.question
	}
	return out
}

// Process audits one lesson against itself and the carried window, then
// replaces the window with the last MinPrev questions of the lesson.
// current must be in creation order.
func (w *LessonWindow) Process(lesson models.Lesson, current []models.Question) models.LessonAuditReport {
	audited := make([]auditedQuestion, len(current))
	for i, q := range current {
		audited[i] = newAuditedQuestion(q)
	}

	report := models.LessonAuditReport{
		LessonID:            lesson.ID,
		CourseID:            lesson.CourseID,
		DayNumber:           lesson.DayNumber,
		QuestionCount:       len(current),
		DuplicatePairs:      []models.SimilarityFinding{},
		SimilarAnswerGroups: []models.SimilarAnswerGroup{},
	}

	for i := 0; i < len(audited); i++ {
		for j := i + 1; j < len(audited); j++ {
			if f, ok := w.compare(audited[i], audited[j], models.FindingIntraLesson); ok {
				report.DuplicatePairs = append(report.DuplicatePairs, f)
			}
		}
	}
	for _, prev := range w.previous {
		for _, cur := range audited {
			if f, ok := w.compare(prev, cur, models.FindingCrossLesson); ok {
				report.DuplicatePairs = append(report.DuplicatePairs, f)
			}
		}
	}

	window := make([]auditedQuestion, 0, len(w.previous)+len(audited))
	window = append(window, w.previous...)
	window = append(window, audited...)
	report.WindowSize = len(window)

	if len(window) >= w.params.MinWindow {
		refs := collectOptions(window)
		clusters := clusterOptions(refs, w.params.Threshold, w.params.Clustering)
		report.SimilarAnswerGroups = buildAnswerGroups(refs, clusters)
	} else {
		report.AnswerPassSkipped = true
	}

	keep := w.params.MinPrev
	if keep > len(audited) {
		keep = len(audited)
	}
	w.previous = append([]auditedQuestion(nil), audited[len(audited)-keep:]...)

	return report
}

func (w *LessonWindow) compare(a, b auditedQuestion, kind models.FindingKind) (models.SimilarityFinding, bool) {
	score := similarity.Compare(a.text, b.text)
	if score < w.params.Threshold {
		return models.SimilarityFinding{}, false
	}
	return models.SimilarityFinding{
		QuestionIDs: [2]string{a.question.ID, b.question.ID},
		LessonIDs:   [2]string{a.question.LessonID, b.question.LessonID},
		Texts:       [2]string{a.question.Question, b.question.Question},
		Similarity:  score,
		Kind:        kind,
		Action:      models.ActionCreateNewQuestion,
	}, true
}

type courseOutcome struct {
	report   *models.CourseAuditReport
	rejected int
	missing  bool
	failed   bool
}

// RunAudit audits every active course, or only params.CourseID when set.
// Courses run in parallel; lessons of one course run in order.
func (s *DuplicateAuditService) RunAudit(ctx context.Context, params models.AuditParameters) (result *models.DuplicateAuditReport, err error) {
	ctx, span := observability.TraceAuditFunction(ctx, "run_audit",
		observability.AttributeThreshold(params.Threshold),
		observability.AttributeCourseID(params.CourseID),
	)
	defer observability.FinishSpan(span, &err)

	if err := ValidateAuditParameters(params); err != nil {
		return nil, err
	}

	started := s.now()
	result = &models.DuplicateAuditReport{
		GeneratedAt: started.UTC(),
		Parameters:  params,
		Courses:     []models.CourseAuditReport{},
	}

	courses, err := s.resolveCourses(ctx, params.CourseID, &result.Summary)
	if err != nil {
		return nil, err
	}

	outcomes := make([]courseOutcome, len(courses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, course := range courses {
		g.Go(func() error {
			outcomes[i] = s.auditCourse(gctx, course, params)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "audit run failed: %w", err)
	}
	if ctx.Err() != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrTimeout, "audit run interrupted: %w", ctx.Err())
	}

	for _, o := range outcomes {
		result.Summary.RejectedQuestions += o.rejected
		switch {
		case o.missing:
			result.Summary.MissingCourses++
			continue
		case o.failed:
			result.Summary.FailedCourses++
			continue
		}
		result.Courses = append(result.Courses, *o.report)
		addCourseToSummary(&result.Summary, o.report)
	}

	s.metrics.RecordDuplicatePairs(ctx, string(models.FindingIntraLesson), result.Summary.IntraLessonPairs)
	s.metrics.RecordDuplicatePairs(ctx, string(models.FindingCrossLesson), result.Summary.CrossLessonPairs)
	s.metrics.RecordAnswerGroups(ctx, result.Summary.SimilarAnswerGroups)
	s.metrics.RecordRejectedQuestions(ctx, result.Summary.RejectedQuestions)
	s.metrics.RecordAuditDuration(ctx, s.now().Sub(started).Seconds())

	observability.SetSpanCounts(span, map[string]int{
		"audit.courses":            result.Summary.Courses,
		"audit.lessons":            result.Summary.Lessons,
		"audit.intra_lesson_pairs": result.Summary.IntraLessonPairs,
		"audit.cross_lesson_pairs": result.Summary.CrossLessonPairs,
		"audit.answer_groups":      result.Summary.SimilarAnswerGroups,
	})

	s.logger.Info(ctx, "Duplicate audit completed", map[string]interface{}{
		"courses":            result.Summary.Courses,
		"lessons":            result.Summary.Lessons,
		"questions":          result.Summary.QuestionsAudited,
		"intra_lesson_pairs": result.Summary.IntraLessonPairs,
		"cross_lesson_pairs": result.Summary.CrossLessonPairs,
		"answer_groups":      result.Summary.SimilarAnswerGroups,
		"missing_courses":    result.Summary.MissingCourses,
		"failed_courses":     result.Summary.FailedCourses,
	})

	return result, nil
}

// resolveCourses lists the courses to audit. A missing filtered course is
// counted, not returned as an error.
func (s *DuplicateAuditService) resolveCourses(ctx context.Context, courseID string, summary *models.AuditSummary) ([]models.Course, error) {
	if courseID == "" {
		courses, err := s.store.ListCourses(ctx, true)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to list courses for audit")
		}
		return courses, nil
	}

	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		if contextutils.IsError(err, contextutils.ErrCourseNotFound) || contextutils.IsError(err, contextutils.ErrInvalidInput) {
			summary.MissingCourses++
		} else {
			summary.FailedCourses++
		}
		s.logger.Warn(ctx, "Course unavailable for audit", map[string]interface{}{
			"course_id": courseID,
			"error":     err.Error(),
		})
		return nil, nil
	}
	return []models.Course{*course}, nil
}

func (s *DuplicateAuditService) auditCourse(ctx context.Context, course models.Course, params models.AuditParameters) (outcome courseOutcome) {
	ctx, span := observability.TraceAuditFunction(ctx, "audit_course", observability.AttributeCourseID(course.ID))
	var err error
	defer observability.FinishSpan(span, &err)

	lessons, err := s.store.ListLessons(ctx, course.ID)
	if err != nil {
		s.logger.Error(ctx, "Failed to list lessons for course", err, map[string]interface{}{
			"course_id": course.ID,
		})
		return courseOutcome{failed: true}
	}

	report := &models.CourseAuditReport{
		CourseID:   course.ID,
		CourseName: course.Name,
		Lessons:    []models.LessonAuditReport{},
	}
	window := NewLessonWindow(params)

	for _, lesson := range lessons {
		if !lesson.IsActive {
			continue
		}
		var batch models.QuestionBatch
		batch, err = s.store.ListLessonQuestions(ctx, lesson.ID)
		if err != nil {
			s.logger.Error(ctx, "Failed to load lesson questions", err, map[string]interface{}{
				"course_id": course.ID,
				"lesson_id": lesson.ID,
			})
			return courseOutcome{failed: true, rejected: outcome.rejected}
		}
		outcome.rejected += batch.Rejected

		current := make([]models.Question, 0, len(batch.Questions))
		for _, q := range batch.Questions {
			if q.IsActive && q.IsLessonSpecific() {
				current = append(current, q)
			}
		}

		lessonReport := window.Process(lesson, current)
		s.metrics.RecordLessonAudited(ctx, lessonReport.AnswerPassSkipped)
		report.Lessons = append(report.Lessons, lessonReport)
	}

	outcome.report = report
	return outcome
}

func addCourseToSummary(summary *models.AuditSummary, course *models.CourseAuditReport) {
	summary.Courses++
	for _, lesson := range course.Lessons {
		summary.Lessons++
		summary.QuestionsAudited += lesson.QuestionCount
		summary.SimilarAnswerGroups += len(lesson.SimilarAnswerGroups)
		if lesson.AnswerPassSkipped {
			summary.AnswerPassesSkipped++
		}
		for _, f := range lesson.DuplicatePairs {
			if f.Kind == models.FindingIntraLesson {
				summary.IntraLessonPairs++
			} else {
				summary.CrossLessonPairs++
			}
		}
	}
}
