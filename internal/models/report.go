package models

import "time"

// FindingKind distinguishes duplicates inside one lesson from duplicates across lessons
type FindingKind string

// Finding kinds
const (
	FindingIntraLesson FindingKind = "intra_lesson"
	FindingCrossLesson FindingKind = "cross_lesson"
)

// Remediation actions attached to findings
const (
	ActionCreateNewQuestion = "create_new_question"
	ActionRewriteAnswers    = "rewrite_answers"
)

// ClusteringStrategy selects how similar answer options are grouped
type ClusteringStrategy string

// Clustering strategies
const (
	// ClusteringGreedy compares every unclustered option only against the cluster seed
	ClusteringGreedy ClusteringStrategy = "greedy"
	// ClusteringUnionFind merges every pair at or above threshold, transitively
	ClusteringUnionFind ClusteringStrategy = "union_find"
)

// IsValid reports whether s is a known clustering strategy
func (s ClusteringStrategy) IsValid() bool {
	return s == ClusteringGreedy || s == ClusteringUnionFind
}

// SimilarityFinding is a pair of questions whose texts are near duplicates.
// For cross-lesson findings index 0 is the earlier lesson.
type SimilarityFinding struct {
	QuestionIDs [2]string   `json:"question_ids" yaml:"question_ids"`
	LessonIDs   [2]string   `json:"lesson_ids" yaml:"lesson_ids"`
	Texts       [2]string   `json:"texts" yaml:"texts"`
	Similarity  float64     `json:"similarity" yaml:"similarity"`
	Kind        FindingKind `json:"kind" yaml:"kind"`
	Action      string      `json:"action" yaml:"action"`
}

// SimilarAnswerGroup is a cluster of near-identical answer options spread over
// at least three distinct questions. LessonIDs is parallel to QuestionIDs.
type SimilarAnswerGroup struct {
	Option      string   `json:"option" yaml:"option"`
	QuestionIDs []string `json:"question_ids" yaml:"question_ids"`
	LessonIDs   []string `json:"lesson_ids" yaml:"lesson_ids"`
	Count       int      `json:"count" yaml:"count"`
	Action      string   `json:"action" yaml:"action"`
}

// AuditParameters controls a duplicate audit run
type AuditParameters struct {
	Threshold  float64            `json:"threshold" yaml:"threshold"`
	MinWindow  int                `json:"min_window" yaml:"min_window"`
	MinPrev    int                `json:"min_prev" yaml:"min_prev"`
	Clustering ClusteringStrategy `json:"clustering" yaml:"clustering"`
	CourseID   string             `json:"course_id,omitempty" yaml:"course_id,omitempty"`
}

// LessonAuditReport holds the findings for a single lesson
type LessonAuditReport struct {
	LessonID            string               `json:"lesson_id" yaml:"lesson_id"`
	CourseID            string               `json:"course_id" yaml:"course_id"`
	DayNumber           int                  `json:"day_number" yaml:"day_number"`
	QuestionCount       int                  `json:"question_count" yaml:"question_count"`
	WindowSize          int                  `json:"window_size" yaml:"window_size"`
	AnswerPassSkipped   bool                 `json:"answer_pass_skipped" yaml:"answer_pass_skipped"`
	DuplicatePairs      []SimilarityFinding  `json:"duplicate_pairs" yaml:"duplicate_pairs"`
	SimilarAnswerGroups []SimilarAnswerGroup `json:"similar_answer_groups" yaml:"similar_answer_groups"`
}

// CourseAuditReport holds the lesson reports of one course in lesson order
type CourseAuditReport struct {
	CourseID   string              `json:"course_id" yaml:"course_id"`
	CourseName string              `json:"course_name" yaml:"course_name"`
	Lessons    []LessonAuditReport `json:"lessons" yaml:"lessons"`
}

// AuditSummary aggregates counts over a whole audit run
type AuditSummary struct {
	Courses             int `json:"courses" yaml:"courses"`
	Lessons             int `json:"lessons" yaml:"lessons"`
	QuestionsAudited    int `json:"questions_audited" yaml:"questions_audited"`
	IntraLessonPairs    int `json:"intra_lesson_pairs" yaml:"intra_lesson_pairs"`
	CrossLessonPairs    int `json:"cross_lesson_pairs" yaml:"cross_lesson_pairs"`
	SimilarAnswerGroups int `json:"similar_answer_groups" yaml:"similar_answer_groups"`
	AnswerPassesSkipped int `json:"answer_passes_skipped" yaml:"answer_passes_skipped"`
	MissingCourses      int `json:"missing_courses" yaml:"missing_courses"`
	FailedCourses       int `json:"failed_courses" yaml:"failed_courses"`
	RejectedQuestions   int `json:"rejected_questions" yaml:"rejected_questions"`
}

// DuplicateAuditReport is the result of a duplicate audit run
type DuplicateAuditReport struct {
	GeneratedAt time.Time           `json:"generated_at" yaml:"generated_at"`
	Parameters  AuditParameters     `json:"parameters" yaml:"parameters"`
	Summary     AuditSummary        `json:"summary" yaml:"summary"`
	Courses     []CourseAuditReport `json:"courses" yaml:"courses"`
}

// CoverageScope describes the corpus a coverage report was computed over
type CoverageScope struct {
	ActiveCourses         int `json:"active_courses" yaml:"active_courses"`
	TotalCourses          int `json:"total_courses" yaml:"total_courses"`
	ActiveLessons         int `json:"active_lessons" yaml:"active_lessons"`
	TotalLessons          int `json:"total_lessons" yaml:"total_lessons"`
	MinQuestionsPerLesson int `json:"min_questions_per_lesson" yaml:"min_questions_per_lesson"`
}

// CourseDeficit is the number of missing questions summed over one course's lessons
type CourseDeficit struct {
	CourseID            string `json:"course_id" yaml:"course_id"`
	CourseName          string `json:"course_name,omitempty" yaml:"course_name,omitempty"`
	Lessons             int    `json:"lessons" yaml:"lessons"`
	LessonsBelowMinimum int    `json:"lessons_below_minimum" yaml:"lessons_below_minimum"`
	QuestionsMissing    int    `json:"questions_missing" yaml:"questions_missing"`
}

// LessonDeficit is the number of missing questions for a single lesson
type LessonDeficit struct {
	LessonID         string `json:"lesson_id" yaml:"lesson_id"`
	CourseID         string `json:"course_id" yaml:"course_id"`
	DayNumber        int    `json:"day_number" yaml:"day_number"`
	Present          int    `json:"present" yaml:"present"`
	QuestionsMissing int    `json:"questions_missing" yaml:"questions_missing"`
}

// CoverageReport summarizes how far the bank is from the per-lesson minimum
type CoverageReport struct {
	GeneratedAt         time.Time       `json:"generated_at" yaml:"generated_at"`
	Scope               CoverageScope   `json:"scope" yaml:"scope"`
	Required            int             `json:"required" yaml:"required"`
	Present             int             `json:"present" yaml:"present"`
	QuestionsMissing    int             `json:"questions_missing" yaml:"questions_missing"`
	LessonsBelowMinimum int             `json:"lessons_below_minimum" yaml:"lessons_below_minimum"`
	OrphanLessons       int             `json:"orphan_lessons" yaml:"orphan_lessons"`
	Courses             []CourseDeficit `json:"courses" yaml:"courses"`
	Lessons             []LessonDeficit `json:"lessons" yaml:"lessons"`
	Ledger              *LedgerTriage   `json:"ledger,omitempty" yaml:"ledger,omitempty"`
	// LedgerError is the error code when the ledger could not be triaged
	LedgerError string `json:"ledger_error,omitempty" yaml:"ledger_error,omitempty"`
}
