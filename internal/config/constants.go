package config

import "time"

// Timeout constants
const (
	// HTTP timeouts
	DefaultHTTPTimeout     = 60 * time.Second
	ServerShutdownTimeout  = 10 * time.Second
	ServerReadTimeout      = 15 * time.Second
	ServerWriteTimeout     = 2 * time.Minute
	TestTimeout            = 100 * time.Millisecond
	DefaultMongoConnect    = 10 * time.Second
	DefaultAuditRunTimeout = 10 * time.Minute

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute
)

// Audit defaults
const (
	// DefaultSimilarityThreshold is the Jaccard score at or above which two texts are near duplicates
	DefaultSimilarityThreshold = 0.85
	// DefaultMinWindow is the smallest question window that gets an answer-option pass
	DefaultMinWindow = 14
	// DefaultMinPrev is how many questions of a lesson are carried into the next lesson's window
	DefaultMinPrev = 7
	// DefaultAuditWorkers bounds how many courses are audited in parallel
	DefaultAuditWorkers = 4
	// MinQuestionsPerLesson is the per-lesson question minimum used by coverage
	MinQuestionsPerLesson = 7
)

// Selection defaults
const (
	DefaultSelectionPoolSize = 5
	MaxSelectionPoolSize     = 100
)

// Worker defaults
const (
	DefaultWorkerInterval   = 6 * time.Hour
	MinWorkerInterval       = time.Minute
	DefaultWorkerMaxHistory = 20
)

// Ledger sources
const (
	LedgerSourceMarkdown = "markdown"
	LedgerSourceDatabase = "database"
)

// Document store defaults
const (
	DefaultMongoDatabase       = "amanoba"
	DefaultCoursesCollection   = "courses"
	DefaultLessonsCollection   = "lessons"
	DefaultQuestionsCollection = "quiz_questions"
)

// Security configuration constants
const (
	// Content Security Policy
	DefaultCSP = "default-src 'none'; frame-ancestors 'none'"
)
