// Package models defines data structures used throughout the question-bank audit application.
package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Difficulty represents the ordered difficulty of a question
type Difficulty string

// Difficulty levels from easiest to hardest
const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
	DifficultyExpert Difficulty = "EXPERT"
)

var difficultyRank = map[Difficulty]int{
	DifficultyEasy:   1,
	DifficultyMedium: 2,
	DifficultyHard:   3,
	DifficultyExpert: 4,
}

// Rank returns the position of the difficulty in EASY < MEDIUM < HARD < EXPERT, or 0 if unknown
func (d Difficulty) Rank() int {
	return difficultyRank[d]
}

// IsValid reports whether d is one of the known difficulty levels
func (d Difficulty) IsValid() bool {
	_, ok := difficultyRank[d]
	return ok
}

// ParseDifficulty converts a case-insensitive string to a Difficulty
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToUpper(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
	return d, nil
}

// Category represents the topic a question belongs to
type Category string

// Question categories
const (
	CategoryGeneral       Category = "GENERAL"
	CategoryBusiness      Category = "BUSINESS"
	CategoryTechnology    Category = "TECHNOLOGY"
	CategoryScience       Category = "SCIENCE"
	CategoryHistory       Category = "HISTORY"
	CategoryGeography     Category = "GEOGRAPHY"
	CategoryMathematics   Category = "MATHEMATICS"
	CategoryLanguage      Category = "LANGUAGE"
	CategoryHealth        Category = "HEALTH"
	CategoryArts          Category = "ARTS"
	CategorySports        Category = "SPORTS"
	CategoryEntertainment Category = "ENTERTAINMENT"
)

// AllCategories lists every supported category in declaration order
var AllCategories = []Category{
	CategoryGeneral, CategoryBusiness, CategoryTechnology, CategoryScience,
	CategoryHistory, CategoryGeography, CategoryMathematics, CategoryLanguage,
	CategoryHealth, CategoryArts, CategorySports, CategoryEntertainment,
}

// IsValid reports whether c is one of the supported categories
func (c Category) IsValid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory converts a case-insensitive string to a Category
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// QuestionMetadata holds bookkeeping timestamps for a question
type QuestionMetadata struct {
	CreatedAt time.Time  `json:"created_at" yaml:"created_at" bson:"createdAt"`
	UpdatedAt time.Time  `json:"updated_at" yaml:"updated_at" bson:"updatedAt"`
	AuditedAt *time.Time `json:"audited_at,omitempty" yaml:"audited_at,omitempty" bson:"auditedAt,omitempty"`
	AuditedBy string     `json:"audited_by,omitempty" yaml:"audited_by,omitempty" bson:"auditedBy,omitempty"`
}

// Question represents a multiple-choice quiz question.
// LessonID empty means the question belongs to the general pool.
type Question struct {
	ID           string           `json:"id" yaml:"id" validate:"required,len=24,hexadecimal"`
	Question     string           `json:"question" yaml:"question" validate:"required"`
	Options      []string         `json:"options" yaml:"options" validate:"len=4,unique,dive,required"`
	CorrectIndex int              `json:"correct_index" yaml:"correct_index" validate:"min=0,max=3"`
	Difficulty   Difficulty       `json:"difficulty" yaml:"difficulty" validate:"required,oneof=EASY MEDIUM HARD EXPERT"`
	Category     Category         `json:"category" yaml:"category" validate:"required,oneof=GENERAL BUSINESS TECHNOLOGY SCIENCE HISTORY GEOGRAPHY MATHEMATICS LANGUAGE HEALTH ARTS SPORTS ENTERTAINMENT"`
	LessonID     string           `json:"lesson_id,omitempty" yaml:"lesson_id,omitempty"`
	CourseID     string           `json:"course_id,omitempty" yaml:"course_id,omitempty" validate:"required_with=LessonID"`
	IsActive     bool             `json:"is_active" yaml:"is_active"`
	TimesShown   int              `json:"times_shown" yaml:"times_shown" validate:"min=0"`
	TimesCorrect int              `json:"times_correct" yaml:"times_correct" validate:"min=0,ltefield=TimesShown"`
	Metadata     QuestionMetadata `json:"metadata" yaml:"metadata"`
}

// IsLessonSpecific reports whether the question is attached to a lesson
func (q *Question) IsLessonSpecific() bool {
	return q.LessonID != ""
}

// Present strips the correct answer so the question can be shown to a learner
func (q *Question) Present() PresentedQuestion {
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	return PresentedQuestion{
		ID:         q.ID,
		Question:   q.Question,
		Options:    options,
		Difficulty: q.Difficulty,
		Category:   q.Category,
	}
}

// PresentedQuestion is the learner-facing view of a question. It never carries the correct index.
type PresentedQuestion struct {
	ID         string     `json:"id" yaml:"id"`
	Question   string     `json:"question" yaml:"question"`
	Options    []string   `json:"options" yaml:"options"`
	Difficulty Difficulty `json:"difficulty" yaml:"difficulty"`
	Category   Category   `json:"category" yaml:"category"`
}

// Course represents a course that groups lessons
type Course struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	IsActive bool   `json:"is_active" yaml:"is_active"`
}

// Lesson represents a single day of a course
type Lesson struct {
	ID           string    `json:"id" yaml:"id"`
	CourseID     string    `json:"course_id" yaml:"course_id"`
	DayNumber    int       `json:"day_number" yaml:"day_number"`
	DisplayOrder int       `json:"display_order" yaml:"display_order"`
	IsActive     bool      `json:"is_active" yaml:"is_active"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
}

// DefaultDisplayOrder is used when a lesson has no explicit display order
const DefaultDisplayOrder = 1

// SortLessons returns a copy of lessons ordered by day number, display order,
// creation time and finally ID.
func SortLessons(lessons []Lesson) []Lesson {
	sorted := make([]Lesson, len(lessons))
	copy(sorted, lessons)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.DayNumber != b.DayNumber {
			return a.DayNumber < b.DayNumber
		}
		if a.DisplayOrder != b.DisplayOrder {
			return a.DisplayOrder < b.DisplayOrder
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return sorted
}

// SortQuestionsByCreation orders questions the way the document store returns them:
// creation time, then ID.
func SortQuestionsByCreation(questions []Question) {
	sort.SliceStable(questions, func(i, j int) bool {
		a, b := questions[i].Metadata.CreatedAt, questions[j].Metadata.CreatedAt
		if !a.Equal(b) {
			return a.Before(b)
		}
		return questions[i].ID < questions[j].ID
	})
}
