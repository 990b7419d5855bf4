package models

// QuestionFilter narrows a question listing. Zero values mean "no constraint".
type QuestionFilter struct {
	Difficulty         Difficulty
	Category           Category
	LessonID           string
	CourseID           string
	ActiveOnly         bool
	LessonSpecificOnly bool
}

// QuestionBatch is the result of a question listing. Rejected counts stored
// records that failed boundary validation and were left out of Questions.
type QuestionBatch struct {
	Questions []Question
	Rejected  int
}
