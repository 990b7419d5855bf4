package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/moldovancsaba/amanoba-sub004/internal/models"
)

type courseDocument struct {
	ID       primitive.ObjectID `bson:"_id"`
	Name     string             `bson:"name"`
	IsActive bool               `bson:"isActive"`
}

func (d courseDocument) toModel() models.Course {
	return models.Course{
		ID:       d.ID.Hex(),
		Name:     d.Name,
		IsActive: d.IsActive,
	}
}

// lessonDocument keys lessons by the lessonId string that questions reference
type lessonDocument struct {
	ID           primitive.ObjectID `bson:"_id"`
	LessonID     string             `bson:"lessonId"`
	CourseID     primitive.ObjectID `bson:"courseId"`
	DayNumber    int                `bson:"dayNumber"`
	DisplayOrder *int               `bson:"displayOrder,omitempty"`
	IsActive     bool               `bson:"isActive"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

func (d lessonDocument) toModel() models.Lesson {
	order := models.DefaultDisplayOrder
	if d.DisplayOrder != nil {
		order = *d.DisplayOrder
	}
	id := d.LessonID
	if id == "" {
		id = d.ID.Hex()
	}
	return models.Lesson{
		ID:           id,
		CourseID:     hexOrEmpty(d.CourseID),
		DayNumber:    d.DayNumber,
		DisplayOrder: order,
		IsActive:     d.IsActive,
		CreatedAt:    d.CreatedAt,
	}
}

type questionMetadataDocument struct {
	CreatedAt time.Time  `bson:"createdAt"`
	UpdatedAt time.Time  `bson:"updatedAt"`
	AuditedAt *time.Time `bson:"auditedAt,omitempty"`
	AuditedBy string     `bson:"auditedBy,omitempty"`
}

type questionDocument struct {
	ID           primitive.ObjectID       `bson:"_id"`
	Question     string                   `bson:"question"`
	Options      []string                 `bson:"options"`
	CorrectIndex int                      `bson:"correctIndex"`
	Difficulty   string                   `bson:"difficulty"`
	Category     string                   `bson:"category"`
	LessonID     string                   `bson:"lessonId,omitempty"`
	CourseID     primitive.ObjectID       `bson:"courseId,omitempty"`
	IsActive     bool                     `bson:"isActive"`
	TimesShown   int                      `bson:"timesShown"`
	TimesCorrect int                      `bson:"timesCorrect"`
	Metadata     questionMetadataDocument `bson:"metadata"`
}

func (d questionDocument) toModel() models.Question {
	return models.Question{
		ID:           d.ID.Hex(),
		Question:     d.Question,
		Options:      d.Options,
		CorrectIndex: d.CorrectIndex,
		Difficulty:   models.Difficulty(d.Difficulty),
		Category:     models.Category(d.Category),
		LessonID:     d.LessonID,
		CourseID:     hexOrEmpty(d.CourseID),
		IsActive:     d.IsActive,
		TimesShown:   d.TimesShown,
		TimesCorrect: d.TimesCorrect,
		Metadata: models.QuestionMetadata{
			CreatedAt: d.Metadata.CreatedAt,
			UpdatedAt: d.Metadata.UpdatedAt,
			AuditedAt: d.Metadata.AuditedAt,
			AuditedBy: d.Metadata.AuditedBy,
		},
	}
}

func hexOrEmpty(id primitive.ObjectID) string {
	if id.IsZero() {
		return ""
	}
	return id.Hex()
}
