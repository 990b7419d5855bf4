package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/moldovancsaba/amanoba-sub004/internal/config"
	"github.com/moldovancsaba/amanoba-sub004/internal/models"
	"github.com/moldovancsaba/amanoba-sub004/internal/observability"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

// Collections names the three collections the store reads
type Collections struct {
	Courses   string
	Lessons   string
	Questions string
}

// CollectionsFromConfig fills empty names with the defaults
func CollectionsFromConfig(cfg config.MongoConfig) Collections {
	c := Collections{
		Courses:   cfg.CoursesCollection,
		Lessons:   cfg.LessonsCollection,
		Questions: cfg.QuestionsCollection,
	}
	if c.Courses == "" {
		c.Courses = config.DefaultCoursesCollection
	}
	if c.Lessons == "" {
		c.Lessons = config.DefaultLessonsCollection
	}
	if c.Questions == "" {
		c.Questions = config.DefaultQuestionsCollection
	}
	return c
}

// Store reads courses, lessons and questions and applies atomic counter updates
type Store struct {
	courses   *mongo.Collection
	lessons   *mongo.Collection
	questions *mongo.Collection
	logger    *observability.Logger
}

// NewStore creates a store over db
func NewStore(db *mongo.Database, cols Collections, logger *observability.Logger) *Store {
	return &Store{
		courses:   db.Collection(cols.Courses),
		lessons:   db.Collection(cols.Lessons),
		questions: db.Collection(cols.Questions),
		logger:    logger,
	}
}

// NewStoreFromClient creates a store on the client's configured database
func NewStoreFromClient(c *Client, logger *observability.Logger) (*Store, error) {
	db, err := c.DB()
	if err != nil {
		return nil, err
	}
	return NewStore(db, CollectionsFromConfig(c.cfg), logger), nil
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid document id %q", id)
	}
	return oid, nil
}

// ListCourses returns courses ordered by id, optionally only active ones
func (s *Store) ListCourses(ctx context.Context, activeOnly bool) (result []models.Course, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "list_courses")
	defer observability.FinishSpan(span, &err)

	filter := bson.M{}
	if activeOnly {
		filter["isActive"] = true
	}
	cur, err := s.courses.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrStoreQuery, "failed to list courses: %w", err)
	}
	defer cur.Close(ctx)

	var docs []courseDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrStoreQuery, "failed to decode courses: %w", err)
	}

	result = make([]models.Course, 0, len(docs))
	for _, d := range docs {
		result = append(result, d.toModel())
	}
	return result, nil
}

// GetCourse returns a single course or ErrCourseNotFound
func (s *Store) GetCourse(ctx context.Context, id string) (result *models.Course, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "get_course", observability.AttributeCourseID(id))
	defer observability.FinishSpan(span, &err)

	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	var doc courseDocument
	if err := s.courses.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, contextutils.WrapErrorf(contextutils.ErrCourseNotFound, "course %s not found", id)
		}
		return nil, contextutils.WrapErrorf(contextutils.ErrStoreQuery, "failed to load course %s: %w", id, err)
	}
	course := doc.toModel()
	return &course, nil
}

// ListLessons returns the lessons of one course in lesson order
func (s *Store) ListLessons(ctx context.Context, courseID string) (result []models.Lesson, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "list_lessons", observability.AttributeCourseID(courseID))
	defer observability.FinishSpan(span, &err)

	oid, err := parseObjectID(courseID)
	if err != nil {
		return nil, err
	}
	return s.findLessons(ctx, bson.M{"courseId": oid})
}

// ListAllLessons returns every lesson regardless of course or status
func (s *Store) ListAllLessons(ctx context.Context) (result []models.Lesson, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "list_all_lessons")
	defer observability.FinishSpan(span, &err)

	return s.findLessons(ctx, bson.M{})
}

func (s *Store) findLessons(ctx context.Context, filter bson.M) ([]models.Lesson, error) {
	cur, err := s.lessons.Find(ctx, filter)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrStoreQuery, "failed to list lessons: %w", err)
	}
	defer cur.Close(ctx)

	var docs []lessonDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrStoreQuery, "failed to decode lessons: %w", err)
	}

	lessons := make([]models.Lesson, 0, len(docs))
	for _, d := range docs {
		lessons = append(lessons, d.toModel())
	}
	return models.SortLessons(lessons), nil
}

// ListLessonQuestions returns the active questions of a lesson in creation order
func (s *Store) ListLessonQuestions(ctx context.Context, lessonID string) (result models.QuestionBatch, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "list_lesson_questions", observability.AttributeLessonID(lessonID))
	defer observability.FinishSpan(span, &err)

	if lessonID == "" {
		return models.QuestionBatch{}, contextutils.WrapError(contextutils.ErrInvalidInput, "lesson id is required")
	}
	return s.findQuestions(ctx, bson.M{"lessonId": lessonID, "isActive": true})
}

// ListQuestions returns questions matching filter in creation order
func (s *Store) ListQuestions(ctx context.Context, filter models.QuestionFilter) (result models.QuestionBatch, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "list_questions",
		observability.AttributeDifficulty(filter.Difficulty),
		observability.AttributeLessonID(filter.LessonID),
	)
	defer observability.FinishSpan(span, &err)

	query, err := buildQuestionQuery(filter)
	if err != nil {
		return models.QuestionBatch{}, err
	}
	return s.findQuestions(ctx, query)
}

func buildQuestionQuery(filter models.QuestionFilter) (bson.M, error) {
	query := bson.M{}
	if filter.ActiveOnly {
		query["isActive"] = true
	}
	if filter.Difficulty != "" {
		query["difficulty"] = string(filter.Difficulty)
	}
	if filter.Category != "" {
		query["category"] = string(filter.Category)
	}
	switch {
	case filter.LessonID != "":
		query["lessonId"] = filter.LessonID
	case filter.LessonSpecificOnly:
		query["lessonId"] = bson.M{"$nin": bson.A{nil, ""}}
	}
	if filter.CourseID != "" {
		oid, err := parseObjectID(filter.CourseID)
		if err != nil {
			return nil, err
		}
		query["courseId"] = oid
	}
	return query, nil
}

func (s *Store) findQuestions(ctx context.Context, query bson.M) (models.QuestionBatch, error) {
	opts := options.Find().SetSort(bson.D{{Key: "metadata.createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.questions.Find(ctx, query, opts)
	if err != nil {
		return models.QuestionBatch{}, contextutils.WrapErrorf(contextutils.ErrStoreQuery, "failed to list questions: %w", err)
	}
	defer cur.Close(ctx)

	batch := models.QuestionBatch{Questions: []models.Question{}}
	for cur.Next(ctx) {
		var doc questionDocument
		if err := cur.Decode(&doc); err != nil {
			batch.Rejected++
			s.logger.Warn(ctx, "Skipping undecodable question document", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		q := doc.toModel()
		if err := q.Validate(); err != nil {
			batch.Rejected++
			s.logger.Warn(ctx, "Skipping invalid question", map[string]interface{}{
				"question_id": q.ID,
				"lesson_id":   q.LessonID,
				"error":       err.Error(),
			})
			continue
		}
		batch.Questions = append(batch.Questions, q)
	}
	if err := cur.Err(); err != nil {
		return models.QuestionBatch{}, contextutils.WrapErrorf(contextutils.ErrStoreQuery, "question cursor failed: %w", err)
	}
	return batch, nil
}

// IncrementCounters atomically bumps timesShown and, when correct, timesCorrect
func (s *Store) IncrementCounters(ctx context.Context, id string, correct bool) (err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "increment_counters", observability.AttributeQuestionID(id))
	defer observability.FinishSpan(span, &err)

	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}

	inc := bson.M{"timesShown": 1}
	if correct {
		inc["timesCorrect"] = 1
	}
	update := bson.M{
		"$inc": inc,
		"$set": bson.M{"metadata.updatedAt": time.Now().UTC()},
	}

	res, err := s.questions.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrStoreQuery, "failed to update counters for %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return contextutils.WrapErrorf(contextutils.ErrQuestionNotFound, "question %s not found", id)
	}
	return nil
}

// MarkAudited stamps the question's audit metadata
func (s *Store) MarkAudited(ctx context.Context, id, auditor string, at time.Time) (err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "mark_audited", observability.AttributeQuestionID(id))
	defer observability.FinishSpan(span, &err)

	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}

	update := bson.M{"$set": bson.M{
		"metadata.auditedAt": at.UTC(),
		"metadata.auditedBy": auditor,
	}}
	res, err := s.questions.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrStoreQuery, "failed to mark %s audited: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return contextutils.WrapErrorf(contextutils.ErrQuestionNotFound, "question %s not found", id)
	}
	return nil
}
