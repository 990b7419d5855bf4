package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/moldovancsaba/amanoba-sub004/internal/config"
	"github.com/moldovancsaba/amanoba-sub004/internal/models"
	"github.com/moldovancsaba/amanoba-sub004/internal/observability"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

var testCollections = Collections{Courses: "courses", Lessons: "lessons", Questions: "quiz_questions"}

func mustOID(t *testing.T, hex string) primitive.ObjectID {
	t.Helper()
	oid, err := primitive.ObjectIDFromHex(hex)
	require.NoError(t, err)
	return oid
}

func newTestStore(mt *mtest.T) *Store {
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	return NewStore(mt.DB, testCollections, logger)
}

func questionDoc(id primitive.ObjectID, lessonID string, courseID primitive.ObjectID, options bson.A, created time.Time) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "question", Value: "What is working capital?"},
		{Key: "options", Value: options},
		{Key: "correctIndex", Value: 1},
		{Key: "difficulty", Value: "MEDIUM"},
		{Key: "category", Value: "BUSINESS"},
		{Key: "lessonId", Value: lessonID},
		{Key: "courseId", Value: courseID},
		{Key: "isActive", Value: true},
		{Key: "timesShown", Value: 3},
		{Key: "timesCorrect", Value: 1},
		{Key: "metadata", Value: bson.D{
			{Key: "createdAt", Value: created},
			{Key: "updatedAt", Value: created},
		}},
	}
}

func TestStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	courseOID := mustOID(t, "65a000000000000000000001")
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mt.Run("ListCourses decodes documents", func(mt *mtest.T) {
		store := newTestStore(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.courses", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: courseOID}, {Key: "name", Value: "Finance 101"}, {Key: "isActive", Value: true}},
		))

		courses, err := store.ListCourses(context.Background(), true)
		require.NoError(mt, err)
		require.Len(mt, courses, 1)
		assert.Equal(mt, "65a000000000000000000001", courses[0].ID)
		assert.Equal(mt, "Finance 101", courses[0].Name)
		assert.True(mt, courses[0].IsActive)
	})

	mt.Run("GetCourse missing", func(mt *mtest.T) {
		store := newTestStore(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.courses", mtest.FirstBatch))

		_, err := store.GetCourse(context.Background(), courseOID.Hex())
		require.Error(mt, err)
		assert.True(mt, contextutils.IsError(err, contextutils.ErrCourseNotFound))
	})

	mt.Run("GetCourse rejects malformed id", func(mt *mtest.T) {
		store := newTestStore(mt)

		_, err := store.GetCourse(context.Background(), "not-an-id")
		require.Error(mt, err)
		assert.True(mt, contextutils.IsError(err, contextutils.ErrInvalidInput))
	})

	mt.Run("ListLessons orders and defaults display order", func(mt *mtest.T) {
		store := newTestStore(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.lessons", mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "lessonId", Value: "FIN_DAY_02"},
				{Key: "courseId", Value: courseOID},
				{Key: "dayNumber", Value: 2},
				{Key: "isActive", Value: true},
				{Key: "createdAt", Value: created},
			},
			bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "lessonId", Value: "FIN_DAY_01"},
				{Key: "courseId", Value: courseOID},
				{Key: "dayNumber", Value: 1},
				{Key: "displayOrder", Value: 3},
				{Key: "isActive", Value: true},
				{Key: "createdAt", Value: created},
			},
		))

		lessons, err := store.ListLessons(context.Background(), courseOID.Hex())
		require.NoError(mt, err)
		require.Len(mt, lessons, 2)
		assert.Equal(mt, "FIN_DAY_01", lessons[0].ID)
		assert.Equal(mt, 3, lessons[0].DisplayOrder)
		assert.Equal(mt, "FIN_DAY_02", lessons[1].ID)
		assert.Equal(mt, models.DefaultDisplayOrder, lessons[1].DisplayOrder)
		assert.Equal(mt, courseOID.Hex(), lessons[1].CourseID)
	})

	mt.Run("ListLessonQuestions skips invalid records", func(mt *mtest.T) {
		store := newTestStore(mt)
		good := questionDoc(mustOID(mt.T, "65b000000000000000000001"), "FIN_DAY_01", courseOID,
			bson.A{"Cash minus debt", "Current assets minus current liabilities", "Revenue", "Equity"}, created)
		threeOptions := questionDoc(mustOID(mt.T, "65b000000000000000000002"), "FIN_DAY_01", courseOID,
			bson.A{"One", "Two", "Three"}, created.Add(time.Minute))
		duplicateOptions := questionDoc(mustOID(mt.T, "65b000000000000000000003"), "FIN_DAY_01", courseOID,
			bson.A{"Same", "Same", "Other", "Else"}, created.Add(2*time.Minute))
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.quiz_questions", mtest.FirstBatch, good, threeOptions, duplicateOptions))

		batch, err := store.ListLessonQuestions(context.Background(), "FIN_DAY_01")
		require.NoError(mt, err)
		require.Len(mt, batch.Questions, 1)
		assert.Equal(mt, 2, batch.Rejected)

		q := batch.Questions[0]
		assert.Equal(mt, "65b000000000000000000001", q.ID)
		assert.Equal(mt, models.DifficultyMedium, q.Difficulty)
		assert.Equal(mt, models.CategoryBusiness, q.Category)
		assert.Equal(mt, courseOID.Hex(), q.CourseID)
		assert.Equal(mt, 3, q.TimesShown)
		assert.True(mt, q.Metadata.CreatedAt.Equal(created))
	})

	mt.Run("ListQuestions surfaces store failure", func(mt *mtest.T) {
		store := newTestStore(mt)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Message: "bad query",
			Name:    "BadValue",
		}))

		_, err := store.ListQuestions(context.Background(), models.QuestionFilter{ActiveOnly: true})
		require.Error(mt, err)
		assert.True(mt, contextutils.IsError(err, contextutils.ErrStoreQuery))
	})

	mt.Run("IncrementCounters success", func(mt *mtest.T) {
		store := newTestStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		err := store.IncrementCounters(context.Background(), "65b000000000000000000001", true)
		require.NoError(mt, err)
	})

	mt.Run("IncrementCounters unknown question", func(mt *mtest.T) {
		store := newTestStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := store.IncrementCounters(context.Background(), "65b000000000000000000009", false)
		require.Error(mt, err)
		assert.True(mt, contextutils.IsError(err, contextutils.ErrQuestionNotFound))
	})

	mt.Run("MarkAudited success", func(mt *mtest.T) {
		store := newTestStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		err := store.MarkAudited(context.Background(), "65b000000000000000000001", "auditor", created)
		require.NoError(mt, err)
	})
}

func TestBuildQuestionQuery(t *testing.T) {
	t.Run("empty filter", func(t *testing.T) {
		q, err := buildQuestionQuery(models.QuestionFilter{})
		require.NoError(t, err)
		assert.Empty(t, q)
	})

	t.Run("lesson specific pool", func(t *testing.T) {
		q, err := buildQuestionQuery(models.QuestionFilter{ActiveOnly: true, LessonSpecificOnly: true})
		require.NoError(t, err)
		assert.Equal(t, true, q["isActive"])
		assert.Equal(t, bson.M{"$nin": bson.A{nil, ""}}, q["lessonId"])
	})

	t.Run("explicit lesson wins over lesson specific flag", func(t *testing.T) {
		q, err := buildQuestionQuery(models.QuestionFilter{LessonID: "FIN_DAY_01", LessonSpecificOnly: true})
		require.NoError(t, err)
		assert.Equal(t, "FIN_DAY_01", q["lessonId"])
	})

	t.Run("difficulty category and course", func(t *testing.T) {
		q, err := buildQuestionQuery(models.QuestionFilter{
			Difficulty: models.DifficultyHard,
			Category:   models.CategoryScience,
			CourseID:   "65a000000000000000000001",
		})
		require.NoError(t, err)
		assert.Equal(t, "HARD", q["difficulty"])
		assert.Equal(t, "SCIENCE", q["category"])
		assert.IsType(t, primitive.ObjectID{}, q["courseId"])
	})

	t.Run("malformed course id", func(t *testing.T) {
		_, err := buildQuestionQuery(models.QuestionFilter{CourseID: "course-1"})
		require.Error(t, err)
	})
}

func TestCollectionsFromConfig(t *testing.T) {
	cols := CollectionsFromConfig(config.MongoConfig{QuestionsCollection: "questions_v2"})
	assert.Equal(t, config.DefaultCoursesCollection, cols.Courses)
	assert.Equal(t, config.DefaultLessonsCollection, cols.Lessons)
	assert.Equal(t, "questions_v2", cols.Questions)
}
