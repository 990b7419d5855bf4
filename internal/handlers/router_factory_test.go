package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/moldovancsaba/amanoba-sub004/internal/config"
	"github.com/moldovancsaba/amanoba-sub004/internal/models"
	"github.com/moldovancsaba/amanoba-sub004/internal/observability"
	"github.com/moldovancsaba/amanoba-sub004/internal/schema"
	"github.com/moldovancsaba/amanoba-sub004/internal/services"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

const (
	testQuestionID = "65b000000000000000000001"
	testCourseID   = "65a000000000000000000001"
)

type testServer struct {
	router    *gin.Engine
	selection *mockSelectionService
	audit     *mockAuditService
	coverage  *mockCoverageService
	ledger    *mockLedgerService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		selection: &mockSelectionService{},
		audit:     &mockAuditService{},
		coverage:  &mockCoverageService{},
		ledger:    &mockLedgerService{},
	}
	cfg := config.DefaultConfig()
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	ts.router = NewRouter(cfg, ts.selection, ts.audit, ts.coverage, ts.ledger, schema.MustNewLoader(), logger)

	t.Cleanup(func() {
		ts.selection.AssertExpectations(t)
		ts.audit.AssertExpectations(t)
		ts.coverage.AssertExpectations(t)
		ts.ledger.AssertExpectations(t)
	})
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRouter_HealthAndVersion(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])

	w = ts.do(http.MethodGet, "/v1/version", "")
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "quiz-audit", body["service"])
	assert.Equal(t, "dev", body["version"])

	w = ts.do(http.MethodGet, "/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/v1/questions/select")
}

func TestSelectQuestions(t *testing.T) {
	t.Run("uses default pool size", func(t *testing.T) {
		ts := newTestServer(t)
		ts.selection.On("DefaultPoolSize").Return(5)
		ts.selection.On("Select", mock.Anything, services.SelectionRequest{
			Difficulty: models.DifficultyEasy,
			Category:   models.CategoryBusiness,
			CourseID:   testCourseID,
			PoolSize:   5,
		}).Return([]models.PresentedQuestion{
			{ID: testQuestionID, Question: "What is equity?", Options: []string{"a", "b", "c", "d"}, Difficulty: models.DifficultyEasy},
		}, nil)

		w := ts.do(http.MethodGet, "/v1/questions/select?difficulty=easy&category=business&course_id="+testCourseID, "")

		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.EqualValues(t, 1, body["count"])
		assert.EqualValues(t, 5, body["pool_size"])
		assert.NotContains(t, w.Body.String(), "correct_index")
	})

	t.Run("explicit pool size", func(t *testing.T) {
		ts := newTestServer(t)
		ts.selection.On("Select", mock.Anything, mock.MatchedBy(func(req services.SelectionRequest) bool {
			return req.PoolSize == 12 && req.LessonID == "FIN_DAY_01"
		})).Return([]models.PresentedQuestion{}, nil)

		w := ts.do(http.MethodGet, "/v1/questions/select?difficulty=HARD&pool_size=12&lesson_id=FIN_DAY_01", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing difficulty", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(http.MethodGet, "/v1/questions/select", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, string(contextutils.ErrorCodeInvalidInput), decodeBody(t, w)["code"])
	})

	t.Run("unknown difficulty", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(http.MethodGet, "/v1/questions/select?difficulty=legendary", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown category", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(http.MethodGet, "/v1/questions/select?difficulty=easy&category=cooking", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no questions available", func(t *testing.T) {
		ts := newTestServer(t)
		ts.selection.On("DefaultPoolSize").Return(5)
		ts.selection.On("Select", mock.Anything, mock.Anything).
			Return(nil, &services.NoQuestionsAvailableError{Difficulty: models.DifficultyMedium, PoolSize: 5})

		w := ts.do(http.MethodGet, "/v1/questions/select?difficulty=medium", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, string(contextutils.ErrorCodeNoQuestionsAvailable), decodeBody(t, w)["code"])
	})

	t.Run("store unavailable", func(t *testing.T) {
		ts := newTestServer(t)
		ts.selection.On("DefaultPoolSize").Return(5)
		ts.selection.On("Select", mock.Anything, mock.Anything).
			Return(nil, contextutils.WrapErrorf(contextutils.ErrStoreUnavailable, "mongo down"))

		w := ts.do(http.MethodGet, "/v1/questions/select?difficulty=medium", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, true, decodeBody(t, w)["retryable"])
	})
}

func TestRecordOutcome(t *testing.T) {
	t.Run("records a correct answer", func(t *testing.T) {
		ts := newTestServer(t)
		ts.selection.On("RecordOutcome", mock.Anything, testQuestionID, true).Return(nil)

		w := ts.do(http.MethodPost, "/v1/questions/"+testQuestionID+"/outcome", `{"correct": true}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decodeBody(t, w)["recorded"])
	})

	t.Run("records an incorrect answer", func(t *testing.T) {
		ts := newTestServer(t)
		ts.selection.On("RecordOutcome", mock.Anything, testQuestionID, false).Return(nil)

		w := ts.do(http.MethodPost, "/v1/questions/"+testQuestionID+"/outcome", `{"correct": false}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("schema rejects body", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(http.MethodPost, "/v1/questions/"+testQuestionID+"/outcome", `{"correct": "yes"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, string(contextutils.ErrorCodeValidationFailed), decodeBody(t, w)["code"])
	})

	t.Run("malformed id", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(http.MethodPost, "/v1/questions/abc/outcome", `{"correct": true}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown question", func(t *testing.T) {
		ts := newTestServer(t)
		ts.selection.On("RecordOutcome", mock.Anything, testQuestionID, true).
			Return(contextutils.WrapErrorf(contextutils.ErrQuestionNotFound, "question %s not found", testQuestionID))

		w := ts.do(http.MethodPost, "/v1/questions/"+testQuestionID+"/outcome", `{"correct": true}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAuditDuplicates(t *testing.T) {
	t.Run("overrides configured parameters", func(t *testing.T) {
		ts := newTestServer(t)
		report := &models.DuplicateAuditReport{Summary: models.AuditSummary{Courses: 1, IntraLessonPairs: 2}}
		ts.audit.On("RunAudit", mock.Anything, models.AuditParameters{
			Threshold:  0.9,
			MinWindow:  config.DefaultMinWindow,
			MinPrev:    3,
			Clustering: models.ClusteringUnionFind,
			CourseID:   testCourseID,
		}).Return(report, nil)

		w := ts.do(http.MethodGet, "/v1/audit/duplicates?threshold=0.9&min_prev=3&clustering=union_find&course_id="+testCourseID, "")
		require.Equal(t, http.StatusOK, w.Code)

		var got models.DuplicateAuditReport
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, 2, got.Summary.IntraLessonPairs)
	})

	t.Run("invalid parameters", func(t *testing.T) {
		ts := newTestServer(t)
		ts.audit.On("RunAudit", mock.Anything, mock.Anything).
			Return(nil, contextutils.WrapErrorf(contextutils.ErrInvalidConfiguration, "threshold 1.500 must be within [0, 1]"))

		w := ts.do(http.MethodGet, "/v1/audit/duplicates?threshold=1.5", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unparseable threshold", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(http.MethodGet, "/v1/audit/duplicates?threshold=high", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuditCoverage(t *testing.T) {
	t.Run("returns the report", func(t *testing.T) {
		ts := newTestServer(t)
		ts.coverage.On("Report", mock.Anything).Return(&models.CoverageReport{Required: 14, Present: 10, QuestionsMissing: 4}, nil)

		w := ts.do(http.MethodGet, "/v1/audit/coverage", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 4, decodeBody(t, w)["questions_missing"])
	})

	t.Run("store failure", func(t *testing.T) {
		ts := newTestServer(t)
		ts.coverage.On("Report", mock.Anything).Return(nil, contextutils.ErrStoreQuery)

		w := ts.do(http.MethodGet, "/v1/audit/coverage", "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestLedgerRoutes(t *testing.T) {
	t.Run("latest entry", func(t *testing.T) {
		ts := newTestServer(t)
		ts.ledger.On("Source").Return(config.LedgerSourceDatabase)
		ts.ledger.On("LatestForQuestion", mock.Anything, testQuestionID).Return(&models.LedgerEntry{
			QuestionID: testQuestionID,
			Timestamp:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			Violations: 2,
		}, nil)

		w := ts.do(http.MethodGet, "/v1/ledger/latest/"+testQuestionID, "")
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, string(models.LedgerFailing), body["status"])
		assert.Equal(t, config.LedgerSourceDatabase, body["source"])
	})

	t.Run("no entry", func(t *testing.T) {
		ts := newTestServer(t)
		ts.ledger.On("LatestForQuestion", mock.Anything, testQuestionID).
			Return(nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "no ledger entry"))

		w := ts.do(http.MethodGet, "/v1/ledger/latest/"+testQuestionID, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("ledger unavailable", func(t *testing.T) {
		ts := newTestServer(t)
		ts.ledger.On("LatestForQuestion", mock.Anything, testQuestionID).
			Return(nil, contextutils.WrapErrorf(contextutils.ErrLedgerUnavailable, "no database"))

		w := ts.do(http.MethodGet, "/v1/ledger/latest/"+testQuestionID, "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("record entry", func(t *testing.T) {
		ts := newTestServer(t)
		at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		ts.ledger.On("Source").Return(config.LedgerSourceMarkdown)
		ts.ledger.On("Record", mock.Anything, models.LedgerEntry{
			QuestionID: testQuestionID,
			Timestamp:  at,
			Violations: 0,
			Auditor:    "reviewer",
		}).Return(nil)

		w := ts.do(http.MethodPost, "/v1/ledger/"+testQuestionID,
			`{"violations": 0, "auditor": "reviewer", "timestamp": "2024-05-01T10:00:00Z"}`)
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, string(models.LedgerPassed), decodeBody(t, w)["status"])
	})

	t.Run("record rejects negative violations", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(http.MethodPost, "/v1/ledger/"+testQuestionID, `{"violations": -1}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
