package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRouteListingHandler(t *testing.T) {
	handler := NewRouteListingHandler("quiz-audit")
	assert.Equal(t, "quiz-audit", handler.serviceName)
	assert.NotNil(t, handler.routes)
}

func TestRouteListingHandler_CollectRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	router.GET("/health", func(_ *gin.Context) {})
	v1 := router.Group("/v1")
	{
		v1.GET("/questions/select", func(_ *gin.Context) {})
		v1.POST("/questions/:id/outcome", func(_ *gin.Context) {})
		v1.POST("/ledger/:id", func(_ *gin.Context) {})
		v1.GET("/ledger/latest/:id", func(_ *gin.Context) {})
	}
	router.GET("/debug/pprof", func(_ *gin.Context) {})

	handler := NewRouteListingHandler("quiz-audit")
	handler.CollectRoutes(router)

	require.Len(t, handler.routes, 5)
	assert.Equal(t, "/health", handler.routes[0].Path)
	assert.Equal(t, "/v1/ledger/:id", handler.routes[1].Path)
	assert.Equal(t, "/v1/questions/select", handler.routes[4].Path)

	index := handler.Index()
	assert.Equal(t, 3, index.Methods[http.MethodGet])
	assert.Equal(t, 2, index.Methods[http.MethodPost])
}

func TestRouteListingHandler_GetRouteListingJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	handler := NewRouteListingHandler("quiz-audit")
	router.GET("/", handler.GetRouteListingJSON)
	handler.CollectRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-cache, no-store, must-revalidate", w.Header().Get("Cache-Control"))

	var index RouteIndex
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &index))
	assert.Equal(t, "quiz-audit", index.Service)
	require.Len(t, index.Routes, 1)
	assert.Equal(t, "/", index.Routes[0].Path)
}
