package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moldovancsaba/amanoba-sub004/internal/observability"
	"github.com/moldovancsaba/amanoba-sub004/internal/schema"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

// maxRequestBody caps the bytes read for schema validation
const maxRequestBody = 1 << 20

// RequestSchemaValidation validates the JSON request body against a named schema
// and restores the body for the handler
func RequestSchemaValidation(loader *schema.Loader, schemaName string, logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBody+1))
		if err != nil {
			HandleAppError(c, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to read request body"))
			c.Abort()
			return
		}
		if len(body) > maxRequestBody {
			HandleAppError(c, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "request body exceeds %d bytes", maxRequestBody))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if err := loader.ValidateBytes(schemaName, body); err != nil {
			if logger != nil {
				logger.Warn(c.Request.Context(), "Request failed schema validation", map[string]interface{}{
					"schema": schemaName,
					"path":   c.Request.URL.Path,
					"error":  err.Error(),
				})
			}
			HandleAppError(c, err)
			c.Abort()
			return
		}

		c.Next()
	}
}
