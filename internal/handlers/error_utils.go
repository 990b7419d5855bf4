package handlers

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/moldovancsaba/amanoba-sub004/internal/middleware"
	"github.com/moldovancsaba/amanoba-sub004/internal/services"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

// HandleAppError writes the structured error response for err
func HandleAppError(c *gin.Context, err error) {
	var noQuestions *services.NoQuestionsAvailableError
	if errors.As(err, &noQuestions) {
		err = contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeNoQuestionsAvailable,
			contextutils.SeverityInfo,
			"No questions available",
			noQuestions.Error(),
			err,
		)
	}
	middleware.HandleAppError(c, err)
}

// HandleValidationError handles input validation errors consistently
func HandleValidationError(c *gin.Context, field string, value interface{}, reason string) {
	appErr := contextutils.NewAppError(
		contextutils.ErrorCodeInvalidInput,
		contextutils.SeverityWarn,
		fmt.Sprintf("Invalid %s", field),
		fmt.Sprintf("Value '%v' is invalid: %s", value, reason),
	)
	middleware.HandleAppError(c, appErr)
}

// handleBindError reports a gin binding failure as invalid input
func handleBindError(c *gin.Context, err error) {
	middleware.HandleAppError(c, contextutils.NewAppErrorWithCause(
		contextutils.ErrorCodeInvalidInput,
		contextutils.SeverityWarn,
		"Invalid request",
		err.Error(),
		err,
	))
}

// notYetAvailable reports that a scheduled report has not completed yet
func notYetAvailable(kind string) error {
	return contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "no %s report has completed yet", kind)
}
