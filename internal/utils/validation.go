package contextutils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var objectIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// IsValidObjectID reports whether id is a 24-character hex document identifier
func IsValidObjectID(id string) bool {
	return objectIDPattern.MatchString(id)
}

// ValidateStruct runs go-playground/validator struct tags against v and converts
// failures into an ErrValidationFailed AppError listing every failing field.
func ValidateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return WrapError(err, "validation could not run")
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			problems = append(problems, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			problems = append(problems, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}

	return NewAppErrorWithCause(
		ErrorCodeValidationFailed,
		SeverityWarn,
		ErrValidationFailed.Message,
		strings.Join(problems, "; "),
		err,
	)
}
