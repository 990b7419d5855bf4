package contextutils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidObjectID(t *testing.T) {
	assert.True(t, IsValidObjectID("65a000000000000000000001"))
	assert.True(t, IsValidObjectID("65A0FFEEDDCCBBAA99887766"))

	assert.False(t, IsValidObjectID(""))
	assert.False(t, IsValidObjectID("65a00000000000000000001"))
	assert.False(t, IsValidObjectID("65a0000000000000000000011"))
	assert.False(t, IsValidObjectID("65a00000000000000000000g"))
	assert.False(t, IsValidObjectID(" 65a000000000000000000001"))
}

type sampleRequest struct {
	Name  string   `validate:"required"`
	Count int      `validate:"gte=1,lte=10"`
	Tags  []string `validate:"max=2"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(sampleRequest{Name: "a", Count: 3}))

	err := ValidateStruct(sampleRequest{Count: 11, Tags: []string{"x", "y", "z"}})
	require.Error(t, err)
	assert.True(t, IsError(err, ErrValidationFailed))
	assert.True(t, errors.Is(err, ErrValidationFailed))

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Details, "sampleRequest.Name failed required")
	assert.Contains(t, appErr.Details, "sampleRequest.Count failed lte=10")
	assert.Contains(t, appErr.Details, "sampleRequest.Tags failed max=2")
}

func TestValidateStruct_NonStruct(t *testing.T) {
	err := ValidateStruct("not a struct")
	require.Error(t, err)
	assert.False(t, IsError(err, ErrValidationFailed))
}
