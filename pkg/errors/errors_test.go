package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Nil(t, FromError(nil))
}

func TestCloneKeepsIdentity(t *testing.T) {
	notFound := Clone(ErrNotFound, "school not found")
	wrapped := fmt.Errorf("lookup: %w", notFound)

	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, ErrConflict))
	assert.Equal(t, "school not found", FromError(wrapped).Message)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}

func TestWithDetails(t *testing.T) {
	err := WithDetails(ErrValidation, map[string]string{"field": "variant"})
	assert.Equal(t, ErrValidation.Code, err.Code)
	assert.NotNil(t, err.Details)
	assert.Nil(t, ErrValidation.Details)
}
