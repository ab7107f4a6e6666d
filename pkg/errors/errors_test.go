package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("load: %w", Clone(ErrIngest, "row 4 rejected"))
	got := FromError(wrapped)
	assert.Equal(t, "INGEST_ERROR", got.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, got.Status)
	assert.Equal(t, "row 4 rejected", got.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	cause := errors.New("boom")
	got := FromError(cause)
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.ErrorIs(t, got, cause)
	assert.Nil(t, FromError(nil))
}

func TestWrapMessage(t *testing.T) {
	err := Wrap(errors.New("two start dates"), ErrDataInconsistency.Code, ErrDataInconsistency.Status, "course 12")
	assert.Equal(t, "course 12: two start dates", err.Error())
	assert.Equal(t, "<nil>", (*Error)(nil).Error())
}

func TestPredefinedStatuses(t *testing.T) {
	cases := map[*Error]int{
		ErrValidation:        http.StatusBadRequest,
		ErrInternal:          http.StatusInternalServerError,
		ErrIngest:            http.StatusUnprocessableEntity,
		ErrDataInconsistency: http.StatusConflict,
		ErrStoreNotLoaded:    http.StatusServiceUnavailable,
	}
	for err, status := range cases {
		assert.Equal(t, status, err.Status, err.Code)
	}
}
