package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cause := stderrors.New("boom")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NotFound("emergency request", nil), http.StatusNotFound},
		{"bad request", BadRequest("bad status", nil), http.StatusBadRequest},
		{"conflict", Conflict("busy", cause), http.StatusConflict},
		{"unavailable", Unavailable("offline", cause), http.StatusServiceUnavailable},
		{"submission", NewSubmission("emergency_1_abc", cause), http.StatusServiceUnavailable},
		{"storage", NewStorage("save", "donors", cause), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("service: %w", NotFound("donor", nil)), http.StatusNotFound},
		{"plain", cause, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestAppErrorWrapsCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := NewStorage("save", "emergency_requests", cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, Is(err, ErrStorage))
	assert.False(t, Is(err, ErrNotFound))
	assert.Equal(t, `storage save "emergency_requests" failed: disk full`, err.Error())

	var appErr *AppError
	assert.True(t, As(fmt.Errorf("outer: %w", err), &appErr))
	assert.Equal(t, ErrStorage, appErr.Code)
}
