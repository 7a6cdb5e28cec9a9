package errors

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/hexshield/internal/logging"
	"github.com/copyleftdev/hexshield/internal/shielding"
)

func TestErrorFormatting(t *testing.T) {
	err := Wrap(context.Canceled, "search aborted").
		WithOperation("run").
		WithComponent("jobs")

	assert.Equal(t, "search aborted: operation=run, component=jobs: context canceled", err.Error())
	assert.NotEmpty(t, err.StackTrace())
	assert.True(t, Is(err, context.Canceled))
	assert.Equal(t, context.Canceled, Unwrap(err))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ignored"))
	assert.Nil(t, Wrapf(nil, "ignored %d", 1))
}

func TestAsFindsWrappedDomainError(t *testing.T) {
	inner := shielding.DomainErrorf("pitch must be positive")
	err := fmt.Errorf("evaluate: %w", Wrap(inner, "candidate"))

	var serr *shielding.Error
	require.True(t, As(err, &serr))
	assert.Equal(t, "mesh", serr.Component)

	var own *Error
	require.True(t, As(err, &own))
	assert.Equal(t, "candidate", own.Message)
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"configuration", shielding.ConfigurationErrorf("bad frequency"), http.StatusBadRequest},
		{"bad request", Wrap(ErrBadRequest, "decode"), http.StatusBadRequest},
		{"domain", shielding.DomainErrorf("negative length"), http.StatusUnprocessableEntity},
		{"not found", fmt.Errorf("id x: %w", ErrNotFound), http.StatusNotFound},
		{"conflict", ErrConflict, http.StatusConflict},
		{"unavailable", ErrUnavailable, http.StatusServiceUnavailable},
		{"other", stderrors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.InfoLevel, &buf)

	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("layout exploded")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/searches/1", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "Recovered from panic")
	assert.Contains(t, buf.String(), "layout exploded")
}

func TestErrorHandlerLogsServerErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.InfoLevel, &buf)

	status := http.StatusNotFound
	handler := ErrorHandler(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Empty(t, buf.String())

	status = http.StatusBadGateway
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Contains(t, buf.String(), "Request error")
	assert.Contains(t, buf.String(), `"status":502`)
}
