package log

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(component string) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := New(Config{
		Component: component,
		Handler:   slog.NewTextHandler(&buf, nil),
	})
	return logger, &buf
}

func TestLogger_PrependsComponent(t *testing.T) {
	logger, buf := newBufferLogger(ComponentHTTP)

	logger.Info("Request completed", FieldOwnerID, int64(7))

	out := buf.String()
	assert.Contains(t, out, "component=http")
	assert.Contains(t, out, "owner_id=7")
	assert.Contains(t, out, "Request completed")
}

func TestLogger_WithComponent(t *testing.T) {
	logger, buf := newBufferLogger(ComponentApp)

	worker := logger.WithComponent(ComponentWorker)
	require.Equal(t, ComponentWorker, worker.Component())

	worker.Info("started")
	assert.Contains(t, buf.String(), "component=worker")
}

func TestMiddleware_InjectsLoggerIntoContext(t *testing.T) {
	logger, buf := newBufferLogger(ComponentHTTP)

	handler := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("handled", FieldPath, r.URL.Path)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/healthz", nil))

	out := buf.String()
	assert.Contains(t, out, "component=http")
	assert.Contains(t, out, "path=/healthz")
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotNil(t, logger)
	assert.Equal(t, "unknown", logger.Component())
}
