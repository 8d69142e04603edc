// internal/middleware/logging_test.go
package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogMiddlewareRecordsRequest(t *testing.T) {
	logger, hook := logtest.NewNullLogger()

	var served bool
	h := LogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served = true
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest("POST", "/session/create", nil)
	r.RemoteAddr = "10.0.0.1:5000"
	h.ServeHTTP(httptest.NewRecorder(), r)

	require.True(t, served)
	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, "HTTP request", entry.Message)
	assert.Equal(t, "POST", entry.Data["method"])
	assert.Equal(t, "/session/create", entry.Data["path"])
	assert.Equal(t, "10.0.0.1:5000", entry.Data["remote"])
}

func TestWebSocketLifecycleLogs(t *testing.T) {
	logger, hook := logtest.NewNullLogger()

	LogWebSocketConnect(logger, "10.0.0.2:5000", "abc")
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "WebSocket connected", hook.LastEntry().Message)
	assert.Equal(t, "abc", hook.LastEntry().Data["session"])

	LogWebSocketDisconnect(logger, "10.0.0.2:5000", "abc", nil)
	require.Len(t, hook.Entries, 2)
	assert.Equal(t, "WebSocket disconnected", hook.LastEntry().Message)
	assert.NotContains(t, hook.LastEntry().Data, "error")

	LogWebSocketDisconnect(logger, "10.0.0.2:5000", "abc", errors.New("broken pipe"))
	require.Len(t, hook.Entries, 3)
	assert.Contains(t, hook.LastEntry().Data, "error")
}
