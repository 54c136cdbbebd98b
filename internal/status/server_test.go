package status

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/devbridge/internal/connection"
	"github.com/GriffinCanCode/devbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/devbridge/internal/session"
)

type staticConn connection.Status

func (s staticConn) Status() connection.Status { return connection.Status(s) }

type staticQueue int

func (q staticQueue) Len() int { return int(q) }

func newTestServer(t *testing.T) (*Server, *monitoring.Metrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := session.NewStore(nil, nil)
	store.Update(session.Session{ID: "abc", Name: "fluffy"})
	metrics := monitoring.NewMetrics()

	s := NewServer("127.0.0.1:0", Sources{
		Session: store,
		Connection: staticConn{
			State:     connection.StateConnected,
			Transport: connection.TransportWebSocket,
			URL:       "ws://localhost:9500/figwheel-connect?fwsid=abc",
		},
		Queue:   staticQueue(2),
		Metrics: metrics,
	}, nil, true)
	return s, metrics
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Origin", "http://localhost:3449")
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	w := get(s, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSession(t *testing.T) {
	s, _ := newTestServer(t)

	w := get(s, "/session")
	require.Equal(t, http.StatusOK, w.Code)

	var view SessionView
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "abc", view.SessionID)
	assert.Equal(t, "fluffy", view.SessionName)
	assert.Equal(t, connection.StateConnected, view.Connection.State)
	assert.Equal(t, 2, view.ReloadQueue)
}

func TestMetrics(t *testing.T) {
	s, metrics := newTestServer(t)
	metrics.RecordDispatch("eval")

	get(s, "/health")
	w := get(s, "/metrics")

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `devbridge_messages_dispatched_total{op="eval"} 1`)
	assert.True(t, strings.Contains(body, `devbridge_status_requests_total{path="/health",status="200"} 1`))
}

func TestStartAndShutdown(t *testing.T) {
	s, _ := newTestServer(t)

	addr, err := s.Start()
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Shutdown(context.Background()))
}
