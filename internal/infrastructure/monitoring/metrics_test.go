package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestIndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RecordDispatch("eval")
	a.RecordDispatch("eval")
	b.RecordDispatch("")

	assert.Equal(t, 2.0, testutil.ToFloat64(a.MessagesDispatched.WithLabelValues("eval")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.MessagesDispatched.WithLabelValues("eval")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.MessagesDispatched.WithLabelValues("none")))
}

func TestConnectionState(t *testing.T) {
	m := NewMetrics()
	all := []string{"disconnected", "connecting", "connected"}

	m.SetConnectionState("connecting", all)
	m.SetConnectionState("connected", all)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionState.WithLabelValues("connected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ConnectionState.WithLabelValues("connecting")))
}

func TestRecordOutcomes(t *testing.T) {
	m := NewMetrics()

	m.RecordSend("websocket", nil)
	m.RecordSend("http", errors.New("refused"))
	m.RecordEval("success", time.Millisecond)
	m.RecordReload(false, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesSent.WithLabelValues("http", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evals.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reloads.WithLabelValues("failed")))
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatusRequests.WithLabelValues("/health", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatusRequests.WithLabelValues("unmatched", "404")))
}
