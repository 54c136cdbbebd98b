package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStartSpanPropagatesTrace(t *testing.T) {
	tracer := New("test", nil)
	defer tracer.Close()

	parent, ctx := tracer.StartSpanWithTrace(context.Background(), "eval", "msg-1")
	assert.Equal(t, TraceID("msg-1"), parent.TraceID)
	assert.Equal(t, TraceID("msg-1"), GetTraceID(ctx))
	assert.Equal(t, parent.SpanID, GetSpanID(ctx))

	child, _ := tracer.StartSpan(ctx, "reload")
	assert.Equal(t, parent.TraceID, child.TraceID)
	assert.Equal(t, parent.SpanID, child.ParentID)
	assert.NotEqual(t, parent.SpanID, child.SpanID)
}

func TestStartSpanGeneratesTrace(t *testing.T) {
	tracer := New("test", nil)
	defer tracer.Close()

	a, _ := tracer.StartSpan(context.Background(), "ping")
	b, _ := tracer.StartSpan(context.Background(), "ping")
	assert.NotEmpty(t, a.TraceID)
	assert.NotEqual(t, a.TraceID, b.TraceID)
}

func TestCloseFlushesSpans(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tracer := New("dispatch", zap.New(core))

	ok, _ := tracer.StartSpanWithTrace(context.Background(), "eval", "t-1")
	ok.SetTag("op", "eval")
	ok.Finish()
	tracer.Submit(ok)

	failed, _ := tracer.StartSpan(context.Background(), "reload")
	failed.SetError(errors.New("boom"))
	failed.Finish()
	tracer.Submit(failed)

	tracer.Close()
	tracer.Submit(ok)

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "Span completed", logs.All()[0].Message)
	assert.Equal(t, "eval", logs.All()[0].ContextMap()["op"])
	assert.Equal(t, zapcore.WarnLevel, logs.All()[1].Level)
}

func TestHTTPMiddlewareEchoesHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer := New("status", nil)
	defer tracer.Close()

	var seen TraceID
	r := gin.New()
	r.Use(HTTPMiddleware(tracer))
	r.GET("/health", func(c *gin.Context) {
		seen = GetTraceID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderTraceID, "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, TraceID("abc"), seen)
	assert.Equal(t, "abc", w.Header().Get(HeaderTraceID))
	assert.NotEmpty(t, w.Header().Get(HeaderSpanID))
}
