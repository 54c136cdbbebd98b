// Package status serves a local read-only view of the bridge: health,
// session identity, connection state and Prometheus metrics.
package status

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/devbridge/internal/connection"
	"github.com/GriffinCanCode/devbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/devbridge/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/devbridge/internal/session"
)

// SessionSource provides the current session.
type SessionSource interface {
	Get() session.Session
}

// ConnectionSource provides the current connection status.
type ConnectionSource interface {
	Status() connection.Status
}

// QueueSource reports reload queue depth.
type QueueSource interface {
	Len() int
}

// Sources are the components the status endpoints read from.
type Sources struct {
	Session    SessionSource
	Connection ConnectionSource
	Queue      QueueSource
	Metrics    *monitoring.Metrics
	Tracer     *tracing.Tracer
}

// SessionView is the body of GET /session.
type SessionView struct {
	SessionID   string            `json:"session-id"`
	SessionName string            `json:"session-name"`
	Connection  connection.Status `json:"connection"`
	ReloadQueue int               `json:"reload-queue"`
}

// Server is the status HTTP server.
type Server struct {
	router  *gin.Engine
	srv     *http.Server
	logger  *zap.Logger
	started time.Time
}

// NewServer builds the router. addr is used by Start.
func NewServer(addr string, src Sources, logger *zap.Logger, development bool) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if src.Metrics == nil {
		src.Metrics = monitoring.NewMetrics()
	}
	if !development {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{logger: logger, started: time.Now()}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(src.Metrics))
	if src.Tracer != nil {
		router.Use(tracing.HTTPMiddleware(src.Tracer))
	}
	router.Use(CORS(DefaultCORSConfig()))

	router.GET("/health", s.health)
	router.GET("/session", func(c *gin.Context) {
		view := SessionView{}
		if src.Session != nil {
			sess := src.Session.Get()
			view.SessionID, view.SessionName = sess.ID, sess.Name
		}
		if src.Connection != nil {
			view.Connection = src.Connection.Status()
		}
		if src.Queue != nil {
			view.ReloadQueue = src.Queue.Len()
		}
		c.JSON(http.StatusOK, view)
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(src.Metrics.Registry, promhttp.HandlerOpts{})))

	s.router = router
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves in the background.
// It returns the bound address.
func (s *Server) Start() (string, error) {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return "", fmt.Errorf("status server listen on %s: %w", s.srv.Addr, err)
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status server stopped", zap.Error(err))
		}
	}()

	s.logger.Info("Status server listening", zap.String("addr", ln.Addr().String()))
	return ln.Addr().String(), nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
