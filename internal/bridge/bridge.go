// Package bridge assembles the client runtime: host, session, reload queue,
// module registry, dispatcher, connection manager and status server.
//
// Lifecycle:
//
//	b, err := bridge.New(cfg, bridge.Options{})
//	if err := b.Connect(ctx); err != nil { ... }
//	defer b.Teardown(context.Background())
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/devbridge/internal/connection"
	"github.com/GriffinCanCode/devbridge/internal/dispatch"
	"github.com/GriffinCanCode/devbridge/internal/host"
	"github.com/GriffinCanCode/devbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/devbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/devbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/devbridge/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/devbridge/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/devbridge/internal/protocol"
	"github.com/GriffinCanCode/devbridge/internal/registry"
	"github.com/GriffinCanCode/devbridge/internal/reload"
	"github.com/GriffinCanCode/devbridge/internal/session"
	"github.com/GriffinCanCode/devbridge/internal/status"
)

// GlobalName is the script global exposing the module registry.
const GlobalName = "devbridge"

// Options carries overrides that have no configuration form.
type Options struct {
	Dialer    connection.Dialer
	Import    reload.ImportFunc
	SideStore session.SideStore
	Stdout    io.Writer
	Stderr    io.Writer
	Logger    *logging.Logger
}

// Bridge is one client runtime instance.
type Bridge struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer

	Host       *host.Host
	Session    *session.Store
	Queue      *reload.Queue
	Registry   *registry.Registry
	Dispatcher *dispatch.Dispatcher
	Conn       *connection.Manager

	status *status.Server

	mu       sync.Mutex
	cancel   context.CancelFunc
	torndown bool
}

// New builds every component from cfg without connecting.
func New(cfg *config.Config, opts Options) (*Bridge, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			Development: cfg.Logging.Development,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	env, err := host.ResolveEnv(cfg.Host.Env, cfg.Connect.PageURL)
	if err != nil {
		return nil, err
	}

	metrics := monitoring.NewMetrics()

	side := opts.SideStore
	if side == nil && cfg.Session.File != "" {
		side = session.NewFileStore(cfg.Session.File)
	}
	store := session.NewStore(side, logger.Component("session"))

	h, err := host.New(host.Config{
		Env:       env,
		RootDir:   cfg.Host.RootDir,
		UserAgent: cfg.Host.UserAgent,
		Timeout:   cfg.Host.EvalTimeout,
		Print:     cfg.Output.PrintReceivers(),
		Stdout:    opts.Stdout,
		Stderr:    opts.Stderr,
	}, logger.Component("host"))
	if err != nil {
		return nil, fmt.Errorf("failed to create host: %w", err)
	}

	client := connection.NewClient(cfg.Connect.HTTPTimeout, logger.Component("http"))
	client.SetRateLimit(cfg.Connect.SendRPS)

	loader := reload.SelectLoader(env, h, client.Resty(), cfg.Connect.PageURL, opts.Import, logger.Component("loader"))
	queue := reload.NewQueue(reload.QueueConfig{
		Loader:  loader,
		Eval:    h,
		Timeout: cfg.Host.ReloadTimeout,
		Logger:  logger.Component("reload"),
		Metrics: metrics,
	})

	conn := connection.NewManager(connection.Options{
		URL:          cfg.Connect.URL,
		PageURL:      cfg.Connect.PageURL,
		Env:          env,
		WebSocket:    cfg.Connect.WebSocket,
		Dialer:       opts.Dialer,
		PollInterval: cfg.Connect.PollInterval,
		Backoff:      resilience.Backoff{Base: cfg.Connect.BackoffBase, Max: cfg.Connect.BackoffMax},
		Client:       client,
		Session:      store,
		Logger:       logger.Component("connection"),
		Metrics:      metrics,
	})

	tracer := tracing.New("devbridge", logger.Component("trace"))
	dispatcher := dispatch.New(dispatch.Config{
		Session:   store,
		Evaluator: h,
		Queue:     queue,
		Responder: conn,
		Logger:    logger.Component("dispatch"),
		Metrics:   metrics,
		Tracer:    tracer,
	})
	conn.OnMessage(func(ctx context.Context, msg *protocol.Message) {
		dispatcher.Dispatch(ctx, msg)
	})

	b := &Bridge{
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		tracer:     tracer,
		Host:       h,
		Session:    store,
		Queue:      queue,
		Registry:   registry.New(queue, logger.Component("registry")),
		Dispatcher: dispatcher,
		Conn:       conn,
	}
	conn.OnEvent(b.onConnectionEvent)

	if err := b.Registry.Install(context.Background(), GlobalName, h); err != nil {
		tracer.Close()
		queue.Close()
		return nil, fmt.Errorf("failed to install %s global: %w", GlobalName, err)
	}

	if cfg.Status.Addr != "" {
		b.status = status.NewServer(cfg.Status.Addr, status.Sources{
			Session:    store,
			Connection: conn,
			Queue:      queue,
			Metrics:    metrics,
			Tracer:     tracer,
		}, logger.Component("status"), cfg.Logging.Development)
	}

	return b, nil
}

// Metrics returns the bridge's metrics.
func (b *Bridge) Metrics() *monitoring.Metrics { return b.metrics }

// Logger returns the bridge's logger.
func (b *Bridge) Logger() *logging.Logger { return b.logger }

// Connect starts the status server when configured and starts the
// connection. Loops stop on Teardown or when ctx is cancelled.
func (b *Bridge) Connect(ctx context.Context) error {
	b.mu.Lock()
	if b.torndown {
		b.mu.Unlock()
		return errors.New("bridge has been torn down")
	}
	if b.cancel != nil {
		b.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.mu.Unlock()

	if b.status != nil {
		if _, err := b.status.Start(); err != nil {
			b.logger.Warn("Status server disabled", zap.Error(err))
			b.status = nil
		}
	}

	return b.Conn.Connect(ctx)
}

// Eval evaluates code in the host, as the eval op would.
func (b *Bridge) Eval(ctx context.Context, code string) host.EvalResult {
	return b.Host.Eval(ctx, code)
}

// Teardown stops the connection loops, drains the reload queue, stops the
// status server and flushes the logger.
func (b *Bridge) Teardown(ctx context.Context) error {
	b.mu.Lock()
	if b.torndown {
		b.mu.Unlock()
		return nil
	}
	b.torndown = true
	cancel := b.cancel
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	b.Conn.Wait()
	b.Queue.Close()
	b.Queue.Wait()

	var errs []error
	if b.status != nil {
		if err := b.status.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("status server shutdown: %w", err))
		}
	}
	b.Host.Printer().Unregister(host.ReceiverREPL)
	b.tracer.Close()

	// Sync fails on terminals; nothing useful to do about it.
	_ = b.logger.Sync()
	return errors.Join(errs...)
}

func (b *Bridge) onConnectionEvent(e connection.Event) {
	switch e.Kind {
	case connection.EventConnected:
		b.Host.Printer().Register(host.ReceiverREPL, b.replReceiver)
	case connection.EventDisconnected:
		b.logger.Info("Disconnected", zap.String("url", e.URL))
	}
}

// replReceiver forwards program output to the dev server.
func (b *Bridge) replReceiver(stream host.Stream, args []string) {
	out := protocol.Output{Output: true, Stream: string(stream), Args: args}
	if err := b.Conn.RespondToConnection(out); err != nil {
		b.logger.Debug("Dropped program output", zap.Error(err))
	}
}
