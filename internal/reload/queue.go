package reload

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/devbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/devbridge/internal/shared/id"
)

// ErrTimeout is reported for an operation that did not complete in time.
var ErrTimeout = errors.New("reload operation timed out")

// DefaultTimeout bounds a single reload operation.
const DefaultTimeout = 30 * time.Second

// Request asks the host to load a resource. With SourceText set the text is
// evaluated directly and RequestURL only names it.
type Request struct {
	RequestURL string
	SourceText string
}

// Outcome is passed to a request's completion callback.
type Outcome struct {
	RequestURL string
	Loaded     bool
	Err        error
}

// Evaluator runs script text inside the host.
type Evaluator interface {
	RunScript(ctx context.Context, name, src string) error
}

type task struct {
	id      id.ReloadID
	req     Request
	done    func(Outcome)
	barrier func()
	queued  time.Time
}

// Queue runs reload operations one at a time in arrival order. A drain
// goroutine is started when work arrives on an idle queue and exits once the
// queue is empty.
type Queue struct {
	loader  Loader
	eval    Evaluator
	timeout time.Duration
	logger  *zap.Logger
	metrics *monitoring.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending []task
	running bool
	idle    *sync.Cond
}

// QueueConfig configures a Queue.
type QueueConfig struct {
	Loader  Loader
	Eval    Evaluator
	Timeout time.Duration
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

// NewQueue creates an idle queue.
func NewQueue(cfg QueueConfig) *Queue {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = monitoring.NewMetrics()
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		loader:  cfg.Loader,
		eval:    cfg.Eval,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		ctx:     ctx,
		cancel:  cancel,
	}
	q.idle = sync.NewCond(&q.mu)
	return q
}

// Enqueue schedules req. done, when non-nil, receives the outcome on the
// drain goroutine.
func (q *Queue) Enqueue(req Request, done func(Outcome)) {
	q.push(task{id: id.NewReloadID(), req: req, done: done, queued: time.Now()})
}

// AfterReloads runs fn once everything queued before it has completed.
func (q *Queue) AfterReloads(fn func()) {
	if fn == nil {
		return
	}
	q.push(task{barrier: fn, queued: time.Now()})
}

// Len returns the number of operations waiting or running.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	if q.running {
		n++
	}
	return n
}

// Wait blocks until the queue is idle.
func (q *Queue) Wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.running || len(q.pending) > 0 {
		q.idle.Wait()
	}
}

// Close cancels running and pending operations. Pending operations still
// complete, as failures.
func (q *Queue) Close() {
	q.cancel()
}

func (q *Queue) push(t task) {
	q.mu.Lock()
	q.pending = append(q.pending, t)
	start := !q.running
	q.running = true
	q.metrics.ReloadQueue.Set(float64(len(q.pending)))
	q.mu.Unlock()

	if start {
		go q.drain()
	}
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			q.metrics.ReloadQueue.Set(0)
			q.idle.Broadcast()
			q.mu.Unlock()
			return
		}
		t := q.pending[0]
		q.pending[0] = task{}
		q.pending = q.pending[1:]
		q.metrics.ReloadQueue.Set(float64(len(q.pending) + 1))
		q.mu.Unlock()

		if t.barrier != nil {
			q.runBarrier(t.barrier)
			continue
		}
		q.run(t)
	}
}

func (q *Queue) runBarrier(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("After-reloads callback panicked", zap.Any("panic", r))
		}
	}()
	fn()
}

func (q *Queue) run(t task) {
	start := time.Now()
	outcome := Outcome{RequestURL: t.req.RequestURL}

	if err := q.ctx.Err(); err != nil {
		outcome.Err = err
	} else {
		outcome.Loaded, outcome.Err = q.execute(t.id, t.req)
	}

	q.metrics.RecordReload(outcome.Loaded, time.Since(start))
	q.logger.Debug("Reload finished",
		zap.Stringer("reload_id", t.id),
		zap.String("request_url", outcome.RequestURL),
		zap.Bool("loaded", outcome.Loaded),
		zap.Duration("waited", start.Sub(t.queued)),
		zap.Duration("duration", time.Since(start)))

	if t.done != nil {
		q.complete(t.done, outcome)
	}
}

func (q *Queue) complete(done func(Outcome), outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Reload callback panicked",
				zap.String("request_url", outcome.RequestURL),
				zap.Any("panic", r))
		}
	}()
	done(outcome)
}

// execute performs one operation and waits for its completion or timeout.
// A completion arriving after the timeout is ignored.
func (q *Queue) execute(rid id.ReloadID, req Request) (bool, error) {
	ctx, cancel := context.WithTimeout(q.ctx, q.timeout)
	defer cancel()

	result := make(chan bool, 1)
	var once sync.Once
	finish := func(ok bool) {
		once.Do(func() { result <- ok })
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				q.logger.Error("Reload operation panicked",
					zap.Stringer("reload_id", rid),
					zap.String("request_url", req.RequestURL),
					zap.Any("panic", r))
				finish(false)
			}
		}()
		q.start(ctx, req, finish)
	}()

	select {
	case ok := <-result:
		return ok, nil
	case <-ctx.Done():
		q.logger.Warn("Reload operation timed out",
			zap.Stringer("reload_id", rid),
			zap.String("request_url", req.RequestURL),
			zap.Duration("timeout", q.timeout))
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return false, ErrTimeout
		}
		return false, ctx.Err()
	}
}

func (q *Queue) start(ctx context.Context, req Request, finish func(bool)) {
	if req.SourceText != "" {
		if q.eval == nil {
			finish(false)
			return
		}
		if err := q.eval.RunScript(ctx, req.RequestURL, req.SourceText); err != nil {
			q.logger.Error("Error evaluating reloaded source",
				zap.String("request_url", req.RequestURL),
				zap.Error(err))
		}
		finish(true)
		return
	}

	if q.loader == nil {
		q.logger.Error("Reload not defined for this platform",
			zap.String("request_url", req.RequestURL))
		finish(false)
		return
	}
	q.loader.Load(ctx, req.RequestURL, finish)
}
