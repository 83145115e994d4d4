package offload

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"slayer/internal/logging"
	"slayer/internal/services"
)

// ProgressFunc lets handlers stream phase updates while they run.
type ProgressFunc func(fraction float64, phase string)

// Handler executes one action's work. Handlers must be safe to run either on
// the worker goroutine or inline in the caller's goroutine: fallback
// execution must produce identical output.
type Handler func(ctx context.Context, payload any, report ProgressFunc) (any, error)

// Progress is a non-terminal update delivered to registered callbacks. Zero
// or more may arrive before the terminal result.
type Progress struct {
	RequestID uint64
	Action    string
	Fraction  float64
	Phase     string
}

type request struct {
	ctx     context.Context
	id      uint64
	action  string
	payload any
	reply   chan response
}

type response struct {
	result any
	err    error
}

// Channel runs CPU-heavy work on a single background goroutine. Each request
// carries a monotonic id, so responses correlate structurally and concurrent
// requests for the same action are safe. A worker failure permanently
// disables the background path for the rest of the session; every subsequent
// call runs the handler inline with identical results.
type Channel struct {
	logger   *slog.Logger
	handlers map[string]Handler

	requests chan *request
	quit     chan struct{}
	failed   chan struct{}
	wg       sync.WaitGroup

	disabled  atomic.Bool
	disposed  atomic.Bool
	nextID    atomic.Uint64
	failOnce  sync.Once
	quitOnce  sync.Once
	cbToken   uint64
	mu        sync.Mutex
	callbacks map[string]map[uint64]func(Progress)
}

// Option configures channel construction.
type Option func(*Channel)

// WithoutWorker constructs the channel in its permanent fallback mode, as if
// worker startup had failed. Every request runs inline.
func WithoutWorker() Option {
	return func(c *Channel) {
		c.disabled.Store(true)
	}
}

// New builds a channel over the given action handlers and starts its worker
// goroutine unless fallback mode was requested.
func New(logger *slog.Logger, handlers map[string]Handler, opts ...Option) *Channel {
	c := &Channel{
		logger:    logging.NewComponentLogger(logger, "offload"),
		handlers:  handlers,
		requests:  make(chan *request),
		quit:      make(chan struct{}),
		failed:    make(chan struct{}),
		callbacks: map[string]map[uint64]func(Progress){},
	}
	for _, opt := range opts {
		opt(c)
	}
	if !c.disabled.Load() {
		c.wg.Add(1)
		go c.run()
	}
	return c
}

// Do submits work and blocks until the terminal response, context
// cancellation, or disposal. When the worker is unavailable the handler runs
// inline in the caller's goroutine.
func (c *Channel) Do(ctx context.Context, action string, payload any) (any, error) {
	handler, ok := c.handlers[action]
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "offload", "submit", "unknown action "+action, nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	id := c.nextID.Add(1)
	ctx = services.WithRequestID(ctx, id)

	if c.disabled.Load() || c.disposed.Load() {
		return c.runInline(ctx, id, action, handler, payload)
	}

	req := &request{ctx: ctx, id: id, action: action, payload: payload, reply: make(chan response, 1)}
	select {
	case c.requests <- req:
	case <-c.failed:
		return c.runInline(ctx, id, action, handler, payload)
	case <-c.quit:
		return c.runInline(ctx, id, action, handler, payload)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp := <-req.reply:
		if resp.err != nil && services.IsRecoverable(resp.err) {
			return c.runInline(ctx, id, action, handler, payload)
		}
		return resp.result, resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Disabled reports whether the channel is in its permanent fallback mode.
func (c *Channel) Disabled() bool {
	return c.disabled.Load()
}

// OnProgress registers a callback for one action's progress stream. The
// returned function unregisters it.
func (c *Channel) OnProgress(action string, fn func(Progress)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cbToken++
	token := c.cbToken
	if c.callbacks[action] == nil {
		c.callbacks[action] = map[uint64]func(Progress){}
	}
	c.callbacks[action][token] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.callbacks[action], token)
	}
}

// Dispose stops the worker goroutine. Work submitted afterwards runs inline.
func (c *Channel) Dispose() {
	c.disposed.Store(true)
	c.quitOnce.Do(func() { close(c.quit) })
	c.wg.Wait()
}

func (c *Channel) run() {
	defer c.wg.Done()
	for {
		select {
		case req := <-c.requests:
			c.execute(req)
			if c.disabled.Load() {
				return
			}
		case <-c.quit:
			return
		}
	}
}

func (c *Channel) execute(req *request) {
	defer func() {
		if r := recover(); r != nil {
			c.fail(req, r)
		}
	}()
	handler := c.handlers[req.action]
	result, err := handler(req.ctx, req.payload, c.reporter(req.id, req.action))
	req.reply <- response{result: result, err: err}
}

// fail marks the channel permanently unavailable after a worker crash. The
// in-flight request is answered with a recoverable error so its caller
// re-runs the work inline; later callers skip the worker entirely.
func (c *Channel) fail(req *request, cause any) {
	c.disabled.Store(true)
	c.failOnce.Do(func() { close(c.failed) })
	c.logger.Error("worker crashed, falling back to inline execution for the rest of the session",
		logging.String("action", req.action),
		logging.Uint64(logging.FieldRequestID, req.id),
		logging.Any("panic", cause))
	req.reply <- response{err: services.Wrap(services.ErrWorkerUnavailable, "offload", req.action, "worker crashed", nil)}
}

func (c *Channel) runInline(ctx context.Context, id uint64, action string, handler Handler, payload any) (any, error) {
	return handler(ctx, payload, c.reporter(id, action))
}

func (c *Channel) reporter(id uint64, action string) ProgressFunc {
	return func(fraction float64, phase string) {
		c.mu.Lock()
		fns := make([]func(Progress), 0, len(c.callbacks[action]))
		for _, fn := range c.callbacks[action] {
			fns = append(fns, fn)
		}
		c.mu.Unlock()
		update := Progress{RequestID: id, Action: action, Fraction: fraction, Phase: phase}
		for _, fn := range fns {
			fn(update)
		}
	}
}
