// Package loader keeps the state of one remotely fetched resource: the last
// good payload, a load status and a user-facing error message.
package loader

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"concesionario/internal/apperr"
	applog "concesionario/internal/log"
)

// Status of a loader.
type Status string

const (
	StatusNotLoaded Status = "not-loaded"
	StatusLoading   Status = "loading"
	StatusLoaded    Status = "loaded"
	StatusError     Status = "error"
)

// Policy decides what happens when loads overlap.
type Policy int

const (
	// LastResolved applies every result in the order fetches complete.
	LastResolved Policy = iota
	// DiscardStale drops results of loads issued before the newest applied one.
	DiscardStale
)

// Source fetches one payload.
type Source[T any] interface {
	Fetch(ctx context.Context) (T, error)
}

// SourceFunc adapts a function to a Source.
type SourceFunc[T any] func(ctx context.Context) (T, error)

// Fetch calls f(ctx).
func (f SourceFunc[T]) Fetch(ctx context.Context) (T, error) {
	return f(ctx)
}

// State is a snapshot of a loader. Data is only meaningful when HasData is
// true; Err is only set while Status is StatusError.
type State[T any] struct {
	Data    T
	HasData bool
	Status  Status
	Err     string
	// Cause is the underlying failure, kept for diagnostics. It is never
	// shown to users.
	Cause error
}

// Loading reports whether a load is in flight.
func (s State[T]) Loading() bool {
	return s.Status == StatusLoading
}

// Option configures a Loader.
type Option[T any] func(*Loader[T])

// WithLogger sets the logger used for load outcomes.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(l *Loader[T]) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithName labels the loader in logs.
func WithName[T any](name string) Option[T] {
	return func(l *Loader[T]) { l.name = name }
}

// WithObserver registers fn to receive every state change. fn runs while the
// loader is locked and must not call back into it.
func WithObserver[T any](fn func(State[T])) Option[T] {
	return func(l *Loader[T]) { l.observer = fn }
}

// WithPolicy selects the overlapping-load policy.
func WithPolicy[T any](p Policy) Option[T] {
	return func(l *Loader[T]) { l.policy = p }
}

// WithoutInitialLoad disables the load New starts on creation.
func WithoutInitialLoad[T any]() Option[T] {
	return func(l *Loader[T]) { l.lazy = true }
}

// Loader fetches a resource from a Source and exposes its state. It is safe
// for concurrent use.
type Loader[T any] struct {
	src      Source[T]
	message  string
	name     string
	logger   *slog.Logger
	observer func(State[T])
	policy   Policy
	lazy     bool

	mu       sync.Mutex
	idle     *sync.Cond
	state    State[T]
	issued   uint64
	applied  uint64
	inflight int
}

// New creates a loader for src and, unless WithoutInitialLoad is given,
// starts exactly one load in the background. message is what users see when
// a load fails.
func New[T any](ctx context.Context, src Source[T], message string, opts ...Option[T]) *Loader[T] {
	l := &Loader[T]{
		src:     src,
		message: message,
		logger:  slog.Default(),
		state:   State[T]{Status: StatusNotLoaded},
	}
	l.idle = sync.NewCond(&l.mu)
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(applog.FieldComponent, applog.ComponentLoader)
	if !l.lazy {
		l.Go(ctx)
	}
	return l
}

// Load fetches the resource and blocks until the result is applied. On
// failure the previous data is kept and the state carries the configured
// message.
func (l *Loader[T]) Load(ctx context.Context) State[T] {
	seq := l.begin()
	return l.run(ctx, seq)
}

// Refresh is Load under the name the UI uses.
func (l *Loader[T]) Refresh(ctx context.Context) State[T] {
	return l.Load(ctx)
}

// Go starts a load without waiting for it. The status is already
// StatusLoading when Go returns.
func (l *Loader[T]) Go(ctx context.Context) {
	seq := l.begin()
	go l.run(ctx, seq)
}

// Wait blocks until no load is in flight.
func (l *Loader[T]) Wait() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.inflight > 0 {
		l.idle.Wait()
	}
}

// State returns the current snapshot.
func (l *Loader[T]) State() State[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loader[T]) begin() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.issued++
	l.inflight++
	l.state.Status = StatusLoading
	l.state.Err = ""
	l.state.Cause = nil
	l.notify()
	return l.issued
}

func (l *Loader[T]) run(ctx context.Context, seq uint64) State[T] {
	start := time.Now()
	data, err := l.src.Fetch(ctx)
	return l.finish(ctx, seq, data, err, time.Since(start))
}

func (l *Loader[T]) finish(ctx context.Context, seq uint64, data T, err error, elapsed time.Duration) State[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer func() {
		l.inflight--
		if l.inflight == 0 {
			l.idle.Broadcast()
		}
	}()

	if l.policy == DiscardStale && seq < l.applied {
		l.logger.DebugContext(ctx, "Discarding stale load result",
			applog.FieldResource, l.name, "seq", seq, "applied_seq", l.applied)
		return l.state
	}
	if seq > l.applied {
		l.applied = seq
	}

	if err != nil {
		l.state.Status = StatusError
		l.state.Err = l.message
		l.state.Cause = err
		l.logger.WarnContext(ctx, "Resource load failed",
			applog.FieldResource, l.name,
			applog.FieldStatus, string(StatusError),
			"kind", apperr.Kind(err),
			applog.FieldError, err)
	} else {
		l.state.Data = data
		l.state.HasData = true
		l.state.Status = StatusLoaded
		l.logger.DebugContext(ctx, "Resource loaded",
			applog.FieldResource, l.name,
			applog.FieldDuration, elapsed.Milliseconds())
	}
	l.notify()
	return l.state
}

func (l *Loader[T]) notify() {
	if l.observer != nil {
		l.observer(l.state)
	}
}
