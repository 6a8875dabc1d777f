// Package loop provides the single cooperative event loop that owns all board
// state. Work is posted as closures and executed one at a time on the loop
// goroutine; remote calls run elsewhere and post their continuation back.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/thenoetrevino/livekanban/internal/loop"

// ErrStopped is returned when work is submitted to a loop that has exited.
var ErrStopped = errors.New("event loop stopped")

// Timer is a cancellable scheduled callback.
type Timer interface {
	Stop() bool
}

// Loop serializes every state mutation onto one goroutine.
type Loop struct {
	clock    clockwork.Clock
	queue    chan func()
	done     chan struct{}
	stopOnce sync.Once
	tracer   trace.Tracer
	logger   *slog.Logger
	inflight atomic.Int64
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(l *Loop) { l.clock = c }
}

// WithQueueSize sets how many closures may be queued before Post blocks.
func WithQueueSize(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.queue = make(chan func(), n)
		}
	}
}

// WithTracerProvider sets the provider used for remote call spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(l *Loop) { l.tracer = tp.Tracer(tracerName) }
}

// WithLogger sets the logger used for recovered handler panics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// New creates a loop. It does nothing until Run is called.
func New(opts ...Option) *Loop {
	l := &Loop{
		clock:  clockwork.NewRealClock(),
		queue:  make(chan func(), 256),
		done:   make(chan struct{}),
		tracer: otel.GetTracerProvider().Tracer(tracerName),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Clock returns the clock used for timers.
func (l *Loop) Clock() clockwork.Clock {
	return l.clock
}

// Run executes queued work until ctx is cancelled. Run returns nil on a
// normal shutdown; queued work that has not started is discarded.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-l.queue:
			l.exec(fn)
		}
	}
}

// Done is closed once the loop has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// exec runs one closure, recovering panics so a faulty handler cannot take
// down unrelated state.
func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop handler panicked", "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

// Post queues fn for execution on the loop. It reports false when the loop
// has already stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case <-l.done:
		return false
	case l.queue <- fn:
		return true
	}
}

// Do runs fn on the loop and waits for it to finish.
// It must not be called from the loop goroutine.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AfterFunc schedules fn to run on the loop after d.
// Stopping the returned timer before it fires prevents fn from being queued.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	return l.clock.AfterFunc(d, func() {
		l.Post(fn)
	})
}

// Inflight returns the number of remote calls started with Await that have
// not yet delivered their result to the loop.
func (l *Loop) Inflight() int64 {
	return l.inflight.Load()
}

// Await runs call on its own goroutine and delivers the result to then on
// the loop. The call is wrapped in a span named name. Once started a call is
// never cancelled by the loop; ctx is passed through unchanged.
func Await[T any](ctx context.Context, l *Loop, name string, call func(context.Context) (T, error), then func(T, error)) {
	l.inflight.Add(1)
	go func() {
		spanCtx, span := l.tracer.Start(ctx, name)
		v, err := call(spanCtx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if !l.Post(func() {
			l.inflight.Add(-1)
			then(v, err)
		}) {
			l.inflight.Add(-1)
		}
	}()
}

// AwaitErr is Await for calls that only return an error.
func AwaitErr(ctx context.Context, l *Loop, name string, call func(context.Context) error, then func(error)) {
	Await(ctx, l, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, call(ctx)
	}, func(_ struct{}, err error) {
		then(err)
	})
}
