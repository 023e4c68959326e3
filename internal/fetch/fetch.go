// Package fetch runs external lookups through a cache, a per-class rate
// limit and an ordered chain of fallback strategies.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"city-planner/backend/internal/cache"
	"city-planner/backend/internal/logging"
	"city-planner/backend/internal/ratelimit"
)

// ErrInvalidInput marks a request that failed validation.
var ErrInvalidInput = errors.New("invalid input")

// Source tags where data came from.
type Source string

const (
	SourcePrimary Source = "primary-live"
	SourceSearch  Source = "fallback-live"
	SourceStatic  Source = "static-fallback"
)

// Status is the outcome of a fetch.
type Status string

const (
	StatusOK          Status = "ok"
	StatusRateLimited Status = "rate_limited"
	StatusFailed      Status = "failed"
)

const DefaultTimeout = 10 * time.Second

// Result is what every fetch returns. Only StatusOK carries Data.
type Result[T any] struct {
	Status    Status    `json:"status"`
	Source    Source    `json:"source,omitempty"`
	Data      T         `json:"data"`
	Cached    bool      `json:"cached"`
	FetchedAt time.Time `json:"fetched_at,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// OK reports whether the result carries data.
func (r Result[T]) OK() bool {
	return r.Status == StatusOK
}

// Strategy is one tier of a fallback chain.
type Strategy[P, T any] interface {
	Name() string
	Source() Source
	Attempt(ctx context.Context, params P) (T, error)
}

type funcStrategy[P, T any] struct {
	name   string
	source Source
	fn     func(context.Context, P) (T, error)
}

func (s funcStrategy[P, T]) Name() string   { return s.name }
func (s funcStrategy[P, T]) Source() Source { return s.source }
func (s funcStrategy[P, T]) Attempt(ctx context.Context, p P) (T, error) {
	return s.fn(ctx, p)
}

// NewStrategy adapts a function to a Strategy.
func NewStrategy[P, T any](name string, source Source, fn func(context.Context, P) (T, error)) Strategy[P, T] {
	return funcStrategy[P, T]{name: name, source: source, fn: fn}
}

// Operation describes one cached, rate-limited, fallback-backed lookup.
type Operation[P, T any] struct {
	Name string
	// Class selects a rate limit quota; empty means unlimited.
	Class   string
	TTL     time.Duration
	Timeout time.Duration
	// Key returns the parameters that identify a cache entry.
	Key      func(P) map[string]any
	Validate func(P) error
	// Usable rejects empty or degenerate results so the next tier runs.
	Usable     func(T) bool
	Strategies []Strategy[P, T]
}

// Adapter holds the shared cache and limiter.
type Adapter struct {
	cache   *cache.Cache
	limiter *ratelimit.Limiter
	timeout time.Duration
	logger  *logging.Logger
	now     func() time.Time

	fallbacks metric.Int64Counter
	failures  metric.Int64Counter
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTimeout sets the default per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithLogger(l *logging.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// NewAdapter creates an Adapter.
func NewAdapter(c *cache.Cache, l *ratelimit.Limiter, opts ...Option) *Adapter {
	a := &Adapter{
		cache:   c,
		limiter: l,
		timeout: DefaultTimeout,
		logger:  logging.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	meter := otel.Meter("city-planner/backend/internal/fetch")
	a.fallbacks, _ = meter.Int64Counter("fetch.fallbacks", metric.WithDescription("Fetches served by a non-primary strategy"))
	a.failures, _ = meter.Int64Counter("fetch.attempt_failures", metric.WithDescription("Strategy attempts that failed"))
	return a
}

// Cache returns the adapter's cache.
func (a *Adapter) Cache() *cache.Cache { return a.cache }

// Limiter returns the adapter's limiter.
func (a *Adapter) Limiter() *ratelimit.Limiter { return a.limiter }

type envelope[T any] struct {
	Source    Source    `json:"source"`
	Data      T         `json:"data"`
	FetchedAt time.Time `json:"fetched_at"`
}

// outcome carries a non-cacheable result out of cache.GetOrSet.
type outcome struct {
	status  Status
	message string
}

func (o *outcome) Error() string { return o.message }

// Fetch runs op for params on behalf of identity. The returned error is
// non-nil only for invalid input; rate limiting and exhausted strategies are
// reported through Result.Status.
func Fetch[P, T any](ctx context.Context, a *Adapter, op Operation[P, T], identity string, params P) (Result[T], error) {
	if op.Validate != nil {
		if err := op.Validate(params); err != nil {
			return Result[T]{}, fmt.Errorf("%s: %w: %w", op.Name, ErrInvalidInput, err)
		}
	}

	var keyParams map[string]any
	if op.Key != nil {
		keyParams = op.Key(params)
	}
	key := cache.Key(op.Name, keyParams)

	fresh := false
	env, err := cache.GetOrSet(ctx, a.cache, key, ttlOf(op), func(ctx context.Context) (envelope[T], error) {
		fresh = true
		return run(ctx, a, op, identity, params)
	})
	if err != nil {
		var o *outcome
		if errors.As(err, &o) {
			return Result[T]{Status: o.status, Message: o.message}, nil
		}
		return Result[T]{Status: StatusFailed, Message: err.Error()}, nil
	}

	return Result[T]{
		Status:    StatusOK,
		Source:    env.Source,
		Data:      env.Data,
		Cached:    !fresh,
		FetchedAt: env.FetchedAt,
	}, nil
}

func ttlOf[P, T any](op Operation[P, T]) time.Duration {
	if op.TTL > 0 {
		return op.TTL
	}
	return cache.TTLDefault
}

func run[P, T any](ctx context.Context, a *Adapter, op Operation[P, T], identity string, params P) (envelope[T], error) {
	if op.Class != "" && a.limiter != nil {
		if r := a.limiter.CheckClass(identity, op.Class); !r.Allowed {
			return envelope[T]{}, &outcome{status: StatusRateLimited, message: r.Message}
		}
	}

	timeout := op.Timeout
	if timeout <= 0 {
		timeout = a.timeout
	}

	lastErr := errors.New("no strategies configured")
	for i, s := range op.Strategies {
		data, err := attempt(ctx, s, timeout, params)
		if err == nil && op.Usable != nil && !op.Usable(data) {
			err = errors.New("empty result")
		}
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", s.Name(), err)
			a.failures.Add(ctx, 1, metric.WithAttributes(
				attribute.String("operation", op.Name),
				attribute.String("strategy", s.Name()),
			))
			a.logger.Warn("fetch strategy failed", "operation", op.Name, "strategy", s.Name(), "error", err)
			continue
		}

		if i > 0 {
			a.fallbacks.Add(ctx, 1, metric.WithAttributes(
				attribute.String("operation", op.Name),
				attribute.String("source", string(s.Source())),
			))
			a.logger.Info("served by fallback", "operation", op.Name, "strategy", s.Name(), "source", s.Source())
		}
		return envelope[T]{Source: s.Source(), Data: data, FetchedAt: a.now()}, nil
	}

	return envelope[T]{}, &outcome{status: StatusFailed, message: lastErr.Error()}
}

func attempt[P, T any](ctx context.Context, s Strategy[P, T], timeout time.Duration, params P) (data T, err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Attempt(ctx, params)
}
