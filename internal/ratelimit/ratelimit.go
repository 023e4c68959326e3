// Package ratelimit implements fixed-window request quotas per caller and
// per (caller, resource class).
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"city-planner/backend/internal/logging"
)

// Tier is a global quota.
type Tier struct {
	Name        string
	MaxRequests int
}

var (
	Free    = Tier{Name: "free", MaxRequests: 100}
	Premium = Tier{Name: "premium", MaxRequests: 1000}
)

// ParseTier maps a config string to a Tier, defaulting to Free.
func ParseTier(name string) Tier {
	if strings.EqualFold(strings.TrimSpace(name), Premium.Name) {
		return Premium
	}
	return Free
}

// Resource classes with their own quotas.
const (
	ClassFlight   = "flight"
	ClassHotel    = "hotel"
	ClassCurrency = "currency"
)

// DefaultClassLimits are the per-hour quotas for expensive calls.
func DefaultClassLimits() map[string]int {
	return map[string]int{
		ClassFlight:   20,
		ClassHotel:    20,
		ClassCurrency: 50,
	}
}

const (
	DefaultWindow        = time.Hour
	DefaultSweepInterval = 10 * time.Minute
)

// Window is the counter for one key.
type Window struct {
	Count        int       `json:"count"`
	ResetAt      time.Time `json:"reset_at"`
	FirstRequest time.Time `json:"first_request"`
}

// Result is the outcome of a check. Denials are results, not errors.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	Message   string    `json:"message,omitempty"`
}

// RetryAfter returns the wait until the window resets, rounded up to a second.
func (r Result) RetryAfter(now time.Time) int {
	return int(math.Ceil(r.ResetAt.Sub(now).Seconds()))
}

// Limiter keeps fixed windows in memory. Check and CheckClass are atomic.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*Window

	tier    Tier
	window  time.Duration
	classes map[string]int
	now     func() time.Time
	logger  *logging.Logger

	denials metric.Int64Counter
}

// Option configures a Limiter.
type Option func(*Limiter)

func WithTier(t Tier) Option {
	return func(l *Limiter) { l.tier = t }
}

func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.window = d
		}
	}
}

// WithClassLimits replaces the per-class quotas.
func WithClassLimits(limits map[string]int) Option {
	return func(l *Limiter) {
		if limits == nil {
			return
		}
		l.classes = make(map[string]int, len(limits))
		for k, v := range limits {
			l.classes[strings.ToLower(k)] = v
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func WithLogger(logger *logging.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// New creates a Limiter on the free tier with the default class quotas.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		windows: make(map[string]*Window),
		tier:    Free,
		window:  DefaultWindow,
		classes: DefaultClassLimits(),
		now:     time.Now,
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}

	meter := otel.Meter("city-planner/backend/internal/ratelimit")
	l.denials, _ = meter.Int64Counter("ratelimit.denials", metric.WithDescription("Requests denied by the rate limiter"))
	return l
}

// Check applies the global tier quota to identifier.
func (l *Limiter) Check(identifier string) Result {
	r := l.take(identifier, l.tier.MaxRequests)
	if !r.Allowed {
		r.Message = fmt.Sprintf("Rate limit exceeded. Try again in %d minute(s).", minutesUntil(r.ResetAt, l.now()))
		l.denied("global", identifier)
	}
	return r
}

// CheckClass applies the quota of a resource class. Classes without a quota
// are unlimited and report Remaining -1.
func (l *Limiter) CheckClass(identifier, class string) Result {
	quota, ok := l.classes[class]
	if !ok {
		return Result{Allowed: true, Remaining: -1}
	}
	r := l.take(identifier+":"+class, quota)
	if !r.Allowed {
		r.Message = fmt.Sprintf("%s rate limit exceeded (%d/hour). Try again in %d minute(s).", class, quota, minutesUntil(r.ResetAt, l.now()))
		l.denied(class, identifier)
	}
	return r
}

func (l *Limiter) take(key string, quota int) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.ResetAt) {
		w = &Window{ResetAt: now.Add(l.window), FirstRequest: now}
		l.windows[key] = w
		if quota <= 0 {
			return Result{Allowed: false, Remaining: 0, ResetAt: w.ResetAt}
		}
		w.Count = 1
		return Result{Allowed: true, Remaining: quota - 1, ResetAt: w.ResetAt}
	}
	if w.Count >= quota {
		return Result{Allowed: false, Remaining: 0, ResetAt: w.ResetAt}
	}
	w.Count++
	return Result{Allowed: true, Remaining: quota - w.Count, ResetAt: w.ResetAt}
}

func (l *Limiter) denied(scope, identifier string) {
	l.denials.Add(context.Background(), 1, metric.WithAttributes(attribute.String("scope", scope)))
	l.logger.Warn("rate limit exceeded", "scope", scope, "identifier", identifier)
}

func minutesUntil(t, now time.Time) int {
	return int(math.Ceil(t.Sub(now).Minutes()))
}

// Stats holds the windows of one identifier. Nil entries have no window.
type Stats struct {
	Global  *Window            `json:"global"`
	Classes map[string]*Window `json:"classes"`
}

// Stats returns copies of the global and per-class windows of identifier.
func (l *Limiter) Stats(identifier string) Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Stats{Global: copyWindow(l.windows[identifier]), Classes: make(map[string]*Window, len(l.classes))}
	for class := range l.classes {
		s.Classes[class] = copyWindow(l.windows[identifier+":"+class])
	}
	return s
}

func copyWindow(w *Window) *Window {
	if w == nil {
		return nil
	}
	c := *w
	return &c
}

// Classes returns the configured class names in order.
func (l *Limiter) Classes() []string {
	names := make([]string, 0, len(l.classes))
	for k := range l.classes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Reset drops the global and every class window of identifier.
func (l *Limiter) Reset(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.windows, identifier)
	for class := range l.classes {
		delete(l.windows, identifier+":"+class)
	}
	l.logger.Info("reset rate limits", "identifier", identifier)
}

// Sweep drops windows that have passed their reset time.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for k, w := range l.windows {
		if now.After(w.ResetAt) {
			delete(l.windows, k)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done.
func (l *Limiter) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := l.Sweep(); n > 0 {
					l.logger.Debug("swept expired rate limit windows", "count", n)
				}
			}
		}
	}()
}

// Identifier returns "user:<id>" when userID is set, otherwise "ip:<ip>".
func Identifier(userID, ip string) string {
	if userID != "" {
		return "user:" + userID
	}
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}
