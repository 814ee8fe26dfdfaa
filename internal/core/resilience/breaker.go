package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/markdave123-py/Lectern/internal/logger"
)

// Breaker names for the external dependencies the pipeline talks to.
const (
	BreakerGeneration = "generation"
	BreakerEmbedding  = "embedding"
)

// TranscriptionBreaker returns the breaker name used for a transcription backend.
func TranscriptionBreaker(backend string) string {
	return "transcription:" + backend
}

// BreakerSettings configures every breaker created by a registry.
//
// Threshold: consecutive failures that open the breaker.
// Window:    monitoring window; failure counts reset when it elapses while closed.
// Timeout:   cool-down before a single half-open trial call is let through.
type BreakerSettings struct {
	Threshold int
	Window    time.Duration
	Timeout   time.Duration
}

// Breakers is a registry of circuit breakers keyed by dependency name.
// State is per process; separate instances keep separate counters.
type Breakers struct {
	mu       sync.Mutex
	settings BreakerSettings
	breakers map[string]*gobreaker.CircuitBreaker
	log      *logger.Logger
}

func NewBreakers(settings BreakerSettings, log *logger.Logger) *Breakers {
	if settings.Threshold <= 0 {
		settings.Threshold = 5
	}
	return &Breakers{
		settings: settings,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		log:      log.With("service", "Breakers"),
	}
}

// Get returns the breaker for name, creating it on first use.
func (b *Breakers) Get(name string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[name]; ok {
		return cb
	}
	threshold := uint32(b.settings.Threshold)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    b.settings.Window,
		Timeout:     b.settings.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	b.breakers[name] = cb
	return cb
}

// State reports the current state of the named breaker.
func (b *Breakers) State(name string) gobreaker.State {
	return b.Get(name).State()
}

// Execute runs fn through the named breaker. When the breaker is open fn is
// not called and an error satisfying IsOpen is returned.
func Execute[T any](b *Breakers, name string, fn func() (T, error)) (T, error) {
	out, err := b.Get(name).Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}

// IsOpen reports whether err was produced by a breaker rejecting the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Call runs op with retries behind the named breaker. The breaker sees one
// outcome per call, after the retry budget is spent, and an open breaker
// fails fast without trying op.
func Call[T any](ctx context.Context, b *Breakers, name string, p RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	return Execute(b, name, func() (T, error) {
		return WithRetry(ctx, p, op)
	})
}
