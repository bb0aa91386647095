// Package breaker provides a per-key circuit breaker.
//
// Each key tracks consecutive failures of a wrapped operation. Once the
// failure count reaches the configured threshold the key's circuit opens
// and further calls fail fast with ErrCircuitOpen instead of invoking the
// operation. After the cooldown elapses, the next call closes the circuit
// speculatively and re-opens it if the operation fails again; there is no
// separate half-open probe state.
package breaker

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultFailureThreshold = 5
	DefaultCooldown         = 60 * time.Second
)

// ErrCircuitOpen is returned when a call is rejected because the key's
// circuit is open. The wrapped operation is not invoked. Check with
// errors.Is.
var ErrCircuitOpen = errors.New("circuit open")

// Config holds the breaker's fixed construction-time settings.
type Config struct {
	// FailureThreshold is the consecutive-failure count that opens a
	// circuit. Zero or negative selects DefaultFailureThreshold.
	FailureThreshold int

	// Cooldown is how long an open circuit rejects calls before the next
	// attempt is allowed through. Zero or negative selects DefaultCooldown.
	Cooldown time.Duration
}

// Breaker is a thread-safe per-key failure tracker.
type Breaker struct {
	mu      sync.Mutex
	cfg     Config
	timeNow func() time.Time
	keys    map[string]*keyState
}

type keyState struct {
	failures int
	open     bool
	openedAt time.Time
}

// New creates a breaker with real time.
func New(cfg Config) *Breaker {
	return NewWithClock(cfg, time.Now)
}

// NewWithClock creates a breaker with an injectable clock (for testing).
func NewWithClock(cfg Config, timeNow func() time.Time) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	return &Breaker{
		cfg:     cfg,
		timeNow: timeNow,
		keys:    make(map[string]*keyState),
	}
}

// Execute runs op under the circuit for key.
//
// If the circuit is open and the cooldown has not elapsed, Execute returns
// ErrCircuitOpen without invoking op. Otherwise op runs: success resets the
// key's failure count and closes the circuit; failure increments the count
// and opens the circuit once the threshold is reached. The error from op is
// returned to the caller either way.
func (b *Breaker) Execute(key string, op func() error) error {
	if err := b.admit(key); err != nil {
		return err
	}

	err := op()
	b.record(key, err == nil)
	return err
}

// Do runs op under the circuit for key and returns its value. Like Execute,
// but for operations that produce a result.
func Do[T any](b *Breaker, key string, op func() (T, error)) (T, error) {
	if err := b.admit(key); err != nil {
		var zero T
		return zero, err
	}

	v, err := op()
	b.record(key, err == nil)
	return v, err
}

// admit checks the circuit state and closes an open circuit speculatively
// when the cooldown has elapsed.
func (b *Breaker) admit(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.keys[key]
	if !ok || !st.open {
		return nil
	}
	if b.timeNow().Sub(st.openedAt) < b.cfg.Cooldown {
		return errors.Wrapf(ErrCircuitOpen, "key %q", key)
	}

	// Cooldown over: let this attempt through with a clean slate. A
	// failure will re-open the circuit via record.
	st.open = false
	st.failures = 0
	return nil
}

// record updates the key's state after an attempt.
func (b *Breaker) record(key string, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.keys[key]
	if !ok {
		st = &keyState{}
		b.keys[key] = st
	}

	if success {
		st.failures = 0
		st.open = false
		return
	}

	st.failures++
	if st.failures >= b.cfg.FailureThreshold {
		st.open = true
		st.openedAt = b.timeNow()
	}
}

// Status describes one key's circuit for observability.
type Status struct {
	Open     bool      // Whether the circuit is currently open
	Failures int       // Consecutive failure count
	OpenedAt time.Time // When the circuit opened (zero if never)
}

// Status reports the circuit state for key. Unknown keys report a closed
// circuit with zero failures; Status never fails.
func (b *Breaker) Status(key string) Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.keys[key]
	if !ok {
		return Status{}
	}
	return Status{Open: st.open, Failures: st.failures, OpenedAt: st.openedAt}
}
