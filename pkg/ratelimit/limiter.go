// Package ratelimit implements per-user admission control for query
// execution.
//
// The limiter combines four mechanisms over one sliding window: a raw
// request cap, a separate budget for complex queries, burst detection over
// a trailing quarter-window, and cumulative cost accounting. Rejections
// feed a per-user violation counter; enough violations open the user's
// circuit, rejecting everything until the reset time elapses. A global
// emergency mode swaps in stricter limits for all users at once.
//
// Rejections are decisions, not errors: CheckRateLimit always returns a
// Decision and callers branch on Allowed.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrInvalidConfig indicates a nonsensical limiter configuration.
var ErrInvalidConfig = errors.New("invalid rate limit configuration")

// anonymousUser buckets requests that arrive without a user identifier.
const anonymousUser = "anonymous"

// defaultCost is charged for requests with a missing or unusable cost
// estimate.
const defaultCost = 1

// Config holds the limiter's admission thresholds. Zero fields are filled
// with defaults by New; negative fields are rejected.
type Config struct {
	// MaxRequests caps requests per user within one sliding window.
	MaxRequests int

	// WindowSize is the trailing interval over which requests are counted.
	WindowSize time.Duration

	// MaxComplexRequests caps requests flagged as complex within the window.
	MaxComplexRequests int

	// BurstAllowance caps requests within the trailing quarter-window.
	BurstAllowance int

	// CircuitBreakerThreshold is the violation count that opens a user's
	// circuit.
	CircuitBreakerThreshold int

	// CircuitBreakerResetTime is how long an opened circuit rejects all
	// requests before auto-resetting.
	CircuitBreakerResetTime time.Duration
}

// DefaultConfig returns the limiter defaults.
func DefaultConfig() Config {
	return Config{
		MaxRequests:             60,
		WindowSize:              time.Minute,
		MaxComplexRequests:      10,
		BurstAllowance:          15,
		CircuitBreakerThreshold: 5,
		CircuitBreakerResetTime: 5 * time.Minute,
	}
}

// EmergencyConfig returns the stricter limits applied when emergency mode
// is enabled without explicit overrides.
func EmergencyConfig() Config {
	return Config{
		MaxRequests:             10,
		WindowSize:              time.Minute,
		MaxComplexRequests:      2,
		BurstAllowance:          3,
		CircuitBreakerThreshold: 3,
		CircuitBreakerResetTime: 10 * time.Minute,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxRequests == 0 {
		c.MaxRequests = d.MaxRequests
	}
	if c.WindowSize == 0 {
		c.WindowSize = d.WindowSize
	}
	if c.MaxComplexRequests == 0 {
		c.MaxComplexRequests = d.MaxComplexRequests
	}
	if c.BurstAllowance == 0 {
		c.BurstAllowance = d.BurstAllowance
	}
	if c.CircuitBreakerThreshold == 0 {
		c.CircuitBreakerThreshold = d.CircuitBreakerThreshold
	}
	if c.CircuitBreakerResetTime == 0 {
		c.CircuitBreakerResetTime = d.CircuitBreakerResetTime
	}
	return c
}

// validate rejects configurations no admission decision could honor.
func (c Config) validate() error {
	if c.MaxRequests < 1 {
		return errors.Wrapf(ErrInvalidConfig, "max requests %d, need >= 1", c.MaxRequests)
	}
	if c.WindowSize <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "window size %v, need > 0", c.WindowSize)
	}
	if c.MaxComplexRequests < 1 {
		return errors.Wrapf(ErrInvalidConfig, "max complex requests %d, need >= 1", c.MaxComplexRequests)
	}
	if c.BurstAllowance < 1 {
		return errors.Wrapf(ErrInvalidConfig, "burst allowance %d, need >= 1", c.BurstAllowance)
	}
	if c.CircuitBreakerThreshold < 1 {
		return errors.Wrapf(ErrInvalidConfig, "circuit breaker threshold %d, need >= 1", c.CircuitBreakerThreshold)
	}
	if c.CircuitBreakerResetTime <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "circuit breaker reset time %v, need > 0", c.CircuitBreakerResetTime)
	}
	return nil
}

// costLimit derives the cumulative cost ceiling for one window.
func (c Config) costLimit() float64 {
	return 2 * float64(c.MaxRequests)
}

// Update carries a partial configuration change. Nil fields keep their
// current value.
type Update struct {
	MaxRequests             *int
	WindowSize              *time.Duration
	MaxComplexRequests      *int
	BurstAllowance          *int
	CircuitBreakerThreshold *int
	CircuitBreakerResetTime *time.Duration
}

// apply merges the update onto a config.
func (u Update) apply(c Config) Config {
	if u.MaxRequests != nil {
		c.MaxRequests = *u.MaxRequests
	}
	if u.WindowSize != nil {
		c.WindowSize = *u.WindowSize
	}
	if u.MaxComplexRequests != nil {
		c.MaxComplexRequests = *u.MaxComplexRequests
	}
	if u.BurstAllowance != nil {
		c.BurstAllowance = *u.BurstAllowance
	}
	if u.CircuitBreakerThreshold != nil {
		c.CircuitBreakerThreshold = *u.CircuitBreakerThreshold
	}
	if u.CircuitBreakerResetTime != nil {
		c.CircuitBreakerResetTime = *u.CircuitBreakerResetTime
	}
	return c
}

// Decision is the outcome of one admission check.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// RemainingRequests is the sliding-window remainder after this
	// decision, floored at zero.
	RemainingRequests int

	// RetryAfterMs advises how long to back off. Populated on rejection.
	RetryAfterMs int64

	// CircuitOpen reports whether the user's violation circuit is open.
	CircuitOpen bool
}

type requestEntry struct {
	at      time.Time
	complex bool
	cost    float64
}

type userRecord struct {
	entries         []requestEntry
	violations      int
	lastViolation   time.Time
	lastRequest     time.Time
	circuitOpen     bool
	circuitOpenedAt time.Time
}

// QueryLimiter is a thread-safe per-user admission controller.
type QueryLimiter struct {
	mu sync.Mutex

	active    Config // limits currently enforced
	base      Config // limits restored when emergency mode ends
	emergency bool

	timeNow func() time.Time
	users   map[string]*userRecord

	totalRequests   uint64
	totalViolations uint64
}

// New creates a limiter with real time. Zero config fields take defaults;
// negative or otherwise nonsensical fields fail with ErrInvalidConfig.
func New(cfg Config) (*QueryLimiter, error) {
	return NewWithClock(cfg, time.Now)
}

// NewWithClock creates a limiter with an injectable clock (for testing).
func NewWithClock(cfg Config, timeNow func() time.Time) (*QueryLimiter, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &QueryLimiter{
		active:  cfg,
		base:    cfg,
		timeNow: timeNow,
		users:   make(map[string]*userRecord),
	}, nil
}

// CheckRateLimit decides whether a request from userID may proceed.
//
// isComplex marks the request against the complex-query budget. cost is an
// optional effort estimate; non-finite, zero, or negative values are charged
// at the neutral default cost instead of being treated as errors. An empty
// userID maps to a shared anonymous bucket, never a failure.
func (l *QueryLimiter) CheckRateLimit(userID string, isComplex bool, cost float64) Decision {
	if userID == "" {
		userID = anonymousUser
	}
	if math.IsNaN(cost) || math.IsInf(cost, 0) || cost <= 0 {
		cost = defaultCost
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.timeNow()
	cfg := l.active

	rec, ok := l.users[userID]
	if !ok {
		rec = &userRecord{}
		l.users[userID] = rec
	}
	rec.lastRequest = now
	l.totalRequests++

	// An open violation circuit rejects everything until the reset time
	// elapses, then auto-resets with a clean violation count.
	if rec.circuitOpen {
		elapsed := now.Sub(rec.circuitOpenedAt)
		if elapsed < cfg.CircuitBreakerResetTime {
			return Decision{
				Allowed:      false,
				RetryAfterMs: (cfg.CircuitBreakerResetTime - elapsed).Milliseconds(),
				CircuitOpen:  true,
			}
		}
		rec.circuitOpen = false
		rec.violations = 0
	}

	rec.pruneExpired(now, cfg.WindowSize)

	windowCount := len(rec.entries)
	remaining := cfg.MaxRequests - windowCount - 1
	if remaining < 0 {
		remaining = 0
	}

	// Sliding window cap.
	if windowCount >= cfg.MaxRequests {
		return l.reject(rec, now, cfg, rec.windowRetryAfter(now, cfg.WindowSize))
	}

	// Complex-query budget.
	if isComplex && rec.complexCount() >= cfg.MaxComplexRequests {
		return l.reject(rec, now, cfg, rec.complexRetryAfter(now, cfg.WindowSize))
	}

	// Burst detection over the trailing quarter-window.
	burstWindow := cfg.WindowSize / 4
	if rec.countSince(now.Add(-burstWindow))+1 > cfg.BurstAllowance {
		return l.reject(rec, now, cfg, burstWindow)
	}

	// Cumulative cost ceiling, independent of raw request count.
	if rec.costSum()+cost > cfg.costLimit() {
		return l.reject(rec, now, cfg, rec.windowRetryAfter(now, cfg.WindowSize))
	}

	rec.entries = append(rec.entries, requestEntry{at: now, complex: isComplex, cost: cost})
	return Decision{Allowed: true, RemainingRequests: remaining}
}

// reject records a violation, opening the user's circuit at the threshold.
// Caller must hold the lock.
func (l *QueryLimiter) reject(rec *userRecord, now time.Time, cfg Config, retryAfter time.Duration) Decision {
	rec.violations++
	rec.lastViolation = now
	l.totalViolations++

	remaining := cfg.MaxRequests - len(rec.entries)
	if remaining < 0 {
		remaining = 0
	}

	if rec.violations >= cfg.CircuitBreakerThreshold {
		rec.circuitOpen = true
		rec.circuitOpenedAt = now
		return Decision{
			Allowed:           false,
			RemainingRequests: remaining,
			RetryAfterMs:      cfg.CircuitBreakerResetTime.Milliseconds(),
			CircuitOpen:       true,
		}
	}

	if retryAfter <= 0 {
		retryAfter = time.Millisecond
	}
	return Decision{
		Allowed:           false,
		RemainingRequests: remaining,
		RetryAfterMs:      retryAfter.Milliseconds(),
	}
}

// pruneExpired drops entries older than the window. Timestamps are ordered,
// so expired entries form a prefix.
func (r *userRecord) pruneExpired(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	expired := 0
	for _, e := range r.entries {
		if !e.at.After(cutoff) {
			expired++
		} else {
			break
		}
	}
	if expired > 0 {
		r.entries = append(r.entries[:0], r.entries[expired:]...)
	}
}

func (r *userRecord) complexCount() int {
	n := 0
	for _, e := range r.entries {
		if e.complex {
			n++
		}
	}
	return n
}

func (r *userRecord) costSum() float64 {
	sum := 0.0
	for _, e := range r.entries {
		sum += e.cost
	}
	return sum
}

func (r *userRecord) countSince(cutoff time.Time) int {
	n := 0
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].at.After(cutoff) {
			n++
		} else {
			break
		}
	}
	return n
}

// windowRetryAfter is the time until the oldest request leaves the window.
func (r *userRecord) windowRetryAfter(now time.Time, window time.Duration) time.Duration {
	if len(r.entries) == 0 {
		return window
	}
	return window - now.Sub(r.entries[0].at)
}

// complexRetryAfter is the time until the oldest complex request leaves the
// window.
func (r *userRecord) complexRetryAfter(now time.Time, window time.Duration) time.Duration {
	for _, e := range r.entries {
		if e.complex {
			return window - now.Sub(e.at)
		}
	}
	return window
}

// UserStatus describes one user's admission state.
type UserStatus struct {
	RequestsInWindow int       // Requests within the current window
	Violations       int       // Running violation count
	LastRequest      time.Time // Time of the most recent check
	CircuitOpen      bool      // Whether the violation circuit is open
}

// GetUserStatus reports admission state for userID. Unknown users report a
// zero status; GetUserStatus never fails, including for empty identifiers.
func (l *QueryLimiter) GetUserStatus(userID string) UserStatus {
	if userID == "" {
		userID = anonymousUser
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.users[userID]
	if !ok {
		return UserStatus{}
	}
	rec.pruneExpired(l.timeNow(), l.active.WindowSize)
	return UserStatus{
		RequestsInWindow: len(rec.entries),
		Violations:       rec.violations,
		LastRequest:      rec.lastRequest,
		CircuitOpen:      rec.circuitOpen,
	}
}

// SystemStats aggregates limiter state across all users.
type SystemStats struct {
	ActiveUsers     int    // Tracked user records
	TotalRequests   uint64 // Admission checks performed
	TotalViolations uint64 // Rejections recorded
	OpenCircuits    int    // Users with an open violation circuit
	EmergencyMode   bool   // Whether emergency limits are active
}

// GetSystemStats returns a snapshot of system-wide limiter statistics.
func (l *QueryLimiter) GetSystemStats() SystemStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	open := 0
	for _, rec := range l.users {
		if rec.circuitOpen {
			open++
		}
	}
	return SystemStats{
		ActiveUsers:     len(l.users),
		TotalRequests:   l.totalRequests,
		TotalViolations: l.totalViolations,
		OpenCircuits:    open,
		EmergencyMode:   l.emergency,
	}
}

// ResetUserLimits clears all tracked state for one user, including an open
// circuit.
func (l *QueryLimiter) ResetUserLimits(userID string) {
	if userID == "" {
		userID = anonymousUser
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.users, userID)
}

// UpdateConfig merges a partial configuration change into the base limits.
// When emergency mode is off the merged limits take effect immediately;
// when it is on they take effect once emergency mode is disabled. Merged
// values that make no sense fail with ErrInvalidConfig and leave the
// configuration untouched.
func (l *QueryLimiter) UpdateConfig(u Update) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	merged := u.apply(l.base)
	if err := merged.validate(); err != nil {
		return err
	}
	l.base = merged
	if !l.emergency {
		l.active = merged
	}
	return nil
}

// SetEmergencyMode toggles global emergency limits. When enabling, a nil
// overrides selects EmergencyConfig; a non-nil overrides is validated and
// used as-is (zero fields filled with emergency defaults). Disabling
// restores the configuration in force before the emergency.
func (l *QueryLimiter) SetEmergencyMode(enabled bool, overrides *Config) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !enabled {
		l.emergency = false
		l.active = l.base
		return nil
	}

	strict := EmergencyConfig()
	if overrides != nil {
		strict = mergeEmergency(*overrides)
		if err := strict.validate(); err != nil {
			return err
		}
	}
	l.emergency = true
	l.active = strict
	return nil
}

// mergeEmergency fills zero override fields with emergency defaults.
func mergeEmergency(c Config) Config {
	d := EmergencyConfig()
	if c.MaxRequests == 0 {
		c.MaxRequests = d.MaxRequests
	}
	if c.WindowSize == 0 {
		c.WindowSize = d.WindowSize
	}
	if c.MaxComplexRequests == 0 {
		c.MaxComplexRequests = d.MaxComplexRequests
	}
	if c.BurstAllowance == 0 {
		c.BurstAllowance = d.BurstAllowance
	}
	if c.CircuitBreakerThreshold == 0 {
		c.CircuitBreakerThreshold = d.CircuitBreakerThreshold
	}
	if c.CircuitBreakerResetTime == 0 {
		c.CircuitBreakerResetTime = d.CircuitBreakerResetTime
	}
	return c
}
