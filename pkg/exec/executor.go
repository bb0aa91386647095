// Package exec composes the triple store, rate limiter, and circuit
// breaker into the query pipeline described by the system's control flow:
// admission first, then a breaker-wrapped pattern match.
//
// Everything is explicitly constructed and owned; callers that want a
// process-wide shared pipeline share the Executor value itself instead of
// reaching for hidden static state.
package exec

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tripled-io/tripled/pkg/breaker"
	"github.com/tripled-io/tripled/pkg/ratelimit"
	"github.com/tripled-io/tripled/pkg/rdf"
	"github.com/tripled-io/tripled/pkg/store"
)

// storeKey identifies the triple store to the circuit breaker.
const storeKey = "triple-store"

// QueryOptions carries the admission hints supplied by the query
// dispatcher.
type QueryOptions struct {
	// Complex marks the query against the complex-query budget.
	Complex bool

	// Cost is the dispatcher's effort estimate. Zero means the neutral
	// default cost.
	Cost float64
}

// Executor runs pattern queries behind admission control.
type Executor struct {
	store   *store.TripleStore
	limiter *ratelimit.QueryLimiter
	breaker *breaker.Breaker
	log     *zap.Logger
}

// New creates an executor. A nil logger keeps the pipeline silent.
func New(s *store.TripleStore, l *ratelimit.QueryLimiter, b *breaker.Breaker, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{store: s, limiter: l, breaker: b, log: log}
}

// Execute checks admission for userID and, if allowed, matches the pattern
// against the store under the circuit breaker.
//
// A rate-limit rejection is not an error: the returned Decision carries the
// verdict and callers branch on Decision.Allowed. The error return is
// reserved for breaker rejections (breaker.ErrCircuitOpen) and downstream
// failures.
func (e *Executor) Execute(userID string, p rdf.Pattern, opts QueryOptions) ([]rdf.Triple, ratelimit.Decision, error) {
	queryID := uuid.NewString()

	decision := e.limiter.CheckRateLimit(userID, opts.Complex, opts.Cost)
	if !decision.Allowed {
		e.log.Warn("query rejected",
			zap.String("query_id", queryID),
			zap.String("user", userID),
			zap.Bool("circuit_open", decision.CircuitOpen),
			zap.Int64("retry_after_ms", decision.RetryAfterMs),
		)
		return nil, decision, nil
	}

	matches, err := breaker.Do(e.breaker, storeKey, func() ([]rdf.Triple, error) {
		return e.store.Match(p), nil
	})
	if err != nil {
		e.log.Error("query failed",
			zap.String("query_id", queryID),
			zap.String("user", userID),
			zap.Error(err),
		)
		return nil, decision, err
	}

	e.log.Debug("query executed",
		zap.String("query_id", queryID),
		zap.String("user", userID),
		zap.String("pattern", p.Key()),
		zap.Int("matches", len(matches)),
	)
	return matches, decision, nil
}

// Load ingests a batch of triples produced by an external translation step.
func (e *Executor) Load(triples []rdf.Triple) {
	e.store.AddAll(triples)
	e.log.Info("triples loaded", zap.Int("count", len(triples)))
}

// StoreStats exposes the store's statistics snapshot.
func (e *Executor) StoreStats() store.Stats {
	return e.store.Stats()
}

// SystemStats exposes the limiter's system-wide statistics.
func (e *Executor) SystemStats() ratelimit.SystemStats {
	return e.limiter.GetSystemStats()
}

// BreakerStatus reports the store circuit's state.
func (e *Executor) BreakerStatus() breaker.Status {
	return e.breaker.Status(storeKey)
}
