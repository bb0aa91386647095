package exec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripled-io/tripled/pkg/breaker"
	"github.com/tripled-io/tripled/pkg/ratelimit"
	"github.com/tripled-io/tripled/pkg/rdf"
	"github.com/tripled-io/tripled/pkg/store"
)

func newExecutor(t *testing.T, limiterCfg ratelimit.Config) *Executor {
	t.Helper()
	s, err := store.New(store.Options{})
	require.NoError(t, err)
	l, err := ratelimit.New(limiterCfg)
	require.NoError(t, err)
	b := breaker.New(breaker.Config{})
	return New(s, l, b, nil)
}

func TestExecuteMatchesPattern(t *testing.T) {
	ex := newExecutor(t, ratelimit.Config{})

	alice := rdf.MustIRI("https://example.org/alice")
	knows := rdf.MustIRI("https://example.org/vocab/knows")
	bob := rdf.MustIRI("https://example.org/bob")
	ex.Load([]rdf.Triple{
		rdf.NewTriple(alice, knows, bob),
		rdf.NewTriple(bob, knows, alice),
	})

	matches, decision, err := ex.Execute("u1", rdf.Pattern{S: &alice}, QueryOptions{})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	require.Len(t, matches, 1)
	assert.Equal(t, rdf.NewTriple(alice, knows, bob), matches[0])
}

func TestExecuteRejectionIsNotAnError(t *testing.T) {
	ex := newExecutor(t, ratelimit.Config{
		MaxRequests:    1,
		WindowSize:     time.Minute,
		BurstAllowance: 1,
	})

	_, first, err := ex.Execute("u1", rdf.Pattern{}, QueryOptions{})
	require.NoError(t, err)
	require.True(t, first.Allowed)

	matches, second, err := ex.Execute("u1", rdf.Pattern{}, QueryOptions{})
	require.NoError(t, err, "a rate-limit rejection is a decision, not an error")
	assert.False(t, second.Allowed)
	assert.Nil(t, matches)
	assert.Greater(t, second.RetryAfterMs, int64(0))
}

func TestExecuteChargesComplexBudget(t *testing.T) {
	ex := newExecutor(t, ratelimit.Config{
		MaxRequests:        100,
		WindowSize:         time.Minute,
		MaxComplexRequests: 1,
		BurstAllowance:     100,
	})

	_, d, err := ex.Execute("u1", rdf.Pattern{}, QueryOptions{Complex: true})
	require.NoError(t, err)
	require.True(t, d.Allowed)

	_, d, err = ex.Execute("u1", rdf.Pattern{}, QueryOptions{Complex: true})
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	// Simple queries still pass.
	_, d, err = ex.Execute("u1", rdf.Pattern{}, QueryOptions{})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestStatsPassthrough(t *testing.T) {
	ex := newExecutor(t, ratelimit.Config{})

	alice := rdf.MustIRI("https://example.org/alice")
	knows := rdf.MustIRI("https://example.org/vocab/knows")
	bob := rdf.MustIRI("https://example.org/bob")
	ex.Load([]rdf.Triple{rdf.NewTriple(alice, knows, bob)})

	_, _, err := ex.Execute("u1", rdf.Pattern{}, QueryOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, ex.StoreStats().Triples)
	sys := ex.SystemStats()
	assert.Equal(t, uint64(1), sys.TotalRequests)
	assert.Equal(t, 1, sys.ActiveUsers)

	st := ex.BreakerStatus()
	assert.False(t, st.Open)
	assert.Equal(t, 0, st.Failures)
}
