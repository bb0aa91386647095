// Package store implements the in-memory indexed triple store.
//
// The store keeps the triple set in a handle-addressed arena with three
// positional indexes (subject, predicate, object) holding handles grouped
// by key, rather than duplicating triple data. Pattern matches pick the
// most selective index for the bound positions and memoize results in an
// LRU cache keyed by the canonical pattern serialization.
//
// All operations are thread-safe. Mutations clear the result cache, so a
// match issued after an add/remove/clear never observes stale results.
package store

import (
	"sync"

	"github.com/tripled-io/tripled/pkg/cache"
	"github.com/tripled-io/tripled/pkg/rdf"
)

// handle addresses a triple in the arena. Handles are stable for the
// lifetime of a triple and recycled after removal.
type handle uint32

// Options configures a TripleStore.
type Options struct {
	// ResultCacheCapacity bounds the pattern-result cache. Zero selects
	// cache.DefaultCapacity. Negative values are rejected.
	ResultCacheCapacity int
}

// TripleStore holds a set of triples and answers pattern queries.
type TripleStore struct {
	mu sync.RWMutex

	// Arena of triples addressed by handle. A slot h is live exactly when
	// byTriple[arena[h]] == h; removed slots go stale until their handle
	// is recycled.
	arena []rdf.Triple
	free  []handle

	// Set membership and positional indexes. Postings lists keep handles
	// in insertion order.
	byTriple    map[rdf.Triple]handle
	bySubject   map[rdf.IRI][]handle
	byPredicate map[rdf.IRI][]handle
	byObject    map[rdf.Term][]handle

	// Memoized match results, keyed by Pattern.Key(). Cleared on any
	// mutation while the write lock is held.
	results *cache.Cache[string, []rdf.Triple]
}

// New creates an empty triple store.
func New(opts Options) (*TripleStore, error) {
	capacity := opts.ResultCacheCapacity
	if capacity == 0 {
		capacity = cache.DefaultCapacity
	}
	results, err := cache.New[string, []rdf.Triple](capacity)
	if err != nil {
		return nil, err
	}
	return &TripleStore{
		byTriple:    make(map[rdf.Triple]handle),
		bySubject:   make(map[rdf.IRI][]handle),
		byPredicate: make(map[rdf.IRI][]handle),
		byObject:    make(map[rdf.Term][]handle),
		results:     results,
	}, nil
}

// Add inserts a triple. Inserting a structurally-equal triple twice is an
// idempotent no-op. Any insertion attempt invalidates the result cache.
func (s *TripleStore) Add(t rdf.Triple) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(t)
	s.results.Clear()
}

// AddAll inserts a batch of triples, invalidating the result cache once.
// Indexes are appended to, not rebuilt, so large batches stay cheap.
func (s *TripleStore) AddAll(triples []rdf.Triple) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range triples {
		s.addLocked(t)
	}
	s.results.Clear()
}

// addLocked inserts one triple into the arena and every index.
// Caller must hold the write lock.
func (s *TripleStore) addLocked(t rdf.Triple) {
	if _, exists := s.byTriple[t]; exists {
		return
	}

	var h handle
	if n := len(s.free); n > 0 {
		h = s.free[n-1]
		s.free = s.free[:n-1]
		s.arena[h] = t
	} else {
		h = handle(len(s.arena))
		s.arena = append(s.arena, t)
	}

	s.byTriple[t] = h
	s.bySubject[t.S] = append(s.bySubject[t.S], h)
	s.byPredicate[t.P] = append(s.byPredicate[t.P], h)
	s.byObject[t.O] = append(s.byObject[t.O], h)
}

// Remove deletes a triple from the set and all indexes. Removing an absent
// triple is a no-op. The result cache is invalidated either way.
func (s *TripleStore) Remove(t rdf.Triple) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, exists := s.byTriple[t]
	if exists {
		delete(s.byTriple, t)
		s.bySubject[t.S] = removeHandle(s.bySubject[t.S], h)
		if len(s.bySubject[t.S]) == 0 {
			delete(s.bySubject, t.S)
		}
		s.byPredicate[t.P] = removeHandle(s.byPredicate[t.P], h)
		if len(s.byPredicate[t.P]) == 0 {
			delete(s.byPredicate, t.P)
		}
		s.byObject[t.O] = removeHandle(s.byObject[t.O], h)
		if len(s.byObject[t.O]) == 0 {
			delete(s.byObject, t.O)
		}
		s.free = append(s.free, h)
	}
	s.results.Clear()
}

// Clear removes every triple and invalidates the result cache.
func (s *TripleStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.arena = s.arena[:0]
	s.free = s.free[:0]
	s.byTriple = make(map[rdf.Triple]handle)
	s.bySubject = make(map[rdf.IRI][]handle)
	s.byPredicate = make(map[rdf.IRI][]handle)
	s.byObject = make(map[rdf.Term][]handle)
	s.results.Clear()
}

// Count returns the number of distinct triples. O(1).
func (s *TripleStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byTriple)
}

// Contains reports whether the exact triple is present.
func (s *TripleStore) Contains(t rdf.Triple) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byTriple[t]
	return ok
}

// Match returns the stored triples satisfying every bound position of the
// pattern. The result order is deterministic for a fixed store state.
// Results are served from the pattern cache when possible; a miss computes
// the result via the most selective index and caches it.
//
// The returned slice is owned by the caller.
func (s *TripleStore) Match(p rdf.Pattern) []rdf.Triple {
	key := p.Key()

	// The read lock spans lookup, compute, and cache fill. Mutations take
	// the write lock and clear the cache, so a filled entry can never
	// outlive the store state it was computed from.
	s.mu.RLock()
	defer s.mu.RUnlock()

	if cached, ok := s.results.Get(key); ok {
		return copyTriples(cached)
	}

	result := s.matchLocked(p)
	s.results.Set(key, result)
	return copyTriples(result)
}

// matchLocked computes a pattern match against the indexes.
// Caller must hold at least the read lock.
func (s *TripleStore) matchLocked(p rdf.Pattern) []rdf.Triple {
	// Fully bound: membership check.
	if p.BoundCount() == 3 {
		t := rdf.Triple{S: *p.S, P: *p.P, O: p.O}
		if _, ok := s.byTriple[t]; ok {
			return []rdf.Triple{t}
		}
		return []rdf.Triple{}
	}

	// Fully unbound: scan the arena in handle order, skipping stale slots.
	if p.BoundCount() == 0 {
		result := make([]rdf.Triple, 0, len(s.byTriple))
		for h, t := range s.arena {
			if live, ok := s.byTriple[t]; ok && live == handle(h) {
				result = append(result, t)
			}
		}
		return result
	}

	// Partially bound: pick the bound position with the shortest postings
	// list, then filter the candidates against the remaining bindings.
	candidates := s.selectPostings(p)
	result := make([]rdf.Triple, 0, len(candidates))
	for _, h := range candidates {
		t := s.arena[h]
		if p.Matches(t) {
			result = append(result, t)
		}
	}
	return result
}

// selectPostings returns the postings list of the most selective bound
// position. Caller must hold at least the read lock.
func (s *TripleStore) selectPostings(p rdf.Pattern) []handle {
	var best []handle
	found := false

	consider := func(postings []handle) {
		if !found || len(postings) < len(best) {
			best = postings
			found = true
		}
	}

	if p.S != nil {
		consider(s.bySubject[*p.S])
	}
	if p.P != nil {
		consider(s.byPredicate[*p.P])
	}
	if p.O != nil {
		consider(s.byObject[p.O])
	}
	return best
}

// Stats describes the store's current shape.
type Stats struct {
	Triples       int         // Distinct triples
	SubjectKeys   int         // Distinct subjects
	PredicateKeys int         // Distinct predicates
	ObjectKeys    int         // Distinct objects
	ResultCache   cache.Stats // Pattern-result cache statistics
}

// Stats returns a snapshot of store and cache statistics.
func (s *TripleStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Triples:       len(s.byTriple),
		SubjectKeys:   len(s.bySubject),
		PredicateKeys: len(s.byPredicate),
		ObjectKeys:    len(s.byObject),
		ResultCache:   s.results.Stats(),
	}
}

// copyTriples returns a defensive copy so callers cannot corrupt cached
// results.
func copyTriples(src []rdf.Triple) []rdf.Triple {
	out := make([]rdf.Triple, len(src))
	copy(out, src)
	return out
}

// removeHandle removes a handle from a postings list, preserving order.
func removeHandle(postings []handle, h handle) []handle {
	for i, existing := range postings {
		if existing == h {
			return append(postings[:i], postings[i+1:]...)
		}
	}
	return postings
}
