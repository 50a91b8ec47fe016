package history

import (
	"sync"

	"github.com/vertextoedge/clipkeep/internal/domain"
)

// Filter returns the entries matching both category and search, in order
func Filter(entries []domain.Entry, category domain.Category, search string) []domain.Entry {
	out := make([]domain.Entry, 0, len(entries))
	for _, e := range entries {
		if category.Matches(e) && domain.MatchesSearch(e, search) {
			out = append(out, e)
		}
	}
	return out
}

type queryKey struct {
	version  uint64
	category domain.Category
	search   string
}

// QueryCache memoizes the last filtered view. It is recomputed only when
// the store version, the category or the search text changes.
type QueryCache struct {
	mu     sync.Mutex
	key    queryKey
	valid  bool
	result []domain.Entry

	hits   int64
	misses int64
}

// NewQueryCache creates an empty QueryCache
func NewQueryCache() *QueryCache {
	return &QueryCache{}
}

// Filtered returns the filtered view of entries at version
func (q *QueryCache) Filtered(version uint64, entries []domain.Entry, category domain.Category, search string) []domain.Entry {
	key := queryKey{version: version, category: category, search: search}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.valid && q.key == key {
		q.hits++
		return domain.CloneEntries(q.result)
	}

	q.misses++
	q.result = Filter(entries, category, search)
	q.key = key
	q.valid = true
	return domain.CloneEntries(q.result)
}

// Stats returns hit and miss counts
func (q *QueryCache) Stats() (hits, misses int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.hits, q.misses
}
