package scheduler

import (
	"math/rand"
	"testing"

	"github.com/alpinemaps/terrainclient/internal/tileid"
)

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []tileid.ID
	c := NewMemoryCache(2, func(id tileid.ID) { evicted = append(evicted, id) })

	q1 := tileid.ID{Zoom: 1, X: 0, Y: 0}
	q2 := tileid.ID{Zoom: 1, X: 1, Y: 0}
	q3 := tileid.ID{Zoom: 1, X: 0, Y: 1}

	c.Insert(DataQuad{ID: q1})
	c.Insert(DataQuad{ID: q2})
	c.Insert(DataQuad{ID: q3})

	if c.Len() != 2 {
		t.Fatalf("expected cache size capped at 2, got %d", c.Len())
	}
	if len(evicted) != 1 || evicted[0] != q1 {
		t.Fatalf("expected q1 evicted, got %v", evicted)
	}
	if c.Contains(q2) != true || c.Contains(q3) != true {
		t.Fatal("expected q2 and q3 to remain cached")
	}
}

func TestMemoryCacheSetQuadLimitShrinksInLRUOrder(t *testing.T) {
	var evicted []tileid.ID
	c := NewMemoryCache(3, func(id tileid.ID) { evicted = append(evicted, id) })

	ids := []tileid.ID{
		{Zoom: 1, X: 0, Y: 0},
		{Zoom: 1, X: 1, Y: 0},
		{Zoom: 1, X: 0, Y: 1},
	}
	for _, id := range ids {
		c.Insert(DataQuad{ID: id})
	}

	c.SetQuadLimit(1)
	if c.Len() != 1 {
		t.Fatalf("expected cache size 1 after shrink, got %d", c.Len())
	}
	if len(evicted) != 2 {
		t.Fatalf("expected 2 evictions (old_size=3 - new_limit=1), got %d", len(evicted))
	}
	if evicted[0] != ids[0] || evicted[1] != ids[1] {
		t.Fatalf("expected eviction in LRU order %v, got %v", ids[:2], evicted)
	}
	if !c.Contains(ids[2]) {
		t.Fatal("most-recently-used entry should survive the shrink")
	}
}

// Fuzzed: cache length never exceeds its configured limit at any
// observable state.
func TestMemoryCacheNeverExceedsLimit(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	limit := 8
	c := NewMemoryCache(limit, nil)
	for i := 0; i < 5000; i++ {
		id := tileid.ID{Zoom: uint8(rnd.Intn(5)), X: uint32(rnd.Intn(40)), Y: uint32(rnd.Intn(40))}
		c.Insert(DataQuad{ID: id})
		if c.Len() > limit {
			t.Fatalf("cache size %d exceeds limit %d", c.Len(), limit)
		}
	}
}
