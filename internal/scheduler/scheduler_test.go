package scheduler

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alpinemaps/terrainclient/internal/network"
	"github.com/alpinemaps/terrainclient/internal/tileid"
)

func waitForBatch(t *testing.T, s *Scheduler, want int, timeout time.Duration) Batch {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var acc Batch
	for time.Now().Before(deadline) {
		s.Tick()
		b := s.TakeBatch()
		acc.New = append(acc.New, b.New...)
		acc.Deleted = append(acc.Deleted, b.Deleted...)
		if len(acc.New) >= want {
			return acc
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d shipped quads, got %d", want, len(acc.New))
	return acc
}

func TestSchedulerShipsQuadOnceCached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0, 0, 0, 0})
	}))
	defer srv.Close()

	loader := network.New(network.Config{BaseURL: srv.URL, Extension: "png"})
	s := NewTerrainScheduler(loader, Config{SlotCapacity: 4, RateCapacity: 100, RateRefillPerSec: 1000})
	defer s.Shutdown(time.Second)

	parent := tileid.ID{Zoom: 3, X: 1, Y: 1}
	s.RequestQuad(parent)

	batch := waitForBatch(t, s, 1, 2*time.Second)
	if len(batch.New) != 1 || batch.New[0].ID != parent {
		t.Fatalf("expected exactly one shipped quad for %v, got %+v", parent, batch.New)
	}
	if !s.cache.Contains(parent) {
		t.Fatal("quad should be cached after assembly")
	}
}

func TestSchedulerEvictionReportsDeletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0, 0, 0, 0})
	}))
	defer srv.Close()

	loader := network.New(network.Config{BaseURL: srv.URL, Extension: "png"})
	s := NewTerrainScheduler(loader, Config{SlotCapacity: 8, QuadLimit: 2, RateCapacity: 100, RateRefillPerSec: 1000})
	defer s.Shutdown(time.Second)

	q1 := tileid.ID{Zoom: 3, X: 0, Y: 0}
	q2 := tileid.ID{Zoom: 3, X: 1, Y: 0}
	q3 := tileid.ID{Zoom: 3, X: 0, Y: 1}

	s.RequestQuad(q1)
	waitForBatch(t, s, 1, 2*time.Second)
	s.RequestQuad(q2)
	waitForBatch(t, s, 1, 2*time.Second)

	s.RequestQuad(q3)
	deadline := time.Now().Add(2 * time.Second)
	var deleted []tileid.ID
	for time.Now().Before(deadline) {
		s.Tick()
		b := s.TakeBatch()
		deleted = append(deleted, b.Deleted...)
		if len(deleted) > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if len(deleted) != 1 || deleted[0] != q1 {
		t.Fatalf("expected q1 evicted on q3's insertion, got %v", deleted)
	}
}

func TestSchedulerRetriesNetworkErrorThenSucceeds(t *testing.T) {
	var failures atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failures.Add(1) <= 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte{0, 0, 0, 0})
	}))
	defer srv.Close()

	loader := network.New(network.Config{BaseURL: srv.URL, Extension: "png"})
	s := NewTerrainScheduler(loader, Config{SlotCapacity: 4, RateCapacity: 100, RateRefillPerSec: 1000})
	defer s.Shutdown(time.Second)

	// The first three requests the server sees fail with a 500 and every
	// later one succeeds. All four children (zoom 4, under "/4/...") share
	// the same handler, so the failures land on whichever children ask
	// first, which is enough to exercise the retry path without pinning
	// down exactly which child retried.
	parent := tileid.ID{Zoom: 3, X: 1, Y: 1}
	s.RequestQuad(parent)

	batch := waitForBatch(t, s, 1, 5*time.Second)
	if len(batch.New) != 1 {
		t.Fatalf("expected the quad to eventually assemble, got %+v", batch.New)
	}
	for _, tile := range batch.New[0].Tiles {
		if tile.Network.Status != network.Good {
			t.Fatalf("expected all children Good after retries converged, got %v", tile.Network.Status)
		}
	}
}

func TestSchedulerUnreachableQueuesWithoutDispatch(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte{0, 0, 0, 0})
	}))
	defer srv.Close()

	loader := network.New(network.Config{BaseURL: srv.URL, Extension: "png"})
	s := NewTerrainScheduler(loader, Config{SlotCapacity: 4, RateCapacity: 100, RateRefillPerSec: 1000})
	defer s.Shutdown(time.Second)

	s.SetReachable(false)
	s.RequestQuad(tileid.ID{Zoom: 3, X: 1, Y: 1})

	for i := 0; i < 20; i++ {
		s.Tick()
		time.Sleep(time.Millisecond)
	}
	if requests.Load() != 0 {
		t.Fatalf("expected 0 outgoing requests while unreachable, got %d", requests.Load())
	}

	s.SetReachable(true)
	batch := waitForBatch(t, s, 1, 2*time.Second)
	if len(batch.New) != 1 {
		t.Fatal("expected the quad to complete once reachability returns")
	}
}

func TestPOISchedulerRequiresGeometryCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mvt-bytes"))
	}))
	defer srv.Close()

	loader := network.New(network.Config{BaseURL: srv.URL})
	geom := &fakeGeometryCache{}
	s := NewPOIScheduler(loader, geom, Config{SlotCapacity: 4, RateCapacity: 100, RateRefillPerSec: 1000})
	defer s.Shutdown(time.Second)

	parent := tileid.ID{Zoom: 3, X: 1, Y: 1}
	s.RequestQuad(parent)

	// Geometry cache does not (yet) contain the quad: nothing should ship,
	// even once the network side completes and the quad is cached.
	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		s.Tick()
		b := s.TakeBatch()
		if len(b.New) > 0 {
			t.Fatal("should not ship before the companion geometry cache contains the quad")
		}
		time.Sleep(time.Millisecond)
	}
	if !s.cache.Contains(parent) {
		t.Fatal("quad should still be cached even though it wasn't shipped")
	}
}

type fakeGeometryCache struct{}

func (fakeGeometryCache) Contains(tileid.ID) bool { return false }

func TestEvaluateDeduplicatesAgainstCacheAndInFlight(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0, 0, 0, 0})
	}))
	defer srv.Close()

	loader := network.New(network.Config{BaseURL: srv.URL, Extension: "png"})
	s := NewTerrainScheduler(loader, Config{SlotCapacity: 1, RateCapacity: 100, RateRefillPerSec: 1000})
	defer s.Shutdown(time.Second)

	a := tileid.ID{Zoom: 3, X: 0, Y: 0}
	b := tileid.ID{Zoom: 3, X: 1, Y: 0}

	// Evaluate pads each visible tile with up to AncestorPadding parent
	// levels; a and b share both ancestor levels ({2,0,0} and {1,0,0}), so
	// the padded, deduplicated desired set is {a, b, {2,0,0}, {1,0,0}} — 4
	// requests, not 2.
	s.Evaluate([]VisibleTile{{ID: a}, {ID: b}})
	if s.Stats().Requested != 4 {
		t.Fatalf("expected 2 visible tiles plus 2 shared ancestor levels requested, got %d", s.Stats().Requested)
	}
	// A second identical evaluation (simulating camera thrash within the
	// debounce window collapsing to the same desired set) must not
	// duplicate requests for ids already in flight.
	s.Evaluate([]VisibleTile{{ID: a}, {ID: b}})
	if s.Stats().Requested != 4 {
		t.Fatalf("expected no duplicate requests on repeated evaluation, got %d", s.Stats().Requested)
	}
}
