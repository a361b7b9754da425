package scheduler

import (
	"context"
	"log"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alpinemaps/terrainclient/internal/network"
	"github.com/alpinemaps/terrainclient/internal/payload"
	"github.com/alpinemaps/terrainclient/internal/tileid"
)

// NEdge is the height raster edge length the GPU tile manager expects per
// tile, including the one-sample curtain skirt border.
const NEdge = 65

// ReadyToShip decides whether an assembled, cached quad should be included
// in the next outgoing batch. The default (cache membership) is what
// NewTerrainScheduler and NewOrthoScheduler use; NewPOIScheduler layers a
// companion GeometryCache requirement on top.
type ReadyToShip func(tileid.ID) bool

// Decode turns one child tile's raw bytes into whatever payload shape the
// pipeline ships (a *payload.HeightRaster, a *payload.OrthoTexture, or raw
// MVT bytes) — the scheduler pipeline itself never inspects the result.
type Decode func(id tileid.ID, data []byte, info network.Info) (any, error)

// Config configures a Scheduler. Zero values resolve to the component
// defaults in normalize(), the same pattern the rest of the ambient stack
// uses for its Config structs.
type Config struct {
	SlotCapacity     int
	RateCapacity     float64
	RateRefillPerSec float64
	QuadLimit        int
	// AutoQuadLimit, when QuadLimit is left at 0, derives the cache capacity
	// from a fraction of system RAM (ComputeQuadLimit) instead of falling
	// back to the static DefaultQuadLimit.
	AutoQuadLimit  bool
	DebounceWindow time.Duration
	Verbose        bool
}

func (c *Config) normalize() {
	if c.SlotCapacity <= 0 {
		c.SlotCapacity = DefaultSlotCapacity
	}
	if c.RateCapacity <= 0 {
		c.RateCapacity = DefaultBucketCapacity
	}
	if c.RateRefillPerSec <= 0 {
		c.RateRefillPerSec = DefaultRefillPerSec
	}
	if c.QuadLimit <= 0 {
		if c.AutoQuadLimit {
			c.QuadLimit = ComputeQuadLimit(DefaultRAMFraction, c.Verbose)
		} else {
			c.QuadLimit = DefaultQuadLimit
		}
	}
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = 100 * time.Millisecond
	}
}

type pendingFetch struct {
	quadID   tileid.ID
	childID  tileid.ID
	childIdx int
}

type childDelivery struct {
	quadID   tileid.ID
	childIdx int
	result   ChildResult
}

// Scheduler is the orchestrator: it reacts to camera updates, network
// completions and reachability changes, driving C3-C6 and emitting batches
// of (new, deleted) quads. Every exported method except SetReachable and
// Shutdown is expected to be called from the single worker
// goroutine that owns this Scheduler; network completions arrive back on
// that same goroutine via Tick, not via direct calls from the fetch
// goroutines it spawns.
type Scheduler struct {
	cfg    Config
	loader *network.Service
	decode Decode

	slots     *SlotLimiter
	rate      *RateLimiter
	assembler *QuadAssembler
	cache     *MemoryCache

	readyToShip ReadyToShip

	pending []pendingFetch
	results chan childDelivery

	batch Batch

	reachable atomic.Bool
	stats     struct {
		requested atomic.Int64
		shipped   atomic.Int64
	}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newScheduler(loader *network.Service, decode Decode, cfg Config) *Scheduler {
	cfg.normalize()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:       cfg,
		loader:    loader,
		decode:    decode,
		slots:     NewSlotLimiter(cfg.SlotCapacity),
		rate:      NewRateLimiter(cfg.RateCapacity, cfg.RateRefillPerSec),
		assembler: NewQuadAssembler(),
		results:   make(chan childDelivery, 4*cfg.SlotCapacity),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.cache = NewMemoryCache(cfg.QuadLimit, func(id tileid.ID) {
		s.batch.Deleted = append(s.batch.Deleted, id)
	})
	s.reachable.Store(true)
	return s
}

// NewTerrainScheduler builds the geometry (height) pipeline: Terrarium PNG
// decode, ready-to-ship is plain cache membership.
func NewTerrainScheduler(loader *network.Service, cfg Config) *Scheduler {
	s := newScheduler(loader, func(id tileid.ID, data []byte, _ network.Info) (any, error) {
		return payload.DecodeTerrariumHeight(data, NEdge)
	}, cfg)
	s.readyToShip = func(id tileid.ID) bool { return s.cache.Contains(id) }
	return s
}

// NewOrthoScheduler builds the imagery pipeline: JPEG ortho decode,
// ready-to-ship is plain cache membership.
func NewOrthoScheduler(loader *network.Service, cfg Config) *Scheduler {
	s := newScheduler(loader, func(id tileid.ID, data []byte, _ network.Info) (any, error) {
		return payload.DecodeOrtho(data)
	}, cfg)
	s.readyToShip = func(id tileid.ID) bool { return s.cache.Contains(id) }
	return s
}

// NewPOIScheduler builds the vector/POI pipeline: no decoding beyond
// passing MVT bytes through, ready-to-ship additionally requires the quad
// be present in a companion geometry cache.
func NewPOIScheduler(loader *network.Service, geometry GeometryCache, cfg Config) *Scheduler {
	s := newScheduler(loader, func(id tileid.ID, data []byte, _ network.Info) (any, error) {
		return data, nil
	}, cfg)
	s.readyToShip = func(id tileid.ID) bool {
		return s.cache.Contains(id) && geometry.Contains(id)
	}
	return s
}

// SetReachable toggles network reachability. While unreachable, new
// requests still queue but nothing new is dispatched; in-flight requests
// are left to complete or time out.
func (s *Scheduler) SetReachable(reachable bool) { s.reachable.Store(reachable) }

// Reachable reports the current reachability state.
func (s *Scheduler) Reachable() bool { return s.reachable.Load() }

// AncestorPadding is how many parent levels get added to the desired set
// alongside each visible tile, so a coarser fallback is already in flight
// (or cached) by the time partial residency or a stalled network leaves a
// visible tile without its own data.
const AncestorPadding = 2

// Evaluate grows visible with up to AncestorPadding parent levels per tile,
// diffs the result against the cache and in-flight/queued sets, prioritizes
// the remainder by descending zoom then descending screen-space-error, and
// feeds each into the request pipeline. The debounce window itself is the
// caller's responsibility, typically RenderingContext's timer.
func (s *Scheduler) Evaluate(visible []VisibleTile) {
	padded := make([]VisibleTile, 0, len(visible)*(AncestorPadding+1))
	seen := make(map[tileid.ID]bool, cap(padded))
	add := func(v VisibleTile) {
		if seen[v.ID] {
			return
		}
		seen[v.ID] = true
		padded = append(padded, v)
	}
	for _, v := range visible {
		add(v)
		ancestor := v.ID
		for level := 0; level < AncestorPadding && ancestor.Zoom > 0; level++ {
			ancestor = ancestor.Parent()
			add(VisibleTile{ID: ancestor})
		}
	}

	toRequest := make([]VisibleTile, 0, len(padded))
	for _, v := range padded {
		if s.cache.Contains(v.ID) {
			continue
		}
		if s.slots.IsPending(v.ID) {
			continue
		}
		toRequest = append(toRequest, v)
	}
	sort.SliceStable(toRequest, func(i, j int) bool {
		if toRequest[i].ID.Zoom != toRequest[j].ID.Zoom {
			return toRequest[i].ID.Zoom > toRequest[j].ID.Zoom
		}
		return toRequest[i].SSE > toRequest[j].SSE
	})
	for _, v := range toRequest {
		s.RequestQuad(v.ID)
	}
}

// RequestQuad submits a single quad id to the slot limiter, dispatching its
// four children immediately if a slot is free.
func (s *Scheduler) RequestQuad(id tileid.ID) {
	s.stats.requested.Add(1)
	if s.slots.Submit(id) {
		s.enqueueChildren(id)
	}
}

// Forget drops any in-progress assembly state for id without emitting it —
// used when a quad becomes irrelevant before it ever reaches the network.
func (s *Scheduler) Forget(id tileid.ID) {
	s.assembler.Forget(id)
}

func (s *Scheduler) enqueueChildren(quadID tileid.ID) {
	children := quadID.Children()
	for i, child := range children {
		s.pending = append(s.pending, pendingFetch{quadID: quadID, childID: child, childIdx: i})
	}
}

// Tick drains completed network results and, reachability and rate limits
// permitting, launches fetches for as many queued children as the token
// bucket allows. It is meant to be called frequently (e.g. every event loop
// iteration) by the owning RenderingContext.
func (s *Scheduler) Tick() {
	for {
		select {
		case d := <-s.results:
			s.handleDelivery(d)
		default:
			goto drained
		}
	}
drained:
	if !s.reachable.Load() {
		return
	}
	for len(s.pending) > 0 && s.rate.Allow() {
		item := s.pending[0]
		s.pending = s.pending[1:]
		s.launchFetch(item)
	}
}

func (s *Scheduler) launchFetch(item pendingFetch) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		rnd := rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(item.childID.Pack())))
		var res network.Result
		for attempt := 0; ; attempt++ {
			res = s.loader.Load(s.ctx, item.childID)
			if res.Network.Status != network.NetworkError || attempt >= RetryMaxAttempts-1 {
				break
			}
			delay := backoffDelay(attempt, rnd)
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-s.ctx.Done():
				timer.Stop()
				return
			}
		}
		delivery := childDelivery{
			quadID:   item.quadID,
			childIdx: item.childIdx,
			result:   ChildResult{ID: item.childID, Bytes: res.Bytes, Network: res.Network},
		}
		select {
		case s.results <- delivery:
		case <-s.ctx.Done():
		}
	}()
}

func (s *Scheduler) handleDelivery(d childDelivery) {
	quad, complete := s.assembler.Deliver(d.quadID, d.childIdx, d.result)
	if !complete {
		return
	}

	quad.LastAccessMs = time.Now().UnixMilli()
	s.cache.Insert(quad)

	if s.readyToShip(quad.ID) {
		s.batch.New = append(s.batch.New, s.decodeQuad(quad))
		s.stats.shipped.Add(1)
	}

	if nextID, ok := s.slots.Complete(quad.ID); ok {
		s.enqueueChildren(nextID)
	}
}

func (s *Scheduler) decodeQuad(quad DataQuad) ShippedQuad {
	shipped := ShippedQuad{ID: quad.ID}
	for i, tile := range quad.Tiles {
		p := Payload{ID: tile.ID, Network: tile.Network}
		if tile.Network.Status == network.Good {
			decoded, err := s.decode(tile.ID, tile.Bytes, tile.Network)
			if err != nil {
				if s.cfg.Verbose {
					log.Printf("scheduler: decode %s: %v", tile.ID, err)
				}
				p.Err = err
			} else {
				p.Decoded = decoded
			}
		}
		shipped.Tiles[i] = p
	}
	return shipped
}

// TakeBatch drains and returns everything accumulated since the last call.
func (s *Scheduler) TakeBatch() Batch {
	b := s.batch
	s.batch = Batch{}
	return b
}

// SetQuadLimit reconfigures the memory cache's capacity, evicting in LRU
// order if shrinking (evictions land in the next TakeBatch via the cache's
// eviction callback).
func (s *Scheduler) SetQuadLimit(n int) {
	s.cache.SetQuadLimit(n)
}

// Stats snapshots the scheduler's counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Requested: s.stats.requested.Load(),
		InFlight:  int64(s.slots.InFlightCount()),
		Cached:    int64(s.cache.Len()),
		Shipped:   s.stats.shipped.Load(),
	}
}

// Shutdown cancels outstanding fetches and waits up to timeout for them to
// unwind, warning rather than blocking forever if stragglers don't exit in
// time. It returns false if the timeout elapsed first.
func (s *Scheduler) Shutdown(timeout time.Duration) bool {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
