// Package context wires the scheduler pipelines, the draw-list
// generator and the GPU tile manager into a single worker-thread
// event loop: RenderingContext.
//
// The worker thread is a single goroutine. It owns every scheduler, the
// rate limiters inside them, and the draw-list generators; nothing else
// touches those types directly. The render thread only calls
// ApplyPendingGpuBatches and Draw, both against the GPU tile manager, which
// it owns exclusively. The two threads communicate solely through the
// buffered GpuBatch channel and the atomics each Scheduler already exposes.
package context

import (
	"context"
	"log"
	"time"

	"github.com/alpinemaps/terrainclient/internal/drawlist"
	"github.com/alpinemaps/terrainclient/internal/gpu"
	"github.com/alpinemaps/terrainclient/internal/invariant"
	"github.com/alpinemaps/terrainclient/internal/scheduler"
)

// GpuBatch is one frame's worth of GPU-residency changes, aggregated across
// every pipeline that feeds this RenderingContext.
type GpuBatch struct {
	Terrain scheduler.Batch
	Ortho   scheduler.Batch
	POI     scheduler.Batch
}

// Pipeline bundles one scheduler with the draw-list generator that drives
// it — the terrain, ortho and POI layers each get one.
type Pipeline struct {
	Scheduler *scheduler.Scheduler
	DrawList  *drawlist.Generator
}

// Config configures a RenderingContext's event loop timing.
type Config struct {
	// DebounceWindow is how long the worker waits after the last camera
	// update before re-running RequestedSet/Evaluate for every pipeline.
	DebounceWindow time.Duration
	// TickInterval drives Scheduler.Tick on every pipeline — it governs how
	// promptly queued fetches are dispatched once capacity frees up.
	TickInterval time.Duration
	// StatsInterval is how often aggregate Stats are logged when Verbose.
	StatsInterval time.Duration
	Verbose       bool
}

func (c *Config) normalize() {
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = 100 * time.Millisecond
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 20 * time.Millisecond
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = 5 * time.Second
	}
}

// RenderingContext owns the worker thread's event loop and the render
// thread's GPU tile manager. Construct with New, start the worker
// loop with Run, and apply deliveries from the render thread once per frame
// with ApplyPendingGpuBatches.
type RenderingContext struct {
	cfg Config

	terrain *Pipeline
	ortho   *Pipeline
	poi     *Pipeline

	tiles *gpu.TileManager

	cameraCh  chan drawlist.Camera
	batchCh   chan GpuBatch
	reachable chan bool

	ctx      context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}
}

// New builds a RenderingContext. Any of ortho/poi may be nil when that
// layer is not in use; terrain and tiles are required.
func New(terrain, ortho, poi *Pipeline, tiles *gpu.TileManager, cfg Config) *RenderingContext {
	if terrain == nil || tiles == nil {
		invariant.Violate("context: terrain pipeline and tile manager are required")
	}
	cfg.normalize()
	ctx, cancel := context.WithCancel(context.Background())
	return &RenderingContext{
		cfg:       cfg,
		terrain:   terrain,
		ortho:     ortho,
		poi:       poi,
		tiles:     tiles,
		cameraCh:  make(chan drawlist.Camera, 1),
		batchCh:   make(chan GpuBatch, 4),
		reachable: make(chan bool, 1),
		ctx:       ctx,
		cancel:    cancel,
		loopDone:  make(chan struct{}),
	}
}

// UpdateCamera delivers a new camera to the worker thread, coalescing with
// any update still waiting to be picked up — only the most recent camera
// pose matters once the debounce timer fires.
func (rc *RenderingContext) UpdateCamera(cam drawlist.Camera) {
	select {
	case rc.cameraCh <- cam:
	default:
		select {
		case <-rc.cameraCh:
		default:
		}
		rc.cameraCh <- cam
	}
}

// SetReachable toggles network reachability for every pipeline this context
// owns.
func (rc *RenderingContext) SetReachable(reachable bool) {
	select {
	case rc.reachable <- reachable:
	default:
		select {
		case <-rc.reachable:
		default:
		}
		rc.reachable <- reachable
	}
}

// Run starts the worker-thread event loop and blocks until ctx's Done
// channel fires or Shutdown is called. Intended to be run in its own
// goroutine by the caller.
func (rc *RenderingContext) Run() {
	defer close(rc.loopDone)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("context: worker thread stopped on invariant violation: %v", r)
		}
	}()

	tickTicker := time.NewTicker(rc.cfg.TickInterval)
	defer tickTicker.Stop()
	statsTicker := time.NewTicker(rc.cfg.StatsInterval)
	defer statsTicker.Stop()

	var debounce *time.Timer
	var pendingCamera drawlist.Camera
	haveCamera := false

	debounceFired := make(chan struct{})
	armDebounce := func() {
		if debounce != nil {
			debounce.Stop()
		}
		debounce = time.AfterFunc(rc.cfg.DebounceWindow, func() {
			select {
			case debounceFired <- struct{}{}:
			case <-rc.ctx.Done():
			}
		})
	}

	for {
		select {
		case <-rc.ctx.Done():
			return

		case cam := <-rc.cameraCh:
			pendingCamera = cam
			haveCamera = true
			armDebounce()

		case <-debounceFired:
			if haveCamera {
				rc.evaluate(pendingCamera)
			}

		case reachable := <-rc.reachable:
			rc.forEachScheduler(func(s *scheduler.Scheduler) { s.SetReachable(reachable) })

		case <-tickTicker.C:
			rc.forEachScheduler(func(s *scheduler.Scheduler) { s.Tick() })
			rc.publishBatch()

		case <-statsTicker.C:
			if rc.cfg.Verbose {
				rc.logStats()
			}
		}
	}
}

func (rc *RenderingContext) forEachScheduler(f func(*scheduler.Scheduler)) {
	f(rc.terrain.Scheduler)
	if rc.ortho != nil {
		f(rc.ortho.Scheduler)
	}
	if rc.poi != nil {
		f(rc.poi.Scheduler)
	}
}

func visibleTiles(gen *drawlist.Generator, cam drawlist.Camera) []scheduler.VisibleTile {
	requested := gen.RequestedSet(cam)
	requested = gen.Cull(requested, cam.Frustum)
	visible := make([]scheduler.VisibleTile, len(requested))
	for i, id := range requested {
		visible[i] = scheduler.VisibleTile{ID: id, SSE: gen.ScreenSpaceError(id, cam)}
	}
	return visible
}

func (rc *RenderingContext) evaluate(cam drawlist.Camera) {
	rc.terrain.Scheduler.Evaluate(visibleTiles(rc.terrain.DrawList, cam))
	if rc.ortho != nil {
		rc.ortho.Scheduler.Evaluate(visibleTiles(rc.ortho.DrawList, cam))
	}
	if rc.poi != nil {
		rc.poi.Scheduler.Evaluate(visibleTiles(rc.poi.DrawList, cam))
	}
}

func (rc *RenderingContext) publishBatch() {
	batch := GpuBatch{Terrain: rc.terrain.Scheduler.TakeBatch()}
	if rc.ortho != nil {
		batch.Ortho = rc.ortho.Scheduler.TakeBatch()
	}
	if rc.poi != nil {
		batch.POI = rc.poi.Scheduler.TakeBatch()
	}
	if len(batch.Terrain.New) == 0 && len(batch.Terrain.Deleted) == 0 &&
		len(batch.Ortho.New) == 0 && len(batch.Ortho.Deleted) == 0 &&
		len(batch.POI.New) == 0 && len(batch.POI.Deleted) == 0 {
		return
	}
	select {
	case rc.batchCh <- batch:
	case <-rc.ctx.Done():
	}
}

func (rc *RenderingContext) logStats() {
	ts := rc.terrain.Scheduler.Stats()
	log.Printf("context: terrain requested=%d inflight=%d cached=%d shipped=%d",
		ts.Requested, ts.InFlight, ts.Cached, ts.Shipped)
	if rc.ortho != nil {
		os := rc.ortho.Scheduler.Stats()
		log.Printf("context: ortho requested=%d inflight=%d cached=%d shipped=%d",
			os.Requested, os.InFlight, os.Cached, os.Shipped)
	}
	if rc.poi != nil {
		ps := rc.poi.Scheduler.Stats()
		log.Printf("context: poi requested=%d inflight=%d cached=%d shipped=%d",
			ps.Requested, ps.InFlight, ps.Cached, ps.Shipped)
	}
}

// ApplyPendingGpuBatches drains every GpuBatch queued since the last call
// and applies it to the GPU tile manager, matching the "deliveries land
// only at frame boundaries" guarantee. Call once per frame from the render
// thread.
func (rc *RenderingContext) ApplyPendingGpuBatches() int {
	applied := 0
	for {
		select {
		case batch := <-rc.batchCh:
			rc.tiles.UpdateGpuQuads(batch.Terrain)
			rc.tiles.UpdateGpuQuads(batch.Ortho)
			rc.tiles.UpdateGpuQuads(batch.POI)
			applied++
		default:
			return applied
		}
	}
}

// Shutdown stops the worker loop and waits up to timeout for it and every
// pipeline's in-flight fetches to unwind. Returns false if the timeout
// elapsed first.
func (rc *RenderingContext) Shutdown(timeout time.Duration) bool {
	rc.cancel()
	start := time.Now()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case <-rc.loopDone:
	case <-deadline.C:
		log.Printf("context: worker loop did not stop within %s", timeout)
		return false
	}

	ok := true
	remaining := timeout
	shutdownOne := func(s *scheduler.Scheduler) {
		elapsed := time.Since(start)
		budget := remaining - elapsed
		if budget < 0 {
			budget = 0
		}
		if !s.Shutdown(budget) {
			ok = false
		}
	}
	shutdownOne(rc.terrain.Scheduler)
	if rc.ortho != nil {
		shutdownOne(rc.ortho.Scheduler)
	}
	if rc.poi != nil {
		shutdownOne(rc.poi.Scheduler)
	}
	return ok
}
