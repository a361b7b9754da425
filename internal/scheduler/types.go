// Package scheduler implements the orchestration pipeline that turns a
// camera-driven set of desired tiles into GPU-ready quads: slot limiting,
// rate limiting, quad assembly, an LRU memory cache and the Scheduler
// orchestrator itself. Every type in this package is confined to a single
// worker goroutine except where documented otherwise — no internal locking
// is used for that reason; callers that need cross-thread access go through
// the explicitly documented atomics instead.
package scheduler

import (
	"github.com/alpinemaps/terrainclient/internal/network"
	"github.com/alpinemaps/terrainclient/internal/tileid"
)

// ChildResult is one child tile's terminal network outcome, pre-decode.
type ChildResult struct {
	ID      tileid.ID
	Bytes   []byte
	Network network.Info
}

// DataQuad is a complete four-tile bundle as it sits in the memory cache,
// before payload decoding.
type DataQuad struct {
	ID           tileid.ID
	Tiles        [4]ChildResult
	LastAccessMs int64
}

// Payload is one child tile after decoding. Err is set (and Decoded left
// nil) when the decoder rejected the bytes — treated the same as NotFound:
// terminal, not retried.
type Payload struct {
	ID      tileid.ID
	Network network.Info
	Decoded any
	Err     error
}

// ShippedQuad is a complete quad with every child decoded, ready for
// whatever the GPU tile manager (or another consumer) does with it. What
// Decoded actually holds depends on which concrete scheduler produced it
// (*payload.HeightRaster for terrain, *payload.OrthoTexture for ortho, raw
// MVT bytes for POI) — the scheduler pipeline itself never inspects it.
type ShippedQuad struct {
	ID    tileid.ID
	Tiles [4]Payload
}

// Batch is what the scheduler hands upstream once per evaluation cycle.
type Batch struct {
	New     []ShippedQuad
	Deleted []tileid.ID
}

// Stats is a point-in-time snapshot of the scheduler's counters, logged
// periodically by the owning RenderingContext.
type Stats struct {
	Requested int64
	InFlight  int64
	Cached    int64
	Shipped   int64
}

// VisibleTile is one entry of a camera-driven desired set, carrying the
// screen-space error DrawListGenerator computed for it so the scheduler can
// prioritize requests by descending zoom then descending SSE.
type VisibleTile struct {
	ID  tileid.ID
	SSE float64
}

// GeometryCache is the companion predicate the POI/label pipeline's ship
// decision additionally depends on — an explicit dependency edge rather
// than a concrete coupling to whatever tracks parsed vector geometry.
type GeometryCache interface {
	Contains(tileid.ID) bool
}
