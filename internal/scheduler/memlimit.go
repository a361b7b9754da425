package scheduler

import (
	"log"
	"runtime"
)

// DefaultRAMFraction is the default fraction of total system RAM that
// ComputeQuadLimit budgets for the memory cache.
const DefaultRAMFraction = 0.25

// estimatedBytesPerQuad approximates one assembled quad's resident size:
// four 256×256 RGBA (4 bytes per pixel) rasters or ortho textures. It is
// a coarse upper bound, not a precise accounting, used only to translate a
// RAM budget into a quad count.
const estimatedBytesPerQuad = 4 * 256 * 256 * 4

// ComputeQuadLimit derives a MemoryCache capacity from a fraction of total
// system RAM, adapted to divide the byte budget by an estimated per-quad
// cost instead of handing back a raw byte ceiling, since a memory cache's
// contract is a quad count, not a byte limit. Falls back to
// DefaultQuadLimit when RAM detection fails or the computed limit is
// unreasonably small.
func ComputeQuadLimit(fraction float64, verbose bool) int {
	totalRAM, err := totalSystemRAM()
	if err != nil {
		if verbose {
			log.Printf("scheduler: cannot detect system RAM: %v; using default quad limit", err)
		}
		return DefaultQuadLimit
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	overhead := m.Sys + 512*1024*1024

	budget := int64(float64(totalRAM)*fraction) - int64(overhead)
	if budget < estimatedBytesPerQuad*100 {
		if verbose {
			log.Printf("scheduler: computed RAM budget too small; using default quad limit")
		}
		return DefaultQuadLimit
	}

	limit := int(budget / estimatedBytesPerQuad)
	if verbose {
		log.Printf("scheduler: RAM-derived quad limit: %d quads (%.1f GB budget / %d bytes each)",
			limit, float64(budget)/(1024*1024*1024), estimatedBytesPerQuad)
	}
	return limit
}
