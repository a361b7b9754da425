package scheduler

import (
	"github.com/alpinemaps/terrainclient/internal/invariant"
	"github.com/alpinemaps/terrainclient/internal/tileid"
)

// QuadAssembler joins four child-tile loads into one logical quad,
// completing when the last child reaches a terminal status regardless of
// whether it succeeded. Not safe for concurrent use.
type QuadAssembler struct {
	pending map[tileid.ID]*pendingEntry
}

type pendingEntry struct {
	slots [4]*ChildResult
	count int
}

// NewQuadAssembler builds an empty assembler.
func NewQuadAssembler() *QuadAssembler {
	return &QuadAssembler{pending: make(map[tileid.ID]*pendingEntry)}
}

// ChildIndex returns child's position (0-3, matching tileid.ID.Children'
// order) within quadID's four children, or false if child is not one of
// them.
func ChildIndex(quadID, child tileid.ID) (int, bool) {
	children := quadID.Children()
	for i, c := range children {
		if c == child {
			return i, true
		}
	}
	return 0, false
}

// Deliver records a single child's terminal result. It returns the completed
// DataQuad and true once all four children have arrived; the assembler's
// entry for quadID is removed at that point so the quad is never emitted
// twice.
func (a *QuadAssembler) Deliver(quadID tileid.ID, childIndex int, result ChildResult) (DataQuad, bool) {
	if childIndex < 0 || childIndex > 3 {
		invariant.Violate("scheduler: child index %d out of range for quad %s", childIndex, quadID)
	}
	entry, ok := a.pending[quadID]
	if !ok {
		entry = &pendingEntry{}
		a.pending[quadID] = entry
	}
	if entry.slots[childIndex] == nil {
		entry.count++
	}
	r := result
	entry.slots[childIndex] = &r

	if entry.count < 4 {
		return DataQuad{}, false
	}

	quad := DataQuad{ID: quadID}
	for i, s := range entry.slots {
		quad.Tiles[i] = *s
	}
	delete(a.pending, quadID)
	return quad, true
}

// Forget clears any partial state for quadID without emitting it — used on
// cancellation so entries never leak.
func (a *QuadAssembler) Forget(quadID tileid.ID) {
	delete(a.pending, quadID)
}

// Pending reports whether quadID has a partially-assembled entry.
func (a *QuadAssembler) Pending(quadID tileid.ID) bool {
	_, ok := a.pending[quadID]
	return ok
}
