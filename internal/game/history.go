// internal/game/history.go
package game

import "github.com/playmat/playmat/internal/models"

// MaxHistoryDepth bounds the snapshot stack; the oldest snapshot is evicted
// once the depth is exceeded.
const MaxHistoryDepth = 50

// History is a bounded, branch-discarding undo/redo stack of whole-state
// snapshots. Save is called with the pre-mutation state before every
// undoable action; Undo/Redo walk the resulting linear timeline. Saving
// while undone discards the redo tail (linear undo, not a tree).
type History struct {
	snaps []*models.GameState

	// cursor indexes the most recent snapshot still behind the live state.
	// -1 means fully unwound. Invariant: -1 <= cursor < len(snaps).
	cursor int
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{cursor: -1}
}

// Save records the pre-mutation state, truncating any redo tail first.
func (h *History) Save(pre *models.GameState) {
	if h.cursor < len(h.snaps)-1 {
		h.snaps = h.snaps[:h.cursor+1]
	}
	h.snaps = append(h.snaps, pre.Clone())
	h.cursor = len(h.snaps) - 1
	if len(h.snaps) > MaxHistoryDepth {
		h.snaps = h.snaps[1:]
		h.cursor--
	}
}

// Undo returns the state one step back, or (nil, false) at the boundary.
// live is the current authoritative state; on the first undo after new
// actions it is captured so Redo can return to it. The returned state is a
// clone the caller may install directly.
func (h *History) Undo(live *models.GameState) (*models.GameState, bool) {
	if h.cursor < 0 {
		return nil, false
	}
	if h.cursor == len(h.snaps)-1 {
		h.snaps = append(h.snaps, live.Clone())
	}
	restored := h.snaps[h.cursor]
	h.cursor--
	return restored.Clone(), true
}

// Redo returns the state one step forward, or (nil, false) when no redo
// target exists (always the case after a Save forked the timeline).
func (h *History) Redo() (*models.GameState, bool) {
	if h.cursor+2 >= len(h.snaps) {
		return nil, false
	}
	h.cursor++
	return h.snaps[h.cursor+1].Clone(), true
}

// CanRedo reports whether a redo target exists.
func (h *History) CanRedo() bool {
	return h.cursor+2 < len(h.snaps)
}

// Clear drops the entire timeline. A loaded save code starts a new timeline
// with no prior snapshots.
func (h *History) Clear() {
	h.snaps = nil
	h.cursor = -1
}

// Len returns the number of stored snapshots.
func (h *History) Len() int {
	return len(h.snaps)
}
