package emit

import (
	"sync"

	"github.com/arvn-bio/junctions/internal/candmask"
	"github.com/arvn-bio/junctions/internal/kmer"
	"github.com/arvn-bio/junctions/internal/vertex"
)

// Emitter drives the final pass of spec.md §4.I: for each task's merged
// candidate mask, confirm each candidate in the bifurcation storage and
// emit a position; additionally guarantee every sequence's first and
// last valid k-mer position is emitted, using a stub id when that
// position is not itself a junction.
type Emitter struct {
	store *vertex.Storage
	k     int

	stubMu   sync.Mutex
	nextStub uint64
}

// NewEmitter builds an Emitter over store. The stub counter starts at
// V + 42 per spec.md §4.I and §9 (preserved as a magic constant for
// bitwise compatibility with downstream consumers).
func NewEmitter(store *vertex.Storage, k int) *Emitter {
	return &Emitter{store: store, k: k, nextStub: store.GetDistinctVerticesCount() + 42}
}

// stubID draws the next globally-unique stub vertex id.
func (e *Emitter) stubID() uint64 {
	e.stubMu.Lock()
	id := e.nextStub
	e.nextStub++
	e.stubMu.Unlock()
	return id
}

func allDefinite(window []byte) bool {
	for _, ch := range window {
		if !kmer.IsDefinite(ch) {
			return false
		}
	}
	return true
}

// localToGlobal converts a local buffer position to a global sequence
// position, accounting for the leading sentinel 'N' every task buffer
// carries (spec.md §3).
func localToGlobal(startOffset int64, localPos int) int64 {
	return startOffset + int64(localPos) - 1
}

// candidatePositions confirms every position in merged against the
// bifurcation storage, returning the ones that are true junctions.
func (e *Emitter) candidatePositions(t TaskView, merged *candmask.Mask) []Position {
	var out []Position
	for _, localPos := range merged.Positions() {
		pos := int(localPos)
		if pos+e.k > len(t.Buffer) {
			continue
		}
		window := t.Buffer[pos : pos+e.k]
		if !allDefinite(window) {
			continue
		}
		canon := kmer.FromString(string(window)).Canonical()
		id := e.store.GetId(canon)
		if id == vertex.InvalidVertex {
			continue
		}
		out = append(out, Position{Pos: uint32(localToGlobal(t.StartOffset, pos)), ID: uint64(id)})
	}
	return out
}

// TaskView is the subset of task.Task the emitter needs; kept separate
// from internal/task to avoid a dependency cycle (internal/task doesn't
// need to know about emission).
type TaskView struct {
	SeqID       int
	StartOffset int64
	IsFinal     bool
	Buffer      []byte
	// FirstOfSeq is true for the task holding a sequence's first bases
	// (StartOffset == 0).
	FirstOfSeq bool
}

func firstDefiniteRun(buf []byte, k int) (int, bool) {
	run := 0
	for i := 0; i < len(buf); i++ {
		if kmer.IsDefinite(buf[i]) {
			run++
			if run >= k {
				return i - k + 1, true
			}
		} else {
			run = 0
		}
	}
	return 0, false
}

func lastDefiniteRun(buf []byte, k int) (int, bool) {
	run := 0
	for i := len(buf) - 1; i >= 0; i-- {
		if kmer.IsDefinite(buf[i]) {
			run++
			if run >= k {
				return i, true
			}
		} else {
			run = 0
		}
	}
	return 0, false
}

// EmitTask returns every position to write for one task: confirmed
// candidates, plus (when this task carries a sequence boundary) a stub
// record for the first/last valid position if it wasn't already among
// the confirmed candidates.
func (e *Emitter) EmitTask(t TaskView, merged *candmask.Mask) []Position {
	out := e.candidatePositions(t, merged)

	already := func(globalPos int64) bool {
		for _, p := range out {
			if int64(p.Pos) == globalPos {
				return true
			}
		}
		return false
	}

	if t.FirstOfSeq {
		if startLocal, ok := firstDefiniteRun(t.Buffer, e.k); ok {
			g := localToGlobal(t.StartOffset, startLocal)
			if !already(g) {
				out = append(out, Position{Pos: uint32(g), ID: e.stubID()})
			}
		}
	}
	if t.IsFinal {
		if startLocal, ok := lastDefiniteRun(t.Buffer, e.k); ok {
			g := localToGlobal(t.StartOffset, startLocal)
			if !already(g) {
				out = append(out, Position{Pos: uint32(g), ID: e.stubID()})
			}
		}
	}
	return out
}
