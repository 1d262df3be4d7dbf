// Package candmask implements the per-task candidate mask (spec.md §3):
// a sparse set of local positions within a task's buffer whose k-mer
// survived the degree check in pass 1b. Masks persist to
// tmpDir/{seqId}_{startOffset}_{round}.tmp between the two passes of a
// round, and are OR-merged across rounds for the final emission pass
// (spec.md §4.I; implemented as a sparse set per the §9 open-question
// decision recorded in DESIGN.md, not a re-inserted Cuckoo filter).
package candmask

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/arvn-bio/junctions/internal/errs"
)

// Mask is a sparse, growable set of uint32 local positions.
type Mask struct {
	set map[uint32]struct{}
}

// New returns an empty mask.
func New() *Mask { return &Mask{set: make(map[uint32]struct{})} }

// Add marks pos as a candidate.
func (m *Mask) Add(pos uint32) { m.set[pos] = struct{}{} }

// Has reports whether pos was marked.
func (m *Mask) Has(pos uint32) bool {
	_, ok := m.set[pos]
	return ok
}

// Len returns the number of marked positions.
func (m *Mask) Len() int { return len(m.set) }

// Positions returns the marked positions in ascending order.
func (m *Mask) Positions() []uint32 {
	out := make([]uint32, 0, len(m.set))
	for p := range m.set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Merge returns the union of masks (their logical OR), the operation the
// final emission pass uses to combine a task's per-round masks.
func Merge(masks ...*Mask) *Mask {
	out := New()
	for _, m := range masks {
		if m == nil {
			continue
		}
		for p := range m.set {
			out.set[p] = struct{}{}
		}
	}
	return out
}

// WriteTo serialises the mask as (count uint32) followed by ascending
// delta-encoded uint32 positions.
func (m *Mask) WriteTo(w io.Writer) error {
	positions := m.Positions()
	if err := binary.Write(w, binary.LittleEndian, uint32(len(positions))); err != nil {
		return errs.Wrap(errs.IoError, err)
	}
	var prev uint32
	for _, p := range positions {
		delta := p - prev
		if err := binary.Write(w, binary.LittleEndian, delta); err != nil {
			return errs.Wrap(errs.IoError, err)
		}
		prev = p
	}
	return nil
}

// ReadFrom reconstructs a mask written by WriteTo.
func ReadFrom(r io.Reader) (*Mask, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, errs.Wrap(errs.IoError, err)
	}
	m := New()
	var prev uint32
	for i := uint32(0); i < count; i++ {
		var delta uint32
		if err := binary.Read(r, binary.LittleEndian, &delta); err != nil {
			return nil, errs.Wrap(errs.IoError, err)
		}
		prev += delta
		m.set[prev] = struct{}{}
	}
	return m, nil
}

// FileName builds the per-task, per-round tempfile path from spec.md §3:
// tmpDir/{seqId}_{startOffset}_{round}.tmp.
func FileName(tmpDir string, seqID int, startOffset int64, round int) string {
	return filepath.Join(tmpDir, fmt.Sprintf("%d_%d_%d.tmp", seqID, startOffset, round))
}

// Save writes m to FileName(tmpDir, seqID, startOffset, round).
func Save(tmpDir string, seqID int, startOffset int64, round int, m *Mask) error {
	path := FileName(tmpDir, seqID, startOffset, round)
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.IoError, err)
	}
	defer f.Close()
	return m.WriteTo(f)
}

// Load reads a mask saved by Save. If the file does not exist, Load
// returns an empty mask and no error — a task may have had zero
// candidates in a given round.
func Load(tmpDir string, seqID int, startOffset int64, round int) (*Mask, error) {
	path := FileName(tmpDir, seqID, startOffset, round)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, errs.Wrap(errs.IoError, err)
	}
	defer f.Close()
	return ReadFrom(f)
}
