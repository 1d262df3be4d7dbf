// Package emit implements the position emitter (component I): the final
// pass that reconstructs per-task candidate masks, looks each candidate
// up in the bifurcation storage, and writes the ordered junction
// position stream, plus the binary reader/writer for that stream
// (spec.md §6, grounded on the original's JunctionPositionReader/Writer).
package emit

import (
	"encoding/binary"
	"io"

	"github.com/arvn-bio/junctions/internal/errs"
)

// SeparatorPos and SeparatorBif are the sentinel values marking a
// chromosome boundary in the on-disk stream (spec.md §3, §6).
const (
	SeparatorPos uint32 = 0xFFFFFFFF
	SeparatorBif uint64 = 0xFFFFFFFFFFFFFFFF
)

// Position is one junction occurrence.
type Position struct {
	Chr uint32
	Pos uint32
	ID  uint64
}

// Writer streams Position records, inserting separator records as Chr
// advances, mirroring the original JunctionPositionWriter: only (pos,
// id) is written per record; the chromosome index is implicit in how
// many separators have been written so far.
type Writer struct {
	w      io.Writer
	nowChr uint32
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// WriteJunction writes one position, first emitting however many
// separator records are needed to advance nowChr up to pos.Chr.
func (w *Writer) WriteJunction(pos Position) error {
	for pos.Chr > w.nowChr {
		if err := w.writeRaw(SeparatorPos, SeparatorBif); err != nil {
			return err
		}
		w.nowChr++
	}
	return w.writeRaw(pos.Pos, pos.ID)
}

func (w *Writer) writeRaw(pos uint32, id uint64) error {
	if err := binary.Write(w.w, binary.LittleEndian, pos); err != nil {
		return errs.Wrap(errs.IoError, err)
	}
	if err := binary.Write(w.w, binary.LittleEndian, id); err != nil {
		return errs.Wrap(errs.IoError, err)
	}
	return nil
}

// Reader reads back a stream written by Writer, tracking the current
// chromosome index across separator records.
type Reader struct {
	r      io.Reader
	nowChr uint32
}

func NewReader(r io.Reader) *Reader { return &Reader{r: r} }

// NextJunctionPosition reads the next non-separator record, or returns
// io.EOF when the stream is exhausted.
func (r *Reader) NextJunctionPosition() (Position, error) {
	for {
		var pos uint32
		var id uint64
		if err := binary.Read(r.r, binary.LittleEndian, &pos); err == io.EOF {
			return Position{}, io.EOF
		} else if err != nil {
			return Position{}, errs.Wrap(errs.IoError, err)
		}
		if err := binary.Read(r.r, binary.LittleEndian, &id); err != nil {
			return Position{}, errs.Wrap(errs.IoError, err)
		}
		if pos == SeparatorPos && id == SeparatorBif {
			r.nowChr++
			continue
		}
		return Position{Chr: r.nowChr, Pos: pos, ID: id}, nil
	}
}
