// Package roundplan implements the round planner (component F): a
// preparatory pass that partitions the canonical-hash space into rounds
// sized so each round's occurrence set fits memory, per spec.md §4.F.
package roundplan

import (
	"github.com/arvn-bio/junctions/internal/cuckoo"
)

// DefaultBinsCount is BINS_COUNT from spec.md §4.F: the hash space
// [0, 2^filterBits) is divided into this many equal bins during
// histogram construction.
const DefaultBinsCount = uint64(1) << 24

// Round is a half-open canonical-hash range [Low, High) processed in a
// single in-memory pass.
type Round struct {
	Low, High uint64
}

// Within reports whether hash falls in the round's range.
func (r Round) Within(hash uint64) bool {
	return hash >= r.Low && hash < r.High
}

// Planner accumulates a bin histogram across one preparatory pass over
// all observed edges, then derives a round partition from it.
type Planner struct {
	filterBits uint
	binsCount  uint64
	binSize    uint64
	counter    []uint64
	filter     *cuckoo.Filter
}

// NewPlanner sizes a planner over the hash space [0, 2^filterBits),
// divided into binsCount equal bins (pass 0 in spec.md §4.F). The
// preparatory Cuckoo filter is sized 2^filterBits + 1, matching the
// original reference implementation.
func NewPlanner(filterBits uint, binsCount uint64) *Planner {
	if binsCount == 0 {
		binsCount = DefaultBinsCount
	}
	space := uint64(1) << filterBits
	binSize := space / binsCount
	if binSize == 0 {
		binSize = 1
	}
	return &Planner{
		filterBits: filterBits,
		binsCount:  binsCount,
		binSize:    binSize,
		counter:    make([]uint64, binsCount+1),
		filter:     cuckoo.New(space + 1),
	}
}

// Histogram returns a copy of the accumulated bin counts, for optional
// diagnostic dumping (spec.md §6's `-dump-histogram`).
func (p *Planner) Histogram() []uint64 {
	out := make([]uint64, len(p.counter))
	copy(out, p.counter)
	return out
}

func (p *Planner) binOf(hash uint64) uint64 {
	b := hash / p.binSize
	if b >= p.binsCount {
		b = p.binsCount - 1
	}
	return b
}

// Observe records one edge's two endpoint canonical hashes. Per the
// decision recorded in SPEC_FULL.md (and spec.md §9's open question),
// this mirrors the original reference implementation's actual behavior:
// both endpoint bins are incremented unconditionally on every
// observation, so the histogram reflects edge-occurrence multiplicities,
// not distinct-edge counts. The preparatory Cuckoo filter is still
// populated, but a duplicate Add is not treated as a reason to skip the
// increment.
//
// A FilterOverflow from the preparatory filter is propagated: the round
// count chosen from a histogram built against an overflowed filter would
// misrepresent the true edge population and is not safe to round-plan
// from.
func (p *Planner) Observe(startVertexHash, endVertexHash uint64) error {
	if err := p.filter.Add(startVertexHash); err != nil {
		return err
	}
	if err := p.filter.Add(endVertexHash); err != nil {
		return err
	}
	p.counter[p.binOf(startVertexHash)]++
	p.counter[p.binOf(endVertexHash)]++
	return nil
}

// Plan forms `rounds` round boundaries from the accumulated histogram by
// walking bins from 0, extending the current round until its
// accumulated count first exceeds totalCount/rounds, then starting the
// next round; the final round absorbs any remainder. When rounds <= 1,
// Plan returns a single round spanning the whole hash space without
// consulting the histogram (spec.md §4.F: "When rounds == 1 the planner
// is skipped").
func (p *Planner) Plan(rounds int) []Round {
	fullSpace := uint64(1) << p.filterBits
	if rounds <= 1 {
		return []Round{{Low: 0, High: fullSpace}}
	}

	var total uint64
	for _, c := range p.counter {
		total += c
	}
	target := total / uint64(rounds)
	if target == 0 {
		target = 1
	}

	out := make([]Round, 0, rounds)
	var accumulated uint64
	lowBin := uint64(0)
	for bin := uint64(0); bin < p.binsCount; bin++ {
		accumulated += p.counter[bin]
		if accumulated > target && len(out) < rounds-1 {
			out = append(out, Round{Low: lowBin * p.binSize, High: (bin + 1) * p.binSize})
			lowBin = bin + 1
			accumulated = 0
		}
	}
	out = append(out, Round{Low: lowBin * p.binSize, High: fullSpace})
	return out
}
