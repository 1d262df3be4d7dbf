// Package junction implements the two-pass junction enumerator
// (component G): per round, it fills an edge Cuckoo filter (pass 1a),
// marks candidate positions by probing in/out degree against that
// filter (pass 1b), and confirms candidates into a concurrent
// occurrence set (pass 2), finally flushing confirmed bifurcations to
// the shared bifurcation tempfile (spec.md §4.G).
package junction

import (
	"io"
	"sort"
	"sync"

	"github.com/arvn-bio/junctions/internal/candmask"
	"github.com/arvn-bio/junctions/internal/cuckoo"
	"github.com/arvn-bio/junctions/internal/errs"
	"github.com/arvn-bio/junctions/internal/kmer"
	"github.com/arvn-bio/junctions/internal/rollhash"
	"github.com/arvn-bio/junctions/internal/roundplan"
)

// DummyChar and RevDummyChar are the sentinel bases used to synthesise a
// boundary edge at a true sequence start/end, per spec.md §4.G.
const (
	DummyChar    byte = 'A'
	RevDummyChar byte = 'T'
)

var fourBases = [4]byte{'A', 'C', 'G', 'T'}

// Piece is the subset of a task buffer the enumerator needs. It is kept
// independent of internal/task.Task (which the caller converts to) so
// this package never imports internal/task.
type Piece struct {
	StartOffset int64
	IsFinal     bool
	FirstOfSeq  bool
	Buffer      []byte
}

func allDefinite(window []byte) bool {
	for _, ch := range window {
		if !kmer.IsDefinite(ch) {
			return false
		}
	}
	return true
}

// hashTrack holds the canonical rolling-hash digest of every definite
// k-mer window starting at a given buffer position.
type hashTrack struct {
	hash  []uint64
	valid []bool
}

// TrackHashes precomputes, for every position in buf, the canonical
// digest of the k-mer starting there, resynchronising fam's incremental
// state whenever it crosses an indefinite base. fam is mutated as
// scratch space; callers must not share one Family across goroutines.
func TrackHashes(buf []byte, fam *rollhash.Family) hashTrack {
	k := fam.K()
	n := len(buf) - k + 1
	if n < 0 {
		n = 0
	}
	ht := hashTrack{hash: make([]uint64, n), valid: make([]bool, n)}
	pos := 0
	for pos < n {
		if !allDefinite(buf[pos : pos+k]) {
			pos++
			continue
		}
		fam.Init(buf[pos : pos+k])
		ht.hash[pos] = fam.BinValue()
		ht.valid[pos] = true
		cur := pos
		for cur+1 < n && kmer.IsDefinite(buf[cur+k]) {
			fam.Advance(buf[cur], buf[cur+k])
			cur++
			ht.hash[cur] = fam.BinValue()
			ht.valid[cur] = true
		}
		pos = cur + 1
	}
	return ht
}

func edgeKey(window []byte) uint64 {
	return kmer.FromString(string(window)).Canonical().ToUint64()
}

func inRange(ht hashTrack, pos int, round roundplan.Round) bool {
	return pos >= 0 && pos < len(ht.valid) && ht.valid[pos] && round.Within(ht.hash[pos])
}

// FillEdges implements pass 1a over one piece: every definite (k+1)-window
// whose prefix or suffix k-mer hash falls in round is inserted into
// filter as a canonical edge key. A piece carrying a sequence's true
// start or end additionally gets one dummy edge on that side, using
// DummyChar/RevDummyChar, so the terminal k-mer has a registered
// "unknown" neighbour even if the filter-probe path were relied on
// instead of the direct N-check pass 1b also applies.
func FillEdges(p Piece, k int, round roundplan.Round, ht hashTrack, filter *cuckoo.Filter, mu *sync.Mutex) error {
	buf := p.Buffer
	insert := func(window []byte) error {
		mu.Lock()
		err := filter.Add(edgeKey(window))
		mu.Unlock()
		if err != nil {
			return err
		}
		return nil
	}

	for pos := 0; pos+k+1 <= len(buf); pos++ {
		window := buf[pos : pos+k+1]
		if !allDefinite(window) {
			continue
		}
		if !inRange(ht, pos, round) && !inRange(ht, pos+1, round) {
			continue
		}
		if err := insert(window); err != nil {
			return err
		}
	}

	if p.FirstOfSeq && len(buf) >= 1+k && buf[0] == 'N' && allDefinite(buf[1:1+k]) && inRange(ht, 1, round) {
		dummy := make([]byte, 0, k+1)
		dummy = append(dummy, DummyChar)
		dummy = append(dummy, buf[1:1+k]...)
		if err := insert(dummy); err != nil {
			return err
		}
	}
	if p.IsFinal {
		n := len(buf)
		last := n - 1 - k
		if n >= 1+k && buf[n-1] == 'N' && last >= 0 && allDefinite(buf[last:n-1]) && inRange(ht, last, round) {
			dummy := make([]byte, 0, k+1)
			dummy = append(dummy, buf[last:n-1]...)
			dummy = append(dummy, RevDummyChar)
			if err := insert(dummy); err != nil {
				return err
			}
		}
	}
	return nil
}

// degree counts the four possible extensions of window on one side
// against filter, returning how many are present. build(x) must return
// the (k+1)-byte edge window for extension base x.
func degree(filter *cuckoo.Filter, build func(byte) []byte) int {
	n := 0
	for _, x := range fourBases {
		if filter.Contain(edgeKey(build(x))) {
			n++
		}
	}
	return n
}

// MarkCandidates implements pass 1b over one piece: every definite k-mer
// with canonical hash in round is checked for in/out degree against
// filter; positions with inDegree > 1 or outDegree > 1 are added to
// mask. An actual 'N' (or piece-boundary-with-no-context) neighbour
// forces the corresponding degree above the threshold directly, per
// spec.md §4.G, independent of the filter probe.
func MarkCandidates(p Piece, k int, round roundplan.Round, ht hashTrack, filter *cuckoo.Filter, mask *candmask.Mask) {
	buf := p.Buffer
	for pos := 0; pos+k <= len(buf); pos++ {
		if !inRange(ht, pos, round) {
			continue
		}
		window := buf[pos : pos+k]
		if !allDefinite(window) {
			continue
		}

		inDegree := degree(filter, func(x byte) []byte {
			w := make([]byte, 0, k+1)
			w = append(w, x)
			w = append(w, window...)
			return w
		})
		outDegree := degree(filter, func(x byte) []byte {
			w := make([]byte, 0, k+1)
			w = append(w, window...)
			w = append(w, x)
			return w
		})

		if pos == 0 {
			inDegree += 2
		} else if buf[pos-1] == 'N' {
			inDegree += 2
		}
		if pos+k >= len(buf) {
			outDegree += 2
		} else if buf[pos+k] == 'N' {
			outDegree += 2
		}

		if inDegree > 1 || outDegree > 1 {
			mask.Add(uint32(pos))
		}
	}
}

// occRecord is one occurrence-set entry: the bases actually observed on
// either side of a candidate k-mer, plus whether any observation so far
// forces bifurcation status.
type occRecord struct {
	prevBase, nextBase       byte
	prevUnknown, nextUnknown bool
	isBifurcation            bool
}

const occShards = 256

type occShard struct {
	mu sync.Mutex
	m  map[string]*occRecord
}

// OccurrenceSet is the concurrent, sharded map keyed by canonical packed
// k-mer bytes that pass 2 confirms candidates into.
type OccurrenceSet struct {
	shards [occShards]*occShard
}

// NewOccurrenceSet allocates an empty set.
func NewOccurrenceSet() *OccurrenceSet {
	s := &OccurrenceSet{}
	for i := range s.shards {
		s.shards[i] = &occShard{m: make(map[string]*occRecord)}
	}
	return s
}

func (s *OccurrenceSet) shardFor(key []byte) *occShard {
	var h uint64 = 1469598103934665603
	for _, b := range key {
		h ^= uint64(b)
		h *= 1099511628211
	}
	return s.shards[h%occShards]
}

// Insert merges one occurrence of canon (with the actual prev/next bases
// observed at this occurrence) into the set, applying the collision
// rule from spec.md §4.G.
func (s *OccurrenceSet) Insert(canon *kmer.KMer, prevBase, nextBase byte) {
	key := canon.Bytes()
	incoming := &occRecord{
		prevBase:    prevBase,
		nextBase:    nextBase,
		prevUnknown: prevBase == 'N',
		nextUnknown: nextBase == 'N',
	}

	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	existing, ok := sh.m[string(key)]
	if !ok {
		sh.m[string(key)] = incoming
		return
	}
	if existing.isBifurcation {
		return
	}
	flip := existing.prevBase != incoming.prevBase ||
		existing.nextBase != incoming.nextBase ||
		(existing.prevUnknown && incoming.prevUnknown) ||
		(existing.nextUnknown && incoming.nextUnknown)
	if flip {
		existing.isBifurcation = true
	}
}

// Confirm implements pass 2 over one piece: every mask-marked position
// is recomputed into its canonical k-mer and inserted into occ along
// with the actual bases observed on either side.
func Confirm(p Piece, k int, mask *candmask.Mask, occ *OccurrenceSet) {
	buf := p.Buffer
	for _, localPos := range mask.Positions() {
		pos := int(localPos)
		if pos+k > len(buf) {
			continue
		}
		window := buf[pos : pos+k]
		if !allDefinite(window) {
			continue
		}
		prev := byte('N')
		if pos > 0 {
			prev = buf[pos-1]
		}
		next := byte('N')
		if pos+k < len(buf) {
			next = buf[pos+k]
		}
		canon := kmer.FromString(string(window)).Canonical()
		occ.Insert(canon, prev, next)
	}
}

// FlushBifurcations writes every confirmed (isBifurcation == true)
// record's canonical packed k-mer to w, in a stable byte-sorted order so
// repeated runs over the same input are byte-identical.
func (s *OccurrenceSet) FlushBifurcations(w io.Writer) (int, error) {
	var keys []string
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, rec := range sh.m {
			if rec.isBifurcation {
				keys = append(keys, key)
			}
		}
		sh.mu.Unlock()
	}
	sort.Strings(keys)
	for _, key := range keys {
		if _, err := w.Write([]byte(key)); err != nil {
			return 0, errs.Wrap(errs.IoError, err)
		}
	}
	return len(keys), nil
}
