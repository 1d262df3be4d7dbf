package junction

import (
	"bytes"
	"sync"
	"testing"

	"gopkg.in/check.v1"

	"github.com/arvn-bio/junctions/internal/candmask"
	"github.com/arvn-bio/junctions/internal/cuckoo"
	"github.com/arvn-bio/junctions/internal/kmer"
	"github.com/arvn-bio/junctions/internal/rollhash"
	"github.com/arvn-bio/junctions/internal/roundplan"
)

func Test(t *testing.T) { check.TestingT(t) }

type junctionSuite struct{}

var _ = check.Suite(&junctionSuite{})

func fullRound() roundplan.Round {
	return roundplan.Round{Low: 0, High: ^uint64(0)}
}

func (s *junctionSuite) TestFillEdgesInsertsDefiniteWindows(c *check.C) {
	k := 3
	buf := []byte("NACGTN")
	fam := rollhash.New(4, k, 62, 1)
	ht := TrackHashes(buf, fam)

	filter := cuckoo.New(64)
	var mu sync.Mutex
	p := Piece{Buffer: buf, FirstOfSeq: true, IsFinal: true}
	c.Assert(FillEdges(p, k, fullRound(), ht, filter, &mu), check.IsNil)

	c.Check(filter.Contain(edgeKey([]byte("ACGT"))), check.Equals, true)
}

func (s *junctionSuite) TestMarkCandidatesDetectsBranchPoint(c *check.C) {
	k := 3
	fam := rollhash.New(4, k, 62, 1)

	filter := cuckoo.New(64)
	var mu sync.Mutex

	seqA := []byte("N" + "AAAAA" + "N")
	seqB := []byte("N" + "CAAAA" + "N")

	pa := Piece{Buffer: seqA, FirstOfSeq: true, IsFinal: true}
	pb := Piece{Buffer: seqB, FirstOfSeq: true, IsFinal: true}

	htA := TrackHashes(seqA, fam)
	c.Assert(FillEdges(pa, k, fullRound(), htA, filter, &mu), check.IsNil)
	htB := TrackHashes(seqB, fam)
	c.Assert(FillEdges(pb, k, fullRound(), htB, filter, &mu), check.IsNil)

	mask := candmask.New()
	MarkCandidates(pb, k, fullRound(), htB, filter, mask)

	// seqB's buffer is N,C,A,A,A,A,N; its first "AAA" begins at local
	// position 2, preceded by 'C' here and by 'A' in seqA.
	c.Check(mask.Has(2), check.Equals, true)
}

func (s *junctionSuite) TestOccurrenceSetFlipsOnDivergentNeighbour(c *check.C) {
	occ := NewOccurrenceSet()
	canon := kmer.FromString("AAA").Canonical()

	occ.Insert(canon, 'C', 'A')
	occ.Insert(canon, 'G', 'A')

	var buf bytes.Buffer
	n, err := occ.FlushBifurcations(&buf)
	c.Assert(err, check.IsNil)
	c.Check(n, check.Equals, 1)
	c.Check(buf.Bytes(), check.DeepEquals, canon.Bytes())
}

func (s *junctionSuite) TestOccurrenceSetStableOnIdenticalNeighbours(c *check.C) {
	occ := NewOccurrenceSet()
	canon := kmer.FromString("GGG").Canonical()

	occ.Insert(canon, 'C', 'A')
	occ.Insert(canon, 'C', 'A')

	var buf bytes.Buffer
	n, err := occ.FlushBifurcations(&buf)
	c.Assert(err, check.IsNil)
	c.Check(n, check.Equals, 0)
}

func (s *junctionSuite) TestOccurrenceSetNUnknownTwiceForcesBifurcation(c *check.C) {
	occ := NewOccurrenceSet()
	canon := kmer.FromString("TTT").Canonical()

	occ.Insert(canon, 'N', 'A')
	occ.Insert(canon, 'N', 'A')

	var buf bytes.Buffer
	n, err := occ.FlushBifurcations(&buf)
	c.Assert(err, check.IsNil)
	c.Check(n, check.Equals, 1)
}

func (s *junctionSuite) TestConfirmInsertsMaskedPositionsOnly(c *check.C) {
	k := 3
	buf := []byte("N" + "AAAA" + "N")
	mask := candmask.New()
	mask.Add(1)
	occ := NewOccurrenceSet()
	Confirm(Piece{Buffer: buf}, k, mask, occ)

	var out bytes.Buffer
	n, err := occ.FlushBifurcations(&out)
	c.Assert(err, check.IsNil)
	// A single occurrence never flips to bifurcation on its own.
	c.Check(n, check.Equals, 0)
}
