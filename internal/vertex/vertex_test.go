package vertex

import (
	"bytes"
	"testing"

	"gopkg.in/check.v1"

	"github.com/arvn-bio/junctions/internal/kmer"
)

func Test(t *testing.T) { check.TestingT(t) }

type vertexSuite struct{}

var _ = check.Suite(&vertexSuite{})

func (s *vertexSuite) TestInitAndLookup(c *check.C) {
	k := 9
	seqs := []string{"ACGTACGTA", "TTTTTTTTT", "GGGGGCCCC"}
	var buf bytes.Buffer
	for _, seq := range seqs {
		buf.Write(kmer.FromString(seq).Bytes())
	}

	store, err := Init(&buf, k, 4)
	c.Assert(err, check.IsNil)
	c.Check(store.GetDistinctVerticesCount(), check.Equals, uint64(3))

	for i, seq := range seqs {
		id := store.GetId(kmer.FromString(seq))
		c.Check(id >= 0, check.Equals, true)
		_ = i
	}

	c.Check(store.GetId(kmer.FromString("AAAAAAAAA")), check.Equals, InvalidVertex)
}

func (s *vertexSuite) TestIdsAreDistinct(c *check.C) {
	k := 5
	seqs := []string{"AAAAA", "CCCCC", "GGGGG", "TTTTT"}
	var buf bytes.Buffer
	for _, seq := range seqs {
		buf.Write(kmer.FromString(seq).Bytes())
	}
	store, err := Init(&buf, k, 2)
	c.Assert(err, check.IsNil)

	seen := map[int64]bool{}
	for _, seq := range seqs {
		id := store.GetId(kmer.FromString(seq))
		c.Assert(seen[id], check.Equals, false)
		seen[id] = true
	}
}
