package rollhash

import (
	"math/rand"
	"testing"

	"gopkg.in/check.v1"
)

func Test(t *testing.T) { check.TestingT(t) }

type rollhashSuite struct{}

var _ = check.Suite(&rollhashSuite{})

func randSeq(n int) []byte {
	bases := []byte{'A', 'C', 'G', 'T'}
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = bases[rand.Intn(4)]
	}
	return buf
}

func (s *rollhashSuite) TestIncrementalAgreesWithFromScratch(c *check.C) {
	k := 11
	seq := randSeq(500)
	f := New(4, k, 24, 0xC0FFEE)
	f.Init(seq[:k])
	c.Assert(f.Assert(seq[:k]), check.Equals, true)

	for i := k; i < len(seq); i++ {
		f.Advance(seq[i-k], seq[i])
		window := seq[i-k+1 : i+1]
		c.Assert(f.Assert(window), check.Equals, true)
	}
}

func (s *rollhashSuite) TestCanonicalHashStableUnderReverseComplement(c *check.C) {
	k := 9
	fwdSeq := []byte("ACGTACGTA")
	rcSeq := make([]byte, k)
	comp := map[byte]byte{'A': 'T', 'C': 'G', 'G': 'C', 'T': 'A'}
	for i := 0; i < k; i++ {
		rcSeq[i] = comp[fwdSeq[k-1-i]]
	}

	f1 := New(3, k, 24, 42)
	f1.Init(fwdSeq)
	f2 := New(3, k, 24, 42)
	f2.Init(rcSeq)
	c.Check(f1.CanonicalHash(), check.Equals, f2.CanonicalHash())
}

func (s *rollhashSuite) TestBinValueWithinRange(c *check.C) {
	f := New(2, 7, 10, 7)
	f.Init([]byte("ACGTACG"))
	c.Check(f.BinValue() < (1 << 10), check.Equals, true)
}
