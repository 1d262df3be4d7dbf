package bitvec

import (
	"bytes"
	"sync"
	"testing"

	"gopkg.in/check.v1"
)

func Test(t *testing.T) { check.TestingT(t) }

type bitvecSuite struct{}

var _ = check.Suite(&bitvecSuite{})

func (s *bitvecSuite) TestSetIdempotentTest(c *check.C) {
	bv := New(1000)
	bv.Set(5)
	bv.Set(5)
	c.Check(bv.Test(5), check.Equals, true)
	c.Check(bv.Test(6), check.Equals, false)
}

func (s *bitvecSuite) TestConcurrentSet(c *check.C) {
	bv := New(10000)
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		g := g
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := g; i < 10000; i += 16 {
				bv.Set(uint64(i))
			}
		}()
	}
	wg.Wait()
	for i := uint64(0); i < 10000; i++ {
		c.Assert(bv.Test(i), check.Equals, true)
	}
}

func (s *bitvecSuite) TestRoundTripFile(c *check.C) {
	bv := New(257)
	bv.Set(0)
	bv.Set(128)
	bv.Set(256)
	var buf bytes.Buffer
	c.Assert(bv.WriteTo(&buf), check.IsNil)

	bv2, err := ReadFrom(&buf)
	c.Assert(err, check.IsNil)
	c.Check(bv2.Len(), check.Equals, bv.Len())
	c.Check(bv2.Test(0), check.Equals, true)
	c.Check(bv2.Test(128), check.Equals, true)
	c.Check(bv2.Test(256), check.Equals, true)
	c.Check(bv2.Test(1), check.Equals, false)
}
