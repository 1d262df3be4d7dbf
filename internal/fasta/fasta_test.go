package fasta

import (
	"testing"

	"gopkg.in/check.v1"
)

func Test(t *testing.T) { check.TestingT(t) }

type fastaSuite struct{}

var _ = check.Suite(&fastaSuite{})

func (s *fastaSuite) TestReadsMultipleRecords(c *check.C) {
	recs, err := ReadAll(FromString(">chr1\nacgtACGT\nnn\n>chr2\nTTTT\n"))
	c.Assert(err, check.IsNil)
	c.Assert(recs, check.HasLen, 2)
	c.Check(recs[0].Name, check.Equals, "chr1")
	c.Check(string(recs[0].Seq), check.Equals, "ACGTACGTNN")
	c.Check(recs[1].Name, check.Equals, "chr2")
	c.Check(string(recs[1].Seq), check.Equals, "TTTT")
}

func (s *fastaSuite) TestNonACGTBecomesN(c *check.C) {
	recs, err := ReadAll(FromString(">r\nACGTRYKM\n"))
	c.Assert(err, check.IsNil)
	c.Check(string(recs[0].Seq), check.Equals, "ACGTNNNN")
}

func (s *fastaSuite) TestEmptyInput(c *check.C) {
	recs, err := ReadAll(FromString(""))
	c.Assert(err, check.IsNil)
	c.Check(recs, check.HasLen, 0)
}
