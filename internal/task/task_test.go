package task

import (
	"testing"

	"gopkg.in/check.v1"

	"github.com/arvn-bio/junctions/internal/fasta"
)

func Test(t *testing.T) { check.TestingT(t) }

type taskSuite struct{}

var _ = check.Suite(&taskSuite{})

func (s *taskSuite) TestProducerEmitsSentinelPerQueue(c *check.C) {
	p := &Producer{Queues: NewQueues(3), Overlap: 3}
	rdr := fasta.FromString(">x\nACGTACGTACGT\n")
	go func() {
		c.Assert(p.Run([]*fasta.Reader{rdr}, 0), check.IsNil)
	}()

	sentinels := 0
	var tasks []Task
	for _, q := range p.Queues {
		for t := range q {
			if t.IsSentinel() {
				sentinels++
				break
			}
			tasks = append(tasks, t)
		}
	}
	c.Check(sentinels, check.Equals, 3)
	c.Check(len(tasks) >= 1, check.Equals, true)
}

func (s *taskSuite) TestSplitRecordSentinelBases(c *check.C) {
	p := &Producer{Queues: NewQueues(1), Overlap: 0}
	var pieceIndex int64
	var tasks []Task
	p.splitRecord(0, []byte("ACGTACGTACGT"), &pieceIndex, func(t Task) { tasks = append(tasks, t) })
	c.Assert(len(tasks) >= 1, check.Equals, true)
	c.Check(tasks[0].Buffer[0], check.Equals, byte('N'))
	c.Check(tasks[len(tasks)-1].IsFinal, check.Equals, true)
	c.Check(tasks[len(tasks)-1].Buffer[len(tasks[len(tasks)-1].Buffer)-1], check.Equals, byte('N'))
}

func (s *taskSuite) TestPieceIndexDistinct(c *check.C) {
	p := &Producer{Queues: NewQueues(2), Overlap: 2}
	rdr := fasta.FromString(">x\nACGTACGTACGTACGTACGT\n>y\nTTTTGGGGCCCCAAAA\n")
	go func() {
		c.Assert(p.Run([]*fasta.Reader{rdr}, 0), check.IsNil)
	}()

	var pieces []int64
	for _, q := range p.Queues {
		for t := range q {
			if t.IsSentinel() {
				break
			}
			pieces = append(pieces, t.PieceIndex)
		}
	}
	seen := map[int64]bool{}
	for _, pi := range pieces {
		c.Assert(seen[pi], check.Equals, false)
		seen[pi] = true
	}
}
