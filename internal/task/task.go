// Package task implements the task pipeline (component E): a single
// producer cutting FASTA records into overlapping buffers and
// distributing them, round-robin-with-skip, across T bounded queues
// feeding a worker pool.
package task

import (
	"io"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/arvn-bio/junctions/internal/fasta"
)

// GameOver marks the sentinel task that signals a queue's producer is
// done; exactly one is sent to every queue after the last record.
const GameOver int64 = -1

// Size is the maximum buffer length of a non-final task, TASK_SIZE in
// spec.md §3.
const Size = 1 << 20

// Task carries one contiguous chunk of one sequence.
type Task struct {
	SeqID       int
	StartOffset int64
	PieceIndex  int64
	IsFinal     bool
	Buffer      []byte
}

// IsSentinel reports whether t is the GAME_OVER marker for its queue.
func (t Task) IsSentinel() bool { return t.StartOffset == GameOver }

// Queue is one worker's bounded input channel. Capacity matches
// spec.md's QUEUE_CAPACITY (16). The producer sends through a
// non-blocking select, standing in for the spec's try_push spin; workers
// receive with a plain blocking channel read.
type Queue chan Task

const Capacity = 16

func newQueue() Queue { return make(Queue, Capacity) }

// NewQueues allocates n bounded queues.
func NewQueues(n int) []Queue {
	qs := make([]Queue, n)
	for i := range qs {
		qs[i] = newQueue()
	}
	return qs
}

// Producer reads every record from every input reader in order and cuts
// each into Size-capped buffers, overlapping consecutive buffers of the
// same record by overlap bases, round-robin-with-skip across queues.
type Producer struct {
	Queues  []Queue
	Overlap int // k+1 for the filter-fill/candidate passes, k for the final pass
}

// Run drains every reader in readers (in order) and distributes tasks.
// It closes nothing; callers read until they observe GameOver on every
// queue. seqIDBase lets multiple input files share one monotone seqID
// space across calls.
func (p *Producer) Run(readers []*fasta.Reader, seqIDBase int) error {
	var pieceIndex int64
	next := 0 // round-robin cursor
	seqID := seqIDBase

	send := func(t Task) {
		for {
			q := p.Queues[next%len(p.Queues)]
			select {
			case q <- t:
				next++
				return
			default:
				next++
			}
		}
	}

	var runErr error
	for _, rdr := range readers {
		for {
			rec, err := rdr.Next()
			if err == io.EOF {
				break
			} else if err != nil {
				runErr = err
				break
			}
			p.splitRecord(seqID, rec.Seq, &pieceIndex, send)
			seqID++
		}
		if runErr != nil {
			break
		}
	}

	for _, q := range p.Queues {
		q <- Task{StartOffset: GameOver}
	}
	log.WithField("pieces", pieceIndex).Debug("task producer finished")
	return runErr
}

// splitRecord cuts one record's bases into overlapping Size-capped
// buffers. Every buffer begins with a sentinel 'N' (per spec.md §3); the
// final buffer of a record additionally gets a trailing 'N'.
func (p *Producer) splitRecord(seqID int, seq []byte, pieceIndex *int64, send func(Task)) {
	if len(seq) == 0 {
		return
	}
	overlap := p.Overlap
	if overlap < 0 {
		overlap = 0
	}
	step := Size - overlap
	if step <= 0 {
		step = Size
	}

	for start := 0; start < len(seq); start += step {
		end := start + Size
		isFinal := false
		if end >= len(seq) {
			end = len(seq)
			isFinal = true
		}
		buf := make([]byte, 0, end-start+2)
		buf = append(buf, 'N')
		buf = append(buf, seq[start:end]...)
		if isFinal {
			buf = append(buf, 'N')
		}
		send(Task{
			SeqID:       seqID,
			StartOffset: int64(start),
			PieceIndex:  *pieceIndex,
			IsFinal:     isFinal,
			Buffer:      buf,
		})
		*pieceIndex++
		if isFinal {
			break
		}
	}
}

// Drain reads every queue to completion in a background goroutine calling
// fn for each non-sentinel task, used by workers in internal/junction.
// It returns once every queue has yielded its GameOver sentinel.
func Drain(queues []Queue, fn func(Task)) {
	var wg sync.WaitGroup
	wg.Add(len(queues))
	for _, q := range queues {
		q := q
		go func() {
			defer wg.Done()
			for t := range drainOne(q) {
				fn(t)
			}
		}()
	}
	wg.Wait()
}

// drainOne returns a channel that yields tasks from q until GameOver,
// then closes.
func drainOne(q Queue) <-chan Task {
	out := make(chan Task)
	go func() {
		defer close(out)
		for t := range q {
			if t.IsSentinel() {
				return
			}
			out <- t
		}
	}()
	return out
}
