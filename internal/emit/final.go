package emit

import (
	"io"
	"sync"

	"github.com/arvn-bio/junctions/internal/candmask"
	"github.com/arvn-bio/junctions/internal/fasta"
	"github.com/arvn-bio/junctions/internal/metrics"
	"github.com/arvn-bio/junctions/internal/task"
	"github.com/arvn-bio/junctions/internal/vertex"
)

// RunFinalPass re-reads the full input one last time, OR-merges each
// task's per-round candidate masks, confirms the union against store,
// and writes the ordered junction position stream to w (spec.md §4.I).
// openReaders is called once; rounds is the number of per-round mask
// files saved under tmpDir for every task.
func RunFinalPass(openReaders func() ([]*fasta.Reader, error), store *vertex.Storage, k, threads, rounds int, tmpDir string, w io.Writer) error {
	e := NewEmitter(store, k)
	sink := NewOrderedSink(NewWriter(w))

	readers, err := openReaders()
	if err != nil {
		return err
	}
	queues := task.NewQueues(threads)
	producer := &task.Producer{Queues: queues, Overlap: k}

	var mu sync.Mutex
	var firstErr error
	setErr := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	go func() { setErr(producer.Run(readers, 0)) }()

	task.Drain(queues, func(t task.Task) {
		metrics.TasksConsumed.WithLabelValues("emit").Inc()

		masks := make([]*candmask.Mask, rounds)
		for r := 0; r < rounds; r++ {
			m, err := candmask.Load(tmpDir, t.SeqID, t.StartOffset, r)
			if err != nil {
				setErr(err)
				return
			}
			masks[r] = m
		}
		merged := candmask.Merge(masks...)

		tv := TaskView{
			SeqID:       t.SeqID,
			StartOffset: t.StartOffset,
			IsFinal:     t.IsFinal,
			FirstOfSeq:  t.StartOffset == 0,
			Buffer:      t.Buffer,
		}
		positions := e.EmitTask(tv, merged)
		setErr(sink.Submit(t.PieceIndex, uint32(t.SeqID), positions))
	})

	mu.Lock()
	defer mu.Unlock()
	return firstErr
}
