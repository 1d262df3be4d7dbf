package junction

import (
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/arvn-bio/junctions/internal/candmask"
	"github.com/arvn-bio/junctions/internal/cuckoo"
	"github.com/arvn-bio/junctions/internal/fasta"
	"github.com/arvn-bio/junctions/internal/metrics"
	"github.com/arvn-bio/junctions/internal/rollhash"
	"github.com/arvn-bio/junctions/internal/roundplan"
	"github.com/arvn-bio/junctions/internal/task"
)

// numHashFunctions is h in spec.md §4.B; four independent functions give
// a comfortably low collision rate for round-range partitioning without
// making Advance noticeably more expensive.
const numHashFunctions = 4

// errBox records the first non-nil error reported by any of several
// concurrent workers, per spec.md §5's "first failing worker records its
// error under a mutex" cancellation model.
type errBox struct {
	mu  sync.Mutex
	err error
}

func (b *errBox) set(err error) {
	if err == nil {
		return
	}
	b.mu.Lock()
	if b.err == nil {
		b.err = err
	}
	b.mu.Unlock()
}

func (b *errBox) get() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func pieceOf(t task.Task) Piece {
	return Piece{
		StartOffset: t.StartOffset,
		IsFinal:     t.IsFinal,
		FirstOfSeq:  t.StartOffset == 0,
		Buffer:      t.Buffer,
	}
}

// runPass opens a fresh set of readers and drives one producer/worker-pool
// pass of the task pipeline over them, applying work to every non-sentinel
// task and returning the first error observed from either the producer or
// any worker.
func runPass(openReaders func() ([]*fasta.Reader, error), phase string, threads, overlap int, work func(task.Task) error) error {
	readers, err := openReaders()
	if err != nil {
		return err
	}
	queues := task.NewQueues(threads)
	producer := &task.Producer{Queues: queues, Overlap: overlap}

	var eb errBox
	go func() { eb.set(producer.Run(readers, 0)) }()

	task.Drain(queues, func(t task.Task) {
		metrics.TasksConsumed.WithLabelValues(phase).Inc()
		if err := work(t); err != nil {
			eb.set(err)
		}
	})
	return eb.get()
}

// RoundResult summarises one round's write-out.
type RoundResult struct {
	Bifurcations int
}

// RunRound executes pass 1a (edge filter fill), pass 1b (candidate
// marking) and pass 2 (confirmation) for one round, then flushes
// confirmed bifurcations to bifWriter under bifMu. openReaders is called
// once per pass since a fasta.Reader cannot be rewound; callers
// typically reopen the same input paths each time.
func RunRound(
	openReaders func() ([]*fasta.Reader, error),
	k, threads int,
	filterBits uint,
	seedBits uint,
	seed uint64,
	round roundplan.Round,
	tmpDir string,
	roundIdx int,
	bifWriter io.Writer,
	bifMu *sync.Mutex,
) (RoundResult, error) {
	started := time.Now()
	defer func() {
		metrics.RoundDuration.WithLabelValues(roundLabel(roundIdx)).Observe(time.Since(started).Seconds())
	}()

	filter := cuckoo.New(uint64(1) << filterBits)
	var filterMu sync.Mutex

	fillErr := runPass(openReaders, "fill", threads, k+1, func(t task.Task) error {
		fam := rollhash.New(numHashFunctions, k, seedBits, seed)
		ht := TrackHashes(t.Buffer, fam)
		return FillEdges(pieceOf(t), k, round, ht, filter, &filterMu)
	})
	if fillErr != nil {
		return RoundResult{}, fillErr
	}

	markErr := runPass(openReaders, "mark", threads, k+1, func(t task.Task) error {
		fam := rollhash.New(numHashFunctions, k, seedBits, seed)
		ht := TrackHashes(t.Buffer, fam)
		mask := candmask.New()
		MarkCandidates(pieceOf(t), k, round, ht, filter, mask)
		metrics.CandidateMasksInFlight.Inc()
		return candmask.Save(tmpDir, t.SeqID, t.StartOffset, roundIdx, mask)
	})
	if markErr != nil {
		return RoundResult{}, markErr
	}

	occ := NewOccurrenceSet()
	confirmErr := runPass(openReaders, "confirm", threads, k+1, func(t task.Task) error {
		mask, err := candmask.Load(tmpDir, t.SeqID, t.StartOffset, roundIdx)
		if err != nil {
			return err
		}
		metrics.CandidateMasksInFlight.Dec()
		Confirm(pieceOf(t), k, mask, occ)
		return nil
	})
	if confirmErr != nil {
		return RoundResult{}, confirmErr
	}

	bifMu.Lock()
	n, err := occ.FlushBifurcations(bifWriter)
	bifMu.Unlock()
	if err != nil {
		return RoundResult{}, err
	}
	return RoundResult{Bifurcations: n}, nil
}

func roundLabel(roundIdx int) string {
	return "round_" + strconv.Itoa(roundIdx)
}

// BuildHistogram drives pass 0 (spec.md §4.F): a single read-through of
// the input, feeding both endpoint canonical hashes of every definite
// (k+1)-edge window into planner, which accumulates the bin histogram
// Plan() later partitions into rounds.
func BuildHistogram(openReaders func() ([]*fasta.Reader, error), k, threads int, seedBits uint, seed uint64, planner *roundplan.Planner) error {
	return runPass(openReaders, "histogram", threads, k+1, func(t task.Task) error {
		fam := rollhash.New(numHashFunctions, k, seedBits, seed)
		ht := TrackHashes(t.Buffer, fam)
		buf := t.Buffer
		for pos := 0; pos+k+1 <= len(buf); pos++ {
			if !ht.valid[pos] || pos+1 >= len(ht.valid) || !ht.valid[pos+1] {
				continue
			}
			if err := planner.Observe(ht.hash[pos], ht.hash[pos+1]); err != nil {
				return err
			}
		}
		return nil
	})
}
