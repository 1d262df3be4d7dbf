package emit

import "sync"

// OrderedSink serialises out-of-order worker results back into strict
// pieceIndex order before handing them to a Writer, implementing spec.md
// §4.I's "per-worker deque, flush when head == currentPiece" rule with a
// single pending map instead of per-worker deques (functionally
// equivalent: any number of pieces may wait in the map, but only the
// piece at the current head releases them).
type OrderedSink struct {
	mu      sync.Mutex
	pending map[int64][]Position
	next    int64
	writer  *Writer
}

// NewOrderedSink wraps w with pieceIndex-ordered flushing, starting at
// piece 0.
func NewOrderedSink(w *Writer) *OrderedSink {
	return &OrderedSink{pending: make(map[int64][]Position), writer: w}
}

// Submit registers one piece's positions (tagged with chr, its
// chromosome/seqID) and flushes every contiguous run of pieces starting
// at the current head.
func (s *OrderedSink) Submit(pieceIndex int64, chr uint32, positions []Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tagged := make([]Position, len(positions))
	for i, p := range positions {
		p.Chr = chr
		tagged[i] = p
	}
	s.pending[pieceIndex] = tagged

	for {
		ps, ok := s.pending[s.next]
		if !ok {
			return nil
		}
		delete(s.pending, s.next)
		for _, p := range ps {
			if err := s.writer.WriteJunction(p); err != nil {
				return err
			}
		}
		s.next++
	}
}
