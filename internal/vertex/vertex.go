// Package vertex implements the bifurcation storage (component H): a
// build-once, read-many index mapping a canonical packed k-mer to a dense
// 64-bit vertex id, built in parallel from the bifurcation tempfile
// written by internal/junction.
package vertex

import (
	"io"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/arvn-bio/junctions/internal/errs"
	"github.com/arvn-bio/junctions/internal/kmer"
)

// InvalidVertex is returned by GetId for a k-mer that is not a junction.
const InvalidVertex int64 = -1

const numShards = 256

type shard struct {
	mu sync.RWMutex
	m  map[string]uint64
}

// Storage is the read-only (after Init) vertex -> id index.
type Storage struct {
	shards [numShards]*shard
	k      int
	count  uint64
}

func shardIndex(key []byte) int {
	sum := blake2b.Sum256(key)
	// The first byte of an independent hash chooses the shard, kept separate
	// from the rolling-hash family used to find candidates so shard
	// skew and hash-family collisions can't compound each other.
	h := uint64(sum[0]) | uint64(sum[1])<<8 | uint64(sum[2])<<16 | uint64(sum[3])<<24
	return int(h % numShards)
}

// Init reads every fixed-width packed canonical k-mer record from r
// (width kmer.WordsFor(k)*8 bytes each), assigns each a dense id equal to
// its 0-based position in the stream, and builds the shard index across
// threads goroutines operating on disjoint ranges of the in-memory
// record list. GetDistinctVerticesCount() afterward equals the number of
// records read.
func Init(r io.Reader, k int, threads int) (*Storage, error) {
	width := kmer.WordsFor(k) * 8
	var records [][]byte
	buf := make([]byte, width)
	for {
		_, err := io.ReadFull(r, buf)
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errs.Wrap(errs.IoError, err)
		}
		rec := make([]byte, width)
		copy(rec, buf)
		records = append(records, rec)
	}

	s := &Storage{k: k, count: uint64(len(records))}
	for i := range s.shards {
		s.shards[i] = &shard{m: make(map[string]uint64)}
	}

	if threads < 1 {
		threads = 1
	}
	n := len(records)
	chunk := (n + threads - 1) / threads
	if chunk == 0 {
		chunk = 1
	}
	var wg sync.WaitGroup
	for t := 0; t < threads; t++ {
		lo := t * chunk
		hi := lo + chunk
		if lo >= n {
			break
		}
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				key := records[i]
				sh := s.shards[shardIndex(key)]
				sh.mu.Lock()
				sh.m[string(key)] = uint64(i)
				sh.mu.Unlock()
			}
		}(lo, hi)
	}
	wg.Wait()
	return s, nil
}

// GetId returns the dense id of a canonical k-mer, or InvalidVertex if it
// is not a junction. Safe for concurrent use by multiple readers.
func (s *Storage) GetId(canonical *kmer.KMer) int64 {
	key := canonical.Bytes()
	sh := s.shards[shardIndex(key)]
	sh.mu.RLock()
	id, ok := sh.m[string(key)]
	sh.mu.RUnlock()
	if !ok {
		return InvalidVertex
	}
	return int64(id)
}

// GetDistinctVerticesCount returns V, the number of records Init read.
func (s *Storage) GetDistinctVerticesCount() uint64 { return s.count }
