// Package cuckoo implements the Cuckoo filter wrapper (component D): an
// approximate set of 64-bit keys with fixed 32-bit fingerprints, no false
// negatives, and a compact on-disk representation. Used for the per-round
// edge filter in internal/junction.
package cuckoo

import (
	"encoding/binary"
	"io"
	"math/rand"
	"os"

	"github.com/arvn-bio/junctions/internal/errs"
)

const (
	bucketSize  = 4
	maxKicks    = 500
	fingerprint = 32
)

// Filter is a Cuckoo filter over 64-bit keys. Not safe for concurrent Add;
// callers that need concurrent insertion (internal/junction's filter-fill
// phase) must shard externally or serialise Add calls, e.g. behind a
// mutex.
type Filter struct {
	buckets    [][bucketSize]uint32
	numBuckets uint64
	count      uint64
	rng        *rand.Rand
}

// New allocates a filter sized to hold approximately the given expected
// number of keys at a low false-positive rate. size is rounded up to the
// next power of two number of buckets.
func New(expectedKeys uint64) *Filter {
	need := expectedKeys/bucketSize + 1
	nb := uint64(1)
	for nb < need {
		nb <<= 1
	}
	if nb == 0 {
		nb = 1
	}
	return &Filter{
		buckets:    make([][bucketSize]uint32, nb),
		numBuckets: nb,
		rng:        rand.New(rand.NewSource(0xC0FFEE)),
	}
}

// Count returns the number of successfully-added keys.
func (f *Filter) Count() uint64 { return f.count }

func mix64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

func (f *Filter) indexAndFingerprint(x uint64) (uint64, uint32) {
	h := mix64(x)
	fp := uint32(h&((1<<fingerprint)-1)) | 1 // never zero: zero means empty slot
	i1 := (h >> 32) % f.numBuckets
	return i1, fp
}

func (f *Filter) altIndex(i uint64, fp uint32) uint64 {
	return (i ^ mix64(uint64(fp))) % f.numBuckets
}

func (f *Filter) insertInto(i uint64, fp uint32) bool {
	b := &f.buckets[i]
	for slot := range b {
		if b[slot] == 0 {
			b[slot] = fp
			return true
		}
	}
	return false
}

// Add inserts x; adding a key that Contain already reports is a no-op.
// It returns an *errs.Error of kind FilterOverflow if the filter is full
// and the key could not be placed after maxKicks relocations. Callers
// treat this as fatal: the error is returned up to the run, which exits.
func (f *Filter) Add(x uint64) error {
	if f.Contain(x) {
		return nil
	}
	i1, fp := f.indexAndFingerprint(x)
	if f.insertInto(i1, fp) {
		f.count++
		return nil
	}
	i2 := f.altIndex(i1, fp)
	if f.insertInto(i2, fp) {
		f.count++
		return nil
	}

	i := i1
	if f.rng.Intn(2) == 1 {
		i = i2
	}
	for kick := 0; kick < maxKicks; kick++ {
		slot := f.rng.Intn(bucketSize)
		f.buckets[i][slot], fp = fp, f.buckets[i][slot]
		i = f.altIndex(i, fp)
		if f.insertInto(i, fp) {
			f.count++
			return nil
		}
	}
	return errs.New(errs.FilterOverflow, "cuckoo filter full after %d kicks (%d buckets)", maxKicks, f.numBuckets)
}

// Contain reports whether x was (very likely) previously Add-ed. No false
// negatives: Contain(x) is always true if Add(x) succeeded and no
// intervening state was lost.
func (f *Filter) Contain(x uint64) bool {
	i1, fp := f.indexAndFingerprint(x)
	if bucketHas(&f.buckets[i1], fp) {
		return true
	}
	i2 := f.altIndex(i1, fp)
	return bucketHas(&f.buckets[i2], fp)
}

func bucketHas(b *[bucketSize]uint32, fp uint32) bool {
	for _, v := range b {
		if v == fp {
			return true
		}
	}
	return false
}

// WriteToFile serialises the filter to path in a compact flat layout:
// (numBuckets uint64, count uint64) followed by numBuckets*bucketSize
// uint32 fingerprints.
func (f *Filter) WriteToFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.IoError, err)
	}
	defer file.Close()
	return f.WriteTo(file)
}

func (f *Filter) WriteTo(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, f.numBuckets); err != nil {
		return errs.Wrap(errs.IoError, err)
	}
	if err := binary.Write(w, binary.LittleEndian, f.count); err != nil {
		return errs.Wrap(errs.IoError, err)
	}
	for i := range f.buckets {
		if err := binary.Write(w, binary.LittleEndian, f.buckets[i][:]); err != nil {
			return errs.Wrap(errs.IoError, err)
		}
	}
	return nil
}

// ReadFromFile reloads a filter written by WriteToFile. If partial is true
// and path does not exist, ReadFromFile returns an empty filter and no
// error — the "partial" flag admits a reader for optional rounds whose
// edge filter was never written (spec.md §4.D).
func ReadFromFile(path string, partial bool) (*Filter, error) {
	file, err := os.Open(path)
	if err != nil {
		if partial && os.IsNotExist(err) {
			return New(0), nil
		}
		return nil, errs.Wrap(errs.IoError, err)
	}
	defer file.Close()
	return ReadFrom(file)
}

func ReadFrom(r io.Reader) (*Filter, error) {
	var numBuckets, count uint64
	if err := binary.Read(r, binary.LittleEndian, &numBuckets); err != nil {
		return nil, errs.Wrap(errs.IoError, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, errs.Wrap(errs.IoError, err)
	}
	f := &Filter{
		buckets:    make([][bucketSize]uint32, numBuckets),
		numBuckets: numBuckets,
		count:      count,
		rng:        rand.New(rand.NewSource(0xC0FFEE)),
	}
	for i := range f.buckets {
		if err := binary.Read(r, binary.LittleEndian, f.buckets[i][:]); err != nil {
			return nil, errs.Wrap(errs.IoError, err)
		}
	}
	return f, nil
}
