// Package fasta is a minimal FASTA record reader. spec.md treats FASTA
// record streaming as an external collaborator referenced only by
// interface ("open file, iterate records, pull next base character"); this
// package gives that interface a working implementation in the teacher's
// bufio.Scanner style (see the original lightning taglib/tilelib readers)
// so the binary runs end to end.
package fasta

import (
	"bufio"
	"io"
	"strings"

	"github.com/arvn-bio/junctions/internal/errs"
)

// Reader yields sequence records from an underlying FASTA stream,
// normalising lowercase to uppercase and any non-ACGT base to 'N'.
type Reader struct {
	scanner  *bufio.Scanner
	nextName string
	hasNext  bool
	done     bool
}

// NewReader wraps r, allowing lines up to 1<<30 bytes so that
// chromosome-sized single-line sequences can be scanned.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<30)
	return &Reader{scanner: sc}
}

var normalize [256]byte

func init() {
	for i := range normalize {
		normalize[i] = 'N'
	}
	normalize['A'], normalize['a'] = 'A', 'A'
	normalize['C'], normalize['c'] = 'C', 'C'
	normalize['G'], normalize['g'] = 'G', 'G'
	normalize['T'], normalize['t'] = 'T', 'T'
}

// Record is one sequence: a name (the header line, sans '>') and its bases.
type Record struct {
	Name string
	Seq  []byte
}

// Next returns the next record, or io.EOF when the stream is exhausted.
func (r *Reader) Next() (Record, error) {
	if r.done {
		return Record{}, io.EOF
	}

	var name string
	if r.hasNext {
		name = r.nextName
		r.hasNext = false
	} else {
		found := false
		for r.scanner.Scan() {
			line := r.scanner.Bytes()
			if len(line) > 0 && line[0] == '>' {
				name = string(line[1:])
				found = true
				break
			}
		}
		if err := r.scanner.Err(); err != nil {
			return Record{}, errs.Wrap(errs.ParseError, err)
		}
		if !found {
			r.done = true
			return Record{}, io.EOF
		}
	}

	var seq []byte
	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			r.nextName = string(line[1:])
			r.hasNext = true
			return Record{Name: name, Seq: seq}, nil
		}
		for _, b := range line {
			seq = append(seq, normalize[b])
		}
	}
	if err := r.scanner.Err(); err != nil {
		return Record{}, errs.Wrap(errs.ParseError, err)
	}
	r.done = true
	return Record{Name: name, Seq: seq}, nil
}

// ReadAll drains every record from fr.
func ReadAll(fr *Reader) ([]Record, error) {
	var out []Record
	for {
		rec, err := fr.Next()
		if err == io.EOF {
			return out, nil
		} else if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// FromString is a convenience constructor for tests.
func FromString(s string) *Reader {
	return NewReader(strings.NewReader(s))
}
