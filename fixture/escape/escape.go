// Package escape provides support for handling escape sequences from input
// streams.
package escape

import (
	"io"
	"sync"
)

// Sequence is a byte sequence and the function to call when it is seen.
type Sequence struct {
	Bytes []byte
	Fn    func()
}

// Disconnect returns the sequences that end an interactive SSH session the
// way OpenSSH does: a tilde followed by a period at the start of a line.
//
// Terminals in raw mode send a carriage return for the enter key, so both
// line endings are recognized.
func Disconnect(fn func()) []Sequence {
	return []Sequence{
		{Bytes: []byte("\r~."), Fn: fn},
		{Bytes: []byte("\n~."), Fn: fn},
	}
}

// Processor handles processing escape sequences from an input stream.
type Processor struct {
	// progress is how many bytes of each sequence have been matched so far.
	progress map[string]int
	fns      map[string]func()
	mu       sync.Mutex
}

// NewProcessor creates a new Processor.
func NewProcessor(seqs ...Sequence) *Processor {
	ep := &Processor{
		progress: make(map[string]int),
		fns:      make(map[string]func()),
	}

	ep.Add(seqs...)

	return ep
}

// InsertByte checks if the given byte completes a sequence.
//
// Note that this is greedy and has no support for sequences that have a prefix
// of another sequence.
func (ep *Processor) InsertByte(b byte) (sequenceFound []byte) {
	ep.mu.Lock()

	var found string
	// Do not return in this loop as all keys must be advanced.
	for k, v := range ep.progress {
		switch {
		case k[v] == b:
			v++
			if v == len(k) {
				v = 0
				found = k
			}
		case k[0] == b:
			v = 1
		default:
			v = 0
		}
		ep.progress[k] = v
	}

	var fn func()
	if found != "" {
		fn = ep.fns[found]
	}
	ep.mu.Unlock()

	if fn == nil {
		return nil
	}
	fn()
	return []byte(found)
}

// Add registers additional sequences. A sequence that is already registered
// has its function replaced. Empty sequences are ignored.
func (ep *Processor) Add(seqs ...Sequence) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	for _, seq := range seqs {
		if len(seq.Bytes) == 0 {
			continue
		}
		if seq.Fn == nil {
			panic("nil escape function")
		}
		k := string(seq.Bytes)
		if _, ok := ep.progress[k]; !ok {
			ep.progress[k] = 0
		}
		ep.fns[k] = seq.Fn
	}
}

// Reader handles reading escapes from an io.Reader.
type Reader struct {
	source io.Reader
	ep     *Processor
}

// NewReader returns an escape reader that reads from the given source.
//
// The Reader returned from this function should be used in place of the
// source reader.
func NewReader(source io.Reader, seqs ...Sequence) *Reader {
	return &Reader{
		source: source,
		ep:     NewProcessor(seqs...),
	}
}

// Read reads from the underlying io.Reader, attempting to find escape
// sequences. The sequences themselves are passed through.
func (er *Reader) Read(p []byte) (int, error) {
	read, err := er.source.Read(p)
	// Process before the error is handled as a sequence may be in the part
	// that was read.
	for _, b := range p[:read] {
		er.ep.InsertByte(b)
	}
	return read, err
}
