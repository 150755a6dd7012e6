package logcat

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"time"
)

// ErrTruncatedRecord is returned when the stream ends inside an entry. This
// usually means the producing process died mid-write.
var ErrTruncatedRecord = errors.New("truncated record")

// Decoder reads records from a binary logcat stream. It is not safe for
// concurrent use.
type Decoder struct {
	r      io.Reader
	buf    []byte // scratch for the entry in flight
	header Header
	err    error
}

// NewDecoder returns a decoder reading from r. The decoder does its own
// sized reads, so r does not need to be buffered, but buffering helps when
// r is a pipe.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:   r,
		buf: make([]byte, 0, 4096),
	}
}

// Next decodes the next record. It returns io.EOF once the stream ends on an
// entry boundary. If the stream ends inside an entry the error wraps
// ErrTruncatedRecord. Any error is sticky: later calls return it again.
func (d *Decoder) Next() (Record, error) {
	if d.err != nil {
		return Record{}, d.err
	}
	rec, err := d.next()
	if err != nil {
		d.err = err
		return Record{}, err
	}
	return rec, nil
}

func (d *Decoder) next() (Record, error) {
	d.buf = d.buf[:0]

	// A single byte tells a clean end of stream from a cut one.
	first, err := d.read(1)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("failed to read entry: %w", err)
	}
	rest, err := d.read(BaseHeaderSize - 1)
	if err != nil {
		return Record{}, d.fail("header", err)
	}

	var base [BaseHeaderSize]byte
	base[0] = first[0]
	copy(base[1:], rest)

	var h Header
	h.decodeBase(base[:])

	ext, err := d.read(h.Size() - BaseHeaderSize)
	if err != nil {
		return Record{}, d.fail("header extension", err)
	}
	h.decodeExtension(ext)

	payload, err := d.read(int(h.PayloadLen))
	if err != nil {
		return Record{}, d.fail("payload", err)
	}

	level, tag, message := decodePayload(payload)
	d.header = h
	d.buf = d.buf[:0]

	return Record{
		Time:    time.Unix(int64(h.Sec), int64(h.Nsec)),
		PID:     h.PID,
		TID:     h.TID,
		Level:   level,
		Tag:     tag,
		Message: message,
		UID:     h.UID,
		Buffer:  Buffer(h.LogID),
	}, nil
}

// read appends exactly n bytes from the source to the scratch buffer and
// returns them. n <= 0 reads nothing.
func (d *Decoder) read(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	start := len(d.buf)
	if cap(d.buf)-start < n {
		grown := make([]byte, start, start+n)
		copy(grown, d.buf)
		d.buf = grown
	}
	d.buf = d.buf[:start+n]
	if _, err := io.ReadFull(d.r, d.buf[start:]); err != nil {
		d.buf = d.buf[:start]
		return nil, err
	}
	return d.buf[start:], nil
}

// fail turns an error that happened after the first byte into the error
// returned to the caller. Running out of data mid-entry is a truncation.
func (d *Decoder) fail(part string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: stream ended inside %s", ErrTruncatedRecord, part)
	}
	return fmt.Errorf("failed to read %s: %w", part, err)
}

// Header returns the header of the most recently decoded record.
func (d *Decoder) Header() Header {
	return d.header
}

// All yields records until the end of the stream. A clean end stops the
// iteration without an error; any other error is yielded once as the last
// element.
func (d *Decoder) All() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for {
			rec, err := d.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Record{}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}
