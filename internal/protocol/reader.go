package protocol

import (
	"errors"
	"io"
)

// Reader accumulates bytes from an io.Reader and cuts complete RESP frames
// out of them. Bytes belonging to a frame that has not fully arrived are
// kept across reads, so a request split over several TCP segments is
// decoded exactly once.
type Reader struct {
	rd    io.Reader
	buf   []byte
	off   int
	chunk []byte
}

// NewReader creates a new RESP Reader with an optimised buffer.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		rd:    r,
		buf:   make([]byte, 0, defaultBufSize),
		chunk: make([]byte, defaultBufSize),
	}
}

// Buffered returns the number of bytes received but not yet consumed.
func (r *Reader) Buffered() int {
	return len(r.buf) - r.off
}

func (r *Reader) pending() []byte {
	return r.buf[r.off:]
}

func (r *Reader) consume(n int) {
	r.off += n
	if r.off == len(r.buf) {
		r.buf = r.buf[:0]
		r.off = 0
	}
}

// Fill performs exactly one read from the underlying reader and appends
// whatever arrived. It returns io.ErrUnexpectedEOF when the peer closes in
// the middle of a frame.
func (r *Reader) Fill() error {
	if r.off > 0 && r.off >= cap(r.buf)/2 {
		n := copy(r.buf, r.buf[r.off:])
		r.buf = r.buf[:n]
		r.off = 0
	}

	n, err := r.rd.Read(r.chunk)
	r.buf = append(r.buf, r.chunk[:n]...)
	if n > 0 {
		return nil
	}
	if errors.Is(err, io.EOF) && r.Buffered() > 0 {
		return io.ErrUnexpectedEOF
	}
	return err
}

// NextRequest decodes a request from the bytes already buffered without
// reading. ok is false when more bytes are needed.
func (r *Reader) NextRequest() (req Request, ok bool, err error) {
	req, n, err := ParseRequest(r.pending())
	if errors.Is(err, ErrIncomplete) {
		return Request{}, false, nil
	}
	if err != nil {
		return Request{}, false, err
	}
	r.consume(n)
	return req, true, nil
}

// ReadRequest blocks until one full request has been read.
func (r *Reader) ReadRequest() (Request, error) {
	for {
		req, ok, err := r.NextRequest()
		if err != nil {
			return Request{}, err
		}
		if ok {
			return req, nil
		}
		if err := r.Fill(); err != nil {
			return Request{}, err
		}
	}
}

// ReadValue blocks until one full value of any type has been read. Clients
// use it to read replies.
func (r *Reader) ReadValue() (Value, error) {
	for {
		v, n, err := ParseValue(r.pending())
		if err == nil {
			r.consume(n)
			return v, nil
		}
		if !errors.Is(err, ErrIncomplete) {
			return Value{}, err
		}
		if err := r.Fill(); err != nil {
			return Value{}, err
		}
	}
}
