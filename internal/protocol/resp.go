// Package protocol implements the RESP (Redis Serialization Protocol) parser and encoder.
package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
)

var (
	// ErrIncomplete indicates the buffer ends before the value does.
	// The caller should read more bytes and retry with the same prefix.
	ErrIncomplete = errors.New("protocol: incomplete RESP data")
	// ErrMalformed indicates bytes that can never become a valid value,
	// no matter how many more bytes arrive.
	ErrMalformed = errors.New("protocol: malformed RESP data")
)

// Value represents a RESP value
type Value struct {
	Type  byte
	Str   string
	Num   int64
	Array []Value
	Null  bool
}

// RESP type constants
const (
	TypeSimpleString = '+'
	TypeError        = '-'
	TypeInteger      = ':'
	TypeBulkString   = '$'
	TypeArray        = '*'
)

const (
	maxBulkStringLength = 512 * 1024 * 1024 // 512 MiB
	maxArrayLength      = 1 << 20
	maxLineLength       = 64 * 1024
	defaultBufSize      = 64 * 1024 // 64 KiB read/write buffers
)

var (
	crlfBytes      = []byte("\r\n")
	nullBulkBytes  = []byte("$-1\r\n")
	nullArrayBytes = []byte("*-1\r\n")
)

// SimpleString returns a simple string reply.
func SimpleString(s string) Value {
	return Value{Type: TypeSimpleString, Str: s}
}

// OK returns the +OK reply.
func OK() Value {
	return SimpleString("OK")
}

// Error returns an error reply carrying msg verbatim.
func Error(msg string) Value {
	return Value{Type: TypeError, Str: msg}
}

// Errorf returns an error reply with the conventional "ERR " prefix.
func Errorf(format string, args ...any) Value {
	return Error("ERR " + fmt.Sprintf(format, args...))
}

// Integer returns an integer reply.
func Integer(n int64) Value {
	return Value{Type: TypeInteger, Num: n}
}

// BulkString returns a bulk string reply. s may hold arbitrary bytes.
func BulkString(s string) Value {
	return Value{Type: TypeBulkString, Str: s}
}

// Null returns the null bulk string reply.
func Null() Value {
	return Value{Type: TypeBulkString, Null: true}
}

// Array returns an array reply of items.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{Type: TypeArray, Array: items}
}

// StringArray returns an array of bulk strings.
func StringArray(items []string) Value {
	values := make([]Value, len(items))
	for i, item := range items {
		values[i] = BulkString(item)
	}
	return Value{Type: TypeArray, Array: values}
}

// IsError reports whether v is an error reply.
func (v Value) IsError() bool {
	return v.Type == TypeError
}

// AppendTo appends the wire encoding of v to dst and returns the extended slice.
// Encoding never fails: unknown types are written as an error reply.
func (v Value) AppendTo(dst []byte) []byte {
	switch v.Type {
	case TypeSimpleString, TypeError:
		dst = append(dst, v.Type)
		dst = append(dst, v.Str...)
		return append(dst, crlfBytes...)
	case TypeInteger:
		dst = append(dst, TypeInteger)
		dst = strconv.AppendInt(dst, v.Num, 10)
		return append(dst, crlfBytes...)
	case TypeBulkString:
		if v.Null {
			return append(dst, nullBulkBytes...)
		}
		dst = append(dst, TypeBulkString)
		dst = strconv.AppendInt(dst, int64(len(v.Str)), 10)
		dst = append(dst, crlfBytes...)
		dst = append(dst, v.Str...)
		return append(dst, crlfBytes...)
	case TypeArray:
		if v.Null {
			return append(dst, nullArrayBytes...)
		}
		dst = append(dst, TypeArray)
		dst = strconv.AppendInt(dst, int64(len(v.Array)), 10)
		dst = append(dst, crlfBytes...)
		for _, item := range v.Array {
			dst = item.AppendTo(dst)
		}
		return dst
	default:
		return Errorf("unknown reply type %q", v.Type).AppendTo(dst)
	}
}

// Encode returns the wire encoding of v.
func Encode(v Value) []byte {
	return v.AppendTo(nil)
}

// EncodeRequest encodes argv as a RESP array of bulk strings, the request
// envelope clients send.
func EncodeRequest(argv ...string) []byte {
	return StringArray(argv).AppendTo(nil)
}

// Writer wraps a bufio.Writer for RESP encoding.
// By default every WriteValue call flushes immediately (autoFlush=true).
// Call SetAutoFlush(false) before a pipeline batch, then Flush()
// once at the end, to amortise syscalls across many responses.
type Writer struct {
	wr        *bufio.Writer
	scratch   []byte
	autoFlush bool
}

// NewWriter creates a new RESP Writer with an optimised buffer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{wr: bufio.NewWriterSize(w, defaultBufSize), autoFlush: true}
}

// SetAutoFlush controls whether each Write* call flushes automatically.
// Disable it for pipeline batches and call Flush() explicitly.
func (w *Writer) SetAutoFlush(on bool) { w.autoFlush = on }

// Flush writes any buffered data to the underlying io.Writer.
func (w *Writer) Flush() error { return w.wr.Flush() }

// Buffered returns the number of bytes written but not yet flushed.
func (w *Writer) Buffered() int { return w.wr.Buffered() }

func (w *Writer) flush() error {
	if w.autoFlush {
		return w.wr.Flush()
	}
	return nil
}

// WriteValue encodes v into the buffer.
func (w *Writer) WriteValue(v Value) error {
	w.scratch = v.AppendTo(w.scratch[:0])
	if _, err := w.wr.Write(w.scratch); err != nil {
		return err
	}
	return w.flush()
}

// WriteRequest encodes argv as a request envelope.
func (w *Writer) WriteRequest(argv ...string) error {
	return w.WriteValue(StringArray(argv))
}
