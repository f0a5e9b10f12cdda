package protocol

import (
	"bytes"
	"fmt"
	"strconv"
)

// Request is one command as sent by a client: the command name followed by
// its arguments, all binary-safe.
type Request struct {
	Argv []string
}

// Name returns the command name as sent (not case-folded).
func (r Request) Name() string {
	if len(r.Argv) == 0 {
		return ""
	}
	return r.Argv[0]
}

// Args returns the arguments following the command name.
func (r Request) Args() []string {
	if len(r.Argv) < 2 {
		return nil
	}
	return r.Argv[1:]
}

// Empty reports whether the request was a zero-element array.
func (r Request) Empty() bool {
	return len(r.Argv) == 0
}

// readLine returns the line at the start of buf without its CRLF, and the
// number of bytes consumed including the CRLF.
func readLine(buf []byte) ([]byte, int, error) {
	i := bytes.IndexByte(buf, '\n')
	if i < 0 {
		if len(buf) > maxLineLength {
			return nil, 0, fmt.Errorf("%w: line too long", ErrMalformed)
		}
		return nil, 0, ErrIncomplete
	}
	if i > maxLineLength {
		return nil, 0, fmt.Errorf("%w: line too long", ErrMalformed)
	}
	if i == 0 || buf[i-1] != '\r' {
		return nil, 0, fmt.Errorf("%w: line not terminated by CRLF", ErrMalformed)
	}
	return buf[:i-1], i + 1, nil
}

// parseLength parses a bulk or array length header. -1 is the null marker.
func parseLength(line []byte, limit int64, what string) (int64, error) {
	n, err := strconv.ParseInt(string(line), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s length", ErrMalformed, what)
	}
	if n < -1 {
		return 0, fmt.Errorf("%w: negative %s length", ErrMalformed, what)
	}
	if n > limit {
		return 0, fmt.Errorf("%w: %s too large", ErrMalformed, what)
	}
	return n, nil
}

// parseBulkPayload reads length bytes plus the trailing CRLF starting at buf[0].
func parseBulkPayload(buf []byte, length int64) (string, int, error) {
	end := int(length) + 2
	if len(buf) < end {
		return "", 0, ErrIncomplete
	}
	if buf[end-2] != '\r' || buf[end-1] != '\n' {
		return "", 0, fmt.Errorf("%w: bulk string not terminated by CRLF", ErrMalformed)
	}
	return string(buf[:length]), end, nil
}

// ParseValue decodes one RESP value from the start of buf. It returns the
// value and the number of bytes it occupied. If buf holds only a prefix of a
// value the error is ErrIncomplete; bytes that can never form a value yield
// an error wrapping ErrMalformed.
func ParseValue(buf []byte) (Value, int, error) {
	if len(buf) == 0 {
		return Value{}, 0, ErrIncomplete
	}

	typeByte := buf[0]
	switch typeByte {
	case TypeSimpleString, TypeError, TypeInteger, TypeBulkString, TypeArray:
	default:
		return Value{}, 0, fmt.Errorf("%w: unknown type %q", ErrMalformed, typeByte)
	}

	line, n, err := readLine(buf[1:])
	if err != nil {
		return Value{}, 0, err
	}
	n++

	switch typeByte {
	case TypeSimpleString, TypeError:
		return Value{Type: typeByte, Str: string(line)}, n, nil

	case TypeInteger:
		num, err := strconv.ParseInt(string(line), 10, 64)
		if err != nil {
			return Value{}, 0, fmt.Errorf("%w: invalid integer", ErrMalformed)
		}
		return Value{Type: TypeInteger, Num: num}, n, nil

	case TypeBulkString:
		length, err := parseLength(line, maxBulkStringLength, "bulk string")
		if err != nil {
			return Value{}, 0, err
		}
		if length == -1 {
			return Null(), n, nil
		}
		s, m, err := parseBulkPayload(buf[n:], length)
		if err != nil {
			return Value{}, 0, err
		}
		return BulkString(s), n + m, nil

	default:
		count, err := parseLength(line, maxArrayLength, "array")
		if err != nil {
			return Value{}, 0, err
		}
		if count == -1 {
			return Value{Type: TypeArray, Null: true}, n, nil
		}
		items := make([]Value, 0, min(count, 64))
		for i := int64(0); i < count; i++ {
			item, m, err := ParseValue(buf[n:])
			if err != nil {
				return Value{}, 0, err
			}
			items = append(items, item)
			n += m
		}
		return Value{Type: TypeArray, Array: items}, n, nil
	}
}

// ParseRequest decodes one request envelope (an array of bulk strings) from
// the start of buf and returns it with the number of bytes consumed.
//
// A short buffer yields ErrIncomplete and nothing is consumed; the caller
// keeps the bytes and retries once more have arrived. Anything that is not
// an array of bulk strings yields an error wrapping ErrMalformed. A null or
// zero-length array parses to an Empty request.
func ParseRequest(buf []byte) (Request, int, error) {
	if len(buf) == 0 {
		return Request{}, 0, ErrIncomplete
	}
	if buf[0] != TypeArray {
		return Request{}, 0, fmt.Errorf("%w: expected '*', got %q", ErrMalformed, buf[0])
	}

	line, n, err := readLine(buf[1:])
	if err != nil {
		return Request{}, 0, err
	}
	n++

	count, err := parseLength(line, maxArrayLength, "array")
	if err != nil {
		return Request{}, 0, err
	}
	if count <= 0 {
		return Request{}, n, nil
	}

	argv := make([]string, 0, min(count, 64))
	for i := int64(0); i < count; i++ {
		if n >= len(buf) {
			return Request{}, 0, ErrIncomplete
		}
		if buf[n] != TypeBulkString {
			return Request{}, 0, fmt.Errorf("%w: expected '$', got %q", ErrMalformed, buf[n])
		}
		line, m, err := readLine(buf[n+1:])
		if err != nil {
			return Request{}, 0, err
		}
		length, err := parseLength(line, maxBulkStringLength, "bulk string")
		if err != nil {
			return Request{}, 0, err
		}
		if length < 0 {
			return Request{}, 0, fmt.Errorf("%w: null bulk string in request", ErrMalformed)
		}
		n += 1 + m
		arg, m, err := parseBulkPayload(buf[n:], length)
		if err != nil {
			return Request{}, 0, err
		}
		argv = append(argv, arg)
		n += m
	}

	return Request{Argv: argv}, n, nil
}
