package protocol

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_Kinds(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"simple string", SimpleString("PONG"), "+PONG\r\n"},
		{"error", Error("ERR unknown command"), "-ERR unknown command\r\n"},
		{"errorf", Errorf("unknown command '%s'", "FOO"), "-ERR unknown command 'FOO'\r\n"},
		{"integer", Integer(1000), ":1000\r\n"},
		{"negative integer", Integer(-123), ":-123\r\n"},
		{"bulk string", BulkString("hello"), "$5\r\nhello\r\n"},
		{"empty bulk string", BulkString(""), "$0\r\n\r\n"},
		{"null", Null(), "$-1\r\n"},
		{"empty array", Array(), "*0\r\n"},
		{"string array", StringArray([]string{"key1", "key2"}), "*2\r\n$4\r\nkey1\r\n$4\r\nkey2\r\n"},
		{"mixed array", Array(Integer(1), Null(), SimpleString("OK")), "*3\r\n:1\r\n$-1\r\n+OK\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(Encode(tt.v)))
		})
	}
}

func TestEncode_BulkStringIsBinarySafe(t *testing.T) {
	payload := "a\r\nb\x00\xff"
	assert.Equal(t, "$7\r\n"+payload+"\r\n", string(Encode(BulkString(payload))))
}

func TestRoundTrip(t *testing.T) {
	values := []Value{
		SimpleString("OK"),
		Error("ERR boom"),
		Integer(0),
		Integer(-9223372036854775808),
		BulkString("hello"),
		BulkString(""),
		BulkString("line1\r\nline2"),
		Null(),
		Array(),
		Array(BulkString("GET"), BulkString("key")),
		Array(Array(BulkString("a")), Array(), Integer(7), Null()),
		{Type: TypeArray, Null: true},
	}

	for _, v := range values {
		encoded := Encode(v)
		decoded, n, err := ParseValue(encoded)
		require.NoError(t, err, "value %q", encoded)
		assert.Equal(t, len(encoded), n)
		assert.Equal(t, v, decoded)
	}
}

func TestParseValue_IncompleteEveryPrefix(t *testing.T) {
	full := Encode(Array(BulkString("SET"), BulkString("k\r\n"), Integer(42), SimpleString("x")))

	for i := 0; i < len(full); i++ {
		_, _, err := ParseValue(full[:i])
		assert.ErrorIs(t, err, ErrIncomplete, "prefix length %d", i)
	}

	_, n, err := ParseValue(full)
	require.NoError(t, err)
	assert.Equal(t, len(full), n)
}

func TestParseValue_Malformed(t *testing.T) {
	inputs := []string{
		"?oops\r\n",
		":12a\r\n",
		"$abc\r\n",
		"$-5\r\n",
		"$536870913\r\n",
		"*1048577\r\n",
		"$3\r\nabcXY",
		"+no carriage return\n",
	}

	for _, input := range inputs {
		_, _, err := ParseValue([]byte(input))
		assert.ErrorIs(t, err, ErrMalformed, "input %q", input)
	}
}

func TestParseValue_LineTooLong(t *testing.T) {
	input := "+" + strings.Repeat("a", maxLineLength+1)
	_, _, err := ParseValue([]byte(input))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseRequest(t *testing.T) {
	input := []byte("*3\r\n$3\r\nSET\r\n$3\r\nkey\r\n$5\r\nvalue\r\n")

	req, n, err := ParseRequest(input)
	require.NoError(t, err)
	assert.Equal(t, len(input), n)
	assert.Equal(t, "SET", req.Name())
	assert.Equal(t, []string{"key", "value"}, req.Args())
	assert.False(t, req.Empty())
}

func TestParseRequest_LeavesTrailingBytes(t *testing.T) {
	first := EncodeRequest("PING")
	second := EncodeRequest("ECHO", "hi")
	input := append(append([]byte{}, first...), second[:5]...)

	req, n, err := ParseRequest(input)
	require.NoError(t, err)
	assert.Equal(t, len(first), n)
	assert.Equal(t, "PING", req.Name())
	assert.Nil(t, req.Args())

	_, _, err = ParseRequest(input[n:])
	assert.ErrorIs(t, err, ErrIncomplete)
}

func TestParseRequest_IncompleteEveryPrefix(t *testing.T) {
	full := EncodeRequest("SET", "key", "", "EX", "10")

	for i := 0; i < len(full); i++ {
		_, n, err := ParseRequest(full[:i])
		assert.ErrorIs(t, err, ErrIncomplete, "prefix length %d", i)
		assert.Zero(t, n)
	}
}

func TestParseRequest_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not an array", "PING\r\n"},
		{"simple string envelope", "+PING\r\n"},
		{"bad count", "*x\r\n"},
		{"integer element", "*1\r\n:1\r\n"},
		{"null element", "*1\r\n$-1\r\n"},
		{"bad bulk length", "*1\r\n$z\r\n"},
		{"payload overrun", "*1\r\n$2\r\nPING\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseRequest([]byte(tt.input))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestParseRequest_EmptyArray(t *testing.T) {
	for _, input := range []string{"*0\r\n", "*-1\r\n"} {
		req, n, err := ParseRequest([]byte(input))
		require.NoError(t, err)
		assert.Equal(t, len(input), n)
		assert.True(t, req.Empty())
	}
}

func TestReader_SplitAcrossReads(t *testing.T) {
	input := EncodeRequest("SET", "hello", "world")
	input = append(input, EncodeRequest("GET", "hello")...)

	r := NewReader(iotest.OneByteReader(bytes.NewReader(input)))

	req, err := r.ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, []string{"SET", "hello", "world"}, req.Argv)

	req, err = r.ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, []string{"GET", "hello"}, req.Argv)

	_, err = r.ReadRequest()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_NextRequestDoesNotConsumePartial(t *testing.T) {
	full := EncodeRequest("ECHO", "payload")
	r := NewReader(bytes.NewReader(full[:4]))

	require.NoError(t, r.Fill())
	_, ok, err := r.NextRequest()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 4, r.Buffered())
}

func TestReader_UnexpectedEOF(t *testing.T) {
	r := NewReader(strings.NewReader("*2\r\n$3\r\nGET\r\n"))

	_, err := r.ReadRequest()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReader_Malformed(t *testing.T) {
	r := NewReader(strings.NewReader("HELLO\r\n"))

	_, err := r.ReadRequest()
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestReader_ReadValue(t *testing.T) {
	input := "+OK\r\n:5\r\n$-1\r\n*2\r\n$1\r\na\r\n$1\r\nb\r\n"
	r := NewReader(iotest.HalfReader(strings.NewReader(input)))

	want := []Value{
		SimpleString("OK"),
		Integer(5),
		Null(),
		Array(BulkString("a"), BulkString("b")),
	}
	for _, w := range want {
		v, err := r.ReadValue()
		require.NoError(t, err)
		assert.Equal(t, w, v)
	}
}

func TestWriter_AutoFlush(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteValue(OK()))
	assert.Equal(t, "+OK\r\n", buf.String())
}

func TestWriter_Batch(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.SetAutoFlush(false)

	require.NoError(t, w.WriteValue(Integer(1)))
	require.NoError(t, w.WriteValue(Integer(2)))
	assert.Equal(t, 0, buf.Len())
	assert.Equal(t, 8, w.Buffered())

	require.NoError(t, w.Flush())
	assert.Equal(t, ":1\r\n:2\r\n", buf.String())
}

func TestWriter_WriteRequest(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteRequest("GET", "key"))
	assert.Equal(t, "*2\r\n$3\r\nGET\r\n$3\r\nkey\r\n", buf.String())
}
