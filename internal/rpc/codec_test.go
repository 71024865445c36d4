package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_LengthMatchesBody(t *testing.T) {
	env := Request{JSONRPC: Version, ID: 7, Method: "textDocument/definition"}

	frame, err := Encode(env)
	require.NoError(t, err)

	header, body, found := bytes.Cut(frame, []byte("\r\n\r\n"))
	require.True(t, found, "frame missing blank-line delimiter")

	var declared int
	_, err = fmt.Sscanf(string(header), "Content-Length: %d", &declared)
	require.NoError(t, err)
	assert.Equal(t, len(body), declared, "declared length must equal body byte length")
	assert.True(t, json.Valid(body))
}

func TestDecode_RoundTrip(t *testing.T) {
	values := []any{
		Request{JSONRPC: Version, ID: 1, Method: "initialize"},
		Request{JSONRPC: Version, Method: "exit"},
		map[string]any{"jsonrpc": "2.0", "id": 3, "result": []any{}},
		map[string]any{"key": "non-ascii body: héllo — 世界"},
	}

	var stream bytes.Buffer
	for _, v := range values {
		frame, err := Encode(v)
		require.NoError(t, err)
		stream.Write(frame)
	}

	dec := NewDecoder(&stream)
	for i, v := range values {
		frame, err := dec.Next()
		require.NoError(t, err, "frame %d", i)
		require.NotNil(t, frame.Body, "frame %d", i)

		want, err := json.Marshal(v)
		require.NoError(t, err)
		assert.JSONEq(t, string(want), string(frame.Body), "frame %d", i)
	}

	_, err := dec.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecode_EmptyLineSignalsEndOfStream(t *testing.T) {
	dec := NewDecoder(strings.NewReader("\r\n"))
	_, err := dec.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecode_UnexpectedLineIsRecoverable(t *testing.T) {
	good, err := Encode(map[string]string{"ok": "yes"})
	require.NoError(t, err)

	stream := "some stray log line\r\n" + string(good)
	dec := NewDecoder(strings.NewReader(stream))

	_, err = dec.Next()
	var unexpected *UnexpectedLineError
	require.ErrorAs(t, err, &unexpected)
	assert.Equal(t, "some stray log line", unexpected.Line)
	assert.True(t, IsFramingError(err))

	frame, err := dec.Next()
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":"yes"}`, string(frame.Body))
}

func TestDecode_BadLength(t *testing.T) {
	dec := NewDecoder(strings.NewReader("Content-Length: banana\r\n\r\n{}"))

	_, err := dec.Next()
	var bad *BadLengthError
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, "banana", bad.Value)
	assert.True(t, IsFramingError(err))
}

func TestDecode_ShortRead(t *testing.T) {
	dec := NewDecoder(strings.NewReader("Content-Length: 100\r\n\r\n{\"trunc"))

	_, err := dec.Next()
	var short *ShortReadError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 100, short.Want)
	assert.Less(t, short.Got, short.Want)
}

func TestDecode_MalformedFrameRecovery(t *testing.T) {
	first, err := Encode(map[string]int{"n": 1})
	require.NoError(t, err)
	third, err := Encode(map[string]int{"n": 3})
	require.NoError(t, err)

	// Well-formed, corrupted length, well-formed.
	stream := string(first) + "Content-Length: 12x\r\n\r\n" + string(third)
	dec := NewDecoder(strings.NewReader(stream))

	frame, err := dec.Next()
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(frame.Body))

	var diagnostics int
	for {
		frame, err = dec.Next()
		if err == nil && frame.Body != nil {
			break
		}
		require.NotEqual(t, io.EOF, err, "stream ended before recovering third frame")
		if IsFramingError(err) {
			diagnostics++
		}
	}
	assert.JSONEq(t, `{"n":3}`, string(frame.Body))
	assert.Equal(t, 1, diagnostics, "exactly one surfaced diagnostic for the corrupt frame")
}

func TestDecode_NonJSONBodySurfacedRaw(t *testing.T) {
	body := "this is not json at all"
	stream := fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)

	dec := NewDecoder(strings.NewReader(stream))
	frame, err := dec.Next()
	require.NoError(t, err)
	assert.Nil(t, frame.Body)
	assert.Equal(t, body, frame.Raw)
	assert.False(t, frame.Empty())
}

func TestDecode_EmptyBodyIsNoMessage(t *testing.T) {
	stream := "Content-Length: 2\r\n\r\n  "
	dec := NewDecoder(strings.NewReader(stream))

	frame, err := dec.Next()
	require.NoError(t, err)
	assert.True(t, frame.Empty())

	_, err = dec.Next()
	assert.Equal(t, io.EOF, err)
}

func TestWriter_SerializesAndCloses(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	frame, err := Encode(Request{JSONRPC: Version, Method: "exit"})
	require.NoError(t, err)
	require.NoError(t, w.WriteFrame(frame))

	w.Close()
	err = w.WriteFrame(frame)
	assert.ErrorIs(t, err, ErrClosed)

	dec := NewDecoder(&buf)
	got, err := dec.Next()
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","method":"exit"}`, string(got.Body))
}
