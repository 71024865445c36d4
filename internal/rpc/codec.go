package rpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

const headerPrefix = "Content-Length:"

// Encode serializes env to its minimal JSON form and wraps it in a
// Content-Length frame. The declared length is the exact byte length of the
// encoded body.
func Encode(env any) ([]byte, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	var buf strings.Builder
	buf.Grow(len(body) + 32)
	fmt.Fprintf(&buf, "Content-Length: %d\r\n\r\n", len(body))
	buf.Write(body)
	return []byte(buf.String()), nil
}

// Frame is one decoded message. Body is nil when the frame was well-framed
// but its body was not valid JSON; Raw then carries the body text so the
// caller can surface it verbatim.
type Frame struct {
	Body json.RawMessage
	Raw  string
}

// Empty reports whether the frame carried nothing usable.
func (f Frame) Empty() bool { return f.Body == nil && f.Raw == "" }

// Decoder reads Content-Length framed messages from a byte stream.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder creates a decoder over r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next decodes one frame. It returns io.EOF when the stream has ended (or an
// empty line arrives where a header was expected, which servers emit just
// before closing). Framing problems are returned as the error kinds in
// errors.go; they abandon the current frame only, and the caller may keep
// calling Next to scan for the next header. A well-framed body that is not
// valid JSON is not an error: the frame comes back with Body nil and Raw set.
func (d *Decoder) Next() (Frame, error) {
	line, err := d.r.ReadString('\n')
	if err != nil {
		if err == io.EOF && strings.TrimSpace(line) != "" {
			// A dangling partial line is noise, not a frame.
			return Frame{}, &UnexpectedLineError{Line: strings.TrimSpace(line)}
		}
		return Frame{}, io.EOF
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return Frame{}, io.EOF
	}
	if !strings.HasPrefix(line, headerPrefix) {
		return Frame{}, &UnexpectedLineError{Line: line}
	}

	value := strings.TrimSpace(strings.TrimPrefix(line, headerPrefix))
	length, err := strconv.Atoi(value)
	if err != nil || length < 0 {
		if err == nil {
			err = fmt.Errorf("negative length")
		}
		// Abandon the frame, but eat its blank delimiter line if present so
		// the next Next call resumes at a header position.
		if peek, _ := d.r.Peek(2); string(peek) == "\r\n" {
			_, _ = d.r.Discard(2)
		}
		return Frame{}, &BadLengthError{Value: value, Err: err}
	}

	// The header line's own terminator was consumed by ReadString; what
	// follows is the blank delimiter line, exactly two bytes.
	delim := make([]byte, 2)
	if n, err := io.ReadFull(d.r, delim); err != nil {
		return Frame{}, &ShortReadError{Want: length + 2, Got: n}
	}

	body := make([]byte, length)
	if n, err := io.ReadFull(d.r, body); err != nil {
		return Frame{}, &ShortReadError{Want: length, Got: n}
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		// Declared-but-empty bodies happen; treat as "no message".
		return Frame{}, nil
	}

	if !json.Valid([]byte(text)) {
		return Frame{Raw: text}, nil
	}

	return Frame{Body: json.RawMessage(text)}, nil
}

// Writer serializes frame writes to the server's stdin. The interactive loop
// and the document watcher share one pipe; without this lock their frames
// could interleave mid-write.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	closed bool
}

// NewWriter creates a writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrame writes one encoded frame as a single critical section.
func (w *Writer) WriteFrame(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if _, err := w.w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close marks the writer closed. Later writes return ErrClosed. The
// underlying pipe is owned by the session and closed there.
func (w *Writer) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}
