package console

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/dshills/lspwire/internal/correlate"
	"github.com/dshills/lspwire/internal/render"
	"github.com/dshills/lspwire/internal/rpc"
)

type fixture struct {
	loop   *Loop
	table  *correlate.Table
	wire   *bytes.Buffer
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newFixture(t *testing.T, input string) *fixture {
	t.Helper()

	var wireBuf, out, errOut bytes.Buffer
	table := correlate.NewTable()

	loop := New(Config{
		Input:      strings.NewReader(input),
		Wire:       rpc.NewWriter(&wireBuf),
		Table:      table,
		Builder:    rpc.NewBuilder("c"),
		Renderer:   render.New(&out, &errOut),
		Document:   Document{URI: uri.URI("file:///main.c"), Text: "int main() {}\n"},
		RootURI:    uri.URI("file:///"),
		DefaultPos: protocol.Position{Line: 9, Character: 4},
	})

	return &fixture{loop: loop, table: table, wire: &wireBuf, out: &out, errOut: &errOut}
}

// sentMethods decodes every frame written to the wire and returns the method
// names in order (responses have none and do not occur here).
func (f *fixture) sentMethods(t *testing.T) []string {
	t.Helper()
	dec := rpc.NewDecoder(bytes.NewReader(f.wire.Bytes()))
	var methods []string
	for {
		frame, err := dec.Next()
		if err != nil {
			return methods
		}
		if frame.Body != nil {
			methods = append(methods, gjson.GetBytes(frame.Body, "method").String())
		}
	}
}

func TestLoop_EmptyLineAtStartupStillClosesSession(t *testing.T) {
	f := newFixture(t, "\n")

	require.NoError(t, f.loop.Run())

	assert.Equal(t, []string{
		"initialize",
		"textDocument/didOpen",
		"textDocument/didClose",
		"exit",
	}, f.sentMethods(t))
}

func TestLoop_EndOfInputCountsAsQuit(t *testing.T) {
	f := newFixture(t, "")

	require.NoError(t, f.loop.Run())

	methods := f.sentMethods(t)
	assert.Equal(t, "textDocument/didClose", methods[len(methods)-2])
	assert.Equal(t, "exit", methods[len(methods)-1])
}

func TestLoop_InitializeIsAlwaysFirstWithIDOne(t *testing.T) {
	f := newFixture(t, "quit\n")

	require.NoError(t, f.loop.Run())

	dec := rpc.NewDecoder(bytes.NewReader(f.wire.Bytes()))
	frame, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "initialize", gjson.GetBytes(frame.Body, "method").String())
	assert.Equal(t, int64(1), gjson.GetBytes(frame.Body, "id").Int())
}

func TestLoop_DefTwiceRegistersDistinctIdentifiers(t *testing.T) {
	f := newFixture(t, "def\ndef\nquit\n")

	require.NoError(t, f.loop.Run())

	dec := rpc.NewDecoder(bytes.NewReader(f.wire.Bytes()))
	var defIDs []int64
	for {
		frame, err := dec.Next()
		if err != nil {
			break
		}
		if gjson.GetBytes(frame.Body, "method").String() == "textDocument/definition" {
			defIDs = append(defIDs, gjson.GetBytes(frame.Body, "id").Int())
		}
	}

	require.Len(t, defIDs, 2)
	assert.NotEqual(t, defIDs[0], defIDs[1])
	assert.Less(t, defIDs[0], defIDs[1])

	// Both remain outstanding until responses arrive, and each resolves to
	// its own request regardless of arrival order.
	req2, ok := f.table.Resolve(defIDs[1])
	require.True(t, ok)
	req1, ok := f.table.Resolve(defIDs[0])
	require.True(t, ok)
	assert.Equal(t, defIDs[1], req2.ID)
	assert.Equal(t, defIDs[0], req1.ID)
}

func TestLoop_DefUsesDefaultPositionWithoutArgs(t *testing.T) {
	f := newFixture(t, "def\nquit\n")

	require.NoError(t, f.loop.Run())

	dec := rpc.NewDecoder(bytes.NewReader(f.wire.Bytes()))
	for {
		frame, err := dec.Next()
		require.NoError(t, err)
		if gjson.GetBytes(frame.Body, "method").String() != "textDocument/definition" {
			continue
		}
		assert.Equal(t, int64(9), gjson.GetBytes(frame.Body, "params.position.line").Int())
		assert.Equal(t, int64(4), gjson.GetBytes(frame.Body, "params.position.character").Int())
		return
	}
}

func TestLoop_DefWithExplicitPosition(t *testing.T) {
	f := newFixture(t, "def 12 7\nquit\n")

	require.NoError(t, f.loop.Run())

	dec := rpc.NewDecoder(bytes.NewReader(f.wire.Bytes()))
	for {
		frame, err := dec.Next()
		require.NoError(t, err)
		if gjson.GetBytes(frame.Body, "method").String() != "textDocument/definition" {
			continue
		}
		assert.Equal(t, int64(12), gjson.GetBytes(frame.Body, "params.position.line").Int())
		assert.Equal(t, int64(7), gjson.GetBytes(frame.Body, "params.position.character").Int())
		return
	}
}

func TestLoop_BadPositionIsNotFatal(t *testing.T) {
	f := newFixture(t, "def -3 x\nquit\n")

	require.NoError(t, f.loop.Run())

	assert.Contains(t, f.errOut.String(), "def:")
	assert.NotContains(t, f.sentMethods(t), "textDocument/definition")
}

func TestLoop_HelpProducesNoTraffic(t *testing.T) {
	f := newFixture(t, "help\nquit\n")

	require.NoError(t, f.loop.Run())

	assert.Contains(t, f.out.String(), "Available commands")
	assert.Equal(t, []string{
		"initialize",
		"textDocument/didOpen",
		"textDocument/didClose",
		"exit",
	}, f.sentMethods(t))
}

func TestLoop_UnknownCommandIsNotFatal(t *testing.T) {
	f := newFixture(t, "bogus\nsym\nquit\n")

	require.NoError(t, f.loop.Run())

	assert.Contains(t, f.errOut.String(), "unknown command: bogus")
	assert.Contains(t, f.sentMethods(t), "textDocument/documentSymbol")
}

// brokenWriter fails every write, standing in for a stdin pipe whose far end
// has exited.
type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestLoop_WriteFailureIsFatal(t *testing.T) {
	var out, errOut bytes.Buffer
	loop := New(Config{
		Input:    strings.NewReader("def\n"),
		Wire:     rpc.NewWriter(brokenWriter{}),
		Table:    correlate.NewTable(),
		Builder:  rpc.NewBuilder("c"),
		Renderer: render.New(&out, &errOut),
		Document: Document{URI: uri.URI("file:///main.c"), Text: ""},
		RootURI:  uri.URI("file:///"),
	})

	err := loop.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestLoop_NotificationsConsumeNoIdentifier(t *testing.T) {
	f := newFixture(t, "sym\nquit\n")

	require.NoError(t, f.loop.Run())

	dec := rpc.NewDecoder(bytes.NewReader(f.wire.Bytes()))
	var maxID int64
	for {
		frame, err := dec.Next()
		if err != nil {
			break
		}
		if id := gjson.GetBytes(frame.Body, "id"); id.Exists() && id.Int() > maxID {
			maxID = id.Int()
		}
	}
	// initialize=1, sym=2; didOpen/didClose/exit never consume one.
	assert.Equal(t, int64(2), maxID)
}
