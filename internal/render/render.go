// Package render turns decoded protocol traffic into human-readable console
// output. It is the sink for both pumps: correlated (request, response) pairs
// from the response pump and raw text lines from the diagnostic pump. Nothing
// in here touches the wire or the correlation table.
package render

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"go.lsp.dev/protocol"

	"github.com/dshills/lspwire/internal/rpc"
)

// Renderer writes rendered protocol traffic to out and diagnostics to errOut.
type Renderer struct {
	out    io.Writer
	errOut io.Writer

	// EchoRequests prints the originating request envelope before each
	// rendered result.
	EchoRequests bool
	// EchoResponses prints the raw response envelope before each rendered
	// result.
	EchoResponses bool

	errColor   *color.Color
	rawColor   *color.Color
	matchColor *color.Color
}

// New creates a renderer. Color output honors color.NoColor.
func New(out, errOut io.Writer) *Renderer {
	return &Renderer{
		out:        out,
		errOut:     errOut,
		errColor:   color.New(color.FgRed),
		rawColor:   color.New(color.FgYellow),
		matchColor: color.New(color.FgGreen),
	}
}

// Result renders a correlated response for the request that produced it.
func (r *Renderer) Result(req rpc.Request, resp rpc.Response) {
	r.echo(req, resp)

	if resp.Error != nil {
		r.errColor.Fprintf(r.errOut, "%s failed: %v\n", req.Method, resp.Error)
		return
	}

	result := gjson.ParseBytes(resp.Result)
	switch req.Method {
	case protocol.MethodTextDocumentDefinition:
		r.locations(result, "definition")
	case protocol.MethodTextDocumentReferences:
		r.locations(result, "reference")
	case protocol.MethodTextDocumentDocumentSymbol:
		r.symbols(result)
	default:
		r.generic(req, resp)
	}
}

// Unmatched renders a response that resolved to no outstanding request, or
// carried no identifier at all.
func (r *Renderer) Unmatched(body json.RawMessage) {
	fmt.Fprintln(r.out, string(r.colorJSON(body)))
}

// Raw surfaces a well-framed body that was not valid JSON, verbatim.
func (r *Renderer) Raw(text string) {
	r.rawColor.Fprintln(r.out, text)
}

// Stderr echoes one line of the server's standard error.
func (r *Renderer) Stderr(line string) {
	r.errColor.Fprintf(r.errOut, "stderr: %s\n", line)
}

// Diag surfaces a transport-level diagnostic (framing errors, unknown
// commands, write failures).
func (r *Renderer) Diag(format string, args ...any) {
	fmt.Fprintf(r.errOut, format+"\n", args...)
}

// Info prints informational text (help, session lifecycle) to the console.
func (r *Renderer) Info(format string, args ...any) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

func (r *Renderer) echo(req rpc.Request, resp rpc.Response) {
	if r.EchoRequests {
		if data, err := json.Marshal(req); err == nil {
			fmt.Fprintf(r.out, "command: %s\n", r.colorJSON(data))
		}
	}
	if r.EchoResponses {
		if data, err := json.Marshal(resp); err == nil {
			fmt.Fprintf(r.out, "response: %s\n", r.colorJSON(data))
		}
	}
}

// locations renders a definition or references result: one line per location,
// uri and range separated by a tab.
func (r *Renderer) locations(result gjson.Result, kind string) {
	if !result.Exists() || result.Type == gjson.Null {
		r.Info("No %ss found.", kind)
		return
	}

	items := result.Array()
	if len(items) == 0 {
		r.Info("No %ss found.", kind)
		return
	}

	for _, item := range items {
		uri := item.Get("uri")
		if !uri.Exists() {
			r.Diag("%s found but uri is missing", kind)
			continue
		}
		fmt.Fprintf(r.out, "%s\t%s\n", uri.String(), formatRange(item.Get("range")))
	}
}

// symbols renders a documentSymbol result as a table. Servers answer with
// either flat SymbolInformation entries (location carries the uri) or
// hierarchical DocumentSymbol entries (range only, children nested).
func (r *Renderer) symbols(result gjson.Result) {
	items := result.Array()
	if len(items) == 0 {
		r.Info("No symbols found.")
		return
	}

	w := table.NewWriter()
	w.SetOutputMirror(r.out)
	w.AppendHeader(table.Row{"Symbol", "Location", "Range"})

	var add func(item gjson.Result, depth int)
	add = func(item gjson.Result, depth int) {
		name := item.Get("name").String()
		for i := 0; i < depth; i++ {
			name = "  " + name
		}

		if loc := item.Get("location"); loc.Exists() {
			w.AppendRow(table.Row{name, loc.Get("uri").String(), formatRange(loc.Get("range"))})
		} else {
			w.AppendRow(table.Row{name, "", formatRange(item.Get("range"))})
		}

		for _, child := range item.Get("children").Array() {
			add(child, depth+1)
		}
	}
	for _, item := range items {
		add(item, 0)
	}

	w.SetStyle(table.StyleLight)
	w.Render()
}

// generic prints a request/response pair that has no dedicated rendering.
func (r *Renderer) generic(req rpc.Request, resp rpc.Response) {
	if data, err := json.Marshal(req); err == nil {
		fmt.Fprintf(r.out, "command: %s\n", r.colorJSON(data))
	}
	if data, err := json.Marshal(resp); err == nil {
		fmt.Fprintf(r.out, "response: %s\n", r.colorJSON(data))
	}
}

func (r *Renderer) colorJSON(data []byte) []byte {
	out := pretty.Pretty(data)
	if !color.NoColor {
		out = pretty.Color(out, nil)
	}
	// Pretty output ends with a newline; the callers add their own.
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}
	return out
}

// formatRange renders an LSP range as start.line:start.char->end.line:end.char.
// Missing coordinates render as -1, matching nothing a server would emit.
func formatRange(rng gjson.Result) string {
	get := func(path string) int64 {
		v := rng.Get(path)
		if !v.Exists() {
			return -1
		}
		return v.Int()
	}
	return fmt.Sprintf("%d:%d->%d:%d",
		get("start.line"), get("start.character"),
		get("end.line"), get("end.character"))
}
