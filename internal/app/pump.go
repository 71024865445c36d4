package app

import (
	"bufio"
	"encoding/json"
	"io"

	"go.uber.org/zap"

	"github.com/dshills/lspwire/internal/correlate"
	"github.com/dshills/lspwire/internal/rpc"
)

// responsePump drains the server's stdout for the life of the pipe. Every
// decoded frame is resolved against the correlation table and handed to the
// renderer paired with its originating request; responses with no identifier,
// or an identifier this client never issued, render generically. Framing
// errors are surfaced and the stream is rescanned from the next line.
func (a *App) responsePump(r io.Reader, table *correlate.Table) {
	dec := rpc.NewDecoder(r)

	for {
		frame, err := dec.Next()
		if err == io.EOF {
			a.log.Debug("server stdout closed")
			return
		}
		if err != nil {
			if rpc.IsFramingError(err) {
				a.render.Diag("%v", err)
				continue
			}
			a.log.Warn("response pump", zap.Error(err))
			return
		}

		if frame.Empty() {
			a.log.Debug("empty frame body")
			continue
		}
		if frame.Body == nil {
			// Well-framed but not JSON; show the operator what arrived.
			a.render.Raw(frame.Raw)
			continue
		}

		var resp rpc.Response
		if err := json.Unmarshal(frame.Body, &resp); err != nil {
			a.render.Raw(string(frame.Body))
			continue
		}

		if resp.ID != nil {
			if req, ok := table.Resolve(*resp.ID); ok {
				a.render.Result(req, resp)
				continue
			}
		}
		a.render.Unmatched(frame.Body)
	}
}

// diagnosticPump drains the server's stderr line by line. It does no JSON
// interpretation; stderr is free text by contract.
func (a *App) diagnosticPump(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if a.opts.EchoStderr {
			a.render.Stderr(line)
		} else {
			a.log.Debug("server stderr", zap.String("line", line))
		}
	}
	a.log.Debug("server stderr closed")
}
