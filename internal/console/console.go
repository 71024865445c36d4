// Package console implements the interactive command loop that drives a
// session. It reads operator commands a line at a time, turns recognized
// commands into requests, registers them with the correlation table, and
// writes their frames to the server's stdin.
//
// The loop is a two-state machine: awaiting a command, dispatching it, back
// to awaiting. The only exits are quit, an empty line, end of input, or a
// failed stdin write (the pipe is broken, so the session is over). Unknown
// commands are reported and the loop keeps going.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/dshills/lspwire/internal/correlate"
	"github.com/dshills/lspwire/internal/render"
	"github.com/dshills/lspwire/internal/rpc"
)

const available = "help, def [line char], ref [line char], sym, quit"

// Document is the single file this session is about.
type Document struct {
	URI  uri.URI
	Text string
}

// Config wires a loop to its collaborators.
type Config struct {
	Input    io.Reader
	Wire     *rpc.Writer
	Table    *correlate.Table
	Builder  *rpc.Builder
	Renderer *render.Renderer
	Logger   *zap.Logger

	Document   Document
	RootURI    uri.URI
	DefaultPos protocol.Position
}

// Loop is the interactive command loop.
type Loop struct {
	cfg Config
	log *zap.Logger
}

// New creates a loop. Logger may be nil.
func New(cfg Config) *Loop {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Loop{cfg: cfg, log: log}
}

// Run opens the session (initialize, then didOpen for the target document)
// and processes operator commands until quit, empty line, or end of input.
// It returns an error only when writing to the server's stdin fails; that is
// fatal to the loop, while the pumps keep draining whatever the server still
// has buffered.
func (l *Loop) Run() error {
	if err := l.preamble(); err != nil {
		return err
	}

	scanner := bufio.NewScanner(l.cfg.Input)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "quit" {
			return l.shutdown()
		}

		if err := l.dispatch(line); err != nil {
			return err
		}
	}

	// End of console input counts as quit.
	return l.shutdown()
}

// preamble sends the session preconditions: initialize (always id 1, since
// the table has issued nothing yet) and didOpen for the target document.
func (l *Loop) preamble() error {
	req, wire, err := l.cfg.Table.Issue(func(id int64) (rpc.Request, []byte, error) {
		return l.cfg.Builder.Initialize(id, l.cfg.RootURI)
	})
	if err != nil {
		return fmt.Errorf("build initialize: %w", err)
	}
	if err := l.cfg.Wire.WriteFrame(wire); err != nil {
		return fmt.Errorf("send initialize: %w", err)
	}
	l.log.Debug("request issued", zap.Int64("id", req.ID), zap.String("method", req.Method))

	_, wire, err = l.cfg.Builder.DidOpen(l.cfg.Document.URI, l.cfg.Document.Text)
	if err != nil {
		return fmt.Errorf("build didOpen: %w", err)
	}
	if err := l.cfg.Wire.WriteFrame(wire); err != nil {
		return fmt.Errorf("send didOpen: %w", err)
	}
	l.log.Debug("document opened", zap.String("uri", string(l.cfg.Document.URI)))

	return nil
}

func (l *Loop) dispatch(line string) error {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		l.cfg.Renderer.Info("Available commands: %s", available)
		return nil

	case "def":
		pos, err := l.position(args)
		if err != nil {
			l.cfg.Renderer.Diag("def: %v", err)
			return nil
		}
		return l.issue(func(id int64) (rpc.Request, []byte, error) {
			return l.cfg.Builder.Definition(id, l.cfg.Document.URI, pos)
		})

	case "ref":
		pos, err := l.position(args)
		if err != nil {
			l.cfg.Renderer.Diag("ref: %v", err)
			return nil
		}
		return l.issue(func(id int64) (rpc.Request, []byte, error) {
			return l.cfg.Builder.References(id, l.cfg.Document.URI, pos)
		})

	case "sym":
		return l.issue(func(id int64) (rpc.Request, []byte, error) {
			return l.cfg.Builder.DocumentSymbol(id, l.cfg.Document.URI)
		})

	default:
		l.cfg.Renderer.Diag("unknown command: %s", cmd)
		l.cfg.Renderer.Diag("Available commands: %s", available)
		return nil
	}
}

// issue allocates an identifier, registers the request and writes its frame.
// A write failure is fatal to the loop.
func (l *Loop) issue(build correlate.BuildFunc) error {
	req, wire, err := l.cfg.Table.Issue(build)
	if err != nil {
		// Construction failed before anything was registered or sent;
		// the session is still healthy.
		l.cfg.Renderer.Diag("build request: %v", err)
		return nil
	}

	if err := l.cfg.Wire.WriteFrame(wire); err != nil {
		return fmt.Errorf("send %s: %w", req.Method, err)
	}

	l.log.Debug("request issued", zap.Int64("id", req.ID), zap.String("method", req.Method))
	return nil
}

// shutdown ends the session gracefully: didClose then exit, both
// notifications. Write errors here are surfaced but not returned; the server
// may already be gone, and either way the loop is over.
func (l *Loop) shutdown() error {
	if _, wire, err := l.cfg.Builder.DidClose(l.cfg.Document.URI); err == nil {
		if err := l.cfg.Wire.WriteFrame(wire); err != nil {
			l.cfg.Renderer.Diag("send didClose: %v", err)
			return nil
		}
	}

	if _, wire, err := l.cfg.Builder.Exit(); err == nil {
		if err := l.cfg.Wire.WriteFrame(wire); err != nil {
			l.cfg.Renderer.Diag("send exit: %v", err)
		}
	}

	l.log.Debug("session closed by operator")
	return nil
}

// position parses optional "line character" arguments (zero-based), falling
// back to the configured default position.
func (l *Loop) position(args []string) (protocol.Position, error) {
	switch len(args) {
	case 0:
		return l.cfg.DefaultPos, nil
	case 2:
		line, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return protocol.Position{}, fmt.Errorf("bad line %q", args[0])
		}
		char, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return protocol.Position{}, fmt.Errorf("bad character %q", args[1])
		}
		return protocol.Position{Line: uint32(line), Character: uint32(char)}, nil
	default:
		return protocol.Position{}, fmt.Errorf("want no arguments or <line> <character>")
	}
}
