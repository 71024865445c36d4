// Package app wires a session together: it spawns the language server,
// starts the three workers that keep its pipes moving (the interactive loop
// on stdin, the response pump on stdout, the diagnostic pump on stderr),
// and joins them before reporting the server's exit status.
//
// All three workers must run concurrently: stdout and stderr have bounded OS
// pipe buffers, and a server blocked writing to either will eventually stop
// reading its own stdin, stalling the whole session.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/kballard/go-shellquote"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/dshills/lspwire/internal/console"
	"github.com/dshills/lspwire/internal/correlate"
	"github.com/dshills/lspwire/internal/render"
	"github.com/dshills/lspwire/internal/rpc"
	"github.com/dshills/lspwire/internal/session"
	"github.com/dshills/lspwire/internal/watch"
)

// Options configures a session.
type Options struct {
	// ServerCommand is the server invocation, split shell-style.
	ServerCommand string
	// FilePath is the document to open.
	FilePath string
	// Language is the LSP languageId for the document.
	Language string
	// DefaultPos is used by def/ref when the operator gives no coordinates.
	DefaultPos protocol.Position
	// EchoStderr prints server stderr lines to the console; otherwise they
	// go to the debug log only.
	EchoStderr bool
	// Watch re-syncs the document to the server when it changes on disk.
	Watch bool

	// Input is the operator console, normally os.Stdin.
	Input io.Reader
	// Renderer receives all protocol-visible output.
	Renderer *render.Renderer
	// Logger may be nil.
	Logger *zap.Logger
}

// App is a single debugging session against one server and one document.
type App struct {
	opts Options

	command string
	args    []string
	docURI  uri.URI
	rootURI uri.URI
	text    string

	render *render.Renderer
	log    *zap.Logger
}

// New validates options, reads the target document and resolves its URI.
func New(opts Options) (*App, error) {
	words, err := shellquote.Split(opts.ServerCommand)
	if err != nil {
		return nil, fmt.Errorf("parse server command %q: %w", opts.ServerCommand, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("empty server command")
	}

	abs, err := filepath.Abs(opts.FilePath)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", opts.FilePath, err)
	}
	text, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", abs, err)
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}

	return &App{
		opts:    opts,
		command: words[0],
		args:    words[1:],
		docURI:  uri.File(abs),
		rootURI: uri.File(filepath.Dir(abs)),
		text:    string(text),
		render:  opts.Renderer,
		log:     log,
	}, nil
}

// Run drives the session to completion. It returns an error for a spawn
// failure or a broken stdin pipe; a non-zero server exit is reported to the
// operator but is not an error, since the server may have been told to exit.
func (a *App) Run(ctx context.Context) error {
	sess, err := session.Spawn(ctx, a.command, a.args...)
	if err != nil {
		return err
	}
	a.log.Info("server started",
		zap.String("command", a.command),
		zap.Int("pid", sess.Pid()))

	wire := rpc.NewWriter(sess.Stdin())
	table := correlate.NewTable()
	builder := rpc.NewBuilder(a.opts.Language)

	var pumps sync.WaitGroup
	pumps.Add(2)
	go func() {
		defer pumps.Done()
		a.responsePump(sess.Stdout(), table)
	}()
	go func() {
		defer pumps.Done()
		a.diagnosticPump(sess.Stderr())
	}()

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	if a.opts.Watch {
		a.startWatcher(watchCtx, builder, wire)
	}

	loop := console.New(console.Config{
		Input:      a.opts.Input,
		Wire:       wire,
		Table:      table,
		Builder:    builder,
		Renderer:   a.render,
		Logger:     a.log,
		Document:   console.Document{URI: a.docURI, Text: a.text},
		RootURI:    a.rootURI,
		DefaultPos: a.opts.DefaultPos,
	})
	loopErr := loop.Run()
	if loopErr != nil {
		// Fatal to the loop only; the pumps drain whatever the server
		// still has buffered.
		a.render.Diag("console: %v", loopErr)
		a.log.Error("interactive loop failed", zap.Error(loopErr))
	}

	stopWatch()
	wire.Close()
	if err := sess.CloseStdin(); err != nil {
		a.log.Debug("close stdin", zap.Error(err))
	}

	pumps.Wait()

	status := sess.Wait()
	if !status.Clean() {
		a.render.Diag("server %s", status)
	}
	a.log.Info("session ended",
		zap.Int("exitCode", status.Code),
		zap.Int("unanswered", table.Outstanding()))

	return loopErr
}

// startWatcher begins disk re-sync for the target document. Failure to watch
// is reported and ignored; the session works without it.
func (a *App) startWatcher(ctx context.Context, builder *rpc.Builder, wire *rpc.Writer) {
	w, err := watch.New(a.opts.FilePath, func(text string, version int32) {
		_, frame, err := builder.DidChange(a.docURI, version, text)
		if err != nil {
			a.log.Warn("build didChange", zap.Error(err))
			return
		}
		if err := wire.WriteFrame(frame); err != nil {
			a.log.Warn("send didChange", zap.Error(err))
		}
	}, a.log)
	if err != nil {
		a.render.Diag("watch %s: %v", a.opts.FilePath, err)
		return
	}

	go func() {
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			a.render.Diag("watch stopped: %v", err)
		}
	}()
}
