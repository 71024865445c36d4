// Package main is the entry point for the lspwire LSP debugging console.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.lsp.dev/protocol"

	"github.com/dshills/lspwire/internal/app"
	"github.com/dshills/lspwire/internal/config"
	"github.com/dshills/lspwire/internal/render"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

type flags struct {
	configPath string

	server    string
	language  string
	line      uint32
	character uint32

	echoStderr    bool
	echoCommands  bool
	echoResponses bool
	debug         bool
	watch         bool
	logLevel      string
}

func main() {
	os.Exit(run())
}

func run() int {
	var f flags

	cmd := &cobra.Command{
		Use:   "lspwire [flags] FILE",
		Short: "Interactive wire-level console for LSP servers",
		Long: `lspwire spawns a language server, opens FILE with it, and gives you an
interactive console for issuing requests and inspecting the raw traffic
that comes back. Malformed frames are reported and skipped rather than
killing the session, so it doubles as a probe for misbehaving servers.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, f, args[0])
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "path to a TOML config file")
	cmd.Flags().StringVarP(&f.server, "server", "s", "", "language server command, shell-style (default \"clangd\")")
	cmd.Flags().StringVarP(&f.language, "language", "l", "", "LSP languageId for the document (default \"c\")")
	cmd.Flags().Uint32Var(&f.line, "line", 0, "default zero-based line for def/ref")
	cmd.Flags().Uint32Var(&f.character, "character", 0, "default zero-based character for def/ref")
	cmd.Flags().BoolVar(&f.echoStderr, "echo-stderr", true, "echo server stderr lines to the console")
	cmd.Flags().BoolVar(&f.echoCommands, "echo-commands", false, "print each request envelope before its result")
	cmd.Flags().BoolVar(&f.echoResponses, "echo-responses", false, "print each raw response envelope before its result")
	cmd.Flags().BoolVarP(&f.debug, "debug", "d", false, "echo all request and response envelopes and log at debug level")
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "re-sync the document to the server when it changes on disk")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error (default \"info\")")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "lspwire: %v\n", err)
		return 1
	}
	return 0
}

func runSession(cmd *cobra.Command, f flags, file string) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, f, &cfg)

	logger, err := app.NewLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	renderer := render.New(os.Stdout, os.Stderr)
	renderer.EchoRequests = cfg.Echo.Commands
	renderer.EchoResponses = cfg.Echo.Responses

	a, err := app.New(app.Options{
		ServerCommand: cfg.Server.Command,
		FilePath:      file,
		Language:      cfg.Document.Language,
		DefaultPos: protocol.Position{
			Line:      cfg.Position.Line,
			Character: cfg.Position.Character,
		},
		EchoStderr: cfg.Echo.Stderr,
		Watch:      cfg.Document.Watch,
		Input:      os.Stdin,
		Renderer:   renderer,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// First signal cancels the context, which kills the server and lets the
	// pumps drain. A second signal ends the process outright, for the case
	// where the console is still blocked reading a terminal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
		<-sigCh
		os.Exit(130)
	}()

	return a.Run(ctx)
}

// applyFlags overlays explicitly set flags on the loaded config. Flags sit at
// the top of the precedence order; an unset flag never clobbers a file or
// environment value.
func applyFlags(cmd *cobra.Command, f flags, cfg *config.Config) {
	set := cmd.Flags().Changed

	// Debug is expanded first so the specific flags below can still narrow it.
	if set("debug") && f.debug {
		cfg.Echo.Commands = true
		cfg.Echo.Responses = true
		cfg.Log.Level = "debug"
	}
	if set("server") {
		cfg.Server.Command = f.server
	}
	if set("language") {
		cfg.Document.Language = f.language
	}
	if set("line") {
		cfg.Position.Line = f.line
	}
	if set("character") {
		cfg.Position.Character = f.character
	}
	if set("echo-stderr") {
		cfg.Echo.Stderr = f.echoStderr
	}
	if set("echo-commands") {
		cfg.Echo.Commands = f.echoCommands
	}
	if set("echo-responses") {
		cfg.Echo.Responses = f.echoResponses
	}
	if set("watch") {
		cfg.Document.Watch = f.watch
	}
	if set("log-level") {
		cfg.Log.Level = f.logLevel
	}
}
