// Package config loads lspwire settings from a TOML file with an environment
// variable overlay. Precedence, lowest to highest: built-in defaults, config
// file, LSPWIRE_* environment variables, command-line flags (applied by the
// command layer).
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full lspwire configuration.
type Config struct {
	Server   Server   `toml:"server"`
	Document Document `toml:"document"`
	Position Position `toml:"position"`
	Echo     Echo     `toml:"echo"`
	Log      Log      `toml:"log"`
}

// Server configures the language server subprocess.
type Server struct {
	// Command is the server invocation, split shell-style; e.g.
	// "clangd --log=verbose".
	Command string `toml:"command"`
}

// Document configures the target document.
type Document struct {
	// Language is the LSP languageId sent in didOpen.
	Language string `toml:"language"`
	// Watch re-syncs the document to the server when it changes on disk.
	Watch bool `toml:"watch"`
}

// Position is the default zero-based position used by def/ref when the
// operator gives no coordinates.
type Position struct {
	Line      uint32 `toml:"line"`
	Character uint32 `toml:"character"`
}

// Echo controls what raw traffic is printed alongside rendered results.
type Echo struct {
	Stderr    bool `toml:"stderr"`
	Commands  bool `toml:"commands"`
	Responses bool `toml:"responses"`
}

// Log configures the diagnostic logger.
type Log struct {
	Level string `toml:"level"`
}

// Default returns the built-in configuration: clangd on a C file, matching
// the most common use of a wire-level LSP probe.
func Default() Config {
	return Config{
		Server:   Server{Command: "clangd"},
		Document: Document{Language: "c"},
		Echo:     Echo{Stderr: true},
		Log:      Log{Level: "info"},
	}
}

// Load reads the config file at path (missing file with an explicit path is
// an error; an empty path skips the file layer) and applies the environment
// overlay.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// Environment variables recognized by the overlay.
const (
	envServer    = "LSPWIRE_SERVER"
	envLanguage  = "LSPWIRE_LANGUAGE"
	envLogLevel  = "LSPWIRE_LOG_LEVEL"
	envLine      = "LSPWIRE_LINE"
	envCharacter = "LSPWIRE_CHARACTER"
)

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(envServer); ok {
		c.Server.Command = v
	}
	if v, ok := os.LookupEnv(envLanguage); ok {
		c.Document.Language = v
	}
	if v, ok := os.LookupEnv(envLogLevel); ok {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv(envLine); ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			c.Position.Line = uint32(n)
		}
	}
	if v, ok := os.LookupEnv(envCharacter); ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			c.Position.Character = uint32(n)
		}
	}
}
