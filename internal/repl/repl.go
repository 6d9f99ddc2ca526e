// Package repl provides the interactive analysis prompt with prefix
// completion over the cataloged command names.
package repl

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
)

// Config wires the prompt to the analyzer.
type Config struct {
	// Prompt is the line prefix; defaults to "splq> ".
	Prompt string

	// Completions are offered on tab; typically the catalog command
	// names.
	Completions []string

	// Eval analyzes one line and renders its report.
	Eval func(line string) error
}

// Run reads lines until EOF or an exit command, analyzing each one.
func Run(cfg *Config) error {
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = "splq> "
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            prompt,
		HistoryFile:       os.ExpandEnv("$HOME/.splq_history"),
		HistoryLimit:      1000,
		HistorySearchFold: true,
		AutoComplete:      completer(cfg.Completions),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %v", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				break
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		if err := cfg.Eval(line); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	return nil
}

// completer builds a prefix completer over the command names.
func completer(names []string) readline.AutoCompleter {
	items := make([]readline.PrefixCompleterInterface, len(names))
	for i, name := range names {
		items[i] = readline.PcItem(name)
	}
	return readline.NewPrefixCompleter(items...)
}
