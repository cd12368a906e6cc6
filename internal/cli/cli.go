package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/mattn/go-isatty"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Config is the parsed command line.
type Config struct {
	Model    string
	LogLevel slog.Level
}

// Prompter asks the user to pick one of options.
type Prompter interface {
	Select(message string, options []string) (string, error)
}

// Parse processes command-line arguments against the registered model
// names. It returns the parsed Config, a boolean indicating if the program
// should exit cleanly, or an ExitError. With no model argument and a non-nil
// prompt, the user is asked to pick one.
func Parse(args []string, names []string, output io.Writer, prompt Prompter) (*Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("buildengine", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprintf(output, `
buildengine - Convert a frozen SSD detector into a serialized inference engine.

Usage:
  buildengine [options] MODEL

Arguments:
  MODEL
    One of: %s

Options:
`, strings.Join(names, ", "))
		flagSet.PrintDefaults()
	}

	verbose := flagSet.Bool("v", false, "Log converter and builder output at debug level.")

	// The flag package stops at the first positional; keep going so options
	// may follow the model name.
	var positional []string
	for {
		if err := flagSet.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil, true, nil
			}
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
		args = flagSet.Args()
		if len(args) == 0 {
			break
		}
		positional = append(positional, args[0])
		args = args[1:]
	}

	cfg := &Config{LogLevel: slog.LevelInfo}
	if *verbose {
		cfg.LogLevel = slog.LevelDebug
	}

	switch len(positional) {
	case 0:
		if prompt == nil {
			flagSet.Usage()
			return nil, false, &ExitError{Code: 2, Message: "missing model argument"}
		}
		model, err := prompt.Select("Model to convert:", names)
		if err != nil {
			return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("no model selected: %v", err)}
		}
		cfg.Model = model
	case 1:
		cfg.Model = positional[0]
	default:
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("expected one model argument, got %d", len(positional))}
	}

	if !slices.Contains(names, cfg.Model) {
		return nil, false, &ExitError{
			Code:    2,
			Message: fmt.Sprintf("invalid model %q (choose from %s)", cfg.Model, strings.Join(names, ", ")),
		}
	}

	slog.Debug("CLI parser finished successfully.", "model", cfg.Model)
	return cfg, false, nil
}

// SurveyPrompter prompts on the terminal.
type SurveyPrompter struct {
	In  terminal.FileReader
	Out terminal.FileWriter
	Err io.Writer
}

// Select implements Prompter.
func (p SurveyPrompter) Select(message string, options []string) (string, error) {
	var out string
	prompt := &survey.Select{
		Message: message,
		Options: options,
	}
	if err := survey.AskOne(prompt, &out, survey.WithStdio(p.In, p.Out, p.Err)); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return "", errors.New("aborted")
		}
		return "", err
	}
	return out, nil
}

// TerminalPrompter returns a prompter over stdin and stderr when both are
// terminals, and nil otherwise.
func TerminalPrompter() Prompter {
	if !isTerminal(os.Stdin) || !isTerminal(os.Stderr) {
		return nil
	}
	return SurveyPrompter{In: os.Stdin, Out: os.Stderr, Err: os.Stderr}
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
