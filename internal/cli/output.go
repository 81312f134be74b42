package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/rangestream/codec"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Planning failed
	ExitCommandError = 2 // Bad flags, missing files or stores
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func commandError(message string, err error) *ExitError {
	return &ExitError{Code: ExitCommandError, Message: message, Err: err}
}

// ExitCode extracts the exit code from an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

func validCodecs() []string {
	return append([]string{"text"}, codec.Names()...)
}

// output writes command results in the configured encoding. Diagnostics go
// to ErrWriter so encoded output stays parseable.
type output struct {
	codec     string
	writer    io.Writer
	errWriter io.Writer
	verbose   bool
}

// encode writes v with the configured codec. In text mode text is called
// instead.
func (o *output) encode(v any, text func(w io.Writer) error) error {
	if o.codec == "text" {
		return text(o.writer)
	}
	c, ok := codec.ByName(o.codec)
	if !ok {
		return commandError("unknown codec "+o.codec, nil)
	}
	data, err := c.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.Name(), err)
	}
	if _, err := o.writer.Write(data); err != nil {
		return err
	}
	if c.Name() != "msgpack" {
		_, err = io.WriteString(o.writer, "\n")
	}
	return err
}

func (o *output) verboseLog(format string, args ...any) {
	if !o.verbose {
		return
	}
	fmt.Fprintf(o.errWriter, format+"\n", args...)
}
