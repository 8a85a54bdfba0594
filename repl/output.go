package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/term"

	synccit "github.com/synccit/synccit"
	"github.com/synccit/synccit/assist"
	"github.com/synccit/synccit/terminal"
)

// termWriter wraps a file and converts \n to \r\n when the file is a terminal
// (needed because raw mode disables the kernel's NL→CRNL translation).
// When the file is redirected, \n passes through unchanged.
func termWriter(f *os.File) io.Writer {
	if term.IsTerminal(int(f.Fd())) {
		return &crlfWriter{w: f}
	}
	return f
}

type crlfWriter struct {
	w io.Writer
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	replaced := bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))
	_, err := c.w.Write(replaced)
	return len(p), err // report original length to caller
}

// entry is one exchange in the TOML log. Exactly one of Command, Action is set.
type entry struct {
	Request requestEntry  `toml:"request"`
	Command *commandEntry `toml:"command,omitempty"`
	Action  *actionEntry  `toml:"action,omitempty"`
	Error   *errorEntry   `toml:"error,omitempty"`
}

type requestEntry struct {
	Timestamp time.Time `toml:"timestamp"`
	Input     string    `toml:"input"`
	Cwd       string    `toml:"cwd"`
}

type commandEntry struct {
	Outcome    string `toml:"outcome"`
	ExitCode   int    `toml:"exit_code"`
	NewCwd     string `toml:"new_cwd"`
	Output     string `toml:"output,omitempty"`
	Error      string `toml:"error,omitempty"`
	Truncated  bool   `toml:"truncated,omitempty"`
	DurationMS int64  `toml:"duration_ms"`
}

type actionEntry struct {
	Name        string `toml:"name"`
	File        string `toml:"file"`
	Language    string `toml:"language"`
	UserInput   string `toml:"user_input,omitempty"`
	Result      string `toml:"result,omitempty"`
	Efficiency  *int   `toml:"efficiency,omitempty"`
	Scalability *int   `toml:"scalability,omitempty"`
}

type errorEntry struct {
	Kind    string `toml:"kind"`
	Message string `toml:"message"`
}

func newEntry(input, cwd string) entry {
	return entry{Request: requestEntry{Timestamp: time.Now().UTC().Truncate(time.Second), Input: input, Cwd: cwd}}
}

func (e *entry) setCommand(res *terminal.Result) {
	e.Command = &commandEntry{
		Outcome:    string(res.Outcome),
		ExitCode:   res.ExitCode,
		NewCwd:     res.Response.NewCwd,
		Output:     res.Response.Output,
		Error:      res.Response.Error,
		Truncated:  res.Truncated,
		DurationMS: res.Duration.Milliseconds(),
	}
}

func (e *entry) setAction(name, file string, req *synccit.ActionRequest, resp *synccit.ActionResponse) {
	a := &actionEntry{Name: name, File: file, Language: req.Language, UserInput: req.UserInput}
	if resp != nil {
		a.Result = resp.Result
		if m := resp.Metrics; m != nil {
			a.Efficiency, a.Scalability = &m.Efficiency, &m.Scalability
		}
	}
	e.Action = a
}

func (e *entry) setError(err error) {
	kind := "internal"
	var ae *assist.Error
	if errors.As(err, &ae) {
		kind = ae.Kind.String()
	}
	e.Error = &errorEntry{Kind: kind, Message: err.Error()}
}

// writeEntry writes a single TOML-formatted entry to w.
func writeEntry(w io.Writer, e entry) error {
	fmt.Fprintf(w, "# %s\n\n", strings.Repeat("═", 60))
	if err := toml.NewEncoder(w).Encode(e); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}
