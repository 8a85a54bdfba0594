// Command synccit-repl is an interactive console for the command gate and
// the AI actions. Plain lines run through the gate with the working directory
// handed back and forth like the editor's terminal panel does; :ai runs an
// action on a local file. Each exchange is written to stdout as TOML.
//
// Usage:
//
//	./synccit-repl             # interactive, TOML on screen
//	./synccit-repl > log.toml  # prompt on screen, TOML to file
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"mvdan.cc/sh/v3/shell"

	synccit "github.com/synccit/synccit"
	"github.com/synccit/synccit/assist"
	"github.com/synccit/synccit/terminal"
)

const promptSuffix = " $ "

var (
	verbose  bool
	startCwd string
)

var rootCmd = &cobra.Command{
	Use:          "synccit-repl",
	Short:        "Interactive console for the synccit command gate and AI actions",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr at debug level")
	rootCmd.Flags().StringVar(&startCwd, "cwd", "", "Starting directory (default: current directory)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger stays quiet unless asked: stderr shares the raw-mode terminal.
func newLogger() (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	return config.Build()
}

// console holds the state carried between lines.
type console struct {
	gate       *terminal.Gate
	dispatcher *assist.Dispatcher
	cwd        string
	tty        io.Writer
	out        io.Writer
}

func run(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := synccit.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gate, err := terminal.New(cfg.Terminal, logger.Named("terminal"))
	if err != nil {
		return err
	}

	cwd := startCwd
	if cwd == "" {
		if cwd, err = os.Getwd(); err != nil {
			return fmt.Errorf("cannot determine cwd: %w", err)
		}
	}
	if cwd, err = filepath.Abs(cwd); err != nil {
		return err
	}

	editor, err := NewEditor()
	if err != nil {
		return err
	}
	defer editor.Close()

	c := &console{
		gate:       gate,
		dispatcher: assist.NewDispatcher(cfg, &http.Client{Timeout: 90 * time.Second}, logger.Named("assist")),
		cwd:        cwd,
		tty:        editor.Tty(),
		out:        termWriter(os.Stdout),
	}

	tty := c.tty
	fmt.Fprintf(tty, "\033[2J\033[H") // clear screen
	fmt.Fprintf(tty, "synccit repl\r\n")
	fmt.Fprintf(tty, "cwd: %s\r\n", c.cwd)
	c.help()

	for {
		text, err := editor.ReadLine(c.prompt())
		if err == io.EOF || err == ErrInterrupt {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		switch {
		case text == ":quit" || text == ":q":
			return nil
		case text == ":help" || text == ":h":
			c.help()
		case text == ":history":
			for i, h := range editor.History() {
				fmt.Fprintf(tty, "%4d  %s\r\n", i+1, h)
			}
		case strings.HasPrefix(text, ":cwd"):
			c.setCwd(strings.TrimSpace(strings.TrimPrefix(text, ":cwd")))
		case strings.HasPrefix(text, ":ai"):
			c.action(context.Background(), text)
		case strings.HasPrefix(text, ":"):
			fmt.Fprintf(tty, "unknown command %s (try :help)\r\n", strings.Fields(text)[0])
		default:
			c.command(context.Background(), text)
		}
	}
}

func (c *console) prompt() string {
	dir := c.cwd
	if home, err := os.UserHomeDir(); err == nil && (dir == home || strings.HasPrefix(dir, home+string(filepath.Separator))) {
		dir = "~" + strings.TrimPrefix(dir, home)
	}
	return dir + promptSuffix
}

func (c *console) help() {
	fmt.Fprintf(c.tty, "\r\ncommands:\r\n")
	fmt.Fprintf(c.tty, "  <shell command>                     run through the command gate\r\n")
	fmt.Fprintf(c.tty, "  :ai <action> <file> [input...]      run an AI action on a file\r\n")
	fmt.Fprintf(c.tty, "  :cwd <path>                         set working directory\r\n")
	fmt.Fprintf(c.tty, "  :history                            show history\r\n")
	fmt.Fprintf(c.tty, "  :quit                               exit\r\n")
	fmt.Fprintf(c.tty, "actions: %s\r\n\r\n", strings.Join(assist.ActionNames(), ", "))
}

func (c *console) setCwd(path string) {
	if path == "" {
		fmt.Fprintf(c.tty, "cwd: %s\r\n", c.cwd)
		return
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.cwd, path)
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		fmt.Fprintf(c.tty, "error: not a directory: %s\r\n", path)
		return
	}
	c.cwd = filepath.Clean(path)
	fmt.Fprintf(c.tty, "cwd: %s\r\n\r\n", c.cwd)
}

func (c *console) command(ctx context.Context, text string) {
	e := newEntry(text, c.cwd)
	res, err := c.gate.Run(ctx, &synccit.CommandRequest{Command: text, Cwd: c.cwd})
	if err != nil {
		fmt.Fprintf(c.tty, "\x1b[31mServer error: %v\x1b[0m\r\n\r\n", err)
		e.setError(err)
		c.write(e)
		return
	}

	if res.Response.Output != "" {
		fmt.Fprint(c.tty, crlf(res.Response.Output))
		if !strings.HasSuffix(res.Response.Output, "\n") {
			fmt.Fprint(c.tty, "\r\n")
		}
	}
	if res.Response.Error != "" {
		fmt.Fprintf(c.tty, "\x1b[31m%s\x1b[0m\r\n", strings.TrimRight(crlf(res.Response.Error), "\r\n"))
	}
	c.cwd = res.Response.NewCwd

	e.setCommand(res)
	c.write(e)
}

// aiRequest is a parsed ":ai" line.
type aiRequest struct {
	action assist.Action
	file   string
	input  string
}

// parseAI splits ":ai <action> <file> [input...]" with shell quoting rules.
func parseAI(text string) (aiRequest, error) {
	fields, err := shell.Fields(strings.TrimPrefix(text, ":ai"), nil)
	if err != nil {
		return aiRequest{}, fmt.Errorf("cannot parse line: %w", err)
	}
	if len(fields) < 2 {
		return aiRequest{}, errors.New("usage: :ai <action> <file> [input...]")
	}
	action, err := assist.ParseAction(fields[0])
	if err != nil {
		return aiRequest{}, err
	}
	return aiRequest{action: action, file: fields[1], input: strings.Join(fields[2:], " ")}, nil
}

func (c *console) action(ctx context.Context, text string) {
	e := newEntry(text, c.cwd)
	ai, err := parseAI(text)
	if err != nil {
		fmt.Fprintf(c.tty, "error: %v\r\n\r\n", err)
		return
	}

	path := ai.file
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.cwd, path)
	}
	code, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(c.tty, "error: %v\r\n\r\n", err)
		return
	}

	req := &synccit.ActionRequest{Code: string(code), Language: languageFor(path), UserInput: ai.input}
	fmt.Fprintf(c.tty, "\x1b[90m%s on %s...\x1b[0m\r\n", ai.action, filepath.Base(path))
	resp, err := c.dispatcher.Dispatch(ctx, ai.action, req)
	e.setAction(ai.action.String(), path, req, resp)
	if err != nil {
		fmt.Fprintf(c.tty, "\x1b[31merror: %v\x1b[0m\r\n\r\n", err)
		e.setError(err)
		c.write(e)
		return
	}

	fmt.Fprintf(c.tty, "%s\r\n", crlf(resp.Result))
	if m := resp.Metrics; m != nil {
		fmt.Fprintf(c.tty, "efficiency: %d  scalability: %d\r\n", m.Efficiency, m.Scalability)
	}
	fmt.Fprintf(c.tty, "\r\n")
	c.write(e)
}

func (c *console) write(e entry) {
	if err := writeEntry(c.out, e); err != nil {
		fmt.Fprintf(c.tty, "error: write log: %v\r\n", err)
	}
}

func crlf(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\n", "\r\n")
}

var languages = map[string]string{
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".go":    "go",
	".java":  "java",
	".rb":    "ruby",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".cs":    "csharp",
	".php":   "php",
	".sh":    "bash",
	".kt":    "kotlin",
	".swift": "swift",
}

// languageFor guesses the source language from the file extension.
// Unknown extensions leave it empty so the prompt default applies.
func languageFor(path string) string {
	return languages[strings.ToLower(filepath.Ext(path))]
}
