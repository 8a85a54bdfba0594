package terminal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	synccit "github.com/synccit/synccit"
)

const (
	defaultCwd       = "/tmp"
	defaultTimeout   = 10 * time.Second
	defaultMaxOutput = 512 << 10
	defaultShell     = "/bin/sh"

	// waitDelay bounds how long Wait blocks on open pipes after a kill.
	waitDelay = 2 * time.Second
)

// Outcome classifies how a command request was handled.
type Outcome string

const (
	OutcomeEmpty   Outcome = "empty"
	OutcomeBlocked Outcome = "blocked"
	OutcomeChdir   Outcome = "chdir"
	OutcomeOK      Outcome = "ok"
	OutcomeFailed  Outcome = "failed"
	OutcomeTimeout Outcome = "timeout"
)

// Result is the response for the caller plus what the gate observed.
type Result struct {
	Response  synccit.CommandResponse
	Outcome   Outcome
	ExitCode  int
	Truncated bool
	Duration  time.Duration
}

// Gate filters and executes shell commands. It holds no per-request state;
// one Gate serves any number of concurrent requests.
type Gate struct {
	defaultCwd string
	timeout    time.Duration
	maxOutput  int64
	shell      string
	deny       denylist
	allow      *allowlist
	logger     *zap.Logger
}

// New builds a gate from terminal settings. Zero values take the defaults.
// It fails only when an allowlist pattern does not compile.
func New(cfg synccit.TerminalConfig, logger *zap.Logger) (*Gate, error) {
	allow, err := newAllowlist(cfg.Allow)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gate{
		defaultCwd: cfg.DefaultCwd,
		timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		maxOutput:  int64(cfg.MaxOutputBytes),
		shell:      cfg.Shell,
		deny:       newDenylist(cfg.ExtraDeny),
		allow:      allow,
		logger:     logger,
	}
	if g.defaultCwd == "" {
		g.defaultCwd = defaultCwd
	}
	if g.timeout <= 0 {
		g.timeout = defaultTimeout
	}
	if g.maxOutput <= 0 {
		g.maxOutput = defaultMaxOutput
	}
	if g.shell == "" {
		g.shell = defaultShell
	}
	return g, nil
}

// DefaultCwd is the directory used when a request names none.
func (g *Gate) DefaultCwd() string { return g.defaultCwd }

// Screen reports whether command would be refused, and why: the matched
// denylist pattern, or the program name the allowlist does not admit.
func (g *Gate) Screen(command string) (string, bool) {
	subject, _, blocked := g.screen(strings.TrimSpace(command))
	return subject, blocked
}

func (g *Gate) screen(command string) (subject string, byAllow, blocked bool) {
	if p, ok := g.deny.match(command); ok {
		return p, false, true
	}
	if name, ok := g.allow.reject(command); ok {
		return name, true, true
	}
	return "", false, false
}

// Run handles one command request. Rejections, timeouts and non-zero exits
// are reported in the response; the error is reserved for faults such as
// being unable to start the shell.
func (g *Gate) Run(ctx context.Context, req *synccit.CommandRequest) (*Result, error) {
	start := time.Now()
	cwd := req.Cwd
	if cwd == "" {
		cwd = g.defaultCwd
	}
	command := strings.TrimSpace(req.Command)

	res := &Result{Response: synccit.CommandResponse{NewCwd: cwd}}
	defer func() { res.Duration = time.Since(start) }()

	if command == "" {
		res.Outcome = OutcomeEmpty
		return res, nil
	}

	if subject, byAllow, blocked := g.screen(command); blocked {
		msg := fmt.Sprintf("⛔ Blocked: %q", subject)
		if byAllow {
			msg += " is not in the allowlist"
		}
		g.logger.Warn("command blocked", zap.String("command", RedactCommand(command)), zap.String("match", subject))
		res.Outcome = OutcomeBlocked
		res.Response.Error = msg
		return res, nil
	}

	if target, ok := parseCd(command); ok {
		res.Outcome = OutcomeChdir
		res.Response.NewCwd = resolveDir(cwd, target, g.defaultCwd)
		return res, nil
	}

	if fi, err := os.Stat(cwd); err != nil || !fi.IsDir() {
		res.Outcome = OutcomeFailed
		res.ExitCode = -1
		res.Response.Error = fmt.Sprintf("cwd %s is not a directory", cwd)
		return res, nil
	}

	if err := g.execute(ctx, command, cwd, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (g *Gate) execute(ctx context.Context, command, cwd string, res *Result) error {
	// Only the timeout stops a command; a departed caller does not.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	// Reaching the output cap kills the command too.
	limitCtx, stopAtLimit := context.WithCancel(ctx)
	defer stopAtLimit()

	cmd := exec.CommandContext(limitCtx, g.shell, "-c", command)
	cmd.Dir = cwd
	cmd.Env = append(os.Environ(), "TERM=xterm", "FORCE_COLOR=0", "NO_COLOR=1")
	cmd.WaitDelay = waitDelay
	isolate(cmd)

	stdout := newCaptureWriter(g.maxOutput, stopAtLimit)
	stderr := newCaptureWriter(g.maxOutput, stopAtLimit)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", g.shell, err)
	}
	waitErr := cmd.Wait()

	res.Response.Output = stdout.String()
	res.Response.Error = stderr.String()
	res.Truncated = stdout.truncated || stderr.truncated
	res.ExitCode = cmd.ProcessState.ExitCode()

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Outcome = OutcomeTimeout
		res.Response.Error = appendLine(res.Response.Error, fmt.Sprintf("Command timed out after %s", g.timeout))
	case res.Truncated:
		res.Outcome = OutcomeFailed
		res.Response.Error = appendLine(res.Response.Error, fmt.Sprintf("Command stopped: output exceeded %d bytes", g.maxOutput))
	case waitErr != nil:
		res.Outcome = OutcomeFailed
		if res.Response.Error == "" {
			res.Response.Error = fmt.Sprintf("Command failed: %s (%v)", command, waitErr)
		}
	default:
		res.Outcome = OutcomeOK
	}
	if res.Truncated {
		res.Response.Error = appendLine(res.Response.Error, fmt.Sprintf("output truncated to %d bytes", g.maxOutput))
	}

	g.logger.Info("command finished",
		zap.String("command", RedactCommand(command)),
		zap.String("cwd", cwd),
		zap.String("outcome", string(res.Outcome)),
		zap.Int("exit_code", res.ExitCode),
	)
	return nil
}

func appendLine(s, line string) string {
	if s == "" {
		return line
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s + line
}
