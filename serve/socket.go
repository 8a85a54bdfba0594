package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"
	"unicode/utf8"

	"github.com/creack/pty"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	synccit "github.com/synccit/synccit"
)

const (
	defaultRows = 24
	defaultCols = 80
	// maxFrameBytes caps a single client frame on either socket.
	maxFrameBytes = 1 << 20
)

func errorFrame(err error) []byte {
	return []byte(fmt.Sprintf("\r\n\x1b[31m[ERROR] %v\x1b[0m\r\n", err))
}

// loginShell is the shell started for interactive sessions.
func (s *Server) loginShell() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	if _, err := os.Stat("/bin/bash"); err == nil {
		return "/bin/bash"
	}
	if s.cfg.Terminal.Shell != "" {
		return s.cfg.Terminal.Shell
	}
	return "/bin/sh"
}

func (s *Server) handleTerminalSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("terminal upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameBytes)
	// the server's write timeout would otherwise end long-lived sessions
	_ = conn.NetConn().SetDeadline(time.Time{})

	s.metrics.sockets.WithLabelValues("terminal").Inc()
	defer s.metrics.sockets.WithLabelValues("terminal").Dec()

	shell := s.loginShell()
	cmd := exec.Command(shell)
	if s.ws != nil {
		cmd.Dir = s.ws.Root()
	}
	cmd.Env = append(os.Environ(), "TERM=xterm-256color", "LANG=en_US.UTF-8")

	f, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: defaultRows, Cols: defaultCols})
	if err != nil {
		s.logger.Error("pty start failed", zap.String("shell", shell), zap.Error(err))
		_ = conn.WriteMessage(websocket.TextMessage, errorFrame(err))
		return
	}
	s.logger.Info("terminal session started", zap.String("shell", shell), zap.Int("pid", cmd.Process.Pid))

	banner := fmt.Sprintf("\r\n\x1b[32m[SynnccIT Terminal]\x1b[0m \x1b[90m%s · %s\x1b[0m\r\n", runtime.GOOS, filepath.Base(shell))
	_ = conn.WriteMessage(websocket.TextMessage, []byte(banner))

	// Only this goroutine writes to conn once the banner is out.
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer conn.Close()
		buf := make([]byte, 4096)
		var carry []byte
		for {
			n, err := f.Read(buf)
			if n > 0 {
				var out []byte
				out, carry = splitUTF8(append(carry, buf[:n]...))
				if len(out) > 0 {
					if werr := conn.WriteMessage(websocket.TextMessage, out); werr != nil {
						return
					}
				}
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var frame synccit.TerminalFrame
		if err := json.Unmarshal(msg, &frame); err != nil || frame.Type == "" {
			_, _ = f.Write(msg)
			continue
		}
		switch frame.Type {
		case "input":
			_, _ = f.Write([]byte(frame.Data))
		case "resize":
			rows, cols := frame.Rows, frame.Cols
			if rows <= 0 {
				rows = defaultRows
			}
			if cols <= 0 {
				cols = defaultCols
			}
			if err := pty.Setsize(f, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
				s.logger.Debug("pty resize failed", zap.Error(err))
			}
		}
	}

	_ = cmd.Process.Kill()
	_ = cmd.Wait()
	_ = f.Close()
	<-done
	s.logger.Info("terminal session closed", zap.Int("pid", cmd.Process.Pid))
}

// splitUTF8 returns the longest prefix of b that does not end inside a
// multi-byte sequence, and the remaining bytes. Invalid bytes are replaced.
func splitUTF8(b []byte) (out, rest []byte) {
	cut := len(b)
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				cut = i
			}
			break
		}
	}
	out = []byte(string([]rune(string(b[:cut]))))
	if cut < len(b) {
		rest = append([]byte(nil), b[cut:]...)
	}
	return out, rest
}

func (s *Server) handleFSSocket(w http.ResponseWriter, r *http.Request) {
	if s.watcher == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "file watcher not running")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("fs upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameBytes)
	// the server's write timeout would otherwise end long-lived sessions
	_ = conn.NetConn().SetDeadline(time.Time{})

	s.metrics.sockets.WithLabelValues("fs").Inc()
	defer s.metrics.sockets.WithLabelValues("fs").Dec()

	events, cancel := s.watcher.Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}
