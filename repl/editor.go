package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/term"
)

// historyMax bounds the in-memory history.
const historyMax = 500

// ErrInterrupt is returned when the user presses Ctrl-C.
var ErrInterrupt = errors.New("interrupted")

// Editor is a minimal line editor with cursor movement and history.
// It reads from /dev/tty so it works even when stdout is redirected.
type Editor struct {
	tty      *os.File
	oldState *term.State
	in       io.Reader
	out      io.Writer

	buf []byte
	pos int // cursor byte offset into buf

	history []string
	histIdx int
	draft   string
}

// NewEditor opens /dev/tty and switches to raw mode.
func NewEditor() (*Editor, error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/tty: %w", err)
	}

	old, err := term.MakeRaw(int(tty.Fd()))
	if err != nil {
		tty.Close()
		return nil, fmt.Errorf("raw mode: %w", err)
	}

	e := newEditor(tty, tty)
	e.tty, e.oldState = tty, old
	return e, nil
}

func newEditor(in io.Reader, out io.Writer) *Editor {
	return &Editor{in: in, out: out}
}

// Close restores terminal state and closes the tty fd.
func (e *Editor) Close() {
	if e.tty == nil {
		return
	}
	term.Restore(int(e.tty.Fd()), e.oldState)
	e.tty.Close()
}

// Tty returns the writer for prompts and UI.
func (e *Editor) Tty() io.Writer {
	return e.out
}

// History returns the accepted lines, oldest first.
func (e *Editor) History() []string {
	return e.history
}

func (e *Editor) readByte() (byte, error) {
	var b [1]byte
	for {
		n, err := e.in.Read(b[:])
		if n == 1 {
			return b[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}

// ReadLine displays the prompt and reads one line.
// Returns io.EOF when the user presses Ctrl-D on empty input.
func (e *Editor) ReadLine(prompt string) (string, error) {
	e.buf = e.buf[:0]
	e.pos = 0
	e.histIdx = len(e.history)
	e.draft = ""
	e.redraw(prompt)

	for {
		b, err := e.readByte()
		if err != nil {
			return "", err
		}

		switch b {
		case 3: // Ctrl-C
			fmt.Fprintf(e.out, "\r\n")
			return "", ErrInterrupt

		case 4: // Ctrl-D
			if len(e.buf) == 0 {
				fmt.Fprintf(e.out, "\r\n")
				return "", io.EOF
			}

		case 13, 10: // Enter
			fmt.Fprintf(e.out, "\r\n")
			line := string(e.buf)
			e.remember(line)
			return line, nil

		case 127, 8: // Backspace / Ctrl-H
			if e.pos > 0 {
				_, size := prevRune(e.buf, e.pos)
				copy(e.buf[e.pos-size:], e.buf[e.pos:])
				e.buf = e.buf[:len(e.buf)-size]
				e.pos -= size
			}

		case 1: // Ctrl-A (Home)
			e.pos = 0

		case 5: // Ctrl-E (End)
			e.pos = len(e.buf)

		case 21: // Ctrl-U (clear line)
			e.buf = e.buf[:0]
			e.pos = 0

		case 16: // Ctrl-P
			e.historyPrev()

		case 14: // Ctrl-N
			e.historyNext()

		case 27: // Escape sequence
			e.escape()

		default: // Printable character
			if b >= 32 {
				ch := []byte{b}
				for extra := utf8RuneLen(b) - 1; extra > 0; extra-- {
					c, err := e.readByte()
					if err != nil {
						return "", err
					}
					ch = append(ch, c)
				}
				e.insert(ch)
			}
		}

		e.redraw(prompt)
	}
}

func (e *Editor) escape() {
	c, err := e.readByte()
	if err != nil || c != '[' {
		return
	}
	c, err = e.readByte()
	if err != nil {
		return
	}
	switch c {
	case 'A': // Up
		e.historyPrev()
	case 'B': // Down
		e.historyNext()
	case 'D': // Left
		if e.pos > 0 {
			_, size := prevRune(e.buf, e.pos)
			e.pos -= size
		}
	case 'C': // Right
		if e.pos < len(e.buf) {
			_, size := utf8.DecodeRune(e.buf[e.pos:])
			e.pos += size
		}
	case 'H': // Home
		e.pos = 0
	case 'F': // End
		e.pos = len(e.buf)
	case '3': // Delete key: \x1b[3~
		e.readByte() // consume '~'
		if e.pos < len(e.buf) {
			_, size := utf8.DecodeRune(e.buf[e.pos:])
			copy(e.buf[e.pos:], e.buf[e.pos+size:])
			e.buf = e.buf[:len(e.buf)-size]
		}
	case '1': // Home: \x1b[1~
		e.readByte()
		e.pos = 0
	case '4': // End: \x1b[4~
		e.readByte()
		e.pos = len(e.buf)
	}
}

func (e *Editor) insert(ch []byte) {
	e.buf = append(e.buf, make([]byte, len(ch))...)
	copy(e.buf[e.pos+len(ch):], e.buf[e.pos:len(e.buf)-len(ch)])
	copy(e.buf[e.pos:], ch)
	e.pos += len(ch)
}

// remember appends a non-empty line unless it repeats the previous entry.
func (e *Editor) remember(line string) {
	if line == "" {
		return
	}
	if n := len(e.history); n > 0 && e.history[n-1] == line {
		return
	}
	e.history = append(e.history, line)
	if len(e.history) > historyMax {
		e.history = e.history[len(e.history)-historyMax:]
	}
}

func (e *Editor) historyPrev() {
	if e.histIdx == 0 {
		return
	}
	if e.histIdx == len(e.history) {
		e.draft = string(e.buf)
	}
	e.histIdx--
	e.setLine(e.history[e.histIdx])
}

func (e *Editor) historyNext() {
	if e.histIdx >= len(e.history) {
		return
	}
	e.histIdx++
	if e.histIdx == len(e.history) {
		e.setLine(e.draft)
		return
	}
	e.setLine(e.history[e.histIdx])
}

func (e *Editor) setLine(s string) {
	e.buf = append(e.buf[:0], s...)
	e.pos = len(e.buf)
}

// redraw clears the current line and redraws prompt + buffer with cursor.
func (e *Editor) redraw(prompt string) {
	// \r = carriage return, \x1b[K = clear to end of line
	fmt.Fprintf(e.out, "\r\x1b[K%s%s", prompt, string(e.buf))

	// Move cursor back to the correct position
	if tail := utf8.RuneCount(e.buf[e.pos:]); tail > 0 {
		fmt.Fprintf(e.out, "\x1b[%dD", tail)
	}
}

// prevRune returns the rune and byte size of the rune before pos.
func prevRune(buf []byte, pos int) (rune, int) {
	if pos <= 0 {
		return 0, 0
	}
	i := pos - 1
	for i > 0 && !utf8.RuneStart(buf[i]) {
		i--
	}
	return utf8.DecodeRune(buf[i:pos])
}

// utf8RuneLen returns the expected byte length of a UTF-8 sequence
// from its leading byte.
func utf8RuneLen(lead byte) int {
	switch {
	case lead < 0xC0:
		return 1
	case lead < 0xE0:
		return 2
	case lead < 0xF0:
		return 3
	default:
		return 4
	}
}
