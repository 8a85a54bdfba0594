package assist

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	synccit "github.com/synccit/synccit"
)

type stubText struct {
	reply  string
	err    error
	prompt string
	model  string
}

func (s *stubText) GenerateText(_ context.Context, model, prompt string) (string, error) {
	s.model = model
	s.prompt = prompt
	return s.reply, s.err
}

type stubScreener struct{ blocked string }

func (s stubScreener) Screen(command string) (string, bool) {
	if s.blocked != "" && strings.Contains(command, s.blocked) {
		return s.blocked, true
	}
	return "", false
}

func newTestTranslator(t *testing.T, gen *stubText, screener Screener) *Translator {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "g-test")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_MODEL", "")
	t.Setenv("GOOGLE_MODEL", "")
	tr := NewTranslator(synccit.DefaultConfig(), screener, nil)
	tr.newGenerator = func(context.Context, string) (textGenerator, error) { return gen, nil }
	return tr
}

func TestParseTranslation(t *testing.T) {
	got := ParseTranslation("Sure!\nCOMMAND: `ls -la`\nEXPLANATION: lists files\nSAFE: [YES]\n")
	want := synccit.Translation{Cmd: "ls -la", Desc: "lists files", Safe: "YES"}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	got = ParseTranslation("I cannot help with that.")
	if got != (synccit.Translation{}) {
		t.Errorf("expected empty translation, got %+v", got)
	}
}

func TestTranslate(t *testing.T) {
	gen := &stubText{reply: "COMMAND: du -sh *\nEXPLANATION: sizes of entries\nSAFE: YES"}
	tr := newTestTranslator(t, gen, nil)

	out, err := tr.Translate(context.Background(), &synccit.TranslateRequest{Prompt: "how big is everything here"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Cmd != "du -sh *" || out.Safe != "YES" {
		t.Errorf("unexpected translation %+v", out)
	}
	if !strings.Contains(gen.prompt, "User Intent: how big is everything here") {
		t.Errorf("intent missing from prompt: %q", gen.prompt)
	}
	if gen.model != "gemini-1.5-flash" {
		t.Errorf("unexpected model %q", gen.model)
	}
}

func TestTranslateForcesUnsafeWhenBlocked(t *testing.T) {
	gen := &stubText{reply: "COMMAND: sudo reboot\nEXPLANATION: restarts\nSAFE: YES"}
	tr := newTestTranslator(t, gen, stubScreener{blocked: "sudo "})

	out, err := tr.Translate(context.Background(), &synccit.TranslateRequest{Prompt: "restart the box"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Safe != "NO" {
		t.Errorf("expected SAFE NO for a denylisted command, got %q", out.Safe)
	}
}

func TestTranslateErrors(t *testing.T) {
	gen := &stubText{err: errors.New("quota")}
	tr := newTestTranslator(t, gen, nil)

	_, err := tr.Translate(context.Background(), &synccit.TranslateRequest{Prompt: "  "})
	var ae *Error
	if !errors.As(err, &ae) || ae.HTTPStatus() != http.StatusBadRequest {
		t.Errorf("expected 400 for empty prompt, got %v", err)
	}

	_, err = tr.Translate(context.Background(), &synccit.TranslateRequest{Prompt: "list"})
	if !errors.As(err, &ae) || ae.Kind != KindInternal {
		t.Errorf("expected internal error, got %v", err)
	}

	t.Setenv("GEMINI_API_KEY", "")
	_, err = tr.Translate(context.Background(), &synccit.TranslateRequest{Prompt: "list"})
	if !errors.As(err, &ae) || ae.HTTPStatus() != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a key, got %v", err)
	}
}
