package terminal

import (
	"strings"
	"testing"

	synccit "github.com/synccit/synccit"
)

func TestParseCd(t *testing.T) {
	tests := []struct {
		command string
		arg     string
		ok      bool
	}{
		{"cd", "", true},
		{"cd ..", "..", true},
		{"cd 'a b'", "a b", true},
		{"cd a b", "a b", true},
		{"cdx", "", false},
		{"cd a && ls", "", false},
		{"cd a; ls", "", false},
		{"cd a > out", "", false},
		{"FOO=1 cd a", "", false},
		{"echo cd", "", false},
		{"cd $(pwd)", "$(pwd)", true},
		// unbalanced quote: falls back to the regex
		{`cd "unterminated`, `"unterminated`, true},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			arg, ok := parseCd(tt.command)
			if ok != tt.ok || arg != tt.arg {
				t.Errorf("parseCd(%q) = (%q, %v), want (%q, %v)", tt.command, arg, ok, tt.arg, tt.ok)
			}
		})
	}
}

func TestParseCdExpandsPlainParam(t *testing.T) {
	t.Setenv("SYNCCIT_TEST_DIR", "/srv/data")
	arg, ok := parseCd("cd $SYNCCIT_TEST_DIR/sub")
	if !ok || arg != "/srv/data/sub" {
		t.Errorf("got (%q, %v)", arg, ok)
	}
}

func TestResolveDir(t *testing.T) {
	tests := []struct {
		cwd, target, want string
	}{
		{"/tmp/work", "../project", "/tmp/project"},
		{"/tmp/work", "", "/tmp"},
		{"/tmp/work", "/etc/", "/etc/"},
		{"/tmp/work", "/tmp/../etc", "/tmp/../etc"},
		{"/a", "b/../c", "/a/c"},
	}
	for _, tt := range tests {
		if got := resolveDir(tt.cwd, tt.target, "/tmp"); got != tt.want {
			t.Errorf("resolveDir(%q, %q) = %q, want %q", tt.cwd, tt.target, got, tt.want)
		}
	}
}

func TestAllowlist(t *testing.T) {
	g := newTestGate(t, synccit.TerminalConfig{Allow: []string{"ls", "echo", "git", "go*"}})
	tests := []struct {
		command string
		blocked bool
		subject string
	}{
		{"ls -la", false, ""},
		{"git status && go test ./...", false, ""},
		{"echo hi | grep h", true, "grep"},
		{"curl example.com", true, "curl"},
		{"$(echo rm) -f x", true, "$(echo rm)"},
		{"ls; python3 x.py", true, "python3"},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			subject, blocked := g.Screen(tt.command)
			if blocked != tt.blocked || subject != tt.subject {
				t.Errorf("Screen(%q) = (%q, %v), want (%q, %v)", tt.command, subject, blocked, tt.subject, tt.blocked)
			}
		})
	}
}

func TestAllowlistBlockMessage(t *testing.T) {
	g := newTestGate(t, synccit.TerminalConfig{Allow: []string{"ls"}})
	res := run(t, g, "whoami", "/tmp")
	if res.Outcome != OutcomeBlocked {
		t.Fatalf("expected blocked, got %s", res.Outcome)
	}
	if !strings.Contains(res.Response.Error, `"whoami" is not in the allowlist`) {
		t.Errorf("unexpected error %q", res.Response.Error)
	}
}

func TestAllowlistBadPattern(t *testing.T) {
	if _, err := New(synccit.TerminalConfig{Allow: []string{"[unclosed"}}, nil); err == nil {
		t.Error("expected compile error")
	}
	if err := CompileAllow([]string{"ls", "git*"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDenylistBeforeAllowlist(t *testing.T) {
	g := newTestGate(t, synccit.TerminalConfig{Allow: []string{"*"}})
	subject, blocked := g.Screen("sudo ls")
	if !blocked || subject != "sudo " {
		t.Errorf("got (%q, %v)", subject, blocked)
	}
}

func TestRedactCommand(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple var", "echo $SECRET", "echo $REDACTED"},
		{"braced var", "echo ${SECRET}", "echo ${REDACTED}"},
		{"public var", "cd $HOME", "cd $HOME"},
		{"special param", "echo $?", "echo $?"},
		{"assignment", "API_KEY=abc123 ./deploy", "API_KEY=*** ./deploy"},
		{"export", "export TOKEN=abc", "export TOKEN=***"},
		{"public assignment", "PATH=/usr/bin make", "PATH=/usr/bin make"},
		{"flag with equals", "login --password=hunter2", "login --password=***"},
		{"flag with separate value", "login --token abc def", "login --token *** def"},
		{"auth header", `curl -H "Authorization: Bearer abc" https://x`, `curl -H 'Authorization: ***' https://x`},
		{"other header", `curl -H "Accept: text/plain" https://x`, `curl -H "Accept: text/plain" https://x`},
		{"plain", "ls -la", "ls -la"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedactCommand(tt.input); got != tt.want {
				t.Errorf("RedactCommand(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRedactCommandFallback(t *testing.T) {
	got := RedactCommand(`echo "$SECRET --token abc`)
	if strings.Contains(got, "SECRET") || strings.Contains(got, "abc") {
		t.Errorf("fallback left secrets in %q", got)
	}
}
