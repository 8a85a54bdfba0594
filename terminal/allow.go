package terminal

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"mvdan.cc/sh/v3/syntax"
)

// allowlist restricts which programs may start a simple command. An empty
// allowlist permits everything.
type allowlist struct {
	patterns []string
	globs    []glob.Glob
}

func newAllowlist(patterns []string) (*allowlist, error) {
	a := &allowlist{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("allow pattern %q: %w", p, err)
		}
		a.patterns = append(a.patterns, p)
		a.globs = append(a.globs, g)
	}
	return a, nil
}

func (a *allowlist) active() bool { return a != nil && len(a.globs) > 0 }

// CompileAllow reports the first allowlist pattern that fails to compile.
func CompileAllow(patterns []string) error {
	_, err := newAllowlist(patterns)
	return err
}

// reject returns the first program name in command that no pattern admits.
// Commands that cannot be parsed, or whose program name is computed at run
// time, are rejected while the allowlist is active.
func (a *allowlist) reject(command string) (string, bool) {
	if !a.active() {
		return "", false
	}
	f, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(command), "")
	if err != nil {
		return command, true
	}

	var denied string
	syntax.Walk(f, func(node syntax.Node) bool {
		if denied != "" {
			return false
		}
		call, ok := node.(*syntax.CallExpr)
		if !ok || len(call.Args) == 0 {
			return true
		}
		name := call.Args[0].Lit()
		if name == "" || !a.admits(name) {
			denied = printWord(call.Args[0])
			return false
		}
		return true
	})
	return denied, denied != ""
}

func (a *allowlist) admits(name string) bool {
	for _, g := range a.globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func printWord(w *syntax.Word) string {
	var sb strings.Builder
	if err := syntax.NewPrinter().Print(&sb, w); err != nil {
		return "?"
	}
	return sb.String()
}
