package terminal

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

var (
	// reCd is used when the command line does not parse as shell.
	reCd = regexp.MustCompile(`^cd(\s+(.*))?$`)
	// rePlainParam matches $NAME and ${NAME} with no operators.
	rePlainParam = regexp.MustCompile(`^\$(\{[A-Za-z_][A-Za-z0-9_]*\}|[A-Za-z_][A-Za-z0-9_]*)$`)
)

// parseCd reports whether command is a lone directory change and returns its
// raw argument. Only a single simple command whose program is literally cd
// qualifies: "cdx" and "cd a && ls" are ordinary commands.
func parseCd(command string) (arg string, ok bool) {
	f, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(command), "")
	if err != nil {
		m := reCd.FindStringSubmatch(command)
		if m == nil {
			return "", false
		}
		return strings.TrimSpace(m[2]), true
	}

	if len(f.Stmts) != 1 {
		return "", false
	}
	stmt := f.Stmts[0]
	if stmt.Background || stmt.Negated || len(stmt.Redirs) > 0 {
		return "", false
	}
	call, isCall := stmt.Cmd.(*syntax.CallExpr)
	if !isCall || len(call.Assigns) > 0 || len(call.Args) == 0 || call.Args[0].Lit() != "cd" {
		return "", false
	}

	parts := make([]string, 0, len(call.Args)-1)
	for _, w := range call.Args[1:] {
		parts = append(parts, wordValue(w))
	}
	return strings.Join(parts, " "), true
}

// wordValue returns the text of w with quoting removed. Parts that need
// expansion at run time are kept in their printed form.
func wordValue(w *syntax.Word) string {
	var sb strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(unescape(p.Value))
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, inner := range p.Parts {
				if lit, ok := inner.(*syntax.Lit); ok {
					sb.WriteString(lit.Value)
					continue
				}
				sb.WriteString(printNode(inner))
			}
		case *syntax.ParamExp:
			sb.WriteString(expandParam(p))
		default:
			sb.WriteString(printNode(part))
		}
	}
	return sb.String()
}

// expandParam resolves plain $NAME references from the server environment.
func expandParam(p *syntax.ParamExp) string {
	printed := printNode(p)
	if p.Param == nil || !rePlainParam.MatchString(printed) {
		return printed
	}
	if v, ok := os.LookupEnv(p.Param.Value); ok {
		return v
	}
	return printed
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func printNode(n syntax.Node) string {
	var sb strings.Builder
	if err := syntax.NewPrinter().Print(&sb, n); err != nil {
		return ""
	}
	return sb.String()
}

// resolveDir applies the directory-change rules: an empty target means
// fallback, "~" expands to the home directory, absolute targets are used as
// they are and relative ones are joined onto cwd.
func resolveDir(cwd, target, fallback string) string {
	if target == "" {
		return fallback
	}
	if target == "~" || strings.HasPrefix(target, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			target = home + target[1:]
		}
	}
	if filepath.IsAbs(target) {
		return target
	}
	return filepath.Join(cwd, target)
}
