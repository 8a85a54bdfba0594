package terminal

import (
	"bytes"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

const redacted = "***"

// publicVars are expanded names that are safe to keep in logs.
var publicVars = map[string]bool{
	"HOME": true, "USER": true, "PWD": true, "OLDPWD": true,
	"SHELL": true, "PATH": true, "LANG": true, "TERM": true,
	"TMPDIR": true, "HOSTNAME": true, "LOGNAME": true,
	"COLUMNS": true, "LINES": true, "NO_COLOR": true, "FORCE_COLOR": true,
}

// secretFlags take a credential either as --flag=value or as the next word.
var secretFlags = map[string]bool{
	"--password": true, "--passwd": true, "--token": true,
	"--api-key": true, "--apikey": true, "--secret": true,
	"--client-secret": true, "--access-key": true, "--auth": true,
}

// RedactCommand masks the parts of a command line that tend to carry
// credentials before it is written to a log: variable references other than
// well-known public ones, assignment values, secret-bearing flags and HTTP
// authorization headers. It never affects what is executed.
func RedactCommand(cmd string) string {
	prog, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(cmd), "")
	if err != nil {
		return regexRedact(cmd)
	}

	syntax.Walk(prog, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.ParamExp:
			if n.Param != nil && !publicVars[n.Param.Value] && !isSpecialParam(n.Param.Value) {
				n.Param.Value = "REDACTED"
			}
		case *syntax.Assign:
			if n.Name != nil && !publicVars[n.Name.Value] && n.Value != nil {
				n.Value.Parts = []syntax.WordPart{&syntax.Lit{Value: redacted}}
			}
		case *syntax.CallExpr:
			redactArgs(n.Args)
		}
		return true
	})

	var buf bytes.Buffer
	if err := syntax.NewPrinter(syntax.Indent(0)).Print(&buf, prog); err != nil {
		return regexRedact(cmd)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func redactArgs(args []*syntax.Word) {
	for i := 1; i < len(args); i++ {
		lit := args[i].Lit()
		switch {
		case secretFlags[lit] && i+1 < len(args):
			args[i+1].Parts = []syntax.WordPart{&syntax.Lit{Value: redacted}}
			i++
		case strings.Contains(lit, "="):
			if name, _, _ := strings.Cut(lit, "="); secretFlags[name] {
				args[i].Parts = []syntax.WordPart{&syntax.Lit{Value: name + "=" + redacted}}
			}
		case (lit == "-H" || lit == "--header") && i+1 < len(args):
			if isAuthHeader(wordValue(args[i+1])) {
				args[i+1].Parts = []syntax.WordPart{&syntax.SglQuoted{Value: "Authorization: " + redacted}}
				i++
			}
		}
	}
}

func isAuthHeader(h string) bool {
	name, _, ok := strings.Cut(h, ":")
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "authorization", "proxy-authorization", "x-api-key":
		return true
	}
	return false
}

func isSpecialParam(name string) bool {
	if len(name) != 1 {
		return false
	}
	return strings.ContainsAny(name, "?!#@*-$_0123456789")
}

var (
	reBraceVar  = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	reSimpleVar = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	reAssign    = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)=(\S+)`)
	reFlag      = regexp.MustCompile(`(--[a-z-]+)(=|\s+)(\S+)`)
)

// regexRedact handles command lines the shell parser rejects.
func regexRedact(cmd string) string {
	cmd = reFlag.ReplaceAllStringFunc(cmd, func(m string) string {
		parts := reFlag.FindStringSubmatch(m)
		if !secretFlags[parts[1]] {
			return m
		}
		return parts[1] + parts[2] + redacted
	})
	cmd = reBraceVar.ReplaceAllStringFunc(cmd, func(m string) string {
		if publicVars[reBraceVar.FindStringSubmatch(m)[1]] {
			return m
		}
		return "${REDACTED}"
	})
	cmd = reSimpleVar.ReplaceAllStringFunc(cmd, func(m string) string {
		name := reSimpleVar.FindStringSubmatch(m)[1]
		if name == "REDACTED" || publicVars[name] {
			return m
		}
		return "$REDACTED"
	})
	cmd = reAssign.ReplaceAllStringFunc(cmd, func(m string) string {
		name := reAssign.FindStringSubmatch(m)[1]
		if publicVars[name] {
			return m
		}
		return name + "=" + redacted
	})
	return cmd
}
