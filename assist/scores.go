package assist

import (
	"strings"

	synccit "github.com/synccit/synccit"
)

const (
	efficiencyLabel  = "EFFICIENCY_SCORE:"
	scalabilityLabel = "SCALABILITY_SCORE:"

	defaultScore = 50
)

// ParseScores scans a reduce-complexity reply for the two score lines.
// Missing or unparseable values fall back to 50; a later line overrides an
// earlier one. Values are clamped to [0, 100].
func ParseScores(reply string) synccit.Metrics {
	m := synccit.Metrics{Efficiency: defaultScore, Scalability: defaultScore}
	for _, line := range strings.Split(reply, "\n") {
		if n, ok := scoreAfter(line, efficiencyLabel); ok {
			m.Efficiency = n
		}
		if n, ok := scoreAfter(line, scalabilityLabel); ok {
			m.Scalability = n
		}
	}
	return m
}

// scoreAfter parses the integer that follows label on line.
func scoreAfter(line, label string) (int, bool) {
	idx := strings.Index(line, label)
	if idx < 0 {
		return 0, false
	}
	n, ok := leadingInt(line[idx+len(label):])
	if !ok {
		return 0, false
	}
	return clampScore(n), true
}

// leadingInt parses an optionally signed run of digits after leading
// whitespace and ignores whatever follows ("85/100" is 85).
func leadingInt(s string) (int, bool) {
	s = strings.TrimLeft(s, " \t\r")
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n, digits := 0, 0
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		if n < 1_000_000 {
			n = n*10 + int(s[digits]-'0')
		}
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
