// Package terminal runs operator-supplied shell commands behind a fixed
// safety filter and hands the working directory back to the caller.
package terminal

import "strings"

// Denylist is the baseline set of substrings that reject a command outright.
// Matching is case-insensitive and purely textual.
var Denylist = []string{
	"rm -rf /",
	"sudo ",
	"shutdown",
	"reboot",
	"mkfs ",
	"dd if=",
	":(){:|:&};:",
	"chmod 777 /",
	"> /dev/sd",
}

// denylist holds lower-cased patterns in match order.
type denylist []string

func newDenylist(extra []string) denylist {
	d := make(denylist, 0, len(Denylist)+len(extra))
	for _, p := range Denylist {
		d = append(d, strings.ToLower(p))
	}
	for _, p := range extra {
		if p = strings.ToLower(p); strings.TrimSpace(p) != "" {
			d = append(d, p)
		}
	}
	return d
}

// match returns the first pattern contained in command.
func (d denylist) match(command string) (string, bool) {
	lower := strings.ToLower(command)
	for _, p := range d {
		if strings.Contains(lower, p) {
			return p, true
		}
	}
	return "", false
}
