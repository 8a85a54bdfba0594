// Package assist turns editor requests into prompts for a hosted language
// model and relays them to an OpenRouter-compatible chat completions API.
package assist

import (
	"fmt"
	"strings"
)

// Action selects one prompt template. The set of actions is closed: the only
// values are the exported variables below, and ParseAction is the single
// place where an identifier from the outside world is validated.
type Action struct {
	name string
	// scored actions end their reply with EFFICIENCY_SCORE / SCALABILITY_SCORE lines.
	scored bool
}

var (
	QuickTest        = Action{name: "quick-test"}
	GenerateTests    = Action{name: "generate-tests"}
	CodeExplain      = Action{name: "code-explain"}
	Simulate         = Action{name: "simulate"}
	ReduceComplexity = Action{name: "reduce-complexity", scored: true}
	Redesign         = Action{name: "redesign"}
)

var allActions = []Action{QuickTest, GenerateTests, CodeExplain, Simulate, ReduceComplexity, Redesign}

// Actions returns every action in display order.
func Actions() []Action {
	out := make([]Action, len(allActions))
	copy(out, allActions)
	return out
}

// ActionNames returns the identifiers of every action in display order.
func ActionNames() []string {
	names := make([]string, len(allActions))
	for i, a := range allActions {
		names[i] = a.name
	}
	return names
}

// ParseAction resolves an action identifier. Unknown identifiers yield a
// KindClient error naming the valid set.
func ParseAction(name string) (Action, error) {
	for _, a := range allActions {
		if a.name == name {
			return a, nil
		}
	}
	return Action{}, &Error{
		Kind:    KindClient,
		Message: fmt.Sprintf("Unknown action %q. Valid: %s", name, strings.Join(ActionNames(), ", ")),
	}
}

// String returns the action identifier.
func (a Action) String() string { return a.name }

// Scored reports whether replies to this action carry score lines.
func (a Action) Scored() bool { return a.scored }

// valid reports whether a is one of the declared actions rather than the zero value.
func (a Action) valid() bool { return a.name != "" }
