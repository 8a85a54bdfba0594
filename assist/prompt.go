package assist

import (
	"fmt"
	"strings"
	"text/template"

	synccit "github.com/synccit/synccit"
	defaults "github.com/synccit/synccit/default"
)

const (
	scopeSelection = "(selected snippet)"
	scopeFullFile  = "(full file)"

	defaultLanguage = "python"
)

// Prompt is the two-part message sent to the model.
type Prompt struct {
	System string
	User   string
}

// PromptData holds the data passed to the prompt templates.
type PromptData struct {
	Language  string
	Scope     string
	Target    string
	UserInput string
}

var promptSets = loadPromptSets()

// loadPromptSets parses one template set per action from the embedded
// prompts/<action>.tmpl files. Each set defines "system" and "user".
func loadPromptSets() map[string]*template.Template {
	sets := make(map[string]*template.Template, len(allActions))
	for _, a := range allActions {
		sets[a.name] = template.Must(template.ParseFS(defaults.Prompts, "prompts/"+a.name+".tmpl"))
	}
	return sets
}

// NewPromptData applies the target-selection rule: a selection that is
// non-blank after trimming is the analysis target, otherwise the full file is.
func NewPromptData(req *synccit.ActionRequest) PromptData {
	data := PromptData{
		Language:  req.Language,
		Target:    req.Code,
		Scope:     scopeFullFile,
		UserInput: req.UserInput,
	}
	if data.Language == "" {
		data.Language = defaultLanguage
	}
	if sel := strings.TrimSpace(req.SelectedText); sel != "" {
		data.Target = sel
		data.Scope = scopeSelection
	}
	return data
}

// Render builds the system and user messages for the action.
func (a Action) Render(data PromptData) (Prompt, error) {
	t, ok := promptSets[a.name]
	if !a.valid() || !ok {
		return Prompt{}, fmt.Errorf("no prompt template for action %q", a.name)
	}

	var system, user strings.Builder
	if err := t.ExecuteTemplate(&system, "system", data); err != nil {
		return Prompt{}, fmt.Errorf("render %s system prompt: %w", a.name, err)
	}
	if err := t.ExecuteTemplate(&user, "user", data); err != nil {
		return Prompt{}, fmt.Errorf("render %s user prompt: %w", a.name, err)
	}
	return Prompt{System: system.String(), User: user.String()}, nil
}
