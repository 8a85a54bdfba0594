package assist

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"text/template"

	"go.uber.org/zap"
	"google.golang.org/genai"

	synccit "github.com/synccit/synccit"
	defaults "github.com/synccit/synccit/default"
)

var translateTemplate = template.Must(template.New("translate").Parse(defaults.TranslatePrompt))

// Screener reports whether a command would be refused by the command gate.
type Screener interface {
	Screen(command string) (pattern string, blocked bool)
}

// textGenerator produces a single free-form reply for a prompt.
type textGenerator interface {
	GenerateText(ctx context.Context, model, prompt string) (string, error)
}

// genaiGenerator calls the Gemini API through google.golang.org/genai.
type genaiGenerator struct {
	client *genai.Client
}

func newGenaiGenerator(ctx context.Context, apiKey string) (*genaiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &genaiGenerator{client: client}, nil
}

func (g *genaiGenerator) GenerateText(ctx context.Context, model, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	return resp.Text(), nil
}

// Translator turns a natural-language intent into a single shell command.
type Translator struct {
	cfg      *synccit.Config
	screener Screener
	logger   *zap.Logger

	// newGenerator is replaced in tests.
	newGenerator func(ctx context.Context, apiKey string) (textGenerator, error)
}

// NewTranslator creates a translator. screener may be nil.
func NewTranslator(cfg *synccit.Config, screener Screener, logger *zap.Logger) *Translator {
	if cfg == nil {
		cfg = synccit.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Translator{
		cfg:      cfg,
		screener: screener,
		logger:   logger,
		newGenerator: func(ctx context.Context, apiKey string) (textGenerator, error) {
			return newGenaiGenerator(ctx, apiKey)
		},
	}
}

// Translate asks the model for a command. A suggestion the gate would refuse
// is always marked unsafe regardless of what the model claimed.
func (t *Translator) Translate(ctx context.Context, req *synccit.TranslateRequest) (*synccit.Translation, error) {
	intent := strings.TrimSpace(req.Prompt)
	if intent == "" {
		return nil, &Error{Kind: KindClient, Message: "prompt is required"}
	}

	apiKey := synccit.ResolveAgentAPIKey(t.cfg)
	if apiKey == "" {
		return nil, &Error{Kind: KindConfig, Message: "Gemini API Key not configured"}
	}

	var prompt strings.Builder
	if err := translateTemplate.Execute(&prompt, struct{ Intent, OS string }{intent, runtime.GOOS}); err != nil {
		return nil, internalError(err)
	}

	gen, err := t.newGenerator(ctx, apiKey)
	if err != nil {
		return nil, internalError(err)
	}
	text, err := gen.GenerateText(ctx, synccit.ResolveAgentModel(t.cfg), prompt.String())
	if err != nil {
		t.logger.Warn("translate failed", zap.Error(err))
		return nil, internalError(err)
	}

	tr := ParseTranslation(text)
	if tr.Cmd != "" && t.screener != nil {
		if pattern, blocked := t.screener.Screen(tr.Cmd); blocked {
			t.logger.Info("translated command is denylisted", zap.String("pattern", pattern))
			tr.Safe = "NO"
		}
	}
	return &tr, nil
}

// ParseTranslation extracts the COMMAND, EXPLANATION and SAFE lines from a
// model reply. Missing lines leave the corresponding field empty.
func ParseTranslation(text string) synccit.Translation {
	var tr synccit.Translation
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "COMMAND:"):
			tr.Cmd = stripFence(strings.TrimSpace(strings.TrimPrefix(line, "COMMAND:")))
		case strings.HasPrefix(line, "EXPLANATION:"):
			tr.Desc = strings.TrimSpace(strings.TrimPrefix(line, "EXPLANATION:"))
		case strings.HasPrefix(line, "SAFE:"):
			tr.Safe = normalizeSafe(strings.TrimPrefix(line, "SAFE:"))
		}
	}
	return tr
}

// stripFence removes inline code backticks models like to add.
func stripFence(s string) string {
	return strings.TrimSpace(strings.Trim(s, "`"))
}

func normalizeSafe(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.Trim(s, "[]")
	switch {
	case strings.HasPrefix(s, "YES"):
		return "YES"
	case strings.HasPrefix(s, "NO"):
		return "NO"
	default:
		return s
	}
}
