package assist

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	synccit "github.com/synccit/synccit"
)

// EmptyReply is returned as the result when the model answers with nothing.
const EmptyReply = "Empty AI response."

// Dispatcher composes the prompt for an action, performs exactly one
// round-trip to the completion service and shapes the reply.
type Dispatcher struct {
	cfg    *synccit.Config
	client *http.Client
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher. Credentials and the model are resolved
// from cfg and the environment on every call.
func NewDispatcher(cfg *synccit.Config, client *http.Client, logger *zap.Logger) *Dispatcher {
	if cfg == nil {
		cfg = synccit.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{cfg: cfg, client: client, logger: logger}
}

// Dispatch runs action against req. Every failure is an *Error; nothing is retried.
func (d *Dispatcher) Dispatch(ctx context.Context, action Action, req *synccit.ActionRequest) (*synccit.ActionResponse, error) {
	apiKey := synccit.ResolveGenerationAPIKey(d.cfg)
	if apiKey == "" {
		return nil, &Error{
			Kind:    KindConfig,
			Message: "OPENROUTER_API_KEY not set. Add it to the server environment or to generation.api_key in the config file.",
		}
	}

	prompt, err := action.Render(NewPromptData(req))
	if err != nil {
		return nil, internalError(err)
	}

	gen := NewGenerator(GeneratorOptions{
		BaseURL:     synccit.ResolveGenerationBaseURL(d.cfg),
		APIKey:      apiKey,
		Model:       synccit.ResolveGenerationModel(d.cfg),
		MaxTokens:   d.cfg.Generation.MaxTokens,
		Temperature: d.cfg.Generation.Temperature,
		Referer:     d.cfg.Generation.Referer,
		Title:       d.cfg.Generation.Title,
		Client:      d.client,
	})

	d.logger.Debug("prompt",
		zap.String("action", action.String()),
		zap.String("system", prompt.System),
		zap.String("user", prompt.User),
	)

	// The model call outlives a disconnected caller; only the client timeout bounds it.
	start := time.Now()
	reply, err := gen.Generate(context.WithoutCancel(ctx), prompt)
	if err != nil {
		var ae *Error
		if errors.As(err, &ae) {
			d.logger.Warn("completion rejected",
				zap.String("action", action.String()),
				zap.Int("upstream_status", ae.UpstreamStatus),
			)
			return nil, ae
		}
		d.logger.Error("completion failed", zap.String("action", action.String()), zap.Error(err))
		return nil, internalError(err)
	}

	result := strings.TrimSpace(reply)
	if result == "" {
		result = EmptyReply
	}

	resp := &synccit.ActionResponse{Result: result}
	if action.Scored() {
		m := ParseScores(result)
		resp.Metrics = &m
	}

	d.logger.Info("action completed",
		zap.String("action", action.String()),
		zap.Duration("latency", time.Since(start)),
		zap.Int("reply_bytes", len(result)),
	)
	return resp, nil
}
