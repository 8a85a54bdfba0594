package synccit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	defaults "github.com/synccit/synccit/default"
)

// Config represents the server configuration.
type Config struct {
	Version    int              `json:"version"`
	Server     ServerConfig     `json:"server"`
	Generation GenerationConfig `json:"generation"`
	Terminal   TerminalConfig   `json:"terminal"`
	Workspace  WorkspaceConfig  `json:"workspace"`
	Agent      AgentConfig      `json:"agent"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr                string `json:"addr"`
	AIPath              string `json:"ai_path"`
	TerminalPath        string `json:"terminal_path"`
	ReadTimeoutSeconds  int    `json:"read_timeout_seconds,omitempty"`
	WriteTimeoutSeconds int    `json:"write_timeout_seconds,omitempty"`
}

// GenerationConfig holds settings for the completion API.
type GenerationConfig struct {
	BaseURL     string  `json:"base_url"`
	APIKey      string  `json:"api_key"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	Referer     string  `json:"referer,omitempty"`
	Title       string  `json:"title,omitempty"`
}

// TerminalConfig holds Command Gate settings.
type TerminalConfig struct {
	DefaultCwd     string   `json:"default_cwd"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty"`
	MaxOutputBytes int      `json:"max_output_bytes,omitempty"`
	ExtraDeny      []string `json:"extra_deny,omitempty"`
	Allow          []string `json:"allow,omitempty"`
	Shell          string   `json:"shell,omitempty"`
}

// WorkspaceConfig holds the file explorer root.
type WorkspaceConfig struct {
	Root string `json:"root"`
}

// AgentConfig holds settings for the command translation agent.
type AgentConfig struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

// ConfigDir returns the config directory path.
// Resolution order: $SYNCCIT_CONFIG_DIR > $XDG_CONFIG_HOME/synccit > ~/.config/synccit
func ConfigDir() string {
	if dir := os.Getenv("SYNCCIT_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "synccit")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "synccit-config")
	}
	return filepath.Join(home, ".config", "synccit")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// DefaultConfig returns the default configuration from the embedded default_config.json.
func DefaultConfig() *Config {
	var cfg Config
	if err := json.Unmarshal(defaults.DefaultConfigJSON, &cfg); err != nil {
		panic("synccit: invalid embedded default_config.json: " + err.Error())
	}
	return &cfg
}

// LoadConfig loads config from disk or returns defaults if not found.
func LoadConfig() (*Config, error) {
	return LoadConfigFile(ConfigPath())
}

// LoadConfigFile loads config from path, filling missing fields from defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(&cfg, DefaultConfig())
	return &cfg, nil
}

func applyDefaults(cfg, d *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = d.Server.Addr
	}
	if cfg.Server.AIPath == "" {
		cfg.Server.AIPath = d.Server.AIPath
	}
	if cfg.Server.TerminalPath == "" {
		cfg.Server.TerminalPath = d.Server.TerminalPath
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = d.Server.ReadTimeoutSeconds
	}
	if cfg.Server.WriteTimeoutSeconds == 0 {
		cfg.Server.WriteTimeoutSeconds = d.Server.WriteTimeoutSeconds
	}
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = d.Generation.BaseURL
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = d.Generation.Model
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = d.Generation.MaxTokens
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = d.Generation.Temperature
	}
	if cfg.Generation.Referer == "" {
		cfg.Generation.Referer = d.Generation.Referer
	}
	if cfg.Generation.Title == "" {
		cfg.Generation.Title = d.Generation.Title
	}
	if cfg.Terminal.DefaultCwd == "" {
		cfg.Terminal.DefaultCwd = d.Terminal.DefaultCwd
	}
	if cfg.Terminal.TimeoutSeconds == 0 {
		cfg.Terminal.TimeoutSeconds = d.Terminal.TimeoutSeconds
	}
	if cfg.Terminal.MaxOutputBytes == 0 {
		cfg.Terminal.MaxOutputBytes = d.Terminal.MaxOutputBytes
	}
	if cfg.Terminal.Shell == "" {
		cfg.Terminal.Shell = d.Terminal.Shell
	}
	if cfg.Agent.Model == "" {
		cfg.Agent.Model = d.Agent.Model
	}
}

// ValidateConfig checks configuration for potential issues and returns warnings.
func ValidateConfig(cfg *Config) []string {
	var warnings []string
	if cfg == nil {
		return warnings
	}
	if cfg.Terminal.TimeoutSeconds < 0 {
		warnings = append(warnings, "terminal.timeout_seconds is negative; the default will be used")
	}
	if cfg.Terminal.MaxOutputBytes < 0 {
		warnings = append(warnings, "terminal.max_output_bytes is negative; the default will be used")
	}
	if ResolveGenerationAPIKey(cfg) == "" {
		warnings = append(warnings, "no completion API key configured; AI actions will answer 503 until OPENROUTER_API_KEY is set")
	}
	if ResolveAgentAPIKey(cfg) == "" {
		warnings = append(warnings, "no Gemini API key configured; /api/agent is disabled")
	}
	if len(cfg.Terminal.Allow) > 0 {
		warnings = append(warnings, fmt.Sprintf("terminal allowlist active with %d pattern(s); commands outside it are rejected", len(cfg.Terminal.Allow)))
	}
	return warnings
}

// ResolveGenerationBaseURL returns the completion API base URL.
// Priority: $OPENROUTER_BASE_URL env > config value.
func ResolveGenerationBaseURL(cfg *Config) string {
	if url := os.Getenv("OPENROUTER_BASE_URL"); url != "" {
		return url
	}
	if cfg != nil {
		return cfg.Generation.BaseURL
	}
	return ""
}

// ResolveGenerationAPIKey returns the completion API key.
// Priority: $OPENROUTER_API_KEY env > config value.
func ResolveGenerationAPIKey(cfg *Config) string {
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		return key
	}
	if cfg != nil {
		return cfg.Generation.APIKey
	}
	return ""
}

// ResolveGenerationModel returns the completion model identifier.
// Priority: $OPENROUTER_MODEL_LINK env > config value.
func ResolveGenerationModel(cfg *Config) string {
	if model := os.Getenv("OPENROUTER_MODEL_LINK"); model != "" {
		return model
	}
	if cfg != nil {
		return cfg.Generation.Model
	}
	return ""
}

// ResolveAgentAPIKey returns the Gemini API key.
// Priority: $GEMINI_API_KEY > $GOOGLE_API_KEY > config value.
// Placeholder keys starting with "YOUR_" count as unset.
func ResolveAgentAPIKey(cfg *Config) string {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		key = os.Getenv("GOOGLE_API_KEY")
	}
	if key == "" && cfg != nil {
		key = cfg.Agent.APIKey
	}
	if len(key) >= 5 && key[:5] == "YOUR_" {
		return ""
	}
	return key
}

// ResolveAgentModel returns the Gemini model name.
// Priority: $GEMINI_MODEL > $GOOGLE_MODEL > config value.
func ResolveAgentModel(cfg *Config) string {
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		return model
	}
	if model := os.Getenv("GOOGLE_MODEL"); model != "" {
		return model
	}
	if cfg != nil {
		return cfg.Agent.Model
	}
	return ""
}

// ResolveAddr returns the listen address.
// Priority: $SYNCCIT_ADDR env > config value.
func ResolveAddr(cfg *Config) string {
	if addr := os.Getenv("SYNCCIT_ADDR"); addr != "" {
		return addr
	}
	if cfg != nil {
		return cfg.Server.Addr
	}
	return ""
}

// ResolveWorkspaceRoot returns the file explorer root.
// Priority: $SYNCCIT_WORKSPACE env > config value > process working directory.
func ResolveWorkspaceRoot(cfg *Config) string {
	if root := os.Getenv("SYNCCIT_WORKSPACE"); root != "" {
		return root
	}
	if cfg != nil && cfg.Workspace.Root != "" {
		return cfg.Workspace.Root
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
