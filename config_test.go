package synccit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENROUTER_API_KEY", "OPENROUTER_BASE_URL", "OPENROUTER_MODEL_LINK",
		"GEMINI_API_KEY", "GOOGLE_API_KEY", "GEMINI_MODEL", "GOOGLE_MODEL",
		"SYNCCIT_ADDR", "SYNCCIT_WORKSPACE",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Server.AIPath != "/api/ai" || cfg.Server.TerminalPath != "/api/terminal" {
		t.Errorf("unexpected paths %+v", cfg.Server)
	}
	if cfg.Generation.Model != "arcee-ai/trinity-large-preview:free" {
		t.Errorf("unexpected default model %q", cfg.Generation.Model)
	}
	if cfg.Generation.MaxTokens != 1800 || cfg.Generation.Temperature != 0.3 {
		t.Errorf("unexpected sampling defaults %+v", cfg.Generation)
	}
	if cfg.Terminal.DefaultCwd != "/tmp" || cfg.Terminal.TimeoutSeconds != 10 || cfg.Terminal.MaxOutputBytes != 512*1024 {
		t.Errorf("unexpected terminal defaults %+v", cfg.Terminal)
	}
	if cfg.Agent.Model != "gemini-1.5-flash" {
		t.Errorf("unexpected agent model %q", cfg.Agent.Model)
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	cfg, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != DefaultConfig().Server.Addr {
		t.Errorf("expected defaults, got %+v", cfg.Server)
	}
}

func TestLoadConfigFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"server":{"addr":":9000"},"terminal":{"allow":["git","ls"]},"generation":{"model":"other/model"}}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":9000" || cfg.Server.AIPath != "/api/ai" {
		t.Errorf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Generation.Model != "other/model" || cfg.Generation.MaxTokens != 1800 {
		t.Errorf("unexpected generation config %+v", cfg.Generation)
	}
	if len(cfg.Terminal.Allow) != 2 || cfg.Terminal.TimeoutSeconds != 10 {
		t.Errorf("unexpected terminal config %+v", cfg.Terminal)
	}
}

func TestLoadConfigFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfigFile(path); err == nil || !strings.Contains(err.Error(), path) {
		t.Errorf("expected parse error naming the file, got %v", err)
	}
}

func TestConfigDir(t *testing.T) {
	t.Setenv("SYNCCIT_CONFIG_DIR", "/etc/synccit")
	if got := ConfigDir(); got != "/etc/synccit" {
		t.Errorf("got %q", got)
	}
	t.Setenv("SYNCCIT_CONFIG_DIR", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := ConfigPath(); got != "/xdg/synccit/config.json" {
		t.Errorf("got %q", got)
	}
}

func TestResolveGeneration(t *testing.T) {
	clearEnv(t)
	cfg := DefaultConfig()
	cfg.Generation.APIKey = "from-file"

	if got := ResolveGenerationAPIKey(cfg); got != "from-file" {
		t.Errorf("expected file key, got %q", got)
	}
	if got := ResolveGenerationModel(cfg); got != "arcee-ai/trinity-large-preview:free" {
		t.Errorf("expected default model, got %q", got)
	}

	t.Setenv("OPENROUTER_API_KEY", "from-env")
	t.Setenv("OPENROUTER_MODEL_LINK", "env/model")
	t.Setenv("OPENROUTER_BASE_URL", "http://localhost:9999/v1")
	if got := ResolveGenerationAPIKey(cfg); got != "from-env" {
		t.Errorf("env should win, got %q", got)
	}
	if got := ResolveGenerationModel(cfg); got != "env/model" {
		t.Errorf("env should win, got %q", got)
	}
	if got := ResolveGenerationBaseURL(cfg); got != "http://localhost:9999/v1" {
		t.Errorf("env should win, got %q", got)
	}
	if got := ResolveGenerationAPIKey(nil); got != "from-env" {
		t.Errorf("nil config should still read env, got %q", got)
	}
}

func TestResolveAgent(t *testing.T) {
	clearEnv(t)
	cfg := DefaultConfig()

	if got := ResolveAgentAPIKey(cfg); got != "" {
		t.Errorf("expected no key, got %q", got)
	}
	cfg.Agent.APIKey = "YOUR_API_KEY_HERE"
	if got := ResolveAgentAPIKey(cfg); got != "" {
		t.Errorf("placeholder should count as unset, got %q", got)
	}
	t.Setenv("GOOGLE_API_KEY", "google")
	if got := ResolveAgentAPIKey(cfg); got != "google" {
		t.Errorf("got %q", got)
	}
	t.Setenv("GEMINI_API_KEY", "gemini")
	if got := ResolveAgentAPIKey(cfg); got != "gemini" {
		t.Errorf("GEMINI_API_KEY should win, got %q", got)
	}

	t.Setenv("GOOGLE_MODEL", "g-model")
	if got := ResolveAgentModel(cfg); got != "g-model" {
		t.Errorf("got %q", got)
	}
}

func TestResolveAddrAndWorkspace(t *testing.T) {
	clearEnv(t)
	cfg := DefaultConfig()
	if got := ResolveAddr(cfg); got != ":8000" {
		t.Errorf("got %q", got)
	}
	t.Setenv("SYNCCIT_ADDR", "127.0.0.1:7000")
	if got := ResolveAddr(cfg); got != "127.0.0.1:7000" {
		t.Errorf("got %q", got)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if got := ResolveWorkspaceRoot(cfg); got != wd {
		t.Errorf("expected process cwd, got %q", got)
	}
	cfg.Workspace.Root = "/srv/code"
	if got := ResolveWorkspaceRoot(cfg); got != "/srv/code" {
		t.Errorf("got %q", got)
	}
	t.Setenv("SYNCCIT_WORKSPACE", "/env/code")
	if got := ResolveWorkspaceRoot(cfg); got != "/env/code" {
		t.Errorf("got %q", got)
	}
}

func TestValidateConfig(t *testing.T) {
	clearEnv(t)
	cfg := DefaultConfig()
	cfg.Terminal.TimeoutSeconds = -1
	cfg.Terminal.Allow = []string{"git"}

	warnings := strings.Join(ValidateConfig(cfg), "\n")
	for _, want := range []string{"timeout_seconds", "OPENROUTER_API_KEY", "Gemini", "allowlist"} {
		if !strings.Contains(warnings, want) {
			t.Errorf("expected a warning mentioning %q, got:\n%s", want, warnings)
		}
	}

	t.Setenv("OPENROUTER_API_KEY", "k")
	t.Setenv("GEMINI_API_KEY", "k")
	if got := ValidateConfig(DefaultConfig()); len(got) != 0 {
		t.Errorf("expected no warnings, got %v", got)
	}
	if got := ValidateConfig(nil); len(got) != 0 {
		t.Errorf("expected no warnings for nil config, got %v", got)
	}
}
