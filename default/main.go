// Package defaults provides embedded default assets (config and prompt templates).
package defaults

import "embed"

//go:embed default_config.json
var DefaultConfigJSON []byte

//go:embed translate_prompt.md
var TranslatePrompt string

// Prompts holds one template per AI action, named <action>.tmpl.
//
//go:embed prompts/*.tmpl
var Prompts embed.FS
