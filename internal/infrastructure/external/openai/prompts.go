package openai

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// PromptConfig holds the prompt and model parameters of the categorizer
type PromptConfig struct {
	Categorize struct {
		Temperature  float32 `yaml:"temperature"`
		MaxTokens    int     `yaml:"max_tokens"`
		System       string  `yaml:"system"`
		UserTemplate string  `yaml:"user_template"`
	} `yaml:"categorize"`
}

const defaultSystemPrompt = "You classify business expense receipts. " +
	"Pick exactly one category from the list you are given. " +
	`Respond with JSON only: {"category": "<one of the categories>", "confidence": <0..1>}.`

const defaultUserTemplate = `Categories:
{{range .Categories}}- {{.}}
{{end}}
Receipt text:
{{.Text}}`

// DefaultPrompts returns the built-in prompts
func DefaultPrompts() *PromptConfig {
	var p PromptConfig
	p.Categorize.Temperature = 0
	p.Categorize.MaxTokens = 100
	p.Categorize.System = defaultSystemPrompt
	p.Categorize.UserTemplate = defaultUserTemplate
	return &p
}

// LoadPrompts loads prompt configuration from a YAML file.
// Fields missing from the file keep their built-in values.
func LoadPrompts(promptsPath string) (*PromptConfig, error) {
	data, err := os.ReadFile(promptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	prompts := DefaultPrompts()
	if err := yaml.Unmarshal(data, prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}

	if _, err := template.New("prompt").Parse(prompts.Categorize.UserTemplate); err != nil {
		return nil, fmt.Errorf("invalid categorize user_template: %w", err)
	}
	return prompts, nil
}

// renderTemplate renders a template with provided data
func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
