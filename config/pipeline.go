package config

import (
	"fmt"
	"strings"
	"time"
)

// ExtractorKind selects the field extractor variant.
type ExtractorKind string

// AuditorKind selects the auditor variant.
type AuditorKind string

const (
	// ExtractorLLM extracts fields through an OpenAI-compatible chat model.
	ExtractorLLM ExtractorKind = "llm"
	// ExtractorPattern extracts fields with local pattern matching.
	ExtractorPattern ExtractorKind = "pattern"

	// AuditorLLM audits evidence through an OpenAI-compatible chat model.
	AuditorLLM AuditorKind = "llm"
	// AuditorReference builds the report from the reference evidence alone.
	AuditorReference AuditorKind = "reference"
)

// Valid reports whether k names a known extractor.
func (k ExtractorKind) Valid() bool { return k == ExtractorLLM || k == ExtractorPattern }

// Valid reports whether k names a known auditor.
func (k AuditorKind) Valid() bool { return k == AuditorLLM || k == AuditorReference }

// PipelineConfig selects and configures the validation pipeline stages.
type PipelineConfig struct {
	Extractor ExtractorKind `env:"PIPELINE_EXTRACTOR" envDefault:"pattern"`
	Auditor   AuditorKind   `env:"PIPELINE_AUDITOR"   envDefault:"reference"`

	// ExtractTimeout bounds a single extraction call.
	ExtractTimeout time.Duration `env:"PIPELINE_EXTRACT_TIMEOUT" envDefault:"30s"`
	// AuditTimeout bounds a single audit call.
	AuditTimeout time.Duration `env:"PIPELINE_AUDIT_TIMEOUT" envDefault:"60s"`

	ExtractLLM LLMConfig `envPrefix:"PIPELINE_EXTRACT_LLM_"`
	AuditLLM   LLMConfig `envPrefix:"PIPELINE_AUDIT_LLM_"`
}

// Sanitize normalizes the variant names and fills empty ones with defaults. Unknown
// names are left for Validate to reject.
func (p *PipelineConfig) Sanitize() {
	p.Extractor = ExtractorKind(strings.ToLower(strings.TrimSpace(string(p.Extractor))))
	p.Auditor = AuditorKind(strings.ToLower(strings.TrimSpace(string(p.Auditor))))
	if p.Extractor == "" {
		p.Extractor = ExtractorPattern
	}
	if p.Auditor == "" {
		p.Auditor = AuditorReference
	}
	if p.ExtractTimeout <= 0 {
		p.ExtractTimeout = 30 * time.Second
	}
	if p.AuditTimeout <= 0 {
		p.AuditTimeout = 60 * time.Second
	}
	p.ExtractLLM.Sanitize()
	p.AuditLLM.Sanitize()
}

// Validate rejects variant names no pipeline can be built from.
func (p *PipelineConfig) Validate() error {
	if !p.Extractor.Valid() {
		return fmt.Errorf("PIPELINE_EXTRACTOR: unknown %q (want llm or pattern)", p.Extractor)
	}
	if !p.Auditor.Valid() {
		return fmt.Errorf("PIPELINE_AUDITOR: unknown %q (want llm or reference)", p.Auditor)
	}
	return nil
}

// LLMConfig describes one OpenAI-compatible chat completion endpoint.
type LLMConfig struct {
	// Provider is a preset for BaseURL: openai, groq, gemini, ollama.
	Provider    string  `env:"PROVIDER"    envDefault:"groq"`
	BaseURL     string  `env:"BASE_URL"`
	APIKey      string  `env:"API_KEY"`
	Model       string  `env:"MODEL"       envDefault:"llama-3.3-70b-versatile"`
	MaxTokens   int     `env:"MAX_TOKENS"  envDefault:"1024"`
	Temperature float32 `env:"TEMPERATURE" envDefault:"0"`
}

var providerBaseURLs = map[string]string{
	"openai": "https://api.openai.com/v1",
	"groq":   "https://api.groq.com/openai/v1",
	"gemini": "https://generativelanguage.googleapis.com/v1beta/openai",
	"ollama": "http://localhost:11434/v1",
}

// Sanitize resolves the provider preset into a base URL.
func (l *LLMConfig) Sanitize() {
	l.Provider = strings.ToLower(strings.TrimSpace(l.Provider))
	l.BaseURL = strings.TrimRight(strings.TrimSpace(l.BaseURL), "/")
	if l.BaseURL == "" {
		l.BaseURL = providerBaseURLs[l.Provider]
	}
	if l.MaxTokens <= 0 {
		l.MaxTokens = 1024
	}
	if l.Temperature < 0 {
		l.Temperature = 0
	}
}

// Label identifies the endpoint in logs and the persisted pipeline name.
func (l LLMConfig) Label() string {
	if l.Provider == "" {
		return l.Model
	}
	return l.Provider + ":" + l.Model
}
