package generator

import (
	"fmt"
	"strings"
	"time"
)

// Backend names accepted by New.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderEcho      = "echo"
)

// #region factory
// Config selects and configures a backend.
type Config struct {
	Provider  string
	Model     string
	Endpoint  string // Ollama server or OpenAI/Anthropic base URL
	APIKey    string
	Timeout   time.Duration
	RateLimit float64 // calls per second, 0 = unlimited
	Burst     int
}

// New builds the configured generator wrapped in a rate limiter.
func New(cfg Config) (TextGenerator, error) {
	var g TextGenerator
	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama, "":
		g = NewOllama(cfg.Endpoint, cfg.Model, cfg.Timeout)
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai generator requires an API key")
		}
		g = NewOpenAI(cfg.APIKey, cfg.Endpoint, cfg.Model)
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic generator requires an API key")
		}
		g = NewAnthropic(cfg.APIKey, cfg.Endpoint, cfg.Model)
	case ProviderEcho:
		g = Echo{}
	default:
		return nil, fmt.Errorf("unknown generator provider %q", cfg.Provider)
	}
	return NewRateLimited(g, cfg.RateLimit, cfg.Burst), nil
}
// #endregion factory
