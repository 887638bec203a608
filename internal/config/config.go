// Package config loads refiner settings from REFINER_* environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/danielpatrickdp/prompt-refiner/internal/generator"
	"github.com/danielpatrickdp/prompt-refiner/internal/logging"
	"github.com/danielpatrickdp/prompt-refiner/internal/regression"
)

// #region config
// Config holds every runtime setting. Zero values are never used directly;
// Load fills defaults from the envDefault tags.
type Config struct {
	DBPath string `env:"REFINER_DB_PATH" envDefault:"refiner.db"`

	Provider       string        `env:"REFINER_PROVIDER" envDefault:"ollama"`
	Model          string        `env:"REFINER_MODEL" envDefault:"llama3"`
	OllamaEndpoint string        `env:"REFINER_OLLAMA_ENDPOINT" envDefault:"http://localhost:11434"`
	OpenAIKey      string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL  string        `env:"OPENAI_API_BASE_URL"`
	AnthropicKey   string        `env:"ANTHROPIC_API_KEY"`
	GenTimeout     time.Duration `env:"REFINER_GENERATOR_TIMEOUT" envDefault:"120s"`
	RateLimit      float64       `env:"REFINER_RATE_LIMIT" envDefault:"0"`
	RateBurst      int           `env:"REFINER_RATE_BURST" envDefault:"1"`

	SessionTimeout time.Duration `env:"REFINER_SESSION_TIMEOUT" envDefault:"10m"`
	LearningRate   float64       `env:"REFINER_LEARNING_RATE" envDefault:"0.01"`
	SharedModels   bool          `env:"REFINER_SHARED_MODELS" envDefault:"false"`
	NeuralEpochs   int           `env:"REFINER_NEURAL_EPOCHS" envDefault:"100"`
	WeightsFile    string        `env:"REFINER_WEIGHTS_FILE"`
	TokenEncoding  string        `env:"REFINER_TOKEN_ENCODING" envDefault:"cl100k_base"`

	GRPCAddr string           `env:"REFINER_GRPC_ADDR" envDefault:"localhost:50061"`
	LogLevel logging.LogLevel `env:"REFINER_LOG_LEVEL" envDefault:"INFO"`
}

// Option overrides a loaded setting.
type Option func(*Config)

// Load parses the environment, then applies opts.
func Load(opts ...Option) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("config: db path is empty")
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("config: learning rate must be positive, got %g", c.LearningRate)
	}
	if c.NeuralEpochs < 1 {
		return fmt.Errorf("config: neural epochs must be at least 1, got %d", c.NeuralEpochs)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("config: rate limit must not be negative")
	}
	return nil
}
// #endregion config

// #region options
func WithDBPath(path string) Option {
	return func(c *Config) { c.DBPath = path }
}

func WithProvider(provider, model string) Option {
	return func(c *Config) {
		if provider != "" {
			c.Provider = provider
		}
		if model != "" {
			c.Model = model
		}
	}
}

func WithGRPCAddr(addr string) Option {
	return func(c *Config) { c.GRPCAddr = addr }
}

func WithLogLevel(level logging.LogLevel) Option {
	return func(c *Config) { c.LogLevel = level }
}

func WithSharedModels(shared bool) Option {
	return func(c *Config) { c.SharedModels = shared }
}
// #endregion options

// #region derived
// Generator returns the generator settings for the configured provider.
func (c *Config) Generator() generator.Config {
	g := generator.Config{
		Provider:  c.Provider,
		Model:     c.Model,
		Timeout:   c.GenTimeout,
		RateLimit: c.RateLimit,
		Burst:     c.RateBurst,
	}
	switch c.Provider {
	case generator.ProviderOpenAI:
		g.APIKey, g.Endpoint = c.OpenAIKey, c.OpenAIBaseURL
	case generator.ProviderAnthropic:
		g.APIKey = c.AnthropicKey
	default:
		g.Endpoint = c.OllamaEndpoint
	}
	return g
}

// Neural returns the network configuration with the configured epoch count.
func (c *Config) Neural() regression.NeuralConfig {
	n := regression.DefaultNeuralConfig()
	n.Epochs = c.NeuralEpochs
	return n
}
// #endregion derived
