package config

import (
	"testing"
	"time"

	"github.com/danielpatrickdp/prompt-refiner/internal/generator"
	"github.com/danielpatrickdp/prompt-refiner/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "refiner.db", cfg.DBPath)
	assert.Equal(t, generator.ProviderOllama, cfg.Provider)
	assert.Equal(t, 0.01, cfg.LearningRate)
	assert.Equal(t, 100, cfg.NeuralEpochs)
	assert.Equal(t, 10*time.Minute, cfg.SessionTimeout)
	assert.Equal(t, logging.LevelInfo, cfg.LogLevel)
	assert.False(t, cfg.SharedModels)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("REFINER_DB_PATH", "/tmp/x.db")
	t.Setenv("REFINER_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-1")
	t.Setenv("OPENAI_API_BASE_URL", "http://proxy/v1")
	t.Setenv("REFINER_SHARED_MODELS", "true")
	t.Setenv("REFINER_LOG_LEVEL", "debug")
	t.Setenv("REFINER_SESSION_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.True(t, cfg.SharedModels)
	assert.Equal(t, logging.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.SessionTimeout)

	g := cfg.Generator()
	assert.Equal(t, "sk-1", g.APIKey)
	assert.Equal(t, "http://proxy/v1", g.Endpoint)
}

func TestLoad_OptionsOverrideEnvironment(t *testing.T) {
	t.Setenv("REFINER_DB_PATH", "/tmp/env.db")
	cfg, err := Load(WithDBPath("/tmp/flag.db"), WithProvider("", "mistral"), WithSharedModels(true))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/flag.db", cfg.DBPath)
	assert.Equal(t, "ollama", cfg.Provider)
	assert.Equal(t, "mistral", cfg.Model)
	assert.True(t, cfg.SharedModels)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("REFINER_LEARNING_RATE", "0")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_BadValue(t *testing.T) {
	t.Setenv("REFINER_NEURAL_EPOCHS", "many")
	_, err := Load()
	assert.Error(t, err)
}

func TestGenerator_OllamaEndpoint(t *testing.T) {
	t.Setenv("REFINER_OLLAMA_ENDPOINT", "http://gpu:11434")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://gpu:11434", cfg.Generator().Endpoint)
	assert.Equal(t, 100, cfg.Neural().Epochs)
}
