// Package embedder builds the rag.Embedder used to vectorise user queries.
// The OpenAI and Azure OpenAI backends use the eino-ext embedding component;
// Ollama is called directly over HTTP.
package embedder

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// Supported embedding backends.
const (
	BackendOpenAI = "openai"
	BackendAzure  = "azure"
	BackendOllama = "ollama"
)

// Default embedding models per backend.
const (
	defaultOpenAIModel = "text-embedding-3-small"
	defaultOllamaModel = "nomic-embed-text"

	// DefaultTimeout bounds a single embedding call.
	DefaultTimeout = 30 * time.Second
)

// Config is the resolved embedding configuration.
type Config struct {
	// Backend is one of openai, azure or ollama.
	Backend string

	// Model is the embedding model or Azure deployment name.
	Model string

	// APIKey authenticates against OpenAI or Azure. Unused by Ollama.
	APIKey string

	// BaseURL is the API root: the OpenAI base URL, the Azure resource
	// endpoint, or the Ollama host.
	BaseURL string

	// APIVersion is the Azure OpenAI API version.
	APIVersion string

	// Dimensions optionally truncates the output vector (text-embedding-3 only).
	Dimensions int

	// Timeout bounds each Embed call.
	Timeout time.Duration
}

// ConfigFromEnv resolves the embedding configuration using cascading
// defaults that inherit from the chat provider when embedding-specific
// variables are not set.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER, then MODEL_PROVIDER, then openai
//  2. EMBEDDING_API_KEY, then the backend's chat key (OPENAI_API_KEY, AZURE_OPENAI_API_KEY)
//  3. EMBEDDING_ENDPOINT, then the backend's chat endpoint
//  4. EMBEDDING_MODEL, then the backend default
//  5. EMBEDDING_DIMENSIONS and EMBEDDING_TIMEOUT
func ConfigFromEnv() *Config {
	backend := strings.ToLower(getEnv("EMBEDDING_PROVIDER"))
	if backend == "" {
		backend = strings.ToLower(getEnvOrDefault("MODEL_PROVIDER", BackendOpenAI))
	}

	cfg := &Config{
		Backend:    backend,
		Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
		Timeout:    DefaultTimeout,
	}
	if d, err := time.ParseDuration(getEnv("EMBEDDING_TIMEOUT")); err == nil && d > 0 {
		cfg.Timeout = d
	}

	switch backend {
	case BackendOllama:
		cfg.BaseURL = firstNonEmpty(getEnv("EMBEDDING_ENDPOINT"), getEnv("OLLAMA_HOST"), "http://localhost:11434")
		cfg.Model = getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel)
	case BackendAzure:
		cfg.APIKey = firstNonEmpty(getEnv("EMBEDDING_API_KEY"), getEnv("AZURE_OPENAI_API_KEY"))
		cfg.BaseURL = firstNonEmpty(getEnv("EMBEDDING_ENDPOINT"), getEnv("AZURE_OPENAI_ENDPOINT"))
		cfg.APIVersion = getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-10-21")
		cfg.Model = getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel)
	default:
		cfg.APIKey = firstNonEmpty(getEnv("EMBEDDING_API_KEY"), getEnv("OPENAI_API_KEY"))
		cfg.BaseURL = firstNonEmpty(getEnv("EMBEDDING_ENDPOINT"), "https://api.openai.com/v1")
		cfg.Model = getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel)
	}
	return cfg
}

// Validate reports missing credentials for the selected backend. Every error
// wraps rag.ErrConfig.
func (c *Config) Validate() error {
	var missing []string
	switch c.Backend {
	case BackendOpenAI:
		if c.APIKey == "" {
			missing = append(missing, "OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
	case BackendAzure:
		if c.APIKey == "" {
			missing = append(missing, "AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if c.BaseURL == "" {
			missing = append(missing, "AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
	case BackendOllama:
		if c.BaseURL == "" {
			missing = append(missing, "OLLAMA_HOST or EMBEDDING_ENDPOINT")
		}
	default:
		return fmt.Errorf("embedder: unsupported backend %q (valid: openai, azure, ollama; set EMBEDDING_PROVIDER explicitly when MODEL_PROVIDER has no embedding API): %w",
			c.Backend, rag.ErrConfig)
	}
	if c.Model == "" {
		missing = append(missing, "EMBEDDING_MODEL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("embedder: %s backend requires %s: %w", c.Backend, strings.Join(missing, ", "), rag.ErrConfig)
	}
	return nil
}

// New validates cfg and constructs the embedder for its backend.
func New(ctx context.Context, cfg *Config) (rag.Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendOllama:
		return NewOllamaEmbedder(&OllamaConfig{Host: cfg.BaseURL, Model: cfg.Model, Timeout: cfg.Timeout}), nil
	default:
		return NewOpenAIEmbedder(ctx, cfg)
	}
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
