// Package config loads an optional YAML file for ragchat and projects it onto
// environment variables, which every component reads through its own
// ConfigFromEnv. Precedence is defaults, then YAML, then env vars; an env var
// that is already set is never overwritten.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. RAGCHAT_CONFIG environment variable
//  3. ~/.ragchat/config.yaml
//  4. ./ragchat.yaml
//
// With no file present the process runs entirely from env vars.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML document.
type Config struct {
	Model     ModelConfig     `yaml:"model"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	RAG       RAGConfig       `yaml:"rag"`
	Cache     CacheConfig     `yaml:"cache"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// ModelConfig holds chat model settings.
type ModelConfig struct {
	// Provider selects the backend: openai, azure, ollama, gemini, ark.
	Provider    string  `yaml:"provider"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`

	OpenAI struct {
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"openai"`

	Azure struct {
		APIKey     string `yaml:"api_key"`
		Endpoint   string `yaml:"endpoint"`
		Deployment string `yaml:"deployment"`
		APIVersion string `yaml:"api_version"`
	} `yaml:"azure"`

	Ollama struct {
		Host  string `yaml:"host"`
		Model string `yaml:"model"`
	} `yaml:"ollama"`

	Gemini struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	} `yaml:"gemini"`

	Ark struct {
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"ark"`
}

// EmbeddingConfig holds query embedding settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"`
	// Timeout is a Go duration string, e.g. "30s".
	Timeout string `yaml:"timeout"`
}

// IndexConfig selects and configures the vector index.
type IndexConfig struct {
	// Backend is pinecone, qdrant or milvus.
	Backend string `yaml:"backend"`

	// Metadata field names holding the chunk text, title and source path.
	TextField  string `yaml:"text_field"`
	TitleField string `yaml:"title_field"`
	PathField  string `yaml:"path_field"`

	Pinecone struct {
		APIKey    string `yaml:"api_key"`
		IndexName string `yaml:"index_name"`
		Namespace string `yaml:"namespace"`
	} `yaml:"pinecone"`

	Qdrant struct {
		Host       string `yaml:"host"`
		Port       int    `yaml:"port"`
		Collection string `yaml:"collection"`
		APIKey     string `yaml:"api_key"`
		TLS        bool   `yaml:"tls"`
	} `yaml:"qdrant"`

	Milvus struct {
		Address     string `yaml:"address"`
		Collection  string `yaml:"collection"`
		VectorField string `yaml:"vector_field"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		APIKey      string `yaml:"api_key"`
		SearchEF    int    `yaml:"search_ef"`
	} `yaml:"milvus"`
}

// RAGConfig holds retrieval and answer generation knobs.
type RAGConfig struct {
	TopK         int    `yaml:"top_k"`
	QueryTimeout string `yaml:"query_timeout"`
	// SearchTool is a pointer so an explicit false in YAML is distinguishable
	// from an absent key.
	SearchTool       *bool `yaml:"search_tool"`
	MaxToolRounds    int   `yaml:"max_tool_rounds"`
	MaxContextTokens int   `yaml:"max_context_tokens"`
}

// CacheConfig holds the Redis embedding cache settings.
type CacheConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTL      string `yaml:"ttl"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// RateLimit is the number of chat requests allowed per client per minute.
	RateLimit int `yaml:"rate_limit"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig holds Langfuse and OTLP settings.
type TracingConfig struct {
	Langfuse struct {
		Host      string `yaml:"host"`
		PublicKey string `yaml:"public_key"`
		SecretKey string `yaml:"secret_key"`
	} `yaml:"langfuse"`

	OTLP struct {
		Endpoint    string  `yaml:"endpoint"`
		ServiceName string  `yaml:"service_name"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"otlp"`
}

// envMapping maps YAML fields onto the env vars the components read.
// A mapping whose value renders as "" is skipped.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"MODEL_PROVIDER", func(c *Config) string { return c.Model.Provider }},
	{"MODEL_MAX_TOKENS", func(c *Config) string { return intStr(c.Model.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *Config) string { return floatStr(float64(c.Model.Temperature), 32) }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Model.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *Config) string { return c.Model.OpenAI.Model }},
	{"OPENAI_BASE_URL", func(c *Config) string { return c.Model.OpenAI.BaseURL }},
	{"AZURE_OPENAI_API_KEY", func(c *Config) string { return c.Model.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *Config) string { return c.Model.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *Config) string { return c.Model.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Model.Azure.APIVersion }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Model.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) string { return c.Model.Ollama.Model }},
	{"GOOGLE_API_KEY", func(c *Config) string { return c.Model.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *Config) string { return c.Model.Gemini.Model }},
	{"ARK_API_KEY", func(c *Config) string { return c.Model.Ark.APIKey }},
	{"ARK_MODEL", func(c *Config) string { return c.Model.Ark.Model }},
	{"ARK_BASE_URL", func(c *Config) string { return c.Model.Ark.BaseURL }},

	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"EMBEDDING_TIMEOUT", func(c *Config) string { return c.Embedding.Timeout }},

	{"VECTOR_BACKEND", func(c *Config) string { return c.Index.Backend }},
	{"RAG_TEXT_FIELD", func(c *Config) string { return c.Index.TextField }},
	{"RAG_TITLE_FIELD", func(c *Config) string { return c.Index.TitleField }},
	{"RAG_PATH_FIELD", func(c *Config) string { return c.Index.PathField }},
	{"PINECONE_API_KEY", func(c *Config) string { return c.Index.Pinecone.APIKey }},
	{"PINECONE_INDEX_NAME", func(c *Config) string { return c.Index.Pinecone.IndexName }},
	{"PINECONE_NAMESPACE", func(c *Config) string { return c.Index.Pinecone.Namespace }},
	{"QDRANT_HOST", func(c *Config) string { return c.Index.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Index.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Index.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Index.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Index.Qdrant.TLS) }},
	{"MILVUS_ADDRESS", func(c *Config) string { return c.Index.Milvus.Address }},
	{"MILVUS_COLLECTION", func(c *Config) string { return c.Index.Milvus.Collection }},
	{"MILVUS_VECTOR_FIELD", func(c *Config) string { return c.Index.Milvus.VectorField }},
	{"MILVUS_USERNAME", func(c *Config) string { return c.Index.Milvus.Username }},
	{"MILVUS_PASSWORD", func(c *Config) string { return c.Index.Milvus.Password }},
	{"MILVUS_API_KEY", func(c *Config) string { return c.Index.Milvus.APIKey }},
	{"MILVUS_SEARCH_EF", func(c *Config) string { return intStr(c.Index.Milvus.SearchEF) }},

	{"RAG_TOP_K", func(c *Config) string { return intStr(c.RAG.TopK) }},
	{"RAG_QUERY_TIMEOUT", func(c *Config) string { return c.RAG.QueryTimeout }},
	{"RAG_SEARCH_TOOL", func(c *Config) string { return boolPtrStr(c.RAG.SearchTool) }},
	{"AGENT_MAX_TOOL_ROUNDS", func(c *Config) string { return intStr(c.RAG.MaxToolRounds) }},
	{"AGENT_MAX_CONTEXT_TOKENS", func(c *Config) string { return intStr(c.RAG.MaxContextTokens) }},

	{"REDIS_ADDR", func(c *Config) string { return c.Cache.Addr }},
	{"REDIS_PASSWORD", func(c *Config) string { return c.Cache.Password }},
	{"REDIS_DB", func(c *Config) string { return intStr(c.Cache.DB) }},
	{"EMBEDDING_CACHE_TTL", func(c *Config) string { return c.Cache.TTL }},

	{"RAGCHAT_HOST", func(c *Config) string { return c.Server.Host }},
	{"RAGCHAT_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"RATE_LIMIT_PER_MINUTE", func(c *Config) string { return intStr(c.Server.RateLimit) }},

	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},

	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Langfuse.Host }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.Langfuse.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.Langfuse.SecretKey }},
	{"OTEL_EXPORTER_OTLP_ENDPOINT", func(c *Config) string { return c.Tracing.OTLP.Endpoint }},
	{"OTEL_SERVICE_NAME", func(c *Config) string { return c.Tracing.OTLP.ServiceName }},
	{"OTEL_TRACES_SAMPLE_RATE", func(c *Config) string { return floatStr(c.Tracing.OTLP.SampleRate, 64) }},
}

// Load reads the first config file found and applies its non-empty values
// as environment variables. It returns the path that was loaded, or "" when
// no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path, err := resolveConfigPath(explicitPath)
	if err != nil {
		return "", err
	}
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := apply(&cfg)
	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)
	return path, nil
}

// apply sets every unset env var that cfg provides a value for and returns
// how many were set.
func apply(cfg *Config) int {
	applied := 0
	for _, m := range envMapping {
		v := m.value(cfg)
		if v == "" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue
		}
		_ = os.Setenv(m.envKey, v)
		applied++
	}
	return applied
}

// resolveConfigPath returns the first config file path that exists. An
// explicit path that does not exist is an error; the implicit locations are
// optional.
func resolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config: %s: %w", explicit, err)
		}
		return explicit, nil
	}

	candidates := make([]string, 0, 3)
	if envPath := os.Getenv("RAGCHAT_CONFIG"); envPath != "" {
		candidates = append(candidates, envPath)
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".ragchat", "config.yaml"))
	}
	candidates = append(candidates, "ragchat.yaml")

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// intStr renders v, or "" for zero.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// floatStr renders v without trailing zeros, or "" for zero.
func floatStr(v float64, bits int) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, bits)
}

// boolStr renders true as "true" and false as "".
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}

// boolPtrStr renders an explicit YAML boolean, or "" when absent.
func boolPtrStr(v *bool) string {
	if v == nil {
		return ""
	}
	return strings.ToLower(strconv.FormatBool(*v))
}
