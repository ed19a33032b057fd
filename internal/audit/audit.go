// Package audit logs a sanitised snapshot of the effective configuration when
// a CLI command starts, so operators can see which model, embedding backend
// and vector index a process ran against without exposing secret values.
//
// Secrets are logged as presence/absence only, never their values.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// entry defines an env var to include in the audit log.
type entry struct {
	// key is the environment variable name.
	key string
	// secret indicates the value should be redacted to presence/absence.
	secret bool
}

// keys is the ordered list of env vars included in every audit log entry,
// grouped by the component that reads them.
var keys = []entry{
	// chat model
	{"MODEL_PROVIDER", false},
	{"OPENAI_API_KEY", true},
	{"OPENAI_MODEL", false},
	{"OPENAI_BASE_URL", false},
	{"AZURE_OPENAI_API_KEY", true},
	{"AZURE_OPENAI_ENDPOINT", false},
	{"AZURE_OPENAI_DEPLOYMENT", false},
	{"OLLAMA_HOST", false},
	{"OLLAMA_MODEL", false},
	{"GOOGLE_API_KEY", true},
	{"GEMINI_MODEL", false},
	{"ARK_API_KEY", true},
	{"ARK_MODEL", false},
	{"MODEL_TEMPERATURE", false},
	// embedding
	{"EMBEDDING_PROVIDER", false},
	{"EMBEDDING_MODEL", false},
	{"EMBEDDING_API_KEY", true},
	// vector index
	{"VECTOR_BACKEND", false},
	{"PINECONE_API_KEY", true},
	{"PINECONE_INDEX_NAME", false},
	{"QDRANT_HOST", false},
	{"QDRANT_COLLECTION", false},
	{"QDRANT_API_KEY", true},
	{"MILVUS_ADDRESS", false},
	{"MILVUS_COLLECTION", false},
	{"MILVUS_PASSWORD", true},
	{"MILVUS_API_KEY", true},
	{"RAG_TOP_K", false},
	{"AGENT_MAX_TOOL_ROUNDS", false},
	{"AGENT_MAX_CONTEXT_TOKENS", false},
	// cache
	{"REDIS_ADDR", false},
	{"REDIS_PASSWORD", true},
	// observability
	{"LOG_LEVEL", false},
	{"LOG_FORMAT", false},
	{"LANGFUSE_PUBLIC_KEY", true},
	{"LANGFUSE_SECRET_KEY", true},
	{"OTEL_EXPORTER_OTLP_ENDPOINT", false},
}

// secretKeys is derived from keys so the two never drift apart.
var secretKeys = func() map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, e := range keys {
		if e.secret {
			m[e.key] = true
		}
	}
	return m
}()

// LogCommandStart emits a structured audit log entry when a CLI command begins.
// It records the command name, config file source, and sanitised environment.
func LogCommandStart(log *slog.Logger, command string, configPath string) {
	attrs := make([]slog.Attr, 0, len(keys)+2)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	)
	for _, e := range keys {
		attrs = append(attrs, slog.String(e.key, SanitiseKey(e.key, os.Getenv(e.key))))
	}
	log.LogAttrs(context.Background(), slog.LevelInfo, "audit: command start", attrs...)
}

// SanitiseKey returns "set" or "unset" for known secret keys, or the actual
// value for non-secret keys. This is safe to use in log messages.
func SanitiseKey(key, value string) string {
	if secretKeys[key] {
		return presence(value)
	}
	return valOrUnset(value)
}

// presence returns "set" if the value is non-empty, "unset" otherwise.
func presence(v string) string {
	if v != "" {
		return "set"
	}
	return "unset"
}

// valOrUnset returns the value if non-empty, "unset" otherwise.
func valOrUnset(v string) string {
	if v != "" {
		return v
	}
	return "unset"
}

// sanitiseConfigPath returns the config path with the home directory
// collapsed to "~", or "none" if empty.
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	home, err := os.UserHomeDir()
	if err == nil && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
