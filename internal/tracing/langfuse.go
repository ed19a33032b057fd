// Package tracing wires the two optional trace sinks: Langfuse callbacks for
// eino model calls, and an OTLP exporter for the OpenTelemetry spans opened
// by the retrieval and HTTP layers. Both are opt-in and no-op when their
// environment is unset.
package tracing

import (
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// defaultLangfuseHost is used when LANGFUSE_HOST is unset.
const defaultLangfuseHost = "http://localhost:3000"

// LangfuseConfig holds the Langfuse credentials.
type LangfuseConfig struct {
	Host      string
	PublicKey string
	SecretKey string
}

// LangfuseConfigFromEnv reads LANGFUSE_HOST, LANGFUSE_PUBLIC_KEY and
// LANGFUSE_SECRET_KEY.
func LangfuseConfigFromEnv() LangfuseConfig {
	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = defaultLangfuseHost
	}
	return LangfuseConfig{
		Host:      host,
		PublicKey: os.Getenv("LANGFUSE_PUBLIC_KEY"),
		SecretKey: os.Getenv("LANGFUSE_SECRET_KEY"),
	}
}

// Enabled reports whether both keys are present.
func (c LangfuseConfig) Enabled() bool {
	return c.PublicKey != "" && c.SecretKey != ""
}

// SetupLangfuse registers the Langfuse handler as a global eino callback and
// returns its flush function, which must run before process exit. It returns
// false without side effects when cfg is not enabled.
func SetupLangfuse(cfg LangfuseConfig) (func(), bool) {
	if !cfg.Enabled() {
		return nil, false
	}
	handler, flush := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      cfg.Host,
		PublicKey: cfg.PublicKey,
		SecretKey: cfg.SecretKey,
		Name:      "ragchat",
	})
	callbacks.AppendGlobalHandlers(handler)
	return flush, true
}
