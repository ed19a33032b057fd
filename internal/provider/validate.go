package provider

import (
	"fmt"
	"strings"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// Validate reports every missing variable for the selected backend in a
// single error that wraps rag.ErrConfig.
func (c *Config) Validate() error {
	var missing []string
	require := func(val, env string) {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, env)
		}
	}

	switch c.Backend {
	case BackendOllama:
		require(c.Ollama.Host, "OLLAMA_HOST")
		require(c.Ollama.Model, "OLLAMA_MODEL")
	case BackendOpenAI:
		require(c.OpenAI.APIKey, "OPENAI_API_KEY")
		require(c.OpenAI.Model, "OPENAI_MODEL")
	case BackendAzure:
		require(c.AzureOpenAI.APIKey, "AZURE_OPENAI_API_KEY")
		require(c.AzureOpenAI.Endpoint, "AZURE_OPENAI_ENDPOINT")
		require(c.AzureOpenAI.Deployment, "AZURE_OPENAI_DEPLOYMENT")
	case BackendGemini:
		require(c.Gemini.APIKey, "GOOGLE_API_KEY")
		require(c.Gemini.Model, "GEMINI_MODEL")
	case BackendArk:
		require(c.Ark.APIKey, "ARK_API_KEY")
		require(c.Ark.Model, "ARK_MODEL")
	default:
		return fmt.Errorf("provider: unknown backend %q (valid: openai, azure, ollama, gemini, ark): %w", c.Backend, rag.ErrConfig)
	}

	if len(missing) > 0 {
		return fmt.Errorf("provider: %s backend requires %s: %w", c.Backend, strings.Join(missing, ", "), rag.ErrConfig)
	}
	if t := c.Tuning.Temperature; t < 0 || t > 2 {
		return fmt.Errorf("provider: MODEL_TEMPERATURE %.2f out of range [0, 2]: %w", t, rag.ErrConfig)
	}
	return nil
}

// isAzureReasoningModel reports whether an Azure deployment name refers to an
// o-series or codex model. Those reject temperature and max_tokens.
func isAzureReasoningModel(deployment string) bool {
	d := strings.ToLower(deployment)
	for _, prefix := range []string{"o1", "o3", "o4", "codex"} {
		if strings.HasPrefix(d, prefix) {
			return true
		}
	}
	return false
}
