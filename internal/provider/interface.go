// Package provider selects and constructs the chat model backend at runtime.
// Supported backends: OpenAI, Azure OpenAI, Ollama, Google Gemini and
// Volcengine Ark. Every backend returns an eino ToolCallingChatModel so the
// agent can bind the search tool regardless of vendor.
package provider

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
	// BackendArk selects the Volcengine Ark model runtime.
	BackendArk Backend = "ark"
)

// DefaultTemperature is the sampling temperature used for answers.
const DefaultTemperature float32 = 0.7

// Config holds all provider-level configuration resolved from environment
// variables or explicit caller-supplied values. Only the block matching
// Backend is read.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	Ollama      ProviderOllama
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Gemini      ProviderGemini
	Ark         ProviderArk

	// Tuning applies to every backend that accepts it.
	Tuning SharedTuning
}

// ProviderOllama configures a local Ollama server.
type ProviderOllama struct {
	// Host is the Ollama base URL. Env: OLLAMA_HOST.
	Host string
	// Model is the chat model tag. Env: OLLAMA_MODEL.
	Model string
}

// ProviderOpenAI configures the public OpenAI API.
type ProviderOpenAI struct {
	// APIKey is the OpenAI secret key. Env: OPENAI_API_KEY.
	APIKey string
	// Model is the chat model name. Env: OPENAI_MODEL.
	Model string
	// BaseURL overrides the API root for OpenAI-compatible gateways. Env: OPENAI_BASE_URL.
	BaseURL string
}

// ProviderAzureOpenAI configures an Azure OpenAI deployment.
type ProviderAzureOpenAI struct {
	// APIKey is the resource key. Env: AZURE_OPENAI_API_KEY.
	APIKey string
	// Endpoint is the resource URL. Env: AZURE_OPENAI_ENDPOINT.
	Endpoint string
	// Deployment is the model deployment name. Env: AZURE_OPENAI_DEPLOYMENT.
	Deployment string
	// APIVersion is the REST API version. Env: AZURE_OPENAI_API_VERSION.
	APIVersion string
}

// ProviderGemini configures Google AI Studio.
type ProviderGemini struct {
	// APIKey is the AI Studio key. Env: GOOGLE_API_KEY.
	APIKey string
	// Model is the Gemini model name. Env: GEMINI_MODEL.
	Model string
}

// ProviderArk configures the Volcengine Ark runtime.
type ProviderArk struct {
	// APIKey is the Ark API key. Env: ARK_API_KEY.
	APIKey string
	// Model is the endpoint or model ID. Env: ARK_MODEL.
	Model string
	// BaseURL overrides the regional endpoint. Env: ARK_BASE_URL.
	BaseURL string
}

// SharedTuning holds sampling parameters.
type SharedTuning struct {
	// MaxTokens caps generated tokens per response. Env: MODEL_MAX_TOKENS.
	MaxTokens int
	// Temperature controls randomness. Env: MODEL_TEMPERATURE (default 0.7).
	Temperature float32
}
