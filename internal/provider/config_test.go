package provider

import (
	"errors"
	"strings"
	"testing"

	"github.com/54b3r/ragchat-go/internal/rag"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tuning := SharedTuning{MaxTokens: 1024, Temperature: DefaultTemperature}

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		// ── Ollama ────────────────────────────────────────────────────────────
		{
			name: "ollama/valid",
			cfg: Config{
				Backend: BackendOllama,
				Ollama:  ProviderOllama{Host: "http://localhost:11434", Model: "llama3"},
				Tuning:  tuning,
			},
		},
		{
			name:    "ollama/missing model",
			cfg:     Config{Backend: BackendOllama, Ollama: ProviderOllama{Host: "http://localhost:11434"}, Tuning: tuning},
			wantErr: "OLLAMA_MODEL",
		},

		// ── OpenAI ────────────────────────────────────────────────────────────
		{
			name: "openai/valid",
			cfg: Config{
				Backend: BackendOpenAI,
				OpenAI:  ProviderOpenAI{APIKey: "sk-test", Model: "gpt-4o-mini"},
				Tuning:  tuning,
			},
		},
		{
			name:    "openai/missing api key",
			cfg:     Config{Backend: BackendOpenAI, OpenAI: ProviderOpenAI{Model: "gpt-4o"}, Tuning: tuning},
			wantErr: "OPENAI_API_KEY",
		},
		{
			name:    "openai/missing model",
			cfg:     Config{Backend: BackendOpenAI, OpenAI: ProviderOpenAI{APIKey: "sk-test"}, Tuning: tuning},
			wantErr: "OPENAI_MODEL",
		},

		// ── Azure ─────────────────────────────────────────────────────────────
		{
			name: "azure/valid",
			cfg: Config{
				Backend: BackendAzure,
				AzureOpenAI: ProviderAzureOpenAI{
					APIKey:     "key",
					Endpoint:   "https://my.openai.azure.com",
					Deployment: "gpt-4o",
					APIVersion: "2024-10-21",
				},
				Tuning: tuning,
			},
		},
		{
			name: "azure/missing api key",
			cfg: Config{
				Backend:     BackendAzure,
				AzureOpenAI: ProviderAzureOpenAI{Endpoint: "https://my.openai.azure.com", Deployment: "gpt-4o"},
				Tuning:      tuning,
			},
			wantErr: "AZURE_OPENAI_API_KEY",
		},
		{
			name: "azure/missing endpoint and deployment",
			cfg: Config{
				Backend:     BackendAzure,
				AzureOpenAI: ProviderAzureOpenAI{APIKey: "key"},
				Tuning:      tuning,
			},
			wantErr: "AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_DEPLOYMENT",
		},

		// ── Gemini ────────────────────────────────────────────────────────────
		{
			name: "gemini/valid",
			cfg: Config{
				Backend: BackendGemini,
				Gemini:  ProviderGemini{APIKey: "AIza-test", Model: "gemini-2.0-flash"},
				Tuning:  tuning,
			},
		},
		{
			name:    "gemini/missing api key",
			cfg:     Config{Backend: BackendGemini, Gemini: ProviderGemini{Model: "gemini-2.0-flash"}, Tuning: tuning},
			wantErr: "GOOGLE_API_KEY",
		},

		// ── Ark ───────────────────────────────────────────────────────────────
		{
			name:    "ark/missing model",
			cfg:     Config{Backend: BackendArk, Ark: ProviderArk{APIKey: "ak"}, Tuning: tuning},
			wantErr: "ARK_MODEL",
		},

		// ── Shared ────────────────────────────────────────────────────────────
		{
			name: "temperature out of range",
			cfg: Config{
				Backend: BackendOpenAI,
				OpenAI:  ProviderOpenAI{APIKey: "sk", Model: "gpt-4o"},
				Tuning:  SharedTuning{Temperature: 3},
			},
			wantErr: "MODEL_TEMPERATURE",
		},
		{
			name:    "unknown backend",
			cfg:     Config{Backend: "unknown"},
			wantErr: "unknown backend",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() error = %q, want substring %q", err.Error(), tc.wantErr)
			}
			if !errors.Is(err, rag.ErrConfig) {
				t.Errorf("Validate() error = %v, does not wrap rag.ErrConfig", err)
			}
		})
	}
}

// TestConfigFromEnv_Defaults verifies the backend and tuning defaults.
func TestConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "")
	t.Setenv("MODEL_TEMPERATURE", "")
	t.Setenv("OPENAI_MODEL", "")

	cfg := ConfigFromEnv()
	if cfg.Backend != BackendOpenAI {
		t.Errorf("Backend = %q, want openai", cfg.Backend)
	}
	if cfg.Tuning.Temperature != DefaultTemperature {
		t.Errorf("Temperature = %v, want %v", cfg.Tuning.Temperature, DefaultTemperature)
	}
	if cfg.ModelName() != "gpt-4o-mini" {
		t.Errorf("ModelName() = %q", cfg.ModelName())
	}
}

func TestIsAzureReasoningModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		deployment string
		want       bool
	}{
		{"o1", true},
		{"o1-preview", true},
		{"o3-mini", true},
		{"o4-mini", true},
		{"O3-Mini", true},
		{"codex-mini", true},
		{"gpt-5.2-codex", false},
		{"gpt-4o", false},
		{"gpt-4.1", false},
		{"gpt-35-turbo", false},
		{"", false},
	}

	for _, tc := range tests {
		t.Run(tc.deployment, func(t *testing.T) {
			t.Parallel()
			if got := isAzureReasoningModel(tc.deployment); got != tc.want {
				t.Errorf("isAzureReasoningModel(%q) = %v, want %v", tc.deployment, got, tc.want)
			}
		})
	}
}
