package provider

import (
	"testing"
)

// TestOllamaConfig_Tuning verifies sampling settings reach the Ollama options.
func TestOllamaConfig_Tuning(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Backend: BackendOllama,
		Ollama:  ProviderOllama{Host: "http://localhost:11434", Model: "llama3"},
		Tuning:  SharedTuning{MaxTokens: 512, Temperature: DefaultTemperature},
	}

	got := ollamaConfig(cfg)
	if got.Model != "llama3" || got.BaseURL != "http://localhost:11434" {
		t.Errorf("model/base = %q/%q", got.Model, got.BaseURL)
	}
	if got.Options == nil {
		t.Fatal("Options is nil")
	}
	if got.Options.Temperature != DefaultTemperature {
		t.Errorf("temperature = %v, want %v", got.Options.Temperature, DefaultTemperature)
	}
	if got.Options.NumPredict != 512 {
		t.Errorf("num_predict = %d, want 512", got.Options.NumPredict)
	}
}

// TestGeminiConfig_Tuning verifies temperature is always set and max tokens
// only when configured.
func TestGeminiConfig_Tuning(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Backend: BackendGemini,
		Gemini:  ProviderGemini{APIKey: "key", Model: "gemini-2.0-flash"},
		Tuning:  SharedTuning{Temperature: DefaultTemperature},
	}

	got := geminiConfig(nil, cfg)
	if got.Temperature == nil || *got.Temperature != DefaultTemperature {
		t.Errorf("temperature = %v, want %v", got.Temperature, DefaultTemperature)
	}
	if got.MaxTokens != nil {
		t.Errorf("max tokens = %d, want unset", *got.MaxTokens)
	}

	cfg.Tuning.MaxTokens = 256
	got = geminiConfig(nil, cfg)
	if got.MaxTokens == nil || *got.MaxTokens != 256 {
		t.Errorf("max tokens = %v, want 256", got.MaxTokens)
	}

	cfg.Tuning.Temperature = 0.1
	if *got.Temperature != DefaultTemperature {
		t.Error("config temperature aliased into the built config")
	}
}
