package config

// GeneratorConfig configures the LLM that drafts tests.
type GeneratorConfig struct {
	Provider       string  `yaml:"provider" json:"provider,omitempty"` // stub, gemini
	APIKey         string  `yaml:"api_key" json:"api_key,omitempty"`
	Model          string  `yaml:"model" json:"model,omitempty"`
	PromptTemplate string  `yaml:"prompt_template" json:"prompt_template,omitempty"` // {req} is replaced
	Temperature    float32 `yaml:"temperature" json:"temperature,omitempty"`
	Timeout        string  `yaml:"timeout" json:"timeout,omitempty"`

	// StubResponse is what the stub provider returns.
	StubResponse string `yaml:"stub_response" json:"stub_response,omitempty"`
}

// ValidProviders lists all supported generator providers.
var ValidProviders = []string{"stub", "gemini"}

// DefaultGeneratorConfig returns the offline stub setup.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Provider:       "stub",
		Model:          "gemini-2.5-flash",
		PromptTemplate: "Generate Allure test for {req}",
		Temperature:    0.3,
		Timeout:        "120s",
		StubResponse:   "Generated code here",
	}
}
