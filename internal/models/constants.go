package models

// Default backend addresses
const (
	DefaultOpenAIAddress    = "https://api.openai.com/v1"
	DefaultGeminiAddress    = "https://generativelanguage.googleapis.com/v1beta"
	DefaultOllamaAddress    = "http://localhost:11434"
	DefaultAnthropicAddress = "https://api.anthropic.com/v1"
)

// AnthropicVersion is sent in the anthropic-version header
const AnthropicVersion = "2023-06-01"

// AnthropicMaxTokens is the max_tokens value sent to Anthropic, which requires one
const AnthropicMaxTokens = 4096

// DefaultAddress returns the well known address for a provider
func DefaultAddress(p Provider) string {
	switch p {
	case ProviderOpenAI:
		return DefaultOpenAIAddress
	case ProviderGemini:
		return DefaultGeminiAddress
	case ProviderOllama:
		return DefaultOllamaAddress
	case ProviderAnthropic:
		return DefaultAnthropicAddress
	default:
		return ""
	}
}

// DefaultModel returns a reasonable model name for a provider
func DefaultModel(p Provider) string {
	switch p {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderGemini:
		return "gemini-2.5-flash"
	case ProviderOllama:
		return "llama3.2"
	case ProviderAnthropic:
		return "claude-sonnet-4-5"
	case ProviderMock:
		return "echo"
	default:
		return ""
	}
}
