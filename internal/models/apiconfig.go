package models

import (
	"fmt"
	"strings"
)

// Provider names a backend wire protocol
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
	ProviderOllama    Provider = "ollama"
	ProviderAnthropic Provider = "anthropic"
	ProviderMock      Provider = "mock"
)

// AllProviders returns every supported provider
func AllProviders() []Provider {
	return []Provider{ProviderOpenAI, ProviderGemini, ProviderOllama, ProviderAnthropic, ProviderMock}
}

// ParseProvider normalizes a provider name.
// An empty name defaults to openai, the most common compatible protocol.
func ParseProvider(name string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(name)))
	if p == "" {
		return ProviderOpenAI, nil
	}
	for _, known := range AllProviders() {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q", name)
}

// APIConfig holds the connection parameters of one backend endpoint
type APIConfig struct {
	ID         string   `json:"id"`
	Name       string   `json:"name,omitempty"`
	Address    string   `json:"address"`
	Credential string   `json:"credential,omitempty"`
	Model      string   `json:"model"`
	Provider   Provider `json:"provider"`
}

// ContentEquals compares two configs ignoring ID and Name.
// Fields are trimmed; address, model and provider compare case-insensitively.
func (c APIConfig) ContentEquals(other APIConfig) bool {
	return strings.EqualFold(strings.TrimSpace(c.Address), strings.TrimSpace(other.Address)) &&
		strings.TrimSpace(c.Credential) == strings.TrimSpace(other.Credential) &&
		strings.EqualFold(strings.TrimSpace(c.Model), strings.TrimSpace(other.Model)) &&
		strings.EqualFold(strings.TrimSpace(string(c.Provider)), strings.TrimSpace(string(other.Provider)))
}

// Normalized returns a copy with trimmed fields, a canonical provider and
// the provider's default address filled in when none was given.
func (c APIConfig) Normalized() APIConfig {
	c.Name = strings.TrimSpace(c.Name)
	c.Address = strings.TrimRight(strings.TrimSpace(c.Address), "/")
	c.Credential = strings.TrimSpace(c.Credential)
	c.Model = strings.TrimSpace(c.Model)
	if p, err := ParseProvider(string(c.Provider)); err == nil {
		c.Provider = p
	}
	if c.Address == "" {
		c.Address = DefaultAddress(c.Provider)
	}
	return c
}

// Label returns a short human readable description
func (c APIConfig) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("%s · %s", c.Provider, c.Model)
}

// MaskedCredential hides all but the last four characters of the credential
func (c APIConfig) MaskedCredential() string {
	cred := strings.TrimSpace(c.Credential)
	if cred == "" {
		return "(none)"
	}
	if len(cred) <= 4 {
		return "****"
	}
	return "****" + cred[len(cred)-4:]
}
