package router

import "slices"

// Capability is a request feature a provider must support.
type Capability string

const (
	CapGenerate    Capability = "generate"
	CapChat        Capability = "chat"
	CapLongContext Capability = "long-context"
)

// longContextTokens is the estimated prompt size above which a request
// needs CapLongContext.
const longContextTokens = 32_000

// Profile is the static description of one provider.
type Profile struct {
	Name         string
	RequiresKey  bool
	Capabilities []Capability
	// RequestsPerMinute limits call rate. Zero means unlimited.
	RequestsPerMinute int
	// MaxPromptBytes rejects larger requests. Zero means unlimited.
	MaxPromptBytes int
}

// Supports reports whether the profile has capability c.
func (p Profile) Supports(c Capability) bool {
	return slices.Contains(p.Capabilities, c)
}

// DirectProfile describes the Anthropic API used with the caller's key.
func DirectProfile() Profile {
	return Profile{
		Name:              "claude",
		RequiresKey:       true,
		Capabilities:      []Capability{CapGenerate, CapChat, CapLongContext},
		RequestsPerMinute: 50,
		MaxPromptBytes:    600_000,
	}
}

// LocalProfile describes a local Ollama server.
func LocalProfile() Profile {
	return Profile{
		Name:           "ollama",
		Capabilities:   []Capability{CapGenerate, CapChat},
		MaxPromptBytes: 128_000,
	}
}

// ProxyProfile describes the free-tier relay.
func ProxyProfile() Profile {
	return Profile{
		Name:              "proxy",
		Capabilities:      []Capability{CapGenerate, CapChat},
		RequestsPerMinute: 10,
		MaxPromptBytes:    100_000,
	}
}
