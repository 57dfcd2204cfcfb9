package agent

import "fmt"

// Profile holds the tunables of one domain agent.
type Profile struct {
	Type        Type    `yaml:"-"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	// Fallback is the static emergency target used when generation fails.
	// The fallback graph must not route a domain to itself.
	Fallback Type `yaml:"fallback"`

	// FallbackMessage is delivered to the customer when generation fails.
	FallbackMessage string `yaml:"fallback_message"`
}

// ErrorReason is the handoff reason used on the emergency path.
func (p Profile) ErrorReason() string {
	return p.Type.DisplayName() + " agent encountered an error"
}

// Validate checks that the profile is usable.
func (p Profile) Validate() error {
	if !p.Type.IsDomain() {
		return fmt.Errorf("profile type %q is not a domain agent", p.Type)
	}
	if !p.Fallback.Valid() {
		return fmt.Errorf("%s: invalid fallback %q", p.Type, p.Fallback)
	}
	if p.Fallback == p.Type {
		return fmt.Errorf("%s: fallback must differ from the agent itself", p.Type)
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return fmt.Errorf("%s: temperature %.2f out of range [0,2]", p.Type, p.Temperature)
	}
	if p.MaxTokens < 1 {
		return fmt.Errorf("%s: max_tokens must be >= 1", p.Type)
	}
	return nil
}

// DefaultProfiles returns the built-in tunables. Billing is the most
// deterministic, sales the loosest.
func DefaultProfiles() map[Type]Profile {
	return map[Type]Profile{
		TypeSales: {
			Type:            TypeSales,
			Temperature:     0.7,
			MaxTokens:       500,
			Fallback:        TypeTechnical,
			FallbackMessage: "I apologize, but I'm experiencing some technical difficulties. Let me connect you with our technical support team who can help you better.",
		},
		TypeTechnical: {
			Type:            TypeTechnical,
			Temperature:     0.3,
			MaxTokens:       600,
			Fallback:        TypeSales,
			FallbackMessage: "I'm experiencing some technical difficulties on my end. Let me connect you with our sales team who can help coordinate getting you the right technical support.",
		},
		TypeBilling: {
			Type:            TypeBilling,
			Temperature:     0.2,
			MaxTokens:       500,
			Fallback:        TypeSales,
			FallbackMessage: "I apologize for the technical difficulty. Let me connect you with our sales team who can coordinate getting you immediate billing assistance.",
		},
	}
}
