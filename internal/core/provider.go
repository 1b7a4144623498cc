package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownProvider is returned by ParseProvider for names it does not recognise.
var ErrUnknownProvider = errors.New("unknown tts provider")

// Provider identifies a synthesis backend.
type Provider int

const (
	ProviderOpenAI Provider = iota + 1
	ProviderGoogle
	ProviderLocal
)

// AllProviders lists every provider in display order.
var AllProviders = []Provider{ProviderOpenAI, ProviderGoogle, ProviderLocal}

func (p Provider) String() string {
	switch p {
	case ProviderOpenAI:
		return "openai"
	case ProviderGoogle:
		return "google"
	case ProviderLocal:
		return "local"
	default:
		return fmt.Sprintf("provider(%d)", int(p))
	}
}

// MarshalText encodes the provider by name, so it can be used as a JSON map key.
func (p Provider) MarshalText() ([]byte, error) {
	if p < ProviderOpenAI || p > ProviderLocal {
		return nil, fmt.Errorf("%w: %d", ErrUnknownProvider, int(p))
	}

	return []byte(p.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (p *Provider) UnmarshalText(text []byte) error {
	parsed, err := ParseProvider(string(text))
	if err != nil {
		return err
	}

	*p = parsed

	return nil
}

// ParseProvider maps a provider name to its Provider. Matching ignores case
// and surrounding space. "pyttsx3" is accepted as the local engine.
func ParseProvider(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openai":
		return ProviderOpenAI, nil
	case "google":
		return ProviderGoogle, nil
	case "local", "pyttsx3":
		return ProviderLocal, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}
