package providers

import (
	"fmt"

	"github.com/book-expert/tts-pipeline/internal/apperrors"
	"github.com/book-expert/tts-pipeline/internal/core"
)

// Registry holds every provider this process knows about, keyed by its
// identity token.
type Registry struct {
	providers map[string]core.Provider
	order     []string
}

// NewRegistry builds an empty registry; call Register for each provider.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]core.Provider)}
}

// Register adds a provider, preserving registration order for ListProviders.
func (r *Registry) Register(p core.Provider) {
	if _, exists := r.providers[p.Name()]; !exists {
		r.order = append(r.order, p.Name())
	}

	r.providers[p.Name()] = p
}

// Get looks up a provider by name, returning an AppError the HTTP layer
// can render directly when the name is unknown.
func (r *Registry) Get(name string) (core.Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, apperrors.New(apperrors.CodeInvalidProvider, fmt.Sprintf("unknown provider %q", name), "")
	}

	return p, nil
}

// ProviderSummary is what /api/providers and /api/settings expose: never
// the credential values themselves.
type ProviderSummary struct {
	Name                 string
	DisplayName          string
	IsConfigured         bool
	Capabilities         core.ProviderCapabilities
	SupportsSpeedControl bool
	SupportsWordTiming   bool
}

// ListProviders returns every registered provider's public summary, in
// registration order.
func (r *Registry) ListProviders() []ProviderSummary {
	summaries := make([]ProviderSummary, 0, len(r.order))

	for _, name := range r.order {
		p := r.providers[name]
		caps := p.Capabilities()

		summaries = append(summaries, ProviderSummary{
			Name:                 p.Name(),
			DisplayName:          p.DisplayName(),
			IsConfigured:         p.IsConfigured(),
			Capabilities:         caps,
			SupportsSpeedControl: caps.SupportsSpeedControl,
			SupportsWordTiming:   caps.SupportsWordTiming,
		})
	}

	return summaries
}
