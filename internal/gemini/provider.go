package gemini

import (
	"context"
	"log/slog"
	"sync"

	"github.com/edgard/personachat/internal/config"
	apperrors "github.com/edgard/personachat/internal/errors"
)

// Factory builds a Client for an API key.
type Factory func(ctx context.Context, apiKey string) (Client, error)

// Provider owns the single API credential and lazily builds the Client for
// it. A credential rejected by the backend stays set but is no longer
// confirmed until the user supplies one again.
type Provider struct {
	mu        sync.Mutex
	apiKey    string
	confirmed bool
	client    Client
	factory   Factory
	log       *slog.Logger
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithFactory replaces the genai-backed client constructor.
func WithFactory(f Factory) ProviderOption {
	return func(p *Provider) {
		p.factory = f
	}
}

// NewProvider creates a Provider seeded with the configured key, if any.
func NewProvider(cfg config.GeminiConfig, log *slog.Logger, opts ...ProviderOption) *Provider {
	if log == nil {
		log = slog.Default()
	}
	p := &Provider{
		apiKey:    cfg.APIKey,
		confirmed: cfg.APIKey != "",
		log:       log.With("component", "gemini_provider"),
	}
	p.factory = func(ctx context.Context, apiKey string) (Client, error) {
		return NewClient(ctx, cfg, apiKey, log)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetCredential replaces the API key. The next Client call rebuilds the
// client.
func (p *Provider) SetCredential(apiKey string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.apiKey = apiKey
	p.confirmed = apiKey != ""
	p.client = nil
	p.log.Info("API credential updated", "present", apiKey != "")
}

// HasCredential reports whether a usable key is confirmed.
func (p *Provider) HasCredential() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.confirmed && p.apiKey != ""
}

// Invalidate clears the confirmed flag after the backend rejected the key.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.confirmed {
		p.log.Warn("API credential rejected by backend")
	}
	p.confirmed = false
	p.client = nil
}

// Client returns the client for the current credential, building it on
// first use.
func (p *Provider) Client(ctx context.Context) (Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.confirmed || p.apiKey == "" {
		return nil, apperrors.ErrCredentialRequired
	}
	if p.client != nil {
		return p.client, nil
	}
	c, err := p.factory(ctx, p.apiKey)
	if err != nil {
		return nil, err
	}
	p.client = c
	return c, nil
}
