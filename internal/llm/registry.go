package llm

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/soyeahso/forager/internal/config"
	"github.com/soyeahso/forager/internal/logging"
)

// ProviderError is returned when an LLM provider fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP status code (401, 429, 500, etc.)
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Registry manages LLM provider clients and resolves references to clients.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client // provider name → client
	aliases  map[string]string // alias → provider name
	fallback string            // default provider name
	log      *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given provider name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.log.Info().Str("provider", name).Msg("registered LLM provider")
}

// Alias maps another name to a provider.
func (r *Registry) Alias(alias, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias] = provider
}

// SetFallback sets the provider used when no name or alias matches.
func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = provider
}

// Lookup returns the Client registered under name or an alias of it.
func (r *Registry) Lookup(name string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(name)
}

func (r *Registry) lookup(name string) (Client, bool) {
	if c, ok := r.clients[name]; ok {
		return c, true
	}
	if provider, ok := r.aliases[name]; ok {
		if c, ok := r.clients[provider]; ok {
			return c, true
		}
	}
	return nil, false
}

// Resolve returns the Client for the given reference.
// Resolution order: exact provider name → alias → fallback.
func (r *Registry) Resolve(name string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.lookup(name); ok {
		return c, nil
	}
	if r.fallback != "" {
		if c, ok := r.clients[r.fallback]; ok {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no LLM provider for %q", name)
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewClient builds a provider client from its configuration.
func NewClient(name string, p config.ProviderConfig) (Client, error) {
	switch strings.ToLower(p.API) {
	case config.APIOpenAI, "":
		return NewOpenAIClient(name, p.APIKey, p.BaseURL, p.Model), nil
	case config.APIAnthropic:
		return NewAnthropicClient(name, p.APIKey, p.BaseURL, p.Model), nil
	case config.APIGemini:
		return NewGeminiClient(name, p.APIKey, p.Model), nil
	default:
		return nil, fmt.Errorf("provider %s: unsupported api %q", name, p.API)
	}
}

// NewRegistryFromConfig registers every configured provider that has an API
// key and makes the primary provider the fallback.
func NewRegistryFromConfig(cfg config.LLMConfig, log *logging.Logger) (*Registry, error) {
	reg := NewRegistry(log)

	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := cfg.Providers[name]
		if p.APIKey == "" {
			reg.log.Warn().Str("provider", name).Msg("no API key configured, provider skipped")
			continue
		}
		client, err := NewClient(name, p)
		if err != nil {
			return nil, err
		}
		reg.Register(name, client)
		if p.Model != "" {
			reg.Alias(p.Model, name)
		}
	}

	if _, ok := reg.clients[cfg.Provider]; !ok {
		return nil, fmt.Errorf("primary LLM provider %q is not available (check llm.providers and API keys)", cfg.Provider)
	}
	reg.SetFallback(cfg.Provider)
	return reg, nil
}
