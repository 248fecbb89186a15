// Package secrets resolves credentials from environment variables or Azure
// Key Vault.
package secrets

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SecretSource defines where secrets are loaded from
type SecretSource string

const (
	SourceEnvironment SecretSource = "environment"
	SourceVault       SecretSource = "vault"
	// SourceAuto uses the environment in development and the vault elsewhere
	SourceAuto SecretSource = "auto"
)

const defaultCacheTTL = 5 * time.Minute

// Fetcher reads a single secret by name
type Fetcher interface {
	Fetch(ctx context.Context, name string) (string, error)
}

type envFetcher struct{}

func (envFetcher) Fetch(_ context.Context, name string) (string, error) {
	value := os.Getenv(name)
	if value == "" {
		return "", fmt.Errorf("environment variable '%s' not set", name)
	}
	return value, nil
}

// ProviderConfig holds configuration for the secrets provider
type ProviderConfig struct {
	Source       SecretSource
	VaultName    string
	Environment  string
	CacheEnabled bool
	CacheTTL     time.Duration
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

// Provider reads secrets from one source and optionally caches them.
// It is safe for concurrent use.
type Provider struct {
	source  SecretSource
	fetcher Fetcher
	logger  *zap.Logger

	cacheEnabled bool
	cacheTTL     time.Duration
	mu           sync.Mutex
	cache        map[string]cachedSecret
	now          func() time.Time
}

// ResolveSource turns SourceAuto into a concrete source for the environment
func ResolveSource(source SecretSource, environment string) SecretSource {
	if source != SourceAuto {
		return source
	}
	switch environment {
	case "development", "local", "":
		return SourceEnvironment
	default:
		return SourceVault
	}
}

// NewProvider creates a new secrets provider
func NewProvider(cfg *ProviderConfig, logger *zap.Logger) (*Provider, error) {
	source := ResolveSource(cfg.Source, cfg.Environment)

	var fetcher Fetcher
	switch source {
	case SourceEnvironment:
		fetcher = envFetcher{}
	case SourceVault:
		vault, err := NewVaultFetcher(cfg.VaultName, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vault client: %w", err)
		}
		fetcher = vault
	default:
		return nil, fmt.Errorf("unknown secret source: %s", source)
	}

	logger.Info("Secrets provider initialized",
		zap.String("source", string(source)),
		zap.String("environment", cfg.Environment),
		zap.Bool("cache_enabled", cfg.CacheEnabled),
	)
	return newProvider(source, fetcher, cfg.CacheEnabled, cfg.CacheTTL, logger), nil
}

func newProvider(source SecretSource, fetcher Fetcher, cacheEnabled bool, ttl time.Duration, logger *zap.Logger) *Provider {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Provider{
		source:       source,
		fetcher:      fetcher,
		logger:       logger,
		cacheEnabled: cacheEnabled,
		cacheTTL:     ttl,
		cache:        make(map[string]cachedSecret),
		now:          time.Now,
	}
}

// GetSecret retrieves a secret by name from the configured source
func (p *Provider) GetSecret(ctx context.Context, name string) (string, error) {
	if p.cacheEnabled {
		p.mu.Lock()
		cached, ok := p.cache[name]
		p.mu.Unlock()
		if ok && p.now().Before(cached.expiresAt) {
			return cached.value, nil
		}
	}

	value, err := p.fetcher.Fetch(ctx, name)
	if err != nil {
		return "", err
	}

	if p.cacheEnabled {
		p.mu.Lock()
		p.cache[name] = cachedSecret{value: value, expiresAt: p.now().Add(p.cacheTTL)}
		p.mu.Unlock()
	}
	return value, nil
}

// GetSecretOrEnv prefers an explicitly set environment variable over the
// configured source
func (p *Provider) GetSecretOrEnv(ctx context.Context, secretName, envName string) (string, error) {
	if envValue := os.Getenv(envName); envValue != "" {
		p.logger.Debug("Using environment variable override", zap.String("env_name", envName))
		return envValue, nil
	}
	return p.GetSecret(ctx, secretName)
}

// Source returns the current secret source
func (p *Provider) Source() SecretSource {
	return p.source
}
