package secrets

import (
	"context"
	"fmt"
	"strings"
	"sync"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig holds the connection parameters for the Vault server.
type VaultConfig struct {
	URL       string
	Token     string
	Namespace string
	// SkipVerify disables TLS certificate verification. The store
	// lives on an internal network with self-signed certificates.
	SkipVerify bool
}

// VaultResolver resolves credentials from Vault KV v2 secrets. A
// reference path has the form "{secret_engine}/{secret_name}"; the
// first segment is the mount point. Fetched secrets are cached for the
// lifetime of the resolver.
type VaultResolver struct {
	client *vault.Client

	mu    sync.Mutex
	cache map[string]map[string]interface{}
}

// NewVaultResolver connects a resolver to the configured Vault server.
func NewVaultResolver(cfg VaultConfig) (*VaultResolver, error) {
	vaultCfg := vault.DefaultConfig()
	vaultCfg.Address = cfg.URL
	if cfg.SkipVerify {
		if err := vaultCfg.ConfigureTLS(&vault.TLSConfig{Insecure: true}); err != nil {
			return nil, fmt.Errorf("configure vault tls: %w", err)
		}
	}

	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}
	client.SetToken(cfg.Token)
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}
	return &VaultResolver{
		client: client,
		cache:  make(map[string]map[string]interface{}),
	}, nil
}

// Fetch reads the KV v2 secret behind path and caches its data.
func (v *VaultResolver) Fetch(ctx context.Context, path string) error {
	mount, name, ok := strings.Cut(path, "/")
	if !ok || mount == "" || name == "" {
		return &NotFoundError{Path: path}
	}

	v.mu.Lock()
	_, cached := v.cache[path]
	v.mu.Unlock()
	if cached {
		return nil
	}

	secret, err := v.client.KVv2(mount).Get(ctx, name)
	if err != nil {
		return fmt.Errorf("can not retrieve secret for path %q: %w", path, err)
	}

	v.mu.Lock()
	v.cache[path] = secret.Data
	v.mu.Unlock()
	return nil
}

// Username returns the username field of a fetched secret.
func (v *VaultResolver) Username(path string) (string, error) {
	return v.field(path, "username")
}

// Password returns the password field of a fetched secret.
func (v *VaultResolver) Password(path string) (string, error) {
	return v.field(path, "password")
}

func (v *VaultResolver) field(path, field string) (string, error) {
	v.mu.Lock()
	data, ok := v.cache[path]
	v.mu.Unlock()
	if !ok {
		return "", &NotFoundError{Path: path}
	}
	value, ok := data[field].(string)
	if !ok {
		return "", &NotFoundError{Path: path, Field: field}
	}
	return value, nil
}
