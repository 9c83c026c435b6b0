package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	resolver := &Static{Secrets: map[string]Credentials{
		"kv2/remote-server": {Username: "transfer", Password: "hunter2"},
	}}

	creds, err := Resolve(context.Background(), resolver, "kv2/remote-server")
	require.NoError(t, err)
	assert.Equal(t, Credentials{Username: "transfer", Password: "hunter2"}, creds)
}

func TestResolveUnknownPath(t *testing.T) {
	resolver := &Static{Secrets: map[string]Credentials{}}

	_, err := Resolve(context.Background(), resolver, "kv2/nope")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "kv2/nope", notFound.Path)
}

func TestVaultResolverMalformedPath(t *testing.T) {
	resolver, err := NewVaultResolver(VaultConfig{URL: "https://vault.example.org", Token: "t"})
	require.NoError(t, err)

	var notFound *NotFoundError
	assert.ErrorAs(t, resolver.Fetch(context.Background(), "no-mount-separator"), &notFound)
	assert.ErrorAs(t, resolver.Fetch(context.Background(), "/name-only"), &notFound)
	assert.ErrorAs(t, resolver.Fetch(context.Background(), "mount-only/"), &notFound)
}

func TestVaultResolverFieldBeforeFetch(t *testing.T) {
	resolver, err := NewVaultResolver(VaultConfig{URL: "https://vault.example.org", Token: "t"})
	require.NoError(t, err)

	_, err = resolver.Username("kv2/never-fetched")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestVaultResolverFieldFromCache(t *testing.T) {
	resolver, err := NewVaultResolver(VaultConfig{URL: "https://vault.example.org", Token: "t"})
	require.NoError(t, err)
	resolver.cache["kv2/remote"] = map[string]interface{}{
		"username": "transfer",
		"password": "hunter2",
	}

	username, err := resolver.Username("kv2/remote")
	require.NoError(t, err)
	assert.Equal(t, "transfer", username)

	password, err := resolver.Password("kv2/remote")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", password)

	_, err = resolver.field("kv2/remote", "token")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "token", notFound.Field)
}
