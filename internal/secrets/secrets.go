// Package secrets resolves endpoint credentials from a secret store.
// The transfer core only ever consumes a username/password pair per
// logical endpoint; where those pairs live is this package's concern.
package secrets

import (
	"context"
	"fmt"
)

// Credentials is a resolved username/password pair.
type Credentials struct {
	Username string
	Password string
}

// Resolver fetches secrets by an opaque reference path and exposes the
// credential fields stored under it.
type Resolver interface {
	// Fetch loads the secret behind path into the resolver. Fetching
	// an already-loaded path is a no-op.
	Fetch(ctx context.Context, path string) error
	// Username returns the username field of a fetched secret.
	Username(path string) (string, error)
	// Password returns the password field of a fetched secret.
	Password(path string) (string, error)
}

// NotFoundError reports an unknown secret path or a fetched secret
// missing a requested field.
type NotFoundError struct {
	Path  string
	Field string
}

func (e *NotFoundError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("secret not found: %q", e.Path)
	}
	return fmt.Sprintf("secret %q has no field %q", e.Path, e.Field)
}

// Resolve fetches path and returns both credential fields.
func Resolve(ctx context.Context, r Resolver, path string) (Credentials, error) {
	if err := r.Fetch(ctx, path); err != nil {
		return Credentials{}, err
	}
	username, err := r.Username(path)
	if err != nil {
		return Credentials{}, err
	}
	password, err := r.Password(path)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{Username: username, Password: password}, nil
}
