package secrets

import "context"

// Static resolves credentials from an in-memory map. It backs tests
// and local runs without a Vault server.
type Static struct {
	Secrets map[string]Credentials
}

// Fetch reports whether the path is known; nothing needs loading.
func (s *Static) Fetch(_ context.Context, path string) error {
	if _, ok := s.Secrets[path]; !ok {
		return &NotFoundError{Path: path}
	}
	return nil
}

// Username returns the stored username for path.
func (s *Static) Username(path string) (string, error) {
	creds, ok := s.Secrets[path]
	if !ok {
		return "", &NotFoundError{Path: path}
	}
	return creds.Username, nil
}

// Password returns the stored password for path.
func (s *Static) Password(path string) (string, error) {
	creds, ok := s.Secrets[path]
	if !ok {
		return "", &NotFoundError{Path: path}
	}
	return creds.Password, nil
}
