package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultAPIURL = "http://localhost:8080"
	tokenFileName = ".auditsearch_token"
)

// ErrNoToken is returned when no login token has been saved.
var ErrNoToken = errors.New("not logged in: run 'auditsearch login' first")

// APIURL returns the base URL of the audit API.
// It can be overridden with the AUDIT_API_URL environment variable.
func APIURL() string {
	if v := os.Getenv("AUDIT_API_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return defaultAPIURL
}

// TokenPath is where the login token is stored. AUDIT_TOKEN_FILE overrides
// the default of ~/.auditsearch_token.
func TokenPath() (string, error) {
	if v := os.Getenv("AUDIT_TOKEN_FILE"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, tokenFileName), nil
}

// SaveToken writes the token readable by the current user only.
func SaveToken(token string) error {
	path, err := TokenPath()
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token), 0o600)
}

// ReadToken returns the saved token.
func ReadToken() (string, error) {
	path, err := TokenPath()
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(b))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// ClearToken removes the saved token. A missing file is not an error.
func ClearToken() error {
	path, err := TokenPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
