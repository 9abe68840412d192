package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
)

// ErrNoCredentials is returned when no credential source is configured and
// Application Default Credentials are disabled.
var ErrNoCredentials = errors.New("no Google credentials configured")

// Credentials describes where Google API tokens come from.
type Credentials struct {
	// ServiceAccountEmail and PrivateKey configure a service account directly.
	// PrivateKey may contain literal "\n" sequences, as is common when the
	// PEM block is stored in a single environment variable.
	ServiceAccountEmail string
	PrivateKey          string

	// Subject is the user to impersonate with domain-wide delegation.
	Subject string

	// CredentialsFile is a path to a service account or authorized user JSON
	// file.
	CredentialsFile string

	// UseDefault enables Application Default Credentials as a last resort.
	UseDefault bool
}

// HasServiceAccount reports whether an inline service account is configured.
func (c Credentials) HasServiceAccount() bool {
	return c.ServiceAccountEmail != "" && c.PrivateKey != ""
}

// NormalizePrivateKey turns escaped newlines back into real ones.
func NormalizePrivateKey(key string) string {
	return strings.ReplaceAll(key, `\n`, "\n")
}

// TokenSource returns a token source for the given scopes using the first
// configured credential source.
func (c Credentials) TokenSource(ctx context.Context, scopes ...string) (oauth2.TokenSource, error) {
	if len(scopes) == 0 {
		scopes = CalendarScopes
	}

	switch {
	case c.HasServiceAccount():
		return c.serviceAccountTokenSource(ctx, scopes), nil

	case c.CredentialsFile != "":
		data, err := os.ReadFile(c.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, scopes...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse credentials file %s: %w", c.CredentialsFile, err)
		}
		return creds.TokenSource, nil

	case c.UseDefault:
		ts, err := google.DefaultTokenSource(ctx, scopes...)
		if err != nil {
			return nil, fmt.Errorf("failed to find default credentials: %w", err)
		}
		return ts, nil
	}

	if c.ServiceAccountEmail != "" || c.PrivateKey != "" {
		return nil, fmt.Errorf("%w: service account needs both email and private key", ErrNoCredentials)
	}
	return nil, ErrNoCredentials
}

func (c Credentials) serviceAccountTokenSource(ctx context.Context, scopes []string) oauth2.TokenSource {
	conf := &jwt.Config{
		Email:      c.ServiceAccountEmail,
		PrivateKey: []byte(NormalizePrivateKey(c.PrivateKey)),
		Scopes:     scopes,
		TokenURL:   google.JWTTokenURL,
		Subject:    c.Subject,
	}
	return conf.TokenSource(ctx)
}

// HTTPClient returns an authenticated HTTP client for ts.
// The client is configured to use HTTP/1.1 to avoid HTTP/2 protocol errors
func HTTPClient(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	client := oauth2.NewClient(ctx, ts)

	// Force HTTP/1.1 by disabling HTTP/2
	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			ForceAttemptHTTP2: false,
		}
	}

	return client
}
