package credentials

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"
)

// ErrNoToken is returned by a provider that has nothing to offer.
var ErrNoToken = errors.New("no token available")

// expirySkew treats tokens as expired slightly before their deadline.
const expirySkew = 30 * time.Second

// TokenProvider supplies the credential presented after every connect.
// Implementations are asked on each attempt and may refresh.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenProvider.
type TokenFunc func(ctx context.Context) (string, error)

// Token implements TokenProvider.
func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticToken is a fixed token.
type StaticToken string

// Token implements TokenProvider.
func (s StaticToken) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// EnvToken reads the named environment variable on every call.
type EnvToken string

// Token implements TokenProvider.
func (e EnvToken) Token(ctx context.Context) (string, error) {
	tok := strings.TrimSpace(os.Getenv(string(e)))
	if tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}

// FileTokenProvider reads the token for Name from a credentials file on
// every call, so rotated tokens are picked up without a restart.
type FileTokenProvider struct {
	// Path of the credentials file. Empty searches StandardPaths.
	Path string

	// Name selects the section. Empty uses [realtime].
	Name string
}

// Token implements TokenProvider.
func (p FileTokenProvider) Token(ctx context.Context) (string, error) {
	var (
		creds *Credentials
		err   error
	)
	if p.Path != "" {
		creds, err = LoadFile(p.Path)
	} else {
		creds, _, err = Load()
	}
	if err != nil {
		return "", err
	}
	tok := creds.GetToken(p.Name)
	if tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}

// OAuthToken is an access token with optional refresh material.
type OAuthToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	ClientID     string    `json:"client_id,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// IsExpired reports whether the token is past, or about to pass, its
// expiry at now. Tokens without an expiry never expire.
func (t *OAuthToken) IsExpired(now time.Time) bool {
	if t == nil {
		return true
	}
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(expirySkew).Before(t.ExpiresAt)
}

// IsValid reports whether the token can be used right now.
func (t *OAuthToken) IsValid() bool {
	return t != nil && t.AccessToken != "" && !t.IsExpired(time.Now())
}
