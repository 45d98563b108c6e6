// Package auth keeps channel credentials fresh with the OAuth2 refresh flow.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/vinayprograms/synckit/clock"
	"github.com/vinayprograms/synckit/credentials"
)

// httpClient is a shared HTTP client with timeout for OAuth requests.
var httpClient = &http.Client{
	Timeout: 30 * time.Second,
}

// TokenResponse is returned from the token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorDesc    string `json:"error_description,omitempty"`
}

// RefreshError is returned when the token endpoint rejects a refresh.
type RefreshError struct {
	Code        string
	Description string
	StatusCode  int
}

func (e *RefreshError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("refresh failed: %s (status %d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("refresh failed: %s: %s", e.Code, e.Description)
}

// RefreshToken exchanges token's refresh token for a new access token.
// A nil client uses a shared client with a 30 second timeout.
func RefreshToken(ctx context.Context, client *http.Client, tokenURL, clientID string, token *credentials.OAuthToken, now time.Time) (*credentials.OAuthToken, error) {
	if token == nil || token.RefreshToken == "" {
		return nil, fmt.Errorf("no refresh token available")
	}
	if client == nil {
		client = httpClient
	}

	data := url.Values{}
	data.Set("client_id", clientID)
	data.Set("refresh_token", token.RefreshToken)
	data.Set("grant_type", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, "POST", tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse refresh response: %w", err)
	}

	if tokenResp.Error != "" {
		return nil, &RefreshError{Code: tokenResp.Error, Description: tokenResp.ErrorDesc, StatusCode: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK || tokenResp.AccessToken == "" {
		return nil, &RefreshError{Code: "invalid_response", StatusCode: resp.StatusCode}
	}

	newToken := &credentials.OAuthToken{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		ClientID:     clientID,
		Scopes:       token.Scopes,
	}

	// Keep old refresh token if new one not provided
	if newToken.RefreshToken == "" {
		newToken.RefreshToken = token.RefreshToken
	}

	if tokenResp.ExpiresIn > 0 {
		newToken.ExpiresAt = now.Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	}
	if tokenResp.Scope != "" {
		newToken.Scopes = strings.Split(tokenResp.Scope, " ")
	}

	return newToken, nil
}

// RefreshingProvider is a credentials.TokenProvider that refreshes its
// token through the OAuth2 token endpoint once it expires.
type RefreshingProvider struct {
	TokenURL string
	ClientID string

	// Client overrides the HTTP client.
	Client *http.Client

	// Clock decides expiry. Defaults to the real clock.
	Clock clock.Clock

	// OnRefresh is called with every newly issued token, for persisting it.
	OnRefresh func(*credentials.OAuthToken)

	mu    sync.Mutex
	token *credentials.OAuthToken
}

// NewRefreshingProvider creates a provider seeded with token.
func NewRefreshingProvider(tokenURL, clientID string, token *credentials.OAuthToken) *RefreshingProvider {
	return &RefreshingProvider{
		TokenURL: tokenURL,
		ClientID: clientID,
		token:    token,
	}
}

// Token returns the current access token, refreshing it first if it has
// expired. Concurrent callers share one refresh.
func (p *RefreshingProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	clk := p.Clock
	if clk == nil {
		clk = clock.Real()
	}
	now := clk.Now()

	if p.token != nil && p.token.AccessToken != "" && !p.token.IsExpired(now) {
		return p.token.AccessToken, nil
	}
	if p.token == nil || p.token.RefreshToken == "" {
		return "", credentials.ErrNoToken
	}

	fresh, err := RefreshToken(ctx, p.Client, p.TokenURL, p.ClientID, p.token, now)
	if err != nil {
		return "", err
	}
	p.token = fresh
	if p.OnRefresh != nil {
		p.OnRefresh(fresh)
	}
	return fresh.AccessToken, nil
}

// Current returns a copy of the held token.
func (p *RefreshingProvider) Current() *credentials.OAuthToken {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token == nil {
		return nil
	}
	tok := *p.token
	return &tok
}

var _ credentials.TokenProvider = (*RefreshingProvider)(nil)
