// Package credentials loads channel tokens from standard locations.
package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrInsecurePermissions is returned when credentials file has overly permissive permissions.
var ErrInsecurePermissions = fmt.Errorf("credentials file has insecure permissions")

// DefaultSection is the section used when an endpoint has none of its own.
const DefaultSection = "realtime"

// Credentials holds tokens loaded from credentials.toml, one section per
// endpoint name:
//
//	[realtime]
//	token = "..."
//
//	[dashboard]
//	token = "..."
//	refresh_token = "..."
//	token_url = "https://auth.example.com/oauth/token"
//	client_id = "synckit"
type Credentials struct {
	sections map[string]*Section
}

// Section holds credentials for a single endpoint.
type Section struct {
	Token        string    `toml:"token"`
	RefreshToken string    `toml:"refresh_token"`
	TokenURL     string    `toml:"token_url"`
	ClientID     string    `toml:"client_id"`
	ExpiresAt    time.Time `toml:"expires_at"`
}

// OAuthToken returns the section as an OAuth token.
func (s *Section) OAuthToken() *OAuthToken {
	if s == nil {
		return nil
	}
	return &OAuthToken{
		AccessToken:  s.Token,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
		ClientID:     s.ClientID,
	}
}

// StandardPaths returns the standard credential file locations in order of priority
func StandardPaths() []string {
	paths := []string{}

	// 1. Current directory
	paths = append(paths, "credentials.toml")

	// 2. ~/.config/synckit/credentials.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "synckit", "credentials.toml"))
	}

	// 3. ~/.synckit/credentials.toml (fallback)
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".synckit", "credentials.toml"))
	}

	return paths
}

// Load loads credentials from the first available standard location
func Load() (*Credentials, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			creds, err := LoadFile(path)
			if err != nil {
				return nil, path, err
			}
			return creds, path, nil
		}
	}
	return nil, "", nil // No credentials file found (not an error)
}

// LoadFile loads credentials from a specific file.
// Returns ErrInsecurePermissions if file is readable by group or others.
func LoadFile(path string) (*Credentials, error) {
	if err := checkPermissions(path); err != nil {
		return nil, err
	}

	var raw map[string]*Section
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, err
	}

	creds := &Credentials{sections: make(map[string]*Section)}
	for name, section := range raw {
		if section == nil || section.Token == "" && section.RefreshToken == "" {
			continue
		}
		creds.sections[normalize(name)] = section
	}
	return creds, nil
}

func checkPermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	mode := info.Mode().Perm()
	// Credentials must be 0400 (owner read-only)
	if mode != 0400 {
		return fmt.Errorf("%w: %s has mode %04o (must be 0400)",
			ErrInsecurePermissions, path, mode)
	}
	return nil
}

// Section returns the section for name, falling back to [realtime].
func (c *Credentials) Section(name string) *Section {
	if c == nil {
		return nil
	}
	if s, ok := c.sections[normalize(name)]; ok {
		return s
	}
	return c.sections[DefaultSection]
}

// GetToken returns the token for an endpoint.
// Priority: [name] section > [realtime] section > environment variable
func (c *Credentials) GetToken(name string) string {
	if s := c.Section(name); s != nil && s.Token != "" {
		return s.Token
	}
	if tok := os.Getenv(EnvVarFor(name)); tok != "" {
		return tok
	}
	return os.Getenv(EnvVarFor(""))
}

// EnvVarFor returns the environment variable holding the token for an
// endpoint: SYNCKIT_<NAME>_TOKEN, or SYNCKIT_TOKEN for an empty name.
func EnvVarFor(name string) string {
	if name == "" || normalize(name) == DefaultSection {
		return "SYNCKIT_TOKEN"
	}
	return "SYNCKIT_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_TOKEN"
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
