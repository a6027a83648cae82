package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/spotx/internal/shared"
)

// CredentialsCache persists reusable credentials as JSON in a single file.
type CredentialsCache struct {
	path string
}

// NewCredentialsCache creates a cache backed by path (normally <cache_dir>/credentials.json).
func NewCredentialsCache(path string) *CredentialsCache {
	return &CredentialsCache{path: path}
}

// Path returns the cache file location.
func (c *CredentialsCache) Path() string { return c.path }

// Load reads the cached credentials, returning [shared.ErrNoCredentials] when none are stored.
func (c *CredentialsCache) Load() (*Credentials, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, shared.ErrNoCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials cache: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("%w: corrupt credentials cache: %w", shared.ErrInvalidCredentials, err)
	}
	if creds.AccessToken == "" && len(creds.AuthData) == 0 {
		return nil, shared.ErrNoCredentials
	}
	return &creds, nil
}

// Save writes creds with owner-only permissions, creating the cache directory.
func (c *CredentialsCache) Save(creds *Credentials) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	return shared.WriteJSONFile(c.path, creds, 0o600)
}

// CredentialProvider yields credentials or defers with [shared.ErrNoCredentials].
type CredentialProvider interface {
	Name() string
	Credentials(ctx context.Context) (*Credentials, error)
}

// AccessTokenProvider uses a token given on the command line or in the environment.
type AccessTokenProvider struct {
	Token string
}

func (p AccessTokenProvider) Name() string { return "access-token" }

func (p AccessTokenProvider) Credentials(context.Context) (*Credentials, error) {
	if p.Token == "" {
		return nil, shared.ErrNoCredentials
	}
	return &Credentials{AccessToken: p.Token}, nil
}

// CachedProvider returns cached credentials, optionally only those of Username.
type CachedProvider struct {
	Cache    *CredentialsCache
	Username string
}

func (p CachedProvider) Name() string { return "cached" }

func (p CachedProvider) Credentials(context.Context) (*Credentials, error) {
	creds, err := p.Cache.Load()
	if err != nil {
		return nil, err
	}
	if p.Username != "" && creds.Username != p.Username {
		return nil, fmt.Errorf("%w: no cached credentials for %s", shared.ErrNoCredentials, p.Username)
	}
	return creds, nil
}

// Authorizer runs an interactive OAuth authorization.
type Authorizer interface {
	Authorize(ctx context.Context) (*oauth2.Token, error)
}

// OAuthProvider obtains a fresh access token through an [Authorizer].
type OAuthProvider struct {
	Authorizer Authorizer
}

func (p OAuthProvider) Name() string { return "oauth" }

func (p OAuthProvider) Credentials(ctx context.Context) (*Credentials, error) {
	token, err := p.Authorizer.Authorize(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}
	return &Credentials{AccessToken: token.AccessToken}, nil
}

// ResolveCredentials tries providers in order and returns the first credentials found.
//
// Providers that defer are logged and skipped; any other error stops the search.
func ResolveCredentials(ctx context.Context, logger *log.Logger, providers ...CredentialProvider) (*Credentials, error) {
	for _, p := range providers {
		creds, err := p.Credentials(ctx)
		if errors.Is(err, shared.ErrNoCredentials) {
			logger.Debug("credential provider deferred", "provider", p.Name(), "err", err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s credentials: %w", p.Name(), err)
		}
		logger.Debug("using credentials", "provider", p.Name(), "username", creds.Username)
		return creds, nil
	}
	return nil, shared.ErrMissingCredentials
}

// ProviderOptions select the credential chain.
type ProviderOptions struct {
	AccessToken string
	Username    string
	// UsernameSet distinguishes "-u ''" from an absent flag.
	UsernameSet    bool
	AccessTokenSet bool
	Cache          *CredentialsCache
	Authorizer     Authorizer
}

// Providers builds the ordered credential chain:
//
//   - an access token when one was given;
//   - otherwise cached credentials of the given username;
//   - otherwise any cached credentials, then interactive OAuth.
//
// An explicitly empty token or username is an [shared.ErrInvalidArgument].
func Providers(opts ProviderOptions) ([]CredentialProvider, error) {
	if opts.AccessTokenSet && opts.AccessToken == "" {
		return nil, fmt.Errorf("%w: access token must not be empty", shared.ErrInvalidArgument)
	}
	if opts.UsernameSet && opts.Username == "" {
		return nil, fmt.Errorf("%w: username must not be empty", shared.ErrInvalidArgument)
	}

	switch {
	case opts.AccessToken != "":
		return []CredentialProvider{AccessTokenProvider{Token: opts.AccessToken}}, nil
	case opts.Username != "":
		return []CredentialProvider{CachedProvider{Cache: opts.Cache, Username: opts.Username}}, nil
	default:
		providers := []CredentialProvider{CachedProvider{Cache: opts.Cache}}
		if opts.Authorizer != nil {
			providers = append(providers, OAuthProvider{Authorizer: opts.Authorizer})
		}
		return providers, nil
	}
}
