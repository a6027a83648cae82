package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotx/internal/services"
	"github.com/desertthunder/spotx/internal/shared"
)

// AuthLogin runs the interactive login, exchanges the token for reusable session credentials and caches them.
//
// When the proxy cannot be reached the bare access token is cached instead.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	authorizer := r.newAuthorizer()
	if authorizer == nil {
		return fmt.Errorf("%w: session.client_id is required for login", shared.ErrMissingConfig)
	}

	token, err := authorizer.Authorize(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}
	r.logger.Info("authorization successful")

	creds := &services.Credentials{AccessToken: token.AccessToken}
	session, err := services.Connect(ctx, r.config.Session.ProxyURL, creds, services.ConnectOptions{
		RequestsPerSecond: r.config.Session.RequestsPerSecond,
		HTTPClient:        r.httpClient,
	})
	if err != nil {
		r.logger.Warn("could not exchange token with the session proxy, caching the access token", "err", err)
	} else if reusable := session.ReusableCredentials(); reusable != nil {
		creds = reusable
	}

	cache := services.NewCredentialsCache(r.config.CredentialsPath())
	if err := cache.Save(creds); err != nil {
		return err
	}
	r.logger.Infof("credentials saved to %v", cache.Path())

	if creds.Username != "" {
		return r.writePlain("✓ Logged in as %s\n", creds.Username)
	}
	return r.writePlain("✓ Logged in\n")
}

// AuthStatus reports the cached credentials without contacting the proxy.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	cache := services.NewCredentialsCache(r.config.CredentialsPath())
	creds, err := cache.Load()
	if errors.Is(err, shared.ErrNoCredentials) {
		r.writePlain("✗ Not logged in\n")
		return r.writePlain("Run 'spotx auth login' or pass --access-token to download.\n")
	}
	if err != nil {
		return err
	}

	r.writePlain("Credentials: %s\n", cache.Path())
	if creds.Username != "" {
		r.writePlain("Username: %s\n", creds.Username)
	}
	if creds.Reusable() {
		return r.writePlain("Session: ✓ Reusable\n")
	}
	return r.writePlain("Session: access token only, connect once to cache reusable credentials\n")
}
