// Package server provides the local HTTP surface used by interactive OAuth login.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [ChiRouter] implements it on top of a chi mux; [Middleware] values are applied in the order they are added.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the authorization code callback with PKCE.
//
// The handler validates the state parameter, exchanges the code together with the PKCE verifier,
// and sends the result through a channel. It only processes one callback.
//
// # Login Flow
//
// [OAuthFlow] ties the pieces together: it serves the handler on the redirect URI's host and path
// (http://127.0.0.1:1234/login by default), opens the browser at the authorization URL, waits for the
// callback or a timeout, and shuts the server down. It satisfies services.Authorizer.
package server
