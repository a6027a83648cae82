// Package services defines the [Session] interface the pipeline reads catalog metadata and
// audio streams through, and implements it on top of the session proxy.
//
// # Session Proxy
//
// [ProxySession] speaks JSON over HTTP to a proxy that owns the streaming-service protocol:
//   - POST /session/connect exchanges credentials for a session token and reusable auth data
//   - GET /metadata/{track|episode|album|playlist|show}/{id} returns catalog records
//   - GET /audio/key?item=&file= returns the hex audio key of one stream file
//   - GET /audio/file/{file_id} streams the encrypted file
//
// Every request after connect carries the session token as a Bearer header and passes
// through a [rate.Limiter]. Stream files are decrypted locally with [DecryptStream].
//
// # Credentials
//
// [Providers] builds an ordered chain of [CredentialProvider] values from the command-line
// flags, and [ResolveCredentials] walks it. A provider that has nothing to offer defers with
// [shared.ErrNoCredentials]. Reusable credentials returned by connect are written back to the
// [CredentialsCache].
//
// # Error Handling
//
//   - [shared.ErrConnectionFailed] : connect failed; fatal to a run
//   - [shared.ErrNotFound] : the proxy answered 404
//   - [shared.ErrAPIRequest] : any other failed request
package services
