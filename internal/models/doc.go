// Package models defines domain entities and persistence interfaces for spotx.
//
// The package contains two categories of types:
//
// 1. Pipeline values: lightweight structs passed between the parser, queue, acquirer and sink
//   - [Link] : a parsed input link (kind + base62 id)
//   - [QueueEntry] : one leaf item waiting in the resolution queue
//   - [AudioItem] : resolved metadata for a track or episode
//   - [Track], [Episode], [Album], [Playlist], [Show] : session metadata records
//
// 2. Persistent entities: database-backed records of what each run did
//   - [Run] : one invocation of the download pipeline
//   - [Delivery] : the outcome of one item within a run
//
// All persistent entities implement the Model interface providing ID generation, timestamps and validation.
// The Repository[T] interface defines standard data access operations.
package models
