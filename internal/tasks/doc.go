// Package tasks runs the per-item delivery pipeline over a resolved queue.
//
// # Pipeline
//
// For every [models.QueueEntry], in queue order, the [Engine]:
//
//  1. Ensures the item directory exists under the output directory
//  2. Resolves the item with the [Acquirer]
//     - Fetches the metadata record and falls back to an available alternative for tracks
//     - Picks the stream encoding: OGG Vorbis 320, then 160, then 96
//     - Picks the first cover image
//  3. Skips the item when its destination file already exists
//  4. Fetches the audio key and encrypted stream, decrypts it and strips the container header
//  5. Hands the payload to a [Sink]: [DirectSink] or [HelperSink]
//  6. Sleeps the pacing interval before the next item
//
// # Error Handling
//
// Every per-item failure is logged with the item identity, passed to the [Recorder] and turned into
// "continue". Failures are classified with errors.Is against the sentinels in package shared:
//   - [shared.ErrUnavailable] : metadata missing, or no available alternative
//   - [shared.ErrNoUsableEncoding] : no OGG Vorbis stream file
//   - [shared.ErrNoCoverArt] : helper delivery without a cover image
//   - [shared.ErrAcquisitionFailed] : key, stream or decryption failure
//   - [shared.ErrHelperFailed] : the helper exited non-zero; see [HelperError]
//
// # Progress Reporting
//
// The [Engine] emits [ProgressUpdate] values on an optional channel. Sends use select with default so a
// slow reader never stalls a run.
package tasks
