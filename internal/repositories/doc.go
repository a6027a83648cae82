// Package repositories implements SQLite persistence for the delivery ledger.
//
// Key Implementations:
//   - [RunRepository] : one row per download or retry invocation
//   - [DeliveryRepository] : one row per item outcome, with [DeliveryRepository.LatestFailed] feeding retries
//   - [Ledger] : records engine outcomes as they happen
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and
// creation timestamps. The [NextSequence] function atomically increments per-table sequence counters in
// dedicated sequence tables.
package repositories
