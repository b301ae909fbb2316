// Package storage persists events, occurrences, delivery records and
// team/user bookkeeping. All operations are per-row, keyed writes; the
// pipeline's idempotency rests on the unique (event_id, year) occurrence
// claim and on replace-by-id updates.
package storage
