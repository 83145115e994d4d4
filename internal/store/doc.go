// Package store persists incremental backup records in a quota-bounded
// SQLite key/value table.
//
// Every successful write records a timestamp companion under
// "<key>_timestamp" so external callers can check freshness without parsing
// payloads. Over-quota payloads are skipped whole, and any storage failure
// degrades the store to a logged no-op: background persistence must never
// interrupt interactive editing.
package store
