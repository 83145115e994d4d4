// Package engine orchestrates project persistence: explicit envelope and
// container saves, timer-driven incremental backups into the bounded local
// store, and loads that re-seed the change baseline. Saves move through a
// small lifecycle (collecting, encoding, writing) guarded so that explicit
// saves and auto-saves never interleave.
package engine
