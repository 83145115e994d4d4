// Package project defines the in-memory data model shared by the codecs, the
// change tracker, and the persistence engine: the project graph of per-app
// data subtrees, the incremental backup record, and the Bridge contract to
// the editing host.
package project
