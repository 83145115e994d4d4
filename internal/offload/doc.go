// Package offload runs CPU-heavy serialize and compress work on a background
// goroutine so interactive hosts stay responsive.
//
// The channel owns one worker. Requests carry monotonic ids for correlation,
// handlers stream progress to registered callbacks, and a worker failure
// flips the channel into a permanent inline-execution mode that produces
// byte-identical results. The worker is never re-spawned within a session.
package offload
