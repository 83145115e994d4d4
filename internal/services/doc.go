// Package services defines shared utilities consumed by the persistence
// engine, the codecs, and the offload channel.
//
// Key responsibilities:
//   - Context helpers that stamp project IDs, save phases, and offload
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into recoverable (handled by a local fallback) and terminal ones.
//
// Use these helpers when wiring new save logic so operational behaviour
// (error handling, observability, fallbacks) stays uniform across the engine.
package services
