// Package main hosts the slayer CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into project
// file operations: creating and saving envelope files, packing combined
// metadata+document containers, inspecting and validating saved files,
// managing the local backup store, and running the foreground auto-save
// loop. It centralizes configuration resolution and logging setup so
// subcommands can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
