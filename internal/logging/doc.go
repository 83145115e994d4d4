// Package logging centralizes slog construction and the structured attribute
// vocabulary used across the persistence engine.
//
// Loggers are built once from configuration (level, format, output paths) and
// passed down; components derive child loggers via NewComponentLogger so every
// record carries a stable component field. File outputs rotate via lumberjack
// so long-lived auto-save daemons cannot grow logs without bound.
package logging
