// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels, and carries run-scoped loggers through context.Context so
// that every line written during one consumer or dispatcher run shares its run_id.
package logger
