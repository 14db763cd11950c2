// Package logx configures shipwatch's structured logging.
//
// Logger is a small value type on top of zerolog that keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//
// The zero Logger is a safe no-op.
package logx
