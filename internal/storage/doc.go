// Package storage persists per-shipment tracking state.
//
// Drivers:
//   - "file": one JSON object, replaced atomically (write tmp, fsync, rename)
//   - "sqlite": SQLite database, one transaction per save
//
// Load never fails on a missing or corrupt backing store; it returns empty state.
package storage
