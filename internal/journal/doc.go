// Package journal provides a SQLite-backed audit log of router events.
//
// Each router run is recorded under its run token:
//   - runs: one row per router instance (token, label, policy)
//   - events: every router event in logical seq order
//
// The journal is write-only from the router's point of view. It is never
// used to restore pending submissions; a restarted process starts with an
// empty queue.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads while a run is being written
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait on lock contention
//   - foreign_keys=ON: events must belong to a recorded run
package journal
