package router

import "github.com/google/uuid"

// TokenGenerator produces the run token a router stamps on its logs,
// events and spans. Implemented by UUIDv7Generator and, in tests,
// testutil.FixedGenerator.
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run tokens.
//
// Journals keyed by run token list in creation order without a separate
// timestamp column.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails.
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
