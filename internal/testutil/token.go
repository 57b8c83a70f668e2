// Package testutil holds deterministic stand-ins used by tests and the
// scenario harness.
package testutil

// DefaultRunToken is returned by a FixedGenerator created with an empty
// token.
const DefaultRunToken = "test-run-default"

// FixedGenerator generates the same run token every time.
//
// The same scenario run with the same FixedGenerator produces byte-identical
// traces and journals.
//
// Thread-safety: FixedGenerator is stateless and safe for concurrent use.
type FixedGenerator struct {
	token string
}

// NewFixedGenerator creates a generator for token.
//
// The token is typically set in the scenario YAML:
//
//	run_token: "run-fifo"
//
// If token is empty, Generate returns DefaultRunToken.
func NewFixedGenerator(token string) *FixedGenerator {
	if token == "" {
		token = DefaultRunToken
	}
	return &FixedGenerator{token: token}
}

// Generate returns the fixed run token.
//
// Implements router.TokenGenerator.
func (g *FixedGenerator) Generate() string {
	return g.token
}
