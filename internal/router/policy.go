package router

import (
	"fmt"
	"strings"
)

// StateLossPolicy decides what happens when the host refuses a mutation
// because it cannot accept one right now.
type StateLossPolicy int

const (
	// PolicyPostpone gates the worker on the host's resume signal. A refused entry
	// stays at the head and is retried on the next resumed transition.
	PolicyPostpone StateLossPolicy = iota
	// PolicyIgnore resolves the refused entry with false and moves on.
	PolicyIgnore
	// PolicyError fails the refused entry and stops the worker.
	PolicyError
)

// String returns the lowercase policy name.
func (p StateLossPolicy) String() string {
	switch p {
	case PolicyPostpone:
		return "postpone"
	case PolicyIgnore:
		return "ignore"
	case PolicyError:
		return "error"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy maps a policy name (case-insensitive) to a StateLossPolicy.
func ParsePolicy(s string) (StateLossPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postpone":
		return PolicyPostpone, nil
	case "ignore":
		return PolicyIgnore, nil
	case "error":
		return PolicyError, nil
	default:
		return 0, fmt.Errorf("unknown state-loss policy %q (expected postpone, ignore or error)", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler so policies can be read
// from environment variables and YAML.
func (p *StateLossPolicy) UnmarshalText(text []byte) error {
	v, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (p StateLossPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
