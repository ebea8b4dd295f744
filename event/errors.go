package event

import "fmt"

// CoherenceError reports a model bug: an invariant violation or an
// unexpected event kind reaching a handler that cannot make sense of
// it. It is distinct from an ordinary configuration error so callers
// can tell "this run's parameters were invalid" apart from "the model
// itself reached an impossible state" with errors.As.
type CoherenceError struct {
	// Component names the subsystem that detected the violation, e.g.
	// "cache", "bus", "arbiter".
	Component string
	// CacheID identifies the offending cache, or -1 if not applicable.
	CacheID int
	// Invariant is a short, human-readable description of what was
	// violated.
	Invariant string
}

func (e *CoherenceError) Error() string {
	if e.CacheID >= 0 {
		return fmt.Sprintf("%s[%d]: invariant violated: %s", e.Component, e.CacheID, e.Invariant)
	}
	return fmt.Sprintf("%s: invariant violated: %s", e.Component, e.Invariant)
}
