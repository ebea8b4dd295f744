// Package arbiter grants bus access to caches, at most
// Config.MaxBusTransactions at a time (one by default), using either
// FIFO or round-robin ordering among outstanding requests.
package arbiter

import "fmt"

// Policy selects how the arbiter orders outstanding bus requests.
type Policy int

const (
	// FIFO grants the bus in request order.
	FIFO Policy = iota
	// RoundRobin grants the bus fairly across processors, resuming the
	// search for the next requester from just after the last grantee.
	RoundRobin
)

func (p Policy) String() string {
	if p == RoundRobin {
		return "round-robin"
	}
	return "fifo"
}

// Config holds an Arbiter's construction-time parameters.
type Config struct {
	// Policy selects FIFO or RoundRobin. Default FIFO.
	Policy Policy
	// NumProcessors bounds the pid space the arbiter will accept
	// requests from; required, no default.
	NumProcessors int
	// MaxBusTransactions caps how many grants may be live at once.
	// Default 1.
	MaxBusTransactions int
}

// DefaultConfig returns FIFO arbitration for the given processor count,
// with at most one grant live at a time.
func DefaultConfig(numProcessors int) Config {
	return Config{Policy: FIFO, NumProcessors: numProcessors, MaxBusTransactions: 1}
}

// Validate reports a configuration error: an unknown policy or a
// non-positive processor count or transaction cap.
func (c Config) Validate() error {
	if c.NumProcessors <= 0 {
		return fmt.Errorf("arbiter: numProcessors must be positive, got %d", c.NumProcessors)
	}
	if c.Policy != FIFO && c.Policy != RoundRobin {
		return fmt.Errorf("arbiter: unknown policy %d", c.Policy)
	}
	if c.MaxBusTransactions <= 0 {
		return fmt.Errorf("arbiter: maxBusTransactions must be positive, got %d", c.MaxBusTransactions)
	}
	return nil
}

// Statistics holds the counters reported for an arbiter instance at
// shutdown: GrantsByPid[pid] accumulates how many times each processor
// was granted the bus.
type Statistics struct {
	GrantsByPid []uint64
}
