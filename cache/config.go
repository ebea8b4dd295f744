package cache

import "fmt"

// Protocol selects the coherence protocol a Cache enforces.
type Protocol int

const (
	MSI Protocol = iota
	MESI
)

func (p Protocol) String() string {
	if p == MESI {
		return "MESI"
	}
	return "MSI"
}

// ReplacementPolicy selects which line a Cache evicts on a miss into a
// full set.
type ReplacementPolicy int

const (
	RR ReplacementPolicy = iota
	LRU
	MRU
)

func (p ReplacementPolicy) String() string {
	switch p {
	case RR:
		return "RR"
	case LRU:
		return "LRU"
	case MRU:
		return "MRU"
	default:
		return "unknown"
	}
}

// Config holds a Cache's construction-time parameters. Defaults match
// the reference simulator's documented parameter defaults.
type Config struct {
	// BlockSize is the cache line size in bytes. Default 64.
	BlockSize int
	// CacheSize is the total cache size in bytes. Default 16384.
	CacheSize int
	// Associativity is the number of ways per set. Default 4.
	Associativity int
	// ReplacementPolicy selects RR, LRU, or MRU. Default LRU.
	ReplacementPolicy ReplacementPolicy
	// Protocol selects MSI or MESI. Default MSI.
	Protocol Protocol
	// CacheID identifies this cache; it doubles as the pid used on
	// every event this cache originates.
	CacheID int
}

// DefaultConfig returns the parameter defaults documented for the
// cache component.
func DefaultConfig() Config {
	return Config{
		BlockSize:          64,
		CacheSize:          16384,
		Associativity:      4,
		ReplacementPolicy:  LRU,
		Protocol:           MSI,
		CacheID:            0,
	}
}

// NSets returns the number of sets implied by CacheSize, BlockSize, and
// Associativity.
func (c Config) NSets() int {
	if c.BlockSize <= 0 || c.Associativity <= 0 {
		return 0
	}
	return c.CacheSize / (c.BlockSize * c.Associativity)
}

// Validate reports a configuration error, fatal at initialization per
// the error taxonomy: an unknown policy/protocol or a geometry that
// does not divide evenly into a power-of-two number of sets.
func (c Config) Validate() error {
	if c.BlockSize <= 0 || c.BlockSize&(c.BlockSize-1) != 0 {
		return fmt.Errorf("cache: blockSize must be a positive power of two, got %d", c.BlockSize)
	}
	if c.Associativity <= 0 {
		return fmt.Errorf("cache: associativity must be positive, got %d", c.Associativity)
	}
	if c.CacheSize <= 0 || c.CacheSize%(c.BlockSize*c.Associativity) != 0 {
		return fmt.Errorf("cache: cacheSize %d is not a multiple of blockSize*associativity (%d)",
			c.CacheSize, c.BlockSize*c.Associativity)
	}
	nsets := c.NSets()
	if nsets <= 0 || nsets&(nsets-1) != 0 {
		return fmt.Errorf("cache: nsets (%d) must be a positive power of two", nsets)
	}
	if c.ReplacementPolicy != RR && c.ReplacementPolicy != LRU && c.ReplacementPolicy != MRU {
		return fmt.Errorf("cache: unknown replacement policy %d", c.ReplacementPolicy)
	}
	if c.Protocol != MSI && c.Protocol != MESI {
		return fmt.Errorf("cache: unknown protocol %d", c.Protocol)
	}
	return nil
}

// Statistics holds the four counters reported for a cache instance at
// shutdown.
type Statistics struct {
	Hits          uint64
	Misses        uint64
	Evictions     uint64
	Invalidations uint64
}
