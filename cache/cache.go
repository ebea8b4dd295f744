// Package cache implements the MSI/MESI cache controller: hit/miss
// dispatch, outstanding-request coalescing, and the replacement
// policies (RR, LRU, MRU). It is the coherence engine's largest and
// most intricate component — the bus and arbiter only move bytes
// between caches; this package decides what those bytes mean.
package cache

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/cohsim/cacheline"
	"github.com/sarchlab/cohsim/event"
)

// Result collects the side effects of feeding one event into a Cache:
// zero or more completions to deliver back to this cache's generator,
// an optional Acquire (send to the arbiter to request the bus) and an
// optional Release (send to the arbiter once the bus is no longer
// needed). OnBusCompletion may set both: it releases the bus and, if
// a locally-queued op it retries needs a new transaction, acquires it
// again.
type Result struct {
	Completions []event.Completion
	Acquire     *event.ArbEvent
	Release     *event.ArbEvent
}

type procOp struct {
	kind event.Kind // Read or Write
	addr uint64
}

// outstandingEntry is the one bus transaction this cache may have in
// flight at a time. primary and every aliased processor op that
// coalesced behind it complete together when the transaction resolves.
type outstandingEntry struct {
	request event.BusEvent
	ops     []procOp
}

// Cache implements one processor's private cache.
type Cache struct {
	cfg       Config
	log       logr.Logger
	blockBits uint
	nsets     int

	sets      []cacheline.Set
	rrCounter []int
	timestamp uint64

	// outstanding is nil unless a bus transaction issued by this cache
	// is in flight; its presence is exactly the "blocked" flag of the
	// reference model; there is never more than one at a time.
	outstanding  *outstandingEntry
	requestQueue []event.BusEvent
	pending      []procOp

	txCounter uint64
	stats     Statistics
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithLogger overrides the default logr.Logger.
func WithLogger(l logr.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// New constructs a Cache, validating cfg first.
func New(cfg Config, opts ...Option) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	nsets := cfg.NSets()
	c := &Cache{
		cfg:       cfg,
		log:       event.NewDefaultLogger(),
		blockBits: cacheline.Log2(cfg.BlockSize),
		nsets:     nsets,
		sets:      make([]cacheline.Set, nsets),
		rrCounter: make([]int, nsets),
	}
	for i := range c.sets {
		c.sets[i] = make(cacheline.Set, cfg.Associativity)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Stats returns the four reported counters.
func (c *Cache) Stats() Statistics { return c.stats }

// Blocked reports whether a bus transaction issued by this cache is
// currently in flight.
func (c *Cache) Blocked() bool { return c.outstanding != nil }

// PendingCount reports how many processor ops are queued locally,
// waiting for the in-flight transaction to free the cache up.
func (c *Cache) PendingCount() int { return len(c.pending) }

func (c *Cache) fatalf(format string, args ...any) error {
	err := &event.CoherenceError{
		Component: "cache",
		CacheID:   c.cfg.CacheID,
		Invariant: fmt.Sprintf(format, args...),
	}
	c.log.Error(err, "cache invariant violated", "cacheID", c.cfg.CacheID)
	return err
}

func (c *Cache) completion(kind event.Kind, addr uint64) event.Completion {
	return event.Completion{Kind: kind, Addr: addr, Pid: c.cfg.CacheID}
}

func (c *Cache) setIndex(addr uint64) uint64 {
	return cacheline.Address(addr).SetIndex(c.blockBits, uint64(c.nsets))
}

func (c *Cache) blockAddress(addr uint64) uint64 {
	return cacheline.Address(addr).BlockAddress(c.blockBits)
}

// OnProcessorOp handles a read or write issued by this cache's
// generator. kind must be event.Read or event.Write.
func (c *Cache) OnProcessorOp(kind event.Kind, addr uint64) (Result, error) {
	if !kind.IsProcessorOp() {
		return Result{}, c.fatalf("OnProcessorOp given non-processor kind %v", kind)
	}
	c.timestamp++
	return c.dispatch(kind, addr)
}

// dispatch implements the hit/miss x read/write x protocol table of
// the coherence engine. It is also used to retry a processor op that
// had been queued locally behind a since-resolved transaction.
func (c *Cache) dispatch(kind event.Kind, addr uint64) (Result, error) {
	blockAddr := c.blockAddress(addr)
	setIdx := c.setIndex(addr)
	set := c.sets[setIdx]
	idx := set.Lookup(blockAddr)

	if idx >= 0 {
		line := &set[idx]
		if !line.Valid || line.State == cacheline.I {
			// Set.Lookup already excludes invalid lines, so reaching
			// here means a line went stale without being evicted: a
			// model bug, not a legitimate hit.
			return Result{}, c.fatalf("hit reported against invalid line for block %#x", blockAddr)
		}
		switch kind {
		case event.Read:
			c.stats.Hits++
			line.Timestamp = c.timestamp
			return Result{Completions: []event.Completion{c.completion(kind, addr)}}, nil
		case event.Write:
			switch line.State {
			case cacheline.M:
				c.stats.Hits++
				line.Timestamp = c.timestamp
				return Result{Completions: []event.Completion{c.completion(kind, addr)}}, nil
			case cacheline.E:
				// MESI silent upgrade: no bus transaction.
				c.stats.Hits++
				line.State = cacheline.M
				line.Dirty = true
				line.Timestamp = c.timestamp
				return Result{Completions: []event.Completion{c.completion(kind, addr)}}, nil
			case cacheline.S:
				// A write hit in S still requires a bus transaction
				// (BUS_UPGR) before it can complete, so it counts
				// against misses, not hits: "hit" here means
				// "satisfied with no bus activity."
				c.stats.Misses++
				return c.issueOrAlias(event.BusUpgr, addr, kind)
			default:
				return Result{}, c.fatalf("valid line for block %#x in unexpected state %v", blockAddr, line.State)
			}
		}
	}

	c.stats.Misses++
	switch kind {
	case event.Read:
		return c.issueOrAlias(event.BusRd, addr, kind)
	case event.Write:
		return c.issueOrAlias(event.BusRdx, addr, kind)
	default:
		return Result{}, c.fatalf("unknown processor op kind %v", kind)
	}
}

// compatibleAlias implements the aliasing-correctness rule: only
// same-kind requests coalesce. A read miss coalesces only behind
// another BUS_RD, a write miss only behind another BUS_RDX, and a
// write-hit upgrade only behind another BUS_UPGR. Anything else queues
// rather than aliases; in particular a PR_RD arriving during an
// in-flight BUS_RDX waits for that transaction to complete.
func compatibleAlias(want, outstanding event.Kind) bool {
	switch want {
	case event.BusRd:
		return outstanding == event.BusRd
	case event.BusRdx:
		return outstanding == event.BusRdx
	case event.BusUpgr:
		return outstanding == event.BusUpgr
	default:
		return false
	}
}

// issueOrAlias either folds (kind, addr) into the already-outstanding
// transaction for this block, queues it locally if this cache is
// already blocked on a transaction it cannot alias behind (another
// block, or an incompatible kind for this block), or issues a fresh bus
// request and requests the bus.
func (c *Cache) issueOrAlias(wantKind event.Kind, addr uint64, opKind event.Kind) (Result, error) {
	lineIdx := c.blockAddress(addr)
	op := procOp{kind: opKind, addr: addr}

	if c.outstanding != nil {
		if c.outstanding.request.CacheLineIdx == lineIdx && compatibleAlias(wantKind, c.outstanding.request.Kind) {
			c.outstanding.ops = append(c.outstanding.ops, op)
			return Result{}, nil
		}
		c.pending = append(c.pending, op)
		return Result{}, nil
	}

	c.txCounter++
	tid := event.NewTransactionID(uint16(c.cfg.CacheID), c.txCounter)
	req := event.BusEvent{
		Kind:          wantKind,
		Addr:          addr,
		Pid:           c.cfg.CacheID,
		TransactionID: tid,
		CacheLineIdx:  lineIdx,
	}
	c.outstanding = &outstandingEntry{request: req, ops: []procOp{op}}
	c.requestQueue = append(c.requestQueue, req)
	return Result{Acquire: &event.ArbEvent{Kind: event.AC, Pid: c.cfg.CacheID}}, nil
}

// OnArbiterGrant hands the head of requestQueue to the caller for
// delivery onto the bus.
func (c *Cache) OnArbiterGrant(ev event.ArbEvent) (event.BusEvent, error) {
	if len(c.requestQueue) == 0 {
		return event.BusEvent{}, c.fatalf("arbiter grant received with no queued bus request")
	}
	req := c.requestQueue[0]
	c.requestQueue = c.requestQueue[1:]
	return req, nil
}

// OnBusSnoop handles a coherence transaction broadcast by a peer cache.
func (c *Cache) OnBusSnoop(ev event.BusEvent) (event.BusEvent, error) {
	blockAddr := c.blockAddress(ev.Addr)
	setIdx := c.setIndex(ev.Addr)
	set := c.sets[setIdx]
	idx := set.Lookup(blockAddr)

	reply := event.BusEvent{
		Kind:          event.Empty,
		Addr:          ev.Addr,
		Pid:           c.cfg.CacheID,
		TransactionID: ev.TransactionID,
		CacheLineIdx:  ev.CacheLineIdx,
	}
	if idx < 0 {
		return reply, nil
	}
	line := &set[idx]

	switch ev.Kind {
	case event.BusRd:
		if line.State == cacheline.M || line.State == cacheline.E {
			// Write-back is modeled as a statistics/state effect only;
			// no data values are simulated.
			line.State = cacheline.S
			line.Dirty = false
		}
		reply.Kind = event.Shared
	case event.BusRdx:
		if line.State == cacheline.M || line.State == cacheline.S || line.State == cacheline.E {
			line.Valid = false
			line.Dirty = false
			line.State = cacheline.I
			c.stats.Invalidations++
			reply.Kind = event.Shared
		}
	case event.BusUpgr:
		switch line.State {
		case cacheline.S, cacheline.E:
			line.Valid = false
			line.Dirty = false
			line.State = cacheline.I
			c.stats.Invalidations++
			reply.Kind = event.Shared
		case cacheline.M:
			return event.BusEvent{}, c.fatalf("BUS_UPGR snooped while holding block %#x in M: at most one cache may hold M", blockAddr)
		}
	default:
		return event.BusEvent{}, c.fatalf("unexpected snoop event kind %v", ev.Kind)
	}
	return reply, nil
}

// install places a freshly-fetched block into the set, evicting a
// victim per the configured replacement policy if the set is full.
func (c *Cache) install(fullAddr, blockAddr uint64, state cacheline.State, dirty bool) {
	setIdx := int(c.setIndex(fullAddr))
	set := c.sets[setIdx]
	victimIdx := c.selectVictim(set, setIdx)
	victim := &set[victimIdx]
	if victim.Valid {
		c.stats.Evictions++
	}
	victim.Valid = true
	victim.Address = blockAddr
	victim.Dirty = dirty
	victim.Timestamp = c.timestamp
	victim.State = state
}

// selectVictim picks a line to evict from set, preferring any invalid
// line before consulting the replacement policy.
func (c *Cache) selectVictim(set cacheline.Set, setIdx int) int {
	if idx := set.FirstInvalid(); idx >= 0 {
		return idx
	}

	switch c.cfg.ReplacementPolicy {
	case RR:
		victim := c.rrCounter[setIdx]
		c.rrCounter[setIdx] = (victim + 1) % len(set)
		return victim
	case MRU:
		best := 0
		for i := 1; i < len(set); i++ {
			if set[i].Timestamp > set[best].Timestamp {
				best = i
			}
		}
		return best
	default: // LRU
		best := 0
		for i := 1; i < len(set); i++ {
			if set[i].Timestamp < set[best].Timestamp {
				best = i
			}
		}
		return best
	}
}

// OnBusCompletion resolves the transaction this cache has in flight:
// installs the line (or upgrades it in place, for BUS_UPGR), delivers
// a completion for the primary op and every op that aliased behind it,
// releases the bus, and retries one locally-queued op if any is
// waiting.
func (c *Cache) OnBusCompletion(ev event.BusEvent) (Result, error) {
	entry := c.outstanding
	if entry == nil || entry.request.TransactionID != ev.TransactionID {
		return Result{}, c.fatalf("bus completion for unknown transaction %d", ev.TransactionID)
	}

	blockAddr := c.blockAddress(entry.request.Addr)

	switch entry.request.Kind {
	case event.BusUpgr:
		setIdx := c.setIndex(entry.request.Addr)
		set := c.sets[setIdx]
		idx := set.Lookup(blockAddr)
		if idx < 0 {
			return Result{}, c.fatalf("BUS_UPGR completion for block %#x with no existing line", blockAddr)
		}
		line := &set[idx]
		line.State = cacheline.M
		line.Dirty = true
		line.Timestamp = c.timestamp
	case event.BusRdx:
		c.install(entry.request.Addr, blockAddr, cacheline.M, true)
	case event.BusRd:
		state := cacheline.S
		if c.cfg.Protocol == MESI && !ev.Shared {
			state = cacheline.E
		}
		c.install(entry.request.Addr, blockAddr, state, false)
	default:
		return Result{}, c.fatalf("bus completion for unexpected transaction kind %v", entry.request.Kind)
	}

	completions := make([]event.Completion, 0, len(entry.ops))
	for _, op := range entry.ops {
		completions = append(completions, c.completion(op.kind, op.addr))
	}

	c.outstanding = nil
	result := Result{
		Completions: completions,
		Release:     &event.ArbEvent{Kind: event.RL, Pid: c.cfg.CacheID},
	}

	if len(c.pending) > 0 {
		next := c.pending[0]
		c.pending = c.pending[1:]
		drained, err := c.dispatch(next.kind, next.addr)
		if err != nil {
			return Result{}, err
		}
		result.Completions = append(result.Completions, drained.Completions...)
		result.Acquire = drained.Acquire
	}

	return result, nil
}
