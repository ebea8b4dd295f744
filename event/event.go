// Package event defines the tagged event types that flow between the
// cache, arbiter, bus, and memory components: processor operations,
// bus transactions and their snoop replies, and arbiter control
// messages.
package event

import "fmt"

// Kind tags every event that travels on a cache-facing or bus-facing
// link. Processor operations (Read, Write) and bus transactions
// (BusRd, BusRdx, BusUpgr) and their replies (Flush, Shared, NotShared,
// Empty) share one enumeration, matching the source protocol's single
// EVENT_TYPE variant.
type Kind int

const (
	Read Kind = iota
	Write
	BusRd
	BusRdx
	BusUpgr
	Flush
	Shared
	NotShared
	Empty
)

// String renders a Kind for log lines and test failure messages.
func (k Kind) String() string {
	switch k {
	case Read:
		return "PR_RD"
	case Write:
		return "PR_WR"
	case BusRd:
		return "BUS_RD"
	case BusRdx:
		return "BUS_RDX"
	case BusUpgr:
		return "BUS_UPGR"
	case Flush:
		return "FLUSH"
	case Shared:
		return "SHARED"
	case NotShared:
		return "NOT_SHARED"
	case Empty:
		return "EMPTY"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// IsProcessorOp reports whether k is a processor-issued read or write,
// as opposed to a bus transaction or snoop reply.
func (k Kind) IsProcessorOp() bool {
	return k == Read || k == Write
}

// IsTransaction reports whether k is a bus transaction that carries a
// TransactionID and requires arbitration: BusRd, BusRdx, or BusUpgr.
func (k Kind) IsTransaction() bool {
	return k == BusRd || k == BusRdx || k == BusUpgr
}

// ArbKind tags arbiter control messages: acquiring or releasing
// exclusive bus access.
type ArbKind int

const (
	AC ArbKind = iota // acquire
	RL                // release
)

func (k ArbKind) String() string {
	if k == AC {
		return "AC"
	}
	return "RL"
}

// ArbEvent is exchanged between a cache and the arbiter over the
// arbiter-facing link.
type ArbEvent struct {
	Kind ArbKind
	Pid  int
}

// BusEvent is exchanged between a cache, the bus, and memory over the
// bus-facing link. It is also the shape used to describe a processor
// operation before it has been translated into a bus transaction: Addr
// and Pid are always meaningful, TransactionID and CacheLineIdx are
// only meaningful once the event has been promoted to BusRd/BusRdx/
// BusUpgr.
type BusEvent struct {
	Kind          Kind
	Addr          uint64
	Pid           int
	TransactionID TransactionID

	// CacheLineIdx is Addr / blockSize, computed by the issuing cache
	// at construction time so peers and the bus never need to know
	// blockSize to group events by block.
	CacheLineIdx uint64

	// Shared is set by the bus when it resolves a BusRd/BusRdx
	// transaction, and is true iff at least one snoop reply was not
	// Empty (i.e. some peer cache supplied the line rather than
	// memory). MESI's read-miss install decision (E vs S) depends on
	// this; MSI ignores it.
	Shared bool
}

// Completion is delivered from a cache back to its generator once a
// processor operation (possibly one of several aliased operations
// folded behind a single bus transaction) has resolved.
type Completion struct {
	Kind Kind // Read or Write, the original processor op
	Addr uint64
	Pid  int
}
