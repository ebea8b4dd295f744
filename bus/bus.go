package bus

import (
	"fmt"

	"github.com/sarchlab/cohsim/event"
)

// Result collects the side effects of feeding one event into the Bus.
// At most one of ToMemory and ToOriginator is ever set alongside a
// Broadcast, since a single incoming event resolves to exactly one
// outcome.
type Result struct {
	// BroadcastTo names every pid (other than the requester) the
	// request must be delivered to as a snoop.
	BroadcastTo []int
	// BroadcastEvent is the event to deliver to each pid in
	// BroadcastTo, non-nil iff BroadcastTo is non-empty.
	BroadcastEvent *event.BusEvent
	// ToMemory is the request to forward to the Memory collaborator,
	// set when every snoop reply came back EMPTY.
	ToMemory *event.BusEvent
	// ToOriginator is the final completion to deliver back to the
	// transaction's issuing cache.
	ToOriginator *event.BusEvent
}

// Bus implements the broadcast-collect-resolve interconnect.
type Bus struct {
	cfg          Config
	transactions map[event.TransactionID][]event.BusEvent
	stats        Statistics
}

// New constructs a Bus, validating cfg first.
func New(cfg Config) (*Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Bus{
		cfg:          cfg,
		transactions: make(map[event.TransactionID][]event.BusEvent),
	}, nil
}

// Stats returns the traffic counters.
func (b *Bus) Stats() Statistics { return b.stats }

func (b *Bus) fatalf(format string, args ...any) error {
	return &event.CoherenceError{
		Component: "bus",
		CacheID:   -1,
		Invariant: fmt.Sprintf(format, args...),
	}
}

func (b *Bus) peersOf(pid int) []int {
	peers := make([]int, 0, b.cfg.NumProcessors-1)
	for i := 0; i < b.cfg.NumProcessors; i++ {
		if i != pid {
			peers = append(peers, i)
		}
	}
	return peers
}

// OnCacheEvent feeds one BusEvent arriving from a cache's link: either
// a fresh transaction request (Kind is BusRd/BusRdx/BusUpgr) or a
// snoop reply to a transaction already in flight (Kind is Shared,
// NotShared, or Empty).
func (b *Bus) OnCacheEvent(ev event.BusEvent) (Result, error) {
	if b.cfg.NumProcessors == 1 {
		b.stats.ReqTraffic++
		b.stats.TotalTraffic += 2 // the request, and the completion echoed straight back
		echo := ev
		return Result{ToOriginator: &echo}, nil
	}

	if ev.Kind.IsTransaction() {
		return b.startTransaction(ev)
	}
	return b.collectReply(ev)
}

func (b *Bus) startTransaction(ev event.BusEvent) (Result, error) {
	if _, exists := b.transactions[ev.TransactionID]; exists {
		return Result{}, b.fatalf("transaction %d started twice", ev.TransactionID)
	}
	b.transactions[ev.TransactionID] = []event.BusEvent{ev}
	b.stats.ReqTraffic++
	b.stats.TotalTraffic++ // the request itself

	peers := b.peersOf(ev.Pid)
	b.stats.TotalTraffic += uint64(len(peers)) // one copy per broadcast target
	req := ev
	return Result{BroadcastTo: peers, BroadcastEvent: &req}, nil
}

func (b *Bus) collectReply(ev event.BusEvent) (Result, error) {
	entry, ok := b.transactions[ev.TransactionID]
	if !ok {
		return Result{}, b.fatalf("snoop reply for unknown transaction %d", ev.TransactionID)
	}
	entry = append(entry, ev)
	b.transactions[ev.TransactionID] = entry
	b.stats.RespTraffic++
	b.stats.TotalTraffic++ // the snoop reply itself

	if len(entry) != b.cfg.NumProcessors {
		return Result{}, nil
	}
	return b.resolve(ev.TransactionID, entry)
}

// resolve is called once a transaction's entry holds the request plus
// a reply from every peer.
func (b *Bus) resolve(tid event.TransactionID, entry []event.BusEvent) (Result, error) {
	request := entry[0]
	replies := entry[1:]

	if request.Kind == event.BusUpgr {
		delete(b.transactions, tid)
		b.stats.TotalTraffic++ // the completion delivered to the originator
		completion := request
		return Result{ToOriginator: &completion}, nil
	}

	for _, reply := range replies {
		if reply.Kind != event.Empty {
			delete(b.transactions, tid)
			b.stats.TotalTraffic++ // the completion delivered to the originator
			completion := request
			completion.Shared = true
			return Result{ToOriginator: &completion}, nil
		}
	}

	// Every peer replied EMPTY: fall back to memory. The entry stays
	// live so the memory reply can be routed back by transaction id;
	// MemoryTraffic is counted once, on the reply in OnMemoryReply.
	b.stats.TotalTraffic++ // the request forwarded to memory
	toMemory := request
	return Result{ToMemory: &toMemory}, nil
}

// OnMemoryReply feeds the Memory collaborator's response for a
// transaction that fell through to it, completing the transaction.
func (b *Bus) OnMemoryReply(ev event.BusEvent) (Result, error) {
	_, ok := b.transactions[ev.TransactionID]
	if !ok {
		return Result{}, b.fatalf("memory reply for unknown transaction %d", ev.TransactionID)
	}
	delete(b.transactions, ev.TransactionID)
	b.stats.MemoryTraffic++
	b.stats.TotalTraffic += 2 // the memory reply, and the completion delivered to the originator

	completion := ev
	completion.Shared = false
	return Result{ToOriginator: &completion}, nil
}
