// Package memory implements the trivial memory collaborator: every
// request that falls through cache-to-cache resolution lands here,
// and is echoed straight back so the bus can close out the
// transaction.
package memory

import "github.com/sarchlab/cohsim/event"

// Memory is a sink whose only state is an access counter. It carries
// no data payload, matching the rest of the simulator's non-goal of
// not modelling write data.
type Memory struct {
	accesses uint64
}

// New constructs a Memory collaborator.
func New() *Memory {
	return &Memory{}
}

// Accesses reports how many requests Memory has served.
func (m *Memory) Accesses() uint64 { return m.accesses }

// OnRequest handles a request forwarded by the bus, returning the
// reply to route back through it.
func (m *Memory) OnRequest(ev event.BusEvent) event.BusEvent {
	m.accesses++
	return ev
}
