package arbiter

import (
	"container/list"
	"fmt"

	"github.com/sarchlab/cohsim/event"
)

// Arbiter serializes bus access across caches, allowing up to
// cfg.MaxBusTransactions grants to be live at once. A cache must
// eventually balance every granted Acquire (event.AC) with a Release
// (event.RL) before any waiting requester past the cap can be granted.
type Arbiter struct {
	cfg Config

	// pending holds, in arrival order, the pids waiting for a grant
	// under either policy. Granted pids are removed from it.
	pending *list.List

	// granted tracks which pids currently hold a grant.
	granted      map[int]bool
	grantedCount int

	// nextPid is the round-robin search cursor; unused under FIFO.
	nextPid int

	stats Statistics
}

// New constructs an Arbiter, validating cfg first.
func New(cfg Config) (*Arbiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Arbiter{
		cfg:     cfg,
		pending: list.New(),
		granted: make(map[int]bool, cfg.NumProcessors),
		stats:   Statistics{GrantsByPid: make([]uint64, cfg.NumProcessors)},
	}, nil
}

// Stats returns the per-pid grant counters.
func (a *Arbiter) Stats() Statistics { return a.stats }

func (a *Arbiter) fatalf(format string, args ...any) error {
	return &event.CoherenceError{
		Component: "arbiter",
		CacheID:   -1,
		Invariant: fmt.Sprintf(format, args...),
	}
}

func (a *Arbiter) validPid(pid int) bool {
	return pid >= 0 && pid < a.cfg.NumProcessors
}

// OnEvent feeds one ArbEvent (an Acquire or Release from a cache) into
// the arbiter. If a pid is immediately or consequently granted the
// bus, granted reports true and grantedPid names it.
func (a *Arbiter) OnEvent(ev event.ArbEvent) (grantedPid int, granted bool, err error) {
	if !a.validPid(ev.Pid) {
		return 0, false, a.fatalf("pid %d out of range [0,%d)", ev.Pid, a.cfg.NumProcessors)
	}
	switch ev.Kind {
	case event.AC:
		a.pending.PushBack(ev.Pid)
		return a.tryGrant()
	case event.RL:
		if !a.granted[ev.Pid] {
			return 0, false, a.fatalf("release from pid %d, which does not hold the bus", ev.Pid)
		}
		delete(a.granted, ev.Pid)
		a.grantedCount--
		return a.tryGrant()
	default:
		return 0, false, a.fatalf("unexpected arbiter event kind %v", ev.Kind)
	}
}

// tryGrant grants at most one additional pid if the transaction cap
// leaves room and a requester is waiting, per the configured policy.
func (a *Arbiter) tryGrant() (int, bool, error) {
	if a.grantedCount >= a.cfg.MaxBusTransactions || a.pending.Len() == 0 {
		return 0, false, nil
	}

	var pid int
	switch a.cfg.Policy {
	case FIFO:
		front := a.pending.Front()
		pid = front.Value.(int)
		a.pending.Remove(front)
	default: // RoundRobin
		e := a.selectNext()
		pid = e.Value.(int)
		a.pending.Remove(e)
		a.nextPid = (pid + 1) % a.cfg.NumProcessors
	}

	a.granted[pid] = true
	a.grantedCount++
	a.stats.GrantsByPid[pid]++
	return pid, true, nil
}

// selectNext implements round-robin selection: starting at nextPid,
// scan forward through the processor ids until one is found with a
// pending request.
func (a *Arbiter) selectNext() *list.Element {
	pid := a.nextPid
	for {
		for e := a.pending.Front(); e != nil; e = e.Next() {
			if e.Value.(int) == pid {
				return e
			}
		}
		pid = (pid + 1) % a.cfg.NumProcessors
	}
}
