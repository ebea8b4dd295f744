// Package coherence ties the cache, arbiter, and bus packages together
// into one run's shutdown report.
package coherence

import (
	"fmt"
	"strings"

	"github.com/sarchlab/cohsim/arbiter"
	"github.com/sarchlab/cohsim/bus"
	"github.com/sarchlab/cohsim/cache"
)

// CacheReport pairs a cache's statistics with the pid that produced
// them, so Report.String() can label each line.
type CacheReport struct {
	Pid   int
	Stats cache.Statistics
}

// Report aggregates the shutdown counters of every component in one
// run: per-pid arbiter grants, bus traffic, and every cache's hit/
// miss/eviction/invalidation counts. A harness builds one after
// draining all events, by calling each component's Stats().
type Report struct {
	GrantsByPid  []uint64
	Bus          bus.Statistics
	MemoryTimeNs uint64
	Caches       []CacheReport
}

// NewReport assembles a Report from the three collaborators and the
// bus's memory-access-time configuration (needed to scale
// MemoryTraffic into the reported nanosecond figure).
func NewReport(a *arbiter.Arbiter, b *bus.Bus, busCfg bus.Config, caches []*cache.Cache) Report {
	r := Report{
		GrantsByPid: a.Stats().GrantsByPid,
		Bus:         b.Stats(),
		Caches:      make([]CacheReport, len(caches)),
	}
	r.MemoryTimeNs = r.Bus.MemoryTimeNs(busCfg)
	for i, c := range caches {
		r.Caches[i] = CacheReport{Pid: i, Stats: c.Stats()}
	}
	return r
}

// String renders the shutdown report: per-pid grant counts, bus
// traffic, and every cache's hit/miss/eviction/invalidation counts.
func (r Report) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "grantsNum: %v\n", r.GrantsByPid)
	fmt.Fprintf(&b, "bus: totalTraffic=%d reqTraffic=%d respTraffic=%d memoryTraffic=%d memoryTime=%dns\n",
		r.Bus.TotalTraffic, r.Bus.ReqTraffic, r.Bus.RespTraffic, r.Bus.MemoryTraffic, r.MemoryTimeNs)
	for _, c := range r.Caches {
		fmt.Fprintf(&b, "cache[%d]: hits=%d misses=%d evictions=%d invalidations=%d\n",
			c.Pid, c.Stats.Hits, c.Stats.Misses, c.Stats.Evictions, c.Stats.Invalidations)
	}
	return b.String()
}
