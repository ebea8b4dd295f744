// Package tracefmt parses the per-processor memory-reference trace
// format a harness feeds to a cache's generator. It is pure data
// transformation — no scheduling, no engine — so it stays in-bounds as
// a leaf utility even though the discrete-event harness itself is not
// part of this module.
package tracefmt

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-logr/logr"

	"github.com/sarchlab/cohsim/event"
)

// Reference is one parsed memory reference: a read or a write to Addr.
type Reference struct {
	Kind event.Kind // event.Read or event.Write
	Addr uint64
}

type options struct {
	log logr.Logger
}

// Option configures Parse.
type Option func(*options)

// WithLogger overrides the logger malformed lines are reported through.
func WithLogger(l logr.Logger) Option {
	return func(o *options) { o.log = l }
}

// Parse reads every line of r, keeping only those belonging to
// generatorID. A kept line is any starting with "threadId: <generatorID>"
// and ending with " <R|W> <hex-address>"; any other columns in between
// (e.g. an instruction pointer) are ignored. Lines for other generator
// ids are skipped silently. A line that matches the prefix but fails to
// parse is skipped and logged at V(1) — it never aborts the run.
func Parse(r io.Reader, generatorID int, opts ...Option) ([]Reference, error) {
	o := options{log: event.NewDefaultLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	prefix := fmt.Sprintf("threadId: %d", generatorID)
	var refs []Reference

	s := bufio.NewScanner(r)
	for s.Scan() {
		line := s.Text()
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		if len(line) > len(prefix) && line[len(prefix)] >= '0' && line[len(prefix)] <= '9' {
			continue // a longer id that merely starts with generatorID's digits
		}

		fields := strings.Fields(line)
		if len(fields) < 4 {
			o.log.V(1).Info("malformed trace line: too few fields", "line", line)
			continue
		}

		rw := fields[len(fields)-2]
		hexAddr := fields[len(fields)-1]

		var kind event.Kind
		switch rw {
		case "R":
			kind = event.Read
		case "W":
			kind = event.Write
		default:
			o.log.V(1).Info("malformed trace line: expected R or W", "line", line)
			continue
		}

		addr, err := strconv.ParseUint(strings.TrimPrefix(hexAddr, "0x"), 16, 64)
		if err != nil {
			o.log.V(1).Info("malformed trace line: bad hex address", "line", line, "error", err.Error())
			continue
		}

		refs = append(refs, Reference{Kind: kind, Addr: addr})
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("tracefmt: reading trace: %w", err)
	}
	return refs, nil
}
