package event

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
)

// NewDefaultLogger returns a logr.Logger that writes to stdout via
// funcr, Akita's own logging dependency promoted to direct use here.
// Components default to this when no logger is supplied through their
// functional options.
func NewDefaultLogger() logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Println(prefix, args)
		} else {
			fmt.Println(args)
		}
	}, funcr.Options{Verbosity: 1})
}
