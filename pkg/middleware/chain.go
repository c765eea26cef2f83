package middleware

import (
	"github.com/peter-kozarec/dbnfeed/pkg/dbn"
	"github.com/peter-kozarec/dbnfeed/pkg/live"
)

// RecordHandler has the shape of live.Handlers.OnRecord.
type RecordHandler = func(dbn.Record) (live.KeepGoing, error)

// Chain composes wrappers so that the first one is outermost.
func Chain[T any](wrappers ...func(T) T) func(T) T {
	return func(handler T) T {
		for i := len(wrappers) - 1; i >= 0; i-- {
			handler = wrappers[i](handler)
		}
		return handler
	}
}
