package historical

import (
	"time"

	"github.com/peter-kozarec/dbnfeed/pkg/dbn"
)

type recordSource interface {
	Next() (dbn.Record, error)
}

// RangeReader limits a source to records whose ts_event lies in [from, to].
// Files are ordered by time, so the first record past to ends the range.
type RangeReader struct {
	source recordSource

	from dbn.UnixNanos
	to   dbn.UnixNanos
	done bool
}

func NewRangeReader(source recordSource, from, to time.Time) *RangeReader {
	return &RangeReader{
		source: source,
		from:   dbn.UnixNanosFromTime(from),
		to:     dbn.UnixNanosFromTime(to),
	}
}

func (r *RangeReader) Next() (dbn.Record, error) {
	if r.done {
		return dbn.Record{}, ErrEof
	}
	for {
		rec, err := r.source.Next()
		if err != nil {
			return dbn.Record{}, err
		}

		ts := rec.Header().TsEvent
		if ts < r.from {
			continue
		}
		if ts > r.to {
			r.done = true
			return dbn.Record{}, ErrEof
		}
		return rec, nil
	}
}
