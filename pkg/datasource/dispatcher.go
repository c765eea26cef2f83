package datasource

import (
	"github.com/peter-kozarec/dbnfeed/pkg/dbn"
)

type RecordDataSource interface {
	Next() (dbn.Record, error)
}

type RecordHandler func(dbn.Record) error

// CreateRecordDispatcher returns a step function that moves one record from
// ds into handler per call.
func CreateRecordDispatcher(ds RecordDataSource, handler RecordHandler) func() error {
	return func() error {
		rec, err := ds.Next()
		if err != nil {
			return err
		}
		return handler(rec)
	}
}
