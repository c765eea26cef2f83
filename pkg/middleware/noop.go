package middleware

import (
	"github.com/peter-kozarec/dbnfeed/pkg/dbn"
	"github.com/peter-kozarec/dbnfeed/pkg/live"
)

//goland:noinspection ALL
var (
	NoopRecordHdl   = func(dbn.Record) (live.KeepGoing, error) { return live.Continue, nil }
	NoopMetadataHdl = func(dbn.Metadata) error { return nil }
	NoopFaultHdl    = func(error) live.FaultAction { return live.FaultRestart }
)
