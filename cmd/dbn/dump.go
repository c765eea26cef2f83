package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/peter-kozarec/dbnfeed/pkg/data/duckdb"
	"github.com/peter-kozarec/dbnfeed/pkg/datasource"
	"github.com/peter-kozarec/dbnfeed/pkg/datasource/historical"
	"github.com/peter-kozarec/dbnfeed/pkg/dbn"
	"github.com/peter-kozarec/dbnfeed/pkg/live"
	"github.com/peter-kozarec/dbnfeed/pkg/middleware"
	"github.com/peter-kozarec/dbnfeed/pkg/tools/bar"
	"github.com/peter-kozarec/dbnfeed/pkg/utility/fixed"
)

type dumpOptions struct {
	in     string
	csv    string
	duckdb string
	from   string
	to     string
	bars   string
	limit  int
}

func newDumpCommand(logs *logFlags) *cobra.Command {
	var opts dumpOptions

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Decode a DBN file into CSV or DuckDB",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logs.logger()
			if err != nil {
				return err
			}
			defer func(logger *zap.Logger) {
				_ = logger.Sync()
			}(logger)
			return runDump(cmd, opts, logger)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&opts.in, "in", "", "DBN file, optionally zstd compressed")
	fs.StringVar(&opts.csv, "csv", "", "CSV output path, '-' for stdout, .zst suffix compresses")
	fs.StringVar(&opts.duckdb, "duckdb", "", "DuckDB database receiving bars and trades")
	fs.StringVar(&opts.from, "from", "", "first ts_event to keep (RFC 3339)")
	fs.StringVar(&opts.to, "to", "", "last ts_event to keep (RFC 3339)")
	fs.StringVar(&opts.bars, "bars", "", "resample trades into bars of this schema (ohlcv-1s, ohlcv-1m, ohlcv-1h, ohlcv-1d)")
	fs.IntVar(&opts.limit, "limit", 0, "stop after this many records")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func runDump(cmd *cobra.Command, opts dumpOptions, logger *zap.Logger) error {
	if opts.csv == "" && opts.duckdb == "" {
		return errors.New("one of --csv or --duckdb is required")
	}
	ctx := cmd.Context()

	src, err := historical.Open(opts.in, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	var ds datasource.RecordDataSource = src
	if opts.from != "" || opts.to != "" {
		from, to, err := parseRange(opts.from, opts.to)
		if err != nil {
			return err
		}
		ds = historical.NewRangeReader(src, from, to)
	}

	telemetry := middleware.NewTelemetry(logger, nil)
	performance := middleware.NewPerformance(logger, nil)
	wrappers := []func(middleware.RecordHandler) middleware.RecordHandler{telemetry.WithRecord, performance.WithRecord}

	schema := src.Metadata().Schema
	var builder *bar.Builder
	if opts.bars != "" {
		if schema, err = dbn.ParseSchema(opts.bars); err != nil {
			return fmt.Errorf("--bars: %w", err)
		}
		if builder, err = bar.NewBuilder(schema, bar.WithLogger(logger)); err != nil {
			return fmt.Errorf("--bars: %w", err)
		}
		wrappers = append(wrappers, builder.WithRecord)
	}

	if opts.duckdb != "" {
		store, err := duckdb.Open(ctx, opts.duckdb)
		if err != nil {
			return err
		}
		defer store.Close()

		ledger := middleware.NewLedger(ctx, logger, store)
		if err := ledger.WithMetadata(middleware.NoopMetadataHdl)(src.Metadata()); err != nil {
			return err
		}
		wrappers = append(wrappers, ledger.WithRecord)
	}

	base := middleware.NoopRecordHdl
	if opts.csv != "" {
		out, closeOut, err := createOutput(opts.csv, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeOut()

		w, err := newCSVWriter(out, schema)
		if err != nil {
			return err
		}
		defer w.Flush()
		base = w.write
	}

	handler := middleware.Chain(wrappers...)(base)
	dispatch := datasource.CreateRecordDispatcher(ds, func(rec dbn.Record) error {
		_, err := handler(rec)
		return err
	})

	defer telemetry.PrintStatistics()
	defer performance.PrintStatistics(telemetry)

	for n := 0; opts.limit <= 0 || n < opts.limit; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := dispatch(); err != nil {
			if errors.Is(err, historical.ErrEof) {
				break
			}
			return err
		}
	}

	if builder != nil {
		return builder.Flush()
	}
	return nil
}

func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	from := time.Unix(0, 0)
	to := dbn.UnixNanos(1<<63 - 1).Time()
	var err error
	if fromStr != "" {
		if from, err = time.Parse(time.RFC3339Nano, fromStr); err != nil {
			return from, to, fmt.Errorf("--from: %w", err)
		}
	}
	if toStr != "" {
		if to, err = time.Parse(time.RFC3339Nano, toStr); err != nil {
			return from, to, fmt.Errorf("--to: %w", err)
		}
	}
	if to.Before(from) {
		return from, to, errors.New("--to is before --from")
	}
	return from, to, nil
}

// createOutput opens path for writing, compressing it when path ends in
// .zst.
func createOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "-" {
		return stdout, func() {}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create %q: %w", path, err)
	}
	if !strings.HasSuffix(path, ".zst") {
		return f, func() { _ = f.Close() }, nil
	}

	zw, err := zstd.NewWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("unable to create zstd writer: %w", err)
	}
	return zw, func() {
		_ = zw.Close()
		_ = f.Close()
	}, nil
}

// csvWriter writes the records of one schema. Records of any other rtype
// are skipped.
type csvWriter struct {
	w      *csv.Writer
	schema dbn.Schema
	rtype  dbn.RType
	header bool
	row    []string
}

func newCSVWriter(w io.Writer, schema dbn.Schema) (*csvWriter, error) {
	rtype, err := dbn.RTypeFromSchema(schema)
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	return &csvWriter{w: csv.NewWriter(w), schema: schema, rtype: rtype}, nil
}

func (c *csvWriter) Flush() {
	c.w.Flush()
}

func price(px int64) string {
	if px == dbn.UndefPrice {
		return ""
	}
	return fixed.FromPrice(px).Trim().String()
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

func (c *csvWriter) columns() []string {
	common := []string{"ts_event", "rtype", "publisher_id", "instrument_id"}
	switch c.schema {
	case dbn.SchemaTrades:
		return append(common, "price", "size", "action", "side", "flags", "sequence")
	case dbn.SchemaMbp1, dbn.SchemaTbbo:
		return append(common, "price", "size", "action", "side", "flags", "sequence",
			"bid_px", "ask_px", "bid_sz", "ask_sz")
	case dbn.SchemaOhlcv1S, dbn.SchemaOhlcv1M, dbn.SchemaOhlcv1H, dbn.SchemaOhlcv1D:
		return append(common, "open", "high", "low", "close", "volume")
	default:
		return append(common, "length")
	}
}

func (c *csvWriter) write(rec dbn.Record) (live.KeepGoing, error) {
	if rec.RType() != c.rtype {
		return live.Continue, nil
	}
	if !c.header {
		if err := c.w.Write(c.columns()); err != nil {
			return live.Stop, err
		}
		c.header = true
	}

	hd := rec.Header()
	c.row = append(c.row[:0],
		u64(uint64(hd.TsEvent)),
		hd.RType.String(),
		u64(uint64(hd.PublisherID)),
		u64(uint64(hd.InstrumentID)))

	switch c.schema {
	case dbn.SchemaTrades, dbn.SchemaMbp1, dbn.SchemaTbbo:
		msg, err := rec.Msg()
		if err != nil {
			return live.Stop, err
		}
		m, ok := msg.(dbn.MbpMsg)
		if !ok {
			return live.Continue, nil
		}
		ev := m.Event()
		c.row = append(c.row, price(ev.Price), u64(uint64(ev.Size)), ev.Action.String(), ev.Side.String(),
			u64(uint64(ev.Flags)), u64(uint64(ev.Sequence)))
		if c.schema != dbn.SchemaTrades {
			var lvl dbn.BidAskPair
			if levels := m.Levels(); len(levels) > 0 {
				lvl = levels[0]
			}
			c.row = append(c.row, price(lvl.BidPx), price(lvl.AskPx), u64(uint64(lvl.BidSz)), u64(uint64(lvl.AskSz)))
		}
	case dbn.SchemaOhlcv1S, dbn.SchemaOhlcv1M, dbn.SchemaOhlcv1H, dbn.SchemaOhlcv1D:
		m, err := dbn.Get[dbn.OhlcvMsg](rec)
		if err != nil {
			return live.Stop, err
		}
		c.row = append(c.row, price(m.Open), price(m.High), price(m.Low), price(m.Close), u64(m.Volume))
	default:
		c.row = append(c.row, strconv.Itoa(rec.Size()))
	}

	if err := c.w.Write(c.row); err != nil {
		return live.Stop, err
	}
	return live.Continue, nil
}
