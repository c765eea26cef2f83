package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/peter-kozarec/dbnfeed/pkg/dbn"
	"github.com/peter-kozarec/dbnfeed/pkg/utility"
	"github.com/peter-kozarec/dbnfeed/pkg/utility/fixed"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS bars (
	symbol        VARCHAR NOT NULL,
	instrument_id UINTEGER NOT NULL,
	rtype         UTINYINT NOT NULL,
	ts_event      BIGINT NOT NULL,
	open          DECIMAL(18, 9) NOT NULL,
	high          DECIMAL(18, 9) NOT NULL,
	low           DECIMAL(18, 9) NOT NULL,
	close         DECIMAL(18, 9) NOT NULL,
	volume        UBIGINT NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS trades (
	symbol        VARCHAR NOT NULL,
	instrument_id UINTEGER NOT NULL,
	ts_event      BIGINT NOT NULL,
	ts_recv       BIGINT NOT NULL,
	price         DECIMAL(18, 9) NOT NULL,
	size          UINTEGER NOT NULL,
	side          VARCHAR NOT NULL,
	sequence      UINTEGER NOT NULL
)`,
}

// Bar is an OHLCV row read back from the store.
type Bar struct {
	Symbol       string
	InstrumentID uint32
	RType        dbn.RType
	TsEvent      time.Time
	Open         fixed.Point
	High         fixed.Point
	Low          fixed.Point
	Close        fixed.Point
	Volume       uint64
}

type Store struct {
	dataSourceName string
	db             *sql.DB
}

func NewStore(dataSourceName string) *Store {
	return &Store{
		dataSourceName: dataSourceName,
	}
}

// Open connects to dataSourceName and creates the tables. An empty name
// opens an in-memory database.
func Open(ctx context.Context, dataSourceName string) (*Store, error) {
	s := NewStore(dataSourceName)
	if err := s.Connect(); err != nil {
		return nil, err
	}
	if err := s.CreateTables(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Connect() error {
	db, err := sql.Open("duckdb", s.dataSourceName)
	if err != nil {
		return fmt.Errorf("sql.Open: %w", err)
	}
	s.db = db
	return nil
}

func (s *Store) Close() {
	_ = s.db.Close()
}

func (s *Store) CreateTables(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error creating tables: %w", err)
		}
	}
	return nil
}

func (s *Store) InsertBar(ctx context.Context, symbol string, bar dbn.OhlcvMsg) error {
	ts, err := utility.U64ToI64(uint64(bar.Hd.TsEvent))
	if err != nil {
		return fmt.Errorf("bar timestamp: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO bars VALUES (?, ?, ?, ?, CAST(? AS DECIMAL(18, 9)), CAST(? AS DECIMAL(18, 9)), CAST(? AS DECIMAL(18, 9)), CAST(? AS DECIMAL(18, 9)), ?)`,
		symbol, bar.Hd.InstrumentID, uint8(bar.Hd.RType), ts,
		fixed.FromPrice(bar.Open).String(),
		fixed.FromPrice(bar.High).String(),
		fixed.FromPrice(bar.Low).String(),
		fixed.FromPrice(bar.Close).String(),
		bar.Volume)
	if err != nil {
		return fmt.Errorf("error inserting bar: %w", err)
	}
	return nil
}

func (s *Store) InsertTrade(ctx context.Context, symbol string, trade dbn.TradeMsg) error {
	tsEvent, err := utility.U64ToI64(uint64(trade.Hd.TsEvent))
	if err != nil {
		return fmt.Errorf("trade ts_event: %w", err)
	}
	tsRecv, err := utility.U64ToI64(uint64(trade.TsRecv))
	if err != nil {
		return fmt.Errorf("trade ts_recv: %w", err)
	}

	side := trade.Side
	if side == 0 {
		side = dbn.SideNone
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO trades VALUES (?, ?, ?, ?, CAST(? AS DECIMAL(18, 9)), ?, ?, ?)`,
		symbol, trade.Hd.InstrumentID, tsEvent, tsRecv,
		fixed.FromPrice(trade.Price).String(),
		trade.Size, side.String(), trade.Sequence)
	if err != nil {
		return fmt.Errorf("error inserting trade: %w", err)
	}
	return nil
}

// LoadBars streams the bars of symbol with ts_event in [from, to] in time
// order.
func (s *Store) LoadBars(ctx context.Context, symbol string, from, to time.Time, handler func(bar Bar) error) error {
	const query = `SELECT symbol, instrument_id, rtype, ts_event,
		CAST(open AS VARCHAR), CAST(high AS VARCHAR), CAST(low AS VARCHAR), CAST(close AS VARCHAR), volume
		FROM bars WHERE symbol = ? AND ts_event BETWEEN ? AND ? ORDER BY ts_event`

	rows, err := s.db.QueryContext(ctx, query, symbol, from.UnixNano(), to.UnixNano())
	if err != nil {
		return fmt.Errorf("error preparing query: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	for rows.Next() {
		var bar Bar
		var rtype uint8
		var ts int64
		var open, high, low, closePx string
		if err := rows.Scan(&bar.Symbol, &bar.InstrumentID, &rtype, &ts, &open, &high, &low, &closePx, &bar.Volume); err != nil {
			return fmt.Errorf("error scanning row: %w", err)
		}
		bar.RType = dbn.RType(rtype)
		bar.TsEvent = time.Unix(0, ts)

		for _, p := range []struct {
			dst *fixed.Point
			src string
		}{{&bar.Open, open}, {&bar.High, high}, {&bar.Low, low}, {&bar.Close, closePx}} {
			if *p.dst, err = fixed.Parse(p.src); err != nil {
				return fmt.Errorf("error scanning row: %w", err)
			}
		}

		if err := handler(bar); err != nil {
			return fmt.Errorf("error processing bar: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error scanning rows: %w", err)
	}

	return nil
}
