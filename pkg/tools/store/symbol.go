package store

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/peter-kozarec/dbnfeed/pkg/dbn"
)

var (
	ErrSymbolNotPresent = errors.New("symbol is not present in symbol table")
)

// SymbolStore maps instrument ids to symbols. It learns from metadata
// mappings, symbol mapping records and instrument definitions; the most
// recent source wins.
type SymbolStore struct {
	symbols map[uint32]string
}

func CreateSymbolStore() *SymbolStore {
	return &SymbolStore{
		symbols: make(map[uint32]string),
	}
}

func (s *SymbolStore) Insert(instrumentID uint32, symbol string) {
	s.symbols[instrumentID] = symbol
}

// InsertMetadata learns the mappings of md whose interval contains date.
// A zero date accepts every interval. Only intervals resolving to an
// instrument id are used.
func (s *SymbolStore) InsertMetadata(md dbn.Metadata, date time.Time) int {
	var n int
	for _, m := range md.Mappings {
		for _, iv := range m.Intervals {
			if !date.IsZero() && (date.Before(iv.StartDate) || !date.Before(iv.EndDate)) {
				continue
			}
			id, err := strconv.ParseUint(iv.Symbol, 10, 32)
			if err != nil {
				continue
			}
			s.symbols[uint32(id)] = m.RawSymbol
			n++
		}
	}
	return n
}

// InsertRecord learns from symbol mapping and instrument definition
// records and reports whether rec carried a mapping.
func (s *SymbolStore) InsertRecord(rec dbn.Record) (bool, error) {
	switch rec.RType() {
	case dbn.RTypeSymbolMapping:
		m, err := dbn.Get[dbn.SymbolMappingMsg](rec)
		if err != nil {
			return false, err
		}
		symbol := m.InSymbol()
		if symbol == "" {
			symbol = m.OutSymbol()
		}
		s.symbols[m.Hd.InstrumentID] = symbol
		return true, nil
	case dbn.RTypeInstrumentDef:
		m, err := dbn.Get[dbn.InstrumentDefMsg](rec)
		if err != nil {
			return false, err
		}
		if symbol := m.Symbol(); symbol != "" {
			s.symbols[m.Hd.InstrumentID] = symbol
			return true, nil
		}
	}
	return false, nil
}

func (s *SymbolStore) Contains(instrumentID uint32) bool {
	_, ok := s.symbols[instrumentID]
	return ok
}

func (s *SymbolStore) Get(instrumentID uint32) (string, error) {
	if symbol, ok := s.symbols[instrumentID]; ok {
		return symbol, nil
	}
	return "", fmt.Errorf("unable to get symbol of instrument %d: %w", instrumentID, ErrSymbolNotPresent)
}

func (s *SymbolStore) MustGet(instrumentID uint32) string {
	symbol, err := s.Get(instrumentID)
	if err != nil {
		panic(err.Error())
	}
	return symbol
}

// GetOrID returns the symbol of instrumentID, or the id in decimal.
func (s *SymbolStore) GetOrID(instrumentID uint32) string {
	if symbol, ok := s.symbols[instrumentID]; ok {
		return symbol
	}
	return strconv.FormatUint(uint64(instrumentID), 10)
}

func (s *SymbolStore) Len() int {
	return len(s.symbols)
}
