package live

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/dbnfeed/pkg/dbn"
)

func TestSubscriptionSet_Requests(t *testing.T) {
	var set SubscriptionSet
	require.NoError(t, set.Add(Subscription{Symbols: []string{"ESZ5", "NQZ5"}, Schema: dbn.SchemaTrades, STypeIn: dbn.STypeRawSymbol}))
	require.NoError(t, set.Add(Subscription{
		Symbols: []string{dbn.AllSymbols},
		Schema:  dbn.SchemaMbp1,
		STypeIn: dbn.STypeParent,
		Start:   time.Unix(0, 1_700_000_000_000_000_000),
	}))

	assert.Equal(t, []string{
		"schema=trades|stype_in=raw_symbol|symbols=ESZ5,NQZ5\n",
		"schema=mbp-1|stype_in=parent|symbols=ALL_SYMBOLS|start=1700000000000000000\n",
	}, set.Requests())
	assert.Equal(t, 2, set.Len())
}

func TestSubscriptionSet_ChunksLargeSymbolLists(t *testing.T) {
	symbols := make([]string, symbolChunkSize+3)
	for i := range symbols {
		symbols[i] = fmt.Sprintf("S%d", i)
	}

	var set SubscriptionSet
	require.NoError(t, set.Add(Subscription{Symbols: symbols, Schema: dbn.SchemaOhlcv1S, STypeIn: dbn.STypeRawSymbol}))

	lines := set.Requests()
	require.Len(t, lines, 2)
	assert.Equal(t, symbolChunkSize, strings.Count(lines[0], ",")+1)
	assert.True(t, strings.HasSuffix(lines[1], "symbols=S128,S129,S130\n"))
}

func TestSubscriptionSet_Invalid(t *testing.T) {
	tests := []struct {
		name string
		sub  Subscription
	}{
		{"no symbols", Subscription{Schema: dbn.SchemaTrades}},
		{"blank symbol", Subscription{Symbols: []string{" "}, Schema: dbn.SchemaTrades}},
		{"separator in symbol", Subscription{Symbols: []string{"ES|NQ"}, Schema: dbn.SchemaTrades}},
		{"status schema", Subscription{Symbols: []string{"ESZ5"}, Schema: dbn.SchemaStatus}},
		{"unknown schema", Subscription{Symbols: []string{"ESZ5"}, Schema: dbn.Schema(77)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var set SubscriptionSet
			assert.ErrorIs(t, set.Add(tt.sub), ErrUsage)
			assert.Zero(t, set.Len())
		})
	}
}

func TestSubscriptionSet_CopiesSymbols(t *testing.T) {
	symbols := []string{"ESZ5"}
	var set SubscriptionSet
	require.NoError(t, set.Add(Subscription{Symbols: symbols, Schema: dbn.SchemaTrades}))

	symbols[0] = "CHANGED"
	assert.Equal(t, "ESZ5", set.All()[0].Symbols[0])
}
