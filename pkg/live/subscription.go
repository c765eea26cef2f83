package live

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/peter-kozarec/dbnfeed/pkg/dbn"
)

// symbolChunkSize bounds the symbols carried by one subscription line.
const symbolChunkSize = 128

type Subscription struct {
	Symbols []string
	Schema  dbn.Schema
	STypeIn dbn.SType
	// Start requests intraday replay from this time. Zero means live only.
	Start time.Time
}

type SubscribeOption func(*Subscription)

func WithStart(start time.Time) SubscribeOption {
	return func(s *Subscription) {
		s.Start = start
	}
}

// SubscriptionSet is an ordered, append only list of validated
// subscriptions. It is replayed in full on every connection.
type SubscriptionSet struct {
	subs []Subscription
}

func (set *SubscriptionSet) Add(sub Subscription) error {
	if len(sub.Symbols) == 0 {
		return fmt.Errorf("%w: subscription without symbols", ErrUsage)
	}
	for _, s := range sub.Symbols {
		if strings.TrimSpace(s) == "" || strings.ContainsAny(s, ",|\n") {
			return fmt.Errorf("%w: invalid symbol %q", ErrUsage, s)
		}
	}
	if _, err := dbn.RTypeFromSchema(sub.Schema); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	sub.Symbols = append([]string(nil), sub.Symbols...)
	set.subs = append(set.subs, sub)
	return nil
}

func (set *SubscriptionSet) Len() int { return len(set.subs) }

func (set *SubscriptionSet) All() []Subscription {
	return append([]Subscription(nil), set.subs...)
}

// Requests renders the gateway lines for every subscription in order.
func (set *SubscriptionSet) Requests() []string {
	var lines []string
	for _, sub := range set.subs {
		for i := 0; i < len(sub.Symbols); i += symbolChunkSize {
			end := min(i+symbolChunkSize, len(sub.Symbols))
			lines = append(lines, sub.request(sub.Symbols[i:end]))
		}
	}
	return lines
}

func (sub Subscription) request(symbols []string) string {
	var b strings.Builder
	b.WriteString("schema=")
	b.WriteString(sub.Schema.String())
	b.WriteString("|stype_in=")
	b.WriteString(sub.STypeIn.String())
	b.WriteString("|symbols=")
	b.WriteString(strings.Join(symbols, ","))
	if !sub.Start.IsZero() {
		b.WriteString("|start=")
		b.WriteString(strconv.FormatInt(sub.Start.UnixNano(), 10))
	}
	b.WriteByte('\n')
	return b.String()
}
