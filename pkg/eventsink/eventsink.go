// Package eventsink carries committed ledger events out of the sequencer host.
//
// The host converts every committed block's sdk.Events into Records and hands
// them, in commit order, to each configured Sink. Sinks run after the commit,
// so a sink failure is logged by the host and never rolls anything back.
package eventsink

import (
	"context"
	"errors"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Attribute is one key/value pair of an event, in emission order.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Record is one committed event.
type Record struct {
	Height     int64       `json:"height"`
	Index      uint32      `json:"index"`
	Time       time.Time   `json:"time"`
	Op         string      `json:"op"`
	Type       string      `json:"type"`
	Attributes []Attribute `json:"attributes"`
}

// Attr returns the first value of key, or "".
func (r Record) Attr(key string) string {
	for _, a := range r.Attributes {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

// FromEvents converts the events of one block.
func FromEvents(height int64, blockTime time.Time, op string, events sdk.Events) []Record {
	out := make([]Record, 0, len(events))
	for i, ev := range events {
		attrs := make([]Attribute, 0, len(ev.Attributes))
		for _, a := range ev.Attributes {
			attrs = append(attrs, Attribute{Key: a.Key, Value: a.Value})
		}
		out = append(out, Record{
			Height:     height,
			Index:      uint32(i),
			Time:       blockTime,
			Op:         op,
			Type:       ev.Type,
			Attributes: attrs,
		})
	}
	return out
}

// Sink receives committed records.
type Sink interface {
	Publish(ctx context.Context, records []Record) error
	Close() error
}

// Multi fans records out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, records []Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
