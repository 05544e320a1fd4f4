package app

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/pkg/eventsink"
)

// EventLogStoreKey is the store holding the chain head and committed events.
const EventLogStoreKey = "eventlog"

var (
	headKey        = []byte{0x00}
	eventKeyPrefix = []byte{0x01}
)

// head is the last committed block.
type head struct {
	Height int64     `json:"height"`
	Time   time.Time `json:"time"`
}

func eventKey(height int64, index uint32) []byte {
	key := make([]byte, 0, len(eventKeyPrefix)+12)
	key = append(key, eventKeyPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(height))
	return binary.BigEndian.AppendUint32(key, index)
}

func (app *App) eventStore(ctx sdk.Context) storetypes.KVStore {
	return ctx.KVStore(app.keys[EventLogStoreKey])
}

func (app *App) writeBlock(ctx sdk.Context, h head, records []eventsink.Record) error {
	store := app.eventStore(ctx)
	for _, r := range records {
		bz, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal event %d/%d: %w", r.Height, r.Index, err)
		}
		store.Set(eventKey(r.Height, r.Index), bz)
	}
	bz, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("marshal head: %w", err)
	}
	store.Set(headKey, bz)
	return nil
}

// loadHead restores height and block time from the last commit.
func (app *App) loadHead() error {
	ctx := app.readContext()
	bz := app.eventStore(ctx).Get(headKey)
	if bz == nil {
		return nil
	}
	var h head
	if err := json.Unmarshal(bz, &h); err != nil {
		return fmt.Errorf("decode chain head: %w", err)
	}
	app.height = h.Height
	app.lastBlockTime = h.Time
	app.metrics.Height.Set(float64(h.Height))
	app.refreshMetrics()
	return nil
}

// EventFilter selects committed events.
type EventFilter struct {
	// FromHeight is the first height returned; zero means genesis.
	FromHeight int64
	// Type restricts the result to one event type when set.
	Type string
	// Attributes must all match when set.
	Attributes map[string]string
	// Limit caps the number of records; zero means 100.
	Limit int
}

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

// Events returns committed events in commit order.
func (app *App) Events(filter EventFilter) ([]eventsink.Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		return nil, ErrInvalidRequest.Wrapf("limit %d exceeds %d", limit, maxEventLimit)
	}
	from := filter.FromHeight
	if from < 0 {
		return nil, ErrInvalidRequest.Wrap("negative height")
	}

	var out []eventsink.Record
	err := app.Query(func(ctx sdk.Context) error {
		store := app.eventStore(ctx)
		it := store.Iterator(eventKey(from, 0), storetypes.PrefixEndBytes(eventKeyPrefix))
		defer it.Close()
		for ; it.Valid() && len(out) < limit; it.Next() {
			var r eventsink.Record
			if err := json.Unmarshal(it.Value(), &r); err != nil {
				return fmt.Errorf("decode event: %w", err)
			}
			if matches(r, filter) {
				out = append(out, r)
			}
		}
		return nil
	})
	return out, err
}

func matches(r eventsink.Record, filter EventFilter) bool {
	if filter.Type != "" && r.Type != filter.Type {
		return false
	}
	for k, v := range filter.Attributes {
		if r.Attr(k) != v {
			return false
		}
	}
	return true
}
