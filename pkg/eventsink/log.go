package eventsink

import (
	"context"

	"cosmossdk.io/log"
)

// Log writes records to a logger at info level.
type Log struct {
	logger log.Logger
}

func NewLog(logger log.Logger) *Log {
	return &Log{logger: logger.With("module", "eventsink")}
}

func (l *Log) Publish(_ context.Context, records []Record) error {
	for _, r := range records {
		kv := make([]any, 0, 4+2*len(r.Attributes))
		kv = append(kv, "height", r.Height, "op", r.Op)
		for _, a := range r.Attributes {
			kv = append(kv, a.Key, a.Value)
		}
		l.logger.Info(r.Type, kv...)
	}
	return nil
}

func (l *Log) Close() error { return nil }
