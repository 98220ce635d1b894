package engine

import (
	"context"
	"fmt"

	"github.com/l7mp/dflow/pkg/persist"
)

// Recover replays the durability log into the base tables. It must be called after the tables
// have been created and before any new write is accepted. It returns the number of replayed
// records.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	if e.seq.Load() != 0 {
		return 0, fmt.Errorf("recover: engine already accepted %d writes", e.seq.Load())
	}

	n := 0
	err := e.plog.Replay(ctx, func(rec persist.Record) error {
		t, err := e.Table(rec.Table)
		if err != nil {
			return err
		}
		if _, err := e.write(ctx, t, rec, true); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return n, err
	}

	e.log.Info("log replayed", "records", n, "seq", e.Sequence())

	return n, e.Sync(ctx)
}
