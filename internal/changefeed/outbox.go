package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopmonkeyus/go-common/logger"
	"github.com/tidwall/buntdb"
)

const outboxPrefix = "event:"

// OutboxTTL is how long an unpublished event is kept.
var OutboxTTL = 7 * 24 * time.Hour

// Outbox keeps events which were committed but could not be published.
type Outbox struct {
	logger logger.Logger
	db     *buntdb.DB
	once   sync.Once
}

// OutboxFilename returns the outbox database file in dir.
func OutboxFilename(dir string) string {
	return filepath.Join(dir, "tablekit-outbox.db")
}

// OpenOutbox opens the outbox in dir, or an in-memory outbox when dir is empty.
func OpenOutbox(log logger.Logger, dir string) (*Outbox, error) {
	fn := ":memory:"
	if dir != "" {
		fn = OutboxFilename(dir)
	}
	db, err := buntdb.Open(fn)
	if err != nil {
		return nil, fmt.Errorf("failed to open outbox: %w", err)
	}
	var dbcfg buntdb.Config
	if err := db.ReadConfig(&dbcfg); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read outbox config: %w", err)
	}
	dbcfg.SyncPolicy = buntdb.Always
	if err := db.SetConfig(dbcfg); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set outbox config: %w", err)
	}
	return &Outbox{logger: log.WithPrefix("[outbox]"), db: db}, nil
}

// keys sort by timestamp so pending events come back in commit order.
func outboxKey(event *ChangeEvent) string {
	return fmt.Sprintf("%s%020d:%s", outboxPrefix, event.Timestamp, event.ID)
}

// Add stores an event until it is flushed.
func (o *Outbox) Add(event *ChangeEvent) error {
	buf, err := json.Marshal(event)
	if err != nil {
		return err
	}
	err = o.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(outboxKey(event), string(buf), &buntdb.SetOptions{Expires: true, TTL: OutboxTTL})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", event, err)
	}
	o.logger.Debug("added %s", event)
	return nil
}

// Pending returns the stored events, oldest first.
func (o *Outbox) Pending() ([]*ChangeEvent, error) {
	var res []*ChangeEvent
	err := o.db.View(func(tx *buntdb.Tx) error {
		var derr error
		err := tx.AscendKeys(outboxPrefix+"*", func(key, value string) bool {
			var event ChangeEvent
			if derr = json.Unmarshal([]byte(value), &event); derr != nil {
				derr = fmt.Errorf("invalid outbox entry %s: %w", key, derr)
				return false
			}
			res = append(res, &event)
			return true
		})
		if err != nil {
			return err
		}
		return derr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Remove deletes events from the outbox. Missing events are ignored.
func (o *Outbox) Remove(events ...*ChangeEvent) error {
	return o.db.Update(func(tx *buntdb.Tx) error {
		for _, event := range events {
			if _, err := tx.Delete(outboxKey(event)); err != nil && err != buntdb.ErrNotFound {
				return err
			}
		}
		return nil
	})
}

// Flush publishes the pending events in order and removes each one once published. It stops at
// the first failure so events are never published out of order.
func (o *Outbox) Flush(ctx context.Context, sink Sink) (int, error) {
	pending, err := o.Pending()
	if err != nil {
		return 0, err
	}
	var count int
	for _, event := range pending {
		if err := sink.Publish(ctx, event); err != nil {
			return count, err
		}
		if err := o.Remove(event); err != nil {
			return count, err
		}
		count++
	}
	if count > 0 {
		o.logger.Debug("flushed %d events", count)
	}
	return count, nil
}

// Close closes the outbox database.
func (o *Outbox) Close() error {
	o.once.Do(func() {
		o.db.Shrink()
		o.db.Close()
	})
	return nil
}
