package quota

import (
	"sync"

	"github.com/mdouchement/logger"
	"github.com/mdouchement/quotagate/internal/database"
	"github.com/mdouchement/quotagate/internal/storage"
	"github.com/pkg/errors"
)

// listingPageSize bounds the backend pages fetched during a counter rebuild.
const listingPageSize = 1000

// A Counter maintains the approximate running total of stored bytes. The
// authoritative fast cell lives in the database; when the cell is absent the
// value is reconstructed from a full backend listing.
//
// It is the only shared resource contended by request handlers and the sweep,
// hence the serialized read-modify-write.
type Counter struct {
	mu      sync.Mutex
	db      database.Client
	storage storage.Backend
	log     logger.Logger
}

// NewCounter returns a new Counter.
func NewCounter(db database.Client, storage storage.Backend, log logger.Logger) *Counter {
	return &Counter{
		db:      db,
		storage: storage,
		log:     log.WithPrefix("[counter]"),
	}
}

// UsedBytes returns the tracked usage total, rebuilding it from the backend
// when the cell has never been written.
func (c *Counter) UsedBytes() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.usedBytes()
}

// Adjust applies the given delta to the counter cell. A persist failure is a
// drift event: it is logged and swallowed because the triggering operation
// already succeeded.
func (c *Counter) Adjust(delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, err := c.usedBytes()
	if err != nil {
		c.log.Errorf("drift: could not read counter for adjustment of %d bytes: %s", delta, err)
		return
	}

	value += delta
	if value < 0 {
		value = 0
	}

	if err := c.db.SetCounter(database.UsedBytesKey, value); err != nil {
		c.log.Errorf("drift: could not persist adjustment of %d bytes: %s", delta, err)
	}
}

// Rebuild drops the cell and recomputes it from a full backend listing.
func (c *Counter) Rebuild() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.db.DeleteCounter(database.UsedBytesKey); err != nil {
		return 0, err
	}

	return c.usedBytes()
}

func (c *Counter) usedBytes() (int64, error) {
	value, err := c.db.Counter(database.UsedBytesKey)
	if err == nil {
		if value < 0 {
			return 0, nil
		}
		return value, nil
	}
	if !c.db.IsNotFound(err) {
		return 0, err
	}

	// Cell absent, reconstruct from the backend by exhausting the listing.
	var cursor string
	for {
		entries, next, err := c.storage.List(cursor, listingPageSize)
		if err != nil {
			return 0, errors.Wrap(err, "could not list backend")
		}

		for _, entry := range entries {
			value += entry.Size
		}

		if next == "" {
			break
		}
		cursor = next
	}

	c.log.Infof("rebuilt counter from backend listing: %d bytes", value)
	return value, errors.Wrap(
		c.db.SetCounter(database.UsedBytesKey, value),
		"could not persist rebuilt counter",
	)
}
