// Package sweeper implements the retention sweep: stale unpinned objects are
// reclaimed and the usage counter is reconciled by the bytes actually freed.
package sweeper

import (
	"time"

	"github.com/mdouchement/logger"
	"github.com/mdouchement/quotagate/internal/database"
	"github.com/mdouchement/quotagate/internal/model"
	"github.com/mdouchement/quotagate/internal/quota"
	"github.com/mdouchement/quotagate/internal/storage"
)

const (
	// RetentionWindow is the maximum idle duration an unpinned object may
	// reach before becoming sweep-eligible.
	RetentionWindow = 7 * 24 * time.Hour

	pageSize = 100
)

type (
	// A Sweeper enumerates the whole object population and deletes the
	// eligible ones. It is idempotent and safe to run concurrently with
	// request traffic.
	Sweeper struct {
		db      database.Client
		storage storage.Backend
		counter *quota.Counter
		log     logger.Logger
	}

	// A Result aggregates one full sweep pass.
	Result struct {
		Deleted    int
		FreedBytes int64
	}
)

// New returns a new Sweeper.
func New(db database.Client, storage storage.Backend, counter *quota.Counter, log logger.Logger) *Sweeper {
	return &Sweeper{
		db:      db,
		storage: storage,
		counter: counter,
		log:     log.WithPrefix("[sweep]"),
	}
}

// Sweep runs one full pass. Per-object failures are logged and do not abort
// the remaining objects; the counter is adjusted once at the end by the
// total freed, to bound contention during a large pass.
func (s *Sweeper) Sweep(now time.Time) (Result, error) {
	var result Result

	candidates, err := s.candidates(now)
	if err != nil {
		return result, err
	}

	for _, object := range candidates {
		if err := s.storage.Remove(object.Key); err != nil {
			s.log.Errorf("could not remove %s: %s", object.Key, err)
			continue
		}
		if err := s.db.DeleteObject(object.ID); err != nil {
			s.log.Errorf("could not delete metadata of %s: %s", object.Key, err)
			continue
		}

		result.Deleted++
		result.FreedBytes += object.Size
		s.log.Infof("swept %s (%d bytes)", object.Key, object.Size)
	}

	if result.FreedBytes > 0 {
		s.counter.Adjust(-result.FreedBytes)
	}

	s.purgeBatches(now)

	if err := s.storage.Cleanup(); err != nil {
		s.log.Errorf("cleanup: %s", err)
	}

	return result, nil
}

// candidates exhausts the paginated enumeration before any deletion so the
// pagination is not disturbed by the removals. Eligibility is evaluated from
// the metadata read at enumeration time.
func (s *Sweeper) candidates(now time.Time) ([]*model.Object, error) {
	horizon := now.Add(-RetentionWindow)
	candidates := make([]*model.Object, 0)

	for skip := 0; ; skip += pageSize {
		objects, err := s.db.ObjectsPage(skip, pageSize)
		if err != nil {
			return nil, err
		}
		if len(objects) == 0 {
			break
		}

		for _, object := range objects {
			if eligible(object, horizon) {
				candidates = append(candidates, object)
			}
		}
	}

	return candidates, nil
}

// eligible: unpinned and stale. A missing last-access stamp is not a
// protection, it makes the object eligible.
func eligible(object *model.Object, horizon time.Time) bool {
	if object.Pinned {
		return false
	}
	if object.LastAccessed.IsZero() {
		return true
	}
	return object.LastAccessed.Before(horizon)
}

// purgeBatches drops the expired pending batch snapshots. They are hints
// only, losing one has no effect on confirm.
func (s *Sweeper) purgeBatches(now time.Time) {
	batches, err := s.db.AllBatches()
	if err != nil {
		s.log.Errorf("could not list pending batches: %s", err)
		return
	}

	for _, batch := range batches {
		if batch.ExpiresAt.After(now) {
			continue
		}
		if err := s.db.DeleteBatch(batch.ID); err != nil {
			s.log.Errorf("could not purge pending batch %s: %s", batch.ID, err)
		}
	}
}
