package database

import (
	"github.com/mdouchement/quotagate/internal/model"
)

// UsedBytesKey is the well-known name of the usage counter cell.
const UsedBytesKey = "used_bytes"

type (
	// A Client can interacts with the database.
	Client interface {
		// Save inserts or updates the entry in database with the given model.
		Save(m model.Model) error
		// Delete deletes the entry in database with the given model.
		Delete(m model.Model) error
		// Close the database.
		Close() error
		// IsNotFound returns true if err is a not found error.
		IsNotFound(err error) bool

		ObjectInteraction
		BatchInteraction
		CounterInteraction
	}

	// An ObjectInteraction defines all the methods used to interact with an object record.
	ObjectInteraction interface {
		AllObjects() ([]*model.Object, error)
		ObjectsPage(skip, limit int) ([]*model.Object, error)
		FindObjectByKey(key string) (*model.Object, error)
		DeleteObject(id string) error
	}

	// A BatchInteraction defines all the methods used to interact with a pending batch record.
	BatchInteraction interface {
		AllBatches() ([]*model.PendingBatch, error)
		DeleteBatch(id string) error
	}

	// A CounterInteraction defines all the methods used to interact with the counter cells.
	CounterInteraction interface {
		// Counter returns the value of the named cell. A not found error is
		// returned when the cell has never been written.
		Counter(name string) (int64, error)
		SetCounter(name string, value int64) error
		DeleteCounter(name string) error
	}
)
