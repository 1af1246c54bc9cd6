package database

import (
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/json"
	"github.com/asdine/storm/v3/q"
	"github.com/gofrs/uuid"
	"github.com/mdouchement/quotagate/internal/model"
	"github.com/pkg/errors"
)

type strm struct {
	db *storm.DB
}

// StormCodec is the format used to store data in the database.
var StormCodec = storm.Codec(json.Codec)

const countersBucket = "counters"

// StormInit initializes Storm database.
func StormInit(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	if err := db.Init(&model.Object{}); err != nil {
		return errors.Wrap(err, "could not init object index")
	}

	err = db.Init(&model.PendingBatch{})
	return errors.Wrap(err, "could not init pending batch index")
}

// StormReIndex rebuilds the indexes of the Storm database.
func StormReIndex(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	if err := db.ReIndex(&model.Object{}); err != nil {
		return errors.Wrap(err, "could not ReIndex objects")
	}

	err = db.ReIndex(&model.PendingBatch{})
	return errors.Wrap(err, "could not ReIndex pending batches")
}

// StormOpen opens the Storm database and returns a Client.
func StormOpen(database string) (Client, error) {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}

	return &strm{
		db: db,
	}, nil
}

func (c *strm) Save(m model.Model) error {
	t := time.Now().UTC()
	m.SetUpdatedAt(t)

	if m.GetID() == "" {
		m.SetID(uuid.Must(uuid.NewV4()).String())
		m.SetCreatedAt(t)
	}

	return errors.Wrap(c.db.Save(m), "could not save the model")
}

func (c *strm) Delete(m model.Model) error {
	return errors.Wrap(c.db.DeleteStruct(m), "could not delete the model")
}

func (c *strm) Close() error {
	return c.db.Close()
}

func (c *strm) IsNotFound(err error) bool {
	return errors.Cause(err) == storm.ErrNotFound
}

//
// Object
//

func (c *strm) AllObjects() ([]*model.Object, error) {
	objects := make([]*model.Object, 0)
	err := c.db.All(&objects)
	return objects, errors.Wrap(err, "could not get all objects")
}

func (c *strm) ObjectsPage(skip, limit int) ([]*model.Object, error) {
	objects := make([]*model.Object, 0)
	err := c.db.Select().OrderBy("CreatedAt").Skip(skip).Limit(limit).Find(&objects)
	if errors.Cause(err) == storm.ErrNotFound {
		return objects, nil
	}
	return objects, errors.Wrap(err, "could not get objects page")
}

func (c *strm) FindObjectByKey(key string) (*model.Object, error) {
	var object model.Object
	err := c.db.Select(q.Eq("Key", key)).First(&object)
	return &object, errors.Wrap(err, "could not find object")
}

func (c *strm) DeleteObject(id string) error {
	err := c.db.Select(q.Eq("ID", id)).Delete(&model.Object{})
	return errors.Wrap(err, "could not delete object")
}

//
// PendingBatch
//

func (c *strm) AllBatches() ([]*model.PendingBatch, error) {
	batches := make([]*model.PendingBatch, 0)
	err := c.db.All(&batches)
	return batches, errors.Wrap(err, "could not get all pending batches")
}

func (c *strm) DeleteBatch(id string) error {
	err := c.db.Select(q.Eq("ID", id)).Delete(&model.PendingBatch{})
	return errors.Wrap(err, "could not delete pending batch")
}

//
// Counter
//

func (c *strm) Counter(name string) (int64, error) {
	var value int64
	err := c.db.Get(countersBucket, name, &value)
	if err == storm.ErrNotFound {
		return 0, err
	}
	return value, errors.Wrap(err, "could not get counter")
}

func (c *strm) SetCounter(name string, value int64) error {
	return errors.Wrap(c.db.Set(countersBucket, name, value), "could not set counter")
}

func (c *strm) DeleteCounter(name string) error {
	err := c.db.Delete(countersBucket, name)
	if err == storm.ErrNotFound {
		return nil
	}
	return errors.Wrap(err, "could not delete counter")
}
