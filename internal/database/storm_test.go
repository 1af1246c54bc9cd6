package database

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/mdouchement/quotagate/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) Client {
	db, err := StormOpen(filepath.Join(t.TempDir(), "quotagate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStormObjects(t *testing.T) {
	db := testClient(t)

	object := &model.Object{Key: "aaa/report.pdf", Size: 42}
	require.NoError(t, db.Save(object))
	assert.NotEmpty(t, object.ID)
	assert.False(t, object.CreatedAt.IsZero())

	found, err := db.FindObjectByKey("aaa/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, object.ID, found.ID)
	assert.Equal(t, int64(42), found.Size)

	_, err = db.FindObjectByKey("bbb/unknown.pdf")
	assert.True(t, db.IsNotFound(err))

	require.NoError(t, db.DeleteObject(object.ID))
	_, err = db.FindObjectByKey("aaa/report.pdf")
	assert.True(t, db.IsNotFound(err))
}

func TestStormObjectsPage(t *testing.T) {
	db := testClient(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, db.Save(&model.Object{Key: fmt.Sprintf("prefix/file-%d", i), Size: 1}))
	}

	seen := map[string]bool{}
	for skip := 0; ; skip += 2 {
		objects, err := db.ObjectsPage(skip, 2)
		require.NoError(t, err)
		if len(objects) == 0 {
			break
		}
		for _, object := range objects {
			seen[object.Key] = true
		}
	}
	assert.Len(t, seen, 5)
}

func TestStormCounter(t *testing.T) {
	db := testClient(t)

	_, err := db.Counter(UsedBytesKey)
	assert.True(t, db.IsNotFound(err))

	require.NoError(t, db.SetCounter(UsedBytesKey, 1234))
	value, err := db.Counter(UsedBytesKey)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), value)

	require.NoError(t, db.DeleteCounter(UsedBytesKey))
	_, err = db.Counter(UsedBytesKey)
	assert.True(t, db.IsNotFound(err))

	// Deleting an absent cell is a no-op.
	assert.NoError(t, db.DeleteCounter(UsedBytesKey))
}

func TestStormBatches(t *testing.T) {
	db := testClient(t)

	batch := &model.PendingBatch{Keys: []string{"aaa/a", "bbb/b"}, TotalBytes: 12}
	require.NoError(t, db.Save(batch))

	batches, err := db.AllBatches()
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, []string{"aaa/a", "bbb/b"}, batches[0].Keys)

	require.NoError(t, db.DeleteBatch(batch.ID))
	batches, err = db.AllBatches()
	require.NoError(t, err)
	assert.Empty(t, batches)
}
