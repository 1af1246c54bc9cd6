package storage

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, b Backend, key, content string) {
	wc, err := b.Writer(key)
	require.NoError(t, err)
	_, err = wc.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, wc.Close())
}

func TestFileSystemRoundtrip(t *testing.T) {
	b := NewFileSystem(t.TempDir())

	write(t, b, "aaa/report.pdf", "payload")

	rc, err := b.Reader("aaa/report.pdf")
	require.NoError(t, err)
	defer rc.Close()

	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(content))

	//

	require.NoError(t, b.Remove("aaa/report.pdf"))
	_, err = b.Reader("aaa/report.pdf")
	assert.Error(t, err)
}

func TestFileSystemListPagination(t *testing.T) {
	b := NewFileSystem(t.TempDir())

	for i := 0; i < 5; i++ {
		write(t, b, fmt.Sprintf("prefix-%d/file-%d.txt", i, i), "xx")
	}

	collected := make([]Entry, 0)
	var cursor string
	var pages int
	for {
		entries, next, err := b.List(cursor, 2)
		require.NoError(t, err)
		collected = append(collected, entries...)
		pages++

		if next == "" {
			break
		}
		cursor = next
	}

	assert.Equal(t, 3, pages)
	require.Len(t, collected, 5)
	for i, entry := range collected {
		assert.Equal(t, fmt.Sprintf("prefix-%d/file-%d.txt", i, i), entry.Key)
		assert.Equal(t, int64(2), entry.Size)
	}
}

func TestFileSystemListEmptyWorkspace(t *testing.T) {
	b := NewFileSystem(t.TempDir())

	entries, next, err := b.List("", 100)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, next)
}

func TestFileSystemCleanup(t *testing.T) {
	b := NewFileSystem(t.TempDir())

	write(t, b, "aaa/one.txt", "x")
	write(t, b, "bbb/two.txt", "x")
	require.NoError(t, b.Remove("aaa/one.txt"))

	require.NoError(t, b.Cleanup())

	entries, _, err := b.List("", 100)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bbb/two.txt", entries[0].Key)
}
