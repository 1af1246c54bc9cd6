package storage

import (
	"io"
	fspkg "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

type fs struct {
	workspace string
}

// NewFileSystem returns a new File System backend.
func NewFileSystem(workspace string) Backend {
	return &fs{
		workspace: workspace,
	}
}

func (b *fs) Name() string {
	return "file_system"
}

func (b *fs) Reader(key string) (io.ReadCloser, error) {
	rc, err := os.Open(filepath.Join(b.workspace, filepath.FromSlash(key)))
	if err != nil {
		return rc, errors.Wrap(err, "could not open file")
	}
	return rc, err
}

func (b *fs) Writer(key string) (io.WriteCloser, error) {
	filename := filepath.Join(b.workspace, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return nil, errors.Wrap(err, "could not create key prefix")
	}

	wc, err := os.Create(filename)
	if err != nil {
		return wc, errors.Wrap(err, "could not create file")
	}
	return wc, err
}

// List walks the whole workspace sorted by key and paginates with the last
// returned key as cursor.
func (b *fs) List(cursor string, limit int) ([]Entry, string, error) {
	all := make([]Entry, 0)

	err := filepath.Walk(b.workspace, func(path string, info fspkg.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == b.workspace {
				return filepath.SkipDir
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".DS_Store") {
			return nil
		}

		key := filepath.ToSlash(strings.TrimPrefix(path, b.workspace+string(os.PathSeparator)))
		all = append(all, Entry{Key: key, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, "", errors.Wrap(err, "list")
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].Key < all[j].Key
	})

	entries := make([]Entry, 0, limit)
	for _, entry := range all {
		if cursor != "" && entry.Key <= cursor {
			continue
		}
		entries = append(entries, entry)
		if len(entries) == limit {
			return entries, entry.Key, nil
		}
	}

	return entries, "", nil
}

func (b *fs) Remove(key string) error {
	err := os.Remove(filepath.Join(b.workspace, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "could not delete file")
	}
	return nil
}

// Cleanup removes the empty prefix directories left behind by Remove.
func (b *fs) Cleanup() error {
	stats := map[string]int{}
	err := filepath.Walk(b.workspace, func(path string, info fspkg.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == b.workspace {
				return filepath.SkipDir
			}
			return err
		}

		if info.IsDir() {
			if path == b.workspace {
				return nil
			}
			stats[path] = 0
			return nil
		}

		if strings.HasSuffix(path, ".DS_Store") {
			return nil
		}

		trimmedpath := strings.Replace(path, b.workspace, "", 1)
		base := b.workspace

		for _, segment := range strings.Split(filepath.Dir(trimmedpath), string(os.PathSeparator)) {
			base = filepath.Join(base, segment)
			if !strings.HasPrefix(base, b.workspace) {
				continue
			}
			stats[base]++
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "cleanup")
	}

	for dirname, count := range stats {
		if count == 0 {
			os.RemoveAll(dirname)
		}
	}
	return nil
}
