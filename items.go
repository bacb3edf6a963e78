package resumable

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
)

// Item is a transferable byte source. The engine slices byte ranges out of it
// with ReadAt, so implementations must support concurrent reads at
// independent offsets.
type Item interface {
	io.ReaderAt

	// Name is the file name presented to the receiver.
	Name() string
	// Size is the total byte count. It must not change after admission.
	Size() int64
	// RelativePath locates the item within its batch, for receivers that
	// reconstruct directory structure. It may equal Name.
	RelativePath() string
}

// LocalItem is an Item backed by a file on disk.
type LocalItem struct {
	f    *os.File
	name string
	rel  string
	size int64
}

// NewLocalItem opens path for reading. The relative path defaults to the
// base name; use NewLocalItemWithPath to preserve batch structure.
func NewLocalItem(path string) (*LocalItem, error) {
	return NewLocalItemWithPath(path, filepath.Base(path))
}

// NewLocalItemWithPath opens path for reading with an explicit relative path.
func NewLocalItemWithPath(path, relativePath string) (*LocalItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	return &LocalItem{
		f:    f,
		name: filepath.Base(path),
		rel:  filepath.ToSlash(relativePath),
		size: info.Size(),
	}, nil
}

// Name implements Item.
func (l *LocalItem) Name() string { return l.name }

// Size implements Item.
func (l *LocalItem) Size() int64 { return l.size }

// RelativePath implements Item.
func (l *LocalItem) RelativePath() string { return l.rel }

// ReadAt implements Item.
func (l *LocalItem) ReadAt(p []byte, off int64) (int, error) { return l.f.ReadAt(p, off) }

// Close releases the underlying file handle. Close after the item is no
// longer tracked by a queue.
func (l *LocalItem) Close() error { return l.f.Close() }

// BytesItem is an in-memory Item, convenient for small payloads and tests.
type BytesItem struct {
	name string
	rel  string
	data []byte
}

// NewBytesItem wraps data as an Item. The relative path equals the name.
func NewBytesItem(name string, data []byte) *BytesItem {
	return &BytesItem{name: name, rel: name, data: data}
}

// Name implements Item.
func (b *BytesItem) Name() string { return b.name }

// Size implements Item.
func (b *BytesItem) Size() int64 { return int64(len(b.data)) }

// RelativePath implements Item.
func (b *BytesItem) RelativePath() string { return b.rel }

// ReadAt implements Item.
func (b *BytesItem) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(b.data).ReadAt(p, off)
}

// ScanDir flattens a directory tree into a list of items whose relative
// paths are slash-separated and rooted at dir. The traversal is iterative,
// depth-first over an explicit stack, so arbitrarily deep trees cannot
// exhaust the call stack. Unreadable entries are logged and skipped.
func ScanDir(dir string) ([]Item, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	var items []Item
	stack := []string{root}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(current)
		if err != nil {
			if current == root {
				return nil, err
			}
			logrus.WithFields(logrus.Fields{
				"function": "ScanDir",
				"dir":      current,
				"error":    err.Error(),
			}).Warn("Skipping unreadable directory")
			continue
		}
		// Deterministic admission order regardless of readdir order.
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		var subdirs []string
		for _, entry := range entries {
			path := filepath.Join(current, entry.Name())
			if entry.IsDir() {
				subdirs = append(subdirs, path)
				continue
			}
			if !entry.Type().IsRegular() {
				continue
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				rel = entry.Name()
			}
			item, err := NewLocalItemWithPath(path, rel)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "ScanDir",
					"path":     path,
					"error":    err.Error(),
				}).Warn("Skipping unreadable file")
				continue
			}
			items = append(items, item)
		}
		// Last-pushed pops first: push in reverse for preorder traversal.
		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}

	return items, nil
}
