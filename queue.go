package resumable

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/resumable/events"
	"github.com/opd-ai/resumable/limits"
)

// rejection defers an admission-failure callback until the engine mutex is
// released.
type rejection struct {
	item Item
	v    *limits.Violation
}

// mimeTypeFor derives a type/subtype MIME value from the item name, without
// parameters, for allow-list matching.
func mimeTypeFor(name string) string {
	t := mime.TypeByExtension(filepath.Ext(name))
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}

// AddFiles applies the admission policy to a batch of items and constructs
// a tracked File for each accepted one. Items failing a check invoke
// Options.OnRejected and are dropped; items whose identifier is already
// tracked are silently skipped. Returns the admitted files in order.
func (c *Client) AddFiles(items ...Item) []*File {
	c.mu.Lock()

	var (
		added   []*File
		rejects []rejection
		evs     []events.Event
	)

	for _, item := range items {
		// Single-slot replacement: a queue capped at one file swaps the
		// tracked file for the newcomer instead of rejecting it.
		if c.opts.Limits.MaxFiles == 1 && len(c.files) == 1 && len(items) == 1 {
			logrus.WithFields(logrus.Fields{
				"function": "AddFiles",
				"replaced": c.files[0].identifier,
				"name":     item.Name(),
			}).Info("Replacing tracked file in single-slot queue")
			c.files[0].cancelLocked()
		}

		if v := c.opts.Limits.CheckCount(len(c.files)); v != nil {
			rejects = append(rejects, rejection{item, v})
			continue
		}
		if v := c.opts.Limits.CheckSize(item.Size()); v != nil {
			rejects = append(rejects, rejection{item, v})
			continue
		}
		if v := c.opts.Limits.CheckType(item.Name(), mimeTypeFor(item.Name())); v != nil {
			rejects = append(rejects, rejection{item, v})
			continue
		}

		identifier, err := c.identifierFor(item)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "AddFiles",
				"name":     item.Name(),
				"error":    err.Error(),
			}).Error("Identifier generation failed, dropping item")
			continue
		}

		if c.fileByIdentifierLocked(identifier) != nil {
			// Duplicate admission: skipped, counted apart from failures.
			c.collisions++
			logrus.WithFields(logrus.Fields{
				"function":   "AddFiles",
				"identifier": identifier,
				"name":       item.Name(),
			}).Debug("Duplicate identifier, skipping item")
			continue
		}

		f := newFile(c, item, identifier)
		c.files = append(c.files, f)
		evs = append(evs, events.FileAdded{
			Identifier:   identifier,
			Name:         f.name,
			Size:         f.size,
			RelativePath: f.relativePath,
		})
		f.bootstrapLocked(&evs)
		added = append(added, f)

		logrus.WithFields(logrus.Fields{
			"function":   "AddFiles",
			"identifier": identifier,
			"name":       f.name,
			"size":       humanSize(f.size),
		}).Info("File admitted")
	}

	if len(added) > 0 {
		// New work re-arms the one-time completion notification.
		c.completeFired = false
	}
	c.mu.Unlock()

	for _, r := range rejects {
		logrus.WithFields(logrus.Fields{
			"function": "AddFiles",
			"name":     r.item.Name(),
			"reason":   r.v.Message,
		}).Warn("File rejected at admission")
		if c.opts.OnRejected != nil {
			c.opts.OnRejected(r.item, r.v)
		}
	}
	c.bus.EmitAll(evs...)

	return added
}

// AddFile admits a single item. Returns the tracked file, or nil if the
// item was rejected or was a duplicate.
func (c *Client) AddFile(item Item) *File {
	added := c.AddFiles(item)
	if len(added) == 0 {
		return nil
	}
	return added[0]
}

// FileByIdentifier returns the tracked file with the given identifier.
func (c *Client) FileByIdentifier(identifier string) (*File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f := c.fileByIdentifierLocked(identifier); f != nil {
		return f, nil
	}
	return nil, ErrFileNotFound
}

func (c *Client) fileByIdentifierLocked(identifier string) *File {
	for _, f := range c.files {
		if f.identifier == identifier {
			return f
		}
	}
	return nil
}

// Files returns a snapshot of the tracked files in admission order.
func (c *Client) Files() []*File {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*File, len(c.files))
	copy(out, c.files)
	return out
}

// Len returns the number of tracked files.
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.files)
}

// Collisions returns how many duplicate admissions were skipped.
func (c *Client) Collisions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collisions
}
