package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/renameio"

	ferrors "flatctl/internal/errors"
	"flatctl/internal/model"
)

// fileFormat is the on-disk layout of a saved collection.
type fileFormat struct {
	InitDate time.Time    `json:"init_date"`
	NextID   int64        `json:"next_id"`
	Flats    []model.Flat `json:"flats"`
}

// Path returns the backing file ("" when the collection is memory-only).
func (c *Collection) Path() string { return c.path }

// Save writes the collection to its backing file atomically: readers
// see either the old file or the new one, never a partial write.
func (c *Collection) Save() error {
	if c.path == "" {
		return &ferrors.StoreError{Op: "save", Err: fmt.Errorf("no data file configured")}
	}

	c.mu.Lock()
	ff := fileFormat{InitDate: c.initDate, NextID: c.nextID, Flats: c.snapshotLocked()}
	c.mu.Unlock()
	sort.Slice(ff.Flats, func(i, j int) bool { return ff.Flats[i].ID < ff.Flats[j].ID })

	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return &ferrors.StoreError{Op: "save", Path: c.path, Err: err}
	}
	if err := renameio.WriteFile(c.path, append(data, '\n'), 0o644); err != nil {
		return &ferrors.StoreError{Op: "save", Path: c.path, Err: err}
	}
	return nil
}

// ErrSkipped marks a load that dropped unusable records but kept the
// rest of the collection.
var ErrSkipped = ferrors.New("unusable records skipped")

// Open returns a collection backed by path, loading it when the file
// exists.  Records that fail validation or reuse an id are skipped and
// reported in the returned error alongside the usable collection.
func Open(path string) (*Collection, error) {
	c := New(path)
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return c, &ferrors.StoreError{Op: "load", Path: path, Err: err}
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return c, &ferrors.StoreError{Op: "load", Path: path, Err: err}
	}

	var skipped []error
	for _, f := range ff.Flats {
		if f.ID <= 0 {
			skipped = append(skipped, fmt.Errorf("record without id"))
			continue
		}
		if _, dup := c.flats[f.ID]; dup {
			skipped = append(skipped, fmt.Errorf("flat %d: duplicate id", f.ID))
			continue
		}
		if err := f.Validate(); err != nil {
			skipped = append(skipped, fmt.Errorf("flat %d: %w", f.ID, err))
			continue
		}
		c.flats[f.ID] = f
		if f.ID >= c.nextID {
			c.nextID = f.ID + 1
		}
	}
	if ff.NextID > c.nextID {
		c.nextID = ff.NextID
	}
	if !ff.InitDate.IsZero() {
		c.initDate = ff.InitDate
	}
	if len(skipped) > 0 {
		return c, &ferrors.StoreError{Op: "load", Path: path,
			Err: fmt.Errorf("%w: %w", ErrSkipped, ferrors.Join(skipped...))}
	}
	return c, nil
}
