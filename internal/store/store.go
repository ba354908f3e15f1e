// Package store holds the flat collection shared by every surface.
//
// Every operation runs as one critical section: a read-modify-write such
// as AddIfMax checks and inserts under the same lock, so concurrent
// remote workers never observe or act on a stale snapshot.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	ferrors "flatctl/internal/errors"
	"flatctl/internal/model"
)

// Info describes the collection as a whole.
type Info struct {
	Type     string    `json:"type"`
	InitDate time.Time `json:"init_date"`
	Count    int       `json:"count"`
	Path     string    `json:"path,omitempty"`
}

// Collection is a mutex-guarded set of flats keyed by id.
type Collection struct {
	mu       sync.Mutex
	flats    map[int64]model.Flat
	nextID   int64
	initDate time.Time
	path     string
	now      func() time.Time
}

// New returns an empty collection backed by path ("" disables Save).
func New(path string) *Collection {
	return newCollection(path, time.Now)
}

func newCollection(path string, now func() time.Time) *Collection {
	return &Collection{
		flats:    make(map[int64]model.Flat),
		nextID:   1,
		initDate: now().UTC(),
		path:     path,
		now:      now,
	}
}

// Len returns the number of flats.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.flats)
}

// Info returns the collection's type, creation time and size.
func (c *Collection) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Info{Type: "map[int64]Flat", InitDate: c.initDate, Count: len(c.flats), Path: c.path}
}

// Add validates f, assigns it a fresh id and stores it as owned by owner.
// A zero creation date is stamped with the current time.
func (c *Collection) Add(owner string, f model.Flat) (model.Flat, error) {
	if err := f.Validate(); err != nil {
		return model.Flat{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insertLocked(owner, f), nil
}

// AddIfMax adds f only when its area exceeds every stored flat's area.
// The boolean reports whether f was added.
func (c *Collection) AddIfMax(owner string, f model.Flat) (model.Flat, bool, error) {
	if err := f.Validate(); err != nil {
		return model.Flat{}, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.flats {
		if !existing.Less(f) {
			return model.Flat{}, false, nil
		}
	}
	return c.insertLocked(owner, f), true, nil
}

func (c *Collection) insertLocked(owner string, f model.Flat) model.Flat {
	f.ID = c.nextID
	c.nextID++
	if f.CreationDate.IsZero() {
		f.CreationDate = c.now().UTC().Truncate(time.Second)
	}
	f.Owner = owner
	c.flats[f.ID] = f
	return f
}

// Get returns the flat with the given id.
func (c *Collection) Get(id int64) (model.Flat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.flats[id]
	if !ok {
		return model.Flat{}, fmt.Errorf("flat %d: %w", id, ferrors.ErrNotFound)
	}
	return f, nil
}

// Editable returns the flat with the given id if owner may change it.
func (c *Collection) Editable(owner string, id int64) (model.Flat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editableLocked(owner, id)
}

func (c *Collection) editableLocked(owner string, id int64) (model.Flat, error) {
	f, ok := c.flats[id]
	if !ok {
		return model.Flat{}, fmt.Errorf("flat %d: %w", id, ferrors.ErrNotFound)
	}
	if !mayEdit(owner, f) {
		return model.Flat{}, fmt.Errorf("flat %d belongs to %s: %w", id, f.Owner, ferrors.ErrNotOwner)
	}
	return f, nil
}

// mayEdit is the owner gate: a flat without an owner is editable by all.
func mayEdit(owner string, f model.Flat) bool {
	return f.Owner == "" || f.Owner == owner
}

// Update replaces the user fields of the flat with f.ID.  The id,
// creation date and owner of the stored flat are preserved.
func (c *Collection) Update(owner string, f model.Flat) (model.Flat, error) {
	if err := f.Validate(); err != nil {
		return model.Flat{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	old, err := c.editableLocked(owner, f.ID)
	if err != nil {
		return model.Flat{}, err
	}
	f.CreationDate = old.CreationDate
	f.Owner = old.Owner
	c.flats[f.ID] = f
	return f, nil
}

// Remove deletes the flat with the given id.
func (c *Collection) Remove(owner string, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.editableLocked(owner, id); err != nil {
		return err
	}
	delete(c.flats, id)
	return nil
}

// Clear removes every flat owner may edit and returns how many went.
func (c *Collection) Clear(owner string) int {
	return c.removeWhere(owner, func(model.Flat) bool { return true })
}

// RemoveGreater removes owner's flats with an area greater than f's.
func (c *Collection) RemoveGreater(owner string, f model.Flat) int {
	return c.removeWhere(owner, func(x model.Flat) bool { return f.Less(x) })
}

// RemoveLower removes owner's flats with an area less than f's.
func (c *Collection) RemoveLower(owner string, f model.Flat) int {
	return c.removeWhere(owner, func(x model.Flat) bool { return x.Less(f) })
}

func (c *Collection) removeWhere(owner string, match func(model.Flat) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, f := range c.flats {
		if mayEdit(owner, f) && match(f) {
			delete(c.flats, id)
			n++
		}
	}
	return n
}

// Sorted returns a snapshot ordered by area, ties broken by id.
func (c *Collection) Sorted() []model.Flat {
	c.mu.Lock()
	out := c.snapshotLocked()
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Compare(out[j]); cmp != 0 {
			return cmp < 0
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Descending returns the snapshot of Sorted in reverse.
func (c *Collection) Descending() []model.Flat {
	out := c.Sorted()
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// MaxByCreationDate returns the most recently created flat.  Ties go to
// the higher id.
func (c *Collection) MaxByCreationDate() (model.Flat, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var best model.Flat
	found := false
	for _, f := range c.flats {
		if !found || f.CreationDate.After(best.CreationDate) ||
			(f.CreationDate.Equal(best.CreationDate) && f.ID > best.ID) {
			best, found = f, true
		}
	}
	return best, found
}

// UniqueTimeToMetro returns the distinct time-to-metro values, ascending.
func (c *Collection) UniqueTimeToMetro() []float32 {
	c.mu.Lock()
	seen := make(map[float32]struct{}, len(c.flats))
	for _, f := range c.flats {
		seen[f.TimeToMetro] = struct{}{}
	}
	c.mu.Unlock()

	out := make([]float32, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *Collection) snapshotLocked() []model.Flat {
	out := make([]model.Flat, 0, len(c.flats))
	for _, f := range c.flats {
		out = append(out, f)
	}
	return out
}
