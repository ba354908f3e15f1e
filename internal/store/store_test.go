package store

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	ferrors "flatctl/internal/errors"
	"flatctl/internal/model"
)

func flat(name string, area float32) model.Flat {
	return model.Flat{
		Name:        name,
		Coordinates: model.Coordinates{X: 1, Y: 2},
		Area:        area,
		Rooms:       1,
		TimeToMetro: area / 10,
		View:        model.ViewGood,
		Transport:   model.TransportNormal,
		House:       model.House{Name: "h", Year: 2000, Floors: 5, FlatsOnFloor: 2},
	}
}

func fixedClock() func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Hour)
		return t
	}
}

// ── Mutation ────────────────────────────────────────────────────────

func TestAdd_AssignsIDAndOwner(t *testing.T) {
	c := newCollection("", fixedClock())
	a, err := c.Add("alice", flat("a", 10))
	if err != nil {
		t.Fatal(err)
	}
	b, _ := c.Add("bob", flat("b", 20))

	if a.ID != 1 || b.ID != 2 {
		t.Errorf("ids = %d, %d; want 1, 2", a.ID, b.ID)
	}
	if a.Owner != "alice" {
		t.Errorf("owner = %q", a.Owner)
	}
	if a.CreationDate.IsZero() || !b.CreationDate.After(a.CreationDate) {
		t.Errorf("creation dates not stamped: %v, %v", a.CreationDate, b.CreationDate)
	}
}

func TestAdd_RejectsInvalid(t *testing.T) {
	c := New("")
	_, err := c.Add("alice", model.Flat{})
	if !ferrors.IsFieldError(err) {
		t.Fatalf("expected field error, got %v", err)
	}
	if c.Len() != 0 {
		t.Error("invalid flat was stored")
	}
}

func TestAddIfMax(t *testing.T) {
	c := New("")
	if _, added, _ := c.AddIfMax("u", flat("first", 10)); !added {
		t.Fatal("empty collection should accept any flat")
	}
	if _, added, _ := c.AddIfMax("u", flat("same", 10)); added {
		t.Error("equal area should not be added")
	}
	if _, added, _ := c.AddIfMax("u", flat("bigger", 11)); !added {
		t.Error("bigger area should be added")
	}
}

func TestAddIfMax_Concurrent(t *testing.T) {
	c := New("")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.AddIfMax("u", flat("x", 42))
		}()
	}
	wg.Wait()
	if c.Len() != 1 {
		t.Errorf("len = %d; check-and-insert must be atomic", c.Len())
	}
}

func TestOwnerGate(t *testing.T) {
	c := New("")
	f, _ := c.Add("alice", flat("a", 10))

	if err := c.Remove("bob", f.ID); !ferrors.Is(err, ferrors.ErrNotOwner) {
		t.Errorf("Remove by other user: %v", err)
	}
	upd := flat("renamed", 12)
	upd.ID = f.ID
	if _, err := c.Update("bob", upd); !ferrors.Is(err, ferrors.ErrNotOwner) {
		t.Errorf("Update by other user: %v", err)
	}
	if n := c.Clear("bob"); n != 0 {
		t.Errorf("Clear by other user removed %d", n)
	}

	got, err := c.Update("alice", upd)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "renamed" || got.Owner != "alice" || !got.CreationDate.Equal(f.CreationDate) {
		t.Errorf("update = %+v", got)
	}
	if err := c.Remove("alice", f.ID); err != nil {
		t.Error(err)
	}
	if err := c.Remove("alice", f.ID); !ferrors.Is(err, ferrors.ErrNotFound) {
		t.Errorf("second remove: %v", err)
	}
}

func TestRemoveGreaterLower(t *testing.T) {
	c := New("")
	for _, a := range []float32{5, 10, 15, 20} {
		c.Add("u", flat("x", a))
	}
	c.Add("other", flat("y", 30))

	if n := c.RemoveGreater("u", flat("pivot", 15)); n != 1 {
		t.Errorf("RemoveGreater removed %d, want 1", n)
	}
	if n := c.RemoveLower("u", flat("pivot", 10)); n != 1 {
		t.Errorf("RemoveLower removed %d, want 1", n)
	}
	if c.Len() != 3 {
		t.Errorf("len = %d, want 3", c.Len())
	}
}

// ── Queries ─────────────────────────────────────────────────────────

func TestQueries(t *testing.T) {
	c := newCollection("", fixedClock())
	c.Add("u", flat("mid", 20))
	c.Add("u", flat("small", 10))
	last, _ := c.Add("u", flat("big", 30))
	c.Add("u", flat("dup", 20))

	sorted := c.Sorted()
	if sorted[0].Name != "small" || sorted[3].Name != "big" {
		t.Errorf("Sorted = %v", names(sorted))
	}
	desc := c.Descending()
	if desc[0].Name != "big" || desc[3].Name != "small" {
		t.Errorf("Descending = %v", names(desc))
	}

	newest, ok := c.MaxByCreationDate()
	if !ok || newest.ID != last.ID+1 {
		t.Errorf("MaxByCreationDate = %d, want %d", newest.ID, last.ID+1)
	}

	uniq := c.UniqueTimeToMetro()
	want := []float32{1, 2, 3}
	if len(uniq) != len(want) {
		t.Fatalf("UniqueTimeToMetro = %v", uniq)
	}
	for i := range want {
		if uniq[i] != want[i] {
			t.Errorf("UniqueTimeToMetro[%d] = %v, want %v", i, uniq[i], want[i])
		}
	}

	if info := c.Info(); info.Count != 4 {
		t.Errorf("Info.Count = %d", info.Count)
	}
}

func TestMaxByCreationDate_Empty(t *testing.T) {
	if _, ok := New("").MaxByCreationDate(); ok {
		t.Error("empty collection has no newest flat")
	}
}

func names(fs []model.Flat) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Name
	}
	return out
}

// ── Persistence ─────────────────────────────────────────────────────

func TestSaveOpen_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flats.json")
	c := New(path)
	c.Add("alice", flat("a", 10))
	b, _ := c.Add("bob", flat("b", 20))
	c.Remove("bob", b.ID)

	if err := c.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if loaded.Len() != 1 {
		t.Errorf("len = %d, want 1", loaded.Len())
	}
	f, _ := loaded.Add("carol", flat("c", 5))
	if f.ID != 3 {
		t.Errorf("id after reload = %d; ids must not be reused", f.ID)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil || c.Len() != 0 {
		t.Errorf("Open missing file: len=%d err=%v", c.Len(), err)
	}
}

func TestOpen_SkipsBadRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flats.json")
	good := flat("good", 10)
	good.ID = 1
	data := `{"next_id": 2, "flats": [` +
		`{"id": 1, "name": "good", "coordinates": {"x": 1, "y": 2}, "area": 10, "number_of_rooms": 1,` +
		` "time_to_metro_by_transport": 1, "view": "GOOD", "transport": "NORMAL",` +
		` "house": {"name": "h", "year": 2000, "number_of_floors": 5, "number_of_flats_on_floor": 2}},` +
		`{"id": 1, "name": "dup"},` +
		`{"id": 5, "name": ""}]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Open(path)
	var se *ferrors.StoreError
	if !ferrors.As(err, &se) || se.Op != "load" {
		t.Fatalf("expected load StoreError, got %v", err)
	}
	if !ferrors.Is(err, ErrSkipped) {
		t.Errorf("error %v does not report skipped records", err)
	}
	if c.Len() != 1 {
		t.Errorf("len = %d, want 1", c.Len())
	}
	if got, _ := c.Get(1); got.Name != good.Name {
		t.Errorf("kept %q", got.Name)
	}
}

func TestSave_NoPath(t *testing.T) {
	if err := New("").Save(); err == nil {
		t.Error("Save without a path should fail")
	}
}
