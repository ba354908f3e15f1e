// Package model defines the flat record managed by the collection and the
// per-field domain rules shared by the staged builder (one raw value at a
// time) and by remote thick clients (a whole record at once).
package model

import (
	"fmt"
	"math"
	"strings"
	"time"

	ferrors "flatctl/internal/errors"
)

// DateLayout is the textual form of a creation date.
const DateLayout = "2006-01-02"

// Coordinates locates a flat on the map.
type Coordinates struct {
	X float32 `json:"x"`
	Y float64 `json:"y"`
}

// House describes the building a flat belongs to.
type House struct {
	Name         string `json:"name"`
	Year         int32  `json:"year"`
	Floors       int64  `json:"number_of_floors"`
	FlatsOnFloor int64  `json:"number_of_flats_on_floor"`
}

// Flat is one element of the collection.  ID and CreationDate are
// assigned by the store; Owner is the user who created the record.
type Flat struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	Coordinates  Coordinates `json:"coordinates"`
	CreationDate time.Time   `json:"creation_date"`
	Area         float32     `json:"area"`
	Rooms        int64       `json:"number_of_rooms"`
	TimeToMetro  float32     `json:"time_to_metro_by_transport"`
	View         View        `json:"view"`
	Transport    Transport   `json:"transport"`
	House        House       `json:"house"`
	Owner        string      `json:"owner,omitempty"`
}

// Less orders flats by area, the collection's natural order.
func (f Flat) Less(other Flat) bool { return f.Area < other.Area }

// Compare returns -1, 0 or 1 comparing f with other by area.
func (f Flat) Compare(other Flat) int {
	switch {
	case f.Area < other.Area:
		return -1
	case f.Area > other.Area:
		return 1
	}
	return 0
}

func (c Coordinates) String() string {
	return fmt.Sprintf("{x: %v, y: %v}", c.X, c.Y)
}

func (h House) String() string {
	return fmt.Sprintf("{name: %q, year: %d, number_of_floors: %d, number_of_flats_on_floor: %d}",
		h.Name, h.Year, h.Floors, h.FlatsOnFloor)
}

func (f Flat) String() string {
	var b strings.Builder
	b.WriteString("{\n")
	fmt.Fprintf(&b, "  id: %d,\n", f.ID)
	fmt.Fprintf(&b, "  name: %q,\n", f.Name)
	fmt.Fprintf(&b, "  coordinates: %s,\n", f.Coordinates)
	fmt.Fprintf(&b, "  creation_date: %s,\n", f.CreationDate.Format(DateLayout))
	fmt.Fprintf(&b, "  area: %v,\n", f.Area)
	fmt.Fprintf(&b, "  number_of_rooms: %d,\n", f.Rooms)
	fmt.Fprintf(&b, "  time_to_metro_by_transport: %v,\n", f.TimeToMetro)
	fmt.Fprintf(&b, "  view: %s,\n", f.View)
	fmt.Fprintf(&b, "  transport: %s,\n", f.Transport)
	fmt.Fprintf(&b, "  house: %s", f.House)
	if f.Owner != "" {
		fmt.Fprintf(&b, ",\n  owner: %q", f.Owner)
	}
	b.WriteString("\n}")
	return b.String()
}

// ── Field rules ──────────────────────────────────────────────────────
//
// Each Check* function is the single source of truth for one field.

// MinCoordinateX is the exclusive lower bound of Coordinates.X.
const MinCoordinateX = -817

// MaxFloors is the inclusive upper bound of House.Floors.
const MaxFloors = 65

func CheckName(v string) error {
	if strings.TrimSpace(v) == "" {
		return ferrors.Field("name", "must not be empty")
	}
	return nil
}

func finite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ferrors.Field(field, "must be a finite number")
	}
	return nil
}

func CheckX(v float32) error {
	if err := finite("coordinates.x", float64(v)); err != nil {
		return err
	}
	if v <= MinCoordinateX {
		return ferrors.Field("coordinates.x", "must be greater than %d", MinCoordinateX)
	}
	return nil
}

func CheckY(v float64) error {
	return finite("coordinates.y", v)
}

func CheckArea(v float32) error {
	if err := finite("area", float64(v)); err != nil {
		return err
	}
	if v <= 0 {
		return ferrors.Field("area", "must be greater than zero")
	}
	return nil
}

func CheckRooms(v int64) error {
	if v <= 0 {
		return ferrors.Field("number_of_rooms", "must be greater than zero")
	}
	return nil
}

func CheckTimeToMetro(v float32) error {
	if err := finite("time_to_metro_by_transport", float64(v)); err != nil {
		return err
	}
	if v <= 0 {
		return ferrors.Field("time_to_metro_by_transport", "must be greater than zero")
	}
	return nil
}

func CheckHouseName(v string) error {
	if strings.TrimSpace(v) == "" {
		return ferrors.Field("house.name", "must not be empty")
	}
	return nil
}

func CheckHouseYear(v int32) error {
	if v <= 0 {
		return ferrors.Field("house.year", "must be greater than zero")
	}
	return nil
}

func CheckFloors(v int64) error {
	if v <= 0 {
		return ferrors.Field("house.number_of_floors", "must be greater than zero")
	}
	if v > MaxFloors {
		return ferrors.Field("house.number_of_floors", "must not exceed %d", MaxFloors)
	}
	return nil
}

func CheckFlatsOnFloor(v int64) error {
	if v <= 0 {
		return ferrors.Field("house.number_of_flats_on_floor", "must be greater than zero")
	}
	return nil
}

// Validate checks every user-supplied field of f.  It is what a remote
// record goes through instead of the staged builder.
func (f Flat) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	add(CheckName(f.Name))
	add(CheckX(f.Coordinates.X))
	add(CheckY(f.Coordinates.Y))
	add(CheckArea(f.Area))
	add(CheckRooms(f.Rooms))
	add(CheckTimeToMetro(f.TimeToMetro))
	if !f.View.Valid() {
		add(ferrors.Field("view", "must be one of %s", ViewNames()))
	}
	if !f.Transport.Valid() {
		add(ferrors.Field("transport", "must be one of %s", TransportNames()))
	}
	add(CheckHouseName(f.House.Name))
	add(CheckHouseYear(f.House.Year))
	add(CheckFloors(f.House.Floors))
	add(CheckFlatsOnFloor(f.House.FlatsOnFloor))
	return ferrors.Join(errs...)
}
