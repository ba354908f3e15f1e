package builder

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	ferrors "flatctl/internal/errors"
	"flatctl/internal/model"
)

// FlatStages returns the stages that fill every user-supplied field of a
// flat, in prompt order.
func FlatStages() []Stage[model.Flat] {
	return []Stage[model.Flat]{
		{
			Name:   "name",
			Prompt: "Enter flat name",
			Apply: func(raw string, f *model.Flat) error {
				if err := model.CheckName(raw); err != nil {
					return err
				}
				f.Name = raw
				return nil
			},
			Current: func(f *model.Flat) string { return f.Name },
		},
		{
			Name:   "coordinates.x",
			Prompt: fmt.Sprintf("Enter coordinate x (float, > %d)", model.MinCoordinateX),
			Apply: func(raw string, f *model.Flat) error {
				v, err := parseFloat32("coordinates.x", raw)
				if err != nil {
					return err
				}
				if err := model.CheckX(v); err != nil {
					return err
				}
				f.Coordinates.X = v
				return nil
			},
			Current: func(f *model.Flat) string { return fmt.Sprint(f.Coordinates.X) },
		},
		{
			Name:   "coordinates.y",
			Prompt: "Enter coordinate y (float)",
			Apply: func(raw string, f *model.Flat) error {
				v, err := parseFloat("coordinates.y", raw, 64)
				if err != nil {
					return err
				}
				if err := model.CheckY(v); err != nil {
					return err
				}
				f.Coordinates.Y = v
				return nil
			},
			Current: func(f *model.Flat) string { return fmt.Sprint(f.Coordinates.Y) },
		},
		{
			Name:   "area",
			Prompt: "Enter area (float, > 0)",
			Apply: func(raw string, f *model.Flat) error {
				v, err := parseFloat32("area", raw)
				if err != nil {
					return err
				}
				if err := model.CheckArea(v); err != nil {
					return err
				}
				f.Area = v
				return nil
			},
			Current: func(f *model.Flat) string { return fmt.Sprint(f.Area) },
		},
		{
			Name:   "number_of_rooms",
			Prompt: "Enter number of rooms (integer, > 0)",
			Apply: func(raw string, f *model.Flat) error {
				v, err := parseInt64("number_of_rooms", raw)
				if err != nil {
					return err
				}
				if err := model.CheckRooms(v); err != nil {
					return err
				}
				f.Rooms = v
				return nil
			},
			Current: func(f *model.Flat) string { return strconv.FormatInt(f.Rooms, 10) },
		},
		{
			Name:   "time_to_metro_by_transport",
			Prompt: "Enter time to metro by transport (float, > 0)",
			Apply: func(raw string, f *model.Flat) error {
				v, err := parseFloat32("time_to_metro_by_transport", raw)
				if err != nil {
					return err
				}
				if err := model.CheckTimeToMetro(v); err != nil {
					return err
				}
				f.TimeToMetro = v
				return nil
			},
			Current: func(f *model.Flat) string { return fmt.Sprint(f.TimeToMetro) },
		},
		{
			Name:   "view",
			Prompt: "Enter view (" + model.ViewNames() + ")",
			Apply: func(raw string, f *model.Flat) error {
				v, err := model.ParseView(raw)
				if err != nil {
					return ferrors.Field("view", "must be one of %s", model.ViewNames())
				}
				f.View = v
				return nil
			},
			Current: func(f *model.Flat) string { return f.View.String() },
		},
		{
			Name:   "transport",
			Prompt: "Enter transport (" + model.TransportNames() + ")",
			Apply: func(raw string, f *model.Flat) error {
				v, err := model.ParseTransport(raw)
				if err != nil {
					return ferrors.Field("transport", "must be one of %s", model.TransportNames())
				}
				f.Transport = v
				return nil
			},
			Current: func(f *model.Flat) string { return f.Transport.String() },
		},
		{
			Name:   "house.name",
			Prompt: "Enter house name",
			Apply: func(raw string, f *model.Flat) error {
				if err := model.CheckHouseName(raw); err != nil {
					return err
				}
				f.House.Name = raw
				return nil
			},
			Current: func(f *model.Flat) string { return f.House.Name },
		},
		{
			Name:   "house.year",
			Prompt: "Enter house year (integer, > 0)",
			Apply: func(raw string, f *model.Flat) error {
				v, err := strconv.ParseInt(raw, 10, 32)
				if err != nil {
					return ferrors.Field("house.year", "%q is not an integer", raw)
				}
				if err := model.CheckHouseYear(int32(v)); err != nil {
					return err
				}
				f.House.Year = int32(v)
				return nil
			},
			Current: func(f *model.Flat) string { return strconv.Itoa(int(f.House.Year)) },
		},
		{
			Name:   "house.number_of_floors",
			Prompt: fmt.Sprintf("Enter number of floors (integer, 1..%d)", model.MaxFloors),
			Apply: func(raw string, f *model.Flat) error {
				v, err := parseInt64("house.number_of_floors", raw)
				if err != nil {
					return err
				}
				if err := model.CheckFloors(v); err != nil {
					return err
				}
				f.House.Floors = v
				return nil
			},
			Current: func(f *model.Flat) string { return strconv.FormatInt(f.House.Floors, 10) },
		},
		{
			Name:   "house.number_of_flats_on_floor",
			Prompt: "Enter number of flats on floor (integer, > 0)",
			Apply: func(raw string, f *model.Flat) error {
				v, err := parseInt64("house.number_of_flats_on_floor", raw)
				if err != nil {
					return err
				}
				if err := model.CheckFlatsOnFloor(v); err != nil {
					return err
				}
				f.House.FlatsOnFloor = v
				return nil
			},
			Current: func(f *model.Flat) string { return strconv.FormatInt(f.House.FlatsOnFloor, 10) },
		},
	}
}

// NewFlatCreate returns a builder for a new flat.  The creation date is
// stamped from now when Build is called; the store assigns the id.
func NewFlatCreate(now func() time.Time) *Builder[model.Flat] {
	return New(FlatStages(), OnBuild(func(f *model.Flat) {
		f.CreationDate = now().UTC().Truncate(time.Second)
	}))
}

// Lookup resolves the id of an existing flat.  It returns an error
// wrapping ErrNotFound or ErrNotOwner when the flat cannot be updated.
type Lookup func(id int64) (model.Flat, error)

// NewFlatUpdate returns a builder whose first stage looks up an existing
// flat by id.  The remaining stages show the flat's current values and
// keep them on an empty line.
func NewFlatUpdate(lookup Lookup) *Builder[model.Flat] {
	id := Stage[model.Flat]{
		Name:   "id",
		Prompt: "Enter id of the flat to update",
		Apply: func(raw string, f *model.Flat) error {
			id, err := ParseID(raw)
			if err != nil {
				return err
			}
			found, err := lookup(id)
			if err != nil {
				return err
			}
			*f = found
			return nil
		},
	}
	return New(append([]Stage[model.Flat]{id}, FlatStages()...), KeepCurrent[model.Flat]())
}

// ParseID parses a flat id argument.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, ferrors.Field("id", "format error: %q is not an integer", raw)
	}
	if id <= 0 {
		return 0, ferrors.Field("id", "must be greater than zero")
	}
	return id, nil
}

func parseFloat(field, raw string, bits int) (float64, error) {
	v, err := strconv.ParseFloat(raw, bits)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ferrors.Field(field, "%q is not a number", raw)
	}
	return v, nil
}

func parseFloat32(field, raw string) (float32, error) {
	v, err := parseFloat(field, raw, 32)
	return float32(v), err
}

func parseInt64(field, raw string) (int64, error) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ferrors.Field(field, "%q is not an integer", raw)
	}
	return v, nil
}
