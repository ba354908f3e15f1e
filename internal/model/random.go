package model

import (
	"math/rand"
	"time"
)

// Random returns a flat with every field drawn from its valid range.  The
// creation date falls between the Unix epoch and now.
func Random(r *rand.Rand, now time.Time) Flat {
	epoch := time.Unix(0, 0).UTC()
	days := int(now.Sub(epoch).Hours() / 24)
	if days < 1 {
		days = 1
	}
	views := AllViews()
	transports := AllTransports()

	return Flat{
		Name: "random flat",
		Coordinates: Coordinates{
			X: MinCoordinateX + 1 + r.Float32()*1816,
			Y: r.Float64()*2000 - 1000,
		},
		CreationDate: epoch.AddDate(0, 0, r.Intn(days)),
		Area:         1 + r.Float32()*999,
		Rooms:        1 + r.Int63n(19),
		TimeToMetro:  1 + r.Float32()*999,
		View:         views[r.Intn(len(views))],
		Transport:    transports[r.Intn(len(transports))],
		House: House{
			Name:         "house name for random flat",
			Year:         1 + r.Int31n(2024),
			Floors:       1 + r.Int63n(MaxFloors),
			FlatsOnFloor: 1 + r.Int63n(999),
		},
	}
}
