package protocol

import (
	"strconv"
	"strings"

	"flatctl/internal/model"
)

// PayloadKind tags the value carried by a remote frame.
type PayloadKind uint8

const (
	PayloadNone PayloadKind = iota
	PayloadLong
	PayloadString
	PayloadFlat
	PayloadFlats
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadNone:
		return "none"
	case PayloadLong:
		return "long"
	case PayloadString:
		return "string"
	case PayloadFlat:
		return "flat"
	case PayloadFlats:
		return "flats"
	}
	return "PayloadKind(" + strconv.Itoa(int(k)) + ")"
}

// Payload is a tagged value: exactly the field selected by Kind is set.
type Payload struct {
	Kind  PayloadKind
	Long  int64
	Text  string
	Flat  model.Flat
	Flats []model.Flat
}

func LongPayload(v int64) Payload          { return Payload{Kind: PayloadLong, Long: v} }
func StringPayload(s string) Payload       { return Payload{Kind: PayloadString, Text: s} }
func FlatPayload(f model.Flat) Payload     { return Payload{Kind: PayloadFlat, Flat: f} }
func FlatsPayload(fs []model.Flat) Payload { return Payload{Kind: PayloadFlats, Flats: fs} }

// String renders the payload for logs and for clients that only display
// text.
func (p Payload) String() string {
	switch p.Kind {
	case PayloadLong:
		return strconv.FormatInt(p.Long, 10)
	case PayloadString:
		return p.Text
	case PayloadFlat:
		return p.Flat.String()
	case PayloadFlats:
		parts := make([]string, len(p.Flats))
		for i, f := range p.Flats {
			parts[i] = f.String()
		}
		return strings.Join(parts, "\n")
	}
	return ""
}
