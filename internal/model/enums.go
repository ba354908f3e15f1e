package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// View is the view from the flat's windows.
type View int8

const (
	ViewStreet View = iota + 1
	ViewPark
	ViewBad
	ViewNormal
	ViewGood
)

var viewNames = []string{"STREET", "PARK", "BAD", "NORMAL", "GOOD"}

// Transport rates public transport availability.
type Transport int8

const (
	TransportFew Transport = iota + 1
	TransportLittle
	TransportNormal
	TransportEnough
)

var transportNames = []string{"FEW", "LITTLE", "NORMAL", "ENOUGH"}

// AllViews lists every valid View in declaration order.
func AllViews() []View {
	return []View{ViewStreet, ViewPark, ViewBad, ViewNormal, ViewGood}
}

// AllTransports lists every valid Transport in declaration order.
func AllTransports() []Transport {
	return []Transport{TransportFew, TransportLittle, TransportNormal, TransportEnough}
}

func (v View) Valid() bool      { return v >= ViewStreet && int(v) <= len(viewNames) }
func (t Transport) Valid() bool { return t >= TransportFew && int(t) <= len(transportNames) }

func (v View) String() string {
	if !v.Valid() {
		return fmt.Sprintf("View(%d)", int8(v))
	}
	return viewNames[v-1]
}

func (t Transport) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Transport(%d)", int8(t))
	}
	return transportNames[t-1]
}

// ViewNames returns the accepted spellings, comma separated.
func ViewNames() string { return strings.Join(viewNames, ", ") }

// TransportNames returns the accepted spellings, comma separated.
func TransportNames() string { return strings.Join(transportNames, ", ") }

// ParseView accepts a case-insensitive View name.
func ParseView(s string) (View, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range viewNames {
		if name == s {
			return View(i + 1), nil
		}
	}
	return 0, fmt.Errorf("unknown view %q", s)
}

// ParseTransport accepts a case-insensitive Transport name.
func ParseTransport(s string) (Transport, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range transportNames {
		if name == s {
			return Transport(i + 1), nil
		}
	}
	return 0, fmt.Errorf("unknown transport %q", s)
}

func (v View) MarshalJSON() ([]byte, error) { return json.Marshal(v.String()) }

func (v *View) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseView(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (t Transport) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

func (t *Transport) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTransport(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
