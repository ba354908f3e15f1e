package wire

import (
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	ferrors "flatctl/internal/errors"
	"flatctl/internal/model"
	"flatctl/internal/protocol"
)

// ── Encoding ─────────────────────────────────────────────────────────

type encoder struct {
	buf []byte
}

func newFrame(ft FrameType) *encoder {
	buf := make([]byte, 0, 256)
	buf = append(buf, Magic...)
	buf = append(buf, Version, byte(ft))
	return &encoder{buf: buf}
}

func (e *encoder) putString(num protowire.Number, s string) {
	if s == "" {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendString(e.buf, s)
}

func (e *encoder) putBytes(num protowire.Number, b []byte) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, b)
}

func (e *encoder) putInt(num protowire.Number, v int64) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, protowire.EncodeZigZag(v))
}

func (e *encoder) putFloat32(num protowire.Number, v float32) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.Fixed32Type)
	e.buf = protowire.AppendFixed32(e.buf, math.Float32bits(v))
}

func (e *encoder) putFloat64(num protowire.Number, v float64) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.Fixed64Type)
	e.buf = protowire.AppendFixed64(e.buf, math.Float64bits(v))
}

func (e *encoder) putPayload(num protowire.Number, p protocol.Payload) error {
	if p.Kind == protocol.PayloadNone {
		return nil
	}
	body, err := encodePayload(p)
	if err != nil {
		return err
	}
	e.putBytes(num, body)
	return nil
}

func (e *encoder) finish() ([]byte, error) {
	if len(e.buf) > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ferrors.ErrFrameTooLarge, len(e.buf))
	}
	return e.buf, nil
}

// ── Decoding ─────────────────────────────────────────────────────────

// field is one decoded protobuf field.  Only the member matching typ is
// set.
type field struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	fixed  uint64
	bytes  []byte
}

// eachField walks the protobuf fields of body, calling fn for each one.
// Groups and other wire types this package never writes are skipped.
func eachField(body []byte, fn func(field) error) error {
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return fmt.Errorf("%w: %v", ferrors.ErrBadFrame, protowire.ParseError(n))
		}
		body = body[n:]

		v := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			v.varint, n = protowire.ConsumeVarint(body)
		case protowire.Fixed32Type:
			var u uint32
			u, n = protowire.ConsumeFixed32(body)
			v.fixed = uint64(u)
		case protowire.Fixed64Type:
			v.fixed, n = protowire.ConsumeFixed64(body)
		case protowire.BytesType:
			v.bytes, n = protowire.ConsumeBytes(body)
		default:
			n = protowire.ConsumeFieldValue(num, typ, body)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ferrors.ErrBadFrame, num, protowire.ParseError(n))
		}
		body = body[n:]

		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

func (v field) expect(t protowire.Type) error {
	if v.typ != t {
		return fmt.Errorf("%w: field %d has wire type %d, want %d", ferrors.ErrBadFrame, v.num, v.typ, t)
	}
	return nil
}

func (v field) string() (string, error) {
	if err := v.expect(protowire.BytesType); err != nil {
		return "", err
	}
	return string(v.bytes), nil
}

func (v field) int64() (int64, error) {
	if err := v.expect(protowire.VarintType); err != nil {
		return 0, err
	}
	return protowire.DecodeZigZag(v.varint), nil
}

func (v field) int32() (int32, error) {
	n, err := v.int64()
	if err != nil {
		return 0, err
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, fmt.Errorf("%w: field %d: %d overflows int32", ferrors.ErrBadFrame, v.num, n)
	}
	return int32(n), nil
}

func (v field) int8() (int8, error) {
	n, err := v.int64()
	if err != nil {
		return 0, err
	}
	if n < math.MinInt8 || n > math.MaxInt8 {
		return 0, fmt.Errorf("%w: field %d: %d overflows int8", ferrors.ErrBadFrame, v.num, n)
	}
	return int8(n), nil
}

func (v field) float32() (float32, error) {
	if err := v.expect(protowire.Fixed32Type); err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(v.fixed)), nil
}

func (v field) float64() (float64, error) {
	if err := v.expect(protowire.Fixed64Type); err != nil {
		return 0, err
	}
	return math.Float64frombits(v.fixed), nil
}

func (v field) payload() (protocol.Payload, error) {
	if err := v.expect(protowire.BytesType); err != nil {
		return protocol.Payload{}, err
	}
	return decodePayload(v.bytes)
}

func (v field) flat() (model.Flat, error) {
	if err := v.expect(protowire.BytesType); err != nil {
		return model.Flat{}, err
	}
	return decodeFlat(v.bytes)
}

// ── Payload ──────────────────────────────────────────────────────────
//
// A payload is a message carrying its kind and the matching value.  A
// flat list repeats the flat field; a single flat sets it once.

const (
	fieldPayloadKind protowire.Number = 1
	fieldPayloadLong protowire.Number = 2
	fieldPayloadText protowire.Number = 3
	fieldPayloadFlat protowire.Number = 4
)

const (
	fieldFlatID protowire.Number = iota + 1
	fieldFlatName
	fieldFlatX
	fieldFlatY
	fieldFlatCreated
	fieldFlatArea
	fieldFlatRooms
	fieldFlatMetro
	fieldFlatView
	fieldFlatTransport
	fieldHouseName
	fieldHouseYear
	fieldHouseFloors
	fieldHouseFlats
	fieldFlatOwner
)

func encodePayload(p protocol.Payload) ([]byte, error) {
	e := &encoder{}
	e.putInt(fieldPayloadKind, int64(p.Kind))
	switch p.Kind {
	case protocol.PayloadLong:
		e.putInt(fieldPayloadLong, p.Long)
	case protocol.PayloadString:
		e.putString(fieldPayloadText, p.Text)
	case protocol.PayloadFlat:
		e.putBytes(fieldPayloadFlat, encodeFlat(p.Flat))
	case protocol.PayloadFlats:
		for _, f := range p.Flats {
			e.putBytes(fieldPayloadFlat, encodeFlat(f))
		}
	default:
		return nil, fmt.Errorf("%w: payload kind %d", ferrors.ErrBadFrame, p.Kind)
	}
	return e.buf, nil
}

func encodeFlat(f model.Flat) []byte {
	e := &encoder{}
	e.putInt(fieldFlatID, f.ID)
	e.putString(fieldFlatName, f.Name)
	e.putFloat32(fieldFlatX, f.Coordinates.X)
	e.putFloat64(fieldFlatY, f.Coordinates.Y)
	if !f.CreationDate.IsZero() {
		e.putInt(fieldFlatCreated, f.CreationDate.UnixNano())
	}
	e.putFloat32(fieldFlatArea, f.Area)
	e.putInt(fieldFlatRooms, f.Rooms)
	e.putFloat32(fieldFlatMetro, f.TimeToMetro)
	e.putInt(fieldFlatView, int64(f.View))
	e.putInt(fieldFlatTransport, int64(f.Transport))
	e.putString(fieldHouseName, f.House.Name)
	e.putInt(fieldHouseYear, int64(f.House.Year))
	e.putInt(fieldHouseFloors, f.House.Floors)
	e.putInt(fieldHouseFlats, f.House.FlatsOnFloor)
	e.putString(fieldFlatOwner, f.Owner)
	return e.buf
}

func decodePayload(b []byte) (protocol.Payload, error) {
	var (
		kind     int64
		seenKind bool
		long     int64
		text     string
		flats    = []model.Flat{}
	)
	err := eachField(b, func(v field) error {
		var err error
		switch v.num {
		case fieldPayloadKind:
			kind, err = v.int64()
			seenKind = true
		case fieldPayloadLong:
			long, err = v.int64()
		case fieldPayloadText:
			text, err = v.string()
		case fieldPayloadFlat:
			var f model.Flat
			if f, err = v.flat(); err == nil {
				flats = append(flats, f)
			}
		}
		return err
	})
	if err != nil {
		return protocol.Payload{}, err
	}
	if !seenKind {
		return protocol.Payload{}, fmt.Errorf("%w: payload without kind", ferrors.ErrBadFrame)
	}

	if kind < 0 || kind > math.MaxUint8 {
		return protocol.Payload{}, fmt.Errorf("%w: unknown payload kind %d", ferrors.ErrBadFrame, kind)
	}
	switch protocol.PayloadKind(kind) {
	case protocol.PayloadNone:
		return protocol.Payload{}, nil
	case protocol.PayloadLong:
		return protocol.LongPayload(long), nil
	case protocol.PayloadString:
		return protocol.StringPayload(text), nil
	case protocol.PayloadFlat:
		if len(flats) != 1 {
			return protocol.Payload{}, fmt.Errorf("%w: flat payload with %d records", ferrors.ErrBadFrame, len(flats))
		}
		return protocol.FlatPayload(flats[0]), nil
	case protocol.PayloadFlats:
		return protocol.FlatsPayload(flats), nil
	}
	return protocol.Payload{}, fmt.Errorf("%w: unknown payload kind %d", ferrors.ErrBadFrame, kind)
}

func decodeFlat(b []byte) (model.Flat, error) {
	var f model.Flat
	err := eachField(b, func(v field) error {
		var err error
		switch v.num {
		case fieldFlatID:
			f.ID, err = v.int64()
		case fieldFlatName:
			f.Name, err = v.string()
		case fieldFlatX:
			f.Coordinates.X, err = v.float32()
		case fieldFlatY:
			f.Coordinates.Y, err = v.float64()
		case fieldFlatCreated:
			var ns int64
			if ns, err = v.int64(); err == nil {
				f.CreationDate = time.Unix(0, ns).UTC()
			}
		case fieldFlatArea:
			f.Area, err = v.float32()
		case fieldFlatRooms:
			f.Rooms, err = v.int64()
		case fieldFlatMetro:
			f.TimeToMetro, err = v.float32()
		case fieldFlatView:
			var e int8
			e, err = v.int8()
			f.View = model.View(e)
		case fieldFlatTransport:
			var e int8
			e, err = v.int8()
			f.Transport = model.Transport(e)
		case fieldHouseName:
			f.House.Name, err = v.string()
		case fieldHouseYear:
			f.House.Year, err = v.int32()
		case fieldHouseFloors:
			f.House.Floors, err = v.int64()
		case fieldHouseFlats:
			f.House.FlatsOnFloor, err = v.int64()
		case fieldFlatOwner:
			f.Owner, err = v.string()
		}
		return err
	})
	return f, err
}
