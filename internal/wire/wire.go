// Package wire encodes remote request and response frames.
//
// A frame is a fixed header followed by a protobuf-encoded body:
//
//	'F' 'C' version frameType body
//
// Both frame types share one field number space.  Decoders skip fields
// they do not know, so a newer peer can add fields without breaking
// older ones.
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	ferrors "flatctl/internal/errors"
	"flatctl/internal/protocol"
	"flatctl/util"
)

const (
	// Magic opens every frame.
	Magic = "FC"
	// Version is the schema version written by this package.
	Version byte = 1
	// MaxFrameSize is the largest frame either side will send or accept.
	MaxFrameSize = util.MaxDatagramSize

	headerSize = len(Magic) + 2
)

// FrameType distinguishes request frames from response frames.
type FrameType byte

const (
	FrameRequest  FrameType = 1
	FrameResponse FrameType = 2
)

// Frame field numbers.  Request and response frames share one space.
const (
	fieldClientCommandID protowire.Number = 1
	fieldKind            protowire.Number = 2
	fieldContent         protowire.Number = 3
	fieldPayload         protowire.Number = 4
	fieldCredName        protowire.Number = 5
	fieldCredSecret      protowire.Number = 6
	fieldHint            protowire.Number = 7
)

// RequestFrame is the wire form of a remote request.
type RequestFrame struct {
	ClientCommandID int32
	Kind            protocol.RequestKind
	Content         string
	Payload         protocol.Payload
	Credentials     protocol.Credentials
}

// ResponseFrame is the wire form of a remote response.
type ResponseFrame struct {
	ClientCommandID int32
	Kind            protocol.ResponseKind
	Hint            protocol.Hint
	Payload         protocol.Payload
}

// Request converts f into a dispatcher request on behalf of clientID.
func (f RequestFrame) Request(clientID int) protocol.Request {
	return protocol.Request{
		CommandID: protocol.NewCommand,
		Kind:      f.Kind,
		Content:   f.Content,
		Remote: &protocol.Remote{
			ClientCommandID: f.ClientCommandID,
			ClientID:        clientID,
			Payload:         f.Payload,
			Credentials:     f.Credentials,
		},
	}
}

// ResponseFrameOf converts a remote response into its wire form.  A
// response without remote info is encoded with its content as payload.
func ResponseFrameOf(resp protocol.Response) ResponseFrame {
	f := ResponseFrame{Kind: resp.Kind, Hint: resp.Hint}
	if resp.Remote != nil {
		f.ClientCommandID = resp.Remote.ClientCommandID
		f.Payload = resp.Remote.Payload
	} else if resp.Content != "" {
		f.Payload = protocol.StringPayload(resp.Content)
	}
	return f
}

// EncodeRequest serializes f.  It fails with ErrFrameTooLarge when the
// result would exceed MaxFrameSize.
func EncodeRequest(f RequestFrame) ([]byte, error) {
	e := newFrame(FrameRequest)
	e.putInt(fieldClientCommandID, int64(f.ClientCommandID))
	e.putString(fieldKind, f.Kind.String())
	e.putString(fieldContent, f.Content)
	if err := e.putPayload(fieldPayload, f.Payload); err != nil {
		return nil, err
	}
	e.putString(fieldCredName, f.Credentials.Name)
	e.putString(fieldCredSecret, f.Credentials.Secret)
	return e.finish()
}

// EncodeResponse serializes f.  It fails with ErrFrameTooLarge when the
// result would exceed MaxFrameSize.
func EncodeResponse(f ResponseFrame) ([]byte, error) {
	e := newFrame(FrameResponse)
	e.putInt(fieldClientCommandID, int64(f.ClientCommandID))
	e.putString(fieldKind, f.Kind.String())
	e.putString(fieldHint, f.Hint.String())
	if err := e.putPayload(fieldPayload, f.Payload); err != nil {
		return nil, err
	}
	return e.finish()
}

// DecodeRequest parses a request frame.
func DecodeRequest(b []byte) (RequestFrame, error) {
	var f RequestFrame
	body, err := checkHeader(b, FrameRequest)
	if err != nil {
		return f, err
	}
	seenKind := false
	err = eachField(body, func(v field) error {
		var err error
		switch v.num {
		case fieldClientCommandID:
			f.ClientCommandID, err = v.int32()
		case fieldKind:
			var s string
			if s, err = v.string(); err == nil {
				f.Kind, err = protocol.ParseRequestKind(s)
			}
			seenKind = true
		case fieldContent:
			f.Content, err = v.string()
		case fieldPayload:
			f.Payload, err = v.payload()
		case fieldCredName:
			f.Credentials.Name, err = v.string()
		case fieldCredSecret:
			f.Credentials.Secret, err = v.string()
		}
		return err
	})
	if err != nil {
		return RequestFrame{}, err
	}
	if !seenKind {
		return RequestFrame{}, fmt.Errorf("%w: request without kind", ferrors.ErrBadFrame)
	}
	return f, nil
}

// DecodeResponse parses a response frame.
func DecodeResponse(b []byte) (ResponseFrame, error) {
	var f ResponseFrame
	body, err := checkHeader(b, FrameResponse)
	if err != nil {
		return f, err
	}
	seenKind := false
	err = eachField(body, func(v field) error {
		var err error
		switch v.num {
		case fieldClientCommandID:
			f.ClientCommandID, err = v.int32()
		case fieldKind:
			var s string
			if s, err = v.string(); err == nil {
				f.Kind, err = protocol.ParseResponseKind(s)
			}
			seenKind = true
		case fieldHint:
			var s string
			if s, err = v.string(); err == nil {
				f.Hint, err = protocol.ParseHint(s)
			}
		case fieldPayload:
			f.Payload, err = v.payload()
		}
		return err
	})
	if err != nil {
		return ResponseFrame{}, err
	}
	if !seenKind {
		return ResponseFrame{}, fmt.Errorf("%w: response without kind", ferrors.ErrBadFrame)
	}
	return f, nil
}

// PeekType reports the frame type of b without decoding the body.
func PeekType(b []byte) (FrameType, bool) {
	if len(b) < headerSize || string(b[:len(Magic)]) != Magic {
		return 0, false
	}
	return FrameType(b[len(Magic)+1]), true
}

func checkHeader(b []byte, want FrameType) ([]byte, error) {
	if len(b) > MaxFrameSize {
		return nil, ferrors.ErrFrameTooLarge
	}
	got, ok := PeekType(b)
	if !ok {
		return nil, fmt.Errorf("%w: missing magic", ferrors.ErrBadFrame)
	}
	if v := b[len(Magic)]; v == 0 || v > Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ferrors.ErrBadFrame, v)
	}
	if got != want {
		return nil, fmt.Errorf("%w: frame type %d, want %d", ferrors.ErrBadFrame, got, want)
	}
	return b[headerSize:], nil
}
