package command

import (
	"fmt"
	"strings"

	ferrors "flatctl/internal/errors"
	"flatctl/internal/model"
	"flatctl/internal/protocol"
	"flatctl/internal/session"
)

// owner returns the user a request acts for: the remote credentials, or
// the local session user.
func owner(s *session.Session, req protocol.Request) string {
	if req.Remote != nil {
		return req.Remote.Credentials.Name
	}
	return s.User()
}

func text(req protocol.Request, content string) protocol.Response {
	return protocol.Text(req, 0, content)
}

func textWith(req protocol.Request, content string, payload protocol.Payload) protocol.Response {
	return protocol.Reply(req, 0, protocol.Success, protocol.HintLine, content, payload)
}

func fail(req protocol.Request, kind protocol.ResponseKind, format string, args ...interface{}) protocol.Response {
	return protocol.Fail(req, 0, kind, fmt.Sprintf(format, args...))
}

func usage(req protocol.Request, u string) protocol.Response {
	return fail(req, protocol.InvalidArgument, "usage: %s", u)
}

// localOnly answers a remote request for a command that only the local
// surfaces may run.
func localOnly(req protocol.Request, name string) protocol.Response {
	return fail(req, protocol.InvalidRequest, "%s is only available locally", name)
}

// failure converts a collaborator error into a typed response.
func failure(req protocol.Request, err error) protocol.Response {
	switch {
	case ferrors.Is(err, ferrors.ErrNotFound), ferrors.Is(err, ferrors.ErrNotOwner):
		return fail(req, protocol.InvalidArgument, "%v", err)
	case ferrors.IsFieldError(err):
		if req.Remote != nil {
			return fail(req, protocol.ValidationFailure, "%v", err)
		}
		return fail(req, protocol.InvalidValue, "%v", err)
	}
	return fail(req, protocol.InvalidRequest, "%v", err)
}

func listFlats(req protocol.Request, flats []model.Flat) protocol.Response {
	if len(flats) == 0 {
		return textWith(req, "collection is empty", protocol.FlatsPayload(flats))
	}
	parts := make([]string, len(flats))
	for i, f := range flats {
		parts[i] = f.String()
	}
	return textWith(req, strings.Join(parts, "\n"), protocol.FlatsPayload(flats))
}

// oneShot adapts a function to a Command that completes in Start.
type oneShot func(req protocol.Request, arg string) protocol.Response

func (f oneShot) Start(req protocol.Request, arg string) protocol.Response { return f(req, arg) }

func (f oneShot) Proceed(req protocol.Request) protocol.Response {
	return fail(req, protocol.InvalidStage, "command takes no further values")
}
