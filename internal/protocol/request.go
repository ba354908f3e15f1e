package protocol

import "strings"

// Credentials identify the user behind a remote request.
type Credentials struct {
	Name   string
	Secret string
}

// Remote carries the fields that only exist for requests and responses
// exchanged with a network client.  A nil *Remote means local.
type Remote struct {
	// ClientCommandID is chosen by the client and echoed back verbatim.
	ClientCommandID int32
	// ClientID is assigned by the transport from the sender address.
	ClientID    int
	Payload     Payload
	Credentials Credentials
}

// Request is one instruction for the dispatcher.
type Request struct {
	CommandID int
	Kind      RequestKind
	Content   string
	Remote    *Remote
}

// NewExecute returns a request that starts the command written in line.
func NewExecute(line string) Request {
	return Request{CommandID: NewCommand, Kind: Execute, Content: line}
}

// NewProceed returns a request carrying a follow-up value for commandID.
func NewProceed(commandID int, value string) Request {
	return Request{CommandID: commandID, Kind: Proceed, Content: value}
}

// NewExit returns the request that ends the session.
func NewExit() Request {
	return Request{CommandID: NewCommand, Kind: Exit}
}

// IsRemote reports whether r came from a network client.
func (r Request) IsRemote() bool { return r.Remote != nil }

// Split returns the command name and the optional first argument of an
// EXECUTE request's content.  Tokens after the first argument are ignored.
func (r Request) Split() (name, arg string) {
	fields := strings.Fields(r.Content)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], fields[1]
	}
}
