// Package protocol defines the vocabulary every surface speaks: requests
// sent to the dispatcher, the typed responses it returns, and the remote
// extension that turns either into a network frame.
//
// The types are plain values.  A Response whose Prompt is non-empty tells
// the surface that the command still expects input: the next line must be
// routed back as a PROCEED request carrying the same CommandID.
package protocol

import "fmt"

// NewCommand is the CommandID of a request that starts a new command.
const NewCommand = -1

// RequestKind tells the dispatcher what to do with a request.
type RequestKind uint8

const (
	Execute RequestKind = iota + 1
	Proceed
	Exit
	FinishInit
)

var requestKindNames = map[RequestKind]string{
	Execute:    "EXECUTE",
	Proceed:    "PROCEED",
	Exit:       "EXIT",
	FinishInit: "FINISH_INIT",
}

func (k RequestKind) String() string {
	if s, ok := requestKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("RequestKind(%d)", uint8(k))
}

// ParseRequestKind is the inverse of RequestKind.String.
func ParseRequestKind(s string) (RequestKind, error) {
	for k, name := range requestKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown request kind %q", s)
}

// ResponseKind classifies the outcome of a request.
type ResponseKind uint8

const (
	Success ResponseKind = iota + 1
	RequestValues
	InvalidValue
	InvalidArgument
	InvalidStage
	InvalidCommand
	InvalidRequest
	OpenScript
	CloseScript
	StartInit
	AuthFailure
	ValidationFailure
	ExitSession
)

var responseKindNames = map[ResponseKind]string{
	Success:           "SUCCESS",
	RequestValues:     "REQUEST_VALUES",
	InvalidValue:      "INVALID_VALUE",
	InvalidArgument:   "INVALID_ARGUMENT",
	InvalidStage:      "INVALID_STAGE",
	InvalidCommand:    "INVALID_COMMAND",
	InvalidRequest:    "INVALID_REQUEST",
	OpenScript:        "OPEN_SCRIPT",
	CloseScript:       "CLOSE_SCRIPT",
	StartInit:         "START_INIT",
	AuthFailure:       "AUTH_FAILURE",
	ValidationFailure: "VALIDATION_FAILURE",
	ExitSession:       "EXIT",
}

func (k ResponseKind) String() string {
	if s, ok := responseKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ResponseKind(%d)", uint8(k))
}

// ParseResponseKind is the inverse of ResponseKind.String.
func ParseResponseKind(s string) (ResponseKind, error) {
	for k, name := range responseKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown response kind %q", s)
}

// IsFailure reports whether k is one of the INVALID_*, AUTH_FAILURE or
// VALIDATION_FAILURE outcomes.
func (k ResponseKind) IsFailure() bool {
	switch k {
	case InvalidValue, InvalidArgument, InvalidStage, InvalidCommand,
		InvalidRequest, AuthFailure, ValidationFailure:
		return true
	}
	return false
}

// Hint tells a surface how to display a response's content.
type Hint uint8

const (
	HintNone Hint = iota
	HintNormal
	HintLine
	HintWarning
	HintError
)

var hintNames = [...]string{"NONE", "NORMAL", "LINE", "WARNING", "ERROR"}

func (h Hint) String() string {
	if int(h) < len(hintNames) {
		return hintNames[h]
	}
	return fmt.Sprintf("Hint(%d)", uint8(h))
}

// ParseHint is the inverse of Hint.String.
func ParseHint(s string) (Hint, error) {
	for i, name := range hintNames {
		if name == s {
			return Hint(i), nil
		}
	}
	return 0, fmt.Errorf("unknown display hint %q", s)
}
