package protocol

// Response is the dispatcher's answer to one request.
type Response struct {
	CommandID int
	Kind      ResponseKind
	Hint      Hint
	Content   string
	// Prompt, when non-empty, is displayed after Content and means the
	// command is waiting for another value.
	Prompt string
	Remote *Remote
}

// ExpectsValues reports whether the command that produced r is waiting
// for another line.
func (r Response) ExpectsValues() bool { return r.Prompt != "" }

// IsRemote reports whether r must be delivered to a network client.
func (r Response) IsRemote() bool { return r.Remote != nil }

// WithPrompt returns a copy of r with the prompt replaced.
func (r Response) WithPrompt(prompt string) Response {
	r.Prompt = prompt
	return r
}

// WithKind returns a copy of r with the kind replaced.
func (r Response) WithKind(kind ResponseKind) Response {
	r.Kind = kind
	return r
}

// Reply builds a response to req.  When req is remote the response is
// remote too: it echoes the client's command id and carries payload, or
// the text content as a string payload when payload is empty.
func Reply(req Request, commandID int, kind ResponseKind, hint Hint, content string, payload Payload) Response {
	resp := Response{
		CommandID: commandID,
		Kind:      kind,
		Hint:      hint,
		Content:   content,
	}
	if req.Remote != nil {
		if payload.Kind == PayloadNone && content != "" {
			payload = StringPayload(content)
		}
		resp.Remote = &Remote{
			ClientCommandID: req.Remote.ClientCommandID,
			ClientID:        req.Remote.ClientID,
			Payload:         payload,
		}
	}
	return resp
}

// Fail builds a failure response to req with an ERROR hint.
func Fail(req Request, commandID int, kind ResponseKind, content string) Response {
	return Reply(req, commandID, kind, HintError, content, Payload{})
}

// Text builds a SUCCESS response to req displayed as a line.
func Text(req Request, commandID int, content string) Response {
	return Reply(req, commandID, Success, HintLine, content, Payload{})
}
