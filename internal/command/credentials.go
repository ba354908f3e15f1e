package command

import (
	"strings"

	ferrors "flatctl/internal/errors"
	"flatctl/internal/protocol"
	"flatctl/internal/session"
)

const (
	promptUser     = "Enter user name: "
	promptPassword = "Enter password: "
)

// credentialCommand asks for a user name and a password, then logs the
// local session in as that user, registering it when it is new.
//
// change_user answers with START_INIT throughout so that the
// orchestrator can gate the session on it; log_in answers with the
// ordinary kinds and also serves remote clients, whose credentials
// arrive with the request.
type credentialCommand struct {
	sess *session.Session
	kind protocol.ResponseKind
	name string
	done bool
}

func newChangeUser(s *session.Session) Command {
	return &credentialCommand{sess: s, kind: protocol.StartInit}
}

func newLogIn(s *session.Session) Command {
	return &credentialCommand{sess: s, kind: protocol.RequestValues}
}

func (c *credentialCommand) Start(req protocol.Request, arg string) protocol.Response {
	if req.IsRemote() {
		if c.kind == protocol.StartInit {
			return localOnly(req, "change_user")
		}
		return c.remote(req)
	}
	if arg != "" {
		if err := checkUserName(arg); err != nil {
			return c.ask(req, protocol.InvalidValue, protocol.HintError, err.Error(), promptUser)
		}
		c.name = arg
		return c.ask(req, c.kind, protocol.HintNone, "", promptPassword)
	}
	return c.ask(req, c.kind, protocol.HintNone, "", promptUser)
}

func (c *credentialCommand) Proceed(req protocol.Request) protocol.Response {
	if c.done {
		return fail(req, protocol.InvalidStage, "already logged in as %s", c.name)
	}
	if c.name == "" {
		name := strings.TrimSpace(req.Content)
		if err := checkUserName(name); err != nil {
			return c.ask(req, protocol.InvalidValue, protocol.HintError, err.Error(), promptUser)
		}
		c.name = name
		return c.ask(req, c.kind, protocol.HintNone, "", promptPassword)
	}

	secret := req.Content
	users := c.sess.Users
	if users.Exists(c.name) {
		ok, err := users.Authenticate(c.name, secret)
		if err != nil || !ok {
			c.sess.Metrics.AuthFailure()
			name := c.name
			c.name = ""
			return c.ask(req, protocol.AuthFailure, protocol.HintError, "wrong password for "+name, promptUser)
		}
		return c.finish(req, "logged in as "+c.name)
	}
	if err := users.Register(c.name, secret); err != nil {
		if ferrors.Is(err, ferrors.ErrUserExists) {
			c.name = ""
			return c.ask(req, protocol.AuthFailure, protocol.HintError, "user was registered concurrently, try again", promptUser)
		}
		return c.ask(req, protocol.InvalidValue, protocol.HintError, err.Error(), promptPassword)
	}
	return c.finish(req, "registered new user "+c.name)
}

func (c *credentialCommand) finish(req protocol.Request, msg string) protocol.Response {
	c.done = true
	c.sess.SetUser(c.name)
	kind := c.kind
	if kind == protocol.RequestValues {
		kind = protocol.Success
	}
	return protocol.Reply(req, 0, kind, protocol.HintLine, msg, protocol.Payload{})
}

func (c *credentialCommand) ask(req protocol.Request, kind protocol.ResponseKind, hint protocol.Hint, content, prompt string) protocol.Response {
	return protocol.Reply(req, 0, kind, hint, content, protocol.Payload{}).WithPrompt(prompt)
}

// remote registers or checks the credentials a client sent with log_in.
// The transport lets log_in through unauthenticated.
func (c *credentialCommand) remote(req protocol.Request) protocol.Response {
	cred := req.Remote.Credentials
	c.done = true
	if err := checkUserName(cred.Name); err != nil {
		return fail(req, protocol.ValidationFailure, "%v", err)
	}
	users := c.sess.Users
	if users.Exists(cred.Name) {
		ok, err := users.Authenticate(cred.Name, cred.Secret)
		if err != nil || !ok {
			c.sess.Metrics.AuthFailure()
			return fail(req, protocol.AuthFailure, "wrong password for %s", cred.Name)
		}
		return text(req, "logged in as "+cred.Name)
	}
	if err := users.Register(cred.Name, cred.Secret); err != nil {
		if ferrors.Is(err, ferrors.ErrUserExists) {
			return fail(req, protocol.AuthFailure, "user %s already exists", cred.Name)
		}
		return fail(req, protocol.ValidationFailure, "%v", err)
	}
	return text(req, "registered new user "+cred.Name)
}

func checkUserName(name string) error {
	if name == "" {
		return ferrors.Field("name", "must not be empty")
	}
	if strings.ContainsAny(name, " \t") {
		return ferrors.Field("name", "must not contain whitespace")
	}
	return nil
}
