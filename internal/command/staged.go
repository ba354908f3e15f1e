package command

import (
	"fmt"
	"time"

	"flatctl/internal/builder"
	"flatctl/internal/model"
	"flatctl/internal/protocol"
	"flatctl/internal/session"
)

// finishFunc persists a completed record on behalf of who.
type finishFunc func(req protocol.Request, who string, f model.Flat) protocol.Response

// stagedCommand collects a flat through the staged builder locally, or
// takes a whole record from a remote client.
type stagedCommand struct {
	sess *session.Session
	// update commands look the record up first and accept its id as the
	// command argument.
	update bool
	finish finishFunc

	who string
	b   *builder.Builder[model.Flat]
}

func (c *stagedCommand) Start(req protocol.Request, arg string) protocol.Response {
	c.who = owner(c.sess, req)
	if req.IsRemote() {
		return c.startRemote(req, arg)
	}

	if c.update {
		c.b = builder.NewFlatUpdate(func(id int64) (model.Flat, error) {
			return c.sess.Flats.Editable(c.who, id)
		})
		if arg != "" {
			return c.advance(req, c.b.SetValue(arg))
		}
	} else {
		c.b = builder.NewFlatCreate(c.sess.Now)
	}
	return protocol.Reply(req, 0, protocol.RequestValues, protocol.HintNone, "", protocol.Payload{}).
		WithPrompt(c.b.Prompt())
}

// startRemote checks a thick client's record with the same field rules
// the builder applies one stage at a time.
func (c *stagedCommand) startRemote(req protocol.Request, arg string) protocol.Response {
	p := req.Remote.Payload
	if p.Kind != protocol.PayloadFlat {
		return fail(req, protocol.ValidationFailure, "expected a flat record, got %s payload", p.Kind)
	}
	f := p.Flat
	// The collection assigns creation dates, and ids of new records.
	f.CreationDate = time.Time{}
	if !c.update {
		f.ID = 0
	}
	if c.update && arg != "" {
		id, err := builder.ParseID(arg)
		if err != nil {
			return fail(req, protocol.InvalidValue, "%v", err)
		}
		f.ID = id
	}
	if err := f.Validate(); err != nil {
		return fail(req, protocol.ValidationFailure, "%v", err)
	}
	return c.finish(req, c.who, f)
}

func (c *stagedCommand) Proceed(req protocol.Request) protocol.Response {
	if c.b == nil {
		return fail(req, protocol.InvalidStage, "command takes no further values")
	}
	return c.advance(req, c.b.SetValue(req.Content))
}

// advance turns a builder result into the command's response: the next
// prompt while stages remain, the finished operation at READY.
func (c *stagedCommand) advance(req protocol.Request, r protocol.Response) protocol.Response {
	if r.Kind != protocol.Success {
		return protocol.Reply(req, 0, r.Kind, r.Hint, r.Content, protocol.Payload{}).WithPrompt(r.Prompt)
	}
	if !c.b.Ready() {
		return protocol.Reply(req, 0, protocol.RequestValues, protocol.HintNone, "", protocol.Payload{}).
			WithPrompt(r.Prompt)
	}
	f, err := c.b.Build()
	if err != nil {
		return fail(req, protocol.InvalidStage, "%v", err)
	}
	return c.finish(req, c.who, f)
}

func stagedFactory(update bool, finish func(s *session.Session) finishFunc) Factory {
	return func(s *session.Session) Command {
		return &stagedCommand{sess: s, update: update, finish: finish(s)}
	}
}

func addFinish(s *session.Session) finishFunc {
	return func(req protocol.Request, who string, f model.Flat) protocol.Response {
		added, err := s.Flats.Add(who, f)
		if err != nil {
			return failure(req, err)
		}
		return textWith(req, "flat added:\n"+added.String(), protocol.FlatPayload(added))
	}
}

func addIfMaxFinish(s *session.Session) finishFunc {
	return func(req protocol.Request, who string, f model.Flat) protocol.Response {
		added, ok, err := s.Flats.AddIfMax(who, f)
		if err != nil {
			return failure(req, err)
		}
		if !ok {
			return text(req, "flat not added: its area is not the largest in the collection")
		}
		return textWith(req, "flat added:\n"+added.String(), protocol.FlatPayload(added))
	}
}

func updateFinish(s *session.Session) finishFunc {
	return func(req protocol.Request, who string, f model.Flat) protocol.Response {
		updated, err := s.Flats.Update(who, f)
		if err != nil {
			return failure(req, err)
		}
		return textWith(req, "flat updated:\n"+updated.String(), protocol.FlatPayload(updated))
	}
}

func removeGreaterFinish(s *session.Session) finishFunc {
	return func(req protocol.Request, who string, f model.Flat) protocol.Response {
		n := s.Flats.RemoveGreater(who, f)
		return textWith(req, fmt.Sprintf("removed %d flat(s) larger than %v", n, f.Area), protocol.LongPayload(int64(n)))
	}
}

func removeLowerFinish(s *session.Session) finishFunc {
	return func(req protocol.Request, who string, f model.Flat) protocol.Response {
		n := s.Flats.RemoveLower(who, f)
		return textWith(req, fmt.Sprintf("removed %d flat(s) smaller than %v", n, f.Area), protocol.LongPayload(int64(n)))
	}
}
