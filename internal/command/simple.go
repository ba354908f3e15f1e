package command

import (
	"fmt"
	"strconv"
	"strings"

	"flatctl/internal/builder"
	"flatctl/internal/protocol"
	"flatctl/internal/session"
)

// maxRandom bounds add_random's count argument.
const maxRandom = 1000

func newInfo(s *session.Session) Command {
	return oneShot(func(req protocol.Request, _ string) protocol.Response {
		info := s.Flats.Info()
		var b strings.Builder
		fmt.Fprintf(&b, "type: %s\n", info.Type)
		fmt.Fprintf(&b, "initialized: %s\n", info.InitDate.Format("2006-01-02 15:04:05 MST"))
		fmt.Fprintf(&b, "elements: %d", info.Count)
		if info.Path != "" {
			fmt.Fprintf(&b, "\ndata file: %s", info.Path)
		}
		return text(req, b.String())
	})
}

func newShow(s *session.Session) Command {
	return oneShot(func(req protocol.Request, _ string) protocol.Response {
		return listFlats(req, s.Flats.Sorted())
	})
}

func newPrintDescending(s *session.Session) Command {
	return oneShot(func(req protocol.Request, _ string) protocol.Response {
		return listFlats(req, s.Flats.Descending())
	})
}

func newMaxByCreationDate(s *session.Session) Command {
	return oneShot(func(req protocol.Request, _ string) protocol.Response {
		f, ok := s.Flats.MaxByCreationDate()
		if !ok {
			return text(req, "collection is empty")
		}
		return textWith(req, f.String(), protocol.FlatPayload(f))
	})
}

func newUniqueTimeToMetro(s *session.Session) Command {
	return oneShot(func(req protocol.Request, _ string) protocol.Response {
		values := s.Flats.UniqueTimeToMetro()
		if len(values) == 0 {
			return text(req, "collection is empty")
		}
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
		}
		return text(req, strings.Join(parts, "\n"))
	})
}

func newGetByID(s *session.Session) Command {
	return oneShot(func(req protocol.Request, arg string) protocol.Response {
		if arg == "" {
			return usage(req, "get_by_id <id>")
		}
		id, err := builder.ParseID(arg)
		if err != nil {
			return fail(req, protocol.InvalidValue, "%v", err)
		}
		f, err := s.Flats.Get(id)
		if err != nil {
			return failure(req, err)
		}
		return textWith(req, f.String(), protocol.FlatPayload(f))
	})
}

func newRemoveByID(s *session.Session) Command {
	return oneShot(func(req protocol.Request, arg string) protocol.Response {
		if arg == "" {
			return usage(req, "remove_by_id <id>")
		}
		id, err := builder.ParseID(arg)
		if err != nil {
			return fail(req, protocol.InvalidValue, "%v", err)
		}
		if err := s.Flats.Remove(owner(s, req), id); err != nil {
			return failure(req, err)
		}
		return textWith(req, fmt.Sprintf("flat %d removed", id), protocol.LongPayload(id))
	})
}

func newClear(s *session.Session) Command {
	return oneShot(func(req protocol.Request, _ string) protocol.Response {
		n := s.Flats.Clear(owner(s, req))
		return textWith(req, fmt.Sprintf("removed %d flat(s)", n), protocol.LongPayload(int64(n)))
	})
}

func newAddRandom(s *session.Session) Command {
	return oneShot(func(req protocol.Request, arg string) protocol.Response {
		n := 1
		if arg != "" {
			v, err := strconv.Atoi(arg)
			if err != nil || v < 1 || v > maxRandom {
				return fail(req, protocol.InvalidValue, "count: format error: want an integer in 1..%d, got %q", maxRandom, arg)
			}
			n = v
		}
		who := owner(s, req)
		for i := 0; i < n; i++ {
			if _, err := s.Flats.Add(who, s.RandomFlat()); err != nil {
				return failure(req, err)
			}
		}
		return textWith(req, fmt.Sprintf("added %d random flat(s)", n), protocol.LongPayload(int64(n)))
	})
}

func newSave(s *session.Session) Command {
	return oneShot(func(req protocol.Request, _ string) protocol.Response {
		if req.IsRemote() {
			return localOnly(req, "save")
		}
		if err := s.Flats.Save(); err != nil {
			s.Logger.Warn("save failed: %v", err)
			return failure(req, err)
		}
		return text(req, "collection saved to "+s.Flats.Path())
	})
}

func newExit(s *session.Session) Command {
	return oneShot(func(req protocol.Request, _ string) protocol.Response {
		if req.IsRemote() {
			return text(req, "bye")
		}
		return protocol.Reply(req, 0, protocol.ExitSession, protocol.HintLine, "bye", protocol.Payload{})
	})
}

func newStats(s *session.Session) Command {
	return oneShot(func(req protocol.Request, _ string) protocol.Response {
		return text(req, s.Metrics.JSON())
	})
}

// scriptCommand answers execute_script: it asks the orchestrator to open
// the file and, once the script reports back, closes it.
type scriptCommand struct {
	filename string
	closed   bool
}

func newExecuteScript(*session.Session) Command { return &scriptCommand{} }

func (c *scriptCommand) Start(req protocol.Request, arg string) protocol.Response {
	if req.IsRemote() {
		return localOnly(req, "execute_script")
	}
	if arg == "" {
		return usage(req, "execute_script <file>")
	}
	c.filename = arg
	return protocol.Reply(req, 0, protocol.OpenScript, protocol.HintNone, arg, protocol.Payload{})
}

func (c *scriptCommand) Proceed(req protocol.Request) protocol.Response {
	if c.filename == "" || c.closed {
		return fail(req, protocol.InvalidStage, "no script is running for this command")
	}
	c.closed = true
	return protocol.Reply(req, 0, protocol.CloseScript, protocol.HintLine, req.Content, protocol.Payload{})
}
