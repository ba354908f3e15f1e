package surface

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"flatctl/internal/protocol"
)

// CtrlDMessage is shown when input ends in the middle of a prompt.
const CtrlDMessage = "(Ctrl+D) back to command mode"

type lineEvent struct {
	line string
	eof  bool
	err  error
}

// Console is the interactive surface.  A background goroutine reads one
// line each time the orchestrator asks for one, so the orchestrator can
// wait on input and cancellation at the same time.
type Console struct {
	// ReadAfterEOF keeps reading once input has ended, the way a
	// terminal delivers more lines after Ctrl+D.  NewConsole sets it
	// when in is a terminal.  Otherwise the reader stops at the first
	// end of input and every later read reports it again.
	ReadAfterEOF bool

	in      io.Reader
	printer *Printer
	want    chan struct{}
	lines   chan lineEvent
	done    chan struct{}
	start   sync.Once
	stop    sync.Once

	// Owned by the goroutine calling Next.
	asked bool
	ended bool
}

// NewConsole returns a console reading from in.  Reading starts with
// the first call to Next.
func NewConsole(in io.Reader, p *Printer) *Console {
	c := &Console{
		in:      in,
		printer: p,
		want:    make(chan struct{}, 1),
		lines:   make(chan lineEvent, 1),
		done:    make(chan struct{}),
	}
	if f, ok := in.(*os.File); ok {
		c.ReadAfterEOF = term.IsTerminal(int(f.Fd()))
	}
	return c
}

// Close stops the reader goroutine.  A read already blocked on the
// input finishes first.
func (c *Console) Close() error {
	c.stop.Do(func() { close(c.done) })
	return nil
}

// readLoop reads one line per request until the input fails, ends on a
// non-terminal, or the console is closed.
func (c *Console) readLoop(reopen bool) {
	r := bufio.NewReader(c.in)
	var pending error
	for {
		select {
		case <-c.want:
		case <-c.done:
			return
		}

		var ev lineEvent
		if pending != nil {
			ev.err, pending = pending, nil
		} else {
			line, err := r.ReadString('\n')
			switch {
			case line != "":
				ev.line = strings.TrimRight(line, "\r\n")
				if err != nil && err != io.EOF {
					pending = err
				}
			case err == io.EOF:
				ev.eof = true
			case err != nil:
				ev.err = err
			}
		}

		select {
		case c.lines <- ev:
		case <-c.done:
			return
		}
		if ev.err != nil || (ev.eof && !reopen) {
			return
		}
	}
}

func (c *Console) read(ctx context.Context) (lineEvent, error) {
	if c.ended {
		return lineEvent{eof: true}, nil
	}
	reopen := c.ReadAfterEOF
	c.start.Do(func() { go c.readLoop(reopen) })
	if !c.asked {
		c.want <- struct{}{}
		c.asked = true
	}
	select {
	case ev := <-c.lines:
		c.asked = false
		c.ended = ev.eof && !reopen
		return ev, ev.err
	case <-ctx.Done():
		return lineEvent{}, ctx.Err()
	case <-c.done:
		return lineEvent{}, io.ErrClosedPipe
	}
}

// Next displays last and returns the next request typed by the user.
// While last expects values the line is sent back to the same command as
// PROCEED; otherwise it starts a new command.  End of input in command
// position is an EXIT request.
func (c *Console) Next(ctx context.Context, last protocol.Response) (protocol.Request, error) {
	c.printer.Show(last)
	expecting := last.ExpectsValues()
	for {
		if !expecting {
			c.printer.CommandPrompt()
		}
		ev, err := c.read(ctx)
		if err != nil {
			return protocol.Request{}, err
		}
		if ev.eof {
			if expecting {
				c.printer.Line("")
				c.printer.Line(CtrlDMessage)
				expecting = false
				continue
			}
			return protocol.NewExit(), nil
		}
		if expecting {
			return protocol.NewProceed(last.CommandID, ev.line), nil
		}
		if strings.TrimSpace(ev.line) == "" {
			c.printer.Error("empty command, type help for the list of commands")
			continue
		}
		return protocol.NewExecute(ev.line), nil
	}
}
