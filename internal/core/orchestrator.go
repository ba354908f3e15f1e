package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"flatctl/internal/command"
	ferrors "flatctl/internal/errors"
	"flatctl/internal/protocol"
	"flatctl/internal/surface"
	"flatctl/util"
)

// Banner is shown once the bootstrap credential command completes.
const Banner = "flatctl is ready to manage the flat collection.\n\nType help to see the available commands."

// Dispatcher resolves requests into responses.
type Dispatcher interface {
	Dispatch(req protocol.Request) protocol.Response
}

// Surface produces the next local request after displaying a response.
type Surface interface {
	Next(ctx context.Context, last protocol.Response) (protocol.Request, error)
}

// ScriptOpener opens a script on behalf of the command with id initiator.
type ScriptOpener func(name string, initiator int, p *surface.Printer) *surface.Script

// Orchestrator runs the local conversation.  It owns the mode, the
// script stack and the recursion guard; only the goroutine inside Run
// touches them.  HandleRemote may be called from any goroutine.
type Orchestrator struct {
	dispatcher Dispatcher
	console    Surface
	printer    *surface.Printer
	log        *util.Logger

	// OpenScript defaults to surface.OpenScript.
	OpenScript ScriptOpener
	// OnReady, when set, runs once the session leaves INIT.
	OnReady func()

	mode    atomic.Int32
	ready   sync.Once
	scripts []*surface.Script
	guard   []string
}

// NewOrchestrator returns an orchestrator in INIT mode.
func NewOrchestrator(d Dispatcher, console Surface, p *surface.Printer, logger *util.Logger) *Orchestrator {
	return &Orchestrator{
		dispatcher: d,
		console:    console,
		printer:    p,
		log:        logger.Named("core"),
		OpenScript: surface.OpenScript,
	}
}

// Mode returns the current mode.
func (o *Orchestrator) Mode() Mode { return Mode(o.mode.Load()) }

func (o *Orchestrator) setMode(m Mode) {
	if old := o.Mode(); old != m {
		o.log.Debug("mode %s -> %s", old, m)
	}
	o.mode.Store(int32(m))
}

// Depth returns the number of active scripts.
func (o *Orchestrator) Depth() int { return len(o.scripts) }

// Run drives the session until an EXIT or until ctx is cancelled.  It
// starts with the bootstrap credential command.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.closeAll()

	resp := o.bootstrap()
	for {
		req, err := o.step(ctx, resp)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if o.Mode() == ModeTerminating {
			return nil
		}
		resp = o.handle(req)
		if o.Mode() == ModeTerminating {
			return nil
		}
	}
}

// HandleRemote resolves a remote request.  Remote responses are never
// shown locally, and the remote surface cannot change the local mode.
func (o *Orchestrator) HandleRemote(req protocol.Request) protocol.Response {
	if o.Mode() == ModeInit {
		return protocol.Fail(req, protocol.NewCommand, protocol.InvalidRequest, "the session is still starting")
	}
	resp := o.dispatcher.Dispatch(req)
	switch resp.Kind {
	case protocol.OpenScript, protocol.CloseScript, protocol.StartInit, protocol.ExitSession:
		o.log.Warn("command %d answered a remote request with %s", resp.CommandID, resp.Kind)
		return protocol.Fail(req, resp.CommandID, protocol.InvalidRequest,
			fmt.Sprintf("%s is not available to remote clients", resp.Kind))
	}
	return resp
}

// ── Requests ─────────────────────────────────────────────────────────

func (o *Orchestrator) bootstrap() protocol.Response {
	return o.dispatcher.Dispatch(protocol.NewExecute(command.BootstrapCommand))
}

// handle resolves a local request.  EXIT and FINISH_INIT never reach the
// dispatcher.
func (o *Orchestrator) handle(req protocol.Request) protocol.Response {
	switch req.Kind {
	case protocol.Exit:
		o.setMode(ModeTerminating)
		return protocol.Response{CommandID: protocol.NewCommand, Kind: protocol.ExitSession}
	case protocol.FinishInit:
		o.setMode(ModeInteractive)
		o.ready.Do(func() {
			if o.OnReady != nil {
				o.OnReady()
			}
		})
		return protocol.Response{CommandID: protocol.NewCommand, Kind: protocol.Success, Hint: protocol.HintLine, Content: Banner}
	case protocol.Execute:
		if name, _ := req.Split(); o.Mode() == ModeInit && name != command.BootstrapCommand {
			o.printer.Warn("log in before running commands")
			return o.bootstrap()
		}
	}
	return o.dispatcher.Dispatch(req)
}

// step applies the transition for resp and returns the next request.
func (o *Orchestrator) step(ctx context.Context, resp protocol.Response) (protocol.Request, error) {
	mode := o.Mode()
	t, ok := lookup(mode, resp.Kind)
	if !ok {
		return protocol.Request{}, fmt.Errorf("no transition from %s on %s", mode, resp.Kind)
	}
	o.setMode(t.next)
	req, err := t.act(o, ctx, resp)
	o.settle()
	return req, err
}

// settle derives INTERACTIVE or SCRIPT from the script stack.
func (o *Orchestrator) settle() {
	switch o.Mode() {
	case ModeInteractive, ModeScript:
		if len(o.scripts) > 0 {
			o.setMode(ModeScript)
		} else {
			o.setMode(ModeInteractive)
		}
	}
}

// ── Actions ──────────────────────────────────────────────────────────

// forward hands resp to the floor surface: the top script, or the
// console when no script is running.  A script that already reported
// its end but was not closed by its initiator is dropped first.
func (o *Orchestrator) forward(ctx context.Context, resp protocol.Response) (protocol.Request, error) {
	for len(o.scripts) > 0 {
		top := o.scripts[len(o.scripts)-1]
		if !top.Done() {
			return top.Next(ctx, resp)
		}
		o.log.Verbose("script %s ended without being closed", top.Name())
		o.pop()
	}
	return o.console.Next(ctx, resp)
}

func (o *Orchestrator) openScript(ctx context.Context, resp protocol.Response) (protocol.Request, error) {
	name := resp.Content
	key := surface.ScriptKey(name)
	for _, active := range o.guard {
		if active == key {
			o.log.Verbose("refusing to open %s again", name)
			return o.forward(ctx, protocol.Response{
				CommandID: resp.CommandID,
				Kind:      protocol.InvalidArgument,
				Hint:      protocol.HintError,
				Content:   fmt.Sprintf("%s: %v, recursion is not allowed", name, ferrors.ErrRecursion),
			})
		}
	}

	s := o.OpenScript(name, resp.CommandID, o.printer)
	o.scripts = append(o.scripts, s)
	o.guard = append(o.guard, key)
	o.log.Verbose("script %s started by command %d (depth %d)", name, resp.CommandID, len(o.scripts))
	return s.Next(ctx, resp)
}

func (o *Orchestrator) closeScript(ctx context.Context, resp protocol.Response) (protocol.Request, error) {
	if len(o.scripts) == 0 {
		panic(fmt.Sprintf("core: %s from command %d with no active script", resp.Kind, resp.CommandID))
	}
	s := o.pop()
	if s.Initiator() != resp.CommandID {
		o.log.Warn("command %d closed script %s, which command %d opened", resp.CommandID, s.Name(), s.Initiator())
	}

	resp = resp.WithKind(protocol.Success)
	if s.Err() != nil {
		resp.Hint = protocol.HintError
	}
	return o.forward(ctx, resp)
}

func (o *Orchestrator) finishInit(ctx context.Context, resp protocol.Response) (protocol.Request, error) {
	if resp.ExpectsValues() {
		return o.forward(ctx, resp)
	}
	o.printer.ShowContent(resp)
	return protocol.Request{CommandID: protocol.NewCommand, Kind: protocol.FinishInit}, nil
}

// initStep keeps the credential command going while it asks for values,
// and starts it again otherwise.
func (o *Orchestrator) initStep(ctx context.Context, resp protocol.Response) (protocol.Request, error) {
	if resp.ExpectsValues() {
		return o.forward(ctx, resp)
	}
	o.printer.ShowContent(resp)
	return protocol.NewExecute(command.BootstrapCommand), nil
}

func (o *Orchestrator) terminate(_ context.Context, resp protocol.Response) (protocol.Request, error) {
	o.printer.ShowContent(resp)
	o.log.Verbose("session ended by command %d", resp.CommandID)
	return protocol.NewExit(), nil
}

// ── Script stack ─────────────────────────────────────────────────────

func (o *Orchestrator) pop() *surface.Script {
	n := len(o.scripts) - 1
	s := o.scripts[n]
	o.scripts = o.scripts[:n]
	o.guard = o.guard[:n]
	if err := s.Close(); err != nil {
		o.log.Warn("closing script %s: %v", s.Name(), err)
	}
	return s
}

func (o *Orchestrator) closeAll() {
	for len(o.scripts) > 0 {
		o.pop()
	}
}
