// Package core is the orchestration layer.  It drives the local
// conversation between the surfaces and the dispatcher, and provides a
// builder that assembles a complete session from a Config.
//
// Architecture layers (bottom → top):
//
//	protocol/wire  →  store/auth  →  session  →  command  →  surface/transport  →  core  →  cmd (CLI)
package core

import (
	"context"
	"strconv"

	"flatctl/internal/protocol"
)

// Runner is a complete, runnable session.
type Runner interface {
	Run(ctx context.Context) error
}

// Mode is the state of the local conversation.
type Mode int32

const (
	// ModeInit gates the session on the bootstrap credential command.
	ModeInit Mode = iota
	// ModeInteractive reads commands from the console.
	ModeInteractive
	// ModeScript replays the script on top of the stack.
	ModeScript
	// ModeTerminating ends the loop.
	ModeTerminating
)

func (m Mode) String() string {
	switch m {
	case ModeInit:
		return "INIT"
	case ModeInteractive:
		return "INTERACTIVE"
	case ModeScript:
		return "SCRIPT"
	case ModeTerminating:
		return "TERMINATING"
	}
	return "Mode(" + strconv.Itoa(int(m)) + ")"
}

// ── Transition table ─────────────────────────────────────────────────

// action turns a local response into the next request.
type action func(o *Orchestrator, ctx context.Context, resp protocol.Response) (protocol.Request, error)

type transition struct {
	next Mode
	act  action
}

type transitionKey struct {
	mode Mode
	kind protocol.ResponseKind
}

// transitions lists the responses that change what the orchestrator
// does.  Any other response falls through to fallback for its mode.
// INTERACTIVE and SCRIPT are settled afterwards by the script stack
// depth.
var transitions = map[transitionKey]transition{
	{ModeInit, protocol.StartInit}:   {ModeInit, (*Orchestrator).finishInit},
	{ModeInit, protocol.ExitSession}: {ModeTerminating, (*Orchestrator).terminate},

	{ModeInteractive, protocol.OpenScript}:  {ModeScript, (*Orchestrator).openScript},
	{ModeInteractive, protocol.CloseScript}: {ModeInteractive, (*Orchestrator).closeScript},
	{ModeInteractive, protocol.ExitSession}: {ModeTerminating, (*Orchestrator).terminate},

	{ModeScript, protocol.OpenScript}:  {ModeScript, (*Orchestrator).openScript},
	{ModeScript, protocol.CloseScript}: {ModeScript, (*Orchestrator).closeScript},
	{ModeScript, protocol.ExitSession}: {ModeTerminating, (*Orchestrator).terminate},
}

var fallback = map[Mode]transition{
	ModeInit:        {ModeInit, (*Orchestrator).initStep},
	ModeInteractive: {ModeInteractive, (*Orchestrator).forward},
	ModeScript:      {ModeScript, (*Orchestrator).forward},
}

func lookup(mode Mode, kind protocol.ResponseKind) (transition, bool) {
	if t, ok := transitions[transitionKey{mode, kind}]; ok {
		return t, true
	}
	t, ok := fallback[mode]
	return t, ok
}
