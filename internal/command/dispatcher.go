// Package command resolves requests against a registry of named
// commands and a history of live command instances.
//
// An EXECUTE request creates a command through its factory and appends
// it to the history at the next free index; that index is the
// CommandID every later PROCEED uses to reach the same instance.  The
// history is shared by the local surfaces and every remote worker, so
// both the registry and the history are safe for concurrent use, and
// each instance is serialized by its own lock.
package command

import (
	"fmt"
	"sync"

	ferrors "flatctl/internal/errors"
	"flatctl/internal/protocol"
	"flatctl/internal/session"
	"flatctl/util"
)

// Command is one live instance created by an EXECUTE request.
type Command interface {
	// Start handles the request that created the command.  arg is the
	// first token after the command name, or "".
	Start(req protocol.Request, arg string) protocol.Response
	// Proceed handles a follow-up value addressed to the command.
	Proceed(req protocol.Request) protocol.Response
}

// Factory creates a fresh command instance.
type Factory func(s *session.Session) Command

// entry is one history slot.
type entry struct {
	mu   sync.Mutex
	name string
	cmd  Command
	last protocol.Response
}

// pending reports whether the entry is still waiting for a follow-up.
// It must be called with e.mu held.
func (e *entry) pending() bool {
	return e.last.ExpectsValues() || e.last.Kind == protocol.OpenScript
}

// Dispatcher is the shared command registry and history.
type Dispatcher struct {
	sess  *session.Session
	log   *util.Logger
	limit int

	regMu     sync.RWMutex
	factories map[string]Factory
	names     []string

	histMu  sync.Mutex
	history map[int]*entry
	order   []int
	next    int
}

// NewDispatcher returns an empty dispatcher.  historyLimit bounds the
// number of retained command instances; 0 keeps every instance.
func NewDispatcher(sess *session.Session, historyLimit int) *Dispatcher {
	return &Dispatcher{
		sess:      sess,
		log:       sess.Logger.Named("dispatch"),
		limit:     historyLimit,
		factories: make(map[string]Factory),
		history:   make(map[int]*entry),
	}
}

// Register binds name to factory.  A later registration for the same
// name replaces the earlier one.
func (d *Dispatcher) Register(name string, factory Factory) {
	d.regMu.Lock()
	defer d.regMu.Unlock()
	if _, ok := d.factories[name]; ok {
		d.log.Debug("command %q re-registered, replacing the earlier factory", name)
	} else {
		d.names = append(d.names, name)
	}
	d.factories[name] = factory
}

// Names returns the registered command names in registration order.
func (d *Dispatcher) Names() []string {
	d.regMu.RLock()
	defer d.regMu.RUnlock()
	return append([]string(nil), d.names...)
}

// Has reports whether name is registered.
func (d *Dispatcher) Has(name string) bool {
	d.regMu.RLock()
	defer d.regMu.RUnlock()
	_, ok := d.factories[name]
	return ok
}

// HistoryLen returns the number of retained command instances.
func (d *Dispatcher) HistoryLen() int {
	d.histMu.Lock()
	defer d.histMu.Unlock()
	return len(d.history)
}

// Dispatch resolves req and returns the command's response.  It never
// panics: a failing command is reported as INVALID_REQUEST.
func (d *Dispatcher) Dispatch(req protocol.Request) protocol.Response {
	d.sess.Metrics.RequestHandled()
	switch req.Kind {
	case protocol.Execute:
		return d.execute(req)
	case protocol.Proceed:
		return d.proceed(req)
	}
	return protocol.Fail(req, req.CommandID, protocol.InvalidRequest,
		fmt.Sprintf("%s requests cannot be dispatched", req.Kind))
}

func (d *Dispatcher) execute(req protocol.Request) protocol.Response {
	name, arg := req.Split()
	if name == "" {
		return protocol.Fail(req, protocol.NewCommand, protocol.InvalidCommand, "empty command")
	}
	d.regMu.RLock()
	factory, ok := d.factories[name]
	d.regMu.RUnlock()
	if !ok {
		return protocol.Fail(req, protocol.NewCommand, protocol.InvalidCommand,
			fmt.Sprintf("%v %q, type help for the list of commands", ferrors.ErrUnknownCommand, name))
	}

	e := &entry{name: name}
	e.mu.Lock()
	defer e.mu.Unlock()
	id := d.append(e)
	d.sess.Metrics.CommandCreated()
	d.log.Debug("command %d: %s", id, name)

	e.last = d.run(req, id, func() protocol.Response {
		e.cmd = factory(d.sess)
		return e.cmd.Start(req, arg)
	})
	return e.last
}

func (d *Dispatcher) proceed(req protocol.Request) protocol.Response {
	d.histMu.Lock()
	e, ok := d.history[req.CommandID]
	d.histMu.Unlock()
	if !ok {
		return protocol.Fail(req, req.CommandID, protocol.InvalidCommand,
			fmt.Sprintf("%v: %d", ferrors.ErrNoSuchCommand, req.CommandID))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd == nil {
		return protocol.Fail(req, req.CommandID, protocol.InvalidRequest,
			fmt.Sprintf("command %d (%s) failed to start", req.CommandID, e.name))
	}
	e.last = d.run(req, req.CommandID, func() protocol.Response {
		return e.cmd.Proceed(req)
	})
	return e.last
}

// run calls fn, converting a panic into an INVALID_REQUEST response, and
// stamps the response with id.
func (d *Dispatcher) run(req protocol.Request, id int, fn func() protocol.Response) (resp protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("command %d panicked: %v", id, r)
			d.sess.Metrics.RecordError(fmt.Sprintf("command %d: %v", id, r))
			resp = protocol.Fail(req, id, protocol.InvalidRequest, "internal error while running the command")
		}
	}()
	resp = fn()
	resp.CommandID = id
	return resp
}

// append stores e at the next free index and enforces the history limit.
func (d *Dispatcher) append(e *entry) int {
	d.histMu.Lock()
	defer d.histMu.Unlock()
	id := d.next
	d.next++
	d.history[id] = e
	d.order = append(d.order, id)
	if d.limit > 0 && len(d.order) > d.limit {
		d.evictLocked()
	}
	return id
}

// evictLocked drops the oldest idle instances until the history fits
// the limit.  Instances still waiting for input and the newest instance
// are never evicted, so the history may stay over the limit while many
// conversations are open.
func (d *Dispatcher) evictLocked() {
	excess := len(d.order) - d.limit
	keep := d.order[:0]
	candidates := d.order[:len(d.order)-1]
	newest := d.order[len(d.order)-1]

	var dropped []int
	for _, id := range candidates {
		if excess > 0 && d.idle(d.history[id]) {
			dropped = append(dropped, id)
			excess--
			continue
		}
		keep = append(keep, id)
	}
	d.order = append(keep, newest)
	for _, id := range dropped {
		delete(d.history, id)
	}
	if excess > 0 {
		d.log.Verbose("history holds %d commands, %d over the limit while they wait for input", len(d.order), excess)
	}
	d.log.Debug("evicted %d command(s) from history", len(dropped))
}

// idle reports whether e can be evicted without cutting off a
// conversation.  An instance that is busy right now counts as pending.
func (d *Dispatcher) idle(e *entry) bool {
	if !e.mu.TryLock() {
		return false
	}
	defer e.mu.Unlock()
	return !e.pending()
}
