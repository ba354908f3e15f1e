package core

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"flatctl/internal/auth"
	"flatctl/internal/command"
	"flatctl/internal/metrics"
	"flatctl/internal/protocol"
	"flatctl/internal/session"
	"flatctl/internal/store"
	"flatctl/internal/surface"
	"flatctl/util"
)

// ── Helpers ──────────────────────────────────────────────────────────

const login = "alice\nsecret\n"

type fixture struct {
	o     *Orchestrator
	out   *bytes.Buffer
	sess  *session.Session
	opens []string
}

func newFixture(t *testing.T, input string) *fixture {
	t.Helper()
	f := &fixture{out: &bytes.Buffer{}}
	p := surface.NewPrinter(f.out)
	f.sess = session.New(store.New(""), auth.NewStore(bcrypt.MinCost), nil, nil, nil, metrics.New())
	d := command.NewDispatcher(f.sess, 0)
	command.RegisterBuiltins(d)

	f.o = NewOrchestrator(d, surface.NewConsole(strings.NewReader(input), p), p, nil)
	f.o.OpenScript = func(name string, initiator int, p *surface.Printer) *surface.Script {
		f.opens = append(f.opens, name)
		return surface.OpenScript(name, initiator, p)
	}
	return f
}

func (f *fixture) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.o.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatalf("Run did not finish; output:\n%s", f.out.String())
	}
}

func writeScript(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ── Session lifecycle ────────────────────────────────────────────────

func TestRun_LoginThenExit(t *testing.T) {
	f := newFixture(t, login+"info\nexit\n")
	ready := 0
	f.o.OnReady = func() { ready++ }
	f.run(t)

	out := f.out.String()
	for _, want := range []string{"Enter user name: ", "Enter password: ", "registered new user alice", Banner, "bye"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "registered new user alice") > strings.Index(out, Banner) {
		t.Error("banner shown before the login result")
	}
	if ready != 1 {
		t.Errorf("OnReady called %d times, want 1", ready)
	}
	if got := f.o.Mode(); got != ModeTerminating {
		t.Errorf("mode = %s, want TERMINATING", got)
	}
	if got := f.sess.User(); got != "alice" {
		t.Errorf("user = %q, want alice", got)
	}
}

func TestRun_EndOfInputDuringLogin(t *testing.T) {
	f := newFixture(t, "")
	f.o.OnReady = func() { t.Error("OnReady called without a login") }
	f.run(t)

	if !strings.Contains(f.out.String(), surface.CtrlDMessage) {
		t.Errorf("output lacks %q:\n%s", surface.CtrlDMessage, f.out.String())
	}
}

func TestRun_WrongPasswordAsksAgain(t *testing.T) {
	f := newFixture(t, "bob\nwrong\nbob\nright\nexit\n")
	if err := f.sess.Users.Register("bob", "right"); err != nil {
		t.Fatal(err)
	}
	f.run(t)

	out := f.out.String()
	if !strings.Contains(out, "wrong password for bob") {
		t.Errorf("no auth failure shown:\n%s", out)
	}
	if !strings.Contains(out, "logged in as bob") {
		t.Errorf("second attempt did not log in:\n%s", out)
	}
}

func TestHandle_CommandsWaitForLogin(t *testing.T) {
	f := newFixture(t, "")
	resp := f.o.handle(protocol.NewExecute("clear"))

	if resp.Kind != protocol.StartInit || !resp.ExpectsValues() {
		t.Errorf("got %s %q, want the credential prompt", resp.Kind, resp.Prompt)
	}
	if !strings.Contains(f.out.String(), "log in before running commands") {
		t.Errorf("no warning shown:\n%s", f.out.String())
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	out := &bytes.Buffer{}
	p := surface.NewPrinter(out)
	s := session.New(store.New(""), auth.NewStore(bcrypt.MinCost), nil, nil, nil, nil)
	d := command.NewDispatcher(s, 0)
	command.RegisterBuiltins(d)
	o := NewOrchestrator(d, surface.NewConsole(pr, p), p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run ignored cancellation")
	}
}

// ── Scripts ──────────────────────────────────────────────────────────

func TestRun_ScriptRunsAndCloses(t *testing.T) {
	dir := t.TempDir()
	s := writeScript(t, dir, "s.txt", "help")
	f := newFixture(t, login+"execute_script "+s+"\ninfo\nexit\n")
	f.run(t)

	out := f.out.String()
	if !strings.Contains(out, "execute_script <file>") {
		t.Errorf("help output missing:\n%s", out)
	}
	if !strings.Contains(out, "script "+s+" finished") {
		t.Errorf("completion message missing:\n%s", out)
	}
	if f.o.Depth() != 0 {
		t.Errorf("depth = %d after the script ended", f.o.Depth())
	}
}

func TestRun_ScriptCannotRunItself(t *testing.T) {
	dir := t.TempDir()
	s := filepath.Join(dir, "self.txt")
	writeScript(t, dir, "self.txt", "execute_script "+s, "info")
	f := newFixture(t, login+"execute_script "+s+"\nexit\n")
	f.run(t)

	if len(f.opens) != 1 {
		t.Errorf("opened %d times (%v), want 1", len(f.opens), f.opens)
	}
	out := f.out.String()
	if !strings.Contains(out, "script is already running") {
		t.Errorf("recursion not reported:\n%s", out)
	}
	if !strings.Contains(out, "script "+s+" finished") {
		t.Errorf("script did not run to the end:\n%s", out)
	}
}

func TestRun_IndirectRecursion(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	writeScript(t, dir, "a.txt", "execute_script "+b)
	writeScript(t, dir, "b.txt", "execute_script "+a)
	f := newFixture(t, login+"execute_script "+a+"\nexit\n")
	f.run(t)

	if len(f.opens) != 2 {
		t.Errorf("opens = %v, want a then b", f.opens)
	}
	if !strings.Contains(f.out.String(), "script is already running") {
		t.Errorf("recursion not reported:\n%s", f.out.String())
	}
}

func TestRun_SameScriptTwiceInARow(t *testing.T) {
	dir := t.TempDir()
	s := writeScript(t, dir, "s.txt", "info")
	f := newFixture(t, login+"execute_script "+s+"\nexecute_script "+s+"\nexit\n")
	f.run(t)

	if len(f.opens) != 2 {
		t.Errorf("opens = %v, want two runs", f.opens)
	}
	if strings.Contains(f.out.String(), "already running") {
		t.Error("sequential runs were treated as recursion")
	}
}

func TestRun_MissingScriptFails(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.txt")
	f := newFixture(t, login+"execute_script "+missing+"\nexit\n")
	f.run(t)

	if !strings.Contains(f.out.String(), "Error: script "+missing+" failed") {
		t.Errorf("failure not shown as an error:\n%s", f.out.String())
	}
}

func TestRun_ScriptFeedsStagedCommand(t *testing.T) {
	dir := t.TempDir()
	lines := append([]string{"add"}, "loft", "10.5", "-3", "54.5", "2", "11", "park", "enough", "tower", "1999", "20", "6")
	s := writeScript(t, dir, "add.txt", lines...)
	f := newFixture(t, login+"execute_script "+s+"\nexit\n")
	f.run(t)

	if n := f.sess.Flats.Len(); n != 1 {
		t.Fatalf("collection has %d flats, want 1:\n%s", n, f.out.String())
	}
}

func TestStep_CloseWithoutScriptPanics(t *testing.T) {
	f := newFixture(t, "")
	f.o.setMode(ModeInteractive)
	defer func() {
		if recover() == nil {
			t.Error("closing with an empty stack did not panic")
		}
	}()
	f.o.step(context.Background(), protocol.Response{Kind: protocol.CloseScript})
}

func TestCloseScript_ChecksInitiator(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "s.txt", "info", "info")

	tests := []struct {
		name   string
		closer int
		warned bool
	}{
		{"initiator", 5, false},
		{"other command", 9, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			logger := util.NewLogger(1)
			logger.SetOutput(&logs)
			logger.SetTimestamps(false)

			f := newFixture(t, "")
			f.o.log = logger.Named("core")
			f.o.setMode(ModeInteractive)
			ctx := context.Background()

			if _, err := f.o.step(ctx, protocol.Response{CommandID: 5, Kind: protocol.OpenScript, Content: path}); err != nil {
				t.Fatal(err)
			}
			if f.o.Depth() != 1 {
				t.Fatalf("depth = %d, want 1", f.o.Depth())
			}
			if _, err := f.o.step(ctx, protocol.Response{CommandID: tt.closer, Kind: protocol.CloseScript}); err != nil {
				t.Fatal(err)
			}
			if f.o.Depth() != 0 {
				t.Errorf("depth = %d after close", f.o.Depth())
			}
			if got := strings.Contains(logs.String(), "which command 5 opened"); got != tt.warned {
				t.Errorf("warned = %v, want %v; log:\n%s", got, tt.warned, logs.String())
			}
		})
	}
}

// ── Remote ───────────────────────────────────────────────────────────

func remote(content string) protocol.Request {
	return protocol.Request{
		CommandID: protocol.NewCommand,
		Kind:      protocol.Execute,
		Content:   content,
		Remote:    &protocol.Remote{ClientCommandID: 4, ClientID: 2},
	}
}

func TestHandleRemote(t *testing.T) {
	f := newFixture(t, "")

	if got := f.o.HandleRemote(remote("info")).Kind; got != protocol.InvalidRequest {
		t.Errorf("during INIT: %s, want INVALID_REQUEST", got)
	}

	f.o.setMode(ModeInteractive)
	resp := f.o.HandleRemote(remote("info"))
	if resp.Kind != protocol.Success || resp.Remote == nil || resp.Remote.ClientCommandID != 4 {
		t.Errorf("info: %+v", resp)
	}
	if got := f.o.HandleRemote(remote("execute_script x.txt")).Kind; got != protocol.InvalidRequest {
		t.Errorf("execute_script: %s, want INVALID_REQUEST", got)
	}
	if f.out.Len() != 0 {
		t.Errorf("remote traffic printed locally: %q", f.out.String())
	}
}

type fixedDispatcher protocol.Response

func (d fixedDispatcher) Dispatch(protocol.Request) protocol.Response { return protocol.Response(d) }

func TestHandleRemote_LocalKindsAreRefused(t *testing.T) {
	o := NewOrchestrator(fixedDispatcher{Kind: protocol.ExitSession}, nil, nil, nil)
	o.setMode(ModeInteractive)
	if got := o.HandleRemote(remote("exit")).Kind; got != protocol.InvalidRequest {
		t.Errorf("got %s, want INVALID_REQUEST", got)
	}
	if o.Mode() != ModeInteractive {
		t.Errorf("remote response changed the mode to %s", o.Mode())
	}
}

// ── Transition table ─────────────────────────────────────────────────

func TestLookup(t *testing.T) {
	tests := []struct {
		mode Mode
		kind protocol.ResponseKind
		next Mode
		ok   bool
	}{
		{ModeInit, protocol.StartInit, ModeInit, true},
		{ModeInit, protocol.AuthFailure, ModeInit, true},
		{ModeInit, protocol.ExitSession, ModeTerminating, true},
		{ModeInteractive, protocol.OpenScript, ModeScript, true},
		{ModeInteractive, protocol.Success, ModeInteractive, true},
		{ModeScript, protocol.CloseScript, ModeScript, true},
		{ModeScript, protocol.InvalidValue, ModeScript, true},
		{ModeScript, protocol.ExitSession, ModeTerminating, true},
		{ModeTerminating, protocol.Success, 0, false},
	}
	for _, tt := range tests {
		got, ok := lookup(tt.mode, tt.kind)
		if ok != tt.ok {
			t.Errorf("lookup(%s, %s) ok = %v", tt.mode, tt.kind, ok)
			continue
		}
		if ok && got.next != tt.next {
			t.Errorf("lookup(%s, %s).next = %s, want %s", tt.mode, tt.kind, got.next, tt.next)
		}
	}
}
