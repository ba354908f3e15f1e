package surface

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"flatctl/internal/protocol"
)

// ScriptKey returns the identity a script file is tracked under, so
// that "a.txt" and "./a.txt" are recognized as the same script.
func ScriptKey(name string) string {
	if abs, err := filepath.Abs(name); err == nil {
		return abs
	}
	return filepath.Clean(name)
}

// Script replays a file one line per request.  It is used by one
// goroutine at a time.
type Script struct {
	name      string
	initiator int
	printer   *Printer

	file   *os.File
	sc     *bufio.Scanner
	cursor int
	err    error
	done   bool
}

// OpenScript opens name on behalf of the command with id initiator.  A
// file that cannot be opened does not fail here: the script's first
// request reports the problem to the initiator.
func OpenScript(name string, initiator int, p *Printer) *Script {
	s := &Script{name: name, initiator: initiator, printer: p}
	f, err := os.Open(name)
	if err != nil {
		s.err = err
		return s
	}
	if st, err := f.Stat(); err == nil && st.IsDir() {
		f.Close()
		s.err = fmt.Errorf("%s is a directory", name)
		return s
	}
	s.file = f
	s.sc = bufio.NewScanner(f)
	return s
}

// Name returns the file name the script was opened with.
func (s *Script) Name() string { return s.name }

// Initiator returns the id of the command that opened the script.
func (s *Script) Initiator() int { return s.initiator }

// Err returns the error that ended the script early, if any.
func (s *Script) Err() error { return s.err }

// Done reports whether the script has sent its final request.
func (s *Script) Done() bool { return s.done }

// Close releases the file.
func (s *Script) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// Next displays last and returns the request made from the next line.
// The line continues the previous command when it still expects values;
// a command that rejected a value is abandoned and the line starts a new
// command.  At end of file the initiator receives a PROCEED describing
// how the script ended.
func (s *Script) Next(_ context.Context, last protocol.Response) (protocol.Request, error) {
	s.display(last)
	if s.done || s.err != nil {
		return s.finish()
	}

	for s.sc.Scan() {
		s.cursor++
		line := strings.TrimSpace(s.sc.Text())
		if line == "" {
			continue
		}
		if last.ExpectsValues() && !last.Kind.IsFailure() {
			return protocol.NewProceed(last.CommandID, line), nil
		}
		return protocol.NewExecute(line), nil
	}
	s.err = s.sc.Err()
	return s.finish()
}

func (s *Script) finish() (protocol.Request, error) {
	s.done = true
	s.Close()
	msg := fmt.Sprintf("script %s finished", s.name)
	if s.err != nil {
		msg = fmt.Sprintf("script %s failed: %v", s.name, s.err)
	}
	return protocol.NewProceed(s.initiator, msg), nil
}

func (s *Script) display(last protocol.Response) {
	if last.Kind.IsFailure() {
		s.printer.Warn(fmt.Sprintf("%s:%d: %s", s.name, s.cursor, last.Content))
		return
	}
	s.printer.ShowContent(last)
}
