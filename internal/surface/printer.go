// Package surface implements the local input surfaces: the interactive
// Console, the Script player, and the Printer both display through.
package surface

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"flatctl/internal/protocol"
)

// CommandMarker is shown before a command line on an interactive
// terminal.
const CommandMarker = "--> "

// Printer renders responses according to their display hint.
type Printer struct {
	mu     sync.Mutex
	out    io.Writer
	marker bool
}

// NewPrinter returns a Printer writing to out.  The command marker is
// enabled when out is a terminal.
func NewPrinter(out io.Writer) *Printer {
	p := &Printer{out: out}
	if f, ok := out.(*os.File); ok {
		p.marker = term.IsTerminal(int(f.Fd()))
	}
	return p
}

// SetMarker forces the command marker on or off.
func (p *Printer) SetMarker(on bool) {
	p.mu.Lock()
	p.marker = on
	p.mu.Unlock()
}

// Show prints resp's content as its hint asks, followed by its prompt.
func (p *Printer) Show(resp protocol.Response) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.content(resp.Hint, resp.Content)
	if resp.Prompt != "" {
		fmt.Fprint(p.out, resp.Prompt)
	}
}

// ShowContent prints resp's content without its prompt.
func (p *Printer) ShowContent(resp protocol.Response) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.content(resp.Hint, resp.Content)
}

func (p *Printer) content(hint protocol.Hint, content string) {
	switch hint {
	case protocol.HintNone:
	case protocol.HintNormal:
		fmt.Fprint(p.out, content)
	case protocol.HintLine:
		fmt.Fprintln(p.out, content)
	case protocol.HintWarning:
		fmt.Fprintln(p.out, "Warning: "+content)
	case protocol.HintError:
		fmt.Fprintln(p.out, "Error: "+content)
	}
}

// Line prints s on its own line.
func (p *Printer) Line(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, s)
}

// Warn prints s as a warning.
func (p *Printer) Warn(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.content(protocol.HintWarning, s)
}

// Error prints s as an error.
func (p *Printer) Error(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.content(protocol.HintError, s)
}

// CommandPrompt shows the command marker when enabled.
func (p *Printer) CommandPrompt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.marker {
		fmt.Fprint(p.out, CommandMarker)
	}
}
