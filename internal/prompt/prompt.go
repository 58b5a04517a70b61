// Package prompt implements the interactive recovery prompt used whenever a
// reload cannot proceed: broken syntax in the watched file, a fragment that
// can no longer be located, or a runtime error inside a reloaded fragment.
// The prompt reports the error, tells the operator which file to fix, and
// blocks until a line of input acknowledges the fix. It never gives up on
// its own; recovery is always driven by the operator editing the file.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// UnitName is the transient compilation unit name under which reloaded
// fragments are compiled. Reports rewrite it to the real file path so stack
// traces point at something the operator can open.
const UnitName = "<reloading>"

var (
	// headerStyle for the error report header
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("160"))

	// errorStyle for the error text itself
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// Prompt reports reload errors and waits for operator acknowledgment.
// The streams are exported so tests and embedders can inject their own.
type Prompt struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	reader *bufio.Reader
}

// New returns a Prompt bound to the process's standard streams.
func New() *Prompt {
	return &Prompt{
		In:  os.Stdin,
		Out: os.Stdout,
		Err: os.Stderr,
	}
}

// Report writes the error to the error stream with any reference to the
// transient compilation unit rewritten to path, prints the fix instruction
// to the output stream, and blocks until one line arrives on the input
// stream. EOF on the input stream counts as an acknowledgment.
func (p *Prompt) Report(err error, path string) {
	msg := strings.ReplaceAll(err.Error(), UnitName, path)
	fmt.Fprintf(p.Err, "%s %s\n", headerStyle.Render("reload error:"), errorStyle.Render(msg))
	fmt.Fprintf(p.Out, "Edit %s and press return to continue.\n", path)
	p.awaitAck()
}

func (p *Prompt) awaitAck() {
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	_, _ = p.reader.ReadString('\n')
}
