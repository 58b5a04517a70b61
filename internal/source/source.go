// Package source reads and parses the watched script file. Both operations
// tolerate the hazards of a file being edited while the program runs: a read
// that races a save may see zero bytes, and a parse may see a half-finished
// edit. Reads retry silently; parse failures go through the recovery prompt
// so the operator can fix the file and retry.
package source

import (
	"os"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"

	"github.com/relodev/relo/internal/prompt"
)

// Read returns the current text of the file with a trailing newline
// appended. An empty read means a save is in progress, so it retries until
// the file has content. Saves complete near-instantly, which makes the busy
// poll acceptable for a development-time tool.
func Read(path string) (string, error) {
	for {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		if len(data) > 0 {
			return string(data) + "\n", nil
		}
	}
}

// Parse parses text as a script. The returned program's node offsets index
// into text, so fragment isolation must slice the same string.
func Parse(path, text string) (*ast.Program, error) {
	return parser.ParseFile(nil, path, text, 0)
}

// ParseUntilSuccessful reads and parses the file, routing every failure
// through the recovery prompt and retrying. It returns only once the file
// parses, together with the exact text the program was parsed from. The
// retry is unbounded; it ends when the operator fixes the file.
func ParseUntilSuccessful(path string, p *prompt.Prompt) (*ast.Program, string) {
	for {
		text, err := Read(path)
		if err != nil {
			p.Report(err, path)
			continue
		}
		program, err := Parse(path, text)
		if err != nil {
			p.Report(err, path)
			continue
		}
		return program, text
	}
}
