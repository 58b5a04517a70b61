// Package relo gives goja-embedded JavaScript live-reloading loops and
// functions: an opted-in loop body or function body is re-read from its
// source file and recompiled before every Nth iteration or invocation,
// while the script's accumulated state stays intact. Edit the file while
// the program runs and the next cycle picks the change up.
//
// After Install, scripts opt in through the reloading global:
//
//	for (const i of reloading(items)) {
//	    total = total + process(i);
//	}
//
//	const handle = reloading(function handle(msg) { ... });
//
// An options object controls the cadence and the endless-loop form:
//
//	for (const i of reloading(items, { every: 10 })) { ... }
//	for (const i of reloading({ forever: true })) { ... }
//
// Fragments run against the runtime's global scope, so state that must
// survive reloads belongs in plain assignments or var declarations;
// re-declaring a let or const inside a reloaded body fails on the next
// cycle like any other runtime error and is recoverable the same way.
//
// The watched file is the script's own source name, so the script must be
// compiled under its real path (see WithSourcePath for hosts that cannot).
package relo

import (
	"io"

	"github.com/dop251/goja"

	"github.com/relodev/relo/internal/engine"
	"github.com/relodev/relo/internal/prompt"
)

// Option configures Install.
type Option func(*options)

type options struct {
	in         io.Reader
	out        io.Writer
	errOut     io.Writer
	sourcePath string
}

// WithPrompt redirects the recovery prompt's streams: err receives error
// reports, out the fix instructions, and in the operator acknowledgments.
func WithPrompt(in io.Reader, out, errOut io.Writer) Option {
	return func(o *options) {
		o.in = in
		o.out = out
		o.errOut = errOut
	}
}

// WithSourcePath pins the watched file instead of deriving it from the
// calling script's source name, for hosts that evaluate scripts under
// synthetic names.
func WithSourcePath(path string) Option {
	return func(o *options) {
		o.sourcePath = path
	}
}

// Install registers the reloading global in the runtime.
func Install(vm *goja.Runtime, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	p := prompt.New()
	if o.in != nil {
		p.In = o.in
	}
	if o.out != nil {
		p.Out = o.out
	}
	if o.errOut != nil {
		p.Err = o.errOut
	}

	return engine.Install(vm, engine.Config{
		Prompt:     p,
		SourcePath: o.sourcePath,
	})
}
