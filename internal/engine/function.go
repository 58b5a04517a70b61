package engine

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/relodev/relo/internal/locate"
	"github.com/relodev/relo/internal/source"
)

// maxConsecutiveFailures bounds how many recompiled attempts a single call
// gets before its error propagates to the call site.
const maxConsecutiveFailures = 3

// FunctionController wraps an opted-in function: every N invocations it
// re-isolates and recompiles the function body, keeping the previous
// working version whenever the fresh one cannot be produced. A call whose
// execution fails is reported, recompiled and retried; after three
// consecutive failures the last error propagates, and the wrapper stays
// usable for future calls.
type FunctionController struct {
	env    *Environment
	name   string
	every  int
	calls  int
	active goja.Callable
}

func NewFunctionController(env *Environment, name string, every int, original goja.Callable) *FunctionController {
	if every < 1 {
		every = 1
	}
	return &FunctionController{
		env:    env,
		name:   name,
		every:  every,
		active: original,
	}
}

// Call is the wrapper invoked in place of the original function.
func (c *FunctionController) Call(call goja.FunctionCall) goja.Value {
	if c.calls%c.every == 0 {
		if fn, ok := c.reload(); ok {
			c.active = fn
		}
	}
	c.calls++

	failures := 0
	for {
		result, err := c.active(call.This, call.Arguments...)
		if err == nil {
			return result
		}
		failures++
		c.env.Prompt().Report(err, c.env.Path())
		if fn, ok := c.reload(); ok {
			c.active = fn
		}
		if failures >= maxConsecutiveFailures {
			rethrow(c.env.VM(), err)
		}
	}
}

// reload re-isolates and recompiles the function body from the file. It
// returns false when the function cannot be found or the fresh definition
// cannot be evaluated; the previous version stays active in that case.
func (c *FunctionController) reload() (goja.Callable, bool) {
	program, text := source.ParseUntilSuccessful(c.env.Path(), c.env.Prompt())

	inner, found := locate.Function(program, text, c.name)
	if !found {
		return nil, false
	}

	// Evaluate the stripped definition inside a scope of its own and take
	// the resulting binding, so the caller's environment never sees the
	// definition happen and the stripped wrappers cannot re-apply.
	src := "(function() { const " + c.name + " = " + inner + "; return " + c.name + "; })()"
	unit, err := c.env.CompileUnit(src)
	if err != nil {
		c.env.Prompt().Report(err, c.env.Path())
		return nil, false
	}
	value, err := c.env.EvalUnit(unit)
	if err != nil {
		c.env.Prompt().Report(err, c.env.Path())
		return nil, false
	}
	fn, ok := goja.AssertFunction(value)
	if !ok {
		c.env.Prompt().Report(fmt.Errorf("%s did not evaluate to a function", c.name), c.env.Path())
		return nil, false
	}
	return fn, true
}
