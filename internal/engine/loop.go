package engine

import (
	"iter"

	"github.com/dop251/goja"

	"github.com/relodev/relo/internal/locate"
	"github.com/relodev/relo/internal/source"
)

// LoopController drives an opted-in loop: every N iterations it re-reads
// the file and recompiles the loop body, then binds the next value under
// the loop's own iteration variables and executes the body in the shared
// environment. Runtime errors in the body are reported and the loop moves
// on; only exhausting the input ends it.
type LoopController struct {
	env    *Environment
	line   int
	every  int
	hidden string

	id     locate.LoopID
	target string
	bind   *goja.Program
	body   *goja.Program
}

func NewLoopController(env *Environment, line, every int) *LoopController {
	if every < 1 {
		every = 1
	}
	return &LoopController{
		env:    env,
		line:   line,
		every:  every,
		hidden: env.FreshName(),
	}
}

// Run iterates values to exhaustion. The first reload locates the loop by
// the recorded line; every later one uses the identity established then.
func (c *LoopController) Run(values iter.Seq[goja.Value]) {
	i := 0
	for value := range values {
		if i%c.every == 0 {
			c.reload()
		}
		i++

		if err := c.env.SetValue(c.hidden, value); err != nil {
			c.env.Prompt().Report(err, c.env.Path())
			continue
		}
		if err := c.env.RunUnit(c.bind); err != nil {
			c.env.Prompt().Report(err, c.env.Path())
			continue
		}
		if err := c.env.RunUnit(c.body); err != nil {
			c.env.Prompt().Report(err, c.env.Path())
		}
	}
}

// reload re-reads, re-locates and recompiles the loop body. Lookup
// failures go through the prompt and the whole pipeline retries, so this
// returns only with a freshly compiled fragment.
func (c *LoopController) reload() {
	for {
		program, text := source.ParseUntilSuccessful(c.env.Path(), c.env.Prompt())

		fragment, err := locate.Loop(program, text, c.id, c.line)
		if err != nil {
			c.env.Prompt().Report(err, c.env.Path())
			continue
		}
		body, err := c.env.CompileUnit(fragment.Body)
		if err != nil {
			c.env.Prompt().Report(err, c.env.Path())
			continue
		}
		bind, err := c.env.CompileUnit(fragment.Target + " = " + c.hidden + ";")
		if err != nil {
			c.env.Prompt().Report(err, c.env.Path())
			continue
		}

		c.id = fragment.ID
		c.target = fragment.Target
		c.body = body
		c.bind = bind
		return
	}
}
