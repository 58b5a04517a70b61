// Package engine executes reloaded fragments against the caller's live
// runtime environment and drives the reload cycle for opted-in loops and
// functions: re-read the file, re-locate the fragment, recompile it, and
// run it with the variables the script has already accumulated.
package engine

import (
	"strings"

	"github.com/dop251/goja"
	"github.com/google/uuid"

	"github.com/relodev/relo/internal/prompt"
)

// Environment is the execution environment shared by every reload cycle of
// one fragment: the runtime whose global scope holds the caller's
// variables, the path of the watched file, and the recovery prompt. It is
// created once per opted-in fragment and never replaced, which is what
// lets state survive reloads.
type Environment struct {
	vm     *goja.Runtime
	path   string
	prompt *prompt.Prompt
}

func NewEnvironment(vm *goja.Runtime, path string, p *prompt.Prompt) *Environment {
	return &Environment{vm: vm, path: path, prompt: p}
}

func (e *Environment) VM() *goja.Runtime      { return e.vm }
func (e *Environment) Path() string           { return e.path }
func (e *Environment) Prompt() *prompt.Prompt { return e.prompt }

// FreshName returns an identifier verified absent from the environment, for
// passing values into fragments without any chance of shadowing a caller
// variable.
func (e *Environment) FreshName() string {
	for {
		name := "__reloading_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
		if e.vm.Get(name) == nil {
			return name
		}
	}
}

// CompileUnit compiles fragment source under the transient unit name. The
// fragment text arrives padded to its original line, so positions in
// errors match the file once the unit name is rewritten.
func (e *Environment) CompileUnit(src string) (*goja.Program, error) {
	return goja.Compile(prompt.UnitName, src, false)
}

// RunUnit executes a compiled unit inside the environment for effect.
func (e *Environment) RunUnit(program *goja.Program) error {
	_, err := e.vm.RunProgram(program)
	return err
}

// EvalUnit executes a compiled unit and returns its completion value.
func (e *Environment) EvalUnit(program *goja.Program) (goja.Value, error) {
	return e.vm.RunProgram(program)
}

// SetValue writes a binding directly into the environment.
func (e *Environment) SetValue(name string, value goja.Value) error {
	return e.vm.Set(name, value)
}
