package engine

import (
	"iter"

	"github.com/dop251/goja"

	"github.com/relodev/relo/internal/locate"
	"github.com/relodev/relo/internal/prompt"
)

// Config configures installation of the reloading entry point.
type Config struct {
	// Prompt handles error recovery; nil means the standard streams.
	Prompt *prompt.Prompt

	// SourcePath overrides the watched file path normally derived from the
	// calling script's own source name.
	SourcePath string
}

// Install registers the reloading entry point in the runtime's global
// scope. Scripts then opt in with `for (... of reloading(seq))` or by
// wrapping a named function expression in `reloading(...)`.
func Install(vm *goja.Runtime, cfg Config) error {
	if cfg.Prompt == nil {
		cfg.Prompt = prompt.New()
	}
	in := &installer{vm: vm, prompt: cfg.Prompt, sourcePath: cfg.SourcePath}
	return vm.Set(locate.EntryName, in.entry)
}

type installer struct {
	vm         *goja.Runtime
	prompt     *prompt.Prompt
	sourcePath string
}

type callOptions struct {
	every   int
	forever bool
}

// entry implements the script-facing reloading() call. Dispatch follows the
// first argument: a function is wrapped, an iterable is looped, an options
// object configures a forever loop or a deferred decorator, and no
// argument at all yields the deferred decorator.
func (in *installer) entry(call goja.FunctionCall) goja.Value {
	opts := callOptions{every: 1}
	in.applyOptions(call.Argument(1), &opts)

	arg := call.Argument(0)
	if _, ok := goja.AssertFunction(arg); ok {
		return in.wrapFunction(arg, opts)
	}
	if obj, ok := arg.(*goja.Object); ok && isOptionsObject(obj) {
		in.applyOptions(obj, &opts)
		arg = goja.Undefined()
	}
	if goja.IsUndefined(arg) || goja.IsNull(arg) {
		if opts.forever {
			return in.runLoop(in.counting(), opts)
		}
		return in.deferred(opts)
	}

	values, ok := in.values(arg)
	if !ok {
		panic(in.vm.NewTypeError("nothing to iterate over: reloading() expects an iterable, a function, or forever: true"))
	}
	return in.runLoop(values, opts)
}

// runLoop drives the whole loop inside the reloading() call itself. The
// enclosing for..of then has nothing left to do, so it receives an empty
// array and its compiled-in body never runs.
func (in *installer) runLoop(values iter.Seq[goja.Value], opts callOptions) goja.Value {
	path, line := in.callerPosition()
	env := NewEnvironment(in.vm, path, in.prompt)
	NewLoopController(env, line, opts.every).Run(values)
	return in.vm.NewArray()
}

func (in *installer) wrapFunction(value goja.Value, opts callOptions) goja.Value {
	obj := value.ToObject(in.vm)
	name := ""
	if n := obj.Get("name"); n != nil && !goja.IsUndefined(n) {
		name = n.String()
	}
	if name == "" {
		panic(in.vm.NewTypeError("reloading requires a named function"))
	}
	original, _ := goja.AssertFunction(value)

	path, _ := in.callerPosition()
	env := NewEnvironment(in.vm, path, in.prompt)
	controller := NewFunctionController(env, name, opts.every, original)
	return in.vm.ToValue(controller.Call)
}

// deferred builds the value returned by reloading() with options but no
// iterable and no function: callable as a decorator, and with an iteration
// attempt that explains what is missing instead of failing obscurely.
func (in *installer) deferred(opts callOptions) goja.Value {
	decorate := func(call goja.FunctionCall) goja.Value {
		arg := call.Argument(0)
		if _, ok := goja.AssertFunction(arg); !ok {
			panic(in.vm.NewTypeError("reloading() without an iterable is a decorator; apply it to a function"))
		}
		return in.wrapFunction(arg, opts)
	}
	obj := in.vm.ToValue(decorate).ToObject(in.vm)

	iterate := func(goja.FunctionCall) goja.Value {
		panic(in.vm.NewTypeError("Nothing to iterate over. Pass an iterable to reloading."))
	}
	_ = obj.SetSymbol(goja.SymIterator, in.vm.ToValue(iterate))
	return obj
}

func (in *installer) applyOptions(v goja.Value, opts *callOptions) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		panic(in.vm.NewTypeError("reloading options must be an object"))
	}
	if every := obj.Get("every"); every != nil && !goja.IsUndefined(every) {
		n := every.ToInteger()
		if n < 1 {
			panic(in.vm.NewTypeError("every must be a positive integer"))
		}
		opts.every = int(n)
	}
	if forever := obj.Get("forever"); forever != nil && !goja.IsUndefined(forever) {
		opts.forever = forever.ToBoolean()
	}
}

// isOptionsObject distinguishes a bare configuration object from anything
// iterable or callable.
func isOptionsObject(obj *goja.Object) bool {
	if obj.ClassName() != "Object" {
		return false
	}
	it := obj.GetSymbol(goja.SymIterator)
	return it == nil || goja.IsUndefined(it)
}

// callerPosition walks the script call stack for the frame that invoked
// the entry point, yielding the watched file path and the call line.
func (in *installer) callerPosition() (string, int) {
	frames := in.vm.CaptureCallStack(0, nil)
	for i := range frames {
		src := frames[i].SrcName()
		if src == "" || src == "<native>" || src == prompt.UnitName {
			continue
		}
		line := frames[i].Position().Line
		if in.sourcePath != "" {
			return in.sourcePath, line
		}
		return src, line
	}
	panic(in.vm.NewTypeError("cannot determine the calling script position"))
}

// values adapts a script iterable into a Go sequence via the iterator
// protocol.
func (in *installer) values(v goja.Value) (iter.Seq[goja.Value], bool) {
	obj := v.ToObject(in.vm)
	if obj == nil {
		return nil, false
	}
	iterFnValue := obj.GetSymbol(goja.SymIterator)
	if iterFnValue == nil || goja.IsUndefined(iterFnValue) {
		return nil, false
	}
	iterFn, ok := goja.AssertFunction(iterFnValue)
	if !ok {
		return nil, false
	}

	return func(yield func(goja.Value) bool) {
		iteratorValue, err := iterFn(obj)
		if err != nil {
			rethrow(in.vm, err)
		}
		iterator := iteratorValue.ToObject(in.vm)
		next, ok := goja.AssertFunction(iterator.Get("next"))
		if !ok {
			panic(in.vm.NewTypeError("iterator has no next method"))
		}
		for {
			resultValue, err := next(iterator)
			if err != nil {
				rethrow(in.vm, err)
			}
			result := resultValue.ToObject(in.vm)
			if done := result.Get("done"); done != nil && done.ToBoolean() {
				return
			}
			if !yield(result.Get("value")) {
				return
			}
		}
	}, true
}

// counting yields 0, 1, 2, … for forever loops.
func (in *installer) counting() iter.Seq[goja.Value] {
	return func(yield func(goja.Value) bool) {
		for i := 0; ; i++ {
			if !yield(in.vm.ToValue(i)) {
				return
			}
		}
	}
}

// rethrow propagates an execution error back into the running script.
func rethrow(vm *goja.Runtime, err error) {
	if ex, ok := err.(*goja.Exception); ok {
		panic(ex)
	}
	panic(vm.NewGoError(err))
}
