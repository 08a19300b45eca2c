package procfilter

import (
	"fmt"

	"github.com/AdguardTeam/golibs/log"
	"github.com/AdguardTeam/procfilter/dom"
	"github.com/dop251/goja"
)

// Script is a compiled filter payload: a JavaScript fragment calling the
// operator functions with literal arguments.  A Script is safe for
// concurrent use, its runtimes are not.
type Script struct {
	prog *goja.Program
	name string
}

// NewScript compiles the payload src.  name is used in error messages.
func NewScript(name, src string) (s *Script, err error) {
	prog, err := goja.Compile(name, src, false)
	if err != nil {
		return nil, fmt.Errorf("compiling payload %s: %w", name, err)
	}

	return &Script{
		prog: prog,
		name: name,
	}, nil
}

// Name returns the name of the payload.
func (s *Script) Name() (name string) {
	return s.name
}

// Runtime is a Script bound to an Engine.
type Runtime struct {
	vm     *goja.Runtime
	script *Script
	engine *Engine

	// ops maps the operator functions exposed to the payload back to the
	// operators so that they can be passed as callbacks.
	ops map[*goja.Object]Operator
}

// Bind creates a runtime executing s with the operators of e.
func (s *Script) Bind(e *Engine) (rt *Runtime) {
	rt = &Runtime{
		vm:     goja.New(),
		script: s,
		engine: e,
		ops:    map[*goja.Object]Operator{},
	}

	for _, op := range []Operator{
		OpHasText,
		OpMinTextLength,
		OpXPath,
		OpUpward,
		OpRemove,
		OpNthAncestor,
	} {
		rt.defineOp(op)
	}

	for _, op := range []Operator{
		OpMatchesCSS,
		OpMatchesCSSBefore,
		OpMatchesCSSAfter,
	} {
		rt.defineMatchesCSS(op)
	}

	rt.define(OpHas.String(), rt.hideIfHas(e.HideIfHas))
	rt.define(OpHasNot.String(), rt.hideIfHas(e.HideIfNotHas))
	rt.define("hideIfChain", rt.hideIfChain(e.HideIfChain, e.HideIfChainFunc))
	rt.define("hideIfNotChain", rt.hideIfChain(e.HideIfNotChain, e.HideIfNotChainFunc))
	rt.define("hideNodes", rt.hideNodes)

	return rt
}

// Run executes the payload once.  Exceptions escaping the payload are logged
// and returned, the changes made before them stay in effect.
func (rt *Runtime) Run() (err error) {
	_, err = rt.vm.RunProgram(rt.script.prog)
	if err != nil {
		return fmt.Errorf("running payload %s: %w", rt.script.name, err)
	}

	return nil
}

// define exposes fn to the payload as the global name.
func (rt *Runtime) define(name string, fn func(call goja.FunctionCall) goja.Value) (obj *goja.Object) {
	obj = rt.vm.ToValue(fn).ToObject(rt.vm)
	if err := rt.vm.Set(name, obj); err != nil {
		// Should not happen with a fresh runtime.
		panic(err)
	}

	return obj
}

// defineOp exposes op as a function (subject, argument, root) returning the
// selected nodes.
func (rt *Runtime) defineOp(op Operator) {
	obj := rt.define(op.String(), func(call goja.FunctionCall) goja.Value {
		return rt.nodes(rt.engine.Eval(Filter{
			Op:       op,
			Subject:  rt.str(call.Argument(0)),
			Argument: rt.str(call.Argument(1)),
			Root:     rt.node(call.Argument(2)),
		}))
	})
	rt.ops[obj] = op
}

// defineMatchesCSS is like defineOp for the style operators which take an
// optional pseudo-element as the fourth argument.
func (rt *Runtime) defineMatchesCSS(op Operator) {
	obj := rt.define(op.String(), func(call goja.FunctionCall) goja.Value {
		f := Filter{
			Op:       op,
			Subject:  rt.str(call.Argument(0)),
			Argument: rt.str(call.Argument(1)),
			Root:     rt.node(call.Argument(2)),
		}

		if pseudo := rt.str(call.Argument(3)); op == OpMatchesCSS && pseudo != "" {
			return rt.nodes(rt.engine.matchesCSS(f.Subject, f.Argument, f.Root, pseudo))
		}

		return rt.nodes(rt.engine.Eval(f))
	})
	rt.ops[obj] = op
}

// hideIfHas wraps hide, which is HideIfHas or HideIfNotHas.
func (rt *Runtime) hideIfHas(
	hide func(subject, target string, root dom.Node),
) (fn func(call goja.FunctionCall) goja.Value) {
	return func(call goja.FunctionCall) goja.Value {
		hide(rt.str(call.Argument(0)), rt.str(call.Argument(1)), rt.node(call.Argument(2)))

		return goja.Undefined()
	}
}

// hideIfChain wraps a chain action.  Operators are evaluated directly, other
// callbacks are called as JavaScript functions.
func (rt *Runtime) hideIfChain(
	hideOp func(subject string, op Operator, chainSubject, chainArgument string),
	hideFunc func(subject, chainSubject, chainArgument string, fn ChainFunc),
) (fn func(call goja.FunctionCall) goja.Value) {
	return func(call goja.FunctionCall) goja.Value {
		subject := rt.str(call.Argument(0))
		chainSubject := rt.str(call.Argument(1))
		chainArgument := rt.str(call.Argument(2))

		cb := call.Argument(3)
		if op, ok := rt.op(cb); ok {
			hideOp(subject, op, chainSubject, chainArgument)
		} else if f, ok := goja.AssertFunction(cb); ok {
			hideFunc(subject, chainSubject, chainArgument, rt.chainFunc(f))
		} else {
			log.Debug("procfilter: chain callback is not a function: %s", cb)
		}

		return goja.Undefined()
	}
}

// hideNodes implements hideNodes(cb, subject, argument) and hideNodes(nodes).
func (rt *Runtime) hideNodes(call goja.FunctionCall) (v goja.Value) {
	cb := call.Argument(0)
	subject := call.Argument(1)
	if goja.IsUndefined(subject) {
		rt.engine.HideNodes(rt.exportNodes(cb))

		return goja.Undefined()
	}

	if op, ok := rt.op(cb); ok {
		rt.engine.HideFiltered(op, rt.str(subject), rt.str(call.Argument(2)))
	} else if f, ok := goja.AssertFunction(cb); ok {
		res, err := f(goja.Undefined(), subject, call.Argument(2))
		if err != nil {
			log.Debug("procfilter: hideNodes callback: %s", err)

			return goja.Undefined()
		}

		rt.engine.HideNodes(rt.exportNodes(res))
	}

	return goja.Undefined()
}

// chainFunc converts a JavaScript callback into a ChainFunc.  Exceptions
// select nothing.
func (rt *Runtime) chainFunc(f goja.Callable) (fn ChainFunc) {
	return func(subject, argument string, root dom.Node) (nodes []dom.Node) {
		res, err := f(
			goja.Undefined(),
			rt.vm.ToValue(subject),
			rt.vm.ToValue(argument),
			rt.vm.ToValue(root),
		)
		if err != nil {
			log.Debug("procfilter: chain callback: %s", err)

			return nil
		}

		return rt.exportNodes(res)
	}
}

// op returns the operator v refers to, if any.
func (rt *Runtime) op(v goja.Value) (op Operator, ok bool) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return 0, false
	}

	op, ok = rt.ops[obj]

	return op, ok
}

// str converts an argument to a string.  Regular expressions become
// "/source/flags" literals, undefined and null become "".
func (rt *Runtime) str(v goja.Value) (s string) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}

	if obj, ok := v.(*goja.Object); ok && obj.ClassName() == "RegExp" {
		return "/" + obj.Get("source").String() + "/" + obj.Get("flags").String()
	}

	return v.String()
}

// node converts a scope argument to a node.  Anything that is not a node
// means the whole document.
func (rt *Runtime) node(v goja.Value) (n dom.Node) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}

	n, _ = v.Export().(dom.Node)

	return n
}

// nodes converts nodes to a JavaScript array.
func (rt *Runtime) nodes(nodes []dom.Node) (v goja.Value) {
	items := make([]any, 0, len(nodes))
	for _, n := range nodes {
		items = append(items, n)
	}

	return rt.vm.NewArray(items...)
}

// exportNodes converts a JavaScript array of nodes back.  Values that are not
// nodes are skipped.
func (rt *Runtime) exportNodes(v goja.Value) (nodes []dom.Node) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}

	items, ok := v.Export().([]any)
	if !ok {
		return nil
	}

	for _, item := range items {
		if n, isNode := item.(dom.Node); isNode {
			nodes = append(nodes, n)
		}
	}

	return nodes
}
