// Package evaluator executes fully parsed fir programs: it builds the object
// model (tags, constructor tables, function tables) over a word-addressed
// heap and interprets the entry function tree-walking style.
//
// Execution is single-threaded and synchronous. Every runtime type mismatch,
// unbound name, arity error, or unimplemented construct is fatal; the
// diagnostic unwinds to the exported entry points and comes back as an
// error.
package evaluator

import (
	"io"

	"github.com/mikesamuel/fir/internal/ast"
	"github.com/mikesamuel/fir/internal/config"
	"github.com/mikesamuel/fir/internal/heap"
)

// Evaluator runs a program. Out receives everything the program writes
// through output builtins; Pgm and Heap are owned by the run.
type Evaluator struct {
	Out  io.Writer
	Pgm  *Program
	Heap *heap.Heap
}

// locals is the per-call environment: source identifiers to heap addresses.
// let-bindings insert without rejecting duplicates (shadowing); for loops
// remove their variable on exit.
type locals map[string]uint64

// ControlFlow is the result of every evaluator step: either an ordinary
// value or a pending function return. A Ret propagates unchanged until the
// function-call boundary unwraps it.
type ControlFlow struct {
	val uint64
	ret bool
}

func flowVal(val uint64) ControlFlow { return ControlFlow{val: val} }
func flowRet(val uint64) ControlFlow { return ControlFlow{val: val, ret: true} }

// New builds the program tables and a fresh heap. Bootstrap errors (a
// malformed Bool declaration, duplicate functions, imports) are returned.
func New(w io.Writer, decls []ast.TopDecl) (e *Evaluator, err error) {
	defer recoverDiag(&err)
	h := heap.New()
	return &Evaluator{Out: w, Pgm: NewProgram(decls, h), Heap: h}, nil
}

// RunMain allocates the input as a Str, invokes the entry function with it,
// and returns the resulting value's address.
func (e *Evaluator) RunMain(input string) (result uint64, err error) {
	defer recoverDiag(&err)

	inputVal := e.Heap.AllocateStr([]byte(input))

	mainFun, ok := e.Pgm.TopLevelFuns[config.EntryFunName]
	if !ok {
		bootFatalf("%s function not defined", config.EntryFunName)
	}

	// main has no call site; it is called by the interpreter.
	return e.call(mainFun, []uint64{inputVal}, ast.Loc{}), nil
}

// Run executes a parsed program against the writer, handing the input
// string to main. It is New followed by RunMain.
func Run(w io.Writer, decls []ast.TopDecl, input string) (uint64, error) {
	e, err := New(w, decls)
	if err != nil {
		return 0, err
	}
	return e.RunMain(input)
}

func (e *Evaluator) call(fun *Fun, args []uint64, loc ast.Loc) uint64 {
	switch fun.Kind {
	case FunBuiltin:
		return fun.Builtin.Fn(e, args, loc)
	default:
		return e.callSourceFun(fun.Source, args, loc)
	}
}

// callMethod dispatches a method by the receiver's tag and calls it with
// the receiver prepended.
func (e *Evaluator) callMethod(receiver uint64, method string, args []uint64, loc ast.Loc) uint64 {
	tag := e.Heap.Get(receiver)
	fun, ok := e.Pgm.AssociatedFuns[tag][method]
	if !ok {
		fatalf(loc, "receiver with tag %d does not have a %s method", tag, method)
	}
	return e.call(fun, append([]uint64{receiver}, args...), loc)
}

// callSourceFun binds the arguments into a fresh local environment and
// executes the body. A propagated Ret and a normal fall-through value are
// both the function's result; this is the only place a Ret is absorbed.
func (e *Evaluator) callSourceFun(fun *ast.FunDecl, args []uint64, loc ast.Loc) uint64 {
	if fun.NumParams() != len(args) {
		fatalf(loc, "function %s takes %d arguments, called with %d", fun.Name, fun.NumParams(), len(args))
	}

	env := make(locals, len(args))
	argIdx := 0
	if fun.Self {
		env["self"] = args[0]
		argIdx++
	}
	for _, param := range fun.Params {
		env[param.Name] = args[argIdx]
		argIdx++
	}

	return e.exec(env, fun.Body).val
}

// eq dispatches __eq on the left value; the result must be a Bool.
func (e *Evaluator) eq(val1, val2 uint64, loc ast.Loc) bool {
	ret := e.callMethod(val1, config.EqMethodName, []uint64{val2}, loc)
	if ret != e.Pgm.TrueAlloc && ret != e.Pgm.FalseAlloc {
		fatalf(loc, "%s returned a non-Bool value", config.EqMethodName)
	}
	return ret == e.Pgm.TrueAlloc
}

// cmp dispatches __cmp on the left value and maps the returned Ordering to
// -1, 0 or 1.
func (e *Evaluator) cmp(val1, val2 uint64, loc ast.Loc) int {
	ret := e.callMethod(val1, config.CmpMethodName, []uint64{val2}, loc)
	retTag := e.Heap.Get(ret)

	orderingTyCon, ok := e.Pgm.TyCons[config.OrderingTypeName]
	if !ok {
		fatalf(loc, "%s was called, but the Ordering type is not defined", config.CmpMethodName)
	}
	if len(orderingTyCon.ValueConstrs) != 3 {
		fatalf(loc, "the Ordering type must have exactly the constructors Less, Equal and Greater")
	}
	lessTag, _ := orderingTyCon.ConstrWithTag(config.LessCtorName, loc)
	equalTag, _ := orderingTyCon.ConstrWithTag(config.EqualCtorName, loc)
	greaterTag, _ := orderingTyCon.ConstrWithTag(config.GreaterCtorName, loc)

	switch retTag {
	case lessTag:
		return -1
	case equalTag:
		return 0
	case greaterTag:
		return 1
	}
	fatalf(loc, "%s returned a non-Ordering value", config.CmpMethodName)
	return 0
}
