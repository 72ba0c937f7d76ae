package evaluator

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/mikesamuel/fir/internal/ast"
	"github.com/mikesamuel/fir/internal/config"
	"github.com/mikesamuel/fir/internal/heap"
)

// Builtin is a primitive implemented in the host. Associated builtins get
// the receiver at args[0]; static builtins (`Array.new`) get only the call
// arguments.
type Builtin struct {
	Name string
	Fn   func(e *Evaluator, args []uint64, loc ast.Loc) uint64
}

func init() {
	// Registry keys are the names the object model installs; keep the
	// display names in sync with them.
	for name, builtin := range topLevelBuiltins {
		if builtin.Name != name {
			panic(fmt.Sprintf("builtin %q registered under %q", builtin.Name, name))
		}
	}
	for tyName, methods := range builtinMethods {
		for name, builtin := range methods {
			if builtin.Name != tyName+"."+name {
				panic(fmt.Sprintf("builtin %q registered under %q", builtin.Name, tyName+"."+name))
			}
		}
	}
}

// topLevelBuiltins are resolved by `prim fn` declarations without a
// receiver type.
var topLevelBuiltins = map[string]*Builtin{
	config.PrintStrFuncName: {
		Name: config.PrintStrFuncName,
		Fn: func(e *Evaluator, args []uint64, loc ast.Loc) uint64 {
			wantArgs(config.PrintStrFuncName, 1, args, loc)
			if _, err := e.Out.Write(append(e.stringBytes(args[0], loc), '\n')); err != nil {
				fatalf(loc, "write failed: %v", err)
			}
			return 0
		},
	},
	config.PanicFuncName: {
		Name: config.PanicFuncName,
		Fn: func(e *Evaluator, args []uint64, loc ast.Loc) uint64 {
			wantArgs(config.PanicFuncName, 1, args, loc)
			return fatalf(loc, "panic: %s", e.stringBytes(args[0], loc))
		},
	},
}

// builtinMethods are the method tables the object model installs for the
// primitive tags, Bool and Ordering. Source-declared associated functions
// shadow them name by name.
var builtinMethods = map[string]map[string]*Builtin{
	config.I32TypeName: {
		config.AddMethodName: i32Arith("I32."+config.AddMethodName, func(a, b int32) int32 { return a + b }),
		config.SubMethodName: i32Arith("I32."+config.SubMethodName, func(a, b int32) int32 { return a - b }),
		config.MulMethodName: i32Arith("I32."+config.MulMethodName, func(a, b int32) int32 { return a * b }),
		config.EqMethodName: {
			Name: "I32." + config.EqMethodName,
			Fn: func(e *Evaluator, args []uint64, loc ast.Loc) uint64 {
				wantArgs("I32."+config.EqMethodName, 2, args, loc)
				return e.Pgm.BoolAlloc(e.i32Arg(args[0], loc) == e.i32Arg(args[1], loc))
			},
		},
		config.CmpMethodName: {
			Name: "I32." + config.CmpMethodName,
			Fn: func(e *Evaluator, args []uint64, loc ast.Loc) uint64 {
				wantArgs("I32."+config.CmpMethodName, 2, args, loc)
				a, b := e.i32Arg(args[0], loc), e.i32Arg(args[1], loc)
				switch {
				case a < b:
					return e.orderingAlloc(-1, loc)
				case a > b:
					return e.orderingAlloc(1, loc)
				}
				return e.orderingAlloc(0, loc)
			},
		},
		config.ToStrMethodName: {
			Name: "I32." + config.ToStrMethodName,
			Fn: func(e *Evaluator, args []uint64, loc ast.Loc) uint64 {
				wantArgs("I32."+config.ToStrMethodName, 1, args, loc)
				return e.Heap.AllocateStr([]byte(strconv.FormatInt(int64(e.i32Arg(args[0], loc)), 10)))
			},
		},
	},

	config.StrTypeName:     strMethods(config.StrTypeName),
	config.StrViewTypeName: strMethods(config.StrViewTypeName),

	config.ArrayTypeName: {
		"new": {
			Name: "Array.new",
			Fn: func(e *Evaluator, args []uint64, loc ast.Loc) uint64 {
				wantArgs("Array.new", 2, args, loc)
				n := e.i32Arg(args[0], loc)
				if n < 0 {
					fatalf(loc, "Array.new with negative length %d", n)
				}
				array := e.Heap.Allocate(2 + int(n))
				e.Heap.Set(array, heap.ArrayTypeTag)
				e.Heap.Set(array+1, uint64(n))
				for i := uint64(0); i < uint64(n); i++ {
					e.Heap.Set(array+2+i, args[1])
				}
				return array
			},
		},
		"len": {
			Name: "Array.len",
			Fn: func(e *Evaluator, args []uint64, loc ast.Loc) uint64 {
				wantArgs("Array.len", 1, args, loc)
				return e.Heap.AllocateI32(int32(e.Heap.Get(e.arrayArg(args[0], loc) + 1)))
			},
		},
		"get": {
			Name: "Array.get",
			Fn: func(e *Evaluator, args []uint64, loc ast.Loc) uint64 {
				wantArgs("Array.get", 2, args, loc)
				array := e.arrayArg(args[0], loc)
				idx := e.arrayIndexArg(array, args[1], loc)
				return e.Heap.Get(array + 2 + idx)
			},
		},
		"set": {
			Name: "Array.set",
			Fn: func(e *Evaluator, args []uint64, loc ast.Loc) uint64 {
				wantArgs("Array.set", 3, args, loc)
				array := e.arrayArg(args[0], loc)
				idx := e.arrayIndexArg(array, args[1], loc)
				e.Heap.Set(array+2+idx, args[2])
				return args[2]
			},
		},
	},

	config.BoolTypeName: {
		config.EqMethodName:  boolLogic("Bool."+config.EqMethodName, func(a, b bool) bool { return a == b }),
		config.AndMethodName: boolLogic("Bool."+config.AndMethodName, func(a, b bool) bool { return a && b }),
		config.OrMethodName:  boolLogic("Bool."+config.OrMethodName, func(a, b bool) bool { return a || b }),
		config.ToStrMethodName: {
			Name: "Bool." + config.ToStrMethodName,
			Fn: func(e *Evaluator, args []uint64, loc ast.Loc) uint64 {
				wantArgs("Bool."+config.ToStrMethodName, 1, args, loc)
				return e.Heap.AllocateStr([]byte(e.nullaryName(args[0], loc)))
			},
		},
	},

	config.OrderingTypeName: {
		config.EqMethodName: {
			Name: "Ordering." + config.EqMethodName,
			Fn: func(e *Evaluator, args []uint64, loc ast.Loc) uint64 {
				wantArgs("Ordering."+config.EqMethodName, 2, args, loc)
				// Ordering values are interned; address equality decides.
				return e.Pgm.BoolAlloc(args[0] == args[1])
			},
		},
		config.ToStrMethodName: {
			Name: "Ordering." + config.ToStrMethodName,
			Fn: func(e *Evaluator, args []uint64, loc ast.Loc) uint64 {
				wantArgs("Ordering."+config.ToStrMethodName, 1, args, loc)
				return e.Heap.AllocateStr([]byte(e.nullaryName(args[0], loc)))
			},
		},
	},
}

func i32Arith(name string, op func(a, b int32) int32) *Builtin {
	return &Builtin{
		Name: name,
		Fn: func(e *Evaluator, args []uint64, loc ast.Loc) uint64 {
			wantArgs(name, 2, args, loc)
			return e.Heap.AllocateI32(op(e.i32Arg(args[0], loc), e.i32Arg(args[1], loc)))
		},
	}
}

func boolLogic(name string, op func(a, b bool) bool) *Builtin {
	return &Builtin{
		Name: name,
		Fn: func(e *Evaluator, args []uint64, loc ast.Loc) uint64 {
			wantArgs(name, 2, args, loc)
			return e.Pgm.BoolAlloc(op(e.requireBool(args[0], loc), e.requireBool(args[1], loc)))
		},
	}
}

// strMethods builds the shared Str/StrView method table. Concatenation and
// toStr always produce a Str; comparisons are byte-wise.
func strMethods(tyName string) map[string]*Builtin {
	return map[string]*Builtin{
		"len": {
			Name: tyName + ".len",
			Fn: func(e *Evaluator, args []uint64, loc ast.Loc) uint64 {
				wantArgs(tyName+".len", 1, args, loc)
				return e.Heap.AllocateI32(int32(len(e.stringBytes(args[0], loc))))
			},
		},
		"isEmpty": {
			Name: tyName + ".isEmpty",
			Fn: func(e *Evaluator, args []uint64, loc ast.Loc) uint64 {
				wantArgs(tyName+".isEmpty", 1, args, loc)
				return e.Pgm.BoolAlloc(len(e.stringBytes(args[0], loc)) == 0)
			},
		},
		config.AddMethodName: {
			Name: tyName + "." + config.AddMethodName,
			Fn: func(e *Evaluator, args []uint64, loc ast.Loc) uint64 {
				wantArgs(tyName+"."+config.AddMethodName, 2, args, loc)
				left := e.stringBytes(args[0], loc)
				right := e.stringBytes(args[1], loc)
				return e.Heap.AllocateStr(append(append(make([]byte, 0, len(left)+len(right)), left...), right...))
			},
		},
		config.EqMethodName: {
			Name: tyName + "." + config.EqMethodName,
			Fn: func(e *Evaluator, args []uint64, loc ast.Loc) uint64 {
				wantArgs(tyName+"."+config.EqMethodName, 2, args, loc)
				return e.Pgm.BoolAlloc(bytes.Equal(e.stringBytes(args[0], loc), e.stringBytes(args[1], loc)))
			},
		},
		config.CmpMethodName: {
			Name: tyName + "." + config.CmpMethodName,
			Fn: func(e *Evaluator, args []uint64, loc ast.Loc) uint64 {
				wantArgs(tyName+"."+config.CmpMethodName, 2, args, loc)
				return e.orderingAlloc(bytes.Compare(e.stringBytes(args[0], loc), e.stringBytes(args[1], loc)), loc)
			},
		},
		config.ToStrMethodName: {
			Name: tyName + "." + config.ToStrMethodName,
			Fn: func(e *Evaluator, args []uint64, loc ast.Loc) uint64 {
				wantArgs(tyName+"."+config.ToStrMethodName, 1, args, loc)
				if e.Heap.Get(args[0]) == heap.StrTypeTag {
					return args[0]
				}
				return e.Heap.AllocateStr(e.stringBytes(args[0], loc))
			},
		},
	}
}

func wantArgs(name string, n int, args []uint64, loc ast.Loc) {
	if len(args) != n {
		fatalf(loc, "%s takes %d arguments, called with %d", name, n, len(args))
	}
}

func (e *Evaluator) i32Arg(val uint64, loc ast.Loc) int32 {
	if e.Heap.Get(val) != heap.I32TypeTag {
		fatalf(loc, "expected an I32")
	}
	return e.Heap.I32(val)
}

func (e *Evaluator) arrayArg(val uint64, loc ast.Loc) uint64 {
	if e.Heap.Get(val) != heap.ArrayTypeTag {
		fatalf(loc, "expected an Array")
	}
	return val
}

func (e *Evaluator) arrayIndexArg(array, val uint64, loc ast.Loc) uint64 {
	idx := int64(e.i32Arg(val, loc))
	arrayLen := e.Heap.Get(array + 1)
	if idx < 0 || uint64(idx) >= arrayLen {
		fatalf(loc, "array index out of bounds, len = %d, index = %d", arrayLen, idx)
	}
	return uint64(idx)
}

// orderingAlloc maps a Go comparison result to the interned Ordering value.
func (e *Evaluator) orderingAlloc(ord int, loc ast.Loc) uint64 {
	orderingTyCon, ok := e.Pgm.TyCons[config.OrderingTypeName]
	if !ok {
		fatalf(loc, "comparison requires the Ordering type, which is not defined")
	}
	if len(orderingTyCon.ValueConstrs) != 3 {
		fatalf(loc, "the Ordering type must have exactly the constructors Less, Equal and Greater")
	}
	name := config.EqualCtorName
	switch {
	case ord < 0:
		name = config.LessCtorName
	case ord > 0:
		name = config.GreaterCtorName
	}
	tag, _ := orderingTyCon.ConstrWithTag(name, loc)
	alloc := e.Pgm.ConsByTag[tag].Alloc
	if alloc == 0 {
		fatalf(loc, "the Ordering constructors must be nullary")
	}
	return alloc
}

// nullaryName renders the constructor name of an interned nullary value.
func (e *Evaluator) nullaryName(val uint64, loc ast.Loc) string {
	con := &e.Pgm.ConsByTag[e.Heap.Get(val)]
	if con.Info.ConName == "" {
		fatalf(loc, "value has no constructor name")
	}
	return con.Info.ConName
}
