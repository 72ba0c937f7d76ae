package evaluator

import (
	"github.com/mikesamuel/fir/internal/ast"
	"github.com/mikesamuel/fir/internal/config"
	"github.com/mikesamuel/fir/internal/heap"
)

func (e *Evaluator) eval(env locals, expr ast.Expr) ControlFlow {
	switch expr := expr.(type) {
	case *ast.VarExpr:
		if val, ok := env[expr.Name]; ok {
			return flowVal(val)
		}
		if topFun, ok := e.Pgm.TopLevelFuns[expr.Name]; ok {
			return flowVal(e.Heap.AllocateTopFun(topFun.Idx))
		}
		fatalf(expr.GetLoc(), "unbound variable: %s", expr.Name)

	case *ast.UpperVarExpr:
		// A type name used as a value is the constructor closure of a
		// product type.
		tyCon := e.tyCon(expr.Name, expr.GetLoc())
		first, last := tyCon.TagRange()
		if first != last {
			fatalf(expr.GetLoc(), "type %s is not a product type", expr.Name)
		}
		return flowVal(e.Heap.AllocateConstr(tyCon.TypeTag))

	case *ast.FieldSelectExpr:
		cf := e.eval(env, expr.Object)
		if cf.ret {
			return cf
		}
		object := cf.val
		fields := e.Pgm.TagFields(e.Heap.Get(object))
		fieldIdx := fields.FindNamedFieldIdx(expr.Field, expr.GetLoc())
		return flowVal(e.Heap.Get(object + 1 + fieldIdx))

	case *ast.ConstrSelectExpr:
		tyCon := e.tyCon(expr.Type, expr.GetLoc())
		tag, fields := tyCon.ConstrWithTag(expr.Constr, expr.GetLoc())
		if fields.IsEmpty() {
			return flowVal(e.Pgm.ConsByTag[tag].Alloc)
		}
		return flowVal(e.Heap.AllocateConstr(tag))

	case *ast.CallExpr:
		return e.evalCall(env, expr)

	case *ast.IntExpr:
		return flowVal(e.Heap.AllocateI32(expr.Value))

	case *ast.StringExpr:
		var bytes []byte
		for _, part := range expr.Parts {
			switch part := part.(type) {
			case ast.StrPart:
				bytes = append(bytes, part.Str...)
			case ast.ExprPart:
				cf := e.eval(env, part.Expr)
				if cf.ret {
					return cf
				}
				strVal := e.callMethod(cf.val, config.ToStrMethodName, nil, expr.GetLoc())
				if e.Heap.Get(strVal) != heap.StrTypeTag {
					fatalf(expr.GetLoc(), "%s of an interpolated expression must return a Str", config.ToStrMethodName)
				}
				bytes = append(bytes, e.Heap.StrBytes(strVal)...)
			}
		}
		return flowVal(e.Heap.AllocateStr(bytes))

	case *ast.SelfExpr:
		val, ok := env["self"]
		if !ok {
			fatalf(expr.GetLoc(), "self outside an associated function")
		}
		return flowVal(val)

	case *ast.BinOpExpr:
		return e.evalBinOp(env, expr)

	case *ast.UnOpExpr:
		cf := e.eval(env, expr.Expr)
		if cf.ret {
			return cf
		}
		// The only unary operator is `not`.
		switch cf.val {
		case e.Pgm.TrueAlloc:
			return flowVal(e.Pgm.FalseAlloc)
		case e.Pgm.FalseAlloc:
			return flowVal(e.Pgm.TrueAlloc)
		}
		fatalf(expr.GetLoc(), "operand of not is not a Bool")

	case *ast.ArrayIndexExpr:
		cf := e.eval(env, expr.Array)
		if cf.ret {
			return cf
		}
		array := cf.val
		if e.Heap.Get(array) != heap.ArrayTypeTag {
			fatalf(expr.GetLoc(), "indexing a non-array value")
		}
		cf = e.eval(env, expr.Index)
		if cf.ret {
			return cf
		}
		if e.Heap.Get(cf.val) != heap.I32TypeTag {
			fatalf(expr.GetLoc(), "array index is not an I32")
		}
		index := int64(e.Heap.I32(cf.val))
		arrayLen := e.Heap.Get(array + 1)
		if index < 0 || uint64(index) >= arrayLen {
			fatalf(expr.GetLoc(), "array index out of bounds, len = %d, index = %d", arrayLen, index)
		}
		return flowVal(e.Heap.Get(array + 2 + uint64(index)))

	case *ast.RecordExpr:
		shape := shapeOfNamed(expr.Fields)
		tag, ok := e.Pgm.RecordTyTags[shape.Key()]
		if !ok {
			fatalf(expr.GetLoc(), "record shape %s was not collected", shape.Key())
		}
		return e.allocateObjectFromTag(env, tag, expr.Fields, expr.GetLoc())

	case *ast.RangeExpr:
		fatalf(expr.GetLoc(), "range expressions are only supported in for loop heads")

	case *ast.ReturnExpr:
		cf := e.eval(env, expr.Expr)
		if cf.ret {
			return cf
		}
		return flowRet(cf.val)

	case *ast.MatchExpr:
		cf := e.eval(env, expr.Scrutinee)
		if cf.ret {
			return cf
		}
		scrut := cf.val
		for _, alt := range expr.Alts {
			if alt.Guard != nil {
				fatalf(expr.GetLoc(), "match guards are not supported")
			}
			if binds, ok := e.tryBindPat(alt.Pattern, scrut); ok {
				for name, val := range binds {
					env[name] = val
				}
				return e.exec(env, alt.Rhs)
			}
		}
		fatalf(expr.GetLoc(), "non-exhaustive pattern match")

	case *ast.IfExpr:
		for _, branch := range expr.Branches {
			cf := e.eval(env, branch.Cond)
			if cf.ret {
				return cf
			}
			if cond := e.requireBool(cf.val, branch.Cond.GetLoc()); cond {
				return e.exec(env, branch.Body)
			}
		}
		if expr.Else != nil {
			return e.exec(env, expr.Else)
		}
		// Placeholder; an if used for its value always has an else branch.
		return flowVal(0)
	}

	fatalf(ast.Loc{}, "unknown expression node %T", expr)
	return ControlFlow{}
}

// evalCall avoids creating closure objects for the common callee shapes:
// direct top-level calls, `Type.Constr(...)`, `Type.fn(...)`, method calls
// on values, and product-type construction.
func (e *Evaluator) evalCall(env locals, expr *ast.CallExpr) ControlFlow {
	var funVal uint64

	switch fun := expr.Fun.(type) {
	case *ast.VarExpr:
		if val, ok := env[fun.Name]; ok {
			funVal = val
			break
		}
		topFun, ok := e.Pgm.TopLevelFuns[fun.Name]
		if !ok {
			fatalf(fun.GetLoc(), "unbound variable: %s", fun.Name)
		}
		argVals, cf := e.evalArgs(env, expr.Args)
		if cf.ret {
			return cf
		}
		return flowVal(e.call(topFun, argVals, expr.GetLoc()))

	case *ast.FieldSelectExpr:
		if upper, ok := fun.Object.(*ast.UpperVarExpr); ok {
			tyCon := e.tyCon(upper.Name, upper.GetLoc())

			// `Type.Constr(...)` allocates; `Type.fn(...)` is a static call
			// to an associated function, without a receiver.
			if isUpperName(fun.Field) {
				return e.allocateObjectFromNames(env, upper.Name, fun.Field, expr.Args, expr.GetLoc())
			}

			assocFun, ok := e.Pgm.AssociatedFuns[tyCon.TypeTag][fun.Field]
			if !ok {
				fatalf(expr.GetLoc(), "type %s does not have an associated function %s", upper.Name, fun.Field)
			}
			argVals, cf := e.evalArgs(env, expr.Args)
			if cf.ret {
				return cf
			}
			return flowVal(e.call(assocFun, argVals, expr.GetLoc()))
		}

		cf := e.eval(env, fun.Object)
		if cf.ret {
			return cf
		}
		object := cf.val
		objectTag := e.Heap.Get(object)
		method, ok := e.Pgm.AssociatedFuns[objectTag][fun.Field]
		if !ok {
			fatalf(expr.GetLoc(), "object with tag %d does not have a method %q", objectTag, fun.Field)
		}
		argVals, cf := e.evalArgs(env, expr.Args)
		if cf.ret {
			return cf
		}
		return flowVal(e.call(method, append([]uint64{object}, argVals...), expr.GetLoc()))

	case *ast.UpperVarExpr:
		return e.allocateObjectFromNames(env, fun.Name, "", expr.Args, expr.GetLoc())

	default:
		cf := e.eval(env, expr.Fun)
		if cf.ret {
			return cf
		}
		funVal = cf.val
	}

	switch e.Heap.Get(funVal) {
	case heap.ConstrTypeTag:
		return e.allocateObjectFromTag(env, e.Heap.Get(funVal+1), expr.Args, expr.GetLoc())

	case heap.TopFunTypeTag:
		topFun := e.Pgm.TopLevelFunsByIdx[e.Heap.Get(funVal+1)]
		argVals, cf := e.evalArgs(env, expr.Args)
		if cf.ret {
			return cf
		}
		return flowVal(e.call(topFun, argVals, expr.GetLoc()))

	case heap.AssocFunTypeTag:
		fatalf(expr.GetLoc(), "calling an associated function closure is not supported")

	default:
		fatalf(expr.GetLoc(), "function evaluated to a non-callable value")
	}
	return ControlFlow{}
}

// evalArgs evaluates call arguments left to right. Named arguments are only
// meaningful for named-field construction, which goes through
// allocateObjectFromTag instead.
func (e *Evaluator) evalArgs(env locals, args []ast.Named[ast.Expr]) ([]uint64, ControlFlow) {
	argVals := make([]uint64, 0, len(args))
	for _, arg := range args {
		if arg.Name != "" {
			fatalf(arg.Node.GetLoc(), "named argument in a function call")
		}
		cf := e.eval(env, arg.Node)
		if cf.ret {
			return nil, cf
		}
		argVals = append(argVals, cf.val)
	}
	return argVals, ControlFlow{}
}

func (e *Evaluator) evalBinOp(env locals, expr *ast.BinOpExpr) ControlFlow {
	cf := e.eval(env, expr.Left)
	if cf.ret {
		return cf
	}
	left := cf.val
	cf = e.eval(env, expr.Right)
	if cf.ret {
		return cf
	}
	right := cf.val

	loc := expr.GetLoc()
	var methodName string
	switch expr.Op {
	case ast.BinOpEqual:
		return flowVal(e.Pgm.BoolAlloc(e.eq(left, right, loc)))
	case ast.BinOpNotEqual:
		return flowVal(e.Pgm.BoolAlloc(!e.eq(left, right, loc)))
	case ast.BinOpLt:
		return flowVal(e.Pgm.BoolAlloc(e.cmp(left, right, loc) < 0))
	case ast.BinOpGt:
		return flowVal(e.Pgm.BoolAlloc(e.cmp(left, right, loc) > 0))
	case ast.BinOpLtEq:
		return flowVal(e.Pgm.BoolAlloc(e.cmp(left, right, loc) <= 0))
	case ast.BinOpGtEq:
		return flowVal(e.Pgm.BoolAlloc(e.cmp(left, right, loc) >= 0))
	case ast.BinOpAdd:
		methodName = config.AddMethodName
	case ast.BinOpSubtract:
		methodName = config.SubMethodName
	case ast.BinOpMultiply:
		methodName = config.MulMethodName
	case ast.BinOpAnd:
		methodName = config.AndMethodName
	case ast.BinOpOr:
		methodName = config.OrMethodName
	}

	return flowVal(e.callMethod(left, methodName, []uint64{right}, loc))
}

// allocateObjectFromNames resolves a type and optional constructor name to a
// tag and allocates.
func (e *Evaluator) allocateObjectFromNames(env locals, tyName, constrName string, args []ast.Named[ast.Expr], loc ast.Loc) ControlFlow {
	tyCon := e.tyCon(tyName, loc)

	var tag uint64
	if constrName != "" {
		tag, _ = tyCon.ConstrWithTag(constrName, loc)
	} else {
		if len(tyCon.ValueConstrs) != 1 {
			fatalf(loc, "type %s is not a product type", tyName)
		}
		tag = tyCon.TypeTag
	}

	return e.allocateObjectFromTag(env, tag, args, loc)
}

// allocateObjectFromTag evaluates constructor arguments in program order and
// stores them in the tag's storage order. Nullary constructors reuse their
// canonical allocation.
func (e *Evaluator) allocateObjectFromTag(env locals, constrTag uint64, args []ast.Named[ast.Expr], loc ast.Loc) ControlFlow {
	con := &e.Pgm.ConsByTag[constrTag]
	fields := &con.Fields

	if fields.IsEmpty() {
		if len(args) != 0 {
			fatalf(loc, "constructor takes no fields, called with %d", len(args))
		}
		if con.Alloc != 0 {
			return flowVal(con.Alloc)
		}
		return flowVal(e.Heap.AllocateTag(constrTag))
	}

	argVals := make([]uint64, 0, len(args))
	if fields.IsNamed() {
		if len(fields.Names) != len(args) {
			fatalf(loc, "constructor takes %d fields, called with %d", len(fields.Names), len(args))
		}
		namedVals := make(map[string]uint64, len(args))
		for _, arg := range args {
			if arg.Name == "" {
				fatalf(loc, "missing argument name for a named field")
			}
			if _, dup := namedVals[arg.Name]; dup {
				fatalf(loc, "field %q given more than once", arg.Name)
			}
			cf := e.eval(env, arg.Node)
			if cf.ret {
				return cf
			}
			namedVals[arg.Name] = cf.val
		}
		for _, name := range fields.Names {
			val, ok := namedVals[name]
			if !ok {
				fatalf(loc, "missing field %q", name)
			}
			argVals = append(argVals, val)
		}
	} else {
		if fields.Arity != len(args) {
			fatalf(loc, "constructor takes %d fields, called with %d", fields.Arity, len(args))
		}
		for _, arg := range args {
			if arg.Name != "" {
				fatalf(loc, "named argument for unnamed fields")
			}
			cf := e.eval(env, arg.Node)
			if cf.ret {
				return cf
			}
			argVals = append(argVals, cf.val)
		}
	}

	object := e.Heap.Allocate(1 + len(argVals))
	e.Heap.Set(object, constrTag)
	for argIdx, argVal := range argVals {
		e.Heap.Set(object+1+uint64(argIdx), argVal)
	}
	return flowVal(object)
}

func (e *Evaluator) tyCon(name string, loc ast.Loc) *TyCon {
	tyCon, ok := e.Pgm.TyCons[name]
	if !ok {
		fatalf(loc, "undefined type %s", name)
	}
	return tyCon
}

// requireBool asserts the value is one of the Bool singletons.
func (e *Evaluator) requireBool(val uint64, loc ast.Loc) bool {
	switch val {
	case e.Pgm.TrueAlloc:
		return true
	case e.Pgm.FalseAlloc:
		return false
	}
	fatalf(loc, "condition is not a Bool")
	return false
}

func isUpperName(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}
