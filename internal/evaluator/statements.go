package evaluator

import (
	"github.com/mikesamuel/fir/internal/ast"
	"github.com/mikesamuel/fir/internal/config"
	"github.com/mikesamuel/fir/internal/heap"
)

// exec runs a statement sequence, threading the running value: the block's
// value is the last statement's value, or 0 for an empty block. A Ret
// propagates immediately.
func (e *Evaluator) exec(env locals, stmts []ast.Stmt) ControlFlow {
	var blockVal uint64

	for _, stmt := range stmts {
		switch stmt := stmt.(type) {
		case *ast.LetStmt:
			cf := e.eval(env, stmt.Rhs)
			if cf.ret {
				return cf
			}
			binds, ok := e.tryBindPat(stmt.Lhs, cf.val)
			if !ok {
				fatalf(stmt.GetLoc(), "pattern binding failed")
			}
			for name, val := range binds {
				env[name] = val
			}
			blockVal = cf.val

		case *ast.AssignStmt:
			cf := e.eval(env, stmt.Rhs)
			if cf.ret {
				return cf
			}
			cf = e.assign(env, stmt.Lhs, cf.val, stmt.Op, stmt.GetLoc())
			if cf.ret {
				return cf
			}
			blockVal = cf.val

		case *ast.ExprStmt:
			cf := e.eval(env, stmt.Expr)
			if cf.ret {
				return cf
			}
			blockVal = cf.val

		case *ast.WhileStmt:
			for {
				cf := e.eval(env, stmt.Cond)
				if cf.ret {
					return cf
				}
				if !e.requireBool(cf.val, stmt.Cond.GetLoc()) {
					break
				}
				if cf := e.exec(env, stmt.Body); cf.ret {
					return cf
				}
			}
			blockVal = 0

		case *ast.ForStmt:
			if cf := e.execFor(env, stmt); cf.ret {
				return cf
			}
			blockVal = 0
		}
	}

	return flowVal(blockVal)
}

// execFor iterates a variable over an integer range. The binding is removed
// on every exit path.
func (e *Evaluator) execFor(env locals, stmt *ast.ForStmt) ControlFlow {
	rangeExpr, ok := stmt.Expr.(*ast.RangeExpr)
	if !ok {
		fatalf(stmt.GetLoc(), "for loops only support a range expression in the head")
	}

	from, cf := e.evalRangeBound(env, rangeExpr.From)
	if cf.ret {
		return cf
	}
	to, cf := e.evalRangeBound(env, rangeExpr.To)
	if cf.ret {
		return cf
	}
	if rangeExpr.Inclusive {
		// Guard to+1 overflow by widening; the bounds are i32.
		to++
	}

	for i := from; i < to; i++ {
		env[stmt.Var] = e.Heap.AllocateI32(int32(i))
		if cf := e.exec(env, stmt.Body); cf.ret {
			delete(env, stmt.Var)
			return cf
		}
	}

	delete(env, stmt.Var)
	return flowVal(0)
}

func (e *Evaluator) evalRangeBound(env locals, expr ast.Expr) (int64, ControlFlow) {
	cf := e.eval(env, expr)
	if cf.ret {
		return 0, cf
	}
	if e.Heap.Get(cf.val) != heap.I32TypeTag {
		fatalf(expr.GetLoc(), "range bound is not an I32")
	}
	return int64(e.Heap.I32(cf.val)), ControlFlow{}
}

// assign stores into a variable or an object field. `+=` and `-=` read the
// old field value and dispatch __add/__sub; on plain variables they are not
// implemented.
func (e *Evaluator) assign(env locals, lhs ast.Expr, val uint64, op ast.AssignOp, loc ast.Loc) ControlFlow {
	switch lhs := lhs.(type) {
	case *ast.VarExpr:
		if op != ast.AssignOpEq {
			fatalf(loc, "%s on a variable is not implemented", op)
		}
		if _, ok := env[lhs.Name]; !ok {
			fatalf(loc, "assignment to undeclared variable %s", lhs.Name)
		}
		env[lhs.Name] = val

	case *ast.FieldSelectExpr:
		cf := e.eval(env, lhs.Object)
		if cf.ret {
			return cf
		}
		object := cf.val
		fields := e.Pgm.TagFields(e.Heap.Get(object))
		fieldIdx := fields.FindNamedFieldIdx(lhs.Field, loc)

		newVal := val
		switch op {
		case ast.AssignOpPlusEq:
			fieldVal := e.Heap.Get(object + 1 + fieldIdx)
			newVal = e.callMethod(fieldVal, config.AddMethodName, []uint64{val}, loc)
		case ast.AssignOpMinusEq:
			fieldVal := e.Heap.Get(object + 1 + fieldIdx)
			newVal = e.callMethod(fieldVal, config.SubMethodName, []uint64{val}, loc)
		}
		e.Heap.Set(object+1+fieldIdx, newVal)

	default:
		fatalf(loc, "unsupported assignment target")
	}

	return flowVal(val)
}
