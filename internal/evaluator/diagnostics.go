package evaluator

import (
	"fmt"
	"strings"

	"github.com/mikesamuel/fir/internal/ast"
	"github.com/mikesamuel/fir/internal/heap"
)

// Diag is a fatal interpreter diagnostic: a runtime type error, a bootstrap
// consistency error, or an unimplemented construct. The program being
// interpreted has no way to catch one; it unwinds to the Run boundary.
type Diag struct {
	Loc ast.Loc
	Msg string
}

func (d *Diag) Error() string {
	if loc := locString(d.Loc); loc != "" {
		return loc + ": " + d.Msg
	}
	return d.Msg
}

// locString renders a location one-based as "module:line:col". Zero-valued
// locations (synthetic call sites, bootstrap errors) render empty.
func locString(loc ast.Loc) string {
	if loc == (ast.Loc{}) {
		return ""
	}
	if loc.Module == "" {
		return fmt.Sprintf("%d:%d", loc.LineStart+1, loc.ColStart+1)
	}
	return fmt.Sprintf("%s:%d:%d", loc.Module, loc.LineStart+1, loc.ColStart+1)
}

// fatalf raises a diagnostic. Execution never resumes past it.
func fatalf(loc ast.Loc, format string, args ...interface{}) uint64 {
	panic(&Diag{Loc: loc, Msg: fmt.Sprintf(format, args...)})
}

// bootFatalf raises a bootstrap (program construction) diagnostic.
func bootFatalf(format string, args ...interface{}) {
	panic(&Diag{Msg: fmt.Sprintf(format, args...)})
}

// recoverDiag converts a Diag panic into the error return of an exported
// entry point. Any other panic keeps unwinding.
func recoverDiag(err *error) {
	if r := recover(); r != nil {
		d, ok := r.(*Diag)
		if !ok {
			panic(r)
		}
		*err = d
	}
}

// RenderValue renders a boxed value for diagnostics and the CLI. Primitives
// render as literals, everything else as constructor applications with the
// payload rendered recursively.
func (e *Evaluator) RenderValue(obj uint64) string {
	var sb strings.Builder
	e.renderValue(&sb, obj, 0)
	return sb.String()
}

func (e *Evaluator) renderValue(sb *strings.Builder, obj uint64, depth int) {
	if depth > 32 {
		sb.WriteString("...")
		return
	}

	switch tag := e.Heap.Get(obj); tag {
	case heap.I32TypeTag:
		fmt.Fprintf(sb, "%d", e.Heap.I32(obj))
		return
	case heap.StrTypeTag:
		fmt.Fprintf(sb, "%q", e.Heap.StrBytes(obj))
		return
	case heap.StrViewTypeTag:
		fmt.Fprintf(sb, "%q", e.Heap.StrViewBytes(obj))
		return
	case heap.ArrayTypeTag:
		sb.WriteString("[")
		n := e.Heap.Get(obj + 1)
		for i := uint64(0); i < n; i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.renderValue(sb, e.Heap.Get(obj+2+i), depth+1)
		}
		sb.WriteString("]")
		return
	case heap.ConstrTypeTag:
		fmt.Fprintf(sb, "<constructor %d>", e.Heap.Get(obj+1))
		return
	case heap.TopFunTypeTag:
		fmt.Fprintf(sb, "<function %d>", e.Heap.Get(obj+1))
		return
	case heap.AssocFunTypeTag:
		fmt.Fprintf(sb, "<method %d.%d>", e.Heap.Get(obj+1), e.Heap.Get(obj+2))
		return
	}

	tag := e.Heap.Get(obj)
	con := &e.Pgm.ConsByTag[tag]
	switch {
	case con.Info.Record:
	case con.Info.ConName != "":
		sb.WriteString(con.Info.TyName)
		sb.WriteString(".")
		sb.WriteString(con.Info.ConName)
	default:
		sb.WriteString(con.Info.TyName)
	}

	if con.Fields.IsEmpty() && !con.Info.Record {
		return
	}

	sb.WriteString("(")
	if con.Fields.IsNamed() {
		for i, name := range con.Fields.Names {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(name)
			sb.WriteString(" = ")
			e.renderValue(sb, e.Heap.Get(obj+1+uint64(i)), depth+1)
		}
	} else {
		for i := 0; i < con.Fields.Arity; i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.renderValue(sb, e.Heap.Get(obj+1+uint64(i)), depth+1)
		}
	}
	sb.WriteString(")")
}
