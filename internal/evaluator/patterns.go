package evaluator

import (
	"bytes"

	"github.com/mikesamuel/fir/internal/ast"
	"github.com/mikesamuel/fir/internal/heap"
)

// tryBindPat matches a pattern against a value. On success it returns the
// variables the pattern binds; on a plain mismatch it returns ok=false.
// Structural errors (a non-string matched against a string pattern) are
// fatal.
//
// Matching can allocate: string prefix patterns bind the tail as a fresh
// StrView.
func (e *Evaluator) tryBindPat(pattern ast.Pat, value uint64) (map[string]uint64, bool) {
	switch pattern := pattern.(type) {
	case *ast.VarPat:
		return map[string]uint64{pattern.Name: value}, true

	case *ast.IgnorePat:
		return map[string]uint64{}, true

	case *ast.ConstrPat:
		valueTag := e.Heap.Get(value)
		tyCon := e.tyCon(pattern.Type, pattern.GetLoc())
		firstTag, lastTag := tyCon.TagRange()

		if valueTag < firstTag || valueTag > lastTag {
			return nil, false
		}

		var constrIdx uint64
		if pattern.Constr != "" {
			tag, _ := tyCon.ConstrWithTag(pattern.Constr, pattern.GetLoc())
			constrIdx = tag - tyCon.TypeTag
		} else if firstTag != lastTag {
			return nil, false
		}

		if valueTag != tyCon.TypeTag+constrIdx {
			return nil, false
		}

		return e.tryBindFieldPats(e.Pgm.TagFields(valueTag), pattern.Fields, value, pattern.GetLoc())

	case *ast.RecordPat:
		valueTag := e.Heap.Get(value)
		return e.tryBindFieldPats(e.Pgm.TagFields(valueTag), pattern.Fields, value, pattern.GetLoc())

	case *ast.StrPat:
		if bytes.Equal(e.stringBytes(value, pattern.GetLoc()), []byte(pattern.Value)) {
			return map[string]uint64{}, true
		}
		return nil, false

	case *ast.StrPfxPat:
		valueBytes := e.stringBytes(value, pattern.GetLoc())
		if !bytes.HasPrefix(valueBytes, []byte(pattern.Prefix)) {
			return nil, false
		}
		pfxLen := uint64(len(pattern.Prefix))
		restLen := uint64(len(valueBytes)) - pfxLen
		var rest uint64
		if e.Heap.Get(value) == heap.StrTypeTag {
			rest = e.Heap.AllocateStrView(value, pfxLen, restLen)
		} else {
			rest = e.Heap.AllocateStrViewFromStrView(value, pfxLen, restLen)
		}
		return map[string]uint64{pattern.Var: rest}, true

	case *ast.OrPat:
		if binds, ok := e.tryBindPat(pattern.Left, value); ok {
			return binds, true
		}
		return e.tryBindPat(pattern.Right, value)
	}

	fatalf(pattern.GetLoc(), "unknown pattern node %T", pattern)
	return nil, false
}

// tryBindFieldPats matches field sub-patterns against the payload slots of
// a value. Named layouts match patterns to slots by name; unnamed layouts
// positionally, with the arity required to match exactly.
func (e *Evaluator) tryBindFieldPats(conFields *Fields, fieldPats []ast.Named[ast.Pat], value uint64, loc ast.Loc) (map[string]uint64, bool) {
	binds := make(map[string]uint64)

	if conFields.IsNamed() {
		if len(conFields.Names) != len(fieldPats) {
			fatalf(loc, "pattern has %d fields but the value has %d", len(fieldPats), len(conFields.Names))
		}
		for fieldIdx, fieldName := range conFields.Names {
			var fieldPat *ast.Named[ast.Pat]
			for i := range fieldPats {
				if fieldPats[i].Name == fieldName {
					fieldPat = &fieldPats[i]
					break
				}
			}
			if fieldPat == nil {
				fatalf(loc, "pattern does not match field %q", fieldName)
			}
			fieldBinds, ok := e.tryBindPat(fieldPat.Node, e.Heap.Get(value+1+uint64(fieldIdx)))
			if !ok {
				return nil, false
			}
			for name, val := range fieldBinds {
				binds[name] = val
			}
		}
	} else {
		if conFields.Arity != len(fieldPats) {
			fatalf(loc, "pattern has %d fields but the value has %d", len(fieldPats), conFields.Arity)
		}
		for fieldPatIdx, fieldPat := range fieldPats {
			if fieldPat.Name != "" {
				fatalf(loc, "named field pattern for unnamed fields")
			}
			fieldBinds, ok := e.tryBindPat(fieldPat.Node, e.Heap.Get(value+1+uint64(fieldPatIdx)))
			if !ok {
				return nil, false
			}
			for name, val := range fieldBinds {
				binds[name] = val
			}
		}
	}

	return binds, true
}

// stringBytes reads the bytes of a Str or StrView; anything else matched
// against a string pattern is a structural error.
func (e *Evaluator) stringBytes(value uint64, loc ast.Loc) []byte {
	switch e.Heap.Get(value) {
	case heap.StrTypeTag:
		return e.Heap.StrBytes(value)
	case heap.StrViewTypeTag:
		return e.Heap.StrViewBytes(value)
	}
	fatalf(loc, "string pattern matched against a non-string value")
	return nil
}
