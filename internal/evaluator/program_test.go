package evaluator_test

import (
	"bytes"
	"testing"

	"github.com/mikesamuel/fir/internal/ast"
	"github.com/mikesamuel/fir/internal/evaluator"
	"github.com/mikesamuel/fir/internal/heap"
	"github.com/mikesamuel/fir/internal/loader"
)

const mainStub = `
- fn:
    name: main
    params: [{name: s, type: Str}]
    body: [{return: {var: s}}]
`

func TestBuiltinTypesReuseReservedTags(t *testing.T) {
	e, _ := newEvaluator(t, mainStub)

	tests := []struct {
		name string
		tag  uint64
	}{
		{"I32", heap.I32TypeTag},
		{"Str", heap.StrTypeTag},
		{"StrView", heap.StrViewTypeTag},
		{"Array", heap.ArrayTypeTag},
	}
	for _, tt := range tests {
		tyCon, ok := e.Pgm.TyCons[tt.name]
		if !ok {
			t.Fatalf("builtin type %s not registered", tt.name)
		}
		if tyCon.TypeTag != tt.tag {
			t.Errorf("%s tag = %d, want %d", tt.name, tyCon.TypeTag, tt.tag)
		}
	}
}

func TestTypeTagsContiguousInDeclarationOrder(t *testing.T) {
	e, _ := newEvaluator(t, `
- type: {name: Shape, sum: [{name: Circle, unnamed: [I32]}, {name: Square, unnamed: [I32]}, Point]}
- type: {name: Pair, unnamed: [A, B]}
`+mainStub)

	// The prelude declares Bool then Ordering, so user tags start right at
	// the first free tag.
	boolTy := e.Pgm.TyCons["Bool"]
	if boolTy.TypeTag != heap.FirstTypeTag {
		t.Fatalf("Bool tag = %d, want %d", boolTy.TypeTag, heap.FirstTypeTag)
	}
	orderingTy := e.Pgm.TyCons["Ordering"]
	if orderingTy.TypeTag != boolTy.TypeTag+2 {
		t.Fatalf("Ordering tag = %d, want %d", orderingTy.TypeTag, boolTy.TypeTag+2)
	}
	shapeTy := e.Pgm.TyCons["Shape"]
	if shapeTy.TypeTag != orderingTy.TypeTag+3 {
		t.Fatalf("Shape tag = %d, want %d", shapeTy.TypeTag, orderingTy.TypeTag+3)
	}
	pairTy := e.Pgm.TyCons["Pair"]
	if pairTy.TypeTag != shapeTy.TypeTag+3 {
		t.Fatalf("Pair tag = %d, want %d", pairTy.TypeTag, shapeTy.TypeTag+3)
	}

	// Ranges are contiguous, disjoint, and outside the reserved range.
	seen := make(map[uint64]string)
	for name, tyCon := range e.Pgm.TyCons {
		first, last := tyCon.TagRange()
		if len(tyCon.ValueConstrs) > 0 && first >= heap.FirstTypeTag {
			if last != first+uint64(len(tyCon.ValueConstrs))-1 {
				t.Errorf("%s tag range [%d, %d] does not match %d constructors", name, first, last, len(tyCon.ValueConstrs))
			}
			for tag := first; tag <= last; tag++ {
				if other, dup := seen[tag]; dup {
					t.Errorf("tag %d assigned to both %s and %s", tag, other, name)
				}
				seen[tag] = name
			}
		}
	}

	// Every live tag resolves in the dense constructor table.
	for tag := range e.Pgm.ConsByTag {
		_ = e.Pgm.TagFields(uint64(tag))
	}
}

func TestRecordShapesDeduplicated(t *testing.T) {
	e, _ := newEvaluator(t, `
- fn:
    name: main
    params: [{name: s, type: Str}]
    body:
      - let: {pat: r1, expr: {record: [{name: a, expr: {int: 1}}, {name: b, expr: {int: 2}}]}}
      - let: {pat: r2, expr: {record: [{name: b, expr: {int: 4}}, {name: a, expr: {int: 3}}]}}
      - let: {pat: u, expr: {record: [{int: 1}, {int: 2}]}}
      - {return: {var: s}}
`)

	// One named shape (field order does not matter) and one unnamed shape.
	if len(e.Pgm.RecordTyTags) != 2 {
		t.Fatalf("record shapes = %d, want 2", len(e.Pgm.RecordTyTags))
	}
	namedTag, ok := e.Pgm.RecordTyTags["(a,b)"]
	if !ok {
		t.Fatalf("named shape not registered: %v", e.Pgm.RecordTyTags)
	}
	fields := e.Pgm.TagFields(namedTag)
	if len(fields.Names) != 2 || fields.Names[0] != "a" || fields.Names[1] != "b" {
		t.Fatalf("record storage order = %v, want sorted [a b]", fields.Names)
	}
}

func TestNullaryConstructorsInterned(t *testing.T) {
	e, _ := newEvaluator(t, mainStub)

	orderingTy := e.Pgm.TyCons["Ordering"]
	first, last := orderingTy.TagRange()
	for tag := first; tag <= last; tag++ {
		if e.Pgm.ConsByTag[tag].Alloc == 0 {
			t.Errorf("nullary constructor at tag %d has no canonical allocation", tag)
		}
	}

	if e.Pgm.TrueAlloc == 0 || e.Pgm.FalseAlloc == 0 || e.Pgm.TrueAlloc == e.Pgm.FalseAlloc {
		t.Fatalf("Bool allocs = %d, %d", e.Pgm.FalseAlloc, e.Pgm.TrueAlloc)
	}
	if tag := e.Heap.Get(e.Pgm.TrueAlloc); tag != e.Pgm.TyCons["Bool"].TypeTag+1 {
		t.Fatalf("True tag = %d", tag)
	}
}

func TestBootstrapErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		wantErr  string
	}{
		{
			"missing Bool",
			`
- type: {name: Ordering, sum: [Less, Equal, Greater]}
` + mainStub,
			"Bool type is not defined",
		},
		{
			"wrong Bool constructors",
			`
- type: {name: Bool, sum: [True, False]}
` + mainStub,
			"False and True",
		},
		{
			"non-nullary Bool",
			`
- type: {name: Bool, sum: [{name: False, unnamed: [I32]}, True]}
` + mainStub,
			"must be nullary",
		},
		{
			"duplicate top-level function",
			prelude + mainStub + mainStub,
			"declared more than once",
		},
		{
			"duplicate type",
			prelude + `
- type: {name: Opt, sum: [None]}
- type: {name: Opt, sum: [None]}
` + mainStub,
			"declared more than once",
		},
		{
			"unknown primitive",
			prelude + `
- fn: {name: readEverything, prim: true, params: [{name: s, type: Str}]}
` + mainStub,
			"unknown primitive",
		},
		{
			"associated function on undefined type",
			prelude + `
- fn:
    name: poke
    type: Gone
    self: true
    params: []
    body: [{return: {int: 0}}]
` + mainStub,
			"undefined type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decls, err := loader.Load("test.fir.yaml", []byte(tt.manifest))
			if err != nil {
				t.Fatalf("loading manifest: %v", err)
			}
			var out bytes.Buffer
			if _, err := evaluator.New(&out, decls); err == nil {
				t.Fatal("expected a bootstrap error")
			} else {
				wantErrContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestImportsRejected(t *testing.T) {
	var out bytes.Buffer
	_, err := evaluator.New(&out, []ast.TopDecl{&ast.ImportDecl{Path: "prelude"}})
	if err == nil {
		t.Fatal("expected imports to be rejected")
	}
	wantErrContains(t, err, "import")
}

func TestMissingMain(t *testing.T) {
	e, _ := newEvaluator(t, `
- fn:
    name: helper
    params: []
    body: [{return: {int: 0}}]
`)
	if _, err := e.RunMain(""); err == nil {
		t.Fatal("expected an error for a missing main")
	} else {
		wantErrContains(t, err, "main function not defined")
	}
}

func TestAssociatedTablesSharedAcrossVariantTags(t *testing.T) {
	e, _ := newEvaluator(t, `
- fn:
    name: describe
    type: Ordering
    self: true
    params: []
    body: [{return: {str: "ordering"}}]
`+mainStub)

	orderingTy := e.Pgm.TyCons["Ordering"]
	first, last := orderingTy.TagRange()
	for tag := first; tag <= last; tag++ {
		if _, ok := e.Pgm.AssociatedFuns[tag]["describe"]; !ok {
			t.Errorf("tag %d is missing the source-declared method", tag)
		}
		if _, ok := e.Pgm.AssociatedFuns[tag]["__eq"]; !ok {
			t.Errorf("tag %d is missing the builtin method", tag)
		}
	}
}
