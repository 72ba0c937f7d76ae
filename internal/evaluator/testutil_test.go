package evaluator_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mikesamuel/fir/internal/ast"
	"github.com/mikesamuel/fir/internal/evaluator"
	"github.com/mikesamuel/fir/internal/heap"
	"github.com/mikesamuel/fir/internal/loader"
)

// prelude is the minimal set of declarations the bootstrap programs carry:
// the Bool and Ordering types the evaluator depends on.
const prelude = `
- type: {name: Bool, sum: [False, True]}
- type: {name: Ordering, sum: [Less, Equal, Greater]}
`

func mustLoad(t *testing.T, manifest string) []ast.TopDecl {
	t.Helper()
	decls, err := loader.Load("test.fir.yaml", []byte(prelude+manifest))
	if err != nil {
		t.Fatalf("loading manifest: %v", err)
	}
	return decls
}

func newEvaluator(t *testing.T, manifest string) (*evaluator.Evaluator, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	e, err := evaluator.New(&out, mustLoad(t, manifest))
	if err != nil {
		t.Fatalf("building program: %v", err)
	}
	return e, &out
}

// run loads the prelude plus the manifest and invokes main with the input.
func run(t *testing.T, manifest, input string) (uint64, *evaluator.Evaluator, string) {
	t.Helper()
	e, out := newEvaluator(t, manifest)
	result, err := e.RunMain(input)
	if err != nil {
		t.Fatalf("running main: %v", err)
	}
	return result, e, out.String()
}

// runErr runs a program expected to abort and returns the diagnostic.
func runErr(t *testing.T, manifest, input string) error {
	t.Helper()
	decls, err := loader.Load("test.fir.yaml", []byte(prelude+manifest))
	if err != nil {
		t.Fatalf("loading manifest: %v", err)
	}
	var out bytes.Buffer
	_, err = evaluator.Run(&out, decls, input)
	if err == nil {
		t.Fatal("expected the program to abort")
	}
	return err
}

func wantErrContains(t *testing.T, err error, want string) {
	t.Helper()
	if !strings.Contains(err.Error(), want) {
		t.Fatalf("diagnostic %q does not contain %q", err, want)
	}
}

func wantI32(t *testing.T, e *evaluator.Evaluator, addr uint64, want int32) {
	t.Helper()
	if tag := e.Heap.Get(addr); tag != heap.I32TypeTag {
		t.Fatalf("result tag = %d, want I32", tag)
	}
	if got := e.Heap.I32(addr); got != want {
		t.Fatalf("result = %d, want %d", got, want)
	}
}

func wantStr(t *testing.T, e *evaluator.Evaluator, addr uint64, want string) {
	t.Helper()
	var got []byte
	switch e.Heap.Get(addr) {
	case heap.StrTypeTag:
		got = e.Heap.StrBytes(addr)
	case heap.StrViewTypeTag:
		got = e.Heap.StrViewBytes(addr)
	default:
		t.Fatalf("result tag = %d, want a string", e.Heap.Get(addr))
	}
	if string(got) != want {
		t.Fatalf("result = %q, want %q", got, want)
	}
}

func wantBool(t *testing.T, e *evaluator.Evaluator, addr uint64, want bool) {
	t.Helper()
	if addr != e.Pgm.BoolAlloc(want) {
		t.Fatalf("result = %s, want %v", e.RenderValue(addr), want)
	}
}
