package evaluator_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/mikesamuel/fir/internal/evaluator"
	"github.com/mikesamuel/fir/internal/loader"
)

// TestEndToEnd runs the testdata archives: each one holds a program
// manifest, an optional input, the expected output, and optionally the
// rendering of the value main returns.
func TestEndToEnd(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("no testdata archives")
	}

	for _, file := range files {
		t.Run(strings.TrimSuffix(filepath.Base(file), ".txt"), func(t *testing.T) {
			archive, err := txtar.ParseFile(file)
			if err != nil {
				t.Fatal(err)
			}

			var program, input, output, result string
			var hasResult bool
			for _, f := range archive.Files {
				switch f.Name {
				case "program":
					program = string(f.Data)
				case "input":
					input = strings.TrimSuffix(string(f.Data), "\n")
				case "output":
					output = string(f.Data)
				case "result":
					result = strings.TrimSpace(string(f.Data))
					hasResult = true
				default:
					t.Fatalf("unknown archive file %q", f.Name)
				}
			}
			if program == "" {
				t.Fatal("archive has no program")
			}

			decls, err := loader.Load(file, []byte(program))
			if err != nil {
				t.Fatalf("loading program: %v", err)
			}

			var out bytes.Buffer
			e, err := evaluator.New(&out, decls)
			if err != nil {
				t.Fatalf("building program: %v", err)
			}
			res, err := e.RunMain(input)
			if err != nil {
				t.Fatalf("running main: %v", err)
			}

			if got := out.String(); got != output {
				t.Errorf("output = %q, want %q", got, output)
			}
			if hasResult {
				if got := e.RenderValue(res); got != result {
					t.Errorf("result = %s, want %s", got, result)
				}
			}
		})
	}
}
