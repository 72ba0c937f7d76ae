package config

// Version is the current fir interpreter version.
// Set at build time via -ldflags "-X github.com/mikesamuel/fir/internal/config.Version=..."
var Version = "0.1.0"

// ManifestFileExt is the extension of program manifests produced by the
// bootstrap front end.
const ManifestFileExt = ".fir.yaml"

// HasManifestExt returns true if the path ends with the manifest extension.
func HasManifestExt(path string) bool {
	return len(path) >= len(ManifestFileExt) && path[len(path)-len(ManifestFileExt):] == ManifestFileExt
}

// EntryFunName is the top-level function the interpreter invokes with the
// program input.
const EntryFunName = "main"

// Method-protocol names dispatched by the evaluator for operators and
// string interpolation.
const (
	AddMethodName   = "__add"
	SubMethodName   = "__sub"
	MulMethodName   = "__mul"
	AndMethodName   = "__and"
	OrMethodName    = "__or"
	EqMethodName    = "__eq"
	CmpMethodName   = "__cmp"
	ToStrMethodName = "toStr"
)

// Built-in type names. I32, Str, StrView and Array reuse the reserved low
// tags; Bool and Ordering are declared in source but their constructor names
// are fixed.
const (
	I32TypeName      = "I32"
	StrTypeName      = "Str"
	StrViewTypeName  = "StrView"
	ArrayTypeName    = "Array"
	BoolTypeName     = "Bool"
	OrderingTypeName = "Ordering"

	FalseCtorName   = "False"
	TrueCtorName    = "True"
	LessCtorName    = "Less"
	EqualCtorName   = "Equal"
	GreaterCtorName = "Greater"
)

// Built-in top-level function names.
const (
	PrintStrFuncName = "printStr"
	PanicFuncName    = "panic"
)
