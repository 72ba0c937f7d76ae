package ast

// Loc is the source region an AST node was parsed from. Lines and columns
// are zero-based; diagnostics render them one-based.
type Loc struct {
	Module          string
	LineStart       uint32
	ColStart        uint32
	ByteOffsetStart uint32
	LineEnd         uint32
	ColEnd          uint32
	ByteOffsetEnd   uint32
}

// GetLoc makes every node embedding a Loc a LocProvider.
func (l Loc) GetLoc() Loc { return l }

// LocProvider is any AST node that can report its source location.
type LocProvider interface {
	GetLoc() Loc
}

// TopDecl is a top-level declaration: a type, a function, or an import.
type TopDecl interface {
	LocProvider
	topDeclNode()
}

// TypeDecl declares a sum or product type.
//
//	type Ordering { Less, Equal, Greater }
//	type CharIter { str: Str, idx: I32 }
type TypeDecl struct {
	Loc
	Name       string
	TypeParams []string
	Rhs        TypeDeclRhs
}

func (*TypeDecl) topDeclNode() {}

// TypeDeclRhs is the right-hand side of a type declaration.
type TypeDeclRhs interface {
	typeDeclRhsNode()
}

// SumRhs lists the value constructors of a sum type.
type SumRhs struct {
	Constrs []ConstructorDecl
}

// ProductRhs gives the single constructor of a product type. Builtin marker
// declarations (`type I32`) are products with empty fields.
type ProductRhs struct {
	Fields ConstructorFields
}

func (*SumRhs) typeDeclRhsNode()     {}
func (*ProductRhs) typeDeclRhsNode() {}

// ConstructorDecl is one variant of a sum type.
type ConstructorDecl struct {
	Name   string
	Fields ConstructorFields
}

// ConstructorFields describes the payload slots of a constructor. All of the
// fields are named or none of them are.
type ConstructorFields interface {
	fieldsNode()
}

type EmptyFields struct{}

type NamedFields struct {
	Fields []Named[Type]
}

type UnnamedFields struct {
	Types []Type
}

func (*EmptyFields) fieldsNode()   {}
func (*NamedFields) fieldsNode()   {}
func (*UnnamedFields) fieldsNode() {}

// FunDecl declares a top-level function (TypeName empty) or a function
// associated with a type (TypeName set).
//
//	fn main(input: Str): Str { ... }
//	fn Str.len(self): I32      -- primitive, no body
type FunDecl struct {
	Loc
	TypeName   string
	Name       string
	Self       bool
	Params     []Param
	ReturnType Type

	// Prim marks a builtin declaration: the body is absent and the function
	// is resolved against the builtin registry at bootstrap.
	Prim bool
	Body []Stmt
}

func (*FunDecl) topDeclNode() {}

// NumParams returns the parameter count including the implicit self slot.
func (f *FunDecl) NumParams() int {
	n := len(f.Params)
	if f.Self {
		n++
	}
	return n
}

type Param struct {
	Name string
	Type Type
}

// ImportDecl is accepted by the loader grammar but rejected before
// execution: the interpreter runs fully-merged programs.
type ImportDecl struct {
	Loc
	Path string
}

func (*ImportDecl) topDeclNode() {}

// Type is a type expression. Only the shapes that affect runtime semantics
// are kept; the interpreter ignores everything but record shapes.
type Type interface {
	LocProvider
	typeNode()
}

// NamedType is a possibly-applied type constructor, e.g. `I32`, `Vec[Str]`.
type NamedType struct {
	Loc
	Name string
	Args []Type
}

// RecordType is an anonymous record type, e.g. `(name: Str, age: I32)`.
type RecordType struct {
	Loc
	Fields []Named[Type]
}

func (*NamedType) typeNode()  {}
func (*RecordType) typeNode() {}

// Named is a possibly-named thing: a record field, a call argument, or a
// field pattern. Name is empty in unnamed positions.
type Named[T any] struct {
	Name string
	Node T
}
