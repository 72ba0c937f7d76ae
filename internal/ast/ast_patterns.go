package ast

// Pat is a pattern node.
type Pat interface {
	LocProvider
	patNode()
}

// VarPat always matches and binds the value.
type VarPat struct {
	Loc
	Name string
}

// IgnorePat is `_`: always matches, binds nothing.
type IgnorePat struct {
	Loc
}

// ConstrPat matches a constructor: `Option.Some(x)` or, for product types,
// `Pair(a, b)` with Constr empty.
type ConstrPat struct {
	Loc
	Type   string
	Constr string
	Fields []Named[Pat]
}

// RecordPat matches a record by field names: `(a = x, b = y)`.
type RecordPat struct {
	Loc
	Fields []Named[Pat]
}

// StrPat matches a Str or StrView with exactly the given bytes.
type StrPat struct {
	Loc
	Value string
}

// StrPfxPat is `"pfx" rest`: matches a string starting with the prefix and
// binds the rest as a StrView over the tail.
type StrPfxPat struct {
	Loc
	Prefix string
	Var    string
}

// OrPat tries the left pattern, then the right. Branches are expected to
// bind the same names; the matcher does not verify it.
type OrPat struct {
	Loc
	Left  Pat
	Right Pat
}

func (*VarPat) patNode()    {}
func (*IgnorePat) patNode() {}
func (*ConstrPat) patNode() {}
func (*RecordPat) patNode() {}
func (*StrPat) patNode()    {}
func (*StrPfxPat) patNode() {}
func (*OrPat) patNode()     {}
