package evaluator

import (
	"github.com/mikesamuel/fir/internal/ast"
	"github.com/mikesamuel/fir/internal/config"
	"github.com/mikesamuel/fir/internal/heap"
)

// Fields describes the payload slots of a constructor: either a positional
// arity, or the field names in their canonical storage order. Storage order
// for declared constructors is declaration order; for records it is sorted
// field-name order.
type Fields struct {
	Arity int
	Names []string // nil for unnamed layouts; never empty otherwise
}

func (f *Fields) IsNamed() bool { return f.Names != nil }

// IsEmpty reports a nullary layout. Nullary constructors have a single
// canonical allocation shared across the program.
func (f *Fields) IsEmpty() bool { return f.Names == nil && f.Arity == 0 }

func (f *Fields) NumFields() int {
	if f.Names != nil {
		return len(f.Names)
	}
	return f.Arity
}

// FindNamedFieldIdx returns the storage slot of a named field.
func (f *Fields) FindNamedFieldIdx(name string, loc ast.Loc) uint64 {
	if f.Names == nil {
		fatalf(loc, "field %q selected on a value with unnamed fields", name)
	}
	for idx, fieldName := range f.Names {
		if fieldName == name {
			return uint64(idx)
		}
	}
	fatalf(loc, "value does not have a field named %q", name)
	return 0
}

// ConInfo is display information for a tag: the declaring type and
// constructor, or the record shape.
type ConInfo struct {
	TyName  string
	ConName string // empty for product types, builtins, and records
	Record  bool
	Shape   RecordShape
}

// Con is the per-tag constructor table entry.
type Con struct {
	Info   ConInfo
	Fields Fields

	// Alloc is the canonical allocation for nullary constructors, 0
	// otherwise (address 0 is never a live value).
	Alloc uint64
}

// ValCon is one value constructor of a type, e.g. `Some` or `None`.
type ValCon struct {
	Name   string // empty in product types
	Fields Fields
}

// TyCon is a declared type and its contiguous tag range.
type TyCon struct {
	ValueConstrs []ValCon
	TypeTag      uint64
}

// TagRange returns the first and last tag (inclusive) values of this type
// use. Builtin types with no constructors and product types span one tag.
func (t *TyCon) TagRange() (uint64, uint64) {
	n := uint64(len(t.ValueConstrs))
	if n == 0 {
		n = 1
	}
	return t.TypeTag, t.TypeTag + n - 1
}

// ConstrWithTag returns the tag and field layout of a named constructor.
func (t *TyCon) ConstrWithTag(name string, loc ast.Loc) (uint64, *Fields) {
	for idx := range t.ValueConstrs {
		if t.ValueConstrs[idx].Name == name {
			return t.TypeTag + uint64(idx), &t.ValueConstrs[idx].Fields
		}
	}
	fatalf(loc, "type does not have a constructor named %q", name)
	return 0, nil
}

type FunKind int

const (
	FunSource FunKind = iota
	FunBuiltin
)

// Fun is a callable: a declared function body or a builtin handle.
type Fun struct {
	Idx     uint64
	Kind    FunKind
	Source  *ast.FunDecl // FunSource
	Builtin *Builtin     // FunBuiltin
}

// Program holds the tables the evaluator dispatches through. It is built
// once, before execution, and read-only afterwards.
type Program struct {
	// TyCons maps type names to their constructors and tag range. Records
	// are not in here; they have no names.
	TyCons map[string]*TyCon

	// ConsByTag is the dense constructor table, indexed by tag.
	ConsByTag []Con

	// RecordTyTags maps record shape keys to their tags.
	RecordTyTags map[string]uint64

	// AssociatedFuns is indexed by tag, then method name. Every variant tag
	// of a sum type shares its type's table.
	AssociatedFuns []map[string]*Fun

	// TopLevelFuns maps function names to functions; TopLevelFunsByIdx is
	// the same set indexed by Fun.Idx.
	TopLevelFuns      map[string]*Fun
	TopLevelFunsByIdx []*Fun

	// Canonical allocations of the Bool variants.
	FalseAlloc uint64
	TrueAlloc  uint64
}

// builtinTypeTags are the declared type names that reuse reserved low tags
// instead of getting a fresh one.
var builtinTypeTags = map[string]uint64{
	config.I32TypeName:     heap.I32TypeTag,
	config.StrTypeName:     heap.StrTypeTag,
	config.StrViewTypeName: heap.StrViewTypeTag,
	config.ArrayTypeName:   heap.ArrayTypeTag,
}

// NewProgram walks the declarations once and builds the dispatch tables:
// type tags in declaration order starting at heap.FirstTypeTag, the dense
// constructor table with interned nullary allocations, record shape tags,
// and the function tables with builtin method tables installed underneath
// source-declared associated functions.
func NewProgram(decls []ast.TopDecl, h *heap.Heap) *Program {
	p := &Program{
		TyCons:       make(map[string]*TyCon),
		RecordTyTags: make(map[string]uint64),
		TopLevelFuns: make(map[string]*Fun),
	}

	// Reserved low tags: the four builtin types and the three closure
	// representations.
	for _, name := range []string{
		config.I32TypeName, config.StrTypeName, config.StrViewTypeName, config.ArrayTypeName,
	} {
		p.TyCons[name] = &TyCon{TypeTag: builtinTypeTags[name]}
		p.ConsByTag = append(p.ConsByTag, Con{Info: ConInfo{TyName: name}})
	}
	for _, name := range []string{"#Constr", "#TopFun", "#AssocFun"} {
		p.ConsByTag = append(p.ConsByTag, Con{Info: ConInfo{TyName: name}})
	}

	p.collectTypes(decls, h)
	p.collectRecordShapes(decls)
	p.collectFuns(decls)
	p.installAssociatedFuns(decls)
	p.bootstrapBool()

	return p
}

func (p *Program) collectTypes(decls []ast.TopDecl, h *heap.Heap) {
	nextTypeTag := heap.FirstTypeTag

	for _, decl := range decls {
		tyDecl, ok := decl.(*ast.TypeDecl)
		if !ok {
			if _, ok := decl.(*ast.ImportDecl); ok {
				bootFatalf("import declaration in interpreted program")
			}
			continue
		}

		if _, reserved := builtinTypeTags[tyDecl.Name]; reserved {
			// A builtin marker declaration; the type is already registered
			// on its reserved tag and must not declare constructors.
			if rhs, ok := tyDecl.Rhs.(*ast.ProductRhs); !ok {
				bootFatalf("builtin type %s declared with constructors", tyDecl.Name)
			} else if _, empty := rhs.Fields.(*ast.EmptyFields); !empty {
				bootFatalf("builtin type %s declared with fields", tyDecl.Name)
			}
			continue
		}

		if _, dup := p.TyCons[tyDecl.Name]; dup {
			bootFatalf("type %s declared more than once", tyDecl.Name)
		}

		var constrs []ValCon
		switch rhs := tyDecl.Rhs.(type) {
		case *ast.SumRhs:
			for _, constr := range rhs.Constrs {
				constrs = append(constrs, ValCon{Name: constr.Name, Fields: fieldsOf(constr.Fields)})
			}
			if len(constrs) == 0 {
				bootFatalf("sum type %s has no constructors", tyDecl.Name)
			}
		case *ast.ProductRhs:
			constrs = []ValCon{{Fields: fieldsOf(rhs.Fields)}}
		}

		tyCon := &TyCon{ValueConstrs: constrs, TypeTag: nextTypeTag}
		p.TyCons[tyDecl.Name] = tyCon

		for _, constr := range constrs {
			tag := uint64(len(p.ConsByTag))
			var alloc uint64
			if constr.Fields.IsEmpty() {
				alloc = h.AllocateTag(tag)
			}
			p.ConsByTag = append(p.ConsByTag, Con{
				Info:   ConInfo{TyName: tyDecl.Name, ConName: constr.Name},
				Fields: constr.Fields,
				Alloc:  alloc,
			})
		}
		nextTypeTag += uint64(len(constrs))
	}
}

func (p *Program) collectRecordShapes(decls []ast.TopDecl) {
	for _, shape := range collectRecords(decls) {
		tag := uint64(len(p.ConsByTag))
		p.ConsByTag = append(p.ConsByTag, Con{
			Info:   ConInfo{Record: true, Shape: shape},
			Fields: fieldsOfShape(shape),
		})
		p.RecordTyTags[shape.Key()] = tag
	}
}

func (p *Program) collectFuns(decls []ast.TopDecl) {
	for _, decl := range decls {
		funDecl, ok := decl.(*ast.FunDecl)
		if !ok || funDecl.TypeName != "" {
			continue
		}
		if _, dup := p.TopLevelFuns[funDecl.Name]; dup {
			bootFatalf("top-level function %s declared more than once", funDecl.Name)
		}
		fun := &Fun{Idx: uint64(len(p.TopLevelFunsByIdx))}
		if funDecl.Prim {
			builtin, ok := topLevelBuiltins[funDecl.Name]
			if !ok {
				bootFatalf("unknown primitive function %s", funDecl.Name)
			}
			fun.Kind = FunBuiltin
			fun.Builtin = builtin
		} else {
			fun.Kind = FunSource
			fun.Source = funDecl
		}
		p.TopLevelFuns[funDecl.Name] = fun
		p.TopLevelFunsByIdx = append(p.TopLevelFunsByIdx, fun)
	}
}

// installAssociatedFuns builds the per-tag method tables: builtin method
// tables for the primitive types, Bool and Ordering first, then the
// source-declared associated functions on top (source wins on a name
// collision). Sum types install the same table at every variant tag.
func (p *Program) installAssociatedFuns(decls []ast.TopDecl) {
	p.AssociatedFuns = make([]map[string]*Fun, len(p.ConsByTag))

	// Source-declared associated functions, grouped by receiver type.
	byType := make(map[string]map[string]*Fun)
	for _, decl := range decls {
		funDecl, ok := decl.(*ast.FunDecl)
		if !ok || funDecl.TypeName == "" {
			continue
		}
		funs := byType[funDecl.TypeName]
		if funs == nil {
			funs = make(map[string]*Fun)
			byType[funDecl.TypeName] = funs
		}
		if _, dup := funs[funDecl.Name]; dup {
			bootFatalf("associated function %s.%s declared more than once", funDecl.TypeName, funDecl.Name)
		}
		fun := &Fun{Idx: uint64(len(funs))}
		if funDecl.Prim {
			builtin := builtinMethods[funDecl.TypeName][funDecl.Name]
			if builtin == nil {
				bootFatalf("unknown primitive function %s.%s", funDecl.TypeName, funDecl.Name)
			}
			fun.Kind = FunBuiltin
			fun.Builtin = builtin
		} else {
			fun.Kind = FunSource
			fun.Source = funDecl
		}
		funs[funDecl.Name] = fun
	}

	for tyName := range byType {
		if _, ok := p.TyCons[tyName]; !ok {
			bootFatalf("associated function on undefined type %s", tyName)
		}
	}

	for tyName, tyCon := range p.TyCons {
		table := make(map[string]*Fun)
		for name, builtin := range builtinMethods[tyName] {
			table[name] = &Fun{Kind: FunBuiltin, Builtin: builtin}
		}
		for name, fun := range byType[tyName] {
			table[name] = fun
		}
		if len(table) == 0 {
			continue
		}
		first, last := tyCon.TagRange()
		for tag := first; tag <= last; tag++ {
			p.AssociatedFuns[tag] = table
		}
	}

	for tag := range p.AssociatedFuns {
		if p.AssociatedFuns[tag] == nil {
			p.AssociatedFuns[tag] = map[string]*Fun{}
		}
	}
}

// bootstrapBool checks the Bool declaration the evaluator depends on and
// caches the canonical variant allocations.
func (p *Program) bootstrapBool() {
	boolTyCon, ok := p.TyCons[config.BoolTypeName]
	if !ok {
		bootFatalf("the Bool type is not defined")
	}
	if len(boolTyCon.ValueConstrs) != 2 ||
		boolTyCon.ValueConstrs[0].Name != config.FalseCtorName ||
		boolTyCon.ValueConstrs[1].Name != config.TrueCtorName {
		bootFatalf("the Bool type must have exactly the constructors False and True")
	}
	p.FalseAlloc = p.ConsByTag[boolTyCon.TypeTag].Alloc
	p.TrueAlloc = p.ConsByTag[boolTyCon.TypeTag+1].Alloc
	if p.FalseAlloc == 0 || p.TrueAlloc == 0 {
		bootFatalf("the Bool constructors must be nullary")
	}
}

func fieldsOf(fields ast.ConstructorFields) Fields {
	switch fields := fields.(type) {
	case *ast.NamedFields:
		names := make([]string, len(fields.Fields))
		for i, field := range fields.Fields {
			names[i] = field.Name
		}
		return Fields{Arity: len(names), Names: names}
	case *ast.UnnamedFields:
		return Fields{Arity: len(fields.Types)}
	default:
		return Fields{}
	}
}

func fieldsOfShape(shape RecordShape) Fields {
	if shape.Fields == nil {
		return Fields{Arity: shape.Arity}
	}
	return Fields{Arity: shape.Arity, Names: shape.Fields}
}

// TagFields returns the field layout of a tag.
func (p *Program) TagFields(tag uint64) *Fields {
	return &p.ConsByTag[tag].Fields
}

// BoolAlloc returns the canonical allocation for a Go bool.
func (p *Program) BoolAlloc(b bool) uint64 {
	if b {
		return p.TrueAlloc
	}
	return p.FalseAlloc
}
