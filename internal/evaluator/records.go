package evaluator

import (
	"sort"
	"strings"

	"github.com/mikesamuel/fir/internal/ast"
)

// RecordShape identifies an anonymous record layout: an arity for unnamed
// records, a sorted field-name list for named ones. Two record literals or
// patterns with the same shape share a type tag, wherever they appear.
type RecordShape struct {
	Arity  int
	Fields []string // sorted; nil for unnamed shapes
}

// Key is the canonical map key for the shape.
func (s RecordShape) Key() string {
	if s.Fields == nil {
		return "(" + strings.Repeat("_,", s.Arity) + ")"
	}
	return "(" + strings.Join(s.Fields, ",") + ")"
}

// shapeOfNamed computes the shape of a record literal, pattern, or type.
// All of the fields are named or none of them are.
func shapeOfNamed[T any](things []ast.Named[T]) RecordShape {
	if len(things) == 0 || things[0].Name == "" {
		return RecordShape{Arity: len(things)}
	}
	fields := make([]string, 0, len(things))
	seen := make(map[string]bool, len(things))
	for _, thing := range things {
		if thing.Name == "" || seen[thing.Name] {
			bootFatalf("record shape with duplicate or mixed field names")
		}
		seen[thing.Name] = true
		fields = append(fields, thing.Name)
	}
	sort.Strings(fields)
	return RecordShape{Arity: len(fields), Fields: fields}
}

// recordCollector walks the whole program once and gathers every distinct
// record shape, in first-appearance order so tag assignment is
// deterministic.
type recordCollector struct {
	seen   map[string]bool
	shapes []RecordShape
}

func collectRecords(pgm []ast.TopDecl) []RecordShape {
	c := &recordCollector{seen: make(map[string]bool)}
	for _, decl := range pgm {
		switch decl := decl.(type) {
		case *ast.TypeDecl:
			c.visitTypeDecl(decl)
		case *ast.FunDecl:
			c.visitFunDecl(decl)
		case *ast.ImportDecl:
			bootFatalf("import declaration in interpreted program")
		}
	}
	return c.shapes
}

func (c *recordCollector) add(shape RecordShape) {
	key := shape.Key()
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	c.shapes = append(c.shapes, shape)
}

func (c *recordCollector) visitTypeDecl(decl *ast.TypeDecl) {
	switch rhs := decl.Rhs.(type) {
	case *ast.SumRhs:
		for _, constr := range rhs.Constrs {
			c.visitFields(constr.Fields)
		}
	case *ast.ProductRhs:
		c.visitFields(rhs.Fields)
	}
}

func (c *recordCollector) visitFunDecl(decl *ast.FunDecl) {
	for _, param := range decl.Params {
		c.visitType(param.Type)
	}
	if decl.ReturnType != nil {
		c.visitType(decl.ReturnType)
	}
	for _, stmt := range decl.Body {
		c.visitStmt(stmt)
	}
}

func (c *recordCollector) visitFields(fields ast.ConstructorFields) {
	switch fields := fields.(type) {
	case *ast.EmptyFields:
	case *ast.NamedFields:
		for _, field := range fields.Fields {
			c.visitType(field.Node)
		}
	case *ast.UnnamedFields:
		for _, ty := range fields.Types {
			c.visitType(ty)
		}
	}
}

func (c *recordCollector) visitType(ty ast.Type) {
	switch ty := ty.(type) {
	case *ast.NamedType:
		for _, arg := range ty.Args {
			c.visitType(arg)
		}
	case *ast.RecordType:
		for _, field := range ty.Fields {
			c.visitType(field.Node)
		}
		c.add(shapeOfNamed(ty.Fields))
	}
}

func (c *recordCollector) visitStmt(stmt ast.Stmt) {
	switch stmt := stmt.(type) {
	case *ast.LetStmt:
		c.visitPat(stmt.Lhs)
		if stmt.Type != nil {
			c.visitType(stmt.Type)
		}
		c.visitExpr(stmt.Rhs)
	case *ast.AssignStmt:
		c.visitExpr(stmt.Lhs)
		c.visitExpr(stmt.Rhs)
	case *ast.ExprStmt:
		c.visitExpr(stmt.Expr)
	case *ast.WhileStmt:
		c.visitExpr(stmt.Cond)
		for _, s := range stmt.Body {
			c.visitStmt(s)
		}
	case *ast.ForStmt:
		if stmt.Type != nil {
			c.visitType(stmt.Type)
		}
		c.visitExpr(stmt.Expr)
		for _, s := range stmt.Body {
			c.visitStmt(s)
		}
	}
}

func (c *recordCollector) visitPat(pat ast.Pat) {
	switch pat := pat.(type) {
	case *ast.VarPat, *ast.IgnorePat, *ast.StrPat, *ast.StrPfxPat:
	case *ast.ConstrPat:
		for _, field := range pat.Fields {
			c.visitPat(field.Node)
		}
	case *ast.RecordPat:
		for _, field := range pat.Fields {
			c.visitPat(field.Node)
		}
		c.add(shapeOfNamed(pat.Fields))
	case *ast.OrPat:
		c.visitPat(pat.Left)
		c.visitPat(pat.Right)
	}
}

func (c *recordCollector) visitExpr(expr ast.Expr) {
	switch expr := expr.(type) {
	case *ast.VarExpr, *ast.UpperVarExpr, *ast.IntExpr, *ast.SelfExpr, *ast.ConstrSelectExpr:
	case *ast.StringExpr:
		for _, part := range expr.Parts {
			if part, ok := part.(ast.ExprPart); ok {
				c.visitExpr(part.Expr)
			}
		}
	case *ast.FieldSelectExpr:
		c.visitExpr(expr.Object)
	case *ast.CallExpr:
		c.visitExpr(expr.Fun)
		for _, arg := range expr.Args {
			c.visitExpr(arg.Node)
		}
	case *ast.RangeExpr:
		c.visitExpr(expr.From)
		c.visitExpr(expr.To)
	case *ast.BinOpExpr:
		c.visitExpr(expr.Left)
		c.visitExpr(expr.Right)
	case *ast.UnOpExpr:
		c.visitExpr(expr.Expr)
	case *ast.ArrayIndexExpr:
		c.visitExpr(expr.Array)
		c.visitExpr(expr.Index)
	case *ast.RecordExpr:
		for _, field := range expr.Fields {
			c.visitExpr(field.Node)
		}
		c.add(shapeOfNamed(expr.Fields))
	case *ast.ReturnExpr:
		c.visitExpr(expr.Expr)
	case *ast.MatchExpr:
		c.visitExpr(expr.Scrutinee)
		for _, alt := range expr.Alts {
			c.visitPat(alt.Pattern)
			if alt.Guard != nil {
				c.visitExpr(alt.Guard)
			}
			for _, s := range alt.Rhs {
				c.visitStmt(s)
			}
		}
	case *ast.IfExpr:
		for _, branch := range expr.Branches {
			c.visitExpr(branch.Cond)
			for _, s := range branch.Body {
				c.visitStmt(s)
			}
		}
		for _, s := range expr.Else {
			c.visitStmt(s)
		}
	}
}
