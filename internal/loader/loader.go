// Package loader reads program manifests: YAML documents the bootstrap
// front end writes for fully parsed programs. Decoding fills in source
// locations from the manifest itself, so runtime diagnostics point into the
// file the user has.
package loader

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/mikesamuel/fir/internal/ast"
)

// LoadFile reads and decodes a program manifest.
func LoadFile(path string) ([]ast.TopDecl, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(path, data)
}

// Load decodes a manifest. The module name is used in every decoded
// location.
func Load(module string, data []byte) (decls []ast.TopDecl, err error) {
	defer func() {
		if r := recover(); r != nil {
			d, ok := r.(*decodeError)
			if !ok {
				panic(r)
			}
			err = d
		}
	}()

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%s: %v", module, err)
	}

	d := &decoder{module: module}
	if len(root.Content) == 0 {
		return nil, nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.SequenceNode {
		d.errf(doc, "program manifest must be a sequence of declarations")
	}
	for _, node := range doc.Content {
		decls = append(decls, d.decodeTopDecl(node))
	}
	return decls, nil
}

type decodeError struct {
	msg string
}

func (e *decodeError) Error() string { return e.msg }

type decoder struct {
	module string
}

func (d *decoder) errf(n *yaml.Node, format string, args ...interface{}) {
	prefix := d.module
	if n != nil {
		prefix = fmt.Sprintf("%s:%d:%d", d.module, n.Line, n.Column)
	}
	panic(&decodeError{msg: prefix + ": " + fmt.Sprintf(format, args...)})
}

func (d *decoder) loc(n *yaml.Node) ast.Loc {
	return ast.Loc{
		Module:    d.module,
		LineStart: uint32(n.Line - 1),
		ColStart:  uint32(n.Column - 1),
		LineEnd:   uint32(n.Line - 1),
		ColEnd:    uint32(n.Column - 1),
	}
}

// mapEntry is one key/value pair of a mapping node.
type mapEntry struct {
	key   string
	value *yaml.Node
}

func (d *decoder) mapping(n *yaml.Node, what string) []mapEntry {
	if n.Kind != yaml.MappingNode {
		d.errf(n, "%s must be a mapping", what)
	}
	entries := make([]mapEntry, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i]
		if key.Kind != yaml.ScalarNode {
			d.errf(key, "%s keys must be scalars", what)
		}
		entries = append(entries, mapEntry{key: key.Value, value: n.Content[i+1]})
	}
	return entries
}

// fields splits a mapping into the allowed keys, erroring on unknown ones.
func (d *decoder) fields(n *yaml.Node, what string, allowed ...string) map[string]*yaml.Node {
	out := make(map[string]*yaml.Node)
	for _, entry := range d.mapping(n, what) {
		ok := false
		for _, name := range allowed {
			if entry.key == name {
				ok = true
				break
			}
		}
		if !ok {
			d.errf(entry.value, "unknown %s key %q", what, entry.key)
		}
		if _, dup := out[entry.key]; dup {
			d.errf(entry.value, "duplicate %s key %q", what, entry.key)
		}
		out[entry.key] = entry.value
	}
	return out
}

func (d *decoder) scalar(n *yaml.Node, what string) string {
	if n.Kind != yaml.ScalarNode {
		d.errf(n, "%s must be a scalar", what)
	}
	return n.Value
}

func (d *decoder) sequence(n *yaml.Node, what string) []*yaml.Node {
	if n.Kind != yaml.SequenceNode {
		d.errf(n, "%s must be a sequence", what)
	}
	return n.Content
}

func (d *decoder) boolScalar(n *yaml.Node, what string) bool {
	switch d.scalar(n, what) {
	case "true":
		return true
	case "false":
		return false
	}
	d.errf(n, "%s must be true or false", what)
	return false
}

func (d *decoder) decodeTopDecl(n *yaml.Node) ast.TopDecl {
	entries := d.mapping(n, "declaration")
	if len(entries) != 1 {
		d.errf(n, "declaration must have exactly one of the keys type, fn")
	}
	switch entries[0].key {
	case "type":
		return d.decodeTypeDecl(entries[0].value)
	case "fn":
		return d.decodeFunDecl(entries[0].value)
	case "import":
		// The interpreter runs fully-merged programs.
		d.errf(entries[0].value, "import declarations are not supported")
	default:
		d.errf(n, "unknown declaration kind %q", entries[0].key)
	}
	return nil
}

func (d *decoder) decodeTypeDecl(n *yaml.Node) *ast.TypeDecl {
	fields := d.fields(n, "type declaration", "name", "params", "sum", "named", "unnamed")
	nameNode, ok := fields["name"]
	if !ok {
		d.errf(n, "type declaration must have a name")
	}
	decl := &ast.TypeDecl{Loc: d.loc(n), Name: d.scalar(nameNode, "type name")}
	if params, ok := fields["params"]; ok {
		for _, p := range d.sequence(params, "type params") {
			decl.TypeParams = append(decl.TypeParams, d.scalar(p, "type param"))
		}
	}

	switch {
	case fields["sum"] != nil:
		if fields["named"] != nil || fields["unnamed"] != nil {
			d.errf(n, "type declaration cannot be both a sum and a product")
		}
		var constrs []ast.ConstructorDecl
		for _, c := range d.sequence(fields["sum"], "constructors") {
			constrs = append(constrs, d.decodeConstructorDecl(c))
		}
		decl.Rhs = &ast.SumRhs{Constrs: constrs}
	case fields["named"] != nil:
		decl.Rhs = &ast.ProductRhs{Fields: d.decodeNamedFields(fields["named"])}
	case fields["unnamed"] != nil:
		decl.Rhs = &ast.ProductRhs{Fields: d.decodeUnnamedFields(fields["unnamed"])}
	default:
		decl.Rhs = &ast.ProductRhs{Fields: &ast.EmptyFields{}}
	}
	return decl
}

func (d *decoder) decodeConstructorDecl(n *yaml.Node) ast.ConstructorDecl {
	if n.Kind == yaml.ScalarNode {
		return ast.ConstructorDecl{Name: n.Value, Fields: &ast.EmptyFields{}}
	}
	fields := d.fields(n, "constructor", "name", "named", "unnamed")
	nameNode, ok := fields["name"]
	if !ok {
		d.errf(n, "constructor must have a name")
	}
	decl := ast.ConstructorDecl{Name: d.scalar(nameNode, "constructor name")}
	switch {
	case fields["named"] != nil:
		decl.Fields = d.decodeNamedFields(fields["named"])
	case fields["unnamed"] != nil:
		decl.Fields = d.decodeUnnamedFields(fields["unnamed"])
	default:
		decl.Fields = &ast.EmptyFields{}
	}
	return decl
}

func (d *decoder) decodeNamedFields(n *yaml.Node) *ast.NamedFields {
	var out ast.NamedFields
	for _, f := range d.sequence(n, "named fields") {
		fields := d.fields(f, "field", "name", "type")
		if fields["name"] == nil || fields["type"] == nil {
			d.errf(f, "field must have a name and a type")
		}
		out.Fields = append(out.Fields, ast.Named[ast.Type]{
			Name: d.scalar(fields["name"], "field name"),
			Node: d.decodeType(fields["type"]),
		})
	}
	return &out
}

func (d *decoder) decodeUnnamedFields(n *yaml.Node) *ast.UnnamedFields {
	var out ast.UnnamedFields
	for _, f := range d.sequence(n, "unnamed fields") {
		out.Types = append(out.Types, d.decodeType(f))
	}
	return &out
}

func (d *decoder) decodeFunDecl(n *yaml.Node) *ast.FunDecl {
	fields := d.fields(n, "function declaration", "name", "type", "self", "prim", "params", "return", "body")
	nameNode, ok := fields["name"]
	if !ok {
		d.errf(n, "function declaration must have a name")
	}
	decl := &ast.FunDecl{Loc: d.loc(n), Name: d.scalar(nameNode, "function name")}
	if ty, ok := fields["type"]; ok {
		decl.TypeName = d.scalar(ty, "receiver type name")
	}
	if self, ok := fields["self"]; ok {
		decl.Self = d.boolScalar(self, "self")
	}
	if prim, ok := fields["prim"]; ok {
		decl.Prim = d.boolScalar(prim, "prim")
	}
	if params, ok := fields["params"]; ok {
		for _, p := range d.sequence(params, "params") {
			pf := d.fields(p, "param", "name", "type")
			if pf["name"] == nil {
				d.errf(p, "param must have a name")
			}
			param := ast.Param{Name: d.scalar(pf["name"], "param name")}
			if pf["type"] != nil {
				param.Type = d.decodeType(pf["type"])
			}
			decl.Params = append(decl.Params, param)
		}
	}
	if ret, ok := fields["return"]; ok {
		decl.ReturnType = d.decodeType(ret)
	}

	body, hasBody := fields["body"]
	if decl.Prim {
		if hasBody {
			d.errf(body, "primitive function %s cannot have a body", decl.Name)
		}
		return decl
	}
	if !hasBody {
		d.errf(n, "function %s has no body", decl.Name)
	}
	decl.Body = d.decodeStmts(body)
	return decl
}

func (d *decoder) decodeStmts(n *yaml.Node) []ast.Stmt {
	stmts := []ast.Stmt{}
	for _, s := range d.sequence(n, "statement list") {
		stmts = append(stmts, d.decodeStmt(s))
	}
	return stmts
}

func (d *decoder) decodeStmt(n *yaml.Node) ast.Stmt {
	if n.Kind == yaml.MappingNode {
		entries := d.mapping(n, "statement")
		if len(entries) == 1 {
			body := entries[0].value
			switch entries[0].key {
			case "let":
				fields := d.fields(body, "let", "pat", "type", "expr")
				if fields["pat"] == nil || fields["expr"] == nil {
					d.errf(body, "let must have a pat and an expr")
				}
				stmt := &ast.LetStmt{
					Loc: d.loc(n),
					Lhs: d.decodePat(fields["pat"]),
					Rhs: d.decodeExpr(fields["expr"]),
				}
				if fields["type"] != nil {
					stmt.Type = d.decodeType(fields["type"])
				}
				return stmt
			case "assign":
				fields := d.fields(body, "assign", "lhs", "op", "rhs")
				if fields["lhs"] == nil || fields["rhs"] == nil {
					d.errf(body, "assign must have an lhs and an rhs")
				}
				op := ast.AssignOpEq
				if fields["op"] != nil {
					switch d.scalar(fields["op"], "assign op") {
					case "=":
					case "+=":
						op = ast.AssignOpPlusEq
					case "-=":
						op = ast.AssignOpMinusEq
					default:
						d.errf(fields["op"], "unknown assign op %q", fields["op"].Value)
					}
				}
				return &ast.AssignStmt{
					Loc: d.loc(n),
					Lhs: d.decodeExpr(fields["lhs"]),
					Op:  op,
					Rhs: d.decodeExpr(fields["rhs"]),
				}
			case "while":
				fields := d.fields(body, "while", "cond", "body")
				if fields["cond"] == nil || fields["body"] == nil {
					d.errf(body, "while must have a cond and a body")
				}
				return &ast.WhileStmt{
					Loc:  d.loc(n),
					Cond: d.decodeExpr(fields["cond"]),
					Body: d.decodeStmts(fields["body"]),
				}
			case "for":
				fields := d.fields(body, "for", "var", "type", "range", "body")
				if fields["var"] == nil || fields["range"] == nil || fields["body"] == nil {
					d.errf(body, "for must have a var, a range and a body")
				}
				stmt := &ast.ForStmt{
					Loc:  d.loc(n),
					Var:  d.scalar(fields["var"], "for variable"),
					Expr: d.decodeExpr(fields["range"]),
					Body: d.decodeStmts(fields["body"]),
				}
				if fields["type"] != nil {
					stmt.Type = d.decodeType(fields["type"])
				}
				return stmt
			}
		}
	}
	return &ast.ExprStmt{Loc: d.loc(n), Expr: d.decodeExpr(n)}
}

func (d *decoder) decodeExpr(n *yaml.Node) ast.Expr {
	if n.Kind == yaml.ScalarNode {
		if n.Value == "self" {
			return &ast.SelfExpr{Loc: d.loc(n)}
		}
		d.errf(n, "unknown expression %q", n.Value)
	}

	entries := d.mapping(n, "expression")
	if len(entries) != 1 {
		d.errf(n, "expression must have exactly one key")
	}
	key, body := entries[0].key, entries[0].value
	loc := d.loc(n)

	switch key {
	case "var":
		return &ast.VarExpr{Loc: loc, Name: d.scalar(body, "variable name")}
	case "upper":
		return &ast.UpperVarExpr{Loc: loc, Name: d.scalar(body, "type name")}
	case "int":
		i, err := strconv.ParseInt(d.scalar(body, "integer literal"), 10, 32)
		if err != nil {
			d.errf(body, "invalid integer literal %q", body.Value)
		}
		return &ast.IntExpr{Loc: loc, Value: int32(i)}
	case "str":
		return d.decodeStringExpr(loc, body)
	case "select":
		fields := d.fields(body, "select", "object", "field")
		if fields["object"] == nil || fields["field"] == nil {
			d.errf(body, "select must have an object and a field")
		}
		return &ast.FieldSelectExpr{
			Loc:    loc,
			Object: d.decodeExpr(fields["object"]),
			Field:  d.scalar(fields["field"], "field name"),
		}
	case "constr":
		fields := d.fields(body, "constr", "type", "name")
		if fields["type"] == nil || fields["name"] == nil {
			d.errf(body, "constr must have a type and a name")
		}
		return &ast.ConstrSelectExpr{
			Loc:    loc,
			Type:   d.scalar(fields["type"], "type name"),
			Constr: d.scalar(fields["name"], "constructor name"),
		}
	case "call":
		fields := d.fields(body, "call", "fun", "args")
		if fields["fun"] == nil {
			d.errf(body, "call must have a fun")
		}
		call := &ast.CallExpr{Loc: loc, Fun: d.decodeExpr(fields["fun"])}
		if fields["args"] != nil {
			call.Args = d.decodeNamedExprs(fields["args"], "args")
		}
		return call
	case "binop":
		fields := d.fields(body, "binop", "op", "left", "right")
		if fields["op"] == nil || fields["left"] == nil || fields["right"] == nil {
			d.errf(body, "binop must have an op, a left and a right")
		}
		return &ast.BinOpExpr{
			Loc:   loc,
			Op:    d.decodeBinOp(fields["op"]),
			Left:  d.decodeExpr(fields["left"]),
			Right: d.decodeExpr(fields["right"]),
		}
	case "not":
		return &ast.UnOpExpr{Loc: loc, Op: ast.UnOpNot, Expr: d.decodeExpr(body)}
	case "index":
		fields := d.fields(body, "index", "array", "index")
		if fields["array"] == nil || fields["index"] == nil {
			d.errf(body, "index must have an array and an index")
		}
		return &ast.ArrayIndexExpr{
			Loc:   loc,
			Array: d.decodeExpr(fields["array"]),
			Index: d.decodeExpr(fields["index"]),
		}
	case "record":
		return &ast.RecordExpr{Loc: loc, Fields: d.decodeNamedExprs(body, "record fields")}
	case "range":
		fields := d.fields(body, "range", "from", "to", "inclusive")
		if fields["from"] == nil || fields["to"] == nil {
			d.errf(body, "range must have a from and a to")
		}
		expr := &ast.RangeExpr{
			Loc:  loc,
			From: d.decodeExpr(fields["from"]),
			To:   d.decodeExpr(fields["to"]),
		}
		if fields["inclusive"] != nil {
			expr.Inclusive = d.boolScalar(fields["inclusive"], "inclusive")
		}
		return expr
	case "return":
		return &ast.ReturnExpr{Loc: loc, Expr: d.decodeExpr(body)}
	case "match":
		fields := d.fields(body, "match", "scrutinee", "alts")
		if fields["scrutinee"] == nil || fields["alts"] == nil {
			d.errf(body, "match must have a scrutinee and alts")
		}
		expr := &ast.MatchExpr{Loc: loc, Scrutinee: d.decodeExpr(fields["scrutinee"])}
		for _, alt := range d.sequence(fields["alts"], "alts") {
			af := d.fields(alt, "alt", "pat", "guard", "body")
			if af["pat"] == nil || af["body"] == nil {
				d.errf(alt, "alt must have a pat and a body")
			}
			a := ast.Alt{Pattern: d.decodePat(af["pat"]), Rhs: d.decodeStmts(af["body"])}
			if af["guard"] != nil {
				a.Guard = d.decodeExpr(af["guard"])
			}
			expr.Alts = append(expr.Alts, a)
		}
		return expr
	case "if":
		fields := d.fields(body, "if", "branches", "else")
		if fields["branches"] == nil {
			d.errf(body, "if must have branches")
		}
		expr := &ast.IfExpr{Loc: loc}
		for _, branch := range d.sequence(fields["branches"], "branches") {
			bf := d.fields(branch, "branch", "cond", "body")
			if bf["cond"] == nil || bf["body"] == nil {
				d.errf(branch, "branch must have a cond and a body")
			}
			expr.Branches = append(expr.Branches, ast.IfBranch{
				Cond: d.decodeExpr(bf["cond"]),
				Body: d.decodeStmts(bf["body"]),
			})
		}
		if fields["else"] != nil {
			expr.Else = d.decodeStmts(fields["else"])
		}
		return expr
	}
	d.errf(n, "unknown expression kind %q", key)
	return nil
}

func (d *decoder) decodeStringExpr(loc ast.Loc, n *yaml.Node) *ast.StringExpr {
	expr := &ast.StringExpr{Loc: loc}
	if n.Kind == yaml.ScalarNode {
		expr.Parts = []ast.StringPart{ast.StrPart{Str: n.Value}}
		return expr
	}
	for _, part := range d.sequence(n, "string parts") {
		if part.Kind == yaml.ScalarNode {
			expr.Parts = append(expr.Parts, ast.StrPart{Str: part.Value})
			continue
		}
		fields := d.fields(part, "string part", "expr")
		if fields["expr"] == nil {
			d.errf(part, "interpolated string part must have an expr")
		}
		expr.Parts = append(expr.Parts, ast.ExprPart{Expr: d.decodeExpr(fields["expr"])})
	}
	return expr
}

// decodeNamedExprs decodes call arguments and record fields: either a bare
// expression or a {name, expr} mapping.
func (d *decoder) decodeNamedExprs(n *yaml.Node, what string) []ast.Named[ast.Expr] {
	out := []ast.Named[ast.Expr]{}
	for _, item := range d.sequence(n, what) {
		if item.Kind == yaml.MappingNode {
			entries := d.mapping(item, what)
			if len(entries) == 2 {
				named := d.fields(item, what, "name", "expr")
				if named["name"] != nil && named["expr"] != nil {
					out = append(out, ast.Named[ast.Expr]{
						Name: d.scalar(named["name"], "field name"),
						Node: d.decodeExpr(named["expr"]),
					})
					continue
				}
			}
		}
		out = append(out, ast.Named[ast.Expr]{Node: d.decodeExpr(item)})
	}
	return out
}

func (d *decoder) decodeBinOp(n *yaml.Node) ast.BinOp {
	switch d.scalar(n, "binop op") {
	case "+":
		return ast.BinOpAdd
	case "-":
		return ast.BinOpSubtract
	case "*":
		return ast.BinOpMultiply
	case "==":
		return ast.BinOpEqual
	case "!=":
		return ast.BinOpNotEqual
	case "<":
		return ast.BinOpLt
	case ">":
		return ast.BinOpGt
	case "<=":
		return ast.BinOpLtEq
	case ">=":
		return ast.BinOpGtEq
	case "and":
		return ast.BinOpAnd
	case "or":
		return ast.BinOpOr
	}
	d.errf(n, "unknown operator %q", n.Value)
	return 0
}

func (d *decoder) decodePat(n *yaml.Node) ast.Pat {
	if n.Kind == yaml.ScalarNode {
		if n.Value == "_" {
			return &ast.IgnorePat{Loc: d.loc(n)}
		}
		return &ast.VarPat{Loc: d.loc(n), Name: n.Value}
	}

	entries := d.mapping(n, "pattern")
	if len(entries) != 1 {
		d.errf(n, "pattern must have exactly one key")
	}
	key, body := entries[0].key, entries[0].value
	loc := d.loc(n)

	switch key {
	case "var":
		return &ast.VarPat{Loc: loc, Name: d.scalar(body, "variable name")}
	case "constr":
		fields := d.fields(body, "constr pattern", "type", "name", "fields")
		if fields["type"] == nil {
			d.errf(body, "constr pattern must have a type")
		}
		pat := &ast.ConstrPat{Loc: loc, Type: d.scalar(fields["type"], "type name")}
		if fields["name"] != nil {
			pat.Constr = d.scalar(fields["name"], "constructor name")
		}
		if fields["fields"] != nil {
			pat.Fields = d.decodeNamedPats(fields["fields"])
		}
		return pat
	case "record":
		return &ast.RecordPat{Loc: loc, Fields: d.decodeNamedPats(body)}
	case "str":
		return &ast.StrPat{Loc: loc, Value: d.scalar(body, "string pattern")}
	case "prefix":
		fields := d.fields(body, "prefix pattern", "str", "rest")
		if fields["str"] == nil || fields["rest"] == nil {
			d.errf(body, "prefix pattern must have a str and a rest")
		}
		return &ast.StrPfxPat{
			Loc:    loc,
			Prefix: d.scalar(fields["str"], "prefix"),
			Var:    d.scalar(fields["rest"], "rest variable"),
		}
	case "or":
		alts := d.sequence(body, "or pattern")
		if len(alts) != 2 {
			d.errf(body, "or pattern must have exactly two alternatives")
		}
		return &ast.OrPat{Loc: loc, Left: d.decodePat(alts[0]), Right: d.decodePat(alts[1])}
	}
	d.errf(n, "unknown pattern kind %q", key)
	return nil
}

func (d *decoder) decodeNamedPats(n *yaml.Node) []ast.Named[ast.Pat] {
	out := []ast.Named[ast.Pat]{}
	for _, item := range d.sequence(n, "field patterns") {
		if item.Kind == yaml.MappingNode {
			entries := d.mapping(item, "field pattern")
			if len(entries) == 2 {
				named := d.fields(item, "field pattern", "name", "pat")
				if named["name"] != nil && named["pat"] != nil {
					out = append(out, ast.Named[ast.Pat]{
						Name: d.scalar(named["name"], "field name"),
						Node: d.decodePat(named["pat"]),
					})
					continue
				}
			}
		}
		out = append(out, ast.Named[ast.Pat]{Node: d.decodePat(item)})
	}
	return out
}

func (d *decoder) decodeType(n *yaml.Node) ast.Type {
	if n.Kind == yaml.ScalarNode {
		return &ast.NamedType{Loc: d.loc(n), Name: n.Value}
	}
	fields := d.fields(n, "type", "name", "args", "record")
	loc := d.loc(n)
	if fields["record"] != nil {
		ty := &ast.RecordType{Loc: loc}
		for _, f := range d.sequence(fields["record"], "record type fields") {
			ff := d.fields(f, "record type field", "name", "type")
			field := ast.Named[ast.Type]{}
			if ff["name"] != nil {
				field.Name = d.scalar(ff["name"], "field name")
			}
			if ff["type"] == nil {
				d.errf(f, "record type field must have a type")
			}
			field.Node = d.decodeType(ff["type"])
			ty.Fields = append(ty.Fields, field)
		}
		return ty
	}
	if fields["name"] == nil {
		d.errf(n, "type must have a name")
	}
	ty := &ast.NamedType{Loc: loc, Name: d.scalar(fields["name"], "type name")}
	if fields["args"] != nil {
		for _, arg := range d.sequence(fields["args"], "type args") {
			ty.Args = append(ty.Args, d.decodeType(arg))
		}
	}
	return ty
}
