// Package fixtures hand-builds a handful of small *ast.Module trees for
// cmd/pycdis to compile and inspect. There is no parser in this module
// (spec §1 Non-goals), so a CLI that wants something to compile without
// shelling out to a real front end needs its sample programs constructed
// directly as AST literals, the way a compiler's own unit tests often do.
package fixtures

import "github.com/ninelines/pybc/ast"

// Names lists every fixture, in a stable display order.
func Names() []string {
	return []string{"greet", "counter", "generic-first"}
}

// Get returns the named fixture's module, or (nil, false) if name isn't
// one of Names().
func Get(name string) (*ast.Module, bool) {
	switch name {
	case "greet":
		return greet(), true
	case "counter":
		return counter(), true
	case "generic-first":
		return genericFirst(), true
	default:
		return nil, false
	}
}

// greet exercises plain function definition, string concatenation, and a
// module-level call: `def greet(name): return "hi " + name` followed by
// `greet("world")`.
func greet() *ast.Module {
	fn := &ast.FunctionDef{
		Name: "greet",
		Args: ast.Arguments{Args: []ast.Param{{Name: "name"}}},
		Body: []ast.Stmt{
			&ast.Return{Value: &ast.BinOpExpr{
				Left:  &ast.Constant{Value: "hi "},
				Op:    ast.Add,
				Right: &ast.Name{Id: "name", Ctx: ast.Load},
			}},
		},
	}
	call := &ast.ExprStmt{Value: &ast.Call{
		Func: &ast.Name{Id: "greet", Ctx: ast.Load},
		Args: []ast.Expr{&ast.Constant{Value: "world"}},
	}}
	return &ast.Module{Body: []ast.Stmt{fn, call}, FutureFeatures: map[string]bool{}}
}

// counter exercises class definition, attribute load/store, and
// augmented assignment: a `Counter` class with `__init__` and
// `increment`, plus a module-level instantiation and call.
func counter() *ast.Module {
	self := func() ast.Expr { return &ast.Name{Id: "self", Ctx: ast.Load} }

	initFn := &ast.FunctionDef{
		Name: "__init__",
		Args: ast.Arguments{Args: []ast.Param{
			{Name: "self"},
			{Name: "start", Annotation: &ast.Name{Id: "int", Ctx: ast.Load}},
		}},
		Body: []ast.Stmt{
			&ast.Assign{
				Targets: []ast.Expr{&ast.Attribute{Value: self(), Attr: "value", Ctx: ast.Store}},
				Value:   &ast.Name{Id: "start", Ctx: ast.Load},
			},
		},
	}
	incFn := &ast.FunctionDef{
		Name: "increment",
		Args: ast.Arguments{Args: []ast.Param{{Name: "self"}}},
		Body: []ast.Stmt{
			&ast.AugAssign{
				Target: &ast.Attribute{Value: self(), Attr: "value", Ctx: ast.Store},
				Op:     ast.Add,
				Value:  &ast.Constant{Value: int64(1)},
			},
			&ast.Return{Value: &ast.Attribute{Value: self(), Attr: "value", Ctx: ast.Load}},
		},
	}
	class := &ast.ClassDef{
		Name: "Counter",
		Body: []ast.Stmt{initFn, incFn},
	}
	instantiate := &ast.Assign{
		Targets: []ast.Expr{&ast.Name{Id: "c", Ctx: ast.Store}},
		Value: &ast.Call{
			Func: &ast.Name{Id: "Counter", Ctx: ast.Load},
			Args: []ast.Expr{&ast.Constant{Value: int64(0)}},
		},
	}
	bump := &ast.ExprStmt{Value: &ast.Call{
		Func: &ast.Attribute{Value: &ast.Name{Id: "c", Ctx: ast.Load}, Attr: "increment", Ctx: ast.Load},
	}}
	return &ast.Module{Body: []ast.Stmt{class, instantiate, bump}, FutureFeatures: map[string]bool{}}
}

// genericFirst exercises PEP 695 type parameters together with PEP 649
// parameter/return annotations: `def first[T](xs: list) -> T: return
// xs[0]`.
func genericFirst() *ast.Module {
	fn := &ast.FunctionDef{
		Name:       "first",
		TypeParams: []ast.TypeParam{{Name: "T", Kind: ast.TypeVarParam}},
		Args: ast.Arguments{Args: []ast.Param{
			{Name: "xs", Annotation: &ast.Name{Id: "list", Ctx: ast.Load}},
		}},
		Returns: &ast.Name{Id: "T", Ctx: ast.Load},
		Body: []ast.Stmt{
			&ast.Return{Value: &ast.Subscript{
				Value: &ast.Name{Id: "xs", Ctx: ast.Load},
				Index: &ast.Constant{Value: int64(0)},
				Ctx:   ast.Load,
			}},
		},
	}
	return &ast.Module{Body: []ast.Stmt{fn}, FutureFeatures: map[string]bool{}}
}
