package symtab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninelines/pybc/ast"
)

func TestBuildModuleLevelAssignIsLocalButNotFastLocal(t *testing.T) {
	assign := &ast.Assign{
		Targets: []ast.Expr{&ast.Name{Id: "x", Ctx: ast.Store}},
		Value:   &ast.Constant{Value: int64(1)},
	}
	mod := &ast.Module{Body: []ast.Stmt{assign}}

	table := Build(mod)

	entry, ok := table.EntryFor(mod)
	require.True(t, ok)
	// Module-scope bindings classify LOCAL like any other bound name; it
	// is IsFunctionLike() that tells the compiler this means a
	// name-lookup store rather than a fast local.
	assert.Equal(t, Local, entry.ScopeOf("x"))
	assert.False(t, entry.IsFunctionLike())
}

func TestBuildFunctionParamIsLocal(t *testing.T) {
	fn := &ast.FunctionDef{
		Name: "f",
		Args: ast.Arguments{Args: []ast.Param{{Name: "a"}}},
		Body: []ast.Stmt{&ast.Return{Value: &ast.Name{Id: "a", Ctx: ast.Load}}},
	}
	mod := &ast.Module{Body: []ast.Stmt{fn}}

	table := Build(mod)

	entry, ok := table.EntryFor(fn)
	require.True(t, ok)
	assert.Equal(t, Local, entry.ScopeOf("a"))
	assert.True(t, entry.IsFunctionLike())
	assert.Equal(t, FunctionScopeKind, entry.Kind())
}

func TestBuildNestedFunctionPromotesOuterVarToCell(t *testing.T) {
	inner := &ast.FunctionDef{
		Name: "inner",
		Body: []ast.Stmt{&ast.Return{Value: &ast.Name{Id: "x", Ctx: ast.Load}}},
	}
	outer := &ast.FunctionDef{
		Name: "outer",
		Body: []ast.Stmt{
			&ast.Assign{
				Targets: []ast.Expr{&ast.Name{Id: "x", Ctx: ast.Store}},
				Value:   &ast.Constant{Value: int64(1)},
			},
			inner,
			&ast.Return{Value: &ast.Name{Id: "inner", Ctx: ast.Load}},
		},
	}
	mod := &ast.Module{Body: []ast.Stmt{outer}}

	table := Build(mod)

	outerEntry, ok := table.EntryFor(outer)
	require.True(t, ok)
	innerEntry, ok := table.EntryFor(inner)
	require.True(t, ok)

	assert.Equal(t, Cell, outerEntry.ScopeOf("x"))
	assert.Equal(t, Free, innerEntry.ScopeOf("x"))
	assert.Contains(t, outerEntry.SortedCellVars(), "x")
	assert.Contains(t, innerEntry.SortedFreeVars(), "x")
}

func TestBuildGlobalStatementMarksExplicit(t *testing.T) {
	fn := &ast.FunctionDef{
		Name: "f",
		Body: []ast.Stmt{
			&ast.Global{Names: []string{"g"}},
			&ast.Assign{
				Targets: []ast.Expr{&ast.Name{Id: "g", Ctx: ast.Store}},
				Value:   &ast.Constant{Value: int64(1)},
			},
		},
	}
	mod := &ast.Module{Body: []ast.Stmt{fn}}

	table := Build(mod)

	entry, ok := table.EntryFor(fn)
	require.True(t, ok)
	assert.Equal(t, GlobalExplicit, entry.ScopeOf("g"))
}

func TestBuildClassBodyIsNotFunctionLike(t *testing.T) {
	class := &ast.ClassDef{
		Name: "C",
		Body: []ast.Stmt{
			&ast.Assign{
				Targets: []ast.Expr{&ast.Name{Id: "attr", Ctx: ast.Store}},
				Value:   &ast.Constant{Value: int64(1)},
			},
		},
	}
	mod := &ast.Module{Body: []ast.Stmt{class}}

	table := Build(mod)

	entry, ok := table.EntryFor(class)
	require.True(t, ok)
	assert.Equal(t, ClassScopeKind, entry.Kind())
	assert.False(t, entry.IsFunctionLike())
}
