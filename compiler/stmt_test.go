package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninelines/pybc/ast"
	"github.com/ninelines/pybc/code"
)

func TestCompileWhileBreakUsesBackwardAndForwardJumps(t *testing.T) {
	loop := &ast.While{
		Test: &ast.Constant{Value: true},
		Body: []ast.Stmt{&ast.Break{}},
	}
	mod := &ast.Module{Body: []ast.Stmt{loop}, FutureFeatures: map[string]bool{}}
	co := compileModule(t, mod)

	instrs := decode(co)
	assert.True(t, containsOp(instrs, code.JUMP_BACKWARD))
	assert.True(t, containsOp(instrs, code.JUMP))
}

func TestCompileForLoopUsesGetIterAndForIter(t *testing.T) {
	loop := &ast.For{
		Target: &ast.Name{Id: "x", Ctx: ast.Store},
		Iter:   &ast.Name{Id: "xs", Ctx: ast.Load},
		Body:   []ast.Stmt{&ast.Pass{}},
	}
	mod := &ast.Module{Body: []ast.Stmt{loop}, FutureFeatures: map[string]bool{}}
	co := compileModule(t, mod)

	instrs := decode(co)
	assert.True(t, containsOp(instrs, code.GET_ITER))
	assert.True(t, containsOp(instrs, code.FOR_ITER))
	assert.True(t, containsOp(instrs, code.END_FOR))
}

func TestCompileTryExceptSetsUpAndPopsHandler(t *testing.T) {
	try := &ast.Try{
		Body: []ast.Stmt{&ast.Pass{}},
		Handlers: []ast.ExceptHandler{
			{Body: []ast.Stmt{&ast.Pass{}}},
		},
	}
	mod := &ast.Module{Body: []ast.Stmt{try}, FutureFeatures: map[string]bool{}}
	co := compileModule(t, mod)

	instrs := decode(co)
	assert.True(t, containsOp(instrs, code.SETUP_FINALLY))
	assert.True(t, containsOp(instrs, code.POP_EXCEPT))
}

func TestCompileListCompProducesNonInlinedNestedScope(t *testing.T) {
	comp := &ast.ListComp{
		Elt: &ast.Name{Id: "x", Ctx: ast.Load},
		Gens: []ast.Comprehension{
			{Target: &ast.Name{Id: "x", Ctx: ast.Store}, Iter: &ast.Name{Id: "xs", Ctx: ast.Load}},
		},
		Inline: false,
	}
	assign := &ast.Assign{
		Targets: []ast.Expr{&ast.Name{Id: "ys", Ctx: ast.Store}},
		Value:   comp,
	}
	mod := &ast.Module{Body: []ast.Stmt{assign}, FutureFeatures: map[string]bool{}}
	co := compileModule(t, mod)

	children := childCodes(co)
	require.Len(t, children, 1)
	// Module scope isn't function-like, so the comprehension can't inline
	// into it and must be lifted into its own nested code object.
	assert.Equal(t, "<comprehension>", children[0].Name)
}

func TestCompileMatchSequenceEmitsStructuralMatchOpcode(t *testing.T) {
	m := &ast.Match{
		Subject: &ast.Name{Id: "point", Ctx: ast.Load},
		Cases: []ast.MatchCase{
			{
				Pattern: &ast.MatchSequence{Elts: []ast.Pattern{
					&ast.MatchAs{Name: "x"},
					&ast.MatchAs{Name: "y"},
				}},
				Body: []ast.Stmt{&ast.Pass{}},
			},
			{Pattern: &ast.MatchAs{Name: "_"}, Body: []ast.Stmt{&ast.Pass{}}},
		},
	}
	mod := &ast.Module{Body: []ast.Stmt{m}, FutureFeatures: map[string]bool{}}
	co := compileModule(t, mod)

	instrs := decode(co)
	assert.True(t, containsOp(instrs, code.MATCH_SEQUENCE))
}
