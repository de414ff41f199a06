package compiler

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninelines/pybc/ast"
	"github.com/ninelines/pybc/code"
	"github.com/ninelines/pybc/config"
	"github.com/ninelines/pybc/errs"
	"github.com/ninelines/pybc/object"
)

// decoded mirrors cmd/pycdis/disasm.Decode without importing it, since
// compiler must not depend on a cmd package.
type decoded struct {
	op  code.Opcode
	arg int32
}

func decode(co *object.CodeObject) []decoded {
	const width = 5
	var out []decoded
	for off := 0; off+width <= len(co.Code); off += width {
		out = append(out, decoded{
			op:  code.Opcode(co.Code[off]),
			arg: int32(binary.LittleEndian.Uint32(co.Code[off+1 : off+5])),
		})
	}
	return out
}

func childCodes(co *object.CodeObject) []*object.CodeObject {
	var out []*object.CodeObject
	for _, v := range co.Consts {
		if child, ok := v.(*object.CodeObject); ok {
			out = append(out, child)
		}
	}
	return out
}

func containsOp(instrs []decoded, op code.Opcode) bool {
	for _, ins := range instrs {
		if ins.op == op {
			return true
		}
	}
	return false
}

func compileModule(t *testing.T, mod *ast.Module) *object.CodeObject {
	t.Helper()
	co, err := New(config.Default(), nil).Compile(mod, "<test>")
	require.NoError(t, err)
	return co
}

func TestCompileEmptyModuleReturnsNone(t *testing.T) {
	mod := &ast.Module{FutureFeatures: map[string]bool{}}
	co := compileModule(t, mod)

	instrs := decode(co)
	require.NotEmpty(t, instrs)
	last := instrs[len(instrs)-1]
	assert.Equal(t, code.RETURN_CONST, last.op)
	assert.IsType(t, object.None{}, co.Consts[last.arg])
}

func TestCompileFunctionDefStoresNestedCodeObject(t *testing.T) {
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
	mod := &ast.Module{Body: []ast.Stmt{fn}, FutureFeatures: map[string]bool{}}
	co := compileModule(t, mod)

	children := childCodes(co)
	require.Len(t, children, 1)
	assert.Equal(t, "greet", children[0].Name)
	assert.Equal(t, 1, children[0].ArgCount)

	instrs := decode(co)
	assert.True(t, containsOp(instrs, code.MAKE_FUNCTION))
	assert.True(t, containsOp(instrs, code.STORE_NAME))
}

func TestCompileClassDefUsesLoadBuildClass(t *testing.T) {
	class := &ast.ClassDef{Name: "C", Body: []ast.Stmt{
		&ast.Assign{
			Targets: []ast.Expr{&ast.Name{Id: "attr", Ctx: ast.Store}},
			Value:   &ast.Constant{Value: int64(1)},
		},
	}}
	mod := &ast.Module{Body: []ast.Stmt{class}, FutureFeatures: map[string]bool{}}
	co := compileModule(t, mod)

	instrs := decode(co)
	assert.True(t, containsOp(instrs, code.LOAD_BUILD_CLASS))

	children := childCodes(co)
	require.Len(t, children, 1)
	assert.Equal(t, "C", children[0].Name)
}

func TestCompileGenericFunctionEmitsTypeParamsScope(t *testing.T) {
	fn := &ast.FunctionDef{
		Name:       "first",
		TypeParams: []ast.TypeParam{{Name: "T", Kind: ast.TypeVarParam}},
		Args:       ast.Arguments{Args: []ast.Param{{Name: "xs"}}},
		Body: []ast.Stmt{
			&ast.Return{Value: &ast.Subscript{
				Value: &ast.Name{Id: "xs", Ctx: ast.Load},
				Index: &ast.Constant{Value: int64(0)},
				Ctx:   ast.Load,
			}},
		},
	}
	mod := &ast.Module{Body: []ast.Stmt{fn}, FutureFeatures: map[string]bool{}}
	co := compileModule(t, mod)

	// The type-params wrapper scope is itself a nested code object whose
	// own instructions build __type_params__ before returning the real
	// function object, so it shows up one level deeper than a plain def.
	wrappers := childCodes(co)
	require.Len(t, wrappers, 1)
	wrapperInstrs := decode(wrappers[0])
	assert.True(t, containsOp(wrapperInstrs, code.BUILD_TYPE_PARAMS))
	assert.True(t, containsOp(wrapperInstrs, code.CALL_INTRINSIC_1))

	innerFns := childCodes(wrappers[0])
	require.Len(t, innerFns, 1)
	assert.Equal(t, "first", innerFns[0].Name)
}

func TestCompileAnnotationsAreDeferred(t *testing.T) {
	fn := &ast.FunctionDef{
		Name: "f",
		Args: ast.Arguments{Args: []ast.Param{
			{Name: "x", Annotation: &ast.Name{Id: "int", Ctx: ast.Load}},
		}},
		Body: []ast.Stmt{&ast.Return{Value: &ast.Constant{Value: int64(0)}}},
	}
	mod := &ast.Module{Body: []ast.Stmt{fn}, FutureFeatures: map[string]bool{}}
	co := compileModule(t, mod)

	children := childCodes(co)
	require.Len(t, children, 1)
	// The annotation thunk compiles as its own nested code object rather
	// than inline LOAD_CONSTANT in the function body, since annotation
	// evaluation is deferred until __annotate__ is actually called.
	grandchildren := childCodes(children[0])
	require.NotEmpty(t, grandchildren)
}

func TestCompileBreakOutsideLoopIsSyntaxError(t *testing.T) {
	mod := &ast.Module{Body: []ast.Stmt{&ast.Break{}}, FutureFeatures: map[string]bool{}}

	_, err := New(config.Default(), nil).Compile(mod, "<test>")
	require.Error(t, err)

	var ce *errs.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, errs.SyntaxError, ce.Kind)
}

func TestCompileTypeParamDefaultOrderingIsSyntaxError(t *testing.T) {
	fn := &ast.FunctionDef{
		Name: "f",
		TypeParams: []ast.TypeParam{
			{Name: "T", Kind: ast.TypeVarParam, Default: &ast.Constant{Value: int64(0)}},
			{Name: "U", Kind: ast.TypeVarParam},
		},
		Body: []ast.Stmt{&ast.Return{Value: &ast.Constant{Value: int64(0)}}},
	}
	mod := &ast.Module{Body: []ast.Stmt{fn}, FutureFeatures: map[string]bool{}}

	_, err := New(config.Default(), nil).Compile(mod, "<test>")
	require.Error(t, err)

	var ce *errs.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, errs.SyntaxError, ce.Kind)
}
