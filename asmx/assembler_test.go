package asmx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninelines/pybc/ast"
	"github.com/ninelines/pybc/code"
	"github.com/ninelines/pybc/object"
)

func TestAssembleEncodesFixedWidthInstructions(t *testing.T) {
	seq := code.NewInstructionSeq(false)
	_, err := seq.Emit(code.LOAD_CONSTANT, 0, ast.Loc{StartLine: 1})
	require.NoError(t, err)
	_, err = seq.Emit(code.RETURN_VALUE, 0, ast.Loc{StartLine: 1})
	require.NoError(t, err)

	co, err := Assemble(seq, UnitMeta{Name: "f", QualName: "f", Consts: []object.Value{object.Int{Value: 1}}})
	require.NoError(t, err)

	assert.Len(t, co.Code, 2*InstrWidth)
	assert.Equal(t, byte(code.LOAD_CONSTANT), co.Code[0])
	assert.Equal(t, byte(code.RETURN_VALUE), co.Code[InstrWidth])
}

func TestAssembleResolvesJumpLabelToByteOffset(t *testing.T) {
	seq := code.NewInstructionSeq(false)
	target := seq.NewLabel()
	_, err := seq.EmitJump(code.JUMP, target, ast.Loc{StartLine: 1})
	require.NoError(t, err)
	_, err = seq.Emit(code.LOAD_CONSTANT, 0, ast.Loc{StartLine: 2})
	require.NoError(t, err)
	require.NoError(t, seq.PlaceLabel(target))
	_, err = seq.Emit(code.RETURN_VALUE, 0, ast.Loc{StartLine: 3})
	require.NoError(t, err)

	co, err := Assemble(seq, UnitMeta{Name: "f", QualName: "f"})
	require.NoError(t, err)

	jumpArg := int32(co.Code[1]) | int32(co.Code[2])<<8 | int32(co.Code[3])<<16 | int32(co.Code[4])<<24
	assert.Equal(t, int32(2*InstrWidth), jumpArg)
}

func TestAssembleFailsOnUnplacedLabel(t *testing.T) {
	seq := code.NewInstructionSeq(false)
	target := seq.NewLabel()
	_, err := seq.EmitJump(code.JUMP, target, ast.Loc{StartLine: 1})
	require.NoError(t, err)

	_, err = Assemble(seq, UnitMeta{Name: "f", QualName: "f"})
	assert.Error(t, err)
}

func TestAssembleBuildsCollapsedLineTable(t *testing.T) {
	seq := code.NewInstructionSeq(false)
	_, err := seq.Emit(code.LOAD_CONSTANT, 0, ast.Loc{StartLine: 5})
	require.NoError(t, err)
	_, err = seq.Emit(code.POP_TOP, 0, ast.Loc{StartLine: 5})
	require.NoError(t, err)
	_, err = seq.Emit(code.RETURN_VALUE, 0, ast.Loc{StartLine: 6})
	require.NoError(t, err)

	co, err := Assemble(seq, UnitMeta{Name: "f", QualName: "f"})
	require.NoError(t, err)

	require.Len(t, co.LineTable, 2)
	assert.Equal(t, 5, co.LineTable[0].Line)
	assert.Equal(t, 0, co.LineTable[0].StartOffset)
	assert.Equal(t, 2*InstrWidth, co.LineTable[0].EndOffset)
	assert.Equal(t, 6, co.LineTable[1].Line)
}

func TestAssembleCopiesUnitMetadataOntoCodeObject(t *testing.T) {
	seq := code.NewInstructionSeq(false)
	_, err := seq.Emit(code.RETURN_VALUE, 0, ast.Loc{StartLine: 1})
	require.NoError(t, err)

	meta := UnitMeta{
		Name: "inner", QualName: "Outer.inner", Filename: "<test>",
		FirstLine: 3, ArgCount: 2, VarNames: []string{"a", "b"},
	}
	co, err := Assemble(seq, meta)
	require.NoError(t, err)

	assert.Equal(t, "inner", co.Name)
	assert.Equal(t, "Outer.inner", co.QualName)
	assert.Equal(t, 2, co.ArgCount)
	assert.Equal(t, []string{"a", "b"}, co.VarNames)
}

func TestMaxStackDepthTracksHighWaterMark(t *testing.T) {
	seq := code.NewInstructionSeq(false)
	_, err := seq.Emit(code.LOAD_CONSTANT, 0, ast.Loc{StartLine: 1})
	require.NoError(t, err)
	_, err = seq.Emit(code.LOAD_CONSTANT, 0, ast.Loc{StartLine: 1})
	require.NoError(t, err)
	_, err = seq.Emit(code.BINARY_ADD, 0, ast.Loc{StartLine: 1})
	require.NoError(t, err)
	_, err = seq.Emit(code.RETURN_VALUE, 0, ast.Loc{StartLine: 1})
	require.NoError(t, err)

	co, err := Assemble(seq, UnitMeta{Name: "f", QualName: "f"})
	require.NoError(t, err)

	assert.Equal(t, 2, co.StackSize)
}
