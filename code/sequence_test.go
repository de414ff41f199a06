package code

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninelines/pybc/ast"
)

func TestEmitAppendsInOrder(t *testing.T) {
	seq := NewInstructionSeq(false)
	_, err := seq.Emit(LOAD_CONSTANT, 0, ast.Loc{StartLine: 1})
	require.NoError(t, err)
	_, err = seq.Emit(RETURN_VALUE, 0, ast.Loc{StartLine: 1})
	require.NoError(t, err)

	assert.Equal(t, 2, seq.Len())
	assert.Equal(t, LOAD_CONSTANT, seq.At(0).Op)
	assert.Equal(t, RETURN_VALUE, seq.At(1).Op)
}

func TestPlaceLabelTwiceIsAnError(t *testing.T) {
	seq := NewInstructionSeq(false)
	l := seq.NewLabel()
	require.NoError(t, seq.PlaceLabel(l))
	assert.Error(t, seq.PlaceLabel(l))
}

func TestLabelOffsetErrorsBeforePlacement(t *testing.T) {
	seq := NewInstructionSeq(false)
	l := seq.NewLabel()
	_, err := seq.LabelOffset(l)
	assert.Error(t, err)

	require.NoError(t, seq.PlaceLabel(l))
	off, err := seq.LabelOffset(l)
	require.NoError(t, err)
	assert.Equal(t, 0, off)
}

func TestEmitJumpRejectsNonJumpOpcode(t *testing.T) {
	seq := NewInstructionSeq(false)
	l := seq.NewLabel()
	_, err := seq.EmitJump(LOAD_CONSTANT, l, ast.Loc{StartLine: 1})
	assert.Error(t, err)
}

func TestInsertFrontShiftsPlacedLabelTargets(t *testing.T) {
	seq := NewInstructionSeq(false)
	_, err := seq.Emit(LOAD_CONSTANT, 0, ast.Loc{StartLine: 1})
	require.NoError(t, err)
	l := seq.NewLabel()
	require.NoError(t, seq.PlaceLabel(l))
	_, err = seq.Emit(RETURN_VALUE, 0, ast.Loc{StartLine: 1})
	require.NoError(t, err)

	seq.InsertFront(MAKE_CELL, 0, ast.NoLoc)

	off, err := seq.LabelOffset(l)
	require.NoError(t, err)
	assert.Equal(t, 2, off)
	assert.Equal(t, MAKE_CELL, seq.At(0).Op)
}

func TestTruncateDropsTrailingInstructions(t *testing.T) {
	seq := NewInstructionSeq(false)
	_, err := seq.Emit(LOAD_CONSTANT, 0, ast.Loc{StartLine: 1})
	require.NoError(t, err)
	_, err = seq.Emit(POP_TOP, 0, ast.Loc{StartLine: 1})
	require.NoError(t, err)

	seq.Truncate(1)
	assert.Equal(t, 1, seq.Len())
	assert.Equal(t, LOAD_CONSTANT, seq.At(0).Op)
}

func TestSetOverwritesInstructionInPlace(t *testing.T) {
	seq := NewInstructionSeq(false)
	_, err := seq.Emit(POP_TOP, 0, ast.Loc{StartLine: 1})
	require.NoError(t, err)

	seq.Set(0, Instruction{Op: RETURN_VALUE, Arg: 0, Loc: ast.Loc{StartLine: 1}})
	assert.Equal(t, RETURN_VALUE, seq.At(0).Op)
}

func TestAttachNestedOnlyRetainsWhenDebugCaptureEnabled(t *testing.T) {
	off := NewInstructionSeq(false)
	child := NewInstructionSeq(false)
	off.AttachNested(child)
	assert.Empty(t, off.Nested())

	on := NewInstructionSeq(true)
	on.AttachNested(child)
	assert.Len(t, on.Nested(), 1)
}
