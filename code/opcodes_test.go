package code

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupReturnsDefinitionForKnownOpcode(t *testing.T) {
	def, err := Lookup(RETURN_VALUE)
	require.NoError(t, err)
	assert.Equal(t, "RETURN_VALUE", def.Name)
	assert.Equal(t, 0, def.OperandCount)
}

func TestLookupErrorsForUndefinedOpcode(t *testing.T) {
	_, err := Lookup(Opcode(255))
	assert.Error(t, err)
}

func TestIsJumpClassifiesJumpBearingOpcodes(t *testing.T) {
	assert.True(t, IsJump(JUMP))
	assert.True(t, IsJump(FOR_ITER))
	assert.False(t, IsJump(LOAD_CONSTANT))
	assert.False(t, IsJump(RETURN_VALUE))
}
