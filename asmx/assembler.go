// Package asmx is the minimal, non-optimizing assembler collaborator
// spec §1 and §6 leave external: it turns one scope's finished
// code.InstructionSeq into an object.CodeObject by resolving labels to
// absolute offsets, encoding the uniform-width instruction stream,
// building a line table, and computing a conservative stack-depth bound.
//
// dr8co-kong/compiler/compiler.go never needed this step as a separate
// collaborator — the teacher's Compiler patches jump operands in place,
// byte by byte, as soon as a label's target is known. Splitting the
// concern out follows spec §9's explicit design note: InstructionSeq
// only ever carries symbolic label ids, never raw byte offsets, so nothing
// about in-progress codegen depends on final addresses.
package asmx

import (
	"encoding/binary"
	"fmt"

	"github.com/ninelines/pybc/code"
	"github.com/ninelines/pybc/object"
)

// InstrWidth is the encoded byte size of every instruction: one opcode
// byte followed by a 4-byte little-endian operand (spec §3: "oparg is a
// 32-bit value"), whether or not the opcode uses it.
const InstrWidth = 5

// UnitMeta carries everything about a compilation unit that the
// compiler package's per-unit bookkeeping (spec §4.3) has already
// computed and the assembler only needs to copy onto the result.
type UnitMeta struct {
	Name         string
	QualName     string
	Filename     string
	FirstLine    int
	ArgCount     int
	PosOnlyCount int
	KwOnlyCount  int
	Flags        object.CodeFlag
	Consts       []object.Value
	Names        []string
	VarNames     []string
	CellVars     []string
	FreeVars     []string
}

// Assemble resolves every label in seq, encodes the instruction stream,
// and returns the finished code object. It returns an error if a jump
// refers to a label that was never placed (spec §8 property 3); a label
// that is allocated but never referenced by a jump is not checked.
func Assemble(seq *code.InstructionSeq, meta UnitMeta) (*object.CodeObject, error) {
	instrs := seq.Instructions()
	code_ := make([]byte, 0, len(instrs)*InstrWidth)
	for i, ins := range instrs {
		arg := ins.Arg
		if code.IsJump(ins.Op) {
			offset, err := seq.LabelOffset(code.Label(ins.Arg))
			if err != nil {
				return nil, fmt.Errorf("asmx: instruction %d: %w", i, err)
			}
			arg = int32(offset * InstrWidth)
		}
		code_ = append(code_, byte(ins.Op))
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(arg))
		code_ = append(code_, buf[:]...)
	}

	lines := buildLineTable(instrs)
	depth, err := maxStackDepth(instrs)
	if err != nil {
		return nil, err
	}

	return &object.CodeObject{
		Name:         meta.Name,
		QualName:     meta.QualName,
		Filename:     meta.Filename,
		FirstLine:    meta.FirstLine,
		ArgCount:     meta.ArgCount,
		PosOnlyCount: meta.PosOnlyCount,
		KwOnlyCount:  meta.KwOnlyCount,
		Flags:        meta.Flags,
		Consts:       meta.Consts,
		Names:        meta.Names,
		VarNames:     meta.VarNames,
		CellVars:     meta.CellVars,
		FreeVars:     meta.FreeVars,
		Code:         code_,
		StackSize:    depth,
		LineTable:    lines,
	}, nil
}

// buildLineTable collapses consecutive instructions sharing a source
// line into single entries, the minimal line-table shape spec §6 asks
// the external assembler for.
func buildLineTable(instrs code.Instructions) []object.LineEntry {
	var out []object.LineEntry
	for i, ins := range instrs {
		start := i * InstrWidth
		end := start + InstrWidth
		if len(out) > 0 && out[len(out)-1].Line == ins.Loc.StartLine && out[len(out)-1].EndOffset == start {
			out[len(out)-1].EndOffset = end
			continue
		}
		out = append(out, object.LineEntry{StartOffset: start, EndOffset: end, Line: ins.Loc.StartLine})
	}
	return out
}

// maxStackDepth conservatively simulates net stack effect per
// instruction and returns the high-water mark, treating unlisted or
// data-dependent opcodes (CALL, BUILD_*, jump targets the simulator
// cannot prove are unreachable) with a deliberately generous estimate
// rather than attempting a precise abstract interpretation. This is not
// an optimizer: it exists only to give the code object a StackSize big
// enough to be safe.
func maxStackDepth(instrs code.Instructions) (int, error) {
	depth, maxDepth := 0, 0
	apply := func(delta int) {
		depth += delta
		if depth > maxDepth {
			maxDepth = depth
		}
		if depth < 0 {
			depth = 0
		}
	}
	for _, ins := range instrs {
		def, err := code.Lookup(ins.Op)
		if err != nil {
			return 0, fmt.Errorf("asmx: %w", err)
		}
		apply(stackEffect(ins.Op, ins.Arg, def))
	}
	return maxDepth, nil
}

// stackEffect estimates one instruction's net effect on stack depth.
// Variadic opcodes (BUILD_*, CALL, UNPACK_*) consume or produce a
// number of slots proportional to their operand; everything else has a
// fixed effect following spec §4's described push/pop behavior.
func stackEffect(op code.Opcode, arg int32, def *code.Definition) int {
	n := int(arg)
	switch op {
	case code.POP_TOP, code.RETURN_VALUE, code.STORE_FAST, code.STORE_GLOBAL, code.STORE_NAME,
		code.STORE_DEREF, code.DELETE_FAST, code.DELETE_GLOBAL, code.DELETE_NAME, code.DELETE_DEREF,
		code.STORE_ATTR, code.POP_BLOCK, code.POP_EXCEPT, code.GET_ITER, code.GET_AITER,
		code.UNARY_NOT, code.UNARY_NEGATIVE, code.UNARY_POSITIVE, code.UNARY_INVERT, code.TO_BOOL,
		code.DELETE_ATTR, code.JUMP_IF_FALSE, code.JUMP_IF_TRUE, code.END_FOR, code.GET_AWAITABLE,
		code.LIST_APPEND, code.SET_ADD, code.IMPORT_FROM:
		return -1
	case code.LOAD_CONSTANT, code.LOAD_FAST, code.LOAD_GLOBAL, code.LOAD_NAME, code.LOAD_DEREF,
		code.LOAD_CLOSURE, code.LOAD_SPECIAL, code.LOAD_ATTR, code.LOAD_FAST_AND_CLEAR,
		code.LOAD_FROM_DICT_OR_DEREF, code.LOAD_FROM_DICT_OR_GLOBALS, code.RETURN_CONST,
		code.LOAD_BUILD_CLASS, code.GET_LEN:
		return 1
	case code.BINARY_ADD, code.BINARY_SUB, code.BINARY_MUL, code.BINARY_DIV, code.BINARY_FLOORDIV,
		code.BINARY_MOD, code.BINARY_POW, code.BINARY_LSHIFT, code.BINARY_RSHIFT, code.BINARY_OR,
		code.BINARY_XOR, code.BINARY_AND, code.BINARY_MATMUL, code.BINARY_SUBSCR, code.CMP,
		code.IS_OP, code.DICT_UPDATE, code.DICT_MERGE, code.SET_UPDATE,
		code.LIST_EXTEND, code.MAP_ADD:
		return -1
	case code.STORE_SUBSCR, code.STORE_SLICE:
		return -3
	case code.BUILD_SLICE:
		return 1 - n
	case code.BUILD_LIST, code.BUILD_SET, code.BUILD_TUPLE, code.BUILD_STRING:
		return 1 - n
	case code.BUILD_MAP:
		return 1 - 2*n
	case code.CALL:
		return -n
	case code.CALL_FUNCTION_EX:
		return -1
	case code.MAKE_FUNCTION:
		return 0
	case code.SET_FUNCTION_ATTRIBUTE:
		return -1
	case code.UNPACK_SEQUENCE, code.UNPACK_EX:
		return n - 1
	case code.FOR_ITER:
		return 1
	case code.SEND:
		return 0
	case code.COPY:
		return 1
	case code.SWAP:
		return 0
	case code.CHECK_EXC_MATCH, code.CHECK_EG_MATCH:
		return 1
	case code.MATCH_SEQUENCE, code.MATCH_MAPPING:
		return 1
	case code.MATCH_KEYS:
		return 1
	case code.MATCH_CLASS:
		return -2
	case code.CONVERT_VALUE, code.FORMAT_SIMPLE:
		return 0
	case code.FORMAT_WITH_SPEC:
		return -1
	case code.RAISE_VARARGS:
		return -n
	case code.RERAISE:
		return 0
	case code.WITH_EXCEPT_START:
		return 1
	case code.PUSH_EXC_INFO:
		return 1
	case code.IMPORT_NAME:
		return -1
	case code.BUILD_TYPE_PARAMS:
		return 1 - n
	default:
		if def.OperandCount == 0 {
			return 0
		}
		return 1
	}
}
