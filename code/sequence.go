package code

import (
	"fmt"

	"github.com/ninelines/pybc/ast"
)

// Label is an opaque jump target within one InstructionSeq. A label is
// either unplaced or placed exactly once (spec §3, §8 property 3).
type Label int

// noTarget marks a label that has not yet been placed.
const noTarget = -1

// Instruction is one emitted opcode plus its operand and source location
// (spec §3). Arg holds a plain integer for most opcodes, or a Label id —
// until the assembler resolves it through LabelOffset — for jump-bearing
// opcodes.
type Instruction struct {
	Op  Opcode
	Arg int32
	Loc ast.Loc
}

// Instructions is an ordered list of emitted instructions.
type Instructions []Instruction

// InstructionSeq is the append-only per-scope instruction buffer
// (spec §4.1): it supports label allocation, one-time label placement,
// append, head-insertion (the compiler's exitScope uses it to prepend
// MAKE_CELL and RESUME_AT_FUNC_START), and nested-sequence capture for
// diagnostic/debug-mode output.
type InstructionSeq struct {
	instructions Instructions
	labelTarget  []int // labelTarget[id] == noTarget until placed
	nested       []*InstructionSeq
	debugCapture bool
}

// NewInstructionSeq creates an empty sequence. debugCapture mirrors the
// "debug mode" flag in spec §5: when set, AttachNested actually retains
// nested sequences instead of discarding them, for pre-optimization
// inspection. The compiler never calls AttachNested; only this package's
// tests exercise it.
func NewInstructionSeq(debugCapture bool) *InstructionSeq {
	return &InstructionSeq{debugCapture: debugCapture}
}

// NewLabel allocates a fresh, unplaced label.
func (s *InstructionSeq) NewLabel() Label {
	s.labelTarget = append(s.labelTarget, noTarget)
	return Label(len(s.labelTarget) - 1)
}

// PlaceLabel binds L to the index of the next instruction appended.
// It is an error to place a label twice.
func (s *InstructionSeq) PlaceLabel(l Label) error {
	if int(l) < 0 || int(l) >= len(s.labelTarget) {
		return fmt.Errorf("code: label %d not allocated in this sequence", l)
	}
	if s.labelTarget[l] != noTarget {
		return fmt.Errorf("code: label %d already placed at %d", l, s.labelTarget[l])
	}
	s.labelTarget[l] = len(s.instructions)
	return nil
}

// Emit appends one instruction and returns its index. It rejects
// assembler-only opcodes (spec §4.1).
func (s *InstructionSeq) Emit(op Opcode, arg int32, loc ast.Loc) (int, error) {
	if IsAssemblerOnly(op) {
		return 0, fmt.Errorf("code: opcode %s may not be emitted by the compiler", mustName(op))
	}
	pos := len(s.instructions)
	s.instructions = append(s.instructions, Instruction{Op: op, Arg: arg, Loc: loc})
	return pos, nil
}

// EmitJump appends a jump-bearing instruction whose operand is l's id,
// to be resolved to an absolute offset at assembly time.
func (s *InstructionSeq) EmitJump(op Opcode, l Label, loc ast.Loc) (int, error) {
	if !IsJump(op) {
		return 0, fmt.Errorf("code: %s does not take a label operand", mustName(op))
	}
	return s.Emit(op, int32(l), loc)
}

// InsertFront prepends one instruction at offset 0, shifting every
// existing instruction and previously-placed label target down by one.
// The compiler's exitScope calls it several times per scope: once per
// MAKE_CELL and once for RESUME_AT_FUNC_START.
func (s *InstructionSeq) InsertFront(op Opcode, arg int32, loc ast.Loc) {
	s.instructions = append(Instructions{{Op: op, Arg: arg, Loc: loc}}, s.instructions...)
	for i, t := range s.labelTarget {
		if t != noTarget {
			s.labelTarget[i] = t + 1
		}
	}
}

// AttachNested records a child sequence verbatim. Outside debug-capture
// mode this is a no-op: nested sequences are diagnostic-only and must
// never affect the assembled output (spec §5: "a debug mode flag toggles
// nested sequence capture; this must not alter semantics of produced
// code").
func (s *InstructionSeq) AttachNested(child *InstructionSeq) {
	if s.debugCapture {
		s.nested = append(s.nested, child)
	}
}

// Nested returns the sequences captured by AttachNested, or nil when
// debug capture was off.
func (s *InstructionSeq) Nested() []*InstructionSeq { return s.nested }

// Len reports the number of instructions currently in the sequence.
func (s *InstructionSeq) Len() int { return len(s.instructions) }

// Instructions returns the emitted instruction list. The returned slice
// must be treated as read-only by callers outside this package.
func (s *InstructionSeq) Instructions() Instructions { return s.instructions }

// At returns the instruction at index i.
func (s *InstructionSeq) At(i int) Instruction { return s.instructions[i] }

// Set overwrites the instruction at index i, used by the compiler to
// patch a trailing POP_TOP into RETURN_VALUE without re-emitting the
// whole tail (mirrors dr8co-kong's replaceLastPopWithReturn).
func (s *InstructionSeq) Set(i int, ins Instruction) { s.instructions[i] = ins }

// Truncate drops every instruction from index i onward, used to remove a
// redundant trailing instruction the way dr8co-kong's removeLastPop does.
func (s *InstructionSeq) Truncate(i int) { s.instructions = s.instructions[:i] }

// LabelOffset returns the resolved instruction index for a placed label,
// or an error if it was never placed (spec §8 property 3).
func (s *InstructionSeq) LabelOffset(l Label) (int, error) {
	if int(l) < 0 || int(l) >= len(s.labelTarget) {
		return 0, fmt.Errorf("code: label %d not allocated in this sequence", l)
	}
	off := s.labelTarget[l]
	if off == noTarget {
		return 0, fmt.Errorf("code: label %d was allocated but never placed", l)
	}
	return off, nil
}

// NumLabels reports how many labels have been allocated, for validation
// by callers that want to check every label reached a placement.
func (s *InstructionSeq) NumLabels() int { return len(s.labelTarget) }

func mustName(op Opcode) string {
	if def, err := Lookup(op); err == nil {
		return def.Name
	}
	return fmt.Sprintf("opcode(%d)", op)
}

// String renders the sequence as a human-readable disassembly listing,
// resolving jump operands to "-> idx" where possible, in the spirit of
// dr8co-kong/code.Instructions.String used by the teacher's REPL and
// debug tooling.
func (s *InstructionSeq) String() string {
	out := ""
	for i, ins := range s.instructions {
		def, err := Lookup(ins.Op)
		name := fmt.Sprintf("opcode(%d)", ins.Op)
		operandCount := 0
		if err == nil {
			name = def.Name
			operandCount = def.OperandCount
		}
		switch {
		case operandCount == 0:
			out += fmt.Sprintf("%04d %s\n", i, name)
		case IsJump(ins.Op):
			target := "?"
			if off, lerr := s.LabelOffset(Label(ins.Arg)); lerr == nil {
				target = fmt.Sprintf("%04d", off)
			}
			out += fmt.Sprintf("%04d %s -> %s\n", i, name, target)
		default:
			out += fmt.Sprintf("%04d %s %d\n", i, name, ins.Arg)
		}
	}
	return out
}
