// Package disasm decodes the fixed-width instruction stream a CodeObject
// carries back into a human-readable instruction listing. It is the
// read-only counterpart to asmx.Assemble: asmx turns a symbolic
// instruction sequence into bytes, this package turns the bytes back
// into (offset, opcode, arg, line) rows for cmd/pycdis's dump and browse
// subcommands.
package disasm

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/ninelines/pybc/code"
	"github.com/ninelines/pybc/object"
)

// Instr is one decoded instruction, ready for display.
type Instr struct {
	Offset int
	Op     code.Opcode
	Name   string
	Arg    int32
	Line   int
}

// Decode walks co.Code in fixed InstrWidth-byte steps (the encoding
// asmx.Assemble produces) and resolves each instruction's source line
// from co.LineTable.
func Decode(co *object.CodeObject) []Instr {
	const width = 5 // asmx.InstrWidth, duplicated to avoid an asmx->cmd dependency cycle risk
	var out []Instr
	for off := 0; off+width <= len(co.Code); off += width {
		op := code.Opcode(co.Code[off])
		arg := int32(binary.LittleEndian.Uint32(co.Code[off+1 : off+5]))
		name := fmt.Sprintf("OP(%d)", op)
		if def, err := code.Lookup(op); err == nil {
			name = def.Name
		}
		out = append(out, Instr{Offset: off, Op: op, Name: name, Arg: arg, Line: lineFor(co, off)})
	}
	return out
}

func lineFor(co *object.CodeObject, offset int) int {
	for _, e := range co.LineTable {
		if offset >= e.StartOffset && offset < e.EndOffset {
			return e.Line
		}
	}
	return -1
}

// ChildCodes returns every nested *object.CodeObject in co's constant
// pool, in constant-pool order, the way a class or function body's
// children appear when a user drills down in the browse subcommand.
func ChildCodes(co *object.CodeObject) []*object.CodeObject {
	var out []*object.CodeObject
	for _, v := range co.Consts {
		if child, ok := v.(*object.CodeObject); ok {
			out = append(out, child)
		}
	}
	return out
}

// Summary renders a one-line "qualname (file:line) argcount=N flags=0x.."
// header for co.
func Summary(co *object.CodeObject) string {
	return fmt.Sprintf("%s (%s:%d) argcount=%d flags=%#x", co.QualName, co.Filename, co.FirstLine, co.ArgCount, uint32(co.Flags))
}

// SortedNames returns names sorted for deterministic fixture listings.
func SortedNames(names []string) []string {
	out := append([]string{}, names...)
	sort.Strings(out)
	return out
}
