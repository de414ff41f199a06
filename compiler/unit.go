// Package compiler is the code generator itself: it walks an *ast.Module
// and produces an *object.CodeObject tree, one per lexical scope; the
// *ast.Interactive and *ast.ExpressionRoot roots are not accepted by
// Compile. It uses symtab as its
// opaque symbol-resolution collaborator and asmx as its opaque
// label-resolving assembler.
//
// The compilation-unit stack here generalizes dr8co-kong/compiler/
// compiler.go's CompilationScope/scopes/scopeIndex machinery: where the
// teacher has one scope per function (Monkey has no classes, generators,
// or comprehensions), a unit here also represents class bodies,
// comprehension scopes, lambda bodies, and the synthetic annotation and
// type-parameter scopes PEP 649 and PEP 695 require.
package compiler

import (
	"fmt"

	"github.com/ninelines/pybc/ast"
	"github.com/ninelines/pybc/code"
	"github.com/ninelines/pybc/constpool"
	"github.com/ninelines/pybc/object"
	"github.com/ninelines/pybc/symtab"
)

// unit is one compilation unit's mutable state: its instruction buffer,
// its constant pool, the symbol-table entry that governs name
// resolution within it, and the bookkeeping needed to produce a finished
// *object.CodeObject when the unit is popped (spec §4.3).
type unit struct {
	seq    *code.InstructionSeq
	pool   *constpool.Pool
	entry  symtab.Entry
	parent *unit
	blocks []frameBlock

	filename     string
	name         string
	qualName     string
	firstLine    int
	argCount     int
	posOnlyCount int
	kwOnlyCount  int
	extraFlags   object.CodeFlag

	names     []string
	nameIndex map[string]int
	varNames  []string
	varIndex  map[string]int

	// manglePrefix is the name of the class whose body textually
	// encloses this code (mangle derives the "_ClassName" prefix from
	// it), inherited by nested function/lambda/comprehension units;
	// empty outside any class.
	manglePrefix string

	// deferredAnnotations collects this unit's annotation statements when
	// PEP 649 deferral applies, consumed by finishAnnotations just before
	// the unit's code object is produced (spec §4.10).
	deferredAnnotations []annotationEntry

	// classCellIdx is the deref index of this class body's own
	// `__class__` cell (spec §4.6 zero-arg super), set only on a unit
	// whose symtab entry reported NeedsClassClosure; -1 otherwise.
	classCellIdx int32

	// synFreeVars/synFreeIndex hold free variables the compiler itself
	// introduces that symtab never reports — currently only `__class__`
	// relayed into a method from its enclosing class body. They sit
	// after entry.SortedFreeVars() in this unit's deref space.
	synFreeVars  []string
	synFreeIndex map[string]int
}

func newUnit(parent *unit, entry symtab.Entry, filename, name, qualName string, firstLine int, debugCapture bool) *unit {
	return &unit{
		seq:          code.NewInstructionSeq(debugCapture),
		pool:         constpool.NewPool(),
		entry:        entry,
		parent:       parent,
		filename:     filename,
		name:         name,
		qualName:     qualName,
		firstLine:    firstLine,
		nameIndex:    map[string]int{},
		varIndex:     map[string]int{},
		classCellIdx: -1,
	}
}

// synFreeIdx returns the dense deref index for a compiler-synthesized
// free variable name, assigning the next index (after every real
// cellvar and freevar symtab reports) the first time it's needed.
func (u *unit) synFreeIdx(name string) int32 {
	if u.synFreeIndex == nil {
		u.synFreeIndex = map[string]int{}
	}
	if idx, ok := u.synFreeIndex[name]; ok {
		return int32(idx)
	}
	base := len(u.entry.SortedCellVars()) + len(u.entry.SortedFreeVars()) + len(u.synFreeVars)
	u.synFreeIndex[name] = base
	u.synFreeVars = append(u.synFreeVars, name)
	return int32(base)
}

// nameIdx returns the dense index for a module/global/attribute name,
// assigning the next index the first time this unit refers to it.
func (u *unit) nameIdx(name string) int32 {
	if idx, ok := u.nameIndex[name]; ok {
		return int32(idx)
	}
	idx := len(u.names)
	u.nameIndex[name] = idx
	u.names = append(u.names, name)
	return int32(idx)
}

// varIdx returns the dense fast-local index for name, assigning the
// next index the first time this unit refers to it. Parameters are
// registered up front (see enterScope) so they always land at the low
// indices CALL's argument-passing convention expects.
func (u *unit) varIdx(name string) int32 {
	if idx, ok := u.varIndex[name]; ok {
		return int32(idx)
	}
	idx := len(u.varNames)
	u.varIndex[name] = idx
	u.varNames = append(u.varNames, name)
	return int32(idx)
}

// constIdx interns v through this unit's pool against the compiler-wide
// cache and returns its dense index.
func (c *Compiler) constIdx(u *unit, v object.Value) int32 {
	return int32(u.pool.Add(c.cache, v))
}

// emit appends one instruction, panicking only on a programming error
// (an assembler-only opcode or a bad jump target), never on anything an
// AST shape could trigger — those are reported through errs before emit
// is ever called.
func (u *unit) emit(op code.Opcode, arg int32, loc ast.Loc) int {
	pos, err := u.seq.Emit(op, arg, loc)
	if err != nil {
		panic(fmt.Sprintf("compiler: %v", err))
	}
	return pos
}

func (u *unit) emitJump(op code.Opcode, l code.Label, loc ast.Loc) int {
	pos, err := u.seq.EmitJump(op, l, loc)
	if err != nil {
		panic(fmt.Sprintf("compiler: %v", err))
	}
	return pos
}

func (u *unit) newLabel() code.Label { return u.seq.NewLabel() }

func (u *unit) placeLabel(l code.Label) {
	if err := u.seq.PlaceLabel(l); err != nil {
		panic(fmt.Sprintf("compiler: %v", err))
	}
}

// codeFlags derives the full CodeFlag set from the unit's symtab entry
// and its own parameter shape (spec §6).
func (u *unit) codeFlags(args ast.Arguments) object.CodeFlag {
	flags := u.extraFlags
	if u.entry.IsFunctionLike() {
		flags |= object.FlagOptimized | object.FlagNewLocals
	}
	if args.Vararg != nil {
		flags |= object.FlagVarargs
	}
	if args.Kwarg != nil {
		flags |= object.FlagVarKeywords
	}
	if u.parent != nil && u.parent.entry.IsFunctionLike() {
		flags |= object.FlagNested
	}
	if u.entry.IsGenerator() {
		flags |= object.FlagGenerator
	}
	if u.entry.IsCoroutine() {
		flags |= object.FlagCoroutine
	}
	if u.entry.IsAsyncGenerator() {
		flags |= object.FlagAsyncGenerator
	}
	return flags
}
