package compiler

import (
	"strings"

	"github.com/ninelines/pybc/ast"
	"github.com/ninelines/pybc/code"
	"github.com/ninelines/pybc/symtab"
)

// nameCtx is the load/store/delete direction a nameop call needs,
// mirroring ast.ExprContext but kept local so this file doesn't need to
// import ast for anything but Loc.
type nameCtx int

const (
	ctxLoad nameCtx = iota
	ctxStore
	ctxDelete
)

// mangle applies class-private name mangling (spec §4.4 nameop): an
// identifier with at least two leading underscores and at most one
// trailing underscore, referenced textually inside a class body,
// becomes _ClassName__identifier, with ClassName's own leading
// underscores stripped.
func mangle(name, enclosingClass string) string {
	if enclosingClass == "" {
		return name
	}
	if !strings.HasPrefix(name, "__") || strings.HasSuffix(name, "__") {
		return name
	}
	stripped := strings.TrimLeft(enclosingClass, "_")
	if stripped == "" {
		return name
	}
	return "_" + stripped + name
}

// deref indices live in one combined space: cellvars first, then
// freevars, the layout dr8co-kong's LOAD_DEREF-equivalent free-variable
// array already uses for captured upvalues.
func derefIndex(entry symtab.Entry, name string) int32 {
	cells := entry.SortedCellVars()
	for i, n := range cells {
		if n == name {
			return int32(i)
		}
	}
	frees := entry.SortedFreeVars()
	for i, n := range frees {
		if n == name {
			return int32(len(cells) + i)
		}
	}
	return -1
}

// nameop emits the correct load/store/delete opcode for name in u,
// given its symtab classification, generalizing dr8co-kong/compiler/
// compiler.go's loadSymbol (which only ever had to choose among
// Global/Local/Free/Builtin) to the five-way lattice and to the
// class-scope compound ops spec §4.4 step 5 describes.
func (c *Compiler) nameop(u *unit, rawName string, ctx nameCtx, loc ast.Loc) {
	name := mangle(rawName, u.manglePrefix)
	scope := u.entry.ScopeOf(name)
	functionLike := u.entry.IsFunctionLike()

	switch scope {
	case symtab.Cell, symtab.Free:
		idx := derefIndex(u.entry, name)
		switch ctx {
		case ctxLoad:
			if u.entry.Kind() == symtab.ClassScopeKind {
				u.emit(code.LOAD_FROM_DICT_OR_DEREF, idx, loc)
			} else {
				u.emit(code.LOAD_DEREF, idx, loc)
			}
		case ctxStore:
			u.emit(code.STORE_DEREF, idx, loc)
		case ctxDelete:
			u.emit(code.DELETE_DEREF, idx, loc)
		}
	case symtab.Local:
		if functionLike {
			idx := u.varIdx(name)
			switch ctx {
			case ctxLoad:
				u.emit(code.LOAD_FAST, idx, loc)
			case ctxStore:
				u.emit(code.STORE_FAST, idx, loc)
			case ctxDelete:
				u.emit(code.DELETE_FAST, idx, loc)
			}
			return
		}
		idx := u.nameIdx(name)
		switch ctx {
		case ctxLoad:
			u.emit(code.LOAD_NAME, idx, loc)
		case ctxStore:
			u.emit(code.STORE_NAME, idx, loc)
		case ctxDelete:
			u.emit(code.DELETE_NAME, idx, loc)
		}
	case symtab.GlobalImplicit:
		if !functionLike {
			// Module and class scopes resolve an implicit global the same
			// slow way a LOCAL there does: check the scope's own namespace
			// first, falling back to the module globals (spec §4.4 table:
			// "GLOBAL_IMPLICIT, otherwise -> name-lookup").
			idx := u.nameIdx(name)
			switch ctx {
			case ctxLoad:
				u.emit(code.LOAD_NAME, idx, loc)
			case ctxStore:
				u.emit(code.STORE_NAME, idx, loc)
			case ctxDelete:
				u.emit(code.DELETE_NAME, idx, loc)
			}
			return
		}
		idx := u.nameIdx(name)
		switch ctx {
		case ctxLoad:
			if u.entry.Kind() == symtab.ClassScopeKind {
				u.emit(code.LOAD_FROM_DICT_OR_GLOBALS, idx, loc)
			} else {
				u.emit(code.LOAD_GLOBAL, idx, loc)
			}
		case ctxStore:
			u.emit(code.STORE_GLOBAL, idx, loc)
		case ctxDelete:
			u.emit(code.DELETE_GLOBAL, idx, loc)
		}
	case symtab.GlobalExplicit:
		idx := u.nameIdx(name)
		switch ctx {
		case ctxLoad:
			if u.entry.Kind() == symtab.ClassScopeKind {
				u.emit(code.LOAD_FROM_DICT_OR_GLOBALS, idx, loc)
			} else {
				u.emit(code.LOAD_GLOBAL, idx, loc)
			}
		case ctxStore:
			u.emit(code.STORE_GLOBAL, idx, loc)
		case ctxDelete:
			u.emit(code.DELETE_GLOBAL, idx, loc)
		}
	default: // Unknown: spec §4.4's table routes this to the name-lookup
		// family, not the global family — the same opcodes a non-
		// function-like LOCAL uses, since nothing in the scope chain
		// claims the name.
		if name == "__class__" && ctx == ctxLoad {
			if idx, ok := c.classCellDeref(u); ok {
				u.emit(code.LOAD_DEREF, idx, loc)
				return
			}
		}
		idx := u.nameIdx(name)
		switch ctx {
		case ctxLoad:
			u.emit(code.LOAD_NAME, idx, loc)
		case ctxStore:
			u.emit(code.STORE_NAME, idx, loc)
		case ctxDelete:
			u.emit(code.DELETE_NAME, idx, loc)
		}
	}
}

// classCellDeref resolves a literal `__class__` reference inside a
// method whose immediately enclosing scope is a class body that needed
// a __classcell__ (spec §4.6). symtab never records `__class__` as a
// bound name anywhere, so it always falls out of the ordinary lattice
// as Unknown; this is the one place the compiler steps in directly,
// relaying the enclosing class body's own cell into this unit's free
// variables. Only one level of nesting is resolved this way — a
// function nested inside the method would need the relay threaded
// another level, which isn't implemented.
func (c *Compiler) classCellDeref(u *unit) (int32, bool) {
	if u.parent == nil || u.parent.classCellIdx < 0 {
		return 0, false
	}
	return u.synFreeIdx("__class__"), true
}
