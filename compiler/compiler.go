package compiler

import (
	"fmt"

	"github.com/ninelines/pybc/asmx"
	"github.com/ninelines/pybc/ast"
	"github.com/ninelines/pybc/code"
	"github.com/ninelines/pybc/config"
	"github.com/ninelines/pybc/constpool"
	"github.com/ninelines/pybc/errs"
	"github.com/ninelines/pybc/internal/diag"
	"github.com/ninelines/pybc/object"
	"github.com/ninelines/pybc/symtab"
)

// Compiler drives the whole scope-transition pipeline: it owns the
// compilation-unit stack, the compile-wide constant cache, the
// collected warnings, and the options that gate optional emission
// (spec §4.3 through §4.12).
//
// One Compiler handles exactly one Compile call; construct a fresh one
// per invocation the way dr8co-kong's compiler.New does for its own,
// much smaller, Compiler.
type Compiler struct {
	cache    *constpool.Cache
	table    *symtab.Table
	profile  config.CompileProfile
	errs     *errs.Collector
	log      *diag.Logger
	filename string

	cur       *unit
	qualStack []string

	// tempCounter hands out unique synthetic fast-local names (e.g. the
	// stash slot an inlined comprehension's LOAD_FAST_AND_CLEAR/
	// STORE_FAST_MAYBE_NULL dance needs, spec §4.9), so nested uses never
	// collide within the same unit.
	tempCounter int

	// moduleFutureAnnotations caches whether the module being compiled
	// declared `from __future__ import annotations`, consulted by
	// finishAnnotations (spec §4.10, §8 property 9).
	moduleFutureAnnotations bool
}

// New creates a Compiler configured by profile, logging through log (a
// nil log is replaced with a fresh stderr logger, matching dr8co-kong's
// New taking no logging argument at all — correlation ids are this
// generator's own addition).
func New(profile config.CompileProfile, log *diag.Logger) *Compiler {
	if log == nil {
		log = diag.New(nil)
	}
	return &Compiler{
		cache:   constpool.NewCache(),
		profile: profile,
		errs:    &errs.Collector{},
		log:     log,
	}
}

// Warnings returns every SyntaxWarning collected during the most recent
// Compile call.
func (c *Compiler) Warnings() []*errs.Error { return c.errs.Warnings }

// Compile turns mod into a top-level *object.CodeObject, recursively
// compiling every nested function, class, lambda, and comprehension
// scope the symbol table discovers (spec §2 item 12).
func (c *Compiler) Compile(mod *ast.Module, filename string) (co *object.CodeObject, err error) {
	c.filename = filename
	c.table = symtab.Build(mod)
	c.moduleFutureAnnotations = mod.FutureFeatures["annotations"]
	c.log.Infof("compiling %s", filename)

	defer func() {
		if r := recover(); r != nil {
			if se, ok := r.(*errs.Error); ok {
				err = se
				return
			}
			panic(r)
		}
	}()

	entry, ok := c.table.EntryFor(mod)
	if !ok {
		return nil, fmt.Errorf("compiler: no module scope entry")
	}
	c.enterScope(mod, entry, "<module>", "<module>", 0, ast.Arguments{})
	c.compileBlock(mod.Body)
	c.finishAnnotations(mod, ast.Loc{StartLine: 0})
	c.finishReturn(object.None{})
	return c.exitScope(ast.Arguments{})
}

// enterScope pushes a fresh compilation unit (spec §4.3: "enter_scope").
func (c *Compiler) enterScope(node ast.Node, entry symtab.Entry, name, qualName string, firstLine int, args ast.Arguments) {
	u := newUnit(c.cur, entry, c.filename, name, qualName, firstLine, c.profile.DebugCapture)
	if c.cur != nil {
		u.manglePrefix = c.cur.manglePrefix
		if c.cur.entry.Kind() == symtab.ClassScopeKind {
			u.manglePrefix = c.cur.name
		}
	}
	registerParams(u, args)
	c.cur = u
	c.qualStack = append(c.qualStack, qualName)
}

// registerParams assigns fast-local indices to parameters up front, in
// the order CALL's argument-passing convention expects: positional
// (including positional-only), then *args, then keyword-only, then
// **kwargs (spec §3 argcount/posonlyargcount/kwonlyargcount).
func registerParams(u *unit, args ast.Arguments) {
	for _, p := range args.PosOnly {
		u.varIdx(p.Name)
	}
	for _, p := range args.Args {
		u.varIdx(p.Name)
	}
	if args.Vararg != nil {
		u.varIdx(args.Vararg.Name)
	}
	for _, p := range args.KwOnly {
		u.varIdx(p.Name)
	}
	if args.Kwarg != nil {
		u.varIdx(args.Kwarg.Name)
	}
	u.argCount = len(args.PosOnly) + len(args.Args)
	u.posOnlyCount = len(args.PosOnly)
	u.kwOnlyCount = len(args.KwOnly)
}

// exitScope assembles the current unit into a code object, makes every
// cell variable via MAKE_CELL, prepends RESUME_AT_FUNC_START, and pops
// back to the parent unit (spec §4.3: "exit_scope / produce_code_object").
// Generator, coroutine and async-generator bodies differ only in their
// code flags; no StopIteration-conversion handler is inserted around them.
func (c *Compiler) exitScope(args ast.Arguments) (*object.CodeObject, error) {
	u := c.cur
	if len(u.blocks) != 0 {
		return nil, fmt.Errorf("compiler: unbalanced frame-block stack exiting %s", u.qualName)
	}

	// Every MAKE_CELL — including the synthetic __class__ cell a class
	// body needing a classcell owns — must run before any other
	// instruction, and RESUME_AT_FUNC_START (spec §4.3 enter_scope, §8
	// Scenario A) must be the very first of all. InsertFront always
	// prepends at offset 0, so the call order here is back to front:
	// the classcell first, then real cellvars high-to-low, then RESUME
	// last so it ends up truly first, followed by the real cellvars
	// low-to-high and then the classcell.
	if u.classCellIdx >= 0 {
		u.seq.InsertFront(code.MAKE_CELL, u.classCellIdx, ast.NoLoc)
	}
	cells := u.entry.SortedCellVars()
	for i := len(cells) - 1; i >= 0; i-- {
		u.seq.InsertFront(code.MAKE_CELL, int32(i), ast.NoLoc)
	}
	u.seq.InsertFront(code.RESUME_AT_FUNC_START, 0, ast.NoLoc)

	cellVars := cells
	if u.classCellIdx >= 0 {
		cellVars = append(append([]string{}, cells...), "__class__")
	}
	freeVars := u.entry.SortedFreeVars()
	if len(u.synFreeVars) > 0 {
		freeVars = append(append([]string{}, freeVars...), u.synFreeVars...)
	}

	meta := asmx.UnitMeta{
		Name:         u.name,
		QualName:     u.qualName,
		Filename:     u.filename,
		FirstLine:    u.firstLine,
		ArgCount:     u.argCount,
		PosOnlyCount: u.posOnlyCount,
		KwOnlyCount:  u.kwOnlyCount,
		Flags:        u.codeFlags(args),
		Consts:       u.pool.Values(),
		Names:        u.names,
		VarNames:     u.varNames,
		CellVars:     cellVars,
		FreeVars:     freeVars,
	}
	co, err := asmx.Assemble(u.seq, meta)
	if err != nil {
		return nil, err
	}

	c.cur = u.parent
	c.qualStack = c.qualStack[:len(c.qualStack)-1]
	return co, nil
}

// qualifiedName joins the current qualname stack, inserting the
// "<locals>" marker CPython's qualname convention uses whenever a name
// is nested inside a function rather than a class (spec §6 qualname).
func (c *Compiler) qualifiedName(name string) string {
	if c.cur == nil || len(c.qualStack) == 0 {
		return name
	}
	prefix := c.qualStack[len(c.qualStack)-1]
	if c.cur.entry.IsFunctionLike() && c.cur.entry.Kind() != symtab.ClassScopeKind {
		return prefix + ".<locals>." + name
	}
	return prefix + "." + name
}

// finishReturn appends a RETURN_CONST for a trivial fall-off-the-end
// return, mirroring dr8co-kong's final implicit OpReturn emission when
// a block's last statement isn't already a return.
func (c *Compiler) finishReturn(v object.Value) {
	idx := c.constIdx(c.cur, c.cache.Canonicalize(v))
	c.cur.emit(code.RETURN_CONST, idx, ast.NoLoc)
}
