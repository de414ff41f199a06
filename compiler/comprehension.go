package compiler

import (
	"fmt"
	"sort"

	"github.com/ninelines/pybc/ast"
	"github.com/ninelines/pybc/code"
	"github.com/ninelines/pybc/errs"
	"github.com/ninelines/pybc/object"
	"github.com/ninelines/pybc/symtab"
)

// compileComprehension implements spec §4.9: an inlined comprehension
// shares its enclosing unit's instruction sequence and fast-locals; a
// lifted comprehension gets its own code object, taking the outermost
// iterable's iterator as its sole parameter.
func (c *Compiler) compileComprehension(node ast.Node, elt, key, value ast.Expr, gens []ast.Comprehension, buildOp, addOp code.Opcode) {
	entry, ok := c.table.EntryFor(node)
	if !ok {
		c.fail(errs.SystemError, node.Location(), "no symbol table entry for comprehension")
	}
	if entry.Inlineable() {
		u := c.cur
		loc := gens[0].Iter.Location()
		if shadowed := c.inlinedComprehensionShadows(entry, u); len(shadowed) > 0 {
			c.emitInlinedComprehensionWithStash(u, shadowed, buildOp, gens, elt, key, value, addOp, loc)
			return
		}
		u.emit(buildOp, 0, loc)
		c.emitComprehensionLoop(gens, false, func() { c.emitComprehensionElement(elt, key, value, addOp, false) })
		return
	}
	c.compileLiftedComprehension(node, elt, key, value, gens, buildOp, addOp, false)
}

// inlinedComprehensionShadows returns, in a stable order, every name the
// comprehension's own scope binds that also names a fast-local already
// live in the enclosing function-like unit — the names an inlined
// comprehension would otherwise permanently clobber (spec §4.9 Scenario
// C). A comprehension inlined directly into a module or class body has
// no fast-locals to clobber.
func (c *Compiler) inlinedComprehensionShadows(entry symtab.Entry, u *unit) []string {
	if !u.entry.IsFunctionLike() {
		return nil
	}
	var shadowed []string
	for _, name := range entry.Variables() {
		if u.entry.ScopeOf(name) == symtab.Local {
			shadowed = append(shadowed, name)
		}
	}
	sort.Strings(shadowed)
	return shadowed
}

// emitInlinedComprehensionWithStash runs an inlined comprehension whose
// loop variables shadow names already bound in the enclosing scope: the
// shadowed locals are stashed off to the side with LOAD_FAST_AND_CLEAR
// before the loop starts, and restored with STORE_FAST_MAYBE_NULL once
// it's done, on both the normal and the exceptional exit path (spec
// §4.9 Scenario C), the same SETUP_FINALLY/POP_BLOCK/RERAISE shape
// compileTryFinally uses for an ordinary finally block.
func (c *Compiler) emitInlinedComprehensionWithStash(u *unit, shadowed []string, buildOp code.Opcode, gens []ast.Comprehension, elt, key, value ast.Expr, addOp code.Opcode, loc ast.Loc) {
	c.tempCounter++
	tempName := fmt.Sprintf(".comp_stash_%d", c.tempCounter)

	for _, name := range shadowed {
		idx := u.varIdx(name)
		u.emit(code.LOAD_FAST_AND_CLEAR, idx, loc)
	}

	// SETUP_FINALLY must run before the container is built: it records
	// the stack depth to unwind to on an exception, and that depth must
	// cover only the stash values, not the container, or the cleanup
	// path below finds the container still buried under the exception
	// instead of the bare exception restoreShadowedLocals expects.
	cleanup := u.newLabel()
	end := u.newLabel()
	u.emitJump(code.SETUP_FINALLY, cleanup, loc)
	u.pushBlock(frameBlock{kind: blockFinally, cleanup: cleanup})
	u.emit(buildOp, 0, loc)
	c.emitComprehensionLoop(gens, false, func() { c.emitComprehensionElement(elt, key, value, addOp, false) })
	u.popBlock()
	u.emit(code.POP_BLOCK, 0, loc)
	c.restoreShadowedLocals(u, shadowed, tempName, loc)
	u.emitJump(code.JUMP, end, loc)

	u.placeLabel(cleanup)
	c.restoreShadowedLocals(u, shadowed, tempName, loc)
	u.emit(code.RERAISE, 0, loc)
	u.placeLabel(end)
}

// restoreShadowedLocals restores every stashed local from the top of the
// stack downward. LOAD_FAST_AND_CLEAR pushed them bottom-to-top in
// stash order, with the comprehension's own result (or the propagating
// exception) landing on top of all of them; that top value is parked in
// a uniquely-named temp fast-local first since STORE_FAST_MAYBE_NULL
// only ever touches TOS, then each shadowed name is restored in reverse
// stash order, then the temp is reloaded so the caller's stack
// discipline is unaffected.
func (c *Compiler) restoreShadowedLocals(u *unit, shadowed []string, tempName string, loc ast.Loc) {
	tempIdx := u.varIdx(tempName)
	u.emit(code.STORE_FAST, tempIdx, loc)
	for i := len(shadowed) - 1; i >= 0; i-- {
		idx := u.varIdx(shadowed[i])
		u.emit(code.STORE_FAST_MAYBE_NULL, idx, loc)
	}
	u.emit(code.LOAD_FAST, tempIdx, loc)
}

// compileGeneratorExp lifts a generator expression into its own
// generator-flagged code object; generator expressions are never
// inlined, since their whole point is lazy, resumable iteration
// (spec §4.9).
func (c *Compiler) compileGeneratorExp(n *ast.GeneratorExp) {
	c.compileLiftedComprehension(n, n.Elt, nil, nil, n.Gens, 0, 0, true)
}

// emitComprehensionElement pushes this clause's produced value(s) and
// folds them into the result container (or, for a generator body,
// yields the element and discards the resumed value).
func (c *Compiler) emitComprehensionElement(elt, key, value ast.Expr, addOp code.Opcode, isGeneratorExp bool) {
	u := c.cur
	var loc ast.Loc
	if elt != nil {
		loc = elt.Location()
	} else {
		loc = key.Location()
	}
	if isGeneratorExp {
		c.compileExpr(elt)
		u.emit(code.SEND, 0, loc)
		u.emit(code.POP_TOP, 0, loc)
		return
	}
	if key != nil {
		c.compileExpr(key)
		c.compileExpr(value)
		u.emit(addOp, 2, loc)
		return
	}
	c.compileExpr(elt)
	u.emit(addOp, 1, loc)
}

// emitComprehensionLoop emits nested FOR_ITER loops, one per generator
// clause, evaluating each clause's guard expressions with a jump back
// to that clause's FOR_ITER on failure, and calling finalize once
// control reaches the innermost clause's body.
//
// firstFromParam selects whether the very first clause's iterable is
// already sitting in this unit's parameter slot 0 (a lifted
// comprehension/generator body) rather than needing its own Iter
// expression compiled (an inlined comprehension, which shares its
// enclosing unit and therefore has no such parameter).
func (c *Compiler) emitComprehensionLoop(gens []ast.Comprehension, firstFromParam bool, finalize func()) {
	u := c.cur
	g := gens[0]
	loc := g.Iter.Location()
	if firstFromParam {
		u.emit(code.LOAD_FAST, 0, loc)
	} else {
		c.compileExpr(g.Iter)
		u.emit(code.GET_ITER, 0, loc)
	}
	top := u.newLabel()
	end := u.newLabel()
	u.placeLabel(top)
	u.emitJump(code.FOR_ITER, end, loc)
	c.bindComprehensionTarget(g.Target)
	for _, cond := range g.Ifs {
		c.compileExpr(cond)
		u.emitJump(code.JUMP_IF_FALSE, top, loc)
	}
	if len(gens) == 1 {
		finalize()
	} else {
		c.emitComprehensionLoop(gens[1:], false, finalize)
	}
	u.emitJump(code.JUMP_BACKWARD, top, loc)
	u.placeLabel(end)
	u.emit(code.END_FOR, 0, loc)
}

// bindComprehensionTarget stores the next iterated value into target.
func (c *Compiler) bindComprehensionTarget(target ast.Expr) {
	if name, ok := target.(*ast.Name); ok {
		c.nameop(c.cur, name.Id, ctxStore, target.Location())
		return
	}
	c.compileUnpackTarget(target)
}

// compileLiftedComprehension compiles a comprehension or generator
// expression as its own code object, parameterized on a single
// positional argument (the outermost iterable's iterator), and
// immediately calls it from the enclosing unit (spec §4.9: "evaluate
// the outermost iterable, and CALL 1").
func (c *Compiler) compileLiftedComprehension(node ast.Node, elt, key, value ast.Expr, gens []ast.Comprehension, buildOp, addOp code.Opcode, isGeneratorExp bool) {
	enclosing := c.cur
	loc := gens[0].Iter.Location()

	args := ast.Arguments{Args: []ast.Param{{Name: ".0"}}}
	symEntry, ok := c.table.EntryFor(node)
	if !ok {
		c.fail(errs.SystemError, loc, "no symbol table entry for comprehension")
	}
	c.enterScope(node, symEntry, "<comprehension>", c.qualifiedName("<comprehension>"), loc.StartLine, args)
	u := c.cur
	if isGeneratorExp {
		u.extraFlags |= object.FlagGenerator
	} else {
		u.emit(buildOp, 0, loc)
	}

	c.emitComprehensionLoop(gens, true, func() {
		c.emitComprehensionElement(elt, key, value, addOp, isGeneratorExp)
	})

	if isGeneratorExp {
		c.finishReturn(object.None{})
	} else {
		u.emit(code.RETURN_VALUE, 0, loc)
	}
	co, err := c.exitScope(args)
	if err != nil {
		panic(err)
	}
	idx := c.constIdx(enclosing, c.cache.Canonicalize(co))
	enclosing.emit(code.LOAD_CONSTANT, idx, loc)
	enclosing.emit(code.MAKE_FUNCTION, 0, loc)
	c.compileExpr(gens[0].Iter)
	enclosing.emit(code.GET_ITER, 0, loc)
	enclosing.emit(code.CALL, 1, loc)
}
