package compiler

import (
	"github.com/ninelines/pybc/ast"
	"github.com/ninelines/pybc/code"
	"github.com/ninelines/pybc/config"
	"github.com/ninelines/pybc/errs"
	"github.com/ninelines/pybc/object"
)

func (c *Compiler) compileBlock(body []ast.Stmt) {
	for _, s := range body {
		c.compileStmt(s)
	}
}

// compileStmt compiles one statement, leaving the value stack exactly
// as it found it (spec §4.6).
func (c *Compiler) compileStmt(s ast.Stmt) {
	u := c.cur
	loc := s.Location()
	switch n := s.(type) {
	case *ast.ExprStmt:
		c.compileExpr(n.Value)
		u.emit(code.POP_TOP, 0, loc)

	case *ast.Assign:
		c.compileExpr(n.Value)
		for i, t := range n.Targets {
			if i < len(n.Targets)-1 {
				u.emit(code.COPY, 1, loc)
			}
			c.compileUnpackTarget(t)
		}

	case *ast.AugAssign:
		c.compileAugAssign(n)

	case *ast.AnnAssign:
		if n.Value != nil {
			c.compileExpr(n.Value)
			c.compileUnpackTarget(n.Target)
		}
		if n.Simple {
			if name, ok := n.Target.(*ast.Name); ok {
				c.deferAnnotation(name.Id, n.Annotation, loc)
			}
		}

	case *ast.Return:
		if n.Value != nil {
			c.compileExpr(n.Value)
		} else {
			c.compileExpr(&ast.Constant{Value: nil})
		}
		c.emitNonLocalExit(-1, loc)
		u.emit(code.RETURN_VALUE, 0, loc)

	case *ast.Delete:
		for _, t := range n.Targets {
			c.compileDeleteTarget(t)
		}

	case *ast.Pass:
		// nothing to emit

	case *ast.Break:
		idx := u.loopBlockIndex()
		if idx < 0 {
			c.fail(errs.SyntaxError, loc, "'break' outside loop")
		}
		loop := u.blocks[idx]
		c.emitNonLocalExit(idx, loc)
		if loop.hasIterator {
			u.emit(code.POP_TOP, 0, loc)
		}
		u.emitJump(code.JUMP, loop.loopEnd, loc)

	case *ast.Continue:
		idx := u.loopBlockIndex()
		if idx < 0 {
			c.fail(errs.SyntaxError, loc, "'continue' not properly in loop")
		}
		loop := u.blocks[idx]
		c.emitNonLocalExit(idx, loc)
		u.emitJump(code.JUMP_BACKWARD, loop.loopStart, loc)

	case *ast.Global, *ast.Nonlocal:
		// Purely a symtab-time declaration; no bytecode effect.

	case *ast.Assert:
		if c.profile.Optimize >= config.OptimizeAssert {
			return
		}
		c.compileAssert(n)

	case *ast.Raise:
		c.compileRaise(n)

	case *ast.Import:
		c.compileImport(n)

	case *ast.ImportFrom:
		c.compileImportFrom(n)

	case *ast.If:
		c.compileIf(n)

	case *ast.While:
		c.compileWhile(n)

	case *ast.For:
		c.compileFor(n)

	case *ast.Try:
		c.compileTry(n)

	case *ast.With:
		c.compileWith(n)

	case *ast.FunctionDef:
		c.compileFunctionDef(n)

	case *ast.ClassDef:
		c.compileClassDef(n)

	case *ast.TypeAlias:
		c.compileTypeAlias(n)

	case *ast.Match:
		c.compileMatch(n)

	default:
		c.fail(errs.SystemError, loc, "unhandled statement node %T", s)
	}
}

// emitNonLocalExit inlines every finally/with/except cleanup between the
// current position and stopAt (spec §4.7: "a non-local exit... must run
// every intervening finally/with-cleanup before the jump/return actually
// happens"), innermost first, falling straight through from one to the
// next. It never jumps into a block's runtime exception-dispatch label
// (SETUP_FINALLY/SETUP_WITH's own target) — that label is only for an
// actual exception unwinding through, not a normal return/break/
// continue. stopAt is -1 for a `return`, unwinding the whole stack; for
// break/continue it is the loop block's own index so the loop block
// itself isn't also treated as a cleanup to run.
func (c *Compiler) emitNonLocalExit(stopAt int, loc ast.Loc) {
	u := c.cur
	for _, b := range u.crossedBlocks(stopAt) {
		u.emit(code.POP_BLOCK, 0, loc)
		switch b.kind {
		case blockFinally:
			c.compileBlock(b.final)
		case blockWith:
			if stopAt < 0 {
				// A return value sits on top of __exit__; move it beneath.
				u.emit(code.SWAP, 2, loc)
			}
			c.emitWithExitCall(u, b.isAsync, loc)
		}
	}
}

// emitWithExitCall calls __exit__(None, None, None) and discards the
// result, the with-statement's normal (non-exceptional) exit code (spec
// §4.6). SETUP_WITH leaves the bound __exit__ method on top of the
// stack for the body's whole duration, so it's still there — at the
// same relative depth — at any exit point inside the body; a `return`
// first swaps its value beneath it (see emitNonLocalExit).
func (c *Compiler) emitWithExitCall(u *unit, isAsync bool, loc ast.Loc) {
	c.compileExpr(&ast.Constant{Value: nil})
	c.compileExpr(&ast.Constant{Value: nil})
	c.compileExpr(&ast.Constant{Value: nil})
	u.emit(code.CALL, 3, loc)
	if isAsync {
		u.emit(code.GET_AWAITABLE, 0, loc)
		c.compileExpr(&ast.Constant{Value: nil})
		u.emit(code.SEND, 0, loc)
	}
	u.emit(code.POP_TOP, 0, loc)
}

func (c *Compiler) compileAugAssign(n *ast.AugAssign) {
	u := c.cur
	loc := n.Location()
	switch t := n.Target.(type) {
	case *ast.Name:
		c.nameop(u, t.Id, ctxLoad, loc)
		c.compileExpr(n.Value)
		u.emit(binOpcode(n.Op), 0, loc)
		c.nameop(u, t.Id, ctxStore, loc)
	case *ast.Attribute:
		c.compileExpr(t.Value)
		u.emit(code.COPY, 1, loc)
		idx := u.nameIdx(mangle(t.Attr, u.manglePrefix))
		u.emit(code.LOAD_ATTR, idx, loc)
		c.compileExpr(n.Value)
		u.emit(binOpcode(n.Op), 0, loc)
		u.emit(code.SWAP, 2, loc)
		u.emit(code.STORE_ATTR, idx, loc)
	case *ast.Subscript:
		c.compileExpr(t.Value)
		c.compileExpr(t.Index)
		u.emit(code.COPY, 2, loc)
		u.emit(code.COPY, 2, loc)
		u.emit(code.BINARY_SUBSCR, 0, loc)
		c.compileExpr(n.Value)
		u.emit(binOpcode(n.Op), 0, loc)
		u.emit(code.STORE_SUBSCR, 0, loc)
	}
}

func (c *Compiler) compileDeleteTarget(target ast.Expr) {
	u := c.cur
	loc := target.Location()
	switch t := target.(type) {
	case *ast.Name:
		c.nameop(u, t.Id, ctxDelete, loc)
	case *ast.Attribute:
		c.compileExpr(t.Value)
		idx := u.nameIdx(mangle(t.Attr, u.manglePrefix))
		u.emit(code.DELETE_ATTR, idx, loc)
	case *ast.Subscript:
		c.compileExpr(t.Value)
		c.compileExpr(t.Index)
		u.emit(code.DELETE_SUBSCR, 0, loc)
	case *ast.TupleExpr:
		for _, e := range t.Elts {
			c.compileDeleteTarget(e)
		}
	}
}

// compileAssert compiles `assert test, msg` as `if not test: raise
// AssertionError(msg)` (spec §4.6), gated off entirely at optimize
// level >= 1.
func (c *Compiler) compileAssert(n *ast.Assert) {
	u := c.cur
	loc := n.Location()
	pass := u.newLabel()
	c.compileExpr(n.Test)
	u.emitJump(code.JUMP_IF_TRUE, pass, loc)
	idx := u.nameIdx("AssertionError")
	u.emit(code.LOAD_GLOBAL, idx, loc)
	if n.Msg != nil {
		c.compileExpr(n.Msg)
		u.emit(code.CALL, 1, loc)
	} else {
		u.emit(code.CALL, 0, loc)
	}
	u.emit(code.RAISE_VARARGS, 1, loc)
	u.placeLabel(pass)
}

func (c *Compiler) compileRaise(n *ast.Raise) {
	u := c.cur
	loc := n.Location()
	nargs := int32(0)
	if n.Exc != nil {
		c.compileExpr(n.Exc)
		nargs = 1
		if n.Cause != nil {
			c.compileExpr(n.Cause)
			nargs = 2
		}
	}
	u.emit(code.RAISE_VARARGS, nargs, loc)
}

func (c *Compiler) compileImport(n *ast.Import) {
	u := c.cur
	loc := n.Location()
	for _, a := range n.Names {
		idx := u.nameIdx(a.Name)
		u.emit(code.IMPORT_NAME, idx, loc)
		bindName := a.Name
		if a.AsName != "" {
			bindName = a.AsName
		}
		c.nameop(u, bindName, ctxStore, loc)
	}
}

func (c *Compiler) compileImportFrom(n *ast.ImportFrom) {
	u := c.cur
	loc := n.Location()
	modIdx := u.nameIdx(n.Module)
	u.emit(code.IMPORT_NAME, modIdx, loc)
	for _, a := range n.Names {
		if a.Name == "*" {
			u.emit(code.IMPORT_STAR, 0, loc)
			continue
		}
		u.emit(code.COPY, 1, loc)
		idx := u.nameIdx(a.Name)
		u.emit(code.IMPORT_FROM, idx, loc)
		bindName := a.Name
		if a.AsName != "" {
			bindName = a.AsName
		}
		c.nameop(u, bindName, ctxStore, loc)
	}
	u.emit(code.POP_TOP, 0, loc)
}

func (c *Compiler) compileIf(n *ast.If) {
	u := c.cur
	loc := n.Location()
	elseLabel := u.newLabel()
	c.compileExpr(n.Test)
	u.emitJump(code.JUMP_IF_FALSE, elseLabel, loc)
	c.compileBlock(n.Body)
	if len(n.OrElse) == 0 {
		u.placeLabel(elseLabel)
		return
	}
	end := u.newLabel()
	u.emitJump(code.JUMP, end, loc)
	u.placeLabel(elseLabel)
	c.compileBlock(n.OrElse)
	u.placeLabel(end)
}

func (c *Compiler) compileWhile(n *ast.While) {
	u := c.cur
	loc := n.Location()
	top := u.newLabel()
	anchor := u.newLabel() // false-test path: runs orelse
	end := u.newLabel()    // break's target: after orelse
	body := u.newLabel()
	u.placeLabel(top)
	c.compileExpr(n.Test)
	u.emitJump(code.JUMP_IF_FALSE, anchor, loc)
	u.pushBlock(frameBlock{kind: blockLoop, loopStart: top, loopEnd: end})
	u.placeLabel(body)
	c.compileBlock(n.Body)
	u.popBlock()
	u.emitJump(code.JUMP_BACKWARD, top, loc)
	u.placeLabel(anchor)
	c.compileBlock(n.OrElse)
	u.placeLabel(end)
}

func (c *Compiler) compileFor(n *ast.For) {
	if n.Async {
		c.compileAsyncFor(n)
		return
	}
	u := c.cur
	loc := n.Location()
	c.compileExpr(n.Iter)
	u.emit(code.GET_ITER, 0, loc)
	top := u.newLabel()
	anchor := u.newLabel() // exhaustion path: runs END_FOR then orelse
	end := u.newLabel()    // break's target: after orelse
	u.placeLabel(top)
	u.emitJump(code.FOR_ITER, anchor, loc)
	c.bindComprehensionTarget(n.Target)
	u.pushBlock(frameBlock{kind: blockLoop, loopStart: top, loopEnd: end, hasIterator: true})
	c.compileBlock(n.Body)
	u.popBlock()
	u.emitJump(code.JUMP_BACKWARD, top, loc)
	u.placeLabel(anchor)
	u.emit(code.END_FOR, 0, loc)
	c.compileBlock(n.OrElse)
	u.placeLabel(end)
}

func (c *Compiler) compileAsyncFor(n *ast.For) {
	u := c.cur
	loc := n.Location()
	c.compileExpr(n.Iter)
	u.emit(code.GET_AITER, 0, loc)
	top := u.newLabel()
	anchor := u.newLabel()
	end := u.newLabel()
	u.placeLabel(top)
	u.emit(code.GET_ANEXT, 0, loc)
	c.compileExpr(&ast.Constant{Value: nil})
	u.emitJump(code.SEND, anchor, loc)
	c.bindComprehensionTarget(n.Target)
	u.pushBlock(frameBlock{kind: blockLoop, loopStart: top, loopEnd: end, hasIterator: true})
	c.compileBlock(n.Body)
	u.popBlock()
	u.emitJump(code.JUMP_BACKWARD, top, loc)
	u.placeLabel(anchor)
	u.emit(code.END_ASYNC_FOR, 0, loc)
	c.compileBlock(n.OrElse)
	u.placeLabel(end)
}

// compileTry implements try/except/else/finally and, for StarExcept,
// the exception-group variant (spec §4.6): each handler tests
// CHECK_EXC_MATCH (or CHECK_EG_MATCH for except*) in turn. A handler's
// name is bound before its body and deleted after the body completes
// normally; the body is not wrapped in a finally, so an exception or
// non-local exit leaving the handler body does not clear the name, and
// the name is not set to None before the delete.
func (c *Compiler) compileTry(n *ast.Try) {
	u := c.cur
	loc := n.Location()

	if len(n.Final) > 0 {
		c.compileTryFinally(n)
		return
	}

	handlerStart := u.newLabel()
	end := u.newLabel()
	u.emitJump(code.SETUP_FINALLY, handlerStart, loc)
	u.pushBlock(frameBlock{kind: blockExcept, cleanup: handlerStart})
	c.compileBlock(n.Body)
	u.popBlock()
	u.emit(code.POP_BLOCK, 0, loc)
	c.compileBlock(n.OrElse)
	u.emitJump(code.JUMP, end, loc)

	u.placeLabel(handlerStart)
	u.emit(code.PUSH_EXC_INFO, 0, loc)
	for _, h := range n.Handlers {
		next := u.newLabel()
		if h.Type != nil {
			c.compileExpr(h.Type)
			if n.StarExcept {
				u.emit(code.CHECK_EG_MATCH, 0, h.Loc)
			} else {
				u.emit(code.CHECK_EXC_MATCH, 0, h.Loc)
			}
			u.emitJump(code.JUMP_IF_FALSE, next, h.Loc)
		}
		if h.Name != "" {
			c.nameop(u, h.Name, ctxStore, h.Loc)
		} else {
			u.emit(code.POP_TOP, 0, h.Loc)
		}
		c.compileBlock(h.Body)
		if h.Name != "" {
			c.compileDeleteTarget(&ast.Name{Id: h.Name})
		}
		u.emit(code.POP_EXCEPT, 0, h.Loc)
		u.emitJump(code.JUMP, end, h.Loc)
		u.placeLabel(next)
	}
	if n.StarExcept {
		u.emit(code.PREP_RERAISE_STAR, 0, loc)
	}
	u.emit(code.RERAISE, 0, loc)
	u.placeLabel(end)
}

func (c *Compiler) compileTryFinally(n *ast.Try) {
	u := c.cur
	loc := n.Location()
	finallyLabel := u.newLabel()
	end := u.newLabel()

	u.emitJump(code.SETUP_FINALLY, finallyLabel, loc)
	u.pushBlock(frameBlock{kind: blockFinally, cleanup: finallyLabel, final: n.Final})
	if len(n.Handlers) > 0 {
		c.compileTry(&ast.Try{Body: n.Body, Handlers: n.Handlers, OrElse: n.OrElse, StarExcept: n.StarExcept})
	} else {
		c.compileBlock(n.Body)
		c.compileBlock(n.OrElse)
	}
	u.popBlock()
	u.emit(code.POP_BLOCK, 0, loc)
	c.compileBlock(n.Final)
	u.emitJump(code.JUMP, end, loc)

	u.placeLabel(finallyLabel)
	c.compileBlock(n.Final)
	u.emit(code.RERAISE, 0, loc)
	u.placeLabel(end)
}

// compileWith implements with/async with via SETUP_WITH: the context
// manager's __enter__ result is bound (or discarded), the block runs
// under a finally-like cleanup label that calls WITH_EXCEPT_START on
// the way out, the same finally-block shape compileTryFinally uses,
// applied to the with-protocol's __exit__ call (spec §4.6).
func (c *Compiler) compileWith(n *ast.With) {
	if len(n.Items) == 0 {
		c.compileBlock(n.Body)
		return
	}
	u := c.cur
	loc := n.Location()
	item := n.Items[0]
	c.compileExpr(item.ContextExpr)
	cleanup := u.newLabel()
	u.emitJump(code.SETUP_WITH, cleanup, loc)
	if item.OptionalVar != nil {
		c.compileUnpackTarget(item.OptionalVar)
	} else {
		u.emit(code.POP_TOP, 0, loc)
	}
	u.pushBlock(frameBlock{kind: blockWith, cleanup: cleanup, isAsync: n.Async})
	if len(n.Items) > 1 {
		c.compileWith(&ast.With{Items: n.Items[1:], Body: n.Body, Async: n.Async})
	} else {
		c.compileBlock(n.Body)
	}
	u.popBlock()
	u.emit(code.POP_BLOCK, 0, loc)
	c.emitWithExitCall(u, n.Async, loc)
	end := u.newLabel()
	u.emitJump(code.JUMP, end, loc)

	u.placeLabel(cleanup)
	u.emit(code.WITH_EXCEPT_START, 0, loc)
	if n.Async {
		u.emit(code.GET_AWAITABLE, 0, loc)
		c.compileExpr(&ast.Constant{Value: nil})
		u.emit(code.SEND, 0, loc)
	}
	u.emit(code.RERAISE, 0, loc)
	u.placeLabel(end)
}

func (c *Compiler) compileFunctionDef(n *ast.FunctionDef) {
	loc := n.Location()
	if len(n.TypeParams) > 0 {
		c.compileTypeParamsScope(n, n.Name, n.TypeParams, loc, func() {
			c.compileFunctionLikeReturns(n, n.Name, n.Args, n.Decorators, n.Body, n.Returns, loc)
		})
	} else {
		c.compileFunctionLikeReturns(n, n.Name, n.Args, n.Decorators, n.Body, n.Returns, loc)
	}
	c.nameop(c.cur, n.Name, ctxStore, loc)
}

// compileTypeAlias implements the PEP 695 `type Name[params] = value`
// statement (spec §4.11): the alias's value expression is itself lazily
// evaluated (TYPE_ALIAS wraps it in a thunk the same way an annotation
// or type-parameter default is deferred), and a generic alias runs
// inside its own type-params scope exactly like a generic def/class.
func (c *Compiler) compileTypeAlias(n *ast.TypeAlias) {
	loc := n.Location()
	build := func() {
		u := c.cur
		nameIdx := c.constIdx(u, c.cache.Canonicalize(object.Str{Value: n.Name}))
		u.emit(code.LOAD_CONSTANT, nameIdx, loc)
		c.compileTypeParamThunk(n.Name+".evaluate_value", n.Value, loc)
		u.emit(code.BUILD_TUPLE, 2, loc)
		u.emit(code.CALL_INTRINSIC_1, intrinsicTypeAlias, loc)
	}
	if len(n.TypeParams) > 0 {
		c.compileTypeParamsScope(n, n.Name, n.TypeParams, loc, build)
	} else {
		build()
	}
	c.nameop(c.cur, n.Name, ctxStore, loc)
}
