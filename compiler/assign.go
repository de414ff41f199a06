package compiler

import (
	"github.com/ninelines/pybc/ast"
	"github.com/ninelines/pybc/code"
)

// compileUnpackTarget stores TOS into target, handling plain names,
// attribute/subscript targets, and tuple/list unpacking (with at most
// one starred element) via UNPACK_SEQUENCE/UNPACK_EX.
func (c *Compiler) compileUnpackTarget(target ast.Expr) {
	u := c.cur
	loc := target.Location()
	switch t := target.(type) {
	case *ast.Name:
		c.nameop(u, t.Id, ctxStore, loc)
	case *ast.Attribute:
		c.compileExpr(t.Value)
		u.emit(code.SWAP, 2, loc)
		idx := u.nameIdx(mangle(t.Attr, u.manglePrefix))
		u.emit(code.STORE_ATTR, idx, loc)
	case *ast.Subscript:
		c.compileExpr(t.Value)
		c.compileExpr(t.Index)
		// stack: value, container, index. SWAP 2 then SWAP 3 reorders it
		// to container, index, value: the order STORE_SUBSCR takes, with
		// the value on top (as compileAugAssign's subscript case leaves it).
		u.emit(code.SWAP, 2, loc)
		u.emit(code.SWAP, 3, loc)
		u.emit(code.STORE_SUBSCR, 0, loc)
	case *ast.TupleExpr:
		c.unpackInto(t.Elts, loc)
	case *ast.ListExpr:
		c.unpackInto(t.Elts, loc)
	case *ast.Starred:
		c.compileUnpackTarget(t.Value)
	}
}

func (c *Compiler) unpackInto(elts []ast.Expr, loc ast.Loc) {
	u := c.cur
	starIdx := -1
	for i, e := range elts {
		if _, ok := e.(*ast.Starred); ok {
			starIdx = i
			break
		}
	}
	if starIdx == -1 {
		u.emit(code.UNPACK_SEQUENCE, int32(len(elts)), loc)
		for _, e := range elts {
			c.compileUnpackTarget(e)
		}
		return
	}
	before := starIdx
	after := len(elts) - starIdx - 1
	u.emit(code.UNPACK_EX, int32(before|after<<8), loc)
	for _, e := range elts {
		c.compileUnpackTarget(e)
	}
}
