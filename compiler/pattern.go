package compiler

import (
	"github.com/ninelines/pybc/ast"
	"github.com/ninelines/pybc/code"
	"github.com/ninelines/pybc/object"
)

// compileMatch implements PEP 634 structural pattern matching
// (spec §4.8): the subject is evaluated once, then each case's pattern
// is tested against a COPY of it so a failed match can fall through to
// the next case without re-evaluating the subject expression.
func (c *Compiler) compileMatch(n *ast.Match) {
	u := c.cur
	loc := n.Location()
	c.compileExpr(n.Subject)
	end := u.newLabel()
	for _, cs := range n.Cases {
		next := u.newLabel()
		u.emit(code.COPY, 1, loc)
		c.compilePattern(cs.Pattern, next)
		if cs.Guard != nil {
			c.compileExpr(cs.Guard)
			u.emitJump(code.JUMP_IF_FALSE, next, loc)
		}
		u.emit(code.POP_TOP, 0, loc) // drop the subject copy, captures already bound
		c.compileBlock(cs.Body)
		u.emitJump(code.JUMP, end, loc)
		u.placeLabel(next)
	}
	u.emit(code.POP_TOP, 0, loc) // no case matched; drop the subject
	u.placeLabel(end)
}

// compilePattern tests TOS against p, jumping to failPop (which expects
// the tested value still on TOS to pop) the moment the pattern cannot
// match. On success, TOS is left as it was and any capture names have
// already been stored (spec §4.8 "fail_pop ladders").
func (c *Compiler) compilePattern(p ast.Pattern, failPop code.Label) {
	u := c.cur
	loc := p.Location()
	switch pat := p.(type) {
	case *ast.MatchValue:
		c.compileExpr(pat.Value)
		u.emit(code.CMP, int32(ast.Eq), loc)
		u.emitJump(code.JUMP_IF_FALSE, failPop, loc)
		u.emit(code.POP_TOP, 0, loc)

	case *ast.MatchSingleton:
		idx := c.constIdx(u, c.cache.Canonicalize(goValueToConst(pat.Value)))
		u.emit(code.LOAD_CONSTANT, idx, loc)
		u.emit(code.IS_OP, 0, loc)
		u.emitJump(code.JUMP_IF_FALSE, failPop, loc)
		u.emit(code.POP_TOP, 0, loc)

	case *ast.MatchSequence:
		u.emit(code.MATCH_SEQUENCE, 0, loc)
		u.emitJump(code.JUMP_IF_FALSE, failPop, loc)
		u.emit(code.POP_TOP, 0, loc)
		u.emit(code.GET_LEN, 0, loc)
		lenConst := c.constIdx(u, c.cache.Canonicalize(object.Int{Value: int64(len(pat.Elts))}))
		u.emit(code.LOAD_CONSTANT, lenConst, loc)
		u.emit(code.CMP, int32(ast.Eq), loc)
		u.emitJump(code.JUMP_IF_FALSE, failPop, loc)
		u.emit(code.POP_TOP, 0, loc)
		u.emit(code.UNPACK_SEQUENCE, int32(len(pat.Elts)), loc)
		for _, elt := range pat.Elts {
			c.compileSubPattern(elt, failPop)
		}

	case *ast.MatchMapping:
		u.emit(code.MATCH_MAPPING, 0, loc)
		u.emitJump(code.JUMP_IF_FALSE, failPop, loc)
		u.emit(code.POP_TOP, 0, loc)
		for i, k := range pat.Keys {
			c.compileExpr(k)
			_ = i
		}
		u.emit(code.BUILD_TUPLE, int32(len(pat.Keys)), loc)
		u.emit(code.MATCH_KEYS, 0, loc)
		u.emitJump(code.JUMP_IF_FALSE, failPop, loc)
		for _, v := range pat.Values {
			c.compileSubPattern(v, failPop)
		}
		if pat.Rest != "" {
			c.nameop(u, pat.Rest, ctxStore, loc)
		}

	case *ast.MatchClass:
		c.compileExpr(pat.Cls)
		u.emit(code.MATCH_CLASS, int32(len(pat.Patterns)), loc)
		u.emitJump(code.JUMP_IF_FALSE, failPop, loc)
		u.emit(code.POP_TOP, 0, loc)
		for _, sub := range pat.Patterns {
			c.compileSubPattern(sub, failPop)
		}
		for _, sub := range pat.KwdPatterns {
			c.compileSubPattern(sub, failPop)
		}

	case *ast.MatchStar:
		if pat.Name != "" {
			c.nameop(u, pat.Name, ctxStore, loc)
		} else {
			u.emit(code.POP_TOP, 0, loc)
		}

	case *ast.MatchAs:
		if pat.Pattern != nil {
			c.compileSubPattern(pat.Pattern, failPop)
		}
		if pat.Name != "" {
			u.emit(code.COPY, 1, loc)
			c.nameop(u, pat.Name, ctxStore, loc)
		}

	case *ast.MatchOr:
		success := u.newLabel()
		for i, alt := range pat.Patterns {
			next := u.newLabel()
			u.emit(code.COPY, 1, loc)
			c.compilePattern(alt, next)
			u.emitJump(code.JUMP, success, loc)
			u.placeLabel(next)
			if i < len(pat.Patterns)-1 {
				u.emit(code.POP_TOP, 0, loc)
			} else {
				u.emitJump(code.JUMP, failPop, loc)
			}
		}
		u.placeLabel(success)
	}
}

// compileSubPattern matches a pattern against the value already on TOS
// (consumed regardless of success or failure), used for sequence
// elements, mapping values, and class sub-patterns that MATCH_SEQUENCE/
// MATCH_KEYS/MATCH_CLASS have already unpacked onto the stack.
func (c *Compiler) compileSubPattern(p ast.Pattern, outerFail code.Label) {
	u := c.cur
	loc := p.Location()
	local := u.newLabel()
	skip := u.newLabel()
	c.compilePattern(p, local)
	u.emit(code.POP_TOP, 0, loc)
	u.emitJump(code.JUMP, skip, loc)
	u.placeLabel(local)
	u.emit(code.POP_TOP, 0, loc)
	u.emitJump(code.JUMP, outerFail, loc)
	u.placeLabel(skip)
}
