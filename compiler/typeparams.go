package compiler

import (
	"github.com/ninelines/pybc/ast"
	"github.com/ninelines/pybc/code"
	"github.com/ninelines/pybc/errs"
	"github.com/ninelines/pybc/object"
	"github.com/ninelines/pybc/symtab"
)

// CALL_INTRINSIC_1 argument tags for the PEP 695 family (spec §4.11) plus
// the PEP 695 type-alias intrinsic compileTypeAlias already used with a
// bare placeholder operand.
const (
	intrinsicTypeAlias = iota
	intrinsicTypeVar
	intrinsicParamSpec
	intrinsicTypeVarTuple
	intrinsicSetTypeParamDefault
	intrinsicSetTypeParams
)

// compileTypeParamsScope wraps a generic function, class, or type alias in
// the synthetic "type-params scope" spec §4.11 describes: every declared
// TypeVar/ParamSpec/TypeVarTuple is materialized there, assembled into
// __type_params__, and buildInner (the ordinary function/class/alias
// codegen, unmodified) runs nested inside it so the produced object can
// have its __type_params__ attached before the scope returns it.
//
// Name resolution for a type parameter referenced from inside buildInner
// still goes through the enclosing scope's ordinary global/nonlocal
// lookup rather than a dedicated free-variable slot: the symbol table
// collaborator this generator consumes does not perform PEP 695 scope
// analysis (that classification lives with the front end, out of scope
// here per spec §1/§6), so the cell/free wiring a fully conformant
// implementation would need is not available from EntryFor. The
// intrinsics, the default-ordering rule, and __type_params__ itself are
// implemented in full.
func (c *Compiler) compileTypeParamsScope(owner ast.Node, defName string, params []ast.TypeParam, loc ast.Loc, buildInner func()) {
	enclosing := c.cur
	locals := map[string]bool{}
	for _, p := range params {
		locals[p.Name] = true
	}
	entry := &syntheticEntry{kind: symtab.TypeParamsScopeKind, locals: locals}
	c.enterScope(owner, entry, defName, c.qualifiedName(defName), loc.StartLine, ast.Arguments{})
	u := c.cur

	sawDefault := false
	for _, p := range params {
		if p.Default != nil {
			sawDefault = true
		} else if sawDefault {
			c.fail(errs.SyntaxError, p.Loc, "non-default type parameter %q follows a type parameter with a default", p.Name)
		}
		c.compileTypeParam(u, p)
	}
	for _, p := range params {
		c.nameop(u, p.Name, ctxLoad, p.Loc)
	}
	u.emit(code.BUILD_TYPE_PARAMS, int32(len(params)), loc)
	tpIdx := u.varIdx(".type_params")
	u.emit(code.STORE_FAST, tpIdx, loc)

	buildInner()

	u.emit(code.LOAD_FAST, tpIdx, loc)
	u.emit(code.BUILD_TUPLE, 2, loc)
	u.emit(code.CALL_INTRINSIC_1, intrinsicSetTypeParams, loc)
	u.emit(code.RETURN_VALUE, 0, loc)

	co, err := c.exitScope(ast.Arguments{})
	if err != nil {
		panic(err)
	}
	idx := c.constIdx(enclosing, c.cache.Canonicalize(co))
	enclosing.emit(code.LOAD_CONSTANT, idx, loc)
	enclosing.emit(code.MAKE_FUNCTION, 0, loc)
	enclosing.emit(code.CALL, 0, loc)
}

// compileTypeParam emits one parameter's TYPEVAR/PARAMSPEC/TYPEVARTUPLE
// construction and stores the result under its own name in u, the
// type-params scope unit (spec §4.11 bullet 1).
func (c *Compiler) compileTypeParam(u *unit, p ast.TypeParam) {
	nameIdx := c.constIdx(u, c.cache.Canonicalize(object.Str{Value: p.Name}))
	u.emit(code.LOAD_CONSTANT, nameIdx, p.Loc)
	if p.Bound != nil {
		c.compileTypeParamThunk(p.Name+".evaluate_bound", p.Bound, p.Loc)
		u.emit(code.BUILD_TUPLE, 2, p.Loc)
	}
	switch p.Kind {
	case ast.TypeVarTupleParam:
		u.emit(code.CALL_INTRINSIC_1, intrinsicTypeVarTuple, p.Loc)
	case ast.ParamSpecParam:
		u.emit(code.CALL_INTRINSIC_1, intrinsicParamSpec, p.Loc)
	default:
		u.emit(code.CALL_INTRINSIC_1, intrinsicTypeVar, p.Loc)
	}
	if p.Default != nil {
		c.compileTypeParamThunk(p.Name+".evaluate_default", p.Default, p.Loc)
		u.emit(code.BUILD_TUPLE, 2, p.Loc)
		u.emit(code.CALL_INTRINSIC_1, intrinsicSetTypeParamDefault, p.Loc)
	}
	c.nameop(u, p.Name, ctxStore, p.Loc)
}

// compileTypeParamThunk compiles expr as a zero-argument nested function
// and leaves it on enclosing's stack, the lazy bound/default form spec
// §4.11 requires so a bound or default is only ever evaluated if the
// parameter is actually consulted.
func (c *Compiler) compileTypeParamThunk(name string, expr ast.Expr, loc ast.Loc) {
	enclosing := c.cur
	entry := &syntheticEntry{kind: symtab.LambdaScopeKind}
	c.enterScope(expr, entry, name, c.qualifiedName(name), loc.StartLine, ast.Arguments{})
	u := c.cur
	c.compileExpr(expr)
	u.emit(code.RETURN_VALUE, 0, loc)
	co, err := c.exitScope(ast.Arguments{})
	if err != nil {
		panic(err)
	}
	idx := c.constIdx(enclosing, c.cache.Canonicalize(co))
	enclosing.emit(code.LOAD_CONSTANT, idx, loc)
	enclosing.emit(code.MAKE_FUNCTION, 0, loc)
}

// genericBase pushes the synthetic Generic[*params] base spec §4.11's
// final bullet adds to a generic class's base list: Generic subscripted
// by each declared parameter, re-resolved by name through the class
// unit's own scope chain rather than threaded in as a closure cell (see
// compileTypeParamsScope's doc comment on why no such cell exists here).
func (c *Compiler) genericBase(u *unit, params []ast.TypeParam, loc ast.Loc) {
	c.nameop(u, "Generic", ctxLoad, loc)
	for _, p := range params {
		c.nameop(u, p.Name, ctxLoad, loc)
	}
	if len(params) == 1 {
		u.emit(code.BINARY_SUBSCR, 0, loc)
		return
	}
	u.emit(code.BUILD_TUPLE, int32(len(params)), loc)
	u.emit(code.BINARY_SUBSCR, 0, loc)
}
