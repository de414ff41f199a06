package compiler

import (
	"github.com/ninelines/pybc/ast"
	"github.com/ninelines/pybc/code"
	"github.com/ninelines/pybc/errs"
	"github.com/ninelines/pybc/object"
)

// attrKind values for SET_FUNCTION_ATTRIBUTE (spec §4.12): which extra
// piece of function state the instruction immediately following
// MAKE_FUNCTION is attaching.
const (
	attrDefaults = iota
	attrKwDefaults
	attrAnnotations
	attrClosure
)

// compileFunctionLike builds one function/lambda's code object, wires
// its closure cells, defaults, and keyword-defaults, applies decorators
// bottom-up, and leaves the finished callable on the enclosing unit's
// stack (spec §4.12). Decorators are pushed in source order before the
// function object is built, so each CALL 1 afterward naturally consumes
// the innermost decorator first without any stack shuffling.
func (c *Compiler) compileFunctionLike(node ast.Node, name string, args ast.Arguments, decorators []ast.Expr, body []ast.Stmt, loc ast.Loc) {
	c.compileFunctionLikeReturns(node, name, args, decorators, body, nil, loc)
}

// compileFunctionLikeReturns is compileFunctionLike plus an optional
// return annotation; split out so Lambda (which has neither a return
// annotation nor parameter annotations worth threading through) can
// keep calling the simpler form.
func (c *Compiler) compileFunctionLikeReturns(node ast.Node, name string, args ast.Arguments, decorators []ast.Expr, body []ast.Stmt, returns ast.Expr, loc ast.Loc) {
	enclosing := c.cur
	for _, d := range decorators {
		c.compileExpr(d)
	}

	for _, d := range args.Defaults {
		c.compileExpr(d)
	}
	if len(args.Defaults) > 0 {
		enclosing.emit(code.BUILD_TUPLE, int32(len(args.Defaults)), loc)
	}

	hasKwDefaults := false
	for _, d := range args.KwDefaults {
		if d != nil {
			hasKwDefaults = true
		}
	}
	if hasKwDefaults {
		enclosing.emit(code.BUILD_MAP, 0, loc)
		for i, d := range args.KwDefaults {
			if d == nil {
				continue
			}
			nameConst := c.cache.Canonicalize(object.Str{Value: args.KwOnly[i].Name})
			idx := c.constIdx(enclosing, nameConst)
			enclosing.emit(code.LOAD_CONSTANT, idx, loc)
			c.compileExpr(d)
			enclosing.emit(code.MAP_ADD, 1, loc)
		}
	}

	entry, ok := c.table.EntryFor(node)
	if !ok {
		c.fail(errs.SystemError, loc, "no symbol table entry for %s", name)
	}
	c.enterScope(node, entry, name, c.qualifiedName(name), loc.StartLine, args)
	nested := c.cur
	for _, p := range allParams(args) {
		if p.Annotation != nil {
			c.deferAnnotation(p.Name, p.Annotation, p.Loc)
		}
	}
	if returns != nil {
		c.deferAnnotation("return", returns, returns.Location())
	}
	c.compileBlock(body)
	c.finishAnnotations(node, loc)
	c.finishReturn(object.None{})
	co, err := c.exitScope(args)
	if err != nil {
		panic(err)
	}

	idx := c.constIdx(enclosing, c.cache.Canonicalize(co))
	enclosing.emit(code.LOAD_CONSTANT, idx, loc)
	enclosing.emit(code.MAKE_FUNCTION, 0, loc)

	freeVars := entry.SortedFreeVars()
	if len(nested.synFreeVars) > 0 {
		freeVars = append(append([]string{}, freeVars...), nested.synFreeVars...)
	}
	if len(freeVars) > 0 {
		for _, fv := range freeVars {
			var idx int32
			switch {
			case fv == "__class__" && enclosing.classCellIdx >= 0:
				idx = enclosing.classCellIdx
			case fv == "__class__":
				idx = enclosing.synFreeIdx("__class__")
			default:
				idx = derefIndex(enclosing.entry, fv)
			}
			enclosing.emit(code.LOAD_CLOSURE, idx, loc)
		}
		enclosing.emit(code.BUILD_TUPLE, int32(len(freeVars)), loc)
		enclosing.emit(code.SET_FUNCTION_ATTRIBUTE, attrClosure, loc)
	}
	if len(args.Defaults) > 0 {
		enclosing.emit(code.SET_FUNCTION_ATTRIBUTE, attrDefaults, loc)
	}
	if hasKwDefaults {
		enclosing.emit(code.SET_FUNCTION_ATTRIBUTE, attrKwDefaults, loc)
	}

	for range decorators {
		enclosing.emit(code.CALL, 1, loc)
	}
}

// allParams flattens one Arguments into declaration order, mirroring
// symtab/builder.go's allParams (duplicated here since that one is
// unexported and the two packages deliberately don't share internals).
func allParams(a ast.Arguments) []ast.Param {
	out := append([]ast.Param{}, a.PosOnly...)
	out = append(out, a.Args...)
	if a.Vararg != nil {
		out = append(out, *a.Vararg)
	}
	out = append(out, a.KwOnly...)
	if a.Kwarg != nil {
		out = append(out, *a.Kwarg)
	}
	return out
}

// compileClassDef implements the LOAD_BUILD_CLASS protocol (spec §4.6):
// push the builtin class-construction callable, the class body compiled
// as a zero-argument function, the class name, and every base/keyword,
// then CALL the whole thing and bind the result. A generic class (PEP
// 695, spec §4.11) additionally wraps the whole definition in a
// type-params scope and appends a synthetic Generic[*params] base.
func (c *Compiler) compileClassDef(n *ast.ClassDef) {
	loc := n.Location()
	if len(n.TypeParams) > 0 {
		c.compileTypeParamsScope(n, n.Name, n.TypeParams, loc, func() {
			c.compileClassBody(n)
		})
	} else {
		c.compileClassBody(n)
	}
	c.nameop(c.cur, n.Name, ctxStore, loc)
}

// compileClassBody does the LOAD_BUILD_CLASS work itself, leaving the
// finished class object on top of the current unit's stack; its caller
// decides whether that unit is the definition's true enclosing scope or
// a wrapping type-params scope, and performs the final name binding.
func (c *Compiler) compileClassBody(n *ast.ClassDef) {
	enclosing := c.cur
	loc := n.Location()
	enclosing.emit(code.LOAD_BUILD_CLASS, 0, loc)

	entry, ok := c.table.EntryFor(n)
	if !ok {
		c.fail(errs.SystemError, loc, "no symbol table entry for class %s", n.Name)
	}
	c.enterScope(n, entry, n.Name, c.qualifiedName(n.Name), loc.StartLine, ast.Arguments{})
	u := c.cur
	u.manglePrefix = n.Name
	if entry.NeedsClassClosure() {
		u.classCellIdx = int32(len(entry.SortedCellVars()) + len(entry.SortedFreeVars()))
	}

	// spec §4.6's class-body recipe: "loads __name__ -> stores __module__;
	// loads its qualname -> stores __qualname__", both into the class's
	// own namespace, not the module's globals.
	c.nameop(u, "__name__", ctxLoad, loc)
	c.nameop(u, "__module__", ctxStore, loc)
	qualIdx := c.constIdx(u, c.cache.Canonicalize(object.Str{Value: u.qualName}))
	u.emit(code.LOAD_CONSTANT, qualIdx, loc)
	c.nameop(u, "__qualname__", ctxStore, loc)

	c.compileBlock(n.Body)
	c.finishAnnotations(n, loc)
	if entry.NeedsClassClosure() {
		u.emit(code.STORE_STATIC_ATTRIBUTES, 0, loc)
		// Zero-arg super()/implicit __class__ (spec §4.5, §4.6): the
		// class body returns its own __classcell__ instead of None, the
		// same way CPython's compiler does, so __build_class__ can set
		// the cell to point at the class it just built.
		u.emit(code.LOAD_CLOSURE, u.classCellIdx, loc)
		u.emit(code.RETURN_VALUE, 0, loc)
	} else {
		c.finishReturn(object.None{})
	}
	co, err := c.exitScope(ast.Arguments{})
	if err != nil {
		panic(err)
	}

	idx := c.constIdx(enclosing, c.cache.Canonicalize(co))
	enclosing.emit(code.LOAD_CONSTANT, idx, loc)
	enclosing.emit(code.MAKE_FUNCTION, 0, loc)
	nameConstIdx := c.constIdx(enclosing, c.cache.Canonicalize(object.Str{Value: n.Name}))
	enclosing.emit(code.LOAD_CONSTANT, nameConstIdx, loc)

	for _, base := range n.Bases {
		c.compileExpr(base)
	}
	extraBase := 0
	if len(n.TypeParams) > 0 {
		c.genericBase(enclosing, n.TypeParams, loc)
		extraBase = 1
	}
	for _, kw := range n.Keywords {
		c.compileExpr(kw.Value)
	}
	enclosing.emit(code.CALL, int32(2+len(n.Bases)+extraBase+len(n.Keywords)), loc)
}
