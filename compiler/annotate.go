package compiler

import (
	"github.com/ninelines/pybc/ast"
	"github.com/ninelines/pybc/code"
	"github.com/ninelines/pybc/object"
	"github.com/ninelines/pybc/symtab"
)

// annotationEntry is one name/expression pair waiting for the owning
// scope's __annotate__ thunk, collected instead of evaluated inline
// whenever `from __future__ import annotations` is absent (spec §4.10,
// PEP 649).
type annotationEntry struct {
	name       string
	annotation ast.Expr
	loc        ast.Loc
}

// syntheticEntry is the minimal symtab.Entry the annotation and
// type-parameter scopes (spec §4.10, §4.11) need. Neither scope
// corresponds to a distinct AST node a front-end symbol table would key
// against — they are synthesized by the code generator itself, the way
// CPython's own compiler manufactures them during codegen rather than
// during symtable construction — so this satisfies symtab.Entry
// directly rather than going through symtab.Table.
type syntheticEntry struct {
	kind   symtab.ScopeKind
	locals map[string]bool
}

func (s *syntheticEntry) Kind() symtab.ScopeKind { return s.kind }

func (s *syntheticEntry) ScopeOf(name string) symtab.Scope {
	if s.locals[name] {
		return symtab.Local
	}
	return symtab.GlobalImplicit
}

func (s *syntheticEntry) IsFunctionLike() bool     { return true }
func (s *syntheticEntry) NeedsClassClosure() bool  { return false }
func (s *syntheticEntry) NeedsClassDict() bool     { return false }
func (s *syntheticEntry) Inlineable() bool         { return false }
func (s *syntheticEntry) IsGenerator() bool        { return false }
func (s *syntheticEntry) IsCoroutine() bool        { return false }
func (s *syntheticEntry) IsAsyncGenerator() bool   { return false }
func (s *syntheticEntry) Variables() []string      { return nil }
func (s *syntheticEntry) SortedCellVars() []string { return nil }
func (s *syntheticEntry) SortedFreeVars() []string { return nil }

// futureAnnotations reports whether this compile has
// `from __future__ import annotations` active, either from the module's
// own future-import set or from the compile profile's sticky override.
func (c *Compiler) futureAnnotations() bool {
	if c.table.Module() == nil {
		return false
	}
	if c.profile.FutureFeatures["annotations"] {
		return true
	}
	return c.moduleFutureAnnotations
}

// deferAnnotation records one annotated name against the current unit
// rather than evaluating it immediately (spec §4.10 step "statement
// codegen collects annotation AST nodes into deferred_annotations").
func (c *Compiler) deferAnnotation(name string, annotation ast.Expr, loc ast.Loc) {
	c.cur.deferredAnnotations = append(c.cur.deferredAnnotations, annotationEntry{
		name:       mangle(name, c.cur.manglePrefix),
		annotation: annotation,
		loc:        loc,
	})
}

// finishAnnotations emits the current unit's `__annotate__` closure, if
// it collected any deferred annotations, and stores it in the
// (about-to-exit) scope under that name (spec §4.10 steps 1-5). It is a
// no-op when future annotations are active (all annotations become bare
// syntax, never evaluated at all by this reference generator) or when
// the scope never recorded any annotation.
func (c *Compiler) finishAnnotations(owner ast.Node, loc ast.Loc) {
	u := c.cur
	anns := u.deferredAnnotations
	u.deferredAnnotations = nil
	if len(anns) == 0 {
		return
	}
	if c.futureAnnotations() {
		return
	}

	entry := &syntheticEntry{kind: symtab.AnnotationScopeKind, locals: map[string]bool{".format": true}}
	args := ast.Arguments{PosOnly: []ast.Param{{Name: ".format"}}}
	c.enterScope(owner, entry, "__annotate__", c.qualifiedName("__annotate__"), loc.StartLine, args)
	au := c.cur

	// if .format != 1: raise NotImplementedError (spec §4.10 step 2).
	ok := au.newLabel()
	au.emit(code.LOAD_FAST, 0, loc)
	oneIdx := c.constIdx(au, c.cache.Canonicalize(object.Int{Value: 1}))
	au.emit(code.LOAD_CONSTANT, oneIdx, loc)
	au.emit(code.CMP, int32(ast.Eq), loc)
	au.emitJump(code.JUMP_IF_TRUE, ok, loc)
	neIdx := au.nameIdx("NotImplementedError")
	au.emit(code.LOAD_GLOBAL, neIdx, loc)
	au.emit(code.CALL, 0, loc)
	au.emit(code.RAISE_VARARGS, 1, loc)
	au.placeLabel(ok)

	for _, a := range anns {
		nameIdx := c.constIdx(au, c.cache.Canonicalize(object.Str{Value: a.name}))
		au.emit(code.LOAD_CONSTANT, nameIdx, a.loc)
		if star, ok := a.annotation.(*ast.Starred); ok {
			// `*args: *Ts` unpacks a one-element sequence to preserve
			// TypeVarTuple semantics (spec §4.10 final paragraph).
			c.compileExpr(star.Value)
			au.emit(code.UNPACK_SEQUENCE, 1, a.loc)
		} else {
			c.compileExpr(a.annotation)
		}
	}
	au.emit(code.BUILD_MAP, int32(len(anns)), loc)
	au.emit(code.RETURN_VALUE, 0, loc)

	co, err := c.exitScope(args)
	if err != nil {
		panic(err)
	}

	enclosing := c.cur
	cidx := c.constIdx(enclosing, c.cache.Canonicalize(co))
	enclosing.emit(code.LOAD_CONSTANT, cidx, loc)
	enclosing.emit(code.MAKE_FUNCTION, 0, loc)
	c.nameop(enclosing, "__annotate__", ctxStore, loc)
}
