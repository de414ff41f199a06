package symtab

import (
	"sort"

	"github.com/ninelines/pybc/ast"
)

// entryImpl is the concrete Entry the reference Builder produces.
type entryImpl struct {
	kind              ScopeKind
	parent            *entryImpl
	classChainParent  *entryImpl // nearest enclosing scope, including class scopes, for class-body mangling lookups
	bound             map[string]bool
	explicitGlobal    map[string]bool
	explicitNonlocal  map[string]bool
	rawUses           map[string]bool
	resolved          map[string]Scope
	needsClassClosure bool
	needsClassDict    bool
	inlineable        bool
	isGenerator       bool
	isCoroutine       bool
	isAsyncGenerator  bool
}

func newEntry(kind ScopeKind, parent *entryImpl) *entryImpl {
	return &entryImpl{
		kind:             kind,
		parent:           parent,
		bound:            map[string]bool{},
		explicitGlobal:   map[string]bool{},
		explicitNonlocal: map[string]bool{},
		resolved:         map[string]Scope{},
	}
}

func (e *entryImpl) Kind() ScopeKind { return e.kind }

func (e *entryImpl) IsFunctionLike() bool {
	switch e.kind {
	case FunctionScopeKind, LambdaScopeKind, AnnotationScopeKind, TypeParamsScopeKind:
		return true
	case ComprehensionScopeKind:
		return !e.inlineable
	default:
		return false
	}
}

func (e *entryImpl) NeedsClassClosure() bool { return e.needsClassClosure }
func (e *entryImpl) NeedsClassDict() bool    { return e.needsClassDict }
func (e *entryImpl) Inlineable() bool        { return e.kind == ComprehensionScopeKind && e.inlineable }
func (e *entryImpl) IsGenerator() bool       { return e.isGenerator }
func (e *entryImpl) IsCoroutine() bool       { return e.isCoroutine }
func (e *entryImpl) IsAsyncGenerator() bool  { return e.isAsyncGenerator }

func (e *entryImpl) ScopeOf(name string) Scope {
	if s, ok := e.resolved[name]; ok {
		return s
	}
	return Unknown
}

func (e *entryImpl) Variables() []string {
	names := make([]string, 0, len(e.resolved))
	for n := range e.resolved {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (e *entryImpl) SortedCellVars() []string { return e.filterScope(Cell) }
func (e *entryImpl) SortedFreeVars() []string { return e.filterScope(Free) }

func (e *entryImpl) filterScope(want Scope) []string {
	var out []string
	for n, s := range e.resolved {
		if s == want {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// Table maps AST nodes that introduce scopes to the symtab.Entry that
// describes them, the concrete object the compiler's enter_scope
// consults via an ast_key lookup (spec §4.3).
type Table struct {
	entries map[ast.Node]*entryImpl
	module  *entryImpl
}

// EntryFor returns the scope entry for a node that introduces a scope
// (*ast.Module, *ast.FunctionDef, *ast.ClassDef, *ast.Lambda, or a
// comprehension/generator node), and whether one was recorded. The
// compiler's synthesized annotation and type-params scopes have no
// entry here.
func (t *Table) EntryFor(node ast.Node) (Entry, bool) {
	e, ok := t.entries[node]
	return e, ok
}

// Module returns the top-level module scope entry.
func (t *Table) Module() Entry { return t.module }

// Build walks mod once and produces its symbol table. This is the
// reference implementation of the "external" symbol-table collaborator
// (spec §1, §6); see the package doc comment for why it exists here at
// all.
func Build(mod *ast.Module) *Table {
	b := &builder{t: &Table{entries: map[ast.Node]*entryImpl{}}}
	root := newEntry(ModuleScope, nil)
	b.t.entries[mod] = root
	b.t.module = root
	b.collectBlock(root, mod.Body)
	b.walkBlock(root, root, mod.Body)
	b.resolveAll()
	return b.t
}

type builder struct {
	t *Table
}

// collectBlock records every name this block of statements binds
// directly in scope (not recursing into nested function/class bodies,
// whose bindings belong to their own scope).
func (b *builder) collectBlock(scope *entryImpl, body []ast.Stmt) {
	for _, s := range body {
		b.collectStmt(scope, s)
	}
}

func (b *builder) collectStmt(scope *entryImpl, s ast.Stmt) {
	switch n := s.(type) {
	case *ast.Assign:
		for _, t := range n.Targets {
			b.bindTarget(scope, t)
		}
	case *ast.AugAssign:
		b.bindTarget(scope, n.Target)
	case *ast.AnnAssign:
		if n.Simple {
			b.bindTarget(scope, n.Target)
		}
	case *ast.For:
		b.bindTarget(scope, n.Target)
		b.collectBlock(scope, n.Body)
		b.collectBlock(scope, n.OrElse)
	case *ast.While:
		b.collectBlock(scope, n.Body)
		b.collectBlock(scope, n.OrElse)
	case *ast.If:
		b.collectBlock(scope, n.Body)
		b.collectBlock(scope, n.OrElse)
	case *ast.Try:
		b.collectBlock(scope, n.Body)
		for _, h := range n.Handlers {
			if h.Name != "" {
				scope.bound[h.Name] = true
			}
			b.collectBlock(scope, h.Body)
		}
		b.collectBlock(scope, n.OrElse)
		b.collectBlock(scope, n.Final)
	case *ast.With:
		for _, item := range n.Items {
			if item.OptionalVar != nil {
				b.bindTarget(scope, item.OptionalVar)
			}
		}
		b.collectBlock(scope, n.Body)
	case *ast.FunctionDef:
		scope.bound[n.Name] = true
	case *ast.ClassDef:
		scope.bound[n.Name] = true
	case *ast.TypeAlias:
		scope.bound[n.Name] = true
	case *ast.Import:
		for _, a := range n.Names {
			name := a.Name
			if a.AsName != "" {
				name = a.AsName
			}
			scope.bound[topLevel(name)] = true
		}
	case *ast.ImportFrom:
		for _, a := range n.Names {
			if a.Name == "*" {
				continue
			}
			name := a.Name
			if a.AsName != "" {
				name = a.AsName
			}
			scope.bound[name] = true
		}
	case *ast.Global:
		for _, name := range n.Names {
			scope.explicitGlobal[name] = true
		}
	case *ast.Nonlocal:
		for _, name := range n.Names {
			scope.explicitNonlocal[name] = true
		}
	case *ast.Match:
		for _, c := range n.Cases {
			b.collectPatternCaptures(scope, c.Pattern)
			b.collectBlock(scope, c.Body)
		}
	}
}

func topLevel(dotted string) string {
	for i, r := range dotted {
		if r == '.' {
			return dotted[:i]
		}
	}
	return dotted
}

func (b *builder) collectPatternCaptures(scope *entryImpl, p ast.Pattern) {
	switch pat := p.(type) {
	case *ast.MatchAs:
		if pat.Name != "" {
			scope.bound[pat.Name] = true
		}
		if pat.Pattern != nil {
			b.collectPatternCaptures(scope, pat.Pattern)
		}
	case *ast.MatchStar:
		if pat.Name != "" {
			scope.bound[pat.Name] = true
		}
	case *ast.MatchSequence:
		for _, e := range pat.Elts {
			b.collectPatternCaptures(scope, e)
		}
	case *ast.MatchMapping:
		for _, v := range pat.Values {
			b.collectPatternCaptures(scope, v)
		}
		if pat.Rest != "" {
			scope.bound[pat.Rest] = true
		}
	case *ast.MatchClass:
		for _, e := range pat.Patterns {
			b.collectPatternCaptures(scope, e)
		}
		for _, e := range pat.KwdPatterns {
			b.collectPatternCaptures(scope, e)
		}
	case *ast.MatchOr:
		// All alternatives bind the same names (spec §4.8 invariant);
		// collecting the first is sufficient for binding purposes.
		if len(pat.Patterns) > 0 {
			b.collectPatternCaptures(scope, pat.Patterns[0])
		}
	}
}

func (b *builder) bindTarget(scope *entryImpl, target ast.Expr) {
	switch t := target.(type) {
	case *ast.Name:
		scope.bound[t.Id] = true
	case *ast.TupleExpr:
		for _, e := range t.Elts {
			b.bindTarget(scope, e)
		}
	case *ast.ListExpr:
		for _, e := range t.Elts {
			b.bindTarget(scope, e)
		}
	case *ast.Starred:
		b.bindTarget(scope, t.Value)
	case *ast.NamedExpr:
		// A walrus inside a comprehension binds in the nearest enclosing
		// function-like scope, not the comprehension itself; the full
		// PEP 572 scope-escaping rule is beyond what this reference
		// builder needs to demonstrate, so it binds locally here.
		scope.bound[t.Target.Id] = true
	}
}

// walkBlock records name *uses* (and recurses into nested scopes,
// creating and linking their entries) without re-collecting bindings,
// which collectBlock already did for this scope.
func (b *builder) walkBlock(scope, classChainParent *entryImpl, body []ast.Stmt) {
	for _, s := range body {
		b.walkStmt(scope, classChainParent, s)
	}
}

func (b *builder) use(scope *entryImpl, name string) {
	// A use is only interesting for resolution if it is not already a
	// local binding; resolveAll walks `bound` minus uses that turned out
	// local, so nothing needs recording here beyond ensuring the name
	// eventually appears among this scope's resolved set when it is
	// free/global. Track raw uses on a side set for that purpose.
	if scope.rawUses == nil {
		scope.rawUses = map[string]bool{}
	}
	scope.rawUses[name] = true
}

func (b *builder) walkStmt(scope, classParent *entryImpl, s ast.Stmt) {
	switch n := s.(type) {
	case *ast.ExprStmt:
		b.walkExpr(scope, classParent, n.Value)
	case *ast.Assign:
		b.walkExpr(scope, classParent, n.Value)
		for _, t := range n.Targets {
			b.walkTargetUses(scope, classParent, t)
		}
	case *ast.AugAssign:
		b.walkExpr(scope, classParent, n.Value)
		b.walkTargetUses(scope, classParent, n.Target)
		b.use(scope, nameOf(n.Target))
	case *ast.AnnAssign:
		b.walkExpr(scope, classParent, n.Annotation)
		if n.Value != nil {
			b.walkExpr(scope, classParent, n.Value)
		}
		b.walkTargetUses(scope, classParent, n.Target)
	case *ast.Return:
		if n.Value != nil {
			b.walkExpr(scope, classParent, n.Value)
		}
	case *ast.Delete:
		for _, t := range n.Targets {
			b.walkTargetUses(scope, classParent, t)
		}
	case *ast.Assert:
		b.walkExpr(scope, classParent, n.Test)
		if n.Msg != nil {
			b.walkExpr(scope, classParent, n.Msg)
		}
	case *ast.Raise:
		if n.Exc != nil {
			b.walkExpr(scope, classParent, n.Exc)
		}
		if n.Cause != nil {
			b.walkExpr(scope, classParent, n.Cause)
		}
	case *ast.If:
		b.walkExpr(scope, classParent, n.Test)
		b.walkBlock(scope, classParent, n.Body)
		b.walkBlock(scope, classParent, n.OrElse)
	case *ast.While:
		b.walkExpr(scope, classParent, n.Test)
		b.walkBlock(scope, classParent, n.Body)
		b.walkBlock(scope, classParent, n.OrElse)
	case *ast.For:
		b.walkExpr(scope, classParent, n.Iter)
		b.walkTargetUses(scope, classParent, n.Target)
		b.walkBlock(scope, classParent, n.Body)
		b.walkBlock(scope, classParent, n.OrElse)
	case *ast.Try:
		b.walkBlock(scope, classParent, n.Body)
		for _, h := range n.Handlers {
			if h.Type != nil {
				b.walkExpr(scope, classParent, h.Type)
			}
			b.walkBlock(scope, classParent, h.Body)
		}
		b.walkBlock(scope, classParent, n.OrElse)
		b.walkBlock(scope, classParent, n.Final)
	case *ast.With:
		for _, item := range n.Items {
			b.walkExpr(scope, classParent, item.ContextExpr)
			if item.OptionalVar != nil {
				b.walkTargetUses(scope, classParent, item.OptionalVar)
			}
		}
		b.walkBlock(scope, classParent, n.Body)
	case *ast.FunctionDef:
		for _, d := range n.Decorators {
			b.walkExpr(scope, classParent, d)
		}
		for _, tp := range n.TypeParams {
			b.walkTypeParam(scope, classParent, tp)
		}
		for _, d := range n.Args.Defaults {
			b.walkExpr(scope, classParent, d)
		}
		for _, d := range n.Args.KwDefaults {
			if d != nil {
				b.walkExpr(scope, classParent, d)
			}
		}
		if n.Returns != nil {
			b.walkExpr(scope, classParent, n.Returns)
		}
		fnScope := newEntry(FunctionScopeKind, scope)
		fnScope.isCoroutine = n.Async
		b.t.entries[n] = fnScope
		allArgs := allParams(n.Args)
		for _, p := range allArgs {
			fnScope.bound[p.Name] = true
			if p.Annotation != nil {
				b.walkExpr(scope, classParent, p.Annotation)
			}
		}
		b.collectBlock(fnScope, n.Body)
		detectGenerator(fnScope, n.Body)
		if n.Async && fnScope.isGenerator {
			fnScope.isAsyncGenerator = true
			fnScope.isCoroutine = false
		}
		n.IsGenerator = fnScope.isGenerator
		n.IsCoroutine = fnScope.isCoroutine
		n.IsAsyncGenFn = fnScope.isAsyncGenerator
		b.walkBlock(fnScope, fnScope, n.Body)
	case *ast.ClassDef:
		for _, d := range n.Decorators {
			b.walkExpr(scope, classParent, d)
		}
		for _, tp := range n.TypeParams {
			b.walkTypeParam(scope, classParent, tp)
		}
		for _, base := range n.Bases {
			b.walkExpr(scope, classParent, base)
		}
		for _, kw := range n.Keywords {
			b.walkExpr(scope, classParent, kw.Value)
		}
		clsScope := newEntry(ClassScopeKind, scope)
		clsScope.classChainParent = classParent
		b.t.entries[n] = clsScope
		b.collectBlock(clsScope, n.Body)
		clsScope.needsClassClosure = usesClassOrZeroArgSuper(n.Body)
		b.walkBlock(clsScope, clsScope, n.Body)
	case *ast.TypeAlias:
		for _, tp := range n.TypeParams {
			b.walkTypeParam(scope, classParent, tp)
		}
		b.walkExpr(scope, classParent, n.Value)
	case *ast.Match:
		b.walkExpr(scope, classParent, n.Subject)
		for _, c := range n.Cases {
			b.walkPatternUses(scope, classParent, c.Pattern)
			if c.Guard != nil {
				b.walkExpr(scope, classParent, c.Guard)
			}
			b.walkBlock(scope, classParent, c.Body)
		}
	case *ast.Import, *ast.ImportFrom, *ast.Global, *ast.Nonlocal, *ast.Pass, *ast.Break, *ast.Continue:
		// No nested expressions to walk.
	}
}

func (b *builder) walkTypeParam(scope, classParent *entryImpl, tp ast.TypeParam) {
	if tp.Bound != nil {
		b.walkExpr(scope, classParent, tp.Bound)
	}
	if tp.Default != nil {
		b.walkExpr(scope, classParent, tp.Default)
	}
}

func (b *builder) walkTargetUses(scope, classParent *entryImpl, target ast.Expr) {
	switch t := target.(type) {
	case *ast.Name:
		// A store doesn't read the name, but it still participates in
		// this scope's resolved set as Local/GlobalExplicit below via
		// collectStmt's binding pass; nothing further needed here.
		_ = t
	case *ast.Attribute:
		b.walkExpr(scope, classParent, t.Value)
	case *ast.Subscript:
		b.walkExpr(scope, classParent, t.Value)
		b.walkExpr(scope, classParent, t.Index)
	case *ast.TupleExpr:
		for _, e := range t.Elts {
			b.walkTargetUses(scope, classParent, e)
		}
	case *ast.ListExpr:
		for _, e := range t.Elts {
			b.walkTargetUses(scope, classParent, e)
		}
	case *ast.Starred:
		b.walkTargetUses(scope, classParent, t.Value)
	}
}

func nameOf(e ast.Expr) string {
	if n, ok := e.(*ast.Name); ok {
		return n.Id
	}
	return ""
}

func (b *builder) walkExpr(scope, classParent *entryImpl, e ast.Expr) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *ast.Name:
		if n.Ctx == ast.Load {
			b.use(scope, n.Id)
		}
	case *ast.Constant:
	case *ast.JoinedStr:
		for _, v := range n.Values {
			b.walkExpr(scope, classParent, v)
		}
	case *ast.FormattedValue:
		b.walkExpr(scope, classParent, n.Value)
		if n.FormatSpec != nil {
			b.walkExpr(scope, classParent, n.FormatSpec)
		}
	case *ast.BoolOp:
		for _, v := range n.Values {
			b.walkExpr(scope, classParent, v)
		}
	case *ast.BinOpExpr:
		b.walkExpr(scope, classParent, n.Left)
		b.walkExpr(scope, classParent, n.Right)
	case *ast.UnaryOpExpr:
		b.walkExpr(scope, classParent, n.Operand)
	case *ast.Compare:
		b.walkExpr(scope, classParent, n.Left)
		for _, c := range n.Comparators {
			b.walkExpr(scope, classParent, c)
		}
	case *ast.IfExp:
		b.walkExpr(scope, classParent, n.Test)
		b.walkExpr(scope, classParent, n.Body)
		b.walkExpr(scope, classParent, n.OrElse)
	case *ast.Lambda:
		for _, d := range n.Args.Defaults {
			b.walkExpr(scope, classParent, d)
		}
		lamScope := newEntry(LambdaScopeKind, scope)
		b.t.entries[n] = lamScope
		for _, p := range allParams(n.Args) {
			lamScope.bound[p.Name] = true
		}
		b.walkExpr(lamScope, lamScope, n.Body)
	case *ast.Attribute:
		b.walkExpr(scope, classParent, n.Value)
	case *ast.Subscript:
		b.walkExpr(scope, classParent, n.Value)
		b.walkExpr(scope, classParent, n.Index)
	case *ast.Slice:
		if n.Lower != nil {
			b.walkExpr(scope, classParent, n.Lower)
		}
		if n.Upper != nil {
			b.walkExpr(scope, classParent, n.Upper)
		}
		if n.Step != nil {
			b.walkExpr(scope, classParent, n.Step)
		}
	case *ast.Starred:
		b.walkExpr(scope, classParent, n.Value)
	case *ast.ListExpr:
		for _, el := range n.Elts {
			b.walkExpr(scope, classParent, el)
		}
	case *ast.TupleExpr:
		for _, el := range n.Elts {
			b.walkExpr(scope, classParent, el)
		}
	case *ast.SetExpr:
		for _, el := range n.Elts {
			b.walkExpr(scope, classParent, el)
		}
	case *ast.DictExpr:
		for i := range n.Values {
			if n.Keys[i] != nil {
				b.walkExpr(scope, classParent, n.Keys[i])
			}
			b.walkExpr(scope, classParent, n.Values[i])
		}
	case *ast.ListComp:
		b.walkComprehension(scope, classParent, n, n.Elt, nil, nil, n.Gens, &n.Inline)
	case *ast.SetComp:
		b.walkComprehension(scope, classParent, n, n.Elt, nil, nil, n.Gens, &n.Inline)
	case *ast.DictComp:
		b.walkComprehension(scope, classParent, n, nil, n.Key, n.Value, n.Gens, &n.Inline)
	case *ast.GeneratorExp:
		inline := false
		b.walkComprehension(scope, classParent, n, n.Elt, nil, nil, n.Gens, &inline)
	case *ast.Call:
		b.walkExpr(scope, classParent, n.Func)
		for _, a := range n.Args {
			b.walkExpr(scope, classParent, a)
		}
		for _, kw := range n.Keywords {
			b.walkExpr(scope, classParent, kw.Value)
		}
	case *ast.Yield:
		if n.Value != nil {
			b.walkExpr(scope, classParent, n.Value)
		}
	case *ast.YieldFrom:
		b.walkExpr(scope, classParent, n.Value)
	case *ast.Await:
		b.walkExpr(scope, classParent, n.Value)
	case *ast.NamedExpr:
		b.walkExpr(scope, classParent, n.Value)
		b.bindTarget(scope, n)
	}
}

// walkComprehension creates the comprehension's own scope, decides
// inlineability, and walks its generators/filters/element expressions.
// The first iterable is evaluated in the *enclosing* scope even when the
// comprehension is lifted (spec §4.9: "evaluate the outermost iterable,
// and CALL 1"); every subsequent clause runs inside the comprehension
// scope.
func (b *builder) walkComprehension(scope, classParent *entryImpl, node ast.Node, elt, key, value ast.Expr, gens []ast.Comprehension, inline *bool) {
	*inline = scope.IsFunctionLike() && scope.kind != ComprehensionScopeKind
	compScope := newEntry(ComprehensionScopeKind, scope)
	compScope.inlineable = *inline
	b.t.entries[node] = compScope

	b.walkExpr(scope, classParent, gens[0].Iter)
	for i, g := range gens {
		b.bindTarget(compScope, g.Target)
		if i > 0 {
			b.walkExpr(compScope, compScope, g.Iter)
		}
		for _, cond := range g.Ifs {
			b.walkExpr(compScope, compScope, cond)
		}
	}
	if elt != nil {
		b.walkExpr(compScope, compScope, elt)
	}
	if key != nil {
		b.walkExpr(compScope, compScope, key)
	}
	if value != nil {
		b.walkExpr(compScope, compScope, value)
	}
}

func (b *builder) walkPatternUses(scope, classParent *entryImpl, p ast.Pattern) {
	switch pat := p.(type) {
	case *ast.MatchValue:
		b.walkExpr(scope, classParent, pat.Value)
	case *ast.MatchSequence:
		for _, e := range pat.Elts {
			b.walkPatternUses(scope, classParent, e)
		}
	case *ast.MatchMapping:
		for _, k := range pat.Keys {
			b.walkExpr(scope, classParent, k)
		}
		for _, v := range pat.Values {
			b.walkPatternUses(scope, classParent, v)
		}
	case *ast.MatchClass:
		b.walkExpr(scope, classParent, pat.Cls)
		for _, e := range pat.Patterns {
			b.walkPatternUses(scope, classParent, e)
		}
		for _, e := range pat.KwdPatterns {
			b.walkPatternUses(scope, classParent, e)
		}
	case *ast.MatchAs:
		if pat.Pattern != nil {
			b.walkPatternUses(scope, classParent, pat.Pattern)
		}
	case *ast.MatchOr:
		for _, alt := range pat.Patterns {
			b.walkPatternUses(scope, classParent, alt)
		}
	}
}

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

func detectGenerator(scope *entryImpl, body []ast.Stmt) {
	var found bool
	var walk func(s ast.Stmt)
	var walkExpr func(e ast.Expr)
	walkExpr = func(e ast.Expr) {
		if e == nil || found {
			return
		}
		switch n := e.(type) {
		case *ast.Yield, *ast.YieldFrom:
			found = true
		case *ast.BinOpExpr:
			walkExpr(n.Left)
			walkExpr(n.Right)
		case *ast.Call:
			walkExpr(n.Func)
			for _, a := range n.Args {
				walkExpr(a)
			}
		case *ast.IfExp:
			walkExpr(n.Test)
			walkExpr(n.Body)
			walkExpr(n.OrElse)
		case *ast.BoolOp:
			for _, v := range n.Values {
				walkExpr(v)
			}
		}
		// Note: deliberately not descending into nested Lambda/
		// comprehension/FunctionDef bodies — a `yield` there belongs to
		// that inner scope, not this one.
	}
	walk = func(s ast.Stmt) {
		if found {
			return
		}
		switch n := s.(type) {
		case *ast.ExprStmt:
			walkExpr(n.Value)
		case *ast.Assign:
			walkExpr(n.Value)
		case *ast.Return:
			walkExpr(n.Value)
		case *ast.If:
			for _, st := range n.Body {
				walk(st)
			}
			for _, st := range n.OrElse {
				walk(st)
			}
		case *ast.While:
			for _, st := range n.Body {
				walk(st)
			}
		case *ast.For:
			for _, st := range n.Body {
				walk(st)
			}
		case *ast.Try:
			for _, st := range n.Body {
				walk(st)
			}
			for _, h := range n.Handlers {
				for _, st := range h.Body {
					walk(st)
				}
			}
			for _, st := range n.Final {
				walk(st)
			}
		case *ast.With:
			for _, st := range n.Body {
				walk(st)
			}
		}
	}
	for _, s := range body {
		walk(s)
		if found {
			break
		}
	}
	scope.isGenerator = found
}

func usesClassOrZeroArgSuper(body []ast.Stmt) bool {
	found := false
	var walkExpr func(e ast.Expr)
	walkExpr = func(e ast.Expr) {
		if e == nil || found {
			return
		}
		switch n := e.(type) {
		case *ast.Name:
			if n.Id == "__class__" {
				found = true
			}
		case *ast.Call:
			if name, ok := n.Func.(*ast.Name); ok && name.Id == "super" && len(n.Args) == 0 {
				found = true
			}
			walkExpr(n.Func)
			for _, a := range n.Args {
				walkExpr(a)
			}
		case *ast.BinOpExpr:
			walkExpr(n.Left)
			walkExpr(n.Right)
		case *ast.Attribute:
			walkExpr(n.Value)
		}
	}
	var walk func(s ast.Stmt)
	walk = func(s ast.Stmt) {
		if found {
			return
		}
		switch n := s.(type) {
		case *ast.FunctionDef:
			// super()/__class__ inside a nested method still requires
			// the enclosing class to create __classcell__, since the
			// method closes over it.
			for _, st := range n.Body {
				walk(st)
			}
		case *ast.ExprStmt:
			walkExpr(n.Value)
		case *ast.Return:
			walkExpr(n.Value)
		case *ast.Assign:
			walkExpr(n.Value)
		case *ast.If:
			for _, st := range n.Body {
				walk(st)
			}
			for _, st := range n.OrElse {
				walk(st)
			}
		}
	}
	for _, s := range body {
		walk(s)
	}
	return found
}

// resolveAll performs the free/cell/global classification for every
// scope in the table, in a second pass once every scope and its bound
// set exist (spec §4.4 classification table).
func (b *builder) resolveAll() {
	for _, e := range b.t.entries {
		b.resolveScope(e)
	}
}

func (b *builder) resolveScope(e *entryImpl) {
	names := map[string]bool{}
	for n := range e.bound {
		names[n] = true
	}
	for n := range e.rawUses {
		names[n] = true
	}
	for n := range e.explicitGlobal {
		names[n] = true
	}
	for n := range e.explicitNonlocal {
		names[n] = true
	}
	for name := range names {
		s := b.classify(e, name)
		if s == Local && e.resolved[name] == Cell {
			// A nested scope resolved first and markCellChain already
			// promoted this binding to a cell; keep the promotion.
			continue
		}
		e.resolved[name] = s
	}
}

// classify implements spec §4.4's scope lattice for one (scope, name)
// pair.
func (b *builder) classify(e *entryImpl, name string) Scope {
	if e.explicitGlobal[name] {
		return GlobalExplicit
	}
	if e.bound[name] && !e.explicitNonlocal[name] {
		// Module- and class-scope bindings are still classified LOCAL;
		// IsFunctionLike tells the compiler whether that means a fast
		// local or a name-lookup store (spec §4.4).
		return Local
	}
	// Free or implicit-global: search enclosing function-like scopes,
	// the same outward walk dr8co-kong/compiler/symbol_table.go's
	// Resolve performs, skipping class scopes the way Python's real
	// resolver does (a method body does not implicitly close over a
	// sibling class attribute).
	for p := e.parent; p != nil; p = p.parent {
		if p.kind == ClassScopeKind {
			continue
		}
		if p.kind == ModuleScope {
			break
		}
		if p.bound[name] && !p.explicitNonlocal[name] && !p.explicitGlobal[name] {
			markCellChain(e, p, name)
			return Free
		}
	}
	return GlobalImplicit
}

// markCellChain marks name as a Cell in its defining scope def and as
// Free in every function-like scope strictly between use and def,
// generalizing dr8co-kong/compiler/symbol_table.go's defineFree, which
// performs the same promotion one Resolve() frame at a time.
func markCellChain(use, def *entryImpl, name string) {
	def.resolved[name] = Cell
	for p := use.parent; p != nil && p != def; p = p.parent {
		if p.kind == ClassScopeKind {
			continue
		}
		if _, already := p.resolved[name]; !already {
			p.resolved[name] = Free
		}
	}
}
