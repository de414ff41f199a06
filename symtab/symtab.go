// Package symtab defines the symbol-table collaborator interface the
// code generator depends on (spec §9: "define a thin trait/interface"),
// plus a reference Builder implementation.
//
// Symbol table construction is explicitly out of scope for the code
// generator (spec §1, §6): it is consumed as an opaque lookup service.
// Builder exists so this module is runnable and testable end-to-end
// without a separate front end; the compiler package only ever talks to
// Table and the Entry interface, never to Builder's internals, matching the
// boundary spec §6 draws between "symbol table" and "code generator."
//
// The five-way scope lattice and the resolve-and-promote-to-free
// algorithm generalize dr8co-kong/compiler/symbol_table.go's four-way
// GlobalScope/LocalScope/FreeScope/BuiltinScope lattice and its
// Resolve-walks-outward-and-calls-defineFree behavior.
package symtab

// Scope classifies how a name resolves within one lexical scope,
// spec §4.4's five-way lattice.
type Scope int

const (
	Free Scope = iota
	Cell
	Local
	GlobalImplicit
	GlobalExplicit
	Unknown
)

func (s Scope) String() string {
	switch s {
	case Free:
		return "FREE"
	case Cell:
		return "CELL"
	case Local:
		return "LOCAL"
	case GlobalImplicit:
		return "GLOBAL_IMPLICIT"
	case GlobalExplicit:
		return "GLOBAL_EXPLICIT"
	default:
		return "UNKNOWN"
	}
}

// ScopeKind classifies the kind of lexical scope an Entry describes.
type ScopeKind int

const (
	ModuleScope ScopeKind = iota
	FunctionScopeKind
	ClassScopeKind
	LambdaScopeKind
	ComprehensionScopeKind
	AnnotationScopeKind
	TypeParamsScopeKind
)

// Entry is the per-scope view the code generator consults. One Entry
// exists per AST node that introduces a scope (module, function, class,
// lambda, comprehension, annotation scope, type-parameter scope).
type Entry interface {
	// Kind reports what sort of scope this is.
	Kind() ScopeKind

	// ScopeOf reports how name resolves within this scope.
	ScopeOf(name string) Scope

	// IsFunctionLike reports whether fast-local storage applies here
	// (function, lambda, non-inlined comprehension) as opposed to
	// name-lookup storage (module, class body).
	IsFunctionLike() bool

	// NeedsClassClosure reports whether a class body references
	// `__class__` or calls zero-arg `super()`, requiring the class to
	// create an implicit `__classcell__` cell (spec §4.6 class
	// definition).
	NeedsClassClosure() bool

	// NeedsClassDict reports whether a class body references
	// `__classdict__` (PEP 695 generic classes consult it to build
	// `__type_params__` lookups), requiring an implicit cell.
	NeedsClassDict() bool

	// Inlineable reports whether a comprehension scope was flagged by
	// symbol-table analysis as eligible for inlining into its enclosing
	// scope (spec §4.9). Always false for non-comprehension scopes.
	Inlineable() bool

	// IsGenerator / IsCoroutine / IsAsyncGenerator report the scope's
	// generator/coroutine classification, used for code-flag computation
	// (spec §6).
	IsGenerator() bool
	IsCoroutine() bool
	IsAsyncGenerator() bool

	// Variables returns every name with a binding classification in
	// this scope, sorted by name — the deterministic iteration order
	// spec §3 and §9 require for cellvars/freevars assignment.
	Variables() []string

	// SortedCellVars / SortedFreeVars return the cell and free variable
	// names for this scope, in sorted order (spec §4.3: "iterating the
	// entry's symbol dictionary in sorted key order").
	SortedCellVars() []string
	SortedFreeVars() []string
}
