package ast

// Pattern is satisfied by every PEP 634 structural-pattern node.
type Pattern interface {
	Node
	pattern()
}

// MatchValue matches a literal/attribute-valued constant by equality.
type MatchValue struct {
	base
	Value Expr // *Constant or *Attribute
}

func (*MatchValue) pattern() {}

// MatchSingleton matches None/True/False by identity.
type MatchSingleton struct {
	base
	Value any // nil, true, or false
}

func (*MatchSingleton) pattern() {}

// MatchSequence matches a fixed- or variable-length sequence. At most one
// element may be a *MatchStar.
type MatchSequence struct {
	base
	Elts []Pattern
}

func (*MatchSequence) pattern() {}

// MatchMapping matches a subset of mapping keys. Rest is the `**name`
// capture, or "" if absent.
type MatchMapping struct {
	base
	Keys   []Expr // literal or attribute-valued keys, parallel to Patterns
	Values []Pattern
	Rest   string
}

func (*MatchMapping) pattern() {}

// MatchClass matches `ClassName(pos0, pos1, kw=pat, ...)`.
type MatchClass struct {
	base
	Cls          Expr
	Patterns     []Pattern // positional sub-patterns
	KwdAttrs     []string
	KwdPatterns  []Pattern
}

func (*MatchClass) pattern() {}

// MatchStar is `*name` (or `*_` when Name == "") inside a sequence pattern.
type MatchStar struct {
	base
	Name string
}

func (*MatchStar) pattern() {}

// MatchAs binds Pattern's match (or the subject itself, if Pattern is nil)
// to Name. A nil Pattern with a non-empty Name is a plain capture; a nil
// Pattern with an empty Name is the wildcard `_`.
type MatchAs struct {
	base
	Pattern Pattern
	Name    string
}

func (*MatchAs) pattern() {}

// MatchOr is `pattern | pattern | ...`; every alternative must bind the
// same set of names (spec §4.8, §8 property 6).
type MatchOr struct {
	base
	Patterns []Pattern
}

func (*MatchOr) pattern() {}
