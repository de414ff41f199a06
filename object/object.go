// Package object defines the handful of constant-representable value
// kinds a code object's constant pool can hold.
//
// This is deliberately not a runtime object system: the executing
// interpreter, its arithmetic, method dispatch, and reference semantics
// are out of scope (spec §1). What remains in scope is representing the
// literal values the constant cache (spec §4.2) interns — ints, floats,
// strings, the None/Ellipsis singletons, tuples/frozensets of constants,
// and compiled child code objects — closely following the shape of
// dr8co-kong/object/object.go's Integer/String/Boolean/etc. types.
package object

import (
	"fmt"
	"strconv"
)

// Kind tags which constant variant a Value holds.
type Kind string

//nolint:revive
const (
	NoneKind      Kind = "NONE"
	EllipsisKind  Kind = "ELLIPSIS"
	BoolKind      Kind = "BOOL"
	IntKind       Kind = "INT"
	FloatKind     Kind = "FLOAT"
	ComplexKind   Kind = "COMPLEX"
	StrKind       Kind = "STR"
	BytesKind     Kind = "BYTES"
	TupleKind     Kind = "TUPLE"
	FrozenSetKind Kind = "FROZENSET"
	CodeKind      Kind = "CODE"
)

// Value is the interface implemented by every constant-representable kind.
type Value interface {
	// Kind reports which constant variant this is.
	Kind() Kind

	// Inspect returns a debug representation, mirroring object.Object's
	// Inspect method in the teacher package.
	Inspect() string
}

// None is the sole instance of the None singleton.
type None struct{}

func (None) Kind() Kind      { return NoneKind }
func (None) Inspect() string { return "None" }

// Ellipsis is the sole instance of the `...` singleton.
type Ellipsis struct{}

func (Ellipsis) Kind() Kind      { return EllipsisKind }
func (Ellipsis) Inspect() string { return "Ellipsis" }

// Bool wraps a boolean constant. It is kept distinct from Int so that
// True/False never collide with 1/0 in the constant cache (spec §4.2).
type Bool struct{ Value bool }

func (b Bool) Kind() Kind      { return BoolKind }
func (b Bool) Inspect() string { return strconv.FormatBool(b.Value) }

// Int wraps an arbitrary-precision-looking integer constant. A systems
//-language rewrite need not reimplement bignum arithmetic to satisfy the
// code generator: only identity/equality of the literal matters here.
type Int struct{ Value int64 }

func (i Int) Kind() Kind      { return IntKind }
func (i Int) Inspect() string { return strconv.FormatInt(i.Value, 10) }

// Float wraps a floating-point constant.
type Float struct{ Value float64 }

func (f Float) Kind() Kind      { return FloatKind }
func (f Float) Inspect() string { return strconv.FormatFloat(f.Value, 'g', -1, 64) }

// Complex wraps a complex-number constant.
type Complex struct{ Real, Imag float64 }

func (c Complex) Kind() Kind { return ComplexKind }
func (c Complex) Inspect() string {
	return fmt.Sprintf("(%g%+gj)", c.Real, c.Imag)
}

// Str wraps a text-string constant.
type Str struct{ Value string }

func (s Str) Kind() Kind      { return StrKind }
func (s Str) Inspect() string { return strconv.Quote(s.Value) }

// Bytes wraps a bytes-literal constant.
type Bytes struct{ Value string }

func (b Bytes) Kind() Kind      { return BytesKind }
func (b Bytes) Inspect() string { return "b" + strconv.Quote(b.Value) }

// Tuple wraps an immutable, possibly-nested, sequence constant.
type Tuple struct{ Elems []Value }

func (t Tuple) Kind() Kind { return TupleKind }
func (t Tuple) Inspect() string {
	out := "("
	for i, e := range t.Elems {
		if i > 0 {
			out += ", "
		}
		out += e.Inspect()
	}
	return out + ")"
}

// FrozenSet wraps an immutable set constant. Member order is insertion
// order of the canonicalized elements; equality (for cache purposes) is
// order-independent and handled by constpool's key derivation.
type FrozenSet struct{ Elems []Value }

func (f FrozenSet) Kind() Kind { return FrozenSetKind }
func (f FrozenSet) Inspect() string {
	out := "frozenset({"
	for i, e := range f.Elems {
		if i > 0 {
			out += ", "
		}
		out += e.Inspect()
	}
	return out + "})"
}

// CodeObject is the assembled result of compiling one lexical scope: the
// final output of the Scope-Transition Driver (spec §4.3) and, loaded as
// a constant in its parent, an input to MAKE_FUNCTION (spec §4.12).
type CodeObject struct {
	Name          string
	QualName      string
	Filename      string
	FirstLine     int
	ArgCount      int
	PosOnlyCount  int
	KwOnlyCount   int
	Flags         CodeFlag
	Consts        []Value
	Names         []string
	VarNames      []string
	CellVars      []string
	FreeVars      []string
	Code          []byte
	StackSize     int
	LineTable     []LineEntry
}

func (c *CodeObject) Kind() Kind { return CodeKind }
func (c *CodeObject) Inspect() string {
	return fmt.Sprintf("<code %s at %s:%d>", c.QualName, c.Filename, c.FirstLine)
}

// CodeFlag mirrors the code-flag bits listed in spec §6.
type CodeFlag uint32

const (
	FlagOptimized CodeFlag = 1 << iota
	FlagNewLocals
	FlagVarargs
	FlagVarKeywords
	FlagNested
	FlagGenerator
	FlagCoroutine
	FlagAsyncGenerator
)

// Has reports whether every bit in mask is set.
func (f CodeFlag) Has(mask CodeFlag) bool { return f&mask == mask }

// LineEntry maps a byte-offset range in Code to a source line, the
// minimal shape the external assembler needs to emit (spec §6 "line
// table").
type LineEntry struct {
	StartOffset int
	EndOffset   int
	Line        int
}
