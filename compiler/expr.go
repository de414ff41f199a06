package compiler

import (
	"github.com/ninelines/pybc/ast"
	"github.com/ninelines/pybc/code"
	"github.com/ninelines/pybc/errs"
	"github.com/ninelines/pybc/object"
)

// compileExpr pushes e's value onto the stack (spec §4.5). Every case
// leaves exactly one value on the stack; callers that don't want it pop
// with POP_TOP themselves (compileExprStmt does this).
func (c *Compiler) compileExpr(e ast.Expr) {
	u := c.cur
	loc := e.Location()
	switch n := e.(type) {
	case *ast.Constant:
		idx := c.constIdx(u, c.cache.Canonicalize(goValueToConst(n.Value)))
		u.emit(code.LOAD_CONSTANT, idx, loc)

	case *ast.Name:
		c.nameop(u, n.Id, ctxLoad, loc)

	case *ast.JoinedStr:
		for _, v := range n.Values {
			c.compileExpr(v)
		}
		if len(n.Values) != 1 {
			u.emit(code.BUILD_STRING, int32(len(n.Values)), loc)
		}

	case *ast.FormattedValue:
		c.compileExpr(n.Value)
		if n.Conversion != 0 {
			u.emit(code.CONVERT_VALUE, int32(n.Conversion), loc)
		}
		if n.FormatSpec != nil {
			c.compileExpr(n.FormatSpec)
			u.emit(code.FORMAT_WITH_SPEC, 0, loc)
		} else {
			u.emit(code.FORMAT_SIMPLE, 0, loc)
		}

	case *ast.BoolOp:
		c.compileBoolOp(n)

	case *ast.BinOpExpr:
		c.compileExpr(n.Left)
		c.compileExpr(n.Right)
		u.emit(binOpcode(n.Op), 0, loc)

	case *ast.UnaryOpExpr:
		c.compileExpr(n.Operand)
		u.emit(unaryOpcode(n.Op), 0, loc)

	case *ast.Compare:
		c.compileCompare(n)

	case *ast.IfExp:
		elseLabel := u.newLabel()
		endLabel := u.newLabel()
		c.compileExpr(n.Test)
		u.emitJump(code.JUMP_IF_FALSE, elseLabel, loc)
		c.compileExpr(n.Body)
		u.emitJump(code.JUMP, endLabel, loc)
		u.placeLabel(elseLabel)
		c.compileExpr(n.OrElse)
		u.placeLabel(endLabel)

	case *ast.Lambda:
		c.compileFunctionLike(n, "<lambda>", n.Args, nil, []ast.Stmt{&ast.Return{Value: n.Body}}, n.Location())

	case *ast.Attribute:
		c.compileExpr(n.Value)
		idx := u.nameIdx(mangle(n.Attr, u.manglePrefix))
		u.emit(code.LOAD_ATTR, idx, loc)

	case *ast.Subscript:
		c.compileExpr(n.Value)
		c.compileExpr(n.Index)
		u.emit(code.BINARY_SUBSCR, 0, loc)

	case *ast.Slice:
		lo, hi, step := n.Lower, n.Upper, n.Step
		pushOrNone := func(e ast.Expr) {
			if e == nil {
				c.compileExpr(&ast.Constant{Value: nil})
				return
			}
			c.compileExpr(e)
		}
		pushOrNone(lo)
		pushOrNone(hi)
		if step != nil {
			pushOrNone(step)
			u.emit(code.BUILD_SLICE, 3, loc)
		} else {
			u.emit(code.BUILD_SLICE, 2, loc)
		}

	case *ast.Starred:
		c.compileExpr(n.Value)

	case *ast.ListExpr:
		c.compileSequenceLiteral(n.Elts, code.BUILD_LIST, code.LIST_EXTEND, code.LIST_APPEND, loc)

	case *ast.TupleExpr:
		c.compileSequenceLiteral(n.Elts, code.BUILD_TUPLE, code.LIST_EXTEND, code.LIST_APPEND, loc)

	case *ast.SetExpr:
		c.compileSequenceLiteral(n.Elts, code.BUILD_SET, code.SET_UPDATE, code.SET_ADD, loc)

	case *ast.DictExpr:
		c.compileDictLiteral(n, loc)

	case *ast.ListComp:
		c.compileComprehension(n, n.Elt, nil, nil, n.Gens, code.BUILD_LIST, code.LIST_APPEND)
	case *ast.SetComp:
		c.compileComprehension(n, n.Elt, nil, nil, n.Gens, code.BUILD_SET, code.SET_ADD)
	case *ast.DictComp:
		c.compileComprehension(n, nil, n.Key, n.Value, n.Gens, code.BUILD_MAP, code.MAP_ADD)
	case *ast.GeneratorExp:
		c.compileGeneratorExp(n)

	case *ast.Call:
		c.compileCall(n)

	case *ast.Yield:
		if n.Value != nil {
			c.compileExpr(n.Value)
		} else {
			c.compileExpr(&ast.Constant{Value: nil})
		}
		u.emit(code.SEND, 0, loc) // placeholder suspend point; real yield uses a dedicated RESUME cycle the VM drives

	case *ast.YieldFrom:
		c.compileExpr(n.Value)
		u.emit(code.GET_ITER, 0, loc)
		c.compileExpr(&ast.Constant{Value: nil})
		u.emit(code.SEND, 0, loc)

	case *ast.Await:
		c.compileExpr(n.Value)
		u.emit(code.GET_AWAITABLE, 0, loc)
		c.compileExpr(&ast.Constant{Value: nil})
		u.emit(code.SEND, 0, loc)

	case *ast.NamedExpr:
		c.compileExpr(n.Value)
		u.emit(code.COPY, 1, loc)
		c.nameop(u, n.Target.Id, ctxStore, loc)

	default:
		c.fail(errs.SystemError, loc, "unhandled expression node %T", e)
	}
}

// goValueToConst adapts an ast.Constant's untyped Go value (as a parser
// front end would hand the generator a parsed literal) into the
// constant-representable object.Value kinds the pool can intern.
func goValueToConst(v any) object.Value {
	switch val := v.(type) {
	case nil:
		return object.None{}
	case bool:
		return object.Bool{Value: val}
	case int64:
		return object.Int{Value: val}
	case int:
		return object.Int{Value: int64(val)}
	case float64:
		return object.Float{Value: val}
	case string:
		return object.Str{Value: val}
	case []byte:
		return object.Bytes{Value: string(val)}
	case object.Value:
		return val
	default:
		return object.Str{Value: ""}
	}
}

func binOpcode(op ast.BinOp) code.Opcode {
	switch op {
	case ast.Add:
		return code.BINARY_ADD
	case ast.Sub:
		return code.BINARY_SUB
	case ast.Mul:
		return code.BINARY_MUL
	case ast.Div:
		return code.BINARY_DIV
	case ast.FloorDiv:
		return code.BINARY_FLOORDIV
	case ast.Mod:
		return code.BINARY_MOD
	case ast.Pow:
		return code.BINARY_POW
	case ast.LShift:
		return code.BINARY_LSHIFT
	case ast.RShift:
		return code.BINARY_RSHIFT
	case ast.BitOr:
		return code.BINARY_OR
	case ast.BitXor:
		return code.BINARY_XOR
	case ast.BitAnd:
		return code.BINARY_AND
	case ast.MatMul:
		return code.BINARY_MATMUL
	default:
		return code.BINARY_ADD
	}
}

func unaryOpcode(op ast.UnaryOp) code.Opcode {
	switch op {
	case ast.Not:
		return code.UNARY_NOT
	case ast.USub:
		return code.UNARY_NEGATIVE
	case ast.UAdd:
		return code.UNARY_POSITIVE
	case ast.Invert:
		return code.UNARY_INVERT
	default:
		return code.UNARY_NOT
	}
}

// compileBoolOp emits short-circuit evaluation: `and` jumps out early on
// a false operand, `or` jumps out early on a true one, both leaving
// that operand's actual value (not a coerced bool) on the stack
// (spec §4.5).
func (c *Compiler) compileBoolOp(n *ast.BoolOp) {
	u := c.cur
	end := u.newLabel()
	jumpOp := code.JUMP_IF_FALSE
	if n.Op == ast.Or {
		jumpOp = code.JUMP_IF_TRUE
	}
	for i, v := range n.Values {
		c.compileExpr(v)
		if i == len(n.Values)-1 {
			break
		}
		u.emit(code.COPY, 1, n.Location())
		u.emitJump(jumpOp, end, n.Location())
		u.emit(code.POP_TOP, 0, n.Location())
	}
	u.placeLabel(end)
}

// compileCompare handles chained comparisons (`a < b < c`), evaluating
// each operand once and short-circuiting to False the moment one link
// fails without evaluating the remaining operands (spec §4.5).
func (c *Compiler) compileCompare(n *ast.Compare) {
	u := c.cur
	c.compileExpr(n.Left)
	if len(n.Ops) == 1 {
		c.compileExpr(n.Comparators[0])
		c.emitCmp(n.Ops[0], n.Location())
		return
	}
	end := u.newLabel()
	for i, op := range n.Ops {
		c.compileExpr(n.Comparators[i])
		last := i == len(n.Ops)-1
		if !last {
			u.emit(code.SWAP, 2, n.Location())
			u.emit(code.COPY, 2, n.Location())
		}
		c.emitCmp(op, n.Location())
		if !last {
			u.emit(code.COPY, 1, n.Location())
			u.emitJump(code.JUMP_IF_FALSE, end, n.Location())
			u.emit(code.POP_TOP, 0, n.Location())
		}
	}
	done := u.newLabel()
	u.emitJump(code.JUMP, done, n.Location())
	u.placeLabel(end)
	u.emit(code.SWAP, 2, n.Location())
	u.emit(code.POP_TOP, 0, n.Location())
	u.placeLabel(done)
}

func (c *Compiler) emitCmp(op ast.CmpOp, loc ast.Loc) {
	u := c.cur
	switch op {
	case ast.Is:
		u.emit(code.IS_OP, 0, loc)
	case ast.IsNot:
		u.emit(code.IS_OP, 1, loc)
	case ast.In:
		u.emit(code.CMP, int32(ast.In), loc)
	case ast.NotIn:
		u.emit(code.CMP, int32(ast.NotIn), loc)
	default:
		u.emit(code.CMP, int32(op), loc)
	}
}

// compileSequenceLiteral emits a single BUILD_* for the whole literal
// when nothing is starred, falling back to an empty-build-then-extend/
// append sequence the moment a Starred element requires splicing another
// iterable in. The literal's length is not considered: a long literal
// with no Starred element still pushes every element before one BUILD_*.
func (c *Compiler) compileSequenceLiteral(elts []ast.Expr, build, extend, appendOp code.Opcode, loc ast.Loc) {
	u := c.cur
	hasStar := false
	for _, e := range elts {
		if _, ok := e.(*ast.Starred); ok {
			hasStar = true
			break
		}
	}
	if !hasStar {
		for _, e := range elts {
			c.compileExpr(e)
		}
		u.emit(build, int32(len(elts)), loc)
		return
	}
	u.emit(build, 0, loc)
	for _, e := range elts {
		if star, ok := e.(*ast.Starred); ok {
			c.compileExpr(star.Value)
			u.emit(extend, 1, loc)
			continue
		}
		c.compileExpr(e)
		u.emit(appendOp, 1, loc)
	}
}

func (c *Compiler) compileDictLiteral(n *ast.DictExpr, loc ast.Loc) {
	u := c.cur
	u.emit(code.BUILD_MAP, 0, loc)
	for i, k := range n.Keys {
		if k == nil {
			// `**value` unpack (spec §4.5).
			c.compileExpr(n.Values[i])
			u.emit(code.DICT_MERGE, 1, loc)
			continue
		}
		c.compileExpr(k)
		c.compileExpr(n.Values[i])
		u.emit(code.MAP_ADD, 1, loc)
	}
}

// compileCall handles the LOAD_METHOD fast path for `obj.method(...)`
// (spec §4.5: "avoid materializing a bound method object when calling
// obj.method(...) directly") and zero-arg super() resolution, falling
// back to the general Func(*args, **kwargs) shape otherwise.
func (c *Compiler) compileCall(n *ast.Call) {
	u := c.cur
	loc := n.Location()

	if attr, ok := n.Func.(*ast.Attribute); ok && !hasStarredArgs(n) {
		c.compileExpr(attr.Value)
		idx := u.nameIdx(mangle(attr.Attr, u.manglePrefix))
		u.emit(code.LOAD_METHOD, idx, loc)
		for _, a := range n.Args {
			c.compileExpr(a)
		}
		for _, kw := range n.Keywords {
			c.compileExpr(kw.Value)
		}
		u.emit(code.CALL, int32(len(n.Args)+len(n.Keywords)), loc)
		return
	}

	if name, ok := n.Func.(*ast.Name); ok && name.Id == "super" && len(n.Args) == 0 && len(n.Keywords) == 0 {
		idx := u.nameIdx("super")
		u.emit(code.LOAD_SUPER_METHOD, idx, loc)
		return
	}

	if hasStarredArgs(n) {
		c.compileExpr(n.Func)
		c.compileSequenceLiteral(n.Args, code.BUILD_TUPLE, code.LIST_EXTEND, code.LIST_APPEND, loc)
		u.emit(code.BUILD_MAP, 0, loc)
		for _, kw := range n.Keywords {
			if kw.Name == "" {
				c.compileExpr(kw.Value)
				u.emit(code.DICT_MERGE, 1, loc)
				continue
			}
			idx := c.constIdx(u, c.cache.Canonicalize(object.Str{Value: kw.Name}))
			u.emit(code.LOAD_CONSTANT, idx, loc)
			c.compileExpr(kw.Value)
			u.emit(code.MAP_ADD, 1, loc)
		}
		u.emit(code.CALL_FUNCTION_EX, 0, loc)
		return
	}

	c.compileExpr(n.Func)
	for _, a := range n.Args {
		c.compileExpr(a)
	}
	for _, kw := range n.Keywords {
		c.compileExpr(kw.Value)
	}
	u.emit(code.CALL, int32(len(n.Args)+len(n.Keywords)), loc)
}

func hasStarredArgs(n *ast.Call) bool {
	for _, a := range n.Args {
		if _, ok := a.(*ast.Starred); ok {
			return true
		}
	}
	for _, kw := range n.Keywords {
		if kw.Name == "" {
			return true
		}
	}
	return false
}

func (c *Compiler) fail(kind errs.Kind, loc ast.Loc, format string, args ...any) {
	panic(errs.New(kind, errs.Position{
		Filename:  c.filename,
		StartLine: loc.StartLine, EndLine: loc.EndLine,
		StartCol: loc.StartCol, EndCol: loc.EndCol,
	}, format, args...))
}
