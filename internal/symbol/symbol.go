// Package symbol implements the interned symbolic-expression DAG
// (spec §3.6, §4.1): scalars, region symbol values, region extents,
// conjured symbols, casts and binary trees, plus the symbol manager
// that owns the folding set and issues monotonic SymIds.
package symbol

import (
	"fmt"
	"sync"

	"knight/internal/bigint"
	"knight/internal/errors"
	"knight/internal/region"
)

// SymId is a monotonically increasing identifier issued on first
// interning of a given logical S-expr.
type SymId uint64

// Op is a binary operator drawn from the source language's operator
// set: arithmetic, bitwise, shift, comparison, assignment and
// compound-assignment kinds (spec §3.6).
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpShl
	OpShr
	OpAnd
	OpOr
	OpXor
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAssign
	OpAddAssign
	OpSubAssign
	OpMulAssign
	OpDivAssign
	OpModAssign
)

func (o Op) IsComparison() bool {
	return o == OpEq || o == OpNe || o == OpLt || o == OpLe || o == OpGt || o == OpGe
}

func (o Op) IsAssignment() bool {
	switch o {
	case OpAssign, OpAddAssign, OpSubAssign, OpMulAssign, OpDivAssign, OpModAssign:
		return true
	default:
		return false
	}
}

func (o Op) String() string {
	names := [...]string{"+", "-", "*", "/", "%", "<<", ">>", "&", "|", "^",
		"==", "!=", "<", "<=", ">", ">=", "=", "+=", "-=", "*=", "/=", "%="}
	if int(o) < len(names) {
		return names[o]
	}
	return "?"
}

// Kind distinguishes S-expr variants.
type Kind int

const (
	ScalarLit Kind = iota
	ScalarRegionAddr
	RegionSymVal
	RegionExtent
	Conjured
	Cast
	Unary
	Binary
)

// UnaryOp is a unary operator (negation, logical/bitwise complement).
type UnaryOp int

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
	UnaryBitNot
)

func (o UnaryOp) String() string {
	switch o {
	case UnaryNeg:
		return "-"
	case UnaryNot:
		return "!"
	case UnaryBitNot:
		return "~"
	default:
		return "?"
	}
}

// Ref is an interned, pointer-comparable handle to an S-expr: two
// constructions with equal logical inputs return the same Ref (spec
// §3.6, §8 interning identity).
type Ref = *SExpr

// SExpr is a node in the symbolic-value DAG.
type SExpr struct {
	id   SymId
	kind Kind
	typ  region.ValueType

	// ScalarLit
	lit bigint.Int

	// ScalarRegionAddr, RegionSymVal, RegionExtent
	reg *region.Region
	loc region.LocationContext

	// RegionSymVal
	external bool

	// Conjured
	conjStmt uint64
	conjFrame *region.StackFrame
	conjTag  string

	// Cast, Unary
	operand Ref
	srcType region.ValueType
	dstType region.ValueType

	// Unary
	unaryOp UnaryOp

	// Binary
	lhs, rhs Ref
	op       Op

	complexity     int
	complexityDone bool
}

func (e *SExpr) ID() SymId              { return e.id }
func (e *SExpr) Kind() Kind              { return e.kind }
func (e *SExpr) Type() region.ValueType  { return e.typ }
func (e *SExpr) Literal() bigint.Int     { return e.lit }
func (e *SExpr) Region() *region.Region  { return e.reg }
func (e *SExpr) Loc() region.LocationContext { return e.loc }
func (e *SExpr) IsExternal() bool        { return e.external }
func (e *SExpr) ConjuredStmt() uint64    { return e.conjStmt }
func (e *SExpr) ConjuredFrame() *region.StackFrame { return e.conjFrame }
func (e *SExpr) ConjuredTag() string     { return e.conjTag }
func (e *SExpr) Operand() Ref            { return e.operand }
func (e *SExpr) SrcType() region.ValueType { return e.srcType }
func (e *SExpr) DstType() region.ValueType { return e.dstType }
func (e *SExpr) LHS() Ref                { return e.lhs }
func (e *SExpr) RHS() Ref                { return e.rhs }
func (e *SExpr) Op() Op                  { return e.op }
func (e *SExpr) UnaryOp() UnaryOp        { return e.unaryOp }

// RegionDef is the region-symbol-value variant of SExpr, given its own
// name because program state's region_defs map binds regions to this
// specific variant (spec §3.9, §4.1).
type RegionDef = Ref

// Complexity is the worst-case structural complexity used to bound
// symbolic growth (spec §3.6): leaves are 1; binary nodes combine
// children multiplicatively for mul/div/bit ops, additively otherwise.
// Computed lazily and cached on first query.
func (e *SExpr) Complexity() int {
	if e.complexityDone {
		return e.complexity
	}
	var c int
	switch e.kind {
	case Binary:
		lc, rc := e.lhs.Complexity(), e.rhs.Complexity()
		switch e.op {
		case OpMul, OpDiv, OpMod, OpAnd, OpOr, OpXor, OpShl, OpShr:
			c = lc * rc
			if c == 0 {
				c = lc + rc
			}
		default:
			c = lc + rc
		}
	case Cast, Unary:
		c = e.operand.Complexity()
	default:
		c = 1
	}
	e.complexity = c
	e.complexityDone = true
	return c
}

func (e *SExpr) String() string {
	switch e.kind {
	case ScalarLit:
		return e.lit.String()
	case ScalarRegionAddr:
		return "&" + e.reg.String()
	case RegionSymVal:
		ext := ""
		if e.external {
			ext = "!"
		}
		return fmt.Sprintf("%s%s@%d", e.reg.String(), ext, e.id)
	case RegionExtent:
		return "extent(" + e.reg.String() + ")"
	case Conjured:
		return fmt.Sprintf("conj#%d[%s]", e.id, e.conjTag)
	case Cast:
		return fmt.Sprintf("(%s)%s", e.dstType.Name, e.operand.String())
	case Unary:
		return fmt.Sprintf("%s%s", e.unaryOp.String(), e.operand.String())
	case Binary:
		return fmt.Sprintf("(%s %s %s)", e.lhs.String(), e.op.String(), e.rhs.String())
	default:
		return "?"
	}
}

func requireValidType(t region.ValueType, msg string) {
	if !isValidType(t) {
		errors.Raise("symbol", errors.InvalidSExprType, "%s", msg)
	}
}

func isValidType(t region.ValueType) bool {
	return t.Name != "" && !t.IsVoid
}

// key is the folding-set key each constructor dedups on.
type key struct {
	kind     Kind
	typ      string
	litText  string
	regID    uint64
	frameID  uint64
	blockID  uint64
	stmtIdx  uint64
	external bool
	conjStmt uint64
	conjTag  string
	operand  Ref
	srcType  string
	dstType  string
	lhs, rhs Ref
	op       Op
	unaryOp  UnaryOp
}

// Manager owns the symbol interning pool for one analysis context. It
// is a leaf lock: manager methods never call back into analysis code
// while holding the lock (spec §5).
type Manager struct {
	mu     sync.Mutex
	pool   map[key]Ref
	nextID SymId
}

func NewManager() *Manager { return &Manager{pool: make(map[key]Ref)} }

func (m *Manager) intern(k key, build func(id SymId) *SExpr) Ref {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.pool[k]; ok {
		return r
	}
	m.nextID++
	r := build(m.nextID)
	m.pool[k] = r
	return r
}

// ScalarInt interns an integer literal.
func (m *Manager) ScalarInt(n bigint.Int, typ region.ValueType) Ref {
	requireValidType(typ, "invalid type for scalar literal")
	k := key{kind: ScalarLit, typ: typ.Name, litText: n.Text(16)}
	return m.intern(k, func(id SymId) *SExpr {
		return &SExpr{id: id, kind: ScalarLit, typ: typ, lit: n}
	})
}

// ScalarRegionAddr interns the address-of-region scalar.
func (m *Manager) ScalarRegionAddr(r *region.Region, typ region.ValueType) Ref {
	requireValidType(typ, "invalid type for scalar literal")
	k := key{kind: ScalarRegionAddr, typ: typ.Name, regID: r.ID()}
	return m.intern(k, func(id SymId) *SExpr {
		return &SExpr{id: id, kind: ScalarRegionAddr, typ: typ, reg: r}
	})
}

// RegionSymVal interns the abstract value held in r at loc, returning
// a RegionDef. external marks a value inherited from outside the
// current analysis scope (spec §3.6).
func (m *Manager) RegionSymVal(r *region.Region, loc region.LocationContext, external bool) RegionDef {
	requireValidType(r.Type(), "invalid type for region symbol value")
	k := key{kind: RegionSymVal, typ: r.Type().Name, regID: r.ID(),
		frameID: frameID(loc.Frame), blockID: loc.BlockID, stmtIdx: loc.StmtIdx, external: external}
	return m.intern(k, func(id SymId) *SExpr {
		return &SExpr{id: id, kind: RegionSymVal, typ: r.Type(), reg: r, loc: loc, external: external}
	})
}

// RegionExtent interns the symbolic size of r.
func (m *Manager) RegionExtent(r *region.Region, sizeType region.ValueType) Ref {
	requireValidType(sizeType, "invalid type for region extent")
	k := key{kind: RegionExtent, typ: sizeType.Name, regID: r.ID()}
	return m.intern(k, func(id SymId) *SExpr {
		return &SExpr{id: id, kind: RegionExtent, typ: sizeType, reg: r}
	})
}

// Conjured interns a fresh symbol tagged by (stmt, type, frame, tag).
// Distinct tags (or an empty tag at distinct call sites) are expected
// to be used by callers that want distinct conjured symbols; this
// constructor still dedups identical (stmt, type, frame, tag) tuples
// so re-resolving the same statement is idempotent.
func (m *Manager) Conjured(stmt uint64, typ region.ValueType, frame *region.StackFrame, tag string) Ref {
	requireValidType(typ, "invalid type for conjured symbol")
	k := key{kind: Conjured, typ: typ.Name, conjStmt: stmt, frameID: frameID(frame), conjTag: tag}
	return m.intern(k, func(id SymId) *SExpr {
		return &SExpr{id: id, kind: Conjured, typ: typ, conjStmt: stmt, conjFrame: frame, conjTag: tag}
	})
}

// Cast interns (operand, src, dst).
func (m *Manager) Cast(operand Ref, src, dst region.ValueType) Ref {
	requireValidType(dst, "invalid type for cast")
	k := key{kind: Cast, typ: dst.Name, operand: operand, srcType: src.Name, dstType: dst.Name}
	return m.intern(k, func(id SymId) *SExpr {
		return &SExpr{id: id, kind: Cast, typ: dst, operand: operand, srcType: src, dstType: dst}
	})
}

// Unary interns (op, operand).
func (m *Manager) Unary(op UnaryOp, operand Ref, typ region.ValueType) Ref {
	requireValidType(typ, "invalid type for unary expr")
	k := key{kind: Unary, typ: typ.Name, operand: operand, unaryOp: op}
	return m.intern(k, func(id SymId) *SExpr {
		return &SExpr{id: id, kind: Unary, typ: typ, operand: operand, unaryOp: op}
	})
}

// Binary interns (lhs, rhs, op, type).
func (m *Manager) Binary(lhs, rhs Ref, op Op, typ region.ValueType) Ref {
	requireValidType(typ, "invalid type for binary expr")
	k := key{kind: Binary, typ: typ.Name, lhs: lhs, rhs: rhs, op: op}
	return m.intern(k, func(id SymId) *SExpr {
		return &SExpr{id: id, kind: Binary, typ: typ, lhs: lhs, rhs: rhs, op: op}
	})
}

func frameID(f *region.StackFrame) uint64 {
	if f == nil {
		return 0
	}
	return f.ID
}

// Size reports how many S-exprs are currently interned.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pool)
}
