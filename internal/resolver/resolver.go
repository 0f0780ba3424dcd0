// Package resolver implements the symbol resolver K of spec §4.6: a
// statement/expression walker that turns a cfg.Expr tree into a
// symbolic value, dispatching assign/assumption events along the way
// so each loaded numerical analysis can refine the state it is handed,
// grounded on knight's own SymbolicExprEvaluator and
// ConditionVisitor (src/dfa/symbolic_expr_evaluator.cpp,
// src/dfa/conditional_stmt_visitor.cpp).
package resolver

import (
	"knight/internal/bigint"
	"knight/internal/cfg"
	"knight/internal/domain"
	"knight/internal/event"
	"knight/internal/linear"
	"knight/internal/region"
	"knight/internal/state"
	"knight/internal/symbol"
)

// Resolver walks statements/expressions for one function body, sharing
// the region and symbol managers with the rest of the analysis run.
type Resolver struct {
	regions *region.Manager
	symbols *symbol.Manager
	bus     *event.Bus
}

// New builds a resolver over the given interning managers and event
// bus; bus is typically shared with every loaded numerical analysis
// (spec §4.5).
func New(regions *region.Manager, symbols *symbol.Manager, bus *event.Bus) *Resolver {
	return &Resolver{regions: regions, symbols: symbols, bus: bus}
}

// EvalStmt resolves one statement, recording its resolved value (or
// its declared variable's initial value) into stmt_sexprs and
// returning the refined state.
func (r *Resolver) EvalStmt(s *state.State, stmt *cfg.Stmt, frame *region.StackFrame, loc region.LocationContext) *state.State {
	if stmt.Kind == cfg.DeclStmt {
		return r.evalDeclStmt(s, stmt, frame, loc)
	}
	next, v := r.evalExpr(s, stmt.Expr, frame, loc)
	return next.WithStmtSexpr(stmt, frame, v)
}

func (r *Resolver) evalDeclStmt(s *state.State, stmt *cfg.Stmt, frame *region.StackFrame, loc region.LocationContext) *state.State {
	reg := r.regions.Var(*stmt.Decl, frame)
	if stmt.Init == nil {
		def := r.symbols.RegionSymVal(reg, loc, false)
		return s.WithRegionDef(reg, frame, def).WithStmtSexpr(stmt, frame, def)
	}

	next, v := r.evalExpr(s, stmt.Init, frame, loc)
	next = r.bindTarget(next, reg, frame, loc, v)
	return next.WithStmtSexpr(stmt, frame, v)
}

// bindTarget mints the fresh RegionDef a declaration or assignment
// target gets, binds it into reg's slot, dispatches the matching
// assign event and records the equality constraint `target == v` when
// v reduces to a single linear term (spec §4.6's "adds an equality
// constraint target - rhs = 0").
func (r *Resolver) bindTarget(s *state.State, reg *region.Region, frame *region.StackFrame, loc region.LocationContext, v symbol.Ref) *state.State {
	target := r.symbols.RegionSymVal(reg, loc, false)
	targetVar := linear.Var(target.ID())

	ref := &event.StateRef{State: s}
	haveEq, eqRHS := dispatchAssignFor(r.bus, ref, targetVar, v)
	next := ref.State.WithRegionDef(reg, frame, target)

	if haveEq {
		next = next.WithConstraints(next.Constraints().AddLinear(linear.EQ(linear.NewVarExpr(targetVar), eqRHS)))
	} else {
		next = next.WithConstraints(next.Constraints().AddNonLinear(target))
	}
	return next
}

// dispatchAssignFor picks the Assign event variant matching v's shape
// and reports the linear expression the target should be made equal to
// (spec §4.6's X/Y/Z dispatch table), or (false, _) when v has no
// linear representation at all (e.g. a bare Unary node).
func dispatchAssignFor(bus *event.Bus, ref *event.StateRef, target linear.Var, v symbol.Ref) (bool, linear.Expr) {
	switch {
	case v.Kind() == symbol.ScalarLit:
		bus.DispatchAssign(ref, event.Assign{Kind: event.ZVarAssignZNum, X: target, Num: v.Literal()})
		return true, linear.NewExpr(v.Literal())
	case isVarLike(v):
		y := linear.Var(v.ID())
		bus.DispatchAssign(ref, event.Assign{Kind: event.ZVarAssignZVar, X: target, Y: y})
		return true, linear.NewVarExpr(y)
	case v.Kind() == symbol.Cast:
		opnd := v.Operand()
		if isVarLike(opnd) || opnd.Kind() == symbol.ScalarLit {
			y := linear.Var(opnd.ID())
			bus.DispatchAssign(ref, event.Assign{
				Kind:        event.ZVarAssignZCast,
				X:           target,
				Y:           y,
				DstWidth:    v.Type().BitWidth,
				DstUnsigned: v.Type().Unsigned,
			})
		}
		return false, linear.Expr{}
	case v.Kind() == symbol.Binary:
		if le, ok := asLinearExpr(v); ok {
			bus.DispatchAssign(ref, event.Assign{Kind: event.ZVarAssignZLinearExpr, X: target, Expr: le})
			return true, le
		}
		if binOp, ok := binOpOf(v.Op()); ok && !v.Op().IsComparison() {
			dispatchAssignBinary(bus, ref, target, binOp, v.LHS(), v.RHS())
		}
		return false, linear.Expr{}
	default:
		return false, linear.Expr{}
	}
}

func dispatchAssignBinary(bus *event.Bus, ref *event.StateRef, target linear.Var, op domain.BinOp, lhs, rhs symbol.Ref) {
	switch {
	case isVarLike(lhs) && rhs.Kind() == symbol.ScalarLit:
		bus.DispatchAssign(ref, event.Assign{Kind: event.ZVarAssignBinaryVarNum, X: target, Y: linear.Var(lhs.ID()), Op: op, Num: rhs.Literal()})
	case isVarLike(lhs) && isVarLike(rhs):
		bus.DispatchAssign(ref, event.Assign{Kind: event.ZVarAssignBinaryVarVar, X: target, Y: linear.Var(lhs.ID()), Z: linear.Var(rhs.ID()), Op: op})
	}
}

// isVarLike reports whether ref is treated as a bare linear-arithmetic
// variable: its SymId doubles as a linear.Var by the convention
// internal/state's fresh-region-def minting also follows.
func isVarLike(ref symbol.Ref) bool {
	return ref.Kind() == symbol.RegionSymVal || ref.Kind() == symbol.Conjured
}

// asLinearExpr attempts to express ref as a linear.Expr, recursing
// through Binary add/sub nodes and scalar multiplication by a
// constant; anything else (Cast, Unary, Mul/Div/Mod/bitwise of two
// variables) is non-linear and reported as such, landing in the
// constraint system's opaque non-linear fact set instead.
func asLinearExpr(ref symbol.Ref) (linear.Expr, bool) {
	switch {
	case ref.Kind() == symbol.ScalarLit:
		return linear.NewExpr(ref.Literal()), true
	case isVarLike(ref):
		return linear.NewVarExpr(linear.Var(ref.ID())), true
	case ref.Kind() == symbol.Binary:
		switch ref.Op() {
		case symbol.OpAdd, symbol.OpSub:
			le, lok := asLinearExpr(ref.LHS())
			re, rok := asLinearExpr(ref.RHS())
			if !lok || !rok {
				return linear.Expr{}, false
			}
			if ref.Op() == symbol.OpAdd {
				return le.Add(re), true
			}
			return le.Sub(re), true
		case symbol.OpMul:
			if ref.LHS().Kind() == symbol.ScalarLit {
				if re, ok := asLinearExpr(ref.RHS()); ok {
					return re.ScalarMul(ref.LHS().Literal()), true
				}
			}
			if ref.RHS().Kind() == symbol.ScalarLit {
				if le, ok := asLinearExpr(ref.LHS()); ok {
					return le.ScalarMul(ref.RHS().Literal()), true
				}
			}
			return linear.Expr{}, false
		default:
			return linear.Expr{}, false
		}
	default:
		return linear.Expr{}, false
	}
}

func binOpOf(op symbol.Op) (domain.BinOp, bool) {
	switch op {
	case symbol.OpAdd:
		return domain.BinAdd, true
	case symbol.OpSub:
		return domain.BinSub, true
	case symbol.OpMul:
		return domain.BinMul, true
	case symbol.OpDiv:
		return domain.BinDiv, true
	case symbol.OpMod:
		return domain.BinMod, true
	case symbol.OpShl:
		return domain.BinShl, true
	case symbol.OpShr:
		return domain.BinShr, true
	case symbol.OpAnd:
		return domain.BinAnd, true
	case symbol.OpOr:
		return domain.BinOr, true
	case symbol.OpXor:
		return domain.BinXor, true
	default:
		return 0, false
	}
}

func compoundBinOp(op symbol.Op) (domain.BinOp, bool) {
	switch op {
	case symbol.OpAddAssign:
		return domain.BinAdd, true
	case symbol.OpSubAssign:
		return domain.BinSub, true
	case symbol.OpMulAssign:
		return domain.BinMul, true
	case symbol.OpDivAssign:
		return domain.BinDiv, true
	case symbol.OpModAssign:
		return domain.BinMod, true
	default:
		return 0, false
	}
}

// evalExpr resolves e to a symbolic value, dispatching events for any
// assignment it contains (spec §4.6's per-ExprKind table).
func (r *Resolver) evalExpr(s *state.State, e *cfg.Expr, frame *region.StackFrame, loc region.LocationContext) (*state.State, symbol.Ref) {
	switch e.Kind {
	case cfg.IntLiteral:
		return s, r.symbols.ScalarInt(e.Lit, e.Type)
	case cfg.DeclRef:
		return r.evalDeclRef(s, e, frame, loc)
	case cfg.Cast:
		return r.evalCast(s, e, frame, loc)
	case cfg.Unary:
		return r.evalUnary(s, e, frame, loc)
	case cfg.Binary:
		return r.evalBinary(s, e, frame, loc)
	default:
		panic("resolver: unknown expr kind")
	}
}

func (r *Resolver) evalDeclRef(s *state.State, e *cfg.Expr, frame *region.StackFrame, loc region.LocationContext) (*state.State, symbol.Ref) {
	reg := r.regions.Var(e.Decl, frame)
	if def, ok := s.RegionDef(reg, frame); ok {
		return s, def
	}
	def := r.symbols.RegionSymVal(reg, loc, true)
	return s.WithRegionDef(reg, frame, def), def
}

// evalCast resolves the operand, wraps it in a Cast S-expr, and for
// casts that change integer width or signedness additionally uses the
// Cast S-expr itself as the target and dispatches ZVarAssignZCast so numerical domains
// track the truncation/extension (spec §4.6).
func (r *Resolver) evalCast(s *state.State, e *cfg.Expr, frame *region.StackFrame, loc region.LocationContext) (*state.State, symbol.Ref) {
	next, opv := r.evalExpr(s, e.Operand, frame, loc)
	castSym := r.symbols.Cast(opv, e.Operand.Type, e.Type)

	if !changesIntRepresentation(e.Operand.Type, e.Type) {
		return next, castSym
	}
	if !isVarLike(opv) && opv.Kind() != symbol.ScalarLit {
		return next, castSym
	}

	ref := &event.StateRef{State: next}
	r.bus.DispatchAssign(ref, event.Assign{
		Kind:        event.ZVarAssignZCast,
		X:           linear.Var(castSym.ID()),
		Y:           linear.Var(opv.ID()),
		DstWidth:    e.Type.BitWidth,
		DstUnsigned: e.Type.Unsigned,
	})
	return ref.State, castSym
}

func changesIntRepresentation(src, dst region.ValueType) bool {
	return src.IsInt && dst.IsInt && (src.BitWidth != dst.BitWidth || src.Unsigned != dst.Unsigned)
}

// evalUnary resolves the operand and wraps it in a unary S-expr; no
// event fires since no numerical-assign variant models a bare unary
// operator (spec §4.5's event set has none).
func (r *Resolver) evalUnary(s *state.State, e *cfg.Expr, frame *region.StackFrame, loc region.LocationContext) (*state.State, symbol.Ref) {
	next, opv := r.evalExpr(s, e.Operand, frame, loc)
	return next, r.symbols.Unary(e.UnaryOp, opv, e.Type)
}

// evalBinary resolves both operands, then either drives an assignment
// (plain or compound) or produces a plain value node, constant-folding
// when both operands are literals.
func (r *Resolver) evalBinary(s *state.State, e *cfg.Expr, frame *region.StackFrame, loc region.LocationContext) (*state.State, symbol.Ref) {
	next, lv := r.evalExpr(s, e.LHS, frame, loc)
	next, rv := r.evalExpr(next, e.RHS, frame, loc)

	if e.Op.IsAssignment() {
		return r.evalAssignment(next, e, lv, rv, frame, loc)
	}

	if lv.Kind() == symbol.ScalarLit && rv.Kind() == symbol.ScalarLit {
		if n, ok := foldConstant(e.Op, lv.Literal(), rv.Literal()); ok {
			return next, r.symbols.ScalarInt(n, e.Type)
		}
	}
	return next, r.symbols.Binary(lv, rv, e.Op, e.Type)
}

func foldConstant(op symbol.Op, a, b bigint.Int) (bigint.Int, bool) {
	switch op {
	case symbol.OpAdd:
		return a.Add(b), true
	case symbol.OpSub:
		return a.Sub(b), true
	case symbol.OpMul:
		return a.Mul(b), true
	case symbol.OpDiv:
		if b.IsZero() {
			return bigint.Int{}, false
		}
		return a.Div(b), true
	case symbol.OpMod:
		if b.IsZero() {
			return bigint.Int{}, false
		}
		return a.Mod(b), true
	case symbol.OpAnd:
		return a.And(b), true
	case symbol.OpOr:
		return a.Or(b), true
	case symbol.OpXor:
		return a.Xor(b), true
	default:
		return bigint.Int{}, false
	}
}

// evalAssignment handles plain (`=`) and compound (`+=`, `-=`, ...)
// assignment to a declared variable, minting the target's fresh
// RegionDef and dispatching the matching event (spec §4.6).
func (r *Resolver) evalAssignment(s *state.State, e *cfg.Expr, lv, rv symbol.Ref, frame *region.StackFrame, loc region.LocationContext) (*state.State, symbol.Ref) {
	reg := r.regions.Var(e.LHS.Decl, frame)

	if e.Op == symbol.OpAssign {
		next := r.bindTarget(s, reg, frame, loc, rv)
		def, _ := next.RegionDef(reg, frame)
		return next, def
	}

	binOp, ok := compoundBinOp(e.Op)
	if !ok {
		panic("resolver: unrecognized assignment operator")
	}

	target := r.symbols.RegionSymVal(reg, loc, false)
	targetVar := linear.Var(target.ID())
	ref := &event.StateRef{State: s}
	dispatchAssignBinary(r.bus, ref, targetVar, binOp, lv, rv)
	next := ref.State.WithRegionDef(reg, frame, target)

	isLinearOp := binOp == domain.BinAdd || binOp == domain.BinSub
	if isLinearOp && isVarLike(lv) {
		var rhsExpr linear.Expr
		var haveRHS bool
		switch {
		case rv.Kind() == symbol.ScalarLit:
			rhsExpr, haveRHS = linear.NewExpr(rv.Literal()), true
		case isVarLike(rv):
			rhsExpr, haveRHS = linear.NewVarExpr(linear.Var(rv.ID())), true
		}
		if haveRHS {
			y := linear.NewVarExpr(linear.Var(lv.ID()))
			var combined linear.Expr
			if binOp == domain.BinAdd {
				combined = y.Add(rhsExpr)
			} else {
				combined = y.Sub(rhsExpr)
			}
			next = next.WithConstraints(next.Constraints().AddLinear(linear.EQ(linear.NewVarExpr(targetVar), combined)))
			return next, target
		}
	}

	next = next.WithConstraints(next.Constraints().AddNonLinear(target))
	return next, target
}

// FilterCondition applies the predicate a branch condition implies,
// per spec §4.6/§4.7: branch selects true (then) or false (else); a
// condition that is not a comparison has no effect beyond resolving
// its operands.
func (r *Resolver) FilterCondition(s *state.State, cond *cfg.Expr, branch bool, frame *region.StackFrame, loc region.LocationContext) *state.State {
	if cond.Kind != cfg.Binary || !cond.Op.IsComparison() {
		next, _ := r.evalExpr(s, cond, frame, loc)
		return next
	}

	next, lv := r.evalExpr(s, cond.LHS, frame, loc)
	next, rv := r.evalExpr(next, cond.RHS, frame, loc)

	c, ok := predicateConstraint(cond.Op, lv, rv)
	if !ok {
		return next
	}
	if !branch {
		c = c.Negate()
	}

	kind, x, y, num := classifyPredicate(lv, rv)
	ref := &event.StateRef{State: next}
	r.bus.DispatchAssumption(ref, event.Assumption{
		Kind:       kind,
		Op:         cond.Op,
		X:          x,
		Y:          y,
		Num:        num,
		Constraint: c,
	})
	next = ref.State
	return next.WithConstraints(next.Constraints().AddLinear(c))
}

// predicateExpr reduces ref to the linear.Expr a comparison can pivot
// on: a bare variable or a constant. Anything else cannot be encoded
// by spec §4.7's table and is reported as such.
func predicateExpr(ref symbol.Ref) (linear.Expr, bool) {
	switch {
	case ref.Kind() == symbol.ScalarLit:
		return linear.NewExpr(ref.Literal()), true
	case isVarLike(ref):
		return linear.NewVarExpr(linear.Var(ref.ID())), true
	default:
		return linear.Expr{}, false
	}
}

// predicateConstraint implements spec §4.7's comparison-op encoding
// table: == -> lhs-rhs==0, != -> lhs-rhs!=0, < -> lhs<=rhs-1,
// > -> lhs>=rhs+1, <= -> lhs<=rhs, >= -> lhs>=rhs.
func predicateConstraint(op symbol.Op, lv, rv symbol.Ref) (linear.Constraint, bool) {
	le, ok1 := predicateExpr(lv)
	re, ok2 := predicateExpr(rv)
	if !ok1 || !ok2 {
		return linear.Constraint{}, false
	}
	one := bigint.FromInt64(1)
	switch op {
	case symbol.OpEq:
		return linear.EQ(le, re), true
	case symbol.OpNe:
		return linear.NE(le, re), true
	case symbol.OpLt:
		return linear.LE(le, re.AddConst(one.Neg())), true
	case symbol.OpGt:
		return linear.GE(le, re.AddConst(one)), true
	case symbol.OpLe:
		return linear.LE(le, re), true
	case symbol.OpGe:
		return linear.GE(le, re), true
	default:
		return linear.Constraint{}, false
	}
}

// classifyPredicate picks the Assumption event variant matching the
// shapes of lv/rv, for listeners that want op-level detail beyond the
// already-encoded Constraint (spec §4.5's PredicateZVarZNum /
// PredicateZVarZVar split). Neither operand being a bare variable
// (e.g. a compile-time-constant comparison) falls back to
// GeneralLinearConstraint, carrying no var/num payload.
func classifyPredicate(lv, rv symbol.Ref) (kind event.AssumptionKind, x, y linear.Var, num bigint.Int) {
	switch {
	case isVarLike(lv) && isVarLike(rv):
		return event.PredicateZVarZVar, linear.Var(lv.ID()), linear.Var(rv.ID()), bigint.Zero()
	case isVarLike(lv) && rv.Kind() == symbol.ScalarLit:
		return event.PredicateZVarZNum, linear.Var(lv.ID()), 0, rv.Literal()
	case isVarLike(rv) && lv.Kind() == symbol.ScalarLit:
		return event.PredicateZVarZNum, linear.Var(rv.ID()), 0, lv.Literal()
	default:
		return event.GeneralLinearConstraint, 0, 0, bigint.Zero()
	}
}
