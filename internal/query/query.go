// Package query implements the read-only view into a ProgramState that
// checkers are handed (spec §6.2): resolving a declaration or
// expression to its region, reading a region's current binding, the
// per-statement symbolic-value cache, and typed per-domain access.
// It is grounded on ProgramState's own query surface
// (analyzer/src/core/program_state.cpp's get_region/try_get_zvariable/
// get_region_def/get_stmt_sexpr), adapted to this engine's cfg/region/
// symbol seam instead of clang's AST.
package query

import (
	"knight/internal/cfg"
	"knight/internal/domain"
	"knight/internal/errors"
	"knight/internal/linear"
	"knight/internal/region"
	"knight/internal/state"
	"knight/internal/symbol"
)

// StateQuery is a checker's window into one function's analysis state
// at one program point, scoped to a single stack frame.
type StateQuery struct {
	state *state.State
	rm    *region.Manager
	frame *region.StackFrame
	log   *errors.Logger
}

// New builds a StateQuery over s, scoped to frame. log receives front-
// end mismatches (spec §7.1 class 3); it may be nil.
func New(s *state.State, rm *region.Manager, frame *region.StackFrame, log *errors.Logger) *StateQuery {
	return &StateQuery{state: s, rm: rm, frame: frame, log: log}
}

// State returns the underlying ProgramState, for callers that need the
// full domain/constraint surface rather than this query's projections.
func (q *StateQuery) State() *state.State { return q.state }

// Frame returns the stack frame this query is scoped to.
func (q *StateQuery) Frame() *region.StackFrame { return q.frame }

// GetRegionForDecl resolves decl's storage region in this query's
// frame. Every Decl the front-end hands the engine is variable-like
// (spec §6.1(b)); a decl with no name is a front-end mismatch.
func (q *StateQuery) GetRegionForDecl(decl region.Decl) (*region.Region, bool) {
	if decl.Name == "" {
		q.log.Mismatch("query", "decl has no name", nil)
		return nil, false
	}
	return q.rm.Var(decl, q.frame), true
}

// GetRegionForExpr resolves a declaration-reference expression to its
// region; any other expression kind has no region of its own.
func (q *StateQuery) GetRegionForExpr(e *cfg.Expr) (*region.Region, bool) {
	if e == nil || e.Kind != cfg.DeclRef {
		return nil, false
	}
	return q.GetRegionForDecl(e.Decl)
}

// GetRegionDef returns the symbolic value currently bound to r,
// passing through to State.RegionDef.
func (q *StateQuery) GetRegionDef(r *region.Region) (symbol.RegionDef, bool) {
	return q.state.RegionDef(r, q.frame)
}

// GetStmtSexpr returns the symbolic value a statement last evaluated
// to: a bound region's current def if the statement is a bare
// declaration reference, falling back to the per-statement cache
// otherwise (spec §3.9's stmt_sexprs map).
func (q *StateQuery) GetStmtSexpr(stmt *cfg.Stmt) (symbol.Ref, bool) {
	if stmt != nil && stmt.Kind == cfg.ExprStmt {
		if r, ok := q.GetRegionForExpr(stmt.Expr); ok {
			if def, ok := q.GetRegionDef(r); ok {
				return def, true
			}
		}
	}
	return q.state.StmtSexpr(stmt, q.frame)
}

// TryGetZVariable resolves decl to the linear variable the numerical
// domains key on, or (_, false) if decl isn't an integer-typed
// variable currently bound to a region def.
func (q *StateQuery) TryGetZVariable(decl region.Decl) (linear.Var, bool) {
	if !decl.Type.IsInt {
		return 0, false
	}
	r, ok := q.GetRegionForDecl(decl)
	if !ok {
		return 0, false
	}
	def, ok := q.GetRegionDef(r)
	if !ok {
		return 0, false
	}
	return linear.Var(def.ID()), true
}

// GetDom retrieves the domain tracked under id, typed as T. It returns
// (_, false) if the state has no value for id, or if the tracked value
// isn't a T (a front-end/checker mismatch, not a violation: callers
// degrade to treating the fact as unknown).
func GetDom[T domain.Domain](q *StateQuery, id domain.Id) (T, bool) {
	var zero T
	d, ok := q.state.Domain(id)
	if !ok {
		return zero, false
	}
	t, ok := d.(T)
	if !ok {
		q.log.Mismatch("query", "domain value has unexpected type", nil)
		return zero, false
	}
	return t, true
}

// SetDom returns a StateQuery over a state with id's domain replaced
// by v, following the clone-then-replace discipline spec §3.9(iv)
// requires of program state.
func SetDom[T domain.Domain](q *StateQuery, id domain.Id, v T) *StateQuery {
	next := *q
	next.state = q.state.WithDomain(id, v)
	return &next
}

// ToLinearConstraintSystem projects the domain tracked under id (which
// must be domain.Numerical) into a linear.System, merged with any
// facts already recorded in the state's own constraint system.
func (q *StateQuery) ToLinearConstraintSystem(id domain.Id) (linear.System, bool) {
	d, ok := q.state.Domain(id)
	if !ok {
		return linear.System{}, false
	}
	num, ok := d.(domain.Numerical)
	if !ok {
		q.log.Mismatch("query", "domain is not numerical", nil)
		return linear.System{}, false
	}
	return num.ToLinearConstraintSystem().Merge(q.state.Constraints().Linear()), true
}
