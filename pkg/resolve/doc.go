// Package resolve computes a consistent set of package versions for a
// project's requirements.
//
// # Algorithm
//
// [Resolver.Resolve] runs a backtracking search with conflict-directed
// backjumping. The search state is persistent: every decision pushes a
// choice point holding the state before the decision and the candidates
// still untried, so undoing a decision is dropping frames rather than
// reverting mutations.
//
//  1. Take the oldest undecided name from the queue.
//  2. Ask the index for candidates and keep those satisfying every
//     constraint imposed on the name so far, in preference order
//     (locked version, then newest; see [SourcePolicy] for ties).
//  3. Decide the first candidate whose dependencies are consistent with
//     the decisions already made; queue newly required names.
//  4. When a name has no viable candidate, jump back to the most recent
//     decision that contributed to the failure and continue with its next
//     candidate. Exhausting the roots ends the search with a [*Conflict].
//
// Dependency cycles between names are legal: a requirement on an already
// decided name is checked against the decision and never re-expanded,
// except to pull in extras requested for the first time.
//
// # Concurrency
//
// The search itself is sequential. Version lists for queued names are
// fetched in parallel through an [index.Session] before each decision,
// which does not change the outcome.
package resolve
