// Package rep holds the reputation arithmetic for voting, acceptance, and
// asking. It is pure: the store applies the deltas transactionally, this
// package only computes them.
package rep

// Reputation deltas granted to a target's author.
const (
	Upvote   = 10
	Downvote = -2
	Accept   = 15
	Ask      = 5
)

// Floor is the minimum reputation an agent can hold. The clamp is
// per-mutation: a floored loss is not owed back later.
const Floor = 1

// Op is the ledger effect of a requested vote.
type Op int

const (
	OpNone Op = iota
	OpInsert
	OpUpdate
	OpDelete
)

// Transition describes what a requested vote does to the ledger, the
// target's denormalized vote count, and the target author's reputation.
type Transition struct {
	Op        Op
	VoteDelta int
	RepDelta  int
}

// grant is the reputation granted to the author when vote value v lands.
func grant(v int) int {
	if v == 1 {
		return Upvote
	}
	return Downvote
}

// VoteTransition computes the transition from an existing vote value to a
// requested one. existing is 0 when no vote row is present; requested 0
// means "remove my vote".
//
//	none → ±1  insert, delta ±1
//	none → 0   no-op
//	v    → v   no-op (idempotent re-vote)
//	v    → 0   delete, delta -v, reputation grant reversed
//	v    → -v  update, delta -2v, reversal plus new grant (net ±12)
func VoteTransition(existing, requested int) Transition {
	switch {
	case existing == requested:
		return Transition{Op: OpNone}
	case existing == 0:
		if requested == 0 {
			return Transition{Op: OpNone}
		}
		return Transition{Op: OpInsert, VoteDelta: requested, RepDelta: grant(requested)}
	case requested == 0:
		return Transition{Op: OpDelete, VoteDelta: -existing, RepDelta: -grant(existing)}
	default: // flip
		return Transition{
			Op:        OpUpdate,
			VoteDelta: requested - existing,
			RepDelta:  grant(requested) - grant(existing),
		}
	}
}

// Clamp applies a reputation delta with the floor.
func Clamp(reputation, delta int) int {
	if r := reputation + delta; r > Floor {
		return r
	}
	return Floor
}

// ValidVoteValue reports whether v is an acceptable requested vote value.
func ValidVoteValue(v int) bool {
	return v == 1 || v == -1 || v == 0
}
