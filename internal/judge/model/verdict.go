// Package model defines the grading entities and the closed verdict vocabulary.
package model

// Verdict is the per-test-case grading outcome. The one-letter wire values
// are what the sandbox scripts write into result descriptors.
type Verdict string

const (
	// VerdictPending is the only non-terminal state; rows are created in it
	// and transition out of it exactly once.
	VerdictPending Verdict = "R"

	VerdictPass                Verdict = "P"
	VerdictFail                Verdict = "F"
	VerdictTimeLimitExceeded   Verdict = "TE"
	VerdictMemoryLimitExceeded Verdict = "ME"
	VerdictCompileError        Verdict = "CE"
	VerdictRuntimeError        Verdict = "RE"
	// VerdictUnavailable marks test cases that never ran because a
	// whole-submission failure (for example bad sandbox arguments)
	// prevented execution.
	VerdictUnavailable Verdict = "NA"
)

// Terminal reports whether the verdict is a final outcome.
func (v Verdict) Terminal() bool {
	return v != VerdictPending && v.Valid()
}

// Valid reports whether the verdict belongs to the closed vocabulary.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictPending, VerdictPass, VerdictFail,
		VerdictTimeLimitExceeded, VerdictMemoryLimitExceeded,
		VerdictCompileError, VerdictRuntimeError, VerdictUnavailable:
		return true
	}
	return false
}

// Role is the per-contest role of a person.
type Role string

const (
	RoleParticipant Role = "participant"
	RolePoster      Role = "poster"
)

// Permission is the resolved access level for a (person, contest) pair.
type Permission int

const (
	// PermissionNone means the person may not see the contest at all.
	PermissionNone Permission = iota
	// PermissionParticipant is unprivileged access.
	PermissionParticipant
	// PermissionPoster is privileged access.
	PermissionPoster
)

func (p Permission) String() string {
	switch p {
	case PermissionParticipant:
		return "participant"
	case PermissionPoster:
		return "poster"
	default:
		return "none"
	}
}
