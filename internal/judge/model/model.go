package model

import (
	"strings"
	"time"
)

// Contest groups problems under a submission window.
// StartAt <= SoftEndAt <= HardEndAt is validated at creation.
type Contest struct {
	ID                int64
	Name              string
	StartAt           time.Time
	SoftEndAt         time.Time
	HardEndAt         time.Time
	PenaltyPerDay     float64
	Public            bool
	EnableLinterScore bool
	EnablePosterScore bool
}

// WindowValid reports whether the deadlines are ordered.
func (c *Contest) WindowValid() bool {
	return !c.SoftEndAt.Before(c.StartAt) && !c.HardEndAt.Before(c.SoftEndAt)
}

// Problem is a gradeable task. ContestID is nil for ownerless problems,
// which always resolve to participant-level access.
type Problem struct {
	Code            string
	ContestID       *int64
	Name            string
	Statement       string
	InputFormat     string
	OutputFormat    string
	Difficulty      int
	MaxScorePerTest int
	TimeLimit       time.Duration
	MemoryLimitKB   int64
	// FileExts is the comma-separated list of accepted submission
	// extensions, e.g. ".py,.cpp,.c".
	FileExts string
}

// AcceptsFileType reports whether ext is an accepted submission extension.
func (p *Problem) AcceptsFileType(ext string) bool {
	for _, accepted := range strings.Split(p.FileExts, ",") {
		if strings.TrimSpace(accepted) == ext {
			return true
		}
	}
	return false
}

// Person is identified by email.
type Person struct {
	Email string
	Rank  int
}

// ContestPerson links a person to a contest with a role.
// Public contests never materialize participant rows.
type ContestPerson struct {
	ContestID   int64
	PersonEmail string
	Role        Role
}

// TestCase belongs to a problem. Messages are only surfaced for public cases.
type TestCase struct {
	ID          int64
	ProblemCode string
	Public      bool
}

// Submission is one graded attempt. All score components start at zero.
type Submission struct {
	ID          int64
	ProblemCode string
	PersonEmail string
	FileType    string
	SubmittedAt time.Time
	JudgeScore  float64
	PosterScore float64
	LinterScore float64
	FinalScore  float64
}

// SubmissionTestCase is the per-test verdict row for a submission.
// Created in VerdictPending at submission time, transitioned exactly once.
type SubmissionTestCase struct {
	SubmissionID  int64
	TestCaseID    int64
	Verdict       Verdict
	TimeTaken     time.Duration
	MemoryTakenKB int64
	Message       string
}

// PersonProblemFinalScore is the person's best final score on a problem,
// the quantity the leaderboard sums per contest.
type PersonProblemFinalScore struct {
	PersonEmail string
	ProblemCode string
	Score       float64
}
