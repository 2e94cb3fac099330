package model

import (
	"testing"
	"time"
)

func TestVerdictTerminal(t *testing.T) {
	if VerdictPending.Terminal() {
		t.Fatal("pending must not be terminal")
	}
	for _, v := range []Verdict{
		VerdictPass, VerdictFail, VerdictTimeLimitExceeded,
		VerdictMemoryLimitExceeded, VerdictCompileError,
		VerdictRuntimeError, VerdictUnavailable,
	} {
		if !v.Terminal() {
			t.Fatalf("%s should be terminal", v)
		}
	}
	if Verdict("X").Terminal() || Verdict("X").Valid() {
		t.Fatal("unknown verdicts are invalid")
	}
}

func TestContestWindowValid(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	contest := &Contest{
		StartAt:   start,
		SoftEndAt: start.Add(24 * time.Hour),
		HardEndAt: start.Add(48 * time.Hour),
	}
	if !contest.WindowValid() {
		t.Fatal("ordered deadlines should be valid")
	}
	contest.HardEndAt = start
	if contest.WindowValid() {
		t.Fatal("hard end before soft end should be invalid")
	}
	contest.SoftEndAt = start.Add(-time.Hour)
	if contest.WindowValid() {
		t.Fatal("soft end before start should be invalid")
	}
}

func TestProblemAcceptsFileType(t *testing.T) {
	problem := &Problem{FileExts: ".py, .cpp,.c"}
	for _, ext := range []string{".py", ".cpp", ".c"} {
		if !problem.AcceptsFileType(ext) {
			t.Fatalf("%s should be accepted", ext)
		}
	}
	if problem.AcceptsFileType(".rb") {
		t.Fatal(".rb should be rejected")
	}
}
