// Package controller exposes the read-only HTTP surface of the grading
// worker: submission status and contest standings for operators and the
// web layer.
package controller

import (
	stderrors "errors"
	"strconv"
	"time"

	"autojudge/internal/judge/leaderboard"
	"autojudge/internal/judge/model"
	"autojudge/internal/judge/repository"
	"autojudge/pkg/errors"
	"autojudge/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// JudgeController handles read-only grading queries.
type JudgeController struct {
	submissions repository.SubmissionRepository
	verdicts    repository.SubmissionTestCaseRepository
	board       *leaderboard.Store
	mirror      *leaderboard.Mirror
}

// NewJudgeController creates a new controller. mirror may be nil, in
// which case standings are always read from the snapshot files.
func NewJudgeController(
	submissions repository.SubmissionRepository,
	verdicts repository.SubmissionTestCaseRepository,
	board *leaderboard.Store,
	mirror *leaderboard.Mirror,
) *JudgeController {
	return &JudgeController{
		submissions: submissions,
		verdicts:    verdicts,
		board:       board,
		mirror:      mirror,
	}
}

// RegisterRoutes mounts the controller under /api/v1.
func (h *JudgeController) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	api.GET("/submissions/:id", h.GetSubmission)
	api.GET("/submissions/:id/verdicts", h.ListSubmissionVerdicts)
	api.GET("/contests/:id/leaderboard", h.GetLeaderboard)
	api.GET("/contests/:id/scores.csv", h.ExportScores)
}

type verdictView struct {
	TestCaseID    int64   `json:"test_case_id"`
	Verdict       string  `json:"verdict"`
	TimeTakenSec  float64 `json:"time_taken_sec"`
	MemoryTakenKB int64   `json:"memory_taken_kb"`
	Message       string  `json:"message,omitempty"`
}

type submissionView struct {
	ID          int64         `json:"id"`
	ProblemCode string        `json:"problem_code"`
	PersonEmail string        `json:"person_email"`
	FileType    string        `json:"file_type"`
	SubmittedAt time.Time     `json:"submitted_at"`
	JudgeScore  float64       `json:"judge_score"`
	PosterScore float64       `json:"poster_score"`
	LinterScore float64       `json:"linter_score"`
	FinalScore  float64       `json:"final_score"`
	Verdicts    []verdictView `json:"verdicts"`
}

// GetSubmission returns a submission's scores and per-test verdicts.
func (h *JudgeController) GetSubmission(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid submission id")
		return
	}

	ctx := c.Request.Context()
	submission, err := h.submissions.GetByID(ctx, nil, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrSubmissionNotFound) {
			response.ErrorWithCode(c, errors.SubmissionNotFound, "")
			return
		}
		response.Error(c, err)
		return
	}
	rows, err := h.verdicts.ListBySubmission(ctx, nil, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	view := submissionView{
		ID:          submission.ID,
		ProblemCode: submission.ProblemCode,
		PersonEmail: submission.PersonEmail,
		FileType:    submission.FileType,
		SubmittedAt: submission.SubmittedAt,
		JudgeScore:  submission.JudgeScore,
		PosterScore: submission.PosterScore,
		LinterScore: submission.LinterScore,
		FinalScore:  submission.FinalScore,
		Verdicts:    make([]verdictView, 0, len(rows)),
	}
	for _, row := range rows {
		view.Verdicts = append(view.Verdicts, verdictView{
			TestCaseID:    row.TestCaseID,
			Verdict:       string(row.Verdict),
			TimeTakenSec:  row.TimeTaken.Seconds(),
			MemoryTakenKB: row.MemoryTakenKB,
			Message:       row.Message,
		})
	}
	response.Success(c, view)
}

type standingView struct {
	Rank  int     `json:"rank"`
	Email string  `json:"email"`
	Score float64 `json:"score"`
}

// GetLeaderboard returns the contest standings, best first.
func (h *JudgeController) GetLeaderboard(c *gin.Context) {
	contestID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || contestID <= 0 {
		response.BadRequest(c, "Invalid contest id")
		return
	}

	entries := h.mirrorStandings(c, contestID)
	if entries == nil {
		var err error
		entries, err = h.board.Load(c.Request.Context(), contestID)
		if err != nil {
			response.Error(c, err)
			return
		}
	}

	standings := make([]standingView, 0, len(entries))
	for i, entry := range entries {
		standings = append(standings, standingView{Rank: i + 1, Email: entry.Email, Score: entry.Score})
	}
	response.Success(c, standings)
}

// mirrorStandings serves a leaderboard read from the Redis mirror.
// A nil return means the snapshot file must be consulted instead: the
// mirror is best-effort and an empty set cannot distinguish a fresh
// contest from an uninitialized one.
func (h *JudgeController) mirrorStandings(c *gin.Context, contestID int64) []leaderboard.Entry {
	if h.mirror == nil {
		return nil
	}
	ctx := c.Request.Context()
	size, err := h.mirror.Size(ctx, contestID)
	if err != nil || size == 0 {
		return nil
	}
	entries, err := h.mirror.Top(ctx, contestID, size)
	if err != nil {
		return nil
	}
	return entries
}

// ExportScores streams the contest standings as CSV.
func (h *JudgeController) ExportScores(c *gin.Context) {
	contestID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || contestID <= 0 {
		response.BadRequest(c, "Invalid contest id")
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition",
		"attachment; filename=contest_"+strconv.FormatInt(contestID, 10)+"_scores.csv")
	if err := h.board.ExportCSV(c.Request.Context(), contestID, c.Writer); err != nil {
		response.Error(c, err)
		return
	}
}

// ListSubmissionVerdicts is a lighter variant used by polling clients:
// only the verdict states, no scores.
func (h *JudgeController) ListSubmissionVerdicts(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	rows, err := h.verdicts.ListBySubmission(c.Request.Context(), nil, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	pending := 0
	views := make([]verdictView, 0, len(rows))
	for _, row := range rows {
		if row.Verdict == model.VerdictPending {
			pending++
		}
		views = append(views, verdictView{TestCaseID: row.TestCaseID, Verdict: string(row.Verdict)})
	}
	response.Success(c, gin.H{"pending": pending, "verdicts": views})
}
