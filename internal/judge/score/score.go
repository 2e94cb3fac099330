// Package score turns recorded verdicts into submission scores and keeps
// the per-person best scores and the leaderboard in step.
package score

import (
	"context"
	stderrors "errors"
	"math"
	"path/filepath"
	"time"

	"autojudge/internal/judge/descriptor"
	"autojudge/internal/judge/leaderboard"
	"autojudge/internal/judge/model"
	"autojudge/internal/judge/repository"
	"autojudge/pkg/errors"
	"autojudge/pkg/utils/logger"

	"go.uber.org/zap"
)

const day = 24 * time.Hour

// Engine computes judge, linter and final scores for submissions.
type Engine struct {
	contests    repository.ContestRepository
	problems    repository.ProblemRepository
	submissions repository.SubmissionRepository
	verdicts    repository.SubmissionTestCaseRepository
	finalScores repository.FinalScoreRepository
	board       *leaderboard.Store
	linter      Linter
	// filesDir holds the stored submission sources for the linter.
	filesDir string
}

// NewEngine creates a score engine. linter may be nil to disable
// static-analysis scoring globally.
func NewEngine(
	contests repository.ContestRepository,
	problems repository.ProblemRepository,
	submissions repository.SubmissionRepository,
	verdicts repository.SubmissionTestCaseRepository,
	finalScores repository.FinalScoreRepository,
	board *leaderboard.Store,
	linter Linter,
	filesDir string,
) *Engine {
	return &Engine{
		contests:    contests,
		problems:    problems,
		submissions: submissions,
		verdicts:    verdicts,
		finalScores: finalScores,
		board:       board,
		linter:      linter,
		filesDir:    filesDir,
	}
}

// ScoreSubmission recomputes all score components of a graded submission
// from its verdict rows, persists them, and propagates the person's best
// score to the aggregate table and the leaderboard.
func (e *Engine) ScoreSubmission(ctx context.Context, submissionID int64) error {
	ctx = logger.WithSubmission(ctx, submissionID)

	submission, err := e.submissions.GetByID(ctx, nil, submissionID)
	if err != nil {
		if stderrors.Is(err, repository.ErrSubmissionNotFound) {
			return errors.Newf(errors.SubmissionNotFound, "submission %d not found", submissionID)
		}
		return errors.Wrap(err, errors.DatabaseError)
	}
	problem, err := e.problems.GetByCode(ctx, nil, submission.ProblemCode)
	if err != nil {
		return errors.Wrap(err, errors.ScoreUpdateFailed)
	}

	var contest *model.Contest
	if problem.ContestID != nil {
		contest, err = e.contests.GetByID(ctx, nil, *problem.ContestID)
		if err != nil {
			return errors.Wrap(err, errors.ScoreUpdateFailed)
		}
	}

	rows, err := e.verdicts.ListBySubmission(ctx, nil, submissionID)
	if err != nil {
		return errors.Wrap(err, errors.DatabaseError)
	}
	judge := 0.0
	for _, row := range rows {
		if row.Verdict == model.VerdictPass {
			judge += float64(problem.MaxScorePerTest)
		}
	}

	linter := e.linterScore(ctx, submission, contest)

	multiplier := penaltyMultiplier(contest, submission.SubmittedAt)
	raw := judge + linter + submission.PosterScore
	final := math.Max(0, raw*multiplier)

	if err := e.submissions.UpdateScores(ctx, nil, submissionID, judge, linter, final); err != nil {
		return errors.Wrap(err, errors.ScoreUpdateFailed)
	}

	logger.Info(ctx, "submission scored",
		zap.Float64("judge_score", judge),
		zap.Float64("linter_score", linter),
		zap.Float64("multiplier", multiplier),
		zap.Float64("final_score", final))

	return e.propagateBest(ctx, submission.PersonEmail, problem, contest, final)
}

// SetPosterScore applies a manual poster score to a submission and
// recomputes the person's aggregate standing. Unlike grading, a poster
// edit can lower the best score, so the aggregate is recomputed from
// scratch rather than raised monotonically.
func (e *Engine) SetPosterScore(ctx context.Context, submissionID int64, posterScore float64) error {
	ctx = logger.WithSubmission(ctx, submissionID)

	submission, err := e.submissions.GetByID(ctx, nil, submissionID)
	if err != nil {
		if stderrors.Is(err, repository.ErrSubmissionNotFound) {
			return errors.Newf(errors.SubmissionNotFound, "submission %d not found", submissionID)
		}
		return errors.Wrap(err, errors.DatabaseError)
	}
	problem, err := e.problems.GetByCode(ctx, nil, submission.ProblemCode)
	if err != nil {
		return errors.Wrap(err, errors.ScoreUpdateFailed)
	}

	var contest *model.Contest
	if problem.ContestID != nil {
		contest, err = e.contests.GetByID(ctx, nil, *problem.ContestID)
		if err != nil {
			return errors.Wrap(err, errors.ScoreUpdateFailed)
		}
		if !contest.EnablePosterScore {
			return errors.Newf(errors.InvalidParams,
				"contest %d does not accept poster scores", contest.ID)
		}
	}

	updated, err := e.submissions.ApplyPosterDelta(ctx, submissionID, posterScore)
	if err != nil {
		return errors.Wrap(err, errors.ScoreUpdateFailed)
	}

	logger.Info(ctx, "poster score applied",
		zap.Float64("poster_score", posterScore),
		zap.Float64("final_score", updated.FinalScore))

	best, exists, err := e.submissions.MaxFinalScore(ctx, nil, updated.PersonEmail, updated.ProblemCode)
	if err != nil {
		return errors.Wrap(err, errors.DatabaseError)
	}
	if !exists {
		return nil
	}
	if err := e.finalScores.Upsert(ctx, nil, updated.PersonEmail, updated.ProblemCode, best); err != nil {
		return errors.Wrap(err, errors.DatabaseError)
	}
	return e.refreshBoard(ctx, updated.PersonEmail, contest)
}

func (e *Engine) linterScore(ctx context.Context, submission *model.Submission, contest *model.Contest) float64 {
	if e.linter == nil || contest == nil || !contest.EnableLinterScore {
		return 0
	}
	if !e.linter.Supported(submission.FileType) {
		return 0
	}
	sourcePath := filepath.Join(e.filesDir, descriptor.SubmissionFileName(submission.ID, submission.FileType))
	value, err := e.linter.Score(ctx, sourcePath, submission.FileType)
	if err != nil {
		logger.Warn(ctx, "linter scoring skipped", zap.Error(err))
		return 0
	}
	return value
}

// propagateBest raises the person's best score on the problem if the new
// final beats it, then refreshes the leaderboard entry.
func (e *Engine) propagateBest(ctx context.Context, email string, problem *model.Problem, contest *model.Contest, final float64) error {
	current, err := e.finalScores.Get(ctx, nil, email, problem.Code)
	if err != nil && !stderrors.Is(err, repository.ErrFinalScoreNotFound) {
		return errors.Wrap(err, errors.DatabaseError)
	}
	if err == nil && final < current.Score {
		return nil
	}
	if err := e.finalScores.Upsert(ctx, nil, email, problem.Code, final); err != nil {
		return errors.Wrap(err, errors.DatabaseError)
	}
	return e.refreshBoard(ctx, email, contest)
}

// refreshBoard recomputes the person's contest aggregate and pushes it
// to the leaderboard. Ownerless problems have no board to refresh.
func (e *Engine) refreshBoard(ctx context.Context, email string, contest *model.Contest) error {
	if contest == nil || e.board == nil {
		return nil
	}
	aggregate, err := e.finalScores.SumByContest(ctx, nil, email, contest.ID)
	if err != nil {
		return errors.Wrap(err, errors.DatabaseError)
	}
	if _, err := e.board.Update(ctx, contest.ID, email, aggregate); err != nil {
		return err
	}
	return nil
}

// penaltyMultiplier maps a submission timestamp to the late-penalty
// factor. Full credit up to the soft deadline, a per-day reduction up to
// the hard deadline, nothing after. A started day counts as a whole one.
func penaltyMultiplier(contest *model.Contest, submittedAt time.Time) float64 {
	if contest == nil {
		return 1
	}
	if !submittedAt.After(contest.SoftEndAt) {
		return 1
	}
	if submittedAt.After(contest.HardEndAt) {
		return 0
	}
	elapsed := submittedAt.Sub(contest.SoftEndAt)
	daysLate := int64(elapsed / day)
	if elapsed%day != 0 {
		daysLate++
	}
	multiplier := 1 - contest.PenaltyPerDay*float64(daysLate)
	if multiplier < 0 {
		return 0
	}
	return multiplier
}
