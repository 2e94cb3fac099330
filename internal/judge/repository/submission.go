package repository

import (
	"context"
	"errors"

	"autojudge/internal/common/db"
	"autojudge/internal/judge/model"
)

var (
	ErrSubmissionNotFound = errors.New("submission not found")
)

// SubmissionRepository defines submission persistence interfaces.
type SubmissionRepository interface {
	Create(ctx context.Context, tx db.Transaction, submission *model.Submission) (int64, error)
	GetByID(ctx context.Context, tx db.Transaction, submissionID int64) (*model.Submission, error)
	ListByPersonProblem(ctx context.Context, tx db.Transaction, email, problemCode string) ([]*model.Submission, error)
	UpdateScores(ctx context.Context, tx db.Transaction, submissionID int64, judge, linter, final float64) error
	// ApplyPosterDelta sets the poster score and shifts the final score by
	// the difference to the previous poster score, in a single statement so
	// a crash cannot apply half the delta. Returns the updated submission.
	ApplyPosterDelta(ctx context.Context, submissionID int64, posterScore float64) (*model.Submission, error)
	// MaxFinalScore returns the person's best final score on a problem and
	// whether any submission exists.
	MaxFinalScore(ctx context.Context, tx db.Transaction, email, problemCode string) (float64, bool, error)
}

// MySQLSubmissionRepository implements SubmissionRepository with MySQL.
type MySQLSubmissionRepository struct {
	db db.Database
}

// NewSubmissionRepository creates a submission repository.
func NewSubmissionRepository(database db.Database) *MySQLSubmissionRepository {
	return &MySQLSubmissionRepository{db: database}
}

const submissionColumns = "id, problem_code, person_email, file_type, submitted_at, judge_score, poster_score, linter_score, final_score"

// Create inserts a submission with all score components at zero.
func (r *MySQLSubmissionRepository) Create(ctx context.Context, tx db.Transaction, submission *model.Submission) (int64, error) {
	if submission == nil {
		return 0, errors.New("submission is nil")
	}
	if submission.ProblemCode == "" {
		return 0, errors.New("problem code is required")
	}
	if submission.PersonEmail == "" {
		return 0, errors.New("person email is required")
	}
	if submission.SubmittedAt.IsZero() {
		return 0, errors.New("submission timestamp is required")
	}

	query := `
		INSERT INTO submissions
		(problem_code, person_email, file_type, submitted_at, judge_score, poster_score, linter_score, final_score)
		VALUES (?, ?, ?, ?, 0, 0, 0, 0)
	`
	res, err := db.GetQuerier(r.db, tx).Exec(
		ctx,
		query,
		submission.ProblemCode,
		submission.PersonEmail,
		submission.FileType,
		submission.SubmittedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetByID retrieves a submission by id.
func (r *MySQLSubmissionRepository) GetByID(ctx context.Context, tx db.Transaction, submissionID int64) (*model.Submission, error) {
	if submissionID <= 0 {
		return nil, errors.New("submissionID is required")
	}
	query := "SELECT " + submissionColumns + " FROM submissions WHERE id = ? LIMIT 1"
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, submissionID)
	return scanSubmission(row)
}

// ListByPersonProblem lists a person's submissions on a problem, newest first.
func (r *MySQLSubmissionRepository) ListByPersonProblem(ctx context.Context, tx db.Transaction, email, problemCode string) ([]*model.Submission, error) {
	if email == "" || problemCode == "" {
		return nil, errors.New("email and problem code are required")
	}
	query := "SELECT " + submissionColumns + " FROM submissions WHERE person_email = ? AND problem_code = ? ORDER BY submitted_at DESC, id DESC"
	rows, err := db.GetQuerier(r.db, tx).Query(ctx, query, email, problemCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var submissions []*model.Submission
	for rows.Next() {
		submission := &model.Submission{}
		if err := rows.Scan(
			&submission.ID,
			&submission.ProblemCode,
			&submission.PersonEmail,
			&submission.FileType,
			&submission.SubmittedAt,
			&submission.JudgeScore,
			&submission.PosterScore,
			&submission.LinterScore,
			&submission.FinalScore,
		); err != nil {
			return nil, err
		}
		submissions = append(submissions, submission)
	}
	return submissions, rows.Err()
}

// UpdateScores writes the judge, linter and final score of a submission.
func (r *MySQLSubmissionRepository) UpdateScores(ctx context.Context, tx db.Transaction, submissionID int64, judge, linter, final float64) error {
	if submissionID <= 0 {
		return errors.New("submissionID is required")
	}
	query := "UPDATE submissions SET judge_score = ?, linter_score = ?, final_score = ? WHERE id = ?"
	res, err := db.GetQuerier(r.db, tx).Exec(ctx, query, judge, linter, final, submissionID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// The row may exist with identical values; distinguish via lookup.
		if _, err := r.GetByID(ctx, tx, submissionID); err != nil {
			return err
		}
	}
	return nil
}

// ApplyPosterDelta performs the delta update in one transaction.
// Assignment order matters: final_score is shifted while poster_score still
// holds the previous value, then poster_score is overwritten.
func (r *MySQLSubmissionRepository) ApplyPosterDelta(ctx context.Context, submissionID int64, posterScore float64) (*model.Submission, error) {
	if submissionID <= 0 {
		return nil, errors.New("submissionID is required")
	}
	var updated *model.Submission
	err := r.db.Transaction(ctx, func(tx db.Transaction) error {
		query := "UPDATE submissions SET final_score = final_score - poster_score + ?, poster_score = ? WHERE id = ?"
		res, err := tx.Exec(ctx, query, posterScore, posterScore, submissionID)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			if _, err := r.GetByID(ctx, tx, submissionID); err != nil {
				return err
			}
		}
		updated, err = r.GetByID(ctx, tx, submissionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MaxFinalScore returns the best final score across a person's submissions
// to a problem.
func (r *MySQLSubmissionRepository) MaxFinalScore(ctx context.Context, tx db.Transaction, email, problemCode string) (float64, bool, error) {
	if email == "" || problemCode == "" {
		return 0, false, errors.New("email and problem code are required")
	}
	query := "SELECT MAX(final_score), COUNT(*) FROM submissions WHERE person_email = ? AND problem_code = ?"
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, email, problemCode)
	var max *float64
	var count int64
	if err := row.Scan(&max, &count); err != nil {
		return 0, false, err
	}
	if count == 0 || max == nil {
		return 0, false, nil
	}
	return *max, true, nil
}

func scanSubmission(row db.Row) (*model.Submission, error) {
	submission := &model.Submission{}
	if err := row.Scan(
		&submission.ID,
		&submission.ProblemCode,
		&submission.PersonEmail,
		&submission.FileType,
		&submission.SubmittedAt,
		&submission.JudgeScore,
		&submission.PosterScore,
		&submission.LinterScore,
		&submission.FinalScore,
	); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return submission, nil
}
