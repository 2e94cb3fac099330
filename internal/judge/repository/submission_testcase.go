package repository

import (
	"context"
	"errors"
	"time"

	"autojudge/internal/common/db"
	"autojudge/internal/judge/model"
)

var (
	ErrSubmissionTestCaseNotFound = errors.New("submission test case not found")
	// ErrVerdictAlreadyRecorded is returned when a row has already left the
	// pending state; rows transition exactly once.
	ErrVerdictAlreadyRecorded = errors.New("verdict already recorded")
)

// SubmissionTestCaseRepository defines per-test verdict persistence.
type SubmissionTestCaseRepository interface {
	// BatchCreatePending pre-creates one pending row per test case for a
	// submission, before grading runs.
	BatchCreatePending(ctx context.Context, tx db.Transaction, submissionID int64, testCaseIDs []int64) error
	Get(ctx context.Context, tx db.Transaction, submissionID, testCaseID int64) (*model.SubmissionTestCase, error)
	// RecordVerdict transitions a pending row to a terminal verdict.
	RecordVerdict(ctx context.Context, tx db.Transaction, row *model.SubmissionTestCase) error
	ListBySubmission(ctx context.Context, tx db.Transaction, submissionID int64) ([]*model.SubmissionTestCase, error)
}

// MySQLSubmissionTestCaseRepository implements SubmissionTestCaseRepository with MySQL.
type MySQLSubmissionTestCaseRepository struct {
	db db.Database
}

// NewSubmissionTestCaseRepository creates a submission test case repository.
func NewSubmissionTestCaseRepository(database db.Database) *MySQLSubmissionTestCaseRepository {
	return &MySQLSubmissionTestCaseRepository{db: database}
}

const submissionTestCaseColumns = "submission_id, test_case_id, verdict, time_taken_ms, memory_taken_kb, message"

// BatchCreatePending inserts pending rows for every test case id.
func (r *MySQLSubmissionTestCaseRepository) BatchCreatePending(ctx context.Context, tx db.Transaction, submissionID int64, testCaseIDs []int64) error {
	if submissionID <= 0 {
		return errors.New("submissionID is required")
	}
	query := `
		INSERT INTO submission_test_cases
		(submission_id, test_case_id, verdict, time_taken_ms, memory_taken_kb, message)
		VALUES (?, ?, ?, 0, 0, '')
	`
	for _, testCaseID := range testCaseIDs {
		if _, err := db.GetQuerier(r.db, tx).Exec(ctx, query, submissionID, testCaseID, string(model.VerdictPending)); err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves the row for a (submission, testcase) pair.
func (r *MySQLSubmissionTestCaseRepository) Get(ctx context.Context, tx db.Transaction, submissionID, testCaseID int64) (*model.SubmissionTestCase, error) {
	if submissionID <= 0 || testCaseID <= 0 {
		return nil, errors.New("submissionID and testCaseID are required")
	}
	query := "SELECT " + submissionTestCaseColumns + " FROM submission_test_cases WHERE submission_id = ? AND test_case_id = ? LIMIT 1"
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, submissionID, testCaseID)
	return scanSubmissionTestCase(row)
}

// RecordVerdict transitions the pending row identified by row's keys to the
// given terminal verdict with its measurements. A missing pair yields
// ErrSubmissionTestCaseNotFound; a pair already out of the pending state
// yields ErrVerdictAlreadyRecorded.
func (r *MySQLSubmissionTestCaseRepository) RecordVerdict(ctx context.Context, tx db.Transaction, row *model.SubmissionTestCase) error {
	if row == nil {
		return errors.New("row is nil")
	}
	if !row.Verdict.Terminal() {
		return errors.New("verdict must be terminal")
	}

	query := `
		UPDATE submission_test_cases
		SET verdict = ?, time_taken_ms = ?, memory_taken_kb = ?, message = ?
		WHERE submission_id = ? AND test_case_id = ? AND verdict = ?
	`
	res, err := db.GetQuerier(r.db, tx).Exec(
		ctx,
		query,
		string(row.Verdict),
		row.TimeTaken.Milliseconds(),
		row.MemoryTakenKB,
		row.Message,
		row.SubmissionID,
		row.TestCaseID,
		string(model.VerdictPending),
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := r.Get(ctx, tx, row.SubmissionID, row.TestCaseID); err != nil {
			return err
		}
		return ErrVerdictAlreadyRecorded
	}
	return nil
}

// ListBySubmission lists all verdict rows of a submission in test case order.
func (r *MySQLSubmissionTestCaseRepository) ListBySubmission(ctx context.Context, tx db.Transaction, submissionID int64) ([]*model.SubmissionTestCase, error) {
	if submissionID <= 0 {
		return nil, errors.New("submissionID is required")
	}
	query := "SELECT " + submissionTestCaseColumns + " FROM submission_test_cases WHERE submission_id = ? ORDER BY test_case_id"
	rows, err := db.GetQuerier(r.db, tx).Query(ctx, query, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*model.SubmissionTestCase
	for rows.Next() {
		row := &model.SubmissionTestCase{}
		var timeTakenMs int64
		var verdict string
		if err := rows.Scan(
			&row.SubmissionID,
			&row.TestCaseID,
			&verdict,
			&timeTakenMs,
			&row.MemoryTakenKB,
			&row.Message,
		); err != nil {
			return nil, err
		}
		row.Verdict = model.Verdict(verdict)
		row.TimeTaken = time.Duration(timeTakenMs) * time.Millisecond
		results = append(results, row)
	}
	return results, rows.Err()
}

func scanSubmissionTestCase(row db.Row) (*model.SubmissionTestCase, error) {
	result := &model.SubmissionTestCase{}
	var timeTakenMs int64
	var verdict string
	if err := row.Scan(
		&result.SubmissionID,
		&result.TestCaseID,
		&verdict,
		&timeTakenMs,
		&result.MemoryTakenKB,
		&result.Message,
	); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrSubmissionTestCaseNotFound
		}
		return nil, err
	}
	result.Verdict = model.Verdict(verdict)
	result.TimeTaken = time.Duration(timeTakenMs) * time.Millisecond
	return result, nil
}
