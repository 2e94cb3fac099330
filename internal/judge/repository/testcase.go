package repository

import (
	"context"
	"errors"

	"autojudge/internal/common/db"
	"autojudge/internal/judge/model"
)

var (
	ErrTestCaseNotFound = errors.New("test case not found")
)

// TestCaseRepository defines test case persistence interfaces.
type TestCaseRepository interface {
	Create(ctx context.Context, tx db.Transaction, testCase *model.TestCase) (int64, error)
	GetByID(ctx context.Context, tx db.Transaction, testCaseID int64) (*model.TestCase, error)
	// ListByProblem returns a problem's test cases public-first, then in
	// creation order, matching the job descriptor line order.
	ListByProblem(ctx context.Context, tx db.Transaction, problemCode string) ([]*model.TestCase, error)
}

// MySQLTestCaseRepository implements TestCaseRepository with MySQL.
type MySQLTestCaseRepository struct {
	db db.Database
}

// NewTestCaseRepository creates a test case repository.
func NewTestCaseRepository(database db.Database) *MySQLTestCaseRepository {
	return &MySQLTestCaseRepository{db: database}
}

// Create inserts a test case and returns its id.
func (r *MySQLTestCaseRepository) Create(ctx context.Context, tx db.Transaction, testCase *model.TestCase) (int64, error) {
	if testCase == nil {
		return 0, errors.New("test case is nil")
	}
	if testCase.ProblemCode == "" {
		return 0, errors.New("problem code is required")
	}
	query := "INSERT INTO test_cases (problem_code, public) VALUES (?, ?)"
	res, err := db.GetQuerier(r.db, tx).Exec(ctx, query, testCase.ProblemCode, testCase.Public)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetByID retrieves a test case by id.
func (r *MySQLTestCaseRepository) GetByID(ctx context.Context, tx db.Transaction, testCaseID int64) (*model.TestCase, error) {
	if testCaseID <= 0 {
		return nil, errors.New("testCaseID is required")
	}
	query := "SELECT id, problem_code, public FROM test_cases WHERE id = ? LIMIT 1"
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, testCaseID)
	testCase := &model.TestCase{}
	if err := row.Scan(&testCase.ID, &testCase.ProblemCode, &testCase.Public); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrTestCaseNotFound
		}
		return nil, err
	}
	return testCase, nil
}

// ListByProblem returns test cases public-first in creation order.
func (r *MySQLTestCaseRepository) ListByProblem(ctx context.Context, tx db.Transaction, problemCode string) ([]*model.TestCase, error) {
	if problemCode == "" {
		return nil, errors.New("problem code is required")
	}
	query := "SELECT id, problem_code, public FROM test_cases WHERE problem_code = ? ORDER BY public DESC, id ASC"
	rows, err := db.GetQuerier(r.db, tx).Query(ctx, query, problemCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var testCases []*model.TestCase
	for rows.Next() {
		testCase := &model.TestCase{}
		if err := rows.Scan(&testCase.ID, &testCase.ProblemCode, &testCase.Public); err != nil {
			return nil, err
		}
		testCases = append(testCases, testCase)
	}
	return testCases, rows.Err()
}
