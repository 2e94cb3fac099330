package repository

import (
	"context"
	"errors"
	"time"

	"autojudge/internal/common/db"
	"autojudge/internal/judge/model"
)

var (
	ErrProblemNotFound  = errors.New("problem not found")
	ErrProblemCodeTaken = errors.New("problem code already in use")
)

// ProblemRepository defines problem persistence interfaces.
type ProblemRepository interface {
	Create(ctx context.Context, tx db.Transaction, problem *model.Problem) error
	GetByCode(ctx context.Context, tx db.Transaction, code string) (*model.Problem, error)
	ListByContest(ctx context.Context, tx db.Transaction, contestID int64) ([]*model.Problem, error)
}

// MySQLProblemRepository implements ProblemRepository with MySQL.
type MySQLProblemRepository struct {
	db db.Database
}

// NewProblemRepository creates a problem repository.
func NewProblemRepository(database db.Database) *MySQLProblemRepository {
	return &MySQLProblemRepository{db: database}
}

const problemColumns = "code, contest_id, name, statement, input_format, output_format, difficulty, max_score_per_test, time_limit_ms, memory_limit_kb, file_exts"

// Create inserts a problem. Time limits are stored as milliseconds.
func (r *MySQLProblemRepository) Create(ctx context.Context, tx db.Transaction, problem *model.Problem) error {
	if problem == nil {
		return errors.New("problem is nil")
	}
	if problem.Code == "" {
		return errors.New("problem code is required")
	}
	if problem.TimeLimit <= 0 {
		return errors.New("time limit is required")
	}
	if problem.MemoryLimitKB <= 0 {
		return errors.New("memory limit is required")
	}

	query := `
		INSERT INTO problems
		(code, contest_id, name, statement, input_format, output_format, difficulty, max_score_per_test, time_limit_ms, memory_limit_kb, file_exts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.GetQuerier(r.db, tx).Exec(
		ctx,
		query,
		problem.Code,
		problem.ContestID,
		problem.Name,
		problem.Statement,
		problem.InputFormat,
		problem.OutputFormat,
		problem.Difficulty,
		problem.MaxScorePerTest,
		problem.TimeLimit.Milliseconds(),
		problem.MemoryLimitKB,
		problem.FileExts,
	)
	if err != nil {
		if _, dup := db.UniqueViolation(err); dup {
			return ErrProblemCodeTaken
		}
		return err
	}
	return nil
}

// GetByCode retrieves a problem by its code.
func (r *MySQLProblemRepository) GetByCode(ctx context.Context, tx db.Transaction, code string) (*model.Problem, error) {
	if code == "" {
		return nil, errors.New("problem code is required")
	}
	query := "SELECT " + problemColumns + " FROM problems WHERE code = ? LIMIT 1"
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, code)
	return scanProblem(row)
}

// ListByContest lists the problems owned by a contest.
func (r *MySQLProblemRepository) ListByContest(ctx context.Context, tx db.Transaction, contestID int64) ([]*model.Problem, error) {
	if contestID <= 0 {
		return nil, errors.New("contestID is required")
	}
	query := "SELECT " + problemColumns + " FROM problems WHERE contest_id = ? ORDER BY code"
	rows, err := db.GetQuerier(r.db, tx).Query(ctx, query, contestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var problems []*model.Problem
	for rows.Next() {
		problem, err := scanProblemRows(rows)
		if err != nil {
			return nil, err
		}
		problems = append(problems, problem)
	}
	return problems, rows.Err()
}

func scanProblem(row db.Row) (*model.Problem, error) {
	problem := &model.Problem{}
	var timeLimitMs int64
	if err := row.Scan(
		&problem.Code,
		&problem.ContestID,
		&problem.Name,
		&problem.Statement,
		&problem.InputFormat,
		&problem.OutputFormat,
		&problem.Difficulty,
		&problem.MaxScorePerTest,
		&timeLimitMs,
		&problem.MemoryLimitKB,
		&problem.FileExts,
	); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrProblemNotFound
		}
		return nil, err
	}
	problem.TimeLimit = time.Duration(timeLimitMs) * time.Millisecond
	return problem, nil
}

func scanProblemRows(rows db.Rows) (*model.Problem, error) {
	problem := &model.Problem{}
	var timeLimitMs int64
	if err := rows.Scan(
		&problem.Code,
		&problem.ContestID,
		&problem.Name,
		&problem.Statement,
		&problem.InputFormat,
		&problem.OutputFormat,
		&problem.Difficulty,
		&problem.MaxScorePerTest,
		&timeLimitMs,
		&problem.MemoryLimitKB,
		&problem.FileExts,
	); err != nil {
		return nil, err
	}
	problem.TimeLimit = time.Duration(timeLimitMs) * time.Millisecond
	return problem, nil
}
