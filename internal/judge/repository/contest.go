// Package repository implements MySQL persistence for the grading entities.
package repository

import (
	"context"
	"errors"

	"autojudge/internal/common/db"
	"autojudge/internal/judge/model"
)

var (
	ErrContestNotFound = errors.New("contest not found")
)

// ContestRepository defines contest persistence interfaces.
type ContestRepository interface {
	Create(ctx context.Context, tx db.Transaction, contest *model.Contest) (int64, error)
	GetByID(ctx context.Context, tx db.Transaction, contestID int64) (*model.Contest, error)
}

// MySQLContestRepository implements ContestRepository with MySQL.
type MySQLContestRepository struct {
	db db.Database
}

// NewContestRepository creates a contest repository.
func NewContestRepository(database db.Database) *MySQLContestRepository {
	return &MySQLContestRepository{db: database}
}

const contestColumns = "id, name, start_at, soft_end_at, hard_end_at, penalty_per_day, public, enable_linter_score, enable_poster_score"

// Create inserts a contest and returns its id. The deadline ordering is
// validated here because every later penalty computation assumes it.
func (r *MySQLContestRepository) Create(ctx context.Context, tx db.Transaction, contest *model.Contest) (int64, error) {
	if contest == nil {
		return 0, errors.New("contest is nil")
	}
	if contest.Name == "" {
		return 0, errors.New("contest name is required")
	}
	if !contest.WindowValid() {
		return 0, errors.New("contest deadlines are out of order")
	}

	query := `
		INSERT INTO contests
		(name, start_at, soft_end_at, hard_end_at, penalty_per_day, public, enable_linter_score, enable_poster_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := db.GetQuerier(r.db, tx).Exec(
		ctx,
		query,
		contest.Name,
		contest.StartAt,
		contest.SoftEndAt,
		contest.HardEndAt,
		contest.PenaltyPerDay,
		contest.Public,
		contest.EnableLinterScore,
		contest.EnablePosterScore,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetByID retrieves a contest by id.
func (r *MySQLContestRepository) GetByID(ctx context.Context, tx db.Transaction, contestID int64) (*model.Contest, error) {
	if contestID <= 0 {
		return nil, errors.New("contestID is required")
	}
	query := "SELECT " + contestColumns + " FROM contests WHERE id = ? LIMIT 1"
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, contestID)
	contest := &model.Contest{}
	if err := row.Scan(
		&contest.ID,
		&contest.Name,
		&contest.StartAt,
		&contest.SoftEndAt,
		&contest.HardEndAt,
		&contest.PenaltyPerDay,
		&contest.Public,
		&contest.EnableLinterScore,
		&contest.EnablePosterScore,
	); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrContestNotFound
		}
		return nil, err
	}
	return contest, nil
}
