package repository

import (
	"context"
	"errors"

	"autojudge/internal/common/db"
	"autojudge/internal/judge/model"
)

var (
	ErrFinalScoreNotFound = errors.New("final score not found")
)

// AggregateScore is a person's summed best score across a contest's problems.
type AggregateScore struct {
	PersonEmail string
	Score       float64
}

// FinalScoreRepository defines PersonProblemFinalScore persistence.
type FinalScoreRepository interface {
	Get(ctx context.Context, tx db.Transaction, email, problemCode string) (*model.PersonProblemFinalScore, error)
	// Upsert writes the score unconditionally; the caller decides whether
	// the monotonic >= rule or an explicit recompute applies.
	Upsert(ctx context.Context, tx db.Transaction, email, problemCode string, score float64) error
	// SumByContest returns a person's aggregate score over a contest's problems.
	SumByContest(ctx context.Context, tx db.Transaction, email string, contestID int64) (float64, error)
	// ListByContest returns every participant's aggregate score for a contest.
	ListByContest(ctx context.Context, tx db.Transaction, contestID int64) ([]AggregateScore, error)
}

// MySQLFinalScoreRepository implements FinalScoreRepository with MySQL.
type MySQLFinalScoreRepository struct {
	db db.Database
}

// NewFinalScoreRepository creates a final score repository.
func NewFinalScoreRepository(database db.Database) *MySQLFinalScoreRepository {
	return &MySQLFinalScoreRepository{db: database}
}

// Get retrieves the best-score row for a (person, problem) pair.
func (r *MySQLFinalScoreRepository) Get(ctx context.Context, tx db.Transaction, email, problemCode string) (*model.PersonProblemFinalScore, error) {
	if email == "" || problemCode == "" {
		return nil, errors.New("email and problem code are required")
	}
	query := "SELECT person_email, problem_code, score FROM person_problem_final_scores WHERE person_email = ? AND problem_code = ? LIMIT 1"
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, email, problemCode)
	score := &model.PersonProblemFinalScore{}
	if err := row.Scan(&score.PersonEmail, &score.ProblemCode, &score.Score); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrFinalScoreNotFound
		}
		return nil, err
	}
	return score, nil
}

// Upsert inserts or overwrites the best-score row.
func (r *MySQLFinalScoreRepository) Upsert(ctx context.Context, tx db.Transaction, email, problemCode string, score float64) error {
	if email == "" || problemCode == "" {
		return errors.New("email and problem code are required")
	}
	query := `
		INSERT INTO person_problem_final_scores (person_email, problem_code, score)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE score = VALUES(score)
	`
	_, err := db.GetQuerier(r.db, tx).Exec(ctx, query, email, problemCode, score)
	return err
}

// SumByContest sums a person's best scores over a contest's problems.
func (r *MySQLFinalScoreRepository) SumByContest(ctx context.Context, tx db.Transaction, email string, contestID int64) (float64, error) {
	if email == "" || contestID <= 0 {
		return 0, errors.New("email and contestID are required")
	}
	query := `
		SELECT COALESCE(SUM(f.score), 0)
		FROM person_problem_final_scores f
		JOIN problems p ON p.code = f.problem_code
		WHERE f.person_email = ? AND p.contest_id = ?
	`
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, email, contestID)
	var sum float64
	if err := row.Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

// ListByContest aggregates every participant's score for a contest,
// highest first.
func (r *MySQLFinalScoreRepository) ListByContest(ctx context.Context, tx db.Transaction, contestID int64) ([]AggregateScore, error) {
	if contestID <= 0 {
		return nil, errors.New("contestID is required")
	}
	query := `
		SELECT f.person_email, COALESCE(SUM(f.score), 0)
		FROM person_problem_final_scores f
		JOIN problems p ON p.code = f.problem_code
		WHERE p.contest_id = ?
		GROUP BY f.person_email
		ORDER BY SUM(f.score) DESC, f.person_email ASC
	`
	rows, err := db.GetQuerier(r.db, tx).Query(ctx, query, contestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []AggregateScore
	for rows.Next() {
		var score AggregateScore
		if err := rows.Scan(&score.PersonEmail, &score.Score); err != nil {
			return nil, err
		}
		scores = append(scores, score)
	}
	return scores, rows.Err()
}
