package repository

import (
	"context"
	"errors"

	"autojudge/internal/common/db"
	"autojudge/internal/judge/model"
)

var (
	ErrPersonNotFound = errors.New("person not found")
)

// PersonRepository defines person persistence interfaces.
type PersonRepository interface {
	GetByEmail(ctx context.Context, tx db.Transaction, email string) (*model.Person, error)
	GetOrCreate(ctx context.Context, tx db.Transaction, email string) (*model.Person, error)
}

// MySQLPersonRepository implements PersonRepository with MySQL.
type MySQLPersonRepository struct {
	db db.Database
}

// NewPersonRepository creates a person repository.
func NewPersonRepository(database db.Database) *MySQLPersonRepository {
	return &MySQLPersonRepository{db: database}
}

// GetByEmail retrieves a person by email.
func (r *MySQLPersonRepository) GetByEmail(ctx context.Context, tx db.Transaction, email string) (*model.Person, error) {
	if email == "" {
		return nil, errors.New("email is required")
	}
	query := "SELECT email, rank_hint FROM persons WHERE email = ? LIMIT 1"
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, email)
	person := &model.Person{}
	if err := row.Scan(&person.Email, &person.Rank); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrPersonNotFound
		}
		return nil, err
	}
	return person, nil
}

// GetOrCreate retrieves a person, inserting the row with rank 0 if absent.
func (r *MySQLPersonRepository) GetOrCreate(ctx context.Context, tx db.Transaction, email string) (*model.Person, error) {
	if email == "" {
		return nil, errors.New("email is required")
	}
	person, err := r.GetByEmail(ctx, tx, email)
	if err == nil {
		return person, nil
	}
	if !errors.Is(err, ErrPersonNotFound) {
		return nil, err
	}

	query := "INSERT INTO persons (email, rank_hint) VALUES (?, 0)"
	if _, err := db.GetQuerier(r.db, tx).Exec(ctx, query, email); err != nil {
		// Lost a race with a concurrent insert; the row exists now.
		if _, dup := db.UniqueViolation(err); !dup {
			return nil, err
		}
	}
	return r.GetByEmail(ctx, tx, email)
}
