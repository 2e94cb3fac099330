package repository

import (
	"context"
	"errors"

	"autojudge/internal/common/db"
	"autojudge/internal/judge/model"
)

var (
	ErrMembershipNotFound = errors.New("contest membership not found")
)

// MembershipRepository defines ContestPerson persistence interfaces.
type MembershipRepository interface {
	Get(ctx context.Context, tx db.Transaction, contestID int64, email string) (*model.ContestPerson, error)
	Create(ctx context.Context, tx db.Transaction, membership *model.ContestPerson) error
	Delete(ctx context.Context, tx db.Transaction, contestID int64, email string) error
	CountByRole(ctx context.Context, tx db.Transaction, contestID int64, role model.Role) (int64, error)
	ListEmailsByRole(ctx context.Context, tx db.Transaction, contestID int64, role model.Role) ([]string, error)
}

// MySQLMembershipRepository implements MembershipRepository with MySQL.
type MySQLMembershipRepository struct {
	db db.Database
}

// NewMembershipRepository creates a membership repository.
func NewMembershipRepository(database db.Database) *MySQLMembershipRepository {
	return &MySQLMembershipRepository{db: database}
}

// Get retrieves the membership row for a (contest, person) pair.
func (r *MySQLMembershipRepository) Get(ctx context.Context, tx db.Transaction, contestID int64, email string) (*model.ContestPerson, error) {
	if contestID <= 0 || email == "" {
		return nil, errors.New("contestID and email are required")
	}
	query := "SELECT contest_id, person_email, role FROM contest_persons WHERE contest_id = ? AND person_email = ? LIMIT 1"
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, contestID, email)
	membership := &model.ContestPerson{}
	if err := row.Scan(&membership.ContestID, &membership.PersonEmail, &membership.Role); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	return membership, nil
}

// Create inserts a membership row.
func (r *MySQLMembershipRepository) Create(ctx context.Context, tx db.Transaction, membership *model.ContestPerson) error {
	if membership == nil {
		return errors.New("membership is nil")
	}
	if membership.ContestID <= 0 || membership.PersonEmail == "" {
		return errors.New("contestID and email are required")
	}
	query := "INSERT INTO contest_persons (contest_id, person_email, role) VALUES (?, ?, ?)"
	_, err := db.GetQuerier(r.db, tx).Exec(ctx, query, membership.ContestID, membership.PersonEmail, string(membership.Role))
	return err
}

// Delete removes the membership row for a (contest, person) pair.
func (r *MySQLMembershipRepository) Delete(ctx context.Context, tx db.Transaction, contestID int64, email string) error {
	if contestID <= 0 || email == "" {
		return errors.New("contestID and email are required")
	}
	query := "DELETE FROM contest_persons WHERE contest_id = ? AND person_email = ?"
	res, err := db.GetQuerier(r.db, tx).Exec(ctx, query, contestID, email)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

// CountByRole counts memberships of a role within a contest.
func (r *MySQLMembershipRepository) CountByRole(ctx context.Context, tx db.Transaction, contestID int64, role model.Role) (int64, error) {
	if contestID <= 0 {
		return 0, errors.New("contestID is required")
	}
	query := "SELECT COUNT(*) FROM contest_persons WHERE contest_id = ? AND role = ?"
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, contestID, string(role))
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListEmailsByRole lists member emails of a role within a contest.
func (r *MySQLMembershipRepository) ListEmailsByRole(ctx context.Context, tx db.Transaction, contestID int64, role model.Role) ([]string, error) {
	if contestID <= 0 {
		return nil, errors.New("contestID is required")
	}
	query := "SELECT person_email FROM contest_persons WHERE contest_id = ? AND role = ? ORDER BY person_email"
	rows, err := db.GetQuerier(r.db, tx).Query(ctx, query, contestID, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}
