// Package access resolves what a person may do within a contest and
// manages contest membership.
package access

import (
	"context"
	stderrors "errors"
	"time"

	"autojudge/internal/common/db"
	"autojudge/internal/judge/model"
	"autojudge/internal/judge/repository"
	"autojudge/pkg/errors"
	"autojudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// Service answers permission queries and manages contest rosters.
type Service struct {
	contests    repository.ContestRepository
	problems    repository.ProblemRepository
	persons     repository.PersonRepository
	memberships repository.MembershipRepository
}

// NewService creates an access service.
func NewService(
	contests repository.ContestRepository,
	problems repository.ProblemRepository,
	persons repository.PersonRepository,
	memberships repository.MembershipRepository,
) *Service {
	return &Service{
		contests:    contests,
		problems:    problems,
		persons:     persons,
		memberships: memberships,
	}
}

// ContestPermission resolves the access level of email on a contest at
// time now. An empty email means an anonymous visitor.
//
// Posters keep their access at all times. Registered participants and
// public visitors get participant access only once the contest has
// started. Everyone else gets none.
func (s *Service) ContestPermission(ctx context.Context, contestID int64, email string, now time.Time) (model.Permission, error) {
	contest, err := s.contests.GetByID(ctx, nil, contestID)
	if err != nil {
		if stderrors.Is(err, repository.ErrContestNotFound) {
			return model.PermissionNone, errors.Newf(errors.ContestNotFound, "contest %d not found", contestID)
		}
		return model.PermissionNone, errors.Wrap(err, errors.DatabaseError)
	}
	return s.resolve(ctx, contest, email, now)
}

func (s *Service) resolve(ctx context.Context, contest *model.Contest, email string, now time.Time) (model.Permission, error) {
	started := !now.Before(contest.StartAt)

	if email == "" {
		if contest.Public && started {
			return model.PermissionParticipant, nil
		}
		return model.PermissionNone, nil
	}

	membership, err := s.memberships.Get(ctx, nil, contest.ID, email)
	if err != nil {
		if stderrors.Is(err, repository.ErrMembershipNotFound) {
			// Public contests admit anyone once started, without a roster row.
			if contest.Public && started {
				return model.PermissionParticipant, nil
			}
			return model.PermissionNone, nil
		}
		return model.PermissionNone, errors.Wrap(err, errors.DatabaseError)
	}

	switch membership.Role {
	case model.RolePoster:
		return model.PermissionPoster, nil
	case model.RoleParticipant:
		if started {
			return model.PermissionParticipant, nil
		}
		return model.PermissionNone, nil
	default:
		return model.PermissionNone, errors.Newf(errors.InternalError, "unknown role %q", membership.Role)
	}
}

// ProblemPermission resolves access to a problem. Ownerless problems
// are practice material and resolve to participant access for everyone.
func (s *Service) ProblemPermission(ctx context.Context, problemCode, email string, now time.Time) (model.Permission, error) {
	problem, err := s.problems.GetByCode(ctx, nil, problemCode)
	if err != nil {
		if stderrors.Is(err, repository.ErrProblemNotFound) {
			return model.PermissionNone, errors.Newf(errors.ProblemNotFound, "problem %s not found", problemCode)
		}
		return model.PermissionNone, errors.Wrap(err, errors.DatabaseError)
	}
	if problem.ContestID == nil {
		return model.PermissionParticipant, nil
	}
	contest, err := s.contests.GetByID(ctx, nil, *problem.ContestID)
	if err != nil {
		if stderrors.Is(err, repository.ErrContestNotFound) {
			return model.PermissionNone, errors.Newf(errors.ContestNotFound, "contest %d not found", *problem.ContestID)
		}
		return model.PermissionNone, errors.Wrap(err, errors.DatabaseError)
	}
	return s.resolve(ctx, contest, email, now)
}

// AddToContest registers a person on a contest with the given role,
// creating the person row if needed. Adding a participant to a public
// contest is a no-op since public contests never keep participant rows.
// Re-adding with the same role is idempotent; re-adding with a
// different role is rejected.
func (s *Service) AddToContest(ctx context.Context, contestID int64, email string, role model.Role) error {
	if email == "" {
		return errors.BadRequest("email is required")
	}
	if role != model.RoleParticipant && role != model.RolePoster {
		return errors.Newf(errors.InvalidParams, "unknown role %q", role)
	}

	contest, err := s.contests.GetByID(ctx, nil, contestID)
	if err != nil {
		if stderrors.Is(err, repository.ErrContestNotFound) {
			return errors.Newf(errors.ContestNotFound, "contest %d not found", contestID)
		}
		return errors.Wrap(err, errors.DatabaseError)
	}

	if contest.Public && role == model.RoleParticipant {
		logger.Debug(ctx, "skipping participant row for public contest",
			zap.Int64("contest_id", contestID),
			zap.String("email", email))
		return nil
	}

	if _, err := s.persons.GetOrCreate(ctx, nil, email); err != nil {
		return errors.Wrap(err, errors.DatabaseError)
	}

	existing, err := s.memberships.Get(ctx, nil, contestID, email)
	if err == nil {
		if existing.Role == role {
			return nil
		}
		return errors.Newf(errors.AlreadyRegistered,
			"%s is already registered on contest %d as %s", email, contestID, existing.Role)
	}
	if !stderrors.Is(err, repository.ErrMembershipNotFound) {
		return errors.Wrap(err, errors.DatabaseError)
	}

	membership := &model.ContestPerson{
		ContestID:   contestID,
		PersonEmail: email,
		Role:        role,
	}
	if err := s.memberships.Create(ctx, nil, membership); err != nil {
		if _, dup := db.UniqueViolation(err); dup {
			return errors.Newf(errors.AlreadyRegistered,
				"%s is already registered on contest %d", email, contestID)
		}
		return errors.Wrap(err, errors.DatabaseError)
	}

	logger.Info(ctx, "added person to contest",
		zap.Int64("contest_id", contestID),
		zap.String("email", email),
		zap.String("role", string(role)))
	return nil
}

// RemoveFromContest removes a person from a contest roster. The last
// poster of a contest cannot be removed; a contest must always keep at
// least one owner.
func (s *Service) RemoveFromContest(ctx context.Context, contestID int64, email string) error {
	if email == "" {
		return errors.BadRequest("email is required")
	}

	membership, err := s.memberships.Get(ctx, nil, contestID, email)
	if err != nil {
		if stderrors.Is(err, repository.ErrMembershipNotFound) {
			return errors.Newf(errors.PersonNotFound, "%s is not registered on contest %d", email, contestID)
		}
		return errors.Wrap(err, errors.DatabaseError)
	}

	if membership.Role == model.RolePoster {
		count, err := s.memberships.CountByRole(ctx, nil, contestID, model.RolePoster)
		if err != nil {
			return errors.Wrap(err, errors.DatabaseError)
		}
		if count <= 1 {
			return errors.Newf(errors.OrphanViolation,
				"cannot remove the only poster of contest %d", contestID)
		}
	}

	if err := s.memberships.Delete(ctx, nil, contestID, email); err != nil {
		if stderrors.Is(err, repository.ErrMembershipNotFound) {
			return errors.Newf(errors.PersonNotFound, "%s is not registered on contest %d", email, contestID)
		}
		return errors.Wrap(err, errors.DatabaseError)
	}

	logger.Info(ctx, "removed person from contest",
		zap.Int64("contest_id", contestID),
		zap.String("email", email))
	return nil
}

// Posters lists the poster emails of a contest.
func (s *Service) Posters(ctx context.Context, contestID int64) ([]string, error) {
	emails, err := s.memberships.ListEmailsByRole(ctx, nil, contestID, model.RolePoster)
	if err != nil {
		return nil, errors.Wrap(err, errors.DatabaseError)
	}
	return emails, nil
}

// Participants lists the registered participant emails of a contest.
// For public contests this covers only explicit registrations.
func (s *Service) Participants(ctx context.Context, contestID int64) ([]string, error) {
	emails, err := s.memberships.ListEmailsByRole(ctx, nil, contestID, model.RoleParticipant)
	if err != nil {
		return nil, errors.Wrap(err, errors.DatabaseError)
	}
	return emails, nil
}
