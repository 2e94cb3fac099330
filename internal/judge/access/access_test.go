package access

import (
	"context"
	"testing"
	"time"

	"autojudge/internal/common/db"
	"autojudge/internal/judge/model"
	"autojudge/internal/judge/repository"
	"autojudge/pkg/errors"
)

type fakeContestRepo struct {
	contests map[int64]*model.Contest
}

func (f *fakeContestRepo) Create(ctx context.Context, tx db.Transaction, contest *model.Contest) (int64, error) {
	id := int64(len(f.contests) + 1)
	contest.ID = id
	f.contests[id] = contest
	return id, nil
}

func (f *fakeContestRepo) GetByID(ctx context.Context, tx db.Transaction, contestID int64) (*model.Contest, error) {
	contest, ok := f.contests[contestID]
	if !ok {
		return nil, repository.ErrContestNotFound
	}
	return contest, nil
}

type fakeProblemRepo struct {
	problems map[string]*model.Problem
}

func (f *fakeProblemRepo) Create(ctx context.Context, tx db.Transaction, problem *model.Problem) error {
	f.problems[problem.Code] = problem
	return nil
}

func (f *fakeProblemRepo) GetByCode(ctx context.Context, tx db.Transaction, code string) (*model.Problem, error) {
	problem, ok := f.problems[code]
	if !ok {
		return nil, repository.ErrProblemNotFound
	}
	return problem, nil
}

func (f *fakeProblemRepo) ListByContest(ctx context.Context, tx db.Transaction, contestID int64) ([]*model.Problem, error) {
	var problems []*model.Problem
	for _, problem := range f.problems {
		if problem.ContestID != nil && *problem.ContestID == contestID {
			problems = append(problems, problem)
		}
	}
	return problems, nil
}

type fakePersonRepo struct {
	persons map[string]*model.Person
}

func (f *fakePersonRepo) GetByEmail(ctx context.Context, tx db.Transaction, email string) (*model.Person, error) {
	person, ok := f.persons[email]
	if !ok {
		return nil, repository.ErrPersonNotFound
	}
	return person, nil
}

func (f *fakePersonRepo) GetOrCreate(ctx context.Context, tx db.Transaction, email string) (*model.Person, error) {
	if person, ok := f.persons[email]; ok {
		return person, nil
	}
	person := &model.Person{Email: email}
	f.persons[email] = person
	return person, nil
}

type membershipKey struct {
	contestID int64
	email     string
}

type fakeMembershipRepo struct {
	rows map[membershipKey]*model.ContestPerson
}

func (f *fakeMembershipRepo) Get(ctx context.Context, tx db.Transaction, contestID int64, email string) (*model.ContestPerson, error) {
	row, ok := f.rows[membershipKey{contestID, email}]
	if !ok {
		return nil, repository.ErrMembershipNotFound
	}
	return row, nil
}

func (f *fakeMembershipRepo) Create(ctx context.Context, tx db.Transaction, membership *model.ContestPerson) error {
	f.rows[membershipKey{membership.ContestID, membership.PersonEmail}] = membership
	return nil
}

func (f *fakeMembershipRepo) Delete(ctx context.Context, tx db.Transaction, contestID int64, email string) error {
	key := membershipKey{contestID, email}
	if _, ok := f.rows[key]; !ok {
		return repository.ErrMembershipNotFound
	}
	delete(f.rows, key)
	return nil
}

func (f *fakeMembershipRepo) CountByRole(ctx context.Context, tx db.Transaction, contestID int64, role model.Role) (int64, error) {
	var count int64
	for key, row := range f.rows {
		if key.contestID == contestID && row.Role == role {
			count++
		}
	}
	return count, nil
}

func (f *fakeMembershipRepo) ListEmailsByRole(ctx context.Context, tx db.Transaction, contestID int64, role model.Role) ([]string, error) {
	var emails []string
	for key, row := range f.rows {
		if key.contestID == contestID && row.Role == role {
			emails = append(emails, key.email)
		}
	}
	return emails, nil
}

func newTestService() (*Service, *fakeContestRepo, *fakeProblemRepo, *fakeMembershipRepo) {
	contests := &fakeContestRepo{contests: make(map[int64]*model.Contest)}
	problems := &fakeProblemRepo{problems: make(map[string]*model.Problem)}
	persons := &fakePersonRepo{persons: make(map[string]*model.Person)}
	memberships := &fakeMembershipRepo{rows: make(map[membershipKey]*model.ContestPerson)}
	return NewService(contests, problems, persons, memberships), contests, problems, memberships
}

func addContest(t *testing.T, contests *fakeContestRepo, id int64, public bool, start time.Time) *model.Contest {
	t.Helper()
	contest := &model.Contest{
		ID:        id,
		Name:      "contest",
		StartAt:   start,
		SoftEndAt: start.Add(48 * time.Hour),
		HardEndAt: start.Add(96 * time.Hour),
		Public:    public,
	}
	contests.contests[id] = contest
	return contest
}

func TestContestPermissionTable(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	beforeStart := start.Add(-time.Hour)
	afterStart := start.Add(time.Hour)

	svc, contests, _, memberships := newTestService()
	addContest(t, contests, 1, false, start)
	addContest(t, contests, 2, true, start)

	memberships.rows[membershipKey{1, "poster@x.io"}] = &model.ContestPerson{ContestID: 1, PersonEmail: "poster@x.io", Role: model.RolePoster}
	memberships.rows[membershipKey{1, "part@x.io"}] = &model.ContestPerson{ContestID: 1, PersonEmail: "part@x.io", Role: model.RoleParticipant}

	cases := []struct {
		name      string
		contestID int64
		email     string
		now       time.Time
		want      model.Permission
	}{
		{"poster before start", 1, "poster@x.io", beforeStart, model.PermissionPoster},
		{"poster after start", 1, "poster@x.io", afterStart, model.PermissionPoster},
		{"participant before start", 1, "part@x.io", beforeStart, model.PermissionNone},
		{"participant after start", 1, "part@x.io", afterStart, model.PermissionParticipant},
		{"stranger on private contest", 1, "other@x.io", afterStart, model.PermissionNone},
		{"anonymous on private contest", 1, "", afterStart, model.PermissionNone},
		{"stranger on public contest after start", 2, "other@x.io", afterStart, model.PermissionParticipant},
		{"stranger on public contest before start", 2, "other@x.io", beforeStart, model.PermissionNone},
		{"anonymous on public contest after start", 2, "", afterStart, model.PermissionParticipant},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.ContestPermission(ctx, tc.contestID, tc.email, tc.now)
			if err != nil {
				t.Fatalf("ContestPermission: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestContestPermissionUnknownContest(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.ContestPermission(context.Background(), 99, "a@x.io", time.Now())
	if !errors.Is(err, errors.ContestNotFound) {
		t.Fatalf("expected ContestNotFound, got %v", err)
	}
}

func TestProblemPermissionOwnerless(t *testing.T) {
	svc, _, problems, _ := newTestService()
	problems.problems["prac-1"] = &model.Problem{Code: "prac-1"}

	got, err := svc.ProblemPermission(context.Background(), "prac-1", "", time.Now())
	if err != nil {
		t.Fatalf("ProblemPermission: %v", err)
	}
	if got != model.PermissionParticipant {
		t.Fatalf("ownerless problem should grant participant access, got %v", got)
	}
}

func TestProblemPermissionDelegates(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, contests, problems, memberships := newTestService()
	addContest(t, contests, 1, false, start)
	contestID := int64(1)
	problems.problems["p1"] = &model.Problem{Code: "p1", ContestID: &contestID}
	memberships.rows[membershipKey{1, "poster@x.io"}] = &model.ContestPerson{ContestID: 1, PersonEmail: "poster@x.io", Role: model.RolePoster}

	got, err := svc.ProblemPermission(context.Background(), "p1", "poster@x.io", start.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ProblemPermission: %v", err)
	}
	if got != model.PermissionPoster {
		t.Fatalf("got %v, want poster", got)
	}

	got, err = svc.ProblemPermission(context.Background(), "p1", "stranger@x.io", start.Add(time.Hour))
	if err != nil {
		t.Fatalf("ProblemPermission: %v", err)
	}
	if got != model.PermissionNone {
		t.Fatalf("got %v, want none", got)
	}
}

func TestAddToContest(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, contests, _, memberships := newTestService()
	addContest(t, contests, 1, false, start)
	addContest(t, contests, 2, true, start)

	if err := svc.AddToContest(ctx, 1, "a@x.io", model.RoleParticipant); err != nil {
		t.Fatalf("AddToContest: %v", err)
	}
	if _, ok := memberships.rows[membershipKey{1, "a@x.io"}]; !ok {
		t.Fatal("membership row not created")
	}

	// Same role again is idempotent.
	if err := svc.AddToContest(ctx, 1, "a@x.io", model.RoleParticipant); err != nil {
		t.Fatalf("idempotent add: %v", err)
	}

	// A different role is a conflict.
	err := svc.AddToContest(ctx, 1, "a@x.io", model.RolePoster)
	if !errors.Is(err, errors.AlreadyRegistered) {
		t.Fatalf("expected AlreadyRegistered, got %v", err)
	}

	// Public contests keep no participant rows.
	if err := svc.AddToContest(ctx, 2, "b@x.io", model.RoleParticipant); err != nil {
		t.Fatalf("AddToContest public: %v", err)
	}
	if _, ok := memberships.rows[membershipKey{2, "b@x.io"}]; ok {
		t.Fatal("public contest should not materialize participant rows")
	}

	// Posters are stored even on public contests.
	if err := svc.AddToContest(ctx, 2, "owner@x.io", model.RolePoster); err != nil {
		t.Fatalf("AddToContest poster: %v", err)
	}
	if _, ok := memberships.rows[membershipKey{2, "owner@x.io"}]; !ok {
		t.Fatal("poster row not created on public contest")
	}
}

func TestRemoveFromContest(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, contests, _, memberships := newTestService()
	addContest(t, contests, 1, false, start)

	memberships.rows[membershipKey{1, "only@x.io"}] = &model.ContestPerson{ContestID: 1, PersonEmail: "only@x.io", Role: model.RolePoster}
	memberships.rows[membershipKey{1, "part@x.io"}] = &model.ContestPerson{ContestID: 1, PersonEmail: "part@x.io", Role: model.RoleParticipant}

	// The sole poster is pinned.
	err := svc.RemoveFromContest(ctx, 1, "only@x.io")
	if !errors.Is(err, errors.OrphanViolation) {
		t.Fatalf("expected OrphanViolation, got %v", err)
	}

	// With a second poster the removal goes through.
	memberships.rows[membershipKey{1, "co@x.io"}] = &model.ContestPerson{ContestID: 1, PersonEmail: "co@x.io", Role: model.RolePoster}
	if err := svc.RemoveFromContest(ctx, 1, "only@x.io"); err != nil {
		t.Fatalf("RemoveFromContest: %v", err)
	}

	if err := svc.RemoveFromContest(ctx, 1, "part@x.io"); err != nil {
		t.Fatalf("RemoveFromContest participant: %v", err)
	}

	err = svc.RemoveFromContest(ctx, 1, "ghost@x.io")
	if !errors.Is(err, errors.PersonNotFound) {
		t.Fatalf("expected PersonNotFound, got %v", err)
	}
}
