package submit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"autojudge/internal/common/db"
	"autojudge/internal/judge/descriptor"
	"autojudge/internal/judge/model"
	"autojudge/internal/judge/repository"
	"autojudge/pkg/errors"
)

type fakeProblemRepo struct {
	problems map[string]*model.Problem
}

func (f *fakeProblemRepo) Create(ctx context.Context, tx db.Transaction, p *model.Problem) error {
	f.problems[p.Code] = p
	return nil
}

func (f *fakeProblemRepo) GetByCode(ctx context.Context, tx db.Transaction, code string) (*model.Problem, error) {
	p, ok := f.problems[code]
	if !ok {
		return nil, repository.ErrProblemNotFound
	}
	return p, nil
}

func (f *fakeProblemRepo) ListByContest(ctx context.Context, tx db.Transaction, contestID int64) ([]*model.Problem, error) {
	return nil, nil
}

type fakePersonRepo struct {
	persons map[string]*model.Person
}

func (f *fakePersonRepo) GetByEmail(ctx context.Context, tx db.Transaction, email string) (*model.Person, error) {
	p, ok := f.persons[email]
	if !ok {
		return nil, repository.ErrPersonNotFound
	}
	return p, nil
}

func (f *fakePersonRepo) GetOrCreate(ctx context.Context, tx db.Transaction, email string) (*model.Person, error) {
	if p, ok := f.persons[email]; ok {
		return p, nil
	}
	p := &model.Person{Email: email}
	f.persons[email] = p
	return p, nil
}

type fakeSubmissionRepo struct {
	submissions map[int64]*model.Submission
	nextID      int64
}

func (f *fakeSubmissionRepo) Create(ctx context.Context, tx db.Transaction, s *model.Submission) (int64, error) {
	f.nextID++
	s.ID = f.nextID
	f.submissions[s.ID] = s
	return s.ID, nil
}

func (f *fakeSubmissionRepo) GetByID(ctx context.Context, tx db.Transaction, id int64) (*model.Submission, error) {
	s, ok := f.submissions[id]
	if !ok {
		return nil, repository.ErrSubmissionNotFound
	}
	return s, nil
}

func (f *fakeSubmissionRepo) ListByPersonProblem(ctx context.Context, tx db.Transaction, email, code string) ([]*model.Submission, error) {
	return nil, nil
}

func (f *fakeSubmissionRepo) UpdateScores(ctx context.Context, tx db.Transaction, id int64, judge, linter, final float64) error {
	return nil
}

func (f *fakeSubmissionRepo) ApplyPosterDelta(ctx context.Context, id int64, poster float64) (*model.Submission, error) {
	return nil, nil
}

func (f *fakeSubmissionRepo) MaxFinalScore(ctx context.Context, tx db.Transaction, email, code string) (float64, bool, error) {
	return 0, false, nil
}

type fakeTestCaseRepo struct {
	byProblem map[string][]*model.TestCase
}

func (f *fakeTestCaseRepo) Create(ctx context.Context, tx db.Transaction, tc *model.TestCase) (int64, error) {
	f.byProblem[tc.ProblemCode] = append(f.byProblem[tc.ProblemCode], tc)
	return tc.ID, nil
}

func (f *fakeTestCaseRepo) GetByID(ctx context.Context, tx db.Transaction, id int64) (*model.TestCase, error) {
	return nil, repository.ErrTestCaseNotFound
}

func (f *fakeTestCaseRepo) ListByProblem(ctx context.Context, tx db.Transaction, code string) ([]*model.TestCase, error) {
	return f.byProblem[code], nil
}

type fakeVerdictRepo struct {
	created map[int64][]int64
}

func (f *fakeVerdictRepo) BatchCreatePending(ctx context.Context, tx db.Transaction, submissionID int64, testCaseIDs []int64) error {
	f.created[submissionID] = testCaseIDs
	return nil
}

func (f *fakeVerdictRepo) Get(ctx context.Context, tx db.Transaction, submissionID, testCaseID int64) (*model.SubmissionTestCase, error) {
	return nil, repository.ErrSubmissionTestCaseNotFound
}

func (f *fakeVerdictRepo) RecordVerdict(ctx context.Context, tx db.Transaction, row *model.SubmissionTestCase) error {
	return nil
}

func (f *fakeVerdictRepo) ListBySubmission(ctx context.Context, tx db.Transaction, submissionID int64) ([]*model.SubmissionTestCase, error) {
	return nil, nil
}

type submitFixture struct {
	service    *Service
	verdicts   *fakeVerdictRepo
	monitorDir string
	filesDir   string
}

func newSubmitFixture(t *testing.T) *submitFixture {
	t.Helper()
	problems := &fakeProblemRepo{problems: map[string]*model.Problem{
		"p1": {
			Code:            "p1",
			MaxScorePerTest: 10,
			TimeLimit:       2 * time.Second,
			MemoryLimitKB:   65536,
			FileExts:        ".py,.cpp",
		},
	}}
	testCases := &fakeTestCaseRepo{byProblem: map[string][]*model.TestCase{
		"p1": {
			{ID: 3, ProblemCode: "p1", Public: true},
			{ID: 1, ProblemCode: "p1"},
			{ID: 2, ProblemCode: "p1"},
		},
	}}
	persons := &fakePersonRepo{persons: make(map[string]*model.Person)}
	submissions := &fakeSubmissionRepo{submissions: make(map[int64]*model.Submission)}
	verdicts := &fakeVerdictRepo{created: make(map[int64][]int64)}
	monitorDir := t.TempDir()
	filesDir := t.TempDir()
	service := NewService(problems, persons, submissions, testCases, verdicts, monitorDir, filesDir)
	return &submitFixture{service: service, verdicts: verdicts, monitorDir: monitorDir, filesDir: filesDir}
}

func TestEnqueue(t *testing.T) {
	ctx := context.Background()
	fx := newSubmitFixture(t)

	id, err := fx.service.Enqueue(ctx, "p1", "a@x.io", ".py", []byte("print('hi')\n"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if id != 1 {
		t.Fatalf("id = %d, want 1", id)
	}

	// Pending rows use the listing order, public first.
	want := []int64{3, 1, 2}
	got := fx.verdicts.created[id]
	if len(got) != len(want) {
		t.Fatalf("pending rows %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pending rows %v, want %v", got, want)
		}
	}

	// The source file is stored for the linter.
	source, err := os.ReadFile(filepath.Join(fx.filesDir, "submission_1.py"))
	if err != nil {
		t.Fatalf("source file: %v", err)
	}
	if string(source) != "print('hi')\n" {
		t.Fatalf("source = %q", source)
	}

	// The descriptor round-trips with the same test case order.
	jobPath := filepath.Join(fx.monitorDir, descriptor.JobFileName(id))
	f, err := os.Open(jobPath)
	if err != nil {
		t.Fatalf("job file: %v", err)
	}
	defer f.Close()
	job, err := descriptor.DecodeJob(f)
	if err != nil {
		t.Fatalf("DecodeJob: %v", err)
	}
	if job.ProblemCode != "p1" || job.SubmissionID != id || job.FileType != ".py" {
		t.Fatalf("unexpected job header %+v", job)
	}
	if job.TimeLimitSec != 2 || job.MemoryLimitKB != 65536 {
		t.Fatalf("unexpected limits %+v", job)
	}
	for i := range want {
		if job.TestCaseIDs[i] != want[i] {
			t.Fatalf("job test cases %v, want %v", job.TestCaseIDs, want)
		}
	}
}

func TestEnqueueRejectsFileType(t *testing.T) {
	fx := newSubmitFixture(t)
	_, err := fx.service.Enqueue(context.Background(), "p1", "a@x.io", ".rb", []byte("puts 1"))
	if !errors.Is(err, errors.FileTypeNotAccepted) {
		t.Fatalf("expected FileTypeNotAccepted, got %v", err)
	}
}

func TestEnqueueUnknownProblem(t *testing.T) {
	fx := newSubmitFixture(t)
	_, err := fx.service.Enqueue(context.Background(), "nope", "a@x.io", ".py", nil)
	if !errors.Is(err, errors.ProblemNotFound) {
		t.Fatalf("expected ProblemNotFound, got %v", err)
	}
}
