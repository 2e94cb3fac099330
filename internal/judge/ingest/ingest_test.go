package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"autojudge/internal/common/db"
	"autojudge/internal/judge/model"
	"autojudge/internal/judge/repository"
	"autojudge/pkg/errors"
)

type fakeSubmissionRepo struct {
	submissions map[int64]*model.Submission
}

func (f *fakeSubmissionRepo) Create(ctx context.Context, tx db.Transaction, s *model.Submission) (int64, error) {
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
	testCases map[int64]*model.TestCase
}

func (f *fakeTestCaseRepo) Create(ctx context.Context, tx db.Transaction, tc *model.TestCase) (int64, error) {
	f.testCases[tc.ID] = tc
	return tc.ID, nil
}

func (f *fakeTestCaseRepo) GetByID(ctx context.Context, tx db.Transaction, id int64) (*model.TestCase, error) {
	tc, ok := f.testCases[id]
	if !ok {
		return nil, repository.ErrTestCaseNotFound
	}
	return tc, nil
}

func (f *fakeTestCaseRepo) ListByProblem(ctx context.Context, tx db.Transaction, code string) ([]*model.TestCase, error) {
	return nil, nil
}

type verdictKey struct {
	submissionID int64
	testCaseID   int64
}

type fakeVerdictRepo struct {
	rows map[verdictKey]*model.SubmissionTestCase
}

func (f *fakeVerdictRepo) BatchCreatePending(ctx context.Context, tx db.Transaction, submissionID int64, testCaseIDs []int64) error {
	for _, id := range testCaseIDs {
		f.rows[verdictKey{submissionID, id}] = &model.SubmissionTestCase{
			SubmissionID: submissionID,
			TestCaseID:   id,
			Verdict:      model.VerdictPending,
		}
	}
	return nil
}

func (f *fakeVerdictRepo) Get(ctx context.Context, tx db.Transaction, submissionID, testCaseID int64) (*model.SubmissionTestCase, error) {
	row, ok := f.rows[verdictKey{submissionID, testCaseID}]
	if !ok {
		return nil, repository.ErrSubmissionTestCaseNotFound
	}
	return row, nil
}

func (f *fakeVerdictRepo) RecordVerdict(ctx context.Context, tx db.Transaction, row *model.SubmissionTestCase) error {
	existing, ok := f.rows[verdictKey{row.SubmissionID, row.TestCaseID}]
	if !ok {
		return repository.ErrSubmissionTestCaseNotFound
	}
	if existing.Verdict != model.VerdictPending {
		return repository.ErrVerdictAlreadyRecorded
	}
	*existing = *row
	return nil
}

func (f *fakeVerdictRepo) ListBySubmission(ctx context.Context, tx db.Transaction, submissionID int64) ([]*model.SubmissionTestCase, error) {
	return nil, nil
}

type ingestFixture struct {
	ingestor    *Ingestor
	submissions *fakeSubmissionRepo
	testCases   *fakeTestCaseRepo
	verdicts    *fakeVerdictRepo
	dir         string
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	submissions := &fakeSubmissionRepo{submissions: make(map[int64]*model.Submission)}
	testCases := &fakeTestCaseRepo{testCases: make(map[int64]*model.TestCase)}
	verdicts := &fakeVerdictRepo{rows: make(map[verdictKey]*model.SubmissionTestCase)}
	return &ingestFixture{
		ingestor:    NewIngestor(submissions, testCases, verdicts),
		submissions: submissions,
		testCases:   testCases,
		verdicts:    verdicts,
		dir:         t.TempDir(),
	}
}

func (fx *ingestFixture) seed(t *testing.T, submissionID int64, problemCode string, publicCases, privateCases []int64) {
	t.Helper()
	fx.submissions.submissions[submissionID] = &model.Submission{ID: submissionID, ProblemCode: problemCode}
	for _, id := range publicCases {
		fx.testCases.testCases[id] = &model.TestCase{ID: id, ProblemCode: problemCode, Public: true}
	}
	for _, id := range privateCases {
		fx.testCases.testCases[id] = &model.TestCase{ID: id, ProblemCode: problemCode}
	}
	all := append(append([]int64{}, publicCases...), privateCases...)
	if err := fx.verdicts.BatchCreatePending(context.Background(), nil, submissionID, all); err != nil {
		t.Fatal(err)
	}
}

func (fx *ingestFixture) writeResult(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(fx.dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIngestRecordsVerdicts(t *testing.T) {
	ctx := context.Background()
	fx := newIngestFixture(t)
	fx.seed(t, 7, "p1", []int64{1}, []int64{2})

	path := fx.writeResult(t, "sub_run_7.txt",
		"p1\n7\n1 P 0.25 1024 all good here\n2 F 1.5 2048 secret detail\n")

	if err := fx.ingestor.IngestFile(ctx, path); err != nil {
		t.Fatalf("IngestFile: %v", err)
	}

	pub := fx.verdicts.rows[verdictKey{7, 1}]
	if pub.Verdict != model.VerdictPass {
		t.Fatalf("public verdict = %v, want P", pub.Verdict)
	}
	if pub.Message != "all good here" {
		t.Fatalf("public message = %q", pub.Message)
	}
	if pub.MemoryTakenKB != 1024 {
		t.Fatalf("memory = %d, want 1024", pub.MemoryTakenKB)
	}

	priv := fx.verdicts.rows[verdictKey{7, 2}]
	if priv.Verdict != model.VerdictFail {
		t.Fatalf("private verdict = %v, want F", priv.Verdict)
	}
	if priv.Message != "" {
		t.Fatalf("private messages must be discarded, got %q", priv.Message)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("result file should be deleted after ingestion")
	}
}

func TestIngestTruncatesLongMessages(t *testing.T) {
	ctx := context.Background()
	fx := newIngestFixture(t)
	fx.seed(t, 7, "p1", []int64{1}, nil)

	long := strings.Repeat("x y ", 300) // 1200 chars, contains spaces so it is inline
	path := fx.writeResult(t, "sub_run_7.txt", "p1\n7\n1 F 0.1 64 "+long+"\n")

	if err := fx.ingestor.IngestFile(ctx, path); err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	message := fx.verdicts.rows[verdictKey{7, 1}].Message
	if !strings.HasSuffix(message, "\nMessage Truncated") {
		t.Fatalf("expected truncation marker, got tail %q", message[len(message)-30:])
	}
	if len(message) != 1000+len("\nMessage Truncated") {
		t.Fatalf("truncated length = %d", len(message))
	}
}

func TestIngestReadsMessageFiles(t *testing.T) {
	ctx := context.Background()
	fx := newIngestFixture(t)
	fx.seed(t, 7, "p1", []int64{1}, nil)

	messagePath := fx.writeResult(t, "msg_7_1.txt", "compiler output")
	path := fx.writeResult(t, "sub_run_7.txt", "p1\n7\n1 CE 0 0 msg_7_1.txt\n")

	if err := fx.ingestor.IngestFile(ctx, path); err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if got := fx.verdicts.rows[verdictKey{7, 1}].Message; got != "compiler output" {
		t.Fatalf("message = %q, want file contents", got)
	}
	if _, err := os.Stat(messagePath); !os.IsNotExist(err) {
		t.Fatal("message file should be deleted after ingestion")
	}
}

func TestIngestConsumesPrivateMessageFiles(t *testing.T) {
	ctx := context.Background()
	fx := newIngestFixture(t)
	fx.seed(t, 7, "p1", nil, []int64{2})

	messagePath := fx.writeResult(t, "msg_7_2.txt", "secret compiler output")
	path := fx.writeResult(t, "sub_run_7.txt", "p1\n7\n2 CE 0 0 msg_7_2.txt\n")

	if err := fx.ingestor.IngestFile(ctx, path); err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	row := fx.verdicts.rows[verdictKey{7, 2}]
	if row.Verdict != model.VerdictCompileError {
		t.Fatalf("verdict = %v, want CE", row.Verdict)
	}
	if row.Message != "" {
		t.Fatalf("private messages must be discarded, got %q", row.Message)
	}
	if _, err := os.Stat(messagePath); !os.IsNotExist(err) {
		t.Fatal("message file referenced by a private test case should be deleted")
	}
}

func TestIngestUnknownPairIsFatal(t *testing.T) {
	ctx := context.Background()
	fx := newIngestFixture(t)
	fx.seed(t, 7, "p1", []int64{1}, nil)
	fx.testCases.testCases[99] = &model.TestCase{ID: 99, ProblemCode: "p1"}

	path := fx.writeResult(t, "sub_run_7.txt", "p1\n7\n99 P 0.1 64\n")

	err := fx.ingestor.IngestFile(ctx, path)
	if !errors.Is(err, errors.ConsistencyError) {
		t.Fatalf("expected ConsistencyError, got %v", err)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatal("result file must survive a failed ingestion")
	}
}

func TestIngestProblemMismatchIsFatal(t *testing.T) {
	ctx := context.Background()
	fx := newIngestFixture(t)
	fx.seed(t, 7, "p1", []int64{1}, nil)

	path := fx.writeResult(t, "sub_run_7.txt", "other\n7\n1 P 0.1 64\n")

	err := fx.ingestor.IngestFile(ctx, path)
	if !errors.Is(err, errors.ConsistencyError) {
		t.Fatalf("expected ConsistencyError, got %v", err)
	}
}

func TestIngestMalformedDescriptor(t *testing.T) {
	ctx := context.Background()
	fx := newIngestFixture(t)

	path := fx.writeResult(t, "sub_run_7.txt", "p1\n")
	err := fx.ingestor.IngestFile(ctx, path)
	if !errors.Is(err, errors.FormatError) {
		t.Fatalf("expected FormatError, got %v", err)
	}
}
