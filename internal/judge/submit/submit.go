// Package submit accepts new solutions: it records the submission and
// its pending verdict rows, stores the source file, and publishes the
// job descriptor for the grading loop.
package submit

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"time"

	"autojudge/internal/judge/descriptor"
	"autojudge/internal/judge/model"
	"autojudge/internal/judge/repository"
	"autojudge/pkg/errors"
	"autojudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// Service enqueues submissions for grading.
type Service struct {
	problems    repository.ProblemRepository
	persons     repository.PersonRepository
	submissions repository.SubmissionRepository
	testCases   repository.TestCaseRepository
	verdicts    repository.SubmissionTestCaseRepository

	// monitorDir receives job descriptors; filesDir keeps source files.
	monitorDir string
	filesDir   string

	now func() time.Time
}

// NewService creates a submit service.
func NewService(
	problems repository.ProblemRepository,
	persons repository.PersonRepository,
	submissions repository.SubmissionRepository,
	testCases repository.TestCaseRepository,
	verdicts repository.SubmissionTestCaseRepository,
	monitorDir, filesDir string,
) *Service {
	return &Service{
		problems:    problems,
		persons:     persons,
		submissions: submissions,
		testCases:   testCases,
		verdicts:    verdicts,
		monitorDir:  monitorDir,
		filesDir:    filesDir,
		now:         time.Now,
	}
}

// Enqueue records a new submission and publishes its job descriptor.
// The database rows (submission plus one pending verdict row per test
// case) are written before the descriptor becomes visible under its
// final name, so the grading loop never picks up a job whose rows are
// missing. Returns the submission id.
func (s *Service) Enqueue(ctx context.Context, problemCode, email, fileType string, source []byte) (int64, error) {
	problem, err := s.problems.GetByCode(ctx, nil, problemCode)
	if err != nil {
		if stderrors.Is(err, repository.ErrProblemNotFound) {
			return 0, errors.Newf(errors.ProblemNotFound, "problem %s not found", problemCode)
		}
		return 0, errors.Wrap(err, errors.DatabaseError)
	}
	if !problem.AcceptsFileType(fileType) {
		return 0, errors.Newf(errors.FileTypeNotAccepted,
			"problem %s does not accept %s submissions", problemCode, fileType)
	}

	if _, err := s.persons.GetOrCreate(ctx, nil, email); err != nil {
		return 0, errors.Wrap(err, errors.DatabaseError)
	}

	testCases, err := s.testCases.ListByProblem(ctx, nil, problemCode)
	if err != nil {
		return 0, errors.Wrap(err, errors.DatabaseError)
	}

	submission := &model.Submission{
		ProblemCode: problemCode,
		PersonEmail: email,
		FileType:    fileType,
		SubmittedAt: s.now(),
	}
	submissionID, err := s.submissions.Create(ctx, nil, submission)
	if err != nil {
		return 0, errors.Wrap(err, errors.SubmissionCreateFailed)
	}
	ctx = logger.WithSubmission(ctx, submissionID)

	testCaseIDs := make([]int64, 0, len(testCases))
	for _, testCase := range testCases {
		testCaseIDs = append(testCaseIDs, testCase.ID)
	}
	if err := s.verdicts.BatchCreatePending(ctx, nil, submissionID, testCaseIDs); err != nil {
		return 0, errors.Wrap(err, errors.SubmissionCreateFailed)
	}

	if err := s.storeSource(submissionID, fileType, source); err != nil {
		return 0, err
	}

	job := &descriptor.Job{
		ProblemCode:   problemCode,
		SubmissionID:  submissionID,
		FileType:      fileType,
		TimeLimitSec:  int64(problem.TimeLimit / time.Second),
		MemoryLimitKB: problem.MemoryLimitKB,
		TestCaseIDs:   testCaseIDs,
	}
	jobPath, err := descriptor.WriteJobFile(s.monitorDir, job)
	if err != nil {
		return 0, err
	}

	logger.Info(ctx, "submission enqueued",
		zap.String("problem", problemCode),
		zap.String("email", email),
		zap.Int("test_cases", len(testCaseIDs)),
		zap.String("job_file", jobPath))
	return submissionID, nil
}

func (s *Service) storeSource(submissionID int64, fileType string, source []byte) error {
	if err := os.MkdirAll(s.filesDir, 0755); err != nil {
		return errors.Wrapf(err, errors.InternalError, "create files dir failed")
	}
	path := filepath.Join(s.filesDir, descriptor.SubmissionFileName(submissionID, fileType))
	if err := os.WriteFile(path, source, 0644); err != nil {
		return errors.Wrapf(err, errors.InternalError, "store source file failed")
	}
	return nil
}
