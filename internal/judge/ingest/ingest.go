// Package ingest consumes result descriptors written by the sandbox and
// records the per-test verdicts they carry.
package ingest

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"autojudge/internal/judge/descriptor"
	"autojudge/internal/judge/model"
	"autojudge/internal/judge/repository"
	"autojudge/pkg/errors"
	"autojudge/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	// maxMessageLen bounds the stored per-test message; the sandbox can
	// emit arbitrarily large compiler output.
	maxMessageLen    = 1000
	truncationMarker = "\nMessage Truncated"
)

// Ingestor parses result files and transitions pending verdict rows.
type Ingestor struct {
	submissions repository.SubmissionRepository
	testCases   repository.TestCaseRepository
	verdicts    repository.SubmissionTestCaseRepository
}

// NewIngestor creates a result ingestor.
func NewIngestor(
	submissions repository.SubmissionRepository,
	testCases repository.TestCaseRepository,
	verdicts repository.SubmissionTestCaseRepository,
) *Ingestor {
	return &Ingestor{
		submissions: submissions,
		testCases:   testCases,
		verdicts:    verdicts,
	}
}

// IngestFile reads the result descriptor at path, records every verdict
// it names, and deletes the file plus any referenced message files.
// Ingestion is not idempotent: once the file is gone the verdicts are
// the only record.
//
// Every line must match a pending row created at enqueue time; a line
// referencing an unknown pair means the enqueue and result protocols
// diverged, which is fatal for the job.
func (i *Ingestor) IngestFile(ctx context.Context, path string) error {
	ctx = logger.WithJobFile(ctx, path)

	result, err := descriptor.ReadResultFile(path)
	if err != nil {
		return err
	}
	ctx = logger.WithSubmission(ctx, result.SubmissionID)

	submission, err := i.submissions.GetByID(ctx, nil, result.SubmissionID)
	if err != nil {
		if stderrors.Is(err, repository.ErrSubmissionNotFound) {
			return errors.Newf(errors.ConsistencyError,
				"result names unknown submission %d", result.SubmissionID)
		}
		return errors.Wrap(err, errors.DatabaseError)
	}
	if submission.ProblemCode != result.ProblemCode {
		return errors.Newf(errors.ConsistencyError,
			"result says problem %s but submission %d belongs to %s",
			result.ProblemCode, submission.ID, submission.ProblemCode)
	}

	dir := filepath.Dir(path)
	var messageFiles []string

	for _, line := range result.Lines {
		testCase, err := i.testCases.GetByID(ctx, nil, line.TestCaseID)
		if err != nil {
			if stderrors.Is(err, repository.ErrTestCaseNotFound) {
				return errors.Newf(errors.ConsistencyError,
					"result names unknown test case %d", line.TestCaseID)
			}
			return errors.Wrap(err, errors.DatabaseError)
		}

		message := ""
		if line.MessageRef != "" {
			// Resolve the ref even for private test cases so a referenced
			// message file is still consumed; only the text is discarded.
			text, err := i.resolveMessage(ctx, dir, line.MessageRef, &messageFiles)
			if err != nil {
				return err
			}
			if testCase.Public {
				message = text
			}
		}

		row := &model.SubmissionTestCase{
			SubmissionID:  result.SubmissionID,
			TestCaseID:    line.TestCaseID,
			Verdict:       line.Verdict,
			TimeTaken:     line.TimeTaken,
			MemoryTakenKB: line.MemoryTakenKB,
			Message:       truncateMessage(message),
		}
		if err := i.verdicts.RecordVerdict(ctx, nil, row); err != nil {
			if stderrors.Is(err, repository.ErrSubmissionTestCaseNotFound) {
				return errors.Newf(errors.ConsistencyError,
					"no pending row for submission %d test case %d",
					result.SubmissionID, line.TestCaseID)
			}
			if stderrors.Is(err, repository.ErrVerdictAlreadyRecorded) {
				return errors.Newf(errors.ConsistencyError,
					"verdict for submission %d test case %d was already recorded",
					result.SubmissionID, line.TestCaseID)
			}
			return errors.Wrap(err, errors.DatabaseError)
		}
	}

	for _, messageFile := range messageFiles {
		if err := os.Remove(messageFile); err != nil && !os.IsNotExist(err) {
			logger.Warn(ctx, "cannot remove message file",
				zap.String("path", messageFile), zap.Error(err))
		}
	}
	if err := os.Remove(path); err != nil {
		return errors.Wrapf(err, errors.IngestFailed, "remove result file failed")
	}

	logger.Info(ctx, "result ingested",
		zap.Int("verdicts", len(result.Lines)),
		zap.String("problem", result.ProblemCode))
	return nil
}

// resolveMessage returns the message text for a verdict line. A ref that
// names a readable sibling file yields that file's contents and marks it
// for deletion; anything else is treated as inline text.
func (i *Ingestor) resolveMessage(ctx context.Context, dir, ref string, messageFiles *[]string) (string, error) {
	if strings.ContainsAny(ref, " \t") {
		return ref, nil
	}
	candidate := filepath.Join(dir, filepath.Base(ref))
	data, err := os.ReadFile(candidate)
	if err != nil {
		if os.IsNotExist(err) {
			return ref, nil
		}
		return "", errors.Wrapf(err, errors.IngestFailed, "read message file %s failed", candidate)
	}
	*messageFiles = append(*messageFiles, candidate)
	return string(data), nil
}

func truncateMessage(message string) string {
	if len(message) < maxMessageLen {
		return message
	}
	return message[:maxMessageLen] + truncationMarker
}
