// Package descriptor encodes and decodes the line-oriented text protocol
// exchanged with the external sandbox: job descriptors handed to the runner
// and result descriptors written back by it. The byte format is fixed by the
// sandbox-side scripts, so both halves parse it directly.
package descriptor

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	appErr "autojudge/pkg/errors"
)

const (
	jobFilePrefix = "sub_run_"
	jobFileSuffix = ".txt"

	jobHeaderLines = 5
)

// Job describes one grading job for the external runner.
//
// Wire layout, newline-terminated:
//
//	PROBLEM_CODE
//	SUBMISSION_ID
//	FILE_EXTENSION
//	TIME_LIMIT (whole seconds)
//	MEMORY_LIMIT (KB)
//	TESTCASE_ID per line, public before private, creation order
type Job struct {
	ProblemCode   string
	SubmissionID  int64
	FileType      string
	TimeLimitSec  int64
	MemoryLimitKB int64
	TestCaseIDs   []int64
}

// EncodeJob writes the job descriptor to w.
func EncodeJob(w io.Writer, job *Job) error {
	if job == nil {
		return appErr.New(appErr.InvalidParams).WithMessage("job is nil")
	}
	if job.ProblemCode == "" || job.SubmissionID <= 0 {
		return appErr.New(appErr.InvalidParams).WithMessage("job missing problem code or submission id")
	}
	// A blank extension would emit an empty header line, which the decoder
	// skips, shifting every field after it.
	if job.FileType == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("job missing file extension")
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\n", job.ProblemCode)
	fmt.Fprintf(bw, "%d\n", job.SubmissionID)
	fmt.Fprintf(bw, "%s\n", job.FileType)
	fmt.Fprintf(bw, "%d\n", job.TimeLimitSec)
	fmt.Fprintf(bw, "%d\n", job.MemoryLimitKB)
	for _, id := range job.TestCaseIDs {
		fmt.Fprintf(bw, "%d\n", id)
	}
	return bw.Flush()
}

// DecodeJob parses a job descriptor. It is the exact inverse of EncodeJob.
// Fewer than five header lines is a FormatError.
func DecodeJob(r io.Reader) (*Job, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}
	if len(lines) < jobHeaderLines {
		return nil, appErr.Newf(appErr.FormatError,
			"job descriptor has %d header lines, want %d", len(lines), jobHeaderLines)
	}

	job := &Job{ProblemCode: lines[0], FileType: lines[2]}
	if job.SubmissionID, err = parseIntField(lines[1], "submission id"); err != nil {
		return nil, err
	}
	if job.TimeLimitSec, err = parseIntField(lines[3], "time limit"); err != nil {
		return nil, err
	}
	if job.MemoryLimitKB, err = parseIntField(lines[4], "memory limit"); err != nil {
		return nil, err
	}
	for _, line := range lines[jobHeaderLines:] {
		id, err := parseIntField(line, "test case id")
		if err != nil {
			return nil, err
		}
		job.TestCaseIDs = append(job.TestCaseIDs, id)
	}
	return job, nil
}

// JobFileName returns the descriptor file name for a submission.
func JobFileName(submissionID int64) string {
	return jobFilePrefix + strconv.FormatInt(submissionID, 10) + jobFileSuffix
}

// SubmissionFileName returns the stored source file name for a submission,
// e.g. submission_42.py.
func SubmissionFileName(submissionID int64, fileType string) string {
	return "submission_" + strconv.FormatInt(submissionID, 10) + fileType
}

// SubmissionIDFromFileName extracts the submission id from a descriptor file
// name. The second return value is false for names outside the scheme.
func SubmissionIDFromFileName(name string) (int64, bool) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, jobFilePrefix) || !strings.HasSuffix(base, jobFileSuffix) {
		return 0, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(base, jobFilePrefix), jobFileSuffix)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// WriteJobFile encodes the job into dir atomically (temp file then rename),
// so the scheduler never observes a partially written descriptor. Returns
// the final path.
func WriteJobFile(dir string, job *Job) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", appErr.Wrapf(err, appErr.InternalError, "create monitor dir failed")
	}
	tmp, err := os.CreateTemp(dir, jobFilePrefix+"*.tmp")
	if err != nil {
		return "", appErr.Wrapf(err, appErr.InternalError, "create temp job file failed")
	}
	tmpName := tmp.Name()
	if err := EncodeJob(tmp, job); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", appErr.Wrapf(err, appErr.InternalError, "close temp job file failed")
	}
	final := filepath.Join(dir, JobFileName(job.SubmissionID))
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return "", appErr.Wrapf(err, appErr.InternalError, "publish job file failed")
	}
	return final, nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, appErr.Wrapf(err, appErr.FormatError, "read descriptor failed")
	}
	return lines, nil
}

func parseIntField(raw, field string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, appErr.Newf(appErr.FormatError, "invalid %s %q", field, raw)
	}
	return v, nil
}
