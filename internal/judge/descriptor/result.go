package descriptor

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"autojudge/internal/judge/model"
	appErr "autojudge/pkg/errors"
)

const resultHeaderLines = 2

// Result is a parsed result descriptor.
//
// Wire layout, newline-terminated:
//
//	PROBLEM_CODE
//	SUBMISSION_ID
//	TESTCASE_ID VERDICT TIME MEMORY [MESSAGE]
//
// MESSAGE is optional and may contain spaces; it is either inline text or
// the name of a sibling message file.
type Result struct {
	ProblemCode  string
	SubmissionID int64
	Lines        []ResultLine
}

// ResultLine is one per-test-case verdict entry.
type ResultLine struct {
	TestCaseID    int64
	Verdict       model.Verdict
	TimeTaken     time.Duration
	MemoryTakenKB int64
	MessageRef    string
}

// DecodeResult parses a result descriptor from r.
func DecodeResult(r io.Reader) (*Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, appErr.Wrapf(err, appErr.FormatError, "read result descriptor failed")
	}
	if len(lines) < resultHeaderLines {
		return nil, appErr.Newf(appErr.FormatError,
			"result descriptor has %d header lines, want %d", len(lines), resultHeaderLines)
	}

	result := &Result{ProblemCode: strings.TrimSpace(lines[0])}
	submissionID, err := parseIntField(lines[1], "submission id")
	if err != nil {
		return nil, err
	}
	result.SubmissionID = submissionID

	for _, line := range lines[resultHeaderLines:] {
		entry, err := parseResultLine(line)
		if err != nil {
			return nil, err
		}
		result.Lines = append(result.Lines, entry)
	}
	return result, nil
}

// ReadResultFile parses the result descriptor at path.
func ReadResultFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.IngestFailed, "open result file failed")
	}
	defer f.Close()
	return DecodeResult(f)
}

func parseResultLine(line string) (ResultLine, error) {
	// Four fixed fields, then everything after the fourth space is the
	// message and may itself contain spaces.
	fields := strings.SplitN(line, " ", 5)
	if len(fields) < 4 {
		return ResultLine{}, appErr.Newf(appErr.FormatError, "short result line %q", line)
	}

	var entry ResultLine
	var err error
	if entry.TestCaseID, err = parseIntField(fields[0], "test case id"); err != nil {
		return ResultLine{}, err
	}

	verdict := model.Verdict(fields[1])
	if !verdict.Terminal() {
		return ResultLine{}, appErr.Newf(appErr.FormatError, "invalid verdict %q", fields[1])
	}
	entry.Verdict = verdict

	seconds, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return ResultLine{}, appErr.Newf(appErr.FormatError, "invalid time %q", fields[2])
	}
	entry.TimeTaken = time.Duration(seconds * float64(time.Second))

	if entry.MemoryTakenKB, err = parseIntField(fields[3], "memory"); err != nil {
		return ResultLine{}, err
	}

	if len(fields) == 5 {
		entry.MessageRef = fields[4]
	}
	return entry, nil
}
