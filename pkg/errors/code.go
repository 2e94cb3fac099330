package errors

// ErrorCode represents a unique error identifier.
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Descriptor protocol errors
// 12000-12999: Contest & Problem errors
// 13000-13999: Submission & Grading errors
// 14000-14999: Permission & Membership errors
// 15000-15999: Leaderboard errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	Success ErrorCode = 10000

	InternalError      ErrorCode = 10001
	InvalidParams      ErrorCode = 10002
	NotFound           ErrorCode = 10003
	ServiceUnavailable ErrorCode = 10004

	DatabaseError       ErrorCode = 10100
	RecordNotFound      ErrorCode = 10101
	RecordAlreadyExists ErrorCode = 10102
	TransactionFailed   ErrorCode = 10103

	ValidationFailed ErrorCode = 10300

	// ========== Descriptor Protocol Errors (11000-11999) ==========

	FormatError      ErrorCode = 11000
	ConsistencyError ErrorCode = 11001

	// ========== Contest & Problem Errors (12000-12999) ==========

	ContestNotFound     ErrorCode = 12000
	ContestWindowError  ErrorCode = 12001
	ContestCreateFailed ErrorCode = 12002

	ProblemNotFound     ErrorCode = 12100
	ProblemCodeTaken    ErrorCode = 12101
	ProblemCreateFailed ErrorCode = 12102

	TestCaseNotFound ErrorCode = 12200

	// ========== Submission & Grading Errors (13000-13999) ==========

	SubmissionNotFound     ErrorCode = 13000
	SubmissionCreateFailed ErrorCode = 13001
	FileTypeNotAccepted    ErrorCode = 13002

	SandboxInvocationFailed ErrorCode = 13100
	IngestFailed            ErrorCode = 13101
	ScoreUpdateFailed       ErrorCode = 13102
	LinterUnavailable       ErrorCode = 13103

	// ========== Permission & Membership Errors (14000-14999) ==========

	PermissionDenied  ErrorCode = 14000
	PersonNotFound    ErrorCode = 14001
	AlreadyRegistered ErrorCode = 14002
	OrphanViolation   ErrorCode = 14003

	// ========== Leaderboard Errors (15000-15999) ==========

	LeaderboardNotInitialized ErrorCode = 15000
	LeaderboardCorrupt        ErrorCode = 15001
)

// errorMessages maps error codes to their default English messages.
var errorMessages = map[ErrorCode]string{
	Success: "Success",

	InternalError:      "Internal error",
	InvalidParams:      "Invalid parameters",
	NotFound:           "Resource not found",
	ServiceUnavailable: "Service temporarily unavailable",

	DatabaseError:       "Database operation failed",
	RecordNotFound:      "Record not found in database",
	RecordAlreadyExists: "Record already exists",
	TransactionFailed:   "Database transaction failed",

	ValidationFailed: "Validation failed",

	FormatError:      "Malformed descriptor",
	ConsistencyError: "Descriptor references unknown rows",

	ContestNotFound:     "Contest not found",
	ContestWindowError:  "Contest deadlines are out of order",
	ContestCreateFailed: "Failed to create contest",

	ProblemNotFound:     "Problem not found",
	ProblemCodeTaken:    "Problem code is already in use",
	ProblemCreateFailed: "Failed to create problem",

	TestCaseNotFound: "Test case not found",

	SubmissionNotFound:     "Submission not found",
	SubmissionCreateFailed: "Failed to create submission",
	FileTypeNotAccepted:    "Submission file type not accepted for this problem",

	SandboxInvocationFailed: "Sandbox invocation failed",
	IngestFailed:            "Result ingestion failed",
	ScoreUpdateFailed:       "Score update failed",
	LinterUnavailable:       "Static analysis unavailable for this language",

	PermissionDenied:  "Permission denied",
	PersonNotFound:    "Person not found",
	AlreadyRegistered: "Already registered with the other role",
	OrphanViolation:   "Cannot remove the only poster of a contest",

	LeaderboardNotInitialized: "Leaderboard not yet initialized for this contest",
	LeaderboardCorrupt:        "Leaderboard snapshot is corrupt",
}

// Message returns the default message for the error code.
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code.
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == PermissionDenied, c == OrphanViolation:
		return 403
	case c == NotFound, c == ContestNotFound, c == ProblemNotFound,
		c == SubmissionNotFound, c == PersonNotFound, c == TestCaseNotFound,
		c == LeaderboardNotInitialized:
		return 404
	case c == RecordAlreadyExists, c == AlreadyRegistered, c == ProblemCodeTaken:
		return 409
	case c == InvalidParams, c == ValidationFailed, c == FormatError,
		c == FileTypeNotAccepted, c == ContestWindowError:
		return 400
	case c == ServiceUnavailable:
		return 503
	default:
		return 500
	}
}
