package score

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"autojudge/pkg/errors"
	"autojudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// Linter rates the static quality of a submitted source file on a
// 0 to 10 scale.
type Linter interface {
	// Supported reports whether the file type can be analyzed.
	Supported(fileType string) bool
	// Score runs the checker and maps its findings to a score.
	Score(ctx context.Context, sourcePath, fileType string) (float64, error)
}

// DefaultLinterCommands maps accepted file types to checker commands.
// The checker is expected to print one finding per output line.
var DefaultLinterCommands = map[string][]string{
	".py":  {"flake8", "--exit-zero"},
	".c":   {"cppcheck", "--quiet", "--template={file}:{line}:{message}"},
	".cpp": {"cppcheck", "--quiet", "--template={file}:{line}:{message}"},
}

// CommandLinter runs an external checker per file type and converts the
// finding density into a score: 10 * (1 - penalty * findings/lines),
// floored at zero.
type CommandLinter struct {
	commands map[string][]string
	penalty  float64
}

// NewCommandLinter creates a linter with the given per-type commands.
// A nil map uses DefaultLinterCommands. densityPenalty scales how fast
// the score decays with findings per source line.
func NewCommandLinter(commands map[string][]string, densityPenalty float64) *CommandLinter {
	if commands == nil {
		commands = DefaultLinterCommands
	}
	if densityPenalty <= 0 {
		densityPenalty = 5
	}
	return &CommandLinter{commands: commands, penalty: densityPenalty}
}

// Supported reports whether a checker command is configured for the type.
func (l *CommandLinter) Supported(fileType string) bool {
	_, ok := l.commands[fileType]
	return ok
}

// Score runs the configured checker over sourcePath.
func (l *CommandLinter) Score(ctx context.Context, sourcePath, fileType string) (float64, error) {
	command, ok := l.commands[fileType]
	if !ok {
		return 0, errors.Newf(errors.LinterUnavailable, "no checker configured for %s", fileType)
	}

	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return 0, errors.Wrapf(err, errors.LinterUnavailable, "cannot read %s", sourcePath)
	}
	lineCount := bytes.Count(source, []byte("\n"))
	if lineCount == 0 {
		lineCount = 1
	}

	args := append(append([]string(nil), command[1:]...), sourcePath)
	cmd := exec.CommandContext(ctx, command[0], args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		// Checkers exit nonzero when they find issues; only a failure to
		// start the process makes analysis unavailable.
		if _, ok := err.(*exec.ExitError); !ok {
			return 0, errors.Wrapf(err, errors.LinterUnavailable, "checker %s failed to run", command[0])
		}
	}

	findings := 0
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.TrimSpace(line) != "" {
			findings++
		}
	}

	value := densityScore(findings, lineCount, l.penalty)
	logger.Debug(ctx, "linter finished",
		zap.String("source", sourcePath),
		zap.Int("findings", findings),
		zap.Int("lines", lineCount),
		zap.Float64("score", value))
	return value, nil
}

// densityScore maps findings per source line onto a 0 to 10 scale,
// decreasing with density and floored at zero.
func densityScore(findings, lines int, penalty float64) float64 {
	density := float64(findings) / float64(lines)
	value := 10 * (1 - penalty*density)
	if value < 0 {
		return 0
	}
	return value
}
