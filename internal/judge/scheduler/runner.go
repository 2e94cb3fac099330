package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"autojudge/pkg/errors"
	"autojudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// Runner executes the external sandbox for one submission. The sandbox
// reads the job descriptor, grades the submission, and overwrites the
// descriptor with the result file; its exit code is not part of the
// contract beyond signalling that the invocation itself worked.
type Runner interface {
	Run(ctx context.Context, submissionID int64) error
}

// DockerRunner invokes the sandbox container with the content directory
// bind-mounted and the submission id passed through the environment.
type DockerRunner struct {
	image      string
	contentDir string
}

// NewDockerRunner creates a runner for the given image and content dir.
func NewDockerRunner(image, contentDir string) *DockerRunner {
	return &DockerRunner{image: image, contentDir: contentDir}
}

// BuildImage builds the sandbox image from the content directory. Run
// once at startup; grading cannot proceed without the image.
func (r *DockerRunner) BuildImage(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "docker", "build", "-q", "-t", r.image, ".")
	cmd.Dir = r.contentDir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, errors.SandboxInvocationFailed,
			"docker build failed: %s", out.String())
	}
	logger.Info(ctx, "sandbox image built", zap.String("image", r.image))
	return nil
}

// Run grades one submission synchronously.
func (r *DockerRunner) Run(ctx context.Context, submissionID int64) error {
	cmd := exec.CommandContext(ctx, "docker", "run", "--rm",
		"-v", fmt.Sprintf("%s:/app", r.contentDir),
		"-e", fmt.Sprintf("SUB_ID=%d", submissionID),
		r.image)
	cmd.Dir = r.contentDir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, errors.SandboxInvocationFailed,
			"docker run failed for submission %d: %s", submissionID, out.String())
	}
	return nil
}
