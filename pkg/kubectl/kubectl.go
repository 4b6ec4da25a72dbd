// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package kubectl

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes the cluster CLI with a structured argument list and
// returns its standard output. Arguments are never passed through a shell.
type Runner interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

// ExecRunner runs kubectl found on PATH, or an explicit binary path.
type ExecRunner struct {
	// Path overrides PATH lookup of the kubectl binary when set.
	Path string
}

// NewRunner creates a runner that resolves kubectl from PATH on each call.
func NewRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run invokes kubectl with the given arguments and returns its stdout.
// On non-zero exit the error includes the full argument list and whatever
// the command wrote to stderr.
func (r *ExecRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	path := r.Path
	if path == "" {
		var err error
		path, err = exec.LookPath("kubectl")
		if err != nil {
			return nil, fmt.Errorf("kubectl not found in PATH: %w", err)
		}
	}

	out, err := exec.CommandContext(ctx, path, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("kubectl %s: %w: %s",
				strings.Join(args, " "), err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("kubectl %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}
