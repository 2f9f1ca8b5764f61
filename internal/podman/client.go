// Package podman wraps the container-runtime primitives steady needs:
// existence and running checks, image pull/digest, run, graceful stop, and
// removal.
package podman

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/steadyops/steady/internal/sysexec"
	steadyerrors "github.com/steadyops/steady/pkg/errors"
)

// Client invokes the podman CLI. All containers are user-scope (rootless).
type Client struct {
	runner sysexec.Runner
}

// New creates a podman client.
func New(runner sysexec.Runner) *Client {
	return &Client{runner: runner}
}

// Exists reports whether a container with the given name exists, running or
// not. podman signals absence with exit status 1.
func (c *Client) Exists(ctx context.Context, name string) (bool, error) {
	_, err := c.runner.Run(ctx, "podman", "container", "exists", name)
	return interpretExistenceCheck(err)
}

// Running reports whether the named container is currently running.
func (c *Client) Running(ctx context.Context, name string) (bool, error) {
	res, err := c.runner.Run(ctx, "podman", "inspect", "--format", "{{.State.Running}}", name)
	if err != nil {
		var cmdErr *steadyerrors.CommandError
		if errors.As(err, &cmdErr) && cmdErr.ExitCode > 0 {
			return false, nil
		}
		return false, err
	}
	return strings.TrimSpace(res.Stdout) == "true", nil
}

// ImageExists reports whether the image is present in local storage.
func (c *Client) ImageExists(ctx context.Context, image string) (bool, error) {
	_, err := c.runner.Run(ctx, "podman", "image", "exists", image)
	return interpretExistenceCheck(err)
}

// Pull fetches the image. This can block for a long time; the engine imposes
// no timeout of its own.
func (c *Client) Pull(ctx context.Context, image string) error {
	_, err := c.runner.Run(ctx, "podman", "pull", image)
	return err
}

// ImageDigest returns the digest of a locally stored image.
func (c *Client) ImageDigest(ctx context.Context, image string) (string, error) {
	res, err := c.runner.Run(ctx, "podman", "image", "inspect", "--format", "{{.Digest}}", image)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Run creates and starts a detached container. The declared flags string is
// split with shell semantics so quoted values survive intact.
func (c *Client) Run(ctx context.Context, name, image, flags string) error {
	args := []string{"run", "-d", "--name", name}

	if strings.TrimSpace(flags) != "" {
		extra, err := shellwords.Parse(flags)
		if err != nil {
			return fmt.Errorf("container %s: cannot parse flags %q: %w", name, flags, err)
		}
		args = append(args, extra...)
	}
	args = append(args, image)

	_, err := c.runner.Run(ctx, "podman", args...)
	return err
}

// Start starts an existing container.
func (c *Client) Start(ctx context.Context, name string) error {
	_, err := c.runner.Run(ctx, "podman", "start", name)
	return err
}

// Stop gracefully stops a container, waiting up to timeoutSeconds before
// podman escalates to SIGKILL.
func (c *Client) Stop(ctx context.Context, name string, timeoutSeconds int) error {
	_, err := c.runner.Run(ctx, "podman", "stop", "-t", strconv.Itoa(timeoutSeconds), name)
	return err
}

// Remove deletes a container. force also removes a running container.
func (c *Client) Remove(ctx context.Context, name string, force bool) error {
	args := []string{"rm"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, name)
	_, err := c.runner.Run(ctx, "podman", args...)
	return err
}

func interpretExistenceCheck(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	var cmdErr *steadyerrors.CommandError
	if errors.As(err, &cmdErr) && cmdErr.ExitCode == 1 {
		return false, nil
	}
	return false, err
}
