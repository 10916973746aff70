package gate

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// ContainerRuntime runs a gate's command inside a disposable Docker
// container, for gates that need an isolated/reproducible toolchain
// rather than the host environment LocalRuntime uses.
type ContainerRuntime struct {
	cli   *client.Client
	Image string
}

// NewContainerRuntime builds a ContainerRuntime against the local Docker
// daemon (negotiated via the standard DOCKER_HOST/env conventions). image
// is the image every gate command runs inside.
func NewContainerRuntime(image string) (*ContainerRuntime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("container runtime: failed to initialize docker client: %w", err)
	}
	return &ContainerRuntime{cli: cli, Image: image}, nil
}

func (r *ContainerRuntime) Run(ctx context.Context, spec CommandSpec) (*RunResult, error) {
	if strings.TrimSpace(spec.Command) == "" {
		return nil, fmt.Errorf("gate %s/%s: empty command", spec.Item, spec.Gate)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		if isValidEnvVarName(k) {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	name := fmt.Sprintf("lex-pr-gate-%s-%s-%d", spec.Item, spec.Gate, time.Now().UnixNano())
	cfg := &container.Config{
		Image:      r.Image,
		Cmd:        []string{"sh", "-c", spec.Command},
		WorkingDir: "/workspace",
		Env:        env,
		Tty:        false,
	}

	resp, err := r.cli.ContainerCreate(runCtx, cfg, nil, nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("gate %s/%s: failed to create container: %w", spec.Item, spec.Gate, err)
	}
	defer r.cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})

	start := time.Now()
	if err := r.cli.ContainerStart(runCtx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("gate %s/%s: failed to start container: %w", spec.Item, spec.Gate, err)
	}

	statusCh, errCh := r.cli.ContainerWait(runCtx, resp.ID, container.WaitConditionNotRunning)
	var exitCode int
	timedOut := false
	select {
	case err := <-errCh:
		if runCtx.Err() == context.DeadlineExceeded {
			timedOut = true
			exitCode = -1
		} else if err != nil {
			return nil, fmt.Errorf("gate %s/%s: error waiting for container: %w", spec.Item, spec.Gate, err)
		}
	case status := <-statusCh:
		exitCode = int(status.StatusCode)
	}
	duration := time.Since(start)

	stdoutPath, stderrPath, err := outputPaths(spec)
	if err != nil {
		return nil, err
	}
	if err := r.writeLogs(resp.ID, stdoutPath, stderrPath); err != nil {
		return nil, fmt.Errorf("gate %s/%s: failed to capture container logs: %w", spec.Item, spec.Gate, err)
	}

	return &RunResult{
		ExitCode:   exitCode,
		TimedOut:   timedOut,
		StdoutPath: stdoutPath,
		StderrPath: stderrPath,
		Duration:   duration,
	}, nil
}

func (r *ContainerRuntime) writeLogs(containerID, stdoutPath, stderrPath string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logs, err := r.cli.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return err
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return err
	}
	if err := os.WriteFile(stdoutPath, stdout.Bytes(), 0o644); err != nil {
		return err
	}
	return os.WriteFile(stderrPath, stderr.Bytes(), 0o644)
}
