package codeexec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/fogfish/opts"
)

const defaultImage = "python:3.12-slim"

// Container runs every code block in a fresh docker container. The image is
// pulled on first use; containers get memory and CPU limits and are removed
// after the run.
type Container struct {
	image       string
	memoryLimit int64
	nanoCPUs    int64
	timeout     time.Duration

	client *client.Client
}

var (
	// WithImage selects the container image. Defaults to a slim Python
	// image.
	WithImage = opts.ForName[Container, string]("image")

	// WithDockerClient injects a preconfigured docker client.
	WithDockerClient = opts.ForName[Container, *client.Client]("client")

	// WithMemoryLimit caps container memory in bytes.
	WithMemoryLimit = opts.ForName[Container, int64]("memoryLimit")

	// WithNanoCPUs caps container CPU in billionths of a CPU.
	WithNanoCPUs = opts.ForName[Container, int64]("nanoCPUs")

	// WithRunTimeout caps how long a single run may take.
	WithRunTimeout = opts.ForName[Container, time.Duration]("timeout")
)

// NewContainer builds a container executor. Without an injected client the
// docker connection comes from the environment (DOCKER_HOST and friends).
// Defaults: 512MB memory, one CPU, one minute per run.
func NewContainer(options ...opts.Option[Container]) (*Container, error) {
	e := &Container{
		image:       defaultImage,
		memoryLimit: 512 * 1024 * 1024,
		nanoCPUs:    1_000_000_000,
		timeout:     time.Minute,
	}
	if err := opts.Apply(e, options); err != nil {
		return nil, err
	}

	if e.client == nil {
		c, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return nil, fmt.Errorf("creating docker client: %w", err)
		}
		e.client = c
	}

	return e, nil
}

func (e *Container) Execute(ctx context.Context, block Block) (Result, error) {
	cmd, err := containerCommand(block)
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.ensureImage(ctx); err != nil {
		return Result{}, fmt.Errorf("ensuring image %s: %w", e.image, err)
	}

	created, err := e.client.ContainerCreate(ctx,
		&container.Config{
			Image:      e.image,
			Cmd:        cmd,
			WorkingDir: "/workspace",
			Tty:        false,
		},
		&container.HostConfig{
			Resources: container.Resources{
				Memory:   e.memoryLimit,
				NanoCPUs: e.nanoCPUs,
			},
			NetworkMode: "none",
		},
		nil, nil, "")
	if err != nil {
		return Result{}, fmt.Errorf("creating container: %w", err)
	}
	defer func() {
		_ = e.client.ContainerRemove(context.WithoutCancel(ctx), created.ID, container.RemoveOptions{Force: true})
	}()

	start := time.Now()
	if err := e.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return Result{}, fmt.Errorf("starting container: %w", err)
	}

	exitCode, err := e.waitForExit(ctx, created.ID)
	if err != nil {
		return Result{}, err
	}

	stdout, stderr, err := e.collectLogs(ctx, created.ID)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: exitCode,
		Duration: time.Since(start),
	}, nil
}

func containerCommand(block Block) ([]string, error) {
	switch strings.ToLower(block.Language) {
	case "python", "py", "":
		return []string{"python3", "-c", block.Code}, nil
	case "javascript", "js", "node":
		return []string{"node", "-e", block.Code}, nil
	case "bash", "shell", "sh":
		return []string{"sh", "-c", block.Code}, nil
	default:
		return nil, fmt.Errorf("unsupported language %q", block.Language)
	}
}

func (e *Container) ensureImage(ctx context.Context) error {
	images, err := e.client.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return err
	}
	for _, img := range images {
		if slices.Contains(img.RepoTags, e.image) {
			return nil
		}
	}

	reader, err := e.client.ImagePull(ctx, e.image, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()

	// the pull completes when the progress stream drains
	_, err = io.Copy(io.Discard, reader)
	return err
}

func (e *Container) waitForExit(ctx context.Context, containerID string) (int, error) {
	statusCh, errCh := e.client.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return 0, fmt.Errorf("waiting for container: %w", err)
	case status := <-statusCh:
		return int(status.StatusCode), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (e *Container) collectLogs(ctx context.Context, containerID string) (string, string, error) {
	logs, err := e.client.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", "", fmt.Errorf("reading container logs: %w", err)
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return "", "", err
	}
	return stdout.String(), stderr.String(), nil
}

// Close releases the docker client.
func (e *Container) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
