package codeexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/fogfish/opts"
)

// Local runs code directly on the host. It is inherently unsafe: the code
// runs with the privileges of the calling process, so construction fails
// unless AllowUnsafe(true) is given.
type Local struct {
	allowUnsafe bool
	workDir     string
	timeout     time.Duration

	tempDir string
}

var (
	// AllowUnsafe acknowledges that host execution is unsafe. Required.
	AllowUnsafe = opts.ForName[Local, bool]("allowUnsafe")

	// WithWorkDir runs the code in the given directory instead of a
	// throwaway temp dir.
	WithWorkDir = opts.ForName[Local, string]("workDir")

	// WithTimeout caps how long a single execution may take.
	WithTimeout = opts.ForName[Local, time.Duration]("timeout")
)

// NewLocal builds a host executor. Without a work dir a temporary directory
// is created and removed again on Close.
func NewLocal(options ...opts.Option[Local]) (*Local, error) {
	e := &Local{timeout: time.Minute}
	if err := opts.Apply(e, options); err != nil {
		return nil, err
	}

	if !e.allowUnsafe {
		return nil, errors.New("local execution runs untrusted code on the host, opt in with AllowUnsafe(true)")
	}

	if e.workDir == "" {
		tempDir, err := os.MkdirTemp("", "codeexec-*")
		if err != nil {
			return nil, fmt.Errorf("creating work dir: %w", err)
		}
		e.tempDir = tempDir
		e.workDir = tempDir
	}

	return e, nil
}

func (e *Local) Execute(ctx context.Context, block Block) (Result, error) {
	name, args, cleanup, err := e.prepare(block)
	if err != nil {
		return Result{}, err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = e.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, runErr
	}
	return result, nil
}

// prepare writes the code to a file in the work dir and returns the command
// to run it. Go snippets without a package clause are wrapped into a main
// package first.
func (e *Local) prepare(block Block) (name string, args []string, cleanup func(), err error) {
	noop := func() {}

	switch strings.ToLower(block.Language) {
	case "python", "py", "":
		file := filepath.Join(e.workDir, "snippet.py")
		if err := os.WriteFile(file, []byte(block.Code), 0o600); err != nil {
			return "", nil, noop, err
		}
		return "python3", []string{file}, func() { os.Remove(file) }, nil

	case "go", "golang":
		code := block.Code
		if !strings.Contains(code, "package main") {
			code = fmt.Sprintf("package main\n\nfunc main() {\n%s\n}\n", code)
		}
		file := filepath.Join(e.workDir, "snippet_main.go")
		if err := os.WriteFile(file, []byte(code), 0o600); err != nil {
			return "", nil, noop, err
		}
		return "go", []string{"run", file}, func() { os.Remove(file) }, nil

	case "javascript", "js", "node":
		file := filepath.Join(e.workDir, "snippet.js")
		if err := os.WriteFile(file, []byte(block.Code), 0o600); err != nil {
			return "", nil, noop, err
		}
		return "node", []string{file}, func() { os.Remove(file) }, nil

	case "bash", "shell", "sh":
		file := filepath.Join(e.workDir, "snippet.sh")
		if err := os.WriteFile(file, []byte(block.Code), 0o600); err != nil {
			return "", nil, noop, err
		}
		return "bash", []string{file}, func() { os.Remove(file) }, nil

	default:
		return "", nil, noop, fmt.Errorf("unsupported language %q", block.Language)
	}
}

// Close removes the temp dir when the executor created one.
func (e *Local) Close() error {
	if e.tempDir != "" {
		return os.RemoveAll(e.tempDir)
	}
	return nil
}
