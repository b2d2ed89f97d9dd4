// Package command runs external tools such as oc and the container engine.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Runner executes external commands.
type Runner interface {
	// Run executes name with args, streaming its output to the
	// runner's configured writers.
	Run(ctx context.Context, name string, args ...string) error
	// Output executes name with args and returns its standard output.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ToolError is returned when an external tool exits unsuccessfully.
type ToolError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("command %q failed with exit code %d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// NotFoundError is returned when the executable cannot be located.
type NotFoundError struct {
	Name string
	err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("executable %q not found: %v", e.Name, e.err)
}

func (e *NotFoundError) Unwrap() error {
	return e.err
}

var _ Runner = &Exec{}

// Exec is a Runner backed by os/exec. Standard streams default to the
// process streams.
type Exec struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Env, when set, replaces the environment of the child process.
	Env []string
}

// NewExec returns an Exec that inherits the parent process streams.
func NewExec() *Exec {
	return &Exec{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

func (e *Exec) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = e.Stdin
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr
	cmd.Env = e.Env
	return wrap(runDebug(cmd), cmd, "")
}

func (e *Exec) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = e.Env
	err := runDebug(cmd)
	return stdout.Bytes(), wrap(err, cmd, strings.TrimSpace(stderr.String()))
}

func runDebug(cmd *exec.Cmd) error {
	logrus.Debugf("command: %s", strings.Join(cmd.Args, " "))
	return cmd.Run()
}

func wrap(err error, cmd *exec.Cmd, stderr string) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ToolError{
			Command:  strings.Join(cmd.Args, " "),
			ExitCode: exitErr.ExitCode(),
			Stderr:   stderr,
		}
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return &NotFoundError{Name: cmd.Path, err: err}
	}
	return fmt.Errorf("run %q: %w", strings.Join(cmd.Args, " "), err)
}
