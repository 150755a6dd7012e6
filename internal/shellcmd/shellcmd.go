// Package shellcmd runs an external command and hands its stdout and stderr
// to caller supplied consumers. Both streams are drained concurrently so a
// chatty stderr can never stall a process whose stdout is being read, and
// Run only returns once both consumers are done.
package shellcmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sync/errgroup"
)

const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"

	streamBufferSize = 64 << 10
)

// ErrEmptyCommand is returned by Run when the argument vector is empty.
var ErrEmptyCommand = errors.New("empty command")

// Consumer reads one output stream of the process. It is called exactly
// once per stream, from its own goroutine. The reader is closed by Run after
// the consumer returns, whether or not it read to the end.
type Consumer func(ctx context.Context, r io.Reader) error

// Drain reads r to the end and discards the data. It is the default
// consumer for streams nobody is interested in.
func Drain(_ context.Context, r io.Reader) error {
	_, err := io.Copy(io.Discard, r)
	return err
}

// LaunchError means the process could not be started.
type LaunchError struct {
	Args []string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to start %q: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// DrainError means a consumer failed while reading its stream.
type DrainError struct {
	Stream string
	Err    error
}

func (e *DrainError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Stream, e.Err)
}

func (e *DrainError) Unwrap() error { return e.Err }

// Result describes how the process ended. A non-zero exit is not an error
// as far as Run is concerned.
type Result struct {
	PID      int
	ExitCode int
	Signal   string // set if the process was terminated by a signal
}

// Command is an argument vector plus the options used to run it.
type Command struct {
	Args []string
	Dir  string
	Env  []string // nil inherits the environment of the current process

	// WaitDelay bounds how long Run waits for the process to be reaped once
	// both streams are done. Zero waits forever.
	WaitDelay time.Duration

	Logger *slog.Logger
}

// New returns a Command for the given argument vector.
func New(args ...string) *Command {
	return &Command{Args: args}
}

func (c *Command) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Run starts the process and runs onStdout and onStderr concurrently, each
// on its own stream. A nil consumer is replaced by Drain. If one consumer
// fails the other keeps going; Run waits for both and returns the first
// failure as a *DrainError. If ctx is cancelled the process and its
// children are killed, both streams are closed and Run returns ctx.Err().
func (c *Command) Run(ctx context.Context, onStdout, onStderr Consumer) (Result, error) {
	if len(c.Args) == 0 {
		return Result{}, ErrEmptyCommand
	}
	if onStdout == nil {
		onStdout = Drain
	}
	if onStderr == nil {
		onStderr = Drain
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	log := c.logger().With("cmd", c.Args[0])

	cmd := exec.Command(c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.WaitDelay = c.WaitDelay

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		_ = stdoutPipe.Close()
		return Result{}, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return Result{}, &LaunchError{Args: c.Args, Err: err}
	}
	result := Result{PID: cmd.Process.Pid, ExitCode: -1}
	log.Debug("Process started", "pid", result.PID, "args", c.Args)

	// On cancellation kill the process tree and close our ends of the
	// pipes, so consumers blocked in Read return even if some descendant
	// we could not find still holds the write ends.
	terminated := make(chan struct{})
	stopWatch := context.AfterFunc(ctx, func() {
		defer close(terminated)
		log.Debug("Context cancelled, killing process", "pid", result.PID)
		killTree(cmd.Process, log)
		_ = stdoutPipe.Close()
		_ = stderrPipe.Close()
	})

	var g errgroup.Group
	g.Go(func() error {
		return consume(ctx, StreamStdout, stdoutPipe, onStdout)
	})
	g.Go(func() error {
		return consume(ctx, StreamStderr, stderrPipe, onStderr)
	})
	drainErr := g.Wait()

	fired := !stopWatch()
	if fired {
		<-terminated
	}

	// Wait must only be called after all reads from the pipes are done.
	waitErr := cmd.Wait()
	result.ExitCode, result.Signal = exitStatus(waitErr)
	log.Debug("Process exited", "pid", result.PID, "exit_code", result.ExitCode, "signal", result.Signal)

	if drainErr != nil {
		return result, drainErr
	}
	// A cancellation racing a clean exit does not turn it into a failure.
	if fired && waitErr != nil {
		return result, ctx.Err()
	}
	return result, nil
}

// consume runs one consumer and always closes its stream afterwards.
func consume(ctx context.Context, stream string, pipe io.ReadCloser, fn Consumer) error {
	defer func() { _ = pipe.Close() }()

	err := fn(ctx, bufio.NewReaderSize(pipe, streamBufferSize))
	if err == nil {
		return nil
	}
	// Once cancelled the process is killed and the pipe closed under the
	// consumer, so whatever it fails with is the cancellation surfacing.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &DrainError{Stream: stream, Err: err}
}

// exitStatus extracts the exit code and terminating signal from the error
// returned by cmd.Wait.
func exitStatus(err error) (int, string) {
	if err == nil {
		return 0, ""
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return -1, ""
	}
	signal := ""
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		signal = status.Signal().String()
	}
	return exitErr.ExitCode(), signal
}

// killTree kills the process and every descendant gopsutil can find.
// Children are collected before the parent dies, since afterwards they are
// re-parented and can no longer be found through it.
func killTree(proc *os.Process, log *slog.Logger) {
	var descendants []*process.Process
	if p, err := process.NewProcess(int32(proc.Pid)); err == nil {
		descendants = collectDescendants(p)
	}
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Debug("Failed to kill process", "pid", proc.Pid, "error", err)
	}
	for _, d := range descendants {
		_ = d.Kill()
	}
}

func collectDescendants(p *process.Process) []*process.Process {
	children, err := p.Children()
	if err != nil {
		return nil
	}
	var all []*process.Process
	for _, child := range children {
		all = append(all, child)
		all = append(all, collectDescendants(child)...)
	}
	return all
}
