// Package process implements running parsers as subprocesses.
package process

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sys/unix"

	"github.com/flaker/flaker/src/cli"
	"github.com/flaker/flaker/src/cli/logging"
	"github.com/flaker/flaker/src/core"
)

var log = logging.Log

var tracer = otel.Tracer("github.com/flaker/flaker/src/process")

// parseArgs returns the arguments a parser is invoked with to parse the given file.
func parseArgs(file string) []string {
	return []string{"--parse", "--log-format", "internal-json", file}
}

// An Executor handles starting, running and monitoring a set of parser subprocesses.
// It registers as a signal handler to attempt to terminate them all at process exit.
type Executor struct {
	argv0     string
	processes map[*child]struct{}
	mutex     sync.Mutex
}

// A child is a started subprocess, and the result of waiting for it once it's done.
type child struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// New returns a new Executor. Every process it runs sees the given argv[0].
func New(argv0 string) *Executor {
	e := &Executor{
		argv0:     argv0,
		processes: map[*child]struct{}{},
	}
	cli.AtExit(e.killAll) // Kill any subprocess if we are ourselves killed
	return e
}

// An Output is everything observable about a finished parser process.
type Output struct {
	Status Status
	Stdout []byte
	Stderr []byte
}

// Equal returns true if both outputs are bytewise identical.
func (o *Output) Equal(other *Output) bool {
	return o.Status == other.Status && bytes.Equal(o.Stdout, other.Stdout) && bytes.Equal(o.Stderr, other.Stderr)
}

// A Status describes how a process exited.
type Status struct {
	// Code is the exit code, or -1 if the process was killed by a signal.
	Code int
	// Signal is the signal that killed the process, or zero if it exited normally.
	Signal syscall.Signal
}

// Success returns true if the process exited normally with a zero exit code.
func (s Status) Success() bool {
	return s.Signal == 0 && s.Code == 0
}

// ExitCode returns the process' exit code, or nil if it was killed by a signal.
func (s Status) ExitCode() *int {
	if s.Signal != 0 {
		return nil
	}
	code := s.Code
	return &code
}

// String implements the fmt.Stringer interface.
func (s Status) String() string {
	if s.Signal != 0 {
		return "killed by " + s.Signal.String()
	}
	return fmt.Sprintf("exit code %d", s.Code)
}

// Run runs the given parser binary on a single file and captures its output.
// Standard input is attached to the null device.
// If the context is cancelled before the parser finishes, its process group is killed and the
// context's error returned; no parser outlives a call to Run.
func (e *Executor) Run(ctx context.Context, binary, file string) (*Output, error) {
	ctx, span := tracer.Start(ctx, "parse", trace.WithAttributes(
		attribute.String("binary", binary),
		attribute.String("file", file),
	))
	defer span.End()

	cmd := e.ExecCommand(binary, parseArgs(file)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	c, err := e.start(cmd)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %s", core.ErrSpawnFailed, binary, err)
	}
	log.Debug("Started %s on %s as pid %d", binary, file, cmd.Process.Pid)
	select {
	case <-c.done:
		e.removeProcess(c)
	case <-ctx.Done():
		log.Debug("Cancelled, killing %s on %s", binary, file)
		e.killProcess(c)
		return nil, ctx.Err()
	}
	status, err := exitStatus(cmd, c.err)
	if err != nil {
		return nil, fmt.Errorf("running %s on %s: %w", binary, file, err)
	}
	if !utf8.Valid(stderr.Bytes()) {
		return nil, fmt.Errorf("%w: stderr of %s on %s", core.ErrEncoding, binary, file)
	}
	span.SetAttributes(attribute.Int("exit_code", status.Code))
	return &Output{
		Status: status,
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}, nil
}

// start starts the command and registers it so it can be killed later.
func (e *Executor) start(cmd *exec.Cmd) (*child, error) {
	c := &child{cmd: cmd, done: make(chan struct{})}
	// Hold the lock across Start so killAll can't miss a process that's just starting.
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	e.processes[c] = struct{}{}
	go func() {
		c.err = cmd.Wait()
		close(c.done)
	}()
	return c, nil
}

// exitStatus interprets the result of waiting for a command.
// A non-zero exit isn't an error here; anything else that went wrong is.
func exitStatus(cmd *exec.Cmd, err error) (Status, error) {
	if err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return Status{}, err
		}
	}
	if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return Status{Code: -1, Signal: ws.Signal()}, nil
	}
	return Status{Code: cmd.ProcessState.ExitCode()}, nil
}

// killProcess kills a process group, attempting to send it a SIGTERM first followed by a SIGKILL
// shortly after if it hasn't exited.
func (e *Executor) killProcess(c *child) {
	success := signalProcess(c, unix.SIGTERM, 30*time.Millisecond)
	if !success && !signalProcess(c, unix.SIGKILL, 5*time.Second) {
		log.Error("Failed to kill parser process %d", c.cmd.Process.Pid)
	}
	e.removeProcess(c)
}

// signalProcess sends a signal to the process group of a child and waits for it to exit.
// It returns true if the process exited within the timeout.
func signalProcess(c *child, sig syscall.Signal, timeout time.Duration) bool {
	select {
	case <-c.done:
		return true // Already gone; its pid may have been reused.
	default:
	}
	log.Debug("Sending signal %s to -%d", sig, c.cmd.Process.Pid)
	unix.Kill(-c.cmd.Process.Pid, sig) // Kill the group - we always set one in ExecCommand.
	select {
	case <-c.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (e *Executor) removeProcess(c *child) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	delete(e.processes, c)
}

// killAll kills all subprocesses of this executor.
func (e *Executor) killAll() {
	e.mutex.Lock()
	processes := make([]*child, 0, len(e.processes))
	for proc := range e.processes {
		processes = append(processes, proc)
	}
	e.mutex.Unlock()

	var wg sync.WaitGroup
	wg.Add(len(processes))
	for _, proc := range processes {
		go func(proc *child) {
			e.killProcess(proc)
			wg.Done()
		}(proc)
	}
	wg.Wait()
}

// numProcesses returns the number of processes currently running.
func (e *Executor) numProcesses() int {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return len(e.processes)
}
