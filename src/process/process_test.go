package process

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	ps "github.com/shirou/gopsutil/v3/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flaker/flaker/src/core"
)

// writeScript writes an executable shell script into a temporary directory and returns its path.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parser.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func TestRunCapturesOutput(t *testing.T) {
	script := writeScript(t, `echo "$@"; echo oops 1>&2; exit 3`)
	out, err := New("nix-instantiate").Run(context.Background(), script, "a.nix")
	require.NoError(t, err)
	assert.Equal(t, "--parse --log-format internal-json a.nix\n", string(out.Stdout))
	assert.Equal(t, "oops\n", string(out.Stderr))
	assert.False(t, out.Status.Success())
	assert.Equal(t, 3, *out.Status.ExitCode())
}

func TestParseArgsAreNotShared(t *testing.T) {
	args := parseArgs("a.nix")
	args[0] = "--eval"
	assert.Equal(t, []string{"--parse", "--log-format", "internal-json", "b.nix"}, parseArgs("b.nix"))
}

func TestRunSuccess(t *testing.T) {
	out, err := New("nix-instantiate").Run(context.Background(), writeScript(t, "true"), "a.nix")
	require.NoError(t, err)
	assert.True(t, out.Status.Success())
	assert.Equal(t, 0, *out.Status.ExitCode())
	assert.Equal(t, 0, len(out.Stdout))
}

func TestRunStdinIsEmpty(t *testing.T) {
	out, err := New("nix-instantiate").Run(context.Background(), writeScript(t, "cat"), "a.nix")
	require.NoError(t, err)
	assert.True(t, out.Status.Success())
	assert.Equal(t, "", string(out.Stdout))
}

func TestRunKilledBySignal(t *testing.T) {
	out, err := New("nix-instantiate").Run(context.Background(), writeScript(t, "kill -9 $$"), "a.nix")
	require.NoError(t, err)
	assert.False(t, out.Status.Success())
	assert.Nil(t, out.Status.ExitCode())
	assert.Equal(t, syscall.SIGKILL, out.Status.Signal)
}

func TestRunSpawnFailure(t *testing.T) {
	_, err := New("nix-instantiate").Run(context.Background(), "/definitely/not/a/parser", "a.nix")
	assert.ErrorIs(t, err, core.ErrSpawnFailed)
}

func TestRunInvalidStderr(t *testing.T) {
	_, err := New("nix-instantiate").Run(context.Background(), writeScript(t, `printf '\377\376' 1>&2`), "a.nix")
	assert.ErrorIs(t, err, core.ErrEncoding)
}

func TestRunInvalidStdoutIsAccepted(t *testing.T) {
	out, err := New("nix-instantiate").Run(context.Background(), writeScript(t, `printf '\377\376'`), "a.nix")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xfe}, out.Stdout)
}

func TestExecCommandSetsArgv0(t *testing.T) {
	cmd := New("nix-instantiate").ExecCommand("/usr/bin/nix", "--parse")
	assert.Equal(t, "/usr/bin/nix", cmd.Path)
	assert.Equal(t, []string{"nix-instantiate", "--parse"}, cmd.Args)
	assert.True(t, cmd.SysProcAttr.Setpgid)
}

func TestCancellationKillsParser(t *testing.T) {
	pidfile := filepath.Join(t.TempDir(), "pid")
	script := writeScript(t, "echo $$ > "+pidfile+"\nexec sleep 30")
	e := New("nix-instantiate")
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for {
			if contents, err := os.ReadFile(pidfile); err == nil && len(contents) > 0 {
				cancel()
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()
	start := time.Now()
	_, err := e.Run(ctx, script, "a.nix")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, 0, e.numProcesses())

	contents, err := os.ReadFile(pidfile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	require.NoError(t, err)
	exists, err := ps.PidExists(int32(pid))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCancellationKillsGrandchildren(t *testing.T) {
	pidfile := filepath.Join(t.TempDir(), "pid")
	script := writeScript(t, "sleep 30 &\necho $! > "+pidfile+"\nwait")
	e := New("nix-instantiate")
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for {
			if contents, err := os.ReadFile(pidfile); err == nil && len(contents) > 0 {
				cancel()
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()
	_, err := e.Run(ctx, script, "a.nix")
	assert.ErrorIs(t, err, context.Canceled)

	contents, err := os.ReadFile(pidfile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		exists, err := ps.PidExists(int32(pid))
		return err == nil && !exists
	}, 5*time.Second, 20*time.Millisecond)
}

func TestKillSubprocesses(t *testing.T) {
	e := New("sleep")
	cmd := e.ExecCommand("sleep", "infinity")
	c, err := e.start(cmd)
	require.NoError(t, err)
	assert.Equal(t, 1, e.numProcesses())
	e.killAll()
	<-c.done
	assert.Error(t, c.err)
	assert.Equal(t, 0, e.numProcesses())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "exit code 1", Status{Code: 1}.String())
	assert.Equal(t, "killed by killed", Status{Code: -1, Signal: syscall.SIGKILL}.String())
}

func TestOutputEqual(t *testing.T) {
	a := &Output{Status: Status{Code: 1}, Stdout: []byte("x"), Stderr: []byte("y")}
	b := &Output{Status: Status{Code: 1}, Stdout: []byte("x"), Stderr: []byte("y")}
	assert.True(t, a.Equal(b))
	b.Stderr = []byte("z")
	assert.False(t, a.Equal(b))
}
