//go:build unix

package process

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"travelmcp/internal/domain"
)

const helperEnv = "TRAVELMCP_PROCESS_HELPER"

func TestMain(m *testing.M) {
	switch os.Getenv(helperEnv) {
	case "sleep":
		os.Stdout.WriteString("helper ready " + os.Getenv("HELPER_GREETING") + "\n")
		time.Sleep(time.Minute)
		os.Exit(0)
	case "exit":
		os.Exit(3)
	case "stubborn":
		signal.Ignore(syscall.SIGTERM)
		time.Sleep(time.Minute)
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func helperSpec(t *testing.T, mode string) Spec {
	t.Helper()
	exe, err := os.Executable()
	require.NoError(t, err)
	return Spec{
		Name:    "helper_server",
		Command: []string{exe, "-test.run=^$"},
		Dir:     t.TempDir(),
		Env:     map[string]string{helperEnv: mode, "HELPER_GREETING": "hello"},
		LogPath: filepath.Join(t.TempDir(), "logs", "helper_server.log"),
	}
}

func TestLaunchAndTerminate(t *testing.T) {
	spec := helperSpec(t, "sleep")
	handle, err := Launch(spec, zap.NewNop())
	require.NoError(t, err)
	require.Positive(t, handle.PID)
	require.True(t, Alive(handle.PID))

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(spec.LogPath)
		return err == nil && string(data) == "helper ready hello\n"
	}, 5*time.Second, 20*time.Millisecond)

	pgid, err := syscall.Getpgid(handle.PID)
	require.NoError(t, err)
	require.Equal(t, handle.PID, pgid)

	result, err := Terminate(context.Background(), handle.PID, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, result.Exited)
	require.False(t, result.Killed)
	<-handle.Exited
	require.False(t, Alive(handle.PID))
}

func TestLaunchReapsExitedChild(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	handle, err := Launch(helperSpec(t, "exit"), zap.New(core))
	require.NoError(t, err)

	select {
	case <-handle.Exited:
	case <-time.After(5 * time.Second):
		t.Fatal("child was not reaped")
	}
	require.False(t, Alive(handle.PID))

	entries := logs.FilterMessage("server process exited").All()
	require.Len(t, entries, 1)
	require.Equal(t, "helper_server", entries[0].ContextMap()["server"])
}

func TestNormalizeExitErrorDropsSignalDeaths(t *testing.T) {
	require.NoError(t, normalizeExitError(nil))

	cmd := exec.Command("sh", "-c", "kill -KILL $$")
	require.NoError(t, normalizeExitError(cmd.Run()))

	cmd = exec.Command("sh", "-c", "exit 4")
	require.Error(t, normalizeExitError(cmd.Run()))
}

func TestTerminateEscalatesToKill(t *testing.T) {
	handle, err := Launch(helperSpec(t, "stubborn"), zap.NewNop())
	require.NoError(t, err)
	time.Sleep(200 * time.Millisecond)

	result, err := Terminate(context.Background(), handle.PID, 200*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, result.Exited)
	require.True(t, result.Killed)
}

func TestTerminateMissingProcess(t *testing.T) {
	handle, err := Launch(helperSpec(t, "sleep"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, syscall.Kill(handle.PID, syscall.SIGKILL))
	<-handle.Exited

	_, err = Terminate(context.Background(), handle.PID, time.Second, 10*time.Millisecond)
	require.ErrorIs(t, err, domain.ErrProcessNotFound)
}

func TestLaunchMissingExecutable(t *testing.T) {
	_, err := Launch(Spec{Name: "ghost_server", Command: []string{filepath.Join(t.TempDir(), "nope")}}, nil)
	require.ErrorIs(t, err, domain.ErrSpawnFailed)
	require.ErrorIs(t, err, domain.ErrExecutableNotFound)
	code, ok := domain.CodeFrom(err)
	require.True(t, ok)
	require.Equal(t, domain.CodeFailedPrecond, code)
}

func TestAliveRejectsNonPositive(t *testing.T) {
	require.False(t, Alive(0))
	require.False(t, Alive(-1))
	require.True(t, Alive(os.Getpid()))
}
