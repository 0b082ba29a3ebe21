package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"

	"travelmcp/internal/domain"
	"travelmcp/internal/infra/envutil"
)

// Spec describes a detached child process.
type Spec struct {
	Name    string
	Command []string
	Dir     string
	Env     map[string]string
	LogPath string
}

// Handle is a started child. Exited is closed once the child was reaped.
type Handle struct {
	PID    int
	Exited <-chan struct{}
}

// Launch starts spec in its own session with output appended to LogPath.
// The child outlives the caller; a background goroutine reaps it while the
// caller is still running.
func Launch(spec Spec, logger *zap.Logger) (Handle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(spec.Command) == 0 {
		return Handle{}, fmt.Errorf("%w: empty command", domain.ErrSpawnFailed)
	}

	cmd := Command(spec)

	var logFile *os.File
	if spec.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(spec.LogPath), 0o755); err != nil {
			return Handle{}, fmt.Errorf("ensure log dir: %w", err)
		}
		file, err := os.OpenFile(spec.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return Handle{}, fmt.Errorf("open log file: %w", err)
		}
		logFile = file
		cmd.Stdout = file
		cmd.Stderr = file
	}

	err := cmd.Start()
	if logFile != nil {
		_ = logFile.Close()
	}
	if err != nil {
		return Handle{}, fmt.Errorf("%w: %w", domain.ErrSpawnFailed, classifyStartError(err))
	}

	exited := make(chan struct{})
	go reap(cmd, spec.Name, exited, logger)
	return Handle{PID: cmd.Process.Pid, Exited: exited}, nil
}

// reap waits for the child so it never lingers as a zombie, then closes
// exited. Signal deaths are expected on stop and are not reported.
func reap(cmd *exec.Cmd, name string, exited chan<- struct{}, logger *zap.Logger) {
	defer close(exited)
	if err := normalizeExitError(cmd.Wait()); err != nil {
		logger.Debug("server process exited",
			zap.String("server", name),
			zap.Int("pid", cmd.Process.Pid),
			zap.Error(err),
		)
	}
}

// Command builds the detached exec.Cmd for spec without starting it. Output
// redirection is left to the caller.
func Command(spec Spec) *exec.Cmd {
	env := envutil.PatchPATH(envutil.Merge(os.Environ(), spec.Env))
	cmd := exec.Command(envutil.LookPath(spec.Command[0], env), spec.Command[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = env
	detach(cmd)
	return cmd
}

func classifyStartError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", domain.ErrExecutableNotFound, err.Error())
	}
	if errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, err.Error())
	}
	return err
}
