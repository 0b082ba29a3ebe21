package process

import (
	"context"
	"errors"
	"os/exec"
	"time"

	"travelmcp/internal/domain"
)

func normalizeExitError(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == -1 {
		return nil
	}
	return err
}

// Alive reports whether pid names a live process visible to us.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return alive(pid)
}

// TerminateResult describes how a Terminate call ended.
type TerminateResult struct {
	Exited bool
	Killed bool
}

// Terminate asks pid and its process group to exit, polling every interval
// until timeout elapses, then kills it. An already gone process yields
// domain.ErrProcessNotFound.
func Terminate(ctx context.Context, pid int, timeout, interval time.Duration) (TerminateResult, error) {
	if !Alive(pid) {
		return TerminateResult{}, domain.ErrProcessNotFound
	}
	if interval <= 0 {
		interval = domain.DefaultStopPollInterval
	}
	if err := signalTerminate(pid); err != nil {
		if !Alive(pid) {
			return TerminateResult{Exited: true}, nil
		}
		return TerminateResult{}, err
	}
	if waitExit(ctx, pid, timeout, interval) {
		return TerminateResult{Exited: true}, nil
	}
	if err := ctx.Err(); err != nil {
		return TerminateResult{}, err
	}
	if err := signalKill(pid); err != nil && Alive(pid) {
		return TerminateResult{}, err
	}
	if waitExit(ctx, pid, time.Second, interval) {
		return TerminateResult{Exited: true, Killed: true}, nil
	}
	return TerminateResult{Killed: true}, errors.New("process still alive after kill")
}

func waitExit(ctx context.Context, pid int, timeout, interval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if !Alive(pid) {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return !Alive(pid)
		case <-ticker.C:
		}
	}
}
