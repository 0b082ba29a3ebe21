//go:build !unix

package process

import (
	"os"
	"os/exec"
)

func detach(_ *exec.Cmd) {}

func alive(pid int) bool {
	proc, err := os.FindProcess(pid)
	return err == nil && proc != nil
}

func signalTerminate(pid int) error {
	return signalKill(pid)
}

func signalKill(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	return proc.Kill()
}
