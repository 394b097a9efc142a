//go:build windows

package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Windows processes only accept Kill, so stopping skips the grace period.
const (
	termSignal = syscall.SIGKILL
	killSignal = syscall.SIGKILL
)

// ShutdownSignals are the signals a foreground server stops on.
func ShutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// Detach is a no-op; there is no session to leave.
func Detach(_ *exec.Cmd) {}

func alive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func signalPID(pid int, sig syscall.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := proc.Signal(sig); err != nil {
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}
	return nil
}
