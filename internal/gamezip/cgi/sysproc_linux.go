//go:build linux

package cgi

import (
	"os"
	"syscall"
)

// sysProcAttr puts the interpreter in its own process group so a timeout
// kill reaches any children it forked, and ties its lifetime to ours.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}

func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

// terminationSignal reports the signal that killed the process, if any.
func terminationSignal(state *os.ProcessState) (string, bool) {
	if state == nil {
		return "", false
	}
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return "", false
	}
	return ws.Signal().String(), true
}
