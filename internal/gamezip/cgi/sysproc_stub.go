//go:build !linux

package cgi

import (
	"os"
	"syscall"
)

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}

func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	if proc, err := os.FindProcess(pid); err == nil {
		_ = proc.Kill()
	}
}

func terminationSignal(state *os.ProcessState) (string, bool) {
	return "", false
}
