//go:build !windows

package encoder

import "syscall"

// sysProcAttr puts the encoder in its own process group so terminal signals
// sent to the relay do not reach it.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
