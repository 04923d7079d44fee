package config

import (
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// ParseSignal converts a signal name such as "SIGKILL", "kill" or "TERM" to
// its number. The second result is false for unknown names.
func ParseSignal(name string) (syscall.Signal, bool) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if n == "" {
		return 0, false
	}
	if !strings.HasPrefix(n, "SIG") {
		n = "SIG" + n
	}
	sig := unix.SignalNum(n)
	return sig, sig != 0
}
