//go:build !linux

package proxydhcp

import "golang.org/x/sys/unix"

// setSocketOptions sets SO_REUSEADDR and SO_BROADCAST. Binding to a
// specific interface via SO_BINDTODEVICE is Linux-only; on other
// platforms iface is accepted but ignored.
func setSocketOptions(fd uintptr, _ string) error {
	if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return err
	}
	return unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
}
