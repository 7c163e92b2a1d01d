//go:build linux

package proxydhcp

import "golang.org/x/sys/unix"

// setSocketOptions sets SO_REUSEADDR and SO_BROADCAST on fd, and
// SO_BINDTODEVICE when iface is non-empty.
func setSocketOptions(fd uintptr, iface string) error {
	if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return err
	}
	if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1); err != nil {
		return err
	}
	if iface != "" {
		if err := unix.SetsockoptString(int(fd), unix.SOL_SOCKET, unix.SO_BINDTODEVICE, iface); err != nil {
			return err
		}
	}
	return nil
}
