// Package pxe derives PXE client identity from DHCP packets and correlates
// requests with server responses via a short-lived transaction tracker.
package pxe

import (
	"strings"

	"github.com/insomniacslk/dhcp/iana"
	"github.com/tinkerbell/serabut/internal/dhcp4"
)

// vendorClassPrefix is the literal, case-sensitive prefix PXE clients send
// in DHCP option 60. "pxeclient" (any other case) is not a match.
const vendorClassPrefix = "PXEClient"

// Info is the PXE-specific identity derived from a DHCP packet's vendor
// class (option 60), optionally refined by options 93 and 97.
type Info struct {
	VendorClass string
	Arch        *iana.Arch
	UUID        *string
}

// ArchName renders Arch using the spec's architecture naming, or "" if no
// architecture was parsed.
func (i Info) ArchName() string {
	if i.Arch == nil {
		return ""
	}
	return archName(*i.Arch)
}

// FromPacket derives Info from a packet's option 60 (vendor class),
// returning ok=false if the vendor class is absent or does not start with
// the literal "PXEClient" prefix. Option 93 (if present) overrides any
// architecture parsed out of the vendor-class text; option 97 supplies the
// client UUID.
func FromPacket(pkt *dhcp4.Packet) (Info, bool) {
	vc, ok := pkt.VendorClass()
	if !ok || !strings.HasPrefix(vc, vendorClassPrefix) {
		return Info{}, false
	}

	info := Info{VendorClass: vc}

	fields := strings.Split(vc, ":")
	if len(fields) >= 3 {
		if a, ok := parseArchField(fields[2]); ok {
			info.Arch = &a
		}
	}
	if a, ok := pkt.ClientArch(); ok {
		arch := iana.Arch(a)
		info.Arch = &arch
	}
	if u, ok := pkt.ClientUUID(); ok && u != "" {
		info.UUID = &u
	}

	return info, true
}
