package pxe

import (
	"fmt"
	"strconv"

	"github.com/insomniacslk/dhcp/iana"
)

// archName renders a client architecture the way the spec's PXE info
// enumeration names it: BIOS x86, EFI x86, EFI x64, EFI BC, EFI ARM32/64,
// NEC-PC98, or a numeric Unknown(n) bucket for anything this registry
// doesn't recognize.
func archName(a iana.Arch) string {
	switch a {
	case iana.INTEL_X86PC:
		return "BIOS x86"
	case iana.NEC_PC98:
		return "NEC-PC98"
	case iana.EFI_IA32:
		return "EFI x86"
	case iana.EFI_X86_64:
		return "EFI x64"
	case iana.EFI_BC:
		return "EFI BC"
	case iana.EFI_ARM32:
		return "EFI ARM32"
	case iana.EFI_ARM64:
		return "EFI ARM64"
	default:
		return fmt.Sprintf("Unknown(%d)", uint16(a))
	}
}

// parseArchField parses the decimal architecture code out of the third
// colon-separated field of a PXEClient vendor-class string, e.g.
// "PXEClient:Arch:00007:UNDI:003016" -> 7.
func parseArchField(field string) (iana.Arch, bool) {
	n, err := strconv.ParseUint(field, 10, 16)
	if err != nil {
		return 0, false
	}
	return iana.Arch(n), true
}
