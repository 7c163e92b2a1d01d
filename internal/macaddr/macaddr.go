// Package macaddr normalizes MAC addresses to the canonical hyphenated form
// used as the comparison key across the rest of the system.
package macaddr

import (
	"fmt"
	"net"
	"strings"
)

// Canonical renders a MAC address as six lowercase hex bytes joined by "-",
// e.g. "aa-bb-cc-dd-ee-ff". It accepts any delimiter net.ParseMAC accepts
// (colon, dash, or dot-grouped) as well as a bare undelimited 12-hex-digit
// string.
func Canonical(s string) (string, error) {
	hw, err := Parse(s)
	if err != nil {
		return "", err
	}
	return Format(hw), nil
}

// Parse accepts colon-, dash-, dot-delimited, or bare hex MAC strings and
// returns the underlying net.HardwareAddr.
func Parse(s string) (net.HardwareAddr, error) {
	s = strings.TrimSpace(s)
	if hw, err := net.ParseMAC(s); err == nil {
		return hw, nil
	}

	// Bare hex, no delimiters: "aabbccddeeff".
	clean := strings.ToLower(s)
	if len(clean) == 12 && isHex(clean) {
		var b [6]byte
		for i := 0; i < 6; i++ {
			var v int
			if _, err := fmt.Sscanf(clean[i*2:i*2+2], "%02x", &v); err != nil {
				return nil, fmt.Errorf("invalid mac address %q", s)
			}
			b[i] = byte(v)
		}
		return net.HardwareAddr(b[:]), nil
	}
	return nil, fmt.Errorf("invalid mac address %q", s)
}

// Format renders hw in the canonical lowercase hyphenated form. Only the
// first 6 bytes are used, matching the BOOTP chaddr convention.
func Format(hw net.HardwareAddr) string {
	if len(hw) < 6 {
		return hw.String()
	}
	b := hw[:6]
	return fmt.Sprintf("%02x-%02x-%02x-%02x-%02x-%02x", b[0], b[1], b[2], b[3], b[4], b[5])
}

func isHex(s string) bool {
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}
