package proxydhcp

import (
	"net"
	"testing"

	"github.com/tinkerbell/serabut/internal/dhcp4"
)

func TestIsEFIClient(t *testing.T) {
	cases := map[string]bool{
		"PXEClient:Arch:00007:UNDI:003016": true,
		"PXEClient:Arch:00000:UNDI:002001": false,
		"PXEClient:Arch:00001:UNDI:002001": false,
		"PXEClient":                        false,
	}
	for vc, want := range cases {
		if got := isEFIClient(vc); got != want {
			t.Errorf("isEFIClient(%q) = %v, want %v", vc, got, want)
		}
	}
}

// TestScenario1ProxyDHCPOfferForEFIClient mirrors the literal end-to-end
// scenario at the classification+response-building layer (socket I/O is
// not exercised here).
func TestScenario1ProxyDHCPOfferForEFIClient(t *testing.T) {
	mac, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	req := &dhcp4.Packet{
		Op:     1,
		HLen:   6,
		Xid:    0x12345678,
		CHAddr: mac,
		Options: []dhcp4.Option{
			{Code: dhcp4.OptMessageType, Data: []byte{byte(dhcp4.MessageTypeDiscover)}},
			{Code: dhcp4.OptVendorClass, Data: []byte("PXEClient:Arch:00007:UNDI:003016")},
		},
	}

	s := New(Config{
		ServerIP: net.ParseIP("192.168.1.100"),
		BIOSFile: "pxelinux.0",
		EFIFile:  "grubnetx64.efi.signed",
	})

	vc, _ := req.VendorClass()
	bootFile := s.selectBootFile(vc)
	if bootFile != "grubnetx64.efi.signed" {
		t.Fatalf("bootFile = %q, want grubnetx64.efi.signed", bootFile)
	}

	resp := dhcp4.BuildResponse(req, dhcp4.MessageTypeOffer, s.cfg.ServerIP, bootFile)
	parsed, err := dhcp4.Parse(resp)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.File != bootFile {
		t.Fatalf("file = %q, want %q", parsed.File, bootFile)
	}
	if !parsed.SIAddr.Equal(s.cfg.ServerIP) {
		t.Fatalf("siaddr = %v, want %v", parsed.SIAddr, s.cfg.ServerIP)
	}
}
