// Package dhcp4 is a pure byte<->struct codec for BOOTP/DHCPv4 packets
// (RFC 2131) plus the tagged-option section (magic cookie 0x63825363). It
// does no I/O: Parse and BuildResponse are the only two operations, exactly
// as laid out for the wire codec component.
package dhcp4

import (
	"encoding/binary"
	"net"
	"unicode/utf8"
)

// Option codes recognized by this codec. Unknown codes are preserved as
// (code, bytes) in Packet.Options without a named constant.
const (
	OptPad         = 0
	OptRequestedIP = 50
	OptMessageType = 53
	OptServerID    = 54
	OptVendorClass = 60
	OptClientID    = 61
	OptClientArch  = 93
	OptClientNDI   = 94
	OptClientUUID  = 97
	OptVendorSpec  = 43
	OptEnd         = 255
)

const magicCookie = 0x63825363

// headerLen is the fixed BOOTP header size: op..file, not including the
// magic cookie.
const headerLen = 236

// minPacketLen is headerLen + the 4-byte magic cookie.
const minPacketLen = headerLen + 4

// MessageType is DHCP option 53, a closed enumeration. Any other value is
// "no recognized message type".
type MessageType byte

const (
	MessageTypeNone     MessageType = 0
	MessageTypeDiscover MessageType = 1
	MessageTypeOffer    MessageType = 2
	MessageTypeRequest  MessageType = 3
	MessageTypeDecline  MessageType = 4
	MessageTypeAck      MessageType = 5
	MessageTypeNak      MessageType = 6
	MessageTypeRelease  MessageType = 7
	MessageTypeInform   MessageType = 8
)

func (m MessageType) String() string {
	switch m {
	case MessageTypeDiscover:
		return "DISCOVER"
	case MessageTypeOffer:
		return "OFFER"
	case MessageTypeRequest:
		return "REQUEST"
	case MessageTypeDecline:
		return "DECLINE"
	case MessageTypeAck:
		return "ACK"
	case MessageTypeNak:
		return "NAK"
	case MessageTypeRelease:
		return "RELEASE"
	case MessageTypeInform:
		return "INFORM"
	default:
		return "NONE"
	}
}

// Option is a single tagged option, preserved verbatim for codes this
// package does not interpret.
type Option struct {
	Code byte
	Data []byte
}

// Packet is a parsed BOOTP header plus its options section.
type Packet struct {
	Op      byte
	HType   byte
	HLen    byte
	Hops    byte
	Xid     uint32
	Secs    uint16
	Flags   uint16
	CIAddr  net.IP
	YIAddr  net.IP
	SIAddr  net.IP
	GIAddr  net.IP
	CHAddr  net.HardwareAddr // first HLen bytes of the 16-byte chaddr field
	SName   string
	File    string
	Options []Option
}

// Option returns the raw bytes of the first option with the given code.
func (p *Packet) Option(code byte) ([]byte, bool) {
	for _, o := range p.Options {
		if o.Code == code {
			return o.Data, true
		}
	}
	return nil, false
}

// MessageType returns DHCP option 53. Absent or malformed (not exactly 1
// byte) is reported as (MessageTypeNone, false).
func (p *Packet) MessageType() (MessageType, bool) {
	d, ok := p.Option(OptMessageType)
	if !ok || len(d) != 1 {
		return MessageTypeNone, false
	}
	return MessageType(d[0]), true
}

// VendorClass returns DHCP option 60 as a string. Invalid UTF-8 is treated
// as absent, per the "invalid UTF-8 yields a skipped option" parse rule.
func (p *Packet) VendorClass() (string, bool) {
	d, ok := p.Option(OptVendorClass)
	if !ok || !utf8.Valid(d) {
		return "", false
	}
	return string(d), true
}

// ClientArch returns DHCP option 93 (client system architecture, 2-byte
// big-endian). A short payload is treated as absent.
func (p *Packet) ClientArch() (uint16, bool) {
	d, ok := p.Option(OptClientArch)
	if !ok || len(d) < 2 {
		return 0, false
	}
	return binary.BigEndian.Uint16(d[:2]), true
}

// ClientUUID returns DHCP option 97 (client machine identifier). The first
// byte is a type indicator; RFC 4578 requires it to be 0. A length of 0 is
// legal (absent UUID); any other short payload is treated as absent.
func (p *Packet) ClientUUID() (string, bool) {
	d, ok := p.Option(OptClientUUID)
	if !ok {
		return "", false
	}
	if len(d) == 0 {
		return "", true
	}
	if len(d) != 17 || d[0] != 0 {
		return "", false
	}
	return string(d[1:]), true
}

// RequestedIP returns DHCP option 50. A payload shorter than 4 bytes is
// silently treated as absent.
func (p *Packet) RequestedIP() (net.IP, bool) {
	d, ok := p.Option(OptRequestedIP)
	if !ok || len(d) < 4 {
		return nil, false
	}
	return net.IP(d[:4]), true
}

// ServerID returns DHCP option 54.
func (p *Packet) ServerID() (net.IP, bool) {
	d, ok := p.Option(OptServerID)
	if !ok || len(d) < 4 {
		return nil, false
	}
	return net.IP(d[:4]), true
}

// Parse decodes a raw BOOTP/DHCP packet. It enforces the minimum length and
// magic cookie and stops at an END option or end-of-buffer. Malformed
// individual option payloads are dropped from interpretation by the
// accessor methods above rather than aborting the parse; a length byte that
// would overrun the buffer is the one case that aborts the parse, returned
// as *InvalidOption.
func Parse(b []byte) (*Packet, error) {
	if len(b) < minPacketLen {
		return nil, &PacketTooShort{Expected: minPacketLen, Actual: len(b)}
	}

	var cookie [4]byte
	copy(cookie[:], b[headerLen:headerLen+4])
	if binary.BigEndian.Uint32(cookie[:]) != magicCookie {
		return nil, &InvalidMagicCookie{Got: cookie}
	}

	p := &Packet{
		Op:     b[0],
		HType:  b[1],
		HLen:   b[2],
		Hops:   b[3],
		Xid:    binary.BigEndian.Uint32(b[4:8]),
		Secs:   binary.BigEndian.Uint16(b[8:10]),
		Flags:  binary.BigEndian.Uint16(b[10:12]),
		CIAddr: net.IP(append([]byte(nil), b[12:16]...)),
		YIAddr: net.IP(append([]byte(nil), b[16:20]...)),
		SIAddr: net.IP(append([]byte(nil), b[20:24]...)),
		GIAddr: net.IP(append([]byte(nil), b[24:28]...)),
	}

	hlen := int(p.HLen)
	if hlen > 16 {
		hlen = 16
	}
	chaddr := append([]byte(nil), b[28:28+hlen]...)
	p.CHAddr = net.HardwareAddr(chaddr)

	p.SName = cString(b[44:108])
	p.File = cString(b[108:236])

	opts, err := parseOptions(b[minPacketLen:])
	if err != nil {
		return nil, err
	}
	p.Options = opts
	return p, nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func parseOptions(b []byte) ([]Option, error) {
	var opts []Option
	offset := 0
	for offset < len(b) {
		code := b[offset]
		if code == OptPad {
			offset++
			continue
		}
		if code == OptEnd {
			break
		}
		if offset+1 >= len(b) {
			return nil, &InvalidOption{Offset: minPacketLen + offset, Reason: "missing length byte"}
		}
		length := int(b[offset+1])
		dataStart := offset + 2
		dataEnd := dataStart + length
		if dataEnd > len(b) {
			return nil, &InvalidOption{Offset: minPacketLen + offset, Reason: "option data overruns buffer"}
		}
		data := append([]byte(nil), b[dataStart:dataEnd]...)
		opts = append(opts, Option{Code: code, Data: data})
		offset = dataEnd
	}
	return opts, nil
}

// minResponseLen is the minimum zero-padded size of a built response packet.
const minResponseLen = 300

// BuildResponse builds a reply to req with the given message type, server
// IP (option 54 and siaddr), and boot filename (the 128-byte file field,
// truncated if necessary). Options are emitted in the fixed order: 53, 54,
// 60 (echoed "PXEClient"), 43 (vendor-encapsulated discovery-control=8),
// 255. The result is zero-padded to at least 300 bytes.
func BuildResponse(req *Packet, msgType MessageType, serverIP net.IP, bootFile string) []byte {
	buf := make([]byte, headerLen)
	buf[0] = 2 // BOOTREPLY
	buf[1] = req.HType
	buf[2] = req.HLen
	buf[3] = req.Hops
	binary.BigEndian.PutUint32(buf[4:8], req.Xid)
	binary.BigEndian.PutUint16(buf[8:10], req.Secs)
	binary.BigEndian.PutUint16(buf[10:12], req.Flags)
	// ciaddr, yiaddr left zero.
	ip4 := serverIP.To4()
	if ip4 == nil {
		ip4 = net.IPv4zero.To4()
	}
	copy(buf[20:24], ip4) // siaddr
	if gi := req.GIAddr.To4(); gi != nil {
		copy(buf[24:28], gi)
	}
	if req.CHAddr != nil {
		copy(buf[28:28+len(req.CHAddr)], req.CHAddr)
	}

	file := bootFile
	if len(file) > 127 {
		file = file[:127]
	}
	copy(buf[108:236], file)

	cookie := make([]byte, 4)
	binary.BigEndian.PutUint32(cookie, magicCookie)
	buf = append(buf, cookie...)

	buf = appendOption(buf, OptMessageType, []byte{byte(msgType)})
	buf = appendOption(buf, OptServerID, ip4)
	buf = appendOption(buf, OptVendorClass, []byte("PXEClient"))
	// Vendor-encapsulated option 43: sub-option 6 (discovery control) = 8.
	vendor := []byte{6, 1, 8}
	buf = appendOption(buf, OptVendorSpec, vendor)
	buf = append(buf, OptEnd)

	if len(buf) < minResponseLen {
		pad := make([]byte, minResponseLen-len(buf))
		buf = append(buf, pad...)
	}
	return buf
}

func appendOption(buf []byte, code byte, data []byte) []byte {
	buf = append(buf, code, byte(len(data)))
	buf = append(buf, data...)
	return buf
}
