package capture

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"golang.org/x/net/ipv4"
)

// LiveSource observes DHCP traffic on a UDP socket bound to port 67 (or
// 68, for capturing server replies reflected back to clients on the same
// segment). It uses ipv4.PacketConn so the observed interface index is
// available even though we never need to reply.
type LiveSource struct {
	conn *ipv4.PacketConn
	raw  net.PacketConn
	buf  []byte
}

// NewLiveSource binds addr (e.g. "0.0.0.0:67") and returns a source ready
// to stream observed packets.
func NewLiveSource(addr string) (*LiveSource, error) {
	c, err := net.ListenPacket("udp4", addr)
	if err != nil {
		return nil, err
	}
	p := ipv4.NewPacketConn(c)
	if err := p.SetControlMessage(ipv4.FlagInterface, true); err != nil {
		// Not every platform supports control messages; capture still
		// works, it just won't know which interface a packet arrived on.
		p.SetControlMessage(ipv4.FlagInterface, false)
	}
	return &LiveSource{conn: p, raw: c, buf: make([]byte, 1500)}, nil
}

func (s *LiveSource) Next(ctx context.Context) (RawPacket, error) {
	for {
		if err := ctx.Err(); err != nil {
			return RawPacket{}, err
		}
		// Reads time out every 100ms so cancellation is noticed without traffic.
		deadline := time.Now().Add(100 * time.Millisecond)
		if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
			deadline = dl
		}
		s.raw.SetReadDeadline(deadline)
		n, _, _, err := s.conn.ReadFrom(s.buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return RawPacket{}, err
		}
		if ctx.Err() != nil {
			return RawPacket{}, ctx.Err()
		}
		out := make([]byte, n)
		copy(out, s.buf[:n])
		return RawPacket{Data: out}, nil
	}
}

// Close releases the underlying socket.
func (s *LiveSource) Close() error {
	return s.raw.Close()
}

// ReplaySource plays back a fixed, in-memory sequence of packets. Used in
// tests and for offline analysis of a previously captured sequence; it
// never touches the network.
type ReplaySource struct {
	packets []RawPacket
	pos     int
}

// NewReplaySource returns a ReplaySource over packets, played back in
// order.
func NewReplaySource(packets []RawPacket) *ReplaySource {
	return &ReplaySource{packets: packets}
}

func (s *ReplaySource) Next(ctx context.Context) (RawPacket, error) {
	if ctx.Err() != nil {
		return RawPacket{}, ctx.Err()
	}
	if s.pos >= len(s.packets) {
		return RawPacket{}, io.EOF
	}
	p := s.packets[s.pos]
	s.pos++
	return p, nil
}
