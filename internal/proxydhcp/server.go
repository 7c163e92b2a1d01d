// Package proxydhcp is an active proxyDHCP responder (RFC 4578): it
// answers PXE BOOTREQUESTs with a boot filename and server identifier but
// never allocates an IP address, leaving that to the real DHCP server.
package proxydhcp

import (
	"context"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/tinkerbell/serabut/internal/dhcp4"
)

const pollTimeout = 100 * time.Millisecond

// Config configures a proxyDHCP responder instance.
type Config struct {
	// ServerIP is our identity: written into siaddr and option 54 of every
	// reply. It must never equal the real DHCP server's address.
	ServerIP net.IP
	// BIOSFile and EFIFile are the boot filenames served to legacy BIOS
	// and EFI clients respectively.
	BIOSFile string
	EFIFile  string
	// Interface optionally restricts the listening sockets to a single
	// network interface (ignored on platforms without SO_BINDTODEVICE).
	Interface string
	Log       logr.Logger
}

// Server runs the dual-socket (67 + 4011) proxyDHCP responder.
type Server struct {
	cfg Config
}

// New returns a Server with logr.Discard() as its default logger.
func New(cfg Config) *Server {
	if cfg.Log.GetSink() == nil {
		cfg.Log = logr.Discard()
	}
	return &Server{cfg: cfg}
}

// ListenAndServe binds 0.0.0.0:67 and 0.0.0.0:4011 and serves until ctx is
// canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.serve(ctx, "0.0.0.0:67", true) })
	g.Go(func() error { return s.serve(ctx, "0.0.0.0:4011", false) })
	return g.Wait()
}

func (s *Server) serve(ctx context.Context, addr string, isMainSocket bool) error {
	lc := net.ListenConfig{Control: socketControl(s.cfg.Interface)}
	conn, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 1500)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(pollTimeout)); err != nil {
			return err
		}
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			continue
		}

		srcPort := 0
		if ua, ok := addr.(*net.UDPAddr); ok {
			srcPort = ua.Port
		}

		s.handle(conn, buf[:n], srcPort, isMainSocket)
	}
}

func (s *Server) handle(conn net.PacketConn, data []byte, srcPort int, isMainSocket bool) {
	pkt, err := dhcp4.Parse(data)
	if err != nil {
		return // malformed: silently dropped, proxyDHCP never surfaces errors.
	}
	if pkt.Op != 1 { // BOOTREQUEST
		return
	}
	vc, ok := pkt.VendorClass()
	if !ok || !strings.HasPrefix(vc, "PXEClient") {
		return
	}
	mt, ok := pkt.MessageType()
	if !ok {
		return
	}

	var respType dhcp4.MessageType
	switch mt {
	case dhcp4.MessageTypeDiscover:
		respType = dhcp4.MessageTypeOffer
	case dhcp4.MessageTypeRequest:
		// A request on the main socket only gets an answer if it arrived
		// from the client port (68); a request on 4011 is a directed
		// follow-up and is always answered.
		if isMainSocket && srcPort != 68 {
			return
		}
		respType = dhcp4.MessageTypeAck
	default:
		return
	}

	bootFile := s.selectBootFile(vc)
	resp := dhcp4.BuildResponse(pkt, respType, s.cfg.ServerIP, bootFile)

	dst := &net.UDPAddr{IP: net.IPv4bcast, Port: 68}
	if _, err := conn.WriteTo(resp, dst); err != nil {
		s.cfg.Log.V(1).Info("proxydhcp: failed to send reply", "error", err)
	}
}

// selectBootFile parses the decimal architecture code out of the third
// colon-separated vendor-class field and picks EFI vs BIOS boot files,
// falling back to substring checks on the raw vendor-class text.
func (s *Server) selectBootFile(vendorClass string) string {
	if isEFIClient(vendorClass) {
		return s.cfg.EFIFile
	}
	return s.cfg.BIOSFile
}

func isEFIClient(vendorClass string) bool {
	fields := strings.Split(vendorClass, ":")
	if len(fields) >= 3 {
		if code, err := strconv.Atoi(fields[2]); err == nil {
			// Arch codes 0 (Intel x86 BIOS) and 1 (NEC PC98) are the only
			// non-EFI client classes this registry assigns; everything
			// else observed in practice is some EFI variant.
			if code != 0 && code != 1 {
				return true
			}
		}
	}
	return strings.Contains(vendorClass, "EFI") || strings.Contains(vendorClass, "00007")
}

// socketControl returns a net.ListenConfig.Control func that sets
// SO_REUSEADDR and SO_BROADCAST on every listening socket, and
// SO_BINDTODEVICE when iface is non-empty on platforms that support it.
// An error from setting any of these options is returned and fails the
// listen.
func socketControl(iface string) func(string, string, syscall.RawConn) error {
	return func(_, _ string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			sockErr = setSocketOptions(fd, iface)
		})
		if err != nil {
			return err
		}
		return sockErr
	}
}
