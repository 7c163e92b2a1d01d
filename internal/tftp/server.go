package tftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
)

const (
	ackTimeout  = 5 * time.Second
	maxRetries  = 5
	pollTimeout = 100 * time.Millisecond
)

// Server is a single-threaded-read-loop, per-transfer-goroutine TFTP read
// server. Write requests are always refused.
type Server struct {
	// Root is the directory boot files are served from.
	Root string
	// Addr is the UDP address to listen on, e.g. "0.0.0.0:69".
	Addr string
	Log  logr.Logger

	shuttingDown atomic.Bool
}

// New returns a Server with logr.Discard() as its default logger.
func New(root, addr string) *Server {
	return &Server{Root: root, Addr: addr, Log: logr.Discard()}
}

// ListenAndServe runs the read loop until ctx is canceled. The main socket
// polls for shutdown every 100ms via a read deadline, per the process-wide
// shutdown-flag contract shared with the proxyDHCP and capture loops.
func (s *Server) ListenAndServe(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", s.Addr)
	if err != nil {
		return fmt.Errorf("tftp: listen %s: %w", s.Addr, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		s.shuttingDown.Store(true)
		conn.Close()
	}()

	buf := make([]byte, 65536)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(pollTimeout)); err != nil {
			return err
		}
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if s.shuttingDown.Load() {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			s.Log.V(1).Info("tftp read error", "error", err)
			continue
		}

		req, err := parseRequest(buf[:n])
		if err != nil {
			s.Log.V(1).Info("tftp malformed request", "peer", addr, "error", err)
			continue
		}

		reqCopy := *req
		peer := addr
		go s.handle(&reqCopy, peer)
	}
}

func (s *Server) handle(req *request, peer net.Addr) {
	worker, err := net.ListenPacket("udp", "0.0.0.0:0")
	if err != nil {
		s.Log.Error(err, "tftp: failed to open ephemeral socket")
		return
	}
	defer worker.Close()

	if req.op == opWRQ {
		s.sendError(worker, peer, ErrCodeAccessViolation, "writes are not supported")
		return
	}

	path, err := s.resolvePath(req.filename)
	if err != nil {
		s.Log.V(1).Info("tftp path rejected", "filename", req.filename, "peer", peer, "error", err)
		s.sendError(worker, peer, ErrCodeFileNotFound, "file not found")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.sendError(worker, peer, ErrCodeFileNotFound, "file not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.sendError(worker, peer, ErrCodeFileNotFound, "file not found")
		return
	}

	t := &transfer{
		server:    s,
		conn:      worker,
		peer:      peer,
		file:      f,
		size:      info.Size(),
		blockSize: DefaultBlockSize,
	}
	if !t.negotiate(req.options) {
		return
	}
	t.run()
}

// resolvePath strips a leading "/", removes any ".." segment, joins the
// remainder under Root, and verifies the canonical result still has Root
// as a prefix. Canonicalization failure and traversal both collapse to
// the same "not found" outcome, by design, to avoid distinguishing
// access-denied from nonexistent over the wire.
func (s *Server) resolvePath(filename string) (string, error) {
	clean := strings.TrimPrefix(filename, "/")
	parts := strings.Split(clean, "/")
	kept := parts[:0]
	for _, p := range parts {
		if p == ".." || p == "" {
			continue
		}
		kept = append(kept, p)
	}
	joined := filepath.Join(append([]string{s.Root}, kept...)...)

	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", err
	}
	canonical, err := filepath.Abs(joined)
	if err != nil {
		return "", err
	}
	if canonical != root && !strings.HasPrefix(canonical, root+string(filepath.Separator)) {
		return "", fmt.Errorf("tftp: path escapes root")
	}
	return canonical, nil
}

func (s *Server) sendError(conn net.PacketConn, peer net.Addr, code uint16, msg string) {
	_, _ = conn.WriteTo(buildERROR(code, msg), peer)
}

// transfer carries one RRQ to completion or failure on its own goroutine
// and ephemeral socket.
type transfer struct {
	server    *Server
	conn      net.PacketConn
	peer      net.Addr
	file      *os.File
	size      int64
	blockSize int
	useOACK   bool
	tsize     bool
}

func (t *transfer) negotiate(opts map[string]string) bool {
	var ordered [][2]string
	if v, ok := opts["blksize"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			clamped := clampBlockSize(n)
			t.blockSize = clamped
			t.useOACK = true
			ordered = append(ordered, [2]string{"blksize", strconv.Itoa(clamped)})
		}
	}
	if _, ok := opts["tsize"]; ok {
		t.tsize = true
		t.useOACK = true
		ordered = append(ordered, [2]string{"tsize", strconv.FormatInt(t.size, 10)})
	}
	if t.useOACK {
		return t.sendOACK(ordered)
	}
	return true
}

func clampBlockSize(n int) int {
	if n < MinBlockSize {
		return MinBlockSize
	}
	if n > MaxBlockSize {
		return MaxBlockSize
	}
	return n
}

func (t *transfer) sendOACK(opts [][2]string) bool {
	pkt := buildOACK(opts)
	if !t.sendAndAwaitACK(pkt, 0) {
		t.server.Log.V(1).Info("tftp OACK not acknowledged, abandoning transfer", "peer", t.peer)
		return false
	}
	return true
}

// sendAndAwaitACK sends pkt and waits (with retries) for an ACK of
// wantBlock. It returns false if the transfer should be abandoned.
func (t *transfer) sendAndAwaitACK(pkt []byte, wantBlock uint16) bool {
	buf := make([]byte, 65536)
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			t.server.Log.V(2).Info("tftp resending block", "block", wantBlock, "attempt", attempt)
		}
		if _, err := t.conn.WriteTo(pkt, t.peer); err != nil {
			return false
		}
		if err := t.conn.SetReadDeadline(time.Now().Add(ackTimeout)); err != nil {
			return false
		}
		for {
			n, addr, err := t.conn.ReadFrom(buf)
			if err != nil {
				break // timeout or error: fall through to retry
			}
			if addr.String() != t.peer.String() {
				continue
			}
			if isError(buf[:n]) {
				return false
			}
			block, ok := parseACK(buf[:n])
			if !ok {
				continue
			}
			if block == wantBlock {
				return true
			}
			if block < wantBlock {
				// Duplicate ACK for an earlier block: resend current and keep waiting.
				if _, err := t.conn.WriteTo(pkt, t.peer); err != nil {
					return false
				}
				continue
			}
		}
	}
	return false
}

// run drives the lock-step DATA/ACK loop to completion.
func (t *transfer) run() {
	var block uint16 = 1
	offset := int64(0)
	payload := make([]byte, t.blockSize)

	for {
		n, err := t.file.ReadAt(payload, offset)
		if err != nil && !errors.Is(err, io.EOF) {
			t.server.Log.Error(err, "tftp: read error", "peer", t.peer)
			return
		}
		chunk := payload[:n]

		pkt := buildDATA(block, chunk)
		if !t.sendAndAwaitACK(pkt, block) {
			t.server.Log.V(1).Info("tftp transfer abandoned", "peer", t.peer, "block", block)
			return
		}

		offset += int64(n)
		if n < t.blockSize {
			return // short block (possibly zero) signals end-of-file.
		}
		block++ // wraps naturally at 2^16 per uint16 arithmetic.
	}
}
