package tftp

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseRequestWithOptions(t *testing.T) {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, opRRQ)
	buf = append(buf, "grubx64.efi"...)
	buf = append(buf, 0)
	buf = append(buf, "octet"...)
	buf = append(buf, 0)
	buf = append(buf, "blksize"...)
	buf = append(buf, 0)
	buf = append(buf, "1428"...)
	buf = append(buf, 0)
	buf = append(buf, "tsize"...)
	buf = append(buf, 0)
	buf = append(buf, "0"...)
	buf = append(buf, 0)

	req, err := parseRequest(buf)
	if err != nil {
		t.Fatal(err)
	}
	if req.filename != "grubx64.efi" || req.mode != "octet" {
		t.Fatalf("got filename=%q mode=%q", req.filename, req.mode)
	}
	if req.options["blksize"] != "1428" || req.options["tsize"] != "0" {
		t.Fatalf("options = %+v", req.options)
	}
}

func TestClampBlockSize(t *testing.T) {
	cases := map[int]int{1: MinBlockSize, 8: 8, 1428: 1428, 999999: MaxBlockSize}
	for in, want := range cases {
		if got := clampBlockSize(in); got != want {
			t.Errorf("clampBlockSize(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestResolvePathRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	s := &Server{Root: root}
	if _, err := s.resolvePath("../../etc/passwd"); err != nil {
		t.Fatalf("traversal should collapse into root, not error: %v", err)
	}
	p, err := s.resolvePath("/sub/../../etc/passwd")
	if err != nil {
		t.Fatal(err)
	}
	absRoot, _ := filepath.Abs(root)
	if p != filepath.Join(absRoot, "sub", "etc", "passwd") {
		t.Fatalf("path = %q, want within root", p)
	}
}

// TestScenario5TFTPWithOptions reproduces the literal end-to-end example:
// an RRQ with blksize=1428 and tsize=0 gets an OACK echoing the negotiated
// blksize and the real file size, and the full file is delivered.
func TestScenario5TFTPWithOptions(t *testing.T) {
	root := t.TempDir()
	content := bytes.Repeat([]byte("A"), 1428*3+57)
	if err := os.WriteFile(filepath.Join(root, "grubx64.efi"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	srv := New(root, "127.0.0.1:0")
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srvAddr := conn.LocalAddr().(*net.UDPAddr)
	conn.Close()
	srv.Addr = srvAddr.String()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()
	time.Sleep(50 * time.Millisecond)

	// Replies come from the transfer's own ephemeral socket, so the client
	// is unconnected and answers whichever address the OACK came from.
	client, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	rrq := make([]byte, 2)
	binary.BigEndian.PutUint16(rrq, opRRQ)
	rrq = append(rrq, "grubx64.efi"...)
	rrq = append(rrq, 0)
	rrq = append(rrq, "octet"...)
	rrq = append(rrq, 0)
	rrq = append(rrq, "blksize"...)
	rrq = append(rrq, 0)
	rrq = append(rrq, "1428"...)
	rrq = append(rrq, 0)
	rrq = append(rrq, "tsize"...)
	rrq = append(rrq, 0)
	rrq = append(rrq, "0"...)
	rrq = append(rrq, 0)
	if _, err := client.WriteTo(rrq, srvAddr); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 65536)
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, peer, err := client.ReadFrom(buf)
	if err != nil {
		t.Fatalf("reading OACK: %v", err)
	}
	if binary.BigEndian.Uint16(buf[:2]) != opOACK {
		t.Fatalf("expected OACK, got opcode %d", binary.BigEndian.Uint16(buf[:2]))
	}
	if !bytes.Contains(buf[2:n], []byte("1428")) {
		t.Fatalf("OACK did not echo blksize=1428: %q", buf[2:n])
	}
	if !bytes.Contains(buf[2:n], []byte("4341")) { // 1428*3+57 = 4341
		t.Fatalf("OACK did not echo tsize=4341: %q", buf[2:n])
	}

	ack0 := buildACK(0)
	if _, err := client.WriteTo(ack0, peer); err != nil {
		t.Fatal(err)
	}

	var received []byte
	var block uint16 = 1
	for {
		_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, _, err := client.ReadFrom(buf)
		if err != nil {
			t.Fatalf("reading DATA block %d: %v", block, err)
		}
		if binary.BigEndian.Uint16(buf[:2]) != opDATA {
			t.Fatalf("expected DATA, got opcode %d", binary.BigEndian.Uint16(buf[:2]))
		}
		gotBlock := binary.BigEndian.Uint16(buf[2:4])
		if gotBlock != block {
			t.Fatalf("block = %d, want %d", gotBlock, block)
		}
		payload := buf[4:n]
		received = append(received, payload...)
		if _, err := client.WriteTo(buildACK(block), peer); err != nil {
			t.Fatal(err)
		}
		if len(payload) < 1428 {
			break
		}
		block++
	}

	if !bytes.Equal(received, content) {
		t.Fatalf("received %d bytes, want %d", len(received), len(content))
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
