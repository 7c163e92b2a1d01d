package http

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-logr/logr"

	"github.com/tinkerbell/serabut/internal/store"
	"github.com/tinkerbell/serabut/internal/tmpl"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newHandlers(t *testing.T, dataDir string) *Handlers {
	t.Helper()
	s, err := store.Load(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	return &Handlers{Store: s, Templates: tmpl.NewRenderer(), DefaultPort: 4123, Log: logr.Discard()}
}

// TestScenario3BootRendering reproduces the literal scenario end to end
// through the HTTP handler.
func TestScenario3BootRendering(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, store.ActionPath(dir), "web01 = ubuntu-22.04,cloud\n")
	writeFile(t, filepath.Join(store.HardwareDir(dir), "web01.cfg"), "mac=aa-bb-cc-dd-ee-ff\ntimezone=UTC\n")
	writeFile(t, filepath.Join(store.ViewsDir(dir), "linux", "ubuntu", "ubuntu-22.04", "boot.ipxe.j2"),
		"#!ipxe\nkernel http://{{host}}:{{port}}/iso/{{release}}/casper/vmlinuz ip=dhcp\ninitrd http://{{host}}:{{port}}/iso/{{release}}/casper/initrd\nboot\n")

	h := newHandlers(t, dir)
	mux := NewMux(h, HealthCheck{}, "test")

	req := httptest.NewRequest(http.MethodGet, "/boot?mac=aa:bb:cc:dd:ee:ff", nil)
	req.Host = "10.0.0.1:8080"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	want := "#!ipxe\nkernel http://10.0.0.1:8080/iso/ubuntu-22.04/casper/vmlinuz ip=dhcp\ninitrd http://10.0.0.1:8080/iso/ubuntu-22.04/casper/initrd\nboot\n"
	if rec.Body.String() != want {
		t.Fatalf("body = %q, want %q", rec.Body.String(), want)
	}
}

// TestScenario4DoneDisarm reproduces the literal disarm scenario: /done
// rewrites action.cfg, and an immediate /boot then 404s.
func TestScenario4DoneDisarm(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, store.ActionPath(dir), "web01 = ubuntu-22.04,cloud\nweb02 = debian-12\n")
	writeFile(t, filepath.Join(store.HardwareDir(dir), "web01.cfg"), "mac=aa-bb-cc-dd-ee-ff\n")

	h := newHandlers(t, dir)
	mux := NewMux(h, HealthCheck{}, "test")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/done?mac=aa:bb:cc:dd:ee:ff", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	got, err := os.ReadFile(store.ActionPath(dir))
	if err != nil {
		t.Fatal(err)
	}
	want := "# web01 = ubuntu-22.04,cloud\nweb02 = debian-12\n"
	if string(got) != want {
		t.Fatalf("action.cfg = %q, want %q", got, want)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boot?mac=aa:bb:cc:dd:ee:ff", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	// A second /done for the same, now-disarmed host is still a 200.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/done?mac=aa:bb:cc:dd:ee:ff", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("idempotent /done status = %d, want 200", rec.Code)
	}
}

func TestBootUnknownMACReturns404(t *testing.T) {
	dir := t.TempDir()
	h := newHandlers(t, dir)
	mux := NewMux(h, HealthCheck{}, "test")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boot?mac=aa:bb:cc:dd:ee:ff", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestBootMalformedMACReturns400(t *testing.T) {
	dir := t.TempDir()
	h := newHandlers(t, dir)
	mux := NewMux(h, HealthCheck{}, "test")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boot?mac=not-a-mac", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// TestContentRawDownload exercises the whole-ISO download route, gated by
// the downloadable bit.
func TestContentRawDownload(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, store.AliasesPath(dir), "ubuntu-22.04 = ubuntu-22.04.iso,downloadable\ndebian-12 = debian-12.iso\n")
	isoPath := filepath.Join(store.ISODir(dir), "ubuntu-22.04.iso")
	writeFile(t, isoPath, "fake iso contents")

	h := newHandlers(t, dir)
	mux := NewMux(h, HealthCheck{}, "test")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/content/raw/ubuntu-22.04/ubuntu-22.04.iso", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "fake iso contents" {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if rec.Header().Get("Content-Disposition") == "" {
		t.Fatal("expected a Content-Disposition header")
	}

	// debian-12 is not downloadable: 403.
	writeFile(t, filepath.Join(store.ISODir(dir), "debian-12.iso"), "fake")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/content/raw/debian-12/debian-12.iso", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

// TestContentCombine exercises the named-recipe concatenation route,
// mixing an in-ISO source with a plain filesystem source.
func TestContentCombine(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, store.CombinePath(dir), "netboot = file:extra/a.bin,file:extra/b.bin\n")
	writeFile(t, filepath.Join(dir, "extra", "a.bin"), "AAA")
	writeFile(t, filepath.Join(dir, "extra", "b.bin"), "BB")

	h := newHandlers(t, dir)
	mux := NewMux(h, HealthCheck{}, "test")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/content/combine/netboot", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "AAABB" {
		t.Fatalf("body = %q, want AAABB", rec.Body.String())
	}
	if rec.Header().Get("Content-Length") != "5" {
		t.Fatalf("content-length = %q, want 5", rec.Header().Get("Content-Length"))
	}
}

func TestViewsRendersWithExplicitHostname(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(store.HardwareDir(dir), "web01.cfg"), "mac=aa-bb-cc-dd-ee-ff\ntimezone=UTC\n")
	writeFile(t, filepath.Join(store.ViewsDir(dir), "custom.j2"), "tz={{timezone}}")

	h := newHandlers(t, dir)
	mux := NewMux(h, HealthCheck{}, "test")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/views/custom.j2?hostname=web01", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "tz=UTC" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

// writeMinimalISOWithDir writes a synthetic ISO9660 image whose root
// directory contains a single subdirectory entry named "CASPER", with no
// files at all — just enough to exercise a path that resolves to a
// directory rather than a file.
func writeMinimalISOWithDir(t *testing.T, path string) {
	t.Helper()

	const sectorSize = 2048
	const rootLBA = 20
	const casperLBA = 21

	putLE32 := func(b []byte, v uint32) {
		b[0] = byte(v)
		b[1] = byte(v >> 8)
		b[2] = byte(v >> 16)
		b[3] = byte(v >> 24)
	}
	buildRecord := func(lba uint32, isDir bool, name string) []byte {
		var flags byte
		if isDir {
			flags = 0x02
		}
		var nameBytes []byte
		switch name {
		case ".":
			nameBytes = []byte{0}
		case "..":
			nameBytes = []byte{1}
		default:
			nameBytes = []byte(name)
		}
		recLen := 33 + len(nameBytes)
		if recLen%2 != 0 {
			recLen++
		}
		rec := make([]byte, recLen)
		rec[0] = byte(recLen)
		putLE32(rec[2:6], lba)
		putLE32(rec[10:14], sectorSize)
		rec[25] = flags
		rec[32] = byte(len(nameBytes))
		copy(rec[33:33+len(nameBytes)], nameBytes)
		return rec
	}

	rootEntries := append(buildRecord(rootLBA, true, "."), buildRecord(rootLBA, true, "..")...)
	rootEntries = append(rootEntries, buildRecord(casperLBA, true, "CASPER")...)
	casperEntries := append(buildRecord(casperLBA, true, "."), buildRecord(rootLBA, true, "..")...)

	pvd := make([]byte, sectorSize)
	copy(pvd[1:6], "CD001")
	rootRecord := buildRecord(rootLBA, true, ".")
	copy(pvd[156:190], rootRecord[:34])

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	writeAt := func(lba int, data []byte) {
		buf := make([]byte, sectorSize)
		copy(buf, data)
		if _, err := f.WriteAt(buf, int64(lba)*sectorSize); err != nil {
			t.Fatal(err)
		}
	}
	writeAt(16, pvd)
	writeAt(rootLBA, rootEntries)
	writeAt(casperLBA, casperEntries)
}

// TestISODirectoryPathReturns400 exercises rule 4's direct-extent-streaming
// path when the resolved path is itself a directory: it must reject with
// 400, not stream the raw directory records.
func TestISODirectoryPathReturns400(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, store.AliasesPath(dir), "ubuntu-22.04 = ubuntu-22.04.iso\n")
	writeMinimalISOWithDir(t, filepath.Join(store.ISODir(dir), "ubuntu-22.04.iso"))

	h := newHandlers(t, dir)
	mux := NewMux(h, HealthCheck{}, "test")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/iso/ubuntu-22.04/casper", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHealthCheckEndpoint(t *testing.T) {
	dir := t.TempDir()
	h := newHandlers(t, dir)
	mux := NewMux(h, HealthCheck{GitRev: "deadbeef"}, "test")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, healthCheckURI, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); !strings.Contains(got, "deadbeef") {
		t.Fatalf("body = %q, want it to contain the git rev", got)
	}
}
