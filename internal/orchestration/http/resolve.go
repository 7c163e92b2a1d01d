package http

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tinkerbell/serabut/internal/apperr"
	"github.com/tinkerbell/serabut/internal/iso9660"
	"github.com/tinkerbell/serabut/internal/store"
)

// isoPath resolves release to its backing ISO image path via the aliases
// table, erroring as NotFound when the release has no alias.
func (h *Handlers) isoPath(release string) (string, error) {
	alias, ok := h.Store.AliasOf(release)
	if !ok {
		return "", apperr.New(apperr.NotFound, "unknown release: "+release)
	}
	return filepath.Join(store.ISODir(h.Store.DataDir), alias.Filename), nil
}

// openISO opens an iso9660.Reader over release's backing image.
func (h *Handlers) openISO(release string) (*iso9660.Reader, error) {
	path, err := h.isoPath(release)
	if err != nil {
		return nil, err
	}
	return iso9660.Open(path), nil
}

// resolveCombine streams entry's ordered sources back to back, resolving
// each content: source against its release's ISO and each file: source
// against the data directory.
func (h *Handlers) resolveCombine(entry store.CombineEntry) (io.ReadCloser, int64, error) {
	var readers []io.ReadCloser
	var total int64

	for _, src := range entry.Sources {
		switch src.Kind {
		case store.SourceContent:
			reader, err := h.openISO(src.Release)
			if err != nil {
				closeAll(readers)
				return nil, 0, err
			}
			extent, err := reader.Lookup(src.Path)
			if err != nil {
				closeAll(readers)
				return nil, 0, apperr.Wrap(apperr.NotFound, "combine source not found: "+src.Release+"/"+src.Path, err)
			}
			stream, err := reader.Stream(extent)
			if err != nil {
				closeAll(readers)
				return nil, 0, apperr.Wrap(apperr.IO, "streaming combine source", err)
			}
			readers = append(readers, stream)
			total += int64(extent.Size)

		case store.SourceFile:
			full := filepath.Join(h.Store.DataDir, src.Path)
			f, err := os.Open(full)
			if err != nil {
				closeAll(readers)
				if os.IsNotExist(err) {
					return nil, 0, apperr.Wrap(apperr.NotFound, "combine source not found: "+src.Path, err)
				}
				return nil, 0, apperr.Wrap(apperr.IO, "opening combine source", err)
			}
			info, err := f.Stat()
			if err != nil {
				f.Close()
				closeAll(readers)
				return nil, 0, apperr.Wrap(apperr.IO, "stating combine source", err)
			}
			readers = append(readers, f)
			total += info.Size()
		}
	}

	return iso9660.Chain(readers...), total, nil
}

func closeAll(readers []io.ReadCloser) {
	for _, r := range readers {
		r.Close()
	}
}

// extractAutomationAndMAC recognizes the "automation/{automation}/{mac}/{file…}"
// path convention used by generic /iso templates to carry a target MAC
// without a query parameter, falling back to queryMAC otherwise.
func extractAutomationAndMAC(path, queryMAC string) (automation, mac string, err error) {
	parts := strings.Split(path, "/")
	if len(parts) >= 4 && parts[0] == "automation" {
		return parts[1], parts[2], nil
	}
	if queryMAC != "" {
		return "", queryMAC, nil
	}
	return "", "", apperr.New(apperr.BadRequest, "no MAC available for template rendering")
}

// parseHostPort splits a Host header on its last colon into host and port,
// falling back to defaultPort when the header carries none or fails to
// parse.
func parseHostPort(host string, defaultPort int) (string, int) {
	if i := strings.LastIndex(host, ":"); i >= 0 {
		if port, err := strconv.Atoi(host[i+1:]); err == nil {
			return host[:i], port
		}
	}
	return host, defaultPort
}
