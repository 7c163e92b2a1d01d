package http

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-logr/logr"

	"github.com/tinkerbell/serabut/internal/apperr"
	"github.com/tinkerbell/serabut/internal/contenttype"
	"github.com/tinkerbell/serabut/internal/iso9660"
	"github.com/tinkerbell/serabut/internal/macaddr"
	"github.com/tinkerbell/serabut/internal/store"
	"github.com/tinkerbell/serabut/internal/tmpl"
)

// Handlers holds the orchestration HTTP server's dependencies: the
// in-memory config store, the template renderer, and the default port
// used when a request's Host header carries none.
type Handlers struct {
	Store       *store.Store
	Templates   *tmpl.Renderer
	DefaultPort int
	Log         logr.Logger
}

// writeError maps err to its HTTP status via apperr.HTTPStatus and writes
// it as a plain-text body.
func writeError(w http.ResponseWriter, log logr.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error(err, "request failed")
	}
	http.Error(w, err.Error(), status)
}

func writeBody(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(body)
}

// Boot handles GET /boot?mac={mac}: normalize the MAC, resolve it to a
// hostname and pending action, render that release's boot template.
func (h *Handlers) Boot(w http.ResponseWriter, r *http.Request) {
	mac, err := macaddr.Canonical(r.URL.Query().Get("mac"))
	if err != nil {
		writeError(w, h.Log, apperr.Wrap(apperr.BadRequest, "invalid mac", err))
		return
	}

	hostname, ok := h.Store.HostnameOf(mac)
	if !ok {
		writeError(w, h.Log, apperr.New(apperr.NotFound, "unknown mac: "+mac))
		return
	}

	action, ok := h.Store.ActionOf(hostname)
	if !ok {
		writeError(w, h.Log, apperr.New(apperr.NotFound, "no pending action for: "+hostname))
		return
	}

	host, port := parseHostPort(r.Host, h.DefaultPort)
	ctx, ok := h.Store.TemplateContext(hostname, host, port)
	if !ok {
		writeError(w, h.Log, apperr.New(apperr.NotFound, "no hardware record for: "+hostname))
		return
	}

	rendered, err := h.Templates.RenderFile(store.ViewPath(h.Store.DataDir, action.Release), ctx)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeBody(w, "text/plain; charset=utf-8", rendered)
}

// Done handles GET /done?mac={mac}: normalize the MAC, resolve it to a
// hostname, disarm its pending action. Idempotent: a host with no pending
// action already responds 200.
func (h *Handlers) Done(w http.ResponseWriter, r *http.Request) {
	mac, err := macaddr.Canonical(r.URL.Query().Get("mac"))
	if err != nil {
		writeError(w, h.Log, apperr.Wrap(apperr.BadRequest, "invalid mac", err))
		return
	}

	hostname, ok := h.Store.HostnameOf(mac)
	if !ok {
		writeError(w, h.Log, apperr.New(apperr.NotFound, "unknown mac: "+mac))
		return
	}

	if _, ok := h.Store.ActionOf(hostname); ok {
		if err := h.Store.MarkDone(hostname); err != nil {
			writeError(w, h.Log, apperr.Wrap(apperr.IO, "marking done", err))
			return
		}
	}

	writeBody(w, "text/plain; charset=utf-8", []byte("Installation marked complete for: "+hostname+"\n"))
}

// ISO handles GET /iso/{release}/{path...} with the four-way dispatch rule
// from the route table: initrd+firmware concat, whole-ISO download, view
// template, or direct ISO extent streaming.
func (h *Handlers) ISO(w http.ResponseWriter, r *http.Request) {
	release := r.PathValue("release")
	path := r.PathValue("path")

	// Rule 1: a combine recipe keyed "release/path" describes a
	// concatenation (initrd+firmware or similar) for this exact request.
	if entry, ok := h.Store.CombineOf(release + "/" + path); ok {
		stream, size, err := h.resolveCombine(entry)
		if err != nil {
			writeError(w, h.Log, err)
			return
		}
		defer stream.Close()
		h.stream(w, stream, size, contenttype.Guess(path))
		return
	}

	// Rule 2: path matches the release's aliased ISO filename exactly.
	if alias, ok := h.Store.AliasOf(release); ok && alias.Filename == path {
		if !alias.Downloadable {
			writeError(w, h.Log, apperr.New(apperr.Forbidden, "release is not downloadable: "+release))
			return
		}
		h.streamWholeISO(w, release, alias.Filename, "")
		return
	}

	// Rule 3: a view template exists at {views}/{release}/{path}.j2.
	templatePath := filepath.Join(store.ViewsDir(h.Store.DataDir), release, path+".j2")
	if _, err := os.Stat(templatePath); err == nil {
		h.renderISOTemplate(w, r, release, path, templatePath)
		return
	}

	// Rule 4: stream the path directly out of the ISO.
	reader, err := h.openISO(release)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	extent, err := reader.Lookup(path)
	if err != nil {
		writeError(w, h.Log, apperr.Wrap(apperr.NotFound, "not found in iso: "+path, err))
		return
	}
	if extent.IsDir {
		writeError(w, h.Log, apperr.Wrap(apperr.BadRequest, "path is a directory: "+path, &iso9660.IsDirectory{Path: path}))
		return
	}
	stream, err := reader.Stream(extent)
	if err != nil {
		writeError(w, h.Log, apperr.Wrap(apperr.IO, "streaming from iso", err))
		return
	}
	defer stream.Close()
	h.stream(w, stream, int64(extent.Size), contenttype.Guess(path))
}

func (h *Handlers) renderISOTemplate(w http.ResponseWriter, r *http.Request, release, path, templatePath string) {
	automation, mac, err := extractAutomationAndMAC(path, r.URL.Query().Get("mac"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	mac, err = macaddr.Canonical(mac)
	if err != nil {
		writeError(w, h.Log, apperr.Wrap(apperr.BadRequest, "invalid mac", err))
		return
	}

	hostname, ok := h.Store.HostnameOf(mac)
	if !ok {
		writeError(w, h.Log, apperr.New(apperr.NotFound, "unknown mac: "+mac))
		return
	}

	host, port := parseHostPort(r.Host, h.DefaultPort)
	ctx, ok := h.Store.TemplateContext(hostname, host, port)
	if !ok {
		writeError(w, h.Log, apperr.New(apperr.NotFound, "no hardware record for: "+hostname))
		return
	}
	ctx["release"] = release
	if automation != "" {
		ctx["automation"] = automation
	}

	rendered, err := h.Templates.RenderFile(templatePath, ctx)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeBody(w, contenttype.Guess(path), rendered)
}

// ContentCombine handles GET /content/combine/{name}: stream the recipe
// named by the combine table.
func (h *Handlers) ContentCombine(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	entry, ok := h.Store.CombineOf(name)
	if !ok {
		writeError(w, h.Log, apperr.New(apperr.NotFound, "unknown combine recipe: "+name))
		return
	}
	stream, size, err := h.resolveCombine(entry)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	defer stream.Close()
	h.stream(w, stream, size, contenttype.Guess(name))
}

// ContentRaw handles GET /content/raw/{release}/{filename}: a whole-ISO
// attachment download, gated by the downloadable bit and an exact filename
// match.
func (h *Handlers) ContentRaw(w http.ResponseWriter, r *http.Request) {
	release := r.PathValue("release")
	filename := r.PathValue("filename")

	alias, ok := h.Store.AliasOf(release)
	if !ok {
		writeError(w, h.Log, apperr.New(apperr.NotFound, "unknown release: "+release))
		return
	}
	if alias.Filename != filename {
		writeError(w, h.Log, apperr.New(apperr.BadRequest, "filename does not match release alias"))
		return
	}
	if !alias.Downloadable {
		writeError(w, h.Log, apperr.New(apperr.Forbidden, "release is not downloadable: "+release))
		return
	}
	h.streamWholeISO(w, release, filename, "attachment; filename=\""+filename+"\"")
}

func (h *Handlers) streamWholeISO(w http.ResponseWriter, release, filename, disposition string) {
	path, err := h.isoPath(release)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		writeError(w, h.Log, apperr.Wrap(apperr.IO, "opening iso file", err))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, h.Log, apperr.Wrap(apperr.IO, "stating iso file", err))
		return
	}
	if disposition != "" {
		w.Header().Set("Content-Disposition", disposition)
	}
	h.stream(w, f, info.Size(), "application/octet-stream")
}

// Views handles GET /views/{path...}?hostname={h}: render a named template
// with an explicit, caller-supplied hostname rather than one derived from a
// MAC lookup.
func (h *Handlers) Views(w http.ResponseWriter, r *http.Request) {
	hostname := r.URL.Query().Get("hostname")
	if hostname == "" {
		writeError(w, h.Log, apperr.New(apperr.BadRequest, "missing hostname query parameter"))
		return
	}

	path := r.PathValue("path")
	templatePath := filepath.Join(store.ViewsDir(h.Store.DataDir), path)
	if _, err := os.Stat(templatePath); err != nil {
		writeError(w, h.Log, apperr.New(apperr.NotFound, "template not found: "+path))
		return
	}

	host, port := parseHostPort(r.Host, h.DefaultPort)
	ctx, ok := h.Store.TemplateContext(hostname, host, port)
	if !ok {
		writeError(w, h.Log, apperr.New(apperr.NotFound, "no hardware record for: "+hostname))
		return
	}

	rendered, err := h.Templates.RenderFile(templatePath, ctx)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeBody(w, "text/plain; charset=utf-8", rendered)
}

// stream copies body to w, setting Content-Type and an exact Content-Length
// up front so clients can size the transfer before the first byte arrives.
func (h *Handlers) stream(w http.ResponseWriter, body io.Reader, size int64, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	io.Copy(w, body) //nolint:errcheck // a write failure means the client went away; nothing to do about it
}
