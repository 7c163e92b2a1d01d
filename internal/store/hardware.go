package store

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/tinkerbell/serabut/internal/macaddr"
)

// Hardware is the parsed hardware/*.cfg inventory: one file per host
// (filename stem = hostname), each a flat key=value record. The "mac"
// field is normalized on load and additionally indexed MAC→hostname.
type Hardware struct {
	entries       map[string]map[string]string
	macToHostname map[string]string
}

// LoadHardware reads every *.cfg file under dir, or returns an empty
// table if dir does not exist. Per spec, there is no hot-reload: the
// inventory is fixed for the process lifetime once loaded.
func LoadHardware(dir string) (*Hardware, error) {
	h := &Hardware{
		entries:       make(map[string]map[string]string),
		macToHostname: make(map[string]string),
	}

	ents, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return h, nil
	}
	if err != nil {
		return nil, err
	}

	for _, de := range ents {
		if de.IsDir() || filepath.Ext(de.Name()) != ".cfg" {
			continue
		}
		hostname := strings.TrimSuffix(de.Name(), ".cfg")

		f, err := os.Open(filepath.Join(dir, de.Name()))
		if err != nil {
			return nil, err
		}
		record := make(map[string]string)

		sc := bufio.NewScanner(f)
		for sc.Scan() {
			key, value, ok := splitKV(sc.Text())
			if !ok {
				continue
			}
			if key == "mac" {
				norm, err := macaddr.Canonical(value)
				if err != nil {
					continue // malformed mac: line skipped, never aborts the whole file.
				}
				value = norm
				h.macToHostname[norm] = hostname
			}
			record[key] = value
		}
		scErr := sc.Err()
		f.Close()
		if scErr != nil {
			return nil, scErr
		}

		h.entries[hostname] = record
	}
	return h, nil
}

// Record returns hostname's flat key=value hardware record.
func (h *Hardware) Record(hostname string) (map[string]string, bool) {
	r, ok := h.entries[hostname]
	return r, ok
}

// HostnameByMAC resolves a MAC address (any accepted delimiter form) to
// its hostname.
func (h *Hardware) HostnameByMAC(mac string) (string, bool) {
	norm, err := macaddr.Canonical(mac)
	if err != nil {
		return "", false
	}
	hostname, ok := h.macToHostname[norm]
	return hostname, ok
}
