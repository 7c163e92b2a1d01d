// Package armed is the on-disk format for the "armed MACs" side table
// (§6): a trivial persistent set of canonical MAC addresses, one per
// line, disjoint from the orchestration store's hostname-keyed action
// table. It backs the serabut CLI's arm/disarm/list subcommands.
package armed

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/tinkerbell/serabut/internal/macaddr"
)

// DefaultPath is the armed table's location under a data directory.
const DefaultPath = "armed.cfg"

// Table is the mutable set of armed MAC addresses, rewriting its backing
// file on every Arm/Disarm exactly as the orchestration store's Action
// table rewrites action.cfg on MarkDone.
type Table struct {
	mu   sync.Mutex
	path string
	macs map[string]struct{}
}

// Load reads path, or returns an empty table if it does not exist.
func Load(path string) (*Table, error) {
	macs := make(map[string]struct{})

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return &Table{path: path, macs: macs}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		macs[line] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return &Table{path: path, macs: macs}, nil
}

// Arm inserts mac, canonicalizing it first. It returns false if mac was
// already armed (a no-op write).
func (t *Table) Arm(mac string) (bool, error) {
	canon, err := macaddr.Canonical(mac)
	if err != nil {
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.macs[canon]; ok {
		return false, nil
	}
	t.macs[canon] = struct{}{}
	return true, t.save()
}

// Disarm removes mac. It returns false if mac was not armed and force is
// false; with force it always succeeds.
func (t *Table) Disarm(mac string, force bool) (bool, error) {
	canon, err := macaddr.Canonical(mac)
	if err != nil {
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.macs[canon]; !ok {
		return force, nil
	}
	delete(t.macs, canon)
	return true, t.save()
}

// IsArmed reports whether mac (in any accepted form) is currently armed.
func (t *Table) IsArmed(mac string) bool {
	canon, err := macaddr.Canonical(mac)
	if err != nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.macs[canon]
	return ok
}

// List returns every armed MAC in sorted order.
func (t *Table) List() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.macs))
	for mac := range t.macs {
		out = append(out, mac)
	}
	sort.Strings(out)
	return out
}

// save rewrites the backing file. Caller must hold t.mu.
func (t *Table) save() error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return err
	}
	macs := make([]string, 0, len(t.macs))
	for mac := range t.macs {
		macs = append(macs, mac)
	}
	sort.Strings(macs)

	var b strings.Builder
	for _, mac := range macs {
		b.WriteString(mac)
		b.WriteByte('\n')
	}
	return os.WriteFile(t.path, []byte(b.String()), 0o644)
}
