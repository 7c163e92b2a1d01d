package store

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ActionEntry is one host's pending install: the release to boot and the
// automation profile to apply.
type ActionEntry struct {
	Release    string
	Automation string
}

// Action is the mutable action table: lines of
// "hostname = release[,automation]" in action.cfg. Automation defaults to
// "default" when omitted. MarkDone rewrites the backing file in place, so
// every access is guarded by mu: readers take a read lock, MarkDone takes
// the write lock for the whole read-modify-write-rewrite sequence.
type Action struct {
	mu      sync.RWMutex
	path    string
	entries map[string]ActionEntry
}

// LoadAction reads path, or returns an empty table if it does not exist.
// The path is retained so MarkDone can rewrite the file later.
func LoadAction(path string) (*Action, error) {
	entries := make(map[string]ActionEntry)

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return &Action{path: path, entries: entries}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		hostname, rest, ok := splitKV(sc.Text())
		if !ok {
			continue
		}
		parts := splitCSVList(rest)
		entry := ActionEntry{Release: parts[0], Automation: "default"}
		if len(parts) > 1 && parts[1] != "" {
			entry.Automation = parts[1]
		}
		entries[hostname] = entry
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return &Action{path: path, entries: entries}, nil
}

// Get returns hostname's pending action, if any.
func (a *Action) Get(hostname string) (ActionEntry, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.entries[hostname]
	return e, ok
}

// HasEntry reports whether hostname has a pending action.
func (a *Action) HasEntry(hostname string) bool {
	_, ok := a.Get(hostname)
	return ok
}

// MarkDone comments out hostname's line in action.cfg (prefixing it with
// "# ") and removes it from the in-memory table. It returns an error if
// the backing file is missing or hostname has no uncommented entry.
func (a *Action) MarkDone(hostname string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	content, err := os.ReadFile(a.path)
	if err != nil {
		return fmt.Errorf("action.cfg: %w", err)
	}

	lines := strings.Split(string(content), "\n")
	// A trailing "\n" produces one empty trailing element; strip it so the
	// rewritten file doesn't grow a blank line each round trip.
	trailingNewline := len(lines) > 0 && lines[len(lines)-1] == ""
	if trailingNewline {
		lines = lines[:len(lines)-1]
	}

	found := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		h, _, ok := strings.Cut(trimmed, "=")
		if !ok || strings.TrimSpace(h) != hostname {
			continue
		}
		lines[i] = "# " + line
		found = true
		break
	}

	if !found {
		return fmt.Errorf("hostname %q not found in action.cfg", hostname)
	}

	out := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(a.path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("action.cfg: %w", err)
	}

	delete(a.entries, hostname)
	return nil
}
