package store

import (
	"bufio"
	"os"
)

// AliasEntry maps a release name to the ISO filename that backs it.
type AliasEntry struct {
	Filename     string
	Downloadable bool
}

// Aliases is the parsed contents of aliases.cfg: lines of
// "release = filename[,downloadable]".
type Aliases struct {
	entries map[string]AliasEntry
}

// LoadAliases reads path, or returns an empty table if it does not exist.
func LoadAliases(path string) (*Aliases, error) {
	entries := make(map[string]AliasEntry)

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return &Aliases{entries: entries}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		release, rest, ok := splitKV(sc.Text())
		if !ok {
			continue
		}
		parts := splitCSVList(rest)
		entry := AliasEntry{Filename: parts[0]}
		if len(parts) > 1 && parts[1] == "downloadable" {
			entry.Downloadable = true
		}
		entries[release] = entry
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return &Aliases{entries: entries}, nil
}

// Lookup returns the alias entry for release, if any.
func (a *Aliases) Lookup(release string) (AliasEntry, bool) {
	e, ok := a.entries[release]
	return e, ok
}

// Filename returns the ISO filename aliased to release.
func (a *Aliases) Filename(release string) (string, bool) {
	e, ok := a.entries[release]
	return e.Filename, ok
}

// Downloadable reports whether release is marked downloadable; absent
// releases are not downloadable.
func (a *Aliases) Downloadable(release string) bool {
	return a.entries[release].Downloadable
}
