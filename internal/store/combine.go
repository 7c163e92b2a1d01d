package store

import (
	"bufio"
	"os"
	"strings"
)

// CombineSourceKind distinguishes an in-ISO path from a plain filesystem
// path in a combine recipe.
type CombineSourceKind int

const (
	// SourceContent reads a path from inside an aliased release's ISO.
	SourceContent CombineSourceKind = iota
	// SourceFile reads a path relative to the data directory.
	SourceFile
)

// CombineSource is one ordered ingredient of a combine recipe.
type CombineSource struct {
	Kind CombineSourceKind
	// Release and Path are set for SourceContent ("content:release/path").
	Release string
	// Path is the in-ISO path for SourceContent, or the filesystem path
	// (relative to the data directory) for SourceFile.
	Path string
}

// CombineEntry is the ordered list of sources concatenated to build one
// named combine recipe's output.
type CombineEntry struct {
	Sources []CombineSource
}

// Combine is the parsed contents of combine.cfg: lines of
// "name = source1,source2,…".
type Combine struct {
	entries map[string]CombineEntry
}

// LoadCombine reads path, or returns an empty table if it does not exist.
func LoadCombine(path string) (*Combine, error) {
	entries := make(map[string]CombineEntry)

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return &Combine{entries: entries}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		name, rest, ok := splitKV(sc.Text())
		if !ok {
			continue
		}

		var sources []CombineSource
		for _, raw := range splitCSVList(rest) {
			switch {
			case strings.HasPrefix(raw, "content:"):
				spec := strings.TrimPrefix(raw, "content:")
				release, p, found := strings.Cut(spec, "/")
				if !found {
					continue
				}
				sources = append(sources, CombineSource{Kind: SourceContent, Release: release, Path: p})
			case strings.HasPrefix(raw, "file:"):
				sources = append(sources, CombineSource{Kind: SourceFile, Path: strings.TrimPrefix(raw, "file:")})
			}
		}

		if len(sources) > 0 {
			entries[name] = CombineEntry{Sources: sources}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return &Combine{entries: entries}, nil
}

// Lookup returns the combine recipe named name, if any.
func (c *Combine) Lookup(name string) (CombineEntry, bool) {
	e, ok := c.entries[name]
	return e, ok
}
