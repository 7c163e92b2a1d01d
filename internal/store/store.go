package store

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Store is the orchestration store: in-memory maps of aliases, hardware,
// combine recipes, and the mutable action table, all loaded from a single
// data directory.
type Store struct {
	DataDir  string
	Aliases  *Aliases
	Combine  *Combine
	Action   *Action
	Hardware *Hardware
}

// Paths matches the persisted state layout: aliases.cfg, combine.cfg,
// action.cfg, and hardware/ directly under dir.
func AliasesPath(dir string) string { return filepath.Join(dir, "aliases.cfg") }
func CombinePath(dir string) string { return filepath.Join(dir, "combine.cfg") }
func ActionPath(dir string) string  { return filepath.Join(dir, "action.cfg") }
func HardwareDir(dir string) string { return filepath.Join(dir, "hardware") }
func ISODir(dir string) string      { return filepath.Join(dir, "iso") }
func ViewsDir(dir string) string    { return filepath.Join(dir, "views") }

// Load reads all four config sources rooted at dataDir.
func Load(dataDir string) (*Store, error) {
	aliases, err := LoadAliases(AliasesPath(dataDir))
	if err != nil {
		return nil, err
	}
	combine, err := LoadCombine(CombinePath(dataDir))
	if err != nil {
		return nil, err
	}
	action, err := LoadAction(ActionPath(dataDir))
	if err != nil {
		return nil, err
	}
	hardware, err := LoadHardware(HardwareDir(dataDir))
	if err != nil {
		return nil, err
	}
	return &Store{
		DataDir:  dataDir,
		Aliases:  aliases,
		Combine:  combine,
		Action:   action,
		Hardware: hardware,
	}, nil
}

// AliasOf looks up a release's ISO alias entry.
func (s *Store) AliasOf(release string) (AliasEntry, bool) { return s.Aliases.Lookup(release) }

// CombineOf looks up a combine recipe by name.
func (s *Store) CombineOf(name string) (CombineEntry, bool) { return s.Combine.Lookup(name) }

// HardwareOf looks up a host's hardware record.
func (s *Store) HardwareOf(hostname string) (map[string]string, bool) {
	return s.Hardware.Record(hostname)
}

// HostnameOf resolves a MAC address to its hostname.
func (s *Store) HostnameOf(mac string) (string, bool) { return s.Hardware.HostnameByMAC(mac) }

// ActionOf looks up a host's pending action entry.
func (s *Store) ActionOf(hostname string) (ActionEntry, bool) { return s.Action.Get(hostname) }

// MarkDone disarms hostname's pending action.
func (s *Store) MarkDone(hostname string) error { return s.Action.MarkDone(hostname) }

// osFamilyByDistroPrefix and distroByPrefix classify a release's leading
// "-"-delimited field, mirroring the original implementation's
// derive_os/derive_distro pair exactly (same prefix table, same
// "unknown" fallback).
var osFamilyByDistroPrefix = map[string]string{
	"debian": "linux",
	"ubuntu": "linux",
	"rocky":  "linux",
	"alma":   "linux",
	"centos": "linux",

	"freebsd": "bsd",
	"openbsd": "bsd",
	"netbsd":  "bsd",
}

var knownDistroPrefixes = map[string]bool{
	"debian": true, "ubuntu": true, "rocky": true, "alma": true, "centos": true,
	"freebsd": true, "openbsd": true, "netbsd": true,
}

// DeriveOS returns the OS family ("linux", "bsd", or "unknown") for a
// release name, taken from its leading "-"-delimited field.
func DeriveOS(release string) string {
	prefix, _, _ := strings.Cut(release, "-")
	if os, ok := osFamilyByDistroPrefix[prefix]; ok {
		return os
	}
	return "unknown"
}

// DeriveDistro returns the distro name ("ubuntu", "debian", …, or
// "unknown") for a release name, taken from its leading "-"-delimited
// field.
func DeriveDistro(release string) string {
	prefix, _, _ := strings.Cut(release, "-")
	if knownDistroPrefixes[prefix] {
		return prefix
	}
	return "unknown"
}

// TemplateContext builds the string-keyed rendering context for hostname:
// server identity (host, port), hostname, the host's pending action
// (release, automation, derived os/distro), and every key=value from its
// hardware record. ok is false only when hostname has no hardware record
// at all; a host with hardware but no pending action still yields a
// context missing release/automation/os/distro, matching the original's
// "insert only if present" behavior.
func (s *Store) TemplateContext(hostname, host string, port int) (map[string]string, bool) {
	hw, ok := s.Hardware.Record(hostname)
	if !ok {
		return nil, false
	}

	ctx := make(map[string]string, len(hw)+6)
	for k, v := range hw {
		ctx[k] = v
	}
	ctx["host"] = host
	ctx["port"] = strconv.Itoa(port)
	ctx["hostname"] = hostname

	if action, ok := s.Action.Get(hostname); ok {
		ctx["release"] = action.Release
		ctx["automation"] = action.Automation
		ctx["os"] = DeriveOS(action.Release)
		ctx["distro"] = DeriveDistro(action.Release)
	}

	return ctx, true
}

// ViewPath builds the template file path for a release, following
// views/{os}/{distro}/{release}/boot.ipxe.j2.
func ViewPath(dataDir, release string) string {
	return filepath.Join(ViewsDir(dataDir), DeriveOS(release), DeriveDistro(release), release, "boot.ipxe.j2")
}
