// Package config loads serabutd's configuration: compiled-in defaults,
// layered with an optional config file, then with environment variables
// and command-line flags, in that ascending order of precedence.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/peterbourgon/ff/v4/ffval"
)

// Config is serabutd's full runtime configuration.
type Config struct {
	// DataDir is the root of the persisted state layout: aliases.cfg,
	// combine.cfg, action.cfg, hardware/, iso/, views/.
	DataDir string
	// BindAddress is the address the orchestration HTTP server, the TFTP
	// server, and the passive capture socket bind. The proxyDHCP server
	// listens on 0.0.0.0 and uses BindAddress as its server identity.
	BindAddress string
	// Port is the orchestration HTTP server's listening port.
	Port int
	// TFTPPort is the TFTP server's listening port.
	TFTPPort int
	// BIOSFile and EFIFile are the boot filenames the proxyDHCP responder
	// advertises to legacy-BIOS and EFI clients respectively.
	BIOSFile string
	EFIFile  string
	// GitRev is stamped into the health-check response; set at build time.
	GitRev string
}

// NewConfig merges c onto serabutd's compiled-in defaults.
func NewConfig(c Config, gitRev string) *Config {
	defaults := Config{
		DataDir:     "/var/lib/serabutd",
		BindAddress: "0.0.0.0",
		Port:        8080,
		TFTPPort:    69,
		BIOSFile:    "undionly.kpxe",
		EFIFile:     "ipxe.efi",
		GitRev:      gitRev,
	}
	if err := mergo.Merge(&defaults, &c, mergo.WithOverride); err != nil {
		panic(fmt.Sprintf("failed to merge config: %v", err))
	}
	return &defaults
}

var (
	dataDirFlag = flagDef{Name: "data-dir", Usage: "data directory root (aliases.cfg, action.cfg, hardware/, iso/, views/)"}
	bindAddr    = flagDef{Name: "bind-address", Usage: "address to bind the HTTP, TFTP, and capture services to; also the proxyDHCP server identity"}
	portFlag    = flagDef{Name: "port", Usage: "orchestration HTTP server port"}
	tftpPort    = flagDef{Name: "tftp-port", Usage: "TFTP server port"}
	biosFile    = flagDef{Name: "bios-file", Usage: "boot filename advertised to legacy-BIOS proxyDHCP clients"}
	efiFile     = flagDef{Name: "efi-file", Usage: "boot filename advertised to EFI proxyDHCP clients"}
)

type flagDef struct {
	Name  string
	Usage string
}

// register adds f to fs, bound to fv, panicking on a duplicate name.
func register(fs *ff.FlagSet, f flagDef, fv flag.Value) {
	if _, err := fs.AddFlag(ff.FlagConfig{
		LongName: f.Name,
		Usage:    f.Usage,
		Value:    fv,
	}); err != nil {
		panic(err)
	}
}

// Load builds a Config from, in ascending precedence: compiled-in
// defaults, the file named by SERABUTD_CONFIG (if set), then
// SERABUTD_DATA_DIR/SERABUTD_BIND_ADDRESS/SERABUTD_PORT/SERABUTD_TFTP_PORT
// env vars or their equivalent command-line flags.
func Load(args []string, gitRev string) (*Config, error) {
	base := Config{}
	if path := os.Getenv("SERABUTD_CONFIG"); path != "" {
		fileCfg, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		base = *fileCfg
	}
	cfg := NewConfig(base, gitRev)

	fs := ff.NewFlagSet("serabutd")
	register(fs, dataDirFlag, ffval.NewValueDefault(&cfg.DataDir, cfg.DataDir))
	register(fs, bindAddr, ffval.NewValueDefault(&cfg.BindAddress, cfg.BindAddress))
	register(fs, portFlag, ffval.NewValueDefault(&cfg.Port, cfg.Port))
	register(fs, tftpPort, ffval.NewValueDefault(&cfg.TFTPPort, cfg.TFTPPort))
	register(fs, biosFile, ffval.NewValueDefault(&cfg.BIOSFile, cfg.BIOSFile))
	register(fs, efiFile, ffval.NewValueDefault(&cfg.EFIFile, cfg.EFIFile))

	cmd := &ff.Command{
		Name:  "serabutd",
		Usage: "serabutd [flags]",
		Flags: fs,
	}
	if err := cmd.Parse(args, ff.WithEnvVarPrefix("SERABUTD")); err != nil {
		e := errors.New(ffhelp.Command(cmd).String())
		if !errors.Is(err, ff.ErrHelp) {
			e = fmt.Errorf("%w\n%s", e, err)
		}
		return nil, e
	}

	return cfg, nil
}

// loadFile reads a config file in the same key=value grammar as the
// orchestration store's own config files (§6): trimmed lines, blank and
// "#"-prefixed lines skipped, "key = value".
func loadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := &Config{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		switch key {
		case "data_dir":
			cfg.DataDir = value
		case "bind_address":
			cfg.BindAddress = value
		case "port":
			p, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid port %q: %w", value, err)
			}
			cfg.Port = p
		case "tftp_port":
			p, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid tftp_port %q: %w", value, err)
			}
			cfg.TFTPPort = p
		case "bios_file":
			cfg.BIOSFile = value
		case "efi_file":
			cfg.EFIFile = value
		}
	}
	return cfg, sc.Err()
}
