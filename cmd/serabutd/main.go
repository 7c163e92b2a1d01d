// Command serabutd is the PXE/iPXE boot daemon: it runs the passive
// capture pipeline, the proxyDHCP responder, the TFTP server, and the
// orchestration HTTP server side by side, shutting all of them down
// together on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"syscall"

	"github.com/go-logr/logr"

	"github.com/tinkerbell/serabut/internal/capture"
	"github.com/tinkerbell/serabut/internal/config"
	orchhttp "github.com/tinkerbell/serabut/internal/orchestration/http"
	"github.com/tinkerbell/serabut/internal/proxydhcp"
	"github.com/tinkerbell/serabut/internal/store"
	"github.com/tinkerbell/serabut/internal/supervisor"
	"github.com/tinkerbell/serabut/internal/tftp"
	"github.com/tinkerbell/serabut/internal/tmpl"
)

func main() {
	ctx, done := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM)
	defer done()

	if err := run(ctx, os.Args[1:]); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	gitRev := gitRevision()
	cfg, err := config.Load(args, gitRev)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := defaultLogger()
	log.Info("starting serabutd", "version", gitRev, "dataDir", cfg.DataDir)

	st, err := store.Load(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("loading orchestration store: %w", err)
	}

	handlers := &orchhttp.Handlers{
		Store:       st,
		Templates:   tmpl.NewRenderer(),
		DefaultPort: cfg.Port,
		Log:         log.WithValues("component", "http"),
	}
	httpServer := &orchhttp.Config{
		Addr:          net.JoinHostPort(cfg.BindAddress, strconv.Itoa(cfg.Port)),
		Handlers:      handlers,
		HealthCheck:   orchhttp.HealthCheck{GitRev: gitRev},
		OTelOperation: "serabutd",
		Logger:        log.WithValues("component", "http"),
	}

	proxyDHCPServer := proxydhcp.New(proxydhcp.Config{
		ServerIP: net.ParseIP(cfg.BindAddress),
		BIOSFile: cfg.BIOSFile,
		EFIFile:  cfg.EFIFile,
		Log:      log.WithValues("component", "proxydhcp"),
	})

	tftpServer := tftp.New(filepath.Join(cfg.DataDir, "tftp"), net.JoinHostPort(cfg.BindAddress, strconv.Itoa(cfg.TFTPPort)))
	tftpServer.Log = log.WithValues("component", "tftp")

	captureSource, err := capture.NewLiveSource(net.JoinHostPort(cfg.BindAddress, "67"))
	if err != nil {
		log.Error(err, "capture pipeline disabled: failed to open live source")
	}

	var captureEntry supervisor.Entry
	if captureSource != nil {
		defer captureSource.Close()
		pipeline := capture.NewPipeline(captureSource, capture.ConsoleSink{Log: log.WithValues("component", "capture")})
		pipeline.Log = log.WithValues("component", "capture")
		captureEntry = supervisor.Entry{
			Name:    "capture",
			Enabled: true,
			Service: supervisor.ServiceFunc(pipeline.Run),
		}
	}

	return supervisor.Run(ctx, log,
		supervisor.Entry{Name: "http", Enabled: true, Service: httpServer},
		supervisor.Entry{Name: "proxydhcp", Enabled: true, Service: proxyDHCPServer},
		supervisor.Entry{Name: "tftp", Enabled: true, Service: tftpServer},
		captureEntry,
	)
}

// defaultLogger uses the slog logr implementation, matching the
// teacher's own daemon entrypoint.
func defaultLogger() logr.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	l := slog.New(slog.NewJSONHandler(os.Stdout, opts))
	return logr.FromSlogHandler(l.Handler())
}

// gitRevision retrieves the revision of the current build. If the build
// contains uncommitted changes the revision is suffixed with "-dirty".
func gitRevision() string {
	var revision string
	var dirty bool

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty, _ = strconv.ParseBool(s.Value)
		}
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}
	if dirty {
		revision += "-dirty"
	}
	if revision == "" {
		return "unknown"
	}
	return revision
}
