// Package supervisor fans serabutd's independent network services — the
// passive capture pipeline, the proxyDHCP responder, the TFTP server, and
// the orchestration HTTP server — out onto their own goroutines and
// propagates the first failure.
package supervisor

import (
	"context"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
)

// Service is anything the supervisor can run to completion or
// cancellation. The protocol servers in this module (proxydhcp.Server,
// tftp.Server, the orchestration http.Config) satisfy it via their own
// ListenAndServe method; capture.Pipeline's Run method is adapted with
// ServiceFunc.
type Service interface {
	ListenAndServe(ctx context.Context) error
}

// ServiceFunc adapts a plain function to Service.
type ServiceFunc func(ctx context.Context) error

func (f ServiceFunc) ListenAndServe(ctx context.Context) error { return f(ctx) }

// Entry pairs a named Service with whether it should run at all. A
// disabled entry (including a zero-value Entry) is silently skipped.
type Entry struct {
	Name    string
	Enabled bool
	Service Service
}

// Run starts every enabled entry on its own goroutine and blocks until all
// of them have returned. When one returns a non-nil error, the group's
// derived context is canceled so the rest shut down too. The first error
// is returned, or nil if every service stopped cleanly.
func Run(ctx context.Context, log logr.Logger, entries ...Entry) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, e := range entries {
		if !e.Enabled {
			continue
		}
		e := e
		log.Info("starting service", "service", e.Name)
		g.Go(func() error {
			if err := e.Service.ListenAndServe(ctx); err != nil {
				log.Error(err, "service failure", "service", e.Name)
				return err
			}
			log.Info("service stopped", "service", e.Name)
			return nil
		})
	}

	return g.Wait()
}
