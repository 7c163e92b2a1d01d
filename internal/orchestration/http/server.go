package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"
)

// Config configures the orchestration HTTP server's listener and
// instrumentation.
type Config struct {
	Addr          string
	Handlers      *Handlers
	HealthCheck   HealthCheck
	OTelOperation string
	Logger        logr.Logger
}

// ListenAndServe binds Config.Addr and serves until ctx is canceled, at
// which point it drains in-flight requests for up to 5 seconds before
// returning. Read/write timeouts follow the 5s/30s budget: short reads
// bound slow clients trickling in a request, the longer write budget
// accommodates large ISO streaming bodies without starving other
// connections indefinitely.
func (c *Config) ListenAndServe(ctx context.Context) error {
	handler := NewMux(c.Handlers, c.HealthCheck, c.OTelOperation)

	server := &http.Server{
		Addr:         c.Addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		c.Logger.Info("shutting down orchestration http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			c.Logger.Error(err, "http server shutdown")
		}
	}()

	c.Logger.Info("orchestration http server listening", "addr", c.Addr)
	if err := server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
