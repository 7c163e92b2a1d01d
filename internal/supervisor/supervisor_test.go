package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr"
)

func TestRunPropagatesFirstError(t *testing.T) {
	wantErr := errors.New("boom")
	err := Run(context.Background(), logr.Discard(),
		Entry{Name: "ok", Enabled: true, Service: ServiceFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		})},
		Entry{Name: "bad", Enabled: true, Service: ServiceFunc(func(context.Context) error {
			return wantErr
		})},
	)
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

func TestRunSkipsDisabledEntries(t *testing.T) {
	ran := false
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := Run(ctx, logr.Discard(),
		Entry{Name: "disabled", Enabled: false, Service: ServiceFunc(func(context.Context) error {
			ran = true
			return nil
		})},
	)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("unexpected error: %v", err)
	}
	if ran {
		t.Fatal("disabled entry should not run")
	}
}

func TestRunReturnsNilWhenAllServicesStopCleanly(t *testing.T) {
	err := Run(context.Background(), logr.Discard(),
		Entry{Name: "quick", Enabled: true, Service: ServiceFunc(func(context.Context) error {
			return nil
		})},
	)
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
}
