// Package capture is the passive DHCP/PXE observer: it reads raw DHCP
// traffic from a packet source, correlates it through the PXE detector,
// and reports boot events to a sink. Per the design note on trait-based
// polymorphism for capture/reporter, both capabilities are modeled as
// small closed sets of implementations in this package rather than an
// open plugin interface — the rest of the system only ever holds a
// PacketSource or EventSink value, never backend-specific state.
package capture

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/go-logr/logr"

	"github.com/tinkerbell/serabut/internal/dhcp4"
	"github.com/tinkerbell/serabut/internal/pxe"
)

// RawPacket is one observed link/UDP-layer frame carrying a DHCP payload.
type RawPacket struct {
	Data   []byte
	SrcMAC net.HardwareAddr
	DstMAC net.HardwareAddr
}

// PacketSource produces a sequence of raw packets. The only two
// implementations are LiveSource (reads a real socket) and ReplaySource
// (replays a fixed, pre-recorded sequence — used in tests and offline
// analysis).
type PacketSource interface {
	// Next blocks until a packet is available, ctx is canceled, or the
	// source is exhausted (io.EOF for Replay).
	Next(ctx context.Context) (RawPacket, error)
}

// EventSink consumes boot events. Console logs them; Silent discards them.
type EventSink interface {
	Emit(ev pxe.BootEvent)
}

// ConsoleSink logs every event at V(0).
type ConsoleSink struct {
	Log logr.Logger
}

func (s ConsoleSink) Emit(ev pxe.BootEvent) {
	s.Log.Info("pxe boot event",
		"kind", ev.Kind,
		"mac", ev.ClientMAC,
		"xid", ev.Xid,
		"messageType", ev.MessageType.String(),
		"arch", ev.PXEInfo.ArchName(),
	)
}

// SilentSink discards every event.
type SilentSink struct{}

func (SilentSink) Emit(pxe.BootEvent) {}

// Pipeline wires a PacketSource through DHCP parsing and the PXE detector
// to an EventSink.
type Pipeline struct {
	Source   PacketSource
	Sink     EventSink
	Detector *pxe.Detector
	Log      logr.Logger
}

// NewPipeline returns a Pipeline with a fresh Detector and logr.Discard().
func NewPipeline(source PacketSource, sink EventSink) *Pipeline {
	return &Pipeline{Source: source, Sink: sink, Detector: pxe.NewDetector(), Log: logr.Discard()}
}

// Run reads packets until ctx is canceled or the source is exhausted.
// Malformed packets are dropped; only a parse failure on an individual
// packet is ignored, never the whole run.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		raw, err := p.Source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		pkt, err := dhcp4.Parse(raw.Data)
		if err != nil {
			p.Log.V(2).Info("capture: dropping malformed packet", "error", err)
			continue
		}
		if ev, ok := p.Detector.Detect(pkt); ok {
			p.Sink.Emit(*ev)
		}
	}
}
