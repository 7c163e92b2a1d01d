package pxe

import (
	"net"
	"sync"
	"time"

	"github.com/tinkerbell/serabut/internal/dhcp4"
	"github.com/tinkerbell/serabut/internal/macaddr"
)

// transactionTTL is how long a tracked (xid, mac) entry remains valid.
const transactionTTL = 30 * time.Second

// BootEvent is emitted once per correlated DHCP packet.
type BootEvent struct {
	Timestamp   time.Time
	ClientMAC   string
	Xid         uint32
	MessageType dhcp4.MessageType
	AssignedIP  net.IP // set only for Offer/Ack
	ServerIP    net.IP // set only for Offer/Ack
	PXEInfo     Info
	// Kind distinguishes a client-originated request from a correlated
	// server response, mirroring the "client request"/"server response"
	// event labels in the detector description.
	Kind string
}

const (
	KindClientRequest  = "client request"
	KindServerResponse = "server response"
)

type txKey struct {
	xid uint32
	mac string
}

type trackedEntry struct {
	info       Info
	insertedAt time.Time
}

// Detector correlates DISCOVER/REQUEST packets with their OFFER/ACK
// replies across the (xid, chaddr) tuple. All access is guarded by a
// single mutex; entries older than 30s are opportunistically evicted on
// every write, bounding memory without a dedicated sweep goroutine.
type Detector struct {
	mu  sync.Mutex
	txs map[txKey]trackedEntry

	// now is overridable in tests; defaults to time.Now.
	now func() time.Time
}

// NewDetector returns a ready-to-use Detector.
func NewDetector() *Detector {
	return &Detector{
		txs: make(map[txKey]trackedEntry),
		now: time.Now,
	}
}

// Detect processes a single parsed DHCP packet and returns a BootEvent if
// one can be derived, per the message-type branching in the detector spec.
func (d *Detector) Detect(pkt *dhcp4.Packet) (*BootEvent, bool) {
	mt, ok := pkt.MessageType()
	if !ok {
		return nil, false
	}

	mac := macaddr.Format(pkt.CHAddr)
	key := txKey{xid: pkt.Xid, mac: mac}
	pxeInfo, havePXE := FromPacket(pkt)

	switch mt {
	case dhcp4.MessageTypeDiscover, dhcp4.MessageTypeRequest:
		if !havePXE {
			return nil, false
		}
		d.insert(key, pxeInfo)
		return &BootEvent{
			Timestamp:   d.now(),
			ClientMAC:   mac,
			Xid:         pkt.Xid,
			MessageType: mt,
			PXEInfo:     pxeInfo,
			Kind:        KindClientRequest,
		}, true

	case dhcp4.MessageTypeOffer, dhcp4.MessageTypeAck:
		if !havePXE {
			pxeInfo, havePXE = d.lookup(key)
		}
		if !havePXE {
			return nil, false
		}
		assigned := pkt.YIAddr
		if assigned == nil || assigned.IsUnspecified() {
			assigned = pkt.CIAddr
		}
		return &BootEvent{
			Timestamp:   d.now(),
			ClientMAC:   mac,
			Xid:         pkt.Xid,
			MessageType: mt,
			AssignedIP:  assigned,
			ServerIP:    pkt.SIAddr,
			PXEInfo:     pxeInfo,
			Kind:        KindServerResponse,
		}, true

	default:
		return nil, false
	}
}

func (d *Detector) insert(key txKey, info Info) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.evictExpiredLocked()
	d.txs[key] = trackedEntry{info: info, insertedAt: d.now()}
}

func (d *Detector) lookup(key txKey) (Info, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.evictExpiredLocked()
	e, ok := d.txs[key]
	if !ok {
		return Info{}, false
	}
	return e.info, true
}

// evictExpiredLocked removes entries older than transactionTTL. Callers
// must hold d.mu.
func (d *Detector) evictExpiredLocked() {
	now := d.now()
	for k, e := range d.txs {
		if now.Sub(e.insertedAt) > transactionTTL {
			delete(d.txs, k)
		}
	}
}
