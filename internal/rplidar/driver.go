package rplidar

import (
	"io"
	"time"

	"github.com/banshee-data/proximity/internal/monitoring"
	"github.com/banshee-data/proximity/internal/timeutil"
)

// state tracks the framer's position in the wire protocol.
type state int

const (
	stateUnknown state = iota // recovery: hunting for a preamble
	stateReset                // draining the post-reset firmware banner
	stateResponding           // accumulating a 7-byte response descriptor
	stateMeasuring            // accumulating fixed-size scan samples
	stateHealth               // awaiting a health payload, then back to scanning
)

func (s state) String() string {
	switch s {
	case stateReset:
		return "reset"
	case stateResponding:
		return "responding"
	case stateMeasuring:
		return "measuring"
	case stateHealth:
		return "health"
	default:
		return "unknown"
	}
}

// Protocol recovery limits.
const (
	systemInfoMax  = 62 // max firmware banner bytes after a reset
	resetRetryMax  = 5  // non-banner bytes tolerated before giving up on the banner
	unknownByteMax = 10 // consecutive non-preamble bytes before a hardware reset
	maxRedispatch  = 2  // bound on same-byte reprocessing across state changes
)

// resyncMask and resyncMatch select bytes that can begin a scan sample:
// the start bit and its complement occupy the two low bits and exactly one
// of them is set, with bit 0 clear only on a revolution boundary marker.
const (
	resyncMask  = 0x03
	resyncMatch = 0x01
)

// resetBannerMarker optionally precedes the firmware banner emitted after a
// hardware reset. It happens to share its value with CmdGetDeviceHealth.
const resetBannerMarker = 0x52

// Status is the driver-level link health reported to the host after each
// Update pass.
type Status int

const (
	// StatusNoData means no valid sample arrived within the activity window.
	StatusNoData Status = iota
	// StatusGood means the sample stream is live.
	StatusGood
)

// PointConsumer receives every validly decoded scan point, including points
// below the sensor's minimum range (consumers apply their own gating).
type PointConsumer interface {
	Consume(p ScanPoint)
}

// StatusSink receives the link health signal.
type StatusSink interface {
	SetStatus(s Status)
}

// HealthSink receives decoded sensor health payloads.
type HealthSink interface {
	SensorHealth(h Health)
}

// Params carries the driver's tunable timing and range constants.
type Params struct {
	// ResyncTimeout bounds how long the framer scans for a sample boundary
	// after a framing failure before escalating to a hardware reset.
	ResyncTimeout time.Duration

	// ActivityTimeout is the window without an accepted sample after which
	// the link is reported as StatusNoData.
	ActivityTimeout time.Duration

	// MinDistanceM and MaxDistanceM are the sensor's usable range.
	MinDistanceM float64
	MaxDistanceM float64
}

// DefaultParams returns the constants for the 16 m RPLIDAR A2.
func DefaultParams() Params {
	return Params{
		ResyncTimeout:   5 * time.Second,
		ActivityTimeout: 200 * time.Millisecond,
		MinDistanceM:    0.20,
		MaxDistanceM:    16.0,
	}
}

// Driver owns the byte framer and packet decoder for one sensor. It is
// driven from a single periodic tick via Update and holds all protocol
// state itself; it must not be shared across goroutines and takes no locks.
type Driver struct {
	port   io.ReadWriter
	clock  timeutil.Clock
	params Params

	consumers  []PointConsumer
	statusSink StatusSink
	healthSink HealthSink

	st          state
	initialised bool

	// Firmware banner captured while in stateReset.
	sysinfo    [systemInfoMax]byte
	sysinfoLen int
	bannerSeen bool // marker byte observed, accumulate until saturation

	descriptor   [DescriptorLength]byte
	inDescriptor bool

	payload    [ScanPayloadLength]byte
	payloadLen int
	byteCount  int

	resetRetries int // non-banner bytes seen in stateReset
	unknownBytes int // consecutive non-preamble bytes in stateUnknown
	syncErrors   int // failed framing checks pending resynchronization

	resetted    bool
	lastRequest time.Time
	lastReset   time.Time
	lastSample  time.Time

	scratch [256]byte
}

// NewDriver creates a driver for the given port. The port's Read must be
// non-blocking or bounded by a short timeout; Update drains it each tick.
func NewDriver(port io.ReadWriter, clock timeutil.Clock, params Params) *Driver {
	return &Driver{
		port:   port,
		clock:  clock,
		params: params,
	}
}

// AddConsumer registers a consumer of decoded scan points. Consumers run
// synchronously on the tick goroutine in registration order.
func (d *Driver) AddConsumer(c PointConsumer) {
	d.consumers = append(d.consumers, c)
}

// SetStatusSink registers the link health sink.
func (d *Driver) SetStatusSink(s StatusSink) {
	d.statusSink = s
}

// SetHealthSink registers the sensor health sink.
func (d *Driver) SetHealthSink(s HealthSink) {
	d.healthSink = s
}

// MinDistance returns the sensor's minimum usable range in meters.
func (d *Driver) MinDistance() float64 { return d.params.MinDistanceM }

// MaxDistance returns the sensor's maximum range in meters.
func (d *Driver) MaxDistance() float64 { return d.params.MaxDistanceM }

// SystemInfo returns a copy of the firmware banner captured after the most
// recent hardware reset.
func (d *Driver) SystemInfo() []byte {
	out := make([]byte, d.sysinfoLen)
	copy(out, d.sysinfo[:d.sysinfoLen])
	return out
}

// Update runs one cooperative tick: on first call it resets the sensor to
// reach a known state, then it drains every byte currently buffered on the
// port through the state machine and reports link health. It never blocks
// beyond the port's read timeout.
func (d *Driver) Update() {
	if !d.initialised {
		d.reset()
		d.initialised = true
	}

	for {
		n, err := d.port.Read(d.scratch[:])
		for _, c := range d.scratch[:n] {
			d.processByte(c)
		}
		if err != nil {
			if err != io.EOF {
				monitoring.Logf("rplidar: port read: %v", err)
			}
			break
		}
		if n == 0 {
			break
		}
	}

	d.reportStatus()
}

// RequestHealth asks the sensor for a health report. The response
// descriptor routes the framer into the health state, where the payload is
// decoded and surfaced through the health sink before scanning resumes.
func (d *Driver) RequestHealth() {
	d.sendCommand(CmdGetDeviceHealth)
	d.byteCount = 0
	d.inDescriptor = false
	d.st = stateResponding
}

// Stop asks the sensor to leave scan mode. There is no response frame.
func (d *Driver) Stop() {
	d.sendCommand(CmdStop)
}

// processByte dispatches one byte under the current state. A state change
// may request that the same byte be reprocessed under the new state (the
// preamble found while hunting doubles as the first descriptor byte); the
// loop bound guarantees termination.
func (d *Driver) processByte(c byte) {
	for i := 0; i < maxRedispatch; i++ {
		if !d.dispatch(c) {
			return
		}
	}
}

func (d *Driver) dispatch(c byte) (redispatch bool) {
	switch d.st {
	case stateReset:
		d.handleReset(c)
	case stateResponding:
		d.handleResponding(c)
	case stateMeasuring:
		d.handleMeasuring(c)
	case stateHealth:
		d.handleHealth(c)
	default:
		return d.handleUnknown(c)
	}
	return false
}

// handleReset drains the free-form firmware banner the sensor emits after
// a hardware reset: up to 62 bytes, optionally led by a marker byte. Once
// the banner ends the driver enters scan mode; if no banner materializes
// within a small retry budget the framer falls back to recovery.
func (d *Driver) handleReset(c byte) {
	if (c == resetBannerMarker || d.bannerSeen) && d.sysinfoLen < systemInfoMax {
		if c == resetBannerMarker {
			d.bannerSeen = true
		}
		d.sysinfo[d.sysinfoLen] = c
		d.sysinfoLen++
		return
	}

	if d.bannerSeen {
		monitoring.Logf("rplidar: captured firmware banner (%d bytes)", d.sysinfoLen)
		d.bannerSeen = false
		d.setScanMode()
		return
	}

	if d.resetRetries > resetRetryMax {
		d.resetRetries = 0
		d.st = stateUnknown
		return
	}
	d.resetRetries++
}

// handleResponding accumulates the 7-byte response descriptor. The first
// byte must be the preamble; anything else sends the framer to recovery.
func (d *Driver) handleResponding(c byte) {
	if c != Preamble && !d.inDescriptor {
		d.st = stateUnknown
		return
	}
	d.inDescriptor = true
	d.descriptor[d.byteCount] = c
	d.byteCount++
	if d.byteCount < DescriptorLength {
		return
	}
	d.byteCount = 0
	d.inDescriptor = false

	kind, payloadLen, err := ParseDescriptor(d.descriptor[:])
	if err != nil {
		monitoring.Logf("rplidar: %v", err)
		d.st = stateUnknown
		return
	}

	d.payloadLen = payloadLen
	d.lastSample = d.clock.Now()
	switch kind {
	case ResponseScan:
		d.st = stateMeasuring
	case ResponseHealth:
		d.st = stateHealth
	}
}

// handleMeasuring accumulates fixed-size scan samples. After a framing
// failure every byte is tested against the sample-start bit pattern instead
// of being accumulated; a match resumes accumulation from that byte, and a
// persistent failure escalates to a hardware reset.
func (d *Driver) handleMeasuring(c byte) {
	if d.syncErrors > 0 {
		if c&resyncMask != resyncMatch {
			if d.clock.Since(d.lastSample) > d.params.ResyncTimeout {
				monitoring.Logf("rplidar: resync timed out after %d framing errors, resetting", d.syncErrors)
				d.reset()
			}
			return
		}
		d.syncErrors = 0
	}

	d.payload[d.byteCount] = c
	d.byteCount++
	if d.byteCount < d.payloadLen {
		return
	}
	d.byteCount = 0

	point, err := DecodeScanPayload(d.payload[:d.payloadLen])
	if err != nil {
		// Recoverable: scan byte-by-byte for the next sample boundary.
		d.syncErrors++
		return
	}

	d.lastSample = d.clock.Now()
	for _, consumer := range d.consumers {
		consumer.Consume(point)
	}
}

// handleHealth accumulates the single health payload announced by the
// descriptor and reports it. The health exchange suspends the sample
// stream, so once the payload is complete the driver requests scan mode
// again rather than parking.
func (d *Driver) handleHealth(c byte) {
	if d.payloadLen == 0 || d.payloadLen > HealthPayloadLength {
		return
	}

	d.payload[d.byteCount] = c
	d.byteCount++
	if d.byteCount < d.payloadLen {
		return
	}
	d.byteCount = 0
	d.payloadLen = 0

	health, err := DecodeHealthPayload(d.payload[:HealthPayloadLength])
	if err != nil {
		monitoring.Logf("rplidar: %v", err)
		d.setScanMode()
		return
	}
	if health.HardwareError() {
		monitoring.Logf("rplidar: sensor reports hardware error (code %#04x)", health.ErrorCode)
	}
	if d.healthSink != nil {
		d.healthSink.SensorHealth(health)
	}
	d.setScanMode()
}

// handleUnknown hunts for a preamble. The preamble doubles as the first
// descriptor byte, so the same byte is redispatched under the responding
// state rather than consumed. Too many strange bytes force a hardware
// reset.
func (d *Driver) handleUnknown(c byte) (redispatch bool) {
	if c == Preamble {
		d.unknownBytes = 0
		d.byteCount = 0
		d.inDescriptor = false
		d.st = stateResponding
		return true
	}

	d.unknownBytes++
	if d.unknownBytes > unknownByteMax {
		d.unknownBytes = 0
		d.reset()
	}
	return false
}

// sendCommand writes a two-byte command frame and stamps the request time.
func (d *Driver) sendCommand(cmd byte) {
	if _, err := d.port.Write([]byte{Preamble, cmd}); err != nil {
		monitoring.Logf("rplidar: write command %#02x: %v", cmd, err)
	}
	d.lastRequest = d.clock.Now()
}

// reset issues the soft-reboot command and re-arms the whole state machine.
func (d *Driver) reset() {
	d.sendCommand(CmdReset)
	d.resetted = true
	d.lastReset = d.clock.Now()

	d.st = stateReset
	d.byteCount = 0
	d.payloadLen = 0
	d.sysinfoLen = 0
	d.bannerSeen = false
	d.inDescriptor = false
	d.resetRetries = 0
	d.unknownBytes = 0
	d.syncErrors = 0
}

// setScanMode requests the continuous sample stream.
func (d *Driver) setScanMode() {
	d.sendCommand(CmdScan)
	d.byteCount = 0
	d.inDescriptor = false
	d.st = stateResponding
}

// reportStatus surfaces link health based on the communication activity
// window. A stale or absent sample stream degrades to StatusNoData; this is
// advisory and never treated as a driver fault.
func (d *Driver) reportStatus() {
	if d.statusSink == nil {
		return
	}
	if d.lastSample.IsZero() || d.clock.Since(d.lastSample) > d.params.ActivityTimeout {
		d.statusSink.SetStatus(StatusNoData)
	} else {
		d.statusSink.SetStatus(StatusGood)
	}
}
