// Package rplidar decodes the SLAMTEC RPLIDAR A2 serial wire protocol.
//
// The protocol is half-duplex over a UART: the host sends two-byte command
// frames and the sensor answers with a 7-byte response descriptor followed
// by one or more fixed-size payloads. In scan mode the sensor streams
// 5-byte bit-packed range samples indefinitely; the link may drop,
// duplicate or misalign bytes, so the driver carries a self-resynchronizing
// byte-level state machine.
//
// ALL INFORMATION REGARDING THE PROTOCOL WAS DERIVED FROM THE RPLIDAR
// DATASHEET:
//
//	https://www.slamtec.com/en/Lidar
package rplidar

// Preamble starts every command frame and every response descriptor.
const Preamble = 0xA5

// descriptorSync is the second byte of a response descriptor.
const descriptorSync = 0x5A

// Command opcodes, sent as {Preamble, opcode}.
const (
	CmdStop            = 0x25 // exit scan mode, no response
	CmdScan            = 0x20 // enter scan mode: descriptor + sample stream
	CmdForceScan       = 0x21 // as CmdScan, output forced regardless of motor state
	CmdReset           = 0x40 // soft reboot: free-form firmware banner, no descriptor
	CmdGetDeviceInfo   = 0x50 // descriptor + device info payload
	CmdGetDeviceHealth = 0x52 // descriptor + 3-byte health payload
	CmdExpressScan     = 0x82 // express framing, not handled by this driver
)

// Fixed frame sizes.
const (
	DescriptorLength    = 7
	ScanPayloadLength   = 5
	HealthPayloadLength = 3
)

// ResponseKind identifies the payload stream a response descriptor
// announces.
type ResponseKind int

const (
	ResponseNone ResponseKind = iota
	ResponseScan
	ResponseHealth
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseScan:
		return "scan"
	case ResponseHealth:
		return "health"
	default:
		return "none"
	}
}

// Descriptor trailers (bytes 2-6: length-low, length-high, send-mode and
// the two data-type bytes) discriminating the payload kind.
var (
	scanTrailer   = [5]byte{0x05, 0x00, 0x00, 0x40, 0x81}
	healthTrailer = [5]byte{0x03, 0x00, 0x00, 0x00, 0x06}
)
