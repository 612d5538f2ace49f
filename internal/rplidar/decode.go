package rplidar

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidDescriptor reports a descriptor with a bad sync pair or an
	// unrecognized trailer.
	ErrInvalidDescriptor = errors.New("invalid response descriptor")

	// ErrInvalidScanPayload reports a scan sample whose start bits are not
	// complementary or whose check bit is clear.
	ErrInvalidScanPayload = errors.New("invalid scan payload")
)

// ScanPoint is one decoded range sample.
type ScanPoint struct {
	AngleDeg  float64 // beam heading, [0,360)
	DistanceM float64 // range in meters, 0 means no return
	Quality   uint8   // reflected pulse strength, 0-63, advisory only
}

// ParseDescriptor validates a 7-byte response descriptor and returns the
// announced payload kind and per-payload length.
func ParseDescriptor(d []byte) (ResponseKind, int, error) {
	if len(d) != DescriptorLength {
		return ResponseNone, 0, fmt.Errorf("descriptor must be %d bytes, got %d", DescriptorLength, len(d))
	}
	if d[0] != Preamble || d[1] != descriptorSync {
		return ResponseNone, 0, fmt.Errorf("%w: bad sync bytes %02x %02x", ErrInvalidDescriptor, d[0], d[1])
	}

	var trailer [5]byte
	copy(trailer[:], d[2:])

	switch trailer {
	case scanTrailer:
		return ResponseScan, ScanPayloadLength, nil
	case healthTrailer:
		return ResponseHealth, HealthPayloadLength, nil
	}
	return ResponseNone, 0, fmt.Errorf("%w: unknown trailer % x", ErrInvalidDescriptor, trailer)
}

// Scan payload layout (5 bytes, decoded by explicit masking so the
// in-memory representation never matters):
//
//	byte 0:    bit 0 = start of a new revolution, bit 1 = its complement,
//	           bits 2-7 = quality
//	bytes 1-2: little-endian uint16, bit 0 = check bit (always 1),
//	           bits 1-15 = angle in 1/64 degree
//	bytes 3-4: little-endian uint16, distance in 0.25 mm
const (
	angleScale    = 64.0   // angle_q6 units per degree
	distanceScale = 4000.0 // distance_q2 units per meter
)

// DecodeScanPayload decodes and validates one 5-byte scan sample. A sample
// is valid iff its start bits are complementary and the check bit is set;
// anything else is a framing casualty and decodes to ErrInvalidScanPayload.
func DecodeScanPayload(p []byte) (ScanPoint, error) {
	if len(p) != ScanPayloadLength {
		return ScanPoint{}, fmt.Errorf("scan payload must be %d bytes, got %d", ScanPayloadLength, len(p))
	}

	start := p[0] & 0x01
	notStart := (p[0] >> 1) & 0x01
	check := p[1] & 0x01
	if start == notStart || check != 1 {
		return ScanPoint{}, ErrInvalidScanPayload
	}

	angleQ6 := binary.LittleEndian.Uint16(p[1:3]) >> 1
	distanceQ2 := binary.LittleEndian.Uint16(p[3:5])

	// The raw 15-bit field spans [0, 512) degrees; fold the out-of-circle
	// tail back so decoded angles always sit in [0, 360).
	angleDeg := float64(angleQ6) / angleScale
	if angleDeg >= 360 {
		angleDeg -= 360
	}

	return ScanPoint{
		AngleDeg:  angleDeg,
		DistanceM: float64(distanceQ2) / distanceScale,
		Quality:   p[0] >> 2,
	}, nil
}

// EncodeScanPayload builds a valid 5-byte scan sample from physical values,
// quantizing the angle to 1/64 degree and the distance to 0.25 mm. It is
// the inverse of DecodeScanPayload for in-range inputs and exists for tests
// and replay tooling.
func EncodeScanPayload(angleDeg, distanceM float64, quality uint8, start bool) [5]byte {
	angleQ6 := uint16(math.Round(angleDeg*angleScale)) & 0x7FFF
	distanceQ2 := uint16(math.Round(distanceM * distanceScale))

	var p [5]byte
	p[0] = quality << 2
	if start {
		p[0] |= 0x01
	} else {
		p[0] |= 0x02
	}
	binary.LittleEndian.PutUint16(p[1:3], angleQ6<<1|0x01)
	binary.LittleEndian.PutUint16(p[3:5], distanceQ2)
	return p
}

// Health is the decoded 3-byte device health payload.
type Health struct {
	Status    uint8  // 0 good, 1 warning, 2 error per the datasheet
	ErrorCode uint16 // device-specific detail, advisory
}

// healthStatusHardware is reported by sensors in a hardware-fault
// condition; it is outside the datasheet's documented 0-2 range.
const healthStatusHardware = 3

// DecodeHealthPayload decodes the 3-byte health payload.
func DecodeHealthPayload(p []byte) (Health, error) {
	if len(p) != HealthPayloadLength {
		return Health{}, fmt.Errorf("health payload must be %d bytes, got %d", HealthPayloadLength, len(p))
	}
	return Health{
		Status:    p[0],
		ErrorCode: binary.LittleEndian.Uint16(p[1:3]),
	}, nil
}

// HardwareError reports whether the sensor flagged a hardware fault.
func (h Health) HardwareError() bool {
	return h.Status == healthStatusHardware
}
