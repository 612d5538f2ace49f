package rplidar

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDescriptor(t *testing.T) {
	tests := []struct {
		name       string
		descriptor []byte
		wantKind   ResponseKind
		wantLen    int
		wantErr    bool
	}{
		{
			name:       "scan response",
			descriptor: []byte{0xA5, 0x5A, 0x05, 0x00, 0x00, 0x40, 0x81},
			wantKind:   ResponseScan,
			wantLen:    5,
		},
		{
			name:       "health response",
			descriptor: []byte{0xA5, 0x5A, 0x03, 0x00, 0x00, 0x00, 0x06},
			wantKind:   ResponseHealth,
			wantLen:    3,
		},
		{
			name:       "unknown trailer",
			descriptor: []byte{0xA5, 0x5A, 0x04, 0x00, 0x00, 0x00, 0x15},
			wantErr:    true,
		},
		{
			name:       "bad first sync byte",
			descriptor: []byte{0x00, 0x5A, 0x05, 0x00, 0x00, 0x40, 0x81},
			wantErr:    true,
		},
		{
			name:       "bad second sync byte",
			descriptor: []byte{0xA5, 0x00, 0x05, 0x00, 0x00, 0x40, 0x81},
			wantErr:    true,
		},
		{
			name:       "short descriptor",
			descriptor: []byte{0xA5, 0x5A, 0x05},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, payloadLen, err := ParseDescriptor(tt.descriptor)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantLen, payloadLen)
		})
	}
}

func TestDecodeScanPayloadKnownSample(t *testing.T) {
	// startbit=1, notStartbit=0, quality=10, checkbit=1,
	// angle_q6=5760 (90 degrees), distance_q2=4000 (1 meter).
	payload := []byte{
		0x01 | 10<<2,
		byte((5760<<1)&0xFF | 0x01),
		byte(5760 >> 7),
		byte(4000 & 0xFF),
		byte(4000 >> 8),
	}

	point, err := DecodeScanPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, 90.0, point.AngleDeg)
	assert.Equal(t, 1.0, point.DistanceM)
	assert.Equal(t, uint8(10), point.Quality)
}

func TestDecodeScanPayloadValidity(t *testing.T) {
	valid := EncodeScanPayload(45.0, 2.0, 20, false)

	tests := []struct {
		name   string
		mangle func(p *[5]byte)
	}{
		{"both start bits set", func(p *[5]byte) { p[0] |= 0x03 }},
		{"both start bits clear", func(p *[5]byte) { p[0] &^= 0x03 }},
		{"check bit clear", func(p *[5]byte) { p[1] &^= 0x01 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mangle(&p)
			_, err := DecodeScanPayload(p[:])
			assert.ErrorIs(t, err, ErrInvalidScanPayload)
		})
	}

	t.Run("valid payload decodes", func(t *testing.T) {
		_, err := DecodeScanPayload(valid[:])
		assert.NoError(t, err)
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := DecodeScanPayload(valid[:4])
		assert.Error(t, err)
	})
}

func TestScanPayloadRoundTrip(t *testing.T) {
	cases := []struct {
		angleDeg  float64
		distanceM float64
		quality   uint8
	}{
		{0, 0, 0},
		{0.015625, 0.00025, 1}, // one quantization step each
		{90, 1.0, 10},
		{179.984375, 8.25, 63},
		{270.5, 15.99975, 47},
		{359.984375, 16.0, 5},
	}

	for _, tc := range cases {
		p := EncodeScanPayload(tc.angleDeg, tc.distanceM, tc.quality, false)
		point, err := DecodeScanPayload(p[:])
		require.NoError(t, err)

		// Exact up to the fixed-point quantization step.
		assert.InDelta(t, tc.angleDeg, point.AngleDeg, 1.0/64.0, "angle for %v", tc)
		assert.InDelta(t, tc.distanceM, point.DistanceM, 1.0/4000.0, "distance for %v", tc)
		assert.Equal(t, tc.quality, point.Quality)

		assert.GreaterOrEqual(t, point.AngleDeg, 0.0)
		assert.Less(t, point.AngleDeg, 360.0+1.0/64.0)
		assert.GreaterOrEqual(t, point.DistanceM, 0.0)
	}
}

func TestDecodedPointsAlwaysInRange(t *testing.T) {
	// Sweep the full 15-bit angle space at its extremes plus a stride and
	// confirm the decoder can never produce a negative angle or distance.
	for angleQ6 := 0; angleQ6 < 1<<15; angleQ6 += 97 {
		payload := []byte{
			0x02, // startbit=0, notStartbit=1
			byte(angleQ6<<1 | 0x01),
			byte(angleQ6 >> 7),
			0xFF, 0xFF,
		}
		point, err := DecodeScanPayload(payload)
		if err != nil {
			t.Fatalf("angleQ6=%d: %v", angleQ6, err)
		}
		if point.AngleDeg < 0 || point.AngleDeg >= 360 {
			t.Fatalf("angleQ6=%d decoded to angle %f", angleQ6, point.AngleDeg)
		}
		if point.DistanceM < 0 {
			t.Fatalf("angleQ6=%d decoded to distance %f", angleQ6, point.DistanceM)
		}
	}
}

func TestDecodeScanPayloadFoldsOutOfCircleAngles(t *testing.T) {
	// The 15-bit angle field can carry values past a full revolution
	// (angleQ6=30000 is nominally 468.75 degrees); the decoder folds them
	// back into the circle.
	const angleQ6 = 30000
	payload := []byte{
		0x02,
		byte((angleQ6<<1)&0xFF | 0x01),
		byte(angleQ6 >> 7),
		0x00, 0x00,
	}

	point, err := DecodeScanPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, 108.75, point.AngleDeg)
}

func TestDecodeHealthPayload(t *testing.T) {
	health, err := DecodeHealthPayload([]byte{0x00, 0x34, 0x12})
	require.NoError(t, err)
	assert.Equal(t, uint8(0), health.Status)
	assert.Equal(t, uint16(0x1234), health.ErrorCode)
	assert.False(t, health.HardwareError())

	for status := uint8(0); status <= 2; status++ {
		h := Health{Status: status}
		assert.False(t, h.HardwareError(), "status %d", status)
	}
	assert.True(t, Health{Status: 3}.HardwareError())

	_, err = DecodeHealthPayload([]byte{0x00})
	assert.Error(t, err)
}

func TestEncodeScanPayloadQuantization(t *testing.T) {
	// The encoder rounds to the nearest representable value.
	p := EncodeScanPayload(10.008, 1.00012, 0, true)
	point, err := DecodeScanPayload(p[:])
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(point.AngleDeg-10.008) > 1.0/128.0 {
		t.Errorf("angle quantization error too large: %f", point.AngleDeg)
	}
	if math.Abs(point.DistanceM-1.00012) > 1.0/8000.0 {
		t.Errorf("distance quantization error too large: %f", point.DistanceM)
	}
}

func TestErrInvalidDescriptorWrapping(t *testing.T) {
	_, _, err := ParseDescriptor([]byte{0xA5, 0x5A, 0xDE, 0xAD, 0xBE, 0xEF, 0x00})
	if !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("err = %v, want ErrInvalidDescriptor", err)
	}
}
