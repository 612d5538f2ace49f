package proximity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/proximity/internal/rplidar"
)

type commitRecorder struct {
	commits []Sector
}

func (r *commitRecorder) SectorCommitted(s Sector) { r.commits = append(r.commits, s) }

func point(angleDeg, distanceM float64) rplidar.ScanPoint {
	return rplidar.ScanPoint{AngleDeg: angleDeg, DistanceM: distanceM}
}

func TestEvenSectors(t *testing.T) {
	toSector := EvenSectors(8)

	tests := []struct {
		angleDeg float64
		want     int
	}{
		{0, 0},
		{44.9, 0},
		{45, 1},
		{90, 2},
		{359.99, 7},
		{360, 0},
		{-10, 7},
		{405, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, toSector(tt.angleDeg), "angle %v", tt.angleDeg)
	}
}

func TestAggregatorCommitsOnSectorCrossing(t *testing.T) {
	recorder := &commitRecorder{}
	a := NewAggregator(8, EvenSectors(8), 0.20, recorder)

	a.Consume(point(10, 2.0))
	a.Consume(point(20, 1.5))
	a.Consume(point(30, 1.8))
	assert.Empty(t, recorder.commits, "open sector must not commit early")

	a.Consume(point(50, 3.0))
	require.Len(t, recorder.commits, 1)
	committed := recorder.commits[0]
	assert.Equal(t, 0, committed.Index)
	assert.Equal(t, 20.0, committed.AngleDeg)
	assert.Equal(t, 1.5, committed.DistanceM)
	assert.True(t, committed.Valid)

	sectors := a.Sectors()
	assert.Equal(t, committed, sectors[0])
	assert.Zero(t, sectors[1].DistanceM, "open sector stays uncommitted")
}

func TestAggregatorFirstPointKeepsTies(t *testing.T) {
	recorder := &commitRecorder{}
	a := NewAggregator(8, EvenSectors(8), 0.20, recorder)

	a.Consume(point(10, 2.0))
	a.Consume(point(20, 2.0))
	a.Consume(point(50, 1.0))

	require.Len(t, recorder.commits, 1)
	assert.Equal(t, 10.0, recorder.commits[0].AngleDeg)
}

func TestAggregatorNearReturnInvalidatesWithoutCommitting(t *testing.T) {
	recorder := &commitRecorder{}
	a := NewAggregator(8, EvenSectors(8), 0.20, recorder)

	a.Consume(point(10, 1.0))
	// A dead-zone return in another sector marks that sector invalid but
	// must not close the open one.
	a.Consume(point(50, 0.1))
	assert.Empty(t, recorder.commits)
	assert.False(t, a.Sectors()[1].Valid)

	// The open sector is still accumulating.
	a.Consume(point(20, 0.8))
	a.Consume(point(100, 2.0))
	require.Len(t, recorder.commits, 1)
	assert.Equal(t, 0, recorder.commits[0].Index)
	assert.Equal(t, 0.8, recorder.commits[0].DistanceM)
}

func TestAggregatorNearReturnAtThreshold(t *testing.T) {
	a := NewAggregator(8, EvenSectors(8), 0.20, nil)

	// Exactly the minimum range is still a dead-zone return.
	a.Consume(point(10, 0.20))
	assert.False(t, a.Sectors()[0].Valid)

	a.Consume(point(10, 0.21))
	a.Consume(point(50, 1.0))
	assert.True(t, a.Sectors()[0].Valid)
	assert.Equal(t, 0.21, a.Sectors()[0].DistanceM)
}

func TestAggregatorRoundTripOverwritesSectors(t *testing.T) {
	recorder := &commitRecorder{}
	a := NewAggregator(4, EvenSectors(4), 0.20, recorder)

	// Two full revolutions; the second sees a closer obstacle in sector 0.
	for _, d := range []float64{3.0, 2.0} {
		a.Consume(point(10, d))
		a.Consume(point(100, 5.0))
		a.Consume(point(190, 5.0))
		a.Consume(point(280, 5.0))
	}
	a.Consume(point(100, 5.0)) // close the second revolution's sector 0

	assert.Equal(t, 2.0, a.Sectors()[0].DistanceM)
	assert.Len(t, recorder.commits, 8)
}
