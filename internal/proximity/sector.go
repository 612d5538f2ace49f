// Package proximity reduces a raw scan point stream to the compact obstacle
// summaries an avoidance planner consumes: per-sector nearest ranges and
// front/back obstacle edge estimates.
package proximity

import "github.com/banshee-data/proximity/internal/rplidar"

// Sector is the committed nearest obstacle within one angular bin.
type Sector struct {
	Index     int
	AngleDeg  float64 // angle of the nearest point, not the bin center
	DistanceM float64
	Valid     bool
}

// BoundarySink receives each committed sector exactly once, when the stream
// crosses out of its angular bin.
type BoundarySink interface {
	SectorCommitted(s Sector)
}

// AngleToSector maps an angle in [0, 360) to a sector index. Implementations
// must be total over the domain; EvenSectors returns the usual uniform one.
type AngleToSector func(angleDeg float64) int

// Aggregator folds the scan stream into per-sector nearest obstacles. One
// sector is open at a time; crossing into a different sector commits the old
// one. Points at or below the sensor's minimum range invalidate their sector
// without disturbing the open one, since they are dead-zone returns rather
// than obstacles.
type Aggregator struct {
	toSector     AngleToSector
	minDistanceM float64
	sink         BoundarySink

	sectors []Sector

	open    int
	best    Sector
	started bool
}

// NewAggregator creates an aggregator over numSectors bins. sink may be nil.
func NewAggregator(numSectors int, toSector AngleToSector, minDistanceM float64, sink BoundarySink) *Aggregator {
	return &Aggregator{
		toSector:     toSector,
		minDistanceM: minDistanceM,
		sink:         sink,
		sectors:      make([]Sector, numSectors),
	}
}

// Consume feeds one decoded scan point into the aggregation.
func (a *Aggregator) Consume(p rplidar.ScanPoint) {
	sector := a.toSector(p.AngleDeg)
	if sector < 0 || sector >= len(a.sectors) {
		return
	}

	if p.DistanceM <= a.minDistanceM {
		a.sectors[sector].Valid = false
		a.sectors[sector].Index = sector
		return
	}

	if !a.started {
		a.openSector(sector, p)
		a.started = true
		return
	}

	if sector != a.open {
		a.commit()
		a.openSector(sector, p)
		return
	}

	// Nearest wins; the first point seen keeps ties.
	if p.DistanceM < a.best.DistanceM {
		a.best.AngleDeg = p.AngleDeg
		a.best.DistanceM = p.DistanceM
	}
}

func (a *Aggregator) openSector(sector int, p rplidar.ScanPoint) {
	a.open = sector
	a.best = Sector{
		Index:     sector,
		AngleDeg:  p.AngleDeg,
		DistanceM: p.DistanceM,
		Valid:     true,
	}
}

func (a *Aggregator) commit() {
	a.sectors[a.open] = a.best
	if a.sink != nil {
		a.sink.SectorCommitted(a.best)
	}
}

// Sectors returns a snapshot of the committed sector table. The open
// sector's running minimum is not included until it commits.
func (a *Aggregator) Sectors() []Sector {
	out := make([]Sector, len(a.sectors))
	copy(out, a.sectors)
	return out
}
