package proximity

import (
	"math"

	"github.com/banshee-data/proximity/internal/rplidar"
)

const d2r = math.Pi / 180.0

// Direction is the lateral sense an avoidance planner should move toward.
type Direction int

const (
	Left  Direction = -1
	Right Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "none"
	}
}

// AvoidanceEstimate is the output of one edge tracker: how far to shift
// laterally (in centimeters around a nominal clearance), toward which side,
// and the obstacle's estimated forward range.
type AvoidanceEstimate struct {
	ClearanceCm    float64
	Direction      Direction
	ObstacleRangeM float64
}

// EdgeParams tunes the obstacle edge model.
type EdgeParams struct {
	// MinObstacleDistanceM gates cone points; closer returns are ignored.
	MinObstacleDistanceM float64

	// NominalClearanceCm is the baseline lateral shift an edge adjusts.
	NominalClearanceCm float64

	// ClearanceScale converts lateral meters to clearance centimeters.
	ClearanceScale float64

	// FarRangeM is the sentinel range reported when a sweep crosses the
	// measurement window without finding an obstacle.
	FarRangeM float64
}

// DefaultEdgeParams returns the tuning used on the production airframe.
func DefaultEdgeParams() EdgeParams {
	return EdgeParams{
		MinObstacleDistanceM: 0.5,
		NominalClearanceCm:   500,
		ClearanceScale:       100,
		FarRangeM:            133,
	}
}

// EdgeTracker models the obstacle ahead of (or behind) the vehicle as a line
// segment between the first and last qualifying returns inside an angular
// cone, and derives a lateral avoidance estimate once the sweep leaves the
// cone. It rides the scan's natural rotation: the cone fills during a pass,
// the estimate is produced in the exit window that follows, and the tracker
// re-arms once the sweep moves past both regions.
type EdgeTracker struct {
	params  EdgeParams
	inCone  func(angleDeg float64) bool
	exitWin func(angleDeg float64) bool
	refDeg  float64
	primary Direction

	// mixed resolves the straddling case where the edge crosses the cone
	// axis. The two trackers break the tie in opposite orientations.
	mixed func(absFirst, absLast float64) (float64, Direction)

	found      bool
	firstAngle float64
	firstDist  float64
	lastAngle  float64
	lastDist   float64

	estimate AvoidanceEstimate
}

// NewFrontTracker tracks the cone ahead of the vehicle: [270, 360] degrees
// around a 315 degree axis, with its exit window below 60 degrees.
func NewFrontTracker(params EdgeParams) *EdgeTracker {
	return &EdgeTracker{
		params:  params,
		inCone:  func(a float64) bool { return a >= 270 && a <= 360 },
		exitWin: func(a float64) bool { return a < 60 },
		refDeg:  315,
		primary: Left,
		mixed: func(absFirst, absLast float64) (float64, Direction) {
			if absFirst > absLast {
				return absLast, Right
			}
			return absFirst, Left
		},
	}
}

// NewBackTracker tracks the cone behind the vehicle: [90, 180] degrees
// around a 135 degree axis, with its exit window above 180 degrees. Left
// and right swap relative to the front tracker because the cone is viewed
// from the other side.
func NewBackTracker(params EdgeParams) *EdgeTracker {
	return &EdgeTracker{
		params:  params,
		inCone:  func(a float64) bool { return a >= 90 && a <= 180 },
		exitWin: func(a float64) bool { return a > 180 },
		refDeg:  135,
		primary: Right,
		mixed: func(absFirst, absLast float64) (float64, Direction) {
			if absLast > absFirst {
				return absFirst, Right
			}
			return absLast, Left
		},
	}
}

// Consume feeds one decoded scan point into the tracker.
func (e *EdgeTracker) Consume(p rplidar.ScanPoint) {
	a := wrap360(p.AngleDeg)

	if e.inCone(a) {
		if p.DistanceM < e.params.MinObstacleDistanceM {
			return
		}
		if !e.found {
			e.found = true
			e.firstAngle = a
			e.firstDist = p.DistanceM
		}
		e.lastAngle = a
		e.lastDist = p.DistanceM
		return
	}

	if e.exitWin(a) {
		if e.found {
			e.compute()
		} else {
			e.estimate.ObstacleRangeM = e.params.FarRangeM
		}
		return
	}

	// Past both the cone and its exit window: re-arm for the next pass.
	e.found = false
}

// compute projects the pinned first and the latest last return onto the cone
// axis and derives the lateral shift. The first return is the edge on the
// primary side, the last return the edge on the opposite side.
func (e *EdgeTracker) compute() {
	first := e.firstDist * math.Sin(d2r*(e.firstAngle-e.refDeg))
	last := e.lastDist * math.Sin(d2r*(e.lastAngle-e.refDeg))

	// Identical projections mean a degenerate (or duplicated) edge; keep
	// the previous estimate.
	if first == last {
		return
	}

	e.estimate.ObstacleRangeM = (e.firstDist*math.Cos(d2r*(e.firstAngle-e.refDeg)) +
		e.lastDist*math.Cos(d2r*(e.lastAngle-e.refDeg))) / 2

	absFirst := math.Abs(first)
	absLast := math.Abs(last)

	switch {
	case first >= 0 && last >= 0:
		// Whole edge on one side of the axis; slide toward the primary
		// side, shaving the clearance by the near edge's offset.
		e.estimate.ClearanceCm = e.params.NominalClearanceCm - absFirst*e.params.ClearanceScale
		e.estimate.Direction = e.primary
	case first < 0 && last > 0:
		// Edge straddles the axis; go around the thinner overhang.
		m, dir := e.mixed(absFirst, absLast)
		e.estimate.ClearanceCm = e.params.NominalClearanceCm + m*e.params.ClearanceScale
		e.estimate.Direction = dir
	case first < 0 && last < 0:
		e.estimate.ClearanceCm = e.params.NominalClearanceCm - absLast*e.params.ClearanceScale
		e.estimate.Direction = -e.primary
	}
}

// Estimate returns the most recent avoidance estimate. It is updated on
// every exit-window point and is the zero value before the first full pass.
func (e *EdgeTracker) Estimate() AvoidanceEstimate {
	return e.estimate
}
