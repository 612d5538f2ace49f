package proximity

import "math"

// EvenSectors returns an AngleToSector dividing the full circle into n
// uniform bins, sector 0 starting at 0 degrees.
func EvenSectors(n int) AngleToSector {
	width := 360.0 / float64(n)
	return func(angleDeg float64) int {
		sector := int(wrap360(angleDeg) / width)
		if sector >= n {
			sector = n - 1
		}
		return sector
	}
}

// wrap360 normalizes an angle into [0, 360).
func wrap360(angleDeg float64) float64 {
	a := math.Mod(angleDeg, 360.0)
	if a < 0 {
		a += 360.0
	}
	return a
}
