package hdredit

const (
	minEV = -10.0
	maxEV = 10.0

	minContrast = -1.0
	maxContrast = 4.0

	minSaturation = -1.0
	maxSaturation = 4.0

	// contrastPivot is linear middle grey, L* close to 50.
	contrastPivot = 0.18
)

const (
	// NumRegions is the number of selective color editor slots.
	NumRegions = 5

	curveStep       = 0.25
	curveExtendedAt = 200.0
)

var bandCenters = [numBands]float64{10, 30, 50, 70, 90}
