package utils

// Points per inch and millimetres per inch, as used by PDF user space.
const (
	PointsPerInch = 72.0
	MMPerInch     = 25.4
)

// PtToMM converts PDF points to millimetres.
func PtToMM(pt float64) float64 {
	return pt * MMPerInch / PointsPerInch
}

// MMToPt converts millimetres to PDF points.
func MMToPt(mm float64) float64 {
	return mm * PointsPerInch / MMPerInch
}

// Box is an axis-aligned rectangle: X/Y is the corner nearest the origin.
type Box struct {
	X, Y, W, H float64
}

// BoxPtToMM converts every component of b from points to millimetres.
func BoxPtToMM(b Box) Box {
	return Box{X: PtToMM(b.X), Y: PtToMM(b.Y), W: PtToMM(b.W), H: PtToMM(b.H)}
}

// FlipY mirrors b vertically inside a page of height pageH, turning a top-left
// origin rectangle into a bottom-left origin one (and back).
func FlipY(b Box, pageH float64) Box {
	b.Y = pageH - b.Y - b.H
	return b
}
