package dsp

import "math"

// PLLTwoQuadrantAtan is the two-quadrant arctangent phase discriminator. It
// returns the prompt phase error in cycles, insensitive to 180-degree data
// bit flips. A zero real part would divide by zero; the error is pinned to
// zero there instead.
func PLLTwoQuadrantAtan(p complex128) float64 {
	if real(p) == 0 {
		return 0
	}
	return math.Atan(imag(p)/real(p)) / (2 * math.Pi)
}

// DLLNormalizedVEML is the normalized very-early minus very-late power
// discriminator, (|VE|-|VL|)/(|VE|+|VL|). Returns 0 when both magnitudes
// vanish.
func DLLNormalizedVEML(ve, vl complex128) float64 {
	mve := cmplxAbs(ve)
	mvl := cmplxAbs(vl)
	den := mve + mvl
	if den == 0 {
		return 0
	}
	return (mve - mvl) / den
}

// DLLNormalizedEML is the early-minus-late variant of DLLNormalizedVEML. The
// loop runs on the very-early/very-late pair; this one is exposed for
// diagnostics.
func DLLNormalizedEML(e, l complex128) float64 {
	return DLLNormalizedVEML(e, l)
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
