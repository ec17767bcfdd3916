// Package tracking implements a closed-loop Galileo E1 DLL+PLL tracking
// channel with a five-tap very-early/early/prompt/late/very-late correlator.
// One Tracker owns one satellite channel; an external scheduler feeds it
// baseband sample blocks and collects one synchronization record per call.
package tracking

// SecondOrderFilter is a classical second-order loop filter driving an NCO.
// It is parameterized by noise bandwidth and integration period, with fixed
// damping 0.707.
type SecondOrderFilter struct {
	tau1 float64
	tau2 float64
	t    float64
	acc  float64
}

// NewSecondOrderFilter derives the filter coefficients from the noise
// bandwidth in Hz and the integration period in seconds.
func NewSecondOrderFilter(bandwidthHz, periodSecs float64) SecondOrderFilter {
	const zeta = 0.707
	wn := bandwidthHz / 0.53
	return SecondOrderFilter{
		tau1: 1 / (wn * wn),
		tau2: 2 * zeta / wn,
		t:    periodSecs,
	}
}

// Init clears the accumulator. Must be called on every tracking start so a
// fresh pull-in does not inherit the previous pass's NCO command.
func (f *SecondOrderFilter) Init() {
	f.acc = 0
}

// Update feeds one discriminator output through the filter and returns the
// NCO frequency command.
func (f *SecondOrderFilter) Update(e float64) float64 {
	f.acc += e * f.t / f.tau1
	return f.acc + e*f.tau2/f.tau1
}
