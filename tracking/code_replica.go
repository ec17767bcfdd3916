package tracking

import (
	"math"

	"github.com/gnsslab/ubertrack/galileo"
)

const (
	codeLenSamples   = 2 * galileo.CodeLengthChips
	codeLenHalfChips = float64(codeLenSamples)
)

// codeReplica owns the long-lived guard-padded local code and the per-epoch
// resampled tap arrays. The padded code is rebuilt once per acquisition
// handoff; resampling runs every epoch.
type codeReplica struct {
	// caCode holds the sinBOC(1,1) sampled code at two samples per chip in
	// [2, 2L+2), with a two-sample cyclic guard wrapped onto each end so the
	// resampler can index slightly past either boundary.
	caCode []complex64

	// super is the resampled very-early array; the other four taps are
	// sub-slices of it, offset by their spacing in samples.
	super []complex64
}

func newCodeReplica(maxEpochSamples int) *codeReplica {
	return &codeReplica{
		caCode: make([]complex64, codeLenSamples+4),
		super:  make([]complex64, maxEpochSamples),
	}
}

// build regenerates the padded local code from the primary code chips.
func (r *codeReplica) build(chips []int8) error {
	if err := galileo.SinBOCSampled(chips, r.caCode[2:2+codeLenSamples]); err != nil {
		return err
	}
	r.caCode[0] = r.caCode[codeLenSamples]
	r.caCode[1] = r.caCode[codeLenSamples+1]
	r.caCode[codeLenSamples+2] = r.caCode[2]
	r.caCode[codeLenSamples+3] = r.caCode[3]
	return nil
}

// resample fills the five tap views for one epoch of n samples. The
// very-early tap leads the prompt by velChips; the remaining taps are
// sub-windows of the same super-array, so a single pass covers all five.
func (r *codeReplica) resample(n int, remCodePhaseSamples, codeFreqHz, fsIn, elChips, velChips float64) (ve, e, p, l, vl []complex64) {
	stepChips := codeFreqHz / fsIn
	stepHalfChips := 2 * codeFreqHz / fsIn
	remHalfChips := remCodePhaseSamples * stepHalfChips

	elSamples := int(math.Round(elChips / stepChips))
	velSamples := int(math.Round(velChips / stepChips))

	t := -remHalfChips
	total := n + 2*velSamples
	for i := 0; i < total; i++ {
		phase := math.Mod(t-2*velChips, codeLenHalfChips)
		if phase < 0 {
			phase += codeLenHalfChips
		}
		r.super[i] = r.caCode[2+int(math.Round(phase))]
		t += stepHalfChips
	}

	ve = r.super[:n]
	e = r.super[velSamples-elSamples:][:n]
	p = r.super[velSamples:][:n]
	l = r.super[velSamples+elSamples:][:n]
	vl = r.super[2*velSamples:][:n]
	return ve, e, p, l, vl
}
