package dsp

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// pnFloor keeps the noise power estimate strictly positive so the estimator
// always returns a finite dB-Hz value, even on an all-zero window.
const pnFloor = 1e-12

// CN0SNV estimates carrier-to-noise density over a window of prompt
// correlator outputs using the signal-to-noise variance method. fsIn is the
// input sample rate and vectorLength the samples per integration epoch; the
// pair sets the coherent integration time the raw SNR is scaled by.
func CN0SNV(prompt []complex128, fsIn float64, vectorLength int) float64 {
	n := len(prompt)
	if n == 0 {
		return 0
	}
	m2 := make([]float64, n)
	m4 := make([]float64, n)
	for i, p := range prompt {
		pw := real(p)*real(p) + imag(p)*imag(p)
		m2[i] = pw
		m4[i] = pw * pw
	}
	mean2 := floats.Sum(m2) / float64(n)
	mean4 := floats.Sum(m4) / float64(n)

	pd := 2*mean2*mean2 - mean4
	if pd < 0 {
		pd = 0
	}
	pd = math.Sqrt(pd)
	pn := mean2 - pd
	if pn < pnFloor {
		pn = pnFloor
	}
	if pd < pnFloor {
		pd = pnFloor
	}
	snr := pd / pn
	coherentTime := float64(vectorLength) / fsIn
	return 10*math.Log10(snr) - 10*math.Log10(coherentTime)
}

// CarrierLockDetector computes the narrowband lock metric NBD/NBP over a
// window of prompt outputs, with NBD = (sum I)^2 - (sum Q)^2 and
// NBP = (sum I)^2 + (sum Q)^2. The result lies in [-1, 1]; it is 0 when the
// window carries no power.
func CarrierLockDetector(prompt []complex128) float64 {
	sumI := 0.0
	sumQ := 0.0
	for _, p := range prompt {
		sumI += real(p)
		sumQ += imag(p)
	}
	nbd := sumI*sumI - sumQ*sumQ
	nbp := sumI*sumI + sumQ*sumQ
	if nbp == 0 {
		return 0
	}
	return nbd / nbp
}
