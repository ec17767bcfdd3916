// Package dsp contains the numeric kernels used by the tracking loops: the
// multi-tap correlator, the loop discriminators and the C/N0 and lock-quality
// estimators.
package dsp

// CorrelateVEML performs carrier wipeoff and five correlations in a single
// pass over the input block. carrier holds the complex carrier replica; each
// tap slice holds the code replica for that correlator arm. All slices must
// be at least len(in) long.
//
// The wiped sample is in[i] * conj(carrier[i]); each accumulator adds
// wiped * conj(tap[i]) in complex128 so precision does not degrade over long
// integration blocks.
func CorrelateVEML(in, carrier, veryEarly, early, prompt, late, veryLate []complex64) (ve, e, p, l, vl complex128) {
	for i := range in {
		x := complex128(in[i]) * conj128(carrier[i])
		ve += x * conj128(veryEarly[i])
		e += x * conj128(early[i])
		p += x * conj128(prompt[i])
		l += x * conj128(late[i])
		vl += x * conj128(veryLate[i])
	}
	return ve, e, p, l, vl
}

func conj128(c complex64) complex128 {
	return complex(float64(real(c)), -float64(imag(c)))
}
