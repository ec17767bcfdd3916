package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCarrierLockDetectorConstantPrompt(t *testing.T) {
	prompts := make([]complex128, 20)
	for i := range prompts {
		prompts[i] = complex(1250.0, 0)
	}
	assert.Equal(t, 1.0, CarrierLockDetector(prompts))
}

func TestCarrierLockDetectorQuadrature(t *testing.T) {
	prompts := make([]complex128, 10)
	for i := range prompts {
		prompts[i] = complex(0, 900.0)
	}
	assert.Equal(t, -1.0, CarrierLockDetector(prompts))
}

func TestCarrierLockDetectorEmptyAndZero(t *testing.T) {
	assert.Equal(t, 0.0, CarrierLockDetector(nil))
	assert.Equal(t, 0.0, CarrierLockDetector(make([]complex128, 10)))
}

func TestCN0SNVSilenceIsFiniteAndBelowFloor(t *testing.T) {
	const fs = 4.092e6
	const vectorLength = 16368

	cn0 := CN0SNV(make([]complex128, 10), fs, vectorLength)
	assert.False(t, math.IsNaN(cn0))
	assert.False(t, math.IsInf(cn0, 0))
	// All-zero prompts floor the SNR at unity, leaving only the coherent
	// integration gain term.
	assert.InDelta(t, 10*math.Log10(fs/float64(vectorLength)), cn0, 1e-9)
	assert.Less(t, cn0, 25.0)
}

func TestCN0SNVStrongConstantSignal(t *testing.T) {
	prompts := make([]complex128, 10)
	for i := range prompts {
		prompts[i] = complex(16368.0, 0)
	}
	cn0 := CN0SNV(prompts, 4.092e6, 16368)
	assert.False(t, math.IsNaN(cn0))
	assert.False(t, math.IsInf(cn0, 0))
	assert.Greater(t, cn0, 50.0)
}

func TestCN0SNVEmptyWindow(t *testing.T) {
	assert.Equal(t, 0.0, CN0SNV(nil, 4.092e6, 16368))
}

func TestPLLTwoQuadrantAtan(t *testing.T) {
	assert.Equal(t, 0.0, PLLTwoQuadrantAtan(complex(0, 5)))
	assert.InDelta(t, 0.125, PLLTwoQuadrantAtan(complex(1, 1)), 1e-12)
	// Two-quadrant: a data bit flip must not change the error.
	assert.InDelta(t, PLLTwoQuadrantAtan(complex(1, 0.3)), PLLTwoQuadrantAtan(complex(-1, -0.3)), 1e-12)
}

func TestDLLNormalizedVEML(t *testing.T) {
	assert.Equal(t, 0.0, DLLNormalizedVEML(0, 0))
	assert.InDelta(t, 0.5, DLLNormalizedVEML(complex(3, 0), complex(0, 1)), 1e-12)
	assert.InDelta(t, -0.5, DLLNormalizedVEML(complex(1, 0), complex(0, 3)), 1e-12)
	// Magnitude-based: rotating either arm must not change the result.
	assert.InDelta(t,
		DLLNormalizedVEML(complex(3, 4), complex(1, 0)),
		DLLNormalizedVEML(complex(0, 5), complex(0, -1)), 1e-12)
}

func TestDLLNormalizedEMLMatchesVEMLForm(t *testing.T) {
	assert.Equal(t, DLLNormalizedVEML(complex(2, 1), complex(1, 1)), DLLNormalizedEML(complex(2, 1), complex(1, 1)))
}

func TestCorrelateVEMLMatchesDotProducts(t *testing.T) {
	in := []complex64{complex(1, 2), complex(-0.5, 0.25), complex(3, -1)}
	carrier := []complex64{complex(1, 0), complex(0, 1), complex(-1, 0)}
	tap := []complex64{1, -1, 1}

	ve, e, p, l, vl := CorrelateVEML(in, carrier, tap, tap, tap, tap, tap)
	var want complex128
	for i := range in {
		want += complex128(in[i]) * conj128(carrier[i]) * conj128(tap[i])
	}
	assert.InDelta(t, real(want), real(p), 1e-9)
	assert.InDelta(t, imag(want), imag(p), 1e-9)
	assert.Equal(t, p, ve)
	assert.Equal(t, p, e)
	assert.Equal(t, p, l)
	assert.Equal(t, p, vl)
}
