package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnsslab/ubertrack/galileo"
)

func TestCodeReplicaCyclicExtension(t *testing.T) {
	chips := randomChips(11)
	r := newCodeReplica(2 * 16368)
	require.NoError(t, r.build(chips))

	assert.Equal(t, r.caCode[codeLenSamples], r.caCode[0])
	assert.Equal(t, r.caCode[codeLenSamples+1], r.caCode[1])
	assert.Equal(t, r.caCode[2], r.caCode[codeLenSamples+2])
	assert.Equal(t, r.caCode[3], r.caCode[codeLenSamples+3])
}

func TestCodeReplicaTapViews(t *testing.T) {
	chips := randomChips(12)
	r := newCodeReplica(2 * 16368)
	require.NoError(t, r.build(chips))

	const n = 16368
	ve, e, p, l, vl := r.resample(n, 0, galileo.CodeChipRateHz, 4.092e6, 0.2, 0.6)
	require.Len(t, ve, n)
	require.Len(t, e, n)
	require.Len(t, p, n)
	require.Len(t, l, n)
	require.Len(t, vl, n)

	// At 4 samples per chip the spacings quantize to 1 and 2 samples, so the
	// taps are one-sample-staggered windows of the same array.
	for _, i := range []int{0, 1, 100, 8000, n - 5} {
		assert.Equal(t, ve[i+1], e[i])
		assert.Equal(t, ve[i+2], p[i])
		assert.Equal(t, ve[i+3], l[i])
		assert.Equal(t, ve[i+4], vl[i])
	}
}

func TestCodeReplicaBoundaryChipSelection(t *testing.T) {
	chips := randomChips(13)
	r := newCodeReplica(2 * 16368)
	require.NoError(t, r.build(chips))

	const n = 16368
	ve, _, _, _, vl := r.resample(n, 0, galileo.CodeChipRateHz, 4.092e6, 0.2, 0.6)

	// The very-early tap leads the code start, so its first sample wraps to
	// the second half of the last chip.
	assert.Equal(t, complex(float32(-chips[4091]), 0), ve[0])
	// Three samples in, the phase has advanced into the first chip proper.
	assert.Equal(t, complex(float32(chips[0]), 0), ve[3])
	// The very-late tap's final sample wraps past the code end back to the
	// first chip.
	assert.Equal(t, complex(float32(chips[0]), 0), vl[n-1])
}

func TestCodeReplicaResampleWithCodePhaseResidual(t *testing.T) {
	chips := randomChips(14)
	r := newCodeReplica(2 * 16368)
	require.NoError(t, r.build(chips))

	// One sample of residual shifts the very-early tap back onto the first
	// half of the last chip.
	ve, _, _, _, _ := r.resample(16368, 1, galileo.CodeChipRateHz, 4.092e6, 0.2, 0.6)
	assert.Equal(t, complex(float32(chips[4091]), 0), ve[0])
}
