package catalogue

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSource(id string, ra, dec, flux, rms float64) *Source {
	return &Source{
		ID:   id,
		RA:   Quantity{Value: ra, Err: 1e-4},
		Dec:  Quantity{Value: dec, Err: 1e-4},
		Flux: Quantity{Value: flux, Err: flux * 0.05},
		Peak: Quantity{Value: flux * 0.9, Err: flux * 0.05},
		RMS:  Quantity{Value: rms},
		Maj:  20,
		Min:  18,
	}
}

func makeSources(n int) []*Source {
	sources := make([]*Source, 0, n)
	for i := 0; i < n; i++ {
		sources = append(sources, makeSource(
			fmt.Sprintf("J%04d", i),
			10+float64(i)*0.01,
			-30+float64(i)*0.01,
			0.1,
			0.001,
		))
	}
	return sources
}

func TestTwoPhaseLoad(t *testing.T) {
	t.Parallel()

	cat := New("ASKAP", 943.5, 25, ProvenanceSourceFinder)
	assert.False(t, cat.Loaded())
	assert.Zero(t, cat.Count())

	require.NoError(t, cat.Load(makeSources(5)))
	assert.True(t, cat.Loaded())
	assert.Equal(t, 5, cat.Count())
	assert.Equal(t, 5, cat.UnfilteredCount())

	// Loading twice is an error, not a silent replacement.
	err := cat.Load(makeSources(2))
	require.Error(t, err)
}

func TestLoadRejectsInvalidSource(t *testing.T) {
	t.Parallel()

	bad := makeSource("J0000", 10, -30, 0.1, 0.001)
	bad.Flux.Value = -0.2

	cat := New("ASKAP", 943.5, 25, ProvenanceSupplied)
	err := cat.Load([]*Source{bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-negative")
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	t.Parallel()

	cat := New("ASKAP", 943.5, 25, ProvenanceSupplied)
	err := cat.Load([]*Source{
		makeSource("J0001", 10, -30, 0.1, 0.001),
		makeSource("J0001", 11, -31, 0.2, 0.001),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate source id")
}

func TestSNRIsDerived(t *testing.T) {
	t.Parallel()

	s := makeSource("J0001", 10, -30, 0.5, 0.01)
	assert.InDelta(t, 50.0, s.SNR(false), 1e-12)
	assert.InDelta(t, 45.0, s.SNR(true), 1e-12)

	// SNR follows any change to flux or noise; it is never cached.
	s.Flux.Value = 1.0
	assert.InDelta(t, 100.0, s.SNR(false), 1e-12)
	s.RMS.Value = 0.1
	assert.InDelta(t, 10.0, s.SNR(false), 1e-12)

	s.RMS.Value = 0
	assert.Zero(t, s.SNR(false))
}

func TestRevisionChangesOnReplace(t *testing.T) {
	t.Parallel()

	cat := New("ASKAP", 943.5, 25, ProvenanceSupplied)
	require.NoError(t, cat.Load(makeSources(3)))

	before := cat.Revision()
	cat.replaceActive(cat.Sources()[:1])
	assert.NotEqual(t, before, cat.Revision())
	assert.Equal(t, 1, cat.Count())
	assert.Equal(t, 3, cat.UnfilteredCount())
}

func TestLookup(t *testing.T) {
	t.Parallel()

	cat := New("ASKAP", 943.5, 25, ProvenanceSupplied)
	require.NoError(t, cat.Load(makeSources(3)))

	s, ok := cat.Lookup("J0001")
	require.True(t, ok)
	assert.Equal(t, "J0001", s.ID)

	_, ok = cat.Lookup("J9999")
	assert.False(t, ok)
}
