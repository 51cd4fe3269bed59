package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRaster(t *testing.T, grid Grid, values []float64) Raster {
	t.Helper()
	r, err := NewRaster(grid, values)
	require.NoError(t, err)
	return r
}

func testGrid(rows, cols int) Grid {
	return Grid{Rows: rows, Cols: cols, West: -58.0, North: -16.0, CellSize: 0.01}
}

func TestRescaleLST(t *testing.T) {
	tests := []struct {
		name     string
		dn       float64
		expected float64
	}{
		{"dn 7500", 7500, -123.15},
		{"dn 7600", 7600, -121.15},
		{"dn 7700", 7700, -119.15},
		{"dn zero", 0, -273.15},
		{"freezing point", 13657.5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, RescaleLST(tt.dn), 1e-9)
		})
	}
}

func TestRescaleLST_RoundTrip(t *testing.T) {
	inverse := func(celsius float64) float64 {
		return (celsius + KelvinOffset) / LSTScaleFactor
	}
	for _, dn := range []float64{0, 1, 7500, 7650.5, 15000, 65535} {
		assert.InDelta(t, dn, inverse(RescaleLST(dn)), 1e-9)
	}
}

func TestKelvinToCelsius(t *testing.T) {
	assert.InDelta(t, 30.0, KelvinToCelsius(303.15), 1e-9)
	assert.InDelta(t, -273.15, KelvinToCelsius(0), 1e-9)
}

func TestQualityBitSet(t *testing.T) {
	tests := []struct {
		name string
		qc   float64
		bit  uint
		set  bool
	}{
		{"cloud bit set", 0b100, CloudQualityBit, true},
		{"cloud bit clear", 0b011, CloudQualityBit, false},
		{"zero flag", 0, CloudQualityBit, false},
		{"all bits set", 0xFFFF, CloudQualityBit, true},
		{"bit zero", 0b001, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.set, QualityBitSet(tt.qc, tt.bit))
		})
	}

	t.Run("NaN flag counts as bad", func(t *testing.T) {
		assert.True(t, QualityBitSet(math.NaN(), CloudQualityBit))
	})
}

func TestApplyQualityMask(t *testing.T) {
	grid := testGrid(1, 3)
	band := mustRaster(t, grid, []float64{10, 20, 30})

	t.Run("masks only flagged cells", func(t *testing.T) {
		qc := mustRaster(t, grid, []float64{0, 4, 3})
		masked, err := ApplyQualityMask(band, qc, CloudQualityBit)
		require.NoError(t, err)

		assert.Equal(t, 10.0, masked.At(0, 0))
		assert.True(t, math.IsNaN(masked.At(0, 1)), "cell with bit 2 set must be excluded")
		assert.Equal(t, 30.0, masked.At(0, 2))
	})

	t.Run("grid mismatch", func(t *testing.T) {
		qc := mustRaster(t, testGrid(1, 2), []float64{0, 0})
		_, err := ApplyQualityMask(band, qc, CloudQualityBit)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "apply quality mask")
	})
}

func TestCalibrate(t *testing.T) {
	grid := testGrid(1, 2)
	lst := mustRaster(t, grid, []float64{-123.15, -121.15})
	// 30C and 31C in Kelvin.
	rean := mustRaster(t, grid, []float64{303.15, 304.15})

	t.Run("alpha zero equals lst", func(t *testing.T) {
		out, err := Calibrate(lst, rean, 0)
		require.NoError(t, err)
		assert.InDelta(t, -123.15, out.At(0, 0), 1e-9)
		assert.InDelta(t, -121.15, out.At(0, 1), 1e-9)
	})

	t.Run("alpha one equals reanalysis celsius", func(t *testing.T) {
		out, err := Calibrate(lst, rean, 1)
		require.NoError(t, err)
		assert.InDelta(t, 30.0, out.At(0, 0), 1e-9)
		assert.InDelta(t, 31.0, out.At(0, 1), 1e-9)
	})

	t.Run("alpha 0.6 exact blend", func(t *testing.T) {
		out, err := Calibrate(lst, rean, 0.6)
		require.NoError(t, err)
		// -123.15 + (30 - -123.15)*0.6
		assert.InDelta(t, -31.26, out.At(0, 0), 1e-9)
		assert.InDelta(t, -29.86, out.At(0, 1), 1e-9)
	})

	t.Run("output bounded by inputs for all alpha", func(t *testing.T) {
		for _, alpha := range []float64{0, 0.25, 0.5, 0.75, 1} {
			out, err := Calibrate(lst, rean, alpha)
			require.NoError(t, err)
			v := out.At(0, 0)
			assert.GreaterOrEqual(t, v, -123.15)
			assert.LessOrEqual(t, v, 30.0)
		}
	})

	t.Run("NaN propagates", func(t *testing.T) {
		maskedLST := mustRaster(t, grid, []float64{math.NaN(), -121.15})
		out, err := Calibrate(maskedLST, rean, 0.6)
		require.NoError(t, err)
		assert.True(t, math.IsNaN(out.At(0, 0)))
		assert.False(t, math.IsNaN(out.At(0, 1)))
	})

	t.Run("alpha out of range", func(t *testing.T) {
		for _, alpha := range []float64{-0.1, 1.1} {
			_, err := Calibrate(lst, rean, alpha)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "alpha")
		}
	})

	t.Run("grid mismatch", func(t *testing.T) {
		other := mustRaster(t, testGrid(2, 2), []float64{1, 2, 3, 4})
		_, err := Calibrate(lst, other, 0.6)
		require.Error(t, err)
	})
}
