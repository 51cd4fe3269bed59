package domain

import (
	"fmt"
	"math"
)

// MOD11A1 sensor calibration constants. These are properties of the
// instrument encoding, not tunables.
const (
	LSTScaleFactor = 0.02
	KelvinOffset   = 273.15
)

// CloudQualityBit is the MODIS QC bit marking cloud-contaminated retrievals.
const CloudQualityBit = 2

// MODIS MOD11A1 band names.
const (
	BandLSTDay   = "LST_Day_1km"
	BandLSTNight = "LST_Night_1km"
	BandQCDay    = "QC_Day"
	BandQCNight  = "QC_Night"
)

// ERA5 daily reanalysis variable names.
const (
	VarReanalysisMean = "mean_2m_air_temperature"
	VarReanalysisMin  = "minimum_2m_air_temperature"
	VarReanalysisMax  = "maximum_2m_air_temperature"
)

// Canonical output variable names.
const (
	VarLST         = "LST"
	VarAirTempMean = "air_temperature_mean"
	VarAirTempMin  = "air_temperature_min"
	VarAirTempMax  = "air_temperature_max"
)

// RescaleLST converts a raw MOD11A1 digital number to Celsius.
func RescaleLST(dn float64) float64 {
	return dn*LSTScaleFactor - KelvinOffset
}

// KelvinToCelsius converts a reanalysis temperature to Celsius.
func KelvinToCelsius(k float64) float64 {
	return k - KelvinOffset
}

// QualityBitSet reports whether the given bit of a quality-flag value is 1.
// Quality flags arrive as float64 cells but encode small unsigned integers.
func QualityBitSet(qc float64, bit uint) bool {
	if math.IsNaN(qc) {
		return true
	}
	return (uint16(qc)>>bit)&1 == 1
}

// ApplyQualityMask masks out every cell of band whose quality flag has the
// given bit set. A pixel is valid iff the tested bit equals zero; invalid
// pixels become NaN, they are never deleted from the grid.
func ApplyQualityMask(band, qc Raster, bit uint) (Raster, error) {
	masked, err := Zip(band, qc, func(v, flag float64) float64 {
		if QualityBitSet(flag, bit) {
			return math.NaN()
		}
		return v
	})
	if err != nil {
		return Raster{}, fmt.Errorf("apply quality mask: %w", err)
	}
	return masked, nil
}

// Calibrate blends an LST raster (Celsius) toward a reanalysis raster
// (Kelvin, converted here) with weight alpha:
//
//	calibrated = lst + (reanalysis_celsius - lst) * alpha
//
// A NaN in either input stays NaN in the output.
func Calibrate(lst, reanalysisKelvin Raster, alpha float64) (Raster, error) {
	if alpha < 0 || alpha > 1 {
		return Raster{}, fmt.Errorf("alpha must be in [0,1], got %g", alpha)
	}
	blended, err := Zip(lst, reanalysisKelvin, func(lstC, reanK float64) float64 {
		reanC := KelvinToCelsius(reanK)
		return lstC + (reanC-lstC)*alpha
	})
	if err != nil {
		return Raster{}, fmt.Errorf("calibrate: %w", err)
	}
	return blended, nil
}
