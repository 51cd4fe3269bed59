// Package domain models satellite land-surface-temperature calibration
// against reanalysis air temperature.
//
// # Data Sources
//
// LST imagery follows the MODIS MOD11A1 daily product conventions. The raw
// bands are 16-bit digital numbers with a radiometric scale factor of 0.02
// Kelvin per count, so
//
//	celsius = dn*0.02 - 273.15
//
// Each granule carries a day and a night observation (LST_Day_1km,
// LST_Night_1km) with matching per-pixel quality bands (QC_Day, QC_Night).
// Bit 2 of the quality flag marks cloud-contaminated retrievals; a pixel is
// usable iff that bit is zero. See [ApplyQualityMask].
//
// Reanalysis temperature follows the ERA5 daily aggregate conventions: one
// raster per day for each of mean_2m_air_temperature,
// minimum_2m_air_temperature and maximum_2m_air_temperature, all in Kelvin.
// Kelvin-to-Celsius conversion happens at calibration time, not at load time,
// so one loaded series feeds every calibration branch unchanged.
//
// # Calibration
//
// Air temperature is estimated as a per-pixel linear blend between the LST
// observation and the reanalysis raster for the same calendar day:
//
//	calibrated = lst + (reanalysis - lst) * alpha
//
// with alpha in [0,1]. At alpha=0 the output equals the LST input, at alpha=1
// it equals the reanalysis input. An LST date with no reanalysis match is a
// hard error ([NoCalibrationMatchError]), never a silently propagated no-data
// raster: a defensible-looking wrong value is worse than a failed run.
//
// # Rasters
//
// Rasters are immutable single-band float64 grids on a north-up EPSG:4326
// cell layout; transforms return new rasters. NaN marks cells masked out by
// quality filtering or region clipping, and every reduction skips NaN cells.
package domain
