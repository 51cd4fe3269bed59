package domain

import (
	"fmt"
	"time"
)

// RegionNotFoundError reports a boundary query that matched nothing.
type RegionNotFoundError struct {
	Dataset string
	Field   string
	Name    string
}

func (e *RegionNotFoundError) Error() string {
	return fmt.Sprintf("region %q not found in %s (filter field %s)", e.Name, e.Dataset, e.Field)
}

// RegionAmbiguousError reports a boundary query that matched more than one
// feature. Callers must supply a name unique within the dataset.
type RegionAmbiguousError struct {
	Name    string
	Matches int
}

func (e *RegionAmbiguousError) Error() string {
	return fmt.Sprintf("region %q is ambiguous: %d boundary features match", e.Name, e.Matches)
}

// NoCalibrationMatchError reports an LST observation whose date has no
// reanalysis raster. The run fails loud instead of letting a no-data sentinel
// ride through the blend arithmetic.
type NoCalibrationMatchError struct {
	Variable string
	Date     time.Time
}

func (e *NoCalibrationMatchError) Error() string {
	return fmt.Sprintf("no matching calibration data for date %s (%s)",
		e.Date.Format("2006-01-02"), e.Variable)
}

// PixelBudgetError reports a regional reduction or export that would touch
// more pixels than the configured maximum.
type PixelBudgetError struct {
	Pixels int64
	Budget int64
}

func (e *PixelBudgetError) Error() string {
	return fmt.Sprintf("reduction would touch %d pixels, budget is %d", e.Pixels, e.Budget)
}
