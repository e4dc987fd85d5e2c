package trajectory

import "math"

// ValidateElevationChange classifies the elevation delta between two points
// as gain or loss. The raw delta is scaled by an accuracy-driven factor:
// poor fixes are damped toward zero, good fixes with suspiciously small
// deltas get a mild boost to offset sensor under-reporting. Deltas that end
// up below the minimum-change threshold count as jitter. Never fails;
// absent a clear signal it reports zero gain and zero loss.
func (v *Validator) ValidateElevationChange(prev, curr Point) (gain, loss float64) {
	ec := v.cfg.Elevation

	delta := curr.Elevation - prev.Elevation
	if delta == 0 {
		return 0, 0
	}

	factor := 1.0
	switch {
	case curr.Accuracy > ec.PoorAccuracyM:
		factor = ec.DampingFactor
	case curr.Accuracy <= ec.GoodAccuracyM && math.Abs(delta) < ec.EnhanceBelowM:
		factor = ec.EnhancementFactor
	}

	adjusted := delta * factor
	if math.Abs(adjusted) < ec.MinChangeM {
		return 0, 0
	}
	if adjusted > 0 {
		return adjusted, 0
	}
	return 0, -adjusted
}
