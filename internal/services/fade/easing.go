// Package fade ramps scalar levels (master brightness, volume) over time
// along an easing curve.
package fade

import (
	"fmt"
	"math"
	"strings"
)

// EasingType names an easing curve.
type EasingType string

const (
	// EasingLinear provides constant rate of change.
	EasingLinear EasingType = "linear"
	// EasingInOutSine provides gentle sine wave easing.
	EasingInOutSine EasingType = "sine"
	// EasingInOutCubic provides smooth acceleration and deceleration.
	EasingInOutCubic EasingType = "cubic"
	// EasingOutExponential provides sharp start, smooth end.
	EasingOutExponential EasingType = "exponential"
	// EasingSCurve provides sigmoid easing.
	EasingSCurve EasingType = "s-curve"
)

// DefaultEasing is used when no curve is named.
const DefaultEasing = EasingInOutSine

// ParseEasing accepts a curve name in any case. An empty name yields the
// default curve.
func ParseEasing(name string) (EasingType, error) {
	if name == "" {
		return DefaultEasing, nil
	}
	e := EasingType(strings.ToLower(name))
	switch e {
	case EasingLinear, EasingInOutSine, EasingInOutCubic, EasingOutExponential, EasingSCurve:
		return e, nil
	}
	return "", fmt.Errorf("unknown easing %q", name)
}

// ApplyEasing maps linear progress in [0,1] onto the curve.
func ApplyEasing(progress float64, easingType EasingType) float64 {
	switch easingType {
	case EasingLinear:
		return progress

	case EasingInOutCubic:
		if progress < 0.5 {
			return 4 * progress * progress * progress
		}
		temp := -2*progress + 2
		return 1 - temp*temp*temp/2

	case EasingInOutSine:
		return -(math.Cos(math.Pi*progress) - 1) / 2

	case EasingOutExponential:
		if progress >= 1 {
			return 1
		}
		return 1 - math.Pow(2, -10*progress)

	case EasingSCurve:
		// Logistic curve rescaled so it passes through 0 and 1 exactly.
		const k = 10.0
		lo := 1 / (1 + math.Exp(k*0.5))
		hi := 1 / (1 + math.Exp(-k*0.5))
		v := 1 / (1 + math.Exp(-k*(progress-0.5)))
		return (v - lo) / (hi - lo)

	default:
		return progress
	}
}

// Interpolate returns the level between start and end at progress.
func Interpolate(start, end, progress float64, easingType EasingType) float64 {
	if easingType == "" {
		easingType = DefaultEasing
	}
	if progress <= 0 {
		return start
	}
	if progress >= 1 {
		return end
	}
	return start + (end-start)*ApplyEasing(progress, easingType)
}
