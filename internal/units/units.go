// Package units normalizes free-text body measurements into metric values.
package units

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrUnknownUnit is returned when a value carries a unit we do not
	// convert. Callers log and drop the value rather than guess.
	ErrUnknownUnit = errors.New("unrecognized measurement unit")
	// ErrBadValue is returned when a measurement value cannot be parsed.
	ErrBadValue = errors.New("unparseable measurement value")
)

const (
	cmPerFoot = 30.48
	cmPerInch = 2.54
	cmPerM    = 100
	kgPerLb   = 0.453592
)

// feetInches matches combined notations such as 5'11, 5'10'', 5ft6in, 6' and 5ft.
var feetInches = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(?:'|ft\.?)\s*(\d+(?:\.\d+)?)?\s*(?:"|''|in\.?)?$`)

// HeightToCm converts a raw height value plus unit into centimeters.
// Combined feet-inches notation in the value takes precedence over the unit.
// A decimal feet value treats the fractional part as twelfths (inches).
func HeightToCm(value, unit string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, ErrBadValue
	}

	if m := feetInches.FindStringSubmatch(value); m != nil {
		feet, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, ErrBadValue
		}
		inches := 0.0
		if m[2] != "" {
			inches, err = strconv.ParseFloat(m[2], 64)
			if err != nil {
				return 0, ErrBadValue
			}
		}
		return feet*cmPerFoot + inches*cmPerInch, nil
	}

	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, ErrBadValue
	}

	switch normalizeUnit(unit) {
	case "ft", "feet", "foot":
		// Fractional feet are twelfths: 5.5 means 5 feet 6 inches.
		whole, frac := math.Modf(v)
		return whole*cmPerFoot + frac*12*cmPerInch, nil
	case "in", "inch", "inches":
		return v * cmPerInch, nil
	case "m", "meter", "meters", "metre", "metres":
		return v * cmPerM, nil
	case "cm":
		return v, nil
	default:
		return 0, ErrUnknownUnit
	}
}

// WeightToKg converts a raw weight value plus unit into kilograms.
func WeightToKg(value, unit string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, ErrBadValue
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, ErrBadValue
	}

	switch normalizeUnit(unit) {
	case "lb", "lbs", "pound", "pounds":
		return v * kgPerLb, nil
	case "kg", "kgs":
		return v, nil
	case "g", "gram", "grams":
		return v / 1000, nil
	default:
		return 0, ErrUnknownUnit
	}
}

func normalizeUnit(unit string) string {
	return strings.ToLower(strings.TrimSpace(unit))
}

// LbsToKg converts pounds to kilograms.
func LbsToKg(lbs float64) float64 { return lbs * kgPerLb }

// BMITargets maps fitness goals to the BMI used when deriving a goal weight.
var BMITargets = map[string]float64{
	"lean":     20.5,
	"athletic": 23.0,
	"bulk":     26.0,
}

// GoalWeight derives a target weight in kg from height and fitness goal
// using the BMI formula. Unknown goals fall back to the athletic target.
// Returns 0 when height is not usable.
func GoalWeight(heightCm float64, goal string) float64 {
	if heightCm <= 0 {
		return 0
	}
	target, ok := BMITargets[strings.ToLower(strings.TrimSpace(goal))]
	if !ok {
		target = BMITargets["athletic"]
	}
	m := heightCm / 100
	return math.Round(target*m*m*10) / 10
}
