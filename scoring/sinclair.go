// Package scoring implements the bodyweight-adjusted scoring formulas used in
// olympic weightlifting. Everything here is a pure function of its inputs;
// nothing touches competition state.
package scoring

import "math"

// Gender markers as they appear in competition data.
const (
	GenderMale   = "M"
	GenderFemale = "F"
)

// sinclairCoefficients holds one olympiad's published A coefficient and the
// bodyweight b of the heaviest world-record holder class.
type sinclairCoefficients struct {
	maleA, maleB     float64
	femaleA, femaleB float64
}

var (
	sinclair2020 = sinclairCoefficients{
		maleA: 0.751945030, maleB: 175.508,
		femaleA: 0.783497476, femaleB: 153.655,
	}
	sinclair2024 = sinclairCoefficients{
		maleA: 0.722762521, maleB: 193.609,
		femaleA: 0.787004341, femaleB: 153.757,
	}
)

func (c sinclairCoefficients) factor(bodyWeight float64, gender string) float64 {
	a, b := c.maleA, c.maleB
	if gender == GenderFemale {
		a, b = c.femaleA, c.femaleB
	}
	if bodyWeight <= 0 {
		return 0
	}
	if bodyWeight >= b {
		return 1
	}
	x := math.Log10(bodyWeight / b)
	return math.Pow(10, a*x*x)
}

// CalculateSinclair2024 scores a total with the 2021-2024 olympiad
// coefficients.
func CalculateSinclair2024(total, bodyWeight float64, gender string) float64 {
	return total * sinclair2024.factor(bodyWeight, gender)
}

// CalculateSinclair2020 scores a total with the 2017-2020 olympiad
// coefficients.
func CalculateSinclair2020(total, bodyWeight float64, gender string) float64 {
	return total * sinclair2020.factor(bodyWeight, gender)
}
