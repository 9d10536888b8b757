package scoring

import "math"

// Q-points model the expected total at a bodyweight with a saturating
// exponential and score lifters against it on a 0-100-ish scale.
type qpointsCurve struct {
	a, b, c float64
}

var (
	qpointsMale   = qpointsCurve{a: 463.27, b: 363.11, c: 0.01588}
	qpointsFemale = qpointsCurve{a: 306.54, b: 235.34, c: 0.02000}
)

func (q qpointsCurve) expectedTotal(bodyWeight float64) float64 {
	return q.a - q.b*math.Exp(-q.c*bodyWeight)
}

// CalculateQPoints scores a total against the reference curve for the
// lifter's gender.
func CalculateQPoints(total, bodyWeight float64, gender string) float64 {
	curve := qpointsMale
	if gender == GenderFemale {
		curve = qpointsFemale
	}
	expected := curve.expectedTotal(bodyWeight)
	if expected <= 0 || bodyWeight <= 0 {
		return 0
	}
	return total * 100 / expected
}

// CalculateQPointsWithAge applies the masters age factor on top of the base
// Q-points score for lifters 30 and over.
func CalculateQPointsWithAge(total, bodyWeight float64, gender string, age int) float64 {
	return CalculateQPoints(total, bodyWeight, gender) * GetMastersAgeFactor(age, gender)
}
