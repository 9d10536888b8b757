package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// GamxVariant selects the coefficient table family.
type GamxVariant string

// GAMX table variants.
const (
	GamxSenior      GamxVariant = "SENIOR"
	GamxAgeAdjusted GamxVariant = "AGE_ADJUSTED"
	GamxU17         GamxVariant = "U17"
	GamxMasters     GamxVariant = "MASTERS"
)

// gamxRow holds the BCCG parameters fitted for one (age, bodyweight) knot.
// Age is zero for variants that are not age-indexed.
type gamxRow struct {
	Age        float64 `json:"age,omitempty"`
	BodyWeight float64 `json:"bodyWeight"`
	Mu         float64 `json:"mu"`
	Sigma      float64 `json:"sigma"`
	Nu         float64 `json:"nu"`
}

type gamxStore struct {
	mu     sync.Mutex
	dir    string
	tables map[string][]gamxRow
}

var gamx = &gamxStore{dir: defaultDataDir()}

// table loads a variant/gender table on first use. Files are named
// gamx_<variant>_<gender>.json and contain an array of rows sorted here.
func (s *gamxStore) table(variant GamxVariant, gender string) ([]gamxRow, error) {
	key := strings.ToLower(string(variant)) + "_" + strings.ToLower(gender)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables == nil {
		s.tables = make(map[string][]gamxRow)
	}
	if rows, ok := s.tables[key]; ok {
		return rows, nil
	}
	path := filepath.Join(s.dir, "gamx_"+key+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gamx table %s: %w", key, err)
	}
	var rows []gamxRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("gamx table %s: %w", key, err)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Age != rows[j].Age {
			return rows[i].Age < rows[j].Age
		}
		return rows[i].BodyWeight < rows[j].BodyWeight
	})
	s.tables[key] = rows
	return rows, nil
}

// CalculateGamx scores a total on the GAMX scale: the BCCG percentile of the
// total at the lifter's bodyweight, mapped through the standard normal
// quantile onto a 1000-centered scale.
func CalculateGamx(gender string, bodyWeight, total float64, variant GamxVariant, age float64) (float64, error) {
	if total <= 0 || bodyWeight <= 0 {
		return 0, nil
	}
	rows, err := gamx.table(variant, gender)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("gamx table %s/%s is empty", variant, gender)
	}

	mu, sigma, nu := interpolateParams(rows, age, bodyWeight)
	if mu <= 0 || sigma <= 0 {
		return 0, fmt.Errorf("gamx table %s/%s yields invalid parameters", variant, gender)
	}

	var z float64
	if nu != 0 {
		z = (math.Pow(total/mu, nu) - 1) / (nu * sigma)
	} else {
		z = math.Log(total/mu) / sigma
	}
	p := pnorm(z)
	return qnorm(p)*100 + 1000, nil
}

// interpolateParams resolves (mu, sigma, nu) by interpolating the age axis
// first, then the bodyweight axis within each bracketing age row set.
func interpolateParams(rows []gamxRow, age, bodyWeight float64) (mu, sigma, nu float64) {
	ages := distinctAges(rows)
	if len(ages) <= 1 {
		return interpolateByWeight(rowsForAge(rows, ages[0]), bodyWeight)
	}

	lo, hi, t := bracket(ages, age)
	muLo, sigmaLo, nuLo := interpolateByWeight(rowsForAge(rows, lo), bodyWeight)
	muHi, sigmaHi, nuHi := interpolateByWeight(rowsForAge(rows, hi), bodyWeight)
	return lerp(muLo, muHi, t), lerp(sigmaLo, sigmaHi, t), lerp(nuLo, nuHi, t)
}

func distinctAges(rows []gamxRow) []float64 {
	var ages []float64
	for _, row := range rows {
		if len(ages) == 0 || ages[len(ages)-1] != row.Age {
			ages = append(ages, row.Age)
		}
	}
	return ages
}

func rowsForAge(rows []gamxRow, age float64) []gamxRow {
	var out []gamxRow
	for _, row := range rows {
		if row.Age == age {
			out = append(out, row)
		}
	}
	return out
}

func interpolateByWeight(rows []gamxRow, bodyWeight float64) (mu, sigma, nu float64) {
	weights := make([]float64, len(rows))
	for i, row := range rows {
		weights[i] = row.BodyWeight
	}
	lo, hi, t := bracket(weights, bodyWeight)
	var loRow, hiRow gamxRow
	for _, row := range rows {
		if row.BodyWeight == lo {
			loRow = row
		}
		if row.BodyWeight == hi {
			hiRow = row
		}
	}
	return lerp(loRow.Mu, hiRow.Mu, t), lerp(loRow.Sigma, hiRow.Sigma, t), lerp(loRow.Nu, hiRow.Nu, t)
}

// bracket finds the two knots surrounding v in a sorted axis and the
// interpolation fraction between them. Values outside the axis clamp to the
// end knots.
func bracket(axis []float64, v float64) (lo, hi, t float64) {
	if v <= axis[0] {
		return axis[0], axis[0], 0
	}
	last := axis[len(axis)-1]
	if v >= last {
		return last, last, 0
	}
	i := sort.SearchFloat64s(axis, v)
	lo, hi = axis[i-1], axis[i]
	if hi == lo {
		return lo, hi, 0
	}
	return lo, hi, (v - lo) / (hi - lo)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// pnorm is the standard normal CDF.
func pnorm(z float64) float64 {
	return 0.5 * math.Erfc(-z/math.Sqrt2)
}

// qnorm is the standard normal quantile (Acklam's rational approximation,
// accurate to ~1e-9 over the open unit interval).
func qnorm(p float64) float64 {
	const (
		pLow  = 0.02425
		pHigh = 1 - pLow
	)
	switch {
	case p <= 0:
		return math.Inf(-1)
	case p >= 1:
		return math.Inf(1)
	}

	var q, r float64
	switch {
	case p < pLow:
		q = math.Sqrt(-2 * math.Log(p))
		return (((((-7.784894002430293e-03*q-3.223964580411365e-01)*q-2.400758277161838e+00)*q-2.549732539343734e+00)*q+4.374664141464968e+00)*q + 2.938163982698783e+00) /
			((((7.784695709041462e-03*q+3.224671290700398e-01)*q+2.445134137142996e+00)*q+3.754408661907416e+00)*q + 1)
	case p <= pHigh:
		q = p - 0.5
		r = q * q
		return (((((-3.969683028665376e+01*r+2.209460984245205e+02)*r-2.759285104469687e+02)*r+1.383577518672690e+02)*r-3.066479806614716e+01)*r + 2.506628277459239e+00) * q /
			(((((-5.447609879822406e+01*r+1.615858368580409e+02)*r-1.556989798598866e+02)*r+6.680131188771972e+01)*r-1.328068155288572e+01)*r + 1)
	default:
		q = math.Sqrt(-2 * math.Log(1-p))
		return -(((((-7.784894002430293e-03*q-3.223964580411365e-01)*q-2.400758277161838e+00)*q-2.549732539343734e+00)*q+4.374664141464968e+00)*q + 2.938163982698783e+00) /
			((((7.784695709041462e-03*q+3.224671290700398e-01)*q+2.445134137142996e+00)*q+3.754408661907416e+00)*q + 1)
	}
}
