package scoring

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeDataFile(t *testing.T, dir, name string, value any) {
	t.Helper()
	data, err := json.Marshal(value)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func useDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	SetDataDir(dir)
	t.Cleanup(func() { SetDataDir(defaultDataDir()) })
	return dir
}

func seniorRows() []gamxRow {
	return []gamxRow{
		{BodyWeight: 60, Mu: 220, Sigma: 0.12, Nu: 0.8},
		{BodyWeight: 80, Mu: 280, Sigma: 0.12, Nu: 0.8},
		{BodyWeight: 100, Mu: 320, Sigma: 0.12, Nu: 0.8},
	}
}

func TestGamxMedianTotalScoresThousand(t *testing.T) {
	dir := useDataDir(t)
	writeDataFile(t, dir, "gamx_senior_m.json", seniorRows())

	// A total equal to mu sits at the distribution median: z is 0, the
	// percentile is 0.5, and the mapped score is exactly 1000.
	score, err := CalculateGamx(GenderMale, 80, 280, GamxSenior, 0)
	require.NoError(t, err)
	require.InDelta(t, 1000, score, 1e-6)
}

func TestGamxMonotonicInTotal(t *testing.T) {
	dir := useDataDir(t)
	writeDataFile(t, dir, "gamx_senior_m.json", seniorRows())

	low, err := CalculateGamx(GenderMale, 80, 250, GamxSenior, 0)
	require.NoError(t, err)
	high, err := CalculateGamx(GenderMale, 80, 310, GamxSenior, 0)
	require.NoError(t, err)
	require.Greater(t, high, low)
	require.Less(t, low, 1000.0)
	require.Greater(t, high, 1000.0)
}

func TestGamxInterpolatesBodyweight(t *testing.T) {
	dir := useDataDir(t)
	writeDataFile(t, dir, "gamx_senior_m.json", seniorRows())

	// Halfway between the 60 and 80 knots the reference mu is 250.
	score, err := CalculateGamx(GenderMale, 70, 250, GamxSenior, 0)
	require.NoError(t, err)
	require.InDelta(t, 1000, score, 1e-6)
}

func TestGamxClampsOutsideAxis(t *testing.T) {
	dir := useDataDir(t)
	writeDataFile(t, dir, "gamx_senior_m.json", seniorRows())

	atEdge, err := CalculateGamx(GenderMale, 100, 320, GamxSenior, 0)
	require.NoError(t, err)
	beyond, err := CalculateGamx(GenderMale, 140, 320, GamxSenior, 0)
	require.NoError(t, err)
	require.InDelta(t, atEdge, beyond, 1e-9)
}

func TestGamxAgeAdjustedInterpolatesAgeAxis(t *testing.T) {
	dir := useDataDir(t)
	writeDataFile(t, dir, "gamx_age_adjusted_m.json", []gamxRow{
		{Age: 30, BodyWeight: 80, Mu: 280, Sigma: 0.12, Nu: 0.8},
		{Age: 50, BodyWeight: 80, Mu: 240, Sigma: 0.12, Nu: 0.8},
	})

	// At age 40 the interpolated mu is 260, so that total scores 1000.
	score, err := CalculateGamx(GenderMale, 80, 260, GamxAgeAdjusted, 40)
	require.NoError(t, err)
	require.InDelta(t, 1000, score, 1e-6)
}

func TestGamxMissingTable(t *testing.T) {
	useDataDir(t)

	_, err := CalculateGamx(GenderFemale, 60, 180, GamxU17, 16)
	require.Error(t, err)
	require.ErrorContains(t, err, "gamx table u17_f")
}

func TestGamxZeroInputs(t *testing.T) {
	useDataDir(t)

	score, err := CalculateGamx(GenderMale, 80, 0, GamxSenior, 0)
	require.NoError(t, err)
	require.Zero(t, score)

	score, err = CalculateGamx(GenderMale, 0, 280, GamxSenior, 0)
	require.NoError(t, err)
	require.Zero(t, score)
}

func TestQnormRoundTripsPnorm(t *testing.T) {
	for _, z := range []float64{-3, -1.5, -0.2, 0, 0.2, 1.5, 3} {
		require.InDelta(t, z, qnorm(pnorm(z)), 1e-8, "z=%v", z)
	}
}

func TestMastersAgeFactor(t *testing.T) {
	dir := useDataDir(t)
	writeDataFile(t, dir, "masters_m.json", map[string]float64{
		"35": 1.023, "40": 1.059, "80": 2.094,
	})

	require.Equal(t, 1.0, GetMastersAgeFactor(25, GenderMale))
	require.Equal(t, 1.023, GetMastersAgeFactor(35, GenderMale))
	// An age between entries uses the nearest lower entry.
	require.Equal(t, 1.023, GetMastersAgeFactor(38, GenderMale))
	// Ages past the table's end use the oldest entry.
	require.Equal(t, 2.094, GetMastersAgeFactor(95, GenderMale))
	// No women's table shipped: factor stays neutral.
	require.Equal(t, 1.0, GetMastersAgeFactor(50, GenderFemale))
}

func TestCalculateMastersSinclair(t *testing.T) {
	dir := useDataDir(t)
	writeDataFile(t, dir, "masters_m.json", map[string]float64{"60": 1.5})

	base := CalculateSinclair2020(200, 80, GenderMale)
	require.InDelta(t, base*1.5, CalculateMastersSinclair(200, 80, GenderMale, 60), 1e-9)
}

func TestQPoints(t *testing.T) {
	// A lifter hitting exactly the expected total for their bodyweight
	// scores 100.
	expected := qpointsMale.expectedTotal(89)
	require.InDelta(t, 100, CalculateQPoints(expected, 89, GenderMale), 1e-9)

	require.Greater(t,
		CalculateQPoints(200, 60, GenderFemale),
		CalculateQPoints(200, 80, GenderFemale))

	require.Zero(t, CalculateQPoints(200, 0, GenderMale))
}

func TestQPointsWithAge(t *testing.T) {
	dir := useDataDir(t)
	writeDataFile(t, dir, "masters_f.json", map[string]float64{"45": 1.2})

	base := CalculateQPoints(150, 64, GenderFemale)
	require.InDelta(t, base*1.2, CalculateQPointsWithAge(150, 64, GenderFemale, 45), 1e-9)
	require.InDelta(t, base, CalculateQPointsWithAge(150, 64, GenderFemale, 28), 1e-9)
}
