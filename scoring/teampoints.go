package scoring

// Default podium point values for team classification.
const (
	TeamPointsFirst  = 28
	TeamPointsSecond = 25
	TeamPointsThird  = 23
)

// CalculateTeamPoints awards classification points for one ranked result.
// Non-members and bombed-out lifters (no successful lift) score zero; ranks
// past the podium decay by one point per place until zero.
func CalculateTeamPoints(rank int, liftValue float64, isTeamMember bool, tp1, tp2, tp3 int) int {
	if !isTeamMember || liftValue <= 0 || rank <= 0 {
		return 0
	}
	switch rank {
	case 1:
		return tp1
	case 2:
		return tp2
	case 3:
		return tp3
	}
	points := tp3 - (rank - 3)
	if points < 0 {
		return 0
	}
	return points
}

// CalculateDefaultTeamPoints applies the standard 28/25/23 scale.
func CalculateDefaultTeamPoints(rank int, liftValue float64, isTeamMember bool) int {
	return CalculateTeamPoints(rank, liftValue, isTeamMember, TeamPointsFirst, TeamPointsSecond, TeamPointsThird)
}
