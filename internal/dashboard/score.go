// Package dashboard recomputes per-user rollups and serves dashboard reads.
package dashboard

import "math"

// minScoreSessions is the workout history required before a fitness score
// is published.
const minScoreSessions = 20

// fitnessScore derives a 0-100 rating from workout history aggregates.
// Consistency (sessions in the last 30 days) weighs 40 points, exercise
// variety 30 and per-exercise set intensity 30. Users with fewer than
// minScoreSessions sessions get no score.
func fitnessScore(totalSessions, last30Sessions, uniqueExercises, totalSets, totalExercises int) (int, bool) {
	if totalSessions < minScoreSessions {
		return 0, false
	}

	consistency := math.Min(40, float64(last30Sessions)/20*40)
	variety := math.Min(30, float64(uniqueExercises)/15*30)

	intensity := 0.0
	if totalExercises > 0 {
		avgSets := float64(totalSets) / float64(totalExercises)
		intensity = math.Min(30, avgSets/4*30)
	}

	score := int(math.Round(consistency + variety + intensity))
	if score > 100 {
		score = 100
	}
	return score, true
}

// RatingDescription returns the user-facing blurb for a fitness score.
func RatingDescription(score int, hasScore bool) string {
	switch {
	case !hasScore:
		return "Insufficient data - complete more workouts to get a rating"
	case score >= 90:
		return "Excellent fitness dedication! You're among our top performers."
	case score >= 70:
		return "Good fitness routine! You're maintaining a solid workout schedule."
	case score >= 50:
		return "Average commitment. There's room for improvement in consistency or variety."
	default:
		return "Getting started! Focus on building a regular workout routine."
	}
}
