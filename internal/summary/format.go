package summary

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dataX-ai/fitness-pal/internal/domain"
)

func exerciseLine(e domain.Exercise) string {
	unit := e.WeightUnit
	if unit == "" {
		unit = "kg"
	}
	weight := strconv.FormatFloat(e.WeightValue, 'f', -1, 64)
	return fmt.Sprintf("%s: %dx%d @ %s%s", e.Name, e.Sets, e.Reps, weight, unit)
}

// dailyMessage renders one user's workouts for the day.
func dailyMessage(sessions []domain.SessionDigest) string {
	parts := []string{"🏋️‍♂️ *Your Workout Summary for Today* 💪\n"}

	for _, s := range sessions {
		parts = append(parts, fmt.Sprintf("\n*Workout at %s*", s.CreatedAt.Format("03:04 PM")))
		if s.ActivityType != nil {
			parts = append(parts, fmt.Sprintf("Type: %s", *s.ActivityType))
		}
		if len(s.Exercises) > 0 {
			parts = append(parts, "\nExercises:")
			for _, e := range s.Exercises {
				parts = append(parts, "• "+exerciseLine(e))
			}
		}
		if s.DurationMin != nil {
			parts = append(parts, fmt.Sprintf("\nDuration: %.0f minutes", *s.DurationMin))
		}
	}

	parts = append(parts, "\nGreat job today! 💪 Keep pushing yourself! 🎯")
	return strings.Join(parts, "\n")
}

// weeklyMessage renders one user's previous week: headline stats, a per-day
// breakdown and a closing line tiered by how many days they trained.
func weeklyMessage(sessions []domain.SessionDigest) string {
	totalWorkouts := len(sessions)
	var totalDuration float64
	totalExercises := 0
	days := map[string]bool{}
	for _, s := range sessions {
		if s.DurationMin != nil {
			totalDuration += *s.DurationMin
		}
		totalExercises += len(s.Exercises)
		days[s.CreatedAt.Format("2006-01-02")] = true
	}
	uniqueDays := len(days)

	parts := []string{
		"📊 *Your Weekly Workout Summary* 🏋️‍♂️\n",
		fmt.Sprintf("Week of %s - %s\n",
			sessions[0].CreatedAt.Format("January 02"),
			sessions[len(sessions)-1].CreatedAt.Format("January 02")),
		"*Weekly Stats:*",
		fmt.Sprintf("• Workout Days: %d/7", uniqueDays),
		fmt.Sprintf("• Total Workouts: %d", totalWorkouts),
		fmt.Sprintf("• Total Exercises: %d", totalExercises),
		fmt.Sprintf("• Total Time: %.0f minutes", totalDuration),
		"\n*Daily Breakdown:*",
	}

	currentDate := ""
	for _, s := range sessions {
		if date := s.CreatedAt.Format("2006-01-02"); date != currentDate {
			currentDate = date
			parts = append(parts, fmt.Sprintf("\n%s:", s.CreatedAt.Format("Monday, January 02")))
		}
		for _, e := range s.Exercises {
			parts = append(parts, "  - "+exerciseLine(e))
		}
	}

	switch {
	case uniqueDays >= 5:
		parts = append(parts, "\n🌟 Outstanding week! Keep up the amazing work! 💪")
	case uniqueDays >= 3:
		parts = append(parts, "\n💪 Solid effort this week! Let's push even harder next week! 🎯")
	default:
		parts = append(parts, "\n🎯 Every workout counts! Let's aim for more sessions next week! 💪")
	}
	return strings.Join(parts, "\n")
}
