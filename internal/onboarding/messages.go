package onboarding

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dataX-ai/fitness-pal/internal/domain"
)

// Reply is one outbound text queued for the chat transport.
type Reply struct {
	Body string
}

const (
	welcomeMessage = "Hello! Welcome to GymTracker! 💪\n\n" +
		"Track your workouts in natural language, monitor progress, and achieve your fitness goals."
	namePrompt         = "What should I call you? Just tell me your name to get started."
	measurementsPrompt = "What's your height and weight? For example: \"5'11 and 165 lbs\" or \"180 cm, 75 kg\"."
	heightPrompt       = "I still need your height. For example: \"5'11\" or \"180 cm\"."
	weightPrompt       = "I still need your weight. For example: \"165 lbs\" or \"75 kg\"."
	readySummary       = "You're all set! Send me your workouts in natural language and I'll track them for you."
	workoutAck         = "Logging your workout."
	fallbackMessage    = "I didn't understand that. Try sending a workout log or type 'help' for options."
	quotaNotice        = "You've reached your daily message limit. Please try again tomorrow or upgrade to our paid plan for unlimited messages."
	lowQuotaFormat     = "You have %d free messages left today."
)

var greetings = map[string]struct{}{
	"hello": {}, "hi": {}, "hey": {}, "start": {}, "help": {},
}

// isGreeting reports whether the message is an exact greeting, ignoring case
// and surrounding whitespace. Greetings never count as an answer to the
// pending onboarding field.
func isGreeting(message string) bool {
	_, ok := greetings[strings.ToLower(strings.TrimSpace(message))]
	return ok
}

func activityPrompt() string {
	labels := make([]string, 0, len(domain.ActivityChoices))
	for level := range domain.ActivityChoices {
		labels = append(labels, string(level))
	}
	sort.Strings(labels)

	var b strings.Builder
	b.WriteString("How active are you? Reply with one of:\n")
	for _, label := range labels {
		fmt.Fprintf(&b, "- %s: %s\n", label, domain.ActivityChoices[domain.ActivityLevel(label)])
	}
	return strings.TrimRight(b.String(), "\n")
}

func goalPrompt() string {
	labels := make([]string, 0, len(domain.GoalChoices))
	for goal := range domain.GoalChoices {
		labels = append(labels, string(goal))
	}
	sort.Strings(labels)

	var b strings.Builder
	b.WriteString("What's your fitness goal? Reply with one of:\n")
	for _, label := range labels {
		fmt.Fprintf(&b, "- %s: %s\n", label, domain.GoalChoices[domain.Goal(label)])
	}
	return strings.TrimRight(b.String(), "\n")
}

// promptFor returns the prompt soliciting the given onboarding state's
// missing field, or the ready summary when nothing is missing.
func promptFor(state domain.OnboardingState) Reply {
	switch state {
	case domain.StateNeedsName:
		return Reply{Body: namePrompt}
	case domain.StateNeedsActivity:
		return Reply{Body: activityPrompt()}
	case domain.StateNeedsMeasurements:
		return Reply{Body: measurementsPrompt}
	case domain.StateNeedsGoal:
		return Reply{Body: goalPrompt()}
	default:
		return Reply{Body: readySummary}
	}
}

func thanks(user domain.User, detail string) string {
	if user.Name != "" {
		return fmt.Sprintf("Thanks %s! %s", user.Name, detail)
	}
	return fmt.Sprintf("Thanks! %s", detail)
}
