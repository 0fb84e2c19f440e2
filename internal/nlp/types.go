// Package nlp calls the language-understanding service that classifies chat
// messages and extracts structured data from free text.
package nlp

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Intent is the coarse classification of an inbound message.
type Intent string

const (
	IntentName         Intent = "name"
	IntentHeightWeight Intent = "height_weight"
	IntentExercise     Intent = "exercise"
	IntentUnknown      Intent = "unknown"
)

// FlexValue decodes a JSON field that may arrive as a string or a number.
// The extraction service is not strict about numeric types, and height
// values legitimately arrive as notations like "5'11".
type FlexValue string

// UnmarshalJSON accepts strings, numbers and null.
func (v *FlexValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*v = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = FlexValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = FlexValue(n.String())
	return nil
}

// String returns the raw textual form.
func (v FlexValue) String() string { return string(v) }

// IsZero reports whether the field was absent, null or empty.
func (v FlexValue) IsZero() bool { return strings.TrimSpace(string(v)) == "" }

// Int parses the value as an integer.
func (v FlexValue) Int() (int, error) {
	return strconv.Atoi(strings.TrimSpace(string(v)))
}

// Float parses the value as a number.
func (v FlexValue) Float() (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
}

// Measurement is one extracted quantity with its reported unit.
type Measurement struct {
	Value FlexValue `json:"value"`
	Unit  string    `json:"unit"`
}

// Measurements is the extraction result for a height/weight message. Either
// field may be empty when the message only supplied one of them.
type Measurements struct {
	Height Measurement `json:"height"`
	Weight Measurement `json:"weight"`
}

// ExerciseWeight is the weight component of a parsed exercise. Both fields
// may arrive as the literal "not specified" for bodyweight movements, so the
// value cannot be a plain number.
type ExerciseWeight struct {
	Value FlexValue `json:"value"`
	Unit  string    `json:"unit"`
}

// ParsedExercise is one movement extracted from a workout blob. Reps is a
// string in the service schema because it can hold variations like "8/6/4";
// downstream metric code parses it and skips records it cannot use.
type ParsedExercise struct {
	Name   string         `json:"exercise_name"`
	Sets   int            `json:"sets"`
	Reps   FlexValue      `json:"reps"`
	Weight ExerciseWeight `json:"weight"`
}

// firstJSON extracts the first top-level JSON object or array from model
// output, tolerating surrounding prose or markdown fences.
func firstJSON(content string) (string, bool) {
	content = strings.TrimSpace(content)
	if fenced := strings.Index(content, "```"); fenced >= 0 {
		rest := content[fenced+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			content = strings.TrimSpace(rest[:end])
		}
	}

	start := strings.IndexAny(content, "{[")
	if start < 0 {
		return "", false
	}
	open := content[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return content[start : i+1], true
			}
		}
	}
	return "", false
}
