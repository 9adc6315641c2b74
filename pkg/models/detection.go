package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Placeholder labels substituted when the upstream reply carries no usable class name.
const (
	PlaceholderLabel = "Object"
	AnalysisLabel    = "Analysis"
)

// Qualitative confidence levels produced by the interpreter.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// ConfidenceKind tells which variant a Confidence holds
type ConfidenceKind int

const (
	// QualitativeConfidence is a level name such as "high"
	QualitativeConfidence ConfidenceKind = iota
	// NumericConfidence is a score in [0,1]
	NumericConfidence
)

// Confidence is either a qualitative level or a numeric score.
// The zero value is an unspecified qualitative level and displays as "medium".
type Confidence struct {
	kind  ConfidenceKind
	level string
	score float64
}

// Qualitative creates a level-based confidence
func Qualitative(level string) Confidence {
	return Confidence{kind: QualitativeConfidence, level: strings.TrimSpace(level)}
}

// Numeric creates a score-based confidence. Scores above 1 and up to 100 are
// read as percentages; the result is clamped to [0,1].
func Numeric(score float64) Confidence {
	if score > 1 && score <= 100 {
		score /= 100
	}
	if math.IsNaN(score) || score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return Confidence{kind: NumericConfidence, score: score}
}

// Kind returns the variant held by c
func (c Confidence) Kind() ConfidenceKind {
	return c.kind
}

// Score returns the numeric score and whether c is numeric
func (c Confidence) Score() (float64, bool) {
	return c.score, c.kind == NumericConfidence
}

// Level returns the qualitative level and whether c is qualitative
func (c Confidence) Level() (string, bool) {
	return c.level, c.kind == QualitativeConfidence
}

// Class returns the display class used for styling.
func (c Confidence) Class() string {
	if c.kind == NumericConfidence {
		switch {
		case c.score > 0.7:
			return ConfidenceHigh
		case c.score > 0.4:
			return ConfidenceMedium
		default:
			return ConfidenceLow
		}
	}
	if c.level == "" {
		return ConfidenceMedium
	}
	return strings.ToLower(c.level)
}

// Display returns the text shown next to a label: the literal percentage for
// numeric scores, the level otherwise.
func (c Confidence) Display() string {
	if c.kind == NumericConfidence {
		pct := math.Round(c.score*1000) / 10
		return strconv.FormatFloat(pct, 'f', -1, 64) + "%"
	}
	if c.level == "" {
		return ConfidenceMedium
	}
	return c.level
}

// String implements fmt.Stringer
func (c Confidence) String() string {
	return c.Display()
}

// MarshalJSON writes numeric confidences as numbers and levels as strings
func (c Confidence) MarshalJSON() ([]byte, error) {
	if c.kind == NumericConfidence {
		return json.Marshal(c.score)
	}
	return json.Marshal(c.Display())
}

// UnmarshalJSON accepts a string level, a number, or a numeric string
func (c *Confidence) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*c = Confidence{}
		return nil
	}

	var score float64
	if err := json.Unmarshal(data, &score); err == nil {
		*c = Numeric(score)
		return nil
	}

	var level string
	if err := json.Unmarshal(data, &level); err != nil {
		return fmt.Errorf("confidence must be a string or a number: %w", err)
	}
	// "0.82" and "82%" are scores written as strings
	if f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(level), "%"), 64); err == nil {
		if strings.HasSuffix(strings.TrimSpace(level), "%") {
			f /= 100
		}
		*c = Numeric(f)
		return nil
	}
	*c = Qualitative(level)
	return nil
}

// Detection describes one identified element in an image
type Detection struct {
	Label       string     `json:"label"`
	Confidence  Confidence `json:"confidence"`
	Description string     `json:"description,omitempty"`
}
