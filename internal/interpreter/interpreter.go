// Package interpreter turns raw vision replies into detection records.
// It is pure: no I/O and no shared state.
package interpreter

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	apperrors "go-vision-lens/internal/errors"
	"go-vision-lens/pkg/models"
)

var (
	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)
	listMarker    = regexp.MustCompile(`^\s*\d+[.)]\s*`)
	bulletMarker  = regexp.MustCompile(`^\s*[-•]\s+`)
)

// Interpreter implements the reply interpretation used by the controller
type Interpreter struct{}

// New creates an interpreter
func New() *Interpreter {
	return &Interpreter{}
}

// Interpret delegates to the package-level Interpret
func (i *Interpreter) Interpret(raw string) ([]models.Detection, error) {
	return Interpret(raw)
}

type record struct {
	Class       *string         `json:"class"`
	Label       *string         `json:"label"`
	Confidence  json.RawMessage `json:"confidence"`
	Description string          `json:"description"`
}

// Interpret converts reply text into detections. An embedded JSON array of
// objects wins; JSON-shaped text that does not decode becomes a single
// "Analysis" record; otherwise "label: description" and numbered lines are
// used; otherwise the whole text becomes a single "Analysis" record. Only
// blank input is an error.
func Interpret(raw string) ([]models.Detection, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, apperrors.NewParseError("The vision API returned an empty reply", nil)
	}

	detections, jsonShaped, ok := parseStructured(raw)
	if ok {
		return detections, nil
	}
	if !jsonShaped {
		if detections := parseLines(raw); len(detections) > 0 {
			return detections, nil
		}
	}
	return []models.Detection{{
		Label:       models.AnalysisLabel,
		Confidence:  models.Qualitative(models.ConfidenceHigh),
		Description: raw,
	}}, nil
}

// parseStructured tries every '[' in turn and returns the first array that
// decodes as a non-empty list of objects. Trailing commas are tolerated on a
// second attempt. jsonShaped reports whether any '[' opened an object array
// ("[{" ignoring whitespace), decoded or not.
func parseStructured(raw string) (detections []models.Detection, jsonShaped bool, ok bool) {
	for i := 0; i < len(raw); i++ {
		if raw[i] != '[' {
			continue
		}
		rest := raw[i:]
		if strings.HasPrefix(strings.TrimLeft(rest[1:], " \t\r\n"), "{") {
			jsonShaped = true
		}

		items, decoded := decodeArray(rest)
		if !decoded {
			items, decoded = decodeArray(trailingComma.ReplaceAllString(rest, "$1"))
		}
		if !decoded {
			continue
		}
		if detections, ok := objectRecords(items); ok {
			return detections, jsonShaped, true
		}
	}
	return nil, jsonShaped, false
}

// decodeArray decodes the JSON array at the start of s, ignoring whatever
// follows it.
func decodeArray(s string) ([]json.RawMessage, bool) {
	var items []json.RawMessage
	if err := json.NewDecoder(strings.NewReader(s)).Decode(&items); err != nil {
		return nil, false
	}
	return items, true
}

func objectRecords(items []json.RawMessage) ([]models.Detection, bool) {
	if len(items) == 0 {
		return nil, false
	}
	detections := make([]models.Detection, 0, len(items))
	for _, item := range items {
		if !bytes.HasPrefix(bytes.TrimSpace(item), []byte("{")) {
			return nil, false
		}
		var rec record
		if err := json.Unmarshal(item, &rec); err != nil {
			return nil, false
		}
		detections = append(detections, rec.detection())
	}
	return detections, true
}

func (r record) detection() models.Detection {
	label := ""
	if r.Class != nil {
		label = strings.TrimSpace(*r.Class)
	}
	if label == "" && r.Label != nil {
		label = strings.TrimSpace(*r.Label)
	}
	if label == "" {
		label = models.PlaceholderLabel
	}

	confidence := models.Qualitative(models.ConfidenceMedium)
	if len(r.Confidence) > 0 {
		var c models.Confidence
		if err := json.Unmarshal(r.Confidence, &c); err == nil {
			if level, ok := c.Level(); !ok || level != "" {
				confidence = c
			}
		}
	}

	return models.Detection{
		Label:       label,
		Confidence:  confidence,
		Description: strings.TrimSpace(r.Description),
	}
}

// parseLines keeps lines that have a colon or start with a numbered marker
func parseLines(raw string) []models.Detection {
	var detections []models.Detection
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		numbered := listMarker.MatchString(line)
		if !numbered && !strings.Contains(line, ":") {
			continue
		}

		line = listMarker.ReplaceAllString(line, "")
		line = bulletMarker.ReplaceAllString(line, "")
		line = strings.ReplaceAll(line, "*", "")

		label, description, _ := strings.Cut(line, ":")
		label = strings.TrimSpace(label)
		description = strings.TrimSpace(description)
		if label == "" && description == "" {
			continue
		}
		if label == "" {
			label = models.PlaceholderLabel
		}
		detections = append(detections, models.Detection{
			Label:       label,
			Confidence:  models.Qualitative(models.ConfidenceMedium),
			Description: description,
		})
	}
	return detections
}
