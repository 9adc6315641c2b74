package interpreter

import (
	"testing"

	apperrors "go-vision-lens/internal/errors"
	"go-vision-lens/pkg/models"
)

func medium(label, description string) models.Detection {
	return models.Detection{Label: label, Confidence: models.Qualitative(models.ConfidenceMedium), Description: description}
}

func assertDetections(t *testing.T, got, want []models.Detection) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected %d detections, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Detection %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestInterpret_NumberedLines(t *testing.T) {
	got, err := Interpret("1. Cat: a small feline\n2. Chair: wooden")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	assertDetections(t, got, []models.Detection{
		medium("Cat", "a small feline"),
		medium("Chair", "wooden"),
	})
	if got[0].Confidence.Display() != "medium" {
		t.Errorf("Expected medium confidence, got %s", got[0].Confidence.Display())
	}
}

func TestInterpret_StructuredArray(t *testing.T) {
	raw := "Here is the result:\n```json\n" +
		`[{"class":"Cat","confidence":0.9,"description":"tabby"},` +
		`{"class":"Chair","confidence":"Low"},` +
		`{"confidence":"85%","description":"something round"},` +
		`{"class":"Lamp"}]` +
		"\n```"

	got, err := Interpret(raw)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	assertDetections(t, got, []models.Detection{
		{Label: "Cat", Confidence: models.Numeric(0.9), Description: "tabby"},
		{Label: "Chair", Confidence: models.Qualitative("Low")},
		{Label: "Object", Confidence: models.Numeric(0.85), Description: "something round"},
		medium("Lamp", ""),
	})

	if got[0].Confidence.Class() != "high" || got[0].Confidence.Display() != "90%" {
		t.Errorf("Unexpected numeric rendering: %s %s", got[0].Confidence.Class(), got[0].Confidence.Display())
	}
	if got[1].Confidence.Class() != "low" || got[1].Confidence.Display() != "Low" {
		t.Errorf("Expected level kept verbatim with lower-case class, got %s %s",
			got[1].Confidence.Display(), got[1].Confidence.Class())
	}
}

func TestInterpret_TrailingCommas(t *testing.T) {
	got, err := Interpret(`[{"class":"Cat","confidence":"high",},{"class":"Dog",},]`)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	assertDetections(t, got, []models.Detection{
		{Label: "Cat", Confidence: models.Qualitative("high")},
		medium("Dog", ""),
	})
}

func TestInterpret_BracketsBeforeArray(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"count", "I found [2] objects:\n" + `[{"class":"Cat","confidence":0.9},{"class":"Chair","confidence":"low"}]`},
		{"citation", "As noted in [1], the scene shows [see](https://example.com):\n" + `[{"class":"Cat","confidence":0.9},{"class":"Chair","confidence":"low"}]` + "\nDone [end]."},
		{"array of strings first", `Tags ["pet","indoor"] then ` + `[{"class":"Cat","confidence":0.9},{"class":"Chair","confidence":"low"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Interpret(tt.raw)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			assertDetections(t, got, []models.Detection{
				{Label: "Cat", Confidence: models.Numeric(0.9)},
				{Label: "Chair", Confidence: models.Qualitative("low")},
			})
		})
	}
}

func TestInterpret_MalformedArrayIsSingleAnalysis(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing comma", "[\n  {\n    \"class\": \"Cat\",\n    \"confidence\": 0.9,\n    \"description\": \"tabby\"\n  }\n  {\n    \"class\": \"Dog\",\n    \"confidence\": 0.8,\n    \"description\": \"brown\"\n  }\n]"},
		{"truncated", "Results:\n[\n  {\"class\": \"Cat\", \"confidence\": 0.9},\n  {\"class\": \"Dog\", \"confid"},
		{"object then number", `[{"class":"Cat"}, 3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Interpret(tt.raw)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			assertDetections(t, got, []models.Detection{{
				Label:       "Analysis",
				Confidence:  models.Qualitative(models.ConfidenceHigh),
				Description: tt.raw,
			}})
		})
	}
}

func TestInterpret_UnusableConfidenceDefaultsToMedium(t *testing.T) {
	got, err := Interpret(`[{"class":"Cat","confidence":{"value":1}},{"class":"Dog","confidence":null}]`)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	assertDetections(t, got, []models.Detection{medium("Cat", ""), medium("Dog", "")})
}

func TestInterpret_LineHeuristic(t *testing.T) {
	raw := "I can see the following:\n\n" +
		"* **Lamp**: brass, switched on\n" +
		"- Dog: brown\n" +
		"3) Window\n" +
		"Nothing else of note.\n" +
		"Clock: shows 10:30"

	got, err := Interpret(raw)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	assertDetections(t, got, []models.Detection{
		medium("I can see the following", ""),
		medium("Lamp", "brass, switched on"),
		medium("Dog", "brown"),
		medium("Window", ""),
		medium("Clock", "shows 10:30"),
	})
}

func TestInterpret_EmptyLabelBecomesPlaceholder(t *testing.T) {
	got, err := Interpret(": a blurry shape")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	assertDetections(t, got, []models.Detection{medium("Object", "a blurry shape")})
}

func TestInterpret_AnalysisFallback(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"prose", "A quiet street at dusk with a parked bicycle."},
		{"broken json", "[not json]"},
		{"empty array", "[]"},
		{"array of strings", `["cat", "dog"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Interpret(tt.raw)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			assertDetections(t, got, []models.Detection{{
				Label:       "Analysis",
				Confidence:  models.Qualitative(models.ConfidenceHigh),
				Description: tt.raw,
			}})
		})
	}
}

func TestInterpret_BlankInput(t *testing.T) {
	for _, raw := range []string{"", "   \n\t"} {
		_, err := Interpret(raw)
		if !apperrors.IsType(err, apperrors.ErrorTypeParse) {
			t.Errorf("Expected parse error for %q, got %v", raw, err)
		}
	}
}

func TestInterpret_LabelsNeverEmpty(t *testing.T) {
	inputs := []string{
		`[{"class":""},{"class":"  "}]`,
		"1.\n2. : \n3. :x",
		"[{]",
		"x",
	}
	for _, raw := range inputs {
		got, err := Interpret(raw)
		if err != nil {
			t.Fatalf("Unexpected error for %q: %v", raw, err)
		}
		if len(got) == 0 {
			t.Fatalf("Expected at least one detection for %q", raw)
		}
		for _, d := range got {
			if d.Label == "" {
				t.Errorf("Empty label for input %q: %+v", raw, got)
			}
		}
	}
}

func TestInterpreter_Method(t *testing.T) {
	got, err := New().Interpret("Cat: feline")
	if err != nil {
		t.Fatal(err)
	}
	assertDetections(t, got, []models.Detection{medium("Cat", "feline")})
}
