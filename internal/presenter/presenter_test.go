package presenter

import (
	"bytes"
	"strings"
	"testing"

	"go-vision-lens/pkg/models"
)

func TestPresent(t *testing.T) {
	view := Present([]models.Detection{
		{Label: "Cat", Confidence: models.Numeric(0.875), Description: "tabby"},
		{Label: "Chair", Confidence: models.Qualitative("LOW")},
	}, "flash")

	if view.Failed {
		t.Error("Expected successful view")
	}
	if view.Model != "flash" {
		t.Errorf("Expected model flash, got %s", view.Model)
	}
	if len(view.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(view.Entries))
	}

	cat := view.Entries[0]
	if cat.Label != "Cat" || cat.ConfidenceClass != "high" || cat.ConfidenceText != "87.5%" || cat.Description != "tabby" {
		t.Errorf("Unexpected entry: %+v", cat)
	}
	if cat.CSSClass != "detection" || cat.Error {
		t.Errorf("Expected a normal entry, got %+v", cat)
	}

	chair := view.Entries[1]
	if chair.ConfidenceClass != "low" || chair.ConfidenceText != "LOW" {
		t.Errorf("Expected verbatim level with lower-case class, got %+v", chair)
	}
}

func TestPresentFailure(t *testing.T) {
	view := PresentFailure("quota exceeded", "pro")

	if !view.Failed {
		t.Error("Expected failed view")
	}
	if len(view.Entries) != 1 {
		t.Fatalf("Expected exactly one entry, got %d", len(view.Entries))
	}
	entry := view.Entries[0]
	if !entry.Error || entry.CSSClass != "detection error" {
		t.Errorf("Expected error entry, got %+v", entry)
	}
	if entry.Message != "Error: quota exceeded" {
		t.Errorf("Unexpected message %q", entry.Message)
	}

	if PresentFailure("  ", "").Entries[0].Message != "Error: Unknown error" {
		t.Error("Expected a fallback reason for blank input")
	}
}

func TestRenderFragment(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("Failed to parse templates: %v", err)
	}

	var buf bytes.Buffer
	view := Present([]models.Detection{
		{Label: "<script>alert(1)</script>", Confidence: models.Numeric(0.3), Description: "a & b"},
	}, "flash")
	if err := p.RenderFragment(&buf, view); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	html := buf.String()
	if strings.Contains(html, "<script>") {
		t.Error("Expected label to be escaped")
	}
	if !strings.Contains(html, "&lt;script&gt;") {
		t.Errorf("Expected escaped label in output: %s", html)
	}
	if !strings.Contains(html, `class="confidence low"`) || !strings.Contains(html, "30%") {
		t.Errorf("Expected confidence badge in output: %s", html)
	}
	if !strings.Contains(html, "a &amp; b") {
		t.Errorf("Expected escaped description: %s", html)
	}
}

func TestRenderFragment_Failure(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := p.RenderFragment(&buf, PresentFailure("quota exceeded", "flash")); err != nil {
		t.Fatal(err)
	}
	html := buf.String()
	if strings.Count(html, "<li") != 1 {
		t.Errorf("Expected exactly one list item: %s", html)
	}
	if !strings.Contains(html, `<li class="detection error">Error: quota exceeded</li>`) {
		t.Errorf("Expected styled error entry: %s", html)
	}
}

func TestRenderPage(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatal(err)
	}

	view := Present([]models.Detection{{Label: "Cat", Confidence: models.Qualitative("high")}}, "pro")
	data := PageData{
		Models: []models.ModelInfo{
			{Key: "flash", ID: "gemini-2.5-flash", Label: "Gemini Flash"},
			{Key: "pro", ID: "gemini-2.5-pro", Label: "Gemini Pro"},
		},
		Selected:        "pro",
		NeedsCredential: true,
		View:            &view,
	}

	var buf bytes.Buffer
	if err := p.RenderPage(&buf, data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	html := buf.String()
	if !strings.Contains(html, `value="pro" checked`) {
		t.Errorf("Expected selected model to be checked: %s", html)
	}
	if strings.Contains(html, `value="flash" checked`) {
		t.Error("Expected only the selected model to be checked")
	}
	if !strings.Contains(html, `name="api_key"`) {
		t.Error("Expected credential field when a credential is needed")
	}
	if !strings.Contains(html, "detection-label") {
		t.Error("Expected results section")
	}

	buf.Reset()
	data.View = nil
	data.NeedsCredential = false
	if err := p.RenderPage(&buf, data); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), `id="results"`) || strings.Contains(buf.String(), `name="api_key"`) {
		t.Error("Expected no results section and no credential field")
	}
}

func TestRenderText(t *testing.T) {
	view := Present([]models.Detection{
		{Label: "Cat", Confidence: models.Numeric(0.9), Description: "tabby"},
		{Label: "Chair", Confidence: models.Qualitative("medium")},
	}, "")

	var buf bytes.Buffer
	if err := RenderText(&buf, view); err != nil {
		t.Fatal(err)
	}
	expected := "Cat [90%]: tabby\nChair [medium]\n"
	if buf.String() != expected {
		t.Errorf("Expected %q, got %q", expected, buf.String())
	}

	buf.Reset()
	if err := RenderText(&buf, PresentFailure("No results returned from API", "")); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "Error: No results returned from API\n" {
		t.Errorf("Unexpected failure text %q", buf.String())
	}
}
