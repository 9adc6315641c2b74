package presenter

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"go-vision-lens/pkg/models"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	entryClass  = "detection"
	errorClass  = "detection error"
	errorPrefix = "Error: "
)

// Entry is one rendered list item
type Entry struct {
	Label           string `json:"label,omitempty"`
	ConfidenceClass string `json:"confidence_class,omitempty"`
	ConfidenceText  string `json:"confidence,omitempty"`
	Description     string `json:"description,omitempty"`
	Error           bool   `json:"error,omitempty"`
	Message         string `json:"message,omitempty"`
	CSSClass        string `json:"css_class"`
}

// View is the presentation of one analysis outcome
type View struct {
	Entries []Entry `json:"entries"`
	Failed  bool    `json:"failed"`
	Model   string  `json:"model,omitempty"`
}

// PageData feeds the full results page
type PageData struct {
	Models          []models.ModelInfo
	Selected        string
	NeedsCredential bool
	View            *View
}

// Present builds a list entry per detection, in order
func Present(detections []models.Detection, model string) View {
	entries := make([]Entry, 0, len(detections))
	for _, d := range detections {
		entries = append(entries, Entry{
			Label:           d.Label,
			ConfidenceClass: d.Confidence.Class(),
			ConfidenceText:  d.Confidence.Display(),
			Description:     d.Description,
			CSSClass:        entryClass,
		})
	}
	return View{Entries: entries, Model: model}
}

// PresentFailure builds a view holding exactly one error entry
func PresentFailure(reason, model string) View {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Unknown error"
	}
	return View{
		Entries: []Entry{{
			Error:    true,
			Message:  errorPrefix + reason,
			CSSClass: errorClass,
		}},
		Failed: true,
		Model:  model,
	}
}

// Presenter renders views with the embedded templates
type Presenter struct {
	templates *template.Template
}

// New parses the embedded templates
func New() (*Presenter, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Presenter{templates: tmpl}, nil
}

// RenderFragment writes the results list as an HTML fragment
func (p *Presenter) RenderFragment(w io.Writer, v View) error {
	return p.templates.ExecuteTemplate(w, "results.html", v)
}

// RenderPage writes the complete page used by the form fallback
func (p *Presenter) RenderPage(w io.Writer, data PageData) error {
	return p.templates.ExecuteTemplate(w, "page.html", data)
}

// RenderText writes one line per entry
func RenderText(w io.Writer, v View) error {
	for _, e := range v.Entries {
		var line string
		switch {
		case e.Error:
			line = e.Message
		case e.Description != "":
			line = fmt.Sprintf("%s [%s]: %s", e.Label, e.ConfidenceText, e.Description)
		default:
			line = fmt.Sprintf("%s [%s]", e.Label, e.ConfidenceText)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
