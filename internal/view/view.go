// Package view maps controller state to the data the HTML templates render.
package view

import (
	"embed"
	"html/template"
	"math"
	"strconv"

	"github.com/example/plantdoc/internal/controller"
	"github.com/example/plantdoc/internal/diagnosis"
)

//go:embed templates/*.html
var templateFS embed.FS

// Advisory is shown under every diagnosis.
const Advisory = "This is an automated analysis and should not replace professional diagnosis. " +
	"For serious plant health concerns, please consult with a local agricultural extension office or plant pathologist."

// Tip is one item of the photo guidance list.
type Tip struct {
	Title string
	Text  string
}

// PhotoTips is the guidance shown on the upload page.
var PhotoTips = []Tip{
	{"Good lighting", "Take photos in natural daylight for best results"},
	{"Clear focus", "Ensure the affected area is in sharp focus"},
	{"Close-up", "Get close enough to show disease symptoms clearly"},
	{"Show the whole leaf", "Include both healthy and affected parts if possible"},
	{"Avoid shadows", "Make sure the plant is evenly lit without harsh shadows"},
	{"Clean background", "A plain background helps the classifier focus on the plant"},
}

// Page is the view-model for one render. Exactly one of Upload and Results is set.
type Page struct {
	Title   string
	Upload  *UploadView
	Results *ResultsView
}

// UploadView backs the upload page.
type UploadView struct {
	Preview      template.URL
	HasPreview   bool
	Filename     string
	ErrorMessage string
	CanSubmit    bool
	Loading      bool
	SubmitLabel  string
	Tips         []Tip
}

// ResultsView backs the results page.
type ResultsView struct {
	Preview         template.URL
	HasPreview      bool
	Disease         string
	Severity        string
	Category        diagnosis.SeverityCategory
	Band            string
	Icon            string
	Confidence      string
	ConfidenceWidth float64
	IsPlant         bool
	Treatment       string
	Advisory        string
}

// Build is a pure mapping from state to view-model.
func Build(state controller.UploadState) Page {
	if state.Page == controller.PageResults && state.Result != nil {
		return Page{Title: "Analysis Results", Results: buildResults(state)}
	}
	return Page{Title: "Plant Disease Classifier", Upload: buildUpload(state)}
}

func buildUpload(state controller.UploadState) *UploadView {
	v := &UploadView{
		// the preview is a data URI built from the upload, never user-typed text
		Preview:      template.URL(state.PreviewURI),
		HasPreview:   state.PreviewURI != "",
		ErrorMessage: state.ErrorMessage,
		CanSubmit:    state.CanSubmit(),
		Loading:      state.IsLoading,
		SubmitLabel:  "Analyze Plant",
		Tips:         PhotoTips,
	}
	if state.SelectedFile != nil {
		v.Filename = state.SelectedFile.Name
	}
	if state.IsLoading {
		v.SubmitLabel = "Analyzing..."
	}
	return v
}

func buildResults(state controller.UploadState) *ResultsView {
	r := state.Result
	confidence := FormatConfidence(r.Confidence)
	if r.ConfidenceText != "" {
		confidence = r.ConfidenceText
	}
	category := diagnosis.ClassifySeverity(r.Severity)
	return &ResultsView{
		Preview:         template.URL(state.PreviewURI),
		HasPreview:      state.PreviewURI != "",
		Disease:         r.Disease,
		Severity:        r.Severity,
		Category:        category,
		Band:            diagnosis.Band(category),
		Icon:            diagnosis.Icon(category),
		Confidence:      confidence,
		ConfidenceWidth: ConfidenceWidth(r.Confidence),
		IsPlant:         r.IsPlant,
		Treatment:       r.Treatment,
		Advisory:        Advisory,
	}
}

// FormatConfidence renders the confidence exactly as received: 92 stays 92,
// 87.25 stays 87.25.
func FormatConfidence(confidence float64) string {
	return strconv.FormatFloat(confidence, 'f', -1, 64)
}

// ConfidenceWidth is the bar width in percent. The value is not validated
// upstream, so the bar alone is clamped to [0, 100].
func ConfidenceWidth(confidence float64) float64 {
	switch {
	case math.IsNaN(confidence), confidence < 0:
		return 0
	case confidence > 100:
		return 100
	default:
		return confidence
	}
}

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"pct": func(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) },
	}).ParseFS(templateFS, "templates/*.html")
}
