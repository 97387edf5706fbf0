package email

import (
	"bytes"
	_ "embed"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// ResultsLinkParams fills the results link email.
type ResultsLinkParams struct {
	Subject     string
	Name        string // respondent name, may be empty
	SurveyName  string
	ButtonLabel string
	ResultsURL  string
}

var (
	//go:embed templates/results_link.html
	resultsLinkHTMLRaw string
	//go:embed templates/results_link.txt
	resultsLinkTextRaw string

	resultsLinkHTML = htmltemplate.Must(htmltemplate.New("results_link.html").Parse(resultsLinkHTMLRaw))
	resultsLinkText = texttemplate.Must(texttemplate.New("results_link.txt").Parse(resultsLinkTextRaw))
)

// ResultsLinkHTML returns the HTML body for a results link email.
func ResultsLinkHTML(p ResultsLinkParams) (string, error) {
	var b bytes.Buffer
	if err := resultsLinkHTML.Execute(&b, p); err != nil {
		return "", err
	}
	return b.String(), nil
}

// ResultsLinkText returns the plain-text body for a results link email.
func ResultsLinkText(p ResultsLinkParams) (string, error) {
	var b bytes.Buffer
	if err := resultsLinkText.Execute(&b, p); err != nil {
		return "", err
	}
	return b.String(), nil
}
