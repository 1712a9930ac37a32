// internal/workers/matching/send-match-notification/templates.go
package sendmatchnotification

import (
	"bytes"
	htmltemplate "html/template"
	"text/template"

	"investlink-workers/internal/matching"
)

type emailData struct {
	InvestorName string
	StartupName  string
	Confidence   int
	Strength     string
	Analysis     string
	Explanation  string
}

const subjectTemplate = `New {{.Strength}} match: {{.StartupName}}`

const textTemplate = `Hi {{.InvestorName}},

{{.StartupName}} is a {{.Strength}} match for you ({{.Confidence}}% confidence).

{{.Explanation}}

{{.Analysis}}
`

const htmlTemplate = `<p>Hi {{.InvestorName}},</p>
<p><strong>{{.StartupName}}</strong> is a {{.Strength}} match for you ({{.Confidence}}% confidence).</p>
<p>{{.Explanation}}</p>
<p>{{.Analysis}}</p>
`

var (
	subjectTmpl = template.Must(template.New("subject").Parse(subjectTemplate))
	textTmpl    = template.Must(template.New("text").Parse(textTemplate))
	htmlTmpl    = htmltemplate.Must(htmltemplate.New("html").Parse(htmlTemplate))
)

type renderedEmail struct {
	Subject string
	Text    string
	HTML    string
}

func renderEmail(input *Input) (*renderedEmail, error) {
	data := emailData{
		InvestorName: input.InvestorName,
		StartupName:  input.StartupName,
		Confidence:   matching.Percent(input.MatchResult.ConfidenceScore),
		Strength:     string(input.MatchResult.RecommendationStrength),
		Analysis:     input.MatchResult.AIAnalysis,
		Explanation:  input.MatchResult.MatchExplanation,
	}
	if data.InvestorName == "" {
		data.InvestorName = "there"
	}
	if data.StartupName == "" {
		data.StartupName = input.StartupID
	}

	var subject, text, html bytes.Buffer
	if err := subjectTmpl.Execute(&subject, data); err != nil {
		return nil, err
	}
	if err := textTmpl.Execute(&text, data); err != nil {
		return nil, err
	}
	if err := htmlTmpl.Execute(&html, data); err != nil {
		return nil, err
	}

	return &renderedEmail{Subject: subject.String(), Text: text.String(), HTML: html.String()}, nil
}
