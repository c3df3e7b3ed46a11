package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/mail"
	"strings"

	"github.com/raushankrgupta/hair-director/models"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

var ErrInvalidEmail = errors.New("invalid email address")

// ValidateEmail checks the address format locally. It must be a bare address
// (no display name) with a dotted domain.
func ValidateEmail(addr string) error {
	addr = strings.TrimSpace(addr)
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return ErrInvalidEmail
	}
	at := strings.LastIndexByte(addr, '@')
	domain := addr[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return ErrInvalidEmail
	}
	return nil
}

// SendGridMailer is the email-send collaborator.
type SendGridMailer struct {
	apiKey    string
	fromName  string
	fromEmail string
}

func NewSendGridMailer(apiKey, fromName, fromEmail string) *SendGridMailer {
	return &SendGridMailer{apiKey: apiKey, fromName: fromName, fromEmail: fromEmail}
}

// SendEmail sends an email using SendGrid
func (m *SendGridMailer) SendEmail(ctx context.Context, toEmail, subject, textContent, htmlContent string) error {
	if m.apiKey == "" {
		return fmt.Errorf("SENDGRID_API_KEY is not set in environment variables")
	}

	from := sgmail.NewEmail(m.fromName, m.fromEmail)
	to := sgmail.NewEmail("", toEmail)
	message := sgmail.NewSingleEmail(from, subject, to, textContent, htmlContent)
	client := sendgrid.NewSendClient(m.apiKey)

	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		log.Printf("Error sending email to %s: %v", toEmail, err)
		return err
	}

	if response.StatusCode >= 400 {
		log.Printf("SendGrid API Error: Status Code %d, Body: %s", response.StatusCode, response.Body)
		return fmt.Errorf("failed to send email, status code: %d", response.StatusCode)
	}

	log.Printf("Email sent successfully to %s. Status Code: %d", toEmail, response.StatusCode)
	return nil
}

// SendResults validates the address, then mails the analysis summary.
func (m *SendGridMailer) SendResults(ctx context.Context, toEmail string, result *models.AnalysisResult) error {
	if err := ValidateEmail(toEmail); err != nil {
		return err
	}
	subject, text, html, err := RenderResultsEmail(result)
	if err != nil {
		return err
	}
	return m.SendEmail(ctx, strings.TrimSpace(toEmail), subject, text, html)
}

var resultsHTML = template.Must(template.New("results").Parse(`<h1>Your Hair Director analysis</h1>
<p><strong>Face shape:</strong> {{.FaceShapeLabel}} &middot; <strong>Skin tone:</strong> {{.SkinToneLabel}}</p>
<p>Proportions: upper {{.UpperRatio}}% / middle {{.MiddleRatio}}% / lower {{.LowerRatio}}%</p>
<p>{{.OverallImpression}}</p>
<h2>Recommended styles</h2>
<ol>{{range .Recommendations}}<li><strong>{{.Name}}</strong> ({{.Score}}) &ndash; {{.Reason}}</li>{{end}}</ol>
{{if .StylingTips}}<h2>Styling tips</h2><ul>{{range .StylingTips}}<li>{{.}}</li>{{end}}</ul>{{end}}
{{if .AvoidStyles}}<h2>Styles to avoid</h2><ul>{{range .AvoidStyles}}<li>{{.Name}} &ndash; {{.Reason}}</li>{{end}}</ul>{{end}}`))

// RenderResultsEmail builds the subject, text and HTML bodies for a results mail.
func RenderResultsEmail(result *models.AnalysisResult) (subject, text, html string, err error) {
	if result == nil {
		return "", "", "", fmt.Errorf("no analysis to send")
	}
	var buf bytes.Buffer
	if err := resultsHTML.Execute(&buf, result); err != nil {
		return "", "", "", fmt.Errorf("failed to render email: %w", err)
	}

	var t strings.Builder
	fmt.Fprintf(&t, "Face shape: %s\nSkin tone: %s\n", result.FaceShapeLabel, result.SkinToneLabel)
	fmt.Fprintf(&t, "Proportions: %d%% / %d%% / %d%%\n\n%s\n\nRecommended styles:\n",
		result.UpperRatio, result.MiddleRatio, result.LowerRatio, result.OverallImpression)
	for i, r := range result.Recommendations {
		fmt.Fprintf(&t, "%d. %s - %s\n", i+1, r.Name, r.Reason)
	}
	return "Your Hair Director results", t.String(), buf.String(), nil
}
