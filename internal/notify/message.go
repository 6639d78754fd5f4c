package notify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// VerificationEmail is the unit of work handed to the notifier. It is also
// the JSON payload published to the broker.
type VerificationEmail struct {
	To           string    `json:"to"`
	Code         string    `json:"code"`
	ValidMinutes int       `json:"valid_minutes"`
	Resend       bool      `json:"resend"`
	RequestedAt  time.Time `json:"requested_at"`
}

// Email is a rendered, ready-to-send message.
type Email struct {
	From    string
	To      string
	Subject string
	Body    string
}

const (
	subjectVerification = "%s Verification Code"
	subjectResend       = "%s Verification Code (Resend)"
)

// DefaultTemplate is the plain-text body of verification emails.
const DefaultTemplate = `Hi,

Your verification code is {{.Code}}

The code is valid for {{.ValidMinutes}} minutes.

If you did not create a {{.SiteName}} account, you can ignore this email.


Regards,

{{.SiteName}}
`

// Renderer turns a VerificationEmail into an Email.
type Renderer struct {
	from     string
	siteName string
	tmpl     *template.Template
}

// NewRenderer parses DefaultTemplate.
func NewRenderer(from, siteName string) *Renderer {
	if strings.TrimSpace(siteName) == "" {
		siteName = "NetSync"
	}
	return &Renderer{
		from:     from,
		siteName: siteName,
		tmpl:     template.Must(template.New("verification").Parse(DefaultTemplate)),
	}
}

func (r *Renderer) Render(msg VerificationEmail) (Email, error) {
	var body bytes.Buffer
	err := r.tmpl.Execute(&body, struct {
		Code         string
		ValidMinutes int
		SiteName     string
	}{msg.Code, msg.ValidMinutes, r.siteName})
	if err != nil {
		return Email{}, fmt.Errorf("render verification email: %w", err)
	}

	subject := fmt.Sprintf(subjectVerification, r.siteName)
	if msg.Resend {
		subject = fmt.Sprintf(subjectResend, r.siteName)
	}

	return Email{
		From:    r.from,
		To:      msg.To,
		Subject: subject,
		Body:    body.String(),
	}, nil
}
