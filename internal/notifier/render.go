package notifier

import (
	"fmt"
	"html/template"
	"strings"
)

// TemplateData is everything a notification template can reference. Fields
// irrelevant to a given type stay zero.
type TemplateData struct {
	AppName       string
	RecipientName string

	VerificationURL string
	ResetURL        string

	Booking  *Booking
	Location *Location
	Update   BookingUpdateKind

	SenderName     string
	MessagePreview string

	// IsHost selects the host-facing variant of the booking confirmation.
	IsHost bool
}

// RenderedEmail is the subject and body produced for one recipient.
type RenderedEmail struct {
	Subject  string
	BodyHTML string
}

// Renderer produces the subject and HTML body for a notification type.
type Renderer interface {
	Render(typ NotificationType, data TemplateData) (RenderedEmail, error)
}

// HTMLRenderer renders deterministic transactional HTML from an embedded
// per-type template table.
type HTMLRenderer struct {
	templates map[NotificationType]*template.Template
}

// NewHTMLRenderer creates the default renderer.
func NewHTMLRenderer() *HTMLRenderer {
	parse := func(name, body string) *template.Template {
		return template.Must(template.New(name).Parse(layoutHeader + body + layoutFooter))
	}

	return &HTMLRenderer{
		templates: map[NotificationType]*template.Template{
			TypeWelcome:             parse("welcome", welcomeBody),
			TypePasswordReset:       parse("password_reset", passwordResetBody),
			TypeBookingConfirmation: parse("booking_confirmation", bookingConfirmationBody),
			TypeBookingUpdate:       parse("booking_update", bookingUpdateBody),
			TypeMessageReceived:     parse("message_received", messageReceivedBody),
		},
	}
}

// Render implements Renderer.
func (r *HTMLRenderer) Render(typ NotificationType, data TemplateData) (RenderedEmail, error) {
	tmpl, ok := r.templates[typ]
	if !ok {
		return RenderedEmail{}, fmt.Errorf("%w: %s", ErrInvalidType, typ)
	}

	var body strings.Builder
	if err := tmpl.Execute(&body, data); err != nil {
		return RenderedEmail{}, fmt.Errorf("render %s: %w", typ, err)
	}

	return RenderedEmail{
		Subject:  subjectFor(typ, data),
		BodyHTML: body.String(),
	}, nil
}

func subjectFor(typ NotificationType, data TemplateData) string {
	switch typ {
	case TypeWelcome:
		return fmt.Sprintf("Welcome to %s", data.AppName)
	case TypePasswordReset:
		return fmt.Sprintf("Reset your %s password", data.AppName)
	case TypeBookingConfirmation:
		if data.IsHost {
			return fmt.Sprintf("New booking at %s", locationName(data))
		}
		return fmt.Sprintf("Your booking at %s is confirmed", locationName(data))
	case TypeBookingUpdate:
		return fmt.Sprintf("Your booking at %s was %s", locationName(data), data.Update)
	case TypeMessageReceived:
		return fmt.Sprintf("New message from %s", data.SenderName)
	}
	return string(typ)
}

func locationName(data TemplateData) string {
	if data.Location != nil && data.Location.Name != "" {
		return data.Location.Name
	}
	return "your location"
}

const layoutHeader = `<!DOCTYPE html>
<html>
<body style="font-family:sans-serif;max-width:600px;margin:0 auto">
<p>Hi {{if .RecipientName}}{{.RecipientName}}{{else}}there{{end}},</p>
`

const layoutFooter = `
<p>Best,<br>The {{.AppName}} team</p>
</body>
</html>
`

const welcomeBody = `<p>Welcome to {{.AppName}}! Your account is ready.</p>
{{if .VerificationURL}}<p>Please verify your email address to get started:</p>
<p><a href="{{.VerificationURL}}">Verify email</a></p>{{end}}`

const passwordResetBody = `<p>We received a request to reset your password.</p>
<p><a href="{{.ResetURL}}">Reset password</a></p>
<p>If you did not request this, you can ignore this email.</p>`

const bookingConfirmationBody = `{{if .IsHost}}<p>You have a new confirmed booking
at {{.Location.Name}}.</p>{{else}}<p>Your booking at {{.Location.Name}} in
{{.Location.City}} is confirmed.</p>{{end}}
<ul>
<li>Check-in: {{.Booking.CheckIn.Format "Mon, 02 Jan 2006"}}</li>
<li>Check-out: {{.Booking.CheckOut.Format "Mon, 02 Jan 2006"}}</li>
<li>Guests: {{.Booking.GuestCount}}</li>
</ul>`

const bookingUpdateBody = `<p>Your booking at {{.Location.Name}} was
<strong>{{.Update}}</strong>.</p>
<ul>
<li>Check-in: {{.Booking.CheckIn.Format "Mon, 02 Jan 2006"}}</li>
<li>Check-out: {{.Booking.CheckOut.Format "Mon, 02 Jan 2006"}}</li>
</ul>`

const messageReceivedBody = `<p>{{.SenderName}} sent you a message:</p>
<blockquote>{{.MessagePreview}}</blockquote>`
