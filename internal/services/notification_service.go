package services

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	texttemplate "text/template"

	"github.com/BradenHooton/medalroll/internal/models"
	"github.com/BradenHooton/medalroll/pkg/logger"
)

// UserDirectory resolves accounts to names and contact addresses
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type emailTemplate struct {
	subject *texttemplate.Template
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

func mustEmailTemplate(name, subject, html, text string) emailTemplate {
	return emailTemplate{
		subject: texttemplate.Must(texttemplate.New(name + "_subject").Parse(subject)),
		html:    htmltemplate.Must(htmltemplate.New(name + "_html").Parse(html)),
		text:    texttemplate.Must(texttemplate.New(name + "_text").Parse(text)),
	}
}

func (t emailTemplate) render(data interface{}) (subject, html, text string, err error) {
	var subj, hb, tb bytes.Buffer
	if err = t.subject.Execute(&subj, data); err != nil {
		return "", "", "", fmt.Errorf("render subject: %w", err)
	}
	if err = t.html.Execute(&hb, data); err != nil {
		return "", "", "", fmt.Errorf("render html: %w", err)
	}
	if err = t.text.Execute(&tb, data); err != nil {
		return "", "", "", fmt.Errorf("render text: %w", err)
	}
	return subj.String(), hb.String(), tb.String(), nil
}

const htmlLayoutStart = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .message { background-color: #f8f9fa; padding: 12px; border-left: 4px solid #0066cc; white-space: pre-wrap; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
`

const htmlLayoutEnd = `
        <div class="footer">
            <p>This is an automated message. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`

var (
	ownerAlertTemplate = mustEmailTemplate("owner_alert",
		`New contact request about {{.PersonName}}`,
		htmlLayoutStart+`
        <h1>New contact request</h1>
        <p>{{.RequesterName}} would like to be put in touch with you about <strong>{{.PersonName}}</strong>.</p>
        <div class="message">{{.Message}}</div>
        <p>Your contact details have not been shared. You can approve or decline the request here:<br>
        <a href="{{.Link}}">{{.Link}}</a></p>
`+htmlLayoutEnd,
		`New contact request

{{.RequesterName}} would like to be put in touch with you about {{.PersonName}}.

"{{.Message}}"

Your contact details have not been shared. You can approve or decline the request here:
{{.Link}}
`)

	approvedTemplate = mustEmailTemplate("request_approved",
		`Your contact request about {{.PersonName}} was approved`,
		htmlLayoutStart+`
        <h1>Request approved</h1>
        <p>The owner of the record for <strong>{{.PersonName}}</strong> has approved your contact request.</p>
        {{if .ContactEmail}}<p>You can reach {{.ContactName}} at <a href="mailto:{{.ContactEmail}}">{{.ContactEmail}}</a>.</p>
        {{else}}<p>The owner will get in touch with you directly.</p>{{end}}
`+htmlLayoutEnd,
		`Request approved

The owner of the record for {{.PersonName}} has approved your contact request.
{{if .ContactEmail}}
You can reach {{.ContactName}} at {{.ContactEmail}}.
{{else}}
The owner will get in touch with you directly.
{{end}}`)

	declinedTemplate = mustEmailTemplate("request_declined",
		`Your contact request about {{.PersonName}}`,
		htmlLayoutStart+`
        <p>The owner of the record for <strong>{{.PersonName}}</strong> has declined your contact request.</p>
        <p>No contact details have been shared.</p>
`+htmlLayoutEnd,
		`The owner of the record for {{.PersonName}} has declined your contact request.

No contact details have been shared.
`)

	requesterDetailsTemplate = mustEmailTemplate("requester_details",
		`Contact details for {{.ContactName}}`,
		htmlLayoutStart+`
        <p>You approved the contact request from {{.ContactName}} about <strong>{{.PersonName}}</strong>.</p>
        {{if .ContactEmail}}<p>You can reach them at <a href="mailto:{{.ContactEmail}}">{{.ContactEmail}}</a>.</p>
        {{else}}<p>They have no verified email address on file. Reply through the site instead: <a href="{{.Link}}">{{.Link}}</a></p>{{end}}
`+htmlLayoutEnd,
		`You approved the contact request from {{.ContactName}} about {{.PersonName}}.
{{if .ContactEmail}}
You can reach them at {{.ContactEmail}}.
{{else}}
They have no verified email address on file. Reply through the site instead: {{.Link}}
{{end}}`)
)

type notificationData struct {
	PersonName    string
	RequesterName string
	Message       string
	Link          string
	ContactName   string
	ContactEmail  string
}

// NotificationService renders and sends contact workflow emails
type NotificationService struct {
	mailer  Mailer
	users   UserDirectory
	siteURL string
	logger  *slog.Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(mailer Mailer, users UserDirectory, siteURL string, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		mailer:  mailer,
		users:   users,
		siteURL: siteURL,
		logger:  logger,
	}
}

func (s *NotificationService) requestLink(req *models.ContactRequest) string {
	return fmt.Sprintf("%s/contact-requests/%s", s.siteURL, req.ID)
}

// recipient loads a user's verified address
func (s *NotificationService) recipient(ctx context.Context, userID string) (*models.User, string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	email := user.ContactEmail()
	if email == nil {
		return user, "", fmt.Errorf("user %s has no verified email", userID)
	}
	return user, *email, nil
}

func (s *NotificationService) send(ctx context.Context, to string, tmpl emailTemplate, data notificationData) error {
	subject, html, text, err := tmpl.render(data)
	if err != nil {
		return err
	}
	return s.mailer.SendEmail(ctx, to, subject, html, text)
}

// NotifyNewRequest alerts the owner. No requester contact details are included.
func (s *NotificationService) NotifyNewRequest(ctx context.Context, req *models.ContactRequest) error {
	_, to, err := s.recipient(ctx, req.ToUserID)
	if err != nil {
		return err
	}

	return s.send(ctx, to, ownerAlertTemplate, notificationData{
		PersonName:    req.PersonName,
		RequesterName: req.FromUserName,
		Message:       req.Message,
		Link:          s.requestLink(req),
	})
}

// NotifyDecision tells the requester the outcome. On approval, disclosure selects whose
// details are revealed: the owner's to the requester, or the requester's to the owner.
func (s *NotificationService) NotifyDecision(ctx context.Context, req *models.ContactRequest, disclosure models.Disclosure) error {
	_, requesterEmail, err := s.recipient(ctx, req.FromUserID)
	if err != nil {
		return err
	}

	if req.Status != models.ContactStatusApproved {
		return s.send(ctx, requesterEmail, declinedTemplate, notificationData{PersonName: req.PersonName})
	}

	data := notificationData{PersonName: req.PersonName, Link: s.requestLink(req)}

	switch disclosure {
	case models.DisclosureOwnerToRequester:
		owner, ownerEmail, err := s.recipient(ctx, req.ToUserID)
		if err != nil {
			s.logger.Warn("owner details unavailable for disclosure",
				slog.String("contact_request_id", req.ID),
				slog.Any("error", err))
		}
		if owner != nil {
			data.ContactName = owner.Name
		}
		data.ContactEmail = ownerEmail

	case models.DisclosureRequesterToOwner:
		_, ownerEmail, err := s.recipient(ctx, req.ToUserID)
		if err != nil {
			return err
		}
		details := notificationData{
			PersonName:  req.PersonName,
			ContactName: req.FromUserName,
			Link:        s.requestLink(req),
		}
		if req.FromUserEmail != nil {
			details.ContactEmail = *req.FromUserEmail
		}
		if err := s.send(ctx, ownerEmail, requesterDetailsTemplate, details); err != nil {
			return err
		}
	}

	s.logger.Info("sending decision notification",
		slog.String("contact_request_id", req.ID),
		slog.String("email", logger.SanitizedEmail(requesterEmail)),
		slog.String("disclosure", string(disclosure)))

	return s.send(ctx, requesterEmail, approvedTemplate, data)
}
