package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"leadflow/models"
)

// runEmail renders and sends the step's email to the enrollment's lead.
// A missing address or a provider error fails the execution without
// touching the enrollment. On success a send record is produced and the
// enrollment advances with zero delay.
func (d *Dispatcher) runEmail(ctx context.Context, enrollment *models.Enrollment, step *models.SequenceStep) stepResult {
	lead, err := d.store.GetLead(ctx, enrollment.LeadID)
	if errors.Is(err, ErrNotFound) {
		return stepResult{failure: dataErr("missing lead record %d", enrollment.LeadID)}
	}
	if err != nil {
		return stepResult{failure: systemErr(err)}
	}

	if strings.TrimSpace(lead.Email) == "" {
		return stepResult{failure: validationErr("no email address")}
	}

	subject := renderTokens(step.EmailSubject, lead)
	body := renderTokens(step.EmailBody, lead)
	if !hasBlockMarkup(body) {
		body = wrapHTML(body)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	messageID, err := d.mailer.Send(sendCtx, lead.Email, subject, body)
	if err != nil {
		return stepResult{failure: providerErr(err)}
	}
	if messageID == "" {
		messageID = uuid.New().String()
	}

	return stepResult{
		sendRecord: &models.EmailSendRecord{
			LeadID:            lead.ID,
			Recipient:         lead.Email,
			Subject:           subject,
			ProviderMessageID: messageID,
			SentAt:            d.now(),
		},
	}
}

// renderTokens substitutes the recognized personalization tokens.
func renderTokens(tmpl string, lead *models.Lead) string {
	return strings.NewReplacer(
		"{name}", lead.FirstName(),
		"{full_name}", lead.Name,
		"{email}", lead.Email,
	).Replace(tmpl)
}

var blockTags = []string{"<p", "<div", "<table", "<html", "<body", "<section", "<article"}

// hasBlockMarkup reports whether the body already carries block-level
// HTML and can be sent as-is.
func hasBlockMarkup(body string) bool {
	lower := strings.ToLower(body)
	for _, tag := range blockTags {
		if strings.Contains(lower, tag) {
			return true
		}
	}
	return false
}

// wrapHTML puts a plain-text body into a minimal HTML container,
// preserving line breaks.
func wrapHTML(body string) string {
	paragraphs := strings.Split(body, "\n")
	var b strings.Builder
	b.WriteString(`<html><body><div style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">`)
	for _, p := range paragraphs {
		b.WriteString("<p>")
		b.WriteString(p)
		b.WriteString("</p>")
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}
