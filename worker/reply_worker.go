package worker

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"gorm.io/gorm"

	"leadflow/config"
	"leadflow/models"
)

// ReplyWorker polls the configured IMAP inbox and records replies matched
// to known leads. The "replied" condition predicate reads the rows this
// worker writes; nothing else in the executor touches the inbox.
type ReplyWorker struct {
	db     *gorm.DB
	logger *log.Logger
}

func NewReplyWorker(db *gorm.DB, logger *log.Logger) *ReplyWorker {
	return &ReplyWorker{
		db:     db,
		logger: logger,
	}
}

func (rw *ReplyWorker) Start(ctx context.Context) {
	if config.AppConfig.IMAP.Host == "" {
		rw.logger.Println("No IMAP inbox configured, reply worker disabled")
		return
	}

	rw.logger.Println("Reply worker started")

	interval := time.Duration(config.AppConfig.ReplyPollInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rw.logger.Println("Reply worker shutting down...")
			return
		case <-ticker.C:
			if err := rw.fetchReplies(); err != nil {
				rw.logger.Printf("Error fetching replies: %v", err)
			}
		}
	}
}

func (rw *ReplyWorker) fetchReplies() error {
	cfg := config.AppConfig.IMAP

	var imapClient *client.Client
	var err error
	imapAddr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	switch strings.ToUpper(cfg.Encryption) {
	case "SSL", "TLS":
		imapClient, err = client.DialTLS(imapAddr, &tls.Config{
			ServerName: cfg.Host,
		})
	case "STARTTLS":
		imapClient, err = client.Dial(imapAddr)
		if err == nil {
			err = imapClient.StartTLS(&tls.Config{
				ServerName: cfg.Host,
			})
		}
	default:
		imapClient, err = client.Dial(imapAddr)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	defer imapClient.Logout()

	if err := imapClient.Login(cfg.Username, cfg.Password); err != nil {
		return fmt.Errorf("IMAP login failed: %w", err)
	}

	if _, err := imapClient.Select(cfg.Mailbox, false); err != nil {
		return fmt.Errorf("failed to select mailbox %s: %w", cfg.Mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := imapClient.Search(criteria)
	if err != nil {
		return fmt.Errorf("IMAP search failed: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- imapClient.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, imap.FetchItem("BODY.PEEK[]")}, messages)
	}()

	for msg := range messages {
		if err := rw.processMessage(msg); err != nil {
			rw.logger.Printf("Failed to process message: %v", err)
		}
	}

	return <-done
}

func (rw *ReplyWorker) processMessage(msg *imap.Message) error {
	if msg.Envelope == nil || len(msg.Envelope.From) == 0 {
		return fmt.Errorf("message has no envelope sender")
	}

	from := msg.Envelope.From[0]
	fromAddress := strings.ToLower(from.MailboxName + "@" + from.HostName)

	// Only replies from known leads matter here.
	var lead models.Lead
	err := rw.db.Where("LOWER(email) = ?", fromAddress).First(&lead).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up lead for %s: %w", fromAddress, err)
	}

	// Dedupe on the provider message id so repeated polls of an unseen
	// message record a single reply.
	if msg.Envelope.MessageId != "" {
		var count int64
		if err := rw.db.Model(&models.LeadReply{}).
			Where("message_id = ?", msg.Envelope.MessageId).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
	}

	reply := models.LeadReply{
		LeadID:      lead.ID,
		FromAddress: fromAddress,
		MessageID:   msg.Envelope.MessageId,
		Subject:     msg.Envelope.Subject,
		Snippet:     extractSnippet(msg),
		ReceivedAt:  msg.Envelope.Date,
	}

	if err := rw.db.Create(&reply).Error; err != nil {
		return fmt.Errorf("failed to save reply: %w", err)
	}

	rw.logger.Printf("Recorded reply from lead %d (%s)", lead.ID, fromAddress)
	return nil
}

const maxSnippetLen = 500

// extractSnippet pulls the first text part of the message body.
func extractSnippet(msg *imap.Message) string {
	if msg.Body == nil {
		return ""
	}

	section := imap.BodySectionName{}
	literal := msg.GetBody(&section)
	if literal == nil {
		return ""
	}

	mr, err := mail.CreateReader(literal)
	if err != nil {
		return ""
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			return ""
		}

		if h, ok := p.Header.(*mail.InlineHeader); ok {
			contentType, _, _ := h.ContentType()
			if !strings.Contains(contentType, "text/plain") {
				continue
			}
			b, err := io.ReadAll(p.Body)
			if err != nil {
				return ""
			}
			snippet := strings.TrimSpace(string(b))
			if len(snippet) > maxSnippetLen {
				snippet = snippet[:maxSnippetLen]
			}
			return snippet
		}
	}
	return ""
}
