// Package mailer delivers transactional email.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
)

type Attachment struct {
	Name        string
	ContentType string
	Content     []byte
}

type Email struct {
	To          string
	ToName      string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

type Sender interface {
	Send(ctx context.Context, email Email) error
}

// Envelope is a serializable email request. Attachments are referenced by
// path so the envelope can travel through a job queue.
type Envelope struct {
	To             string `json:"to"`
	ToName         string `json:"to_name,omitempty"`
	Subject        string `json:"subject"`
	Text           string `json:"text"`
	HTML           string `json:"html,omitempty"`
	AttachmentPath string `json:"attachment_path,omitempty"`
}

// Dispatcher hands an envelope to delivery, directly or through a queue.
type Dispatcher interface {
	Dispatch(ctx context.Context, envelope Envelope) error
}

// Direct delivers envelopes synchronously through a Sender.
type Direct struct {
	sender Sender
}

func NewDirect(sender Sender) *Direct {
	return &Direct{sender: sender}
}

func (d *Direct) Dispatch(ctx context.Context, envelope Envelope) error {
	return Deliver(ctx, d.sender, envelope)
}

// Deliver loads the envelope's attachment and sends it.
func Deliver(ctx context.Context, sender Sender, envelope Envelope) error {
	if envelope.To == "" {
		return fmt.Errorf("email recipient is required")
	}
	email := Email{
		To:      envelope.To,
		ToName:  envelope.ToName,
		Subject: envelope.Subject,
		Text:    envelope.Text,
		HTML:    envelope.HTML,
	}
	if envelope.AttachmentPath != "" {
		content, err := os.ReadFile(envelope.AttachmentPath)
		if err != nil {
			return fmt.Errorf("read attachment: %w", err)
		}
		name := filepath.Base(envelope.AttachmentPath)
		contentType := mime.TypeByExtension(filepath.Ext(name))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		email.Attachments = append(email.Attachments, Attachment{Name: name, ContentType: contentType, Content: content})
	}
	return sender.Send(ctx, email)
}

// NewSender returns a Brevo client when apiKey is set and a LogSender
// otherwise.
func NewSender(baseURL, apiKey, senderEmail, senderName string, logger *slog.Logger) Sender {
	if apiKey == "" {
		return LogSender{Logger: logger}
	}
	return NewBrevoClient(baseURL, apiKey, senderEmail, senderName)
}

// LogSender only logs outgoing mail. Used when no provider is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, email Email) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("email not sent, no provider configured",
		"to", email.To,
		"subject", email.Subject,
		"attachments", len(email.Attachments),
	)
	return nil
}
