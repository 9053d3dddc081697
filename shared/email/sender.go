package email

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"rae-agent/shared/config"
)

// XLSXContentType is the MIME type of an Office Open XML workbook
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Sender struct {
	config *config.EmailConfig
	logger *zap.Logger
	send   sendFunc
	now    func() time.Time
}

func NewSender(cfg *config.EmailConfig, logger *zap.Logger) *Sender {
	return &Sender{
		config: cfg,
		logger: logger.With(zap.String("component", "email")),
		send:   smtp.SendMail,
		now:    time.Now,
	}
}

// Attachment is a file carried by a message
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// FileAttachment reads path into an attachment named after the file.
func FileAttachment(path, contentType string) (*Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment %s: %w", path, err)
	}
	return &Attachment{Name: filepath.Base(path), ContentType: contentType, Data: data}, nil
}

// SendToRecipients sends one message per configured recipient. body is
// called with each recipient so the greeting can be personal. Failures are
// collected and returned together once every recipient was tried.
func (s *Sender) SendToRecipients(subject string, body func(recipient string) string, attachment *Attachment) error {
	if len(s.config.Recipients) == 0 {
		return fmt.Errorf("no email recipients configured")
	}

	var errs []error
	for _, recipient := range s.config.Recipients {
		if err := s.Send(recipient, subject, body(recipient), attachment); err != nil {
			s.logger.Error("Failed to send email", zap.String("recipient", recipient), zap.Error(err))
			errs = append(errs, fmt.Errorf("send to %s: %w", recipient, err))
			continue
		}
		s.logger.Info("Email sent", zap.String("recipient", recipient), zap.String("subject", subject))
	}
	return errors.Join(errs...)
}

// SendError mails a failure notice to the configured error recipient.
// It is a no-op when none is configured.
func (s *Sender) SendError(subject string, cause error) error {
	if s.config.ErrorRecipient == "" {
		return nil
	}
	body := fmt.Sprintf("Error occurred at %s:\n\n%v\n", s.now().Format(time.RFC1123), cause)
	return s.Send(s.config.ErrorRecipient, subject, body, nil)
}

// Send delivers a plain-text message, with an optional attachment, to one recipient.
func (s *Sender) Send(recipient, subject, body string, attachment *Attachment) error {
	msg, err := s.buildMessage(recipient, subject, body, attachment)
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}
	return s.sendViaSMTP([]string{recipient}, msg)
}

func (s *Sender) sendViaSMTP(to []string, msg []byte) error {
	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.SMTPServer)
	addr := fmt.Sprintf("%s:%d", s.config.SMTPServer, s.config.SMTPPort)
	return s.send(addr, auth, s.config.FromEmail, to, msg)
}

func (s *Sender) buildMessage(recipient, subject, body string, attachment *Attachment) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "To: %s\r\n", recipient)
	fmt.Fprintf(&buf, "From: %s\r\n", s.config.FromEmail)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary())

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=UTF-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return nil, err
	}
	if err := writeQuotedPrintable(text, body); err != nil {
		return nil, err
	}

	if attachment != nil {
		contentType := attachment.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {mime.FormatMediaType(contentType, map[string]string{"name": attachment.Name})},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": attachment.Name})},
		})
		if err != nil {
			return nil, err
		}
		if err := writeBase64Lines(part, attachment.Data); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
