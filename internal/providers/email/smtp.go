package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPProvider struct {
	cfg Config
}

func NewSMTP(cfg Config) *SMTPProvider {
	return &SMTPProvider{cfg: cfg}
}

func (p *SMTPProvider) addr() string {
	return fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)
}

// Verify dials the server and exchanges a NOOP so sends fail fast when
// the channel is down.
func (p *SMTPProvider) Verify(ctx context.Context) error {
	client, err := smtp.Dial(p.addr())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
	}
	defer client.Close()

	if err := client.Noop(); err != nil {
		return fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
	}
	return client.Quit()
}

func (p *SMTPProvider) Send(ctx context.Context, to []string, subject string, htmlBody string, attachments ...Attachment) error {
	auth := smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)

	msg, err := p.buildMessage(to, subject, htmlBody, attachments)
	if err != nil {
		return err
	}
	return smtp.SendMail(p.addr(), auth, p.cfg.From, to, msg)
}

func (p *SMTPProvider) buildMessage(to []string, subject, htmlBody string, attachments []Attachment) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", p.cfg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", to[0])
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	bodyHeader := textproto.MIMEHeader{}
	bodyHeader.Set("Content-Type", `text/html; charset="UTF-8"`)
	body, err := writer.CreatePart(bodyHeader)
	if err != nil {
		return nil, fmt.Errorf("build message body: %w", err)
	}
	if _, err := body.Write([]byte(htmlBody)); err != nil {
		return nil, fmt.Errorf("build message body: %w", err)
	}

	for _, attachment := range attachments {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", attachment.ContentType)
		header.Set("Content-Transfer-Encoding", "base64")
		header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment.Filename))

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("build attachment %s: %w", attachment.Filename, err)
		}

		encoded := make([]byte, base64.StdEncoding.EncodedLen(len(attachment.Content)))
		base64.StdEncoding.Encode(encoded, attachment.Content)
		if _, err := part.Write(encoded); err != nil {
			return nil, fmt.Errorf("build attachment %s: %w", attachment.Filename, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
