package email

import (
	"context"
	"errors"
)

// ErrChannelUnavailable is returned when the delivery channel fails its
// readiness check; callers fail fast instead of silently queuing.
var ErrChannelUnavailable = errors.New("channel_unavailable")

// Attachment is a file sent alongside a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

type Provider interface {
	// Verify checks the channel is reachable before any send is attempted.
	Verify(ctx context.Context) error
	Send(ctx context.Context, to []string, subject string, htmlBody string, attachments ...Attachment) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) Verify(ctx context.Context) error {
	return nil
}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string, attachments ...Attachment) error {
	return nil
}
