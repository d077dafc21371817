package email

import (
	"context"
	"errors"
)

// ErrDelivery is returned when the transport fails to hand off a message.
var ErrDelivery = errors.New("email delivery failed")

// Attachment is a file carried by a Message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message represents an email to be sent.
type Message struct {
	From        string
	FromName    string
	To          []string
	Cc          []string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// Recipients returns To followed by Cc.
func (m Message) Recipients() []string {
	rcpts := make([]string, 0, len(m.To)+len(m.Cc))
	rcpts = append(rcpts, m.To...)
	return append(rcpts, m.Cc...)
}

// Sender abstracts email sending for DI and testing.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
