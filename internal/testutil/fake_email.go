package testutil

import (
	"context"
	"sync"

	platformemail "github.com/qolzam/telar/apps/relay/internal/platform/email"
)

// FakeEmailSender captures emails in memory for tests. When Err is set,
// Send records nothing and returns it.
type FakeEmailSender struct {
	mu   sync.Mutex
	Sent []platformemail.Message
	Err  error
}

func NewFakeEmailSender() *FakeEmailSender {
	return &FakeEmailSender{Sent: make([]platformemail.Message, 0)}
}

// NewFailingEmailSender returns a sender whose Send always fails with err.
func NewFailingEmailSender(err error) *FakeEmailSender {
	return &FakeEmailSender{Sent: make([]platformemail.Message, 0), Err: err}
}

func (f *FakeEmailSender) Send(ctx context.Context, msg platformemail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Sent = append(f.Sent, msg)
	return nil
}

func (f *FakeEmailSender) LastSent() *platformemail.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sent) == 0 {
		return nil
	}
	return &f.Sent[len(f.Sent)-1]
}

// Count returns the number of captured messages.
func (f *FakeEmailSender) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}

func (f *FakeEmailSender) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = make([]platformemail.Message, 0)
}
