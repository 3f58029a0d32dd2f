// Package mailtest provides a mail.Sender that keeps messages in memory.
package mailtest

import (
	"context"
	"errors"
	"sync"

	"github.com/forumhub/core/internal/pkg/mail"
)

var ErrInjected = errors.New("mailtest: injected failure")

// Recorder records every message it is asked to send. While Failures is
// positive, Send fails and decrements it.
type Recorder struct {
	mu       sync.Mutex
	messages []mail.Message
	Failures int
}

func (r *Recorder) Send(_ context.Context, msg mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Failures > 0 {
		r.Failures--
		return ErrInjected
	}
	r.messages = append(r.messages, msg)
	return nil
}

// Messages returns a copy of what was sent.
func (r *Recorder) Messages() []mail.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mail.Message(nil), r.messages...)
}

// SentTo returns the messages addressed to addr.
func (r *Recorder) SentTo(addr string) []mail.Message {
	var out []mail.Message
	for _, m := range r.Messages() {
		for _, to := range m.To {
			if to == addr {
				out = append(out, m)
				break
			}
		}
	}
	return out
}
