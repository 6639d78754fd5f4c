package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// ConsoleSender writes rendered messages to w. Meant for local development,
// where reading the code off the terminal replaces a mailbox.
type ConsoleSender struct {
	renderer *Renderer

	mu sync.Mutex
	w  io.Writer
}

func NewConsoleSender(w io.Writer, renderer *Renderer) *ConsoleSender {
	return &ConsoleSender{renderer: renderer, w: w}
}

func (s *ConsoleSender) Send(ctx context.Context, msg VerificationEmail) error {
	email, err := s.renderer.Render(msg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = fmt.Fprintf(s.w, "From: %s\nTo: %s\nSubject: %s\n\n%s\n", email.From, email.To, email.Subject, email.Body)
	return err
}
