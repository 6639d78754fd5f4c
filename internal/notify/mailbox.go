package notify

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/netsync/apiserver/internal/storage"
	"github.com/oklog/ulid/v2"
)

// MailboxSender stores each rendered message as an .eml object under
// prefix/<recipient>/. Keys sort by delivery time within a recipient.
type MailboxSender struct {
	renderer *Renderer
	store    *storage.Storage
	prefix   string
}

func NewMailboxSender(store *storage.Storage, prefix string, renderer *Renderer) *MailboxSender {
	return &MailboxSender{renderer: renderer, store: store, prefix: prefix}
}

func (s *MailboxSender) Send(ctx context.Context, msg VerificationEmail) error {
	email, err := s.renderer.Render(msg)
	if err != nil {
		return err
	}
	m, err := newMailMsg(email)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	key := MailboxKey(s.prefix, msg.To, ulid.Make().String())
	if err := s.store.PutBytes(ctx, key, buf.Bytes(), "message/rfc822"); err != nil {
		return fmt.Errorf("store message %s: %w", key, err)
	}
	return nil
}

// MailboxKey builds the object key for one message to recipient.
func MailboxKey(prefix, recipient, id string) string {
	return path.Join(prefix, MailboxDir(recipient), id+".eml")
}

// MailboxPrefix is the key prefix of every message to recipient.
func MailboxPrefix(prefix, recipient string) string {
	return path.Join(prefix, MailboxDir(recipient)) + "/"
}

// MailboxDir is the per-recipient directory name.
func MailboxDir(recipient string) string {
	r := strings.ToLower(strings.TrimSpace(recipient))
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(r)
}
