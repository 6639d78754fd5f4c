package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/netsync/apiserver/internal/mq"
)

// Publisher is the part of *mq.MQ the broker sender needs.
type Publisher interface {
	PublishJSON(ctx context.Context, channel string, value any, attrs map[string]string) (string, error)
}

// BrokerSender hands messages to a broker channel for the worker command.
type BrokerSender struct {
	pub     Publisher
	channel string
}

func NewBrokerSender(pub Publisher, channel string) *BrokerSender {
	return &BrokerSender{pub: pub, channel: channel}
}

func (s *BrokerSender) Send(ctx context.Context, msg VerificationEmail) error {
	attrs := map[string]string{"kind": "verification"}
	if msg.Resend {
		attrs["kind"] = "verification-resend"
	}
	if _, err := s.pub.PublishJSON(ctx, s.channel, msg, attrs); err != nil {
		return fmt.Errorf("publish to %s: %w", s.channel, err)
	}
	return nil
}

// Relay returns a broker handler that delivers each consumed message with
// sender. Undecodable payloads are logged and acknowledged; a failed
// delivery is returned so the broker redelivers it.
func Relay(sender Sender, log *slog.Logger) mq.Handler {
	return func(ctx context.Context, m mq.Message) error {
		var msg VerificationEmail
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			log.Error("discarding undecodable verification message", "id", m.ID, "error", err)
			return nil
		}
		if msg.To == "" || msg.Code == "" {
			log.Error("discarding incomplete verification message", "id", m.ID)
			return nil
		}

		if err := sender.Send(ctx, msg); err != nil {
			log.Error("relay delivery failed", "id", m.ID, "to", msg.To, "error", err)
			return err
		}
		log.Info("relayed verification email", "id", m.ID, "to", msg.To)
		return nil
	}
}
