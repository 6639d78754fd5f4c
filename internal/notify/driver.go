package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/netsync/apiserver/config"
	"github.com/netsync/apiserver/internal/mq"
	"github.com/netsync/apiserver/internal/storage"
)

// NewSenderFromConfig builds the sender named by driver. The returned close
// function releases any broker connection and is never nil. Console output
// goes to out.
//
// With the broker driver on the memory broker nothing outside this process
// can consume the channel, so a relay is started here and stopped by the
// close function.
func NewSenderFromConfig(ctx context.Context, cfg config.Config, driver string, out io.Writer, log *slog.Logger) (Sender, func() error, error) {
	noop := func() error { return nil }
	renderer := NewRenderer(cfg.Notify.From, cfg.Notify.SiteName)

	switch driver {
	case config.NotifyDriverSMTP:
		sender, err := NewSMTPSender(cfg.SMTP, renderer)
		if err != nil {
			return nil, noop, err
		}
		return sender, noop, nil
	case config.NotifyDriverBucket:
		store, err := storage.NewFromConfig(ctx, cfg)
		if err != nil {
			return nil, noop, fmt.Errorf("mailbox storage: %w", err)
		}
		return NewMailboxSender(store, cfg.Storage.Prefix, renderer), noop, nil
	case config.NotifyDriverBroker:
		broker, err := mq.NewFromConfig(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		sender := NewBrokerSender(broker, cfg.MQ.Channel)
		if cfg.MQ.Driver != config.MQDriverMemory {
			return sender, broker.Close, nil
		}
		stopRelay, err := startLocalRelay(ctx, cfg, broker, out, log)
		if err != nil {
			_ = broker.Close()
			return nil, noop, err
		}
		return sender, func() error {
			return errors.Join(stopRelay(), broker.Close())
		}, nil
	case config.NotifyDriverLog:
		return NewConsoleSender(out, renderer), noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported notify driver %q", driver)
	}
}

// startLocalRelay consumes cfg.MQ.Channel in the background and delivers
// with the relay sender, doing the worker command's job in-process.
// Messages still on the channel when the returned func runs are lost.
func startLocalRelay(ctx context.Context, cfg config.Config, broker *mq.MQ, out io.Writer, log *slog.Logger) (func() error, error) {
	if cfg.Notify.RelayDriver == config.NotifyDriverBroker {
		return nil, errors.New("relay driver cannot be the broker")
	}
	relay, closeRelay, err := NewSenderFromConfig(ctx, cfg, cfg.Notify.RelayDriver, out, log)
	if err != nil {
		return nil, fmt.Errorf("relay sender: %w", err)
	}

	relayCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := broker.Subscribe(relayCtx, cfg.MQ.Channel, Relay(relay, log.With("component", "relay")))
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("local relay stopped", "channel", cfg.MQ.Channel, "error", err)
		}
	}()

	return func() error {
		cancel()
		<-done
		return closeRelay()
	}, nil
}
