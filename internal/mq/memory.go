package mq

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
)

// MemoryBackend is an in-process broker for single-process runs
// (MQ_DRIVER=memory). Each channel is a buffered queue; messages nacked by
// a handler are requeued at the tail.
type MemoryBackend struct {
	mu       sync.Mutex
	channels map[string]chan Message
	buffer   int
	seq      int
	closed   bool
}

// NewMemoryBackend creates an in-process broker whose channels hold up to
// buffer pending messages.
func NewMemoryBackend(buffer int) *MemoryBackend {
	if buffer < 1 {
		buffer = 64
	}
	return &MemoryBackend{channels: make(map[string]chan Message), buffer: buffer}
}

func (b *MemoryBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("memory channel is required")
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return "", errors.New("memory backend closed")
	}
	b.seq++
	id := strconv.Itoa(b.seq)
	ch := b.channelLocked(channel)
	b.mu.Unlock()

	msg := Message{ID: id, Data: append([]byte(nil), data...), Attributes: attrs}
	select {
	case ch <- msg:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (b *MemoryBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("memory channel is required")
	}

	b.mu.Lock()
	ch := b.channelLocked(channel)
	b.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			if err := handler(ctx, msg); err != nil {
				select {
				case ch <- msg:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *MemoryBackend) channelLocked(name string) chan Message {
	ch, ok := b.channels[name]
	if !ok {
		ch = make(chan Message, b.buffer)
		b.channels[name] = ch
	}
	return ch
}
