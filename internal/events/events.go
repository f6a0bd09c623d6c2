// Package events publishes resolver events after the invocation that raised
// them has committed.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Event 是解析器在一次调用中发出的业务事件。
type Event struct {
	ID         uuid.UUID         `json:"id"`
	Contract   common.Address    `json:"contract"`
	Topic      string            `json:"topic"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// New 创建带唯一 ID 的事件。
func New(contract common.Address, topic string, attrs map[string]string) Event {
	return Event{
		ID:         uuid.New(),
		Contract:   contract,
		Topic:      topic,
		Attributes: attrs,
		Timestamp:  time.Now().UTC(),
	}
}

// Publisher 负责向外部投递事件。
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// Discard 丢弃所有事件。
type Discard struct{}

// Publish 实现 Publisher。
func (Discard) Publish(context.Context, ...Event) error { return nil }

// Close 实现 Publisher。
func (Discard) Close() error { return nil }

// MemoryPublisher 在内存中保存事件，主要用于测试和本地调试。
type MemoryPublisher struct {
	mu     sync.RWMutex
	events []Event
	limit  int
}

// NewMemoryPublisher 创建 MemoryPublisher，limit<=0 表示不限制条数。
func NewMemoryPublisher(limit int) *MemoryPublisher {
	return &MemoryPublisher{limit: limit}
}

// Publish 实现 Publisher。
func (m *MemoryPublisher) Publish(_ context.Context, events ...Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	if m.limit > 0 && len(m.events) > m.limit {
		m.events = m.events[len(m.events)-m.limit:]
	}
	return nil
}

// Events 返回已发布事件的副本。topic 为空时返回全部。
func (m *MemoryPublisher) Events(topic string) []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Event, 0, len(m.events))
	for _, ev := range m.events {
		if topic == "" || ev.Topic == topic {
			out = append(out, ev)
		}
	}
	return out
}

// Close 实现 Publisher。
func (m *MemoryPublisher) Close() error { return nil }
