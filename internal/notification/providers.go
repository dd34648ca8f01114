package notification

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Provider delivers a notification over one channel.
type Provider interface {
	Send(ctx context.Context, n *Notification) error
}

// LogProvider writes notifications to the log instead of delivering
// them. Used until a real gateway is configured.
type LogProvider struct {
	logger  *zap.Logger
	channel Channel
}

func NewLogProvider(logger *zap.Logger, channel Channel) *LogProvider {
	return &LogProvider{logger: logger, channel: channel}
}

func (p *LogProvider) Send(ctx context.Context, n *Notification) error {
	p.logger.Info("notification delivered",
		zap.String("channel", string(p.channel)),
		zap.String("recipient_id", n.RecipientID.String()),
		zap.String("recipient_type", n.RecipientType),
		zap.String("subject", n.Subject))
	return nil
}

// MockProvider records sends for tests.
type MockProvider struct {
	mu         sync.Mutex
	sent       []*Notification
	failOnSend bool
}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) Send(ctx context.Context, n *Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failOnSend {
		return fmt.Errorf("mock send failure")
	}
	p.sent = append(p.sent, n)
	return nil
}

func (p *MockProvider) Sent() []*Notification {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*Notification, len(p.sent))
	copy(out, p.sent)
	return out
}
