package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fixmycity/platform/internal/shared/types"
)

// ServiceConfig holds service tunables
type ServiceConfig struct {
	Workers       int
	BufferSize    int
	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultServiceConfig returns the default configuration
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Workers:       4,
		BufferSize:    1000,
		RetryAttempts: 3,
		RetryDelay:    5 * time.Second,
	}
}

// Service fans notifications out to channel providers through a worker
// pool. Delivery is best effort; a dropped or failed notification never
// blocks the complaint workflow that produced it.
type Service struct {
	providers map[Channel]Provider
	logger    *zap.Logger
	config    ServiceConfig

	notifCh chan *Notification

	mu      sync.Mutex
	stats   Stats
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewService creates a notification service
func NewService(providers map[Channel]Provider, logger *zap.Logger, config ServiceConfig) *Service {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	return &Service{
		providers: providers,
		logger:    logger,
		config:    config,
		notifCh:   make(chan *Notification, config.BufferSize),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the delivery workers
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("service already started")
	}
	s.started = true
	s.mu.Unlock()

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}

	return nil
}

// Stop drains the workers
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
}

// Enqueue queues a notification for delivery. It never blocks: when the
// buffer is full the notification is dropped and counted.
func (s *Service) Enqueue(n *Notification) {
	if n.ID.IsZero() {
		n.ID = types.NewID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	n.Status = StatusPending

	select {
	case s.notifCh <- n:
		s.mu.Lock()
		s.stats.Enqueued++
		s.mu.Unlock()
	default:
		s.mu.Lock()
		s.stats.Dropped++
		s.mu.Unlock()
		s.logger.Warn("notification buffer full, dropping",
			zap.String("recipient_id", n.RecipientID.String()),
			zap.String("subject", n.Subject))
	}
}

// Stats returns a snapshot of delivery counters
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case n := <-s.notifCh:
			s.deliver(ctx, n)
		}
	}
}

func (s *Service) deliver(ctx context.Context, n *Notification) {
	provider, ok := s.providers[n.Channel]
	if !ok {
		s.fail(n, fmt.Errorf("no provider for channel %s", n.Channel))
		return
	}

	var err error
	for attempt := 0; attempt <= s.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.config.RetryDelay):
			case <-s.stopCh:
				s.fail(n, fmt.Errorf("service stopped"))
				return
			case <-ctx.Done():
				s.fail(n, ctx.Err())
				return
			}
		}

		n.Attempts++
		if err = provider.Send(ctx, n); err == nil {
			now := time.Now()
			n.Status = StatusSent
			n.SentAt = &now

			s.mu.Lock()
			s.stats.Sent++
			s.mu.Unlock()
			return
		}
	}

	s.fail(n, err)
}

func (s *Service) fail(n *Notification, err error) {
	n.Status = StatusFailed

	s.mu.Lock()
	s.stats.Failed++
	s.mu.Unlock()

	s.logger.Warn("notification delivery failed",
		zap.String("recipient_id", n.RecipientID.String()),
		zap.String("channel", string(n.Channel)),
		zap.Int("attempts", n.Attempts),
		zap.Error(err))
}
