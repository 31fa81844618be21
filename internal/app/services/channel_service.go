package services

import (
	"context"
	"sync"
	"time"

	"github.com/faeln1/go-telegram-tracker/internal/app/repositories"
	"github.com/faeln1/go-telegram-tracker/internal/domain/channel"
)

// ChannelService reads and updates the tracked channel pair. It caches the
// config row between webhook events and invalidates on save, so the
// reconciler does not hit the store once per event.
type ChannelService interface {
	channel.ConfigProvider
	Save(ctx context.Context, cfg *channel.Config) (*channel.Config, error)
}

type channelService struct {
	repo repositories.ChannelConfigRepository

	mu       sync.RWMutex
	cached   *channel.Config
	loadedAt time.Time
	ttl      time.Duration
}

// NewChannelService wires the channel configuration service.
func NewChannelService(repo repositories.ChannelConfigRepository) ChannelService {
	return &channelService{repo: repo, ttl: 30 * time.Second}
}

func (s *channelService) Current(ctx context.Context) (*channel.Config, error) {
	s.mu.RLock()
	if s.cached != nil && time.Since(s.loadedAt) < s.ttl {
		cfg := *s.cached
		s.mu.RUnlock()
		return &cfg, nil
	}
	s.mu.RUnlock()

	cfg, err := s.repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &channel.Config{}
	}

	s.mu.Lock()
	s.cached = cfg
	s.loadedAt = time.Now()
	s.mu.Unlock()

	clone := *cfg
	return &clone, nil
}

func (s *channelService) Save(ctx context.Context, cfg *channel.Config) (*channel.Config, error) {
	cfg.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(ctx, cfg); err != nil {
		return nil, err
	}

	s.mu.Lock()
	clone := *cfg
	s.cached = &clone
	s.loadedAt = time.Now()
	s.mu.Unlock()

	return cfg, nil
}
