package repositories

import (
	"context"
	"sync"

	"github.com/faeln1/go-telegram-tracker/internal/domain/channel"
)

// ChannelConfigRepository stores the single tracked channel pair. Get returns
// nil when nothing has been configured yet.
type ChannelConfigRepository interface {
	Get(ctx context.Context) (*channel.Config, error)
	Save(ctx context.Context, cfg *channel.Config) error
}

type inMemoryChannelConfigRepo struct {
	mu  sync.RWMutex
	cfg *channel.Config
}

// NewInMemoryChannelConfigRepo returns an in-memory channel config store.
func NewInMemoryChannelConfigRepo() ChannelConfigRepository {
	return &inMemoryChannelConfigRepo{}
}

func (r *inMemoryChannelConfigRepo) Get(ctx context.Context) (*channel.Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cfg == nil {
		return nil, nil
	}
	clone := *r.cfg
	return &clone, nil
}

func (r *inMemoryChannelConfigRepo) Save(ctx context.Context, cfg *channel.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *cfg
	r.cfg = &clone
	return nil
}
