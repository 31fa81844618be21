package repositories

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/faeln1/go-telegram-tracker/internal/domain/link"
)

var (
	ErrLinkNotFound      = errors.New("invite link not found")
	ErrLinkAlreadyExists = errors.New("invite link already exists")
)

// LinkRepository stores the tracked invite links. The reconciler only reads
// from it; writes come from the admin API.
type LinkRepository interface {
	Create(ctx context.Context, l *link.InviteLink) error
	GetByID(ctx context.Context, id string) (*link.InviteLink, error)
	GetByURL(ctx context.Context, url string) (*link.InviteLink, error)
	List(ctx context.Context) ([]*link.InviteLink, error)
	Delete(ctx context.Context, id string) error
}

type inMemoryLinkRepo struct {
	mu    sync.RWMutex
	byID  map[string]*link.InviteLink
	byURL map[string]string
}

// NewInMemoryLinkRepo returns an in-memory invite link repository.
func NewInMemoryLinkRepo() LinkRepository {
	return &inMemoryLinkRepo{
		byID:  make(map[string]*link.InviteLink),
		byURL: make(map[string]string),
	}
}

func (r *inMemoryLinkRepo) Create(ctx context.Context, l *link.InviteLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byURL[l.URL]; exists {
		return ErrLinkAlreadyExists
	}
	clone := *l
	r.byID[l.ID] = &clone
	r.byURL[l.URL] = l.ID
	return nil
}

func (r *inMemoryLinkRepo) GetByID(ctx context.Context, id string) (*link.InviteLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.byID[id]
	if !ok {
		return nil, ErrLinkNotFound
	}
	clone := *l
	return &clone, nil
}

func (r *inMemoryLinkRepo) GetByURL(ctx context.Context, url string) (*link.InviteLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byURL[url]
	if !ok {
		return nil, nil
	}
	clone := *r.byID[id]
	return &clone, nil
}

func (r *inMemoryLinkRepo) List(ctx context.Context) ([]*link.InviteLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*link.InviteLink, 0, len(r.byID))
	for _, l := range r.byID {
		clone := *l
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *inMemoryLinkRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.byID[id]
	if !ok {
		return ErrLinkNotFound
	}
	delete(r.byURL, l.URL)
	delete(r.byID, id)
	return nil
}
