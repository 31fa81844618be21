package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/faeln1/go-telegram-tracker/internal/domain/member"
)

// MembershipRepository persists current memberships and the exit log.
type MembershipRepository interface {
	UpsertMember(ctx context.Context, m *member.Member) error
	GetMember(ctx context.Context, userID, chatID int64) (*member.Member, error)
	DeleteMember(ctx context.Context, userID, chatID int64) error
	ListMembers(ctx context.Context, chatID int64, limit, offset int) ([]*member.Member, error)
	CountMembers(ctx context.Context, chatID int64) (int, error)
	CountMembersByLink(ctx context.Context, linkID string) (int, error)
	// CountConverted counts users with a current membership in both channels.
	CountConverted(ctx context.Context, publicChatID, privateChatID int64) (int, error)

	InsertExit(ctx context.Context, e *member.Exit) error
	LatestExit(ctx context.Context, userID, chatID int64) (*member.Exit, error)
	HasExitSince(ctx context.Context, userID, chatID int64, since time.Time) (bool, error)
	DeleteExits(ctx context.Context, userID, chatID int64) error
	ListExits(ctx context.Context, chatID int64, limit, offset int) ([]*member.Exit, error)
	CountExits(ctx context.Context, chatID int64) (int, error)
	CountExitsByLink(ctx context.Context, linkID string) (int, error)
}

type memberKey struct {
	userID int64
	chatID int64
}

type inMemoryMembershipRepo struct {
	mu      sync.RWMutex
	members map[memberKey]*member.Member
	exits   []*member.Exit
}

// NewInMemoryMembershipRepo returns a membership repository backed by process
// memory. Used for tests and for running without a database.
func NewInMemoryMembershipRepo() MembershipRepository {
	return &inMemoryMembershipRepo{members: make(map[memberKey]*member.Member)}
}

func (r *inMemoryMembershipRepo) UpsertMember(ctx context.Context, m *member.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *m
	r.members[memberKey{m.UserID, m.ChatID}] = &clone
	return nil
}

func (r *inMemoryMembershipRepo) GetMember(ctx context.Context, userID, chatID int64) (*member.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[memberKey{userID, chatID}]
	if !ok {
		return nil, nil
	}
	clone := *m
	return &clone, nil
}

func (r *inMemoryMembershipRepo) DeleteMember(ctx context.Context, userID, chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, memberKey{userID, chatID})
	return nil
}

func (r *inMemoryMembershipRepo) ListMembers(ctx context.Context, chatID int64, limit, offset int) ([]*member.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*member.Member
	for _, m := range r.members {
		if chatID != 0 && m.ChatID != chatID {
			continue
		}
		clone := *m
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[j].JoinedAt.Before(out[i].JoinedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return paginate(out, limit, offset), nil
}

func (r *inMemoryMembershipRepo) CountMembers(ctx context.Context, chatID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, m := range r.members {
		if chatID == 0 || m.ChatID == chatID {
			count++
		}
	}
	return count, nil
}

func (r *inMemoryMembershipRepo) CountMembersByLink(ctx context.Context, linkID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, m := range r.members {
		if m.LinkID != nil && *m.LinkID == linkID {
			count++
		}
	}
	return count, nil
}

func (r *inMemoryMembershipRepo) CountConverted(ctx context.Context, publicChatID, privateChatID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inPublic := make(map[int64]bool)
	for key := range r.members {
		if key.chatID == publicChatID {
			inPublic[key.userID] = true
		}
	}
	count := 0
	for key := range r.members {
		if key.chatID == privateChatID && inPublic[key.userID] {
			count++
		}
	}
	return count, nil
}

func (r *inMemoryMembershipRepo) InsertExit(ctx context.Context, e *member.Exit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *e
	r.exits = append(r.exits, &clone)
	return nil
}

func (r *inMemoryMembershipRepo) LatestExit(ctx context.Context, userID, chatID int64) (*member.Exit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *member.Exit
	for _, e := range r.exits {
		if e.UserID != userID || e.ChatID != chatID {
			continue
		}
		if latest == nil || latest.LeftAt.Before(e.LeftAt) {
			latest = e
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}

func (r *inMemoryMembershipRepo) HasExitSince(ctx context.Context, userID, chatID int64, since time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.exits {
		if e.UserID == userID && e.ChatID == chatID && !e.LeftAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryMembershipRepo) DeleteExits(ctx context.Context, userID, chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.exits[:0]
	for _, e := range r.exits {
		if e.UserID == userID && e.ChatID == chatID {
			continue
		}
		kept = append(kept, e)
	}
	r.exits = kept
	return nil
}

func (r *inMemoryMembershipRepo) ListExits(ctx context.Context, chatID int64, limit, offset int) ([]*member.Exit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*member.Exit
	for _, e := range r.exits {
		if chatID != 0 && e.ChatID != chatID {
			continue
		}
		clone := *e
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LeftAt.Equal(out[j].LeftAt) {
			return out[j].LeftAt.Before(out[i].LeftAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return paginate(out, limit, offset), nil
}

func (r *inMemoryMembershipRepo) CountExits(ctx context.Context, chatID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, e := range r.exits {
		if chatID == 0 || e.ChatID == chatID {
			count++
		}
	}
	return count, nil
}

func (r *inMemoryMembershipRepo) CountExitsByLink(ctx context.Context, linkID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, e := range r.exits {
		if e.LinkID != nil && *e.LinkID == linkID {
			count++
		}
	}
	return count, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
