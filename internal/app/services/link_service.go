package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/faeln1/go-telegram-tracker/internal/app/repositories"
	"github.com/faeln1/go-telegram-tracker/internal/domain/link"
	"github.com/google/uuid"
)

var (
	ErrChannelNotConfigured = errors.New("channel is not configured")
	ErrInvalidChannelType   = errors.New("channel_type must be public or private")
	ErrLinkNameRequired     = errors.New("name is required")
	ErrTelegramDisabled     = errors.New("telegram client is not configured")
)

// InviteLinkCreator is the slice of the Telegram client the link service
// needs; the platform client satisfies it.
type InviteLinkCreator interface {
	CreateInviteLink(chatID int64, name string, memberLimit int) (string, error)
}

// LinkService manages tracked invite links: it asks Telegram to mint the
// link, persists it, and reports per-link membership outcomes.
type LinkService interface {
	Create(ctx context.Context, in link.CreateInput) (*link.InviteLink, error)
	List(ctx context.Context) ([]*link.WithStats, error)
	Get(ctx context.Context, id string) (*link.InviteLink, error)
	Stats(ctx context.Context, id string) (*link.Stats, error)
	Delete(ctx context.Context, id string) error
}

type linkService struct {
	links       repositories.LinkRepository
	memberships repositories.MembershipRepository
	channels    ChannelService
	telegram    InviteLinkCreator
}

// NewLinkService wires the invite link service.
func NewLinkService(links repositories.LinkRepository, memberships repositories.MembershipRepository, channels ChannelService, telegram InviteLinkCreator) LinkService {
	return &linkService{
		links:       links,
		memberships: memberships,
		channels:    channels,
		telegram:    telegram,
	}
}

func (s *linkService) Create(ctx context.Context, in link.CreateInput) (*link.InviteLink, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrLinkNameRequired
	}
	channelType := link.ChannelType(strings.ToLower(strings.TrimSpace(in.ChannelType)))
	if !channelType.Valid() {
		return nil, ErrInvalidChannelType
	}

	cfg, err := s.channels.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("load channel config: %w", err)
	}
	chatID := cfg.PublicChannelID
	if channelType == link.ChannelPrivate {
		chatID = cfg.PrivateChannelID
	}
	if chatID == 0 {
		return nil, fmt.Errorf("%w: %s", ErrChannelNotConfigured, channelType)
	}
	if s.telegram == nil {
		return nil, ErrTelegramDisabled
	}

	url, err := s.telegram.CreateInviteLink(chatID, name, in.MemberLimit)
	if err != nil {
		return nil, fmt.Errorf("create telegram invite link: %w", err)
	}

	l := &link.InviteLink{
		ID:          uuid.NewString(),
		Name:        name,
		URL:         url,
		ChannelType: channelType,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.links.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("save invite link: %w", err)
	}
	return l, nil
}

func (s *linkService) List(ctx context.Context) ([]*link.WithStats, error) {
	links, err := s.links.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*link.WithStats, 0, len(links))
	for _, l := range links {
		active, err := s.memberships.CountMembersByLink(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		exits, err := s.memberships.CountExitsByLink(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, &link.WithStats{
			InviteLink:    *l,
			ActiveMembers: active,
			Exits:         exits,
		})
	}
	return out, nil
}

func (s *linkService) Get(ctx context.Context, id string) (*link.InviteLink, error) {
	return s.links.GetByID(ctx, id)
}

func (s *linkService) Stats(ctx context.Context, id string) (*link.Stats, error) {
	if _, err := s.links.GetByID(ctx, id); err != nil {
		return nil, err
	}
	active, err := s.memberships.CountMembersByLink(ctx, id)
	if err != nil {
		return nil, err
	}
	exits, err := s.memberships.CountExitsByLink(ctx, id)
	if err != nil {
		return nil, err
	}
	return &link.Stats{
		LinkID:        id,
		ActiveMembers: active,
		Exits:         exits,
		TotalJoins:    active + exits,
	}, nil
}

func (s *linkService) Delete(ctx context.Context, id string) error {
	return s.links.Delete(ctx, id)
}
