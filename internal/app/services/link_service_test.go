package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/faeln1/go-telegram-tracker/internal/app/repositories"
	"github.com/faeln1/go-telegram-tracker/internal/domain/channel"
	"github.com/faeln1/go-telegram-tracker/internal/domain/link"
	"github.com/faeln1/go-telegram-tracker/internal/domain/member"
)

type fakeLinkCreator struct {
	calls int
	fail  bool
}

func (f *fakeLinkCreator) CreateInviteLink(chatID int64, name string, memberLimit int) (string, error) {
	f.calls++
	if f.fail {
		return "", errors.New("telegram down")
	}
	return fmt.Sprintf("https://t.me/+%d-%d", chatID, f.calls), nil
}

func newLinkFixture(t *testing.T, creator InviteLinkCreator) (LinkService, repositories.LinkRepository, repositories.MembershipRepository) {
	t.Helper()
	links := repositories.NewInMemoryLinkRepo()
	memberships := repositories.NewInMemoryMembershipRepo()
	channels := NewChannelService(repositories.NewInMemoryChannelConfigRepo())
	if _, err := channels.Save(context.Background(), &channel.Config{
		PublicChannelID:  publicChatID,
		PrivateChannelID: privateChatID,
	}); err != nil {
		t.Fatalf("save channel config: %v", err)
	}
	return NewLinkService(links, memberships, channels, creator), links, memberships
}

func TestCreateLinkMintsAndPersists(t *testing.T) {
	creator := &fakeLinkCreator{}
	svc, links, _ := newLinkFixture(t, creator)
	ctx := context.Background()

	created, err := svc.Create(ctx, link.CreateInput{Name: "spring promo", ChannelType: "public"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}
	if created.URL == "" {
		t.Fatalf("expected minted url")
	}
	if created.ChannelType != link.ChannelPublic {
		t.Fatalf("expected public channel type, got %s", created.ChannelType)
	}
	if creator.calls != 1 {
		t.Fatalf("expected 1 telegram call, got %d", creator.calls)
	}

	stored, err := links.GetByURL(ctx, created.URL)
	if err != nil {
		t.Fatalf("get by url: %v", err)
	}
	if stored == nil || stored.ID != created.ID {
		t.Fatalf("link not persisted by url")
	}
}

func TestCreateLinkValidation(t *testing.T) {
	svc, _, _ := newLinkFixture(t, &fakeLinkCreator{})
	ctx := context.Background()

	cases := []struct {
		name    string
		in      link.CreateInput
		wantErr error
	}{
		{"empty name", link.CreateInput{Name: "  ", ChannelType: "public"}, ErrLinkNameRequired},
		{"bad channel type", link.CreateInput{Name: "x", ChannelType: "both"}, ErrInvalidChannelType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.in); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestCreateLinkUnconfiguredChannel(t *testing.T) {
	links := repositories.NewInMemoryLinkRepo()
	memberships := repositories.NewInMemoryMembershipRepo()
	channels := NewChannelService(repositories.NewInMemoryChannelConfigRepo())
	svc := NewLinkService(links, memberships, channels, &fakeLinkCreator{})

	if _, err := svc.Create(context.Background(), link.CreateInput{Name: "x", ChannelType: "private"}); !errors.Is(err, ErrChannelNotConfigured) {
		t.Fatalf("expected ErrChannelNotConfigured, got %v", err)
	}
}

func TestCreateLinkTelegramFailureDoesNotPersist(t *testing.T) {
	svc, links, _ := newLinkFixture(t, &fakeLinkCreator{fail: true})
	ctx := context.Background()

	if _, err := svc.Create(ctx, link.CreateInput{Name: "x", ChannelType: "public"}); err == nil {
		t.Fatalf("expected error when telegram fails")
	}
	all, _ := links.List(ctx)
	if len(all) != 0 {
		t.Fatalf("failed mint must not persist a link, got %d", len(all))
	}
}

func TestLinkStatsCountsMembersAndExits(t *testing.T) {
	svc, _, memberships := newLinkFixture(t, &fakeLinkCreator{})
	ctx := context.Background()

	created, err := svc.Create(ctx, link.CreateInput{Name: "x", ChannelType: "public"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	id := created.ID
	url := created.URL
	for i := int64(1); i <= 3; i++ {
		if err := memberships.UpsertMember(ctx, &member.Member{
			ChatID:   publicChatID,
			UserID:   i,
			JoinedAt: time.Now().UTC(),
			LinkID:   &id,
			LinkURL:  &url,
		}); err != nil {
			t.Fatalf("seed member: %v", err)
		}
	}
	if err := memberships.InsertExit(ctx, &member.Exit{
		ID:     "exit-1",
		ChatID: publicChatID,
		UserID: 9,
		LeftAt: time.Now().UTC(),
		LinkID: &id,
	}); err != nil {
		t.Fatalf("seed exit: %v", err)
	}

	stats, err := svc.Stats(ctx, created.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.ActiveMembers != 3 {
		t.Fatalf("expected 3 active members, got %d", stats.ActiveMembers)
	}
	if stats.Exits != 1 {
		t.Fatalf("expected 1 exit, got %d", stats.Exits)
	}
	if stats.TotalJoins != 4 {
		t.Fatalf("expected 4 total joins, got %d", stats.TotalJoins)
	}
}

func TestLinkStatsUnknownLink(t *testing.T) {
	svc, _, _ := newLinkFixture(t, &fakeLinkCreator{})
	if _, err := svc.Stats(context.Background(), "nope"); !errors.Is(err, repositories.ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound, got %v", err)
	}
}
