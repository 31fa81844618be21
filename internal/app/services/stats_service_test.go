package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/faeln1/go-telegram-tracker/internal/app/repositories"
	"github.com/faeln1/go-telegram-tracker/internal/domain/channel"
	"github.com/faeln1/go-telegram-tracker/internal/domain/member"
	"github.com/faeln1/go-telegram-tracker/pkg/logger"
)

type fakeCounter struct {
	counts map[int64]int
	fail   bool
}

func (f *fakeCounter) MemberCount(chatID int64) (int, error) {
	if f.fail {
		return 0, errors.New("telegram down")
	}
	return f.counts[chatID], nil
}

func newStatsFixture(t *testing.T, counter ChannelCounter) (StatsService, repositories.MembershipRepository) {
	t.Helper()
	memberships := repositories.NewInMemoryMembershipRepo()
	channels := NewChannelService(repositories.NewInMemoryChannelConfigRepo())
	if _, err := channels.Save(context.Background(), &channel.Config{
		PublicChannelID:  publicChatID,
		PrivateChannelID: privateChatID,
	}); err != nil {
		t.Fatalf("save channel config: %v", err)
	}
	return NewStatsService(memberships, channels, counter, logger.InitForTests()), memberships
}

func seedMember(t *testing.T, repo repositories.MembershipRepository, userID, chatID int64) {
	t.Helper()
	if err := repo.UpsertMember(context.Background(), &member.Member{
		ChatID:   chatID,
		UserID:   userID,
		JoinedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed member: %v", err)
	}
}

func TestOverviewCountsFunnel(t *testing.T) {
	counter := &fakeCounter{counts: map[int64]int{publicChatID: 120, privateChatID: 40}}
	svc, memberships := newStatsFixture(t, counter)
	ctx := context.Background()

	// Four tracked in public, two of them also in private.
	for _, userID := range []int64{1, 2, 3, 4} {
		seedMember(t, memberships, userID, publicChatID)
	}
	seedMember(t, memberships, 1, privateChatID)
	seedMember(t, memberships, 2, privateChatID)

	if err := memberships.InsertExit(ctx, &member.Exit{
		ID:     uuid.NewString(),
		ChatID: publicChatID,
		UserID: 9,
		LeftAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed exit: %v", err)
	}

	out, err := svc.Overview(ctx)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if out.PublicMembers != 120 || out.PrivateMembers != 40 {
		t.Fatalf("live counts mismatch: %+v", out)
	}
	if out.TrackedPublic != 4 {
		t.Fatalf("expected 4 tracked public, got %d", out.TrackedPublic)
	}
	if out.TrackedPrivate != 2 {
		t.Fatalf("expected 2 tracked private, got %d", out.TrackedPrivate)
	}
	if out.TotalExits != 1 {
		t.Fatalf("expected 1 exit, got %d", out.TotalExits)
	}
	if out.Converted != 2 {
		t.Fatalf("expected 2 converted, got %d", out.Converted)
	}
	if out.ConversionRate != 50 {
		t.Fatalf("expected 50%% conversion, got %v", out.ConversionRate)
	}
}

func TestOverviewRoundsConversionRate(t *testing.T) {
	svc, memberships := newStatsFixture(t, nil)
	ctx := context.Background()

	for _, userID := range []int64{1, 2, 3} {
		seedMember(t, memberships, userID, publicChatID)
	}
	seedMember(t, memberships, 1, privateChatID)

	out, err := svc.Overview(ctx)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	// 1/3 = 33.333..., rounded to two decimals.
	if out.ConversionRate != 33.33 {
		t.Fatalf("expected 33.33, got %v", out.ConversionRate)
	}
}

func TestOverviewSurvivesTelegramOutage(t *testing.T) {
	svc, memberships := newStatsFixture(t, &fakeCounter{fail: true})
	seedMember(t, memberships, 1, publicChatID)

	out, err := svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("overview should not fail on live count errors: %v", err)
	}
	if out.PublicMembers != 0 || out.PrivateMembers != 0 {
		t.Fatalf("expected zero live counts on outage, got %+v", out)
	}
	if out.TrackedPublic != 1 {
		t.Fatalf("tracked counts must still be computed, got %d", out.TrackedPublic)
	}
}

func TestOverviewUnconfiguredChannels(t *testing.T) {
	memberships := repositories.NewInMemoryMembershipRepo()
	channels := NewChannelService(repositories.NewInMemoryChannelConfigRepo())
	svc := NewStatsService(memberships, channels, nil, logger.InitForTests())

	seedMember(t, memberships, 1, 12345)

	out, err := svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	// With no configured pair, nothing may be counted as tracked.
	if out.TrackedPublic != 0 || out.TrackedPrivate != 0 || out.Converted != 0 {
		t.Fatalf("unconfigured channels must report zero tracked, got %+v", out)
	}
}
