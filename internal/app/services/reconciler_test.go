package services

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/faeln1/go-telegram-tracker/internal/app/repositories"
	"github.com/faeln1/go-telegram-tracker/internal/domain/channel"
	"github.com/faeln1/go-telegram-tracker/internal/domain/link"
	"github.com/faeln1/go-telegram-tracker/internal/domain/member"
	"github.com/faeln1/go-telegram-tracker/pkg/logger"
)

const (
	publicChatID  int64 = -1001
	privateChatID int64 = -1002
)

type staticChannels struct {
	cfg *channel.Config
}

func (s staticChannels) Current(ctx context.Context) (*channel.Config, error) {
	return s.cfg, nil
}

type reconcilerFixture struct {
	reconciler  Reconciler
	memberships repositories.MembershipRepository
	links       repositories.LinkRepository
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()
	memberships := repositories.NewInMemoryMembershipRepo()
	links := repositories.NewInMemoryLinkRepo()
	channels := staticChannels{cfg: &channel.Config{
		PublicChannelID:  publicChatID,
		PrivateChannelID: privateChatID,
	}}
	return &reconcilerFixture{
		reconciler:  NewReconciler(memberships, links, channels, logger.InitForTests()),
		memberships: memberships,
		links:       links,
	}
}

func (f *reconcilerFixture) trackLink(t *testing.T, url string, channelType link.ChannelType) *link.InviteLink {
	t.Helper()
	l := &link.InviteLink{
		ID:          uuid.NewString(),
		Name:        "campaign",
		URL:         url,
		ChannelType: channelType,
		CreatedAt:   time.Now().UTC(),
	}
	if err := f.links.Create(context.Background(), l); err != nil {
		t.Fatalf("track link: %v", err)
	}
	return l
}

func joinEvent(userID, chatID int64, inviteURL string, at time.Time) member.MembershipEvent {
	return member.MembershipEvent{
		ChatID:        chatID,
		UserID:        userID,
		Username:      "ana",
		FirstName:     "Ana",
		OldStatus:     member.StatusLeft,
		NewStatus:     member.StatusMember,
		InviteLinkURL: inviteURL,
		OccurredAt:    at,
	}
}

func leaveEvent(userID, chatID int64, at time.Time) member.MembershipEvent {
	return member.MembershipEvent{
		ChatID:     chatID,
		UserID:     userID,
		OldStatus:  member.StatusMember,
		NewStatus:  member.StatusLeft,
		OccurredAt: at,
	}
}

func TestJoinWithTrackedPublicLink(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()
	tracked := f.trackLink(t, "https://t.me/+abc", link.ChannelPublic)

	if err := f.reconciler.HandleEvent(ctx, joinEvent(1, publicChatID, tracked.URL, time.Now().UTC())); err != nil {
		t.Fatalf("handle join: %v", err)
	}

	m, err := f.memberships.GetMember(ctx, 1, publicChatID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m == nil {
		t.Fatalf("expected tracked member")
	}
	if m.LinkID == nil || *m.LinkID != tracked.ID {
		t.Fatalf("expected attribution to %s, got %v", tracked.ID, m.LinkID)
	}
	if m.LinkURL == nil || *m.LinkURL != tracked.URL {
		t.Fatalf("expected link url %s, got %v", tracked.URL, m.LinkURL)
	}
}

func TestJoinWithUnknownLinkRecordsUnattributed(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	if err := f.reconciler.HandleEvent(ctx, joinEvent(1, publicChatID, "https://t.me/+nottracked", time.Now().UTC())); err != nil {
		t.Fatalf("handle join: %v", err)
	}

	m, _ := f.memberships.GetMember(ctx, 1, publicChatID)
	if m == nil {
		t.Fatalf("expected member recorded despite unknown link")
	}
	if m.LinkID != nil {
		t.Fatalf("expected no attribution, got %v", *m.LinkID)
	}
}

func TestJoinWithPrivateLinkNotCredited(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()
	tracked := f.trackLink(t, "https://t.me/+vip", link.ChannelPrivate)

	if err := f.reconciler.HandleEvent(ctx, joinEvent(1, privateChatID, tracked.URL, time.Now().UTC())); err != nil {
		t.Fatalf("handle join: %v", err)
	}

	m, _ := f.memberships.GetMember(ctx, 1, privateChatID)
	if m == nil {
		t.Fatalf("expected member recorded")
	}
	if m.LinkID != nil {
		t.Fatalf("private channel joins must not be credited, got %v", *m.LinkID)
	}
}

func TestJoinOutsidePublicChannelIgnoresLink(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()
	tracked := f.trackLink(t, "https://t.me/+abc", link.ChannelPublic)

	// A public funnel link used on the private channel is not credited.
	if err := f.reconciler.HandleEvent(ctx, joinEvent(1, privateChatID, tracked.URL, time.Now().UTC())); err != nil {
		t.Fatalf("handle join: %v", err)
	}

	m, _ := f.memberships.GetMember(ctx, 1, privateChatID)
	if m == nil {
		t.Fatalf("expected member recorded")
	}
	if m.LinkID != nil {
		t.Fatalf("expected no attribution outside public channel")
	}
}

func TestAdministratorPromotionCountsAsJoin(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	evt := joinEvent(1, publicChatID, "", time.Now().UTC())
	evt.NewStatus = member.StatusAdministrator
	if err := f.reconciler.HandleEvent(ctx, evt); err != nil {
		t.Fatalf("handle join: %v", err)
	}

	m, _ := f.memberships.GetMember(ctx, 1, publicChatID)
	if m == nil {
		t.Fatalf("expected administrator tracked as member")
	}
}

func TestRestrictedStatusIgnored(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	evt := joinEvent(1, publicChatID, "", time.Now().UTC())
	evt.NewStatus = member.StatusRestricted
	if err := f.reconciler.HandleEvent(ctx, evt); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	m, _ := f.memberships.GetMember(ctx, 1, publicChatID)
	if m != nil {
		t.Fatalf("restricted status must not create a membership")
	}
}

func TestLeaveRecordsExitAndRemovesMember(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()
	tracked := f.trackLink(t, "https://t.me/+abc", link.ChannelPublic)

	joinedAt := time.Now().UTC().Add(-time.Hour)
	if err := f.reconciler.HandleEvent(ctx, joinEvent(1, publicChatID, tracked.URL, joinedAt)); err != nil {
		t.Fatalf("handle join: %v", err)
	}
	if err := f.reconciler.HandleEvent(ctx, leaveEvent(1, publicChatID, time.Now().UTC())); err != nil {
		t.Fatalf("handle leave: %v", err)
	}

	if m, _ := f.memberships.GetMember(ctx, 1, publicChatID); m != nil {
		t.Fatalf("expected member removed after leave")
	}

	exits, err := f.memberships.ListExits(ctx, publicChatID, 10, 0)
	if err != nil {
		t.Fatalf("list exits: %v", err)
	}
	if len(exits) != 1 {
		t.Fatalf("expected 1 exit record, got %d", len(exits))
	}
	exit := exits[0]
	if exit.LinkID == nil || *exit.LinkID != tracked.ID {
		t.Fatalf("exit should carry the join attribution")
	}
	if !exit.JoinedAt.Equal(joinedAt) {
		t.Fatalf("exit should preserve the join timestamp; expected %v got %v", joinedAt, exit.JoinedAt)
	}
}

func TestLeaveForUntrackedMemberIsNoOp(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	if err := f.reconciler.HandleEvent(ctx, leaveEvent(99, publicChatID, time.Now().UTC())); err != nil {
		t.Fatalf("handle leave: %v", err)
	}

	count, err := f.memberships.CountExits(ctx, publicChatID)
	if err != nil {
		t.Fatalf("count exits: %v", err)
	}
	if count != 0 {
		t.Fatalf("untracked leave must not create an exit, got %d", count)
	}
}

func TestDuplicateLeaveWithinWindowSuppressed(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// A recent exit already on record plus a live member row simulates
	// Telegram re-firing leave transitions out of order.
	seed := &member.Exit{
		ID:       uuid.NewString(),
		ChatID:   publicChatID,
		UserID:   1,
		JoinedAt: now.Add(-time.Hour),
		LeftAt:   now.Add(-time.Minute),
	}
	if err := f.memberships.InsertExit(ctx, seed); err != nil {
		t.Fatalf("seed exit: %v", err)
	}
	if err := f.memberships.UpsertMember(ctx, &member.Member{ChatID: publicChatID, UserID: 1, JoinedAt: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("seed member: %v", err)
	}

	if err := f.reconciler.HandleEvent(ctx, leaveEvent(1, publicChatID, now)); err != nil {
		t.Fatalf("handle leave: %v", err)
	}

	count, _ := f.memberships.CountExits(ctx, publicChatID)
	if count != 1 {
		t.Fatalf("expected duplicate exit suppressed, got %d records", count)
	}
	if m, _ := f.memberships.GetMember(ctx, 1, publicChatID); m != nil {
		t.Fatalf("member row must be removed even when the exit is suppressed")
	}
}

func TestSecondLeaveOutsideWindowRecorded(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seed := &member.Exit{
		ID:       uuid.NewString(),
		ChatID:   publicChatID,
		UserID:   1,
		JoinedAt: now.Add(-2 * time.Hour),
		LeftAt:   now.Add(-time.Hour),
	}
	if err := f.memberships.InsertExit(ctx, seed); err != nil {
		t.Fatalf("seed exit: %v", err)
	}
	if err := f.memberships.UpsertMember(ctx, &member.Member{ChatID: publicChatID, UserID: 1, JoinedAt: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("seed member: %v", err)
	}

	if err := f.reconciler.HandleEvent(ctx, leaveEvent(1, publicChatID, now)); err != nil {
		t.Fatalf("handle leave: %v", err)
	}

	count, _ := f.memberships.CountExits(ctx, publicChatID)
	if count != 2 {
		t.Fatalf("exit outside the dedup window should be recorded, got %d records", count)
	}
}

func TestRejoinCancelsExitAndRestoresAttribution(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()
	tracked := f.trackLink(t, "https://t.me/+abc", link.ChannelPublic)
	now := time.Now().UTC()

	if err := f.reconciler.HandleEvent(ctx, joinEvent(1, publicChatID, tracked.URL, now.Add(-2*time.Hour))); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := f.reconciler.HandleEvent(ctx, leaveEvent(1, publicChatID, now.Add(-time.Hour))); err != nil {
		t.Fatalf("leave: %v", err)
	}
	// Rejoin without any invite link info on the event.
	if err := f.reconciler.HandleEvent(ctx, joinEvent(1, publicChatID, "", now)); err != nil {
		t.Fatalf("rejoin: %v", err)
	}

	count, _ := f.memberships.CountExits(ctx, publicChatID)
	if count != 0 {
		t.Fatalf("rejoin must cancel the recorded exit, %d left", count)
	}

	m, _ := f.memberships.GetMember(ctx, 1, publicChatID)
	if m == nil {
		t.Fatalf("expected member tracked after rejoin")
	}
	if m.LinkID == nil || *m.LinkID != tracked.ID {
		t.Fatalf("expected attribution restored from cancelled exit")
	}
}

func TestRejoinWithNewLinkPrefersEventLink(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()
	first := f.trackLink(t, "https://t.me/+first", link.ChannelPublic)
	second := f.trackLink(t, "https://t.me/+second", link.ChannelPublic)
	now := time.Now().UTC()

	if err := f.reconciler.HandleEvent(ctx, joinEvent(1, publicChatID, first.URL, now.Add(-2*time.Hour))); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := f.reconciler.HandleEvent(ctx, leaveEvent(1, publicChatID, now.Add(-time.Hour))); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := f.reconciler.HandleEvent(ctx, joinEvent(1, publicChatID, second.URL, now)); err != nil {
		t.Fatalf("rejoin: %v", err)
	}

	m, _ := f.memberships.GetMember(ctx, 1, publicChatID)
	if m == nil || m.LinkID == nil {
		t.Fatalf("expected attributed member after rejoin")
	}
	if *m.LinkID != second.ID {
		t.Fatalf("event link must win over carried attribution; got %s", *m.LinkID)
	}
}

func TestMembershipsPerChannelAreIndependent(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := f.reconciler.HandleEvent(ctx, joinEvent(1, publicChatID, "", now)); err != nil {
		t.Fatalf("public join: %v", err)
	}
	if err := f.reconciler.HandleEvent(ctx, joinEvent(1, privateChatID, "", now)); err != nil {
		t.Fatalf("private join: %v", err)
	}
	if err := f.reconciler.HandleEvent(ctx, leaveEvent(1, publicChatID, now.Add(time.Minute))); err != nil {
		t.Fatalf("public leave: %v", err)
	}

	if m, _ := f.memberships.GetMember(ctx, 1, publicChatID); m != nil {
		t.Fatalf("public membership should be closed")
	}
	if m, _ := f.memberships.GetMember(ctx, 1, privateChatID); m == nil {
		t.Fatalf("private membership must survive the public leave")
	}
}

func TestRepeatedJoinEventIsIdempotent(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()
	l := f.trackLink(t, "https://t.me/+replay", link.ChannelPublic)

	evt := joinEvent(9, publicChatID, l.URL, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	if err := f.reconciler.HandleEvent(ctx, evt); err != nil {
		t.Fatalf("first join: %v", err)
	}
	first, err := f.memberships.GetMember(ctx, 9, publicChatID)
	if err != nil || first == nil {
		t.Fatalf("member after first join: %v %v", first, err)
	}

	// Telegram retries redeliver the same payload.
	if err := f.reconciler.HandleEvent(ctx, evt); err != nil {
		t.Fatalf("replayed join: %v", err)
	}
	second, err := f.memberships.GetMember(ctx, 9, publicChatID)
	if err != nil {
		t.Fatalf("member after replay: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("replayed join changed the row: %+v vs %+v", first, second)
	}
	count, err := f.memberships.CountMembers(ctx, publicChatID)
	if err != nil || count != 1 {
		t.Fatalf("expected a single member row, got %d (%v)", count, err)
	}
}
