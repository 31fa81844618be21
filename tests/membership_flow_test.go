package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/faeln1/go-telegram-tracker/internal/app/controllers"
	"github.com/faeln1/go-telegram-tracker/internal/app/repositories"
	"github.com/faeln1/go-telegram-tracker/internal/app/services"
	"github.com/faeln1/go-telegram-tracker/internal/domain/channel"
	"github.com/faeln1/go-telegram-tracker/internal/domain/link"
	httpPlatform "github.com/faeln1/go-telegram-tracker/internal/platform/http"
	"github.com/faeln1/go-telegram-tracker/pkg/logger"
)

const (
	publicChatID  int64 = -1001
	privateChatID int64 = -1002
	masterToken         = "secret-master"
	webhookSecret       = "hook-secret"
)

type stubLinkCreator struct {
	next int
}

func (s *stubLinkCreator) CreateInviteLink(chatID int64, name string, memberLimit int) (string, error) {
	s.next++
	return fmt.Sprintf("https://t.me/+stub%d", s.next), nil
}

type trackerStack struct {
	server      *httptest.Server
	memberships repositories.MembershipRepository
	links       services.LinkService
}

func newTrackerStack(t *testing.T) *trackerStack {
	t.Helper()
	log := logger.InitForTests()

	memberships := repositories.NewInMemoryMembershipRepo()
	linkRepo := repositories.NewInMemoryLinkRepo()
	channelRepo := repositories.NewInMemoryChannelConfigRepo()

	channelSvc := services.NewChannelService(channelRepo)
	if _, err := channelSvc.Save(context.Background(), &channel.Config{
		PublicChannelID:  publicChatID,
		PrivateChannelID: privateChatID,
	}); err != nil {
		t.Fatalf("save channel config: %v", err)
	}

	reconciler := services.NewReconciler(memberships, linkRepo, channelSvc, log)
	linkSvc := services.NewLinkService(linkRepo, memberships, channelSvc, &stubLinkCreator{})
	statsSvc := services.NewStatsService(memberships, channelSvc, nil, log)
	exportSvc := services.NewExportService(memberships, nil, log)
	webhookSvc := services.NewWebhookManager(nil, webhookSecret, log)

	router := httpPlatform.NewRouter(httpPlatform.RouterConfig{
		WebhookCtrl:   controllers.NewWebhookController(reconciler, webhookSvc, nil, log),
		LinkCtrl:      controllers.NewLinkController(linkSvc),
		MemberCtrl:    controllers.NewMemberController(memberships, channelSvc),
		ChannelCtrl:   controllers.NewChannelController(channelSvc, nil, log),
		StatsCtrl:     controllers.NewStatsController(statsSvc),
		ExportCtrl:    controllers.NewExportController(exportSvc, channelSvc),
		Logger:        log,
		MasterToken:   masterToken,
		WebhookSecret: webhookSecret,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &trackerStack{server: srv, memberships: memberships, links: linkSvc}
}

func (s *trackerStack) deliverUpdate(t *testing.T, userID int64, chatID int64, oldStatus, newStatus, inviteURL string) {
	t.Helper()
	upd := tgbotapi.Update{
		UpdateID: 1,
		ChatMember: &tgbotapi.ChatMemberUpdated{
			Chat: tgbotapi.Chat{ID: chatID},
			Date: int(time.Now().Unix()),
			OldChatMember: tgbotapi.ChatMember{
				User:   &tgbotapi.User{ID: userID, FirstName: "Test"},
				Status: oldStatus,
			},
			NewChatMember: tgbotapi.ChatMember{
				User:   &tgbotapi.User{ID: userID, FirstName: "Test"},
				Status: newStatus,
			},
		},
	}
	if inviteURL != "" {
		upd.ChatMember.InviteLink = &tgbotapi.ChatInviteLink{InviteLink: inviteURL}
	}
	body, _ := json.Marshal(upd)

	req, _ := http.NewRequest(http.MethodPost, s.server.URL+"/webhook/telegram", bytes.NewReader(body))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", webhookSecret)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("deliver update: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from webhook, got %d", resp.StatusCode)
	}
}

func (s *trackerStack) adminGet(t *testing.T, path string, out any) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, s.server.URL+path, nil)
	req.Header.Set("Authorization", "Bearer "+masterToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get %s: status %d", path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
}

func TestWebhookRejectsWrongSecret(t *testing.T) {
	stack := newTrackerStack(t)

	req, _ := http.NewRequest(http.MethodPost, stack.server.URL+"/webhook/telegram", bytes.NewReader([]byte("{}")))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "wrong")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad secret, got %d", resp.StatusCode)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	stack := newTrackerStack(t)

	resp, err := http.Get(stack.server.URL + "/members")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestMembershipJourney(t *testing.T) {
	stack := newTrackerStack(t)
	ctx := context.Background()

	created, err := stack.links.Create(ctx, link.CreateInput{Name: "launch", ChannelType: "public"})
	if err != nil {
		t.Fatalf("create link: %v", err)
	}

	// Join through the tracked link, convert to the private channel,
	// churn out of public and come back.
	stack.deliverUpdate(t, 42, publicChatID, "left", "member", created.URL)
	stack.deliverUpdate(t, 42, privateChatID, "left", "member", "")
	stack.deliverUpdate(t, 42, publicChatID, "member", "left", "")
	stack.deliverUpdate(t, 42, publicChatID, "left", "member", "")

	m, err := stack.memberships.GetMember(ctx, 42, publicChatID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m == nil {
		t.Fatalf("expected member tracked after rejoin")
	}
	if m.LinkID == nil || *m.LinkID != created.ID {
		t.Fatalf("attribution must survive the leave/rejoin cycle")
	}

	exits, _ := stack.memberships.CountExits(ctx, publicChatID)
	if exits != 0 {
		t.Fatalf("rejoin must cancel the exit, %d left", exits)
	}

	var overview struct {
		TrackedPublic  int     `json:"tracked_public"`
		TrackedPrivate int     `json:"tracked_private"`
		Converted      int     `json:"converted"`
		ConversionRate float64 `json:"conversion_rate"`
	}
	stack.adminGet(t, "/stats/overview", &overview)
	if overview.TrackedPublic != 1 || overview.TrackedPrivate != 1 {
		t.Fatalf("unexpected tracked counts: %+v", overview)
	}
	if overview.Converted != 1 || overview.ConversionRate != 100 {
		t.Fatalf("expected full conversion: %+v", overview)
	}

	var stats struct {
		ActiveMembers int `json:"active_members"`
		TotalJoins    int `json:"total_joins"`
	}
	stack.adminGet(t, "/links/"+created.ID+"/stats", &stats)
	if stats.ActiveMembers != 1 {
		t.Fatalf("expected 1 active member on link, got %d", stats.ActiveMembers)
	}
}

func TestMemberListingFiltersByChannel(t *testing.T) {
	stack := newTrackerStack(t)

	stack.deliverUpdate(t, 1, publicChatID, "left", "member", "")
	stack.deliverUpdate(t, 2, publicChatID, "left", "member", "")
	stack.deliverUpdate(t, 1, privateChatID, "left", "member", "")

	var paged struct {
		Total int `json:"total"`
	}
	stack.adminGet(t, "/members?channel=public", &paged)
	if paged.Total != 2 {
		t.Fatalf("expected 2 public members, got %d", paged.Total)
	}
	stack.adminGet(t, "/members?channel=private", &paged)
	if paged.Total != 1 {
		t.Fatalf("expected 1 private member, got %d", paged.Total)
	}
}

func TestExportMembersCSV(t *testing.T) {
	stack := newTrackerStack(t)
	stack.deliverUpdate(t, 1, publicChatID, "left", "member", "")

	req, _ := http.NewRequest(http.MethodGet, stack.server.URL+"/exports/members.csv?channel=public", nil)
	req.Header.Set("Authorization", "Bearer "+masterToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("expected text/csv, got %s", ct)
	}
}
