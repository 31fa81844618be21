package services

import (
	"context"
	"fmt"
	"time"

	"github.com/faeln1/go-telegram-tracker/internal/app/repositories"
	"github.com/faeln1/go-telegram-tracker/internal/domain/channel"
	"github.com/faeln1/go-telegram-tracker/internal/domain/link"
	"github.com/faeln1/go-telegram-tracker/internal/domain/member"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// exitDedupWindow suppresses a second exit record for the same (user, chat)
// when Telegram re-fires a leave notification. A heuristic, not a guarantee.
const exitDedupWindow = 5 * time.Minute

// Reconciler consumes membership change events and keeps the members table
// and the exit log consistent with what actually happened in the channels,
// preserving invite link attribution across leave/rejoin churn.
type Reconciler interface {
	HandleEvent(ctx context.Context, evt member.MembershipEvent) error
}

type reconciler struct {
	memberships repositories.MembershipRepository
	links       repositories.LinkRepository
	channels    channel.ConfigProvider
	log         *logrus.Logger
	now         func() time.Time
}

// NewReconciler wires the membership event reconciler.
func NewReconciler(memberships repositories.MembershipRepository, links repositories.LinkRepository, channels channel.ConfigProvider, log *logrus.Logger) Reconciler {
	return &reconciler{
		memberships: memberships,
		links:       links,
		channels:    channels,
		log:         log,
		now:         time.Now,
	}
}

func (r *reconciler) HandleEvent(ctx context.Context, evt member.MembershipEvent) error {
	switch {
	case evt.IsJoin():
		return r.handleJoin(ctx, evt)
	case evt.IsLeave():
		return r.handleLeave(ctx, evt)
	default:
		r.log.WithFields(logrus.Fields{
			"chat_id": evt.ChatID,
			"user_id": evt.UserID,
			"status":  evt.NewStatus,
		}).Debug("membership event ignored")
		return nil
	}
}

func (r *reconciler) handleJoin(ctx context.Context, evt member.MembershipEvent) error {
	fields := logrus.Fields{
		"chat_id":  evt.ChatID,
		"user_id":  evt.UserID,
		"username": evt.Username,
	}

	// Read the latest exit before wiping it: if the join event carries no
	// invite link info, attribution is recovered from there.
	priorExit, err := r.memberships.LatestExit(ctx, evt.UserID, evt.ChatID)
	if err != nil {
		return fmt.Errorf("load prior exit: %w", err)
	}

	// Rejoining cancels the recorded exit; from the funnel's point of view
	// the person never left.
	if err := r.memberships.DeleteExits(ctx, evt.UserID, evt.ChatID); err != nil {
		return fmt.Errorf("cancel prior exits: %w", err)
	}
	if priorExit != nil {
		r.log.WithFields(fields).Info("rejoin cancelled recorded exit")
	}

	linkID, linkURL := r.resolveAttribution(ctx, evt, priorExit, fields)

	joinedAt := evt.OccurredAt
	if joinedAt.IsZero() {
		joinedAt = r.now().UTC()
	}

	m := &member.Member{
		ChatID:    evt.ChatID,
		UserID:    evt.UserID,
		Username:  evt.Username,
		FirstName: evt.FirstName,
		LastName:  evt.LastName,
		JoinedAt:  joinedAt,
		LinkID:    linkID,
		LinkURL:   linkURL,
	}
	if err := r.memberships.UpsertMember(ctx, m); err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}

	fields["attributed"] = linkID != nil
	r.log.WithFields(fields).Info("member join recorded")
	return nil
}

// resolveAttribution picks the invite link credited with the join, in
// priority order: a matching public link on the public channel, then the
// attribution carried on the cancelled exit, then none. Lookup misses are
// not errors; the membership is recorded either way.
func (r *reconciler) resolveAttribution(ctx context.Context, evt member.MembershipEvent, priorExit *member.Exit, fields logrus.Fields) (*string, *string) {
	if evt.InviteLinkURL != "" {
		tracked, err := r.links.GetByURL(ctx, evt.InviteLinkURL)
		switch {
		case err != nil:
			r.log.WithFields(fields).WithError(err).Warn("invite link lookup failed")
		case tracked == nil:
			r.log.WithFields(fields).WithField("url", evt.InviteLinkURL).Warn("no tracked link matches invite url")
		case tracked.ChannelType != link.ChannelPublic:
			r.log.WithFields(fields).WithField("channel_type", tracked.ChannelType).Warn("invite link is not a public funnel link")
		case !r.isPublicChannel(ctx, evt.ChatID):
			// Joins into the private channel are recorded but never
			// credited to a link; only the public funnel is tracked.
			r.log.WithFields(fields).Info("join outside public channel, link ignored")
		default:
			id := tracked.ID
			url := tracked.URL
			return &id, &url
		}
	}

	if priorExit != nil && priorExit.LinkID != nil {
		r.log.WithFields(fields).WithField("link_id", *priorExit.LinkID).Info("attribution restored from prior exit")
		return priorExit.LinkID, priorExit.LinkURL
	}

	return nil, nil
}

func (r *reconciler) isPublicChannel(ctx context.Context, chatID int64) bool {
	cfg, err := r.channels.Current(ctx)
	if err != nil {
		r.log.WithError(err).Warn("channel config unavailable")
		return false
	}
	return cfg.IsPublic(chatID)
}

func (r *reconciler) handleLeave(ctx context.Context, evt member.MembershipEvent) error {
	fields := logrus.Fields{
		"chat_id": evt.ChatID,
		"user_id": evt.UserID,
	}

	current, err := r.memberships.GetMember(ctx, evt.UserID, evt.ChatID)
	if err != nil {
		return fmt.Errorf("load member: %w", err)
	}
	if current == nil {
		// Never tracked; nothing to reconcile.
		r.log.WithFields(fields).Debug("leave for untracked member ignored")
		return nil
	}

	leftAt := evt.OccurredAt
	if leftAt.IsZero() {
		leftAt = r.now().UTC()
	}

	duplicate, err := r.isDuplicateExit(ctx, evt.UserID, evt.ChatID, leftAt)
	if err != nil {
		return fmt.Errorf("check recent exit: %w", err)
	}
	if duplicate {
		r.log.WithFields(fields).Info("recent exit exists, duplicate leave suppressed")
	} else {
		exit := &member.Exit{
			ID:        uuid.NewString(),
			ChatID:    current.ChatID,
			UserID:    current.UserID,
			Username:  current.Username,
			FirstName: current.FirstName,
			LastName:  current.LastName,
			JoinedAt:  current.JoinedAt,
			LeftAt:    leftAt,
			LinkID:    current.LinkID,
			LinkURL:   current.LinkURL,
		}
		if err := r.memberships.InsertExit(ctx, exit); err != nil {
			return fmt.Errorf("insert exit: %w", err)
		}
		fields["attributed"] = current.LinkID != nil
		r.log.WithFields(fields).Info("member exit recorded")
	}

	// The member row goes away whether or not a new exit was written.
	if err := r.memberships.DeleteMember(ctx, evt.UserID, evt.ChatID); err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return nil
}

func (r *reconciler) isDuplicateExit(ctx context.Context, userID, chatID int64, leftAt time.Time) (bool, error) {
	return r.memberships.HasExitSince(ctx, userID, chatID, leftAt.Add(-exitDedupWindow))
}
