package services

import (
	"context"
	"math"

	"github.com/faeln1/go-telegram-tracker/internal/app/repositories"
	"github.com/sirupsen/logrus"
)

// ChannelCounter is the slice of the Telegram client needed for live counts.
type ChannelCounter interface {
	MemberCount(chatID int64) (int, error)
}

// Overview is the dashboard headline: live counts straight from Telegram
// next to what the tracker itself has attributed.
type Overview struct {
	PublicMembers  int `json:"public_members"`
	PrivateMembers int `json:"private_members"`

	TrackedPublic  int `json:"tracked_public"`
	TrackedPrivate int `json:"tracked_private"`
	TotalExits     int `json:"total_exits"`
	Converted      int `json:"converted"`

	// ConversionRate is converted / tracked public members, in percent.
	ConversionRate float64 `json:"conversion_rate"`
}

// StatsService computes the public→private funnel numbers. Read-only; the
// reconciler never consults it.
type StatsService interface {
	Overview(ctx context.Context) (*Overview, error)
}

type statsService struct {
	memberships repositories.MembershipRepository
	channels    ChannelService
	telegram    ChannelCounter
	log         *logrus.Logger
}

// NewStatsService wires the funnel statistics service. telegram may be nil;
// live counts then stay zero.
func NewStatsService(memberships repositories.MembershipRepository, channels ChannelService, telegram ChannelCounter, log *logrus.Logger) StatsService {
	return &statsService{
		memberships: memberships,
		channels:    channels,
		telegram:    telegram,
		log:         log,
	}
}

func (s *statsService) Overview(ctx context.Context) (*Overview, error) {
	cfg, err := s.channels.Current(ctx)
	if err != nil {
		return nil, err
	}

	out := &Overview{}

	if s.telegram != nil {
		// Live counts are best effort: the dashboard numbers still render
		// when Telegram is unreachable.
		if cfg.PublicChannelID != 0 {
			if count, err := s.telegram.MemberCount(cfg.PublicChannelID); err != nil {
				s.log.WithError(err).Warn("public member count unavailable")
			} else {
				out.PublicMembers = count
			}
		}
		if cfg.PrivateChannelID != 0 {
			if count, err := s.telegram.MemberCount(cfg.PrivateChannelID); err != nil {
				s.log.WithError(err).Warn("private member count unavailable")
			} else {
				out.PrivateMembers = count
			}
		}
	}

	// Repository count calls treat chat id 0 as "all chats", so an
	// unconfigured side must be skipped rather than queried.
	if cfg.PublicChannelID != 0 {
		if out.TrackedPublic, err = s.memberships.CountMembers(ctx, cfg.PublicChannelID); err != nil {
			return nil, err
		}
	}
	if cfg.PrivateChannelID != 0 {
		if out.TrackedPrivate, err = s.memberships.CountMembers(ctx, cfg.PrivateChannelID); err != nil {
			return nil, err
		}
	}
	if out.TotalExits, err = s.memberships.CountExits(ctx, 0); err != nil {
		return nil, err
	}
	if cfg.PublicChannelID != 0 && cfg.PrivateChannelID != 0 {
		if out.Converted, err = s.memberships.CountConverted(ctx, cfg.PublicChannelID, cfg.PrivateChannelID); err != nil {
			return nil, err
		}
	}

	if out.TrackedPublic > 0 {
		rate := float64(out.Converted) / float64(out.TrackedPublic) * 100
		out.ConversionRate = math.Round(rate*100) / 100
	}
	return out, nil
}
