package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/faeln1/go-telegram-tracker/internal/app/repositories"
	"github.com/faeln1/go-telegram-tracker/pkg/storage"
	"github.com/sirupsen/logrus"
)

const exportPageSize = 500

// ExportService streams CSV snapshots of the members table and the exit log,
// and optionally archives them to object storage.
type ExportService interface {
	WriteMembersCSV(ctx context.Context, w io.Writer, chatID int64) (int, error)
	WriteExitsCSV(ctx context.Context, w io.Writer, chatID int64) (int, error)
	ArchiveMembers(ctx context.Context, chatID int64) (string, error)
	ArchiveExits(ctx context.Context, chatID int64) (string, error)
}

type exportService struct {
	memberships repositories.MembershipRepository
	archive     storage.Service
	log         *logrus.Logger
}

// NewExportService wires the CSV export service. archive may be nil; the
// Archive methods then fail with an explicit error.
func NewExportService(memberships repositories.MembershipRepository, archive storage.Service, log *logrus.Logger) ExportService {
	return &exportService{memberships: memberships, archive: archive, log: log}
}

func (s *exportService) WriteMembersCSV(ctx context.Context, w io.Writer, chatID int64) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"chat_id", "user_id", "username", "first_name", "last_name", "joined_at", "link_id", "link_url"}); err != nil {
		return 0, err
	}

	written := 0
	for offset := 0; ; offset += exportPageSize {
		page, err := s.memberships.ListMembers(ctx, chatID, exportPageSize, offset)
		if err != nil {
			return written, fmt.Errorf("list members: %w", err)
		}
		for _, m := range page {
			record := []string{
				strconv.FormatInt(m.ChatID, 10),
				strconv.FormatInt(m.UserID, 10),
				m.Username,
				m.FirstName,
				m.LastName,
				m.JoinedAt.UTC().Format(time.RFC3339),
				deref(m.LinkID),
				deref(m.LinkURL),
			}
			if err := cw.Write(record); err != nil {
				return written, err
			}
			written++
		}
		if len(page) < exportPageSize {
			break
		}
	}
	cw.Flush()
	return written, cw.Error()
}

func (s *exportService) WriteExitsCSV(ctx context.Context, w io.Writer, chatID int64) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"chat_id", "user_id", "username", "first_name", "last_name", "joined_at", "left_at", "link_id", "link_url"}); err != nil {
		return 0, err
	}

	written := 0
	for offset := 0; ; offset += exportPageSize {
		page, err := s.memberships.ListExits(ctx, chatID, exportPageSize, offset)
		if err != nil {
			return written, fmt.Errorf("list exits: %w", err)
		}
		for _, e := range page {
			record := []string{
				strconv.FormatInt(e.ChatID, 10),
				strconv.FormatInt(e.UserID, 10),
				e.Username,
				e.FirstName,
				e.LastName,
				e.JoinedAt.UTC().Format(time.RFC3339),
				e.LeftAt.UTC().Format(time.RFC3339),
				deref(e.LinkID),
				deref(e.LinkURL),
			}
			if err := cw.Write(record); err != nil {
				return written, err
			}
			written++
		}
		if len(page) < exportPageSize {
			break
		}
	}
	cw.Flush()
	return written, cw.Error()
}

func (s *exportService) ArchiveMembers(ctx context.Context, chatID int64) (string, error) {
	return s.archiveCSV(ctx, "members", chatID, s.WriteMembersCSV)
}

func (s *exportService) ArchiveExits(ctx context.Context, chatID int64) (string, error) {
	return s.archiveCSV(ctx, "exits", chatID, s.WriteExitsCSV)
}

func (s *exportService) archiveCSV(ctx context.Context, kind string, chatID int64, write func(context.Context, io.Writer, int64) (int, error)) (string, error) {
	if s.archive == nil {
		return "", fmt.Errorf("object storage is not configured")
	}

	var buf bytes.Buffer
	rows, err := write(ctx, &buf, chatID)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("exports/%s/%s.csv", kind, time.Now().UTC().Format("20060102T150405Z"))
	url, err := s.archive.PutObject(ctx, storage.UploadInput{
		Key:         key,
		ContentType: "text/csv",
		Body:        bytes.NewReader(buf.Bytes()),
		Size:        int64(buf.Len()),
	})
	if err != nil {
		return "", fmt.Errorf("archive %s export: %w", kind, err)
	}

	s.log.WithFields(logrus.Fields{"kind": kind, "rows": rows, "key": key}).Info("export archived")
	return url, nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
