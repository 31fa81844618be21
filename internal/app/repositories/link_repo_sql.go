package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/faeln1/go-telegram-tracker/internal/domain/link"
	"github.com/lib/pq"
)

type sqlLinkRepo struct {
	db *sql.DB
}

// NewSQLLinkRepo builds an invite link repository on top of database/sql.
func NewSQLLinkRepo(db *sql.DB, driver string) (LinkRepository, error) {
	repo := &sqlLinkRepo{db: db}
	if err := repo.ensureSchema(driver); err != nil {
		return nil, fmt.Errorf("invite link schema: %w", err)
	}
	return repo, nil
}

func (r *sqlLinkRepo) ensureSchema(driver string) error {
	ts := "TIMESTAMPTZ"
	if driver != "postgres" {
		ts = "TIMESTAMP"
	}
	createTable := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS invite_links (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            url TEXT NOT NULL UNIQUE,
            channel_type TEXT NOT NULL,
            created_at %s NOT NULL
        )`, ts)
	if _, err := r.db.Exec(createTable); err != nil {
		return err
	}
	return nil
}

func (r *sqlLinkRepo) Create(ctx context.Context, l *link.InviteLink) error {
	const query = `
        INSERT INTO invite_links (id, name, url, channel_type, created_at)
        VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, l.ID, l.Name, l.URL, string(l.ChannelType), l.CreatedAt.UTC())
	return r.mapError(err)
}

func (r *sqlLinkRepo) GetByID(ctx context.Context, id string) (*link.InviteLink, error) {
	const query = `SELECT id, name, url, channel_type, created_at FROM invite_links WHERE id = $1`
	l, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get link by id: %w", err)
	}
	return l, nil
}

func (r *sqlLinkRepo) GetByURL(ctx context.Context, url string) (*link.InviteLink, error) {
	const query = `SELECT id, name, url, channel_type, created_at FROM invite_links WHERE url = $1`
	l, err := r.scan(r.db.QueryRowContext(ctx, query, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get link by url: %w", err)
	}
	return l, nil
}

func (r *sqlLinkRepo) List(ctx context.Context) ([]*link.InviteLink, error) {
	const query = `SELECT id, name, url, channel_type, created_at FROM invite_links ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	var out []*link.InviteLink
	for rows.Next() {
		l, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *sqlLinkRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM invite_links WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrLinkNotFound
	}
	return err
}

func (r *sqlLinkRepo) scan(row rowScanner) (*link.InviteLink, error) {
	var (
		l           link.InviteLink
		channelType string
	)
	if err := row.Scan(&l.ID, &l.Name, &l.URL, &channelType, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.ChannelType = link.ChannelType(channelType)
	l.CreatedAt = l.CreatedAt.UTC()
	return &l, nil
}

func (r *sqlLinkRepo) mapError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrLinkAlreadyExists
	}
	// sqlite reports constraint violations by message only
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrLinkAlreadyExists
	}
	return err
}
