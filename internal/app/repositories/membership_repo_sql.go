package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/faeln1/go-telegram-tracker/internal/domain/member"
)

type sqlMembershipRepo struct {
	db *sql.DB
}

// NewSQLMembershipRepo builds a membership repository on top of database/sql.
// The SQL is kept portable between the postgres and sqlite drivers; only the
// timestamp column type differs, so the schema is created per driver.
func NewSQLMembershipRepo(db *sql.DB, driver string) (MembershipRepository, error) {
	repo := &sqlMembershipRepo{db: db}
	if err := repo.ensureSchema(driver); err != nil {
		return nil, fmt.Errorf("membership schema: %w", err)
	}
	return repo, nil
}

func (r *sqlMembershipRepo) ensureSchema(driver string) error {
	ts := "TIMESTAMPTZ"
	if driver != "postgres" {
		ts = "TIMESTAMP"
	}
	statements := []string{
		fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS members (
            chat_id BIGINT NOT NULL,
            user_id BIGINT NOT NULL,
            username TEXT NOT NULL DEFAULT '',
            first_name TEXT NOT NULL DEFAULT '',
            last_name TEXT NOT NULL DEFAULT '',
            joined_at %s NOT NULL,
            link_id TEXT NULL,
            link_url TEXT NULL,
            PRIMARY KEY (user_id, chat_id)
        )`, ts),
		fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS member_exits (
            id TEXT PRIMARY KEY,
            chat_id BIGINT NOT NULL,
            user_id BIGINT NOT NULL,
            username TEXT NOT NULL DEFAULT '',
            first_name TEXT NOT NULL DEFAULT '',
            last_name TEXT NOT NULL DEFAULT '',
            joined_at %s NOT NULL,
            left_at %s NOT NULL,
            link_id TEXT NULL,
            link_url TEXT NULL
        )`, ts, ts),
		`CREATE INDEX IF NOT EXISTS idx_members_link ON members (link_id)`,
		`CREATE INDEX IF NOT EXISTS idx_member_exits_user ON member_exits (user_id, chat_id, left_at)`,
		`CREATE INDEX IF NOT EXISTS idx_member_exits_link ON member_exits (link_id)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *sqlMembershipRepo) UpsertMember(ctx context.Context, m *member.Member) error {
	const query = `
        INSERT INTO members (chat_id, user_id, username, first_name, last_name, joined_at, link_id, link_url)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (user_id, chat_id)
        DO UPDATE SET username = EXCLUDED.username,
                      first_name = EXCLUDED.first_name,
                      last_name = EXCLUDED.last_name,
                      joined_at = EXCLUDED.joined_at,
                      link_id = EXCLUDED.link_id,
                      link_url = EXCLUDED.link_url`
	_, err := r.db.ExecContext(ctx, query,
		m.ChatID,
		m.UserID,
		m.Username,
		m.FirstName,
		m.LastName,
		m.JoinedAt.UTC(),
		nullString(m.LinkID),
		nullString(m.LinkURL),
	)
	if err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	return nil
}

func (r *sqlMembershipRepo) GetMember(ctx context.Context, userID, chatID int64) (*member.Member, error) {
	const query = `
        SELECT chat_id, user_id, username, first_name, last_name, joined_at, link_id, link_url
        FROM members
        WHERE user_id = $1 AND chat_id = $2`
	m, err := scanMember(r.db.QueryRowContext(ctx, query, userID, chatID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (r *sqlMembershipRepo) DeleteMember(ctx context.Context, userID, chatID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM members WHERE user_id = $1 AND chat_id = $2`, userID, chatID); err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return nil
}

func (r *sqlMembershipRepo) ListMembers(ctx context.Context, chatID int64, limit, offset int) ([]*member.Member, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT chat_id, user_id, username, first_name, last_name, joined_at, link_id, link_url
        FROM members
        WHERE ($1 = 0 OR chat_id = $1)
        ORDER BY joined_at DESC, user_id ASC
        LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, chatID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []*member.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *sqlMembershipRepo) CountMembers(ctx context.Context, chatID int64) (int, error) {
	return r.countQuery(ctx, `SELECT COUNT(*) FROM members WHERE ($1 = 0 OR chat_id = $1)`, chatID)
}

func (r *sqlMembershipRepo) CountMembersByLink(ctx context.Context, linkID string) (int, error) {
	return r.countQuery(ctx, `SELECT COUNT(*) FROM members WHERE link_id = $1`, linkID)
}

func (r *sqlMembershipRepo) CountConverted(ctx context.Context, publicChatID, privateChatID int64) (int, error) {
	const query = `
        SELECT COUNT(*)
        FROM members pub
        JOIN members priv ON priv.user_id = pub.user_id
        WHERE pub.chat_id = $1 AND priv.chat_id = $2`
	return r.countQuery(ctx, query, publicChatID, privateChatID)
}

func (r *sqlMembershipRepo) InsertExit(ctx context.Context, e *member.Exit) error {
	const query = `
        INSERT INTO member_exits (id, chat_id, user_id, username, first_name, last_name, joined_at, left_at, link_id, link_url)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.ChatID,
		e.UserID,
		e.Username,
		e.FirstName,
		e.LastName,
		e.JoinedAt.UTC(),
		e.LeftAt.UTC(),
		nullString(e.LinkID),
		nullString(e.LinkURL),
	)
	if err != nil {
		return fmt.Errorf("insert exit: %w", err)
	}
	return nil
}

func (r *sqlMembershipRepo) LatestExit(ctx context.Context, userID, chatID int64) (*member.Exit, error) {
	const query = `
        SELECT id, chat_id, user_id, username, first_name, last_name, joined_at, left_at, link_id, link_url
        FROM member_exits
        WHERE user_id = $1 AND chat_id = $2
        ORDER BY left_at DESC
        LIMIT 1`
	e, err := scanExit(r.db.QueryRowContext(ctx, query, userID, chatID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest exit: %w", err)
	}
	return e, nil
}

func (r *sqlMembershipRepo) HasExitSince(ctx context.Context, userID, chatID int64, since time.Time) (bool, error) {
	const query = `SELECT COUNT(*) FROM member_exits WHERE user_id = $1 AND chat_id = $2 AND left_at >= $3`
	count, err := r.countQuery(ctx, query, userID, chatID, since.UTC())
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *sqlMembershipRepo) DeleteExits(ctx context.Context, userID, chatID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM member_exits WHERE user_id = $1 AND chat_id = $2`, userID, chatID); err != nil {
		return fmt.Errorf("delete exits: %w", err)
	}
	return nil
}

func (r *sqlMembershipRepo) ListExits(ctx context.Context, chatID int64, limit, offset int) ([]*member.Exit, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT id, chat_id, user_id, username, first_name, last_name, joined_at, left_at, link_id, link_url
        FROM member_exits
        WHERE ($1 = 0 OR chat_id = $1)
        ORDER BY left_at DESC, user_id ASC
        LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, chatID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list exits: %w", err)
	}
	defer rows.Close()

	var out []*member.Exit
	for rows.Next() {
		e, err := scanExit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *sqlMembershipRepo) CountExits(ctx context.Context, chatID int64) (int, error) {
	return r.countQuery(ctx, `SELECT COUNT(*) FROM member_exits WHERE ($1 = 0 OR chat_id = $1)`, chatID)
}

func (r *sqlMembershipRepo) CountExitsByLink(ctx context.Context, linkID string) (int, error) {
	return r.countQuery(ctx, `SELECT COUNT(*) FROM member_exits WHERE link_id = $1`, linkID)
}

func (r *sqlMembershipRepo) countQuery(ctx context.Context, query string, args ...any) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (*member.Member, error) {
	var (
		m       member.Member
		linkID  sql.NullString
		linkURL sql.NullString
	)
	if err := row.Scan(&m.ChatID, &m.UserID, &m.Username, &m.FirstName, &m.LastName, &m.JoinedAt, &linkID, &linkURL); err != nil {
		return nil, err
	}
	m.JoinedAt = m.JoinedAt.UTC()
	m.LinkID = stringPtr(linkID)
	m.LinkURL = stringPtr(linkURL)
	return &m, nil
}

func scanExit(row rowScanner) (*member.Exit, error) {
	var (
		e       member.Exit
		linkID  sql.NullString
		linkURL sql.NullString
	)
	if err := row.Scan(&e.ID, &e.ChatID, &e.UserID, &e.Username, &e.FirstName, &e.LastName, &e.JoinedAt, &e.LeftAt, &linkID, &linkURL); err != nil {
		return nil, err
	}
	e.JoinedAt = e.JoinedAt.UTC()
	e.LeftAt = e.LeftAt.UTC()
	e.LinkID = stringPtr(linkID)
	e.LinkURL = stringPtr(linkURL)
	return &e, nil
}

func nullString(v *string) sql.NullString {
	if v == nil || *v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid || v.String == "" {
		return nil
	}
	s := v.String
	return &s
}
