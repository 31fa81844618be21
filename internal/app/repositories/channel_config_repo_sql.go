package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/faeln1/go-telegram-tracker/internal/domain/channel"
)

type sqlChannelConfigRepo struct {
	db *sql.DB
}

// NewSQLChannelConfigRepo builds the single-row channel config store. The
// check constraint keeps it single-row.
func NewSQLChannelConfigRepo(db *sql.DB, driver string) (ChannelConfigRepository, error) {
	repo := &sqlChannelConfigRepo{db: db}
	if err := repo.ensureSchema(driver); err != nil {
		return nil, fmt.Errorf("channel config schema: %w", err)
	}
	return repo, nil
}

func (r *sqlChannelConfigRepo) ensureSchema(driver string) error {
	ts := "TIMESTAMPTZ"
	if driver != "postgres" {
		ts = "TIMESTAMP"
	}
	createTable := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS channel_config (
            id SMALLINT PRIMARY KEY CHECK (id = 1),
            public_channel_id BIGINT NOT NULL DEFAULT 0,
            private_channel_id BIGINT NOT NULL DEFAULT 0,
            public_invite_link TEXT NOT NULL DEFAULT '',
            private_invite_link TEXT NOT NULL DEFAULT '',
            updated_at %s NOT NULL
        )`, ts)
	if _, err := r.db.Exec(createTable); err != nil {
		return err
	}
	return nil
}

func (r *sqlChannelConfigRepo) Get(ctx context.Context) (*channel.Config, error) {
	const query = `
        SELECT public_channel_id, private_channel_id, public_invite_link, private_invite_link, updated_at
        FROM channel_config
        WHERE id = 1`
	var cfg channel.Config
	err := r.db.QueryRowContext(ctx, query).Scan(
		&cfg.PublicChannelID,
		&cfg.PrivateChannelID,
		&cfg.PublicInviteLink,
		&cfg.PrivateInviteLink,
		&cfg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get channel config: %w", err)
	}
	cfg.UpdatedAt = cfg.UpdatedAt.UTC()
	return &cfg, nil
}

func (r *sqlChannelConfigRepo) Save(ctx context.Context, cfg *channel.Config) error {
	const query = `
        INSERT INTO channel_config (id, public_channel_id, private_channel_id, public_invite_link, private_invite_link, updated_at)
        VALUES (1, $1, $2, $3, $4, $5)
        ON CONFLICT (id)
        DO UPDATE SET public_channel_id = EXCLUDED.public_channel_id,
                      private_channel_id = EXCLUDED.private_channel_id,
                      public_invite_link = EXCLUDED.public_invite_link,
                      private_invite_link = EXCLUDED.private_invite_link,
                      updated_at = EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		cfg.PublicChannelID,
		cfg.PrivateChannelID,
		cfg.PublicInviteLink,
		cfg.PrivateInviteLink,
		cfg.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save channel config: %w", err)
	}
	return nil
}
