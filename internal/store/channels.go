package store

import (
	"context"
	"database/sql"
	"errors"
	"synapsechat-backend/internal/models"
	"synapsechat-backend/internal/snowflake"
)

// NewChannel is a channel to insert, optionally with the first message it shows.
type NewChannel struct {
	Channel *models.Channel
	Welcome *models.Message
}

func (s *Store) CreateChannel(ctx context.Context, channel *models.Channel) error {
	return insertChannel(ctx, s.db, NewChannel{Channel: channel})
}

// AddChannel inserts the channel and its welcome message together, or neither.
func (s *Store) AddChannel(ctx context.Context, newChannel NewChannel) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertChannel(ctx, tx, newChannel)
	})
}

func insertChannel(ctx context.Context, db execer, newChannel NewChannel) error {
	channel := newChannel.Channel
	if channel.Type == "" {
		channel.Type = models.ChannelTypeText
	}

	_, err := db.ExecContext(ctx, "INSERT INTO channels (id, server_id, name, type) VALUES (?, ?, ?, ?)",
		channel.ID, channel.ServerID, channel.Name, channel.Type)
	if isUniqueViolation(err) {
		return ErrChannelExists
	} else if err != nil {
		return err
	}
	channel.CreatedAt = snowflake.Time(channel.ID)

	if newChannel.Welcome == nil {
		return nil
	}
	newChannel.Welcome.ChannelID = channel.ID
	return insertMessage(ctx, db, newChannel.Welcome)
}

func scanChannel(scan func(dest ...any) error) (models.Channel, error) {
	var channel models.Channel
	err := scan(&channel.ID, &channel.ServerID, &channel.Name, &channel.Type)
	channel.CreatedAt = snowflake.Time(channel.ID)
	return channel, err
}

func (s *Store) GetChannel(ctx context.Context, channelID int64) (*models.Channel, error) {
	channel, err := scanChannel(s.db.QueryRowContext(ctx, "SELECT id, server_id, name, type FROM channels WHERE id = ?", channelID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &channel, nil
}

// ListChannels returns the server's channels in creation order.
func (s *Store) ListChannels(ctx context.Context, serverID int64) ([]models.Channel, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, server_id, name, type FROM channels WHERE server_id = ? ORDER BY id", serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	channels := []models.Channel{}
	for rows.Next() {
		channel, err := scanChannel(rows.Scan)
		if err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}

	return channels, rows.Err()
}
