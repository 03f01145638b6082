package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"synapsechat-backend/internal/models"
	"synapsechat-backend/internal/snowflake"

	"github.com/samber/lo"
)

// CreateMessage inserts msg and fills in the denormalised sender fields.
func (s *Store) CreateMessage(ctx context.Context, msg *models.Message) error {
	err := insertMessage(ctx, s.db, msg)
	if err != nil {
		return err
	}

	var photoURL sql.NullString
	err = s.db.QueryRowContext(ctx, "SELECT display_name, photo_url FROM users WHERE id = ?", msg.SenderID).
		Scan(&msg.SenderDisplayName, &photoURL)
	if err != nil {
		return err
	}

	msg.SenderPhotoURL = stringPtr(photoURL)
	return nil
}

func insertMessage(ctx context.Context, db execer, msg *models.Message) error {
	_, err := db.ExecContext(ctx, "INSERT INTO messages (id, channel_id, user_id, text, image_url) VALUES (?, ?, ?, ?, ?)",
		msg.ID, msg.ChannelID, msg.SenderID, nullStringPtr(msg.Text), nullStringPtr(msg.ImageURL))
	if err != nil {
		return err
	}

	msg.Timestamp = snowflake.Time(msg.ID)
	return nil
}

const messageQuery = `
		SELECT
			messages.id,
			messages.channel_id,
			messages.user_id,
			messages.text,
			messages.image_url,
			users.display_name,
			users.photo_url
		FROM
			messages
		JOIN
			users ON messages.user_id = users.id
	`

func scanMessage(scan func(dest ...any) error) (models.Message, error) {
	var msg models.Message
	var text, imageURL, photoURL sql.NullString

	err := scan(&msg.ID, &msg.ChannelID, &msg.SenderID, &text, &imageURL, &msg.SenderDisplayName, &photoURL)
	if err != nil {
		return msg, err
	}

	msg.Text = stringPtr(text)
	msg.ImageURL = stringPtr(imageURL)
	msg.SenderPhotoURL = stringPtr(photoURL)
	msg.Timestamp = snowflake.Time(msg.ID)
	return msg, nil
}

func (s *Store) GetMessage(ctx context.Context, messageID int64) (*models.Message, error) {
	msg, err := scanMessage(s.db.QueryRowContext(ctx, messageQuery+" WHERE messages.id = ?", messageID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	reactions, err := s.reactions(ctx, "message_reactions.message_id = ?", messageID)
	if err != nil {
		return nil, err
	}
	msg.Emojis = reactions[msg.ID]
	return &msg, nil
}

// ListMessages returns the newest limit messages of the channel, oldest first.
func (s *Store) ListMessages(ctx context.Context, channelID int64, limit int) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, messageQuery+" WHERE messages.channel_id = ? ORDER BY messages.id DESC LIMIT ?", channelID, limit)
	if err != nil {
		return nil, err
	}

	messages := []models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, err
		}
		messages = append(messages, msg)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(messages) == 0 {
		return messages, nil
	}

	// Rows come newest first, so the last one bounds the page.
	oldest := messages[len(messages)-1].ID
	reactions, err := s.reactions(ctx, "messages.channel_id = ? AND messages.id >= ?", channelID, oldest)
	if err != nil {
		return nil, err
	}

	for i := range messages {
		messages[i].Emojis = reactions[messages[i].ID]
	}

	return lo.Reverse(messages), nil
}

func (s *Store) reactions(ctx context.Context, where string, args ...any) (map[int64]map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_reactions.message_id, message_reactions.user_id, message_reactions.emoji
		FROM message_reactions
		JOIN messages ON message_reactions.message_id = messages.id
		WHERE `+where+`
		ORDER BY message_reactions.message_id, message_reactions.emoji, message_reactions.user_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reactions := make(map[int64]map[string][]string)
	for rows.Next() {
		var messageID, uid int64
		var emoji string
		if err := rows.Scan(&messageID, &uid, &emoji); err != nil {
			return nil, err
		}

		if reactions[messageID] == nil {
			reactions[messageID] = make(map[string][]string)
		}
		reactions[messageID][emoji] = append(reactions[messageID][emoji], strconv.FormatInt(uid, 10))
	}

	return reactions, rows.Err()
}

// DeleteMessage removes a message sent by uid and returns its channel.
func (s *Store) DeleteMessage(ctx context.Context, messageID int64, uid int64) (int64, error) {
	var channelID, senderID int64
	err := s.db.QueryRowContext(ctx, "SELECT channel_id, user_id FROM messages WHERE id = ?", messageID).Scan(&channelID, &senderID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	} else if err != nil {
		return 0, err
	}

	if senderID != uid {
		return 0, ErrNotFound
	}

	_, err = s.db.ExecContext(ctx, "DELETE FROM messages WHERE id = ? AND user_id = ?", messageID, uid)
	return channelID, err
}

// ToggleReaction adds the reaction or removes it when uid already reacted with emoji.
func (s *Store) ToggleReaction(ctx context.Context, messageID int64, uid int64, emoji string) (bool, error) {
	_, err := s.db.ExecContext(ctx, "INSERT INTO message_reactions (message_id, user_id, emoji) VALUES (?, ?, ?)", messageID, uid, emoji)
	if err == nil {
		return true, nil
	} else if !isUniqueViolation(err) {
		return false, err
	}

	_, err = s.db.ExecContext(ctx, "DELETE FROM message_reactions WHERE message_id = ? AND user_id = ? AND emoji = ?", messageID, uid, emoji)
	return false, err
}
