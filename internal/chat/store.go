package chat

import (
	"context"
	"fmt"
	"strings"
	"synapsechat-backend/internal/content"
	"synapsechat-backend/internal/fileHandlers"
	"synapsechat-backend/internal/hub"
	"synapsechat-backend/internal/models"
	"synapsechat-backend/internal/session"
	"synapsechat-backend/internal/snowflake"
	"synapsechat-backend/internal/store"
)

const HistoryLimit = 50

func WelcomeText(channelName string) string {
	return fmt.Sprintf("Welcome to #%s!", channelName)
}

// StoreHistory seeds a channel with its latest persisted messages.
type StoreHistory struct {
	Store *store.Store
}

func (h StoreHistory) Seed(ctx context.Context, _ session.State, channel models.Channel) ([]models.Message, error) {
	messages, err := h.Store.ListMessages(ctx, channel.ID, HistoryLimit)
	if err != nil {
		return nil, err
	}

	// every channel gets a welcome message on creation, but its author may have deleted it
	if len(messages) == 0 {
		text := WelcomeText(channel.Name)
		return []models.Message{{
			ChannelID:         channel.ID,
			SenderDisplayName: "SynapseChat",
			Text:              &text,
			HTML:              content.Render(text),
			Timestamp:         snowflake.Time(channel.ID),
		}}, nil
	}

	for i := range messages {
		if messages[i].Text != nil {
			messages[i].HTML = content.Render(*messages[i].Text)
		}
	}
	return messages, nil
}

// StoreBackend uploads the attached image, saves the message and pushes it to the channel.
type StoreBackend struct {
	Store *store.Store
}

func (b StoreBackend) Persist(ctx context.Context, msg *models.Message) error {
	if msg.ImageURL != nil && strings.HasPrefix(*msg.ImageURL, "data:") {
		data, err := fileHandlers.DecodeDataURL(*msg.ImageURL)
		if err != nil {
			return err
		}

		url, err := fileHandlers.Store(ctx, data, fileHandlers.ChatImage)
		if err != nil {
			return err
		}
		msg.ImageURL = &url
	}

	err := b.Store.CreateMessage(ctx, msg)
	if err != nil {
		return err
	}

	return hub.Emit(hub.MessageCreated, hub.TopicChannel, msg, msg.ChannelID)
}
