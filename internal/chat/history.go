package chat

import (
	"context"
	"fmt"
	"synapsechat-backend/internal/content"
	"synapsechat-backend/internal/models"
	"synapsechat-backend/internal/session"
	"time"

	"github.com/samber/lo"
)

const (
	aliceAvatar = "https://placehold.co/40x40/E91E63/FFFFFF.png?text=AW"
	bobAvatar   = "https://placehold.co/40x40/2196F3/FFFFFF.png?text=BB"
	sampleImage = "https://placehold.co/300x200/CCCCCC/FFFFFF.png?text=Sample+Image"
)

// CannedHistory gives every channel the same four messages, nothing is read from storage.
type CannedHistory struct{}

func (CannedHistory) Seed(_ context.Context, viewer session.State, channel models.Channel) ([]models.Message, error) {
	now := time.Now().UTC()

	canned := func(id int64, senderID int64, name string, avatar *string, text string, age time.Duration) models.Message {
		return models.Message{
			ID:                id,
			ChannelID:         channel.ID,
			SenderID:          senderID,
			SenderDisplayName: name,
			SenderPhotoURL:    avatar,
			Text:              lo.ToPtr(text),
			HTML:              content.Render(text),
			Timestamp:         now.Add(-age),
		}
	}

	me := newMessage(viewer, 3, channel.ID)
	if me.SenderID == 0 {
		me.SenderID = 3
	}

	messages := []models.Message{
		canned(1, 1, "Alice Wonderland", lo.ToPtr(aliceAvatar), fmt.Sprintf("Welcome to #%s!", channel.Name), 5*time.Minute),
		canned(2, 2, "Bob The Builder", lo.ToPtr(bobAvatar), "Glad to be here!", 4*time.Minute),
		canned(3, me.SenderID, me.SenderDisplayName, me.SenderPhotoURL, "This is a test message from me.", 3*time.Minute),
		canned(4, 1, "Alice Wonderland", lo.ToPtr(aliceAvatar), "Check out this cool image!", 2*time.Minute),
	}
	messages[3].ImageURL = lo.ToPtr(sampleImage)

	return messages, nil
}

// LocalBackend keeps sent messages in the view only.
type LocalBackend struct{}

func (LocalBackend) Persist(context.Context, *models.Message) error {
	return nil
}
