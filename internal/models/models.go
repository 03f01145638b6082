package models

import "time"

const ChannelTypeText = "text"

const (
	VariantDefault     = "default"
	VariantDestructive = "destructive"
)

type UserProfile struct {
	UID         int64     `json:"uid,string"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email,omitempty"`
	PhotoURL    string    `json:"photoURL"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Credentials is the authentication record stored next to the profile, never sent to clients.
type Credentials struct {
	UID      int64
	Email    string
	Password []byte
}

type Server struct {
	ID         int64     `json:"id,string"`
	Name       string    `json:"name"`
	OwnerID    int64     `json:"ownerId,string"`
	InviteCode string    `json:"inviteCode,omitempty"`
	Members    []string  `json:"members"`
	CreatedAt  time.Time `json:"createdAt"`
	IconURL    string    `json:"iconUrl,omitempty"`
}

type Channel struct {
	ID        int64     `json:"id,string"`
	ServerID  int64     `json:"serverId,string"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

type Message struct {
	ID                int64               `json:"id,string"`
	ChannelID         int64               `json:"channelId,string"`
	SenderID          int64               `json:"senderId,string"`
	SenderDisplayName string              `json:"senderDisplayName"`
	SenderPhotoURL    *string             `json:"senderPhotoURL"`
	Text              *string             `json:"text"`
	HTML              string              `json:"html,omitempty"`
	ImageURL          *string             `json:"imageUrl"`
	Timestamp         time.Time           `json:"timestamp"`
	Emojis            map[string][]string `json:"emojis,omitempty"`
}

// Notification is what a client shows as a toast after an operation.
type Notification struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Variant     string `json:"variant"`
}

func Success(title string, description string) Notification {
	return Notification{Title: title, Description: description, Variant: VariantDefault}
}

func Failure(title string, description string) Notification {
	return Notification{Title: title, Description: description, Variant: VariantDestructive}
}
