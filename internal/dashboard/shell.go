// Package dashboard tracks which server and channel a connected client has open and keeps
// the chat view in step with it.
package dashboard

import (
	"context"
	"errors"
	"synapsechat-backend/internal/models"
	"sync"
)

var (
	ErrNoServer           = errors.New("no_server")
	ErrChannelNotInServer = errors.New("channel_not_in_server")
)

// Slot is the content area. *chat.View implements it.
type Slot interface {
	Select(ctx context.Context, channel models.Channel) error
	Clear()
}

type Selection struct {
	Server  *models.Server  `json:"server"`
	Channel *models.Channel `json:"channel"`
}

type Shell struct {
	mutex   sync.Mutex
	slot    Slot
	server  *models.Server
	channel *models.Channel
}

func NewShell(slot Slot) *Shell {
	return &Shell{slot: slot}
}

// SelectServer opens server and its first channel. With no channels the slot is cleared.
func (s *Shell) SelectServer(ctx context.Context, server models.Server, channels []models.Channel) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(channels) == 0 {
		s.slot.Clear()
		s.server = &server
		s.channel = nil
		return nil
	}

	first := channels[0]
	if first.ServerID != server.ID {
		return ErrChannelNotInServer
	}

	err := s.slot.Select(ctx, first)
	if err != nil {
		return err
	}

	s.server = &server
	s.channel = &first
	return nil
}

func (s *Shell) SelectChannel(ctx context.Context, channel models.Channel) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.server == nil {
		return ErrNoServer
	}
	if channel.ServerID != s.server.ID {
		return ErrChannelNotInServer
	}

	err := s.slot.Select(ctx, channel)
	if err != nil {
		return err
	}

	s.channel = &channel
	return nil
}

func (s *Shell) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.server = nil
	s.channel = nil
	s.slot.Clear()
}

// ServerRemoved drops the selection if it points into serverID, e.g. after the server was deleted.
func (s *Shell) ServerRemoved(serverID int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.server != nil && s.server.ID == serverID {
		s.server = nil
		s.channel = nil
		s.slot.Clear()
	}
}

func (s *Shell) Selection() Selection {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var selection Selection
	if s.server != nil {
		server := *s.server
		selection.Server = &server
	}
	if s.channel != nil {
		channel := *s.channel
		selection.Channel = &channel
	}
	return selection
}
