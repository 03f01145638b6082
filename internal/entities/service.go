// Package entities creates servers and channels and joins servers by invite code. Input is
// validated before any backend is involved.
package entities

import (
	"context"
	"strings"
	"synapsechat-backend/internal/fileHandlers"
	"synapsechat-backend/internal/models"
	"synapsechat-backend/internal/validator"
)

// ValidationError is returned for input that was rejected before reaching a backend.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Notification() models.Notification {
	return models.Failure("Error", e.Message)
}

func invalid(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: validator.Message(err)}
}

// Result is what the client shows after an operation. OK is false for expected failures
// such as an unknown invite code, those are not errors.
type Result struct {
	OK           bool                `json:"ok"`
	Notification models.Notification `json:"notification"`
	Server       *models.Server      `json:"server,omitempty"`
	Channel      *models.Channel     `json:"channel,omitempty"`
}

type Backend interface {
	CreateServer(ctx context.Context, ownerID int64, name string, icon []byte) (Result, error)
	JoinServer(ctx context.Context, userID int64, code string) (Result, error)
	CreateChannel(ctx context.Context, userID int64, serverID int64, name string) (Result, error)
}

type Service struct {
	backend Backend
}

func NewService(backend Backend) *Service {
	return &Service{backend: backend}
}

// CreateServer accepts a trimmed non-empty name and an optional icon of at most 2MB.
func (s *Service) CreateServer(ctx context.Context, ownerID int64, name string, icon []byte) (Result, error) {
	name = strings.TrimSpace(name)
	err := validator.ServerName(name)
	if err != nil {
		return Result{}, invalid("name", err)
	}

	if len(icon) > 0 {
		if len(icon) > fileHandlers.MaxAvatarSize {
			return Result{}, &ValidationError{Field: "icon", Message: "Icon image must be less than 2MB."}
		}
		if !fileHandlers.IsImage(icon) {
			return Result{}, &ValidationError{Field: "icon", Message: "Icon must be an image."}
		}
	}

	return s.backend.CreateServer(ctx, ownerID, name, icon)
}

func (s *Service) JoinServer(ctx context.Context, userID int64, code string) (Result, error) {
	code = strings.TrimSpace(code)
	err := validator.InviteCode(code)
	if err != nil {
		return Result{}, invalid("inviteCode", err)
	}

	return s.backend.JoinServer(ctx, userID, code)
}

// CreateChannel formats name first, so "My Channel" becomes "my-channel".
func (s *Service) CreateChannel(ctx context.Context, userID int64, serverID int64, name string) (Result, error) {
	name = validator.FormatChannelName(name)
	err := validator.ChannelName(name)
	if err != nil {
		return Result{}, invalid("name", err)
	}

	return s.backend.CreateChannel(ctx, userID, serverID, name)
}
