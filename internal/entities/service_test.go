package entities

import (
	"context"
	"errors"
	"strings"
	"synapsechat-backend/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingBackend struct {
	calls []string
}

func (b *recordingBackend) CreateServer(_ context.Context, _ int64, name string, _ []byte) (Result, error) {
	b.calls = append(b.calls, "server:"+name)
	return Result{OK: true}, nil
}

func (b *recordingBackend) JoinServer(_ context.Context, _ int64, code string) (Result, error) {
	b.calls = append(b.calls, "join:"+code)
	return Result{OK: true}, nil
}

func (b *recordingBackend) CreateChannel(_ context.Context, _ int64, _ int64, name string) (Result, error) {
	b.calls = append(b.calls, "channel:"+name)
	return Result{OK: true}, nil
}

func TestService_CreateChannelValidation(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		accepted string
		message  string
	}{
		{"Success: Simple", "general", "general", ""},
		{"Success: Formatted", "  My Cool   Channel ", "my-cool-channel", ""},
		{"Success: Digits and hyphens", "team-42", "team-42", ""},
		{"Success: Exactly 30", strings.Repeat("a", 30), strings.Repeat("a", 30), ""},
		{"Error: Empty", "", "", "Channel name cannot be empty."},
		{"Error: Only spaces", "    ", "", "Channel name cannot be empty."},
		{"Error: Too long", strings.Repeat("a", 31), "", "Channel name cannot exceed 30 characters."},
		{"Error: Underscore", "bad_name", "", "Channel name can only contain lowercase letters, numbers, and hyphens."},
		{"Error: Punctuation", "hello!", "", "Channel name can only contain lowercase letters, numbers, and hyphens."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			backend := &recordingBackend{}
			service := NewService(backend)

			_, err := service.CreateChannel(context.Background(), 1, 2, tc.input)
			if tc.message == "" {
				req.NoError(err)
				req.Equal([]string{"channel:" + tc.accepted}, backend.calls)
				return
			}

			var validationErr *ValidationError
			req.True(errors.As(err, &validationErr))
			req.Equal(tc.message, validationErr.Message)
			req.Equal(models.VariantDestructive, validationErr.Notification().Variant)
			req.Empty(backend.calls)
		})
	}
}

func TestService_CreateServerValidation(t *testing.T) {
	req := require.New(t)
	backend := &recordingBackend{}
	service := NewService(backend)

	_, err := service.CreateServer(context.Background(), 1, "   ", nil)
	req.EqualError(err, "Server name cannot be empty.")

	_, err = service.CreateServer(context.Background(), 1, "Gophers", make([]byte, 3<<20))
	req.EqualError(err, "Icon image must be less than 2MB.")

	_, err = service.CreateServer(context.Background(), 1, "Gophers", []byte("not an image"))
	req.EqualError(err, "Icon must be an image.")

	req.Empty(backend.calls)

	_, err = service.CreateServer(context.Background(), 1, "  Gophers  ", nil)
	req.NoError(err)
	req.Equal([]string{"server:Gophers"}, backend.calls)
}

func TestService_JoinServerValidation(t *testing.T) {
	req := require.New(t)
	backend := &recordingBackend{}
	service := NewService(backend)

	_, err := service.JoinServer(context.Background(), 1, " ")
	req.EqualError(err, "Invite code cannot be empty.")
	req.Empty(backend.calls)

	_, err = service.JoinServer(context.Background(), 1, " abc ")
	req.NoError(err)
	req.Equal([]string{"join:abc"}, backend.calls)
}

func TestMock_JoinServer(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		ok      bool
		title   string
		variant string
	}{
		{"Success: valid-code", "valid-code", true, "Success (Mock)", models.VariantDefault},
		{"Failure: other code", "other-code", false, "Failed (Mock)", models.VariantDestructive},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			const delay = 20 * time.Millisecond
			service := NewService(Mock{Delay: delay})

			start := time.Now()
			result, err := service.JoinServer(context.Background(), 1, tc.code)
			req.NoError(err)
			req.GreaterOrEqual(time.Since(start), delay)

			req.Equal(tc.ok, result.OK)
			req.Equal(tc.title, result.Notification.Title)
			req.Equal(tc.variant, result.Notification.Variant)
			req.Contains(result.Notification.Description, tc.code)
		})
	}
}

func TestMock_CreateReportsWithoutPersisting(t *testing.T) {
	req := require.New(t)
	service := NewService(Mock{Delay: time.Millisecond})

	result, err := service.CreateServer(context.Background(), 1, "Gophers", nil)
	req.NoError(err)
	req.True(result.OK)
	req.Nil(result.Server)
	req.Equal(`Server "Gophers" would be created.`, result.Notification.Description)

	result, err = service.CreateChannel(context.Background(), 1, 2, "Off Topic")
	req.NoError(err)
	req.Nil(result.Channel)
	req.Equal(`Channel "#off-topic" would be created.`, result.Notification.Description)
}

func TestMock_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewService(Mock{Delay: time.Hour}).JoinServer(ctx, 1, ValidInviteCode)
	require.ErrorIs(t, err, context.Canceled)
}
