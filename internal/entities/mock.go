package entities

import (
	"context"
	"fmt"
	"synapsechat-backend/internal/models"
	"time"
)

// ValidInviteCode is the only code the mock accepts.
const ValidInviteCode = "valid-code"

// Mock pretends to talk to a server: it waits, persists nothing and reports what would have happened.
type Mock struct {
	Delay time.Duration
}

func (m Mock) wait(ctx context.Context) error {
	timer := time.NewTimer(m.Delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m Mock) CreateServer(ctx context.Context, _ int64, name string, _ []byte) (Result, error) {
	err := m.wait(ctx)
	if err != nil {
		return Result{}, err
	}

	return Result{
		OK:           true,
		Notification: models.Success("Success (Mock)", fmt.Sprintf("Server %q would be created.", name)),
	}, nil
}

func (m Mock) JoinServer(ctx context.Context, _ int64, code string) (Result, error) {
	err := m.wait(ctx)
	if err != nil {
		return Result{}, err
	}

	if code == ValidInviteCode {
		return Result{
			OK:           true,
			Notification: models.Success("Success (Mock)", fmt.Sprintf("Successfully joined server with code %q.", code)),
		}, nil
	}

	return Result{
		Notification: models.Failure("Failed (Mock)", fmt.Sprintf("Could not find server with code %q.", code)),
	}, nil
}

func (m Mock) CreateChannel(ctx context.Context, _ int64, _ int64, name string) (Result, error) {
	err := m.wait(ctx)
	if err != nil {
		return Result{}, err
	}

	return Result{
		OK:           true,
		Notification: models.Success("Success (Mock)", fmt.Sprintf("Channel \"#%s\" would be created.", name)),
	}, nil
}
