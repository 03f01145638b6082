package session

import (
	"context"
	"errors"
	"synapsechat-backend/internal/models"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFetcher struct {
	profiles map[int64]*models.UserProfile
	err      error
	release  chan struct{}
	calls    atomic.Int32
}

func (f *fakeFetcher) FetchProfile(ctx context.Context, uid int64) (*models.UserProfile, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.profiles[uid], nil
}

type erroringStream struct {
	err error
}

func (s erroringStream) Subscribe(_ func(*AuthUser), onError func(error)) func() {
	onError(s.err)
	return func() {}
}

var alice = &AuthUser{UID: 1, Email: "alice@example.com"}

func aliceProfile() *models.UserProfile {
	return &models.UserProfile{UID: 1, DisplayName: "Alice", Email: "alice@example.com"}
}

func newGate(stream AuthStream, fetcher ProfileFetcher) *Gate {
	return NewGate(zap.NewNop().Sugar(), stream, fetcher)
}

func TestGate_SignedIn(t *testing.T) {
	req := require.New(t)
	fetcher := &fakeFetcher{profiles: map[int64]*models.UserProfile{1: aliceProfile()}}

	gate := newGate(Once(alice), fetcher)
	req.True(gate.State().Loading)

	gate.Start(context.Background())
	defer gate.Close()

	state, err := gate.Wait(context.Background())
	req.NoError(err)
	req.False(state.Loading)
	req.Equal(alice, state.CurrentUser)
	req.Equal("Alice", state.UserProfile.DisplayName)
	req.NoError(state.Err)
}

func TestGate_LoadingUntilProfileFetchSettles(t *testing.T) {
	req := require.New(t)
	fetcher := &fakeFetcher{
		profiles: map[int64]*models.UserProfile{1: aliceProfile()},
		release:  make(chan struct{}),
	}

	gate := newGate(Once(alice), fetcher)
	go gate.Start(context.Background())
	defer gate.Close()

	// Given the fetch is in flight
	req.Eventually(func() bool { return fetcher.calls.Load() == 1 }, time.Second, time.Millisecond)

	// Then the gate is still loading and exposes no half resolved user
	state := gate.State()
	req.True(state.Loading)
	req.Nil(state.CurrentUser)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := gate.Wait(ctx)
	req.ErrorIs(err, context.DeadlineExceeded)

	// When the fetch completes
	close(fetcher.release)

	state, err = gate.Wait(context.Background())
	req.NoError(err)
	req.False(state.Loading)
	req.NotNil(state.CurrentUser)
	req.NotNil(state.UserProfile)
}

func TestGate_MissingProfileIsNotAnError(t *testing.T) {
	req := require.New(t)
	gate := newGate(Once(alice), &fakeFetcher{})
	gate.Start(context.Background())

	state, err := gate.Wait(context.Background())
	req.NoError(err)
	req.NotNil(state.CurrentUser)
	req.Nil(state.UserProfile)
	req.NoError(state.Err)
}

func TestGate_FetchErrorDegradesToNilProfile(t *testing.T) {
	req := require.New(t)
	fetchErr := errors.New("database is down")
	gate := newGate(Once(alice), &fakeFetcher{err: fetchErr})
	gate.Start(context.Background())

	state, err := gate.Wait(context.Background())
	req.NoError(err)
	req.False(state.Loading)
	req.NotNil(state.CurrentUser)
	req.Nil(state.UserProfile)
	req.ErrorIs(state.Err, fetchErr)
}

func TestGate_SignedOutSkipsFetch(t *testing.T) {
	req := require.New(t)
	fetcher := &fakeFetcher{}
	gate := newGate(Once(nil), fetcher)
	gate.Start(context.Background())

	state, err := gate.Wait(context.Background())
	req.NoError(err)
	req.False(state.Loading)
	req.Nil(state.CurrentUser)
	req.Nil(state.UserProfile)
	req.Zero(fetcher.calls.Load())
}

func TestGate_StreamError(t *testing.T) {
	req := require.New(t)
	streamErr := errors.New("stream closed")
	gate := newGate(erroringStream{err: streamErr}, &fakeFetcher{})
	gate.Start(context.Background())

	state, err := gate.Wait(context.Background())
	req.NoError(err)
	req.False(state.Loading)
	req.ErrorIs(state.Err, streamErr)
}

func TestGate_BrokerEvents(t *testing.T) {
	req := require.New(t)
	broker := NewBroker()
	fetcher := &fakeFetcher{profiles: map[int64]*models.UserProfile{1: aliceProfile()}}

	var changes []State
	gate := newGate(broker.Stream(alice), fetcher)
	gate.OnChange(func(s State) { changes = append(changes, s) })
	gate.Start(context.Background())
	req.Equal(1, broker.Subscribers(alice.UID))

	state, err := gate.Wait(context.Background())
	req.NoError(err)
	req.NotNil(state.UserProfile)

	// When the profile changes, the gate fetches it again
	fetcher.profiles[1] = &models.UserProfile{UID: 1, DisplayName: "Alice W"}
	broker.Publish(alice.UID, alice)
	req.Equal("Alice W", gate.State().UserProfile.DisplayName)

	// When the user signs out everywhere
	broker.Publish(alice.UID, nil)
	state = gate.State()
	req.Nil(state.CurrentUser)
	req.Nil(state.UserProfile)
	req.Len(changes, 3)

	// When the gate is torn down
	gate.Close()
	req.Zero(broker.Subscribers(alice.UID))
	broker.Publish(alice.UID, alice)
	req.Len(changes, 3)
}

func TestCachedFetcher(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inner := &fakeFetcher{profiles: map[int64]*models.UserProfile{1: aliceProfile()}}
	cached := NewCachedFetcher(ctx, inner, time.Minute)

	for range 3 {
		profile, err := cached.FetchProfile(ctx, 1)
		req.NoError(err)
		req.Equal("Alice", profile.DisplayName)
	}
	req.Equal(int32(1), inner.calls.Load())

	cached.Invalidate(1)
	_, err := cached.FetchProfile(ctx, 1)
	req.NoError(err)
	req.Equal(int32(2), inner.calls.Load())

	// missing profiles are fetched every time
	for range 2 {
		profile, err := cached.FetchProfile(ctx, 2)
		req.NoError(err)
		req.Nil(profile)
	}
	req.Equal(int32(4), inner.calls.Load())
}
