// Package session turns a stream of authentication events into the state the rest of the
// server reads: who is signed in, their profile, whether that is still being resolved and
// the last error.
package session

import (
	"context"
	"synapsechat-backend/internal/models"
	"sync"

	"go.uber.org/zap"
)

// AuthUser is the authenticated identity, independent of the stored profile.
type AuthUser struct {
	UID      int64  `json:"uid,string"`
	Email    string `json:"email"`
	Remember bool   `json:"-"`
}

type State struct {
	CurrentUser *AuthUser           `json:"currentUser"`
	UserProfile *models.UserProfile `json:"userProfile"`
	Loading     bool                `json:"loading"`
	Err         error               `json:"-"`
}

// ProfileFetcher returns nil without error when the user has no profile.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, uid int64) (*models.UserProfile, error)
}

type FetchFunc func(ctx context.Context, uid int64) (*models.UserProfile, error)

func (f FetchFunc) FetchProfile(ctx context.Context, uid int64) (*models.UserProfile, error) {
	return f(ctx, uid)
}

// AuthStream delivers the current user (nil when signed out) every time it changes.
// onChange may be called before Subscribe returns.
type AuthStream interface {
	Subscribe(onChange func(*AuthUser), onError func(error)) (unsubscribe func())
}

type Gate struct {
	sugar   *zap.SugaredLogger
	stream  AuthStream
	fetcher ProfileFetcher

	ctx    context.Context
	cancel context.CancelFunc

	// serialises event handling so a slow fetch can't be overwritten by an older one
	handleMutex sync.Mutex

	mutex    sync.RWMutex
	state    State
	onChange []func(State)

	ready       chan struct{}
	readyOnce   sync.Once
	closeOnce   sync.Once
	unsubscribe func()
}

func NewGate(sugar *zap.SugaredLogger, stream AuthStream, fetcher ProfileFetcher) *Gate {
	return &Gate{
		sugar:   sugar,
		stream:  stream,
		fetcher: fetcher,
		state:   State{Loading: true},
		ready:   make(chan struct{}),
	}
}

// OnChange registers fn to run after every state change, after the ones registered
// before it. Call before Start.
func (g *Gate) OnChange(fn func(State)) {
	g.mutex.Lock()
	g.onChange = append(g.onChange, fn)
	g.mutex.Unlock()
}

// Start subscribes to the stream. Profile fetches use ctx and stop when Close is called.
func (g *Gate) Start(ctx context.Context) {
	g.ctx, g.cancel = context.WithCancel(ctx)

	unsubscribe := g.stream.Subscribe(g.handle, g.handleError)

	g.mutex.Lock()
	g.unsubscribe = unsubscribe
	g.mutex.Unlock()
}

func (g *Gate) handle(user *AuthUser) {
	g.handleMutex.Lock()
	defer g.handleMutex.Unlock()

	var profile *models.UserProfile
	var fetchErr error

	if user != nil {
		profile, fetchErr = g.fetcher.FetchProfile(g.ctx, user.UID)
		if fetchErr != nil {
			g.sugar.Errorw("Error fetching user profile", "uid", user.UID, "error", fetchErr)
			profile = nil
		} else if profile == nil {
			// the profile row may have been deleted out of band
			g.sugar.Warnw("User profile not found", "uid", user.UID)
		}
	}

	g.set(State{
		CurrentUser: user,
		UserProfile: profile,
		Loading:     false,
		Err:         fetchErr,
	})
}

func (g *Gate) handleError(err error) {
	g.handleMutex.Lock()
	defer g.handleMutex.Unlock()

	g.sugar.Errorw("Auth state stream error", "error", err)

	g.mutex.RLock()
	state := g.state
	g.mutex.RUnlock()

	state.Loading = false
	state.Err = err
	g.set(state)
}

func (g *Gate) set(state State) {
	g.mutex.Lock()
	g.state = state
	onChange := g.onChange
	g.mutex.Unlock()

	g.readyOnce.Do(func() { close(g.ready) })

	for _, fn := range onChange {
		fn(state)
	}
}

// State returns a snapshot. Loading stays true until the first event and its profile fetch settled.
func (g *Gate) State() State {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return g.state
}

// Wait blocks until loading finished or ctx is done.
func (g *Gate) Wait(ctx context.Context) (State, error) {
	select {
	case <-g.ready:
		return g.State(), nil
	case <-ctx.Done():
		return g.State(), ctx.Err()
	}
}

func (g *Gate) Close() {
	g.closeOnce.Do(func() {
		g.mutex.Lock()
		unsubscribe := g.unsubscribe
		g.mutex.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
		if g.cancel != nil {
			g.cancel()
		}
	})
}

type contextKey struct{}

func WithState(ctx context.Context, state State) context.Context {
	return context.WithValue(ctx, contextKey{}, state)
}

func FromContext(ctx context.Context) (State, bool) {
	state, ok := ctx.Value(contextKey{}).(State)
	return state, ok
}
