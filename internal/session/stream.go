package session

import (
	"context"
	"synapsechat-backend/internal/models"
	"sync"
	"time"

	"github.com/c-pro/geche"
	"github.com/google/uuid"
)

type onceStream struct {
	user *AuthUser
}

// Once is a stream with a single event, used for gates that live as long as one request.
func Once(user *AuthUser) AuthStream {
	return onceStream{user: user}
}

func (s onceStream) Subscribe(onChange func(*AuthUser), _ func(error)) func() {
	onChange(s.user)
	return func() {}
}

// Broker fans auth events out to every live session of a user.
type Broker struct {
	mutex       sync.RWMutex
	subscribers map[int64]map[string]func(*AuthUser)
}

func NewBroker() *Broker {
	return &Broker{subscribers: make(map[int64]map[string]func(*AuthUser))}
}

// Publish sends user to every subscriber of uid. A nil user signs all of them out.
func (b *Broker) Publish(uid int64, user *AuthUser) {
	b.mutex.RLock()
	callbacks := make([]func(*AuthUser), 0, len(b.subscribers[uid]))
	for _, callback := range b.subscribers[uid] {
		callbacks = append(callbacks, callback)
	}
	b.mutex.RUnlock()

	for _, callback := range callbacks {
		callback(user)
	}
}

func (b *Broker) subscribe(uid int64, callback func(*AuthUser)) func() {
	id := uuid.NewString()

	b.mutex.Lock()
	if b.subscribers[uid] == nil {
		b.subscribers[uid] = make(map[string]func(*AuthUser))
	}
	b.subscribers[uid][id] = callback
	b.mutex.Unlock()

	return func() {
		b.mutex.Lock()
		defer b.mutex.Unlock()

		delete(b.subscribers[uid], id)
		if len(b.subscribers[uid]) == 0 {
			delete(b.subscribers, uid)
		}
	}
}

func (b *Broker) Subscribers(uid int64) int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	return len(b.subscribers[uid])
}

type brokerStream struct {
	broker  *Broker
	initial *AuthUser
}

// Stream starts with initial and then follows events published for initial's uid.
func (b *Broker) Stream(initial *AuthUser) AuthStream {
	return brokerStream{broker: b, initial: initial}
}

func (s brokerStream) Subscribe(onChange func(*AuthUser), _ func(error)) func() {
	if s.initial == nil {
		onChange(nil)
		return func() {}
	}

	// events published while initial is being delivered wait for it, so a sign-out is never
	// overwritten by the replayed initial user
	var mutex sync.Mutex
	mutex.Lock()
	defer mutex.Unlock()

	unsubscribe := s.broker.subscribe(s.initial.UID, func(user *AuthUser) {
		mutex.Lock()
		defer mutex.Unlock()
		onChange(user)
	})
	onChange(s.initial)
	return unsubscribe
}

// CachedFetcher keeps found profiles for a while. Missing profiles are never cached.
type CachedFetcher struct {
	fetcher ProfileFetcher
	cache   *geche.MapTTLCache[int64, models.UserProfile]
}

func NewCachedFetcher(ctx context.Context, fetcher ProfileFetcher, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{
		fetcher: fetcher,
		cache:   geche.NewMapTTLCache[int64, models.UserProfile](ctx, ttl, time.Minute),
	}
}

func (c *CachedFetcher) FetchProfile(ctx context.Context, uid int64) (*models.UserProfile, error) {
	profile, err := c.cache.Get(uid)
	if err == nil {
		return &profile, nil
	}

	fetched, err := c.fetcher.FetchProfile(ctx, uid)
	if err != nil || fetched == nil {
		return fetched, err
	}

	c.cache.Set(uid, *fetched)
	return fetched, nil
}

func (c *CachedFetcher) Invalidate(uid int64) {
	_ = c.cache.Del(uid)
}
