package hub

import (
	"sync"
)

type LocalPubSub struct {
	mutex   sync.RWMutex
	hashMap map[string][]int64
}

func NewLocalPubSub() *LocalPubSub {
	return &LocalPubSub{hashMap: make(map[string][]int64)}
}

func (ps *LocalPubSub) Unsubscribe(channel string, sessionID int64) {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	ps.unsubscribe(channel, sessionID)
}

func (ps *LocalPubSub) unsubscribe(channel string, sessionID int64) {
	sessionIDs := ps.hashMap[channel]

	// this won't run in case channel doesn't exist since length will be 0
	for i := range sessionIDs {
		if sessionIDs[i] == sessionID {
			sessionIDs[i] = sessionIDs[len(sessionIDs)-1]
			ps.hashMap[channel] = sessionIDs[:len(sessionIDs)-1]
			break
		}
	}

	// delete channel from map if no user is subscribed to it
	if len(ps.hashMap[channel]) == 0 {
		delete(ps.hashMap, channel)
	}
}

func (ps *LocalPubSub) UnsubscribeFromAll(sessionID int64) {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	for key := range ps.hashMap {
		ps.unsubscribe(key, sessionID)
	}
}

// Subscribe is idempotent.
func (ps *LocalPubSub) Subscribe(channel string, sessionID int64) {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	for _, id := range ps.hashMap[channel] {
		if id == sessionID {
			return
		}
	}
	ps.hashMap[channel] = append(ps.hashMap[channel], sessionID)
}

func (ps *LocalPubSub) Subscribers(channel string) []int64 {
	ps.mutex.RLock()
	defer ps.mutex.RUnlock()

	sessionIDs := make([]int64, len(ps.hashMap[channel]))
	copy(sessionIDs, ps.hashMap[channel])
	return sessionIDs
}

// Publish hands message to deliver once per subscribed session.
func (ps *LocalPubSub) Publish(channel string, message string, deliver func(sessionID int64, message string)) {
	for _, sessionID := range ps.Subscribers(channel) {
		deliver(sessionID, message)
	}
}
