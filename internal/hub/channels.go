package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

func topicKey(topic string, id int64) string {
	return fmt.Sprintf("%s%s:%d", prefix, topic, id)
}

// Subscribe makes the session follow topic id. Following a channel or server replaces the
// previous one of the same kind.
func Subscribe(topic string, id int64, sessionID int64) error {
	client, exists := GetClient(sessionID)
	if !exists {
		return fmt.Errorf("session ID [%d] tried to subscribe to %s [%d] but the session isn't connected to hub", sessionID, topic, id)
	}

	client.mutex.Lock()
	defer client.mutex.Unlock()

	var old int64
	switch topic {
	case TopicChannel:
		old = client.CurrentChannelID
		client.CurrentChannelID = id
	case TopicServer:
		old = client.CurrentServerID
		client.CurrentServerID = id
	case TopicServerList:
		// no need to unsubscribe anything as it's a list of multiple servers constantly in view
	default:
		return fmt.Errorf("unknown topic %q", topic)
	}

	if old != 0 && old != id {
		err := client.unsubscribe(topicKey(topic, old))
		if err != nil {
			return err
		}
		sugar.Debugf("Session ID %d unsubscribed from %s %d", sessionID, topic, old)
	}

	err := client.subscribe(topicKey(topic, id))
	if err != nil {
		return err
	}

	sugar.Debugf("Session ID %d subscribed to %s %d", sessionID, topic, id)
	return nil
}

// Unsubscribe stops following topic id, used when the session clears its selection.
func Unsubscribe(topic string, id int64, sessionID int64) error {
	client, exists := GetClient(sessionID)
	if !exists {
		return nil
	}

	client.mutex.Lock()
	defer client.mutex.Unlock()

	switch topic {
	case TopicChannel:
		if client.CurrentChannelID == id {
			client.CurrentChannelID = 0
		}
	case TopicServer:
		if client.CurrentServerID == id {
			client.CurrentServerID = 0
		}
	}

	return client.unsubscribe(topicKey(topic, id))
}

// UnsubscribeCurrent stops following whichever channel or server the session follows now.
func UnsubscribeCurrent(topic string, sessionID int64) error {
	client, exists := GetClient(sessionID)
	if !exists {
		return nil
	}

	client.mutex.Lock()
	defer client.mutex.Unlock()

	var current int64
	switch topic {
	case TopicChannel:
		current = client.CurrentChannelID
		client.CurrentChannelID = 0
	case TopicServer:
		current = client.CurrentServerID
		client.CurrentServerID = 0
	default:
		return fmt.Errorf("topic %q has no current subscription", topic)
	}

	if current == 0 {
		return nil
	}
	return client.unsubscribe(topicKey(topic, current))
}

// Frame encodes a websocket text frame: the message type, a newline, then the json payload.
func Frame(messageType string, message any) (string, error) {
	jsonBytes, err := json.Marshal(message)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.Grow(len(messageType) + 1 + len(jsonBytes))
	sb.WriteString(messageType)
	sb.WriteByte('\n')
	sb.Write(jsonBytes)

	return sb.String(), nil
}

func Emit(messageType string, topic string, message any, id int64) error {
	channel := topicKey(topic, id)

	frame, err := Frame(messageType, message)
	if err != nil {
		return err
	}

	sugar.Debugf("Sending %s to those on %s", messageType, channel)

	if selfContained {
		localPubSub.Publish(channel, frame, deliverLocal)
		return nil
	}

	return redisClient.Publish(context.Background(), channel, frame).Err()
}

func deliverLocal(sessionID int64, frame string) {
	client, exists := GetClient(sessionID)
	if !exists {
		sugar.Warnf("Session ID %d is supposed to be available", sessionID)
		return
	}

	select {
	case client.LocalChannel <- frame:
	case <-client.ctx.Done():
	default:
		sugar.Warnf("Dropping message for session ID %d, its queue is full", sessionID)
	}
}
