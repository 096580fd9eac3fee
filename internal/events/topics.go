package events

import "github.com/skobkin/rovlink/internal/protocol"

const (
	TopicConnStatus   = "conn.status"
	TopicNotification = "notification"

	topicMessagePrefix = "message."
)

// TopicMessage is the bus topic for one inbound message type.
func TopicMessage(t protocol.Type) string {
	return topicMessagePrefix + string(t)
}
