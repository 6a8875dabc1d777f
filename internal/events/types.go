package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/thenoetrevino/livekanban/internal/models"
)

// ProtocolVersion is stamped on every wire message. Peers log a warning on
// mismatch but keep talking.
const ProtocolVersion = 1

// DefaultChannel is the channel task change notifications are published on.
const DefaultChannel = "task-updates"

// FromLatest subscribes to new events only, without replaying a backlog.
const FromLatest int64 = -1

// EventType indicates what kind of event travels on the wire
type EventType string

const (
	EventTaskChanged EventType = "task_changed"
	EventPing        EventType = "ping"
	EventPong        EventType = "pong"
)

// Wire message types
const (
	MsgEvent     = "event"
	MsgSubscribe = "subscribe"
	MsgPing      = "ping"
	MsgPong      = "pong"
)

// Event is a change notification as carried by the hub.
type Event struct {
	Type       EventType           `json:"type"`
	Channel    string              `json:"channel,omitempty"`
	Remote     *models.RemoteEvent `json:"remote,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
	SequenceID int64               `json:"sequence_id,omitempty"` // assigned by the hub, monotonically increasing
	Epoch      string              `json:"epoch,omitempty"`       // identifies the hub run that assigned SequenceID
}

// NewEvent wraps a remote event for publishing on channel. An event id is
// generated when the caller did not set one.
func NewEvent(channel string, remote models.RemoteEvent) Event {
	if remote.ID == "" {
		remote.ID = uuid.NewString()
	}
	return Event{
		Type:      EventTaskChanged,
		Channel:   channel,
		Remote:    &remote,
		Timestamp: time.Now(),
	}
}

// RemoteEvent returns the payload stamped with the hub sequence number.
func (e Event) RemoteEvent() (models.RemoteEvent, bool) {
	if e.Type != EventTaskChanged || e.Remote == nil {
		return models.RemoteEvent{}, false
	}
	r := *e.Remote
	if e.SequenceID != 0 {
		r.Sequence = e.SequenceID
	}
	return r, true
}

// SubscribeMessage is sent by clients to select a channel
type SubscribeMessage struct {
	Channel      string `json:"channel"`
	FromSequence int64  `json:"from_sequence"` // FromLatest = new events only
	Epoch        string `json:"epoch,omitempty"` // hub run FromSequence belongs to, empty when unknown
}

// Message wraps events and control messages for the wire protocol
type Message struct {
	Version   int               `json:"version"`
	Type      string            `json:"type"` // "event", "subscribe", "ping", "pong"
	Event     *Event            `json:"event,omitempty"`
	Subscribe *SubscribeMessage `json:"subscribe,omitempty"`
}
