package model

import "time"

// EventType identifies the type of event pushed to live streams
type EventType string

const (
	EventTxUpdate       EventType = "tx_update"
	EventPlayerUpdated  EventType = "player_updated"
	EventQuoteModerated EventType = "quote_moderated"
)

// Event is pushed to every stream subscribed to Address
type Event struct {
	Type      EventType `json:"type"`
	Address   Address   `json:"address"`
	Timestamp time.Time `json:"timestamp"`
	NoticeTTL int64     `json:"notice_ttl_ms,omitempty"`
	Payload   any       `json:"payload"`
}

// NewTxEvent wraps a tx update as a stream event
func NewTxEvent(u TxUpdate) Event {
	return Event{
		Type:      EventTxUpdate,
		Address:   u.Address,
		Timestamp: u.Timestamp,
		NoticeTTL: u.NoticeTTL().Milliseconds(),
		Payload:   u,
	}
}

// NewPlayerEvent reports a player's state after a confirmed write
func NewPlayerEvent(p *Player, at time.Time) Event {
	return Event{
		Type:      EventPlayerUpdated,
		Address:   p.Address,
		Timestamp: at,
		Payload:   p,
	}
}
