package ws

import (
	"encoding/json"
	"errors"
)

// ChangeEvent is one row change on a watched table, as emitted by the
// database notify trigger.
type ChangeEvent struct {
	Table     string `json:"table"`
	Op        string `json:"op"`
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
}

// Topic selects change events by table and, optionally, by session.
// An empty SessionID matches every row of the table.
type Topic struct {
	Table     string
	SessionID string
}

func (t Topic) Matches(ev ChangeEvent) bool {
	if t.Table != ev.Table {
		return false
	}
	return t.SessionID == "" || t.SessionID == ev.SessionID
}

var errBadEvent = errors.New("change event without table")

// DecodeEvent parses a notify payload.
func DecodeEvent(payload []byte) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, err
	}
	if ev.Table == "" {
		return ev, errBadEvent
	}
	return ev, nil
}
