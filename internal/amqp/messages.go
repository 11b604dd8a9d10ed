package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Session change operations.
const (
	OpAppended = "appended"
	OpDeleted  = "deleted"
	OpRepaired = "repaired"
)

// SessionChangedMessage tells consumers that the session store was mutated.
// It carries identification only; consumers re-read the store.
type SessionChangedMessage struct {
	Op        string    `json:"op"`
	Index     int       `json:"index"`
	ID        string    `json:"id,omitempty"`
	Date      string    `json:"date,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSessionChangedMessage(op string, index int, id, date string) *SessionChangedMessage {
	return &SessionChangedMessage{
		Op:        op,
		Index:     index,
		ID:        id,
		Date:      date,
		Timestamp: time.Now().UTC(),
	}
}

func (m *SessionChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SessionChangedMessageFromJSON decodes and validates a message body.
func SessionChangedMessageFromJSON(data []byte) (*SessionChangedMessage, error) {
	var msg SessionChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Op {
	case OpAppended, OpDeleted, OpRepaired:
	default:
		return nil, fmt.Errorf("unknown operation %q", msg.Op)
	}
	return &msg, nil
}
