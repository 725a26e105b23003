package amqp

import (
	"encoding/json"
	"time"

	"compta/internal/core"

	"github.com/google/uuid"
)

// MonthChangedMessage announces that a month sheet received a new row.
// The worker re-reads the month from the workbook; the message carries no rows.
type MonthChangedMessage struct {
	ID        string    `json:"id"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	EntryID   string    `json:"entry_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMonthChangedMessage creates a message for p with a fresh ID.
func NewMonthChangedMessage(p core.Period, entryID string) *MonthChangedMessage {
	return &MonthChangedMessage{
		ID:        uuid.NewString(),
		Year:      p.Year,
		Month:     p.Month,
		EntryID:   entryID,
		Timestamp: time.Now(),
	}
}

// Period returns the month the message refers to.
func (m *MonthChangedMessage) Period() core.Period {
	return core.Period{Year: m.Year, Month: m.Month}
}

// ToJSON converts the message to JSON bytes
func (m *MonthChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MonthChangedMessageFromJSON decodes and validates a message.
func MonthChangedMessageFromJSON(data []byte) (*MonthChangedMessage, error) {
	var msg MonthChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Period().Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
