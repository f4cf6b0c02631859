package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ReapplyRulesMessage asks the worker to re-run the categorization rules
// over one owner's existing transactions. It carries only identifiers; the
// worker reads rules and transactions from the record store itself.
type ReapplyRulesMessage struct {
	JobID       uuid.UUID `json:"job_id"`
	OwnerID     int64     `json:"owner_id"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewReapplyRulesMessage(ownerID int64) *ReapplyRulesMessage {
	return &ReapplyRulesMessage{
		JobID:       uuid.New(),
		OwnerID:     ownerID,
		RequestedAt: time.Now(),
	}
}

func (m *ReapplyRulesMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReapplyRulesMessageFromJSON(data []byte) (*ReapplyRulesMessage, error) {
	var msg ReapplyRulesMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
