package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ExpenseRecordedMessage announces that a group's ledger changed. It only
// carries identifiers; consumers reload the ledger from storage.
type ExpenseRecordedMessage struct {
	ExpenseID     string    `json:"expense_id"`
	GroupID       string    `json:"group_id"`
	LedgerVersion int64     `json:"ledger_version"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewExpenseRecordedMessage(groupID, expenseID string, ledgerVersion int64) *ExpenseRecordedMessage {
	return &ExpenseRecordedMessage{
		ExpenseID:     expenseID,
		GroupID:       groupID,
		LedgerVersion: ledgerVersion,
		Timestamp:     time.Now(),
	}
}

func (m *ExpenseRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseRecordedMessageFromJSON decodes a message and requires a group ID.
func ExpenseRecordedMessageFromJSON(data []byte) (*ExpenseRecordedMessage, error) {
	var msg ExpenseRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.GroupID == "" {
		return nil, errors.New("message has no group_id")
	}
	return &msg, nil
}
