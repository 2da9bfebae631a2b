package mirror

import (
	"encoding/json"
	"fmt"
	"time"

	"finledger/internal/core"
)

const (
	KindAccounts     = "accounts"
	KindCategories   = "categories"
	KindTransactions = "transactions"
	KindBudgets      = "budgets"
)

// SyncMessage carries one owner's full slice of a collection to the mirror
// worker. The worker replaces that owner's slice on the remote store, which
// keeps the replica in step with the merge-by-owner local writes, including
// deletions. Categories are global and carry no owner.
type SyncMessage struct {
	Kind         string             `json:"kind"`
	OwnerID      string             `json:"ownerId,omitempty"`
	Accounts     []core.Account     `json:"accounts,omitempty"`
	Categories   []core.Category    `json:"categories,omitempty"`
	Transactions []core.Transaction `json:"transactions,omitempty"`
	Budgets      []core.Budget      `json:"budgets,omitempty"`
	Timestamp    time.Time          `json:"timestamp"`
}

func (m *SyncMessage) Validate() error {
	switch m.Kind {
	case KindAccounts, KindTransactions, KindBudgets:
		if m.OwnerID == "" {
			return fmt.Errorf("message kind %q requires an owner", m.Kind)
		}
	case KindCategories:
	default:
		return fmt.Errorf("unknown message kind %q", m.Kind)
	}
	return nil
}

func (m *SyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SyncMessageFromJSON(data []byte) (*SyncMessage, error) {
	var msg SyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
