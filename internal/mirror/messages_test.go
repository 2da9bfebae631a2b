package mirror

import (
	"testing"
	"time"

	"finledger/internal/core"

	"github.com/shopspring/decimal"
)

func TestSyncMessageRoundTrip(t *testing.T) {
	cat := "c1"
	msg := &SyncMessage{
		Kind:    KindTransactions,
		OwnerID: "userA",
		Transactions: []core.Transaction{{
			ID:         "t1",
			UserID:     "userA",
			Date:       time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC),
			AccountID:  "a1",
			Type:       core.TypeExpense,
			CategoryID: &cat,
			Amount:     decimal.RequireFromString("123.45"),
			Note:       "nota",
			Tags:       []string{"uno"},
		}},
		Timestamp: time.Now().UTC(),
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := SyncMessageFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Kind != KindTransactions || got.OwnerID != "userA" {
		t.Errorf("envelope mismatch: %+v", got)
	}
	if len(got.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(got.Transactions))
	}
	tr := got.Transactions[0]
	if tr.ID != "t1" || tr.CategoryID == nil || *tr.CategoryID != "c1" {
		t.Errorf("transaction payload mismatch: %+v", tr)
	}
	if !tr.Amount.Equal(decimal.RequireFromString("123.45")) {
		t.Errorf("amount mismatch: %s", tr.Amount)
	}
}

func TestSyncMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     SyncMessage
		wantErr bool
	}{
		{"accounts with owner", SyncMessage{Kind: KindAccounts, OwnerID: "u1"}, false},
		{"accounts without owner", SyncMessage{Kind: KindAccounts}, true},
		{"transactions without owner", SyncMessage{Kind: KindTransactions}, true},
		{"budgets without owner", SyncMessage{Kind: KindBudgets}, true},
		{"categories carry no owner", SyncMessage{Kind: KindCategories}, false},
		{"unknown kind", SyncMessage{Kind: "users", OwnerID: "u1"}, true},
		{"empty kind", SyncMessage{}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSyncMessageFromJSON_RejectsInvalid(t *testing.T) {
	if _, err := SyncMessageFromJSON([]byte("{not json")); err == nil {
		t.Error("expected error for malformed JSON")
	}
	if _, err := SyncMessageFromJSON([]byte(`{"kind":"accounts"}`)); err == nil {
		t.Error("expected error for missing owner")
	}
}
