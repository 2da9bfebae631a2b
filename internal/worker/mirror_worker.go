// Package worker applies mirror messages to the remote replica. It is the
// consuming end of the best-effort mirror: the local store has already
// committed by the time a message arrives, so all this worker does is bring
// the replica in step, one owner slice at a time.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"finledger/internal/core"
	"finledger/internal/mirror"
)

// RemoteStore is the slice of the replica the worker needs.
type RemoteStore interface {
	ReplaceAccounts(ctx context.Context, ownerID string, accounts []core.Account) error
	ReplaceCategories(ctx context.Context, categories []core.Category) error
	ReplaceTransactions(ctx context.Context, ownerID string, transactions []core.Transaction) error
	ReplaceBudgets(ctx context.Context, ownerID string, budgets []core.Budget) error
}

type MirrorWorker struct {
	remote RemoteStore
}

func NewMirrorWorker(remote RemoteStore) *MirrorWorker {
	return &MirrorWorker{remote: remote}
}

// HandleMessage applies one mirror message to the remote store. An error
// tells the queue client to requeue for redelivery.
func (w *MirrorWorker) HandleMessage(ctx context.Context, msg *mirror.SyncMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Applying mirror message",
		"kind", msg.Kind,
		"owner", msg.OwnerID)

	switch msg.Kind {
	case mirror.KindAccounts:
		if err := w.remote.ReplaceAccounts(ctx, msg.OwnerID, msg.Accounts); err != nil {
			return fmt.Errorf("replace accounts for %s: %w", msg.OwnerID, err)
		}
	case mirror.KindCategories:
		if err := w.remote.ReplaceCategories(ctx, msg.Categories); err != nil {
			return fmt.Errorf("replace categories: %w", err)
		}
	case mirror.KindTransactions:
		if err := w.remote.ReplaceTransactions(ctx, msg.OwnerID, msg.Transactions); err != nil {
			return fmt.Errorf("replace transactions for %s: %w", msg.OwnerID, err)
		}
	case mirror.KindBudgets:
		if err := w.remote.ReplaceBudgets(ctx, msg.OwnerID, msg.Budgets); err != nil {
			return fmt.Errorf("replace budgets for %s: %w", msg.OwnerID, err)
		}
	default:
		return fmt.Errorf("unknown message kind %q", msg.Kind)
	}

	return nil
}
