package journalrepository

import (
	"context"

	"github.com/tuncanbit/qrpay/internal/domain"
)

type IJournalRepository interface {
	Record(ctx context.Context, entry *domain.JournalEntry) error
	List(ctx context.Context, limit int) ([]domain.JournalEntry, error)
	ListByTransaction(ctx context.Context, id domain.TxID) ([]domain.JournalEntry, error)
}
