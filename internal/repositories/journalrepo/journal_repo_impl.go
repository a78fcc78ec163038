package journalrepository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tuncanbit/qrpay/internal/domain"
	"github.com/tuncanbit/qrpay/internal/infrastructure/database"
)

const selectColumns = `SELECT id, event, transaction_id, amount_rub, amount_sol, description, message, created_at FROM payment_journal`

type journalRepository struct {
	db     *database.DBManager
	logger zerolog.Logger
}

func New(db *database.DBManager, logger zerolog.Logger) IJournalRepository {
	return &journalRepository{
		db:     db,
		logger: logger.With().Str("component", "journal_repository").Logger(),
	}
}

func (r *journalRepository) Record(ctx context.Context, entry *domain.JournalEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := r.db.Rebind(`INSERT INTO payment_journal (id, event, transaction_id, amount_rub, amount_sol, description, message, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.Db.ExecContext(ctx, query,
		entry.ID.String(),
		string(entry.Event),
		entry.TransactionID.String(),
		entry.AmountRub,
		entry.AmountSol,
		entry.Description,
		entry.Message,
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error().Err(err).Str("event", string(entry.Event)).Str("transaction_id", entry.TransactionID.String()).Msg("Failed to record journal entry")
		return fmt.Errorf("failed to record journal entry: %w", err)
	}

	return nil
}

func (r *journalRepository) List(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := r.db.Rebind(selectColumns + ` ORDER BY created_at DESC LIMIT ?`)

	rows, err := r.db.Db.QueryContext(ctx, query, limit)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to list journal entries")
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (r *journalRepository) ListByTransaction(ctx context.Context, id domain.TxID) ([]domain.JournalEntry, error) {
	query := r.db.Rebind(selectColumns + ` WHERE transaction_id = ? ORDER BY created_at ASC`)

	rows, err := r.db.Db.QueryContext(ctx, query, id.String())
	if err != nil {
		r.logger.Error().Err(err).Str("transaction_id", id.String()).Msg("Failed to list journal entries by transaction")
		return nil, fmt.Errorf("failed to list journal entries for %s: %w", id, err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]domain.JournalEntry, error) {
	var entries []domain.JournalEntry
	for rows.Next() {
		var (
			e     domain.JournalEntry
			id    string
			event string
			txID  string
		)
		if err := rows.Scan(&id, &event, &txID, &e.AmountRub, &e.AmountSol, &e.Description, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid journal id %q: %w", id, err)
		}
		e.ID = parsed
		e.Event = domain.JournalEvent(event)
		e.TransactionID = domain.TxID(txID)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate journal entries: %w", err)
	}
	return entries, nil
}

// NopJournal discards entries; used when the journal is disabled.
type NopJournal struct{}

func (NopJournal) Record(context.Context, *domain.JournalEntry) error { return nil }

func (NopJournal) List(context.Context, int) ([]domain.JournalEntry, error) { return nil, nil }

func (NopJournal) ListByTransaction(context.Context, domain.TxID) ([]domain.JournalEntry, error) {
	return nil, nil
}
