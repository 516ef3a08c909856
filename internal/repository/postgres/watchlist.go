package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"delphi/internal/domain/watchlist"
	"delphi/pkg/errors"
)

// Compile-time check
var _ watchlist.Repository = (*WatchlistRepository)(nil)

// WatchlistRepository implements watchlist.Repository using sqlx
type WatchlistRepository struct {
	db DBTX
}

// NewWatchlistRepository creates a new watchlist repository
func NewWatchlistRepository(db DBTX) *WatchlistRepository {
	return &WatchlistRepository{db: db}
}

// Create inserts a new watchlist entry
func (r *WatchlistRepository) Create(ctx context.Context, entry *watchlist.Entry) error {
	query := `
		INSERT INTO watchlist (
			id, symbol, timeframe, category, tier,
			alert_above, alert_below,
			is_active, is_paused, paused_reason,
			last_scanned_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)`

	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = now
	}

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.Symbol, entry.Interval, entry.Category, entry.Tier,
		entry.AlertAbove, entry.AlertBelow,
		entry.IsActive, entry.IsPaused, entry.PausedReason,
		entry.LastScannedAt, entry.CreatedAt, entry.UpdatedAt,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return errors.Wrapf(errors.ErrAlreadyExists, "watchlist entry %s %s", entry.Symbol, entry.Interval)
	}

	return err
}

// GetByID retrieves a watchlist entry by ID
func (r *WatchlistRepository) GetByID(ctx context.Context, id uuid.UUID) (*watchlist.Entry, error) {
	var entry watchlist.Entry

	query := `SELECT * FROM watchlist WHERE id = $1`

	err := r.db.GetContext(ctx, &entry, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// GetBySymbol retrieves a watchlist entry by symbol and timeframe
func (r *WatchlistRepository) GetBySymbol(ctx context.Context, symbol, interval string) (*watchlist.Entry, error) {
	var entry watchlist.Entry

	query := `SELECT * FROM watchlist WHERE symbol = $1 AND timeframe = $2`

	err := r.db.GetContext(ctx, &entry, query, symbol, interval)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// GetActive retrieves all entries that should be scanned
func (r *WatchlistRepository) GetActive(ctx context.Context) ([]*watchlist.Entry, error) {
	var entries []*watchlist.Entry

	query := `
		SELECT * FROM watchlist
		WHERE is_active = true AND is_paused = false
		ORDER BY tier ASC, symbol ASC`

	err := r.db.SelectContext(ctx, &entries, query)
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// GetAll retrieves all watchlist entries
func (r *WatchlistRepository) GetAll(ctx context.Context) ([]*watchlist.Entry, error) {
	var entries []*watchlist.Entry

	query := `SELECT * FROM watchlist ORDER BY tier ASC, symbol ASC`

	err := r.db.SelectContext(ctx, &entries, query)
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Update updates a watchlist entry
func (r *WatchlistRepository) Update(ctx context.Context, entry *watchlist.Entry) error {
	query := `
		UPDATE watchlist SET
			symbol = $2,
			timeframe = $3,
			category = $4,
			tier = $5,
			alert_above = $6,
			alert_below = $7,
			is_active = $8,
			is_paused = $9,
			paused_reason = $10,
			last_scanned_at = $11,
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.Symbol, entry.Interval, entry.Category, entry.Tier,
		entry.AlertAbove, entry.AlertBelow,
		entry.IsActive, entry.IsPaused, entry.PausedReason,
		entry.LastScannedAt,
	)

	return err
}

// Delete deletes a watchlist entry
func (r *WatchlistRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM watchlist WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return errors.Wrapf(errors.ErrNotFound, "watchlist entry %s", id)
	}

	return nil
}

// MarkScanned records the scan timestamp for an entry
func (r *WatchlistRepository) MarkScanned(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE watchlist SET
			last_scanned_at = NOW(),
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
