package watchlist

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"delphi/internal/domain/marketdata"
	"delphi/pkg/errors"
	"delphi/pkg/logger"
)

// Service coordinates watchlist operations
type Service struct {
	repo Repository
	log  *logger.Logger
}

// NewService constructs a watchlist service
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		log:  logger.Get().With("component", "watchlist_service"),
	}
}

// Create adds a new symbol to the watchlist
func (s *Service) Create(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return errors.ErrInvalidInput
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Symbol == "" {
		return errors.Wrap(errors.ErrInvalidInput, "symbol is required")
	}
	if entry.Interval == "" {
		entry.Interval = marketdata.Interval4h
	}
	if !marketdata.ValidInterval(entry.Interval) {
		return errors.Wrapf(errors.ErrInvalidInput, "unknown interval %q", entry.Interval)
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return errors.Wrap(err, "create watchlist entry")
	}

	s.log.Infow("Symbol added to watchlist",
		"symbol", entry.Symbol,
		"interval", entry.Interval,
		"category", entry.Category,
	)

	return nil
}

// GetActive returns all active symbols
func (s *Service) GetActive(ctx context.Context) ([]*Entry, error) {
	entries, err := s.repo.GetActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get active watchlist")
	}
	return entries, nil
}

// SetAlerts updates the price alert thresholds for a symbol
func (s *Service) SetAlerts(ctx context.Context, symbol, interval string, above, below decimal.NullDecimal) error {
	entry, err := s.repo.GetBySymbol(ctx, symbol, interval)
	if err != nil {
		return errors.Wrap(err, "get watchlist entry")
	}

	if above.Valid && below.Valid && above.Decimal.LessThanOrEqual(below.Decimal) {
		return errors.Wrap(errors.ErrInvalidInput, "alert_above must exceed alert_below")
	}

	entry.AlertAbove = above
	entry.AlertBelow = below

	if err := s.repo.Update(ctx, entry); err != nil {
		return errors.Wrap(err, "update alert thresholds")
	}

	s.log.Infow("Alert thresholds updated", "symbol", symbol, "interval", interval)
	return nil
}

// Pause pauses scanning for a symbol
func (s *Service) Pause(ctx context.Context, symbol, interval, reason string) error {
	entry, err := s.repo.GetBySymbol(ctx, symbol, interval)
	if err != nil {
		return errors.Wrap(err, "get watchlist entry")
	}

	entry.IsPaused = true
	entry.PausedReason = &reason

	if err := s.repo.Update(ctx, entry); err != nil {
		return errors.Wrap(err, "pause watchlist entry")
	}

	s.log.Infow("Symbol paused in watchlist", "symbol", symbol, "reason", reason)
	return nil
}

// Resume resumes scanning for a symbol
func (s *Service) Resume(ctx context.Context, symbol, interval string) error {
	entry, err := s.repo.GetBySymbol(ctx, symbol, interval)
	if err != nil {
		return errors.Wrap(err, "get watchlist entry")
	}

	entry.IsPaused = false
	entry.PausedReason = nil

	if err := s.repo.Update(ctx, entry); err != nil {
		return errors.Wrap(err, "resume watchlist entry")
	}

	s.log.Infow("Symbol resumed in watchlist", "symbol", symbol)
	return nil
}

// MarkScanned records a completed scan for an entry
func (s *Service) MarkScanned(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.MarkScanned(ctx, id); err != nil {
		return errors.Wrap(err, "mark watchlist entry scanned")
	}
	return nil
}

// Delete removes a symbol from the watchlist
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete watchlist entry")
	}
	s.log.Infow("Symbol removed from watchlist", "id", id)
	return nil
}
