package watchlist

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for watchlist data access
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	GetBySymbol(ctx context.Context, symbol, interval string) (*Entry, error)
	GetActive(ctx context.Context) ([]*Entry, error)
	GetAll(ctx context.Context) ([]*Entry, error)
	Update(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, id uuid.UUID) error
	MarkScanned(ctx context.Context, id uuid.UUID) error
}
