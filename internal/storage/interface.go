package storage

import (
	"context"
	"time"

	"github.com/mcoot/mysphere/internal/model"
)

// LedgerBatch is the set of state changes made by one mined transaction.
// Stores apply a batch atomically: either every change lands or none does.
type LedgerBatch struct {
	// Player is written when non-nil
	Player *model.Player
	// Burn lists elements that must currently belong to Owner and are removed
	Burn  []model.ElementID
	Owner model.Address
	// Mint lists new elements
	Mint []*model.Element
}

// LedgerStore persists contract state for the simulated ledger
type LedgerStore interface {
	GetPlayer(ctx context.Context, addr model.Address) (*model.Player, error)
	GetElement(ctx context.Context, id model.ElementID) (*model.Element, error)
	ListElements(ctx context.Context, owner model.Address) ([]*model.Element, error)
	ApplyBatch(ctx context.Context, batch LedgerBatch) error
}

// TxStore keeps the latest known phase of each transaction
type TxStore interface {
	SaveTx(ctx context.Context, update model.TxUpdate) error
	GetTx(ctx context.Context, hash model.TxHash) (*model.TxUpdate, error)
	ListTxs(ctx context.Context, addr model.Address, limit int) ([]model.TxUpdate, error)
	PruneTxs(ctx context.Context, before time.Time) (int, error)
}

// QuoteStore is the quote document collection
type QuoteStore interface {
	SaveQuote(ctx context.Context, quote *model.Quote) error
	GetQuote(ctx context.Context, id model.QuoteID) (*model.Quote, error)
	// ListQuotes returns matching quotes, newest first
	ListQuotes(ctx context.Context, filter model.QuoteFilter) ([]*model.Quote, error)
	DeleteQuote(ctx context.Context, id model.QuoteID) error
	// DeleteQuotes removes all ids or none; a missing id fails the whole batch
	DeleteQuotes(ctx context.Context, ids []model.QuoteID) error
	CountQuotes(ctx context.Context) (model.QuoteStats, error)
}

// Storage is implemented by backends that hold every collection
type Storage interface {
	LedgerStore
	TxStore
	QuoteStore
}
