package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mcoot/mysphere/internal/model"
	"github.com/mcoot/mysphere/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	players  map[model.Address]*model.Player
	elements map[model.ElementID]*model.Element
	txs      map[model.TxHash]model.TxUpdate
	quotes   map[model.QuoteID]*model.Quote
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		players:  make(map[model.Address]*model.Player),
		elements: make(map[model.ElementID]*model.Element),
		txs:      make(map[model.TxHash]model.TxUpdate),
		quotes:   make(map[model.QuoteID]*model.Quote),
	}
}

var _ storage.Storage = (*Storage)(nil)

// Ledger operations

func (s *Storage) GetPlayer(ctx context.Context, addr model.Address) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[addr]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return p.Clone(), nil
}

func (s *Storage) GetElement(ctx context.Context, id model.ElementID) (*model.Element, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	el, ok := s.elements[id]
	if !ok {
		return nil, model.ErrElementNotFound
	}
	c := *el
	return &c, nil
}

func (s *Storage) ListElements(ctx context.Context, owner model.Address) ([]*model.Element, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Element
	for _, el := range s.elements {
		if el.Owner == owner {
			c := *el
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MintedAt.Equal(out[j].MintedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].MintedAt.Before(out[j].MintedAt)
	})
	return out, nil
}

func (s *Storage) ApplyBatch(ctx context.Context, batch storage.LedgerBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate everything before touching state
	for _, id := range batch.Burn {
		el, ok := s.elements[id]
		if !ok {
			return model.ErrElementNotFound
		}
		if el.Owner != batch.Owner {
			return model.ErrElementNotOwned
		}
	}

	for _, id := range batch.Burn {
		delete(s.elements, id)
	}
	for _, el := range batch.Mint {
		c := *el
		s.elements[el.ID] = &c
	}
	if batch.Player != nil {
		s.players[batch.Player.Address] = batch.Player.Clone()
	}
	return nil
}

// Transaction operations

func (s *Storage) SaveTx(ctx context.Context, update model.TxUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs[update.Hash] = update
	return nil
}

func (s *Storage) GetTx(ctx context.Context, hash model.TxHash) (*model.TxUpdate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.txs[hash]
	if !ok {
		return nil, model.ErrTxNotFound
	}
	return &u, nil
}

func (s *Storage) ListTxs(ctx context.Context, addr model.Address, limit int) ([]model.TxUpdate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.TxUpdate
	for _, u := range s.txs {
		if u.Address == addr {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Storage) PruneTxs(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for hash, u := range s.txs {
		if u.Timestamp.Before(before) {
			delete(s.txs, hash)
			removed++
		}
	}
	return removed, nil
}

// Quote operations

func (s *Storage) SaveQuote(ctx context.Context, quote *model.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *quote
	s.quotes[quote.ID] = &c
	return nil
}

func (s *Storage) GetQuote(ctx context.Context, id model.QuoteID) (*model.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[id]
	if !ok {
		return nil, model.ErrQuoteNotFound
	}
	c := *q
	return &c, nil
}

func (s *Storage) ListQuotes(ctx context.Context, filter model.QuoteFilter) ([]*model.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Quote
	for _, q := range s.quotes {
		if filter.Matches(q) {
			c := *q
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Storage) DeleteQuote(ctx context.Context, id model.QuoteID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quotes[id]; !ok {
		return model.ErrQuoteNotFound
	}
	delete(s.quotes, id)
	return nil
}

func (s *Storage) DeleteQuotes(ctx context.Context, ids []model.QuoteID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if _, ok := s.quotes[id]; !ok {
			return model.ErrQuoteNotFound
		}
	}
	for _, id := range ids {
		delete(s.quotes, id)
	}
	return nil
}

func (s *Storage) CountQuotes(ctx context.Context) (model.QuoteStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats model.QuoteStats
	for _, q := range s.quotes {
		switch q.Status {
		case model.QuoteStatusPending:
			stats.Pending++
		case model.QuoteStatusApproved:
			stats.Approved++
		case model.QuoteStatusRejected:
			stats.Rejected++
		}
	}
	return stats, nil
}
