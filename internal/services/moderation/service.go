// Package moderation implements quote submission and the admin review panel.
package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mcoot/mysphere/internal/dependencies/clock"
	"github.com/mcoot/mysphere/internal/model"
	"github.com/mcoot/mysphere/internal/storage"
)

// MaxQuoteLength is the longest accepted quote, in characters
const MaxQuoteLength = 500

// Submission is a new quote as entered by a user
type Submission struct {
	Content     string
	SubmittedBy string
	Category    string
	IsOwnQuote  bool
}

// Listener is told about every quote whose status an admin changed
type Listener func(q *model.Quote)

// Service handles quote submission and moderation
type Service struct {
	store    storage.QuoteStore
	auth     Authorizer
	clock    clock.Clock
	listener Listener
	logger   *slog.Logger
}

// NewService creates a moderation service. listener may be nil.
func NewService(
	store storage.QuoteStore,
	auth Authorizer,
	clock clock.Clock,
	listener Listener,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:    store,
		auth:     auth,
		clock:    clock,
		listener: listener,
		logger:   logger,
	}
}

// IsAdmin reports whether addr may use the admin operations
func (s *Service) IsAdmin(addr model.Address) bool {
	return s.auth.IsAdmin(addr)
}

// Submit validates and stores a quote as pending
func (s *Service) Submit(ctx context.Context, sub Submission) (*model.Quote, error) {
	content := strings.TrimSpace(sub.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", model.ErrInvalidQuote)
	}
	if utf8.RuneCountInString(content) > MaxQuoteLength {
		return nil, fmt.Errorf("%w: content exceeds %d characters", model.ErrInvalidQuote, MaxQuoteLength)
	}
	author := strings.TrimSpace(sub.SubmittedBy)
	if author == "" {
		return nil, fmt.Errorf("%w: author is required", model.ErrInvalidQuote)
	}
	category := model.CategoryOther
	if sub.Category != "" {
		c, ok := model.ParseQuoteCategory(sub.Category)
		if !ok {
			return nil, fmt.Errorf("%w: unknown category %q", model.ErrInvalidQuote, sub.Category)
		}
		category = c
	}

	q := &model.Quote{
		ID:          model.QuoteID(uuid.NewString()),
		Content:     content,
		SubmittedBy: author,
		Category:    category,
		IsOwnQuote:  sub.IsOwnQuote,
		Status:      model.QuoteStatusPending,
		Timestamp:   s.clock.Now(),
	}
	if err := s.store.SaveQuote(ctx, q); err != nil {
		s.logger.Error("failed to save quote",
			slog.String("quote_id", string(q.ID)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("quote submitted",
		slog.String("quote_id", string(q.ID)),
		slog.String("category", string(q.Category)),
	)
	return q, nil
}

// ListApproved returns the public feed, newest first
func (s *Service) ListApproved(ctx context.Context, category model.QuoteCategory, limit int) ([]*model.Quote, error) {
	return s.store.ListQuotes(ctx, model.QuoteFilter{
		Status:   model.QuoteStatusApproved,
		Category: category,
		Limit:    limit,
	})
}

// List returns quotes matching filter for the admin panel
func (s *Service) List(ctx context.Context, admin model.Address, filter model.QuoteFilter) ([]*model.Quote, error) {
	if err := s.authorize(admin); err != nil {
		return nil, err
	}
	return s.store.ListQuotes(ctx, filter)
}

// Approve moves a pending quote to approved
func (s *Service) Approve(ctx context.Context, admin model.Address, id model.QuoteID) (*model.Quote, error) {
	return s.SetStatus(ctx, admin, id, model.QuoteStatusApproved)
}

// Reject moves a pending quote to rejected
func (s *Service) Reject(ctx context.Context, admin model.Address, id model.QuoteID) (*model.Quote, error) {
	return s.SetStatus(ctx, admin, id, model.QuoteStatusRejected)
}

// SetStatus applies a moderation decision. Only pending quotes can be
// decided, and only to approved or rejected.
func (s *Service) SetStatus(ctx context.Context, admin model.Address, id model.QuoteID, status model.QuoteStatus) (*model.Quote, error) {
	if err := s.authorize(admin); err != nil {
		return nil, err
	}
	q, err := s.store.GetQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Status != model.QuoteStatusPending || (status != model.QuoteStatusApproved && status != model.QuoteStatusRejected) {
		return nil, fmt.Errorf("%w: %s to %s", model.ErrInvalidQuoteTransition, q.Status, status)
	}

	q.Status = status
	if err := s.store.SaveQuote(ctx, q); err != nil {
		return nil, err
	}

	s.logger.Info("quote moderated",
		slog.String("quote_id", string(id)),
		slog.String("status", string(status)),
		slog.String("admin", string(admin)),
	)
	if s.listener != nil {
		s.listener(q)
	}
	return q, nil
}

// Delete removes a single quote
func (s *Service) Delete(ctx context.Context, admin model.Address, id model.QuoteID) error {
	if err := s.authorize(admin); err != nil {
		return err
	}
	if err := s.store.DeleteQuote(ctx, id); err != nil {
		return err
	}
	s.logger.Info("quote deleted",
		slog.String("quote_id", string(id)),
		slog.String("admin", string(admin)),
	)
	return nil
}

// DeleteBulk removes all ids or none. It returns the number deleted.
func (s *Service) DeleteBulk(ctx context.Context, admin model.Address, ids []model.QuoteID) (int, error) {
	if err := s.authorize(admin); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no quotes selected", model.ErrInvalidQuote)
	}
	unique := make([]model.QuoteID, 0, len(ids))
	seen := make(map[model.QuoteID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if err := s.store.DeleteQuotes(ctx, unique); err != nil {
		return 0, err
	}
	s.logger.Info("quotes deleted",
		slog.Int("count", len(unique)),
		slog.String("admin", string(admin)),
	)
	return len(unique), nil
}

// Stats counts quotes per status
func (s *Service) Stats(ctx context.Context, admin model.Address) (model.QuoteStats, error) {
	if err := s.authorize(admin); err != nil {
		return model.QuoteStats{}, err
	}
	return s.store.CountQuotes(ctx)
}

func (s *Service) authorize(addr model.Address) error {
	if !s.auth.IsAdmin(addr) {
		s.logger.Warn("admin access denied", slog.String("address", string(addr)))
		return model.ErrNotAdmin
	}
	return nil
}
