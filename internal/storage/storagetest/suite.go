// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/mysphere/internal/model"
	"github.com/mcoot/mysphere/internal/storage"
)

const (
	Alice = model.Address("0x00000000000000000000000000000000000000a1")
	Bob   = model.Address("0x00000000000000000000000000000000000000b2")
)

// Suite runs against the Storage returned by Store. Backend packages embed
// it and set Store in SetupTest.
type Suite struct {
	suite.Suite
	Store storage.Storage
	Ctx   context.Context
	Now   time.Time
}

func (s *Suite) element(id string, owner model.Address, level uint8) *model.Element {
	return model.NewElement(model.ElementID(id), owner, model.ElementReactor, model.RarityCommon, level, s.Now)
}

func (s *Suite) mint(els ...*model.Element) {
	err := s.Store.ApplyBatch(s.Ctx, storage.LedgerBatch{Mint: els})
	s.Require().NoError(err)
}

// Ledger

func (s *Suite) TestGetPlayerNotFound() {
	_, err := s.Store.GetPlayer(s.Ctx, Alice)
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestApplyBatchWritesPlayer() {
	p := &model.Player{Address: Alice, Experience: 100, Streak: 1, BaseLevel: 1, Active: true, LastCheckIn: 1700000000}
	s.Require().NoError(s.Store.ApplyBatch(s.Ctx, storage.LedgerBatch{Player: p}))

	got, err := s.Store.GetPlayer(s.Ctx, Alice)
	s.Require().NoError(err)
	s.Equal(*p, *got)
}

func (s *Suite) TestMintAndListElements() {
	s.mint(s.element("e1", Alice, 1), s.element("e2", Alice, 1), s.element("e3", Bob, 1))

	els, err := s.Store.ListElements(s.Ctx, Alice)
	s.Require().NoError(err)
	s.Len(els, 2)

	el, err := s.Store.GetElement(s.Ctx, "e3")
	s.Require().NoError(err)
	s.Equal(Bob, el.Owner)
	s.Equal(uint64(100), el.Power)
}

func (s *Suite) TestGetElementNotFound() {
	_, err := s.Store.GetElement(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrElementNotFound)
}

func (s *Suite) TestApplyBatchBurnsAndMints() {
	s.mint(s.element("e1", Alice, 1), s.element("e2", Alice, 1), s.element("e3", Alice, 1))

	err := s.Store.ApplyBatch(s.Ctx, storage.LedgerBatch{
		Owner: Alice,
		Burn:  []model.ElementID{"e1", "e2", "e3"},
		Mint:  []*model.Element{s.element("e4", Alice, 2)},
	})
	s.Require().NoError(err)

	els, err := s.Store.ListElements(s.Ctx, Alice)
	s.Require().NoError(err)
	s.Require().Len(els, 1)
	s.Equal(model.ElementID("e4"), els[0].ID)
	s.Equal(uint8(2), els[0].Level)

	_, err = s.Store.GetElement(s.Ctx, "e1")
	s.ErrorIs(err, model.ErrElementNotFound)
}

func (s *Suite) TestApplyBatchIsAllOrNothing() {
	s.mint(s.element("e1", Alice, 1), s.element("e2", Alice, 1), s.element("e3", Bob, 1))

	err := s.Store.ApplyBatch(s.Ctx, storage.LedgerBatch{
		Owner:  Alice,
		Burn:   []model.ElementID{"e1", "e2", "e3"},
		Mint:   []*model.Element{s.element("e4", Alice, 2)},
		Player: &model.Player{Address: Alice, Active: true, Experience: 999},
	})
	s.ErrorIs(err, model.ErrElementNotOwned)

	els, _ := s.Store.ListElements(s.Ctx, Alice)
	s.Len(els, 2)
	_, err = s.Store.GetElement(s.Ctx, "e4")
	s.ErrorIs(err, model.ErrElementNotFound)
	_, err = s.Store.GetPlayer(s.Ctx, Alice)
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

// Transactions

func (s *Suite) TestSaveTxKeepsLatestPhase() {
	pending := model.TxUpdate{Hash: "0x01", Method: model.TxCheckIn, Address: Alice, Phase: model.TxPending, Timestamp: s.Now}
	s.Require().NoError(s.Store.SaveTx(s.Ctx, pending))

	confirmed := pending
	confirmed.Phase = model.TxConfirmed
	confirmed.BlockNumber = 7
	confirmed.Timestamp = s.Now.Add(time.Second)
	s.Require().NoError(s.Store.SaveTx(s.Ctx, confirmed))

	got, err := s.Store.GetTx(s.Ctx, "0x01")
	s.Require().NoError(err)
	s.Equal(model.TxConfirmed, got.Phase)
	s.Equal(uint64(7), got.BlockNumber)

	list, err := s.Store.ListTxs(s.Ctx, Alice, 10)
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *Suite) TestGetTxNotFound() {
	_, err := s.Store.GetTx(s.Ctx, "0xdead")
	s.ErrorIs(err, model.ErrTxNotFound)
}

func (s *Suite) TestListTxsNewestFirstWithLimit() {
	for i, h := range []model.TxHash{"0x01", "0x02", "0x03"} {
		u := model.TxUpdate{Hash: h, Method: model.TxCheckIn, Address: Alice, Phase: model.TxConfirmed, Timestamp: s.Now.Add(time.Duration(i) * time.Minute)}
		s.Require().NoError(s.Store.SaveTx(s.Ctx, u))
	}

	list, err := s.Store.ListTxs(s.Ctx, Alice, 2)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(model.TxHash("0x03"), list[0].Hash)
	s.Equal(model.TxHash("0x02"), list[1].Hash)
}

func (s *Suite) TestPruneTxs() {
	old := model.TxUpdate{Hash: "0x01", Address: Alice, Phase: model.TxConfirmed, Timestamp: s.Now.Add(-48 * time.Hour)}
	recent := model.TxUpdate{Hash: "0x02", Address: Alice, Phase: model.TxConfirmed, Timestamp: s.Now}
	s.Require().NoError(s.Store.SaveTx(s.Ctx, old))
	s.Require().NoError(s.Store.SaveTx(s.Ctx, recent))

	removed, err := s.Store.PruneTxs(s.Ctx, s.Now.Add(-24*time.Hour))
	s.Require().NoError(err)
	s.Equal(1, removed)

	_, err = s.Store.GetTx(s.Ctx, "0x01")
	s.ErrorIs(err, model.ErrTxNotFound)
	_, err = s.Store.GetTx(s.Ctx, "0x02")
	s.NoError(err)
}

// Quotes

func (s *Suite) quote(id string, status model.QuoteStatus, category model.QuoteCategory, age time.Duration) *model.Quote {
	q := &model.Quote{
		ID:          model.QuoteID(id),
		Content:     "quote " + id,
		SubmittedBy: string(Alice),
		Category:    category,
		Status:      status,
		Timestamp:   s.Now.Add(-age),
	}
	s.Require().NoError(s.Store.SaveQuote(s.Ctx, q))
	return q
}

func (s *Suite) TestSaveAndGetQuote() {
	q := s.quote("q1", model.QuoteStatusPending, model.CategoryWisdom, 0)

	got, err := s.Store.GetQuote(s.Ctx, "q1")
	s.Require().NoError(err)
	s.Equal(q.Content, got.Content)
	s.Equal(q.Category, got.Category)
	s.True(q.Timestamp.Equal(got.Timestamp))
}

func (s *Suite) TestGetQuoteNotFound() {
	_, err := s.Store.GetQuote(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrQuoteNotFound)
}

func (s *Suite) TestListQuotesFiltersAndOrders() {
	s.quote("q1", model.QuoteStatusPending, model.CategoryWisdom, 3*time.Minute)
	s.quote("q2", model.QuoteStatusApproved, model.CategoryWisdom, 2*time.Minute)
	s.quote("q3", model.QuoteStatusPending, model.CategoryHumor, time.Minute)

	pending, err := s.Store.ListQuotes(s.Ctx, model.QuoteFilter{Status: model.QuoteStatusPending})
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(model.QuoteID("q3"), pending[0].ID)

	wisdom, err := s.Store.ListQuotes(s.Ctx, model.QuoteFilter{Category: model.CategoryWisdom})
	s.Require().NoError(err)
	s.Len(wisdom, 2)

	limited, err := s.Store.ListQuotes(s.Ctx, model.QuoteFilter{Limit: 1})
	s.Require().NoError(err)
	s.Require().Len(limited, 1)
	s.Equal(model.QuoteID("q3"), limited[0].ID)
}

func (s *Suite) TestUpdateQuoteBySave() {
	q := s.quote("q1", model.QuoteStatusPending, model.CategoryLife, 0)
	q.Status = model.QuoteStatusApproved
	s.Require().NoError(s.Store.SaveQuote(s.Ctx, q))

	got, err := s.Store.GetQuote(s.Ctx, "q1")
	s.Require().NoError(err)
	s.Equal(model.QuoteStatusApproved, got.Status)

	approved, err := s.Store.ListQuotes(s.Ctx, model.QuoteFilter{Status: model.QuoteStatusApproved})
	s.Require().NoError(err)
	s.Len(approved, 1)
}

func (s *Suite) TestDeleteQuote() {
	s.quote("q1", model.QuoteStatusPending, model.CategoryLife, 0)

	s.Require().NoError(s.Store.DeleteQuote(s.Ctx, "q1"))
	_, err := s.Store.GetQuote(s.Ctx, "q1")
	s.ErrorIs(err, model.ErrQuoteNotFound)

	s.ErrorIs(s.Store.DeleteQuote(s.Ctx, "q1"), model.ErrQuoteNotFound)
}

func (s *Suite) TestDeleteQuotesAllOrNothing() {
	s.quote("q1", model.QuoteStatusPending, model.CategoryLife, 0)
	s.quote("q2", model.QuoteStatusPending, model.CategoryLife, 0)

	err := s.Store.DeleteQuotes(s.Ctx, []model.QuoteID{"q1", "missing"})
	s.ErrorIs(err, model.ErrQuoteNotFound)
	_, err = s.Store.GetQuote(s.Ctx, "q1")
	s.NoError(err)

	s.Require().NoError(s.Store.DeleteQuotes(s.Ctx, []model.QuoteID{"q1", "q2"}))
	all, err := s.Store.ListQuotes(s.Ctx, model.QuoteFilter{})
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *Suite) TestCountQuotes() {
	s.quote("q1", model.QuoteStatusPending, model.CategoryLife, 0)
	s.quote("q2", model.QuoteStatusApproved, model.CategoryLife, 0)
	s.quote("q3", model.QuoteStatusRejected, model.CategoryLife, 0)
	s.quote("q4", model.QuoteStatusPending, model.CategoryLife, 0)

	stats, err := s.Store.CountQuotes(s.Ctx)
	s.Require().NoError(err)
	s.Equal(model.QuoteStats{Pending: 2, Approved: 1, Rejected: 1}, stats)
	s.Equal(4, stats.Total())
}
