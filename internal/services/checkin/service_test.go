package checkin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/mysphere/internal/chain"
	"github.com/mcoot/mysphere/internal/chain/sim"
	"github.com/mcoot/mysphere/internal/dependencies/mocks"
	"github.com/mcoot/mysphere/internal/model"
	"github.com/mcoot/mysphere/internal/services/rules"
	"github.com/mcoot/mysphere/internal/storage"
	"github.com/mcoot/mysphere/internal/storage/memory"
	"github.com/mcoot/mysphere/internal/testutil"
)

const alice = model.Address("0x00000000000000000000000000000000000000a1")

// recorder collects published updates
type recorder struct {
	mu      sync.Mutex
	updates []model.TxUpdate
}

func (r *recorder) observe(u model.TxUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) phases() []model.TxPhase {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.TxPhase, len(r.updates))
	for i, u := range r.updates {
		out[i] = u.Phase
	}
	return out
}

func (r *recorder) last() model.TxUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates[len(r.updates)-1]
}

type ServiceSuite struct {
	suite.Suite
	store    *memory.Storage
	clock    *mocks.MockClock
	random   *mocks.MockRandom
	ledger   *sim.Ledger
	recorder *recorder
	service  *Service
	ctx      context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.recorder = &recorder{}
	s.ctx = context.Background()

	engine := rules.New(rules.DefaultConfig())
	s.ledger = sim.New(sim.Config{AutoMine: true}, s.store, engine, s.clock, s.random, testutil.NopLogger())
	s.service = NewService(s.ledger, engine, s.clock, s.recorder.observe, testutil.NopLogger())
}

func (s *ServiceSuite) seed(n int, kind model.ElementType, level uint8) []model.ElementID {
	ids := make([]model.ElementID, n)
	els := make([]*model.Element, n)
	for i := range els {
		ids[i] = model.ElementID(fmt.Sprintf("seed-%d-%d-%d", kind, level, i))
		els[i] = model.NewElement(ids[i], alice, kind, model.RarityCommon, level, s.clock.Now())
	}
	s.Require().NoError(s.store.ApplyBatch(s.ctx, storage.LedgerBatch{Mint: els}))
	return ids
}

func (s *ServiceSuite) TestRegister() {
	res, err := s.service.Register(s.ctx, alice)
	s.Require().NoError(err)
	s.False(res.AlreadyRegistered)
	s.Require().NotNil(res.Receipt)
	s.Equal([]model.TxPhase{model.TxPending, model.TxConfirmed}, s.recorder.phases())
}

func (s *ServiceSuite) TestDuplicateRegisterIsAbsorbed() {
	_, err := s.service.Register(s.ctx, alice)
	s.Require().NoError(err)

	res, err := s.service.Register(s.ctx, alice)
	s.Require().NoError(err)
	s.True(res.AlreadyRegistered)
	s.Nil(res.Receipt)
	s.Len(s.recorder.phases(), 2)
}

func (s *ServiceSuite) TestCheckInRegistersImplicitly() {
	res, err := s.service.CheckIn(s.ctx, alice)
	s.Require().NoError(err)
	s.True(res.Registered)
	s.Equal(uint64(1), res.Receipt.Player.Streak)
	s.Equal(uint64(100), res.Receipt.Player.Experience)

	// register pending+confirmed, then check-in pending+confirmed
	s.Equal([]model.TxPhase{model.TxPending, model.TxConfirmed, model.TxPending, model.TxConfirmed}, s.recorder.phases())
	last := s.recorder.last()
	s.Equal(model.TxCheckIn, last.Method)
	s.NotNil(last.Reward)
	s.Equal(model.ConfirmedNoticeTTL, last.NoticeTTL())
}

func (s *ServiceSuite) TestDoubleCheckInHitsCooldown() {
	_, err := s.service.CheckIn(s.ctx, alice)
	s.Require().NoError(err)

	s.clock.Advance(time.Hour)
	_, err = s.service.CheckIn(s.ctx, alice)

	var cooldown *model.CooldownError
	s.Require().ErrorAs(err, &cooldown)
	s.Equal(int64(23), cooldown.HoursRemaining())

	last := s.recorder.last()
	s.Equal(model.TxFailed, last.Phase)
	s.Empty(last.Hash)
	s.Equal(model.FailedNoticeTTL, last.NoticeTTL())

	p, err := s.ledger.Player(s.ctx, alice)
	s.Require().NoError(err)
	s.Equal(uint64(1), p.Streak)
}

func (s *ServiceSuite) TestStreakGrowsDaily() {
	for day := 0; day < 3; day++ {
		res, err := s.service.CheckIn(s.ctx, alice)
		s.Require().NoError(err)
		s.Equal(uint64(day+1), res.Receipt.Player.Streak)
		s.clock.Advance(24 * time.Hour)
	}
}

func (s *ServiceSuite) TestStatus() {
	st, err := s.service.Status(s.ctx, alice)
	s.Require().NoError(err)
	s.False(st.Player.IsRegistered())
	s.False(st.CanCheckIn)

	_, err = s.service.CheckIn(s.ctx, alice)
	s.Require().NoError(err)
	s.clock.Advance(90 * time.Minute)

	st, err = s.service.Status(s.ctx, alice)
	s.Require().NoError(err)
	s.False(st.CanCheckIn)
	s.Equal(int64(23), st.HoursUntilCheckIn)
	s.Require().NotNil(st.NextCheckIn)
	s.Len(st.Elements, 1)
	s.Equal(uint64(500), st.LevelUpThreshold)
	s.False(st.CanLevelUp)

	s.clock.Advance(23 * time.Hour)
	st, err = s.service.Status(s.ctx, alice)
	s.Require().NoError(err)
	s.True(st.CanCheckIn)
	s.Nil(st.NextCheckIn)
}

func (s *ServiceSuite) TestFuseThreeIntoOne() {
	_, err := s.service.Register(s.ctx, alice)
	s.Require().NoError(err)
	ids := s.seed(3, model.ElementTechLab, 2)

	res, err := s.service.FuseElements(s.ctx, alice, ids)
	s.Require().NoError(err)
	s.Require().NotNil(res.Receipt.Fusion)
	minted := res.Receipt.Fusion.Minted
	s.Equal(uint8(3), minted.Level)
	s.Equal(model.ElementTechLab, minted.Type)

	els, err := s.ledger.Elements(s.ctx, alice)
	s.Require().NoError(err)
	s.Require().Len(els, 1)
	s.Equal(minted.ID, els[0].ID)
	s.NotNil(s.recorder.last().Fusion)
}

func (s *ServiceSuite) TestInvalidFusionMutatesNothing() {
	_, err := s.service.Register(s.ctx, alice)
	s.Require().NoError(err)
	reactors := s.seed(2, model.ElementReactor, 1)
	storages := s.seed(1, model.ElementStorage, 1)
	before, _ := s.ledger.Elements(s.ctx, alice)
	block := s.ledger.BlockNumber()

	cases := []struct {
		ids  []model.ElementID
		want error
	}{
		{reactors, model.ErrInvalidFusionCount},
		{append(append([]model.ElementID{}, reactors...), storages...), model.ErrFusionMismatch},
		{append(append([]model.ElementID{}, reactors...), "someone-elses"), model.ErrElementNotOwned},
		{[]model.ElementID{reactors[0], reactors[0], reactors[1]}, model.ErrInvalidFusionCount},
	}
	for _, tc := range cases {
		_, err := s.service.FuseElements(s.ctx, alice, tc.ids)
		s.ErrorIs(err, tc.want)
		s.Equal(model.TxFailed, s.recorder.last().Phase)
	}

	after, _ := s.ledger.Elements(s.ctx, alice)
	s.Equal(before, after)
	s.Equal(block, s.ledger.BlockNumber())
}

func (s *ServiceSuite) TestFuseRequiresRegistration() {
	_, err := s.service.FuseElements(s.ctx, alice, []model.ElementID{"a", "b", "c"})
	s.ErrorIs(err, model.ErrNotRegistered)
}

func (s *ServiceSuite) TestLevelUp() {
	_, err := s.service.Register(s.ctx, alice)
	s.Require().NoError(err)

	_, err = s.service.LevelUp(s.ctx, alice)
	s.ErrorIs(err, model.ErrLevelUpNotReady)

	p, _ := s.store.GetPlayer(s.ctx, alice)
	p.Experience = 500
	s.Require().NoError(s.store.ApplyBatch(s.ctx, storage.LedgerBatch{Player: p}))
	s.seed(1, model.ElementReactor, 1)

	res, err := s.service.LevelUp(s.ctx, alice)
	s.Require().NoError(err)
	s.Equal(uint8(2), res.Receipt.Player.BaseLevel)
}

func (s *ServiceSuite) TestCancelledWaitPublishesNoFinalPhase() {
	engine := rules.New(rules.DefaultConfig())
	ledger := sim.New(sim.Config{AutoMine: false}, s.store, engine, s.clock, s.random, testutil.NopLogger())
	service := NewService(ledger, engine, s.clock, s.recorder.observe, testutil.NopLogger())

	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Millisecond)
	defer cancel()
	_, err := service.Register(ctx, alice)
	s.ErrorIs(err, context.DeadlineExceeded)
	s.Equal([]model.TxPhase{model.TxPending}, s.recorder.phases())
	s.Equal(1, ledger.Pending())
}

// stubLedger always reports the caller unregistered on check-in
type stubLedger struct {
	chain.Ledger
	registers int
	checkIns  int
	regErr    error
}

func (l *stubLedger) Player(ctx context.Context, addr model.Address) (*model.Player, error) {
	return &model.Player{Address: addr}, nil
}

func (l *stubLedger) Register(ctx context.Context, addr model.Address) (chain.Tx, error) {
	l.registers++
	if l.regErr != nil {
		return nil, l.regErr
	}
	return stubTx{}, nil
}

func (l *stubLedger) CheckIn(ctx context.Context, addr model.Address) (chain.Tx, error) {
	l.checkIns++
	return nil, model.ErrNotRegistered
}

type stubTx struct{}

func (stubTx) Hash() model.TxHash { return "0x01" }

func (stubTx) Wait(ctx context.Context) (*chain.Receipt, error) {
	return &chain.Receipt{Hash: "0x01", BlockNumber: 1}, nil
}

func (s *ServiceSuite) TestCheckInRetriesOnlyOnce() {
	ledger := &stubLedger{}
	service := NewService(ledger, rules.New(rules.Config{}), s.clock, nil, testutil.NopLogger())

	_, err := service.CheckIn(s.ctx, alice)
	s.ErrorIs(err, model.ErrNotRegistered)
	s.Equal(1, ledger.registers)
	s.Equal(2, ledger.checkIns)
}

func (s *ServiceSuite) TestCheckInRegisterFailureIsReturned() {
	boom := errors.New("wallet disconnected")
	ledger := &stubLedger{regErr: boom}
	service := NewService(ledger, rules.New(rules.Config{}), s.clock, s.recorder.observe, testutil.NopLogger())

	_, err := service.CheckIn(s.ctx, alice)
	s.ErrorIs(err, boom)
	s.Equal(1, ledger.checkIns)
	s.Equal(model.TxRegister, s.recorder.last().Method)
	s.Equal(model.TxFailed, s.recorder.last().Phase)
}

func (s *ServiceSuite) TestCheckInAbsorbsDuplicateRegister() {
	ledger := &stubLedger{regErr: model.ErrAlreadyRegistered}
	service := NewService(ledger, rules.New(rules.Config{}), s.clock, nil, testutil.NopLogger())

	_, err := service.CheckIn(s.ctx, alice)
	s.ErrorIs(err, model.ErrNotRegistered)
	s.Equal(1, ledger.registers)
	s.Equal(2, ledger.checkIns)
}

func (s *ServiceSuite) TestObserversFanOut() {
	var a, b int
	obs := Observers(func(model.TxUpdate) { a++ }, nil, func(model.TxUpdate) { b++ })
	obs(model.TxUpdate{})
	s.Equal(1, a)
	s.Equal(1, b)
}
