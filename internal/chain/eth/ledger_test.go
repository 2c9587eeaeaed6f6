package eth

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/mysphere/internal/contract"
	"github.com/mcoot/mysphere/internal/model"
	"github.com/mcoot/mysphere/internal/testutil"
)

const (
	contractAddr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	// Well-known development key
	devKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress = model.Address("0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266")
)

// fakeBackend answers eth_call from canned outputs and walks a transaction
// as far as gas estimation. Any other node call panics.
type fakeBackend struct {
	Backend
	outputs     map[string][]byte
	head        *types.Header
	estimateErr error
}

func (f *fakeBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if f.head == nil {
		return nil, errors.New("no head")
	}
	return f.head, nil
}

func (f *fakeBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeBackend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 0, nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return 21000, nil
}

func (f *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, block *big.Int) ([]byte, error) {
	out, ok := f.outputs[hex.EncodeToString(call.Data[:4])]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return out, nil
}

func (f *fakeBackend) respond(method string, values ...interface{}) error {
	m := contract.ABI().Methods[method]
	data, err := m.Outputs.Pack(values...)
	if err != nil {
		return err
	}
	f.outputs[hex.EncodeToString(m.ID)] = data
	return nil
}

type LedgerSuite struct {
	suite.Suite
	backend *fakeBackend
	ledger  *Ledger
	ctx     context.Context
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.backend = &fakeBackend{outputs: make(map[string][]byte)}
	cfg := DefaultConfig()
	cfg.ContractAddress = contractAddr
	cfg.ChainID = 31337
	cfg.PrivateKeys = []string{"0x" + devKey}

	l, err := New(cfg, s.backend, testutil.NopLogger())
	s.Require().NoError(err)
	s.ledger = l
	s.ctx = context.Background()
}

func (s *LedgerSuite) TestRejectsBadContractAddress() {
	_, err := New(Config{ContractAddress: "nope"}, s.backend, testutil.NopLogger())
	s.ErrorIs(err, model.ErrInvalidAddress)
}

func (s *LedgerSuite) TestRejectsBadPrivateKey() {
	_, err := New(Config{ContractAddress: contractAddr, ChainID: 1, PrivateKeys: []string{"zz"}}, s.backend, testutil.NopLogger())
	s.Error(err)
}

func (s *LedgerSuite) TestSignersFromPrivateKeys() {
	s.Equal([]model.Address{devAddress}, s.ledger.Signers())
}

func (s *LedgerSuite) TestWriteWithoutSigner() {
	other := model.Address("0x00000000000000000000000000000000000000b2")
	_, err := s.ledger.CheckIn(s.ctx, other)
	s.ErrorIs(err, model.ErrNoSigner)
}

func (s *LedgerSuite) TestPlayerRead() {
	s.Require().NoError(s.backend.respond(contract.MethodPlayers,
		big.NewInt(700), big.NewInt(1700000000), big.NewInt(4), uint8(2), true))

	p, err := s.ledger.Player(s.ctx, devAddress)
	s.Require().NoError(err)
	s.Equal(model.Player{
		Address:     devAddress,
		Experience:  700,
		LastCheckIn: 1700000000,
		Streak:      4,
		BaseLevel:   2,
		Active:      true,
	}, *p)
}

func (s *LedgerSuite) TestElementsRead() {
	recs := []contract.NFTRecord{
		{Id: "7", ElementType: 3, Rarity: 2, Level: 4, Power: big.NewInt(1200), MintedAt: big.NewInt(1700000000), Special: true},
		{Id: "9", ElementType: 0, Rarity: 0, Level: 1, Power: big.NewInt(100), MintedAt: big.NewInt(1700000100)},
	}
	s.Require().NoError(s.backend.respond(contract.MethodGetPlayerNFTs, recs))

	els, err := s.ledger.Elements(s.ctx, devAddress)
	s.Require().NoError(err)
	s.Require().Len(els, 2)

	s.Equal(model.ElementID("7"), els[0].ID)
	s.Equal(model.ElementLivingModule, els[0].Type)
	s.Equal(model.RarityRare, els[0].Rarity)
	s.Equal(uint64(1200), els[0].Power)
	s.True(els[0].Special)
	s.Equal(devAddress, els[0].Owner)
	s.Equal(int64(1700000100), els[1].MintedAt.Unix())
}

func (s *LedgerSuite) TestElementsIgnoreInconsistentContractPower() {
	logger, logs := testutil.BufferLogger()
	s.ledger.logger = logger
	recs := []contract.NFTRecord{
		{Id: "7", ElementType: 3, Rarity: 2, Level: 4, Power: big.NewInt(5000), MintedAt: big.NewInt(1700000000)},
	}
	s.Require().NoError(s.backend.respond(contract.MethodGetPlayerNFTs, recs))

	els, err := s.ledger.Elements(s.ctx, devAddress)
	s.Require().NoError(err)
	s.Require().Len(els, 1)
	s.Equal(uint64(1200), els[0].Power)

	entry := logs.Find("contract power differs from derived power")
	s.Require().NotNil(entry)
	s.Equal("5000", entry["reported"])
}

func (s *LedgerSuite) TestReadFailureIsWrapped() {
	_, err := s.ledger.Player(s.ctx, devAddress)
	s.ErrorContains(err, "call players")
}

func (s *LedgerSuite) TestSubmitErrorMapsRevertReasons() {
	err := submitError(model.TxCheckIn, errors.New("failed to estimate gas needed: execution reverted: Not registered"))
	s.ErrorIs(err, model.ErrNotRegistered)

	err = submitError(model.TxFuse, errors.New("execution reverted: Elements must share type and level"))
	s.ErrorIs(err, model.ErrFusionMismatch)

	transport := errors.New("connection refused")
	err = submitError(model.TxRegister, transport)
	s.ErrorIs(err, transport)
	s.ErrorContains(err, "submit register")
}

func (s *LedgerSuite) TestCheckInCooldownRevertCarriesRemainingWait() {
	last := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.Require().NoError(s.backend.respond(contract.MethodPlayers,
		big.NewInt(700), big.NewInt(last.Unix()), big.NewInt(4), uint8(2), true))
	s.backend.head = &types.Header{
		Number:  big.NewInt(10),
		Time:    uint64(last.Add(time.Hour).Unix()),
		BaseFee: big.NewInt(1),
	}
	s.backend.estimateErr = errors.New("execution reverted: " + contract.ReasonCooldown)

	tx, err := s.ledger.CheckIn(s.ctx, devAddress)
	s.Nil(tx)
	s.ErrorIs(err, model.ErrCooldownActive)

	var cd *model.CooldownError
	s.Require().ErrorAs(err, &cd)
	s.Equal(23*time.Hour, cd.Remaining)
	s.Equal(int64(23), cd.HoursRemaining())
}

func (s *LedgerSuite) TestCheckInCooldownWithPendingCheckInReportsFullWindow() {
	// The stored check-in is already a day old: the one blocking us is unmined
	last := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.Require().NoError(s.backend.respond(contract.MethodPlayers,
		big.NewInt(700), big.NewInt(last.Unix()), big.NewInt(4), uint8(2), true))
	s.backend.head = &types.Header{
		Number:  big.NewInt(10),
		Time:    uint64(last.Add(30 * time.Hour).Unix()),
		BaseFee: big.NewInt(1),
	}
	s.backend.estimateErr = errors.New("execution reverted: " + contract.ReasonCooldown)

	_, err := s.ledger.CheckIn(s.ctx, devAddress)
	var cd *model.CooldownError
	s.Require().ErrorAs(err, &cd)
	s.Equal(24*time.Hour, cd.Remaining)
}

func (s *LedgerSuite) TestDecodeElementsFused() {
	event := contract.ABI().Events[contract.EventElementsFused]
	data, err := event.Inputs.NonIndexed().Pack(
		[]string{"1", "2", "3"}, "4", uint8(1), uint8(3), uint8(2), true, true, false)
	s.Require().NoError(err)

	lg := types.Log{
		Address: common.HexToAddress(contractAddr),
		Topics:  []common.Hash{event.ID, common.BytesToHash(devAddress.Common().Bytes())},
		Data:    data,
	}
	at := time.Unix(1700000000, 0).UTC()

	outcome, err := s.ledger.decodeFused(lg, devAddress, at)
	s.Require().NoError(err)
	s.Equal([]model.ElementID{"1", "2", "3"}, outcome.Burned)
	s.Equal(model.ElementID("4"), outcome.Minted.ID)
	s.Equal(model.ElementStorage, outcome.Minted.Type)
	s.Equal(uint8(3), outcome.Minted.Level)
	s.Equal(model.RarityRare, outcome.Minted.Rarity)
	s.Equal(uint64(900), outcome.Minted.Power)
	s.True(outcome.BonusLevel)
	s.True(outcome.RarityUpgraded)
	s.False(outcome.SpecialAbility)
	s.True(at.Equal(outcome.Minted.MintedAt))
}

func (s *LedgerSuite) TestDecodeCheckedIn() {
	event := contract.ABI().Events[contract.EventCheckedIn]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(5), big.NewInt(500), "42", uint8(4))
	s.Require().NoError(err)

	lg := types.Log{
		Address: common.HexToAddress(contractAddr),
		Topics:  []common.Hash{event.ID, common.BytesToHash(devAddress.Common().Bytes())},
		Data:    data,
	}

	reward, err := s.ledger.decodeCheckedIn(lg, devAddress, time.Unix(0, 0))
	s.Require().NoError(err)
	s.Equal(model.ElementID("42"), reward.ID)
	s.Equal(model.ElementTechLab, reward.Type)
	s.Equal(model.RarityCommon, reward.Rarity)
}

func (s *LedgerSuite) TestDecodeRejectsWrongEvent() {
	event := contract.ABI().Events[contract.EventLeveledUp]
	data, err := event.Inputs.NonIndexed().Pack(uint8(3))
	s.Require().NoError(err)

	lg := types.Log{Topics: []common.Hash{event.ID, {}}, Data: data}
	_, err = s.ledger.decodeFused(lg, devAddress, time.Now())
	s.Error(err)
}
