// Package eth implements chain.Ledger against a deployed game contract over
// JSON-RPC.
package eth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/mcoot/mysphere/internal/chain"
	"github.com/mcoot/mysphere/internal/contract"
	"github.com/mcoot/mysphere/internal/model"
)

// Backend is the node API the ledger needs; *ethclient.Client satisfies it
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Ledger talks to the game contract through a node
type Ledger struct {
	backend  Backend
	address  common.Address
	abi      abi.ABI
	contract *bind.BoundContract
	signers  map[model.Address]*bind.TransactOpts
	cfg      Config
	logger   *slog.Logger
	close    func()
}

var _ chain.Ledger = (*Ledger)(nil)

// Dial connects to cfg.RPCURL and creates a ledger
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Ledger, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.RPCURL, err)
	}
	if cfg.ChainID == 0 {
		id, err := client.ChainID(ctx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("query chain id: %w", err)
		}
		cfg.ChainID = id.Int64()
	}
	l, err := New(cfg, client, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	l.close = client.Close
	return l, nil
}

// New creates a ledger over an existing backend
func New(cfg Config, backend Backend, logger *slog.Logger) (*Ledger, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("contract address %q: %w", cfg.ContractAddress, model.ErrInvalidAddress)
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = DefaultConfig().ReceiptTimeout
	}
	if cfg.CheckInCooldown <= 0 {
		cfg.CheckInCooldown = DefaultConfig().CheckInCooldown
	}

	address := common.HexToAddress(cfg.ContractAddress)
	parsed := contract.ABI()

	l := &Ledger{
		backend:  backend,
		address:  address,
		abi:      parsed,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		signers:  make(map[model.Address]*bind.TransactOpts),
		cfg:      cfg,
		logger:   logger,
	}

	for i, hexKey := range cfg.PrivateKeys {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("private key %d: %w", i, err)
		}
		if err := l.AddSigner(key); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// AddSigner lets the ledger submit transactions for the key's address
func (l *Ledger) AddSigner(key *ecdsa.PrivateKey) error {
	opts, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(l.cfg.ChainID))
	if err != nil {
		return fmt.Errorf("create transactor: %w", err)
	}
	if l.cfg.GasLimit > 0 {
		opts.GasLimit = l.cfg.GasLimit
	}
	addr, err := model.ParseAddress(opts.From.Hex())
	if err != nil {
		return err
	}
	l.signers[addr] = opts
	return nil
}

// Signers lists the addresses the ledger can sign for
func (l *Ledger) Signers() []model.Address {
	out := make([]model.Address, 0, len(l.signers))
	for addr := range l.signers {
		out = append(out, addr)
	}
	return out
}

// Close releases the node connection when the ledger owns it
func (l *Ledger) Close() {
	if l.close != nil {
		l.close()
	}
}

// Reads

func (l *Ledger) Player(ctx context.Context, addr model.Address) (*model.Player, error) {
	var out []interface{}
	if err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, contract.MethodPlayers, addr.Common()); err != nil {
		return nil, fmt.Errorf("call players: %w", err)
	}
	if len(out) != 5 {
		return nil, fmt.Errorf("call players: unexpected %d outputs", len(out))
	}
	rec := contract.PlayerRecord{
		Experience:  *abi.ConvertType(out[0], new(*big.Int)).(**big.Int),
		LastCheckIn: *abi.ConvertType(out[1], new(*big.Int)).(**big.Int),
		Streak:      *abi.ConvertType(out[2], new(*big.Int)).(**big.Int),
		BaseLevel:   *abi.ConvertType(out[3], new(uint8)).(*uint8),
		Active:      *abi.ConvertType(out[4], new(bool)).(*bool),
	}
	return rec.ToPlayer(addr), nil
}

func (l *Ledger) Elements(ctx context.Context, addr model.Address) ([]*model.Element, error) {
	var out []interface{}
	if err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, contract.MethodGetPlayerNFTs, addr.Common()); err != nil {
		return nil, fmt.Errorf("call getPlayerNFTs: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("call getPlayerNFTs: unexpected %d outputs", len(out))
	}
	recs := *abi.ConvertType(out[0], new([]contract.NFTRecord)).(*[]contract.NFTRecord)

	els := make([]*model.Element, len(recs))
	for i, rec := range recs {
		els[i] = rec.ToElement(addr)
		if rec.PowerMismatch(els[i]) {
			l.logger.Warn("contract power differs from derived power",
				slog.String("element_id", rec.Id),
				slog.String("reported", rec.Power.String()),
				slog.Uint64("derived", els[i].Power),
			)
		}
	}
	return els, nil
}

// Writes

func (l *Ledger) Register(ctx context.Context, addr model.Address) (chain.Tx, error) {
	return l.transact(ctx, addr, model.TxRegister)
}

func (l *Ledger) CheckIn(ctx context.Context, addr model.Address) (chain.Tx, error) {
	tx, err := l.transact(ctx, addr, model.TxCheckIn)
	if errors.Is(err, model.ErrCooldownActive) {
		return nil, l.cooldownError(ctx, addr)
	}
	return tx, err
}

// cooldownError rebuilds the wait behind a cooldown revert, measured against
// the latest block since that is the clock the contract checks
func (l *Ledger) cooldownError(ctx context.Context, addr model.Address) error {
	remaining := l.cfg.CheckInCooldown

	p, err := l.Player(ctx, addr)
	if err != nil {
		l.logger.Warn("failed to read player for cooldown",
			slog.String("address", string(addr)),
			slog.String("error", err.Error()),
		)
		return &model.CooldownError{Remaining: remaining}
	}

	now := time.Now().UTC()
	if header, err := l.backend.HeaderByNumber(ctx, nil); err == nil {
		now = time.Unix(int64(header.Time), 0).UTC()
	}
	// A non-positive wait means the blocking check-in is still unmined,
	// so the whole interval lies ahead
	if left := p.LastCheckInTime().Add(l.cfg.CheckInCooldown).Sub(now); left > 0 {
		remaining = left
	}
	return &model.CooldownError{Remaining: remaining}
}

func (l *Ledger) FuseElements(ctx context.Context, addr model.Address, ids []model.ElementID) (chain.Tx, error) {
	args := make([]string, len(ids))
	for i, id := range ids {
		args[i] = string(id)
	}
	return l.transact(ctx, addr, model.TxFuse, args)
}

func (l *Ledger) LevelUp(ctx context.Context, addr model.Address) (chain.Tx, error) {
	return l.transact(ctx, addr, model.TxLevelUp)
}

func (l *Ledger) transact(ctx context.Context, addr model.Address, method model.TxMethod, params ...interface{}) (chain.Tx, error) {
	signer, ok := l.signers[addr]
	if !ok {
		return nil, fmt.Errorf("%s: %w", addr, model.ErrNoSigner)
	}
	opts := *signer
	opts.Context = ctx

	tx, err := l.contract.Transact(&opts, string(method), params...)
	if err != nil {
		return nil, submitError(method, err)
	}

	l.logger.Info("transaction sent",
		slog.String("hash", tx.Hash().Hex()),
		slog.String("method", string(method)),
		slog.String("from", string(addr)),
		slog.Uint64("nonce", tx.Nonce()),
	)
	return &ethTx{ledger: l, tx: tx, method: method, from: addr}, nil
}

// submitError turns a revert surfaced during gas estimation into the domain
// error it encodes. Transport failures are wrapped as they are.
func submitError(method model.TxMethod, err error) error {
	if domain := contract.ErrorForReason(err.Error()); domain != nil {
		return domain
	}
	return fmt.Errorf("submit %s: %w", method, err)
}

type ethTx struct {
	ledger *Ledger
	tx     *types.Transaction
	method model.TxMethod
	from   model.Address
}

func (t *ethTx) Hash() model.TxHash {
	return model.TxHash(t.tx.Hash().Hex())
}

func (t *ethTx) Wait(ctx context.Context) (*chain.Receipt, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.ledger.cfg.ReceiptTimeout)
		defer cancel()
	}
	return t.ledger.wait(ctx, t)
}

func (l *Ledger) wait(ctx context.Context, t *ethTx) (*chain.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, l.backend, t.tx)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", t.tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		reason := l.revertReason(ctx, t, receipt.BlockNumber)
		cause := contract.ErrorForReason(reason)
		if errors.Is(cause, model.ErrCooldownActive) {
			cause = l.cooldownError(ctx, t.from)
		}
		return nil, &model.RevertError{Method: t.method, Reason: reason, Cause: cause}
	}

	out := &chain.Receipt{
		Hash:        t.Hash(),
		Method:      t.method,
		BlockNumber: receipt.BlockNumber.Uint64(),
	}

	blockTime := time.Now().UTC()
	if header, err := l.backend.HeaderByNumber(ctx, receipt.BlockNumber); err == nil {
		blockTime = time.Unix(int64(header.Time), 0).UTC()
	}

	for _, lg := range receipt.Logs {
		if lg.Address != l.address || len(lg.Topics) == 0 {
			continue
		}
		switch lg.Topics[0] {
		case l.abi.Events[contract.EventCheckedIn].ID:
			reward, err := l.decodeCheckedIn(*lg, t.from, blockTime)
			if err != nil {
				return nil, err
			}
			out.Reward = reward
		case l.abi.Events[contract.EventElementsFused].ID:
			outcome, err := l.decodeFused(*lg, t.from, blockTime)
			if err != nil {
				return nil, err
			}
			out.Fusion = outcome
		}
	}

	if p, err := l.Player(ctx, t.from); err == nil {
		out.Player = p
	} else {
		l.logger.Warn("failed to refresh player after receipt",
			slog.String("hash", string(out.Hash)),
			slog.String("error", err.Error()),
		)
	}
	return out, nil
}

func (l *Ledger) decodeCheckedIn(lg types.Log, owner model.Address, at time.Time) (*model.Element, error) {
	var ev contract.CheckedInEvent
	if err := l.contract.UnpackLog(&ev, contract.EventCheckedIn, lg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", contract.EventCheckedIn, err)
	}
	return model.NewElement(model.ElementID(ev.RewardId), owner, model.ElementType(ev.ElementType), model.RarityCommon, 1, at), nil
}

func (l *Ledger) decodeFused(lg types.Log, owner model.Address, at time.Time) (*model.FusionOutcome, error) {
	var ev contract.ElementsFusedEvent
	if err := l.contract.UnpackLog(&ev, contract.EventElementsFused, lg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", contract.EventElementsFused, err)
	}
	return ev.ToOutcome(owner, at), nil
}

// revertReason replays the call against the parent block to recover the
// require() message, which receipts do not carry.
func (l *Ledger) revertReason(ctx context.Context, t *ethTx, block *big.Int) string {
	to := l.address
	msg := ethereum.CallMsg{
		From:  t.from.Common(),
		To:    &to,
		Gas:   t.tx.Gas(),
		Value: t.tx.Value(),
		Data:  t.tx.Data(),
	}
	parent := new(big.Int).Sub(block, big.NewInt(1))
	_, err := l.backend.CallContract(ctx, msg, parent)
	if err == nil {
		return "unknown"
	}
	var dataErr interface{ ErrorData() interface{} }
	if errors.As(err, &dataErr) {
		if hexData, ok := dataErr.ErrorData().(string); ok {
			if reason, uerr := abi.UnpackRevert(common.FromHex(hexData)); uerr == nil {
				return reason
			}
		}
	}
	return strings.TrimPrefix(err.Error(), "execution reverted: ")
}
