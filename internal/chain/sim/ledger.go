// Package sim is an in-process ledger that enforces the game contract's
// rules over a storage backend. Transactions are validated on submission,
// queued, and applied when a block is mined.
package sim

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"

	"github.com/mcoot/mysphere/internal/chain"
	"github.com/mcoot/mysphere/internal/contract"
	"github.com/mcoot/mysphere/internal/dependencies/clock"
	"github.com/mcoot/mysphere/internal/dependencies/random"
	"github.com/mcoot/mysphere/internal/model"
	"github.com/mcoot/mysphere/internal/services/rules"
	"github.com/mcoot/mysphere/internal/storage"
)

// Config controls block production
type Config struct {
	// AutoMine mines every transaction as soon as it is submitted
	AutoMine bool
	// BlockInterval is the mining period used by Run when AutoMine is off
	BlockInterval time.Duration
}

// DefaultConfig returns a ledger that mines a block every two seconds
func DefaultConfig() Config {
	return Config{
		AutoMine:      false,
		BlockInterval: 2 * time.Second,
	}
}

// Ledger is a simulated chain.Ledger
type Ledger struct {
	mu      sync.Mutex
	store   storage.LedgerStore
	engine  *rules.Engine
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger
	cfg     Config
	newID   func() model.ElementID
	pending []*tx
	block   uint64
	nonce   uint64
}

// New creates a simulated ledger
func New(
	cfg Config,
	store storage.LedgerStore,
	engine *rules.Engine,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Ledger {
	if cfg.BlockInterval <= 0 {
		cfg.BlockInterval = DefaultConfig().BlockInterval
	}
	return &Ledger{
		store:  store,
		engine: engine,
		clock:  clock,
		random: random,
		logger: logger,
		cfg:    cfg,
		newID:  func() model.ElementID { return model.ElementID(uuid.NewString()) },
	}
}

var _ chain.Ledger = (*Ledger)(nil)

type tx struct {
	hash    model.TxHash
	method  model.TxMethod
	from    model.Address
	ids     []model.ElementID
	done    chan struct{}
	receipt *chain.Receipt
	err     error
}

func (t *tx) Hash() model.TxHash { return t.hash }

func (t *tx) Wait(ctx context.Context) (*chain.Receipt, error) {
	select {
	case <-t.done:
		return t.receipt, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reads

func (l *Ledger) Player(ctx context.Context, addr model.Address) (*model.Player, error) {
	p, err := l.store.GetPlayer(ctx, addr)
	if errors.Is(err, model.ErrPlayerNotFound) {
		return &model.Player{Address: addr}, nil
	}
	return p, err
}

func (l *Ledger) Elements(ctx context.Context, addr model.Address) ([]*model.Element, error) {
	return l.store.ListElements(ctx, addr)
}

// Writes

func (l *Ledger) Register(ctx context.Context, addr model.Address) (chain.Tx, error) {
	return l.submit(ctx, model.TxRegister, addr, nil)
}

func (l *Ledger) CheckIn(ctx context.Context, addr model.Address) (chain.Tx, error) {
	return l.submit(ctx, model.TxCheckIn, addr, nil)
}

func (l *Ledger) FuseElements(ctx context.Context, addr model.Address, ids []model.ElementID) (chain.Tx, error) {
	return l.submit(ctx, model.TxFuse, addr, append([]model.ElementID(nil), ids...))
}

func (l *Ledger) LevelUp(ctx context.Context, addr model.Address) (chain.Tx, error) {
	return l.submit(ctx, model.TxLevelUp, addr, nil)
}

// Pending returns the number of transactions waiting for a block
func (l *Ledger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// BlockNumber returns the height of the last mined block
func (l *Ledger) BlockNumber() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.block
}

func (l *Ledger) submit(ctx context.Context, method model.TxMethod, from model.Address, ids []model.ElementID) (chain.Tx, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Gas estimation runs the call against current state
	if err := l.validate(ctx, method, from, ids); err != nil {
		return nil, err
	}

	l.nonce++
	t := &tx{
		hash:   l.txHash(method, from, ids),
		method: method,
		from:   from,
		ids:    ids,
		done:   make(chan struct{}),
	}
	l.pending = append(l.pending, t)

	l.logger.Debug("transaction submitted",
		slog.String("hash", string(t.hash)),
		slog.String("method", string(method)),
		slog.String("from", string(from)),
	)

	if l.cfg.AutoMine {
		l.mineLocked(ctx)
	}
	return t, nil
}

// Mine applies every pending transaction in a new block and returns its number.
// No block is produced when nothing is pending.
func (l *Ledger) Mine(ctx context.Context) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mineLocked(ctx)
}

// Run mines a block every BlockInterval until ctx is done
func (l *Ledger) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.BlockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Mine(ctx)
		}
	}
}

func (l *Ledger) mineLocked(ctx context.Context) uint64 {
	if len(l.pending) == 0 {
		return l.block
	}
	l.block++
	now := l.clock.Now()

	for _, t := range l.pending {
		receipt, err := l.apply(ctx, t, now)
		if err != nil {
			var revert *model.RevertError
			if !errors.As(err, &revert) {
				err = &model.RevertError{Method: t.method, Reason: contract.ReasonFor(err), Cause: err}
			}
			l.logger.Info("transaction reverted",
				slog.String("hash", string(t.hash)),
				slog.String("method", string(t.method)),
				slog.Uint64("block", l.block),
				slog.String("reason", contract.ReasonFor(err)),
			)
			t.err = err
		} else {
			receipt.Hash = t.hash
			receipt.Method = t.method
			receipt.BlockNumber = l.block
			t.receipt = receipt
		}
		close(t.done)
	}
	l.pending = nil
	return l.block
}

func (l *Ledger) validate(ctx context.Context, method model.TxMethod, from model.Address, ids []model.ElementID) error {
	p, err := l.Player(ctx, from)
	if err != nil {
		return err
	}
	now := l.clock.Now()

	switch method {
	case model.TxRegister:
		_, err = l.engine.Register(from, p)
	case model.TxCheckIn:
		_, err = l.engine.CheckIn(p, now)
	case model.TxFuse:
		if !p.IsRegistered() {
			return model.ErrNotRegistered
		}
		_, err = l.engine.ValidateFusion(from, ids, func(id model.ElementID) (*model.Element, error) {
			return l.store.GetElement(ctx, id)
		})
	case model.TxLevelUp:
		owned, lerr := l.store.ListElements(ctx, from)
		if lerr != nil {
			return lerr
		}
		err = l.engine.CanLevelUp(p, owned)
	}
	return err
}

// apply re-runs validation against the state at mining time, rolls the
// oracle where needed and commits the result.
func (l *Ledger) apply(ctx context.Context, t *tx, now time.Time) (*chain.Receipt, error) {
	p, err := l.Player(ctx, t.from)
	if err != nil {
		return nil, err
	}

	switch t.method {
	case model.TxRegister:
		next, err := l.engine.Register(t.from, p)
		if err != nil {
			return nil, err
		}
		if err := l.store.ApplyBatch(ctx, storage.LedgerBatch{Player: next}); err != nil {
			return nil, err
		}
		return &chain.Receipt{Player: next}, nil

	case model.TxCheckIn:
		next, err := l.engine.CheckIn(p, now)
		if err != nil {
			return nil, err
		}
		kind := model.ElementType(l.random.Intn(int(model.ElementTypeCount)))
		reward := model.NewElement(l.newID(), t.from, kind, model.RarityCommon, 1, now)
		batch := storage.LedgerBatch{Player: next, Owner: t.from, Mint: []*model.Element{reward}}
		if err := l.store.ApplyBatch(ctx, batch); err != nil {
			return nil, err
		}
		return &chain.Receipt{Player: next, Reward: reward}, nil

	case model.TxFuse:
		if !p.IsRegistered() {
			return nil, model.ErrNotRegistered
		}
		inputs, err := l.engine.ValidateFusion(t.from, t.ids, func(id model.ElementID) (*model.Element, error) {
			return l.store.GetElement(ctx, id)
		})
		if err != nil {
			return nil, err
		}
		roll := l.engine.Config().FusionOdds.Roll(l.random)
		outcome := l.engine.Fuse(inputs, roll, l.newID(), now)
		minted := outcome.Minted
		batch := storage.LedgerBatch{Owner: t.from, Burn: outcome.Burned, Mint: []*model.Element{&minted}}
		if err := l.store.ApplyBatch(ctx, batch); err != nil {
			return nil, err
		}
		return &chain.Receipt{Player: p, Fusion: outcome}, nil

	case model.TxLevelUp:
		owned, err := l.store.ListElements(ctx, t.from)
		if err != nil {
			return nil, err
		}
		next, err := l.engine.LevelUp(p, owned)
		if err != nil {
			return nil, err
		}
		if err := l.store.ApplyBatch(ctx, storage.LedgerBatch{Player: next}); err != nil {
			return nil, err
		}
		return &chain.Receipt{Player: next}, nil
	}

	return nil, &model.RevertError{Method: t.method, Reason: "unknown method"}
}

// txHash derives a keccak256 hash from the sender, method, nonce and arguments
func (l *Ledger) txHash(method model.TxMethod, from model.Address, ids []model.ElementID) model.TxHash {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(from))
	h.Write([]byte(method))
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], l.nonce)
	h.Write(nonce[:])
	for _, id := range ids {
		h.Write([]byte(id))
	}
	return model.TxHash("0x" + hex.EncodeToString(h.Sum(nil)))
}
