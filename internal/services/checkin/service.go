// Package checkin drives the daily check-in, element fusion and level-up
// flows against a chain.Ledger and reports each write's lifecycle.
package checkin

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mcoot/mysphere/internal/chain"
	"github.com/mcoot/mysphere/internal/dependencies/clock"
	"github.com/mcoot/mysphere/internal/model"
	"github.com/mcoot/mysphere/internal/services/rules"
)

// Service orchestrates reads, local pre-checks and writes for one ledger
type Service struct {
	ledger   chain.Ledger
	engine   *rules.Engine
	clock    clock.Clock
	observer Observer
	logger   *slog.Logger
}

// NewService creates a check-in service. observer may be nil.
func NewService(
	ledger chain.Ledger,
	engine *rules.Engine,
	clock clock.Clock,
	observer Observer,
	logger *slog.Logger,
) *Service {
	if observer == nil {
		observer = func(model.TxUpdate) {}
	}
	return &Service{
		ledger:   ledger,
		engine:   engine,
		clock:    clock,
		observer: observer,
		logger:   logger,
	}
}

// Status is a player's dashboard view
type Status struct {
	Player            *model.Player    `json:"player"`
	Elements          []*model.Element `json:"elements"`
	CanCheckIn        bool             `json:"can_check_in"`
	NextCheckIn       *time.Time       `json:"next_check_in,omitempty"`
	HoursUntilCheckIn int64            `json:"hours_until_check_in"`
	LevelUpThreshold  uint64           `json:"level_up_threshold"`
	CanLevelUp        bool             `json:"can_level_up"`
}

// Result describes a completed write
type Result struct {
	Receipt *chain.Receipt `json:"receipt,omitempty"`
	// Registered is set when the flow had to register the player first
	Registered bool `json:"registered,omitempty"`
	// AlreadyRegistered is set when a register call found the player active
	AlreadyRegistered bool `json:"already_registered,omitempty"`
}

// Status reads the player and their elements and derives what they may do next
func (s *Service) Status(ctx context.Context, addr model.Address) (*Status, error) {
	p, err := s.ledger.Player(ctx, addr)
	if err != nil {
		return nil, err
	}
	els, err := s.ledger.Elements(ctx, addr)
	if err != nil {
		return nil, err
	}

	st := &Status{
		Player:           p,
		Elements:         els,
		LevelUpThreshold: s.engine.LevelUpThreshold(p),
	}
	if !p.IsRegistered() {
		return st, nil
	}

	var cooldown *model.CooldownError
	if err := s.engine.CheckCooldown(p, s.clock.Now()); errors.As(err, &cooldown) {
		next := s.engine.NextCheckIn(p)
		st.NextCheckIn = &next
		st.HoursUntilCheckIn = cooldown.HoursRemaining()
	} else {
		st.CanCheckIn = true
	}
	st.CanLevelUp = s.engine.CanLevelUp(p, els) == nil
	return st, nil
}

// Register activates the player. An already registered player is not an error.
func (s *Service) Register(ctx context.Context, addr model.Address) (*Result, error) {
	receipt, already, err := s.register(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &Result{Receipt: receipt, AlreadyRegistered: already}, nil
}

func (s *Service) register(ctx context.Context, addr model.Address) (*chain.Receipt, bool, error) {
	tx, err := s.ledger.Register(ctx, addr)
	if errors.Is(err, model.ErrAlreadyRegistered) {
		s.logger.Debug("player already registered", slog.String("address", string(addr)))
		return nil, true, nil
	}
	if err != nil {
		s.rejected(addr, model.TxRegister, err)
		return nil, false, err
	}

	receipt, err := s.await(ctx, addr, model.TxRegister, tx)
	if errors.Is(err, model.ErrAlreadyRegistered) {
		// Lost a race with another register for the same address
		return nil, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return receipt, false, nil
}

// CheckIn performs the daily check-in. A player the ledger reports as not
// registered is registered once and the check-in retried once; a second
// failure is returned as is.
func (s *Service) CheckIn(ctx context.Context, addr model.Address) (*Result, error) {
	p, err := s.ledger.Player(ctx, addr)
	if err != nil {
		return nil, err
	}
	if p.IsRegistered() {
		if err := s.engine.CheckCooldown(p, s.clock.Now()); err != nil {
			s.rejected(addr, model.TxCheckIn, err)
			return nil, err
		}
	}

	res := &Result{}
	tx, err := s.ledger.CheckIn(ctx, addr)
	if errors.Is(err, model.ErrNotRegistered) {
		s.logger.Info("registering player before check-in", slog.String("address", string(addr)))
		if _, _, err := s.register(ctx, addr); err != nil {
			return nil, err
		}
		res.Registered = true
		tx, err = s.ledger.CheckIn(ctx, addr)
	}
	if err != nil {
		s.rejected(addr, model.TxCheckIn, err)
		return nil, err
	}

	receipt, err := s.await(ctx, addr, model.TxCheckIn, tx)
	if err != nil {
		return nil, err
	}
	res.Receipt = receipt
	return res, nil
}

// FuseElements burns three matching elements for one of the next level.
// The selection is validated against the caller's inventory before anything
// is submitted.
func (s *Service) FuseElements(ctx context.Context, addr model.Address, ids []model.ElementID) (*Result, error) {
	p, err := s.ledger.Player(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !p.IsRegistered() {
		s.rejected(addr, model.TxFuse, model.ErrNotRegistered)
		return nil, model.ErrNotRegistered
	}

	owned, err := s.ledger.Elements(ctx, addr)
	if err != nil {
		return nil, err
	}
	byID := make(map[model.ElementID]*model.Element, len(owned))
	for _, el := range owned {
		byID[el.ID] = el
	}
	_, err = s.engine.ValidateFusion(addr, ids, func(id model.ElementID) (*model.Element, error) {
		el, ok := byID[id]
		if !ok {
			return nil, model.ErrElementNotOwned
		}
		return el, nil
	})
	if err != nil {
		s.rejected(addr, model.TxFuse, err)
		return nil, err
	}

	tx, err := s.ledger.FuseElements(ctx, addr, ids)
	if err != nil {
		s.rejected(addr, model.TxFuse, err)
		return nil, err
	}
	receipt, err := s.await(ctx, addr, model.TxFuse, tx)
	if err != nil {
		return nil, err
	}

	if receipt.Fusion != nil {
		s.logger.Info("elements fused",
			slog.String("address", string(addr)),
			slog.String("minted", string(receipt.Fusion.Minted.ID)),
			slog.Int("level", int(receipt.Fusion.Minted.Level)),
			slog.Bool("bonus_level", receipt.Fusion.BonusLevel),
			slog.Bool("rarity_upgraded", receipt.Fusion.RarityUpgraded),
			slog.Bool("special", receipt.Fusion.SpecialAbility),
		)
	}
	return &Result{Receipt: receipt}, nil
}

// LevelUp raises the player's base level once the requirements are met
func (s *Service) LevelUp(ctx context.Context, addr model.Address) (*Result, error) {
	p, err := s.ledger.Player(ctx, addr)
	if err != nil {
		return nil, err
	}
	owned, err := s.ledger.Elements(ctx, addr)
	if err != nil {
		return nil, err
	}
	if err := s.engine.CanLevelUp(p, owned); err != nil {
		s.rejected(addr, model.TxLevelUp, err)
		return nil, err
	}

	tx, err := s.ledger.LevelUp(ctx, addr)
	if err != nil {
		s.rejected(addr, model.TxLevelUp, err)
		return nil, err
	}
	receipt, err := s.await(ctx, addr, model.TxLevelUp, tx)
	if err != nil {
		return nil, err
	}
	return &Result{Receipt: receipt}, nil
}

// await publishes Pending, waits for the receipt and publishes the final
// phase. If ctx ends first no final phase is published: the transaction's
// fate is unknown to this caller.
func (s *Service) await(ctx context.Context, addr model.Address, method model.TxMethod, tx chain.Tx) (*chain.Receipt, error) {
	s.publish(model.TxUpdate{
		Hash:    tx.Hash(),
		Method:  method,
		Address: addr,
		Phase:   model.TxPending,
	})

	receipt, err := tx.Wait(ctx)
	if err != nil {
		if ctx.Err() != nil {
			s.logger.Warn("stopped waiting for transaction",
				slog.String("hash", string(tx.Hash())),
				slog.String("method", string(method)),
				slog.String("error", err.Error()),
			)
			return nil, err
		}
		s.publish(model.TxUpdate{
			Hash:    tx.Hash(),
			Method:  method,
			Address: addr,
			Phase:   model.TxFailed,
			Reason:  err.Error(),
		})
		return nil, err
	}

	s.publish(model.TxUpdate{
		Hash:        tx.Hash(),
		Method:      method,
		Address:     addr,
		Phase:       model.TxConfirmed,
		BlockNumber: receipt.BlockNumber,
		Player:      receipt.Player,
		Reward:      receipt.Reward,
		Fusion:      receipt.Fusion,
	})
	return receipt, nil
}

// rejected reports a write that never reached the ledger
func (s *Service) rejected(addr model.Address, method model.TxMethod, err error) {
	s.publish(model.TxUpdate{
		Method:  method,
		Address: addr,
		Phase:   model.TxFailed,
		Reason:  err.Error(),
	})
}

func (s *Service) publish(u model.TxUpdate) {
	u.Timestamp = s.clock.Now()
	s.logger.Debug("transaction update",
		slog.String("hash", string(u.Hash)),
		slog.String("method", string(u.Method)),
		slog.String("address", string(u.Address)),
		slog.String("phase", string(u.Phase)),
	)
	s.observer(u)
}
