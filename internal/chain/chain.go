// Package chain is the contract surface the check-in flow talks to. A Ledger
// is backed either by a real EVM node (package eth) or by the in-process
// simulator (package sim).
package chain

import (
	"context"

	"github.com/mcoot/mysphere/internal/model"
)

// Ledger reads player state and submits contract writes on behalf of an address.
//
// Write methods validate against current state and return the domain error
// (model.ErrNotRegistered, *model.CooldownError, ...) when the contract would
// reject the call. Otherwise the transaction is submitted and a Tx returned;
// its effects are visible to reads only once Wait reports it mined.
type Ledger interface {
	// Player returns the player record. Unknown addresses yield an inactive
	// zero record, as the contract mapping does.
	Player(ctx context.Context, addr model.Address) (*model.Player, error)
	Elements(ctx context.Context, addr model.Address) ([]*model.Element, error)

	Register(ctx context.Context, addr model.Address) (Tx, error)
	CheckIn(ctx context.Context, addr model.Address) (Tx, error)
	FuseElements(ctx context.Context, addr model.Address, ids []model.ElementID) (Tx, error)
	LevelUp(ctx context.Context, addr model.Address) (Tx, error)
}

// Tx is a submitted transaction
type Tx interface {
	Hash() model.TxHash
	// Wait blocks until the transaction is mined or ctx is done. A mined
	// transaction that reverted returns a *model.RevertError. Cancelling ctx
	// stops waiting, not the transaction.
	Wait(ctx context.Context) (*Receipt, error)
}

// Receipt is the outcome of a mined transaction
type Receipt struct {
	Hash        model.TxHash
	Method      model.TxMethod
	BlockNumber uint64
	// Player is the caller's record after the transaction, when known
	Player *model.Player
	// Reward is the element minted by a check-in
	Reward *model.Element
	// Fusion is set for fuseElements
	Fusion *model.FusionOutcome
}
