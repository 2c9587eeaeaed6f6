// Package contract describes the on-chain MySphere game contract: its ABI,
// method and event names, revert reasons and record layouts.
package contract

import (
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/mcoot/mysphere/internal/model"
)

// Contract methods
const (
	MethodPlayers       = "players"
	MethodGetPlayerNFTs = "getPlayerNFTs"
	MethodRegister      = string(model.TxRegister)
	MethodCheckIn       = string(model.TxCheckIn)
	MethodFuseElements  = string(model.TxFuse)
	MethodLevelUp       = string(model.TxLevelUp)
)

// Contract events
const (
	EventRegistered    = "Registered"
	EventCheckedIn     = "CheckedIn"
	EventElementsFused = "ElementsFused"
	EventLeveledUp     = "LeveledUp"
)

// Revert reasons emitted by require() in the contract
const (
	ReasonAlreadyRegistered = "Already registered"
	ReasonNotRegistered     = "Not registered"
	ReasonCooldown          = "Check-in cooldown active"
	ReasonFusionCount       = "Need exactly 3 distinct elements"
	ReasonElementNotFound   = "Element does not exist"
	ReasonNotOwner          = "Not element owner"
	ReasonFusionMismatch    = "Elements must share type and level"
	ReasonMaxLevel          = "Max level reached"
	ReasonLevelUpNotReady   = "Level up requirements not met"
)

var reasons = []struct {
	reason string
	err    error
}{
	{ReasonAlreadyRegistered, model.ErrAlreadyRegistered},
	{ReasonNotRegistered, model.ErrNotRegistered},
	{ReasonCooldown, model.ErrCooldownActive},
	{ReasonFusionCount, model.ErrInvalidFusionCount},
	{ReasonElementNotFound, model.ErrElementNotFound},
	{ReasonNotOwner, model.ErrElementNotOwned},
	{ReasonFusionMismatch, model.ErrFusionMismatch},
	{ReasonMaxLevel, model.ErrMaxLevel},
	{ReasonLevelUpNotReady, model.ErrLevelUpNotReady},
}

// ErrorForReason maps a revert message to its domain error. The message may
// carry a node prefix such as "execution reverted: ". Unknown reasons return nil.
func ErrorForReason(msg string) error {
	for _, r := range reasons {
		if strings.Contains(msg, r.reason) {
			return r.err
		}
	}
	return nil
}

// ReasonFor returns the revert reason the contract uses for a domain error
func ReasonFor(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

var parsed = mustParse()

func mustParse() abi.ABI {
	a, err := abi.JSON(strings.NewReader(ABIJSON))
	if err != nil {
		panic("contract: invalid ABI: " + err.Error())
	}
	return a
}

// ABI returns the parsed contract ABI
func ABI() abi.ABI {
	return parsed
}

// PlayerRecord mirrors the players(address) outputs
type PlayerRecord struct {
	Experience  *big.Int
	LastCheckIn *big.Int
	Streak      *big.Int
	BaseLevel   uint8
	Active      bool
}

// ToPlayer converts the record for addr
func (r PlayerRecord) ToPlayer(addr model.Address) *model.Player {
	return &model.Player{
		Address:     addr,
		Experience:  uint64OrZero(r.Experience),
		LastCheckIn: uint64OrZero(r.LastCheckIn),
		Streak:      uint64OrZero(r.Streak),
		BaseLevel:   r.BaseLevel,
		Active:      r.Active,
	}
}

// NFTRecord mirrors one tuple of getPlayerNFTs(address)
type NFTRecord struct {
	Id          string
	ElementType uint8
	Rarity      uint8
	Level       uint8
	Power       *big.Int
	MintedAt    *big.Int
	Special     bool
}

// ToElement converts the record for owner. Power is always derived from
// rarity and level; see PowerMismatch for the reported value.
func (r NFTRecord) ToElement(owner model.Address) *model.Element {
	el := model.NewElement(
		model.ElementID(r.Id),
		owner,
		model.ElementType(r.ElementType),
		model.Rarity(r.Rarity),
		r.Level,
		time.Unix(int64(uint64OrZero(r.MintedAt)), 0).UTC(),
	)
	el.Special = r.Special
	return el
}

// PowerMismatch reports whether the contract's stored power disagrees with
// the power derived for el
func (r NFTRecord) PowerMismatch(el *model.Element) bool {
	if r.Power == nil {
		return false
	}
	return !r.Power.IsUint64() || r.Power.Uint64() != el.Power
}

// CheckedInEvent is a decoded CheckedIn log
type CheckedInEvent struct {
	Player      common.Address
	Streak      *big.Int
	Experience  *big.Int
	RewardId    string
	ElementType uint8
}

// ElementsFusedEvent is a decoded ElementsFused log
type ElementsFusedEvent struct {
	Player         common.Address
	Burned         []string
	Minted         string
	ElementType    uint8
	Level          uint8
	Rarity         uint8
	BonusLevel     bool
	RarityUpgraded bool
	Special        bool
}

// ToOutcome converts the event for owner, minted at the block time
func (e ElementsFusedEvent) ToOutcome(owner model.Address, mintedAt time.Time) *model.FusionOutcome {
	burned := make([]model.ElementID, len(e.Burned))
	for i, id := range e.Burned {
		burned[i] = model.ElementID(id)
	}
	minted := model.NewElement(model.ElementID(e.Minted), owner, model.ElementType(e.ElementType), model.Rarity(e.Rarity), e.Level, mintedAt)
	minted.Special = e.Special
	return &model.FusionOutcome{
		Burned:         burned,
		Minted:         *minted,
		BonusLevel:     e.BonusLevel,
		RarityUpgraded: e.RarityUpgraded,
		SpecialAbility: e.Special,
	}
}

func uint64OrZero(v *big.Int) uint64 {
	if v == nil || !v.IsUint64() {
		return 0
	}
	return v.Uint64()
}
