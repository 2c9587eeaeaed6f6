package model

import "time"

// TxHash identifies a submitted transaction
type TxHash string

// TxMethod names the contract write a transaction invokes
type TxMethod string

const (
	TxRegister TxMethod = "register"
	TxCheckIn  TxMethod = "checkIn"
	TxFuse     TxMethod = "fuseElements"
	TxLevelUp  TxMethod = "levelUp"
)

// TxPhase is the observable lifecycle phase of a write
type TxPhase string

const (
	TxPending   TxPhase = "pending"
	TxConfirmed TxPhase = "confirmed"
	TxFailed    TxPhase = "failed"
)

// Notice display hints, matching the dismissal delays of the client toasts
const (
	FailedNoticeTTL    = 5 * time.Second
	ConfirmedNoticeTTL = 6 * time.Second
)

// TxUpdate reports one phase transition of a transaction. Every write
// produces Pending followed by exactly one of Confirmed or Failed, except
// writes rejected before submission, which produce only Failed with no hash.
type TxUpdate struct {
	Hash        TxHash    `json:"hash,omitempty"`
	Method      TxMethod  `json:"method"`
	Address     Address   `json:"address"`
	Phase       TxPhase   `json:"phase"`
	Reason      string    `json:"reason,omitempty"`
	BlockNumber uint64    `json:"block_number,omitempty"`
	Timestamp   time.Time `json:"timestamp"`

	// Set on confirmation when the receipt carries them
	Player *Player        `json:"player,omitempty"`
	Reward *Element       `json:"reward,omitempty"`
	Fusion *FusionOutcome `json:"fusion,omitempty"`
}

// IsFinal reports whether the update ends the transaction lifecycle
func (u TxUpdate) IsFinal() bool {
	return u.Phase == TxConfirmed || u.Phase == TxFailed
}

// NoticeTTL is how long a client should keep the notice visible; zero means until replaced
func (u TxUpdate) NoticeTTL() time.Duration {
	switch u.Phase {
	case TxConfirmed:
		return ConfirmedNoticeTTL
	case TxFailed:
		return FailedNoticeTTL
	default:
		return 0
	}
}

// FusionOutcome is the oracle-resolved result of fuseElements, applied as reported
type FusionOutcome struct {
	Burned         []ElementID `json:"burned"`
	Minted         Element     `json:"minted"`
	BonusLevel     bool        `json:"bonus_level"`
	RarityUpgraded bool        `json:"rarity_upgraded"`
	SpecialAbility bool        `json:"special_ability"`
}
