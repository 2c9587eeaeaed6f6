package response

import (
	"time"

	"github.com/mcoot/mysphere/internal/chain"
	"github.com/mcoot/mysphere/internal/model"
	"github.com/mcoot/mysphere/internal/services/auth"
	"github.com/mcoot/mysphere/internal/services/checkin"
)

// Player represents a player in API responses
type Player struct {
	Address     string     `json:"address"`
	Registered  bool       `json:"registered"`
	Experience  uint64     `json:"experience"`
	Streak      uint64     `json:"streak"`
	BaseLevel   uint8      `json:"base_level"`
	LastCheckIn *time.Time `json:"last_check_in"`
}

// PlayerFromModel converts a model.Player to a response Player
func PlayerFromModel(p *model.Player) Player {
	var last *time.Time
	if p.LastCheckIn != 0 {
		t := p.LastCheckInTime()
		last = &t
	}
	return Player{
		Address:     string(p.Address),
		Registered:  p.IsRegistered(),
		Experience:  p.Experience,
		Streak:      p.Streak,
		BaseLevel:   p.BaseLevel,
		LastCheckIn: last,
	}
}

// Element represents an owned element
type Element struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Rarity   string    `json:"rarity"`
	Level    uint8     `json:"level"`
	Power    uint64    `json:"power"`
	Special  bool      `json:"special,omitempty"`
	MintedAt time.Time `json:"minted_at"`
}

// ElementFromModel converts model.Element
func ElementFromModel(e *model.Element) Element {
	return Element{
		ID:       string(e.ID),
		Type:     e.Type.String(),
		Rarity:   e.Rarity.String(),
		Level:    e.Level,
		Power:    e.Power,
		Special:  e.Special,
		MintedAt: e.MintedAt,
	}
}

// ElementsFromModel converts a slice of elements, never returning nil
func ElementsFromModel(els []*model.Element) []Element {
	out := make([]Element, len(els))
	for i, e := range els {
		out[i] = ElementFromModel(e)
	}
	return out
}

// Status is the dashboard view of the signed-in player
type Status struct {
	Player            Player     `json:"player"`
	Elements          []Element  `json:"elements"`
	CanCheckIn        bool       `json:"can_check_in"`
	NextCheckIn       *time.Time `json:"next_check_in,omitempty"`
	HoursUntilCheckIn int64      `json:"hours_until_check_in"`
	LevelUpThreshold  uint64     `json:"level_up_threshold"`
	CanLevelUp        bool       `json:"can_level_up"`
}

// StatusFromService converts checkin.Status
func StatusFromService(s *checkin.Status) Status {
	return Status{
		Player:            PlayerFromModel(s.Player),
		Elements:          ElementsFromModel(s.Elements),
		CanCheckIn:        s.CanCheckIn,
		NextCheckIn:       s.NextCheckIn,
		HoursUntilCheckIn: s.HoursUntilCheckIn,
		LevelUpThreshold:  s.LevelUpThreshold,
		CanLevelUp:        s.CanLevelUp,
	}
}

// Fusion is the outcome of fuseElements
type Fusion struct {
	Burned         []string `json:"burned"`
	Minted         Element  `json:"minted"`
	BonusLevel     bool     `json:"bonus_level"`
	RarityUpgraded bool     `json:"rarity_upgraded"`
	SpecialAbility bool     `json:"special_ability"`
}

// Tx is the response to a contract write
type Tx struct {
	Hash              string   `json:"hash"`
	Method            string   `json:"method"`
	BlockNumber       uint64   `json:"block_number"`
	Registered        bool     `json:"registered,omitempty"`
	AlreadyRegistered bool     `json:"already_registered,omitempty"`
	Player            *Player  `json:"player,omitempty"`
	Reward            *Element `json:"reward,omitempty"`
	Fusion            *Fusion  `json:"fusion,omitempty"`
}

// TxFromResult converts checkin.Result
func TxFromResult(res *checkin.Result) Tx {
	tx := Tx{
		Registered:        res.Registered,
		AlreadyRegistered: res.AlreadyRegistered,
	}
	if res.Receipt != nil {
		fillReceipt(&tx, res.Receipt)
	}
	return tx
}

func fillReceipt(tx *Tx, r *chain.Receipt) {
	tx.Hash = string(r.Hash)
	tx.Method = string(r.Method)
	tx.BlockNumber = r.BlockNumber
	if r.Player != nil {
		p := PlayerFromModel(r.Player)
		tx.Player = &p
	}
	if r.Reward != nil {
		e := ElementFromModel(r.Reward)
		tx.Reward = &e
	}
	if r.Fusion != nil {
		burned := make([]string, len(r.Fusion.Burned))
		for i, id := range r.Fusion.Burned {
			burned[i] = string(id)
		}
		tx.Fusion = &Fusion{
			Burned:         burned,
			Minted:         ElementFromModel(&r.Fusion.Minted),
			BonusLevel:     r.Fusion.BonusLevel,
			RarityUpgraded: r.Fusion.RarityUpgraded,
			SpecialAbility: r.Fusion.SpecialAbility,
		}
	}
}

// TxStatus is a recorded transaction phase
type TxStatus struct {
	Hash        string    `json:"hash"`
	Method      string    `json:"method"`
	Address     string    `json:"address"`
	Phase       string    `json:"phase"`
	Reason      string    `json:"reason,omitempty"`
	BlockNumber uint64    `json:"block_number,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	NoticeTTLMs int64     `json:"notice_ttl_ms,omitempty"`
}

// TxStatusFromModel converts model.TxUpdate
func TxStatusFromModel(u *model.TxUpdate) TxStatus {
	return TxStatus{
		Hash:        string(u.Hash),
		Method:      string(u.Method),
		Address:     string(u.Address),
		Phase:       string(u.Phase),
		Reason:      u.Reason,
		BlockNumber: u.BlockNumber,
		Timestamp:   u.Timestamp,
		NoticeTTLMs: u.NoticeTTL().Milliseconds(),
	}
}

// Challenge is a sign-in challenge
type Challenge struct {
	Address   string    `json:"address"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ChallengeFromService converts auth.Challenge
func ChallengeFromService(c *auth.Challenge) Challenge {
	return Challenge{
		Address:   string(c.Address),
		Message:   c.Message,
		ExpiresAt: c.ExpiresAt,
	}
}

// AuthResponse is the response for a successful sign-in
type AuthResponse struct {
	Address      string    `json:"address"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	IsAdmin      bool      `json:"is_admin"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *auth.Session, isAdmin bool) AuthResponse {
	return AuthResponse{
		Address:      string(s.Address),
		SessionToken: s.Token,
		ExpiresAt:    s.ExpiresAt,
		IsAdmin:      isAdmin,
	}
}

// QuoteList wraps quote listings
type QuoteList struct {
	Quotes []*model.Quote `json:"quotes"`
}

// NewQuoteList never returns a nil slice
func NewQuoteList(qs []*model.Quote) QuoteList {
	if qs == nil {
		qs = []*model.Quote{}
	}
	return QuoteList{Quotes: qs}
}

// QuoteStats is the admin dashboard count
type QuoteStats struct {
	model.QuoteStats
	Total int `json:"total"`
}

// BulkDelete reports how many quotes were removed
type BulkDelete struct {
	Deleted int `json:"deleted"`
}
