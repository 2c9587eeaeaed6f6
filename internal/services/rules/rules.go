package rules

import (
	"time"

	"github.com/mcoot/mysphere/internal/dependencies/random"
	"github.com/mcoot/mysphere/internal/model"
)

const (
	// FusionInputs is the number of elements consumed by one fusion
	FusionInputs = 3
	// MaxElementLevel leaves headroom for the bonus level within uint8
	MaxElementLevel = 250
)

// FusionOdds are the oracle's percent chances for each independent fusion bonus
type FusionOdds struct {
	BonusLevelPercent     int
	RarityUpgradePercent  int
	SpecialAbilityPercent int
}

// DefaultFusionOdds returns the published odds: 10% bonus level, 5% rarity upgrade, 1% special ability
func DefaultFusionOdds() FusionOdds {
	return FusionOdds{
		BonusLevelPercent:     10,
		RarityUpgradePercent:  5,
		SpecialAbilityPercent: 1,
	}
}

// FusionRoll is the oracle's verdict for one fusion
type FusionRoll struct {
	BonusLevel     bool
	RarityUpgrade  bool
	SpecialAbility bool
}

// Roll resolves the three outcomes independently
func (o FusionOdds) Roll(r random.Random) FusionRoll {
	return FusionRoll{
		BonusLevel:     random.Roll(r, o.BonusLevelPercent),
		RarityUpgrade:  random.Roll(r, o.RarityUpgradePercent),
		SpecialAbility: random.Roll(r, o.SpecialAbilityPercent),
	}
}

// Config holds the game constants enforced by the contract
type Config struct {
	CheckInCooldown time.Duration
	// StreakWindow is the longest gap between check-ins that keeps a streak alive
	StreakWindow  time.Duration
	DailyXP       uint64
	LevelUpXPStep uint64
	FusionOdds    FusionOdds
}

// DefaultConfig returns the deployed contract's constants
func DefaultConfig() Config {
	return Config{
		CheckInCooldown: 24 * time.Hour,
		StreakWindow:    48 * time.Hour,
		DailyXP:         100,
		LevelUpXPStep:   500,
		FusionOdds:      DefaultFusionOdds(),
	}
}

// Engine applies the check-in, fusion and level-up rules to player state.
// It is pure: callers load state, call the engine and persist the result.
type Engine struct {
	cfg Config
}

// New creates an Engine, filling zero fields from DefaultConfig
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.CheckInCooldown == 0 {
		cfg.CheckInCooldown = def.CheckInCooldown
	}
	if cfg.StreakWindow == 0 {
		cfg.StreakWindow = def.StreakWindow
	}
	if cfg.DailyXP == 0 {
		cfg.DailyXP = def.DailyXP
	}
	if cfg.LevelUpXPStep == 0 {
		cfg.LevelUpXPStep = def.LevelUpXPStep
	}
	if cfg.FusionOdds == (FusionOdds{}) {
		cfg.FusionOdds = def.FusionOdds
	}
	return &Engine{cfg: cfg}
}

// Config returns the engine's constants
func (e *Engine) Config() Config {
	return e.cfg
}

// Register activates a player. existing may be nil for an unknown address.
func (e *Engine) Register(addr model.Address, existing *model.Player) (*model.Player, error) {
	if existing.IsRegistered() {
		return nil, model.ErrAlreadyRegistered
	}
	return &model.Player{
		Address:   addr,
		BaseLevel: 1,
		Active:    true,
	}, nil
}

// NextCheckIn returns the earliest time the player may check in again
func (e *Engine) NextCheckIn(p *model.Player) time.Time {
	if p.LastCheckIn == 0 {
		return time.Time{}
	}
	return p.LastCheckInTime().Add(e.cfg.CheckInCooldown)
}

// CheckCooldown returns a *model.CooldownError while the cooldown is running
func (e *Engine) CheckCooldown(p *model.Player, now time.Time) error {
	next := e.NextCheckIn(p)
	if next.IsZero() || !now.Before(next) {
		return nil
	}
	return &model.CooldownError{Remaining: next.Sub(now)}
}

// CheckIn returns the player after a successful check-in at now
func (e *Engine) CheckIn(p *model.Player, now time.Time) (*model.Player, error) {
	if !p.IsRegistered() {
		return nil, model.ErrNotRegistered
	}
	if err := e.CheckCooldown(p, now); err != nil {
		return nil, err
	}

	next := p.Clone()
	if p.LastCheckIn != 0 && now.Sub(p.LastCheckInTime()) <= e.cfg.StreakWindow {
		next.Streak++
	} else {
		next.Streak = 1
	}
	next.Experience += e.cfg.DailyXP
	next.LastCheckIn = uint64(now.Unix())
	return next, nil
}

// ValidateFusion resolves ids and checks count, ownership, type and level.
// Nothing is mutated; on success the three inputs are returned in id order.
func (e *Engine) ValidateFusion(
	owner model.Address,
	ids []model.ElementID,
	resolve func(model.ElementID) (*model.Element, error),
) ([]*model.Element, error) {
	if len(ids) != FusionInputs {
		return nil, model.ErrInvalidFusionCount
	}
	seen := make(map[model.ElementID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, model.ErrInvalidFusionCount
		}
		seen[id] = true
	}

	inputs := make([]*model.Element, 0, len(ids))
	for _, id := range ids {
		el, err := resolve(id)
		if err != nil {
			return nil, err
		}
		if !el.Owner.Equal(owner) {
			return nil, model.ErrElementNotOwned
		}
		inputs = append(inputs, el)
	}

	first := inputs[0]
	for _, el := range inputs[1:] {
		if el.Type != first.Type || el.Level != first.Level {
			return nil, model.ErrFusionMismatch
		}
	}
	if first.Level >= MaxElementLevel {
		return nil, model.ErrMaxLevel
	}
	return inputs, nil
}

// Fuse builds the fusion result for validated inputs. The new element keeps
// the inputs' type and the highest input rarity before any upgrade.
func (e *Engine) Fuse(inputs []*model.Element, roll FusionRoll, newID model.ElementID, now time.Time) *model.FusionOutcome {
	first := inputs[0]
	rarity := first.Rarity
	burned := make([]model.ElementID, 0, len(inputs))
	for _, el := range inputs {
		if el.Rarity > rarity {
			rarity = el.Rarity
		}
		burned = append(burned, el.ID)
	}

	level := first.Level + 1
	if roll.BonusLevel {
		level++
	}
	upgraded := roll.RarityUpgrade && rarity < model.RarityEpic
	if upgraded {
		rarity = rarity.Upgrade()
	}

	minted := model.NewElement(newID, first.Owner, first.Type, rarity, level, now)
	minted.Special = roll.SpecialAbility

	return &model.FusionOutcome{
		Burned:         burned,
		Minted:         *minted,
		BonusLevel:     roll.BonusLevel,
		RarityUpgraded: upgraded,
		SpecialAbility: roll.SpecialAbility,
	}
}

// LevelUpThreshold is the experience needed to leave the player's current base level
func (e *Engine) LevelUpThreshold(p *model.Player) uint64 {
	return uint64(p.BaseLevel) * e.cfg.LevelUpXPStep
}

// CanLevelUp checks the experience threshold and that an owned element has
// reached the player's base level
func (e *Engine) CanLevelUp(p *model.Player, owned []*model.Element) error {
	if !p.IsRegistered() {
		return model.ErrNotRegistered
	}
	if p.BaseLevel == 255 || p.Experience < e.LevelUpThreshold(p) {
		return model.ErrLevelUpNotReady
	}
	for _, el := range owned {
		if el.Level >= p.BaseLevel {
			return nil
		}
	}
	return model.ErrLevelUpNotReady
}

// LevelUp returns the player one base level higher
func (e *Engine) LevelUp(p *model.Player, owned []*model.Element) (*model.Player, error) {
	if err := e.CanLevelUp(p, owned); err != nil {
		return nil, err
	}
	next := p.Clone()
	next.BaseLevel++
	return next, nil
}
