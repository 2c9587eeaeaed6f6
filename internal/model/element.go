package model

import (
	"strings"
	"time"
)

// ElementID is the token id of an owned element
type ElementID string

// ElementType is the kind of module an element represents
type ElementType uint8

const (
	ElementReactor ElementType = iota
	ElementStorage
	ElementDefenseTower
	ElementLivingModule
	ElementTechLab
)

// ElementTypeCount is the number of defined element types
const ElementTypeCount = 5

var elementTypeNames = [ElementTypeCount]string{
	"reactor",
	"storage",
	"defense_tower",
	"living_module",
	"tech_lab",
}

func (t ElementType) String() string {
	if !t.Valid() {
		return "unknown"
	}
	return elementTypeNames[t]
}

// Valid reports whether t is one of the defined element types
func (t ElementType) Valid() bool {
	return int(t) < ElementTypeCount
}

// ParseElementType parses the snake_case name of an element type
func ParseElementType(s string) (ElementType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range elementTypeNames {
		if name == s {
			return ElementType(i), true
		}
	}
	return 0, false
}

// Rarity grades an element; higher rarities multiply power
type Rarity uint8

const (
	RarityCommon Rarity = iota
	RarityUncommon
	RarityRare
	RarityEpic
)

var rarityNames = [...]string{"common", "uncommon", "rare", "epic"}

func (r Rarity) String() string {
	if !r.Valid() {
		return "unknown"
	}
	return rarityNames[r]
}

// Valid reports whether r is a defined rarity
func (r Rarity) Valid() bool {
	return r <= RarityEpic
}

// Multiplier is the fixed power multiplier of the rarity: Common 1 through Epic 4
func (r Rarity) Multiplier() uint64 {
	return uint64(r) + 1
}

// Upgrade returns the next rarity, capped at Epic
func (r Rarity) Upgrade() Rarity {
	if r >= RarityEpic {
		return RarityEpic
	}
	return r + 1
}

// PowerUnit is the base power granted per element level
const PowerUnit = 100

// Power computes element power. It is a pure function of level and rarity.
func Power(level uint8, rarity Rarity) uint64 {
	return uint64(level) * PowerUnit * rarity.Multiplier()
}

// Element is an owned game asset
type Element struct {
	ID       ElementID   `json:"id"`
	Owner    Address     `json:"owner"`
	Type     ElementType `json:"type"`
	Rarity   Rarity      `json:"rarity"`
	Level    uint8       `json:"level"`
	Power    uint64      `json:"power"`
	Special  bool        `json:"special"`
	MintedAt time.Time   `json:"minted_at"`
}

// NewElement builds an element with its power derived from level and rarity
func NewElement(id ElementID, owner Address, t ElementType, rarity Rarity, level uint8, mintedAt time.Time) *Element {
	return &Element{
		ID:       id,
		Owner:    owner,
		Type:     t,
		Rarity:   rarity,
		Level:    level,
		Power:    Power(level, rarity),
		MintedAt: mintedAt,
	}
}
