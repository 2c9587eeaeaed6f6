package model

import "time"

// Player mirrors the per-address record returned by players(address).
// Records are created by register() and never deleted.
type Player struct {
	Address     Address `json:"address"`
	Experience  uint64  `json:"experience"`
	LastCheckIn uint64  `json:"last_check_in"` // unix seconds, 0 if never checked in
	Streak      uint64  `json:"streak"`
	BaseLevel   uint8   `json:"base_level"`
	Active      bool    `json:"active"`
}

// IsRegistered reports whether register() has succeeded for this address
func (p *Player) IsRegistered() bool {
	return p != nil && p.Active
}

// LastCheckInTime returns the last check-in as a time, or the zero time
func (p *Player) LastCheckInTime() time.Time {
	if p.LastCheckIn == 0 {
		return time.Time{}
	}
	return time.Unix(int64(p.LastCheckIn), 0).UTC()
}

// Clone returns a copy safe to mutate
func (p *Player) Clone() *Player {
	c := *p
	return &c
}
