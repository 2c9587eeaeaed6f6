package moderation

import (
	"sort"
	"strings"

	"github.com/mcoot/mysphere/internal/model"
)

// Authorizer decides who may moderate quotes
type Authorizer interface {
	IsAdmin(addr model.Address) bool
}

// AllowList is an Authorizer over a fixed set of addresses, compared
// case-insensitively
type AllowList struct {
	admins map[string]struct{}
}

// NewAllowList builds an allow-list, ignoring blank entries
func NewAllowList(addrs ...string) *AllowList {
	a := &AllowList{admins: make(map[string]struct{}, len(addrs))}
	for _, addr := range addrs {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if addr != "" {
			a.admins[addr] = struct{}{}
		}
	}
	return a
}

func (a *AllowList) IsAdmin(addr model.Address) bool {
	_, ok := a.admins[strings.ToLower(string(addr))]
	return ok
}

// Admins returns the allow-listed addresses in sorted order
func (a *AllowList) Admins() []model.Address {
	out := make([]model.Address, 0, len(a.admins))
	for addr := range a.admins {
		out = append(out, model.Address(addr))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
