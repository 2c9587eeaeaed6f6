package model

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Address is a lower-cased 0x-prefixed wallet address
type Address string

// ParseAddress validates a hex address and returns its canonical lower-case form
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return "", ErrInvalidAddress
	}
	return Address(strings.ToLower(common.HexToAddress(s).Hex())), nil
}

// Common returns the go-ethereum representation of the address
func (a Address) Common() common.Address {
	return common.HexToAddress(string(a))
}

// Equal compares two addresses ignoring case
func (a Address) Equal(other Address) bool {
	return strings.EqualFold(string(a), string(other))
}

func (a Address) String() string {
	return string(a)
}
