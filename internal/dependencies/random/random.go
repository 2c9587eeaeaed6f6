package random

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

// Random is the randomness source behind the fusion oracle and generated identifiers
type Random interface {
	// Intn returns a random int in [0, n)
	Intn(n int) int

	// Hex returns n random bytes hex-encoded
	Hex(n int) string
}

// CryptoRandom draws from crypto/rand
type CryptoRandom struct{}

// New creates a CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

func (CryptoRandom) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

func (CryptoRandom) Hex(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Roll reports success for a percent chance in [0, 100]
func Roll(r Random, percent int) bool {
	if percent <= 0 {
		return false
	}
	return r.Intn(100) < percent
}
