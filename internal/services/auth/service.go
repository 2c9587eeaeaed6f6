// Package auth signs players in with their wallet and issues session tokens.
//
// A client asks for a challenge, signs its message with the wallet key
// (EIP-191 personal_sign) and exchanges the signature for a JWT.
package auth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"

	"github.com/mcoot/mysphere/internal/dependencies/clock"
	"github.com/mcoot/mysphere/internal/dependencies/random"
	"github.com/mcoot/mysphere/internal/model"
)

// Errors
var (
	ErrInvalidSession    = errors.New("invalid or expired session")
	ErrChallengeNotFound = errors.New("no sign-in challenge for address")
	ErrChallengeExpired  = errors.New("sign-in challenge expired")
	ErrInvalidSignature  = errors.New("signature does not match address")
)

// Challenge is a one-time message the wallet must sign
type Challenge struct {
	Address   model.Address `json:"address"`
	Nonce     string        `json:"nonce"`
	Message   string        `json:"message"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// Session represents an authenticated wallet
type Session struct {
	Token     string        `json:"token"`
	Address   model.Address `json:"address"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`

	id string
}

// Config holds configuration for the auth service
type Config struct {
	// Secret signs session tokens
	Secret          string
	Issuer          string
	SessionDuration time.Duration
	ChallengeTTL    time.Duration
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		Secret:          "dev-secret-change-me",
		Issuer:          "mysphere",
		SessionDuration: 24 * time.Hour,
		ChallengeTTL:    5 * time.Minute,
	}
}

// Service handles wallet sign-in and session tokens
type Service struct {
	clock  clock.Clock
	random random.Random
	cfg    Config

	mu         sync.Mutex
	challenges map[model.Address]*Challenge
	// revoked token ids, kept until the token would have expired anyway
	revoked map[string]time.Time
}

// New creates a new auth Service
func New(clock clock.Clock, random random.Random, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.Secret == "" {
		cfg.Secret = def.Secret
	}
	if cfg.Issuer == "" {
		cfg.Issuer = def.Issuer
	}
	if cfg.SessionDuration == 0 {
		cfg.SessionDuration = def.SessionDuration
	}
	if cfg.ChallengeTTL == 0 {
		cfg.ChallengeTTL = def.ChallengeTTL
	}
	return &Service{
		clock:      clock,
		random:     random,
		cfg:        cfg,
		challenges: make(map[model.Address]*Challenge),
		revoked:    make(map[string]time.Time),
	}
}

// NewChallenge issues a fresh challenge for addr, replacing any earlier one
func (s *Service) NewChallenge(addr model.Address) *Challenge {
	now := s.clock.Now()
	nonce := s.random.Hex(16)
	c := &Challenge{
		Address:   addr,
		Nonce:     nonce,
		Message:   ChallengeMessage(addr, nonce, now),
		ExpiresAt: now.Add(s.cfg.ChallengeTTL),
	}

	s.mu.Lock()
	s.challenges[addr] = c
	s.mu.Unlock()
	return c
}

// ChallengeMessage is the exact text a wallet signs
func ChallengeMessage(addr model.Address, nonce string, issued time.Time) string {
	return fmt.Sprintf("Sign in to MySphere\n\nAddress: %s\nNonce: %s\nIssued: %s",
		addr, nonce, issued.UTC().Format(time.RFC3339))
}

// Verify starts a session if signature is addr's wallet signature over its
// pending challenge. Only a successful or expired attempt consumes the
// challenge, so a bad signature cannot burn another wallet's sign-in.
func (s *Service) Verify(addr model.Address, signature string) (*Session, error) {
	s.mu.Lock()
	c, ok := s.challenges[addr]
	if ok && s.clock.Now().After(c.ExpiresAt) {
		delete(s.challenges, addr)
		s.mu.Unlock()
		return nil, ErrChallengeExpired
	}
	s.mu.Unlock()

	if !ok {
		return nil, ErrChallengeNotFound
	}

	signer, err := RecoverSigner(c.Message, signature)
	if err != nil {
		return nil, err
	}
	if !signer.Equal(addr) {
		return nil, ErrInvalidSignature
	}

	s.mu.Lock()
	current, ok := s.challenges[addr]
	if !ok || current != c {
		// Consumed or replaced while we were checking the signature
		s.mu.Unlock()
		return nil, ErrChallengeNotFound
	}
	delete(s.challenges, addr)
	s.mu.Unlock()

	return s.createSession(addr)
}

// RecoverSigner returns the address whose key produced signature over message
func RecoverSigner(message, signature string) (model.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("%w: malformed signature", ErrInvalidSignature)
	}
	// Wallets send v as 27/28
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return model.ParseAddress(crypto.PubkeyToAddress(*pub).Hex())
}

// SignMessage produces a personal_sign signature the way wallets do
func SignMessage(key *ecdsa.PrivateKey, message string) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// ValidateSession checks a session token and returns the session
func (s *Service) ValidateSession(token string) (*Session, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) {
			return []byte(s.cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidSession
	}

	s.mu.Lock()
	_, revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		return nil, ErrInvalidSession
	}

	addr, err := model.ParseAddress(claims.Subject)
	if err != nil {
		return nil, ErrInvalidSession
	}
	session := &Session{
		Token:     token,
		Address:   addr,
		ExpiresAt: claims.ExpiresAt.Time,
		id:        claims.ID,
	}
	if claims.IssuedAt != nil {
		session.CreatedAt = claims.IssuedAt.Time
	}
	return session, nil
}

// InvalidateSession revokes a token until it expires
func (s *Service) InvalidateSession(token string) {
	session, err := s.ValidateSession(token)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.revoked[session.id] = session.ExpiresAt
	s.mu.Unlock()
}

func (s *Service) createSession(addr model.Address) (*Session, error) {
	now := s.clock.Now()
	session := &Session{
		Address:   addr,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionDuration),
		id:        s.random.Hex(16),
	}

	claims := jwt.RegisteredClaims{
		ID:        session.id,
		Subject:   string(addr),
		Issuer:    s.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, err
	}
	session.Token = token
	return session, nil
}

// CleanExpired drops expired challenges and revocations (call periodically).
// It returns how many entries were removed.
func (s *Service) CleanExpired() int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for addr, c := range s.challenges {
		if now.After(c.ExpiresAt) {
			delete(s.challenges, addr)
			removed++
		}
	}
	for id, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, id)
			removed++
		}
	}
	return removed
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) string {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}
