package auth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"os"
	"time"

	coreoidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/abdghn/youapp-be-test/internal/apperr"
	"github.com/abdghn/youapp-be-test/internal/models"
)

// SessionTTL is the fixed lifetime of a session token.
const SessionTTL = 24 * time.Hour

// Identity is what a verified session token proves about its bearer.
type Identity struct {
	UserID   string
	Username string
}

// Claims is the payload of a session token.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Sessions issues RS256 session tokens and verifies them statelessly
// against its own public key.
type Sessions struct {
	key      *rsa.PrivateKey
	issuer   string
	audience string
	verifier *coreoidc.IDTokenVerifier
	now      func() time.Time
}

func NewSessions(key *rsa.PrivateKey, issuer, audience string) *Sessions {
	s := &Sessions{key: key, issuer: issuer, audience: audience, now: time.Now}
	keySet := &coreoidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	s.verifier = coreoidc.NewVerifier(issuer, keySet, &coreoidc.Config{
		ClientID:             audience,
		SupportedSigningAlgs: []string{coreoidc.RS256},
		Now:                  func() time.Time { return s.now() },
	})
	return s
}

// Issue signs a token for user that expires SessionTTL from now.
func (s *Sessions) Issue(user *models.User) (string, error) {
	now := s.now()
	claims := Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	if err != nil {
		return "", apperr.Internal(err, "sign session token")
	}
	return signed, nil
}

// Verify checks signature, issuer, audience and expiry of raw.
func (s *Sessions) Verify(ctx context.Context, raw string) (*Identity, error) {
	tok, err := s.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, apperr.Unauthorized(err)
	}
	var claims struct {
		Username string `json:"username"`
	}
	if err := tok.Claims(&claims); err != nil {
		return nil, apperr.Unauthorized(err)
	}
	if tok.Subject == "" {
		return nil, apperr.Unauthorized(fmt.Errorf("token has no subject"))
	}
	return &Identity{UserID: tok.Subject, Username: claims.Username}, nil
}

// LoadKey reads a PEM encoded RSA private key. An empty path generates an
// ephemeral key, which invalidates every token on restart.
func LoadKey(path string) (*rsa.PrivateKey, error) {
	if path == "" {
		return rsa.GenerateKey(rand.Reader, 2048)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session key: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("parse session key: %w", err)
	}
	return key, nil
}
