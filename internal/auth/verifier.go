package auth

import (
	"context"
	"strings"

	"github.com/abdghn/youapp-be-test/internal/apperr"
	"github.com/abdghn/youapp-be-test/internal/crypto"
	"github.com/abdghn/youapp-be-test/internal/logger"
	"github.com/abdghn/youapp-be-test/internal/metrics"
	"github.com/abdghn/youapp-be-test/internal/models"
)

// CredentialLookup is the subset of the credential store the verifier reads.
type CredentialLookup interface {
	FindByIdentifier(ctx context.Context, identifier string) (*models.User, error)
}

type Verifier struct {
	users    CredentialLookup
	sessions *Sessions
}

func NewVerifier(users CredentialLookup, sessions *Sessions) *Verifier {
	return &Verifier{users: users, sessions: sessions}
}

// ValidateCredentials checks identifier (username or email) and password
// against the stored bcrypt hash. The returned user still carries the hash
// and must not be sent to clients as is.
func (v *Verifier) ValidateCredentials(ctx context.Context, identifier, password string) (*models.User, error) {
	if strings.TrimSpace(identifier) == "" || password == "" {
		return nil, apperr.Validation("username and password should not be empty")
	}
	user, err := v.users.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if !crypto.Compare(user.PasswordHash, password) {
		return nil, apperr.New(apperr.KindInvalidCredential, "Password Mismatch")
	}
	return user, nil
}

// Login validates the credentials and issues a session token.
func (v *Verifier) Login(ctx context.Context, identifier, password string) (string, error) {
	user, err := v.ValidateCredentials(ctx, identifier, password)
	if err != nil {
		metrics.IncLoginFailure()
		logger.Debug("login rejected", logger.FieldKV("kind", string(apperr.KindOf(err))))
		return "", err
	}
	token, err := v.sessions.Issue(user)
	if err != nil {
		return "", err
	}
	metrics.IncLoginSuccess()
	logger.Info("login succeeded", logger.FieldKV("user_id", user.ID))
	return token, nil
}
