// Package vault stores and verifies account credentials.
package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"taskledger-api/domain"
)

// ErrAccountNotFound is returned by AccountStore implementations when no
// account matches the requested email.
var ErrAccountNotFound = errors.New("account not found")

// Account is a stored credential record.
type Account struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
}

// AccountStore persists registered accounts. Emails handed to it are already
// normalized.
type AccountStore interface {
	CreateAccount(ctx context.Context, accountID uuid.UUID, email, passwordHash string) error
	AccountByEmail(ctx context.Context, email string) (Account, error)
}

// Vault registers accounts and verifies login credentials. Raw passwords and
// stored hashes never appear in logs or errors.
type Vault struct {
	store AccountStore
	log   *log.Logger
	cost  int

	// dummyHash absorbs a comparison when the email resolves to no
	// account, keeping verification latency independent of account
	// existence.
	dummyHash []byte
}

// New creates a vault hashing with the given bcrypt cost; cost 0 selects the
// bcrypt default.
func New(store AccountStore, logger *log.Logger, cost int) (*Vault, error) {
	if store == nil {
		panic("vault.New: account store is nil")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &Vault{store: store, log: logger, cost: cost, dummyHash: dummy}, nil
}

// NormalizeEmail lowercases an address so lookups and the uniqueness
// constraint are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register hashes the password and persists a new account. The email is
// normalized before storage; a clash with an existing account surfaces as
// domain.ErrDuplicateEmail.
func (v *Vault) Register(ctx context.Context, email, rawPassword string) (uuid.UUID, error) {
	normalized := NormalizeEmail(email)

	hash, err := bcrypt.GenerateFromPassword([]byte(rawPassword), v.cost)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", domain.ErrHashingFailure, err)
	}

	accountID := uuid.New()
	if err := v.store.CreateAccount(ctx, accountID, normalized, string(hash)); err != nil {
		return uuid.Nil, err
	}

	v.log.WithField("account_id", accountID).Info("account registered")
	return accountID, nil
}

// Verify checks credentials against the stored hash. ok is false for an
// unknown email and for a wrong password alike; callers cannot tell the two
// apart, and a dummy comparison keeps the unknown-email path from returning
// measurably faster.
func (v *Vault) Verify(ctx context.Context, email, rawPassword string) (accountID uuid.UUID, ok bool, err error) {
	normalized := NormalizeEmail(email)

	account, err := v.store.AccountByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			_ = bcrypt.CompareHashAndPassword(v.dummyHash, []byte(rawPassword))
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(rawPassword)); err != nil {
		return uuid.Nil, false, nil
	}
	return account.ID, true, nil
}
