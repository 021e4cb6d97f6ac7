package api

import (
	"context"
	"time"

	"github.com/google/uuid"

	"taskledger-api/domain"
)

// Storage abstracts the view-cached event store for handlers.
type Storage interface {
	FetchView(ctx context.Context, accountID uuid.UUID, day time.Time) (domain.ViewSnapshot, error)
	CreateTask(ctx context.Context, accountID uuid.UUID, content string) (uuid.UUID, error)
	AppendEvent(ctx context.Context, accountID, taskID uuid.UUID, kind domain.EventKind) error
	Ping(ctx context.Context) error
}

// Credentials registers accounts and verifies logins.
type Credentials interface {
	Register(ctx context.Context, email, rawPassword string) (uuid.UUID, error)
	Verify(ctx context.Context, email, rawPassword string) (accountID uuid.UUID, ok bool, err error)
}

// Sessions issues and authenticates stateless session tokens.
type Sessions interface {
	Issue(accountID uuid.UUID) (string, error)
	Authenticate(token string) (uuid.UUID, error)
	TTL() time.Duration
}

// Deduper suppresses duplicate task creation when a client retries with the
// same idempotency key.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, accountID, key string) (bool, error)
	// Remove deletes a previously added key, used when the guarded write fails.
	Remove(ctx context.Context, accountID, key string) error
}
