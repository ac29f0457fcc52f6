package ports

import (
	"context"
	"errors"

	"cybergrid/internal/domain"
)

// ErrNotFound is returned by repositories for unknown or discarded records.
var ErrNotFound = errors.New("not found")

// CheckRepository keeps the current check request per session and kind.
// Saving a new request for the same session and kind discards the old one.
type CheckRepository interface {
	Replace(ctx context.Context, sessionID string, req domain.CheckRequest) error
	Get(ctx context.Context, checkID string) (domain.CheckRequest, error)
	Current(ctx context.Context, sessionID string, kind domain.CheckKind) (req domain.CheckRequest, found bool, err error)
	Complete(ctx context.Context, checkID string, verdict domain.Verdict) error
	DropSession(ctx context.Context, sessionID string) error
	// Discarded returns a channel closed once the request is replaced or
	// dropped, or ErrNotFound if it is already gone.
	Discarded(ctx context.Context, checkID string) (<-chan struct{}, error)
}

// KeyValueStore is the persisted preference surface. Values are plain strings.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}
