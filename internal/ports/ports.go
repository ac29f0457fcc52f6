package ports

import (
	"context"

	"cybergrid/internal/domain"
)

// Checker accepts checker-form submissions and reports their progress.
type Checker interface {
	Submit(ctx context.Context, sessionID string, kind domain.CheckKind, input string) (domain.CheckRequest, error)
	Accept(ctx context.Context, sessionID string, kind domain.CheckKind, input string) (domain.CheckRequest, error)
	Current(ctx context.Context, sessionID string, kind domain.CheckKind) (domain.CheckRequest, error)
}

// Classifier decides a verdict for a submitted check.
type Classifier interface {
	Classify(ctx context.Context, req domain.CheckRequest) (domain.Verdict, error)
}

// TokenVerifier decides whether a challenge widget token is acceptable.
type TokenVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}
