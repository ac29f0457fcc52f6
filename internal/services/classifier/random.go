package classifier

import (
	"context"
	"math/rand/v2"

	"cybergrid/internal/domain"
)

// Random is the placeholder classifier: an unweighted coin flip. It ignores
// the submitted content entirely.
type Random struct {
	flip func() bool
}

func NewRandom() *Random {
	return &Random{flip: func() bool { return rand.IntN(2) == 0 }}
}

// NewFixed always answers v. Handy for tests and demos.
func NewFixed(v domain.Verdict) *Random {
	return &Random{flip: func() bool { return v == domain.VerdictSafe }}
}

func (r *Random) Classify(ctx context.Context, _ domain.CheckRequest) (domain.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return domain.VerdictNone, err
	}
	if r.flip() {
		return domain.VerdictSafe, nil
	}
	return domain.VerdictPhishing, nil
}
