package domain

import (
	"errors"
	"fmt"
	"time"
)

// Core domain models shared by the services and adapters. Everything here is
// per-session UI state; only the theme preference outlives a session.

// VerificationState mirrors what the verification page needs to render.
type VerificationState struct {
	Verified        bool
	ChallengeLoaded bool
	ChallengeFailed bool
	RetryCount      int
}

// ThemePreference is the persisted dark/light flag.
type ThemePreference struct {
	DarkMode bool
}

type CheckKind string

const (
	KindURL   CheckKind = "url"
	KindEmail CheckKind = "email"
)

func (k CheckKind) Valid() bool { return k == KindURL || k == KindEmail }

type CheckStatus string

const (
	StatusIdle      CheckStatus = "idle"
	StatusAnalyzing CheckStatus = "analyzing"
	StatusDone      CheckStatus = "done"
)

type Verdict string

const (
	VerdictNone     Verdict = "none"
	VerdictSafe     Verdict = "safe"
	VerdictPhishing Verdict = "phishing"
)

var ErrInvalidTransition = errors.New("invalid check transition")

// CheckRequest is one submission of a checker form. Verdict is only
// meaningful once Status is StatusDone.
type CheckRequest struct {
	ID          string
	Kind        CheckKind
	Input       string
	Host        string // registrable domain, URL checks only
	Status      CheckStatus
	Verdict     Verdict
	SubmittedAt time.Time
	CompletedAt *time.Time
}

func NewCheckRequest(id string, kind CheckKind, input string) CheckRequest {
	return CheckRequest{
		ID:      id,
		Kind:    kind,
		Input:   input,
		Status:  StatusIdle,
		Verdict: VerdictNone,
	}
}

// Begin moves an idle request to analyzing.
func (c *CheckRequest) Begin(at time.Time) error {
	if c.Status != StatusIdle {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, StatusAnalyzing)
	}
	c.Status = StatusAnalyzing
	c.SubmittedAt = at
	return nil
}

// Complete assigns the verdict and moves an analyzing request to done.
func (c *CheckRequest) Complete(v Verdict, at time.Time) error {
	if c.Status != StatusAnalyzing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, StatusDone)
	}
	if v != VerdictSafe && v != VerdictPhishing {
		return fmt.Errorf("%w: verdict %q", ErrInvalidTransition, v)
	}
	c.Status = StatusDone
	c.Verdict = v
	c.CompletedAt = &at
	return nil
}

func (c CheckRequest) Done() bool { return c.Status == StatusDone }
