package checker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/net/publicsuffix"

	"cybergrid/internal/domain"
	"cybergrid/internal/ports"
)

var ErrInvalidInput = errors.New("invalid input")

// rules are the form-level requirements for each checker.
var rules = map[domain.CheckKind]string{
	domain.KindURL:   "required,url",
	domain.KindEmail: "required",
}

type Service struct {
	checks   ports.CheckRepository
	queue    ports.JobQueue
	validate *validator.Validate
	clock    clockwork.Clock
}

func New(checks ports.CheckRepository, queue ports.JobQueue, validate *validator.Validate, clock clockwork.Clock) *Service {
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{checks: checks, queue: queue, validate: validate, clock: clock}
}

// Submit starts analysis of input, replacing the session's previous request
// of the same kind.
func (s *Service) Submit(ctx context.Context, sessionID string, kind domain.CheckKind, input string) (domain.CheckRequest, error) {
	req, err := s.prepare(ctx, sessionID, kind, input)
	if err != nil {
		return req, err
	}
	if err := s.queue.Enqueue(ctx, ports.CheckJob{CheckID: req.ID}); err != nil {
		return req, fmt.Errorf("enqueue check: %w", err)
	}
	return req, nil
}

// Accept stores the request as analyzing without queueing it, for callers
// that process it inline.
func (s *Service) Accept(ctx context.Context, sessionID string, kind domain.CheckKind, input string) (domain.CheckRequest, error) {
	return s.prepare(ctx, sessionID, kind, input)
}

func (s *Service) prepare(ctx context.Context, sessionID string, kind domain.CheckKind, input string) (domain.CheckRequest, error) {
	if !kind.Valid() {
		return domain.CheckRequest{}, fmt.Errorf("%w: unknown checker %q", ErrInvalidInput, kind)
	}
	input = strings.TrimSpace(input)
	if err := s.validate.Var(input, rules[kind]); err != nil {
		return domain.CheckRequest{}, fmt.Errorf("%w: %s", ErrInvalidInput, describe(kind, err))
	}

	req := domain.NewCheckRequest(uuid.NewString(), kind, input)
	if kind == domain.KindURL {
		req.Host = registrableHost(input)
	}
	if err := req.Begin(s.clock.Now()); err != nil {
		return req, err
	}
	if err := s.checks.Replace(ctx, sessionID, req); err != nil {
		return req, fmt.Errorf("store check: %w", err)
	}
	return req, nil
}

// Current returns the session's request of kind, or an idle request when
// nothing has been submitted.
func (s *Service) Current(ctx context.Context, sessionID string, kind domain.CheckKind) (domain.CheckRequest, error) {
	req, found, err := s.checks.Current(ctx, sessionID, kind)
	if err != nil {
		return domain.CheckRequest{}, err
	}
	if !found {
		return domain.NewCheckRequest("", kind, ""), nil
	}
	return req, nil
}

func registrableHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return registrable
}

func describe(kind domain.CheckKind, err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Tag() {
		case "required":
			if kind == domain.KindURL {
				return "please enter a URL"
			}
			return "please paste the email content"
		case "url":
			return "please enter a valid URL such as https://example.com"
		}
	}
	return err.Error()
}
