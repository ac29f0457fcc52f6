package httpadapter

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"cybergrid/internal/ports"
	"cybergrid/internal/services/theme"
	"cybergrid/internal/session"
	checkrunner "cybergrid/internal/workers/checkrunner"
)

// PreferenceStores returns the server-side preference store for a visitor.
type PreferenceStores func(visitorID uuid.UUID) ports.KeyValueStore

// Server renders the site and owns the shell: sessions, the verification
// gate in front of every page, and the theme flag.
type Server struct {
	sessions    *session.Store
	checker     ports.Checker
	processor   checkrunner.CheckProcessor
	theme       *theme.Service
	preferences PreferenceStores
	verifier    ports.TokenVerifier
	siteKey     string
	development bool
	inlineLimit time.Duration
	pages       *renderer
	log         logrus.FieldLogger
}

type Options struct {
	Sessions  *session.Store
	Checker   ports.Checker
	Processor checkrunner.CheckProcessor
	Theme     *theme.Service
	// Preferences is optional; without it the theme lives only in the
	// browser cookie.
	Preferences PreferenceStores
	Verifier    ports.TokenVerifier
	SiteKey     string
	Development bool
	// InlineLimit bounds a ?wait=true check.
	InlineLimit time.Duration
	Log         logrus.FieldLogger
}

func New(opts Options) (*Server, error) {
	pages, err := newRenderer()
	if err != nil {
		return nil, err
	}
	if opts.InlineLimit <= 0 {
		opts.InlineLimit = 30 * time.Second
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Server{
		sessions:    opts.Sessions,
		checker:     opts.Checker,
		processor:   opts.Processor,
		theme:       opts.Theme,
		preferences: opts.Preferences,
		verifier:    opts.Verifier,
		siteKey:     opts.SiteKey,
		development: opts.Development,
		inlineLimit: opts.InlineLimit,
		pages:       pages,
		log:         opts.Log,
	}, nil
}

// Routes returns the full router. Unknown paths redirect home.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)

	r.Group(func(r chi.Router) {
		r.Use(s.withSession)

		r.Route("/verify", func(r chi.Router) {
			r.Get("/state", s.verifyState)
			r.Post("/events", s.verifyEvent)
			r.Post("/retry", s.verifyRetry)
			if s.development {
				r.Post("/bypass", s.verifyBypass)
			}
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireVerified)
			r.Post("/theme/toggle", s.toggleTheme)
			r.Get("/", s.home)
			r.Get("/url-checker", s.urlChecker)
			r.Post("/url-checker", s.submitURL)
			r.Get("/email-checker", s.emailChecker)
			r.Post("/email-checker", s.submitEmail)
			r.Get("/about", s.about)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusFound)
	})
	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
