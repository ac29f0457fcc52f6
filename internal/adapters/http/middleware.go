package httpadapter

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"cybergrid/internal/session"
)

const (
	sessionCookie = "cg_session"
	visitorCookie = "cg_visitor"
)

type ctxKey int

const sessionKey ctxKey = iota

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		}).Info("request")
	})
}

// withSession attaches the browser's session, creating one on first visit.
// A new session reads the theme preference before its gate leaves loading.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(sessionCookie); err == nil {
			if sess, ok := s.sessions.Get(c.Value); ok {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sess)))
				return
			}
		}

		visitor := uuid.New()
		if c, err := r.Cookie(visitorCookie); err == nil {
			if id, err := uuid.Parse(c.Value); err == nil {
				visitor = id
			}
		}
		sess := s.sessions.Create(visitor)
		dark, err := s.theme.Load(r.Context(), s.themeStore(w, r, sess))
		if err != nil {
			s.log.WithError(err).Warn("theme preference unavailable; using light mode")
		}
		sess.SetDarkMode(dark)
		sess.Gate.Ready()

		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: sess.ID, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
		http.SetCookie(w, &http.Cookie{Name: visitorCookie, Value: visitor.String(), Path: "/", MaxAge: 400 * 24 * 3600, HttpOnly: true, SameSite: http.SameSiteLaxMode})
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sess)))
	})
}

// requireVerified renders the verification page in place of any page until
// the session's gate is verified.
func (s *Server) requireVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		if sess.Gate.Verified() {
			next.ServeHTTP(w, r)
			return
		}
		s.renderGate(w, r, sess)
	})
}

func sessionFrom(r *http.Request) *session.Session {
	return r.Context().Value(sessionKey).(*session.Session)
}
