package httpadapter

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"cybergrid/internal/ports"
	"cybergrid/internal/session"
)

// cookieStore keeps preferences in browser cookies, one cookie per key.
type cookieStore struct {
	w http.ResponseWriter
	r *http.Request
}

func (c cookieStore) Get(_ context.Context, key string) (string, bool, error) {
	ck, err := c.r.Cookie(key)
	if err != nil {
		return "", false, nil
	}
	return ck.Value, true, nil
}

func (c cookieStore) Set(_ context.Context, key, value string) error {
	http.SetCookie(c.w, &http.Cookie{
		Name:     key,
		Value:    value,
		Path:     "/",
		MaxAge:   400 * 24 * 3600,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// layeredStore reads from the first store holding the key. Set writes last
// to first and stops at the first error, so the front store (the cookie) is
// only written once every store behind it has accepted the value.
type layeredStore []ports.KeyValueStore

func (l layeredStore) Get(ctx context.Context, key string) (string, bool, error) {
	for _, st := range l {
		v, found, err := st.Get(ctx, key)
		if err != nil {
			return "", false, err
		}
		if found {
			return v, true, nil
		}
	}
	return "", false, nil
}

func (l layeredStore) Set(ctx context.Context, key, value string) error {
	for i := len(l) - 1; i >= 0; i-- {
		if err := l[i].Set(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) themeStore(w http.ResponseWriter, r *http.Request, sess *session.Session) ports.KeyValueStore {
	stores := layeredStore{cookieStore{w: w, r: r}}
	if s.preferences != nil {
		stores = append(stores, s.preferences(sess.VisitorID))
	}
	return stores
}

func (s *Server) toggleTheme(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	dark, err := s.theme.Toggle(r.Context(), s.themeStore(w, r, sess), sess.DarkMode())
	if err != nil {
		s.log.WithError(err).Error("theme toggle")
		http.Error(w, "could not save theme", http.StatusInternalServerError)
		return
	}
	sess.SetDarkMode(dark)
	http.Redirect(w, r, backTo(r), http.StatusSeeOther)
}

// backTo returns the same-site path the request came from, or "/".
func backTo(r *http.Request) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || (ref.Host != "" && ref.Host != r.Host) {
		return "/"
	}
	if !strings.HasPrefix(ref.Path, "/") || strings.HasPrefix(ref.Path, "//") {
		return "/"
	}
	return ref.Path
}
