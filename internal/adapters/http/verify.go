package httpadapter

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"cybergrid/internal/services/gate"
	"cybergrid/internal/services/theme"
	"cybergrid/internal/session"
)

const (
	msgRetrying = "There was an error loading the verification. Retrying..."
	msgTerminal = "Unable to load verification. Please try again later."
	msgRejected = "Verification could not be confirmed. Please try again."
)

type gateState struct {
	Phase           gate.Phase `json:"phase"`
	Verified        bool       `json:"verified"`
	ChallengeLoaded bool       `json:"challengeLoaded"`
	ChallengeFailed bool       `json:"challengeFailed"`
	RetryCount      int        `json:"retryCount"`
	Retrying        bool       `json:"retrying"`
	Terminal        bool       `json:"terminal"`
	Message         string     `json:"message,omitempty"`
}

func stateOf(snap gate.Snapshot) gateState {
	st := gateState{
		Phase:           snap.Phase,
		Verified:        snap.Verified,
		ChallengeLoaded: snap.ChallengeLoaded,
		ChallengeFailed: snap.ChallengeFailed,
		RetryCount:      snap.RetryCount,
		Retrying:        snap.Retrying,
		Terminal:        snap.Terminal,
	}
	switch {
	case snap.Terminal:
		st.Message = msgTerminal
	case snap.Retrying:
		st.Message = msgRetrying
	}
	return st
}

type gateView struct {
	gateState
	DarkMode      bool
	SiteKey       string
	WidgetTheme   string
	ShowWidget    bool
	BypassAllowed bool
}

func (s *Server) renderGate(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	snap := sess.Gate.Snapshot()
	view := gateView{
		gateState:     stateOf(snap),
		DarkMode:      sess.DarkMode(),
		SiteKey:       s.siteKey,
		WidgetTheme:   theme.WidgetTheme(sess.DarkMode()),
		ShowWidget:    !snap.ChallengeFailed,
		BypassAllowed: snap.BypassAllowed && snap.ChallengeFailed,
	}
	if err := s.pages.verification(w, http.StatusOK, view); err != nil {
		s.log.WithError(err).Error("render verification page")
	}
}

func (s *Server) verifyState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateOf(sessionFrom(r).Gate.Snapshot()))
}

type gateEvent struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// verifyEvent receives the challenge widget callbacks.
func (s *Server) verifyEvent(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	var ev gateEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid event"})
		return
	}

	switch ev.Type {
	case "load":
		sess.Gate.ChallengeLoaded()
	case "error":
		sess.Gate.ChallengeFailed()
	case "success":
		ok, err := s.verifier.Verify(r.Context(), ev.Token, remoteIP(r))
		if err != nil {
			s.log.WithError(err).Warn("challenge token verification failed")
		}
		if !ok {
			st := stateOf(sess.Gate.Snapshot())
			st.Message = msgRejected
			writeJSON(w, http.StatusUnprocessableEntity, st)
			return
		}
		if err := sess.Gate.ChallengeSucceeded(ev.Token); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown event type"})
		return
	}
	writeJSON(w, http.StatusOK, stateOf(sess.Gate.Snapshot()))
}

func (s *Server) verifyRetry(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r).Gate.Retry(); err != nil {
		if errors.Is(err, gate.ErrRetryNotAllowed) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		s.log.WithError(err).Error("manual retry")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) verifyBypass(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r).Gate.Bypass(); err != nil {
		if errors.Is(err, gate.ErrBypassDisabled) {
			http.NotFound(w, r)
			return
		}
		s.log.WithError(err).Error("verification bypass")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
