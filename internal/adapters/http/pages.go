package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/oapi-codegen/runtime"

	"cybergrid/internal/domain"
	"cybergrid/internal/services/checker"
	checkrunner "cybergrid/internal/workers/checkrunner"
)

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "home", pageData{Title: "Cyber Grid", Active: "/"})
}

func (s *Server) about(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "about", pageData{Title: "About Cyber Grid", Active: "/about", Body: s.pages.about})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	data.DarkMode = sessionFrom(r).DarkMode()
	if err := s.pages.page(w, status, name, data); err != nil {
		s.log.WithError(err).WithField("page", name).Error("render page")
	}
}

// checkView carries one checker page: its copy, the form state and the
// current request's result.
type checkView struct {
	Kind        domain.CheckKind
	Heading     string
	Lead        string
	Label       string
	Field       string
	Placeholder string
	Button      string
	Busy        string
	Subject     string
	Input       string
	Error       string
	Request     domain.CheckRequest
}

func (v checkView) Analyzing() bool { return v.Request.Status == domain.StatusAnalyzing }
func (v checkView) Safe() bool      { return v.Request.Done() && v.Request.Verdict == domain.VerdictSafe }
func (v checkView) Phishing() bool  { return v.Request.Done() && v.Request.Verdict == domain.VerdictPhishing }
func (v checkView) Multiline() bool { return v.Kind == domain.KindEmail }

// Indicators lists the warning signs shown with a phishing email verdict.
func (v checkView) Indicators() []string {
	if v.Kind != domain.KindEmail || !v.Phishing() {
		return nil
	}
	return []string{
		"Suspicious sender address",
		"Urgent or threatening language",
		"Requests for sensitive information",
	}
}

func newCheckView(kind domain.CheckKind) *checkView {
	if kind == domain.KindEmail {
		return &checkView{
			Kind:        kind,
			Heading:     "Email Content Analyzer",
			Lead:        "Paste the email content to check for potential phishing attempts",
			Label:       "Email Content",
			Field:       "email",
			Placeholder: "Paste the email content here...",
			Button:      "Analyze Email",
			Busy:        "Analyzing Content...",
			Subject:     "Email",
		}
	}
	return &checkView{
		Kind:        kind,
		Heading:     "URL Security Checker",
		Lead:        "Enter a URL to check if it's safe or potentially malicious",
		Label:       "URL to Check",
		Field:       "url",
		Placeholder: "https://example.com",
		Button:      "Check URL",
		Busy:        "Analyzing URL...",
		Subject:     "URL",
	}
}

func pathOf(kind domain.CheckKind) string {
	if kind == domain.KindEmail {
		return "/email-checker"
	}
	return "/url-checker"
}

func (s *Server) urlChecker(w http.ResponseWriter, r *http.Request) {
	s.showChecker(w, r, domain.KindURL)
}

func (s *Server) emailChecker(w http.ResponseWriter, r *http.Request) {
	s.showChecker(w, r, domain.KindEmail)
}

func (s *Server) submitURL(w http.ResponseWriter, r *http.Request) {
	s.submitCheck(w, r, domain.KindURL)
}

func (s *Server) submitEmail(w http.ResponseWriter, r *http.Request) {
	s.submitCheck(w, r, domain.KindEmail)
}

func (s *Server) showChecker(w http.ResponseWriter, r *http.Request, kind domain.CheckKind) {
	req, err := s.checker.Current(r.Context(), sessionFrom(r).ID, kind)
	if err != nil {
		s.log.WithError(err).Error("load current check")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.renderChecker(w, r, http.StatusOK, kind, req, "", "")
}

func (s *Server) renderChecker(w http.ResponseWriter, r *http.Request, status int, kind domain.CheckKind, req domain.CheckRequest, input, problem string) {
	view := newCheckView(kind)
	view.Request = req
	view.Input = input
	if input == "" {
		view.Input = req.Input
	}
	view.Error = problem
	s.render(w, r, status, "checker", pageData{
		Title:   view.Heading,
		Active:  pathOf(kind),
		Check:   view,
		Refresh: view.Analyzing(),
	})
}

// submitCheck queues the input and redirects back to the checker page, or
// with ?wait=true analyzes inline and renders the finished result.
func (s *Server) submitCheck(w http.ResponseWriter, r *http.Request, kind domain.CheckKind) {
	var wait bool
	if err := runtime.BindQueryParameter("form", true, false, "wait", r.URL.Query(), &wait); err != nil {
		http.Error(w, "invalid wait parameter", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	input := r.PostForm.Get(newCheckView(kind).Field)
	sess := sessionFrom(r)

	if !wait {
		_, err := s.checker.Submit(r.Context(), sess.ID, kind, input)
		if err != nil {
			s.checkFailed(w, r, kind, input, err)
			return
		}
		http.Redirect(w, r, pathOf(kind), http.StatusSeeOther)
		return
	}

	req, err := s.checker.Accept(r.Context(), sess.ID, kind, input)
	if err != nil {
		s.checkFailed(w, r, kind, input, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.inlineLimit)
	defer cancel()
	if err := checkrunner.ProcessInline(ctx, s.processor, req.ID); err != nil {
		s.checkFailed(w, r, kind, input, err)
		return
	}
	done, err := s.checker.Current(r.Context(), sess.ID, kind)
	if err != nil {
		s.checkFailed(w, r, kind, input, err)
		return
	}
	s.renderChecker(w, r, http.StatusOK, kind, done, "", "")
}

func (s *Server) checkFailed(w http.ResponseWriter, r *http.Request, kind domain.CheckKind, input string, err error) {
	if errors.Is(err, checker.ErrInvalidInput) {
		idle := domain.NewCheckRequest("", kind, "")
		s.renderChecker(w, r, http.StatusBadRequest, kind, idle, input, validationMessage(err))
		return
	}
	s.log.WithError(err).WithField("kind", kind).Error("check submission")
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func validationMessage(err error) string {
	if rest, ok := strings.CutPrefix(err.Error(), checker.ErrInvalidInput.Error()+": "); ok {
		return rest
	}
	return err.Error()
}
