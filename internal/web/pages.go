package web

import (
	"bytes"
	"errors"
	"html/template"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/felixgeelhaar/blackbird/internal/domain"
	"github.com/felixgeelhaar/blackbird/internal/exercise"
	"github.com/felixgeelhaar/blackbird/internal/gate"
	"github.com/felixgeelhaar/blackbird/internal/remote"
	"github.com/felixgeelhaar/blackbird/internal/tree"
)

// Messages shown on the auth forms
const (
	msgSignupSuccess = "Registration successful! You can now log in."
	msgServiceDown   = "The service is unavailable. Please try again."
)

type loginForm struct {
	Username string
	Error    string
	Fields   map[string]string
}

type signupForm struct {
	Username string
	Email    string
	Error    string
	Success  string
	Fields   map[string]string
}

type dashboardData struct {
	Progress domain.Progress
	Recent   []*domain.Attempt
}

type lessonsData struct {
	Outline template.HTML
	Error   string
}

type exerciseData struct {
	Base         string
	Snap         exercise.Snapshot
	Difficulties []int
	Error        string
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.pages.render(w, r, http.StatusOK, "home", page{Title: "Welcome"})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.pages.render(w, r, http.StatusOK, "login", page{Title: "Log in", Data: loginForm{}})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	req := remote.LoginRequest{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	form := loginForm{Username: req.Username}

	token, err := s.auth.Login(r.Context(), req)
	if err != nil {
		status := s.formError(err, &form.Error, &form.Fields)
		s.pages.render(w, r, status, "login", page{Title: "Log in", Data: form})
		return
	}

	browser := GetBrowser(r.Context())
	if err := gate.NewSession(browser).SignIn(r.Context(), token, req.Username); err != nil {
		slog.Error("failed to store session", "correlation_id", GetCorrelationID(r.Context()), "error", err)
		form.Error = msgServiceDown
		s.pages.render(w, r, http.StatusInternalServerError, "login", page{Title: "Log in", Data: form})
		return
	}

	slog.Info("user signed in", "username", req.Username, "browser", browser.ID())
	http.Redirect(w, r, domain.RouteDashboard, http.StatusSeeOther)
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	s.pages.render(w, r, http.StatusOK, "signup", page{Title: "Sign up", Data: signupForm{}})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	req := remote.RegisterRequest{
		Username: r.PostFormValue("username"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	form := signupForm{Username: req.Username, Email: req.Email}

	if err := s.auth.Register(r.Context(), req); err != nil {
		status := s.formError(err, &form.Error, &form.Fields)
		s.pages.render(w, r, status, "signup", page{Title: "Sign up", Data: form})
		return
	}

	slog.Info("user registered", "username", req.Username)
	s.pages.render(w, r, http.StatusOK, "signup", page{Title: "Sign up", Data: signupForm{Success: msgSignupSuccess}})
}

// formError fills the inline error of an auth form and picks the status
func (s *Server) formError(err error, msg *string, fields *map[string]string) int {
	if ve, ok := domain.IsValidationError(err); ok {
		*fields = ve.Fields
		return http.StatusBadRequest
	}
	if ae, ok := domain.IsAuthError(err); ok {
		*msg = ae.Detail
		return http.StatusUnauthorized
	}
	slog.Error("auth request failed", "error", err)
	*msg = msgServiceDown
	return http.StatusBadGateway
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if browser := GetBrowser(r.Context()); browser != nil {
		if err := gate.NewSession(browser).SignOut(r.Context()); err != nil {
			slog.Error("failed to clear session", "correlation_id", GetCorrelationID(r.Context()), "error", err)
		}
	}
	http.Redirect(w, r, domain.RouteLogin, http.StatusSeeOther)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	id := gate.FromContext(r.Context())
	data := dashboardData{Progress: domain.Progress{Username: id.Username}}

	if s.progress != nil {
		if p, err := s.progress.Summary(r.Context(), id.Username); err != nil {
			slog.Warn("failed to load progress", "username", id.Username, "error", err)
		} else {
			data.Progress = p
		}
		if recent, err := s.progress.Recent(r.Context(), id.Username, 5); err == nil {
			data.Recent = recent
		}
	}

	s.pages.render(w, r, http.StatusOK, "dashboard", page{Title: "Dashboard", Data: data})
}

// owner scopes mounted views and sessions to the browser that created them
func owner(r *http.Request) string {
	if b := GetBrowser(r.Context()); b != nil {
		return b.ID()
	}
	return ""
}

// Lesson tree

func (s *Server) handleMountLessons(w http.ResponseWriter, r *http.Request) {
	view := tree.NewView(s.lessons.Forest(), nil)
	id := s.views.Mount(owner(r), view)
	http.Redirect(w, r, domain.RouteLessons+"/"+id, http.StatusSeeOther)
}

func (s *Server) handleLessons(w http.ResponseWriter, r *http.Request) {
	viewID := r.PathValue("view")
	view, err := s.views.Get(owner(r), viewID)
	if err != nil {
		http.Redirect(w, r, domain.RouteLessons, http.StatusSeeOther)
		return
	}
	s.renderLessons(w, r, http.StatusOK, view, viewID, "")
}

func (s *Server) renderLessons(w http.ResponseWriter, r *http.Request, status int, view *tree.View, viewID, msg string) {
	var buf bytes.Buffer
	if err := view.Render(&buf, domain.RouteLessons+"/"+viewID); err != nil {
		if errors.Is(err, domain.ErrNotMounted) {
			http.Redirect(w, r, domain.RouteLessons, http.StatusSeeOther)
			return
		}
		slog.Error("render outline", "view", viewID, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	s.pages.render(w, r, status, "lessons", page{
		Title: "Lessons",
		// Render escapes every value it writes.
		Data: lessonsData{Outline: template.HTML(buf.String()), Error: msg},
	})
}

func (s *Server) handleNodeClick(w http.ResponseWriter, r *http.Request) {
	s.applyTreeAction(w, r, func(v *tree.View, p tree.Path) (tree.Action, error) {
		return v.Click(p)
	})
}

func (s *Server) handleNodeToggle(w http.ResponseWriter, r *http.Request) {
	s.applyTreeAction(w, r, func(v *tree.View, p tree.Path) (tree.Action, error) {
		return v.Toggle(p)
	})
}

func (s *Server) handleExerciseClick(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		index = -1
	}
	s.applyTreeAction(w, r, func(v *tree.View, p tree.Path) (tree.Action, error) {
		return v.ClickExercise(p, index)
	})
}

// applyTreeAction runs one renderer operation and follows the navigation it
// emits, if any. Navigating away unmounts the view.
func (s *Server) applyTreeAction(w http.ResponseWriter, r *http.Request, op func(*tree.View, tree.Path) (tree.Action, error)) {
	viewID := r.PathValue("view")
	view, err := s.views.Get(owner(r), viewID)
	if err != nil {
		http.Redirect(w, r, domain.RouteLessons, http.StatusSeeOther)
		return
	}

	action, err := op(view, tree.Path(r.PathValue("path")))
	if err != nil {
		s.renderLessons(w, r, statusOf(err), view, viewID, err.Error())
		return
	}

	if action.Kind == tree.ActionNavigate {
		if err := s.views.Unmount(owner(r), viewID); err != nil {
			slog.Debug("unmount view", "view", viewID, "error", err)
		}
		http.Redirect(w, r, action.Route, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, domain.RouteLessons+"/"+viewID, http.StatusSeeOther)
}

// Exercise sessions

func (s *Server) handleMountExercise(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	id := gate.FromContext(r.Context())

	difficulty := domain.Difficulty(s.cfg.Exercise.DefaultDifficulty)
	if q := r.URL.Query().Get("difficulty"); q != "" {
		if d, err := domain.ParseDifficulty(q); err == nil {
			difficulty = d
		}
	}

	sess := exercise.New(code, s.fetcher, exercise.Options{
		Difficulty:    difficulty,
		TickInterval:  s.cfg.Exercise.TickInterval(),
		RedirectDelay: s.cfg.Exercise.RedirectDelay(),
		Username:      id.Username,
		Clock:         s.clock,
		OnSolved:      s.recordAttempt,
	})
	if err := sess.Start(); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	sessionID := s.sessions.Mount(owner(r), sess)
	slog.Info("exercise session started", "code", code, "difficulty", int(difficulty), "session", sessionID)
	http.Redirect(w, r, sessionBase(code, sessionID), http.StatusSeeOther)
}

func (s *Server) recordAttempt(a domain.Attempt) {
	if s.progress != nil {
		s.progress.RecordAsync(a)
	}
}

func sessionBase(code, sessionID string) string {
	return domain.ExerciseRoute(code) + "/" + sessionID
}

// session looks up the mounted session or sends the browser to a fresh one
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*exercise.Session, string, bool) {
	code, sessionID := r.PathValue("code"), r.PathValue("session")
	sess, err := s.sessions.Get(owner(r), sessionID)
	if err != nil {
		http.Redirect(w, r, domain.ExerciseRoute(code), http.StatusSeeOther)
		return nil, "", false
	}
	return sess, sessionBase(sess.Code(), sessionID), true
}

func (s *Server) handleExercise(w http.ResponseWriter, r *http.Request) {
	sess, base, ok := s.session(w, r)
	if !ok {
		return
	}
	s.renderExercise(w, r, http.StatusOK, sess, base, "")
}

func (s *Server) renderExercise(w http.ResponseWriter, r *http.Request, status int, sess *exercise.Session, base, msg string) {
	snap := sess.Snapshot()

	if snap.Redirect != "" {
		if err := s.sessions.Unmount(owner(r), r.PathValue("session")); err != nil {
			slog.Debug("unmount session", "error", err)
		}
		http.Redirect(w, r, snap.Redirect, http.StatusSeeOther)
		return
	}

	p := page{Title: "Exercise " + snap.Code}
	switch snap.State {
	case exercise.StateLoading.String():
		p.Refresh = "1"
	case exercise.StateLoadFailed.String():
		p.Refresh = strconv.Itoa(max(1, int(math.Ceil(s.cfg.Exercise.RedirectDelay().Seconds()))))
	}

	difficulties := make([]int, 0, domain.MaxDifficulty)
	for _, d := range domain.Difficulties() {
		difficulties = append(difficulties, int(d))
	}
	p.Data = exerciseData{Base: base, Snap: snap, Difficulties: difficulties, Error: msg}

	s.pages.render(w, r, status, "exercise", p)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	sess, base, ok := s.session(w, r)
	if !ok {
		return
	}

	if _, err := sess.Submit(r.PostFormValue("answer")); err != nil {
		if ve, ok := domain.IsValidationError(err); ok {
			s.renderExercise(w, r, http.StatusBadRequest, sess, base, ve.Fields["answer"])
			return
		}
		if !errors.Is(err, domain.ErrNotReady) {
			s.renderExercise(w, r, statusOf(err), sess, base, err.Error())
			return
		}
	}
	http.Redirect(w, r, base, http.StatusSeeOther)
}

func (s *Server) handleDifficulty(w http.ResponseWriter, r *http.Request) {
	sess, base, ok := s.session(w, r)
	if !ok {
		return
	}

	d, err := domain.ParseDifficulty(r.PostFormValue("difficulty"))
	if err == nil {
		err = sess.SetDifficulty(d)
	}
	if err != nil && !errors.Is(err, domain.ErrSessionEnded) {
		s.renderExercise(w, r, statusOf(err), sess, base, err.Error())
		return
	}
	http.Redirect(w, r, base, http.StatusSeeOther)
}

func (s *Server) handleHints(w http.ResponseWriter, r *http.Request) {
	sess, base, ok := s.session(w, r)
	if !ok {
		return
	}
	if _, err := sess.ToggleHints(); err != nil && !errors.Is(err, domain.ErrNotReady) {
		s.renderExercise(w, r, statusOf(err), sess, base, err.Error())
		return
	}
	http.Redirect(w, r, base, http.StatusSeeOther)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	sess, base, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Next(); err != nil && !errors.Is(err, domain.ErrSessionEnded) {
		s.renderExercise(w, r, statusOf(err), sess, base, err.Error())
		return
	}
	http.Redirect(w, r, base, http.StatusSeeOther)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Unmount(owner(r), r.PathValue("session")); err != nil {
		slog.Debug("unmount session", "error", err)
	}
	http.Redirect(w, r, domain.RouteLessons, http.StatusSeeOther)
}

// statusOf maps domain errors onto HTTP status codes for pages
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotMounted),
		errors.Is(err, domain.ErrNodeNotFound),
		errors.Is(err, domain.ErrExerciseNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidDifficulty),
		errors.Is(err, domain.ErrNotExpandable),
		errors.Is(err, domain.ErrNodeClosed):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotReady),
		errors.Is(err, domain.ErrSessionEnded):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
