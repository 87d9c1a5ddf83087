// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package httpd

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

// maxBodyBytes caps request bodies; the forms are a handful of short fields.
const maxBodyBytes = 64 << 10

type sessionResponse struct {
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}

type errorResponse struct {
	Errors map[string][]string `json:"errors"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	form, ok := s.readForm(w, r)
	if !ok {
		return
	}

	// A stale session cookie is replaced, not reused, on registration.
	if token := s.requestToken(r); token != "" {
		_ = s.sessions.Teardown(r.Context(), token)
	}

	result, fieldErrs, err := s.service.Register(r.Context(), form, r.UserAgent())
	if err != nil {
		s.writeWebsiteError(w, r, err)
		return
	}
	if !fieldErrs.Empty() {
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Errors: fieldErrs})
		return
	}

	if s.metrics != nil {
		s.metrics.RegistrationsTotal.Inc()
	}

	s.setSessionCookie(w, result.Token)
	s.writeJSON(w, http.StatusCreated, sessionResponse{
		Username:  result.Session.Username,
		FullName:  result.Session.FullName,
		CreatedAt: result.Session.CreatedAt,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	form, ok := s.readForm(w, r)
	if !ok {
		return
	}

	// Drop any existing session before establishing a fresh one, so a login
	// always rotates the token.
	if token := s.requestToken(r); token != "" {
		_ = s.sessions.Teardown(r.Context(), token)
	}

	result, fieldErrs, err := s.service.Login(r.Context(), form, r.UserAgent())
	if err != nil {
		if s.metrics != nil {
			s.metrics.LoginsTotal.WithLabelValues("error").Inc()
		}
		s.writeWebsiteError(w, r, err)
		return
	}
	if !fieldErrs.Empty() {
		if s.metrics != nil {
			s.metrics.LoginsTotal.WithLabelValues("failure").Inc()
		}
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Errors: fieldErrs})
		return
	}

	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues("success").Inc()
	}

	s.setSessionCookie(w, result.Token)
	s.writeJSON(w, http.StatusOK, sessionResponse{
		Username:  result.Session.Username,
		FullName:  result.Session.FullName,
		CreatedAt: result.Session.CreatedAt,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := s.requestToken(r); token != "" {
		_ = s.sessions.Teardown(r.Context(), token)
	}
	s.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	session := s.currentSession(r)
	if session == nil {
		s.writeJSON(w, http.StatusOK, map[string]bool{"authenticated": false})
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Authenticated bool `json:"authenticated"`
		sessionResponse
	}{
		Authenticated: true,
		sessionResponse: sessionResponse{
			Username:  session.Username,
			FullName:  session.FullName,
			CreatedAt: session.CreatedAt,
		},
	})
}

func (s *Server) handlePrivate(w http.ResponseWriter, r *http.Request) {
	session := s.currentSession(r)
	if session == nil {
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{
			Errors: map[string][]string{"session": {"authentication required"}},
		})
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
		sessionResponse
	}{
		Message: "Hi " + session.FullName,
		sessionResponse: sessionResponse{
			Username:  session.Username,
			FullName:  session.FullName,
			CreatedAt: session.CreatedAt,
		},
	})
}

// currentSession resolves the request's cookie token against the session
// manager. It returns nil for missing, expired, or hijack-suspect sessions.
func (s *Server) currentSession(r *http.Request) *auth.Session {
	token := s.requestToken(r)
	if token == "" {
		return nil
	}
	session, err := s.sessions.Current(r.Context(), token, r.UserAgent())
	if err != nil {
		s.logger.Error("session lookup failed", "error", err)
		return nil
	}
	return session
}

func (s *Server) requestToken(r *http.Request) string {
	cookie, err := r.Cookie(s.cookie.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (s *Server) readForm(w http.ResponseWriter, r *http.Request) (auth.Form, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var form auth.Form
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{
			Errors: map[string][]string{"body": {"must be a JSON object of string fields"}},
		})
		return nil, false
	}
	return form, true
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.Name,
		Value:    token,
		Path:     s.cookie.Path,
		Domain:   s.cookie.Domain,
		Secure:   s.cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie sends an already-expired replacement with the same
// attributes as the session cookie, so the browser discards its copy.
func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.Name,
		Value:    "",
		Path:     s.cookie.Path,
		Domain:   s.cookie.Domain,
		Secure:   s.cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(-24 * time.Hour),
		MaxAge:   -1,
	})
}

func (s *Server) writeWebsiteError(w http.ResponseWriter, r *http.Request, err error) {
	errutil.LogError(s.logger.With("method", r.Method, "path", r.URL.Path), "request failed", err)
	s.writeJSON(w, http.StatusInternalServerError, errorResponse{
		Errors: map[string][]string{"website": {auth.WebsiteError(err)}},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}
