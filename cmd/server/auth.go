package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/fleetwise/truck-tco/internal/model"
	"github.com/fleetwise/truck-tco/internal/store"
)

const sessionCookieName = "tco_session"

type userContextKey struct{}

type authService struct {
	users         *store.UserStore
	sessionSecret []byte
}

func newAuthService(users *store.UserStore, sessionSecret string) *authService {
	return &authService{users: users, sessionSecret: []byte(sessionSecret)}
}

func (a *authService) createSessionValue(userID int64) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(userID, 10)))
	mac := hmac.New(sha256.New, a.sessionSecret)
	_, _ = mac.Write([]byte(payload))
	signature := hex.EncodeToString(mac.Sum(nil))
	return payload + "." + signature
}

func (a *authService) verifySessionValue(value string) (int64, bool) {
	parts := strings.Split(value, ".")
	if len(parts) != 2 {
		return 0, false
	}

	payload := parts[0]
	signature := parts[1]

	mac := hmac.New(sha256.New, a.sessionSecret)
	_, _ = mac.Write([]byte(payload))
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return 0, false
	}
	if !hmac.Equal(provided, expected) {
		return 0, false
	}

	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseInt(string(decoded), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}

	return id, true
}

func (a *authService) setSessionCookie(w http.ResponseWriter, userID int64) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    a.createSessionValue(userID),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *authService) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// currentUser resolves the session cookie. Deleted users lose access at once.
func (a *authService) currentUser(r *http.Request) (model.User, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return model.User{}, false
	}
	id, ok := a.verifySessionValue(cookie.Value)
	if !ok {
		return model.User{}, false
	}
	user, err := a.users.Get(r.Context(), id)
	if err != nil {
		return model.User{}, false
	}
	return user, true
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid form")
		return
	}

	user, err := s.auth.users.Authenticate(r.Context(), r.FormValue("email"), r.FormValue("password"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.auth.setSessionCookie(w, user.ID)
	s.writeJSON(w, http.StatusOK, user)
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.auth.currentUser(r)
		if !ok {
			s.writeMessage(w, http.StatusUnauthorized, "login required")
			return
		}
		if !user.IsAdmin {
			s.writeMessage(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey{}, user)))
	})
}

func userFromContext(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(model.User)
	return u, ok
}
