package main

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	adminCookieName = "shouldcost_admin"
	adminPayload    = "admin:"
)

var (
	errUnauthorized       = errors.New("admin login required")
	errInvalidCredentials = errors.New("invalid email or password")
)

// adminAuth guards the catalog admin routes. Admin identities live in the
// users table; the cookie is signed with the session secret.
type adminAuth struct {
	db       *sql.DB
	sessions *sessionService
}

func newAdminAuth(db *sql.DB, sessions *sessionService) *adminAuth {
	return &adminAuth{db: db, sessions: sessions}
}

func (a *adminAuth) validateCredentials(email, password string) (bool, error) {
	var passwordHash string
	err := a.db.QueryRow(`SELECT password_hash FROM users WHERE email = ?`, email).Scan(&passwordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query user credentials: %w", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("compare password hash: %w", err)
	}
	return true, nil
}

// ensureAdminUser provisions the configured admin, resetting its password
// to the configured one. Empty credentials provision nothing.
func (a *adminAuth) ensureAdminUser(email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	if _, err := a.db.Exec(`
		INSERT INTO users (email, password_hash)
		VALUES (?, ?)
		ON CONFLICT(email) DO UPDATE SET
			password_hash = excluded.password_hash,
			updated_at = CURRENT_TIMESTAMP
	`, email, string(hash)); err != nil {
		return fmt.Errorf("upsert admin user: %w", err)
	}
	return nil
}

func (a *adminAuth) setAdminCookie(w http.ResponseWriter, email string) {
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookieName,
		Value:    a.sessions.sign(adminPayload + email),
		Path:     "/admin",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *adminAuth) clearAdminCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookieName,
		Value:    "",
		Path:     "/admin",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// adminEmail returns the signed-in admin, if any.
func (a *adminAuth) adminEmail(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(adminCookieName)
	if err != nil {
		return "", false
	}
	payload, ok := a.sessions.verify(cookie.Value)
	if !ok {
		return "", false
	}
	email, ok := strings.CutPrefix(payload, adminPayload)
	if !ok || email == "" {
		return "", false
	}
	return email, true
}

func (s *server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.admin.adminEmail(r); !ok {
			s.writeError(w, r, errUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (s *server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decodeValid(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	email := strings.TrimSpace(req.Email)
	valid, err := s.admin.validateCredentials(email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !valid {
		s.writeError(w, r, errInvalidCredentials)
		return
	}

	s.admin.setAdminCookie(w, email)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	s.admin.clearAdminCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
