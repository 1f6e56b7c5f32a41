package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/smartgarage/garage-core/internal/accesslog"
	"github.com/smartgarage/garage-core/internal/auth"
)

// defaultAccessTokenTTL is the access token lifetime in minutes when the
// configuration does not set one.
const defaultAccessTokenTTL = 15

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the response body for POST /auth/login.
type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// handleLogin authenticates a user against the user store and returns a
// signed access token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	user, err := s.users.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			// Burn a verification anyway so response timing does not
			// reveal which usernames exist.
			_, _ = auth.VerifyPassword(req.Password, dummyPasswordHash) //nolint:errcheck // result intentionally ignored
			s.recordLogin(r, req.Username, accesslog.OutcomeDenied)
			writeUnauthorized(w, "invalid credentials")
			return
		}
		s.logger.Error("login lookup failed", "username", req.Username, "error", err)
		writeInternalError(w, "login failed")
		return
	}

	match, err := auth.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !match {
		s.recordLogin(r, req.Username, accesslog.OutcomeDenied)
		writeUnauthorized(w, "invalid credentials")
		return
	}

	if !user.IsActive {
		s.recordLogin(r, req.Username, accesslog.OutcomeDenied)
		writeUnauthorized(w, "account is deactivated")
		return
	}

	ttl := s.secCfg.JWT.AccessTokenTTL
	if ttl == 0 {
		ttl = defaultAccessTokenTTL
	}

	signed, err := auth.GenerateAccessToken(user, s.secCfg.JWT.Secret, ttl)
	if err != nil {
		s.logger.Error("token generation failed", "username", req.Username, "error", err)
		writeInternalError(w, "failed to generate token")
		return
	}

	s.logger.Info("user logged in", "user_id", user.ID, "username", user.Username)
	s.recordLogin(r, user.Username, accesslog.OutcomeOK)

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   ttl * 60,
	})
}

// handleWSTicket issues a short-lived ticket token for opening an
// observer WebSocket session. Browsers cannot set an Authorization
// header on the upgrade request, so the ticket travels as a query
// parameter instead; the short lifetime limits URL leakage exposure.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	user, err := s.users.GetByID(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeUnauthorized(w, "account no longer exists")
			return
		}
		s.logger.Error("ticket lookup failed", "user_id", claims.Subject, "error", err)
		writeInternalError(w, "failed to issue ticket")
		return
	}

	if !user.IsActive {
		writeUnauthorized(w, "account is deactivated")
		return
	}

	ticket, err := auth.GenerateWSTicket(user, s.secCfg.JWT.Secret)
	if err != nil {
		s.logger.Error("ticket generation failed", "user_id", user.ID, "error", err)
		writeInternalError(w, "failed to issue ticket")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": int(auth.WSTicketTTL.Seconds()),
	})
}

// recordLogin writes a login attempt to the access log, best-effort.
func (s *Server) recordLogin(r *http.Request, actor string, outcome string) {
	if s.accessLog == nil {
		return
	}
	entry := &accesslog.Entry{
		Actor:   actor,
		Action:  "login",
		Outcome: outcome,
	}
	if err := s.accessLog.Create(r.Context(), entry); err != nil {
		s.logger.Warn("access log write failed", "actor", actor, "action", "login", "error", err)
	}
}

// dummyPasswordHash is a valid argon2id hash of a random string, used to
// equalise login timing for unknown usernames.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=3,p=2$c29tZXNhbHRzb21lc2FsdA$RdescudvJCsgt3ub+b+dWRWJTmaaJObG"
