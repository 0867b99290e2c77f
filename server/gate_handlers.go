package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/kilnworks/go-admin-gate/challenge"
	"github.com/kilnworks/go-admin-gate/guard"
	"github.com/kilnworks/go-admin-gate/internal/utils"
)

const contentTypeJSON = "application/json; charset=utf-8"

type identityRequest struct {
	Email string `json:"email"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type statusResponse struct {
	State                   string `json:"state"`
	LockoutRemainingSeconds *int   `json:"lockout_remaining_seconds,omitempty"`
	SessionExpiresAt        string `json:"session_expires_at,omitempty"`
}

type errorResponse struct {
	Error            string `json:"error"`
	Message          string `json:"message"`
	RemainingSeconds int    `json:"remaining_seconds,omitempty"`
}

// HealthzHandler reports liveness.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// GateStatusHandler exposes the gate's current state so the UI can show
// the right step and the lockout countdown.
func (s *Server) GateStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := s.guard.Status(r.Context())
		if err != nil {
			s.writeGuardError(w, err)
			return
		}

		resp := statusResponse{State: string(status.State)}
		if status.LockoutRemaining > 0 {
			resp.LockoutRemainingSeconds = utils.Ptr(int(status.LockoutRemaining.Round(time.Second).Seconds()))
		}
		if !status.SessionExpiresAt.IsZero() {
			resp.SessionExpiresAt = status.SessionExpiresAt.UTC().Format(time.RFC3339)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// IdentityHandler starts the walk: checks the submitted email and sends
// the email code.
func (s *Server) IdentityHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req identityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
			return
		}

		if err := s.guard.SubmitIdentity(r.Context(), req.Email); err != nil {
			s.writeGuardError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{State: string(guard.StateAwaitingEmailCode)})
	}
}

// EmailCodeHandler verifies the emailed code and triggers the phone code.
func (s *Server) EmailCodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req codeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
			return
		}

		if err := s.guard.SubmitEmailCode(r.Context(), req.Code); err != nil {
			s.writeGuardError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{State: string(guard.StateAwaitingPhoneCode)})
	}
}

// PhoneCodeHandler verifies the texted code; on success it sets the
// session cookie and unblocks the protected area.
func (s *Server) PhoneCodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req codeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
			return
		}

		sess, err := s.guard.SubmitPhoneCode(r.Context(), req.Code)
		if err != nil {
			s.writeGuardError(w, err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookieName,
			Value:    sess.Credential,
			Path:     "/",
			Expires:  sess.ExpiresAt,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
		writeJSON(w, http.StatusOK, statusResponse{
			State:            string(guard.StateAuthenticated),
			SessionExpiresAt: sess.ExpiresAt.UTC().Format(time.RFC3339),
		})
	}
}

// ResendHandler reissues the code for the step the gate is waiting on.
func (s *Server) ResendHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.guard.Resend(r.Context()); err != nil {
			s.writeGuardError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
	}
}

// LogoutHandler revokes the session and clears the cookie.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.guard.Logout(r.Context()); err != nil {
			s.writeGuardError(w, err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
		writeJSON(w, http.StatusOK, statusResponse{State: string(guard.StateNeedsIdentity)})
	}
}

// AdminPingHandler is the protected area's smoke endpoint.
func (s *Server) AdminPingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "authenticated"})
	}
}

// writeGuardError maps gate errors onto HTTP responses. Every failure is
// surfaced to the caller; nothing is silently swallowed.
func (s *Server) writeGuardError(w http.ResponseWriter, err error) {
	var lockedErr *guard.LockedOutError
	if errors.As(err, &lockedErr) {
		remaining := int(lockedErr.Remaining.Round(time.Second).Seconds())
		w.Header().Set("Retry-After", strconv.Itoa(remaining))
		writeJSONError(w, http.StatusTooManyRequests, errorResponse{
			Error:            "locked_out",
			Message:          lockedErr.Error(),
			RemainingSeconds: remaining,
		})
		return
	}

	var deliveryErr *challenge.DeliveryError
	if errors.As(err, &deliveryErr) {
		writeError(w, http.StatusBadGateway, "delivery_failed", deliveryErr.Error())
		return
	}

	switch {
	case errors.Is(err, guard.ErrIdentityMismatch):
		writeError(w, http.StatusUnauthorized, "identity_mismatch", err.Error())
	case errors.Is(err, challenge.ErrCodeMismatch):
		writeError(w, http.StatusUnauthorized, "code_mismatch", err.Error())
	case errors.Is(err, challenge.ErrChallengeNotFound):
		writeError(w, http.StatusUnauthorized, "challenge_expired_or_missing", err.Error())
	case errors.Is(err, guard.ErrWrongStep):
		writeError(w, http.StatusConflict, "wrong_step", err.Error())
	case errors.Is(err, guard.ErrResendCooldown):
		writeError(w, http.StatusTooManyRequests, "resend_cooldown", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, resp errorResponse) {
	writeJSON(w, status, resp)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSONError(w, status, errorResponse{Error: code, Message: message})
}
