package handlers

import (
	"net/http"
	"strings"

	"github.com/pribylovaa/club-auth/internal/service"
	apierrors "github.com/pribylovaa/club-auth/internal/transport/http/errors"
	"github.com/pribylovaa/club-auth/internal/transport/http/middleware"
)

// Login — POST /auth/login {code} -> 200 {user_id, is_new_account}.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in LoginRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}
	if strings.TrimSpace(in.Code) == "" {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	pair, user, isNew, err := h.svc.LoginWithCode(r.Context(), in.Code)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.setSession(w, pair, h.now())
	writeJSON(w, http.StatusOK, SessionResponse{UserID: user.ID.String(), IsNewAccount: isNew})
}

// Signup — POST /auth/signup {code, nickname} -> 201 {user_id, is_new_account}.
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	var in SignupRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}
	if strings.TrimSpace(in.Code) == "" {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	pair, user, err := h.svc.SignupWithCode(r.Context(), in.Code, in.Nickname)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.setSession(w, pair, h.now())
	writeJSON(w, http.StatusCreated, SessionResponse{UserID: user.ID.String(), IsNewAccount: true})
}

// Refresh — POST /auth/refresh (cookie) -> 200 {rotated}.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	raw := h.refreshFromCookie(r)
	if raw == "" {
		apierrors.WriteError(w, r, service.ErrMalformedCredential)
		return
	}

	pair, rotated, err := h.svc.Refresh(r.Context(), raw)
	if err != nil {
		if service.IsCredentialError(err) {
			h.clearSession(w)
		}
		apierrors.WriteError(w, r, err)
		return
	}

	h.setSession(w, pair, h.now())
	writeJSON(w, http.StatusOK, RefreshResponse{Rotated: rotated})
}

// Logout — POST /auth/logout (Bearer + cookie) -> 204.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrMalformedCredential)
		return
	}

	raw := h.refreshFromCookie(r)
	if raw == "" {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	if err := h.svc.Logout(r.Context(), p.User.ID, raw); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.clearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll — POST /auth/logout-all (Bearer) -> 204.
func (h *Handlers) LogoutAll(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrMalformedCredential)
		return
	}

	if err := h.svc.RevokeAll(r.Context(), p.User.ID); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.clearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAccount — DELETE /auth/account (Bearer, cookie опционально) -> 204.
func (h *Handlers) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrMalformedCredential)
		return
	}

	if err := h.svc.CancelAccount(r.Context(), p.User.ID, h.refreshFromCookie(r)); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.clearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me — GET /auth/me (Bearer) -> 200 {user_id, subject, role, nickname}.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrMalformedCredential)
		return
	}

	writeJSON(w, http.StatusOK, meFromUser(p.User))
}
